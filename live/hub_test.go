package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"recipebox/models"
	"recipebox/utils"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type subscription struct {
	userID   string
	callback func([]models.RecipeSummaryWithTags)
	closed   chan struct{}
}

// fakeSubscriber mimics the recipe service: it delivers initial once, then
// waits for the test to push more.
type fakeSubscriber struct {
	mu      sync.Mutex
	initial []models.RecipeSummaryWithTags
	subs    []*subscription
}

func (f *fakeSubscriber) SubscribeToUserRecipes(ctx context.Context, userID string, callback func([]models.RecipeSummaryWithTags)) func() {
	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{userID: userID, callback: callback, closed: make(chan struct{})}
	f.mu.Lock()
	f.subs = append(f.subs, s)
	initial := f.initial
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if initial != nil {
			callback(initial)
		}
		<-ctx.Done()
	}()

	var once sync.Once
	return func() {
		cancel()
		<-done
		once.Do(func() { close(s.closed) })
	}
}

func (f *fakeSubscriber) all() []*subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*subscription(nil), f.subs...)
}

// wait returns the subscriptions once n of them have been opened.
func (f *fakeSubscriber) wait(t *testing.T, n int) []*subscription {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.all()) >= n }, time.Second, 5*time.Millisecond)
	return f.all()
}

func summaries(titles ...string) []models.RecipeSummaryWithTags {
	out := make([]models.RecipeSummaryWithTags, 0, len(titles))
	for _, title := range titles {
		out = append(out, models.RecipeSummaryWithTags{ID: "id-" + title, Title: title, Tags: []models.Tag{}})
	}
	return out
}

func decode(t *testing.T, data []byte) Payload {
	t.Helper()
	var p Payload
	require.NoError(t, json.Unmarshal(data, &p))
	return p
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case got, ok := <-ch:
		require.True(t, ok, "send channel closed")
		return got
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func closedWithin(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(time.Second):
		return false
	}
}

func TestHubRegisterBroadcastUnregister(t *testing.T) {
	subs := &fakeSubscriber{}
	hub := NewHub(subs, nil)
	go hub.Run()
	defer hub.Stop()

	client := &Client{Send: make(chan []byte, 10), UserID: "u1"}
	hub.register <- client

	all := subs.wait(t, 1)
	require.Len(t, all, 1)
	assert.Equal(t, "u1", all[0].userID)

	all[0].callback(summaries("Soup"))
	got := decode(t, receive(t, client.Send))
	assert.Equal(t, "recipes", got.Action)
	require.Len(t, got.Recipes, 1)
	assert.Equal(t, "Soup", got.Recipes[0].Title)

	hub.unregister <- client
	assert.True(t, closedWithin(all[0].closed), "subscription not released")
	_, open := <-client.Send
	assert.False(t, open)
}

func TestHubSharesOneSubscriptionPerUser(t *testing.T) {
	subs := &fakeSubscriber{}
	hub := NewHub(subs, nil)
	go hub.Run()
	defer hub.Stop()

	a := &Client{Send: make(chan []byte, 10), UserID: "u1"}
	b := &Client{Send: make(chan []byte, 10), UserID: "u1"}
	other := &Client{Send: make(chan []byte, 10), UserID: "u2"}
	hub.register <- a
	hub.register <- b
	hub.register <- other

	all := subs.wait(t, 2)
	require.Len(t, all, 2)

	all[0].callback(summaries("Soup", "Bread"))
	assert.Len(t, decode(t, receive(t, a.Send)).Recipes, 2)
	assert.Len(t, decode(t, receive(t, b.Send)).Recipes, 2)
	assert.Empty(t, other.Send)

	// the room stays open while one connection remains
	hub.unregister <- a
	all[0].callback(summaries("Soup"))
	assert.Len(t, decode(t, receive(t, b.Send)).Recipes, 1)
	select {
	case <-all[0].closed:
		t.Fatal("subscription released with a client still connected")
	default:
	}
}

func TestHubLateJoinerGetsLastList(t *testing.T) {
	subs := &fakeSubscriber{}
	hub := NewHub(subs, nil)
	go hub.Run()
	defer hub.Stop()

	first := &Client{Send: make(chan []byte, 10), UserID: "u1"}
	hub.register <- first
	subs.wait(t, 1)[0].callback(summaries("Soup"))
	receive(t, first.Send)

	late := &Client{Send: make(chan []byte, 10), UserID: "u1"}
	hub.register <- late
	got := decode(t, receive(t, late.Send))
	require.Len(t, got.Recipes, 1)
	assert.Equal(t, "Soup", got.Recipes[0].Title)
}

func TestHubNilListIsSentAsEmpty(t *testing.T) {
	subs := &fakeSubscriber{}
	hub := NewHub(subs, nil)
	go hub.Run()
	defer hub.Stop()

	client := &Client{Send: make(chan []byte, 10), UserID: "u1"}
	hub.register <- client
	subs.wait(t, 1)[0].callback(nil)

	assert.JSONEq(t, `{"action":"recipes","recipes":[]}`, string(receive(t, client.Send)))
}

func TestHubDropsSlowClient(t *testing.T) {
	subs := &fakeSubscriber{}
	hub := NewHub(subs, nil)
	go hub.Run()
	defer hub.Stop()

	// a full buffer is what makes a client slow
	slow := &Client{Send: make(chan []byte, 1), UserID: "u1"}
	slow.Send <- []byte("stale")
	hub.register <- slow
	sub := subs.wait(t, 1)[0]
	sub.callback(summaries("Soup"))

	// the room closes only after its last client was dropped
	require.True(t, closedWithin(sub.closed), "empty room kept its subscription")

	msg, open := <-slow.Send
	require.True(t, open)
	assert.Equal(t, "stale", string(msg), "slow client was served the broadcast")
	_, open = <-slow.Send
	assert.False(t, open, "slow client should be closed")

	// a late unregister of a dropped client is harmless
	hub.unregister <- slow
}

func TestHubStopClosesEverything(t *testing.T) {
	subs := &fakeSubscriber{}
	hub := NewHub(subs, nil)
	go hub.Run()

	a := &Client{Send: make(chan []byte, 10), UserID: "u1"}
	b := &Client{Send: make(chan []byte, 10), UserID: "u2"}
	hub.register <- a
	hub.register <- b

	subs.wait(t, 2)
	hub.Stop()
	hub.Stop()

	for _, s := range subs.all() {
		assert.True(t, closedWithin(s.closed))
	}
	_, open := <-a.Send
	assert.False(t, open)
	_, open = <-b.Send
	assert.False(t, open)
	assert.Empty(t, hub.rooms)
}

func TestCheckOrigin(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://app.example.com/api/live/recipes", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	anyOrigin := CheckOrigin([]string{"*"})
	assert.True(t, anyOrigin(req("https://elsewhere.test")))

	listed := CheckOrigin([]string{"https://front.example.com"})
	assert.True(t, listed(req("")))
	assert.True(t, listed(req("https://front.example.com")))
	assert.True(t, listed(req("http://app.example.com")))
	assert.False(t, listed(req("https://evil.test")))
}

func newLiveServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	router := httprouter.New()
	handler := WebSocketHandler(hub, []string{"*"})
	router.GET("/api/live/recipes", func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if id := r.URL.Query().Get("user"); id != "" {
			r = r.WithContext(utils.WithUserID(r.Context(), id))
		}
		handler(w, r, ps)
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live/recipes" + query
}

func TestWebSocketDeliversRecipes(t *testing.T) {
	subs := &fakeSubscriber{initial: summaries("Soup", "Bread")}
	hub := NewHub(subs, nil)
	go hub.Run()
	defer hub.Stop()
	srv := newLiveServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?user=u1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	got := decode(t, data)
	assert.Equal(t, "recipes", got.Action)
	assert.Len(t, got.Recipes, 2)

	subs.all()[0].callback(summaries("Soup"))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Len(t, decode(t, data).Recipes, 1)

	// closing the socket releases the subscription
	conn.Close()
	assert.True(t, closedWithin(subs.all()[0].closed))
}

func TestWebSocketRequiresUser(t *testing.T) {
	hub := NewHub(&fakeSubscriber{}, nil)
	go hub.Run()
	defer hub.Stop()
	srv := newLiveServer(t, hub)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketClosedOnStop(t *testing.T) {
	subs := &fakeSubscriber{initial: summaries("Soup")}
	hub := NewHub(subs, nil)
	go hub.Run()
	srv := newLiveServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?user=u1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	hub.Stop()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
