// Package live pushes a user's recipe list to their open websocket
// connections whenever it changes.
package live

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"recipebox/models"
)

// Subscriber opens a recipe list subscription for one user.
type Subscriber interface {
	SubscribeToUserRecipes(ctx context.Context, userID string, callback func([]models.RecipeSummaryWithTags)) func()
}

type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
}

type room struct {
	userID      string
	clients     map[*Client]bool
	last        []byte
	cancel      context.CancelFunc
	unsubscribe func()
}

type broadcastMsg struct {
	room *room
	data []byte
}

// Payload is the message every connection of a user receives.
type Payload struct {
	Action  string                         `json:"action"`
	Recipes []models.RecipeSummaryWithTags `json:"recipes"`
}

// Hub keeps one room per user. The first connection of a room opens the
// subscription and the last one to leave closes it.
type Hub struct {
	subs Subscriber
	log  *zap.Logger

	rooms      map[string]*room
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg

	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	closing  sync.WaitGroup
}

func NewHub(subs Subscriber, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs:       subs,
		log:        log.With(zap.String("component", "live")),
		rooms:      make(map[string]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case c := <-h.register:
			r := h.rooms[c.UserID]
			if r == nil {
				r = h.openRoom(c.UserID)
			}
			r.clients[c] = true
			if r.last != nil {
				select {
				case c.Send <- r.last:
				default:
				}
			}

		case c := <-h.unregister:
			r := h.rooms[c.UserID]
			if r == nil || !r.clients[c] {
				continue
			}
			delete(r.clients, c)
			close(c.Send)
			if len(r.clients) == 0 {
				h.closeRoom(r)
			}

		case m := <-h.broadcast:
			r := m.room
			if h.rooms[r.userID] != r {
				// room closed while the message was in flight
				continue
			}
			r.last = m.data
			for c := range r.clients {
				select {
				case c.Send <- m.data:
				default:
					h.log.Warn("dropping slow client", zap.String("userId", r.userID))
					close(c.Send)
					delete(r.clients, c)
				}
			}
			if len(r.clients) == 0 {
				h.closeRoom(r)
			}

		case <-h.quit:
			for _, r := range h.rooms {
				for c := range r.clients {
					close(c.Send)
				}
				h.closeRoom(r)
			}
			return
		}
	}
}

// Stop ends Run, disconnects every client and waits for the open
// subscriptions to finish. Run must have been started.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.stopped
	h.closing.Wait()
}

func (h *Hub) openRoom(userID string) *room {
	ctx, cancel := context.WithCancel(context.Background())
	r := &room{
		userID:  userID,
		clients: make(map[*Client]bool),
		cancel:  cancel,
	}
	h.rooms[userID] = r
	r.unsubscribe = h.subs.SubscribeToUserRecipes(ctx, userID, h.deliver(ctx, r))
	h.log.Debug("room opened", zap.String("userId", userID))
	return r
}

// closeRoom removes r and releases its subscription in the background, since
// the subscription may be waiting on this loop to accept a broadcast.
func (h *Hub) closeRoom(r *room) {
	delete(h.rooms, r.userID)
	r.cancel()
	h.closing.Add(1)
	go func() {
		defer h.closing.Done()
		r.unsubscribe()
	}()
	h.log.Debug("room closed", zap.String("userId", r.userID))
}

func (h *Hub) deliver(ctx context.Context, r *room) func([]models.RecipeSummaryWithTags) {
	return func(list []models.RecipeSummaryWithTags) {
		if list == nil {
			list = []models.RecipeSummaryWithTags{}
		}
		data, err := json.Marshal(Payload{Action: "recipes", Recipes: list})
		if err != nil {
			h.log.Error("failed to encode recipes", zap.String("userId", r.userID), zap.Error(err))
			return
		}
		select {
		case h.broadcast <- broadcastMsg{room: r, data: data}:
		case <-ctx.Done():
		case <-h.quit:
		}
	}
}
