// Package mq carries recipe change notifications over Redis pub/sub.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RecipeEvent is published after a recipe write.
type RecipeEvent struct {
	UserID   string `json:"userId"`
	RecipeID string `json:"recipeId"`
	Action   string `json:"action"` // "created" | "updated"
}

// Channel is the pub/sub channel carrying a user's recipe events.
func Channel(userID string) string {
	return "recipes:" + userID
}

// RecipeFeed publishes recipe events and lets subscribers watch them.
type RecipeFeed struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRecipeFeed(client *redis.Client, log *zap.Logger) *RecipeFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecipeFeed{client: client, log: log.With(zap.String("component", "mq"))}
}

// Publish sends the event to the owner's channel.
func (f *RecipeFeed) Publish(ctx context.Context, event RecipeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal recipe event: %w", err)
	}
	if err := f.client.Publish(ctx, Channel(event.UserID), data).Err(); err != nil {
		return fmt.Errorf("publish recipe event: %w", err)
	}
	f.log.Debug("recipe event published",
		zap.String("userId", event.UserID),
		zap.String("recipeId", event.RecipeID),
		zap.String("action", event.Action))
	return nil
}

// Watch subscribes to the user's channel, calls notify once the subscription is
// live and again for every event, until ctx is done.
func (f *RecipeFeed) Watch(ctx context.Context, userID string, notify func()) error {
	sub := f.client.Subscribe(ctx, Channel(userID))
	defer sub.Close()

	// wait for the subscription confirmation so nothing published after the
	// first notify is missed
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", Channel(userID), err)
	}
	notify()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("recipe feed subscription closed")
			}
			var event RecipeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.log.Warn("malformed recipe event", zap.String("channel", msg.Channel), zap.Error(err))
			}
			notify()
		}
	}
}
