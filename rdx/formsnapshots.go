package rdx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"recipebox/formstate"
)

// FormSnapshots persists recipe editor snapshots as plain Redis strings under
// "<prefix>:<key>".
type FormSnapshots struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ formstate.Persister = (*FormSnapshots)(nil)

// NewFormSnapshots returns a persister. A zero ttl keeps snapshots forever.
func NewFormSnapshots(client redis.Cmdable, prefix string, ttl time.Duration) *FormSnapshots {
	return &FormSnapshots{client: client, prefix: prefix, ttl: ttl}
}

func (f *FormSnapshots) redisKey(key string) string {
	if f.prefix == "" {
		return key
	}
	return f.prefix + ":" + key
}

func (f *FormSnapshots) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := f.client.Get(ctx, f.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, formstate.ErrNotPersisted
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *FormSnapshots) Save(ctx context.Context, key string, data []byte) error {
	return f.client.Set(ctx, f.redisKey(key), data, f.ttl).Err()
}

func (f *FormSnapshots) Delete(ctx context.Context, key string) error {
	return f.client.Del(ctx, f.redisKey(key)).Err()
}
