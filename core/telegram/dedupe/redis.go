package dedupe

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Guard shared by every replica behind the same webhook URL.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedis wraps client. Keys are "<prefix>update:<id>".
func NewRedis(client redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(updateID int) string {
	return r.prefix + "update:" + strconv.Itoa(updateID)
}

// FirstSeen claims updateID with SET NX.
func (r *Redis) FirstSeen(ctx context.Context, updateID int) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(updateID), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe: redis setnx: %w", err)
	}
	return ok, nil
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("dedupe: redis ping %s: %w", addr, err)
	}
	return client, nil
}
