package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

const keyPrefix = "retrieval:"

// Cache stores fused retrieval responses in Redis so replicas share one
// cache. All operations are best-effort: a Redis failure degrades to a miss,
// never to a request error.
type Cache struct {
	client *goredis.Client
	log    *slog.Logger
}

func New(client *goredis.Client, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{client: client, log: log}
}

func Open(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.RetrievalResponse, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("redis cache get", slog.String("error", err.Error()))
		}
		return nil, false
	}

	var resp domain.RetrievalResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log.Warn("redis cache entry corrupt, dropping", slog.String("error", err.Error()))
		c.client.Del(ctx, keyPrefix+key)
		return nil, false
	}
	return &resp, true
}

func (c *Cache) Set(ctx context.Context, key string, value *domain.RetrievalResponse, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("redis cache marshal", slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		c.log.Warn("redis cache set", slog.String("error", err.Error()))
	}
}

func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		c.log.Warn("redis cache delete", slog.String("error", err.Error()))
	}
}
