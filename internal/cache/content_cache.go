// Package cache keeps materialized content in Redis between campaign calls.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/crm-backend/internal/model"
)

const keyPrefix = "crm:content:"

type ContentCache struct {
	Client redis.Cmdable
	TTL    time.Duration
}

func NewContentCache(client redis.Cmdable, ttl time.Duration) *ContentCache {
	return &ContentCache{Client: client, TTL: ttl}
}

func contentKey(id int64) string { return fmt.Sprintf("%s%d", keyPrefix, id) }

// GetMany returns the cached items among ids. Missing or undecodable
// entries are simply absent from the result.
func (c *ContentCache) GetMany(ctx context.Context, ids []int64) (map[int64]model.Content, error) {
	if len(ids) == 0 {
		return map[int64]model.Content{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = contentKey(id)
	}

	vals, err := c.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget contents: %w", err)
	}

	found := make(map[int64]model.Content, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var item model.Content
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			continue
		}
		found[ids[i]] = item
	}
	return found, nil
}

// SetMany writes items with the configured TTL in one round trip.
func (c *ContentCache) SetMany(ctx context.Context, items []model.Content) error {
	if len(items) == 0 {
		return nil
	}
	pipe := c.Client.Pipeline()
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		pipe.Set(ctx, contentKey(item.ID), data, c.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache contents: %w", err)
	}
	return nil
}
