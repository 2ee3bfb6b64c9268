package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docqa-client/internal/model"
)

// HistoryCache keeps each user's query history in redis. A dirty marker set
// after a new query makes readers go back to the server.
type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, owner string) ([]model.QueryRecord, bool, error) {
	raw, err := c.client.Get(ctx, historyKey(owner)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get query history failed: %w", err)
	}

	var records []model.QueryRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached query history failed: %w", err)
	}
	return records, true, nil
}

// SetHistory stores records and clears the dirty marker in one round trip.
func (c *HistoryCache) SetHistory(ctx context.Context, owner string, records []model.QueryRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal query history failed: %w", err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Set(ctx, historyKey(owner), payload, c.historyTTL)
		pipe.Del(ctx, dirtyKey(owner))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set query history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, owner string) error {
	if err := c.client.Del(ctx, historyKey(owner), dirtyKey(owner)).Err(); err != nil {
		return fmt.Errorf("redis delete query history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) MarkDirty(ctx context.Context, owner string) error {
	if err := c.client.Set(ctx, dirtyKey(owner), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, owner string) (bool, error) {
	exists, err := c.client.Exists(ctx, dirtyKey(owner)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func historyKey(owner string) string {
	return "docqa:history:" + owner
}

func dirtyKey(owner string) string {
	return "docqa:history:dirty:" + owner
}
