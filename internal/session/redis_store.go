package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

const (
	DefaultRedisKey     = "docqa:session:token"
	DefaultRedisChannel = "docqa:session:changed"
)

// RedisStore keeps the credential under one key and announces every write on
// a channel. Messages carry the writer's instance ID so a store can skip its
// own writes.
type RedisStore struct {
	client     *redisv9.Client
	key        string
	channel    string
	instanceID string
}

func NewRedisStore(client *redisv9.Client, key, channel string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisStore{
		client:     client,
		key:        key,
		channel:    channel,
		instanceID: uuid.NewString(),
	}
}

func (s *RedisStore) Load(ctx context.Context) (string, error) {
	value, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get credential failed: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Save(ctx context.Context, token string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Set(ctx, s.key, token, 0)
		pipe.Publish(ctx, s.channel, s.instanceID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save credential failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.Publish(ctx, s.channel, s.instanceID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis clear credential failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Watch(ctx context.Context, onChange func()) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe credential channel failed: %w", err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if msg.Payload == s.instanceID {
				continue
			}
			onChange()
		}
	}
}
