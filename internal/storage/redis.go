package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rewired-gh/paceoracle/internal/models"
)

// RedisStore keeps each game state as one JSON document, with a set of known ids for List.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int, prefix string, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return newRedisStore(rdb, prefix, ttl), nil
}

func newRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Ping checks the server is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) key(gameID string) string {
	return r.prefix + gameID
}

func (r *RedisStore) indexKey() string {
	return r.prefix + "index"
}

// Load returns the stored state, or nil, nil when the key is missing or expired.
func (r *RedisStore) Load(ctx context.Context, gameID string) (*models.GameState, error) {
	val, err := r.client.Get(ctx, r.key(gameID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var st models.GameState
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &st, nil
}

// Save writes the state document with the store TTL and indexes its id.
func (r *RedisStore) Save(ctx context.Context, state *models.GameState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid game state: %w", err)
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := r.client.Set(ctx, r.key(state.GameID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if err := r.client.SAdd(ctx, r.indexKey(), state.GameID).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// Delete removes the state document and its index entry.
func (r *RedisStore) Delete(ctx context.Context, gameID string) error {
	if err := r.client.Del(ctx, r.key(gameID)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	if err := r.client.SRem(ctx, r.indexKey(), gameID).Err(); err != nil {
		return fmt.Errorf("redis srem: %w", err)
	}
	return nil
}

// List returns every indexed state that has not expired. Expired ids are dropped from the index.
func (r *RedisStore) List(ctx context.Context) ([]*models.GameState, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	states := []*models.GameState{}
	if len(ids) == 0 {
		return states, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	var expired []interface{}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var st models.GameState
		if err := json.Unmarshal([]byte(s), &st); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state %s: %w", ids[i], err)
		}
		states = append(states, &st)
	}
	if len(expired) > 0 {
		if err := r.client.SRem(ctx, r.indexKey(), expired...).Err(); err != nil {
			return nil, fmt.Errorf("redis srem: %w", err)
		}
	}
	return states, nil
}
