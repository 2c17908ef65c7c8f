package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a DurableStore backed by Redis. Entries are stored as JSON
// strings with a server-side TTL matching the entry TTL; tag membership is
// tracked in Redis sets so DeleteByTag stays a two-round-trip operation.
// All keys are namespaced with the configured prefix.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore from connection options. The prefix
// namespaces all keys and must not be empty.
func NewRedisStore(opts *redis.Options, prefix string) (*RedisStore, error) {
	if prefix == "" {
		return nil, fmt.Errorf("prefix cannot be empty")
	}
	return &RedisStore{rdb: redis.NewClient(opts), prefix: prefix}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client, prefix string) (*RedisStore, error) {
	if prefix == "" {
		return nil, fmt.Errorf("prefix cannot be empty")
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (s *RedisStore) Close() error { return s.rdb.Close() }

// Ping verifies Redis connectivity. Useful for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) entryKey(key string) string {
	return fmt.Sprintf("%s:entry:%s", s.prefix, key)
}

func (s *RedisStore) tagKey(tag string) string {
	return fmt.Sprintf("%s:tag:%s", s.prefix, tag)
}

// Put stores the entry as JSON with the entry's TTL and registers it under
// its task/agent tag sets.
func (s *RedisStore) Put(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize entry: %w", err)
	}
	if err := s.rdb.Set(ctx, s.entryKey(e.Key), raw, e.TTL).Err(); err != nil {
		return fmt.Errorf("failed to write entry to redis: %w", err)
	}
	for _, tag := range entryTags(e) {
		if err := s.rdb.SAdd(ctx, s.tagKey(tag), e.Key).Err(); err != nil {
			return fmt.Errorf("failed to tag entry: %w", err)
		}
	}
	return nil
}

// Get retrieves the entry by key. Returns found=false when absent or expired
// server-side.
func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := s.rdb.Get(ctx, s.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read entry from redis: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to deserialize entry: %w", err)
	}
	return e, true, nil
}

// Delete removes a single entry.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.entryKey(key)).Err()
}

// DeleteByTag removes every entry registered under the tag plus the tag set
// itself.
func (s *RedisStore) DeleteByTag(ctx context.Context, tag string) error {
	keys, err := s.rdb.SMembers(ctx, s.tagKey(tag)).Result()
	if err != nil {
		return fmt.Errorf("failed to resolve tag members: %w", err)
	}
	for _, key := range keys {
		if err := s.rdb.Del(ctx, s.entryKey(key)).Err(); err != nil {
			return fmt.Errorf("failed to delete tagged entry: %w", err)
		}
	}
	return s.rdb.Del(ctx, s.tagKey(tag)).Err()
}

func entryTags(e Entry) []string {
	var tags []string
	if e.TaskID != "" {
		tags = append(tags, "task:"+e.TaskID)
	}
	if e.AgentID != "" {
		tags = append(tags, "agent:"+e.AgentID)
	}
	return tags
}
