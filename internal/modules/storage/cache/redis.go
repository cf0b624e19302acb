package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rationable:cache:"

// RedisStore keeps one namespace in a single Redis hash, field = key, value = entry JSON.
type RedisStore struct {
	rdb  *redis.Client
	hash string
}

func NewRedisStore(rdb *redis.Client, namespace string) *RedisStore {
	return &RedisStore{rdb: rdb, hash: redisKeyPrefix + namespace}
}

func (s *RedisStore) Load(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := s.rdb.HGet(ctx, s.hash, key).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt rows behave as misses and are replaced on the next write.
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.hash, key, raw).Err()
}

func (s *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.HDel(ctx, s.hash, keys...).Err()
}

func (s *RedisStore) Scan(ctx context.Context) ([]KeyedEntry, error) {
	all, err := s.rdb.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return nil, err
	}
	out := make([]KeyedEntry, 0, len(all))
	for k, raw := range all {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			// Zero timestamp makes the row expired, so the next sweep drops it.
			out = append(out, KeyedEntry{Key: k})
			continue
		}
		out = append(out, KeyedEntry{Key: k, Entry: e})
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.hash).Err()
}
