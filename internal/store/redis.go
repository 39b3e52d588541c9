package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each table in a Redis hash of key -> JSON record, plus a
// set listing the table names. Redis is authoritative, so there is no reload
// step; a cleared table disappears from Redis but stays listed.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Prefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, config RedisConfig) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: config.Prefix,
	}
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		if k == "" {
			k = p
			continue
		}
		k += ":" + p
	}
	return k
}

func (s *RedisStore) tableKey(table string) string { return s.key("table", table) }

func (s *RedisStore) tablesKey() string { return s.key("tables") }

func (s *RedisStore) Get(ctx context.Context, table, key string) (Record, bool, error) {
	raw, err := s.client.HGet(ctx, s.tableKey(table), NormalizeKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: redis hget: %w", ErrIO, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, fmt.Errorf("%w: decode record %s.%s: %w", ErrIO, table, key, err)
	}
	return rec, true, nil
}

func (s *RedisStore) Set(ctx context.Context, table, key string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record: %w", ErrIO, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.tableKey(table), NormalizeKey(key), raw)
		pipe.SAdd(ctx, s.tablesKey(), table)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: redis set: %w", ErrIO, err)
	}
	return nil
}

// maxUpdateAttempts bounds the optimistic retries of Update under contention.
const maxUpdateAttempts = 16

// Update watches the table hash and applies fn inside MULTI/EXEC, retrying
// when another client changed the hash in between.
func (s *RedisStore) Update(ctx context.Context, table, key string, fn UpdateFunc) error {
	hash, field := s.tableKey(table), NormalizeKey(key)

	txf := func(tx *redis.Tx) error {
		var rec Record
		exists := true
		raw, err := tx.HGet(ctx, hash, field).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return fmt.Errorf("%w: redis hget: %w", ErrIO, err)
		default:
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("%w: decode record %s.%s: %w", ErrIO, table, field, err)
			}
		}

		remove, err := fn(&rec, exists)
		if err != nil {
			return err
		}
		if remove && !exists {
			return nil
		}

		var payload []byte
		if !remove {
			if payload, err = json.Marshal(rec); err != nil {
				return fmt.Errorf("%w: encode record: %w", ErrIO, err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if remove {
				pipe.HDel(ctx, hash, field)
				return nil
			}
			pipe.HSet(ctx, hash, field, payload)
			pipe.SAdd(ctx, s.tablesKey(), table)
			return nil
		})
		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("%w: redis update: %w", ErrIO, err)
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, hash)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: redis update %s.%s: gave up after %d conflicting writes", ErrIO, table, field, maxUpdateAttempts)
}

func (s *RedisStore) Delete(ctx context.Context, table, key string) error {
	n, err := s.client.HDel(ctx, s.tableKey(table), NormalizeKey(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: redis hdel: %w", ErrIO, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s.%s", ErrNotFound, table, NormalizeKey(key))
	}
	return nil
}

func (s *RedisStore) ClearTable(ctx context.Context, table string) error {
	if err := s.requireTable(ctx, table); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.tableKey(table)).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %w", ErrIO, err)
	}
	return nil
}

func (s *RedisStore) DeleteTable(ctx context.Context, table string) error {
	if err := s.requireTable(ctx, table); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.tableKey(table))
		pipe.SRem(ctx, s.tablesKey(), table)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: redis delete table: %w", ErrIO, err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, table string) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.tableKey(table)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis hkeys: %w", ErrIO, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Tables(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.tablesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis smembers: %w", ErrIO, err)
	}
	sort.Strings(names)
	return names, nil
}

// Ping checks if Redis connection is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) requireTable(ctx context.Context, table string) error {
	ok, err := s.client.SIsMember(ctx, s.tablesKey(), table).Result()
	if err != nil {
		return fmt.Errorf("%w: redis sismember: %w", ErrIO, err)
	}
	if !ok {
		return fmt.Errorf("%w: table %q", ErrNotFound, table)
	}
	return nil
}
