package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"onpaku/pkg/platform/sentinel"
)

// mutateAttempts bounds the optimistic retry loop when a WATCHed key changes
// between read and write.
const mutateAttempts = 32

// RedisStore persists documents as JSON values under "doc:<collection>:<id>"
// keys. Queries SCAN the collection prefix and filter client-side; Mutate
// uses WATCH-based optimistic transactions.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Collection(name string) Collection {
	return &redisCollection{client: s.client, name: name}
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

type redisCollection struct {
	client *redis.Client
	name   string
}

func (c *redisCollection) key(id string) string {
	return "doc:" + c.name + ":" + id
}

func (c *redisCollection) Get(ctx context.Context, id string) (Document, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (c *redisCollection) Set(ctx context.Context, id string, doc Document, opts SetOptions) error {
	if !opts.Merge {
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("set document: %w", err)
		}
		if err := c.client.Set(ctx, c.key(id), raw, 0).Err(); err != nil {
			return fmt.Errorf("set document: %w", err)
		}
		return nil
	}
	return c.Mutate(ctx, id, func(existing Document) (Document, error) {
		if existing == nil {
			return doc, nil
		}
		for k, v := range doc {
			existing[k] = v
		}
		return existing, nil
	})
}

func (c *redisCollection) Update(ctx context.Context, id string, fields Document) error {
	return c.Mutate(ctx, id, func(existing Document) (Document, error) {
		if existing == nil {
			return nil, sentinel.ErrNotFound
		}
		for k, v := range fields {
			existing[k] = v
		}
		return existing, nil
	})
}

func (c *redisCollection) Mutate(ctx context.Context, id string, fn func(Document) (Document, error)) error {
	key := c.key(id)

	attempt := func(tx *redis.Tx) error {
		var current Document
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// fn decides what a missing document means.
		case err != nil:
			return fmt.Errorf("mutate document: %w", err)
		default:
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("mutate document: %w", err)
			}
		}

		out, err := fn(current)
		if err != nil {
			return err
		}
		normalized, err := Encode(out)
		if err != nil {
			return err
		}
		outRaw, err := json.Marshal(normalized)
		if err != nil {
			return fmt.Errorf("mutate document: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, outRaw, 0)
			return nil
		})
		return err
	}

	for i := 0; i < mutateAttempts; i++ {
		err := c.client.Watch(ctx, attempt, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return sentinel.ErrConflict
}

func (c *redisCollection) Query(ctx context.Context, filters ...Filter) ([]Snapshot, error) {
	prefix := "doc:" + c.name + ":"

	var keys []string
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	var results []Snapshot
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Key expired or was deleted between SCAN and MGET.
			continue
		}
		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("query documents: %w", err)
		}
		if !matches(doc, filters) {
			continue
		}
		results = append(results, Snapshot{ID: strings.TrimPrefix(keys[i], prefix), Data: doc})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}
