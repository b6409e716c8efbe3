// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package listserver publishes hosted sessions to a shared Redis so clients
// outside the LAN can find them.
package listserver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// Entry is one announced session.
type Entry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Reachable   bool      `json:"reachable"`
	AnnouncedAt time.Time `json:"announced_at"`
}

// Registry stores session entries in Redis. Entries expire unless refreshed.
type Registry struct {
	client *redis.Client
	cfg    Config
}

// New connects to the Redis at cfg.URL.
func New(ctx context.Context, cfg Config) (*Registry, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, oops.Code("LISTSERVER_UNAVAILABLE").With("url", cfg.URL).Wrap(err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns

	r := NewWithClient(redis.NewClient(opts), cfg)
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// NewWithClient creates a registry with an existing client (for testing).
func NewWithClient(client *redis.Client, cfg Config) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Registry{client: client, cfg: cfg}
}

// TTL returns the entry lifetime.
func (r *Registry) TTL() time.Duration {
	return r.cfg.TTL
}

// Ping verifies the connection.
func (r *Registry) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return oops.Code("LISTSERVER_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Registry) Close() error {
	return r.client.Close()
}

// Register stores e and adds it to the index.
func (r *Registry) Register(ctx context.Context, e Entry) error {
	if e.AnnouncedAt.IsZero() {
		e.AnnouncedAt = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return oops.Code("LISTSERVER_ENCODE_FAILED").Wrap(err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, entryKey(e.ID), data, r.cfg.TTL)
	pipe.ZAdd(ctx, indexKey(), redis.Z{Score: float64(e.AnnouncedAt.UnixMilli()), Member: e.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return oops.Code("LISTSERVER_UNAVAILABLE").With("id", e.ID).Wrap(err)
	}
	return nil
}

// Get returns the entry with the given id.
func (r *Registry) Get(ctx context.Context, id string) (Entry, error) {
	data, err := r.client.Get(ctx, entryKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, oops.Code("LISTSERVER_NOT_FOUND").With("id", id).Errorf("session %s not listed", id)
		}
		return Entry{}, oops.Code("LISTSERVER_UNAVAILABLE").With("id", id).Wrap(err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, oops.Code("LISTSERVER_DECODE_FAILED").With("id", id).Wrap(err)
	}
	return e, nil
}

// MarkReachable flags an entry as reachable from outside its LAN.
func (r *Registry) MarkReachable(ctx context.Context, id string) error {
	e, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	e.Reachable = true

	data, err := json.Marshal(e)
	if err != nil {
		return oops.Code("LISTSERVER_ENCODE_FAILED").Wrap(err)
	}
	if err := r.client.SetArgs(ctx, entryKey(id), data, redis.SetArgs{KeepTTL: true}).Err(); err != nil {
		return oops.Code("LISTSERVER_UNAVAILABLE").With("id", id).Wrap(err)
	}
	return nil
}

// Refresh extends an entry's lifetime by the TTL.
func (r *Registry) Refresh(ctx context.Context, id string) error {
	ok, err := r.client.Expire(ctx, entryKey(id), r.cfg.TTL).Result()
	if err != nil {
		return oops.Code("LISTSERVER_UNAVAILABLE").With("id", id).Wrap(err)
	}
	if !ok {
		return oops.Code("LISTSERVER_NOT_FOUND").With("id", id).Errorf("session %s not listed", id)
	}
	return nil
}

// Unregister removes an entry.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, entryKey(id))
	pipe.ZRem(ctx, indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return oops.Code("LISTSERVER_UNAVAILABLE").With("id", id).Wrap(err)
	}
	return nil
}

// List returns live entries, oldest announcement first. Expired entries are
// pruned from the index as a side effect.
func (r *Registry) List(ctx context.Context) ([]Entry, error) {
	ids, err := r.client.ZRange(ctx, indexKey(), 0, -1).Result()
	if err != nil {
		return nil, oops.Code("LISTSERVER_UNAVAILABLE").Wrap(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, oops.Code("LISTSERVER_UNAVAILABLE").Wrap(err)
	}

	entries := make([]Entry, 0, len(values))
	var expired []any
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			expired = append(expired, ids[i])
			continue
		}
		entries = append(entries, e)
	}

	if len(expired) > 0 {
		if err := r.client.ZRem(ctx, indexKey(), expired...).Err(); err != nil {
			return entries, oops.Code("LISTSERVER_UNAVAILABLE").Wrap(err)
		}
	}
	return entries, nil
}
