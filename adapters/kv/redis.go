// Package kv implements interfaces.KVStore against the shared internal key-value store over
// Redis: the five byte-oriented KV ops and PinRuntimeEnvURI the pre-session fallback path needs,
// behind a key-prefix namespace.
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FeckMell/clientproxier/helpers"
	"github.com/FeckMell/clientproxier/interfaces"
	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix = "internal_kv"
	uriPrefix = "runtime_env_uri_pin"
)

// Store implements interfaces.KVStore over a redis.UniversalClient.
type Store struct {
	client redis.UniversalClient
}

// NewRedisUniversalClient parses redisAddr (a redis:// URL) and configures a client with the given
// username/password, matching MyAuth/adapters/redis's NewRedisUniversalClient shape.
func NewRedisUniversalClient(redisAddr, username, password string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(helpers.StrPanic(redisAddr, "adapters/kv: redis address is required"))
	if err != nil {
		return nil, fmt.Errorf("kv: parse redis url: %w", err)
	}
	if username != "" {
		opts.Username = username
	}
	if password != "" {
		opts.Password = password
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{opts.Addr},
		DB:       opts.DB,
		Username: opts.Username,
		Password: opts.Password,
	}), nil
}

// NewStore wraps client as an interfaces.KVStore. Panics on nil client.
func NewStore(client redis.UniversalClient) interfaces.KVStore {
	return &Store{client: helpers.NilPanic(client, "adapters/kv: client is required")}
}

func (s *Store) fullKey(key []byte) string {
	return keyPrefix + ":" + string(key)
}

// Put writes value under key; if overwrite is false and key already exists, it is left unchanged
// (the NX Set variant).
func (s *Store) Put(ctx context.Context, key, value []byte, overwrite bool) (bool, error) {
	fk := s.fullKey(key)
	if !overwrite {
		ok, err := s.client.SetNX(ctx, fk, value, 0).Result()
		if err != nil {
			return false, fmt.Errorf("kv: put %q: %w", key, err)
		}
		return !ok, nil
	}
	_, err := s.client.Get(ctx, fk).Result()
	existed := err == nil
	if err := s.client.Set(ctx, fk, value, 0).Err(); err != nil {
		return false, fmt.Errorf("kv: put %q: %w", key, err)
	}
	return existed, nil
}

// Get reads the value stored under key.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return v, true, nil
}

// Del removes key; deleting an absent key is not an error.
func (s *Store) Del(ctx context.Context, key []byte) error {
	if err := s.client.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("kv: del %q: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix, stripped of the internal store prefix.
func (s *Store) List(ctx context.Context, prefix []byte) ([][]byte, error) {
	full, err := s.client.Keys(ctx, s.fullKey(prefix)+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("kv: list %q: %w", prefix, err)
	}
	stripLen := len(keyPrefix) + 1
	out := make([][]byte, 0, len(full))
	for _, k := range full {
		if len(k) >= stripLen {
			out = append(out, []byte(k[stripLen:]))
		}
	}
	return out, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key []byte) (bool, error) {
	n, err := s.client.Exists(ctx, s.fullKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("kv: exists %q: %w", key, err)
	}
	return n > 0, nil
}

// PinRuntimeEnvURI records that uri must not be garbage-collected for expirationSeconds (0 means
// "pin indefinitely").
func (s *Store) PinRuntimeEnvURI(ctx context.Context, uri string, expirationSeconds int32) error {
	var ttl int64
	if expirationSeconds > 0 {
		ttl = int64(expirationSeconds)
	}
	key := uriPrefix + ":" + uri
	var err error
	if ttl > 0 {
		err = s.client.Set(ctx, key, 1, secondsToDuration(ttl)).Err()
	} else {
		err = s.client.Set(ctx, key, 1, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("kv: pin runtime env uri %q: %w", uri, err)
	}
	return nil
}

func secondsToDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}
