package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TypedStore keeps JSON-encoded values of one type under a key prefix.
type TypedStore[C any] struct {
	client *Client
	prefix string
}

// NewTypedStore returns a store whose keys are "<prefix>:<key>", or the bare
// key when prefix is empty.
func NewTypedStore[C any](client *Client, prefix string) *TypedStore[C] {
	return &TypedStore[C]{client: client, prefix: prefix}
}

// Key returns the Redis key that holds key.
func (s *TypedStore[C]) Key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Load decodes the value stored under key. A missing key yields (nil, nil).
func (s *TypedStore[C]) Load(ctx context.Context, key string) (*C, error) {
	raw, err := s.client.Get(ctx, s.Key(key))
	switch {
	case IsNil(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", s.Key(key), err)
	}
	out := new(C)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Key(key), err)
	}
	return out, nil
}

// Save stores val under key. A zero ttl keeps it until deleted.
func (s *TypedStore[C]) Save(ctx context.Context, key string, val *C, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.Key(key), err)
	}
	if err := s.client.Set(ctx, s.Key(key), data, ttl); err != nil {
		return fmt.Errorf("save %s: %w", s.Key(key), err)
	}
	return nil
}

// Delete removes key.
func (s *TypedStore[C]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.Key(key)); err != nil {
		return fmt.Errorf("delete %s: %w", s.Key(key), err)
	}
	return nil
}
