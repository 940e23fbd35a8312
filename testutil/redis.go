package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/taskflow/component"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/redis"
)

// RedisServer is an in-memory Redis server with a connected client.
type RedisServer struct {
	mu      sync.RWMutex
	mini    *miniredis.Miniredis
	client  *redis.Client
	started bool
}

var _ TestComponent = (*RedisServer)(nil)

// RedisSnapshot holds the string and list keys of a RedisServer.
type RedisSnapshot struct {
	Strings map[string]string
	Lists   map[string][]string
}

// NewRedisServer creates a stopped server.
func NewRedisServer() *RedisServer {
	return &RedisServer{}
}

// Name returns the component name.
func (s *RedisServer) Name() string { return "redis-test" }

// Addr returns the server address, or "" before Start.
func (s *RedisServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mini == nil {
		return ""
	}
	return s.mini.Addr()
}

// Client returns the connected client, or nil before Start.
func (s *RedisServer) Client() *redis.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Miniredis exposes the server for direct inspection.
func (s *RedisServer) Miniredis() *miniredis.Miniredis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mini
}

// Start launches the server and connects the client.
func (s *RedisServer) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("component already started")
	}
	mini, err := miniredis.Run()
	if err != nil {
		return fmt.Errorf("failed to start miniredis: %w", err)
	}
	client, err := redis.New(redis.Config{Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		mini.Close()
		return err
	}
	s.mini, s.client, s.started = mini, client, true
	return nil
}

// Stop closes the client and the server.
func (s *RedisServer) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	_ = s.client.Close()
	s.mini.Close()
	s.started = false
	return nil
}

// Health reports whether the server runs.
func (s *RedisServer) Health(_ context.Context) component.Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Reset flushes every key.
func (s *RedisServer) Reset(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return fmt.Errorf("component not started")
	}
	s.mini.FlushAll()
	return nil
}

// Snapshot captures string and list keys as a RedisSnapshot. Other types
// and expirations are not captured.
func (s *RedisServer) Snapshot(_ context.Context) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, fmt.Errorf("component not started")
	}
	snap := RedisSnapshot{Strings: map[string]string{}, Lists: map[string][]string{}}
	for _, key := range s.mini.Keys() {
		switch s.mini.Type(key) {
		case "string":
			if v, err := s.mini.Get(key); err == nil {
				snap.Strings[key] = v
			}
		case "list":
			if v, err := s.mini.List(key); err == nil {
				snap.Lists[key] = v
			}
		}
	}
	return snap, nil
}

// Restore flushes the server and writes back a RedisSnapshot.
func (s *RedisServer) Restore(_ context.Context, snapshot any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return fmt.Errorf("component not started")
	}
	snap, ok := snapshot.(RedisSnapshot)
	if !ok {
		return fmt.Errorf("invalid snapshot type: expected RedisSnapshot, got %T", snapshot)
	}
	s.mini.FlushAll()
	for key, v := range snap.Strings {
		if err := s.mini.Set(key, v); err != nil {
			return fmt.Errorf("failed to restore key %q: %w", key, err)
		}
	}
	for key, values := range snap.Lists {
		if _, err := s.mini.Push(key, values...); err != nil {
			return fmt.Errorf("failed to restore list %q: %w", key, err)
		}
	}
	return nil
}
