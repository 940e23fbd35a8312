// Package redis wraps go-redis with taskflow logging, configuration
// conventions and a component lifecycle.
//
// The cluster runtime uses Client for its queues and result records and
// TypedStore for JSON payloads; the event handler appends to streams.
// Component hands a client's lifetime to a component.Registry.
//
//	client, err := redis.New(redis.Config{Addr: "localhost:6379"}, log)
//	store := redis.NewTypedStore[Result](client, "taskflow:result")
package redis
