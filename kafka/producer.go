package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/logger"
)

// messageWriter is the subset of *kafkago.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer writes JSON messages to a single topic.
type Producer struct {
	cfg    Config
	log    *logger.Logger
	mu     sync.RWMutex
	writer messageWriter
	closed bool
}

// NewProducer creates a Producer. No connection is made until the first write.
func NewProducer(cfg Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Configuration("kafka producer config: %v", err)
	}
	if log == nil {
		log = logger.Get("kafka")
	}

	transport, err := newTransport(&cfg)
	if err != nil {
		return nil, errors.Configuration("kafka producer transport: %v", err)
	}

	p := &Producer{cfg: cfg, log: log.WithComponent("kafka.producer")}
	p.writer = &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Transport:              transport,
		Balancer:               &kafkago.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           ParseDuration(cfg.BatchTimeout),
		RequiredAcks:           kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:            ResolveCompression(cfg.Compression),
		WriteTimeout:           ParseDuration(cfg.WriteTimeout),
		AllowAutoTopicCreation: true,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			p.log.Error("writer: "+msg, map[string]interface{}{
				"args": fmt.Sprintf("%v", args),
			})
		}),
	}
	return p, nil
}

// Topic returns the topic messages are written to.
func (p *Producer) Topic() string { return p.cfg.Topic }

// WriteMessages sends one or more messages with retry.
func (p *Producer) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("producer is closed")
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.Retries; attempt++ {
		lastErr = p.writer.WriteMessages(ctx, msgs...)
		if lastErr == nil {
			return nil
		}
		if attempt < p.cfg.Retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}
	if IsConnectionError(lastErr) {
		return errors.ConnectionFailed("kafka", lastErr)
	}
	return fmt.Errorf("write after %d retries: %w", p.cfg.Retries, lastErr)
}

// SendJSON marshals value as JSON and sends it keyed by key.
func (p *Producer) SendJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return p.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
}

// Close shuts down the producer. Safe to call more than once.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Debug("Kafka producer closing")
	return p.writer.Close()
}
