package kafka

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/logger"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	err      error
	messages []kafkago.Message
	closed   int
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed++
	return nil
}

func newTestProducer(t *testing.T, w *fakeWriter) *Producer {
	t.Helper()
	p, err := NewProducer(Config{Topic: "events", Retries: 2}, logger.Nop())
	if err != nil {
		t.Fatalf("NewProducer() error: %v", err)
	}
	p.writer = w
	return p
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != "localhost:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Brokers)
	}
	if cfg.Topic != "taskflow.events" || cfg.RequiredAcks != 1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"bad duration", func(c *Config) { c.WriteTimeout = "soon" }},
		{"no topic", func(c *Config) { c.Topic = "" }},
		{"bad acks", func(c *Config) { c.RequiredAcks = 5 }},
		{"sasl without user", func(c *Config) { c.EnableSASL = true; c.SASLMechanism = "PLAIN" }},
		{"bad sasl", func(c *Config) { c.EnableSASL = true; c.SASLMechanism = "MD5"; c.Username = "u" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}
			cfg.ApplyDefaults()
			tt.mod(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNewProducer_InvalidConfig(t *testing.T) {
	_, err := NewProducer(Config{WriteTimeout: "never"}, logger.Nop())
	if !errors.IsCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("expected CONFIGURATION error, got %v", err)
	}
}

func TestProducer_SendJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(t, w)
	if p.Topic() != "events" {
		t.Fatalf("unexpected topic %q", p.Topic())
	}
	if err := p.SendJSON(context.Background(), "job-1", map[string]any{"type": "node_end"}); err != nil {
		t.Fatalf("SendJSON() error: %v", err)
	}
	if len(w.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(w.messages))
	}
	msg := w.messages[0]
	if string(msg.Key) != "job-1" || !strings.Contains(string(msg.Value), `"node_end"`) {
		t.Errorf("unexpected message: key=%s value=%s", msg.Key, msg.Value)
	}
}

func TestProducer_RetriesThenSucceeds(t *testing.T) {
	w := &fakeWriter{failures: 1, err: stderrors.New("request timed out")}
	p := newTestProducer(t, w)
	if err := p.SendJSON(context.Background(), "k", 1); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestProducer_ConnectionError(t *testing.T) {
	w := &fakeWriter{failures: 5, err: stderrors.New("dial tcp 127.0.0.1:9092: connection refused")}
	p := newTestProducer(t, w)
	err := p.SendJSON(context.Background(), "k", 1)
	if !errors.IsCode(err, errors.ErrCodeConnectionFailed) {
		t.Fatalf("expected CONNECTION_FAILED, got %v", err)
	}
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(t, w)
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if w.closed != 1 {
		t.Errorf("expected writer closed once, got %d", w.closed)
	}
	if err := p.SendJSON(context.Background(), "k", 1); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestResolveCompression(t *testing.T) {
	if ResolveCompression("gzip") != kafkago.Gzip || ResolveCompression("none") != 0 {
		t.Error("unexpected codec mapping")
	}
	if ResolveCompression("unknown") != kafkago.Snappy {
		t.Error("expected snappy fallback")
	}
}

func TestIsConnectionError(t *testing.T) {
	if IsConnectionError(nil) || IsConnectionError(stderrors.New("message too large")) {
		t.Error("unexpected connection classification")
	}
	if !IsConnectionError(stderrors.New("Broker Not Available")) {
		t.Error("expected broker error to be a connection error")
	}
}
