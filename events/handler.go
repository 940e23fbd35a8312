package events

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/kafka"
	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/redis"
	"github.com/kbukum/taskflow/validation"
)

// Handler receives events.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
	Close() error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Close is a no-op.
func (f HandlerFunc) Close() error { return nil }

// HandlerConfig is one entry of execinfo["handlers"].
type HandlerConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=log redis kafka"`

	// log
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`

	// redis
	URL    string `mapstructure:"url"`
	Stream string `mapstructure:"stream"`
	MaxLen int64  `mapstructure:"max_len" validate:"gte=0"`

	// kafka
	Kafka kafka.Config `mapstructure:"kafka"`
}

// DecodeHandlers decodes execinfo["handlers"]. A missing key yields no handlers.
func DecodeHandlers(execinfo map[string]any) ([]HandlerConfig, error) {
	raw, ok := execinfo[KeyHandlers]
	if !ok || raw == nil {
		return nil, nil
	}
	var configs []HandlerConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &configs,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("create decoder: %w", err))
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Configuration("invalid event handlers: %v", err)
	}
	for i := range configs {
		if err := validation.Validate(&configs[i]); err != nil {
			return nil, errors.Configuration("invalid event handler %d: %v", i, err)
		}
	}
	return configs, nil
}

// NewHandler builds the handler described by cfg.
func NewHandler(cfg HandlerConfig, log *logger.Logger) (Handler, error) {
	switch cfg.Type {
	case "log":
		return &logHandler{log: log, level: cfg.Level}, nil
	case "redis":
		return newRedisHandler(cfg, log)
	case "kafka":
		p, err := kafka.NewProducer(cfg.Kafka, log)
		if err != nil {
			return nil, err
		}
		return &kafkaHandler{producer: p}, nil
	default:
		return nil, errors.Configuration("unknown event handler type %q", cfg.Type)
	}
}

type logHandler struct {
	log   *logger.Logger
	level string
}

func (h *logHandler) Handle(_ context.Context, ev Event) error {
	fields := ev.Fields()
	delete(fields, "type")
	msg := string(ev.Type)
	switch {
	case ev.Error != "":
		h.log.Error(msg, fields)
	case h.level == "debug":
		h.log.Debug(msg, fields)
	case h.level == "warn":
		h.log.Warn(msg, fields)
	case h.level == "error":
		h.log.Error(msg, fields)
	default:
		h.log.Info(msg, fields)
	}
	return nil
}

func (h *logHandler) Close() error { return nil }

const defaultStream = "taskflow:events"

type redisHandler struct {
	client *redis.Client
	stream string
	maxLen int64
}

func newRedisHandler(cfg HandlerConfig, log *logger.Logger) (*redisHandler, error) {
	if cfg.URL == "" {
		return nil, errors.Configuration("redis event handler requires a url")
	}
	rcfg, err := redis.ConfigFromTarget(cfg.URL)
	if err != nil {
		return nil, errors.Configuration("redis event handler: %v", err)
	}
	client, err := redis.New(rcfg, log)
	if err != nil {
		return nil, err
	}
	stream := cfg.Stream
	if stream == "" {
		stream = defaultStream
	}
	return &redisHandler{client: client, stream: stream, maxLen: cfg.MaxLen}, nil
}

func (h *redisHandler) Handle(ctx context.Context, ev Event) error {
	_, err := h.client.AppendStream(ctx, h.stream, h.maxLen, ev.Fields())
	return err
}

func (h *redisHandler) Close() error { return h.client.Close() }

type kafkaHandler struct {
	producer *kafka.Producer
}

func (h *kafkaHandler) Handle(ctx context.Context, ev Event) error {
	return h.producer.SendJSON(ctx, ev.JobID, ev)
}

func (h *kafkaHandler) Close() error { return h.producer.Close() }
