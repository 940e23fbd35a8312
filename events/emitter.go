package events

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"

	"github.com/kbukum/taskflow/errors"
	"github.com/kbukum/taskflow/logger"
)

// Emitter fans events out to its handlers. Handler failures are logged and
// never returned.
type Emitter struct {
	handlers []Handler
	log      *logger.Logger
}

// NewEmitter creates an Emitter over the given handlers.
func NewEmitter(log *logger.Logger, handlers ...Handler) *Emitter {
	if log == nil {
		log = logger.Get("events")
	}
	return &Emitter{handlers: handlers, log: log}
}

// FromExecInfo builds an Emitter from execinfo["handlers"].
func FromExecInfo(execinfo map[string]any, log *logger.Logger) (*Emitter, error) {
	if log == nil {
		log = logger.Get("events")
	}
	configs, err := DecodeHandlers(execinfo)
	if err != nil {
		return nil, err
	}
	handlers := make([]Handler, 0, len(configs))
	for _, cfg := range configs {
		h, err := NewHandler(cfg, log)
		if err != nil {
			for _, built := range handlers {
				_ = built.Close()
			}
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return NewEmitter(log, handlers...), nil
}

// Len returns the number of handlers.
func (e *Emitter) Len() int {
	if e == nil {
		return 0
	}
	return len(e.handlers)
}

// Emit sends ev to every handler. A nil Emitter drops the event.
func (e *Emitter) Emit(ctx context.Context, ev Event) {
	if e == nil {
		return
	}
	for _, h := range e.handlers {
		if err := h.Handle(ctx, ev); err != nil {
			e.log.Warn("event handler failed", logger.Fields(
				"event", string(ev.Type),
				logger.FieldJobID, ev.JobID,
				logger.FieldError, err.Error(),
			))
		}
	}
}

// Close closes every handler.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	var errs []error
	for _, h := range e.handlers {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Cache keeps one Emitter per distinct handler configuration, so repeated
// node invocations in a worker share connections.
type Cache struct {
	mu       sync.Mutex
	emitters map[string]*Emitter
	log      *logger.Logger
}

// NewCache creates an empty Cache.
func NewCache(log *logger.Logger) *Cache {
	return &Cache{emitters: make(map[string]*Emitter), log: log}
}

// Get returns the Emitter for execinfo's handlers, building it on first use.
// execinfo without handlers yields a nil Emitter.
func (c *Cache) Get(execinfo map[string]any) (*Emitter, error) {
	raw, ok := execinfo[KeyHandlers]
	if !ok || raw == nil {
		return nil, nil
	}
	keyBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Configuration("event handlers are not serializable: %v", err)
	}
	key := string(keyBytes)

	c.mu.Lock()
	defer c.mu.Unlock()
	if em, ok := c.emitters[key]; ok {
		return em, nil
	}
	em, err := FromExecInfo(execinfo, c.log)
	if err != nil {
		return nil, err
	}
	c.emitters[key] = em
	return em, nil
}

// Close closes every cached Emitter.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for key, em := range c.emitters {
		if err := em.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.emitters, key)
	}
	return stderrors.Join(errs...)
}
