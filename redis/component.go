package redis

import (
	"context"
	"sync"

	"github.com/kbukum/taskflow/component"
	"github.com/kbukum/taskflow/logger"
)

// Component lets a component.Registry own a Client's lifetime. Registered
// before the parts that use the client, it is started first and closed last.
type Component struct {
	client *Client

	mu      sync.Mutex
	started bool
}

var _ component.Component = (*Component)(nil)

// NewComponent wraps client. Stop closes it.
func NewComponent(client *Client) *Component {
	return &Component{client: client}
}

// Client returns the wrapped client.
func (c *Component) Client() *Client { return c.client }

// Name returns the component name.
func (c *Component) Name() string { return "redis" }

// Start fails unless the server answers a ping.
func (c *Component) Start(ctx context.Context) error {
	if err := c.client.Ping(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	c.client.log.Info("Redis connection ready", logger.Fields("addr", c.client.Addr()))
	return nil
}

// Stop closes the connection.
func (c *Component) Stop(context.Context) error {
	c.mu.Lock()
	c.started = false
	c.mu.Unlock()
	return c.client.Close()
}

// Health pings the server.
func (c *Component) Health(ctx context.Context) component.Health {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	if err := c.client.Ping(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}
