package config

import (
	"fmt"
	"runtime"

	"github.com/kbukum/taskflow/logger"
	"github.com/kbukum/taskflow/observability"
	"github.com/kbukum/taskflow/redis"
)

// SchedulerConfig selects the default backend for `taskflow run`.
type SchedulerConfig struct {
	// Name is "", "multithreading", "multiprocessing", "cluster" or a
	// connection target.
	Name    string                 `yaml:"name" mapstructure:"name"`
	Options map[string]interface{} `yaml:"options" mapstructure:"options"`
}

// WorkerConfig configures `taskflow worker`.
type WorkerConfig struct {
	// Resources are the tags this worker advertises, with quantities.
	Resources map[string]float64 `yaml:"resources" mapstructure:"resources"`
	// Concurrency is the number of tasks run at once.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// HealthAddr is the listen address of the health endpoint. Empty disables it.
	HealthAddr string `yaml:"health_addr" mapstructure:"health_addr"`
	// QueuePrefix namespaces the Redis keys shared with clients.
	QueuePrefix string `yaml:"queue_prefix" mapstructure:"queue_prefix"`
}

// ServiceConfig is the configuration of the taskflow binary.
type ServiceConfig struct {
	Name        string               `yaml:"name" mapstructure:"name"`
	Environment string               `yaml:"environment" mapstructure:"environment"`
	Logging     logger.Config        `yaml:"logging" mapstructure:"logging"`
	Scheduler   SchedulerConfig      `yaml:"scheduler" mapstructure:"scheduler"`
	Redis       redis.Config         `yaml:"redis" mapstructure:"redis"`
	Worker      WorkerConfig         `yaml:"worker" mapstructure:"worker"`
	Tracing     observability.Config `yaml:"tracing" mapstructure:"tracing"`
}

// ApplyDefaults applies default values to every section.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "taskflow"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Logging.ApplyDefaults()
	c.Redis.ApplyDefaults()
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = runtime.NumCPU()
	}
	if c.Worker.QueuePrefix == "" {
		c.Worker.QueuePrefix = "taskflow"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Name
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = c.Environment
	}
	c.Tracing.ApplyDefaults()
}

// Validate validates every section.
func (c *ServiceConfig) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config.environment must be one of [development, staging, production] (got: %s)", c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("config.redis: %w", err)
	}
	for tag, qty := range c.Worker.Resources {
		if qty < 0 {
			return fmt.Errorf("config.worker.resources: %s must not be negative", tag)
		}
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("config.tracing: %w", err)
	}
	return nil
}
