package task

import (
	"context"
	"fmt"
	"maps"
	"strconv"
)

// Outputs is a node result: the task's output transfer data.
type Outputs map[string]any

// Config is everything a factory receives to instantiate a node's task.
type Config struct {
	NodeID     string
	Label      string
	Identifier string
	Parameters map[string]any
	// Inputs are the node's default inputs overridden by dynamic inputs.
	Inputs      map[string]any
	VarInfo     map[string]any
	ExecInfo    map[string]any
	TaskOptions map[string]any
}

// Task is one instantiated unit of work.
type Task interface {
	Execute(ctx context.Context) (Outputs, error)
}

// Factory instantiates the task of one node.
type Factory func(cfg Config) (Task, error)

// Func adapts a plain function to Task.
type Func func(ctx context.Context) (Outputs, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context) (Outputs, error) { return f(ctx) }

// Simple builds a Factory from a function of the config.
func Simple(fn func(ctx context.Context, cfg Config) (Outputs, error)) Factory {
	return func(cfg Config) (Task, error) {
		return Func(func(ctx context.Context) (Outputs, error) { return fn(ctx, cfg) }), nil
	}
}

// Input returns an input value.
func (c Config) Input(name string) (any, bool) {
	v, ok := c.Inputs[name]
	return v, ok
}

// Number returns a numeric input.
func (c Config) Number(name string) (float64, error) {
	v, ok := c.Inputs[name]
	if !ok {
		return 0, fmt.Errorf("missing input %q", name)
	}
	f, ok := ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("input %q is not a number: %v", name, v)
	}
	return f, nil
}

// StringParam returns a string parameter or def.
func (c Config) StringParam(name, def string) string {
	if s, ok := c.Parameters[name].(string); ok && s != "" {
		return s
	}
	return def
}

// NumberParam returns a numeric parameter or def.
func (c Config) NumberParam(name string, def float64) float64 {
	if f, ok := ToFloat(c.Parameters[name]); ok {
		return f
	}
	return def
}

// CopyInputs returns the inputs as Outputs.
func (c Config) CopyInputs() Outputs {
	return Outputs(maps.Clone(c.Inputs))
}

// ToFloat converts the numeric types produced by YAML, JSON and Go code.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
