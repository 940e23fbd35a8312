// Package builtin provides the task types every taskflow process knows.
//
//	constant     outputs its "outputs" parameter, or its inputs when unset
//	passthrough  outputs its inputs
//	add          output = input + operand
//	scale        output = input * factor
//	sum          output = sum of all numeric inputs
//	sleep        waits "duration", then outputs its inputs
//	command      runs a subprocess with the inputs as JSON on stdin
//	fail         always fails with "message"
package builtin

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/kbukum/taskflow/task"
)

// Task types.
const (
	TypeConstant    = "constant"
	TypePassthrough = "passthrough"
	TypeAdd         = "add"
	TypeScale       = "scale"
	TypeSum         = "sum"
	TypeSleep       = "sleep"
	TypeCommand     = "command"
	TypeFail        = "fail"
)

// Register adds the builtin task types to r.
func Register(r *task.Registry) error {
	for name, f := range map[string]task.Factory{
		TypeConstant:    task.Simple(constant),
		TypePassthrough: task.Simple(passthrough),
		TypeAdd:         task.Simple(arithmetic(func(x, p float64) float64 { return x + p }, "operand", 0)),
		TypeScale:       task.Simple(arithmetic(func(x, p float64) float64 { return x * p }, "factor", 1)),
		TypeSum:         task.Simple(sum),
		TypeSleep:       task.Simple(sleep),
		TypeCommand:     newCommand,
		TypeFail:        task.Simple(fail),
	} {
		if err := r.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding only the builtin task types.
func NewRegistry() *task.Registry {
	r := task.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}

func constant(_ context.Context, cfg task.Config) (task.Outputs, error) {
	if out, ok := cfg.Parameters["outputs"].(map[string]any); ok {
		return task.Outputs(maps.Clone(out)), nil
	}
	return cfg.CopyInputs(), nil
}

func passthrough(_ context.Context, cfg task.Config) (task.Outputs, error) {
	return cfg.CopyInputs(), nil
}

// arithmetic applies op to the "input" input (default "x") and the named
// parameter, writing "output" (default: the input name).
func arithmetic(op func(x, p float64) float64, param string, def float64) func(context.Context, task.Config) (task.Outputs, error) {
	return func(_ context.Context, cfg task.Config) (task.Outputs, error) {
		in := cfg.StringParam("input", "x")
		x, err := cfg.Number(in)
		if err != nil {
			return nil, err
		}
		return task.Outputs{cfg.StringParam("output", in): op(x, cfg.NumberParam(param, def))}, nil
	}
}

func sum(_ context.Context, cfg task.Config) (task.Outputs, error) {
	names := make([]string, 0, len(cfg.Inputs))
	for k := range cfg.Inputs {
		names = append(names, k)
	}
	sort.Strings(names)

	var total float64
	for _, name := range names {
		if f, ok := task.ToFloat(cfg.Inputs[name]); ok {
			total += f
		}
	}
	return task.Outputs{cfg.StringParam("output", "sum"): total}, nil
}

func sleep(ctx context.Context, cfg task.Config) (task.Outputs, error) {
	d, err := time.ParseDuration(cfg.StringParam("duration", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid duration: %w", err)
	}
	select {
	case <-time.After(d):
		return cfg.CopyInputs(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func fail(_ context.Context, cfg task.Config) (task.Outputs, error) {
	return nil, fmt.Errorf("%s", strings.TrimSpace(cfg.StringParam("message", "task failed on purpose")))
}
