package testutil

import (
	"context"

	"github.com/kbukum/taskflow/component"
)

// TestComponent is a component.Component whose state tests can reset,
// capture and put back between cases.
type TestComponent interface {
	component.Component

	// Reset returns the component to its initial state.
	Reset(ctx context.Context) error
	// Snapshot captures the current state for a later Restore.
	Snapshot(ctx context.Context) (any, error)
	// Restore puts back a state returned by Snapshot.
	Restore(ctx context.Context, snapshot any) error
}
