package bootstrap

import (
	"context"
	"fmt"
)

// Hook is a lifecycle callback. serve uses OnReady to announce the relay
// address once the listener is bound.
type Hook func(ctx context.Context) error

// OnStart registers hooks that run after all components started.
func (a *App) OnStart(hooks ...Hook) { a.onStart = append(a.onStart, hooks...) }

// OnReady registers hooks that run after the ready check.
func (a *App) OnReady(hooks ...Hook) { a.onReady = append(a.onReady, hooks...) }

// OnStop registers hooks that run before components stop, while the server
// is still accepting its in-flight streams.
func (a *App) OnStop(hooks ...Hook) { a.onStop = append(a.onStop, hooks...) }

// runHooks runs hooks in order and stops at the first failure. A cancelled
// ctx skips the remaining hooks.
func runHooks(ctx context.Context, phase string, hooks []Hook) error {
	for i, h := range hooks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s hook %d: %w", phase, i, err)
		}
		if err := h(ctx); err != nil {
			return fmt.Errorf("%s hook %d: %w", phase, i, err)
		}
	}
	return nil
}
