package observability

import (
	"context"
	"errors"
	"fmt"
)

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(ctx context.Context) error

// Setup installs the tracer and meter providers when cfg.Enabled is set and
// returns the stream instruments bound to the global meter. When disabled the
// global no-op providers stay in place and the returned shutdown does nothing.
func Setup(ctx context.Context, cfg Config) (*StreamMetrics, ShutdownFunc, error) {
	cfg.ApplyDefaults()
	noop := func(context.Context) error { return nil }

	if !cfg.Enabled {
		m, err := NewStreamMetrics(Meter())
		return m, noop, err
	}

	tp, err := InitTracer(ctx, cfg)
	if err != nil {
		return nil, noop, err
	}
	mp, err := InitMeter(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, noop, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}

	m, err := NewStreamMetrics(Meter())
	if err != nil {
		_ = shutdown(ctx)
		return nil, noop, fmt.Errorf("creating stream metrics: %w", err)
	}
	return m, shutdown, nil
}
