package observability

import (
	"context"
	"fmt"

	"github.com/kbukum/chatstream/component"
)

// Telemetry installs the OpenTelemetry providers on Start and flushes them on
// Stop. Instruments created from the global meter before Start are forwarded
// to the installed provider.
type Telemetry struct {
	cfg      Config
	shutdown ShutdownFunc
	started  bool
}

var (
	_ component.Component   = (*Telemetry)(nil)
	_ component.Describable = (*Telemetry)(nil)
)

// NewTelemetry creates the telemetry component.
func NewTelemetry(cfg Config) *Telemetry {
	cfg.ApplyDefaults()
	return &Telemetry{cfg: cfg}
}

// Name implements component.Component.
func (t *Telemetry) Name() string { return "telemetry" }

// Start installs the providers.
func (t *Telemetry) Start(ctx context.Context) error {
	_, shutdown, err := Setup(ctx, t.cfg)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	t.shutdown = shutdown
	t.started = true
	return nil
}

// Stop flushes pending spans and metrics.
func (t *Telemetry) Stop(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}

// Health implements component.Component.
func (t *Telemetry) Health(ctx context.Context) component.Health {
	if !t.started {
		return component.Health{Name: t.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: t.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (t *Telemetry) Describe() component.Description {
	details := "disabled"
	if t.cfg.Enabled {
		details = fmt.Sprintf("otlp http %s sample=%.2f", t.cfg.Endpoint, t.cfg.SampleRate)
	}
	return component.Description{Name: "OpenTelemetry", Type: "telemetry", Details: details}
}
