package observability

import (
	"context"
	"testing"

	"github.com/kbukum/chatstream/component"
)

func TestTelemetryDisabled(t *testing.T) {
	tel := NewTelemetry(Config{})
	if h := tel.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %+v", h)
	}
	if err := tel.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := tel.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %+v", h)
	}
	if d := tel.Describe(); d.Type != "telemetry" || d.Details != "disabled" {
		t.Errorf("description = %+v", d)
	}
	if err := tel.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestTelemetryStopBeforeStart(t *testing.T) {
	if err := NewTelemetry(Config{}).Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestTelemetryDescribeEnabled(t *testing.T) {
	tel := NewTelemetry(Config{Enabled: true, Endpoint: "collector:4318", SampleRate: 0.5})
	if d := tel.Describe(); d.Details != "otlp http collector:4318 sample=0.50" {
		t.Errorf("details = %q", d.Details)
	}
}
