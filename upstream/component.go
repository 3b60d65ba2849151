package upstream

import (
	"context"
	"fmt"

	"github.com/kbukum/chatstream/component"
	"github.com/kbukum/chatstream/resilience"
)

var (
	_ component.Component   = (*Client)(nil)
	_ component.Describable = (*Client)(nil)
)

// Name implements component.Component.
func (c *Client) Name() string { return "upstream" }

// Start is a no-op: connections are opened per stream.
func (c *Client) Start(ctx context.Context) error { return nil }

// Stop closes idle keep-alive connections.
func (c *Client) Stop(ctx context.Context) error {
	c.http.CloseIdleConnections()
	return nil
}

// Health maps the circuit state: open is degraded, not unhealthy, because the
// breaker recovers on its own after the cooldown.
func (c *Client) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch c.breaker.State() {
	case resilience.StateOpen:
		h.Status = component.StatusDegraded
		h.Message = "circuit open"
	case resilience.StateHalfOpen:
		h.Message = "circuit half-open"
	}
	return h
}

// Describe implements component.Describable.
func (c *Client) Describe() component.Description {
	return component.Description{
		Name:    "Upstream",
		Type:    "upstream",
		Details: fmt.Sprintf("%s %s format=%s", c.cfg.Method, c.cfg.URL, c.cfg.Format),
	}
}
