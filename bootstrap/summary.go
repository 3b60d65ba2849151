package bootstrap

import (
	"context"
	"time"

	"github.com/kbukum/chatstream/component"
)

// logSummary logs one line per component and route after startup.
func (a *App) logSummary(ctx context.Context, took time.Duration) {
	health := make(map[string]component.Health)
	for _, h := range a.Components.HealthAll(ctx) {
		health[h.Name] = h
	}

	for _, c := range a.Components.All() {
		d := component.Describe(c)
		a.Logger.Info("Component", map[string]interface{}{
			"component": d.Name,
			"type":      d.Type,
			"details":   d.Details,
			"status":    string(health[c.Name()].Status),
		})
		if rp, ok := c.(component.RouteProvider); ok {
			for _, r := range rp.Routes() {
				a.Logger.Debug("Route", map[string]interface{}{
					"method": r.Method,
					"path":   r.Path,
				})
			}
		}
	}

	a.Logger.Info("Startup complete", map[string]interface{}{
		"name":       a.Name,
		"version":    a.Version,
		"components": len(a.Components.All()),
		"startup_ms": took.Milliseconds(),
	})
}
