package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/chatstream/component"
	apperrors "github.com/kbukum/chatstream/errors"
)

var (
	_ component.Component     = (*Server)(nil)
	_ component.Describable   = (*Server)(nil)
	_ component.RouteProvider = (*Server)(nil)
)

// Name implements component.Component.
func (s *Server) Name() string { return "http-server" }

// Health reports healthy once the listener is bound.
func (s *Server) Health(ctx context.Context) component.Health {
	s.mu.Lock()
	bound := s.listener != nil
	s.mu.Unlock()

	if !bound {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (s *Server) Describe() component.Description {
	return component.Description{Name: "HTTP Server", Type: "server", Details: s.Addr()}
}

// Routes lists the Gin routes for the startup summary.
func (s *Server) Routes() []component.Route {
	info := s.engine.Routes()
	routes := make([]component.Route, 0, len(info))
	for _, r := range info {
		routes = append(routes, component.Route{Method: r.Method, Path: r.Path, Handler: r.Handler})
	}
	return routes
}

// RegisterReadiness registers GET /ready backed by check. A failing check
// answers 503 with the error envelope.
func (s *Server) RegisterReadiness(check func(ctx context.Context) error) {
	s.engine.GET("/ready", func(c *gin.Context) {
		if err := check(c.Request.Context()); err != nil {
			RespondWithError(c, apperrors.Unavailable(err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}
