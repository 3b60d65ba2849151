package bootstrap

import (
	"time"

	"github.com/kbukum/chatstream/logger"
)

// Option configures the App during creation.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout time.Duration
	stopTimeout     time.Duration
}

// WithLogger sets the application logger. Without it NewApp initializes the
// global logger from cfg.Logging, so tests pass logger.Nop() here.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithGracefulTimeout bounds the whole shutdown: OnStop hooks plus every
// component's Stop. In-flight relays are cut when it expires.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.gracefulTimeout = d }
}

// WithComponentStopTimeout bounds each component's Stop within the graceful
// timeout, so one stuck component leaves time for the rest.
func WithComponentStopTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.stopTimeout = d }
}
