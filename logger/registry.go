package logger

import (
	"sort"
	"sync"
)

// Component logger names. Each package asks the registry for its own.
const (
	ComponentLines    = "lines"
	ComponentSSE      = "sse"
	ComponentStream   = "stream"
	ComponentRelay    = "relay"
	ComponentUpstream = "upstream"
	ComponentRegistry = "component"
)

// DefaultComponents are the loggers RegisterDefaults seeds.
var DefaultComponents = []string{
	ComponentLines, ComponentSSE, ComponentStream, ComponentRelay, ComponentUpstream, ComponentRegistry,
}

var registry = struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Register stores a named logger, replacing any earlier one.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	registry.loggers[name] = l
	registry.mu.Unlock()
}

// Get returns the logger registered under name. Unknown names get the
// global logger tagged with the name, so packages can call Get before Init.
func Get(name string) *Logger {
	registry.mu.RLock()
	l, ok := registry.loggers[name]
	registry.mu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// Registered returns the registered names, sorted.
func Registered() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.loggers))
	for name := range registry.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterDefaults re-derives the component loggers (DefaultComponents when
// names is empty) from the global logger. Call it after Init so a --debug
// level reaches the stream packages.
func RegisterDefaults(names ...string) {
	if len(names) == 0 {
		names = DefaultComponents
	}
	global := GetGlobalLogger()
	for _, name := range names {
		Register(name, global.WithComponent(name))
	}
}
