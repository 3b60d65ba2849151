package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/chatstream/logger"
)

// FileSystem abstracts the file and environment lookups of the loader so
// tests can resolve paths without touching disk.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
	Getenv(key string) string
}

// RealFileSystem implements FileSystem on the OS.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error { return godotenv.Load(path) }

func (rfs *RealFileSystem) Getenv(key string) string { return os.Getenv(key) }

// Resolver finds the config.yml and .env files for a service.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles picks each file from, in order: the explicit option, the
// PREFIX_CONFIG / PREFIX_ENV_FILE variables when an env prefix is set, and
// the first existing candidate from searchDirs.
func (cr *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	if opts.EnvPrefix != "" {
		if resolved.ConfigFile == "" {
			resolved.ConfigFile = cr.FileSystem.Getenv(opts.EnvPrefix + "_CONFIG")
		}
		if resolved.EnvFile == "" {
			resolved.EnvFile = cr.FileSystem.Getenv(opts.EnvPrefix + "_ENV_FILE")
		}
	}

	dirs := cr.searchDirs(serviceName)
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = cr.firstExisting(dirs, "config.yml")
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = cr.firstExisting(dirs, ".env."+serviceName, ".env")
	}
	return resolved
}

// searchDirs lists candidate directories: the service's cmd directory from
// the repo root and from package directories below it, a config directory,
// the working directory, and finally the user config directory.
func (cr *Resolver) searchDirs(serviceName string) []string {
	dirs := []string{
		filepath.Join("cmd", serviceName),
		filepath.Join("..", "cmd", serviceName),
		filepath.Join("..", "..", "cmd", serviceName),
		"config",
		filepath.Join("..", "config"),
		".",
	}
	if base := cr.userConfigDir(); base != "" {
		dirs = append(dirs, filepath.Join(base, serviceName))
	}
	return dirs
}

func (cr *Resolver) userConfigDir() string {
	if xdg := cr.FileSystem.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	if home := cr.FileSystem.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config")
	}
	return ""
}

// firstExisting returns the first dir/name that exists. Names are tried in
// order across all dirs before the next name.
func (cr *Resolver) firstExisting(dirs []string, names ...string) string {
	for _, name := range names {
		for _, dir := range dirs {
			if path := filepath.Join(dir, name); cr.FileSystem.Exists(path) {
				return path
			}
		}
	}
	return ""
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
	// EnvPrefix limits environment binding to PREFIX_* variables, with the
	// prefix stripped. Empty binds every variable.
	EnvPrefix string
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnvPrefix binds only environment variables starting with prefix + "_".
func WithEnvPrefix(prefix string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvPrefix = prefix }
}

// LoadConfig loads configuration for a service into the provided cfg struct.
// It searches for config.yml and .env files in standard locations, binds
// environment variables, and unmarshals the result into cfg.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)

	return loadFromResolvedFiles(serviceName, cfg, files, lc)
}

// loadFromResolvedFiles loads configuration from specific files.
func loadFromResolvedFiles(serviceName string, cfg interface{}, files ResolvedFiles, lc LoaderConfig) error {
	v := viper.New()
	fs := lc.FileSystem

	// 1. Load YAML config first (base configuration)
	if files.ConfigFile != "" && fs.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			logger.Warn("Failed to load config file", map[string]interface{}{
				"file":            files.ConfigFile,
				logger.FieldError: err.Error(),
			})
		} else {
			logger.Debug("Config file loaded", map[string]interface{}{"file": files.ConfigFile})
		}
	}

	// 2. Load .env file, then bind the environment on top
	if files.EnvFile != "" && fs.Exists(files.EnvFile) {
		if err := fs.LoadEnv(files.EnvFile); err != nil {
			logger.Warn("Failed to load .env file", map[string]interface{}{
				"file":            files.EnvFile,
				logger.FieldError: err.Error(),
			})
		}
	}
	autoBindEnvVars(v, lc.EnvPrefix)

	// 4. Unmarshal into config struct
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}

	return nil
}

// autoBindEnvVars binds environment variables to Viper by converting
// UPPER_CASE_WITH_UNDERSCORES to every possible nested key format. With a
// prefix only PREFIX_* variables are bound, without the prefix.
func autoBindEnvVars(v *viper.Viper, prefix string) {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if prefix != "" {
			rest, found := strings.CutPrefix(key, prefix+"_")
			if !found || rest == "" {
				continue
			}
			key = rest
		}

		variants := generateEnvKeyVariants(key)
		for _, variant := range variants {
			v.Set(variant, value)
		}
	}
}

// generateEnvKeyVariants returns the viper keys an environment key may mean:
// the flat key, the fully dotted key, and every split into a dotted section
// path followed by an underscored leaf.
//
//	RELAY_UPSTREAM_URL -> [relay_upstream_url relay.upstream.url relay.upstream_url]
//	STREAM_CHUNK_SIZE  -> [stream_chunk_size stream.chunk.size stream.chunk_size]
func generateEnvKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")
	if len(parts) == 1 {
		return []string{lowerKey}
	}

	variants := []string{lowerKey, strings.Join(parts, ".")}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
	}
	seen := make(map[string]bool, len(variants))
	return slices.DeleteFunc(variants, func(v string) bool {
		dup := seen[v]
		seen[v] = true
		return dup
	})
}
