package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/chatstream/bootstrap"
	"github.com/kbukum/chatstream/config"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/relay"
	"github.com/kbukum/chatstream/server"
	"github.com/kbukum/chatstream/upstream"
)

type serveCommander struct {
	configFile string
	envFile    string
	upstream   string
	port       int
	debug      bool
}

const serveLongDesc = `Run the relay server.

Configuration is read from config.yml (searched in ./cmd/chatstream, ./config
and the working directory), then .env, then CHATSTREAM_* environment
variables. Nested keys use underscores: CHATSTREAM_RELAY_UPSTREAM_URL.`

func newServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configFile, "config", "c", "", "Path to config.yml")
	cmd.Flags().StringVar(&cmder.envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVarP(&cmder.upstream, "upstream", "u", "", "Upstream stream URL (overrides relay.upstream.url)")
	cmd.Flags().IntVarP(&cmder.port, "port", "p", 0, "Listen port (overrides server.port)")
	return cmd
}

func (c *serveCommander) loadConfig() (*config.Config, error) {
	var opts []config.LoaderOption
	if c.configFile != "" {
		opts = append(opts, config.WithConfigFile(c.configFile))
	}
	if c.envFile != "" {
		opts = append(opts, config.WithEnvFile(c.envFile))
	}
	var cfg config.Config
	opts = append([]config.LoaderOption{config.WithEnvPrefix(config.EnvPrefix)}, opts...)
	if err := config.LoadConfig(config.ServiceName, &cfg, opts...); err != nil {
		return nil, err
	}

	// Flags win over file and environment.
	if c.upstream != "" {
		cfg.Relay.Upstream.URL = c.upstream
	}
	if c.port != 0 {
		cfg.Server.Port = c.port
	}
	if c.debug {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
	}
	return &cfg, nil
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	logger.RegisterDefaults()

	metrics, err := observability.NewStreamMetrics(observability.Meter())
	if err != nil {
		return fmt.Errorf("creating stream metrics: %w", err)
	}
	client, err := upstream.New(cfg.Relay.Upstream, logger.Get(logger.ComponentUpstream))
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, app.Logger)
	srv.ApplyDefaults(cfg.Name)
	srv.RegisterReadiness(app.ReadyCheck)

	handler, err := relay.New(cfg.Relay,
		relay.WithClient(client),
		relay.WithMetrics(metrics),
		relay.WithLogger(logger.Get(logger.ComponentRelay)),
		relay.WithStreamOptions(cfg.Stream.Options()...),
	)
	if err != nil {
		return err
	}
	handler.Register(srv.Engine())

	// Telemetry starts first and stops last so the server's final spans flush.
	if err := app.RegisterComponent(observability.NewTelemetry(cfg.Observability)); err != nil {
		return err
	}
	if err := app.RegisterComponent(client); err != nil {
		return err
	}
	if err := app.RegisterComponent(srv); err != nil {
		return err
	}

	app.OnReady(func(context.Context) error {
		app.Logger.Info("Relay listening", map[string]interface{}{
			"addr":               srv.Addr(),
			"path":               cfg.Relay.Path,
			logger.FieldUpstream: cfg.Relay.Upstream.URL,
		})
		return nil
	})

	return app.Run(ctx)
}
