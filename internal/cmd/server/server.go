// Package server parses support server flags and composes the entrypoint.
package server

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/fieldops/pitsignal/internal/platform/cmd"
	app "github.com/fieldops/pitsignal/internal/services/support/app"
)

// Config holds support server command configuration.
type Config struct {
	HTTPAddr        string `env:"PITSIGNAL_HTTP_ADDR"        envDefault:":8080"`
	DBPath          string `env:"PITSIGNAL_DB_PATH"          envDefault:"pitsignal.db"`
	PushRelayURL    string `env:"PITSIGNAL_PUSH_RELAY_URL"`
	NotifyQueueSize int    `env:"PITSIGNAL_NOTIFY_QUEUE_SIZE" envDefault:"64"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "support HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.PushRelayURL, "push-relay-url", cfg.PushRelayURL, "push relay endpoint, empty disables delivery")
	fs.IntVar(&cfg.NotifyQueueSize, "notify-queue-size", cfg.NotifyQueueSize, "pending notification queue size")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the support app and serves it until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(context.Context) error {
		if err := app.Run(ctx, app.Config{
			HTTPAddr:        cfg.HTTPAddr,
			DBPath:          cfg.DBPath,
			PushRelayURL:    cfg.PushRelayURL,
			NotifyQueueSize: cfg.NotifyQueueSize,
		}); err != nil {
			return fmt.Errorf("serve support: %w", err)
		}
		return nil
	})
}
