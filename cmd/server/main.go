package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/inconshreveable/log15"

	"github.com/bbeck/locations/internal"
	"github.com/bbeck/locations/internal/location"
	"github.com/bbeck/locations/internal/session"
)

func main() {
	cfg, err := configure(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := internal.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Crit("server failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg internal.Config, logger log15.Logger) error {
	metrics := internal.NewMetrics()
	if cfg.MetricsAddress != "" {
		go func() {
			logger.Info("serving metrics", "addr", cfg.MetricsAddress)
			if err := http.ListenAndServe(cfg.MetricsAddress, metrics.Handler()); err != nil {
				logger.Error("error serving metrics", "err", err)
			}
		}()
	}

	registry := location.NewRegistry(cfg.MaxLocations)
	handler := session.New(registry, cfg, logger, metrics)

	server := &internal.TCPServer{
		Handler:        handler.Serve,
		Concurrent:     cfg.Concurrent,
		MaxConnections: cfg.MaxConnections,
		Logger:         logger,
		Metrics:        metrics,
	}

	if cfg.Tunnel {
		return internal.RunWithTunnel(ctx, server)
	}
	return internal.RunTCPServer(ctx, cfg, server)
}

// configure builds the config from an optional config file with any flags
// given on the command line taking precedence.
func configure(args []string) (internal.Config, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	defaults := internal.DefaultConfig()
	path := fs.String("config", "", "path to a YAML config file")
	address := fs.String("addr", defaults.Address, "address to listen on")
	family := fs.String("family", defaults.Family, "restrict listening to v4 or v6")
	tunnel := fs.Bool("tunnel", defaults.Tunnel, "serve through an ngrok tunnel (needs NGROK_AUTHTOKEN)")
	concurrent := fs.Bool("concurrent", defaults.Concurrent, "serve clients in parallel")
	maxConnections := fs.Int("max-connections", defaults.MaxConnections, "limit on parallel clients, 0 for none")
	idleTimeout := fs.Duration("idle-timeout", defaults.IdleTimeout, "disconnect silent clients after this long, 0 to wait forever")
	logLevel := fs.String("log-level", defaults.LogLevel, "debug, info, warn, error or crit")
	logFormat := fs.String("log-format", defaults.LogFormat, "auto, terminal, logfmt or json")
	metricsAddress := fs.String("metrics-addr", defaults.MetricsAddress, "address to serve prometheus metrics on")

	if err := fs.Parse(args); err != nil {
		return defaults, err
	}

	cfg := defaults
	if *path != "" {
		var err error
		if cfg, err = internal.LoadConfig(*path); err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Address = *address
		case "family":
			cfg.Family = *family
		case "tunnel":
			cfg.Tunnel = *tunnel
		case "concurrent":
			cfg.Concurrent = *concurrent
		case "max-connections":
			cfg.MaxConnections = *maxConnections
		case "idle-timeout":
			cfg.IdleTimeout = *idleTimeout
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "metrics-addr":
			cfg.MetricsAddress = *metricsAddress
		}
	})

	return cfg, cfg.Validate()
}
