package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"volguard/internal/config"
	"volguard/internal/engine"
	"volguard/internal/logging"
	"volguard/internal/metrics"
	"volguard/pkg/feed"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	AppName           = "VolGuard"
	AppVersion        = "1.0.0"
	DefaultConfigPath = "./config.json"
)

var (
	configPath = flag.String("config", DefaultConfigPath, "Path to configuration file")
	debugMode  = flag.Bool("debug", false, "Enable debug logging")
	version    = flag.Bool("version", false, "Show version information")
)

// Application wires configuration, logging, metrics, the risk engine and the
// bar feed together and runs them until a shutdown signal arrives.
type Application struct {
	cfg      *config.Config
	logger   *logging.Logger
	recorder *metrics.Recorder
	engine   *engine.Engine
	provider feed.Provider

	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, AppVersion)
		os.Exit(0)
	}

	app, err := initializeApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.run(); err != nil {
		app.logger.Fatalf("Application failed: %v", err)
	}

	app.logger.Infof("Application shutdown completed")
}

func initializeApplication() (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{ctx: ctx, cancel: cancel}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	app.cfg = cfg

	if *debugMode {
		cfg.Logging.Level = "debug"
	}

	if err := ensureDirectories(cfg); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	app.logger = logging.NewLogger(cfg.Logging)

	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": cfg.App.Environment,
		"config_path": *configPath,
		"symbols":     cfg.App.Symbols,
	}).Info("Starting VolGuard risk engine")

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		app.recorder = metrics.New(cfg.Metrics.Namespace, registry)
		go serveMetrics(cfg.Metrics.Addr, registry, app.logger)
	}

	app.engine = engine.New(cfg, app.logger, app.recorder)

	app.provider, err = feed.NewProvider(cfg.Feed)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create feed provider: %w", err)
	}

	app.setupSignalHandling()
	return app, nil
}

// run consumes the bar feed and drives the slow recompute cycle until the
// feed is exhausted or a shutdown signal cancels the context.
func (app *Application) run() error {
	log := app.logger.Component("main")

	feedErr := make(chan error, 1)
	go func() {
		feedErr <- app.provider.Start(app.ctx, app.cfg.App.Symbols)
	}()

	ticker := time.NewTicker(app.cfg.App.CycleInterval)
	defer ticker.Stop()

	bars := app.provider.Bars()
	barCount := 0

	for {
		select {
		case bar, ok := <-bars:
			if !ok {
				log.WithFields(logrus.Fields{"bars": barCount}).Info("Feed exhausted")
				app.engine.RunCycle(nil, 0)
				return app.drainFeedError(feedErr)
			}
			if app.engine.AddBar(bar) {
				barCount++
			}

		case <-ticker.C:
			// Slow path: recompute estimates, regimes and the portfolio
			// snapshot. Position and equity feeds are wired by the host
			// system; standalone replay runs with an empty book.
			app.engine.RunCycle(nil, 0)

		case <-app.ctx.Done():
			log.Infof("Shutdown signal received")
			return app.shutdown(feedErr)
		}
	}
}

func (app *Application) shutdown(feedErr chan error) error {
	if err := app.provider.Stop(); err != nil {
		app.logger.WithError(err).Warn("Feed provider stop failed")
	}

	select {
	case err := <-feedErr:
		if err != nil && err != context.Canceled {
			return err
		}
	case <-time.After(app.cfg.App.ShutdownTimeout):
		app.logger.Warnf("Shutdown timed out after %s", app.cfg.App.ShutdownTimeout)
	}
	return nil
}

func (app *Application) drainFeedError(feedErr chan error) error {
	select {
	case err := <-feedErr:
		return err
	case <-time.After(time.Second):
		return nil
	}
}

func (app *Application) setupSignalHandling() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		app.cancel()
	}()
}

func serveMetrics(addr string, registry *prometheus.Registry, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	log.WithFields(logrus.Fields{"addr": addr}).Info("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Metrics server stopped")
	}
}

func ensureDirectories(cfg *config.Config) error {
	dirs := []string{
		cfg.Logging.Directory,
		filepath.Dir(cfg.Feed.Path),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
