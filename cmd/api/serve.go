package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/otafleet/otafleet/internal/api"
	"github.com/otafleet/otafleet/internal/api/handler"
	"github.com/otafleet/otafleet/internal/api/middleware"
	"github.com/otafleet/otafleet/internal/artifact"
	"github.com/otafleet/otafleet/internal/auth"
	"github.com/otafleet/otafleet/internal/config"
	"github.com/otafleet/otafleet/internal/device"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/keylock"
	"github.com/otafleet/otafleet/internal/metrics"
	"github.com/otafleet/otafleet/internal/remote"
	"github.com/otafleet/otafleet/internal/rollout"
	"github.com/otafleet/otafleet/internal/storage"
	"github.com/otafleet/otafleet/internal/telemetry"
	"github.com/otafleet/otafleet/internal/updater"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the device and admin HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Str("storage", cfg.Storage.Driver).
		Msg("starting otafleet API")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	stores, err := storage.Open(ctx, cfg, true, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	server, collector, err := buildServer(cfg, stores, log)
	if err != nil {
		return err
	}
	if collector != nil {
		collector.Start(ctx)
		defer collector.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// buildServer wires services on top of stores. The collector is nil when
// the Prometheus endpoint is disabled.
func buildServer(cfg *config.Config, stores *storage.Stores, log zerolog.Logger) (*http.Server, *metrics.Collector, error) {
	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("initialize http metrics: %w", err)
	}
	remoteMetrics, err := middleware.NewRemoteMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("initialize remote metrics: %w", err)
	}
	updaterMetrics, err := updater.NewMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("initialize updater metrics: %w", err)
	}

	catalog := firmware.NewService(firmware.ServiceConfig{
		Repository: stores.Firmware,
		Logger:     log,
	})
	rollouts := rollout.NewService(rollout.ServiceConfig{
		Repository: stores.Rollouts,
		Firmware:   catalog,
		Logger:     log,
	})
	locks := keylock.New()
	devices := device.NewService(device.ServiceConfig{
		Repository: stores.Devices,
		Firmware:   catalog,
		Transactor: stores.Transactor,
		Locks:      locks,
		Logger:     log,
	})
	manager := updater.NewManager(updater.ManagerConfig{
		Devices:    stores.Devices,
		Catalog:    catalog,
		Rollouts:   rollouts,
		Transactor: stores.Transactor,
		Locks:      locks,
		Metrics:    updaterMetrics,
		Logger:     log,
	})

	store, err := artifact.NewStore(cfg.Artifacts.Dir)
	if err != nil {
		return nil, nil, err
	}
	hosts := remote.NewRegistry()
	template := remote.DefaultClientConfig("artifacts")
	template.Timeout = cfg.Artifacts.RemoteTimeout
	template.Registry = hosts
	template.Observer = remoteMetrics
	artifacts := artifact.NewService(artifact.ServiceConfig{
		Catalog: catalog,
		Store:   store,
		Remote:  remote.NewPool(template),
		Logger:  log,
	})

	if cfg.Auth.Disabled {
		log.Warn().Msg("admin authentication is disabled")
	} else if cfg.UsesDevSigningKey() {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	tokens := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		TTL:        cfg.Auth.TokenTTL,
	})

	routerCfg := api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      httpMetrics,
		Manager:      manager,
		Devices:      devices,
		Rollouts:     rollouts,
		Catalog:      catalog,
		Artifacts:    artifacts,
		Tokens:       tokens,
		AuthDisabled: cfg.Auth.Disabled,
		Hosts:        hosts,
		ReadyChecks: []handler.Check{
			{Name: "storage-" + stores.Driver, Func: stores.Ping},
		},
		PollInterval:  cfg.Server.PollInterval,
		PublicURL:     cfg.Server.PublicURL,
		MaxUploadSize: cfg.Artifacts.MaxUploadSize,
		DeviceRPM:     cfg.Server.DeviceRateLimit,
		AdminRPM:      cfg.Server.AdminRateLimit,
		RequireTLS:    cfg.Server.RequireTLS,
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		collector = metrics.NewCollector(reg, metrics.Sources{
			Devices:  devices,
			Firmware: catalog,
			Rollouts: rollouts,
		}, 0, log)
		routerCfg.PrometheusHandler = reg.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, collector, nil
}
