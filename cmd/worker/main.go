// Package main provides the entrypoint for the otafleet artifact worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/otafleet/otafleet/internal/api/handler"
	"github.com/otafleet/otafleet/internal/api/middleware"
	"github.com/otafleet/otafleet/internal/api/response"
	"github.com/otafleet/otafleet/internal/artifact"
	"github.com/otafleet/otafleet/internal/config"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/logging"
	"github.com/otafleet/otafleet/internal/remote"
	"github.com/otafleet/otafleet/internal/storage"
	"github.com/otafleet/otafleet/internal/telemetry"
	"github.com/otafleet/otafleet/internal/worker"
)

const serviceName = "otafleet-worker"

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "otafleet-worker",
	Short:         "Artifact ingestion and verification worker",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

var verifyOnce bool

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("otafleet-worker %s (built %s)\n", Version, BuildTime))
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (defaults to $OTAFLEET_CONFIG)")
	rootCmd.Flags().BoolVar(&verifyOnce, "verify-once", false, "run one verification pass and exit")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
		Version: Version,
	})
	log.Info().Str("build_time", BuildTime).Str("storage", cfg.Storage.Driver).Msg("starting otafleet worker")

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

	stores, err := storage.Open(ctx, cfg, false, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer stores.Close()

	catalog := firmware.NewService(firmware.ServiceConfig{Repository: stores.Firmware, Logger: log})
	store, err := artifact.NewStore(cfg.Artifacts.Dir)
	if err != nil {
		return err
	}
	remoteMetrics, err := middleware.NewRemoteMetrics()
	if err != nil {
		return fmt.Errorf("initialize remote metrics: %w", err)
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

	verify := worker.NewVerifyJob(worker.VerifyJobConfig{
		Config: worker.VerifyConfig{
			Concurrency: cfg.Verify.Concurrency,
			Timeout:     cfg.Verify.Timeout,
			Interval:    cfg.Verify.Interval,
		},
		Catalog:  catalog,
		Verifier: artifacts,
		Logger:   log,
	})

	if verifyOnce {
		res, err := verify.Run(ctx)
		if err != nil {
			return err
		}
		if res.Failed() > 0 {
			return fmt.Errorf("%d of %d artifacts failed verification", res.Failed(), res.Total)
		}
		return nil
	}

	server := healthServer(cfg, stores, hosts, verify, log)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
			stop()
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		verify.Schedule(ctx)
	}()

	if cfg.PubSub.ProjectID == "" {
		log.Warn().Msg("pubsub.project_id not set, artifact ingestion disabled")
	} else {
		ps, err := worker.NewPubSubHandler(ctx, worker.SubscriberConfig{
			ProjectID:      cfg.PubSub.ProjectID,
			Subscription:   cfg.PubSub.Subscription,
			MaxOutstanding: cfg.PubSub.MaxOutstanding,
			NumGoroutines:  cfg.PubSub.NumGoroutines,
		}, worker.NewIngestHandler(artifacts, verify, log), log)
		if err != nil {
			return err
		}
		defer ps.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ps.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub receive stopped")
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}
	wg.Wait()

	log.Info().Msg("worker stopped")
	return nil
}

func healthServer(cfg *config.Config, stores *storage.Stores, hosts *remote.Registry, verify *worker.VerifyJob, log zerolog.Logger) *http.Server {
	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Checks:    []handler.Check{{Name: "storage-" + stores.Driver, Func: stores.Ping}},
		Hosts:     hosts,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.ContentTypeJSON)
	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)
	r.Get("/status", ops.SystemStatus)
	r.Get("/verify", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, verify.MetricsSnapshot())
	})

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}
