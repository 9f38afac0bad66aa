// Package api provides the HTTP API for otafleet.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/api/handler"
	"github.com/otafleet/otafleet/internal/api/middleware"
	"github.com/otafleet/otafleet/internal/artifact"
	"github.com/otafleet/otafleet/internal/auth"
	"github.com/otafleet/otafleet/internal/device"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/remote"
	"github.com/otafleet/otafleet/internal/rollout"
	"github.com/otafleet/otafleet/internal/updater"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Manager   *updater.Manager
	Devices   *device.Service
	Rollouts  *rollout.Service
	Catalog   *firmware.Service
	Artifacts *artifact.Service

	// Tokens validates admin bearer tokens. Ignored when AuthDisabled.
	Tokens       middleware.TokenValidator
	AuthDisabled bool

	Hosts       *remote.Registry
	ReadyChecks []handler.Check

	// PrometheusHandler is mounted at MetricsPath when set.
	PrometheusHandler http.Handler
	MetricsPath       string

	PollInterval  time.Duration
	PublicURL     string
	MaxUploadSize int64
	DeviceRPM     int
	AdminRPM      int
	RequireTLS    bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "otafleet-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Checks:    cfg.ReadyChecks,
		Hosts:     cfg.Hosts,
	})
	controllerHandler := handler.NewControllerHandler(handler.ControllerConfig{
		Manager:      cfg.Manager,
		Catalog:      cfg.Catalog,
		PollInterval: cfg.PollInterval,
		PublicURL:    cfg.PublicURL,
		Logger:       cfg.Logger,
	})
	downloadHandler := handler.NewDownloadHandler(cfg.Catalog, cfg.Logger)
	deviceHandler := handler.NewDeviceHandler(cfg.Devices, cfg.Catalog, cfg.Logger)
	rolloutHandler := handler.NewRolloutHandler(cfg.Rollouts, cfg.Catalog, cfg.Logger)
	firmwareHandler := handler.NewFirmwareHandler(handler.FirmwareConfig{
		Catalog:       cfg.Catalog,
		Artifacts:     cfg.Artifacts,
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        cfg.Logger,
	})

	authMiddleware := middleware.AnonymousAdmin
	if !cfg.AuthDisabled {
		authMiddleware = middleware.Auth(cfg.Tokens)
	}
	deviceRateLimit := middleware.RateLimitByIP(middleware.PerMinute(cfg.DeviceRPM, middleware.DeviceRateLimit))
	adminRateLimit := middleware.RateLimitBySubject(middleware.PerMinute(cfg.AdminRPM, middleware.AdminRateLimit))
	canRead := middleware.RequireRole(auth.RoleReader)
	canWrite := middleware.RequireRole(auth.RoleAdmin)

	// Ops endpoints (public, status needs a reader)
	r.Route("/ops", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.With(authMiddleware, canRead).Get("/status", opsHandler.SystemStatus)
	})

	if cfg.PrometheusHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, cfg.PrometheusHandler)
	}

	// Controller protocol (devices)
	r.Route("/{tenant}/controller/v1/{deviceID}", func(r chi.Router) {
		r.Use(deviceRateLimit)
		r.Use(middleware.ContentTypeJSON)
		r.Get("/", controllerHandler.Poll)
		r.Put("/configData", controllerHandler.ConfigData)
		r.Get("/deploymentBase/{firmwareID}", controllerHandler.DeploymentBase)
		r.Post("/deploymentBase/{firmwareID}/feedback", controllerHandler.Feedback)
	})

	r.Route("/api", func(r chi.Router) {
		// Devices fetch artifacts without admin credentials
		r.With(deviceRateLimit).Get("/download/{firmwareID}", downloadHandler.Download)
		r.With(deviceRateLimit).Head("/download/{firmwareID}", downloadHandler.Download)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminRateLimit)
			r.Use(middleware.ContentTypeJSON)

			r.Route("/devices", func(r chi.Router) {
				r.With(canRead).Get("/all", deviceHandler.List)
				r.With(canRead).Get("/{deviceID}/log", deviceHandler.Log)
				r.With(canWrite, middleware.RequireJSON).Post("/update", deviceHandler.Update)
			})

			r.Route("/rollouts", func(r chi.Router) {
				r.With(canRead).Get("/all", rolloutHandler.List)
				r.With(canWrite, middleware.RequireJSON).Post("/", rolloutHandler.Create)
				r.With(canWrite, middleware.RequireJSON).Post("/update", rolloutHandler.Update)
			})

			r.Route("/firmware", func(r chi.Router) {
				r.With(canRead).Get("/all", firmwareHandler.List)
				r.With(canWrite).Post("/upload", firmwareHandler.Upload)
				r.With(canWrite, middleware.RequireJSON).Post("/remote", firmwareHandler.AddRemote)
			})

			r.With(canRead).Get("/hardware/all", firmwareHandler.ListHardware)
		})
	})

	return r
}
