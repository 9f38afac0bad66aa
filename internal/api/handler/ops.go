// Package handler provides HTTP handlers for the otafleet API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/otafleet/otafleet/internal/api/models"
	"github.com/otafleet/otafleet/internal/api/response"
	"github.com/otafleet/otafleet/internal/remote"
)

// readyTimeout bounds each readiness check.
const readyTimeout = 2 * time.Second

// Check is a named dependency check.
type Check struct {
	Name string
	Func func(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	checks    []Check
	hosts     *remote.Registry
}

// OpsConfig holds configuration for the ops handler.
type OpsConfig struct {
	Version   string
	BuildTime string
	Checks    []Check
	Hosts     *remote.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		checks:    cfg.Checks,
		hosts:     cfg.Hosts,
	}
}

// HealthCheck handles GET /ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /ops/ready. Any failing dependency makes the
// instance unready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())
	status := models.HealthStatusOK
	details := make(map[string]interface{}, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status == models.HealthStatusFail {
			status = models.HealthStatusFail
		}
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// SystemStatus handles GET /ops/status - subsystem and remote host status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())
	hosts := h.hostStatus()

	overall := models.HealthStatusOK
	for _, s := range subsystems {
		if s.Status == models.HealthStatusFail {
			overall = models.HealthStatusFail
		}
	}
	if overall == models.HealthStatusOK {
		for _, hs := range hosts {
			if hs.Status != models.HealthStatusOK {
				overall = models.HealthStatusDegraded
				break
			}
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
		Hosts:      hosts,
	})
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, 0, len(h.checks))
	for _, c := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, readyTimeout)
		err := c.Func(cctx)
		cancel()

		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func (h *OpsHandler) hostStatus() []models.HostStatus {
	if h.hosts == nil {
		return []models.HostStatus{}
	}

	all := h.hosts.AllHealth()
	out := make([]models.HostStatus, 0, len(all))
	for _, hh := range all {
		hs := models.HostStatus{
			Host:         hh.Name,
			Status:       models.HealthStatusOK,
			CircuitState: hh.BreakerState.String(),
		}
		switch {
		case hh.IsUnhealthy():
			hs.Status = models.HealthStatusFail
		case hh.IsDegraded():
			hs.Status = models.HealthStatusDegraded
		}
		if hh.LastSuccessAt != nil {
			ts := models.Timestamp(*hh.LastSuccessAt)
			hs.LastSuccessAt = &ts
		}
		if hh.LastFailureAt != nil {
			ts := models.Timestamp(*hh.LastFailureAt)
			hs.LastFailureAt = &ts
		}
		if hh.LastError != "" {
			msg := hh.LastError
			hs.Message = &msg
		}
		out = append(out, hs)
	}
	return out
}
