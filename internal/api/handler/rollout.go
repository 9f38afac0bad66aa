package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/api/models"
	"github.com/otafleet/otafleet/internal/api/response"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/rollout"
)

// RolloutHandler handles rollout administration.
type RolloutHandler struct {
	rollouts *rollout.Service
	catalog  *firmware.Service
	logger   zerolog.Logger
}

// NewRolloutHandler creates a new RolloutHandler.
func NewRolloutHandler(rollouts *rollout.Service, catalog *firmware.Service, logger zerolog.Logger) *RolloutHandler {
	return &RolloutHandler{rollouts: rollouts, catalog: catalog, logger: logger}
}

// Create handles POST /api/rollouts/.
func (h *RolloutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRolloutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	ro, err := h.rollouts.Create(r.Context(), rollout.CreateInput{
		Name:       req.Name,
		Feed:       req.Feed,
		Flavor:     req.Flavor,
		FirmwareID: req.FirmwareID,
		Paused:     req.Paused,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.Success{Success: true, ID: ro.ID})
}

// Update handles POST /api/rollouts/update.
func (h *RolloutHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRolloutsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if err := h.rollouts.SetPaused(r.Context(), req.IDs, req.Paused); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, r)
}

// List handles GET /api/rollouts/all.
func (h *RolloutHandler) List(w http.ResponseWriter, r *http.Request) {
	rollouts, err := h.rollouts.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	views := make([]models.RolloutView, 0, len(rollouts))
	for _, ro := range rollouts {
		v := models.RolloutView{
			ID:           ro.ID,
			Name:         ro.Name,
			Feed:         ro.Feed,
			Flavor:       ro.Flavor,
			FirmwareID:   ro.FirmwareID,
			Paused:       ro.Paused,
			SuccessCount: ro.SuccessCount,
			FailureCount: ro.FailureCount,
			CreatedAt:    models.Timestamp(ro.CreatedAt),
		}
		if fw, ok := snap.Get(ro.FirmwareID); ok {
			v.FirmwareVersion = fw.Version
		}
		views = append(views, v)
	}
	response.JSON(w, r, http.StatusOK, models.Page[models.RolloutView]{Data: views})
}
