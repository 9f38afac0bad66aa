package handler

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/api/models"
	"github.com/otafleet/otafleet/internal/api/response"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/updater"
)

// ControllerHandler serves the device-facing controller protocol.
type ControllerHandler struct {
	manager      *updater.Manager
	catalog      *firmware.Service
	pollInterval time.Duration
	publicURL    string
	logger       zerolog.Logger
}

// ControllerConfig holds configuration for the controller handler.
type ControllerConfig struct {
	Manager      *updater.Manager
	Catalog      *firmware.Service
	PollInterval time.Duration
	// PublicURL overrides the origin used in links, e.g. behind a proxy.
	PublicURL string
	Logger    zerolog.Logger
}

// NewControllerHandler creates a new ControllerHandler.
func NewControllerHandler(cfg ControllerConfig) *ControllerHandler {
	return &ControllerHandler{
		manager:      cfg.Manager,
		catalog:      cfg.Catalog,
		pollInterval: cfg.PollInterval,
		publicURL:    cfg.PublicURL,
		logger:       cfg.Logger,
	}
}

func (h *ControllerHandler) deviceBase(r *http.Request) string {
	return baseURL(r, h.publicURL) + "/" +
		url.PathEscape(chi.URLParam(r, "tenant")) + "/controller/v1/" +
		url.PathEscape(chi.URLParam(r, "deviceID"))
}

// Poll handles GET /{tenant}/controller/v1/{deviceID}. Unknown devices are
// registered. The links tell the device what to do next.
func (h *ControllerHandler) Poll(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.Poll(r.Context(), chi.URLParam(r, "deviceID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	base := h.deviceBase(r)
	links := map[string]models.Link{}
	if res.NeedsConfig {
		links["configData"] = models.Link{Href: base + "/configData"}
	}
	if res.Firmware != nil {
		links["deploymentBase"] = models.Link{Href: base + "/deploymentBase/" + url.PathEscape(res.Firmware.ID)}
	}

	response.JSON(w, r, http.StatusOK, models.PollResponse{
		Config: models.PollConfig{Polling: models.Polling{Sleep: formatSleep(h.pollInterval)}},
		Links:  links,
	})
}

// ConfigData handles PUT /{tenant}/controller/v1/{deviceID}/configData.
func (h *ControllerHandler) ConfigData(w http.ResponseWriter, r *http.Request) {
	var req models.ConfigDataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	_, err := h.manager.Configure(r.Context(), chi.URLParam(r, "deviceID"), updater.ConfigData{
		HWModel:          req.Data["hw_model"],
		HWRevision:       req.Data["hw_revision"],
		InstalledVersion: req.Data["installed_version"],
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.Success{Success: true, Message: "Updated swupdate data."})
}

// DeploymentBase handles GET /{tenant}/controller/v1/{deviceID}/deploymentBase/{firmwareID}.
func (h *ControllerHandler) DeploymentBase(w http.ResponseWriter, r *http.Request) {
	fw, err := h.catalog.Get(r.Context(), chi.URLParam(r, "firmwareID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	download := baseURL(r, h.publicURL) + "/api/download/" + url.PathEscape(fw.ID)
	response.JSON(w, r, http.StatusOK, models.DeploymentBase{
		ID: fw.ID,
		Deployment: models.Deployment{
			Download: "forced",
			Update:   "forced",
			Chunks: []models.Chunk{{
				Part:    "os",
				Version: fw.Version,
				Name:    fw.Filename,
				Artifacts: []models.Artifact{{
					Filename: fw.Filename,
					Hashes:   models.ArtifactHashes{SHA1: fw.Hash},
					Size:     fw.Size,
					Links: map[string]models.Link{
						"download":      {Href: download},
						"download-http": {Href: download},
					},
				}},
			}},
		},
	})
}

// Feedback handles POST /{tenant}/controller/v1/{deviceID}/deploymentBase/{firmwareID}/feedback.
// The firmware in the path is authoritative; a differing id in the body is
// rejected.
func (h *ControllerHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req models.FeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	firmwareID := chi.URLParam(r, "firmwareID")
	if req.ID != "" && req.ID != firmwareID {
		response.BadRequest(w, r, "feedback id does not match deployment", []models.FieldError{
			{Field: "id", Message: "must match the deployment in the path"},
		})
		return
	}

	_, err := h.manager.Feedback(r.Context(), chi.URLParam(r, "deviceID"), updater.Feedback{
		FirmwareID: firmwareID,
		Execution:  updater.Execution(req.Status.Execution),
		Result:     updater.Result(req.Status.Result.Finished),
		Details:    req.Status.Details,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.OK(w, r)
}
