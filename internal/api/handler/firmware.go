package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/api/models"
	"github.com/otafleet/otafleet/internal/api/response"
	"github.com/otafleet/otafleet/internal/artifact"
	"github.com/otafleet/otafleet/internal/firmware"
)

// multipartMemory is how much of an upload chunk is buffered in memory
// before spilling to a temp file.
const multipartMemory = 8 << 20

// FirmwareHandler handles the firmware catalog and artifact uploads.
type FirmwareHandler struct {
	catalog       *firmware.Service
	artifacts     *artifact.Service
	maxUploadSize int64
	logger        zerolog.Logger
}

// FirmwareConfig holds configuration for the firmware handler.
type FirmwareConfig struct {
	Catalog   *firmware.Service
	Artifacts *artifact.Service
	// MaxUploadSize bounds one upload request. Zero means unbounded.
	MaxUploadSize int64
	Logger        zerolog.Logger
}

// NewFirmwareHandler creates a new FirmwareHandler.
func NewFirmwareHandler(cfg FirmwareConfig) *FirmwareHandler {
	return &FirmwareHandler{
		catalog:       cfg.Catalog,
		artifacts:     cfg.Artifacts,
		maxUploadSize: cfg.MaxUploadSize,
		logger:        cfg.Logger,
	}
}

// List handles GET /api/firmware/all.
func (h *FirmwareHandler) List(w http.ResponseWriter, r *http.Request) {
	fws, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	hardware, err := h.catalog.ListHardware(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	byID := make(map[string]*firmware.Hardware, len(hardware))
	for _, hw := range hardware {
		byID[hw.ID] = hw
	}

	views := make([]models.FirmwareView, 0, len(fws))
	for _, fw := range fws {
		views = append(views, toFirmwareView(fw, byID))
	}
	response.JSON(w, r, http.StatusOK, models.Page[models.FirmwareView]{Data: views})
}

// Upload handles POST /api/firmware/upload, one chunk per request.
func (h *FirmwareHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			response.PayloadTooLarge(w, r, "upload chunk exceeds the configured limit")
			return
		}
		response.BadRequest(w, r, "invalid multipart form", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	isInit, err := formBool(r, "init")
	if err != nil {
		response.BadRequest(w, r, "invalid form field", []models.FieldError{{Field: "init", Message: "must be a boolean"}})
		return
	}
	isDone, err := formBool(r, "done")
	if err != nil {
		response.BadRequest(w, r, "invalid form field", []models.FieldError{{Field: "done", Message: "must be a boolean"}})
		return
	}

	var data io.Reader
	file, _, err := r.FormFile("chunk")
	switch {
	case err == nil:
		defer file.Close()
		data = file
	case errors.Is(err, http.ErrMissingFile):
		response.BadRequest(w, r, "missing form field", []models.FieldError{{Field: "chunk", Message: "is required"}})
		return
	default:
		response.BadRequest(w, r, "invalid multipart form", nil)
		return
	}

	fw, err := h.artifacts.Upload(r.Context(), artifact.Chunk{
		Filename: r.FormValue("filename"),
		Version:  strings.TrimSpace(r.FormValue("version")),
		Hardware: hardwareRefs(r.MultipartForm.Value["hw_model"]),
		Init:     isInit,
		Done:     isDone,
		Data:     data,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.writeCreated(w, r, fw)
}

// AddRemote handles POST /api/firmware/remote.
func (h *FirmwareHandler) AddRemote(w http.ResponseWriter, r *http.Request) {
	var req models.RemoteFirmwareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	fw, err := h.artifacts.AddRemote(r.Context(), artifact.RemoteInput{
		URL:      strings.TrimSpace(req.URL),
		Version:  strings.TrimSpace(req.Version),
		Hardware: hardwareRefs(req.HWModel),
		SHA1:     strings.ToLower(strings.TrimSpace(req.SHA1)),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.writeCreated(w, r, fw)
}

// ListHardware handles GET /api/hardware/all.
func (h *FirmwareHandler) ListHardware(w http.ResponseWriter, r *http.Request) {
	hardware, err := h.catalog.ListHardware(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	views := make([]models.HardwareView, 0, len(hardware))
	for _, hw := range hardware {
		views = append(views, models.HardwareView{ID: hw.ID, Model: hw.Model, Revision: hw.Revision})
	}
	response.JSON(w, r, http.StatusOK, models.Page[models.HardwareView]{Data: views})
}

func (h *FirmwareHandler) writeCreated(w http.ResponseWriter, r *http.Request, fw *firmware.Firmware) {
	out := models.FirmwareCreated{Success: true}
	if fw != nil {
		hardware, err := h.catalog.ListHardware(r.Context())
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		byID := make(map[string]*firmware.Hardware, len(hardware))
		for _, hw := range hardware {
			byID[hw.ID] = hw
		}
		view := toFirmwareView(fw, byID)
		out.Firmware = &view
	}
	response.JSON(w, r, http.StatusOK, out)
}

func formBool(r *http.Request, key string) (bool, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func hardwareRefs(values []string) []firmware.HardwareRef {
	refs := make([]firmware.HardwareRef, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		refs = append(refs, firmware.ParseHardwareRef(v))
	}
	return refs
}

func toFirmwareView(fw *firmware.Firmware, hardware map[string]*firmware.Hardware) models.FirmwareView {
	names := make([]string, 0, len(fw.HardwareIDs))
	for _, id := range fw.HardwareIDs {
		if hw, ok := hardware[id]; ok {
			names = append(names, hw.String())
		} else {
			names = append(names, id)
		}
	}
	return models.FirmwareView{
		ID:        fw.ID,
		Version:   fw.Version,
		Filename:  fw.Filename,
		URI:       fw.URI,
		SHA1:      fw.Hash,
		Size:      fw.Size,
		Hardware:  names,
		CreatedAt: models.Timestamp(fw.CreatedAt),
	}
}
