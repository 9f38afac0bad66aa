package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/api/models"
	"github.com/otafleet/otafleet/internal/api/response"
	"github.com/otafleet/otafleet/internal/device"
	"github.com/otafleet/otafleet/internal/firmware"
)

// DeviceHandler handles device administration.
type DeviceHandler struct {
	devices *device.Service
	catalog *firmware.Service
	logger  zerolog.Logger
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices *device.Service, catalog *firmware.Service, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, catalog: catalog, logger: logger}
}

// List handles GET /api/devices/all.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.List(r.Context())
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

	views := make([]models.DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, toDeviceView(d, byID[d.HardwareID]))
	}
	response.JSON(w, r, http.StatusOK, models.Page[models.DeviceView]{Data: views})
}

// Log handles GET /api/devices/{deviceID}/log.
func (h *DeviceHandler) Log(w http.ResponseWriter, r *http.Request) {
	d, err := h.devices.Get(r.Context(), chi.URLParam(r, "deviceID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.DeviceLog{Log: d.LastLog})
}

// Update handles POST /api/devices/update. The change is applied to all
// listed devices or to none.
func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateDevicesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	err := h.devices.BulkUpdate(r.Context(), req.Devices, device.Patch{
		Feed:           req.Feed,
		Flavor:         req.Flavor,
		FirmwareTarget: req.Firmware,
		Pinned:         req.Pinned,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, r)
}

func toDeviceView(d *device.Device, hw *firmware.Hardware) models.DeviceView {
	v := models.DeviceView{
		UUID:               d.ID,
		Feed:               d.Feed,
		Flavor:             d.Flavor,
		Pinned:             d.Pinned,
		Firmware:           d.FirmwareTarget,
		FWInstalledVersion: d.InstalledVersion,
		State:              string(d.State),
		LastSeen:           models.Timestamp(d.LastSeen),
		LastStateUpdate:    models.Timestamp(d.LastStateUpdate),
	}
	if hw != nil {
		v.HWModel = hw.Model
		v.HWRevision = hw.Revision
	}
	return v
}
