package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/api/middleware"
	"github.com/otafleet/otafleet/internal/api/models"
	"github.com/otafleet/otafleet/internal/api/response"
	"github.com/otafleet/otafleet/internal/artifact"
	"github.com/otafleet/otafleet/internal/device"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/remote"
	"github.com/otafleet/otafleet/internal/rollout"
	"github.com/otafleet/otafleet/internal/updater"
)

// writeError maps domain errors to problem responses. Anything unmapped
// is logged and reported as 500 without leaking the cause.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	if field, msg, ok := validationError(err); ok {
		response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: field, Message: msg}})
		return
	}

	var serverErr *remote.ServerError
	switch {
	case errors.Is(err, artifact.ErrInvalidFilename):
		response.BadRequest(w, r, "Could not parse file data, invalid filename.", nil)
	case errors.Is(err, device.ErrInvalidTarget):
		response.InvalidTarget(w, r, err.Error())
	case errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, firmware.ErrFirmwareNotFound),
		errors.Is(err, firmware.ErrHardwareNotFound),
		errors.Is(err, rollout.ErrRolloutNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, remote.ErrNotAvailable):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, remote.ErrCircuitOpen), errors.As(err, &serverErr):
		response.ServiceUnavailable(w, r, "remote artifact host is unavailable")
	default:
		log.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func validationError(err error) (field, msg string, ok bool) {
	var (
		uv *updater.ValidationError
		dv *device.ValidationError
		rv *rollout.ValidationError
		fv *firmware.ValidationError
	)
	switch {
	case errors.As(err, &uv):
		return uv.Field, uv.Message, true
	case errors.As(err, &dv):
		return dv.Field, dv.Message, true
	case errors.As(err, &rv):
		return rv.Field, rv.Message, true
	case errors.As(err, &fv):
		return fv.Field, fv.Message, true
	}
	return "", "", false
}
