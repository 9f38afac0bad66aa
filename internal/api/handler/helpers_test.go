package handler

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/otafleet/otafleet/internal/artifact"
	"github.com/otafleet/otafleet/internal/device"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/remote"
	"github.com/otafleet/otafleet/internal/rollout"
)

func TestFormatSleep(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{-time.Second, "00:00:00"},
		{30 * time.Second, "00:00:30"},
		{5 * time.Minute, "00:05:00"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "26:03:04"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSleep(tt.in))
		})
	}
}

func TestBaseURL(t *testing.T) {
	t.Run("request host", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Host = "ota.local:8080"
		assert.Equal(t, "http://ota.local:8080", baseURL(r, ""))
	})

	t.Run("tls", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.TLS = &tls.ConnectionState{}
		assert.Equal(t, "https://example.com", baseURL(r, ""))
	})

	t.Run("forwarded", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		r.Header.Set("X-Forwarded-Host", "updates.example.org")
		assert.Equal(t, "https://updates.example.org", baseURL(r, ""))
	})

	t.Run("bogus forwarded proto", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("X-Forwarded-Proto", "gopher")
		assert.Equal(t, "http://example.com", baseURL(r, ""))
	})

	t.Run("public url wins", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		r.Header.Set("X-Forwarded-Host", "ignored.example.org")
		assert.Equal(t, "https://fleet.example.com", baseURL(r, "https://fleet.example.com/"))
	})
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"device validation", &device.ValidationError{Field: "feed", Message: "must not be empty"}, http.StatusBadRequest},
		{"rollout validation", &rollout.ValidationError{Field: "ids", Message: "is required"}, http.StatusBadRequest},
		{"bad filename", fmt.Errorf("upload: %w", artifact.ErrInvalidFilename), http.StatusBadRequest},
		{"invalid target", fmt.Errorf("%w: firmware fw_1 does not exist", device.ErrInvalidTarget), http.StatusUnprocessableEntity},
		{"device not found", fmt.Errorf("device gw: %w", device.ErrDeviceNotFound), http.StatusNotFound},
		{"firmware not found", firmware.ErrFirmwareNotFound, http.StatusNotFound},
		{"rollout not found", rollout.ErrRolloutNotFound, http.StatusNotFound},
		{"remote missing", fmt.Errorf("probe: %w", remote.ErrNotAvailable), http.StatusBadRequest},
		{"breaker open", remote.ErrCircuitOpen, http.StatusServiceUnavailable},
		{"remote 5xx", &remote.ServerError{StatusCode: 502}, http.StatusServiceUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/devices/all", nil)
			w := httptest.NewRecorder()

			writeError(w, r, zerolog.Nop(), tt.err)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
		})
	}
}

func TestWriteError_InternalDoesNotLeakCause(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/devices/all", nil)
	w := httptest.NewRecorder()

	writeError(w, r, zerolog.Nop(), errors.New("pq: password authentication failed"))

	assert.NotContains(t, w.Body.String(), "password")
}
