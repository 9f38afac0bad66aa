package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otafleet/otafleet/internal/api"
	"github.com/otafleet/otafleet/internal/api/handler"
	"github.com/otafleet/otafleet/internal/api/models"
	"github.com/otafleet/otafleet/internal/artifact"
	"github.com/otafleet/otafleet/internal/auth"
	"github.com/otafleet/otafleet/internal/database"
	"github.com/otafleet/otafleet/internal/device"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/keylock"
	"github.com/otafleet/otafleet/internal/remote"
	"github.com/otafleet/otafleet/internal/rollout"
	"github.com/otafleet/otafleet/internal/updater"
)

const (
	testHWModel = "smart-gateway-mt7688"
	deviceBase  = "/DEFAULT/controller/v1/"
)

type testEnv struct {
	router http.Handler
	tokens *auth.JWTService
}

func newTestEnv(t *testing.T, checks ...handler.Check) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	catalog := firmware.NewService(firmware.ServiceConfig{
		Repository: firmware.NewInMemoryRepository(),
		Logger:     logger,
	})
	rollouts := rollout.NewService(rollout.ServiceConfig{
		Repository: rollout.NewInMemoryRepository(),
		Firmware:   catalog,
		Logger:     logger,
	})
	devices := device.NewInMemoryRepository()
	tx := database.NewMemoryTransactor()
	locks := keylock.New()

	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	hosts := remote.NewRegistry()
	pool := remote.NewPool(remote.ClientConfig{Registry: hosts, MaxRetries: 0})

	tokens := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "otafleet",
		Audience:   "otafleet-admin",
		TTL:        time.Hour,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2026-01-01T00:00:00Z",
		Logger:    logger,
		Manager: updater.NewManager(updater.ManagerConfig{
			Devices:    devices,
			Catalog:    catalog,
			Rollouts:   rollouts,
			Transactor: tx,
			Locks:      locks,
			Logger:     logger,
		}),
		Devices: device.NewService(device.ServiceConfig{
			Repository: devices,
			Firmware:   catalog,
			Transactor: tx,
			Locks:      locks,
			Logger:     logger,
		}),
		Rollouts: rollouts,
		Catalog:  catalog,
		Artifacts: artifact.NewService(artifact.ServiceConfig{
			Catalog: catalog,
			Store:   store,
			Remote:  pool,
			Logger:  logger,
		}),
		Tokens:            tokens,
		Hosts:             hosts,
		ReadyChecks:       checks,
		PrometheusHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "ok") }),
		PollInterval:      5 * time.Minute,
		MaxUploadSize:     1 << 20,
	})

	return &testEnv{router: router, tokens: tokens}
}

func (e *testEnv) token(t *testing.T, roles ...auth.Role) string {
	t.Helper()
	token, _, err := e.tokens.Issue("operator@example.com", roles...)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, token, filename, version string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("filename", filename))
	require.NoError(t, mw.WriteField("version", version))
	require.NoError(t, mw.WriteField("hw_model", testHWModel))
	require.NoError(t, mw.WriteField("init", "true"))
	require.NoError(t, mw.WriteField("done", "true"))
	part, err := mw.CreateFormFile("chunk", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/firmware/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) uploadFirmware(t *testing.T, token, filename, version string) models.FirmwareView {
	t.Helper()
	w := e.upload(t, token, filename, version, []byte("firmware image "+version))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created models.FirmwareCreated
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.True(t, created.Success)
	require.NotNil(t, created.Firmware)
	return *created.Firmware
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *testEnv) registerDevice(t *testing.T, id, installed string) {
	t.Helper()
	w := e.do(t, http.MethodGet, deviceBase+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPut, deviceBase+id+"/configData", map[string]any{
		"id":     "",
		"status": map[string]any{"execution": "closed", "result": map[string]string{"finished": "success"}},
		"data":   map[string]string{"hw_model": testHWModel, "installed_version": installed},
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[models.Success](t, w)
	assert.True(t, res.Success)
	assert.Equal(t, "Updated swupdate data.", res.Message)
}

func (e *testEnv) feedback(t *testing.T, id, fwID, execution, finished string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, deviceBase+id+"/deploymentBase/"+fwID+"/feedback", map[string]any{
		"id": fwID,
		"status": map[string]any{
			"execution": execution,
			"result":    map[string]string{"finished": finished},
			"details":   []string{"installing " + fwID},
		},
	}, "")
}

func TestRouter_HealthCheck(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/ops/health", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	health := decode[models.Health](t, w)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		e := newTestEnv(t, handler.Check{Name: "storage", Func: func(context.Context) error { return nil }})

		w := e.do(t, http.MethodGet, "/ops/ready", nil, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.HealthStatusOK, decode[models.Health](t, w).Status)
	})

	t.Run("storage down", func(t *testing.T) {
		e := newTestEnv(t, handler.Check{Name: "storage", Func: func(context.Context) error {
			return errors.New("connection refused")
		}})

		w := e.do(t, http.MethodGet, "/ops/ready", nil, "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		health := decode[models.Health](t, w)
		assert.Equal(t, models.HealthStatusFail, health.Status)
		assert.Equal(t, string(models.HealthStatusFail), health.Details["storage"])
	})
}

func TestRouter_SystemStatus(t *testing.T) {
	e := newTestEnv(t, handler.Check{Name: "storage", Func: func(context.Context) error { return nil }})

	w := e.do(t, http.MethodGet, "/ops/status", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/ops/status", nil, e.token(t, auth.RoleReader))
	require.Equal(t, http.StatusOK, w.Code)

	status := decode[models.SystemStatus](t, w)
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "storage", status.Subsystems[0].Name)
	assert.Empty(t, status.Hosts)
}

func TestRouter_PrometheusEndpoint(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/metrics", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestRouter_FirstPollRegistersAndAsksForConfig(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, deviceBase+"gw-0001", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	poll := decode[models.PollResponse](t, w)
	assert.Equal(t, "00:05:00", poll.Config.Polling.Sleep)
	assert.Equal(t, "http://example.com/DEFAULT/controller/v1/gw-0001/configData", poll.Links["configData"].Href)
	assert.NotContains(t, poll.Links, "deploymentBase")

	w = e.do(t, http.MethodGet, "/api/devices/all", nil, e.token(t, auth.RoleReader))
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[models.Page[models.DeviceView]](t, w)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "gw-0001", page.Data[0].UUID)
	assert.Equal(t, "Registered", page.Data[0].State)
}

func TestRouter_ConfiguredDeviceWithoutUpdateHasNoLinks(t *testing.T) {
	e := newTestEnv(t)
	e.registerDevice(t, "gw-0001", "8.8.1")

	w := e.do(t, http.MethodGet, deviceBase+"gw-0001", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"config":{"polling":{"sleep":"00:05:00"}},"_links":{}}`, w.Body.String())
}

func TestRouter_RolloutLifecycle(t *testing.T) {
	e := newTestEnv(t)
	admin := e.token(t, auth.RoleAdmin)

	fw := e.uploadFirmware(t, admin, "gateway-8.8.2.swu", "8.8.2")
	assert.Equal(t, []string{testHWModel + ":" + firmware.DefaultRevision}, fw.Hardware)
	assert.Len(t, fw.SHA1, 40)

	e.registerDevice(t, "gw-0001", "8.8.1")

	w := e.do(t, http.MethodPost, "/api/rollouts/", models.CreateRolloutRequest{
		Name:       "stable 8.8.2",
		Feed:       device.DefaultFeed,
		Flavor:     device.DefaultFlavor,
		FirmwareID: fw.ID,
	}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[models.Success](t, w)
	require.True(t, created.Success)
	require.NotEmpty(t, created.ID)

	// Poll offers the rollout firmware.
	w = e.do(t, http.MethodGet, deviceBase+"gw-0001", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	poll := decode[models.PollResponse](t, w)
	assert.Equal(t, "http://example.com/DEFAULT/controller/v1/gw-0001/deploymentBase/"+fw.ID, poll.Links["deploymentBase"].Href)

	// Deployment description.
	w = e.do(t, http.MethodGet, deviceBase+"gw-0001/deploymentBase/"+fw.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	base := decode[models.DeploymentBase](t, w)
	assert.Equal(t, fw.ID, base.ID)
	assert.Equal(t, "forced", base.Deployment.Download)
	assert.Equal(t, "forced", base.Deployment.Update)
	require.Len(t, base.Deployment.Chunks, 1)
	chunk := base.Deployment.Chunks[0]
	assert.Equal(t, "os", chunk.Part)
	assert.Equal(t, "8.8.2", chunk.Version)
	require.Len(t, chunk.Artifacts, 1)
	assert.Equal(t, "gateway-8.8.2.swu", chunk.Artifacts[0].Filename)
	assert.Equal(t, fw.SHA1, chunk.Artifacts[0].Hashes.SHA1)
	assert.Equal(t, fw.Size, chunk.Artifacts[0].Size)
	assert.Equal(t, "http://example.com/api/download/"+fw.ID, chunk.Artifacts[0].Links["download"].Href)
	assert.Equal(t, "http://example.com/api/download/"+fw.ID, chunk.Artifacts[0].Links["download-http"].Href)

	// Installation proceeds, then succeeds.
	w = e.feedback(t, "gw-0001", fw.ID, "proceeding", "none")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = e.feedback(t, "gw-0001", fw.ID, "closed", "success")
	require.Equal(t, http.StatusOK, w.Code)
	// A repeated report is not counted twice.
	w = e.feedback(t, "gw-0001", fw.ID, "closed", "success")
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/api/devices/all", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	devices := decode[models.Page[models.DeviceView]](t, w)
	require.Len(t, devices.Data, 1)
	assert.Equal(t, "Finished", devices.Data[0].State)
	assert.Equal(t, "8.8.2", devices.Data[0].FWInstalledVersion)
	assert.Equal(t, testHWModel, devices.Data[0].HWModel)

	w = e.do(t, http.MethodGet, "/api/devices/gw-0001/log", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[models.DeviceLog](t, w).Log, "installing "+fw.ID)

	w = e.do(t, http.MethodGet, "/api/rollouts/all", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	rollouts := decode[models.Page[models.RolloutView]](t, w)
	require.Len(t, rollouts.Data, 1)
	assert.Equal(t, created.ID, rollouts.Data[0].ID)
	assert.Equal(t, "8.8.2", rollouts.Data[0].FirmwareVersion)
	assert.Equal(t, int64(1), rollouts.Data[0].SuccessCount)
	assert.Equal(t, int64(0), rollouts.Data[0].FailureCount)

	// Up to date now.
	w = e.do(t, http.MethodGet, deviceBase+"gw-0001", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.PollResponse](t, w).Links)
}

func TestRouter_PausedRolloutIsNotOffered(t *testing.T) {
	e := newTestEnv(t)
	admin := e.token(t, auth.RoleAdmin)
	fw := e.uploadFirmware(t, admin, "gateway-8.8.2.swu", "8.8.2")
	e.registerDevice(t, "gw-0001", "8.8.1")

	w := e.do(t, http.MethodPost, "/api/rollouts/", models.CreateRolloutRequest{
		Feed: device.DefaultFeed, Flavor: device.DefaultFlavor, FirmwareID: fw.ID,
	}, admin)
	require.Equal(t, http.StatusOK, w.Code)
	id := decode[models.Success](t, w).ID

	w = e.do(t, http.MethodPost, "/api/rollouts/update", models.UpdateRolloutsRequest{IDs: []string{id}, Paused: true}, admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, deviceBase+"gw-0001", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.PollResponse](t, w).Links)
}

func TestRouter_FeedbackErrors(t *testing.T) {
	e := newTestEnv(t)

	t.Run("unknown device", func(t *testing.T) {
		w := e.feedback(t, "never-polled", "fw_1", "closed", "success")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		e.registerDevice(t, "gw-0002", "1.0")
		req := httptest.NewRequest(http.MethodPost, deviceBase+"gw-0002/deploymentBase/fw_1/feedback", bytes.NewBufferString("{not json"))
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown execution", func(t *testing.T) {
		w := e.feedback(t, "gw-0002", "fw_1", "exploded", "none")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRouter_DeploymentBaseUnknownFirmware(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, deviceBase+"gw-0001/deploymentBase/fw_missing", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_Download(t *testing.T) {
	e := newTestEnv(t)
	admin := e.token(t, auth.RoleAdmin)
	content := []byte("swupdate image contents")
	w := e.upload(t, admin, "image.swu", "2.0.0", content)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fw := decode[models.FirmwareCreated](t, w).Firmware
	require.NotNil(t, fw)

	t.Run("head", func(t *testing.T) {
		w := e.do(t, http.MethodHead, "/api/download/"+fw.ID, nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, strconv.Itoa(len(content)), w.Header().Get("Content-Length"))
	})

	t.Run("get", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/download/"+fw.ID, nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "image.swu")
		assert.Equal(t, content, w.Body.Bytes())
	})

	t.Run("unknown", func(t *testing.T) {
		w := e.do(t, http.MethodGet, "/api/download/fw_missing", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRouter_UploadInvalidFilename(t *testing.T) {
	e := newTestEnv(t)

	w := e.upload(t, e.token(t, auth.RoleAdmin), "../escape.swu", "1.0", []byte("x"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid filename")
}

func TestRouter_UploadTooLarge(t *testing.T) {
	e := newTestEnv(t)

	w := e.upload(t, e.token(t, auth.RoleAdmin), "huge.swu", "1.0", bytes.Repeat([]byte("a"), 2<<20))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_UpdateDevices(t *testing.T) {
	e := newTestEnv(t)
	admin := e.token(t, auth.RoleAdmin)
	fw := e.uploadFirmware(t, admin, "gateway-9.0.0.swu", "9.0.0")
	e.registerDevice(t, "gw-0001", "8.8.1")
	e.registerDevice(t, "gw-0002", "8.8.1")

	t.Run("pin to firmware", func(t *testing.T) {
		target := fw.ID
		pinned := true
		w := e.do(t, http.MethodPost, "/api/devices/update", models.UpdateDevicesRequest{
			Devices:  []string{"gw-0001", "gw-0002"},
			Firmware: &target,
			Pinned:   &pinned,
		}, admin)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"success":true}`, w.Body.String())

		w = e.do(t, http.MethodGet, "/api/devices/all", nil, admin)
		for _, d := range decode[models.Page[models.DeviceView]](t, w).Data {
			assert.True(t, d.Pinned)
			assert.Equal(t, fw.ID, d.Firmware)
		}
	})

	t.Run("unknown firmware target", func(t *testing.T) {
		target := "fw_does_not_exist"
		w := e.do(t, http.MethodPost, "/api/devices/update", models.UpdateDevicesRequest{
			Devices:  []string{"gw-0001"},
			Firmware: &target,
		}, admin)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unknown device", func(t *testing.T) {
		feed := "beta"
		w := e.do(t, http.MethodPost, "/api/devices/update", models.UpdateDevicesRequest{
			Devices: []string{"gw-0001", "gw-9999"},
			Feed:    &feed,
		}, admin)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = e.do(t, http.MethodGet, "/api/devices/all", nil, admin)
		for _, d := range decode[models.Page[models.DeviceView]](t, w).Data {
			assert.Equal(t, device.DefaultFeed, d.Feed, "nothing written on failure")
		}
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/devices/update", bytes.NewBufferString("devices=gw-0001"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer "+admin)
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})
}

func TestRouter_AdminAuth(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		token  string
		want   int
	}{
		{
			name:   "no token",
			method: http.MethodGet,
			path:   "/api/devices/all",
			want:   http.StatusUnauthorized,
		},
		{
			name:   "garbage token",
			method: http.MethodGet,
			path:   "/api/firmware/all",
			token:  "not-a-jwt",
			want:   http.StatusUnauthorized,
		},
		{
			name:   "reader can list",
			method: http.MethodGet,
			path:   "/api/hardware/all",
			token:  e.token(t, auth.RoleReader),
			want:   http.StatusOK,
		},
		{
			name:   "reader cannot write",
			method: http.MethodPost,
			path:   "/api/rollouts/update",
			body:   models.UpdateRolloutsRequest{IDs: []string{"ro_1"}, Paused: true},
			token:  e.token(t, auth.RoleReader),
			want:   http.StatusForbidden,
		},
		{
			name:   "download is public",
			method: http.MethodGet,
			path:   "/api/download/fw_missing",
			want:   http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, tt.body, tt.token)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRouter_RemoteFirmwareUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/firmware/remote", models.RemoteFirmwareRequest{
		URL:     srv.URL + "/images/gateway.swu",
		Version: "9.1.0",
		HWModel: []string{testHWModel},
		SHA1:    "da39a3ee5e6b4b0d3255bfef95601890afd80709",
	}, e.token(t, auth.RoleAdmin))

	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}
