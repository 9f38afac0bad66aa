package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otafleet/otafleet/internal/remote"
)

func fastConfig(name string, retries uint64) remote.ClientConfig {
	breaker := remote.DefaultBreakerConfig(name)
	breaker.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.Requests >= 100 }
	return remote.ClientConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      retries,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Breaker:         &breaker,
	}
}

func TestClient_ProbeReadsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Length", "4096")
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := remote.NewClient(fastConfig("artifacts", 0))
	res, err := client.Probe(context.Background(), server.URL+"/fw.swu")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, int64(4096), res.Size)
	assert.Equal(t, "abc123", res.ETag)
}

func TestClient_ProbeReportsRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://cdn.example.com/fw.swu", http.StatusFound)
	}))
	defer server.Close()

	res, err := remote.NewClient(fastConfig("artifacts", 0)).Probe(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "https://cdn.example.com/fw.swu", res.Location)
}

func TestClient_ProbeNotFound(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := remote.NewClient(fastConfig("artifacts", 3)).Probe(context.Background(), server.URL)
	assert.ErrorIs(t, err, remote.ErrNotAvailable)
	assert.Equal(t, int32(1), attempts.Load(), "4xx is not retried")
}

func TestClient_RetryOn5xx(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	res, err := remote.NewClient(fastConfig("artifacts", 5)).Probe(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_RetriesExhaustedReturnLastResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := remote.NewClient(fastConfig("artifacts", 2))
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestClient_BreakerTrips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := remote.BreakerConfig{Name: "flaky", MaxRequests: 1, Timeout: time.Second}
	client := remote.NewClient(remote.ClientConfig{
		Name:            "flaky",
		Timeout:         time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Breaker:         &breaker,
	})

	for i := 0; i < 5; i++ {
		_, _ = client.Probe(context.Background(), server.URL)
	}
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())

	_, err := client.Probe(context.Background(), server.URL)
	assert.ErrorIs(t, err, remote.ErrCircuitOpen)
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := remote.NewClient(fastConfig("slow", 0)).Probe(ctx, server.URL)
	assert.Error(t, err)
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []int
}

func (o *recordingObserver) ObserveRequest(_ context.Context, _ string, status int, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func TestClient_Observer(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	obs := &recordingObserver{}
	cfg := fastConfig("observed", 3)
	cfg.Observer = obs

	_, err := remote.NewClient(cfg).Probe(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []int{http.StatusServiceUnavailable, http.StatusOK}, obs.statuses)
}

func TestPool_OneClientPerHost(t *testing.T) {
	registry := remote.NewRegistry()
	cfg := fastConfig("", 0)
	cfg.Registry = registry
	pool := remote.NewPool(cfg)

	a := pool.For("a.example.com")
	assert.Same(t, a, pool.For("a.example.com"))
	assert.NotSame(t, a, pool.For("b.example.com"))
	assert.Equal(t, "a.example.com", a.Name())
	assert.Equal(t, 2, registry.Len())
}

func TestPool_ProbeRejectsNonHTTP(t *testing.T) {
	pool := remote.NewPool(fastConfig("", 0))

	_, err := pool.Probe(context.Background(), "file:///artifacts/fw.swu")
	assert.Error(t, err)
}

func TestDefaultReadyToTrip(t *testing.T) {
	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"not enough requests", gobreaker.Counts{Requests: 4, TotalFailures: 4}, false},
		{"low failure rate", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"high failure rate", gobreaker.Counts{Requests: 10, TotalFailures: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remote.DefaultReadyToTrip(tt.counts))
		})
	}
}

func TestClient_DigestFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old.swu", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.swu", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new.swu", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	hash, size, err := remote.NewClient(fastConfig("artifacts", 0)).Digest(context.Background(), server.URL+"/old.swu")
	require.NoError(t, err)
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", hash)
	assert.Equal(t, int64(5), size)
}

func TestClient_DigestNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, _, err := remote.NewClient(fastConfig("artifacts", 0)).Digest(context.Background(), server.URL)
	assert.ErrorIs(t, err, remote.ErrNotAvailable)
}
