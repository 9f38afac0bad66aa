package remote

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// HostHealth is the health of one remote host.
type HostHealth struct {
	Name          string
	BreakerState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// IsHealthy reports a closed breaker.
func (h *HostHealth) IsHealthy() bool {
	return h.BreakerState == gobreaker.StateClosed
}

// IsDegraded reports a half-open breaker.
func (h *HostHealth) IsDegraded() bool {
	return h.BreakerState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports an open breaker.
func (h *HostHealth) IsUnhealthy() bool {
	return h.BreakerState == gobreaker.StateOpen
}

// Registry tracks clients and their recent outcomes.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*tracked
}

type tracked struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*tracked)}
}

// Register adds a client under name, replacing any previous one.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = &tracked{client: client}
}

// Unregister removes a client.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, name)
}

// RecordSuccess notes a successful request. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.clients[name]; ok {
		now := time.Now()
		t.lastSuccessAt = &now
	}
}

// RecordFailure notes a failed request. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.clients[name]; ok {
		now := time.Now()
		t.lastFailureAt = &now
		if err != nil {
			t.lastError = err.Error()
		}
	}
}

// Health returns the health of one client, nil if unknown.
func (r *Registry) Health(name string) *HostHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.clients[name]
	if !ok {
		return nil
	}
	return t.health(name)
}

// AllHealth returns the health of every client sorted by name.
func (r *Registry) AllHealth() []*HostHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*HostHealth, 0, len(r.clients))
	for name, t := range r.clients {
		out = append(out, t.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of tracked clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (t *tracked) health(name string) *HostHealth {
	return &HostHealth{
		Name:          name,
		BreakerState:  t.client.BreakerState(),
		Counts:        t.client.BreakerCounts(),
		LastSuccessAt: t.lastSuccessAt,
		LastFailureAt: t.lastFailureAt,
		LastError:     t.lastError,
	}
}
