package rollout

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/otafleet/otafleet/internal/database"
)

type memRollout struct {
	rollout Rollout
	success atomic.Int64
	failure atomic.Int64
}

func (m *memRollout) snapshot() *Rollout {
	cpy := m.rollout
	cpy.SuccessCount = m.success.Load()
	cpy.FailureCount = m.failure.Load()
	return &cpy
}

// InMemoryRepository is an in-memory implementation of Repository.
// Counters are atomic, so outcome increments only take the read lock.
type InMemoryRepository struct {
	mu       sync.RWMutex
	rollouts map[string]*memRollout
	seq      int64
}

// NewInMemoryRepository creates a new in-memory rollout repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		rollouts: make(map[string]*memRollout),
	}
}

// Create stores a new rollout and assigns its Seq.
func (r *InMemoryRepository) Create(_ context.Context, ro *Rollout) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	ro.Seq = r.seq

	m := &memRollout{rollout: *ro}
	m.success.Store(ro.SuccessCount)
	m.failure.Store(ro.FailureCount)
	r.rollouts[ro.ID] = m
	return nil
}

// Get retrieves a rollout by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Rollout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.rollouts[id]
	if !ok {
		return nil, ErrRolloutNotFound
	}
	return m.snapshot(), nil
}

// List retrieves all rollouts in creation order.
func (r *InMemoryRepository) List(_ context.Context) ([]*Rollout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Rollout, 0, len(r.rollouts))
	for _, m := range r.rollouts {
		items = append(items, m.snapshot())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Seq < items[j].Seq })
	return items, nil
}

// SetPaused sets the pause flag on every listed rollout.
func (r *InMemoryRepository) SetPaused(_ context.Context, ids []string, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if _, ok := r.rollouts[id]; !ok {
			return ErrRolloutNotFound
		}
	}
	for _, id := range ids {
		r.rollouts[id].rollout.Paused = paused
	}
	return nil
}

// RecordOutcome atomically increments the success or failure counter.
func (r *InMemoryRepository) RecordOutcome(ctx context.Context, id string, success bool) error {
	r.mu.RLock()
	m, ok := r.rollouts[id]
	r.mu.RUnlock()
	if !ok {
		return ErrRolloutNotFound
	}

	counter := &m.failure
	if success {
		counter = &m.success
	}
	counter.Add(1)
	database.OnRollback(ctx, func() { counter.Add(-1) })
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
