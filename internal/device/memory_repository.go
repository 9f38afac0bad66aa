package device

import (
	"context"
	"sort"
	"sync"

	"github.com/otafleet/otafleet/internal/database"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Writes made inside a database.MemoryTransactor are reverted on rollback.
type InMemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[string]*Device),
	}
}

// Get retrieves a device by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return copyDevice(d), nil
}

// Create stores a newly registered device. Creating an existing device
// overwrites it.
func (r *InMemoryRepository) Create(ctx context.Context, device *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.devices[device.ID]
	r.devices[device.ID] = copyDevice(device)
	database.OnRollback(ctx, func() { r.restore(device.ID, prev, existed) })
	return nil
}

// Update replaces an existing device record.
func (r *InMemoryRepository) Update(ctx context.Context, device *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.devices[device.ID]
	if !ok {
		return ErrDeviceNotFound
	}
	r.devices[device.ID] = copyDevice(device)
	database.OnRollback(ctx, func() { r.restore(device.ID, prev, true) })
	return nil
}

// List retrieves all devices ordered by ID.
func (r *InMemoryRepository) List(_ context.Context) ([]*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		items = append(items, copyDevice(d))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *InMemoryRepository) restore(id string, prev *Device, existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existed {
		r.devices[id] = prev
		return
	}
	delete(r.devices, id)
}

var _ Repository = (*InMemoryRepository)(nil)
