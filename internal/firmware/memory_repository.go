package firmware

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	firmware map[string]*Firmware
	hardware map[string]*Hardware
}

// NewInMemoryRepository creates a new in-memory firmware repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		firmware: make(map[string]*Firmware),
		hardware: make(map[string]*Hardware),
	}
}

// Create stores a new firmware record.
func (r *InMemoryRepository) Create(_ context.Context, fw *Firmware) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range fw.HardwareIDs {
		if _, ok := r.hardware[id]; !ok {
			return ErrHardwareNotFound
		}
	}

	r.firmware[fw.ID] = copyFirmware(fw)
	return nil
}

// Get retrieves a firmware record by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Firmware, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.firmware[id]
	if !ok {
		return nil, ErrFirmwareNotFound
	}
	return copyFirmware(f), nil
}

// GetByURI retrieves a firmware record by artifact URI.
func (r *InMemoryRepository) GetByURI(_ context.Context, uri string) (*Firmware, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.firmware {
		if f.URI == uri {
			return copyFirmware(f), nil
		}
	}
	return nil, ErrFirmwareNotFound
}

// List retrieves all firmware records, oldest first.
func (r *InMemoryRepository) List(_ context.Context) ([]*Firmware, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Firmware, 0, len(r.firmware))
	for _, f := range r.firmware {
		items = append(items, copyFirmware(f))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// Delete removes a firmware record.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.firmware[id]; !ok {
		return ErrFirmwareNotFound
	}
	delete(r.firmware, id)
	return nil
}

// GetOrCreateHardware returns the matching hardware, storing hw if none exists.
func (r *InMemoryRepository) GetOrCreateHardware(_ context.Context, hw *Hardware) (*Hardware, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.hardware {
		if h.Model == hw.Model && h.Revision == hw.Revision {
			cpy := *h
			return &cpy, nil
		}
	}

	stored := *hw
	r.hardware[hw.ID] = &stored
	cpy := stored
	return &cpy, nil
}

// GetHardware retrieves a hardware class by ID.
func (r *InMemoryRepository) GetHardware(_ context.Context, id string) (*Hardware, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hardware[id]
	if !ok {
		return nil, ErrHardwareNotFound
	}
	cpy := *h
	return &cpy, nil
}

// ListHardware retrieves all hardware classes ordered by model and revision.
func (r *InMemoryRepository) ListHardware(_ context.Context) ([]*Hardware, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Hardware, 0, len(r.hardware))
	for _, h := range r.hardware {
		cpy := *h
		items = append(items, &cpy)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].String() < items[j].String()
	})
	return items, nil
}

var _ Repository = (*InMemoryRepository)(nil)
