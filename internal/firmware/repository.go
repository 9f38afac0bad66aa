package firmware

import "context"

// Repository defines the interface for firmware and hardware persistence.
type Repository interface {
	// Create stores a new firmware record with its hardware compatibility.
	Create(ctx context.Context, fw *Firmware) error

	// Get retrieves a firmware record by ID.
	Get(ctx context.Context, id string) (*Firmware, error)

	// GetByURI retrieves a firmware record by artifact URI.
	GetByURI(ctx context.Context, uri string) (*Firmware, error)

	// List retrieves all firmware records, oldest first.
	List(ctx context.Context) ([]*Firmware, error)

	// Delete removes a firmware record.
	Delete(ctx context.Context, id string) error

	// GetOrCreateHardware returns the hardware matching hw's model and
	// revision, storing hw when none exists.
	GetOrCreateHardware(ctx context.Context, hw *Hardware) (*Hardware, error)

	// GetHardware retrieves a hardware class by ID.
	GetHardware(ctx context.Context, id string) (*Hardware, error)

	// ListHardware retrieves all hardware classes.
	ListHardware(ctx context.Context) ([]*Hardware, error)
}
