package device

import "context"

// Repository defines the interface for device persistence.
type Repository interface {
	// Get retrieves a device by ID.
	Get(ctx context.Context, id string) (*Device, error)

	// Create stores a newly registered device.
	Create(ctx context.Context, device *Device) error

	// Update replaces an existing device record.
	Update(ctx context.Context, device *Device) error

	// List retrieves all devices ordered by ID.
	List(ctx context.Context) ([]*Device, error)
}
