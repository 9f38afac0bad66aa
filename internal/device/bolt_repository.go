package device

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/otafleet/otafleet/internal/database"
)

// BoltRepository is a bbolt implementation of Repository.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository creates a new bbolt device repository.
func NewBoltRepository(db *bolt.DB) *BoltRepository {
	return &BoltRepository{db: db}
}

// Get retrieves a device by ID.
func (r *BoltRepository) Get(ctx context.Context, id string) (*Device, error) {
	var device *Device
	err := database.BoltView(ctx, r.db, func(tx *bolt.Tx) error {
		data := tx.Bucket(database.BucketDevices).Get([]byte(id))
		if data == nil {
			return ErrDeviceNotFound
		}
		device = &Device{}
		return database.Unmarshal(data, device)
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

// Create stores a newly registered device.
func (r *BoltRepository) Create(ctx context.Context, device *Device) error {
	return database.BoltUpdate(ctx, r.db, func(tx *bolt.Tx) error {
		return put(tx, device)
	})
}

// Update replaces an existing device record.
func (r *BoltRepository) Update(ctx context.Context, device *Device) error {
	return database.BoltUpdate(ctx, r.db, func(tx *bolt.Tx) error {
		if tx.Bucket(database.BucketDevices).Get([]byte(device.ID)) == nil {
			return ErrDeviceNotFound
		}
		return put(tx, device)
	})
}

// List retrieves all devices ordered by ID. bbolt keeps keys sorted.
func (r *BoltRepository) List(ctx context.Context) ([]*Device, error) {
	var devices []*Device
	err := database.BoltView(ctx, r.db, func(tx *bolt.Tx) error {
		return tx.Bucket(database.BucketDevices).ForEach(func(_, v []byte) error {
			var device Device
			if err := database.Unmarshal(v, &device); err != nil {
				return err
			}
			devices = append(devices, &device)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func put(tx *bolt.Tx, device *Device) error {
	data, err := database.Marshal(device)
	if err != nil {
		return fmt.Errorf("encode device %s: %w", device.ID, err)
	}
	return tx.Bucket(database.BucketDevices).Put([]byte(device.ID), data)
}

var _ Repository = (*BoltRepository)(nil)
