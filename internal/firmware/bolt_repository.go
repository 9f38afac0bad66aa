package firmware

import (
	"context"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/otafleet/otafleet/internal/database"
)

// BoltRepository is a bbolt implementation of Repository.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository creates a new bbolt firmware repository.
func NewBoltRepository(db *bolt.DB) *BoltRepository {
	return &BoltRepository{db: db}
}

// Create stores a new firmware record.
func (r *BoltRepository) Create(ctx context.Context, fw *Firmware) error {
	return database.BoltUpdate(ctx, r.db, func(tx *bolt.Tx) error {
		hw := tx.Bucket(database.BucketHardware)
		for _, id := range fw.HardwareIDs {
			if hw.Get([]byte(id)) == nil {
				return ErrHardwareNotFound
			}
		}
		return putRecord(tx.Bucket(database.BucketFirmware), fw.ID, fw)
	})
}

// Get retrieves a firmware record by ID.
func (r *BoltRepository) Get(ctx context.Context, id string) (*Firmware, error) {
	var fw *Firmware
	err := database.BoltView(ctx, r.db, func(tx *bolt.Tx) error {
		data := tx.Bucket(database.BucketFirmware).Get([]byte(id))
		if data == nil {
			return ErrFirmwareNotFound
		}
		fw = &Firmware{}
		return database.Unmarshal(data, fw)
	})
	if err != nil {
		return nil, err
	}
	return fw, nil
}

// GetByURI retrieves a firmware record by artifact URI.
func (r *BoltRepository) GetByURI(ctx context.Context, uri string) (*Firmware, error) {
	items, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range items {
		if f.URI == uri {
			return f, nil
		}
	}
	return nil, ErrFirmwareNotFound
}

// List retrieves all firmware records, oldest first.
func (r *BoltRepository) List(ctx context.Context) ([]*Firmware, error) {
	var items []*Firmware
	err := database.BoltView(ctx, r.db, func(tx *bolt.Tx) error {
		return tx.Bucket(database.BucketFirmware).ForEach(func(_, v []byte) error {
			var fw Firmware
			if err := database.Unmarshal(v, &fw); err != nil {
				return err
			}
			items = append(items, &fw)
			return nil
		})
	})
	if err != nil {
		return nil, err
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
func (r *BoltRepository) Delete(ctx context.Context, id string) error {
	return database.BoltUpdate(ctx, r.db, func(tx *bolt.Tx) error {
		b := tx.Bucket(database.BucketFirmware)
		if b.Get([]byte(id)) == nil {
			return ErrFirmwareNotFound
		}
		return b.Delete([]byte(id))
	})
}

// GetOrCreateHardware returns the matching hardware, storing hw if none exists.
func (r *BoltRepository) GetOrCreateHardware(ctx context.Context, hw *Hardware) (*Hardware, error) {
	var out *Hardware
	err := database.BoltUpdate(ctx, r.db, func(tx *bolt.Tx) error {
		b := tx.Bucket(database.BucketHardware)
		err := b.ForEach(func(_, v []byte) error {
			var existing Hardware
			if err := database.Unmarshal(v, &existing); err != nil {
				return err
			}
			if out == nil && existing.Model == hw.Model && existing.Revision == hw.Revision {
				out = &existing
			}
			return nil
		})
		if err != nil || out != nil {
			return err
		}

		stored := *hw
		out = &stored
		return putRecord(b, hw.ID, hw)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetHardware retrieves a hardware class by ID.
func (r *BoltRepository) GetHardware(ctx context.Context, id string) (*Hardware, error) {
	var hw *Hardware
	err := database.BoltView(ctx, r.db, func(tx *bolt.Tx) error {
		data := tx.Bucket(database.BucketHardware).Get([]byte(id))
		if data == nil {
			return ErrHardwareNotFound
		}
		hw = &Hardware{}
		return database.Unmarshal(data, hw)
	})
	if err != nil {
		return nil, err
	}
	return hw, nil
}

// ListHardware retrieves all hardware classes ordered by model and revision.
func (r *BoltRepository) ListHardware(ctx context.Context) ([]*Hardware, error) {
	var items []*Hardware
	err := database.BoltView(ctx, r.db, func(tx *bolt.Tx) error {
		return tx.Bucket(database.BucketHardware).ForEach(func(_, v []byte) error {
			var hw Hardware
			if err := database.Unmarshal(v, &hw); err != nil {
				return err
			}
			items = append(items, &hw)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].String() < items[j].String()
	})
	return items, nil
}

func putRecord(b *bolt.Bucket, key string, v any) error {
	data, err := database.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.Put([]byte(key), data)
}

var _ Repository = (*BoltRepository)(nil)
