package rollout

import (
	"context"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/otafleet/otafleet/internal/database"
)

// BoltRepository is a bbolt implementation of Repository. bbolt runs one
// writer at a time, which makes counter read-modify-write safe.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository creates a new bbolt rollout repository.
func NewBoltRepository(db *bolt.DB) *BoltRepository {
	return &BoltRepository{db: db}
}

// Create stores a new rollout, taking Seq from the bucket sequence.
func (r *BoltRepository) Create(ctx context.Context, ro *Rollout) error {
	return database.BoltUpdate(ctx, r.db, func(tx *bolt.Tx) error {
		b := tx.Bucket(database.BucketRollouts)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		ro.Seq = int64(seq) //nolint:gosec // sequence stays far below MaxInt64
		return put(b, ro)
	})
}

// Get retrieves a rollout by ID.
func (r *BoltRepository) Get(ctx context.Context, id string) (*Rollout, error) {
	var ro *Rollout
	err := database.BoltView(ctx, r.db, func(tx *bolt.Tx) error {
		var err error
		ro, err = get(tx.Bucket(database.BucketRollouts), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ro, nil
}

// List retrieves all rollouts in creation order.
func (r *BoltRepository) List(ctx context.Context) ([]*Rollout, error) {
	var items []*Rollout
	err := database.BoltView(ctx, r.db, func(tx *bolt.Tx) error {
		return tx.Bucket(database.BucketRollouts).ForEach(func(_, v []byte) error {
			var ro Rollout
			if err := database.Unmarshal(v, &ro); err != nil {
				return err
			}
			items = append(items, &ro)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Seq < items[j].Seq })
	return items, nil
}

// SetPaused sets the pause flag on every listed rollout.
func (r *BoltRepository) SetPaused(ctx context.Context, ids []string, paused bool) error {
	return database.BoltUpdate(ctx, r.db, func(tx *bolt.Tx) error {
		b := tx.Bucket(database.BucketRollouts)

		items := make([]*Rollout, 0, len(ids))
		for _, id := range dedupe(ids) {
			ro, err := get(b, id)
			if err != nil {
				return err
			}
			items = append(items, ro)
		}
		for _, ro := range items {
			ro.Paused = paused
			if err := put(b, ro); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordOutcome increments the success or failure counter.
func (r *BoltRepository) RecordOutcome(ctx context.Context, id string, success bool) error {
	return database.BoltUpdate(ctx, r.db, func(tx *bolt.Tx) error {
		b := tx.Bucket(database.BucketRollouts)
		ro, err := get(b, id)
		if err != nil {
			return err
		}
		if success {
			ro.SuccessCount++
		} else {
			ro.FailureCount++
		}
		return put(b, ro)
	})
}

func get(b *bolt.Bucket, id string) (*Rollout, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, ErrRolloutNotFound
	}
	var ro Rollout
	if err := database.Unmarshal(data, &ro); err != nil {
		return nil, fmt.Errorf("decode rollout %s: %w", id, err)
	}
	return &ro, nil
}

func put(b *bolt.Bucket, ro *Rollout) error {
	data, err := database.Marshal(ro)
	if err != nil {
		return fmt.Errorf("encode rollout %s: %w", ro.ID, err)
	}
	return b.Put([]byte(ro.ID), data)
}

var _ Repository = (*BoltRepository)(nil)
