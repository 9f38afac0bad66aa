package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names.
var (
	BucketFirmware = []byte("firmware")
	BucketHardware = []byte("hardware")
	BucketDevices  = []byte("devices")
	BucketRollouts = []byte("rollouts")
)

// OpenBolt opens (or creates) the bbolt file at path and ensures all
// buckets exist.
func OpenBolt(path string) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{BucketFirmware, BucketHardware, BucketDevices, BucketRollouts} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

type boltTxKey struct{}

// BoltTransactor is a Transactor backed by a bbolt writable transaction.
type BoltTransactor struct {
	db *bolt.DB
}

// NewBoltTransactor creates a new BoltTransactor.
func NewBoltTransactor(db *bolt.DB) *BoltTransactor {
	return &BoltTransactor{db: db}
}

// WithinTx runs fn inside a single bbolt Update, or joins the one carried by ctx.
func (t *BoltTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(boltTxKey{}).(*bolt.Tx); ok {
		return fn(ctx)
	}
	return t.db.Update(func(tx *bolt.Tx) error {
		return fn(context.WithValue(ctx, boltTxKey{}, tx))
	})
}

// BoltUpdate runs fn in the writable transaction carried by ctx, or in a
// new one. bbolt allows a single writer, so repositories must never open
// a nested Update while a transaction is in flight.
func BoltUpdate(ctx context.Context, db *bolt.DB, fn func(tx *bolt.Tx) error) error {
	if tx, ok := ctx.Value(boltTxKey{}).(*bolt.Tx); ok {
		return fn(tx)
	}
	return db.Update(fn)
}

// BoltView runs fn against the transaction carried by ctx, or a new read-only one.
func BoltView(ctx context.Context, db *bolt.DB, fn func(tx *bolt.Tx) error) error {
	if tx, ok := ctx.Value(boltTxKey{}).(*bolt.Tx); ok {
		return fn(tx)
	}
	return db.View(fn)
}

var _ Transactor = (*BoltTransactor)(nil)
