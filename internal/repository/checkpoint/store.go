// Package checkpoint persists ingestion progress in a local bbolt file
// so an interrupted run can resume after its last committed batch.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kailas-cloud/neuralquery/internal/domain"
)

var bucketRuns = []byte("ingest_runs")

// Store is a bbolt-backed checkpoint ledger keyed by collection.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens or creates the ledger at path. It waits up to one second for
// another process holding the file.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRuns); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketRuns, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the checkpoint for collection; found is false when none exists.
func (s *Store) Get(collection string) (cp domain.IngestCheckpoint, found bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get([]byte(collection))
		if data == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(data, &cp); err != nil {
			return fmt.Errorf("decode checkpoint %s: %w", collection, err)
		}
		return nil
	})
	return cp, found, err
}

// Put stores e, stamping UpdatedAt.
func (s *Store) Put(e domain.IngestCheckpoint) error {
	if e.Collection == "" {
		return errors.New("checkpoint: collection is required")
	}
	e.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", e.Collection, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).Put([]byte(e.Collection), data)
	})
}

// Delete removes the entry for collection. Missing entries are ignored.
func (s *Store) Delete(collection string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).Delete([]byte(collection))
	})
}
