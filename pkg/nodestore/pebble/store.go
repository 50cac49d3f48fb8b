// Package pebble adapts cockroachdb/pebble as an alternate Snapshotter,
// storing a node's latest snapshot as a single key in an embedded LSM-tree
// KV store instead of a flat JSON file.
package pebble

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/hpark/ledgerdex/pkg/nodestore"
)

var snapshotKey = []byte("snapshot")

// Store wraps a Pebble database holding exactly one logical record: the
// node's most recent Snapshot.
type Store struct {
	db *pebble.DB
}

// Open creates or reopens a Pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(snap nodestore.Snapshot) error {
	out, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("pebble: marshal snapshot: %w", err)
	}
	if err := s.db.Set(snapshotKey, out, pebble.Sync); err != nil {
		return fmt.Errorf("pebble: set snapshot: %w", err)
	}
	return nil
}

func (s *Store) Load() (nodestore.Snapshot, bool, error) {
	val, closer, err := s.db.Get(snapshotKey)
	if err == pebble.ErrNotFound {
		return nodestore.Snapshot{}, false, nil
	}
	if err != nil {
		return nodestore.Snapshot{}, false, fmt.Errorf("pebble: get snapshot: %w", err)
	}
	defer closer.Close()

	var snap nodestore.Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nodestore.Snapshot{}, false, fmt.Errorf("pebble: unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}
