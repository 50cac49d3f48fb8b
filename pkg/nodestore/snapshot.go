// Package nodestore defines the persisted snapshot shape for a node's
// entire state and a pluggable sink interface for writing it, with two
// concrete sinks: a JSON file (json.go) and a Pebble-backed key-value
// store (pebble/store.go).
package nodestore

import "github.com/hpark/ledgerdex/pkg/chain"

// Snapshot is the full on-disk representation of one node's state, laid
// out to match the node's own wire format byte-for-byte.
type Snapshot struct {
	Chain               []chain.Block        `json:"chain"`
	PendingTransactions []chain.Transaction  `json:"pending_transactions"`
	Nodes               []string             `json:"nodes"`
	Stakes              map[string]int64     `json:"stakes"`
	KnownWallets        []string             `json:"known_wallets"`
}

// Snapshotter persists a Snapshot. Implementations need not be
// concurrency-safe on their own; the caller (Node) already serializes
// access to the state being snapshotted.
type Snapshotter interface {
	Save(snap Snapshot) error
	Load() (Snapshot, bool, error)
}
