package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Block is an immutable record of one round of the ledger: an index, a
// timestamp, its ordered transactions, a link to the previous block, the
// validator that produced it, and its own content hash.
type Block struct {
	Index        int64         `json:"index"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previous_hash"`
	Validator    Address       `json:"validator"`
	Hash         string        `json:"hash"`
}

// GenesisValidator and GenesisPreviousHash are the two fixed genesis
// sentinel values every node computes independently.
const (
	GenesisValidator    Address = "Genesis"
	GenesisPreviousHash         = "0"
)

// Genesis returns the canonical genesis block: index 0, timestamp 0 exactly,
// no transactions. Its hash is a pure function of that tuple, so every node
// that builds Genesis() independently gets the byte-identical block.
func Genesis() Block {
	b := Block{
		Index:        0,
		Timestamp:    0,
		Transactions: nil,
		PreviousHash: GenesisPreviousHash,
		Validator:    GenesisValidator,
	}
	b.Hash = ComputeHash(b)
	return b
}

// sortedTransactions returns a copy of txs in canonical order: ascending
// timestamp, ties broken by (transaction_id, sender, recipient, amount,
// token_type) so that every node applies the same total order when hashing.
func sortedTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if a.TransactionID != b.TransactionID {
			return a.TransactionID < b.TransactionID
		}
		if a.Sender != b.Sender {
			return a.Sender < b.Sender
		}
		if a.Recipient != b.Recipient {
			return a.Recipient < b.Recipient
		}
		if a.Amount != b.Amount {
			return a.Amount < b.Amount
		}
		return a.TokenType < b.TokenType
	})
	return out
}

// canonicalTxMap renders a transaction as a map so encoding/json's
// documented "map keys are sorted" behavior gives us lexicographic key
// order for free, at this level of nesting too.
func canonicalTxMap(tx Transaction) map[string]any {
	return map[string]any{
		"amount":         tx.Amount,
		"recipient":      tx.Recipient,
		"sender":         tx.Sender,
		"timestamp":      tx.Timestamp,
		"token_type":     tx.TokenType,
		"transaction_id": tx.TransactionID,
	}
}

// canonicalBlockMap builds the hash input as a map tree (never a struct) so
// every nesting level is emitted with lexicographically sorted keys by
// encoding/json, with transactions pre-sorted into a deterministic total
// order.
func canonicalBlockMap(b Block) map[string]any {
	sorted := sortedTransactions(b.Transactions)
	txMaps := make([]map[string]any, len(sorted))
	for i, tx := range sorted {
		txMaps[i] = canonicalTxMap(tx)
	}
	return map[string]any{
		"index":         b.Index,
		"previous_hash": b.PreviousHash,
		"timestamp":     b.Timestamp,
		"transactions":  txMaps,
		"validator":     b.Validator,
	}
}

// CanonicalBytes returns the exact byte string that ComputeHash digests,
// exposed for tests that want to assert byte-for-byte determinism across
// independently constructed Blocks.
func CanonicalBytes(b Block) []byte {
	// json.Marshal never fails on this map tree: every value is a string,
	// number, or slice/map thereof.
	out, _ := json.Marshal(canonicalBlockMap(b))
	return out
}

// ComputeHash returns the hex-encoded SHA-256 digest of b's canonical
// encoding. It ignores b.Hash itself, so it is safe to call on a Block
// whose Hash field is already populated.
func ComputeHash(b Block) string {
	sum := sha256.Sum256(CanonicalBytes(b))
	return hex.EncodeToString(sum[:])
}
