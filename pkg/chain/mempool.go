package chain

import "fmt"

// Mempool is an unordered multiset of transactions awaiting inclusion in a
// block. It carries no lock of its own: all mutation and reads of a node's
// chain+mempool pair are serialized by the owning Node's single coarse
// lock, so a second lock here would only invite deadlock.
type Mempool struct {
	pending []Transaction
}

func NewMempool() *Mempool {
	return &Mempool{}
}

func (m *Mempool) Add(tx Transaction) {
	m.pending = append(m.pending, tx)
}

func (m *Mempool) Len() int {
	return len(m.pending)
}

// Snapshot returns a copy of the pending transactions, safe for the caller
// to sort or otherwise mutate independently of the mempool.
func (m *Mempool) Snapshot() []Transaction {
	out := make([]Transaction, len(m.pending))
	copy(out, m.pending)
	return out
}

// Clear empties the mempool, used after a block is forged or the chain is
// replaced wholesale during reconciliation.
func (m *Mempool) Clear() {
	m.pending = nil
}

// EvictIncluded removes every pending transaction that appears in a newly
// committed block, matched either by transaction_id or, failing that, by
// canonical content.
func (m *Mempool) EvictIncluded(block Block) {
	ids := make(map[string]struct{}, len(block.Transactions))
	contents := make(map[string]struct{}, len(block.Transactions))
	for _, tx := range block.Transactions {
		if tx.TransactionID != "" {
			ids[tx.TransactionID] = struct{}{}
		}
		contents[contentKey(tx)] = struct{}{}
	}

	kept := m.pending[:0:0]
	for _, tx := range m.pending {
		evict := false
		if tx.TransactionID != "" {
			if _, ok := ids[tx.TransactionID]; ok {
				evict = true
			}
		} else if _, ok := contents[contentKey(tx)]; ok {
			evict = true
		}
		if !evict {
			kept = append(kept, tx)
		}
	}
	m.pending = kept
}

// contentKey identifies a transaction by its non-ID fields, used when a
// transaction carries no transaction_id.
func contentKey(tx Transaction) string {
	return fmt.Sprintf("%s|%s|%s|%d|%v", tx.Sender, tx.Recipient, tx.TokenType, tx.Amount, tx.Timestamp)
}
