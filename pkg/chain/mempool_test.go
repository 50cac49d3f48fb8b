package chain

import "testing"

func TestMempoolEvictIncludedByTransactionID(t *testing.T) {
	m := NewMempool()
	tx1 := Transaction{TransactionID: "a", Sender: "x", Recipient: "y", Amount: 1, TokenType: Main}
	tx2 := Transaction{TransactionID: "b", Sender: "x", Recipient: "y", Amount: 2, TokenType: Main}
	m.Add(tx1)
	m.Add(tx2)

	m.EvictIncluded(Block{Transactions: []Transaction{tx1}})

	remaining := m.Snapshot()
	if len(remaining) != 1 || remaining[0].TransactionID != "b" {
		t.Fatalf("expected only tx %q to remain, got %+v", "b", remaining)
	}
}

func TestMempoolEvictIncludedByContentWhenIDMissing(t *testing.T) {
	m := NewMempool()
	tx := Transaction{Sender: "x", Recipient: "y", Amount: 1, TokenType: Main, Timestamp: 1}
	m.Add(tx)

	m.EvictIncluded(Block{Transactions: []Transaction{tx}})

	if m.Len() != 0 {
		t.Fatalf("expected content-matched transaction to be evicted, mempool len = %d", m.Len())
	}
}

func TestMempoolClear(t *testing.T) {
	m := NewMempool()
	m.Add(Transaction{TransactionID: "a"})
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("expected empty mempool after Clear, got len %d", m.Len())
	}
}
