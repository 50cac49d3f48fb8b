package chain

import "testing"

func buildValidChain(t *testing.T) *Chain {
	t.Helper()
	c := New()
	tx := Transaction{Sender: FaucetAddress, Recipient: "alice", Amount: 100, TokenType: Main, Timestamp: 1, TransactionID: "tx1"}
	last := c.Last()
	next := Block{
		Index:        last.Index + 1,
		Timestamp:    2,
		Transactions: []Transaction{tx},
		PreviousHash: last.Hash,
		Validator:    "validator-1",
	}
	next.Hash = ComputeHash(next)
	c.Append(next)
	return c
}

func TestChainValidAcceptsWellFormedChain(t *testing.T) {
	c := buildValidChain(t)
	if err := c.Valid(); err != nil {
		t.Fatalf("expected valid chain, got %v", err)
	}
}

func TestChainValidRejectsBadPreviousHash(t *testing.T) {
	c := buildValidChain(t)
	c.Blocks[1].PreviousHash = "wrong"
	if err := c.Valid(); err == nil {
		t.Fatal("expected error for previous_hash mismatch")
	}
}

func TestChainValidRejectsTamperedHash(t *testing.T) {
	c := buildValidChain(t)
	c.Blocks[1].Transactions[0].Amount = 999
	if err := c.Valid(); err == nil {
		t.Fatal("expected error when a transaction is tampered without recomputing the hash")
	}
}

func TestBalanceFromFaucet(t *testing.T) {
	c := buildValidChain(t)
	bal := c.Balance("alice")
	if bal.Main != 100 {
		t.Fatalf("balance.Main = %d, want 100", bal.Main)
	}
	if bal.Secondary != 0 {
		t.Fatalf("balance.Secondary = %d, want 0", bal.Secondary)
	}
}

func TestBalanceConservation(t *testing.T) {
	c := New()
	last := c.Last()
	b := Block{
		Index:        last.Index + 1,
		Timestamp:    1,
		PreviousHash: last.Hash,
		Validator:    "v",
		Transactions: []Transaction{
			{Sender: FaucetAddress, Recipient: "alice", Amount: 100, TokenType: Main, Timestamp: 1, TransactionID: "1"},
			{Sender: "alice", Recipient: "bob", Amount: 40, TokenType: Main, Timestamp: 2, TransactionID: "2"},
		},
	}
	b.Hash = ComputeHash(b)
	c.Append(b)

	total := c.Balance("alice").Main + c.Balance("bob").Main
	if total != 100 {
		t.Fatalf("total balance = %d, want 100 (faucet mint)", total)
	}
}
