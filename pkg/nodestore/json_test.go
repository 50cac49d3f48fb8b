package nodestore

import (
	"testing"

	"github.com/hpark/ledgerdex/pkg/chain"
)

func TestJSONFileLoadMissingFileReturnsNotOK(t *testing.T) {
	f := NewJSONFile(t.TempDir(), "5000")
	snap, ok, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("Load of a never-saved file should report ok=false")
	}
	if snap.Chain != nil {
		t.Fatalf("Load of a missing file should return a zero Snapshot, got %+v", snap)
	}
}

func TestJSONFileSaveLoadRoundTrip(t *testing.T) {
	f := NewJSONFile(t.TempDir(), "5000")
	want := Snapshot{
		Chain:               []chain.Block{chain.Genesis()},
		PendingTransactions: []chain.Transaction{{Sender: chain.FaucetAddress, Recipient: "alice", Amount: 10, TokenType: chain.Main, TransactionID: "tx1"}},
		Nodes:               []string{"127.0.0.1:5001"},
		Stakes:              map[string]int64{"127.0.0.1:5000": 100},
		KnownWallets:        []string{"alice"},
	}
	if err := f.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load after Save should report ok=true")
	}
	if len(got.Chain) != 1 || got.Chain[0].Hash != want.Chain[0].Hash {
		t.Fatalf("Chain round-trip mismatch: got %+v, want %+v", got.Chain, want.Chain)
	}
	if len(got.PendingTransactions) != 1 || got.PendingTransactions[0].TransactionID != "tx1" {
		t.Fatalf("PendingTransactions round-trip mismatch: got %+v", got.PendingTransactions)
	}
	if len(got.Nodes) != 1 || got.Nodes[0] != "127.0.0.1:5001" {
		t.Fatalf("Nodes round-trip mismatch: got %+v", got.Nodes)
	}
	if got.Stakes["127.0.0.1:5000"] != 100 {
		t.Fatalf("Stakes round-trip mismatch: got %+v", got.Stakes)
	}
	if len(got.KnownWallets) != 1 || got.KnownWallets[0] != "alice" {
		t.Fatalf("KnownWallets round-trip mismatch: got %+v", got.KnownWallets)
	}
}

func TestJSONFileSaveOverwritesPreviousContent(t *testing.T) {
	f := NewJSONFile(t.TempDir(), "5000")
	first := Snapshot{Chain: []chain.Block{chain.Genesis()}, Stakes: map[string]int64{}}
	if err := f.Save(first); err != nil {
		t.Fatalf("Save (first): %v", err)
	}

	second := Snapshot{
		Chain:  []chain.Block{chain.Genesis()},
		Nodes:  []string{"127.0.0.1:6000"},
		Stakes: map[string]int64{},
	}
	if err := f.Save(second); err != nil {
		t.Fatalf("Save (second): %v", err)
	}

	got, ok, err := f.Load()
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if len(got.Nodes) != 1 || got.Nodes[0] != "127.0.0.1:6000" {
		t.Fatalf("expected the second save to fully replace the file, got nodes %+v", got.Nodes)
	}
}
