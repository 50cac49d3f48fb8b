package exchange

import (
	"context"
	"fmt"
	"testing"

	"github.com/hpark/ledgerdex/pkg/chain"
)

// ledgerStub is a minimal in-memory NodeClient used to exercise escrow and
// settlement behavior without a real Node.
type ledgerStub struct {
	balances map[chain.Address]chain.Balances
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{balances: make(map[chain.Address]chain.Balances)}
}

func (l *ledgerStub) credit(addr chain.Address, token chain.TokenType, amount int64) {
	b := l.balances[addr]
	if token == chain.Main {
		b.Main += amount
	} else {
		b.Secondary += amount
	}
	l.balances[addr] = b
}

func (l *ledgerStub) Transfer(_ context.Context, sender, recipient chain.Address, amount int64, token chain.TokenType) (chain.Transaction, error) {
	if sender != chain.FaucetAddress {
		have := l.balances[sender]
		bal := have.Main
		if token == chain.Secondary {
			bal = have.Secondary
		}
		if bal < amount {
			return chain.Transaction{}, fmt.Errorf("insufficient %s balance for %s", token, sender)
		}
	}
	if sender != chain.FaucetAddress {
		l.credit(sender, token, -amount)
	}
	l.credit(recipient, token, amount)
	return chain.Transaction{Sender: sender, Recipient: recipient, Amount: amount, TokenType: token}, nil
}

func (l *ledgerStub) Balance(addr chain.Address) chain.Balances {
	return l.balances[addr]
}

func TestPlaceOrderEscrowsFunds(t *testing.T) {
	ledger := newLedgerStub()
	ledger.credit("q", chain.Main, 10_000)
	ex := New(ledger, nil)

	order, fills, err := ex.PlaceOrder(context.Background(), "q", Buy, 100, 5, GTC)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(fills) != 0 {
		t.Fatalf("expected no fills against an empty book, got %d", len(fills))
	}
	if order.EscrowRemaining != 500 {
		t.Fatalf("escrow remaining = %d, want 500", order.EscrowRemaining)
	}
	if got := ledger.Balance("q").Main; got != 9_500 {
		t.Fatalf("buyer MAIN balance = %d, want 9500", got)
	}
	if got := ledger.Balance(chain.MarketAddress).Main; got != 500 {
		t.Fatalf("market MAIN balance = %d, want 500", got)
	}
}

func TestCancelRefundsEscrow(t *testing.T) {
	ledger := newLedgerStub()
	ledger.credit("q", chain.Main, 10_000)
	ex := New(ledger, nil)

	order, _, err := ex.PlaceOrder(context.Background(), "q", Buy, 100, 7, GTC)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if _, err := ex.CancelOrder(context.Background(), order.ID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if got := ledger.Balance("q").Main; got != 10_000 {
		t.Fatalf("buyer MAIN balance after cancel = %d, want 10000 (full refund)", got)
	}
}

// TestTwoRestingBidsCancelThenCrossingAskFillsAtMakerPrice walks a book
// through two resting buys that don't cross a sell, a cancel with a full
// refund, then a sell that crosses and fills one resting buy at the
// resting (maker) price.
func TestTwoRestingBidsCancelThenCrossingAskFillsAtMakerPrice(t *testing.T) {
	ledger := newLedgerStub()
	ledger.credit("q", chain.Main, 10_000)
	ledger.credit("q", chain.Secondary, 10_000)
	ledger.credit("r", chain.Main, 10_000)
	ledger.credit("r", chain.Secondary, 10_000)
	ledger.credit(chain.MarketAddress, chain.Main, 1_000_000)
	ledger.credit(chain.MarketAddress, chain.Secondary, 1_000_000)

	ex := New(ledger, nil)

	buy1, _, err := ex.PlaceOrder(context.Background(), "q", Buy, 100, 5, GTC)
	if err != nil {
		t.Fatalf("buy1: %v", err)
	}
	buy2, _, err := ex.PlaceOrder(context.Background(), "q", Buy, 101, 7, GTC)
	if err != nil {
		t.Fatalf("buy2: %v", err)
	}
	_, fills, err := ex.PlaceOrder(context.Background(), "r", Sell, 102, 4, GTC)
	if err != nil {
		t.Fatalf("sell (no cross): %v", err)
	}
	if len(fills) != 0 {
		t.Fatalf("sell at 102 should not cross best bid 101, got %d fills", len(fills))
	}

	if _, err := ex.CancelOrder(context.Background(), buy2.ID); err != nil {
		t.Fatalf("cancel buy2: %v", err)
	}
	if got := ledger.Balance("q").Main; got != 10_000-500 {
		t.Fatalf("q MAIN after cancel = %d, want %d", got, 10_000-500)
	}

	_, fills, err = ex.PlaceOrder(context.Background(), "r", Sell, 100, 5, GTC)
	if err != nil {
		t.Fatalf("crossing sell: %v", err)
	}
	if len(fills) != 1 {
		t.Fatalf("expected exactly one fill, got %d", len(fills))
	}
	f := fills[0]
	if f.Price != 100 || f.Size != 5 {
		t.Fatalf("fill = %+v, want price 100 size 5 (maker price)", f)
	}
	if f.Buyer != "q" || f.Seller != "r" {
		t.Fatalf("fill participants = %+v", f)
	}

	if _, ok := ex.BestBid(); ok {
		t.Fatal("bid book should be empty after buy1 fully fills")
	}
	_ = buy1
}
