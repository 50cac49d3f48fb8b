package exchange

import (
	"testing"

	"github.com/hpark/ledgerdex/pkg/chain"
)

func newTestOrder(id string, side Side, price, size int64, owner chain.Address, tif TimeInForce) *Order {
	escrow := price * size
	if side == Sell {
		escrow = size
	}
	return &Order{ID: id, Side: side, Price: price, Size: size, Owner: owner, TIF: tif, EscrowRemaining: escrow}
}

func TestOrderBookTimePriorityWithinLevel(t *testing.T) {
	book := NewOrderBook()
	book.Place(newTestOrder("bid-1", Buy, 100, 5, "a", GTC))
	book.Place(newTestOrder("bid-2", Buy, 100, 5, "b", GTC))

	fills, closed := book.Place(newTestOrder("ask-1", Sell, 100, 5, "c", GTC))
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].BuyOrderID != "bid-1" {
		t.Fatalf("expected the earlier resting order (bid-1) to fill first, got %s", fills[0].BuyOrderID)
	}
	if len(closed) != 2 {
		t.Fatalf("expected both the incoming ask and the filled bid to close, got %d", len(closed))
	}
}

func TestOrderBookNoCrossLeavesBothSidesResting(t *testing.T) {
	book := NewOrderBook()
	book.Place(newTestOrder("bid-1", Buy, 101, 7, "q", GTC))
	fills, _ := book.Place(newTestOrder("ask-1", Sell, 102, 4, "r", GTC))
	if len(fills) != 0 {
		t.Fatalf("orders that do not cross should not fill, got %d fills", len(fills))
	}
	if _, ok := book.BestBid(); !ok {
		t.Fatal("expected a resting bid")
	}
	if _, ok := book.BestAsk(); !ok {
		t.Fatal("expected a resting ask")
	}
}

func TestOrderBookIOCDropsUnfilledRemainder(t *testing.T) {
	book := NewOrderBook()
	book.Place(newTestOrder("ask-1", Sell, 100, 2, "r", GTC))

	fills, closed := book.Place(newTestOrder("ioc-buy", Buy, 100, 5, "q", IOC))
	if len(fills) != 1 || fills[0].Size != 2 {
		t.Fatalf("expected a single partial fill of size 2, got %+v", fills)
	}
	if _, ok := book.index["ioc-buy"]; ok {
		t.Fatal("IOC order must not rest in the book")
	}

	var iocClosed *ClosedOrder
	for i := range closed {
		if closed[i].ID == "ioc-buy" {
			iocClosed = &closed[i]
		}
	}
	if iocClosed == nil {
		t.Fatal("expected the IOC order's leftover to be reported as closed")
	}
	if iocClosed.Refund != 300 {
		t.Fatalf("IOC leftover refund = %d, want 300 (3 unfilled units at price 100)", iocClosed.Refund)
	}
}

func TestOrderBookCancelPrunesEmptyLevel(t *testing.T) {
	book := NewOrderBook()
	book.Place(newTestOrder("bid-1", Buy, 100, 5, "q", GTC))
	if _, err := book.Cancel("bid-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, ok := book.BestBid(); ok {
		t.Fatal("expected the price level to be pruned after canceling its only order")
	}
}

func TestOrderBookCancelUnknownID(t *testing.T) {
	book := NewOrderBook()
	if _, err := book.Cancel("missing"); err == nil {
		t.Fatal("expected an error canceling an unknown order id")
	}
}
