package exchange

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/hpark/ledgerdex/pkg/chain"
)

// OrderBook is a price-time-priority limit order book: a max-heap of bid
// price levels, a min-heap of ask price levels, each level a FIFO queue of
// orders, plus an index from order ID to the resting order for
// cancellation. The index lookup is O(1); removing the order from its
// price level's queue is a linear scan of that queue. Every exported
// method takes the book's own lock; Exchange additionally serializes
// whole operations with its lock.
type OrderBook struct {
	mu sync.Mutex

	bidHeap maxPriceHeap
	askHeap minPriceHeap
	bids    map[int64][]*Order
	asks    map[int64][]*Order
	index   map[string]*Order

	nextSeq   int64
	lastPrice int64
	hasLast   bool
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:  make(map[int64][]*Order),
		asks:  make(map[int64][]*Order),
		index: make(map[string]*Order),
	}
}

// Place matches o against the resting book and returns every fill it
// produced, plus every order (including o itself) that stopped resting as
// a result and needs its leftover escrow refunded. A GTC order with
// remaining size after matching is inserted into the book; an IOC order's
// remainder is reported as closed instead, for the caller to refund.
//
// o.EscrowRemaining must already be set by the caller to the full escrow
// locked for this order before Place is called.
func (b *OrderBook) Place(o *Order) ([]Fill, []ClosedOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	o.Seq = b.nextSeq
	o.Remaining = o.Size

	var fills []Fill
	var closed []ClosedOrder
	if o.Side == Buy {
		fills, closed = b.matchIncoming(o, &b.askHeap, b.asks, func(restPrice int64) bool { return o.Price >= restPrice })
	} else {
		fills, closed = b.matchIncoming(o, &b.bidHeap, b.bids, func(restPrice int64) bool { return o.Price <= restPrice })
	}

	switch {
	case o.Remaining == 0:
		closed = append(closed, closeOrder(o))
	case o.TIF == GTC:
		b.insert(o)
	default: // IOC with a leftover remainder: drop it, refund what's left.
		closed = append(closed, closeOrder(o))
	}
	return fills, closed
}

func closeOrder(o *Order) ClosedOrder {
	return ClosedOrder{ID: o.ID, Owner: o.Owner, Side: o.Side, Refund: o.EscrowRemaining}
}

// matchIncoming repeatedly takes the best level on the opposite side while
// crosses returns true for that level's price, filling FIFO within it.
// Every fill debits the buy's EscrowRemaining by the traded notional (not
// its own limit price) and the sell's by the traded size, so a buy that
// receives price improvement keeps a positive balance in EscrowRemaining
// until refunded.
func (b *OrderBook) matchIncoming(incoming *Order, oppHeap heap.Interface, oppLevels map[int64][]*Order, crosses func(price int64) bool) ([]Fill, []ClosedOrder) {
	var fills []Fill
	var closed []ClosedOrder
	for incoming.Remaining > 0 {
		price, ok := peekBest(oppHeap, oppLevels)
		if !ok || !crosses(price) {
			break
		}
		queue := oppLevels[price]
		for len(queue) > 0 && incoming.Remaining > 0 {
			resting := queue[0]
			size := min64(incoming.Remaining, resting.Remaining)

			var buyID, sellID string
			var buyOrder, sellOrder *Order
			var buyer, seller chain.Address
			if incoming.Side == Buy {
				buyID, sellID = incoming.ID, resting.ID
				buyOrder, sellOrder = incoming, resting
				buyer, seller = incoming.Owner, resting.Owner
			} else {
				buyID, sellID = resting.ID, incoming.ID
				buyOrder, sellOrder = resting, incoming
				buyer, seller = resting.Owner, incoming.Owner
			}
			fills = append(fills, Fill{
				BuyOrderID:  buyID,
				SellOrderID: sellID,
				Price:       price,
				Size:        size,
				Buyer:       buyer,
				Seller:      seller,
			})
			b.lastPrice, b.hasLast = price, true

			buyOrder.EscrowRemaining -= size * price
			sellOrder.EscrowRemaining -= size

			incoming.Remaining -= size
			resting.Remaining -= size
			if resting.Remaining == 0 {
				delete(b.index, resting.ID)
				closed = append(closed, closeOrder(resting))
				queue = queue[1:]
			}
		}
		if len(queue) == 0 {
			delete(oppLevels, price)
			heap.Pop(oppHeap)
		} else {
			oppLevels[price] = queue
		}
	}
	return fills, closed
}

// peekBest returns the best (top-of-heap) price that still has resting
// orders, lazily discarding stale heap entries for levels that were
// already emptied and removed from the map.
func peekBest(h heap.Interface, levels map[int64][]*Order) (int64, bool) {
	for h.Len() > 0 {
		var price int64
		switch typed := h.(type) {
		case *maxPriceHeap:
			price = (*typed)[0]
		case *minPriceHeap:
			price = (*typed)[0]
		}
		if _, ok := levels[price]; ok {
			return price, true
		}
		heap.Pop(h)
	}
	return 0, false
}

func (b *OrderBook) insert(o *Order) {
	b.index[o.ID] = o
	if o.Side == Buy {
		if _, exists := b.bids[o.Price]; !exists {
			heap.Push(&b.bidHeap, o.Price)
		}
		b.bids[o.Price] = append(b.bids[o.Price], o)
		return
	}
	if _, exists := b.asks[o.Price]; !exists {
		heap.Push(&b.askHeap, o.Price)
	}
	b.asks[o.Price] = append(b.asks[o.Price], o)
}

// Cancel removes a resting order by ID and returns it (with its
// as-of-cancellation EscrowRemaining) so the caller can refund escrow.
func (b *OrderBook) Cancel(id string) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.index[id]
	if !ok {
		return nil, fmt.Errorf("exchange: no resting order %s", id)
	}
	delete(b.index, id)

	levels := b.bids
	if o.Side == Sell {
		levels = b.asks
	}
	queue := levels[o.Price]
	for i, q := range queue {
		if q.ID == id {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		delete(levels, o.Price)
	} else {
		levels[o.Price] = queue
	}
	return o, nil
}

// Level is one price point's aggregate resting size, for display.
type Level struct {
	Price int64
	Size  int64
}

func (b *OrderBook) BidLevels() []Level { return b.levels(b.bids, true) }
func (b *OrderBook) AskLevels() []Level { return b.levels(b.asks, false) }

func (b *OrderBook) levels(m map[int64][]*Order, descending bool) []Level {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Level, 0, len(m))
	for price, queue := range m {
		var total int64
		for _, o := range queue {
			total += o.Remaining
		}
		out = append(out, Level{Price: price, Size: total})
	}
	sortLevels(out, descending)
	return out
}

func sortLevels(levels []Level, descending bool) {
	for i := 1; i < len(levels); i++ {
		for j := i; j > 0; j-- {
			less := levels[j].Price < levels[j-1].Price
			if descending {
				less = levels[j].Price > levels[j-1].Price
			}
			if !less {
				break
			}
			levels[j], levels[j-1] = levels[j-1], levels[j]
		}
	}
}

func (b *OrderBook) BestBid() (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return peekBest(&b.bidHeap, b.bids)
}

func (b *OrderBook) BestAsk() (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return peekBest(&b.askHeap, b.asks)
}

func (b *OrderBook) LastPrice() (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPrice, b.hasLast
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
