package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hpark/ledgerdex/pkg/chain"
)

// Trade is a settled fill, kept in memory and returned by Trades.
type Trade struct {
	Price  int64
	Size   int64
	Buyer  chain.Address
	Seller chain.Address
}

// Exchange wires an OrderBook to ledger settlement: every order placement
// escrows funds into MarketAddress first, every fill pays out of it, and
// every cancellation refunds whatever is still held in escrow.
type Exchange struct {
	mu     sync.Mutex
	book   *OrderBook
	client NodeClient
	log    *zap.Logger
	trades []Trade
}

func New(client NodeClient, log *zap.Logger) *Exchange {
	return &Exchange{book: NewOrderBook(), client: client, log: log}
}

// escrowAmount returns the amount and token a side/price/size order must
// lock in MarketAddress before it can enter the book: a buy locks
// price*size of MAIN, a sell locks size of SECOND.
func escrowAmount(side Side, price, size int64) (int64, chain.TokenType) {
	if side == Buy {
		return price * size, chain.Main
	}
	return size, chain.Secondary
}

// PlaceOrder escrows funds, matches the order against the book, settles
// every resulting fill, and refunds the leftover escrow of every order
// that stopped resting (a fully filled order, or an IOC order's dropped
// remainder). If the escrow transfer is rejected, the order never enters
// the book and nothing was escrowed, so nothing is refunded. It holds the
// exchange's own lock for the whole operation to keep escrow, matching,
// and settlement atomic from the caller's point of view; it never
// acquires any lock belonging to the NodeClient's implementation itself,
// only calls its exported methods, so lock order (exchange -> node) can
// never invert.
func (e *Exchange) PlaceOrder(ctx context.Context, owner chain.Address, side Side, price, size int64, tif TimeInForce) (*Order, []Fill, error) {
	if price <= 0 || size <= 0 {
		return nil, nil, fmt.Errorf("exchange: price and size must be positive")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	escrow, token := escrowAmount(side, price, size)
	if _, err := e.client.Transfer(ctx, owner, chain.MarketAddress, escrow, token); err != nil {
		return nil, nil, fmt.Errorf("exchange: escrow failed: %w", err)
	}

	order := &Order{
		ID:              uuid.NewString(),
		Side:            side,
		Price:           price,
		Size:            size,
		Owner:           owner,
		TIF:             tif,
		EscrowRemaining: escrow,
	}
	fills, closed := e.book.Place(order)

	for _, f := range fills {
		e.settle(ctx, f)
	}
	for _, c := range closed {
		e.refund(ctx, c)
	}

	return order, fills, nil
}

// refund returns a closed order's leftover escrow to its owner: MAIN for a
// buy (covers any price improvement it received), SECOND for a sell (zero
// for a fully filled sell, whose escrow is consumed unit for unit; positive
// for an IOC sell's dropped remainder).
func (e *Exchange) refund(ctx context.Context, c ClosedOrder) {
	if c.Refund <= 0 {
		return
	}
	token := chain.Main
	if c.Side == Sell {
		token = chain.Secondary
	}
	if _, err := e.client.Transfer(ctx, chain.MarketAddress, c.Owner, c.Refund, token); err != nil && e.log != nil {
		e.log.Error("exchange: escrow refund failed", zap.String("order_id", c.ID), zap.Error(err))
	}
}

// settle pays a fill out of escrow: the buyer's locked MAIN goes to the
// seller, the seller's locked SECOND goes to the buyer.
func (e *Exchange) settle(ctx context.Context, f Fill) {
	notional := f.Price * f.Size
	if _, err := e.client.Transfer(ctx, chain.MarketAddress, f.Seller, notional, chain.Main); err != nil && e.log != nil {
		e.log.Error("exchange: settlement payout (MAIN) failed", zap.Error(err))
	}
	if _, err := e.client.Transfer(ctx, chain.MarketAddress, f.Buyer, f.Size, chain.Secondary); err != nil && e.log != nil {
		e.log.Error("exchange: settlement payout (SECOND) failed", zap.Error(err))
	}
	e.trades = append(e.trades, Trade{Price: f.Price, Size: f.Size, Buyer: f.Buyer, Seller: f.Seller})
}

// CancelOrder removes a resting order and refunds its unused escrow.
func (e *Exchange) CancelOrder(ctx context.Context, id string) (*Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.book.Cancel(id)
	if err != nil {
		return nil, err
	}
	if o.EscrowRemaining > 0 {
		token := chain.Main
		if o.Side == Sell {
			token = chain.Secondary
		}
		if _, err := e.client.Transfer(ctx, chain.MarketAddress, o.Owner, o.EscrowRemaining, token); err != nil {
			return o, fmt.Errorf("exchange: cancel refund failed: %w", err)
		}
	}
	return o, nil
}

func (e *Exchange) BidLevels() []Level { return e.book.BidLevels() }
func (e *Exchange) AskLevels() []Level { return e.book.AskLevels() }

func (e *Exchange) BestBid() (int64, bool) { return e.book.BestBid() }
func (e *Exchange) BestAsk() (int64, bool) { return e.book.BestAsk() }
func (e *Exchange) LastPrice() (int64, bool) { return e.book.LastPrice() }

func (e *Exchange) Trades() []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// FundMarket pre-funds MarketAddress from the faucet so early trades have
// real liquidity to settle against, instead of failing on an empty escrow
// account at genesis.
func FundMarket(ctx context.Context, client NodeClient, amountMain, amountSecond int64) error {
	if _, err := client.Transfer(ctx, chain.FaucetAddress, chain.MarketAddress, amountMain, chain.Main); err != nil {
		return fmt.Errorf("exchange: fund market MAIN: %w", err)
	}
	if _, err := client.Transfer(ctx, chain.FaucetAddress, chain.MarketAddress, amountSecond, chain.Secondary); err != nil {
		return fmt.Errorf("exchange: fund market SECOND: %w", err)
	}
	return nil
}
