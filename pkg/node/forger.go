package node

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hpark/ledgerdex/pkg/chain"
	"github.com/hpark/ledgerdex/pkg/util"
)

// Broadcaster pushes a freshly forged block to every known peer. The
// gossip package provides the concrete HTTP implementation; tests can
// substitute a no-op or recording stub.
type Broadcaster interface {
	BroadcastBlock(ctx context.Context, peers []string, block chain.Block)
}

// Forger runs the periodic block-production loop: on every tick it asks
// the node to draw a validator and, only when that draw selects this node
// and the mempool is non-empty, forges and broadcasts a block. Most ticks
// on most nodes produce nothing, which is expected and does not affect the
// interval; the interval only backs off after a genuine forging error, so
// a persistently broken node doesn't spin.
type Forger struct {
	node    *Node
	bcast   Broadcaster
	clock   util.Clock
	log     *zap.Logger
	normal  time.Duration
	backoff time.Duration
}

func NewForger(n *Node, bcast Broadcaster, clock util.Clock, log *zap.Logger, normal, backoff time.Duration) *Forger {
	return &Forger{node: n, bcast: bcast, clock: clock, log: log, normal: normal, backoff: backoff}
}

// Run blocks until ctx is cancelled, forging blocks on the configured
// interval.
func (f *Forger) Run(ctx context.Context) {
	interval := f.normal
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.clock.After(interval):
		}

		block, err := f.node.CreateBlock()
		switch {
		case errors.Is(err, ErrEmptyMempool), errors.Is(err, ErrNotElected):
			interval = f.normal
			continue
		case err != nil:
			if f.log != nil {
				f.log.Warn("forging failed, backing off", zap.Error(err))
			}
			interval = f.backoff
			continue
		}
		interval = f.normal

		if f.bcast != nil {
			f.bcast.BroadcastBlock(ctx, f.node.Peers(), block)
		}
	}
}
