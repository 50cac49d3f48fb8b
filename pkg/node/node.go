// Package node implements the central replicated-ledger node: chain state,
// mempool, stake registry, and peer set behind one coarse lock, with
// snapshot persistence and the longest-valid-chain reconciliation rule.
package node

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hpark/ledgerdex/pkg/chain"
	"github.com/hpark/ledgerdex/pkg/nodestore"
	"github.com/hpark/ledgerdex/pkg/peerset"
	"github.com/hpark/ledgerdex/pkg/stake"
)

// Node owns one node's entire replicated state. Every exported method that
// touches chain, mempool, stakes, or wallets takes mu, so a caller never
// observes a torn read across those four collections. The exchange package
// talks to a Node only through the narrower NodeClient interface and must
// never acquire mu itself while holding its own book lock, to keep lock
// order (exchange -> node) fixed.
type Node struct {
	mu sync.RWMutex

	id      string
	chain   *chain.Chain
	mempool *chain.Mempool
	stakes  *stake.Registry
	peers   *peerset.Set
	wallets map[chain.Address]struct{}

	store  nodestore.Snapshotter
	log    *zap.Logger
	rng    *rand.Rand
}

// New constructs a Node, restoring from store if a prior snapshot exists,
// or starting fresh with only the genesis block and a default self-stake
// otherwise. peers is the initial peer list from configuration or the
// command line.
func New(id string, peers []string, store nodestore.Snapshotter, log *zap.Logger) (*Node, error) {
	n := &Node{
		id:      peerset.Normalize(id),
		peers:   peerset.New(id),
		stakes:  stake.New(),
		wallets: make(map[chain.Address]struct{}),
		store:   store,
		log:     log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	n.wallets[chain.FaucetAddress] = struct{}{}
	n.wallets[chain.MarketAddress] = struct{}{}

	if store != nil {
		snap, ok, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("node: load snapshot: %w", err)
		}
		if ok {
			n.restore(snap)
			return n, nil
		}
	}

	n.chain = chain.New()
	n.mempool = chain.NewMempool()
	n.stakes.EnsureDefault(chain.Address(n.id), stake.DefaultSelfStake)
	for _, p := range peers {
		n.addPeerLocked(p)
	}
	if err := n.persistLocked(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) restore(snap nodestore.Snapshot) {
	blocks := snap.Chain
	if len(blocks) == 0 {
		blocks = []chain.Block{chain.Genesis()}
	}
	n.chain = chain.FromBlocks(blocks)
	n.mempool = chain.NewMempool()
	for _, tx := range snap.PendingTransactions {
		n.mempool.Add(tx)
	}
	for addr, weight := range snap.Stakes {
		n.stakes.Set(chain.Address(addr), weight)
	}
	n.stakes.EnsureDefault(chain.Address(n.id), stake.DefaultSelfStake)
	for _, p := range snap.Nodes {
		n.addPeerLocked(p)
	}
	for _, w := range snap.KnownWallets {
		n.wallets[chain.Address(w)] = struct{}{}
	}
}

func (n *Node) ID() string { return n.id }

// addPeerLocked registers id as both a gossip peer and a default-staked
// validator candidate. Callers must hold mu.
func (n *Node) addPeerLocked(id string) bool {
	added := n.peers.Add(id)
	if added {
		n.stakes.EnsureDefault(chain.Address(peerset.Normalize(id)), stake.DefaultPeerStake)
	}
	return added
}

// RegisterPeer adds id to the peer set and stake registry, persisting the
// change. Returns whether it was newly added.
func (n *Node) RegisterPeer(id string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	added := n.addPeerLocked(id)
	if added {
		if err := n.persistLocked(); err != nil {
			return added, err
		}
	}
	return added, nil
}

func (n *Node) Peers() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.peers.List()
}

// CreateWallet mints a fresh address with no presumed balance.
func (n *Node) CreateWallet() (chain.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	addr := chain.Address(uuid.NewString())
	n.wallets[addr] = struct{}{}
	if err := n.persistLocked(); err != nil {
		return "", err
	}
	return addr, nil
}

func (n *Node) Balance(addr chain.Address) chain.Balances {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.chain.Balance(addr)
}

// Chain returns a copy of the committed block list.
func (n *Node) Chain() []chain.Block {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]chain.Block, len(n.chain.Blocks))
	copy(out, n.chain.Blocks)
	return out
}

func (n *Node) PendingTransactions() []chain.Transaction {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.mempool.Snapshot()
}

// AddTransaction validates and admits tx to the mempool. A missing
// transaction_id is minted here. The faucet address is exempt from the
// balance check; every other sender must already hold at least amount of
// token_type on the committed chain (pending transactions are not
// double-counted against it).
func (n *Node) AddTransaction(tx chain.Transaction) (chain.Transaction, error) {
	if !tx.TokenType.Valid() {
		return tx, fmt.Errorf("node: unknown token_type %q", tx.TokenType)
	}
	if tx.Amount <= 0 {
		return tx, fmt.Errorf("node: amount must be positive")
	}
	if tx.TransactionID == "" {
		tx.TransactionID = uuid.NewString()
	}
	if tx.Timestamp == 0 {
		tx.Timestamp = float64(time.Now().UnixNano()) / 1e9
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if tx.Sender != chain.FaucetAddress {
		bal := n.chain.Balance(tx.Sender)
		have := bal.Main
		if tx.TokenType == chain.Secondary {
			have = bal.Secondary
		}
		if have < tx.Amount {
			return tx, fmt.Errorf("node: sender %s has insufficient %s balance", tx.Sender, tx.TokenType)
		}
	}

	n.mempool.Add(tx)
	n.wallets[tx.Sender] = struct{}{}
	n.wallets[tx.Recipient] = struct{}{}
	if err := n.persistLocked(); err != nil {
		return tx, err
	}
	return tx, nil
}

// NextBlockIndex returns the index the next forged block will carry,
// the value the /transactions/new handler reports to callers.
func (n *Node) NextBlockIndex() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.chain.Last().Index + 1
}

// ErrEmptyMempool and ErrNotElected are the two ordinary "nothing to forge
// this tick" outcomes of CreateBlock: there was no transaction to seal, or
// the stake-weighted draw picked a different validator. Neither indicates a
// problem with the node, so callers (the forger loop) must not treat them
// as forging failures.
var (
	ErrEmptyMempool = errors.New("node: mempool empty, nothing to forge")
	ErrNotElected   = errors.New("node: not the elected validator this round")
)

// CreateBlock draws a validator by stake weight and, only if that draw
// selects this node and the mempool holds at least one pending
// transaction, seals the mempool into a new block extending the local
// chain. Returns ErrEmptyMempool or ErrNotElected for the two cases where
// no block is produced, or an error if the stake registry is empty.
func (n *Node) CreateBlock() (chain.Block, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.mempool.Len() == 0 {
		return chain.Block{}, ErrEmptyMempool
	}

	validator, ok := n.stakes.Select(n.rng)
	if !ok {
		return chain.Block{}, fmt.Errorf("node: no staked validator available")
	}
	if validator != chain.Address(n.id) {
		return chain.Block{}, ErrNotElected
	}

	last := n.chain.Last()
	block := chain.Block{
		Index:        last.Index + 1,
		Timestamp:    float64(time.Now().UnixNano()) / 1e9,
		Transactions: n.mempool.Snapshot(),
		PreviousHash: last.Hash,
		Validator:    validator,
	}
	block.Hash = chain.ComputeHash(block)

	n.chain.Append(block)
	n.mempool.Clear()
	if err := n.persistLocked(); err != nil {
		return block, err
	}
	if n.log != nil {
		n.log.Info("forged block",
			zap.Int64("index", block.Index),
			zap.String("validator", string(block.Validator)),
			zap.Int("tx_count", len(block.Transactions)),
		)
	}
	return block, nil
}

// ErrStaleBlock, ErrOutOfOrderBlock, ErrPrevHashMismatch, and
// ErrBlockHashMismatch are the sentinel rejection reasons ReceiveBlock can
// report; the HTTP layer surfaces their messages verbatim. A block holding
// an invalid transaction is rejected with a separate, non-sentinel error.
var (
	ErrStaleBlock       = errors.New("old block")
	ErrOutOfOrderBlock  = errors.New("out of order block")
	ErrPrevHashMismatch = errors.New("Previous hash mismatch")
	ErrBlockHashMismatch = errors.New("block hash mismatch")
)

// ReceiveBlock accepts a block broadcast by a peer if it validly extends
// the current chain tip. Transactions it contains are evicted from the
// local mempool. A block far ahead of the local tip is rejected with
// ErrOutOfOrderBlock; callers should treat that as a signal to run
// reconciliation rather than a permanent rejection.
func (n *Node) ReceiveBlock(b chain.Block) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	last := n.chain.Last()
	if b.Index <= last.Index {
		return ErrStaleBlock
	}
	if b.Index > last.Index+1 {
		return ErrOutOfOrderBlock
	}
	if b.PreviousHash != last.Hash {
		return ErrPrevHashMismatch
	}
	if chain.ComputeHash(b) != b.Hash {
		return ErrBlockHashMismatch
	}
	for _, tx := range b.Transactions {
		if !tx.Valid() {
			return fmt.Errorf("node: block contains invalid transaction %s", tx.TransactionID)
		}
	}

	n.chain.Append(b)
	n.mempool.EvictIncluded(b)
	return n.persistLocked()
}

// ResolveConflicts implements longest-valid-chain reconciliation: among
// the candidate chains fetched from peers, the local chain is replaced by
// the longest one that validates, strictly longer than the local chain. A
// tie leaves the local chain untouched. Returns whether the chain changed.
func (n *Node) ResolveConflicts(candidates map[string][]chain.Block) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	best := n.chain.Blocks
	replaced := false
	for peerID, blocks := range candidates {
		if len(blocks) <= len(best) {
			continue
		}
		if err := chain.Valid(blocks); err != nil {
			if n.log != nil {
				n.log.Warn("rejected peer chain", zap.String("peer", peerID), zap.Error(err))
			}
			continue
		}
		best = blocks
		replaced = true
	}
	if !replaced {
		return false, nil
	}

	n.chain = chain.FromBlocks(best)
	n.mempool.Clear()
	if err := n.persistLocked(); err != nil {
		return true, err
	}
	if n.log != nil {
		n.log.Info("adopted longer chain", zap.Int("length", len(best)))
	}
	return true, nil
}

func (n *Node) Snapshot() nodestore.Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.snapshotLocked()
}

func (n *Node) snapshotLocked() nodestore.Snapshot {
	wallets := make([]string, 0, len(n.wallets))
	for w := range n.wallets {
		wallets = append(wallets, string(w))
	}
	stakes := n.stakes.Snapshot()
	stakesOut := make(map[string]int64, len(stakes))
	for addr, w := range stakes {
		stakesOut[string(addr)] = w
	}
	return nodestore.Snapshot{
		Chain:               n.chain.Blocks,
		PendingTransactions: n.mempool.Snapshot(),
		Nodes:               n.peers.List(),
		Stakes:              stakesOut,
		KnownWallets:        wallets,
	}
}

func (n *Node) persistLocked() error {
	if n.store == nil {
		return nil
	}
	if err := n.store.Save(n.snapshotLocked()); err != nil {
		return fmt.Errorf("node: persist snapshot: %w", err)
	}
	return nil
}
