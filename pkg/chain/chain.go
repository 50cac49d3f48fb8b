package chain

import "fmt"

// Chain is a non-empty ordered sequence of Blocks, index 0 always the
// canonical genesis block.
type Chain struct {
	Blocks []Block
}

// New returns a fresh Chain containing only the genesis block.
func New() *Chain {
	return &Chain{Blocks: []Block{Genesis()}}
}

// FromBlocks wraps an already-validated block list (e.g. loaded from a
// snapshot, or adopted during reconciliation). Callers must validate
// separately; this constructor does not.
func FromBlocks(blocks []Block) *Chain {
	return &Chain{Blocks: blocks}
}

func (c *Chain) Last() Block {
	return c.Blocks[len(c.Blocks)-1]
}

func (c *Chain) Len() int {
	return len(c.Blocks)
}

// Append adds b to the chain without validation; callers are expected to
// have validated b (via the receive pipeline or by having just built it).
func (c *Chain) Append(b Block) {
	c.Blocks = append(c.Blocks, b)
}

// Balances holds the per-token balance of one address.
type Balances struct {
	Main      int64
	Secondary int64
}

// Balance folds the committed chain from block 0 upward. The mempool is
// never consulted. Transactions with a non-positive amount or an unknown
// token type are skipped; such blocks should already have been rejected by
// validation, so this is a defensive fallback, not the primary enforcement
// point.
func (c *Chain) Balance(addr Address) Balances {
	var bal Balances
	for _, block := range c.Blocks {
		for _, tx := range block.Transactions {
			if !tx.Valid() {
				continue
			}
			if tx.Recipient == addr {
				addAmount(&bal, tx.TokenType, tx.Amount)
			}
			if tx.Sender == addr {
				addAmount(&bal, tx.TokenType, -tx.Amount)
			}
		}
	}
	return bal
}

func addAmount(bal *Balances, token TokenType, amount int64) {
	switch token {
	case Main:
		bal.Main += amount
	case Secondary:
		bal.Secondary += amount
	}
}

// Valid checks genesis shape, then for every subsequent block the index,
// previous-hash link, recomputed hash, and every contained transaction's
// amount/token-type invariants.
func Valid(blocks []Block) error {
	if len(blocks) == 0 {
		return fmt.Errorf("chain: empty")
	}

	genesis := blocks[0]
	if genesis.Index != 0 {
		return fmt.Errorf("chain: genesis index must be 0, got %d", genesis.Index)
	}
	if genesis.PreviousHash != GenesisPreviousHash {
		return fmt.Errorf("chain: genesis previous_hash must be %q", GenesisPreviousHash)
	}
	if ComputeHash(genesis) != genesis.Hash {
		return fmt.Errorf("chain: genesis hash mismatch")
	}

	for i := 1; i < len(blocks); i++ {
		cur, prev := blocks[i], blocks[i-1]
		if cur.Index != int64(i) {
			return fmt.Errorf("chain: block %d has index %d", i, cur.Index)
		}
		if cur.PreviousHash != prev.Hash {
			return fmt.Errorf("chain: block %d previous_hash mismatch", i)
		}
		if ComputeHash(cur) != cur.Hash {
			return fmt.Errorf("chain: block %d hash mismatch", i)
		}
		for _, tx := range cur.Transactions {
			if !tx.Valid() {
				return fmt.Errorf("chain: block %d contains invalid transaction %s", i, tx.TransactionID)
			}
		}
	}
	return nil
}

// Valid reports whether the receiver's current blocks satisfy Valid.
func (c *Chain) Valid() error {
	return Valid(c.Blocks)
}
