// Package chain implements the replicated block/transaction ledger: the
// block and transaction types, canonical hashing, chain validation, balance
// computation, and the pending-transaction mempool.
package chain

// Address is an opaque ledger participant identifier. No structural
// constraint is placed on it; wallet-key cryptography is out of scope.
type Address string

// FaucetAddress mints tokens without a balance check.
const FaucetAddress Address = "0"

// MarketAddress is the reserved escrow account used by the exchange.
const MarketAddress Address = "MARKET_ADDR"

// TokenType is one of the two tokens a Transaction may move. The wire
// representation for the secondary token is the short form "SECOND", to
// match the HTTP API's balances object byte-for-byte.
type TokenType string

const (
	Main      TokenType = "MAIN"
	Secondary TokenType = "SECOND"
)

// Valid reports whether t is one of the two known tokens.
func (t TokenType) Valid() bool {
	return t == Main || t == Secondary
}

// Transaction moves amount of token_type from sender to recipient.
type Transaction struct {
	Sender        Address   `json:"sender"`
	Recipient     Address   `json:"recipient"`
	Amount        int64     `json:"amount"`
	TokenType     TokenType `json:"token_type"`
	Timestamp     float64   `json:"timestamp"`
	TransactionID string    `json:"transaction_id"`
}

// Valid reports whether tx satisfies the structural invariants required
// for inclusion in a block: positive integral amount, known token type.
func (tx Transaction) Valid() bool {
	return tx.Amount > 0 && tx.TokenType.Valid()
}
