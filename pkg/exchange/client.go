package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hpark/ledgerdex/pkg/chain"
)

// NodeClient is the exchange's only way of touching ledger state. Keeping
// it this narrow means the exchange never needs to reach into a Node's
// internals or its lock: every settlement is just a transaction.
//
// Implementations must never be called while the caller holds the
// exchange's own book lock and also hold the node's lock at the same
// time as a second, independent acquisition; the fixed order throughout
// this package is exchange lock first, then whatever lock Transfer's
// implementation takes internally.
type NodeClient interface {
	Transfer(ctx context.Context, sender, recipient chain.Address, amount int64, token chain.TokenType) (chain.Transaction, error)
	Balance(addr chain.Address) chain.Balances
}

// InProcessClient adapts a local *node.Node into a NodeClient without a
// network hop, for a single binary running both the ledger and the
// exchange.
type InProcessClient struct {
	AddTx   func(tx chain.Transaction) (chain.Transaction, error)
	GetBal  func(addr chain.Address) chain.Balances
}

func (c *InProcessClient) Transfer(_ context.Context, sender, recipient chain.Address, amount int64, token chain.TokenType) (chain.Transaction, error) {
	return c.AddTx(chain.Transaction{Sender: sender, Recipient: recipient, Amount: amount, TokenType: token})
}

func (c *InProcessClient) Balance(addr chain.Address) chain.Balances {
	return c.GetBal(addr)
}

// HTTPClient talks to a remote node over the same REST API an external
// client would use, a thin HTTP wrapper around wallet and transaction
// endpoints.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{BaseURL: baseURL, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (c *HTTPClient) Transfer(ctx context.Context, sender, recipient chain.Address, amount int64, token chain.TokenType) (chain.Transaction, error) {
	body, err := json.Marshal(map[string]any{
		"sender":     sender,
		"recipient":  recipient,
		"amount":     amount,
		"token_type": token,
	})
	if err != nil {
		return chain.Transaction{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/transactions/new", bytes.NewReader(body))
	if err != nil {
		return chain.Transaction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return chain.Transaction{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return chain.Transaction{}, fmt.Errorf("exchange: node returned status %d", resp.StatusCode)
	}

	var tx chain.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return chain.Transaction{}, err
	}
	return tx, nil
}

func (c *HTTPClient) Balance(addr chain.Address) chain.Balances {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+"/balance/"+string(addr), nil)
	if err != nil {
		return chain.Balances{}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return chain.Balances{}
	}
	defer resp.Body.Close()

	var out struct {
		Balances map[string]int64 `json:"balances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return chain.Balances{}
	}
	return chain.Balances{Main: out.Balances["MAIN"], Secondary: out.Balances["SECOND"]}
}
