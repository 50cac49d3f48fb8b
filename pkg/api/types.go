package api

import "github.com/hpark/ledgerdex/pkg/chain"

type chainResponse struct {
	Chain  []chain.Block `json:"chain"`
	Length int           `json:"length"`
}

type newTransactionRequest struct {
	Sender    chain.Address    `json:"sender"`
	Recipient chain.Address    `json:"recipient"`
	Amount    int64            `json:"amount"`
	TokenType chain.TokenType  `json:"token_type"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type registerNodesRequest struct {
	Nodes any `json:"nodes"` // either []string or a "a,b,c" csv string
}

type registerNodesResponse struct {
	Message     string   `json:"message"`
	TotalNodes  []string `json:"total_nodes"`
}

type nodesResponse struct {
	Nodes []string `json:"nodes"`
}

type newWalletResponse struct {
	Address chain.Address `json:"address"`
	Message string        `json:"message"`
}

type balanceResponse struct {
	Address  chain.Address    `json:"address"`
	Balances map[string]int64 `json:"balances"`
}

type addOrderRequest struct {
	Addr  chain.Address `json:"addr"`
	Size  int64         `json:"size"`
	Price int64         `json:"price"`
	Buy   bool          `json:"buy"`
}

type addOrderResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

type cancelOrderRequest struct {
	ID string `json:"id"`
}

type cancelOrderResponse struct {
	Status string `json:"status"`
}
