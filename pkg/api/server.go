// Package api exposes a node's HTTP surface: chain inspection, transaction
// and block submission, peer registration, reconciliation, wallet
// creation, balance queries, and the exchange's order endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/hpark/ledgerdex/pkg/chain"
	"github.com/hpark/ledgerdex/pkg/exchange"
	"github.com/hpark/ledgerdex/pkg/gossip"
	"github.com/hpark/ledgerdex/pkg/node"
)

// Server is the HTTP front door for one node plus its co-located
// exchange.
type Server struct {
	node     *node.Node
	exchange *exchange.Exchange
	gossip   *gossip.Client
	log      *zap.Logger
	hub      *Hub

	router *mux.Router
}

func NewServer(n *node.Node, ex *exchange.Exchange, gs *gossip.Client, log *zap.Logger) *Server {
	s := &Server{
		node:     n,
		exchange: ex,
		gossip:   gs,
		log:      log,
		hub:      newHub(),
	}
	s.router = mux.NewRouter()
	s.setupRoutes()
	go s.hub.run()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/chain", s.handleGetChain).Methods(http.MethodGet)
	s.router.HandleFunc("/transactions/new", s.handleNewTransaction).Methods(http.MethodPost)
	s.router.HandleFunc("/nodes/register", s.handleRegisterNodes).Methods(http.MethodPost)
	s.router.HandleFunc("/nodes/get", s.handleGetNodes).Methods(http.MethodGet)
	s.router.HandleFunc("/resolve", s.handleResolve).Methods(http.MethodGet)
	s.router.HandleFunc("/receive_block", s.handleReceiveBlock).Methods(http.MethodPost)
	s.router.HandleFunc("/wallet/new", s.handleNewWallet).Methods(http.MethodPost)
	s.router.HandleFunc("/balance/{addr}", s.handleGetBalance).Methods(http.MethodGet)
	s.router.HandleFunc("/add_order", s.handleAddOrder).Methods(http.MethodPost)
	s.router.HandleFunc("/cancel_order", s.handleCancelOrder).Methods(http.MethodPost)
	s.router.HandleFunc("/ws", s.handleWebsocket)
}

// Handler returns the fully wrapped handler (routes + CORS) for use with
// an http.Server.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, messageResponse{Message: message})
}

func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	blocks := s.node.Chain()
	respondJSON(w, http.StatusOK, chainResponse{Chain: blocks, Length: len(blocks)})
}

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request) {
	var req newTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.TokenType == "" {
		req.TokenType = chain.Main
	}
	if req.Sender == "" || req.Recipient == "" {
		respondMessage(w, http.StatusBadRequest, "sender and recipient are required")
		return
	}

	_, err := s.node.AddTransaction(chain.Transaction{
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		TokenType: req.TokenType,
	})
	if err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	respondMessage(w, http.StatusCreated, "Transaction will be added to block "+strconv.FormatInt(s.node.NextBlockIndex(), 10))
}

func (s *Server) handleRegisterNodes(w http.ResponseWriter, r *http.Request) {
	var req registerNodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var ids []string
	switch v := req.Nodes.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ids = append(ids, part)
			}
		}
	case []any:
		for _, item := range v {
			if str, ok := item.(string); ok && str != "" {
				ids = append(ids, str)
			}
		}
	}
	if len(ids) == 0 {
		respondMessage(w, http.StatusBadRequest, "no valid nodes supplied")
		return
	}

	for _, id := range ids {
		if _, err := s.node.RegisterPeer(id); err != nil && s.log != nil {
			s.log.Warn("register peer failed", zap.String("peer", id), zap.Error(err))
		}
	}
	respondJSON(w, http.StatusCreated, registerNodesResponse{
		Message:    "New nodes have been added",
		TotalNodes: s.node.Peers(),
	})
}

func (s *Server) handleGetNodes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, nodesResponse{Nodes: s.node.Peers()})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	message := s.resolve(r.Context())
	respondMessage(w, http.StatusOK, message)
}

func (s *Server) resolve(ctx context.Context) string {
	peers := s.node.Peers()
	if len(peers) == 0 || s.gossip == nil {
		return "Our chain is authoritative"
	}
	candidates := s.gossip.FetchChains(ctx, peers)
	replaced, err := s.node.ResolveConflicts(candidates)
	if err != nil {
		if s.log != nil {
			s.log.Warn("resolve conflicts", zap.Error(err))
		}
		return "Our chain is authoritative"
	}
	if replaced {
		return "Our chain was replaced"
	}
	return "Our chain is authoritative"
}

func (s *Server) handleReceiveBlock(w http.ResponseWriter, r *http.Request) {
	var b chain.Block
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		respondMessage(w, http.StatusBadRequest, "malformed block")
		return
	}

	err := s.node.ReceiveBlock(b)
	switch {
	case err == nil:
		s.hub.broadcastBlock(b)
		respondMessage(w, http.StatusOK, "Block accepted")
	case errors.Is(err, node.ErrOutOfOrderBlock):
		go s.resolve(context.Background())
		respondMessage(w, http.StatusBadRequest, err.Error())
	default:
		respondMessage(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) handleNewWallet(w http.ResponseWriter, r *http.Request) {
	addr, err := s.node.CreateWallet()
	if err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, newWalletResponse{Address: addr, Message: "New wallet created"})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	addr := chain.Address(mux.Vars(r)["addr"])
	bal := s.node.Balance(addr)
	respondJSON(w, http.StatusOK, balanceResponse{
		Address: addr,
		Balances: map[string]int64{
			"MAIN":   bal.Main,
			"SECOND": bal.Secondary,
		},
	})
}

func (s *Server) handleAddOrder(w http.ResponseWriter, r *http.Request) {
	var req addOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, addOrderResponse{Status: "error", Msg: "malformed request body"})
		return
	}
	side := exchange.Sell
	if req.Buy {
		side = exchange.Buy
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, fills, err := s.exchange.PlaceOrder(ctx, req.Addr, side, req.Price, req.Size, exchange.GTC)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, addOrderResponse{Status: "error", Msg: err.Error()})
		return
	}
	for _, f := range fills {
		s.hub.broadcastTrade(f.Price, f.Size, f.Buyer, f.Seller)
	}
	respondJSON(w, http.StatusOK, addOrderResponse{Status: "success", Msg: order.ID})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, cancelOrderResponse{Status: "error"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := s.exchange.CancelOrder(ctx, req.ID); err != nil {
		respondJSON(w, http.StatusBadRequest, cancelOrderResponse{Status: "error"})
		return
	}
	respondJSON(w, http.StatusOK, cancelOrderResponse{Status: "success"})
}
