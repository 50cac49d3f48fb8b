package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hpark/ledgerdex/pkg/chain"
)

// Hub fans out block-commit and trade events to connected websocket
// clients. It is purely observational: nothing in the consensus or
// matching path depends on a client being connected.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	events  chan []byte
}

func newHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		events:  make(chan []byte, 64),
	}
}

func (h *Hub) run() {
	for msg := range h.events {
		h.mu.Lock()
		for conn := range h.clients {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mu.Unlock()
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
}

type blockEvent struct {
	Type  string      `json:"type"`
	Block chain.Block `json:"block"`
}

func (h *Hub) broadcastBlock(b chain.Block) {
	msg, err := json.Marshal(blockEvent{Type: "block", Block: b})
	if err != nil {
		return
	}
	select {
	case h.events <- msg:
	default:
	}
}

type tradeEvent struct {
	Type   string `json:"type"`
	Price  int64  `json:"price"`
	Size   int64  `json:"size"`
	Buyer  string `json:"buyer"`
	Seller string `json:"seller"`
}

func (h *Hub) broadcastTrade(price, size int64, buyer, seller chain.Address) {
	msg, err := json.Marshal(tradeEvent{Type: "trade", Price: price, Size: size, Buyer: string(buyer), Seller: string(seller)})
	if err != nil {
		return
	}
	select {
	case h.events <- msg:
	default:
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.hub.add(conn)
}
