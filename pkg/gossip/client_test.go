package gossip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hpark/ledgerdex/pkg/chain"
)

func peerAddr(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestBroadcastBlockPostsToEveryPeer(t *testing.T) {
	received := make(chan chain.Block, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/receive_block" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var b chain.Block
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			t.Errorf("decode block: %v", err)
		}
		received <- b
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(time.Second, time.Second, nil)
	block := chain.Genesis()
	c.BroadcastBlock(context.Background(), []string{peerAddr(srv)}, block)

	select {
	case got := <-received:
		if got.Hash != block.Hash {
			t.Fatalf("received block hash = %q, want %q", got.Hash, block.Hash)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast to reach the peer")
	}
}

func TestBroadcastBlockToleratesUnreachablePeer(t *testing.T) {
	c := NewClient(50*time.Millisecond, 50*time.Millisecond, nil)
	done := make(chan struct{})
	go func() {
		c.BroadcastBlock(context.Background(), []string{"127.0.0.1:1"}, chain.Genesis())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastBlock should not hang on an unreachable peer")
	}
}

func TestFetchChainsReturnsOnlySuccessfulPeers(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := struct {
			Chain  []chain.Block `json:"chain"`
			Length int           `json:"length"`
		}{Chain: []chain.Block{chain.Genesis()}, Length: 1}
		json.NewEncoder(w).Encode(resp)
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	c := NewClient(time.Second, time.Second, nil)
	got := c.FetchChains(context.Background(), []string{peerAddr(good), peerAddr(bad), "127.0.0.1:1"})

	if len(got) != 1 {
		t.Fatalf("FetchChains returned %d peers, want 1", len(got))
	}
	if _, ok := got[peerAddr(good)]; !ok {
		t.Fatalf("expected the healthy peer's chain to be included, got %+v", got)
	}
}
