// Package gossip implements inter-node communication over plain HTTP:
// broadcasting newly forged blocks to peers and fetching their chains for
// conflict resolution.
package gossip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpark/ledgerdex/pkg/chain"
)

// Client is the HTTP transport a Node uses to talk to its peers. Separate
// timeouts for broadcast and fetch reflect their different costs: block
// broadcasts are expected to be fast and are not worth a long wait, while
// the full chain in a GET /chain response can be large.
type Client struct {
	http            *http.Client
	fetchTimeout    time.Duration
	broadcastTimeout time.Duration
	log             *zap.Logger
}

func NewClient(fetchTimeout, broadcastTimeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		http:             &http.Client{},
		fetchTimeout:     fetchTimeout,
		broadcastTimeout: broadcastTimeout,
		log:              log,
	}
}

// BroadcastBlock posts block to every peer's /receive_block endpoint,
// concurrently, tolerating individual failures, and returns once every
// post has finished. Each post is bounded by the broadcast timeout, so a
// peer that is down or slow delays the caller by at most that timeout.
func (c *Client) BroadcastBlock(ctx context.Context, peers []string, block chain.Block) {
	body, err := json.Marshal(block)
	if err != nil {
		if c.log != nil {
			c.log.Error("gossip: marshal block for broadcast", zap.Error(err))
		}
		return
	}

	var wg sync.WaitGroup
	for _, peer := range peers {
		peer := peer
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.postBlock(ctx, peer, body)
		}()
	}
	wg.Wait()
}

func (c *Client) postBlock(ctx context.Context, peer string, body []byte) {
	ctx, cancel := context.WithTimeout(ctx, c.broadcastTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/receive_block", peer)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if c.log != nil {
			c.log.Debug("gossip: broadcast failed", zap.String("peer", peer), zap.Error(err))
		}
		return
	}
	defer resp.Body.Close()
}

// FetchChains requests GET /chain from every peer, returning only the
// responses that succeeded within the fetch timeout.
func (c *Client) FetchChains(ctx context.Context, peers []string) map[string][]chain.Block {
	type result struct {
		peer   string
		blocks []chain.Block
		ok     bool
	}

	results := make(chan result, len(peers))
	for _, peer := range peers {
		peer := peer
		go func() {
			blocks, err := c.fetchChain(ctx, peer)
			if err != nil {
				if c.log != nil {
					c.log.Debug("gossip: fetch chain failed", zap.String("peer", peer), zap.Error(err))
				}
				results <- result{peer: peer, ok: false}
				return
			}
			results <- result{peer: peer, blocks: blocks, ok: true}
		}()
	}

	out := make(map[string][]chain.Block, len(peers))
	for range peers {
		r := <-results
		if r.ok {
			out[r.peer] = r.blocks
		}
	}
	return out
}

func (c *Client) fetchChain(ctx context.Context, peer string) ([]chain.Block, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/chain", peer)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gossip: peer %s returned status %d", peer, resp.StatusCode)
	}

	var payload struct {
		Chain  []chain.Block `json:"chain"`
		Length int           `json:"length"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("gossip: decode chain from %s: %w", peer, err)
	}
	return payload.Chain, nil
}
