// Command node runs one ledger + exchange node: it serves the HTTP API,
// forges blocks on a timer, and gossips with its configured peers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hpark/ledgerdex/params"
	"github.com/hpark/ledgerdex/pkg/api"
	"github.com/hpark/ledgerdex/pkg/exchange"
	"github.com/hpark/ledgerdex/pkg/gossip"
	"github.com/hpark/ledgerdex/pkg/node"
	"github.com/hpark/ledgerdex/pkg/nodestore"
	"github.com/hpark/ledgerdex/pkg/util"
)

// marketSeedMain and marketSeedSecond are the demo liquidity minted into
// MARKET_ADDR on a fresh node, so its book has something to settle
// against immediately.
const (
	marketSeedMain   = 10_000_000_000
	marketSeedSecond = 10_000_000_000
)

func main() {
	cfg := params.LoadFromEnv(".env")
	var peersCSV string

	root := &cobra.Command{
		Use:   "node",
		Short: "run a ledger and exchange node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, peersCSV)
		},
	}
	root.Flags().StringVar(&cfg.Node.Host, "host", cfg.Node.Host, "address to listen on")
	root.Flags().IntVar(&cfg.Node.Port, "port", cfg.Node.Port, "port to listen on")
	root.Flags().StringVar(&cfg.Node.ID, "id", cfg.Node.ID, "this node's identifier, defaults to 127.0.0.1:<port>")
	root.Flags().StringVar(&peersCSV, "peers", "", "comma-separated list of peer host:port addresses")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg params.Config, peersCSV string) error {
	if cfg.Node.ID == "" {
		cfg.Node.ID = fmt.Sprintf("127.0.0.1:%d", cfg.Node.Port)
	}

	var peers []string
	for _, p := range strings.Split(peersCSV, ",") {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}
	for _, p := range cfg.Node.Peers {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}

	log, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("node: init logger: %w", err)
	}
	defer log.Sync()

	store := nodestore.NewJSONFile(cfg.DataDir, fmt.Sprintf("%d", cfg.Node.Port))
	n, err := node.New(cfg.Node.ID, peers, store, log)
	if err != nil {
		return fmt.Errorf("node: init state: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exClient := &exchange.InProcessClient{AddTx: n.AddTransaction, GetBal: n.Balance}
	ex := exchange.New(exClient, log)

	if len(n.Chain()) == 1 {
		if err := exchange.FundMarket(ctx, exClient, marketSeedMain, marketSeedSecond); err != nil {
			log.Warn("initial market funding failed", zap.Error(err))
		}
	}

	gossipClient := gossip.NewClient(cfg.Gossip.FetchTimeout, cfg.Gossip.BroadcastTimeout, log)
	forger := node.NewForger(n, gossipClient, util.RealClock{}, log, cfg.Forger.Interval, cfg.Forger.ErrorBackoff)
	go forger.Run(ctx)

	server := api.NewServer(n, ex, gossipClient, log)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Node.Host, cfg.Node.Port),
		Handler: server.Handler(),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("node listening",
		zap.String("addr", httpServer.Addr),
		zap.String("id", cfg.Node.ID),
		zap.Strings("peers", peers),
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("node: serve: %w", err)
	}
	return nil
}
