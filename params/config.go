// Package params loads node configuration from defaults, a .env file, and
// environment variables, in that priority order (env wins).
package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Node struct {
	Host string
	Port int
	// ID is this node's stake/gossip identifier, defaults to host:port.
	ID string
	// Peers is the initial set of "host:port" peers to register at startup.
	Peers []string
}

type Forger struct {
	// Interval is how often the forger loop wakes to check for work.
	Interval time.Duration
	// ErrorBackoff is the minimum sleep after an error in the forge loop.
	ErrorBackoff time.Duration
}

type Gossip struct {
	FetchTimeout     time.Duration
	BroadcastTimeout time.Duration
}

type Config struct {
	Node     Node
	Forger   Forger
	Gossip   Gossip
	DataDir  string
	LogFile  string
}

func Default() Config {
	return Config{
		Node: Node{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Forger: Forger{
			Interval:     20 * time.Second,
			ErrorBackoff: 60 * time.Second,
		},
		Gossip: Gossip{
			FetchTimeout:     10 * time.Second,
			BroadcastTimeout: 5 * time.Second,
		},
		DataDir: "data",
		LogFile: "data/node.log",
	}
}

// LoadFromEnv loads a .env file (if present) and overlays environment
// variables on top of the defaults. CLI flags, applied by the caller,
// take priority over all of this.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if host := os.Getenv("NODE_HOST"); host != "" {
		cfg.Node.Host = host
	}
	if port := os.Getenv("NODE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Node.Port = p
		}
	}
	if id := os.Getenv("NODE_ID"); id != "" {
		cfg.Node.ID = id
	}
	if interval := os.Getenv("FORGER_INTERVAL_MS"); interval != "" {
		if ms, err := strconv.Atoi(interval); err == nil {
			cfg.Forger.Interval = time.Duration(ms) * time.Millisecond
		}
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}

	return cfg
}
