// Package config loads and validates the client's runtime configuration
// from a TOML file.
package config

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/multiformats/go-multiaddr"

	"github.com/dalight/dalight/log"
)

// Config is the full runtime configuration of the light client.
type Config struct {
	// HTTPServerHost and HTTPServerPort locate the local status API.
	HTTPServerHost string `toml:"http_server_host"`
	HTTPServerPort uint16 `toml:"http_server_port"`

	// FullNodeWS lists the full-node websocket RPC endpoints tried in
	// shuffled order when connecting.
	FullNodeWS []string `toml:"full_node_ws"`

	// AppID selects application-client mode when set to a non-zero id.
	AppID *uint32 `toml:"app_id"`

	// Confidence is the target confidence percentage for block
	// availability. Out-of-range values are clamped to a safe default by
	// the sampling core rather than rejected here.
	Confidence float64 `toml:"confidence"`

	// Bootstraps are the DHT bootstrap peers as multiaddr strings.
	Bootstraps []string `toml:"bootstraps"`

	// DHTSeed, DHTPort, and DHTPath configure the embedded DHT node.
	DHTSeed uint64 `toml:"dht_seed"`
	DHTPort uint16 `toml:"dht_port"`
	DHTPath string `toml:"dht_path"`

	// LogLevel controls log verbosity (trace, debug, info, warn, error).
	LogLevel string `toml:"log_level"`

	// MaxParallelFetchTasks bounds concurrent DHT cell fetches.
	MaxParallelFetchTasks int `toml:"max_parallel_fetch_tasks"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		HTTPServerHost:        "127.0.0.1",
		HTTPServerPort:        7000,
		FullNodeWS:            []string{"ws://127.0.0.1:9944"},
		Confidence:            92.0,
		DHTSeed:               1,
		DHTPort:               37000,
		DHTPath:               "dalight_dht",
		LogLevel:              "info",
		MaxParallelFetchTasks: 8,
	}
}

// Load reads the TOML file at path over the defaults and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if len(c.FullNodeWS) == 0 {
		return errors.New("config: full_node_ws must list at least one endpoint")
	}
	if c.HTTPServerPort == 0 {
		return errors.New("config: http_server_port must be greater than 0")
	}
	if c.MaxParallelFetchTasks <= 0 {
		return fmt.Errorf("config: invalid max_parallel_fetch_tasks: %d", c.MaxParallelFetchTasks)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.BootstrapAddrs(); err != nil {
		return err
	}
	return nil
}

// BootstrapAddrs parses the configured bootstrap peers.
func (c *Config) BootstrapAddrs() ([]multiaddr.Multiaddr, error) {
	addrs := make([]multiaddr.Multiaddr, 0, len(c.Bootstraps))
	for _, s := range c.Bootstraps {
		addr, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("config: bad bootstrap address %q: %w", s, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
