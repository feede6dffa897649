// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package config loads a node's on-disk configuration: its data directory,
// p2p listen address and seed peers, and the Dandelion relay parameters
// handed to txpool.Pool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/txpool"
)

// Dandelion carries the pool's relay tuning as plain seconds, the form a
// JSON file can hold; Config.PoolConfig turns it into a txpool.Config.
type Dandelion struct {
	RelaySeconds    int `json:"relay_seconds"`
	StemProbability int `json:"stem_probability"`
	PatienceSeconds int `json:"patience_seconds"`
	EmbargoSeconds  int `json:"embargo_seconds"`
	MaxPoolSize     int `json:"max_pool_size"`
	MinFeePerWeight int `json:"min_fee_per_weight"`
}

// Config is a node's full on-disk configuration.
type Config struct {
	// DataDir holds the chain store, block database and tx hash set.
	DataDir string `json:"data_dir"`

	// ListenAddr is the address this node accepts inbound peer
	// connections on, host:port form.
	ListenAddr string `json:"listen_addr"`

	// SeedPeers are dialed on startup to discover the rest of the network.
	SeedPeers []string `json:"seed_peers"`

	// Capabilities this node advertises to peers during the handshake.
	Capabilities consensus.Capabilities `json:"capabilities"`

	// Dandelion tunes the tx pool's privacy relay.
	Dandelion Dandelion `json:"dandelion"`
}

// Default returns the configuration a freshly initialized node runs with:
// a local data directory, the default p2p port, no seed peers and the
// tx pool's own default relay parameters.
func Default() Config {
	d := txpool.DefaultConfig()
	return Config{
		DataDir:      "./data",
		ListenAddr:   "0.0.0.0:13414",
		SeedPeers:    nil,
		Capabilities: consensus.CapFullNode,
		Dandelion: Dandelion{
			RelaySeconds:    int(d.RelaySeconds / time.Second),
			StemProbability: d.StemProbability,
			PatienceSeconds: int(d.PatienceSeconds / time.Second),
			EmbargoSeconds:  int(d.EmbargoSeconds / time.Second),
			MaxPoolSize:     d.MaxPoolSize,
			MinFeePerWeight: int(d.MinFeePerWeight),
		},
	}
}

// Load reads and parses a JSON configuration file at path. Any field the
// file omits keeps its Default() value.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON, creating or truncating the file.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// PoolConfig resolves the Dandelion relay settings into the form
// txpool.Pool expects.
func (c Config) PoolConfig() txpool.Config {
	return txpool.Config{
		MinFeePerWeight: uint64(c.Dandelion.MinFeePerWeight),
		RelaySeconds:    time.Duration(c.Dandelion.RelaySeconds) * time.Second,
		StemProbability: c.Dandelion.StemProbability,
		PatienceSeconds: time.Duration(c.Dandelion.PatienceSeconds) * time.Second,
		EmbargoSeconds:  time.Duration(c.Dandelion.EmbargoSeconds) * time.Second,
		MaxPoolSize:     c.Dandelion.MaxPoolSize,
	}
}

// Validate checks the fields Load cannot sanity-check on its own.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.Dandelion.StemProbability < 0 || c.Dandelion.StemProbability > 100 {
		return fmt.Errorf("config: stem_probability must be between 0 and 100, got %d", c.Dandelion.StemProbability)
	}
	return nil
}
