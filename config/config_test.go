// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mwcoin/node/consensus"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.json")

	cfg := Default()
	cfg.ListenAddr = "127.0.0.1:9999"
	cfg.SeedPeers = []string{"10.0.0.1:13414", "10.0.0.2:13414"}
	cfg.Capabilities = consensus.CapFullHist

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.ListenAddr != cfg.ListenAddr {
		t.Fatalf("listen addr mismatch: got %q, want %q", got.ListenAddr, cfg.ListenAddr)
	}
	if len(got.SeedPeers) != 2 || got.SeedPeers[0] != cfg.SeedPeers[0] {
		t.Fatalf("seed peers mismatch: got %v, want %v", got.SeedPeers, cfg.SeedPeers)
	}
	if got.Capabilities != cfg.Capabilities {
		t.Fatalf("capabilities mismatch: got %v, want %v", got.Capabilities, cfg.Capabilities)
	}
}

func TestLoadKeepsDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.json")
	if err := os.WriteFile(path, []byte(`{"listen_addr": "0.0.0.0:1"}`), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.DataDir != Default().DataDir {
		t.Fatalf("expected default data dir to survive, got %q", got.DataDir)
	}
	if got.Dandelion.StemProbability != Default().Dandelion.StemProbability {
		t.Fatalf("expected default dandelion settings to survive, got %+v", got.Dandelion)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestValidateRejectsBadStemProbability(t *testing.T) {
	cfg := Default()
	cfg.Dandelion.StemProbability = 101
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an out-of-range stem probability")
	}
}

func TestValidateRejectsEmptyListenAddr(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an empty listen addr")
	}
}
