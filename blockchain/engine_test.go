// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/mwcoin/node/consensus"
)

func testGenesisBlock(t *testing.T) *consensus.Block {
	t.Helper()
	h := testHeader(t, 0)
	return &consensus.Block{Header: *h}
}

func openTestEngine(t *testing.T) (*Engine, *consensus.Block) {
	t.Helper()
	genesis := testGenesisBlock(t)

	e, err := Open(t.TempDir(), genesis)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, genesis
}

func TestOpenInitializesGenesis(t *testing.T) {
	e, genesis := openTestEngine(t)

	tip := e.Head()
	if tip == nil {
		t.Fatalf("expected a confirmed tip after genesis init")
	}
	if tip.Height != 0 {
		t.Fatalf("expected genesis at height 0, got %d", tip.Height)
	}
	if string(tip.Hash) != string(genesis.Header.Hash()) {
		t.Fatalf("confirmed tip hash does not match genesis hash")
	}
	if e.TxHashSet().Height() != 0 {
		t.Fatalf("expected tx hash set at height 0")
	}
}

func TestOpenTwiceReusesExistingGenesis(t *testing.T) {
	genesis := testGenesisBlock(t)
	dir := t.TempDir()

	e1, err := Open(dir, genesis)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := e1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	e2, err := Open(dir, genesis)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer e2.Close()

	tip := e2.Head()
	if tip == nil || tip.Height != 0 {
		t.Fatalf("expected genesis tip to survive reopen, got %+v", tip)
	}
}

func TestAddBlockHeaderAlreadyProcessed(t *testing.T) {
	e, genesis := openTestEngine(t)

	status, err := e.AddBlockHeader(&genesis.Header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusAlreadyProcessed {
		t.Fatalf("expected StatusAlreadyProcessed, got %v", status)
	}
}

func TestAddBlockAlreadyProcessed(t *testing.T) {
	e, genesis := openTestEngine(t)

	status, err := e.AddBlock(genesis)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusAlreadyProcessed {
		t.Fatalf("expected StatusAlreadyProcessed, got %v", status)
	}
}

func TestAddBlockHeaderRejectsUnsupportedVersion(t *testing.T) {
	e, genesis := openTestEngine(t)

	bad := testHeader(t, 1)
	bad.Previous = genesis.Header.Hash()
	bad.Version = 2 // version 2 is not valid before the first hard fork

	status, err := e.AddBlockHeader(bad)
	if err == nil {
		t.Fatalf("expected an error for an unsupported block version")
	}
	if status != StatusInvalid {
		t.Fatalf("expected StatusInvalid, got %v", status)
	}
}

func TestAddCompactBlockReportsMissingShortIDs(t *testing.T) {
	e, genesis := openTestEngine(t)

	next := testHeader(t, 1)
	next.Previous = genesis.Header.Hash()

	cb := &consensus.CompactBlock{
		Header:    *next,
		KernelIDs: consensus.ShortIDList{make(consensus.ShortID, consensus.ShortIDSize)},
	}

	status, err := e.AddCompactBlock(cb, emptyTransactionSource{})
	if status != StatusOrphan {
		t.Fatalf("expected StatusOrphan, got %v", status)
	}
	missing, ok := err.(*MissingShortIDsError)
	if !ok {
		t.Fatalf("expected a *MissingShortIDsError, got %T: %v", err, err)
	}
	if len(missing.Indices) != 1 || missing.Indices[0] != 0 {
		t.Fatalf("expected index [0] to be reported missing, got %v", missing.Indices)
	}
}

func TestAddCompactBlockResolvesAlreadyKnownBlock(t *testing.T) {
	e, genesis := openTestEngine(t)

	// An empty-kernel-id compact block reconstructing genesis itself should
	// be recognized as already processed rather than re-validated.
	cb := &consensus.CompactBlock{Header: genesis.Header}

	status, err := e.AddCompactBlock(cb, emptyTransactionSource{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusAlreadyProcessed {
		t.Fatalf("expected StatusAlreadyProcessed, got %v", status)
	}
}

type emptyTransactionSource struct{}

func (emptyTransactionSource) FindByKernelShortID(consensus.Hash, uint64, consensus.ShortID) (*consensus.Transaction, bool) {
	return nil, false
}
