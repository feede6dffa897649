// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"
	"time"

	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/secp256k1zkp"
)

func testHeader(t *testing.T, height uint64) *consensus.BlockHeader {
	t.Helper()
	return &consensus.BlockHeader{
		Version:           1,
		Height:            height,
		Previous:          make(consensus.Hash, consensus.BlockHashSize),
		PreviousRoot:      make(consensus.Hash, consensus.BlockHashSize),
		Timestamp:         time.Unix(1600000000, 0).UTC(),
		UTXORoot:          make(consensus.Hash, consensus.BlockHashSize),
		RangeProofRoot:    make(consensus.Hash, consensus.BlockHashSize),
		KernelRoot:        make(consensus.Hash, consensus.BlockHashSize),
		Nonce:             height,
		TotalKernelOffset: make(consensus.Hash, secp256k1zkp.SecretKeySize),
		TotalKernelSum:    secp256k1zkp.ToCommitment(secp256k1zkp.CommitTransparent(0)),
		OutputMmrSize:     0,
		KernelMmrSize:     0,
		POW:               consensus.NewProof(consensus.SecondPowEdgeBits, make([]uint32, consensus.ProofSize)),
		Difficulty:        consensus.MinimumDifficulty,
		TotalDifficulty:   consensus.MinimumDifficulty.FromNum(height + 1),
		ScalingDifficulty: 100,
	}
}

func openTestDB(t *testing.T) *BlockDB {
	t.Helper()
	db, err := OpenBlockDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBlockDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBlockDBHeaderRoundtrip(t *testing.T) {
	db := openTestDB(t)
	h := testHeader(t, 5)

	if err := db.PutHeader(h); err != nil {
		t.Fatalf("PutHeader failed: %v", err)
	}

	got, err := db.GetHeader(h.Hash())
	if err != nil {
		t.Fatalf("GetHeader failed: %v", err)
	}
	if got == nil {
		t.Fatalf("expected header to be found")
	}
	if got.Height != h.Height || got.Nonce != h.Nonce {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", got, h)
	}
}

func TestBlockDBGetHeaderMissingReturnsNil(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetHeader(make(consensus.Hash, consensus.BlockHashSize))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for an absent header, got %+v", got)
	}
}

func TestBlockDBBlockRoundtrip(t *testing.T) {
	db := openTestDB(t)
	h := testHeader(t, 1)
	block := &consensus.Block{Header: *h}

	if err := db.PutBlock(block); err != nil {
		t.Fatalf("PutBlock failed: %v", err)
	}

	got, err := db.GetBlock(block.Hash())
	if err != nil {
		t.Fatalf("GetBlock failed: %v", err)
	}
	if got == nil {
		t.Fatalf("expected block to be found")
	}
	if got.Header.Height != h.Height {
		t.Fatalf("roundtrip mismatch: got height %d, want %d", got.Header.Height, h.Height)
	}
}

func TestBlockDBInputBitmapRoundtrip(t *testing.T) {
	db := openTestDB(t)
	h := testHeader(t, 2)
	positions := []uint64{3, 7, 9000}

	if err := db.PutInputBitmap(h.Hash(), positions); err != nil {
		t.Fatalf("PutInputBitmap failed: %v", err)
	}

	got, err := db.GetInputBitmap(h.Hash())
	if err != nil {
		t.Fatalf("GetInputBitmap failed: %v", err)
	}
	if len(got) != len(positions) {
		t.Fatalf("expected %d positions, got %d", len(positions), len(got))
	}
	for i := range positions {
		if got[i] != positions[i] {
			t.Fatalf("position %d: got %d, want %d", i, got[i], positions[i])
		}
	}
}

func TestBlockDBOutputPositionRoundtrip(t *testing.T) {
	db := openTestDB(t)
	commit := []byte("a fake 33-byte commitment.......")

	if _, ok, err := db.GetOutputPosition(commit); err != nil || ok {
		t.Fatalf("expected a miss before any write, got ok=%v err=%v", ok, err)
	}

	if err := db.PutOutputPosition(commit, 42); err != nil {
		t.Fatalf("PutOutputPosition failed: %v", err)
	}

	pos, ok, err := db.GetOutputPosition(commit)
	if err != nil {
		t.Fatalf("GetOutputPosition failed: %v", err)
	}
	if !ok || pos != 42 {
		t.Fatalf("expected position 42, got %d (ok=%v)", pos, ok)
	}
}

func TestBlockDBPeerRoundtripAndList(t *testing.T) {
	db := openTestDB(t)

	if err := db.PutPeer("127.0.0.1:3414", []byte("peer-a")); err != nil {
		t.Fatalf("PutPeer failed: %v", err)
	}
	if err := db.PutPeer("10.0.0.1:3414", []byte("peer-b")); err != nil {
		t.Fatalf("PutPeer failed: %v", err)
	}

	got, err := db.GetPeer("127.0.0.1:3414")
	if err != nil {
		t.Fatalf("GetPeer failed: %v", err)
	}
	if string(got) != "peer-a" {
		t.Fatalf("expected peer-a, got %q", got)
	}

	all, err := db.AllPeers()
	if err != nil {
		t.Fatalf("AllPeers failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(all))
	}
}

func TestBlockDBBatchCommitsAtomically(t *testing.T) {
	db := openTestDB(t)
	h := testHeader(t, 9)
	block := &consensus.Block{Header: *h}

	batch := db.NewBatch()
	batch.PutHeader(h)
	batch.PutBlock(block)

	if err := db.Commit(batch); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if got, err := db.GetHeader(h.Hash()); err != nil || got == nil {
		t.Fatalf("expected header to be committed, err=%v got=%v", err, got)
	}
	if got, err := db.GetBlock(block.Hash()); err != nil || got == nil {
		t.Fatalf("expected block to be committed, err=%v got=%v", err, got)
	}
}
