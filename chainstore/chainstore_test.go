// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chainstore

import (
	"testing"

	"github.com/mwcoin/node/consensus"
)

func idx(height uint64, hash, prev byte) *BlockIndex {
	return &BlockIndex{
		Hash:            consensus.Hash{hash},
		Previous:        consensus.Hash{prev},
		Height:          height,
		TotalDifficulty: consensus.Difficulty(height + 1),
		OutputMmrSize:   height * 2,
		KernelMmrSize:   height,
	}
}

func TestChainAppendCommitSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	err = store.Batch(func(s *ChainStore) error {
		if err := s.Confirmed.Append(idx(0, 0x00, 0xff)); err != nil {
			return err
		}
		return s.Confirmed.Append(idx(1, 0x01, 0x00))
	})
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	height, ok := reopened.Confirmed.Height()
	if !ok || height != 1 {
		t.Fatalf("expected height 1 after reopen, got %d (ok=%v)", height, ok)
	}
	if reopened.Confirmed.Tip().Hash[0] != 0x01 {
		t.Fatalf("unexpected tip hash after reopen")
	}
}

func TestChainBatchRollsBackOnError(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.Batch(func(s *ChainStore) error {
		return s.Confirmed.Append(idx(0, 0x00, 0xff))
	}); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}

	err = s.Batch(func(s *ChainStore) error {
		if err := s.Confirmed.Append(idx(1, 0x01, 0x00)); err != nil {
			return err
		}
		return errIntentional
	})
	if err != errIntentional {
		t.Fatalf("expected intentional error, got %v", err)
	}

	height, ok := s.Confirmed.Height()
	if !ok || height != 0 {
		t.Fatalf("expected rollback to height 0, got %d (ok=%v)", height, ok)
	}
}

func TestBlockIndexAllocatorDedupesSharedFork(t *testing.T) {
	alloc := NewBlockIndexAllocator()

	a := alloc.Acquire(idx(5, 0x05, 0x04))
	b := alloc.Acquire(idx(5, 0x05, 0x04))
	if a != b {
		t.Fatalf("expected the same shared BlockIndex instance for a duplicate hash")
	}

	alloc.Release(a.Hash)
	if _, ok := alloc.Get(a.Hash); !ok {
		t.Fatalf("expected entry to still be referenced once after a single release")
	}

	alloc.Release(a.Hash)
	if _, ok := alloc.Get(a.Hash); ok {
		t.Fatalf("expected entry to be freed once its refcount reaches zero")
	}
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errIntentional = sentinelError("intentional test failure")
