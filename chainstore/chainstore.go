// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chainstore

import (
	"path/filepath"
	"sync"

	"github.com/mwcoin/node/consensus"
)

// ChainStore owns the three named chain views a node keeps simultaneously
// (confirmed, candidate, sync) and the allocator that lets forks shared
// between them share BlockIndex instances. All mutation happens inside
// Batch, which serializes writers and commits or rolls back all three
// chains together.
type ChainStore struct {
	mu        sync.Mutex
	allocator *BlockIndexAllocator

	Confirmed *Chain
	Candidate *Chain
	Sync      *Chain
}

// Open loads (or initializes) the three chain files under dir/CHAIN.
func Open(dir string) (*ChainStore, error) {
	allocator := NewBlockIndexAllocator()
	chainDir := filepath.Join(dir, "CHAIN")

	confirmed, err := openChain(filepath.Join(chainDir, "confirmed.dat"), "confirmed", allocator)
	if err != nil {
		return nil, err
	}
	candidate, err := openChain(filepath.Join(chainDir, "candidate.dat"), "candidate", allocator)
	if err != nil {
		return nil, err
	}
	sync, err := openChain(filepath.Join(chainDir, "sync.dat"), "sync", allocator)
	if err != nil {
		return nil, err
	}

	return &ChainStore{
		allocator: allocator,
		Confirmed: confirmed,
		Candidate: candidate,
		Sync:      sync,
	}, nil
}

// Batch runs fn under the store's write lock, committing all three chains
// if fn returns nil and rolling all three back otherwise. Callers combine
// this with the equivalent batch primitives on the TxHashSet and header MMR
// so a single logical chain mutation is atomic across every sub-store.
func (s *ChainStore) Batch(fn func(*ChainStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s); err != nil {
		if rbErr := s.rollback(); rbErr != nil {
			return rbErr
		}
		return err
	}
	return s.commit()
}

func (s *ChainStore) commit() error {
	for _, c := range []*Chain{s.Confirmed, s.Candidate, s.Sync} {
		if err := c.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (s *ChainStore) rollback() error {
	var first error
	for _, c := range []*Chain{s.Confirmed, s.Candidate, s.Sync} {
		if err := c.Rollback(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close releases all three chains' underlying files.
func (s *ChainStore) Close() error {
	var first error
	for _, c := range []*Chain{s.Confirmed, s.Candidate, s.Sync} {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PromoteCandidate switches Confirmed to reference the same tip as
// Candidate, by appending (or, on divergence, rewinding to the fork point
// and reapplying) Candidate's entries above the confirmed tip. Heavy lifting
// (reapplying blocks to the TxHashSet) is the blockchain engine's job; this
// only keeps the chain-index files themselves consistent.
func (s *ChainStore) PromoteCandidate(forkHeight uint64) error {
	if err := s.Confirmed.Rewind(forkHeight); err != nil {
		return err
	}

	tipHeight, ok := s.Confirmed.Height()
	start := uint64(0)
	if ok {
		start = tipHeight + 1
	}

	candidateTip, ok := s.Candidate.Height()
	if !ok {
		return nil
	}

	for h := start; h <= candidateTip; h++ {
		idx := s.Candidate.At(h)
		if idx == nil {
			return consensus.NewStoreError("chainstore", "promote", errMissingCandidateEntry(h))
		}
		if err := s.Confirmed.Append(&BlockIndex{
			Hash:            idx.Hash,
			Previous:        idx.Previous,
			Height:          idx.Height,
			TotalDifficulty: idx.TotalDifficulty,
			OutputMmrSize:   idx.OutputMmrSize,
			KernelMmrSize:   idx.KernelMmrSize,
		}); err != nil {
			return err
		}
	}
	return nil
}

type errMissingCandidateEntry uint64

func (e errMissingCandidateEntry) Error() string {
	return "chainstore: candidate chain missing entry needed to promote"
}
