// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package mmr

import (
	"path/filepath"
	"testing"

	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/store"
)

func newKernelMMR(t *testing.T) *MMR[consensus.TxKernel, *consensus.TxKernel] {
	t.Helper()

	hashPath := filepath.Join(t.TempDir(), "kernel_hash.bin")
	hf, err := store.NewAppendOnlyFile(hashPath)
	if err != nil {
		t.Fatalf("NewAppendOnlyFile failed: %v", err)
	}
	t.Cleanup(func() { hf.Close() })

	m, err := New[consensus.TxKernel, *consensus.TxKernel](hf, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

func sampleKernel(fee uint64) consensus.TxKernel {
	return consensus.TxKernel{
		Features: consensus.PlainKernel,
		Fee:      consensus.Fee(fee),
		Excess:   make([]byte, 33),
	}
}

func flushMMR(t *testing.T, m *MMR[consensus.TxKernel, *consensus.TxKernel]) {
	t.Helper()
	if err := m.hashFile.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

func TestLeafPositionFormula(t *testing.T) {
	cases := []struct {
		leaf uint64
		pos  uint64
	}{
		{0, 0}, {1, 1}, {2, 3}, {3, 4}, {4, 7}, {5, 8},
	}
	for _, c := range cases {
		if got := LeafPosition(c.leaf); got != c.pos {
			t.Errorf("LeafPosition(%d) = %d, want %d", c.leaf, got, c.pos)
		}
	}
}

func TestAppendProducesExpectedSizeAndPeaks(t *testing.T) {
	m := newKernelMMR(t)

	for i := uint64(0); i < 4; i++ {
		if err := m.Append(sampleKernel(i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	flushMMR(t, m)

	// 4 leaves -> 7 nodes total (3 leaves + parent + leaf + parent + grandparent).
	if m.Size() != 7 {
		t.Fatalf("expected size 7 after 4 leaves, got %d", m.Size())
	}
	if m.LeafCount() != 4 {
		t.Fatalf("expected leaf count 4, got %d", m.LeafCount())
	}
	if len(m.peaks) != 1 {
		t.Fatalf("expected a single peak after 4 leaves, got %d", len(m.peaks))
	}
}

func TestRootDeterministicAndChangesWithContent(t *testing.T) {
	m1 := newKernelMMR(t)
	m2 := newKernelMMR(t)

	for i := uint64(0); i < 3; i++ {
		if err := m1.Append(sampleKernel(i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if err := m2.Append(sampleKernel(i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if string(m1.Root()) != string(m2.Root()) {
		t.Fatalf("expected identical roots for identical content")
	}

	if err := m2.Append(sampleKernel(99)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if string(m1.Root()) == string(m2.Root()) {
		t.Fatalf("expected root to change after appending another leaf")
	}
}

func TestRewindRestoresPriorRootAndSize(t *testing.T) {
	m := newKernelMMR(t)

	for i := uint64(0); i < 3; i++ {
		if err := m.Append(sampleKernel(i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	flushMMR(t, m)
	rootAt3 := m.Root()
	sizeAt3 := m.Size()

	for i := uint64(3); i < 6; i++ {
		if err := m.Append(sampleKernel(i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	flushMMR(t, m)

	if err := m.Rewind(3); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}

	if m.Size() != sizeAt3 {
		t.Fatalf("expected size %d after rewind, got %d", sizeAt3, m.Size())
	}
	if string(m.Root()) != string(rootAt3) {
		t.Fatalf("expected root to match pre-growth root after rewind")
	}
}

func TestProveAndVerifyRoundtrip(t *testing.T) {
	m := newKernelMMR(t)

	leaves := make([]consensus.TxKernel, 0, 5)
	for i := uint64(0); i < 5; i++ {
		k := sampleKernel(i)
		leaves = append(leaves, k)
		if err := m.Append(k); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	flushMMR(t, m)

	root := m.Root()

	for leafIdx := uint64(0); leafIdx < 5; leafIdx++ {
		proof, err := m.Prove(leafIdx)
		if err != nil {
			t.Fatalf("Prove(%d) failed: %v", leafIdx, err)
		}

		leaf := leaves[leafIdx]
		if !proof.Verify(leaf.Hash(), root) {
			t.Fatalf("proof for leaf %d failed to verify", leafIdx)
		}
	}
}

func TestProveRejectsWrongLeaf(t *testing.T) {
	m := newKernelMMR(t)

	for i := uint64(0); i < 5; i++ {
		if err := m.Append(sampleKernel(i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	flushMMR(t, m)

	root := m.Root()

	proof, err := m.Prove(2)
	if err != nil {
		t.Fatalf("Prove failed: %v", err)
	}

	wrong := sampleKernel(999)
	if proof.Verify(wrong.Hash(), root) {
		t.Fatalf("expected verification to fail for a mismatched leaf")
	}
}
