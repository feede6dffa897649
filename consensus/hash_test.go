// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"sort"
	"testing"
)

func TestShortIDDeterministic(t *testing.T) {
	h := make(Hash, BlockHashSize)
	h[0] = 1
	blockHash := make(Hash, BlockHashSize)
	blockHash[0] = 2

	a := h.ShortID(blockHash, 7)
	b := h.ShortID(blockHash, 7)

	if !bytes.Equal(a, b) {
		t.Fatalf("ShortID must be deterministic for the same inputs")
	}
	if len(a) != ShortIDSize {
		t.Fatalf("expected short id of length %d, got %d", ShortIDSize, len(a))
	}
}

func TestShortIDVariesWithNonce(t *testing.T) {
	h := make(Hash, BlockHashSize)
	h[0] = 1
	blockHash := make(Hash, BlockHashSize)

	a := h.ShortID(blockHash, 1)
	b := h.ShortID(blockHash, 2)

	if bytes.Equal(a, b) {
		t.Fatalf("ShortID should depend on the nonce")
	}
}

func TestShortIDVariesWithBlockHash(t *testing.T) {
	h := make(Hash, BlockHashSize)
	h[0] = 1

	blockA := make(Hash, BlockHashSize)
	blockA[0] = 0xaa
	blockB := make(Hash, BlockHashSize)
	blockB[0] = 0xbb

	a := h.ShortID(blockA, 1)
	b := h.ShortID(blockB, 1)

	if bytes.Equal(a, b) {
		t.Fatalf("ShortID should depend on the owning block hash")
	}
}

func TestShortIDListSort(t *testing.T) {
	ids := ShortIDList{
		ShortID{2, 0, 0, 0, 0, 0},
		ShortID{1, 0, 0, 0, 0, 0},
	}

	sort.Sort(ids)

	if ids[0][0] != 1 || ids[1][0] != 2 {
		t.Fatalf("expected ascending order after sort, got %v", ids)
	}
}
