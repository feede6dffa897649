// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pow

import (
	"testing"

	"github.com/mwcoin/node/consensus"
)

func TestGraphWeightIncreasesWithEdgeBits(t *testing.T) {
	a := GraphWeight(consensus.BaseEdgeBits + 1)
	b := GraphWeight(consensus.BaseEdgeBits + 2)

	if b <= a {
		t.Fatalf("expected graph weight to increase with edge bits: %d vs %d", a, b)
	}
}

func TestMaximumDifficultyUsesScalingForSecondaryPOW(t *testing.T) {
	h := &consensus.BlockHeader{
		ScalingDifficulty: 42,
		POW:               consensus.NewProof(consensus.SecondPowEdgeBits, make([]uint32, consensus.ProofSize)),
	}

	// Non-zero hash so division doesn't short-circuit to max.
	h.POW.Nonces[0] = 1

	d := MaximumDifficulty(h)
	if d == 0 {
		t.Fatalf("expected a nonzero maximum difficulty")
	}
}

func TestIsValidRejectsNonIncreasingDifficulty(t *testing.T) {
	previous := &consensus.BlockHeader{TotalDifficulty: 100}
	header := &consensus.BlockHeader{TotalDifficulty: 100}

	if err := IsValid(header, previous); err == nil {
		t.Fatalf("expected error when total difficulty does not increase")
	}
}
