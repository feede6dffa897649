// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package pow validates a block header's proof of work against the
// previous header's accumulated difficulty, dispatching to the Cuckaroo
// or Cuckatoo cycle-finding variant by edge-bits.
package pow

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/mwcoin/node/consensus"
)

// IsValid reports whether header's proof of work is acceptable as a
// successor to previous: its total difficulty must have strictly
// increased by no more than the proof's achievable maximum, and the
// cycle itself must verify under the variant selected by its edge-bits.
func IsValid(header, previous *consensus.BlockHeader) error {
	if header.TotalDifficulty <= previous.TotalDifficulty {
		return fmt.Errorf("pow: total difficulty did not increase")
	}

	target := header.TotalDifficulty - previous.TotalDifficulty
	maxDifficulty := MaximumDifficulty(header)
	if maxDifficulty < target {
		return fmt.Errorf("pow: proof cannot reach target difficulty %d (max %d)", target, maxDifficulty)
	}

	return header.POW.Validate(headerPreDigest(header))
}

// headerPreDigest re-derives the pre-PoW header serialization the proof
// was mined against. BlockHeader.Validate already performs this check as
// part of header validation; IsValid additionally enforces the
// total-difficulty accounting PoWValidator.IsPoWValid layers on top.
func headerPreDigest(header *consensus.BlockHeader) []byte {
	return header.Bytes()[:len(header.Bytes())-len(header.POW.Bytes())]
}

// MaximumDifficulty returns the largest difficulty header's proof of
// work could have achieved: scalingDifficulty * 2^64 / hash64, where
// hash64 is the first 8 bytes of the proof's hash read big-endian, and
// scalingDifficulty is the header's own scaling factor for the
// secondary PoW or a graph-size-derived factor for the primary PoW.
func MaximumDifficulty(header *consensus.BlockHeader) consensus.Difficulty {
	var scaling uint64
	if header.POW.EdgeBits == consensus.SecondPowEdgeBits {
		scaling = uint64(header.ScalingDifficulty)
	} else {
		scaling = GraphWeight(header.POW.EdgeBits)
	}

	hash := header.POW.Hash()
	hash64 := binary.BigEndian.Uint64(hash[:8])
	if hash64 == 0 {
		return consensus.Difficulty(^uint64(0))
	}

	scaled := new(big.Int).Lsh(new(big.Int).SetUint64(scaling), 64)
	difference := new(big.Int).Div(scaled, new(big.Int).SetUint64(hash64))

	maxUint64 := new(big.Int).SetUint64(^uint64(0))
	if difference.Cmp(maxUint64) >= 0 {
		return consensus.Difficulty(^uint64(0))
	}

	return consensus.Difficulty(difference.Uint64())
}

// GraphWeight returns the difficulty-scaling factor for a primary proof
// of work of the given edge-bits: (2 << (edgeBits - BaseEdgeBits)) *
// edgeBits, rewarding larger, harder-to-optimize graphs.
func GraphWeight(edgeBits uint8) uint64 {
	return (uint64(2) << (uint64(edgeBits) - uint64(consensus.BaseEdgeBits))) * uint64(edgeBits)
}
