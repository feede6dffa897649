// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package mmr

import "fmt"

// LeafPosition returns the 0-indexed node position of leaf i, per
// position(i) = 2*i - popcount(i).
func LeafPosition(leafIdx uint64) uint64 {
	return 2*leafIdx - uint64(popcount(leafIdx))
}

func popcount(v uint64) int {
	n := 0
	for v != 0 {
		n += int(v & 1)
		v >>= 1
	}
	return n
}

// peaksForSize decomposes an MMR node count into the positions of its
// peaks: the highest perfect-binary-tree roots covering [0, size), ordered
// left to right (largest subtree first). size must be a valid MMR size
// (the node count reached after a whole number of leaf appends); any other
// value is an error.
func peaksForSize(size uint64) ([]uint64, error) {
	if size == 0 {
		return nil, nil
	}

	var positions []uint64
	remaining := size
	base := uint64(0)

	peakSize := largestPerfectTreeSize(remaining)
	for peakSize > 0 {
		if remaining >= peakSize {
			positions = append(positions, base+peakSize-1)
			base += peakSize
			remaining -= peakSize
		}
		peakSize >>= 1
	}

	if remaining != 0 {
		return nil, fmt.Errorf("mmr: %d is not a valid MMR size", size)
	}

	return positions, nil
}

// largestPerfectTreeSize returns the largest value of form 2^h - 1 that is
// <= n.
func largestPerfectTreeSize(n uint64) uint64 {
	size := uint64(1)
	for size <= n {
		size = size<<1 | 1
	}
	return size >> 1
}

// peakHeightsForSize returns, in left-to-right peak order, the height of
// each peak for the given MMR size.
func peakHeightsForSize(size uint64) []uint64 {
	var heights []uint64
	remaining := size
	peakSize := largestPerfectTreeSize(remaining)
	h := treeHeight(peakSize)
	for peakSize > 0 {
		if remaining >= peakSize {
			heights = append(heights, h)
			remaining -= peakSize
		}
		peakSize >>= 1
		h--
	}
	return heights
}

func treeHeight(perfectSize uint64) uint64 {
	h := uint64(0)
	for perfectSize > 1 {
		perfectSize >>= 1
		h++
	}
	return h
}

// leafCountForSize recovers the number of leaves carried by an MMR of the
// given node size: each peak of height h holds 2^h leaves.
func leafCountForSize(size uint64) uint64 {
	positions, err := peaksForSize(size)
	if err != nil {
		return 0
	}
	heights := peakHeightsForSize(size)
	total := uint64(0)
	for i := range positions {
		total += uint64(1) << heights[i]
	}
	return total
}

// postorderHeight returns the height of the node at the given 0-indexed
// postorder position: the number of times its subtree can be halved
// before reaching a leaf. It depends only on pos, not on the overall size
// of the MMR it sits in.
func postorderHeight(pos uint64) uint64 {
	p := pos + 1
	for !allOnes(p) {
		p -= mostSignificantBit(p) - 1
	}
	return bitLength(p) - 1
}

func allOnes(v uint64) bool {
	return v != 0 && v&(v+1) == 0
}

func mostSignificantBit(v uint64) uint64 {
	msb := uint64(1)
	for msb<<1 <= v {
		msb <<= 1
	}
	return msb
}

func bitLength(v uint64) uint64 {
	n := uint64(0)
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// nodeSizeForLeafCount computes the node-count size of an MMR holding
// exactly numLeaves leaves, by replaying the append merge rule leaf by
// leaf (cheap: O(log n) merges per leaf, this is only used on Rewind).
func nodeSizeForLeafCount(numLeaves uint64) uint64 {
	size := uint64(0)
	leaves := uint64(0)
	heights := make([]uint64, 0, 64)

	for leaves < numLeaves {
		size++
		leaves++
		h := uint64(0)
		for len(heights) > 0 && heights[len(heights)-1] == h {
			heights = heights[:len(heights)-1]
			size++
			h++
		}
		heights = append(heights, h)
	}

	return size
}
