// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package mmr

import (
	"github.com/mwcoin/node/consensus"
)

// Proof is an inclusion proof for a single leaf: enough sibling hashes to
// walk up to the peak that contains it, plus the hashes of every other
// peak needed to re-bag the root.
type Proof struct {
	Size uint64

	LeafPos  uint64
	Siblings []consensus.Hash
	// SiblingOnRight[i] reports whether Siblings[i] is the right child of
	// the pair at that step (equivalently, the node being carried up is
	// the left child), which fixes the H(pos||left||right) argument order
	// during verification.
	SiblingOnRight []bool

	// OtherPeaks holds the hashes of every peak other than the one
	// containing LeafPos, left to right as in the bagged root.
	OtherPeaks []consensus.Hash
	// PeakIndex is this leaf's peak's position within the full,
	// left-to-right peaks list (OtherPeaks with the recomputed peak
	// spliced back in at this index).
	PeakIndex int
}

// Prove builds an inclusion proof for the leaf at leafIdx as of the MMR's
// current size.
func (m *MMR[T, PT]) Prove(leafIdx uint64) (*Proof, error) {
	leafPos := LeafPosition(leafIdx)

	positions, err := peaksForSize(m.size)
	if err != nil {
		return nil, err
	}

	peakIndex := -1
	var peakPos uint64
	for i, pos := range positions {
		if leafPos <= pos {
			peakIndex = i
			peakPos = pos
			break
		}
	}
	if peakIndex == -1 {
		return nil, errInvalidLeaf(leafIdx)
	}

	siblings, onRight, err := m.siblingPath(leafPos, peakPos)
	if err != nil {
		return nil, err
	}

	other := make([]consensus.Hash, 0, len(positions)-1)
	for i, peak := range m.peaks {
		if i != peakIndex {
			other = append(other, peak.hash)
		}
	}

	return &Proof{
		Size:           m.size,
		LeafPos:        leafPos,
		Siblings:       siblings,
		SiblingOnRight: onRight,
		OtherPeaks:     other,
		PeakIndex:      peakIndex,
	}, nil
}

// siblingPath walks from leafPos up to peakPos (the root of the perfect
// subtree containing it), collecting the hash of each sibling along the
// way along with whether that sibling sits to the right of the node being
// carried up.
func (m *MMR[T, PT]) siblingPath(leafPos, peakPos uint64) ([]consensus.Hash, []bool, error) {
	var siblings []consensus.Hash
	var onRight []bool

	pos := leafPos
	for pos != peakPos {
		parentPos, siblingPos, isRight := family(pos)

		h, err := m.readNode(siblingPos)
		if err != nil {
			return nil, nil, err
		}
		siblings = append(siblings, h)
		// isRight true means pos itself is the right child, so its
		// sibling sits to the left.
		onRight = append(onRight, !isRight)
		pos = parentPos
	}

	return siblings, onRight, nil
}

// Family exposes family for callers outside the package (txhashset's
// compaction pass) that need to walk sibling/parent relationships without
// going through a full inclusion proof.
func Family(pos uint64) (parentPos, siblingPos uint64, isRight bool) {
	return family(pos)
}

// family returns the parent and sibling positions of pos, and whether pos
// is the right child of the pair. A node is its parent's right child
// exactly when the very next position is one height taller than it -- the
// parent always immediately follows the right child in postorder.
func family(pos uint64) (parentPos, siblingPos uint64, isRight bool) {
	h := postorderHeight(pos)
	span := uint64(1) << (h + 1)

	if postorderHeight(pos+1) == h+1 {
		parentPos = pos + 1
		siblingPos = parentPos - span
		return parentPos, siblingPos, true
	}

	parentPos = pos + span
	siblingPos = parentPos - 1
	return parentPos, siblingPos, false
}

// Verify recomputes root from the proof and leafHash (the hash of the
// leaf's own data, as returned by its Hash method, not yet folded with its
// position) and reports whether it matches expectedRoot.
func (p *Proof) Verify(leafHash consensus.Hash, expectedRoot consensus.Hash) bool {
	cur := hashLeafNode(p.LeafPos, leafHash)

	pos := p.LeafPos
	for i, sibling := range p.Siblings {
		parentPos, _, _ := family(pos)
		if p.SiblingOnRight[i] {
			cur = hashInnerNode(parentPos, cur, sibling)
		} else {
			cur = hashInnerNode(parentPos, sibling, cur)
		}
		pos = parentPos
	}

	peaks := make([]consensus.Hash, 0, len(p.OtherPeaks)+1)
	peaks = append(peaks, p.OtherPeaks...)
	if p.PeakIndex > len(peaks) {
		return false
	}
	peaks = append(peaks[:p.PeakIndex], append([]consensus.Hash{cur}, peaks[p.PeakIndex:]...)...)

	if len(peaks) == 0 {
		return false
	}

	acc := hashBagBase(p.Size, peaks[0])
	for i := 1; i < len(peaks); i++ {
		acc = hashBagStep(p.Size, acc, peaks[i])
	}

	return hashesEqual(acc, expectedRoot)
}

func hashesEqual(a, b consensus.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func errInvalidLeaf(leafIdx uint64) error {
	return &invalidLeafError{leafIdx}
}

type invalidLeafError struct {
	leafIdx uint64
}

func (e *invalidLeafError) Error() string {
	return "mmr: leaf index out of range for current size"
}
