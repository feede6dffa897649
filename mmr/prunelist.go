// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package mmr

import (
	"bytes"
	"fmt"
	"os"

	"github.com/RoaringBitmap/roaring"
)

// PruneList is a Roaring bitmap of pruned parent node positions: only a
// fully pruned subtree (both children already spent/pruned) is ever added,
// never a lone leaf. It is used to translate a logical node position into
// its physical offset in a compacted hash or data file by counting how
// many earlier positions have been pruned away.
type PruneList struct {
	path string
	bm   *roaring.Bitmap
}

// LoadPruneList opens (creating if absent) the prune list at path.
func LoadPruneList(path string) (*PruneList, error) {
	p := &PruneList{path: path, bm: roaring.New()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("mmr: failed to read prune list %s: %w", path, err)
	}

	if len(data) > 0 {
		if _, err := p.bm.ReadFrom(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("mmr: failed to decode prune list %s: %w", path, err)
		}
	}

	return p, nil
}

// Add records pos (the root of a maximal pruned subtree) as pruned.
func (p *PruneList) Add(pos uint64) {
	p.bm.Add(uint32(pos))
}

// IsPruned reports whether pos falls within a subtree already recorded as
// pruned, by checking pos against every recorded subtree root's span.
func (p *PruneList) IsPruned(pos uint64) bool {
	it := p.bm.Iterator()
	for it.HasNext() {
		root := uint64(it.Next())
		span := subtreeSize(root)
		lo := root - span + 1
		if pos >= lo && pos <= root {
			return true
		}
	}
	return false
}

// Shift returns the number of positions before pos that have been
// physically removed by pruning, i.e. how far pos must be translated left
// to find its offset in a compacted file.
func (p *PruneList) Shift(pos uint64) uint64 {
	shift := uint64(0)
	it := p.bm.Iterator()
	for it.HasNext() {
		root := uint64(it.Next())
		if root < pos {
			shift += subtreeSize(root)
		}
	}
	return shift
}

func subtreeSize(root uint64) uint64 {
	return (uint64(1) << (postorderHeight(root) + 1)) - 1
}

// Save persists the bitmap to disk.
func (p *PruneList) Save() error {
	buf, err := p.bm.ToBytes()
	if err != nil {
		return fmt.Errorf("mmr: failed to encode prune list: %w", err)
	}
	if err := os.WriteFile(p.path, buf, 0644); err != nil {
		return fmt.Errorf("mmr: failed to write prune list %s: %w", p.path, err)
	}
	return nil
}

