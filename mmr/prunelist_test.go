// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package mmr

import (
	"path/filepath"
	"testing"
)

func TestPostorderHeightKnownPositions(t *testing.T) {
	cases := map[uint64]uint64{
		0: 0, 1: 0, 2: 1, 3: 0, 4: 0, 5: 1, 6: 2, 7: 0,
	}
	for pos, want := range cases {
		if got := postorderHeight(pos); got != want {
			t.Errorf("postorderHeight(%d) = %d, want %d", pos, got, want)
		}
	}
}

func TestPeaksForSizeMatchesKnownShapes(t *testing.T) {
	cases := []struct {
		size  uint64
		peaks []uint64
	}{
		{1, []uint64{0}},
		{3, []uint64{2}},
		{4, []uint64{2, 3}},
		{7, []uint64{6}},
		{8, []uint64{6, 7}},
	}
	for _, c := range cases {
		got, err := peaksForSize(c.size)
		if err != nil {
			t.Fatalf("peaksForSize(%d) failed: %v", c.size, err)
		}
		if len(got) != len(c.peaks) {
			t.Fatalf("peaksForSize(%d) = %v, want %v", c.size, got, c.peaks)
		}
		for i := range got {
			if got[i] != c.peaks[i] {
				t.Fatalf("peaksForSize(%d) = %v, want %v", c.size, got, c.peaks)
			}
		}
	}
}

func TestPeaksForSizeRejectsInvalidSize(t *testing.T) {
	if _, err := peaksForSize(5); err == nil {
		t.Fatalf("expected an error for a non-MMR size")
	}
}

func TestPruneListAddAndShift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prune.bin")

	p, err := LoadPruneList(path)
	if err != nil {
		t.Fatalf("LoadPruneList failed: %v", err)
	}

	// Position 2 is the root of the 3-node subtree {0,1,2}.
	p.Add(2)

	if !p.IsPruned(0) || !p.IsPruned(1) || !p.IsPruned(2) {
		t.Fatalf("expected positions 0-2 to be pruned")
	}
	if p.IsPruned(3) {
		t.Fatalf("position 3 should not be pruned")
	}

	if shift := p.Shift(3); shift != 3 {
		t.Fatalf("expected shift of 3 at position 3, got %d", shift)
	}

	if err := p.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := LoadPruneList(path)
	if err != nil {
		t.Fatalf("LoadPruneList (reload) failed: %v", err)
	}
	if !reloaded.IsPruned(1) {
		t.Fatalf("expected pruning to survive reload")
	}
}
