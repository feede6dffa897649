// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chainstore

import (
	"bytes"
	"fmt"

	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/store"
)

// Chain is one append-only, height-ordered sequence of BlockIndex records
// backed by a single AppendOnlyFile, with in-memory commit/rollback over
// pending appends. The three chains a ChainStore owns (confirmed, candidate,
// sync) are each one of these, sharing BlockIndex instances for any fork
// they hold in common through a BlockIndexAllocator.
type Chain struct {
	name      string
	file      *store.AppendOnlyFile
	allocator *BlockIndexAllocator
	entries   []*BlockIndex
	// baseHeight is the height of entries[0]. Zero for every chain except
	// one rebased by ResetTo during a fast-sync archive import, which jumps
	// straight to a horizon header with no history before it.
	baseHeight uint64
}

// openChain loads (or creates) the named chain's index file and replays its
// committed records into memory.
func openChain(path, name string, allocator *BlockIndexAllocator) (*Chain, error) {
	f, err := store.NewAppendOnlyFile(path)
	if err != nil {
		return nil, consensus.NewStoreError("chainstore", "open:"+name, err)
	}

	c := &Chain{name: name, file: f, allocator: allocator}
	size := f.Size()
	for pos := uint64(0); pos < size; pos += blockIndexRecordSize {
		data, err := f.Read(pos, blockIndexRecordSize)
		if err != nil {
			return nil, consensus.NewStoreError("chainstore", "replay:"+name, err)
		}
		idx, err := readBlockIndex(bytes.NewReader(data))
		if err != nil {
			return nil, consensus.NewStoreError("chainstore", "replay:"+name, err)
		}
		c.entries = append(c.entries, allocator.Acquire(idx))
	}
	if len(c.entries) > 0 {
		c.baseHeight = c.entries[0].Height
	}

	return c, nil
}

// Name returns the chain's fixed name (confirmed, candidate or sync).
func (c *Chain) Name() string { return c.name }

// Height returns the height of the chain's tip, or 0 with ok=false if the
// chain is empty.
func (c *Chain) Height() (uint64, bool) {
	if len(c.entries) == 0 {
		return 0, false
	}
	return c.entries[len(c.entries)-1].Height, true
}

// Tip returns the chain's most recently appended block index, or nil if
// the chain is empty.
func (c *Chain) Tip() *BlockIndex {
	if len(c.entries) == 0 {
		return nil
	}
	return c.entries[len(c.entries)-1]
}

// At returns the block index at the given height, or nil if out of range.
func (c *Chain) At(height uint64) *BlockIndex {
	if height < c.baseHeight {
		return nil
	}
	i := height - c.baseHeight
	if i >= uint64(len(c.entries)) {
		return nil
	}
	return c.entries[i]
}

// ByHash returns the block index for hash, if it is present in this chain.
func (c *Chain) ByHash(hash consensus.Hash) *BlockIndex {
	for _, e := range c.entries {
		if hashesEqual(e.Hash, hash) {
			return e
		}
	}
	return nil
}

// Append extends the chain with idx, which must be the direct successor of
// the current tip (height = tip.Height+1, previous = tip.Hash), or the
// first entry of an empty chain. The append is pending until Commit.
func (c *Chain) Append(idx *BlockIndex) error {
	if tip := c.Tip(); tip != nil {
		if idx.Height != tip.Height+1 {
			return fmt.Errorf("chainstore: %s: non-contiguous height %d after %d", c.name, idx.Height, tip.Height)
		}
		if !hashesEqual(idx.Previous, tip.Hash) {
			return fmt.Errorf("chainstore: %s: append does not extend current tip", c.name)
		}
	} else if idx.Height != 0 {
		return fmt.Errorf("chainstore: %s: first entry must be height 0", c.name)
	}

	shared := c.allocator.Acquire(idx)
	c.file.Append(shared.bytes())
	c.entries = append(c.entries, shared)
	return nil
}

// ResetTo clears the chain entirely and re-bases it on a single entry, with
// no contiguity check against any prior tip. This is the fast-sync archive
// import's chain-index equivalent: the confirmed chain jumps straight to a
// horizon header with none of the history before it. Pending until Commit.
func (c *Chain) ResetTo(idx *BlockIndex) error {
	for _, e := range c.entries {
		c.allocator.Release(e.Hash)
	}
	c.entries = nil

	if err := c.file.Rewind(0); err != nil {
		return consensus.NewStoreError("chainstore", "reset:"+c.name, err)
	}

	shared := c.allocator.Acquire(idx)
	c.file.Append(shared.bytes())
	c.entries = append(c.entries, shared)
	c.baseHeight = idx.Height
	return nil
}

// Rewind truncates the chain back to height, releasing every entry above it
// from the allocator. Pending until Commit.
func (c *Chain) Rewind(height uint64) error {
	tipHeight, ok := c.Height()
	if !ok || height > tipHeight || height < c.baseHeight {
		return nil
	}

	if err := c.file.Rewind((height - c.baseHeight + 1) * blockIndexRecordSize); err != nil {
		return consensus.NewStoreError("chainstore", "rewind:"+c.name, err)
	}

	for i := len(c.entries) - 1; i >= 0 && c.entries[i].Height > height; i-- {
		c.allocator.Release(c.entries[i].Hash)
		c.entries = c.entries[:i]
	}
	return nil
}

// Commit flushes every pending append/rewind to disk.
func (c *Chain) Commit() error {
	if err := c.file.Flush(); err != nil {
		return consensus.NewStoreError("chainstore", "commit:"+c.name, err)
	}
	return nil
}

// Rollback discards every pending append/rewind, restoring in-memory state
// to match what was last committed. Since a pending Rewind may have already
// released entries the allocator no longer tracks, the whole in-memory list
// is rebuilt from the file's committed contents rather than patched.
func (c *Chain) Rollback() error {
	for _, e := range c.entries {
		c.allocator.Release(e.Hash)
	}
	c.entries = nil

	c.file.Discard()

	size := c.file.Size()
	for pos := uint64(0); pos < size; pos += blockIndexRecordSize {
		data, err := c.file.Read(pos, blockIndexRecordSize)
		if err != nil {
			return consensus.NewStoreError("chainstore", "rollback:"+c.name, err)
		}
		idx, err := readBlockIndex(bytes.NewReader(data))
		if err != nil {
			return consensus.NewStoreError("chainstore", "rollback:"+c.name, err)
		}
		c.entries = append(c.entries, c.allocator.Acquire(idx))
	}

	if len(c.entries) > 0 {
		c.baseHeight = c.entries[0].Height
	} else {
		c.baseHeight = 0
	}
	return nil
}

// Close releases the chain's underlying file handle.
func (c *Chain) Close() error {
	return c.file.Close()
}
