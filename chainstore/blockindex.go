// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package chainstore owns the ordered, append-only height-to-hash indexes
// for the three chain views a node keeps at once: the confirmed tip, the
// best-seen candidate (headers-only, possibly ahead of confirmed), and a
// scratch chain used while a fast-sync or reorg is in flight.
package chainstore

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/mwcoin/node/consensus"
)

// blockIndexRecordSize is the fixed on-disk width of one BlockIndex: hash
// and previous hash at 32 bytes each, then four big-endian uint64 fields.
const blockIndexRecordSize = 32 + 32 + 8 + 8 + 8 + 8

// BlockIndex is the minimal record a Chain needs to order, rewind and pick
// between forks without consulting the block database: enough to compare
// total difficulty and to know where the MMRs stood at that tip.
type BlockIndex struct {
	Hash            consensus.Hash
	Previous        consensus.Hash
	Height          uint64
	TotalDifficulty consensus.Difficulty
	OutputMmrSize   uint64
	KernelMmrSize   uint64
}

func (b *BlockIndex) bytes() []byte {
	buf := make([]byte, blockIndexRecordSize)
	copy(buf[0:32], padHash(b.Hash))
	copy(buf[32:64], padHash(b.Previous))
	binary.BigEndian.PutUint64(buf[64:72], b.Height)
	binary.BigEndian.PutUint64(buf[72:80], uint64(b.TotalDifficulty))
	binary.BigEndian.PutUint64(buf[80:88], b.OutputMmrSize)
	binary.BigEndian.PutUint64(buf[88:96], b.KernelMmrSize)
	return buf
}

func readBlockIndex(r io.Reader) (*BlockIndex, error) {
	buf := make([]byte, blockIndexRecordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	b := &BlockIndex{
		Hash:            append(consensus.Hash{}, buf[0:32]...),
		Previous:        append(consensus.Hash{}, buf[32:64]...),
		Height:          binary.BigEndian.Uint64(buf[64:72]),
		TotalDifficulty: consensus.Difficulty(binary.BigEndian.Uint64(buf[72:80])),
		OutputMmrSize:   binary.BigEndian.Uint64(buf[80:88]),
		KernelMmrSize:   binary.BigEndian.Uint64(buf[88:96]),
	}
	return b, nil
}

func padHash(h consensus.Hash) []byte {
	out := make([]byte, 32)
	copy(out, h)
	return out
}

func hashKey(h consensus.Hash) string {
	return string(padHash(h))
}

// BlockIndexAllocator deduplicates BlockIndex instances across chains: a
// fork shared between the candidate and confirmed chains is represented by
// a single *BlockIndex, refcounted so it is freed only once no chain
// references it anymore.
type BlockIndexAllocator struct {
	entries map[string]*allocEntry
}

type allocEntry struct {
	index *BlockIndex
	refs  int
}

// NewBlockIndexAllocator builds an empty allocator.
func NewBlockIndexAllocator() *BlockIndexAllocator {
	return &BlockIndexAllocator{entries: make(map[string]*allocEntry)}
}

// Acquire returns the shared *BlockIndex for b.Hash, creating and
// registering it with one reference if this is the first chain to need it,
// or bumping the refcount and returning the existing instance otherwise (in
// which case the incoming b is discarded in favor of the shared copy).
func (a *BlockIndexAllocator) Acquire(b *BlockIndex) *BlockIndex {
	key := hashKey(b.Hash)
	if e, ok := a.entries[key]; ok {
		e.refs++
		return e.index
	}
	a.entries[key] = &allocEntry{index: b, refs: 1}
	return b
}

// Release drops one reference to the BlockIndex identified by hash,
// removing it from the allocator once no chain references it anymore.
func (a *BlockIndexAllocator) Release(hash consensus.Hash) {
	key := hashKey(hash)
	e, ok := a.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(a.entries, key)
	}
}

// Get returns the shared BlockIndex for hash, if any chain currently holds it.
func (a *BlockIndexAllocator) Get(hash consensus.Hash) (*BlockIndex, bool) {
	e, ok := a.entries[hashKey(hash)]
	if !ok {
		return nil, false
	}
	return e.index, true
}

func hashesEqual(a, b consensus.Hash) bool {
	return bytes.Equal(a, b)
}
