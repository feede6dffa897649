// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package mmr implements a generic, disk-backed Merkle Mountain Range: an
// append-only authenticated structure used to index outputs, range proofs
// and kernels. Every node (leaf or parent) is hashed with its own position
// folded in, so the same leaf bytes produce different node hashes depending
// on where they land in the range.
package mmr

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/store"
	"golang.org/x/crypto/blake2b"
)

// Leaf is implemented by *T for the element types an MMR can carry:
// txhashset's *outputLeaf and *rangeProofLeaf, and *consensus.TxKernel.
// It constrains the generic MMR to
// types that know how to serialize, deserialize and hash themselves.
type Leaf[T any] interface {
	*T
	Bytes() []byte
	Read(r io.Reader) error
	Hash() consensus.Hash
}

type peak struct {
	height uint64
	pos    uint64
	hash   consensus.Hash
}

// MMR is a generic Merkle Mountain Range over leaves of type T. The node
// hash file is mandatory; the data file is optional and holds the leaves
// themselves so they can be read back from disk. txhashset opens its
// output, range-proof and kernel MMRs all with a data file; a hash-only
// MMR passes a nil data file.
type MMR[T any, PT Leaf[T]] struct {
	hashFile *store.AppendOnlyFile
	dataFile *store.AppendOnlyFile

	size      uint64
	leafCount uint64
	peaks     []peak
}

// New constructs an MMR reading its hash (and, if non-nil, data) files from
// disk, reconstructing the in-memory peak stack from whatever is already
// committed.
func New[T any, PT Leaf[T]](hashFile, dataFile *store.AppendOnlyFile) (*MMR[T, PT], error) {
	m := &MMR[T, PT]{hashFile: hashFile, dataFile: dataFile}

	size := hashFile.Size() / consensus.BlockHashSize
	if err := m.reset(size); err != nil {
		return nil, err
	}

	return m, nil
}

// reset recomputes size, leaf count and the peak stack for the given node
// count by reading the peak hashes straight out of the hash file.
func (m *MMR[T, PT]) reset(size uint64) error {
	positions, err := peaksForSize(size)
	if err != nil {
		return err
	}

	heights := peakHeightsForSize(size)

	peaks := make([]peak, 0, len(positions))
	for i, pos := range positions {
		h, err := m.readNode(pos)
		if err != nil {
			return err
		}
		peaks = append(peaks, peak{height: heights[i], pos: pos, hash: h})
	}

	m.size = size
	m.peaks = peaks
	m.leafCount = leafCountForSize(size)
	return nil
}

// Size returns the total number of nodes (leaves and parents) committed.
func (m *MMR[T, PT]) Size() uint64 {
	return m.size
}

// LeafCount returns the number of leaves appended.
func (m *MMR[T, PT]) LeafCount() uint64 {
	return m.leafCount
}

// Append adds a new leaf, writing its node hash (and, if a data file is
// configured, its encoded bytes) and merging peaks of equal height exactly
// as a binary counter carries.
func (m *MMR[T, PT]) Append(leaf T) error {
	p := PT(&leaf)

	leafPos := m.size
	leafHash := hashLeafNode(leafPos, p.Hash())
	if err := m.writeNode(leafPos, leafHash); err != nil {
		return err
	}
	m.size++

	if m.dataFile != nil {
		m.dataFile.Append(p.Bytes())
	}

	curHash := leafHash
	curPos := leafPos
	curHeight := uint64(0)

	for len(m.peaks) > 0 && m.peaks[len(m.peaks)-1].height == curHeight {
		left := m.peaks[len(m.peaks)-1]
		m.peaks = m.peaks[:len(m.peaks)-1]

		parentPos := m.size
		parentHash := hashInnerNode(parentPos, left.hash, curHash)
		if err := m.writeNode(parentPos, parentHash); err != nil {
			return err
		}
		m.size++

		curHash = parentHash
		curPos = parentPos
		curHeight++
	}

	m.peaks = append(m.peaks, peak{height: curHeight, pos: curPos, hash: curHash})
	m.leafCount++
	return nil
}

// Root computes the bagged root of the current peaks: the rightmost peak
// is folded leftward, each step re-hashing with the MMR's size, bottoming
// out at a single peak wrapped once more with the size.
func (m *MMR[T, PT]) Root() consensus.Hash {
	if len(m.peaks) == 0 {
		empty := blake2b.Sum256(nil)
		return empty[:]
	}

	acc := hashBagBase(m.size, m.peaks[0].hash)
	for i := 1; i < len(m.peaks); i++ {
		acc = hashBagStep(m.size, acc, m.peaks[i].hash)
	}
	return acc
}

// Rewind truncates the MMR back to the state it had when it held
// numLeaves leaves, discarding every node appended since.
func (m *MMR[T, PT]) Rewind(numLeaves uint64) error {
	targetSize := nodeSizeForLeafCount(numLeaves)

	if err := m.hashFile.Rewind(targetSize * consensus.BlockHashSize); err != nil {
		return fmt.Errorf("mmr: failed to rewind hash file: %w", err)
	}

	if m.dataFile != nil {
		offset, err := m.dataOffsetForLeafCount(numLeaves)
		if err != nil {
			return fmt.Errorf("mmr: failed to locate data file offset: %w", err)
		}
		if err := m.dataFile.Rewind(offset); err != nil {
			return fmt.Errorf("mmr: failed to rewind data file: %w", err)
		}
	}

	return m.reset(targetSize)
}

// dataOffsetForLeafCount replays leaf records from the start of the data
// file, decoding numLeaves of them through T's own Read method, and returns
// the byte offset immediately following the last one. Leaf encodings can be
// fixed-size (the output MMR's features+commitment record) or
// length-prefixed and variable (range proofs, kernels), so replaying
// through Read is the only offset computation that works for every leaf
// type a data file might hold; truncating to a flat numLeaves*recordSize
// would desync the file for any variable-length leaf.
func (m *MMR[T, PT]) dataOffsetForLeafCount(numLeaves uint64) (uint64, error) {
	if numLeaves == 0 {
		return 0, nil
	}

	r := &fileReader{file: m.dataFile}
	for i := uint64(0); i < numLeaves; i++ {
		var leaf T
		if err := PT(&leaf).Read(r); err != nil {
			return 0, err
		}
	}
	return r.pos, nil
}

// fileReader adapts an AppendOnlyFile's random-access Read(position, n)
// into the sequential io.Reader a Leaf's Read method expects.
type fileReader struct {
	file *store.AppendOnlyFile
	pos  uint64
}

func (r *fileReader) Read(p []byte) (int, error) {
	size := r.file.Size()
	if r.pos >= size {
		return 0, io.EOF
	}

	want := uint64(len(p))
	if r.pos+want > size {
		want = size - r.pos
	}

	data, err := r.file.Read(r.pos, want)
	if err != nil {
		return 0, err
	}
	copy(p, data)
	r.pos += uint64(len(data))

	if uint64(len(data)) < uint64(len(p)) {
		return len(data), io.ErrUnexpectedEOF
	}
	return len(data), nil
}

// Flush commits every append since the last Flush (or Discard) to disk.
func (m *MMR[T, PT]) Flush() error {
	if err := m.hashFile.Flush(); err != nil {
		return fmt.Errorf("mmr: failed to flush hash file: %w", err)
	}
	if m.dataFile != nil {
		if err := m.dataFile.Flush(); err != nil {
			return fmt.Errorf("mmr: failed to flush data file: %w", err)
		}
	}
	return nil
}

// Discard drops every append since the last Flush, restoring the in-memory
// peak stack to match the last committed state.
func (m *MMR[T, PT]) Discard() error {
	m.hashFile.Discard()
	if m.dataFile != nil {
		m.dataFile.Discard()
	}
	return m.reset(m.hashFile.Size() / consensus.BlockHashSize)
}

// RewindToSize truncates the MMR back to a prior total node count, as
// recorded in a block header's *MmrSize field, rather than a leaf count.
func (m *MMR[T, PT]) RewindToSize(size uint64) error {
	return m.Rewind(leafCountForSize(size))
}

// DataFile exposes the underlying leaf data file, if configured, so a
// caller (txhashset) can replay leaves sequentially while building its own
// position index; leaf encodings are variable-length so random access by
// position is not supported here.
func (m *MMR[T, PT]) DataFile() *store.AppendOnlyFile {
	return m.dataFile
}

func (m *MMR[T, PT]) writeNode(pos uint64, h consensus.Hash) error {
	m.hashFile.Append(h)
	return nil
}

func (m *MMR[T, PT]) readNode(pos uint64) (consensus.Hash, error) {
	b, err := m.hashFile.Read(pos*consensus.BlockHashSize, consensus.BlockHashSize)
	if err != nil {
		return nil, fmt.Errorf("mmr: failed to read node %d: %w", pos, err)
	}
	return consensus.Hash(b), nil
}

func hashLeafNode(pos uint64, leafHash consensus.Hash) consensus.Hash {
	h, _ := blake2b.New256(nil)
	writeUint64(h, pos)
	h.Write(leafHash)
	return h.Sum(nil)
}

func hashInnerNode(pos uint64, left, right consensus.Hash) consensus.Hash {
	h, _ := blake2b.New256(nil)
	writeUint64(h, pos)
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

func hashBagBase(size uint64, peak consensus.Hash) consensus.Hash {
	h, _ := blake2b.New256(nil)
	writeUint64(h, size)
	h.Write(peak)
	return h.Sum(nil)
}

func hashBagStep(size uint64, acc, peak consensus.Hash) consensus.Hash {
	h, _ := blake2b.New256(nil)
	writeUint64(h, size)
	h.Write(acc)
	h.Write(peak)
	return h.Sum(nil)
}

func writeUint64(w io.Writer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.Write(buf[:])
}
