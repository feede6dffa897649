// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package store

import (
	"fmt"
	"math/bits"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring"
	"github.com/edsrzf/mmap-go"
	"github.com/sirupsen/logrus"
)

// BitmapFile is the on-disk unspent-leaf index: bit 0 of byte 0 is
// leaf 0. Writes are batched into modifiedBytes and only patched into
// the file (and remapped) on Commit; Rollback simply discards them.
type BitmapFile struct {
	path string

	file *os.File
	mm   mmap.MMap

	modifiedBytes map[uint64]byte
	dirty         bool
}

// LoadBitmapFile opens (creating if absent) the bitmap file at path,
// migrating a legacy position-indexed file to leaf-indexed form on
// first load.
func LoadBitmapFile(path string) (*BitmapFile, error) {
	b := &BitmapFile{path: path, modifiedBytes: make(map[uint64]byte)}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, nil, 0644); err != nil {
			return nil, fmt.Errorf("store: failed to create bitmap file %s: %w", path, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("store: failed to stat bitmap file %s: %w", path, err)
	}

	if info.Size() > 0 {
		if err := migrateLegacyBitmap(path); err != nil {
			return nil, err
		}
	} else {
		version1 := filepath.Join(filepath.Dir(path), "version1")
		if _, err := os.Stat(version1); os.IsNotExist(err) {
			if err := os.WriteFile(version1, nil, 0644); err != nil {
				return nil, fmt.Errorf("store: failed to write version1 marker: %w", err)
			}
		}
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open bitmap file %s: %w", path, err)
	}
	b.file = file

	if info, _ := file.Stat(); info.Size() > 0 {
		mm, err := mmap.Map(file, mmap.RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("store: failed to mmap bitmap file %s: %w", path, err)
		}
		b.mm = mm
	}

	return b, nil
}

// migrateLegacyBitmap rewrites a bitmap file indexed by MMR node
// position into one indexed by leaf number, the first time a file
// without a sibling "version1" marker is seen.
func migrateLegacyBitmap(path string) error {
	version1 := filepath.Join(filepath.Dir(path), "version1")
	if _, err := os.Stat(version1); err == nil {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("store: failed to read legacy bitmap file %s: %w", path, err)
	}

	isBitSet := func(byteIdx, bit uint64) bool {
		if byteIdx >= uint64(len(data)) {
			return false
		}
		return data[byteIdx]&(1<<(bit%8)) != 0
	}

	totalPositionBits := uint64(len(data)) * 8
	converted := make([]byte, 0)

	for leafIdx := uint64(0); ; leafIdx++ {
		pos := leafPosition(leafIdx)
		if pos >= totalPositionBits {
			break
		}

		byteIdx := leafIdx / 8
		for byteIdx >= uint64(len(converted)) {
			converted = append(converted, 0)
		}

		if isBitSet(pos/8, pos%8) {
			converted[byteIdx] |= 1 << (leafIdx % 8)
		}
	}

	if err := os.WriteFile(path, converted, 0644); err != nil {
		return fmt.Errorf("store: failed to write migrated bitmap file %s: %w", path, err)
	}

	logrus.WithField("path", path).Info("migrated legacy position-indexed bitmap file to leaf index")

	return os.WriteFile(version1, nil, 0644)
}

// leafPosition mirrors the MMR node-position formula (2*i - popcount(i))
// used to locate leaf i's bit in a legacy position-indexed bitmap; it is
// a pure function duplicated here, not imported from the mmr package,
// so store has no dependency on it.
func leafPosition(leafIdx uint64) uint64 {
	return 2*leafIdx - uint64(bits.OnesCount64(leafIdx))
}

func (b *BitmapFile) getByte(byteIdx uint64) byte {
	if v, ok := b.modifiedBytes[byteIdx]; ok {
		return v
	}
	if b.mm != nil && byteIdx < uint64(len(b.mm)) {
		return b.mm[byteIdx]
	}
	return 0
}

// IsSet reports whether leafIdx is marked unspent.
func (b *BitmapFile) IsSet(leafIdx uint64) bool {
	return b.getByte(leafIdx/8)&(1<<(leafIdx%8)) != 0
}

// Set marks leafIdx unspent.
func (b *BitmapFile) Set(leafIdx uint64) {
	b.dirty = true
	byteIdx := leafIdx / 8
	b.modifiedBytes[byteIdx] = b.getByte(byteIdx) | (1 << (leafIdx % 8))
}

// Unset marks leafIdx spent.
func (b *BitmapFile) Unset(leafIdx uint64) {
	b.dirty = true
	byteIdx := leafIdx / 8
	b.modifiedBytes[byteIdx] = b.getByte(byteIdx) &^ (1 << (leafIdx % 8))
}

// Rewind sets every leaf in leavesToAdd and unsets every leaf beyond
// numLeaves, restoring the bitmap to its state as of a prior size.
func (b *BitmapFile) Rewind(numLeaves uint64, leavesToAdd []uint64) {
	for _, leafIdx := range leavesToAdd {
		b.Set(leafIdx)
	}

	currentBits := b.numBytes() * 8
	for i := numLeaves; i < currentBits; i++ {
		b.Unset(i)
	}
}

func (b *BitmapFile) numBytes() uint64 {
	size := uint64(0)
	for byteIdx := range b.modifiedBytes {
		if byteIdx+1 > size {
			size = byteIdx + 1
		}
	}
	if b.mm != nil && uint64(len(b.mm)) > size {
		size = uint64(len(b.mm))
	}
	return size
}

// ToRoaring snapshots the current unspent set as a Roaring bitmap of
// leaf indices.
func (b *BitmapFile) ToRoaring() *roaring.Bitmap {
	out := roaring.New()
	numBytes := b.numBytes()
	for byteIdx := uint64(0); byteIdx < numBytes; byteIdx++ {
		byteVal := b.getByte(byteIdx)
		for bit := uint64(0); bit < 8; bit++ {
			if byteVal&(1<<bit) != 0 {
				out.Add(uint32(byteIdx*8 + bit))
			}
		}
	}
	return out
}

// Commit patches every modified byte into the file and remaps.
func (b *BitmapFile) Commit() error {
	if len(b.modifiedBytes) == 0 {
		return nil
	}

	if b.mm != nil {
		if err := b.mm.Unmap(); err != nil {
			return fmt.Errorf("store: failed to unmap bitmap file: %w", err)
		}
		b.mm = nil
	}

	for byteIdx, value := range b.modifiedBytes {
		if err := ensureFileSize(b.file, byteIdx+1); err != nil {
			return err
		}
		if _, err := b.file.WriteAt([]byte{value}, int64(byteIdx)); err != nil {
			return fmt.Errorf("store: failed to patch bitmap byte %d: %w", byteIdx, err)
		}
	}

	info, err := b.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() > 0 {
		mm, err := mmap.Map(b.file, mmap.RDONLY, 0)
		if err != nil {
			return fmt.Errorf("store: failed to remap bitmap file: %w", err)
		}
		b.mm = mm
	}

	b.modifiedBytes = make(map[uint64]byte)
	b.dirty = false
	return nil
}

// Rollback discards every pending modification.
func (b *BitmapFile) Rollback() {
	b.modifiedBytes = make(map[uint64]byte)
	b.dirty = false
}

// Dirty reports whether uncommitted modifications are pending.
func (b *BitmapFile) Dirty() bool {
	return b.dirty
}

func ensureFileSize(f *os.File, size uint64) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if uint64(info.Size()) >= size {
		return nil
	}
	return f.Truncate(int64(size))
}

// Close unmaps and closes the underlying file.
func (b *BitmapFile) Close() error {
	if b.mm != nil {
		if err := b.mm.Unmap(); err != nil {
			return err
		}
		b.mm = nil
	}
	return b.file.Close()
}
