// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package store provides the on-disk primitives the MMR and UTXO set
// layers build on: an append-only committed-prefix file backed by mmap,
// and a Roaring-backed bitmap file for the unspent-output index.
package store

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/sirupsen/logrus"
)

// AppendOnlyFile is a file whose committed prefix is exposed read-only
// via mmap, with pending appends held in memory until Flush commits
// them to disk and remaps. Rewind first flushes pending appends to disk,
// then shrinks the logical length; the shrink reaches the file at the
// next Flush.
type AppendOnlyFile struct {
	path string

	file *os.File
	mm   mmap.MMap

	bufferIndex uint64
	fileSize    uint64
	buffer      []byte
}

// NewAppendOnlyFile opens (creating if absent) the file at path and
// mmaps its committed contents.
func NewAppendOnlyFile(path string) (*AppendOnlyFile, error) {
	f := &AppendOnlyFile{path: path}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *AppendOnlyFile) load() error {
	file, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("store: failed to open %s: %w", f.path, err)
	}
	f.file = file

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("store: failed to stat %s: %w", f.path, err)
	}

	f.fileSize = uint64(info.Size())
	f.bufferIndex = f.fileSize

	if f.fileSize > 0 {
		mm, err := mmap.Map(file, mmap.RDONLY, 0)
		if err != nil {
			return fmt.Errorf("store: failed to mmap %s: %w", f.path, err)
		}
		f.mm = mm
	}

	return nil
}

// Append queues data to be written on the next Flush.
func (f *AppendOnlyFile) Append(data []byte) {
	f.buffer = append(f.buffer, data...)
}

// Size returns the file's logical size, committed plus pending.
func (f *AppendOnlyFile) Size() uint64 {
	return f.bufferIndex + uint64(len(f.buffer))
}

// Read returns numBytes bytes starting at position, whichever of the
// mmap'd committed region or the pending buffer holds them.
func (f *AppendOnlyFile) Read(position, numBytes uint64) ([]byte, error) {
	if position+numBytes > f.Size() {
		return nil, fmt.Errorf("store: read past end of file at %d+%d (size %d)", position, numBytes, f.Size())
	}

	if position+numBytes <= f.bufferIndex {
		out := make([]byte, numBytes)
		copy(out, f.mm[position:position+numBytes])
		return out, nil
	}

	bufferStart := position - f.bufferIndex
	out := make([]byte, numBytes)
	copy(out, f.buffer[bufferStart:bufferStart+numBytes])
	return out, nil
}

// Rewind truncates the file's logical content to nextPosition. It first
// flushes any pending appends to disk, then shrinks the committed region
// (the shrink only takes effect on disk at the next Flush).
func (f *AppendOnlyFile) Rewind(nextPosition uint64) error {
	if err := f.Flush(); err != nil {
		return err
	}

	if nextPosition > f.fileSize {
		return fmt.Errorf("store: cannot rewind past current file size")
	}

	if nextPosition <= f.bufferIndex {
		f.buffer = f.buffer[:0]
		f.bufferIndex = nextPosition
	} else {
		f.buffer = f.buffer[:nextPosition-f.bufferIndex]
	}

	return nil
}

// Discard drops every pending append without writing anything to disk.
func (f *AppendOnlyFile) Discard() {
	f.bufferIndex = f.fileSize
	f.buffer = f.buffer[:0]
}

// Flush commits pending appends (and any pending shrink from Rewind) to
// disk and remaps the committed region.
func (f *AppendOnlyFile) Flush() error {
	if f.fileSize == f.bufferIndex && len(f.buffer) == 0 {
		return nil
	}

	if f.fileSize < f.bufferIndex {
		return fmt.Errorf("store: inconsistent append-only file state")
	}

	if f.mm != nil {
		if err := f.mm.Unmap(); err != nil {
			return fmt.Errorf("store: failed to unmap %s: %w", f.path, err)
		}
		f.mm = nil
	}

	if f.fileSize > f.bufferIndex {
		if err := f.file.Truncate(int64(f.bufferIndex)); err != nil {
			return fmt.Errorf("store: failed to truncate %s: %w", f.path, err)
		}
	}

	if len(f.buffer) > 0 {
		if _, err := f.file.WriteAt(f.buffer, int64(f.bufferIndex)); err != nil {
			return fmt.Errorf("store: failed to append to %s: %w", f.path, err)
		}
	}

	f.fileSize = f.bufferIndex + uint64(len(f.buffer))
	f.bufferIndex = f.fileSize
	f.buffer = f.buffer[:0]

	if f.fileSize > 0 {
		mm, err := mmap.Map(f.file, mmap.RDONLY, 0)
		if err != nil {
			logrus.WithError(err).Error("store: failed to remap after flush")
			return fmt.Errorf("store: failed to remap %s: %w", f.path, err)
		}
		f.mm = mm
	}

	return nil
}

// Close unmaps and closes the underlying file.
func (f *AppendOnlyFile) Close() error {
	if f.mm != nil {
		if err := f.mm.Unmap(); err != nil {
			return err
		}
		f.mm = nil
	}
	return f.file.Close()
}
