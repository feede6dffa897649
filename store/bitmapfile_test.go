// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package store

import (
	"path/filepath"
	"testing"
)

func TestBitmapFileSetUnsetCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitmap.bin")

	b, err := LoadBitmapFile(path)
	if err != nil {
		t.Fatalf("LoadBitmapFile failed: %v", err)
	}
	defer b.Close()

	b.Set(0)
	b.Set(9)

	if !b.IsSet(0) || !b.IsSet(9) {
		t.Fatalf("expected leaves 0 and 9 to be set before commit")
	}
	if b.IsSet(1) {
		t.Fatalf("leaf 1 should not be set")
	}

	if err := b.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if !b.IsSet(0) || !b.IsSet(9) {
		t.Fatalf("expected leaves 0 and 9 to remain set after commit")
	}

	bm := b.ToRoaring()
	if !bm.Contains(0) || !bm.Contains(9) {
		t.Fatalf("expected roaring bitmap to contain leaves 0 and 9: %v", bm.ToArray())
	}
}

func TestBitmapFileRollbackDiscardsPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitmap.bin")

	b, err := LoadBitmapFile(path)
	if err != nil {
		t.Fatalf("LoadBitmapFile failed: %v", err)
	}
	defer b.Close()

	b.Set(3)
	b.Rollback()

	if b.IsSet(3) {
		t.Fatalf("expected leaf 3 to be unset after rollback")
	}
	if b.Dirty() {
		t.Fatalf("expected bitmap to be clean after rollback")
	}
}

func TestBitmapFileRewindUnsetsBeyondSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitmap.bin")

	b, err := LoadBitmapFile(path)
	if err != nil {
		t.Fatalf("LoadBitmapFile failed: %v", err)
	}
	defer b.Close()

	b.Set(0)
	b.Set(1)
	b.Set(2)
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	b.Rewind(1, nil)

	if !b.IsSet(0) {
		t.Fatalf("expected leaf 0 to remain set")
	}
	if b.IsSet(1) || b.IsSet(2) {
		t.Fatalf("expected leaves beyond the rewind point to be unset")
	}
}
