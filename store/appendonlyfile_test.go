// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package store

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestAppendOnlyFileAppendFlushRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	f, err := NewAppendOnlyFile(path)
	if err != nil {
		t.Fatalf("NewAppendOnlyFile failed: %v", err)
	}
	defer f.Close()

	f.Append([]byte("hello"))
	if f.Size() != 5 {
		t.Fatalf("expected pending size 5, got %d", f.Size())
	}

	if err := f.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got, err := f.Read(0, 5)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestAppendOnlyFileRewindDiscardsPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	f, err := NewAppendOnlyFile(path)
	if err != nil {
		t.Fatalf("NewAppendOnlyFile failed: %v", err)
	}
	defer f.Close()

	f.Append([]byte("abc"))
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	f.Append([]byte("def"))
	if err := f.Rewind(3); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}

	if f.Size() != 3 {
		t.Fatalf("expected size 3 after rewind, got %d", f.Size())
	}
}

func TestAppendOnlyFileRewindShrinksCommitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	f, err := NewAppendOnlyFile(path)
	if err != nil {
		t.Fatalf("NewAppendOnlyFile failed: %v", err)
	}
	defer f.Close()

	f.Append([]byte("abcdef"))
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if err := f.Rewind(2); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush after rewind failed: %v", err)
	}

	if f.Size() != 2 {
		t.Fatalf("expected size 2 after rewind+flush, got %d", f.Size())
	}

	got, err := f.Read(0, 2)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, []byte("ab")) {
		t.Fatalf("expected %q, got %q", "ab", got)
	}
}
