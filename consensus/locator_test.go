// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"testing"
)

func TestLocatorBytesReadRoundtrip(t *testing.T) {
	loc := &Locator{
		Hashes: []Hash{
			make(Hash, BlockHashSize),
			make(Hash, BlockHashSize),
		},
	}
	loc.Hashes[1][0] = 0xff

	var got Locator
	if err := got.Read(bytes.NewReader(loc.Bytes())); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(got.Hashes) != 2 {
		t.Fatalf("expected 2 hashes, got %d", len(got.Hashes))
	}
	if !bytes.Equal(got.Hashes[1], loc.Hashes[1]) {
		t.Fatalf("hash mismatch after roundtrip")
	}
}

func TestLocatorBytesTruncatesAtMaxLocators(t *testing.T) {
	hashes := make([]Hash, MaxLocators+5)
	for i := range hashes {
		hashes[i] = make(Hash, BlockHashSize)
	}
	loc := &Locator{Hashes: hashes}

	var got Locator
	if err := got.Read(bytes.NewReader(loc.Bytes())); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got.Hashes) != MaxLocators {
		t.Fatalf("expected truncation to %d hashes, got %d", MaxLocators, len(got.Hashes))
	}
}

func TestLocatorReadRejectsOversizedCount(t *testing.T) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(MaxLocators + 1))

	var got Locator
	if err := got.Read(buf); err == nil {
		t.Fatalf("expected error for oversized locator count")
	}
}
