// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"bytes"
	"testing"

	"github.com/mwcoin/node/consensus"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	sent := &Ping{TotalDifficulty: consensus.Difficulty(42), Height: 7}

	var buf bytes.Buffer
	n, err := WriteMessage(&buf, sent)
	if err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if n != uint64(buf.Len()) {
		t.Fatalf("reported length %d does not match buffer length %d", n, buf.Len())
	}

	got := new(Ping)
	if _, err := ReadMessage(&buf, got); err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if got.TotalDifficulty != sent.TotalDifficulty || got.Height != sent.Height {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, sent)
	}
}

func TestReadMessageRejectsWrongType(t *testing.T) {
	var buf bytes.Buffer
	if _, err := WriteMessage(&buf, &Ping{}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	if _, err := ReadMessage(&buf, new(Pong)); err == nil {
		t.Fatalf("expected an error reading a Ping frame into a Pong")
	}
}

func TestHeaderRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff, 0, 0, 0, 0, 0, 0, 0, 0, 0})

	var h Header
	if err := h.Read(&buf); err == nil {
		t.Fatalf("expected an error for a bad magic code")
	}
}
