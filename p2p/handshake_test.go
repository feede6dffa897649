// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"bytes"
	"net"
	"testing"

	"github.com/mwcoin/node/consensus"
)

func TestHandRoundTrip(t *testing.T) {
	sent := &hand{
		Version:         consensus.ProtocolVersion,
		Capabilities:    consensus.CapFullNode,
		Nonce:           12345,
		TotalDifficulty: consensus.Difficulty(1),
		SenderAddr:      &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1},
		ReceiverAddr:    &net.TCPAddr{IP: net.ParseIP("127.0.0.2"), Port: 2},
		UserAgent:       userAgent,
	}

	var buf bytes.Buffer
	if _, err := WriteMessage(&buf, sent); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	got := new(hand)
	if _, err := ReadMessage(&buf, got); err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if got.Nonce != sent.Nonce || got.UserAgent != sent.UserAgent || got.TotalDifficulty != sent.TotalDifficulty {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, sent)
	}
}

func TestHandRejectsWrongProtocolVersion(t *testing.T) {
	sent := &hand{
		Version:      consensus.ProtocolVersion + 1,
		Capabilities: consensus.CapFullNode,
		SenderAddr:   &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1},
		ReceiverAddr: &net.TCPAddr{IP: net.ParseIP("127.0.0.2"), Port: 2},
		UserAgent:    userAgent,
	}

	var buf bytes.Buffer
	if _, err := WriteMessage(&buf, sent); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	got := new(hand)
	if _, err := ReadMessage(&buf, got); err == nil {
		t.Fatalf("expected a version mismatch error")
	}
}

func TestNonceListRecognizesOwnNonce(t *testing.T) {
	n := newNonceList()
	nonce := n.NextNonce()

	if !n.Consist(nonce) {
		t.Fatalf("expected the list to recognize a nonce it just handed out")
	}
	if n.Consist(nonce + 1) {
		t.Fatalf("did not expect an unrelated nonce to match")
	}
}
