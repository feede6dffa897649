// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package p2p implements the node's wire protocol: message framing, the
// handshake, peer connection lifecycle, peer discovery, and dispatching
// incoming messages to the chain engine and transaction pool.
package p2p

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/mwcoin/node/consensus"
	"github.com/sirupsen/logrus"
)

// userAgent identifies this node's software and version in the handshake.
const userAgent = "mwcoin v0.1.0"

// Message is implemented by every wire message type.
type Message interface {
	// Read fills the message from the body of an incoming frame.
	Read(r io.Reader) error
	// Bytes serializes the message body (without the frame header).
	Bytes() []byte
	// Type is the message type carried in the frame header.
	Type() uint8
}

// Header is the fixed-size frame prepended to every message body.
type Header struct {
	magic [2]byte
	Type  uint8
	Len   uint64
}

// Write serializes the header to wr.
func (h *Header) Write(wr io.Writer) error {
	if _, err := wr.Write(h.magic[:]); err != nil {
		return err
	}
	if err := binary.Write(wr, binary.BigEndian, h.Type); err != nil {
		return err
	}
	return binary.Write(wr, binary.BigEndian, h.Len)
}

// Read deserializes a header from r and checks the magic code.
func (h *Header) Read(r io.Reader) error {
	if _, err := io.ReadFull(r, h.magic[:]); err != nil {
		return err
	}
	if !h.validateMagic() {
		logrus.Debug("p2p: bad magic code: ", h.magic[:])
		return errors.New("p2p: invalid magic code")
	}
	if err := binary.Read(r, binary.BigEndian, &h.Type); err != nil {
		return err
	}
	return binary.Read(r, binary.BigEndian, &h.Len)
}

func (h Header) validateMagic() bool {
	return h.magic[0] == consensus.MagicCode[0] && h.magic[1] == consensus.MagicCode[1]
}

// WriteMessage frames msg with a Header and writes it to w.
func WriteMessage(w io.Writer, msg Message) (uint64, error) {
	data := msg.Bytes()

	header := Header{
		magic: consensus.MagicCode,
		Type:  msg.Type(),
		Len:   uint64(len(data)),
	}

	wr := bufio.NewWriter(w)
	if err := header.Write(wr); err != nil {
		return 0, err
	}

	n, err := wr.Write(data)
	if err != nil {
		return uint64(n) + consensus.HeaderLen, err
	}

	return uint64(n) + consensus.HeaderLen, wr.Flush()
}

// ReadMessage reads a frame from r and fills msg, which must already be
// allocated as the concrete type matching the wire message.
func ReadMessage(r io.Reader, msg Message) (uint64, error) {
	var header Header

	rh := io.LimitReader(r, int64(consensus.HeaderLen))
	if err := header.Read(rh); err != nil {
		return 0, err
	}

	if header.Type != msg.Type() {
		return consensus.HeaderLen, errors.New("p2p: unexpected message type")
	}
	if header.Len > consensus.MaxMsgLen {
		return consensus.HeaderLen, errors.New("p2p: message too large")
	}

	rb := io.LimitReader(r, int64(header.Len))
	return consensus.HeaderLen + header.Len, msg.Read(rb)
}
