// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"net"
	"sync"

	"github.com/mwcoin/node/consensus"
)

// hand is the first half of a handshake: the dialer advertises its version,
// capabilities and chain state.
type hand struct {
	Version         uint32
	Capabilities    consensus.Capabilities
	Nonce           uint64
	TotalDifficulty consensus.Difficulty
	SenderAddr      *net.TCPAddr
	ReceiverAddr    *net.TCPAddr
	UserAgent       string
}

func (h *hand) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, h.Version)
	binary.Write(buf, binary.BigEndian, uint32(h.Capabilities))
	binary.Write(buf, binary.BigEndian, h.Nonce)
	binary.Write(buf, binary.BigEndian, uint64(h.TotalDifficulty))
	serializeTCPAddr(buf, h.SenderAddr)
	serializeTCPAddr(buf, h.ReceiverAddr)
	binary.Write(buf, binary.BigEndian, uint64(len(h.UserAgent)))
	buf.WriteString(h.UserAgent)
	return buf.Bytes()
}

func (h *hand) Type() uint8 { return consensus.MsgTypeHand }

func (h *hand) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &h.Version); err != nil {
		return err
	}
	if h.Version != consensus.ProtocolVersion {
		return errors.New("p2p: incompatible protocol version")
	}
	if err := binary.Read(r, binary.BigEndian, (*uint32)(&h.Capabilities)); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &h.Nonce); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, (*uint64)(&h.TotalDifficulty)); err != nil {
		return err
	}

	sender, err := deserializeTCPAddr(r)
	if err != nil {
		return err
	}
	h.SenderAddr = sender

	receiver, err := deserializeTCPAddr(r)
	if err != nil {
		return err
	}
	h.ReceiverAddr = receiver

	var n uint64
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	h.UserAgent = string(buf)
	return nil
}

// shake is the second half of a handshake: the listener's reply.
type shake struct {
	Version         uint32
	Capabilities    consensus.Capabilities
	TotalDifficulty consensus.Difficulty
	UserAgent       string
}

func (s *shake) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, s.Version)
	binary.Write(buf, binary.BigEndian, uint32(s.Capabilities))
	binary.Write(buf, binary.BigEndian, uint64(s.TotalDifficulty))
	binary.Write(buf, binary.BigEndian, uint64(len(s.UserAgent)))
	buf.WriteString(s.UserAgent)
	return buf.Bytes()
}

func (s *shake) Type() uint8 { return consensus.MsgTypeShake }

func (s *shake) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &s.Version); err != nil {
		return err
	}
	if s.Version != consensus.ProtocolVersion {
		return errors.New("p2p: incompatible protocol version")
	}
	if err := binary.Read(r, binary.BigEndian, (*uint32)(&s.Capabilities)); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, (*uint64)(&s.TotalDifficulty)); err != nil {
		return err
	}
	var n uint64
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	s.UserAgent = string(buf)
	return nil
}

// nonceList hands out a rolling set of random nonces a dialed handshake can
// present, and recognizes one handed back to us, the cheap way to detect a
// loop-back connection to ourselves through a NAT or a seed list mistake.
type nonceList struct {
	mu   sync.Mutex
	idx  int
	list []uint64
}

const noncesCap = 100

func newNonceList() *nonceList {
	n := &nonceList{list: make([]uint64, noncesCap)}
	for i := range n.list {
		n.list[i] = rand.Uint64()
	}
	return n
}

func (n *nonceList) NextNonce() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.idx = (n.idx + 1) % noncesCap
	return n.list[n.idx]
}

func (n *nonceList) Consist(nonce uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, v := range n.list {
		if v == nonce {
			return true
		}
	}
	return false
}

var selfNonces = newNonceList()

// shakeByHand dials out: sends hand, reads back the peer's shake.
func shakeByHand(conn net.Conn, listenAddr *net.TCPAddr, caps consensus.Capabilities, totalDiff consensus.Difficulty) (*shake, error) {
	receiver, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return nil, errors.New("p2p: non-TCP connection")
	}

	msg := hand{
		Version:         consensus.ProtocolVersion,
		Capabilities:    caps,
		Nonce:           selfNonces.NextNonce(),
		TotalDifficulty: totalDiff,
		SenderAddr:      listenAddr,
		ReceiverAddr:    receiver,
		UserAgent:       userAgent,
	}

	if _, err := WriteMessage(conn, &msg); err != nil {
		return nil, err
	}

	sh := new(shake)
	if _, err := ReadMessage(conn, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// handByShake accepts an inbound connection: reads the peer's hand, sends
// our shake back.
func handByShake(conn net.Conn, caps consensus.Capabilities, totalDiff consensus.Difficulty) (*hand, error) {
	var h hand
	if _, err := ReadMessage(conn, &h); err != nil {
		return nil, err
	}

	if selfNonces.Consist(h.Nonce) {
		return &h, errors.New("p2p: connection to self detected by nonce")
	}

	msg := shake{
		Version:         consensus.ProtocolVersion,
		Capabilities:    caps,
		TotalDifficulty: totalDiff,
		UserAgent:       userAgent,
	}
	if _, err := WriteMessage(conn, &msg); err != nil {
		return nil, err
	}

	return &h, nil
}
