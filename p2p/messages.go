// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/mwcoin/node/consensus"
)

// serializeTCPAddr writes addr as [flag][ip][port], flag 0 for IPv4 and 1
// for IPv6.
func serializeTCPAddr(buff io.Writer, addr *net.TCPAddr) error {
	ip := addr.IP.To4()
	if ip == nil {
		ip = addr.IP.To16()
	}

	switch len(ip) {
	case net.IPv4len:
		if _, err := buff.Write([]byte{0}); err != nil {
			return err
		}
		if _, err := buff.Write(ip); err != nil {
			return err
		}
	case net.IPv6len:
		if _, err := buff.Write([]byte{1}); err != nil {
			return err
		}
		if _, err := buff.Write(ip); err != nil {
			return err
		}
	default:
		return errors.New("p2p: invalid net addr")
	}

	return binary.Write(buff, binary.BigEndian, uint16(addr.Port))
}

// deserializeTCPAddr reads an address written by serializeTCPAddr.
func deserializeTCPAddr(r io.Reader) (*net.TCPAddr, error) {
	var flag uint8
	if err := binary.Read(r, binary.BigEndian, &flag); err != nil {
		return nil, err
	}

	var ip []byte
	switch flag {
	case 0:
		ip = make([]byte, net.IPv4len)
	case 1:
		ip = make([]byte, net.IPv6len)
	default:
		return nil, fmt.Errorf("p2p: invalid ip flag %d", flag)
	}
	if _, err := io.ReadFull(r, ip); err != nil {
		return nil, err
	}

	var port uint16
	if err := binary.Read(r, binary.BigEndian, &port); err != nil {
		return nil, err
	}

	return &net.TCPAddr{IP: ip, Port: int(port)}, nil
}

// Ping announces the sender's chain state, used both to keep the
// connection alive and to discover whether either side needs to sync.
type Ping struct {
	TotalDifficulty consensus.Difficulty
	Height          uint64
}

func (p *Ping) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint64(p.TotalDifficulty))
	binary.Write(buf, binary.BigEndian, p.Height)
	return buf.Bytes()
}

func (p *Ping) Type() uint8 { return consensus.MsgTypePing }

func (p *Ping) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, (*uint64)(&p.TotalDifficulty)); err != nil {
		return err
	}
	return binary.Read(r, binary.BigEndian, &p.Height)
}

// Pong is the reply to Ping, same layout.
type Pong struct {
	Ping
}

func (p *Pong) Type() uint8 { return consensus.MsgTypePong }

// GetPeerAddrs asks the peer for addresses of other nodes it knows about
// with the requested capabilities.
type GetPeerAddrs struct {
	Capabilities consensus.Capabilities
}

func (p *GetPeerAddrs) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(p.Capabilities))
	return buf.Bytes()
}

func (p *GetPeerAddrs) Type() uint8 { return consensus.MsgTypeGetPeerAddrs }

func (p *GetPeerAddrs) Read(r io.Reader) error {
	return binary.Read(r, binary.BigEndian, (*uint32)(&p.Capabilities))
}

// PeerAddrs answers GetPeerAddrs with a bounded list of known addresses.
type PeerAddrs struct {
	Peers []*net.TCPAddr
}

func (p *PeerAddrs) Bytes() []byte {
	buf := new(bytes.Buffer)

	count := len(p.Peers)
	if count > consensus.MaxPeerAddrs {
		count = consensus.MaxPeerAddrs
	}

	binary.Write(buf, binary.BigEndian, uint32(count))
	for _, addr := range p.Peers[:count] {
		serializeTCPAddr(buf, addr)
	}
	return buf.Bytes()
}

func (p *PeerAddrs) Type() uint8 { return consensus.MsgTypePeerAddrs }

func (p *PeerAddrs) Read(r io.Reader) error {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return err
	}
	if int(count) > consensus.MaxPeerAddrs {
		return errors.New("p2p: too many peer addrs")
	}

	p.Peers = make([]*net.TCPAddr, 0, count)
	for i := uint32(0); i < count; i++ {
		addr, err := deserializeTCPAddr(r)
		if err != nil {
			return err
		}
		p.Peers = append(p.Peers, addr)
	}
	return nil
}

// PeerError carries a code and human-readable message, usually followed by
// the sender closing the connection.
type PeerError struct {
	Code    uint32
	Message string
}

func (p *PeerError) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, p.Code)
	binary.Write(buf, binary.BigEndian, uint64(len(p.Message)))
	buf.WriteString(p.Message)
	return buf.Bytes()
}

func (p *PeerError) Type() uint8 { return consensus.MsgTypeError }

func (p *PeerError) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &p.Code); err != nil {
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
	p.Message = string(buf)
	return nil
}

// GetBlock requests a full block by hash.
type GetBlock struct {
	Hash consensus.Hash
}

func (g *GetBlock) Bytes() []byte { return g.Hash }

func (g *GetBlock) Type() uint8 { return consensus.MsgTypeGetBlock }

func (g *GetBlock) Read(r io.Reader) error {
	hash := make(consensus.Hash, consensus.BlockHashSize)
	_, err := io.ReadFull(r, hash)
	g.Hash = hash
	return err
}

// GetBlockHeaders requests headers starting from the most recent common
// ancestor found by walking locator against the responder's chain.
type GetBlockHeaders struct {
	Locator consensus.Locator
}

func (g *GetBlockHeaders) Bytes() []byte { return g.Locator.Bytes() }

func (g *GetBlockHeaders) Type() uint8 { return consensus.MsgTypeGetHeaders }

func (g *GetBlockHeaders) Read(r io.Reader) error { return g.Locator.Read(r) }

// BlockHeaders answers GetBlockHeaders with a run of consecutive headers.
type BlockHeaders struct {
	Headers []*consensus.BlockHeader
}

func (h *BlockHeaders) Bytes() []byte {
	buf := new(bytes.Buffer)

	count := len(h.Headers)
	if count > consensus.MaxBlockHeaders {
		count = consensus.MaxBlockHeaders
	}

	binary.Write(buf, binary.BigEndian, uint16(count))
	for _, header := range h.Headers[:count] {
		buf.Write(header.Bytes())
	}
	return buf.Bytes()
}

func (h *BlockHeaders) Type() uint8 { return consensus.MsgTypeHeaders }

func (h *BlockHeaders) Read(r io.Reader) error {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return err
	}
	if int(count) > consensus.MaxBlockHeaders {
		return errors.New("p2p: too many block headers")
	}

	h.Headers = make([]*consensus.BlockHeader, count)
	for i := range h.Headers {
		header := new(consensus.BlockHeader)
		if err := header.Read(r); err != nil {
			return err
		}
		h.Headers[i] = header
	}
	return nil
}

// StemTransaction carries a transaction through the Dandelion stem phase:
// identical wire layout to consensus.Transaction but tagged with a distinct
// message type so a receiving peer knows to keep it out of sight rather
// than broadcasting it immediately.
type StemTransaction struct {
	consensus.Transaction
}

func (s *StemTransaction) Type() uint8 { return consensus.MsgTypeStemTransaction }
