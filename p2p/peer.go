// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/mwcoin/node/consensus"
	"github.com/sirupsen/logrus"
)

// SyncState is where a peer sits in the connect-handshake-sync lifecycle.
type SyncState int

const (
	AwaitingHandshake SyncState = iota
	Connected
	HeaderSync
	BodySync
	Ready
)

func (s SyncState) String() string {
	switch s {
	case AwaitingHandshake:
		return "awaiting-handshake"
	case Connected:
		return "connected"
	case HeaderSync:
		return "header-sync"
	case BodySync:
		return "body-sync"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Dispatcher handles a decoded message from peer. Implemented by Syncer;
// held as an interface here so peer.go does not need to know about
// blockchain.Engine or txpool.Pool.
type Dispatcher interface {
	ProcessMessage(peer *Peer, msg Message)
}

// Peer is one connected node on the wire protocol.
type Peer struct {
	conn net.Conn
	dsp  Dispatcher

	bytesReceived uint64
	bytesSent     uint64

	quit chan struct{}
	wg   sync.WaitGroup

	sendQueue chan Message

	disconnect int32

	stateMu sync.Mutex
	state   SyncState

	// Info is the peer's self-reported state from the handshake, updated
	// as Ping/Pong arrive.
	Info struct {
		Version         uint32
		Capabilities    consensus.Capabilities
		TotalDifficulty consensus.Difficulty
		UserAgent       string
		Height          uint64
	}
}

// Dial connects out to addr and performs the dialer side of the handshake.
func Dial(addr string, dsp Dispatcher, listenAddr *net.TCPAddr, caps consensus.Capabilities, totalDiff consensus.Difficulty) (*Peer, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialTCP("tcp", nil, tcpAddr)
	if err != nil {
		return nil, err
	}

	sh, err := shakeByHand(conn, listenAddr, caps, totalDiff)
	if err != nil {
		conn.Close()
		return nil, err
	}

	p := newPeer(conn, dsp)
	p.Info.Version = sh.Version
	p.Info.Capabilities = sh.Capabilities
	p.Info.TotalDifficulty = sh.TotalDifficulty
	p.Info.UserAgent = sh.UserAgent
	p.setState(Connected)
	return p, nil
}

// Accept performs the listener side of the handshake on an inbound conn.
func Accept(conn net.Conn, dsp Dispatcher, caps consensus.Capabilities, totalDiff consensus.Difficulty) (*Peer, error) {
	h, err := handByShake(conn, caps, totalDiff)
	if err != nil {
		conn.Close()
		return nil, err
	}

	p := newPeer(conn, dsp)
	p.Info.Version = h.Version
	p.Info.Capabilities = h.Capabilities
	p.Info.TotalDifficulty = h.TotalDifficulty
	p.Info.UserAgent = h.UserAgent
	p.setState(Connected)
	return p, nil
}

func newPeer(conn net.Conn, dsp Dispatcher) *Peer {
	return &Peer{
		conn:      conn,
		dsp:       dsp,
		quit:      make(chan struct{}),
		sendQueue: make(chan Message, 64),
		state:     AwaitingHandshake,
	}
}

// Addr is the remote address this peer is connected on.
func (p *Peer) Addr() string {
	return p.conn.RemoteAddr().String()
}

func (p *Peer) State() SyncState {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state
}

func (p *Peer) setState(s SyncState) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
}

// Start launches the peer's read and write goroutines.
func (p *Peer) Start() {
	p.wg.Add(2)
	go p.writeHandler()
	go p.readHandler()
}

func (p *Peer) writeHandler() {
	defer p.wg.Done()

	var exitErr error
out:
	for {
		select {
		case msg := <-p.sendQueue:
			if atomic.LoadInt32(&p.disconnect) != 0 {
				break out
			}
			written, err := WriteMessage(p.conn, msg)
			if err != nil {
				exitErr = err
				break out
			}
			atomic.AddUint64(&p.bytesSent, written)

		case <-p.quit:
			exitErr = errors.New("p2p: peer exiting")
			break out
		}
	}

	p.Disconnect(exitErr)
}

// WriteMessage enqueues msg for the write goroutine, dropping it silently
// if the peer is already shutting down.
func (p *Peer) WriteMessage(msg Message) {
	select {
	case <-p.quit:
		logrus.Debug("p2p: dropping message, peer shutting down: ", p.Addr())
	case p.sendQueue <- msg:
	}
}

func (p *Peer) readHandler() {
	defer p.wg.Done()

	var exitErr error
	input := bufio.NewReader(p.conn)

out:
	for atomic.LoadInt32(&p.disconnect) == 0 {
		var header Header
		if exitErr = header.Read(input); exitErr != nil {
			break out
		}
		if header.Len > consensus.MaxMsgLen {
			exitErr = errors.New("p2p: message too large")
			break out
		}

		body := io.LimitReader(input, int64(header.Len))

		msg, err := decodeBody(header.Type, body)
		if err != nil {
			exitErr = err
			break out
		}

		atomic.AddUint64(&p.bytesReceived, header.Len+consensus.HeaderLen)
		p.dsp.ProcessMessage(p, msg)
	}

	p.Disconnect(exitErr)
}

// decodeBody allocates the concrete Message for typ and reads its body.
func decodeBody(typ uint8, r io.Reader) (Message, error) {
	var msg Message
	switch typ {
	case consensus.MsgTypePing:
		msg = new(Ping)
	case consensus.MsgTypePong:
		msg = new(Pong)
	case consensus.MsgTypeGetPeerAddrs:
		msg = new(GetPeerAddrs)
	case consensus.MsgTypePeerAddrs:
		msg = new(PeerAddrs)
	case consensus.MsgTypeGetHeaders:
		msg = new(GetBlockHeaders)
	case consensus.MsgTypeHeaders:
		msg = new(BlockHeaders)
	case consensus.MsgTypeGetBlock:
		msg = new(GetBlock)
	case consensus.MsgTypeBlock:
		msg = new(consensus.Block)
	case consensus.MsgTypeTransaction:
		msg = new(consensus.Transaction)
	case consensus.MsgTypeStemTransaction:
		msg = new(StemTransaction)
	case consensus.MsgTypeError:
		msg = new(PeerError)
	default:
		return nil, errors.New("p2p: unexpected message type from peer")
	}

	if err := msg.Read(r); err != nil {
		return nil, err
	}
	return msg, nil
}

// Disconnect closes the connection once, safe to call from either goroutine
// or from the caller.
func (p *Peer) Disconnect(reason error) {
	if !atomic.CompareAndSwapInt32(&p.disconnect, 0, 1) {
		return
	}
	logrus.Info("p2p: disconnecting peer ", p.Addr(), ": ", reason)
	close(p.quit)
	p.conn.Close()
}

// Close disconnects the peer and waits for both goroutines to exit.
func (p *Peer) Close() {
	p.Disconnect(errors.New("p2p: closing peer"))
	p.wg.Wait()
}

// SendPing announces our own chain state.
func (p *Peer) SendPing(totalDiff consensus.Difficulty, height uint64) {
	p.WriteMessage(&Ping{TotalDifficulty: totalDiff, Height: height})
}

// SendPeerRequest asks for addresses of peers with the given capabilities.
func (p *Peer) SendPeerRequest(caps consensus.Capabilities) {
	p.WriteMessage(&GetPeerAddrs{Capabilities: caps})
}

// SendHeaderRequest asks for headers after the most recent hash in locator
// known to the remote peer.
func (p *Peer) SendHeaderRequest(locator consensus.Locator) {
	p.WriteMessage(&GetBlockHeaders{Locator: locator})
}

// SendBlockRequest asks for a full block by hash.
func (p *Peer) SendBlockRequest(hash consensus.Hash) {
	p.WriteMessage(&GetBlock{Hash: hash})
}

// SendBlock pushes a full block, used both in response to GetBlock and to
// propagate a newly mined/received block.
func (p *Peer) SendBlock(block *consensus.Block) {
	p.WriteMessage(block)
}

// SendTransaction fluffs tx: broadcasts it openly.
func (p *Peer) SendTransaction(tx *consensus.Transaction) {
	p.WriteMessage(tx)
}

// SendStemTransaction relays tx to this peer as the next stem hop.
func (p *Peer) SendStemTransaction(tx *consensus.Transaction) {
	p.WriteMessage(&StemTransaction{Transaction: *tx})
}
