// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"bytes"
	"net"

	"github.com/mwcoin/node/blockchain"
	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/txpool"
	"github.com/sirupsen/logrus"
)

// Syncer ties the wire protocol to the chain engine and tx pool. Only
// cmd/node imports p2p, so unlike the blockchain<->txpool and
// txpool<->p2p boundaries (which go through narrow interfaces to avoid
// import cycles) Syncer is free to hold the concrete types directly.
type Syncer struct {
	engine *blockchain.Engine
	pool   *txpool.Pool

	manager *Manager
	caps    consensus.Capabilities
}

// NewSyncer wires engine and pool to a peer manager listening/dialing as
// listenAddr with the given advertised capabilities.
func NewSyncer(engine *blockchain.Engine, pool *txpool.Pool, listenAddr *net.TCPAddr, caps consensus.Capabilities) *Syncer {
	s := &Syncer{engine: engine, pool: pool, caps: caps}
	s.manager = newManager(s, listenAddr, caps)
	return s
}

// Manager returns the peer manager, satisfying txpool.Relay for the caller
// that wires Syncer into the pool (*Manager implements SendStem/Broadcast).
func (s *Syncer) Manager() *Manager {
	return s.manager
}

// Start seeds the peer table and begins dialing/serving.
func (s *Syncer) Start(seeds []string) {
	for _, addr := range seeds {
		s.manager.Add(addr)
	}
	go s.manager.Run()
}

// Stop ends the dial loop and closes every connection.
func (s *Syncer) Stop() {
	s.manager.Stop()
}

// Serve accepts inbound connections on ln until it is closed.
func (s *Syncer) Serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			logrus.Debug("p2p: listener closed: ", err)
			return
		}

		go func() {
			peer, err := Accept(conn, s, s.caps, s.totalDifficulty())
			if err != nil {
				logrus.Debug("p2p: inbound handshake failed: ", err)
				return
			}

			addr := peer.Addr()
			s.manager.Add(addr)
			pi := s.manager.PeerInfo(addr)
			if pi == nil {
				peer.Close()
				return
			}

			pi.Lock()
			pi.Peer = peer
			pi.Status = psConnected
			pi.Height = peer.Info.Height
			pi.TotalDifficulty = peer.Info.TotalDifficulty
			pi.Capabilities = peer.Info.Capabilities
			pi.Unlock()

			s.manager.cpmu.Lock()
			s.manager.connectedPeers[addr] = pi
			s.manager.cpmu.Unlock()

			peer.Start()
		}()
	}
}

func (s *Syncer) totalDifficulty() consensus.Difficulty {
	if head := s.engine.Head(); head != nil {
		return head.TotalDifficulty
	}
	return 0
}

func (s *Syncer) height() uint64 {
	if head := s.engine.Head(); head != nil {
		return head.Height
	}
	return 0
}

func (s *Syncer) tipHash() consensus.Hash {
	if head := s.engine.Head(); head != nil {
		return head.Hash
	}
	return nil
}

// ProcessMessage implements Dispatcher: it dispatches a decoded message from
// peer to the chain engine or tx pool and bans the peer on a consensus
// violation.
func (s *Syncer) ProcessMessage(peer *Peer, msg Message) {
	switch m := msg.(type) {
	case *Ping:
		peer.Info.TotalDifficulty = m.TotalDifficulty
		peer.Info.Height = m.Height
		peer.WriteMessage(&Pong{Ping{TotalDifficulty: s.totalDifficulty(), Height: s.height()}})

	case *Pong:
		peer.Info.TotalDifficulty = m.TotalDifficulty
		peer.Info.Height = m.Height

	case *GetPeerAddrs:
		peer.WriteMessage(s.manager.Peers(m.Capabilities))

	case *PeerAddrs:
		for _, addr := range m.Peers {
			s.manager.Add(addr.String())
		}

	case *GetBlockHeaders:
		headers, err := s.engine.HeadersFrom(&m.Locator)
		if err != nil {
			logrus.Debug("p2p: header lookup failed: ", err)
			return
		}
		peer.WriteMessage(&BlockHeaders{Headers: headers})

	case *BlockHeaders:
		peer.setState(HeaderSync)
		for _, h := range m.Headers {
			status, err := s.engine.AddBlockHeader(h)
			if status == blockchain.StatusInvalid {
				s.ban(peer, err)
				return
			}
		}
		peer.setState(Ready)

	case *GetBlock:
		block, err := s.engine.Block(m.Hash)
		if err != nil || block == nil {
			return
		}
		peer.WriteMessage(block)

	case *consensus.Block:
		peer.setState(BodySync)
		status, err := s.engine.AddBlock(m)
		if status == blockchain.StatusInvalid {
			s.ban(peer, err)
			return
		}
		peer.setState(Ready)

		if status == blockchain.StatusSuccess {
			if head := s.engine.Head(); head != nil && bytes.Equal(head.Hash, m.Hash()) {
				s.manager.PropagateBlock(m)
			}
		}

	case *consensus.Transaction:
		result, err := s.pool.AddTransaction(m, txpool.Txpool, s.tipHash())
		if result == txpool.TxInvalid && err != nil {
			s.ban(peer, err)
			return
		}
		if result == txpool.Added {
			s.pool.Relay(m)
		}

	case *StemTransaction:
		tx := m.Transaction
		result, err := s.pool.AddTransaction(&tx, txpool.Stempool, s.tipHash())
		if result == txpool.TxInvalid && err != nil {
			s.ban(peer, err)
			return
		}
		if result == txpool.Added {
			s.pool.Relay(&tx)
		}

	case *PeerError:
		logrus.Info("p2p: peer reported error ", m.Code, ": ", m.Message)
	}
}

func (s *Syncer) ban(peer *Peer, err error) {
	reason := consensus.BanReasonFor(err)
	logrus.Warnf("p2p: banning %s for %s: %v", peer.Addr(), reason, err)
	s.manager.Ban(peer.Addr())
}
