// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mwcoin/node/consensus"
	"github.com/sirupsen/logrus"
)

var (
	maxOnlineConnections = 15
	maxPeersTableSize    = 10000
)

type peerStatus int

const (
	psNew peerStatus = iota
	psConnected
	psBanned
	psDisconnected
	psFailedConn
)

type peerInfo struct {
	sync.Mutex

	Status peerStatus
	Peer   *Peer

	Height          uint64
	TotalDifficulty consensus.Difficulty
	Capabilities    consensus.Capabilities

	LastConn time.Time
}

// Manager owns every known peer address, dials out to keep a target number
// of connections alive, answers peer-discovery requests and relays
// transactions/blocks to connected peers. It implements txpool.Relay.
type Manager struct {
	ptmu sync.Mutex
	cpmu sync.Mutex
	bnmu sync.Mutex

	connected int32
	sync      *Syncer

	listenAddr *net.TCPAddr
	caps       consensus.Capabilities

	pool chan struct{}
	quit chan struct{}

	peersTable     map[string]*peerInfo
	connectedPeers map[string]*peerInfo
	bannedPeers    map[string]struct{}

	relayMu   sync.Mutex
	stemPeer  string
	stemEnds  time.Time
}

func newManager(s *Syncer, listenAddr *net.TCPAddr, caps consensus.Capabilities) *Manager {
	return &Manager{
		sync:           s,
		listenAddr:     listenAddr,
		caps:           caps,
		pool:           make(chan struct{}, maxOnlineConnections),
		quit:           make(chan struct{}),
		peersTable:     make(map[string]*peerInfo),
		connectedPeers: make(map[string]*peerInfo),
		bannedPeers:    make(map[string]struct{}),
	}
}

// Add registers a candidate peer address, discovered via seed config or a
// PeerAddrs reply.
func (m *Manager) Add(addr string) {
	netAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil || netAddr.Port == 0 || netAddr.IP.IsMulticast() {
		return
	}

	m.ptmu.Lock()
	defer m.ptmu.Unlock()

	if len(m.peersTable) > maxPeersTableSize {
		return
	}
	if _, ok := m.peersTable[addr]; ok {
		return
	}

	m.peersTable[addr] = &peerInfo{
		Status:          psNew,
		Capabilities:    consensus.CapUnknown,
		TotalDifficulty: 0,
		LastConn:        time.Unix(0, 0),
	}
}

// Ban disconnects addr (if connected) and marks it so it is never dialed
// again this run.
func (m *Manager) Ban(addr string) {
	m.ptmu.Lock()
	pi, ok := m.peersTable[addr]
	m.ptmu.Unlock()

	if ok {
		pi.Lock()
		pi.Status = psBanned
		if pi.Peer != nil {
			pi.Peer.Close()
		}
		pi.Unlock()
	}

	m.bnmu.Lock()
	m.bannedPeers[addr] = struct{}{}
	m.bnmu.Unlock()

	m.ptmu.Lock()
	delete(m.peersTable, addr)
	m.ptmu.Unlock()

	logrus.Warn("p2p: banned peer ", addr)
}

// IsBanned reports whether addr was previously banned.
func (m *Manager) IsBanned(addr string) bool {
	m.bnmu.Lock()
	defer m.bnmu.Unlock()
	_, ok := m.bannedPeers[addr]
	return ok
}

// PeerInfo returns the tracked state for addr, or nil.
func (m *Manager) PeerInfo(addr string) *peerInfo {
	m.ptmu.Lock()
	defer m.ptmu.Unlock()
	return m.peersTable[addr]
}

// Peers returns up to consensus.MaxPeerAddrs addresses with the requested
// capabilities, for answering GetPeerAddrs.
func (m *Manager) Peers(caps consensus.Capabilities) *PeerAddrs {
	m.ptmu.Lock()
	defer m.ptmu.Unlock()

	addrs := make([]*net.TCPAddr, 0)
	for addr, pi := range m.peersTable {
		if pi.Status == psBanned || pi.Status == psFailedConn {
			continue
		}
		if pi.Capabilities&caps != caps {
			continue
		}
		netAddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			continue
		}
		addrs = append(addrs, netAddr)
		if len(addrs) == consensus.MaxPeerAddrs {
			break
		}
	}

	return &PeerAddrs{Peers: addrs}
}

// PropagateBlock sends block to every connected peer reporting a lower
// height or total difficulty.
func (m *Manager) PropagateBlock(block *consensus.Block) {
	m.cpmu.Lock()
	defer m.cpmu.Unlock()

	for _, pi := range m.connectedPeers {
		go func(pi *peerInfo) {
			pi.Lock()
			stale := pi.Height < block.Header.Height || pi.TotalDifficulty < block.Header.TotalDifficulty
			peer := pi.Peer
			pi.Unlock()

			if stale && peer != nil {
				peer.SendBlock(block)
			}
		}(pi)
	}
}

// Broadcast implements txpool.Relay: fluffs tx to every connected peer.
func (m *Manager) Broadcast(tx *consensus.Transaction) {
	m.cpmu.Lock()
	defer m.cpmu.Unlock()

	for _, pi := range m.connectedPeers {
		pi.Lock()
		peer := pi.Peer
		pi.Unlock()
		if peer != nil {
			peer.SendTransaction(tx)
		}
	}
}

// SendStem implements txpool.Relay: relays tx to a single stem-phase peer,
// rolling over to a new one every 600 seconds the way the Dandelion design
// bounds how long a single downstream node can be linked to our stems.
func (m *Manager) SendStem(tx *consensus.Transaction) error {
	m.relayMu.Lock()
	addr := m.stemPeer
	needsNew := addr == "" || time.Now().After(m.stemEnds)
	m.relayMu.Unlock()

	if needsNew {
		addr = m.pickStemPeer()
		if addr == "" {
			return errors.New("p2p: no stem peer available")
		}
		m.relayMu.Lock()
		m.stemPeer = addr
		m.stemEnds = time.Now().Add(600 * time.Second)
		m.relayMu.Unlock()
	}

	pi := m.PeerInfo(addr)
	if pi == nil {
		return errors.New("p2p: stem peer no longer known")
	}
	pi.Lock()
	peer := pi.Peer
	pi.Unlock()
	if peer == nil {
		return errors.New("p2p: stem peer not connected")
	}

	peer.SendStemTransaction(tx)
	return nil
}

func (m *Manager) pickStemPeer() string {
	m.cpmu.Lock()
	defer m.cpmu.Unlock()
	for addr := range m.connectedPeers {
		return addr
	}
	return ""
}

// connectPeer dials addr and promotes it to connected on success.
func (m *Manager) connectPeer(addr string) error {
	if len(addr) == 0 {
		return nil
	}
	if m.connected > int32(maxOnlineConnections) {
		return errors.New("p2p: too many open connections")
	}

	pi := m.PeerInfo(addr)
	if pi == nil {
		return errors.New("p2p: peer not in table")
	}

	pi.Lock()
	if pi.Status == psBanned || pi.Status == psConnected {
		pi.Unlock()
		return nil
	}
	pi.Unlock()

	peer, err := Dial(addr, m.sync, m.listenAddr, m.caps, m.sync.totalDifficulty())
	if err != nil {
		pi.Lock()
		pi.Status = psFailedConn
		pi.Unlock()
		return err
	}

	if peer.Info.Version != consensus.ProtocolVersion {
		peer.Close()
		return fmt.Errorf("p2p: unexpected protocol version %d", peer.Info.Version)
	}

	m.connected++

	pi.Lock()
	pi.Peer = peer
	pi.Status = psConnected
	pi.LastConn = time.Now()
	pi.Height = peer.Info.Height
	pi.TotalDifficulty = peer.Info.TotalDifficulty
	pi.Capabilities = peer.Info.Capabilities
	pi.Unlock()

	m.cpmu.Lock()
	m.connectedPeers[addr] = pi
	m.cpmu.Unlock()

	peer.Start()
	peer.SendPing(m.sync.totalDifficulty(), m.sync.height())
	peer.SendPeerRequest(consensus.CapFullNode)

	go func() {
		peer.wg.Wait()

		pi.Lock()
		pi.Status = psDisconnected
		pi.Unlock()

		m.connected--
		m.cpmu.Lock()
		delete(m.connectedPeers, addr)
		m.cpmu.Unlock()

		<-m.pool
	}()

	return nil
}

// Run dials notConnected addresses at a steady rate until Stop is called.
func (m *Manager) Run() {
out:
	for {
		select {
		case <-m.quit:
			break out
		case m.pool <- struct{}{}:
			if err := m.connectPeer(m.notConnected()); err != nil {
				logrus.Debug("p2p: connect failed: ", err)
				<-m.pool
			}
			time.Sleep(time.Second)
		}
	}

	m.ptmu.Lock()
	defer m.ptmu.Unlock()
	for _, pi := range m.peersTable {
		go func(pi *peerInfo) {
			pi.Lock()
			if pi.Peer != nil {
				pi.Peer.Close()
			}
			pi.Status = psDisconnected
			pi.Unlock()
		}(pi)
	}
}

// Stop ends the dial loop.
func (m *Manager) Stop() {
	close(m.quit)
}

func (m *Manager) notConnected() string {
	m.ptmu.Lock()
	defer m.ptmu.Unlock()

	for addr, pi := range m.peersTable {
		if pi.Status == psNew || pi.Status == psDisconnected {
			return addr
		}
	}
	for addr, pi := range m.peersTable {
		if pi.Status == psFailedConn {
			return addr
		}
	}
	return ""
}
