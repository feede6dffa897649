// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

// MagicCode is expected in the header of every message.
var MagicCode = [2]byte{0x4d, 0x57}

const (
	// ProtocolVersion is the version of the node's p2p protocol.
	ProtocolVersion uint32 = 1

	// HeaderLen is the size in bytes of a message header.
	HeaderLen uint64 = 11

	// MaxMsgLen is the maximum size willing to be accepted for any message.
	// Enforced by the peer-to-peer networking layer only, for DoS protection.
	MaxMsgLen uint64 = 20000000

	// MaxLocators is the maximum number of hashes carried by a header locator.
	MaxLocators int = 14

	// MaxPeerAddrs is the maximum number of addresses carried by a single
	// PeerAddrs response.
	MaxPeerAddrs int = 256

	// MaxBlockHeaders is the maximum number of headers carried by a
	// single BlockHeaders response.
	MaxBlockHeaders int = 512
)

// Types of p2p messages.
const (
	MsgTypeError uint8 = iota
	MsgTypeHand
	MsgTypeShake
	MsgTypePing
	MsgTypePong
	MsgTypeGetPeerAddrs
	MsgTypePeerAddrs
	MsgTypeGetHeaders
	MsgTypeHeaders
	MsgTypeGetBlock
	MsgTypeBlock
	MsgTypeGetCompactBlock
	MsgTypeCompactBlock
	MsgTypeTransaction
	MsgTypeStemTransaction
	MsgTypeTransactionKernel
	MsgTypeTxHashSetRequest
	MsgTypeTxHashSetArchive
)

// Capabilities of a node.
type Capabilities uint32

const (
	// CapUnknown means the peer's capabilities aren't known yet.
	CapUnknown Capabilities = 0
	// CapFullHist is a full archival node with the whole history, unpruned.
	CapFullHist Capabilities = 1 << 0
	// CapUtxoHist can provide block headers and the UTXO set for a recent-enough height.
	CapUtxoHist Capabilities = 1 << 1
	// CapPeerList can provide a list of healthy peers.
	CapPeerList Capabilities = 1 << 2
	// CapFullNode combines every core capability.
	CapFullNode Capabilities = CapFullHist | CapUtxoHist | CapPeerList
)

// Network error codes.
const (
	NetUnsupportedVersion int = 100
)
