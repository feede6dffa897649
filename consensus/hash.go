// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"

	"github.com/mwcoin/node/secp256k1zkp"
)

// ShortIDSize is the size of a short id used to identify inputs|outputs|kernels (6 bytes).
const ShortIDSize = 6

// Hash is a 32-byte Blake2b digest: block hashes, commitments, MMR nodes.
type Hash []byte

// ShortID derives the compact-block short id for this hash, keyed by the
// owning block's hash and a peer-chosen nonce so that two peers never
// collide on the same short-id space.
func (h Hash) ShortID(blockHash Hash, nonce uint64) ShortID {
	k0, k1 := secp256k1zkp.ShortIDKeys([32]byte(padTo32(blockHash)), nonce)

	digest := secp256k1zkp.SipHash24(k0, k1, h)

	result := make([]byte, 8)
	binary.LittleEndian.PutUint64(result, digest)

	return ShortID(result[:ShortIDSize])
}

func padTo32(h Hash) []byte {
	out := make([]byte, 32)
	copy(out, h)
	return out
}

// ShortID identifies a transaction element within a compact block.
type ShortID []byte

// String returns the hex representation.
func (id ShortID) String() string {
	return hex.EncodeToString(id)
}

// ShortIDList is a sortable list of ShortID, sorted ascending for canonical
// wire ordering.
type ShortIDList []ShortID

func (s ShortIDList) Len() int           { return len(s) }
func (s ShortIDList) Less(i, j int) bool { return bytes.Compare(s[i], s[j]) < 0 }
func (s ShortIDList) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
