// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package secp256k1zkp

import (
	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"
)

// Blake2b256 is the canonical hash used for headers, MMR nodes and
// transaction element IDs.
func Blake2b256(data ...[]byte) [32]byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic("secp256k1zkp: blake2b256 init failed: " + err.Error())
	}
	for _, d := range data {
		h.Write(d)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SipHash24 computes a keyed siphash-2-4 digest, used both for cuckoo-cycle
// edge generation and for compact-block short transaction IDs.
func SipHash24(k0, k1 uint64, data []byte) uint64 {
	return siphash.Hash(k0, k1, data)
}

// ShortIDKeys derives the pair of siphash keys for a block from its hash and
// a random nonce, following the compact-block short-ID scheme: the key
// material is blake2b(header_hash || nonce), split into two little-endian
// u64s.
func ShortIDKeys(headerHash [32]byte, nonce uint64) (k0, k1 uint64) {
	var nonceBytes [8]byte
	putUint64LE(nonceBytes[:], nonce)

	digest := Blake2b256(headerHash[:], nonceBytes[:])
	k0 = getUint64LE(digest[0:8])
	k1 = getUint64LE(digest[8:16])
	return k0, k1
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

func getUint64LE(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return v
}
