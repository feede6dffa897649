// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package secp256k1zkp

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
)

// HmacSha256 is used to derive the per-message authentication tags and
// intermediate KDF steps the handshake relies on. Kept on the standard
// library: no third-party HMAC implementation appears anywhere in the
// retrieved dependency pack, and crypto/hmac is the idiomatic choice.
func HmacSha256(key, data []byte) [32]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)

	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// HmacSha512 is the wider-output counterpart used by DeriveSessionKey's
// single extract step.
func HmacSha512(key, data []byte) [64]byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)

	var out [64]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// DeriveSessionKey turns a raw X25519 shared secret into a 32-byte AEAD key
// via a single HMAC-SHA512 extract-then-truncate step, salted by the two
// peers' handshake nonces so each connection gets an independent key even
// when long-term key material is reused.
func DeriveSessionKey(sharedSecret [32]byte, salt []byte) [32]byte {
	wide := HmacSha512(salt, sharedSecret[:])

	var key [32]byte
	copy(key[:], wide[:32])
	return key
}
