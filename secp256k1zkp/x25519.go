// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package secp256k1zkp

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// X25519KeyPair holds a Curve25519 key-exchange keypair, used by the (out
// of scope here) wallet/onion-routing layers that build on top of this
// core's handshake primitives.
type X25519KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateX25519KeyPair creates a fresh X25519 keypair.
func GenerateX25519KeyPair() (*X25519KeyPair, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("secp256k1zkp: x25519 keygen failed: %w", err)
	}

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("secp256k1zkp: x25519 basepoint mult failed: %w", err)
	}

	var kp X25519KeyPair
	kp.Private = priv
	copy(kp.Public[:], pub)
	return &kp, nil
}

// SharedSecret performs the X25519 Diffie-Hellman exchange, yielding the raw
// shared secret to be passed through a KDF before use as a session key.
func SharedSecret(private, peerPublic [32]byte) ([32]byte, error) {
	shared, err := curve25519.X25519(private[:], peerPublic[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("secp256k1zkp: x25519 exchange failed: %w", err)
	}

	var out [32]byte
	copy(out[:], shared)
	return out, nil
}

// Ed25519KeyPair wraps an Ed25519 signing keypair for peer/node identity
// signatures, distinct from the secp256k1 keys used in the transaction
// graph.
type Ed25519KeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// GenerateEd25519KeyPair creates a fresh Ed25519 identity keypair.
func GenerateEd25519KeyPair() (*Ed25519KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("secp256k1zkp: ed25519 keygen failed: %w", err)
	}
	return &Ed25519KeyPair{Private: priv, Public: pub}, nil
}

// Sign produces an Ed25519 signature over message.
func (kp *Ed25519KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.Private, message)
}

// VerifyEd25519 checks an Ed25519 signature.
func VerifyEd25519(pub ed25519.PublicKey, message, sig []byte) bool {
	return ed25519.Verify(pub, message, sig)
}
