// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package secp256k1zkp

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealSession authenticates-and-encrypts a P2P payload under a session key
// derived from the handshake, prefixing the output with a fresh nonce.
func SealSession(key [32]byte, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("secp256k1zkp: aead init failed: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("secp256k1zkp: nonce generation failed: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, additionalData)
	return append(nonce, sealed...), nil
}

// OpenSession reverses SealSession.
func OpenSession(key [32]byte, ciphertext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("secp256k1zkp: aead init failed: %w", err)
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("secp256k1zkp: ciphertext shorter than nonce")
	}

	nonce := ciphertext[:aead.NonceSize()]
	sealed := ciphertext[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, additionalData)
	if err != nil {
		return nil, fmt.Errorf("secp256k1zkp: aead open failed: %w", err)
	}

	return plaintext, nil
}
