// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package secp256k1zkp

import (
	"crypto/sha256"
	"fmt"
)

// Signature is an aggregate Schnorr signature (R, s): knowledge of the sum
// of the private keys behind an aggregate public key, without revealing any
// one of them individually.
type Signature struct {
	R *Point
	S *Scalar
}

// Bytes serializes the signature as 64 bytes: compressed R.X || s.
func (sig *Signature) Bytes() [64]byte {
	var out [64]byte
	rc := sig.R.Compress()
	copy(out[0:32], rc[1:33])
	s := sig.S.Bytes()
	copy(out[32:64], s[:])
	return out
}

// DecodeSignature reads a 64-byte aggregate signature. The R point is
// recovered as the even-y point for the encoded X, matching the kernel
// wire format which stores only R.X.
func DecodeSignature(b []byte) (*Signature, error) {
	if len(b) != MaxSignatureSize {
		return nil, fmt.Errorf("secp256k1zkp: invalid signature length: %d", len(b))
	}

	compressed := make([]byte, PedersenCommitmentSize)
	compressed[0] = TagPubkeyEven
	copy(compressed[1:], b[0:32])

	r, err := DecompressPoint(compressed)
	if err != nil {
		return nil, fmt.Errorf("secp256k1zkp: invalid signature R: %w", err)
	}

	s, err := ScalarFromBytes(b[32:64])
	if err != nil {
		return nil, fmt.Errorf("secp256k1zkp: invalid signature s: %w", err)
	}

	return &Signature{R: r, S: s}, nil
}

// computeChallenge returns the Schnorr/Musig challenge
// e = H(R.X || compressed(pubkey) || message).
func computeChallenge(r *Point, pubkey *Point, message []byte) *Scalar {
	h := sha256.New()
	rc := r.Compress()
	h.Write(rc[1:33])
	pc := pubkey.Compress()
	h.Write(pc[:])
	h.Write(message)

	sum := h.Sum(nil)
	s, _ := ScalarFromBytes(sum)
	return s
}

// SignMessage produces a single-signer Schnorr signature over message
// proving knowledge of privateKey for publicKey = privateKey*G.
func SignMessage(privateKey *Scalar, publicKey *Point, message []byte) *Signature {
	nonce := RandomScalar()
	r := ScalarMulBase(nonce)
	// Only R.X travels on the wire and decodes as the even-y point, so
	// flip the nonce when R comes out odd.
	if r.Compress()[0] == TagPubkeyOdd {
		nonce = nonce.Negate()
		r = Negate(r)
	}

	e := computeChallenge(r, publicKey, message)
	s := nonce.Add(e.Mul(privateKey))

	return &Signature{R: r, S: s}
}

// VerifySignature checks s*G == R + e*P.
func VerifySignature(publicKey *Point, message []byte, sig *Signature) bool {
	e := computeChallenge(sig.R, publicKey, message)

	lhs := ScalarMulBase(sig.S)
	rhs := Add(sig.R, ScalarMul(e, publicKey))

	lc := lhs.Compress()
	rc := rhs.Compress()
	return lc == rc
}

// AggsigContext tracks one party's state across the two Musig-style rounds
// of aggregate kernel signing: a commitment to a nonce, then a partial
// signature once every party's nonce and the sum of their public keys and
// blinding factors are known.
type AggsigContext struct {
	secretKey   *Scalar
	secretNonce *Scalar
}

// NewAggsigContext starts a fresh signing round for secretKey (the
// transaction's excess blinding factor).
func NewAggsigContext(secretKey *Scalar) *AggsigContext {
	return &AggsigContext{
		secretKey:   secretKey,
		secretNonce: RandomScalar(),
	}
}

// NoncePublic returns this party's public nonce commitment, exchanged with
// the other signers before any partial signature is produced.
func (ctx *AggsigContext) NoncePublic() *Point {
	return ScalarMulBase(ctx.secretNonce)
}

// PublicKey returns publicKey = secretKey*G for this party.
func (ctx *AggsigContext) PublicKey() *Point {
	return ScalarMulBase(ctx.secretKey)
}

// PartialSign computes this party's contribution s_i = k_i + e*x_i to the
// aggregate signature, given the sum of all parties' public nonces and the
// sum of all parties' public keys (the kernel excess), over message.
func (ctx *AggsigContext) PartialSign(nonceSum, pubkeySum *Point, message []byte) *Scalar {
	e := computeChallenge(nonceSum, pubkeySum, message)
	return ctx.secretNonce.Add(e.Mul(ctx.secretKey))
}

// AggregateSignatures sums partial signatures and pairs the total with the
// shared nonce sum to produce the final aggregate signature.
func AggregateSignatures(nonceSum *Point, partials []*Scalar) *Signature {
	s := NewScalar()
	for _, p := range partials {
		s = s.Add(p)
	}
	return &Signature{R: nonceSum, S: s}
}

// VerifyPartial checks one party's partial signature against their public
// nonce and public key, so a coordinator can identify a misbehaving signer
// before aggregation.
func VerifyPartial(partial *Scalar, noncePublic, pubkeySum *Point, nonceSum *Point, pubkey *Point, message []byte) bool {
	e := computeChallenge(nonceSum, pubkeySum, message)
	lhs := ScalarMulBase(partial)
	rhs := Add(noncePublic, ScalarMul(e, pubkey))
	lc := lhs.Compress()
	rc := rhs.Compress()
	return lc == rc
}

// SumPublicKeys aggregates a set of per-party public keys/nonces into the
// one used for the challenge hash.
func SumPublicKeys(keys []*Point) *Point {
	return SumPoints(keys, nil)
}
