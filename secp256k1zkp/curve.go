// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package secp256k1zkp implements the zero-knowledge primitives the chain
// relies on: Pedersen commitments, aggregate Schnorr signatures and
// bulletproof range-proof verification, one proof at a time (there is no
// batch verification), all over secp256k1.
package secp256k1zkp

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// PedersenCommitmentSize is the size in bytes of a compressed Pedersen commitment.
	PedersenCommitmentSize = 33

	// SecretKeySize is the size in bytes of a blinding factor / scalar.
	SecretKeySize = 32

	// MaxSignatureSize is the size in bytes of an aggregate Schnorr signature.
	MaxSignatureSize = 64

	// MaxProofSize is the maximum size in bytes of a bulletproof range proof.
	MaxProofSize = 675
)

// Scalar is an element of Z_n, used for blinding factors, nonces and partial
// signature components.
type Scalar struct {
	v secp256k1.ModNScalar
}

// NewScalar returns the zero scalar.
func NewScalar() *Scalar {
	return &Scalar{}
}

// RandomScalar returns a cryptographically random, non-zero scalar.
func RandomScalar() *Scalar {
	for {
		var buf [32]byte
		if _, err := rand.Read(buf[:]); err != nil {
			panic("secp256k1zkp: unable to read randomness: " + err.Error())
		}

		s := new(secp256k1.ModNScalar)
		overflow := s.SetBytes((*[32]byte)(buf[:]))
		if overflow == 0 && !s.IsZero() {
			return &Scalar{v: *s}
		}
	}
}

// ScalarFromBytes decodes a 32-byte big-endian scalar.
func ScalarFromBytes(b []byte) (*Scalar, error) {
	if len(b) != SecretKeySize {
		return nil, fmt.Errorf("secp256k1zkp: invalid scalar length: %d", len(b))
	}

	var arr [32]byte
	copy(arr[:], b)

	s := new(secp256k1.ModNScalar)
	s.SetBytes(&arr)

	return &Scalar{v: *s}, nil
}

// Bytes returns the 32-byte big-endian encoding of the scalar.
func (s *Scalar) Bytes() [32]byte {
	return s.v.Bytes()
}

// IsZero returns true if the scalar is the additive identity.
func (s *Scalar) IsZero() bool {
	return s.v.IsZero()
}

// Add returns s + other mod n.
func (s *Scalar) Add(other *Scalar) *Scalar {
	r := s.v
	r.Add(&other.v)
	return &Scalar{v: r}
}

// Sub returns s - other mod n.
func (s *Scalar) Sub(other *Scalar) *Scalar {
	neg := other.v
	neg.Negate()
	r := s.v
	r.Add(&neg)
	return &Scalar{v: r}
}

// Negate returns -s mod n.
func (s *Scalar) Negate() *Scalar {
	r := s.v
	r.Negate()
	return &Scalar{v: r}
}

// Mul returns s * other mod n.
func (s *Scalar) Mul(other *Scalar) *Scalar {
	r := s.v
	r.Mul(&other.v)
	return &Scalar{v: r}
}

// Point is an affine point on the secp256k1 curve, used for public keys,
// Pedersen commitments and aggregate nonces.
type Point struct {
	x, y secp256k1.FieldVal
}

// BasePointG returns the standard secp256k1 generator G.
func BasePointG() *Point {
	one := new(secp256k1.ModNScalar).SetInt(1)
	return ScalarMulBase(&Scalar{v: *one})
}

// pointFromJacobian converts a Jacobian point to an affine Point.
func pointFromJacobian(j *secp256k1.JacobianPoint) *Point {
	j.ToAffine()
	return &Point{x: j.X, y: j.Y}
}

// ScalarMulBase returns k*G.
func ScalarMulBase(k *Scalar) *Point {
	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&k.v, &result)
	return pointFromJacobian(&result)
}

// ScalarMul returns k*P.
func ScalarMul(k *Scalar, p *Point) *Point {
	var jp, result secp256k1.JacobianPoint
	jp.X, jp.Y = p.x, p.y
	jp.Z.SetInt(1)

	secp256k1.ScalarMultNonConst(&k.v, &jp, &result)
	return pointFromJacobian(&result)
}

// Add returns p + q.
func Add(p, q *Point) *Point {
	var jp, jq, result secp256k1.JacobianPoint
	jp.X, jp.Y = p.x, p.y
	jp.Z.SetInt(1)
	jq.X, jq.Y = q.x, q.y
	jq.Z.SetInt(1)

	secp256k1.AddNonConst(&jp, &jq, &result)
	return pointFromJacobian(&result)
}

// Negate returns -p (the reflection of p across the x-axis).
func Negate(p *Point) *Point {
	y := p.y
	y.Negate(1)
	y.Normalize()
	return &Point{x: p.x, y: y}
}

// Sub returns p - q.
func Sub(p, q *Point) *Point {
	return Add(p, Negate(q))
}

// SumPoints sums pos minus neg, i.e. sum(pos) - sum(neg), used for
// add_commitments / add_blinding_factors style accumulation.
func SumPoints(pos, neg []*Point) *Point {
	var acc *Point
	for _, p := range pos {
		if acc == nil {
			acc = p
			continue
		}
		acc = Add(acc, p)
	}

	for _, n := range neg {
		if acc == nil {
			acc = Negate(n)
			continue
		}
		acc = Sub(acc, n)
	}

	if acc == nil {
		return &Point{}
	}
	return acc
}

// Compress returns the 33-byte compressed encoding (0x02/0x03 prefix || X).
func (p *Point) Compress() [33]byte {
	var out [33]byte
	p.y.Normalize()
	if p.y.IsOdd() {
		out[0] = TagPubkeyOdd
	} else {
		out[0] = TagPubkeyEven
	}

	xb := p.x.Bytes()
	copy(out[1:], xb[:])
	return out
}

// Bytes returns the 33-byte compressed encoding, matching the Commitment
// wire representation used throughout the data model.
func (p *Point) Bytes() []byte {
	c := p.Compress()
	return c[:]
}

// Read decodes a 33-byte compressed point from r, matching the Commitment
// wire representation.
func (p *Point) Read(r io.Reader) error {
	var buf [PedersenCommitmentSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}

	decoded, err := DecompressPoint(buf[:])
	if err != nil {
		return err
	}

	*p = *decoded
	return nil
}

// DecompressPoint parses a 33-byte compressed point.
func DecompressPoint(b []byte) (*Point, error) {
	if len(b) != PedersenCommitmentSize {
		return nil, fmt.Errorf("secp256k1zkp: invalid compressed point length: %d", len(b))
	}

	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("secp256k1zkp: invalid point encoding: %w", err)
	}

	return &Point{x: *pub.X(), y: *pub.Y()}, nil
}

const (
	// TagPubkeyEven is prepended to a compressed pubkey to signal that the y
	// coordinate is even.
	TagPubkeyEven = 0x02

	// TagPubkeyOdd is prepended to a compressed pubkey to signal that the y
	// coordinate is odd.
	TagPubkeyOdd = 0x03
)
