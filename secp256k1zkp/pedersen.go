// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package secp256k1zkp

import (
	"fmt"
	"io"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/blake2b"
)

// Commitment is a 33-byte compressed Pedersen commitment.
type Commitment []byte

// Bytes implements p2p Message interface.
func (c *Commitment) Bytes() []byte {
	return *c
}

// Read implements p2p Message interface.
func (c *Commitment) Read(r io.Reader) error {
	*c = make([]byte, PedersenCommitmentSize)
	_, err := io.ReadFull(r, *c)
	return err
}

// String implements String() interface.
func (c Commitment) String() string {
	return fmt.Sprintf("%x", []byte(c))
}

// ToPoint decompresses the commitment into a curve point.
func (c Commitment) ToPoint() (*Point, error) {
	return DecompressPoint(c)
}

// secondGenerator lazily computes and caches H, the second Pedersen
// generator, via try-and-increment hash-to-curve over a fixed domain
// separator so that nobody knows log_G(H).
var secondGenerator *Point

// H returns the second Pedersen generator.
func H() *Point {
	if secondGenerator != nil {
		return secondGenerator
	}

	seed := []byte("mimblewimble-node/secp256k1zkp/H-generator")
	for counter := uint32(0); ; counter++ {
		h := blake2b.Sum256(append(append([]byte{}, seed...), byte(counter), byte(counter>>8), byte(counter>>16), byte(counter>>24)))

		candidate := make([]byte, PedersenCommitmentSize)
		candidate[0] = TagPubkeyEven
		copy(candidate[1:], h[:])

		if p, err := DecompressPoint(candidate); err == nil {
			secondGenerator = p
			return p
		}
	}
}

// CommitTransparent returns a "commitment" to value v with a zero blinding
// factor: v*H. Used to bind public amounts (coinbase reward, fees) into the
// kernel-sum equation without hiding them.
func CommitTransparent(v uint64) *Point {
	scalar := ScalarFromUint64(v)
	return ScalarMul(scalar, H())
}

// CommitBlinded returns the Pedersen commitment r*G + v*H.
func CommitBlinded(v uint64, blind *Scalar) *Point {
	vH := ScalarMul(ScalarFromUint64(v), H())
	rG := ScalarMulBase(blind)
	return Add(rG, vH)
}

// CommitToZero returns a commitment to the value zero under blind: r*G.
// This is precisely `to_commitment` applied to a public key.
func CommitToZero(blind *Scalar) *Point {
	return ScalarMulBase(blind)
}

// ScalarFromUint64 lifts a u64 amount into Z_n.
func ScalarFromUint64(v uint64) *Scalar {
	s := new(secp256k1.ModNScalar).SetInt(uint32(v >> 32))
	hi := *s
	hi.Mul(shiftedBy32())
	lo := new(secp256k1.ModNScalar).SetInt(uint32(v))
	hi.Add(lo)
	return &Scalar{v: hi}
}

var shiftedBy32Cache *secp256k1.ModNScalar

// shiftedBy32 returns 2^32 mod n, memoized.
func shiftedBy32() *secp256k1.ModNScalar {
	if shiftedBy32Cache != nil {
		return shiftedBy32Cache
	}

	v := new(big.Int).Lsh(big.NewInt(1), 32)
	var buf [32]byte
	v.FillBytes(buf[:])

	s := new(secp256k1.ModNScalar)
	s.SetByteSlice(buf[:])
	shiftedBy32Cache = s
	return s
}

// AddCommitments sums positive commitments minus negative ones, as points.
// This is the homomorphic Pedersen accounting used by kernel-sum validation:
// Σ outputs − Σ inputs ?= Σ kernels + commit_to_zero(offset) + overage.
func AddCommitments(pos, neg []Commitment) (Commitment, error) {
	// The identity (e.g. a zero sum, offset or overage) compresses to a
	// prefix byte and 32 zero bytes, which is not a curve point; it adds
	// nothing to the sum, so it is skipped rather than decompressed.
	isIdentity := func(c Commitment) bool {
		if len(c) != 33 {
			return false
		}
		for _, b := range c[1:] {
			if b != 0 {
				return false
			}
		}
		return true
	}

	posPoints := make([]*Point, 0, len(pos))
	for _, c := range pos {
		if isIdentity(c) {
			continue
		}
		p, err := c.ToPoint()
		if err != nil {
			return nil, fmt.Errorf("secp256k1zkp: bad positive commitment: %w", err)
		}
		posPoints = append(posPoints, p)
	}

	negPoints := make([]*Point, 0, len(neg))
	for _, c := range neg {
		if isIdentity(c) {
			continue
		}
		p, err := c.ToPoint()
		if err != nil {
			return nil, fmt.Errorf("secp256k1zkp: bad negative commitment: %w", err)
		}
		negPoints = append(negPoints, p)
	}

	sum := SumPoints(posPoints, negPoints)
	compressed := sum.Compress()
	return Commitment(compressed[:]), nil
}

// AddBlindingFactors sums positive blinding factors minus negative ones.
func AddBlindingFactors(pos, neg []*Scalar) *Scalar {
	acc := NewScalar()
	for _, p := range pos {
		acc = acc.Add(p)
	}
	for _, n := range neg {
		acc = acc.Sub(n)
	}
	return acc
}

// ToCommitment re-encodes a public key point as a commitment to zero under
// that key (calculate_public_key's dual).
func ToCommitment(p *Point) Commitment {
	c := p.Compress()
	return Commitment(c[:])
}
