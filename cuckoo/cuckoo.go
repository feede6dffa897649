// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package cuckoo implements the Cuckoo Cycle proof-of-work graph and cycle
// verifier, in its two chain variants: Cuckaroo (secondary, ASIC-resistant,
// fixed 29 edge bits) and Cuckatoo (primary, ASIC-targeted, >=31 edge bits).
package cuckoo

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// Variant identifies which cycle-finding graph a proof was mined against.
type Variant int

const (
	// Cuckaroo is the secondary, ASIC-resistant variant.
	Cuckaroo Variant = iota
	// Cuckatoo is the primary, ASIC-targeted variant.
	Cuckatoo
)

// SecondPowEdgeBits is the fixed edge-bits of the Cuckaroo graph.
const SecondPowEdgeBits uint8 = 29

// DefaultMinEdgeBits is the minimum edge-bits accepted for a Cuckatoo graph.
const DefaultMinEdgeBits uint8 = 31

// VariantForEdgeBits selects the graph variant a proof with the given
// edge-bits was mined under.
func VariantForEdgeBits(edgeBits uint8) Variant {
	if edgeBits == SecondPowEdgeBits {
		return Cuckaroo
	}
	return Cuckatoo
}

// Graph is a keyed Cuckoo Cycle instance over 2^edgeBits nodes, split into
// U and V partitions of 2^(edgeBits-1) nodes each.
type Graph struct {
	mask    uint64
	size    uint64
	v       [4]uint64
	variant Variant
	edgeBits uint8
}

// New derives a Graph's siphash keys from a header hash, following the
// standard key-schedule: blake2b(headerHash) split into two little-endian
// u64 words, mixed into the siphash-2-4 ASCII constants.
func New(headerHash []byte, edgeBits uint8) *Graph {
	digest := blake2b.Sum256(headerHash)

	k0 := binary.LittleEndian.Uint64(digest[:8])
	k1 := binary.LittleEndian.Uint64(digest[8:16])

	var v [4]uint64
	v[0] = k0 ^ 0x736f6d6570736575
	v[1] = k1 ^ 0x646f72616e646f6d
	v[2] = k0 ^ 0x6c7967656e657261
	v[3] = k1 ^ 0x7465646279746573

	return &Graph{
		mask:     (uint64(1)<<edgeBits)/2 - 1,
		size:     uint64(1) << edgeBits,
		v:        v,
		variant:  VariantForEdgeBits(edgeBits),
		edgeBits: edgeBits,
	}
}

// Variant returns the graph's Cuckaroo/Cuckatoo variant.
func (g *Graph) Variant() Variant {
	return g.variant
}

// edge is one of the proof's 42 candidate cycle edges.
type edge struct {
	u, v       uint64
	usedU, usedV bool
}

func (g *Graph) node(nonce uint64, side uint64) uint64 {
	return ((siphash24(g.v, 2*nonce+side) & g.mask) << 1) | side
}

func (g *Graph) newEdge(nonce uint32) edge {
	return edge{u: g.node(uint64(nonce), 0), v: g.node(uint64(nonce), 1)}
}

// ErrInvalidProof is returned when the nonces don't form a cycle of the
// expected length, or aren't strictly increasing, or exceed the graph's
// easiness bound.
var ErrInvalidProof = errors.New("cuckoo: invalid proof of work")

// Verify checks that nonces forms a single cycle covering every one of its
// edges exactly once, within the graph's easiness bound (ease percent of
// the graph's node count).
func (g *Graph) Verify(nonces []uint32, ease uint32) error {
	proofSize := len(nonces)
	if proofSize == 0 {
		return ErrInvalidProof
	}

	easiness := uint64(ease) * g.size / 100

	edges := make([]edge, proofSize)
	for i := 0; i < proofSize; i++ {
		if uint64(nonces[i]) >= easiness || (i != 0 && nonces[i] <= nonces[i-1]) {
			return ErrInvalidProof
		}
		edges[i] = g.newEdge(nonces[i])
	}

	i, side, cycle := 0, 0, 0

loop:
	for {
		if side%2 == 0 {
			for j := 0; j < proofSize; j++ {
				if j != i && !edges[j].usedU && edges[i].u == edges[j].u {
					edges[i].usedU = true
					edges[j].usedU = true
					i = j
					side ^= 1
					cycle++
					continue loop
				}
			}
		} else {
			for j := 0; j < proofSize; j++ {
				if j != i && !edges[j].usedV && edges[i].v == edges[j].v {
					edges[i].usedV = true
					edges[j].usedV = true
					i = j
					side ^= 1
					cycle++
					continue loop
				}
			}
		}
		break
	}

	if cycle != proofSize {
		return ErrInvalidProof
	}

	return nil
}
