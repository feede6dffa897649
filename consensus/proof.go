// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mwcoin/node/cuckoo"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// Proof is a Cuckoo-cycle proof of work: the graph's edge-bits and the
// ProofSize nonces forming the cycle.
type Proof struct {
	EdgeBits uint8
	Nonces   []uint32
}

// NewProof wraps nonces mined at edgeBits.
func NewProof(edgeBits uint8, nonces []uint32) Proof {
	return Proof{EdgeBits: edgeBits, Nonces: nonces}
}

var errInvalidPow = errors.New("invalid pow verify")

// Validate checks that the proof solves the Cuckoo-cycle graph keyed by
// preDigest (the header's pre-PoW hash).
func (p *Proof) Validate(preDigest []byte) error {
	logrus.Debug("block POW validate")

	if uint32(len(p.Nonces)) != ProofSize {
		return fmt.Errorf("invalid proof size: %d", len(p.Nonces))
	}

	graph := cuckoo.New(preDigest, p.EdgeBits)
	if err := graph.Verify(p.Nonces, Easiness); err != nil {
		return errInvalidPow
	}

	return nil
}

// ToDifficulty converts the proof to a Difficulty, by hashing the serialized
// proof and comparing against the maximum target.
func (p *Proof) ToDifficulty() Difficulty {
	return MinimumDifficulty.FromHash(p.Hash())
}

// Hash returns the Blake2b hash of the serialized proof.
func (p *Proof) Hash() Hash {
	hash := blake2b.Sum256(p.Bytes())
	return hash[:]
}

// ProofBytes returns the bit-packed wire encoding: edge-bits (1 byte)
// followed by ProofSize nonces, each packed at EdgeBits bits, little-endian
// within each byte.
func (p *Proof) ProofBytes() []byte {
	return p.Bytes()
}

// Bytes serializes the proof as edge-bits || bit-packed nonces.
func (p *Proof) Bytes() []byte {
	if len(p.Nonces) != int(ProofSize) {
		logrus.Fatal(errors.New("invalid proof len"))
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(p.EdgeBits)

	w := newBitWriter(int(ProofSize) * int(p.EdgeBits))
	for _, n := range p.Nonces {
		w.writeBits(uint64(n), uint(p.EdgeBits))
	}

	buf.Write(w.bytes())
	return buf.Bytes()
}

// Read decodes a Proof from its bit-packed wire encoding.
func (p *Proof) Read(r io.Reader) error {
	var edgeBitsBuf [1]byte
	if _, err := io.ReadFull(r, edgeBitsBuf[:]); err != nil {
		return err
	}
	p.EdgeBits = edgeBitsBuf[0]

	totalBits := int(ProofSize) * int(p.EdgeBits)
	packed := make([]byte, (totalBits+7)/8)
	if _, err := io.ReadFull(r, packed); err != nil {
		return err
	}

	reader := newBitReader(packed)
	p.Nonces = make([]uint32, ProofSize)
	for i := range p.Nonces {
		p.Nonces[i] = uint32(reader.readBits(uint(p.EdgeBits)))
	}

	return nil
}

// bitWriter packs values LSB-first into a little-endian bit stream.
type bitWriter struct {
	buf  []byte
	pos  int // next bit position to write
}

func newBitWriter(totalBits int) *bitWriter {
	return &bitWriter{buf: make([]byte, (totalBits+7)/8)}
}

func (w *bitWriter) writeBits(v uint64, n uint) {
	for i := uint(0); i < n; i++ {
		bit := (v >> i) & 1
		byteIdx := w.pos / 8
		bitIdx := uint(w.pos % 8)
		w.buf[byteIdx] |= byte(bit << bitIdx)
		w.pos++
	}
}

func (w *bitWriter) bytes() []byte {
	return w.buf
}

// bitReader unpacks values from a little-endian bit stream.
type bitReader struct {
	buf []byte
	pos int
}

func newBitReader(buf []byte) *bitReader {
	return &bitReader{buf: buf}
}

func (r *bitReader) readBits(n uint) uint64 {
	var v uint64
	for i := uint(0); i < n; i++ {
		byteIdx := r.pos / 8
		bitIdx := uint(r.pos % 8)
		bit := (r.buf[byteIdx] >> bitIdx) & 1
		v |= uint64(bit) << i
		r.pos++
	}
	return v
}
