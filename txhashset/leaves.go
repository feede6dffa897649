// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package txhashset

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/secp256k1zkp"
	"golang.org/x/crypto/blake2b"
)

// rangeProofLeaf wraps a bulletproof so it satisfies mmr.Leaf: the
// range-proof MMR is hashed and pruned independently of the output MMR it
// is keyed alongside, per the invariant that an output's hash never
// covers its own proof.
type rangeProofLeaf struct {
	Proof secp256k1zkp.RangeProof
}

func (l *rangeProofLeaf) Bytes() []byte {
	buf := make([]byte, 8+len(l.Proof))
	binary.BigEndian.PutUint64(buf[:8], uint64(len(l.Proof)))
	copy(buf[8:], l.Proof)
	return buf
}

func (l *rangeProofLeaf) Read(r io.Reader) error {
	var n uint64
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return err
	}
	if n > uint64(secp256k1zkp.MaxProofSize) {
		return fmt.Errorf("txhashset: range proof leaf too large: %d", n)
	}
	proof := make([]byte, n)
	if _, err := io.ReadFull(r, proof); err != nil {
		return err
	}
	l.Proof = proof
	return nil
}

func (l *rangeProofLeaf) Hash() consensus.Hash {
	h := blake2b.Sum256(l.Bytes())
	return h[:]
}

// outputLeaf is the lean record stored in the output MMR's data file:
// features and commitment only, matching consensus.Output.BytesWithoutProof
// so its Hash agrees with consensus.Output.Hash. The proof itself lives in
// the parallel range-proof MMR so the two can be pruned independently.
type outputLeaf struct {
	Features consensus.OutputFeatures
	Commit   secp256k1zkp.Commitment
}

func (l *outputLeaf) Bytes() []byte {
	buf := make([]byte, 1+secp256k1zkp.PedersenCommitmentSize)
	buf[0] = byte(l.Features)
	copy(buf[1:], l.Commit)
	return buf
}

func (l *outputLeaf) Read(r io.Reader) error {
	var features [1]byte
	if _, err := io.ReadFull(r, features[:]); err != nil {
		return err
	}
	l.Features = consensus.OutputFeatures(features[0])

	commit := make([]byte, secp256k1zkp.PedersenCommitmentSize)
	if _, err := io.ReadFull(r, commit); err != nil {
		return err
	}
	l.Commit = commit
	return nil
}

func (l *outputLeaf) Hash() consensus.Hash {
	h := blake2b.Sum256(l.Bytes())
	return h[:]
}
