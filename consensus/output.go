// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mwcoin/node/secp256k1zkp"
	"golang.org/x/crypto/blake2b"
)

// Output defines new ownership of coins being transferred. The commitment
// hides the amount; the range proof guarantees it is positive and
// non-overflowing without revealing it.
//
// The hash of an output covers only its features and commitment; the range
// proof is hashed and committed to separately so it can be pruned from the
// range-proof MMR independently of the output MMR.
type Output struct {
	Features   OutputFeatures
	Commit     secp256k1zkp.Commitment
	RangeProof secp256k1zkp.RangeProof
}

// BytesWithoutProof serializes features||commitment, the portion the
// output's Hash covers.
func (o *Output) BytesWithoutProof() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(o.Features))
	buf.Write(o.Commit)
	return buf.Bytes()
}

// Bytes implements the p2p Message interface.
func (o *Output) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Write(o.BytesWithoutProof())

	binary.Write(buf, binary.BigEndian, uint64(len(o.RangeProof)))
	buf.Write(o.RangeProof)

	return buf.Bytes()
}

// Read implements the p2p Message interface.
func (o *Output) Read(r io.Reader) error {
	var features [1]byte
	if _, err := io.ReadFull(r, features[:]); err != nil {
		return err
	}
	o.Features = OutputFeatures(features[0])

	commitment := make([]byte, secp256k1zkp.PedersenCommitmentSize)
	if _, err := io.ReadFull(r, commitment); err != nil {
		return err
	}
	o.Commit = commitment

	var proofLen uint64
	if err := binary.Read(r, binary.BigEndian, &proofLen); err != nil {
		return err
	}
	if proofLen > uint64(secp256k1zkp.MaxProofSize) {
		return fmt.Errorf("invalid range proof length: %d", proofLen)
	}

	proof := make([]byte, proofLen)
	if _, err := io.ReadFull(r, proof); err != nil {
		return fmt.Errorf("failed to deserialize range proof: %w", err)
	}
	o.RangeProof = proof

	return nil
}

// Hash returns the Blake2b hash of features||commitment.
func (o *Output) Hash() Hash {
	hashed := blake2b.Sum256(o.BytesWithoutProof())
	return hashed[:]
}

// IsCoinbase reports whether this output carries the coinbase feature flag.
func (o *Output) IsCoinbase() bool {
	return o.Features&CoinbaseOutput == CoinbaseOutput
}

// OutputList is a sortable list of outputs, ordered by hash ascending.
type OutputList []Output

func (m OutputList) Len() int           { return len(m) }
func (m OutputList) Less(i, j int) bool { return bytes.Compare(m[i].Hash(), m[j].Hash()) < 0 }
func (m OutputList) Swap(i, j int)      { m[i], m[j] = m[j], m[i] }

// TotalWeight returns the list's contribution to a body's weight.
func (m OutputList) TotalWeight() uint32 {
	return uint32(len(m)) * BlockOutputWeight
}
