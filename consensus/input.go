// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"io"

	"github.com/mwcoin/node/secp256k1zkp"
	"golang.org/x/crypto/blake2b"
)

// Input spends a previous output by commitment; spend authority comes from
// the transaction's aggregate kernel signature, not from the input itself.
type Input struct {
	Features OutputFeatures
	Commit   secp256k1zkp.Commitment
}

// Bytes implements the p2p Message interface.
func (input *Input) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(input.Features))
	buf.Write(input.Commit)
	return buf.Bytes()
}

// Read implements the p2p Message interface.
func (input *Input) Read(r io.Reader) error {
	var features [1]byte
	if _, err := io.ReadFull(r, features[:]); err != nil {
		return err
	}
	input.Features = OutputFeatures(features[0])

	commitment := make([]byte, secp256k1zkp.PedersenCommitmentSize)
	if _, err := io.ReadFull(r, commitment); err != nil {
		return err
	}
	input.Commit = commitment

	return nil
}

// Hash returns the Blake2b hash of features||commitment.
func (input *Input) Hash() Hash {
	hashed := blake2b.Sum256(input.Bytes())
	return hashed[:]
}

// InputList is a sortable list of inputs, ordered by hash ascending.
type InputList []Input

func (m InputList) Len() int           { return len(m) }
func (m InputList) Less(i, j int) bool { return bytes.Compare(m[i].Hash(), m[j].Hash()) < 0 }
func (m InputList) Swap(i, j int)      { m[i], m[j] = m[j], m[i] }

// TotalWeight returns the list's contribution to a body's weight.
func (m InputList) TotalWeight() uint32 {
	return uint32(len(m)) * BlockInputWeight
}
