// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package txhashset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/secp256k1zkp"
)

// BlockSums is the running (UTXOSum, KernelSum) pair needed to check the
// global balance equation without re-deriving every historical kernel
// excess: once an input is spent it falls out of the output MMR, so the
// per-block equation can't be re-summed after the fact. BlockSums carries
// the accumulated totals forward across ApplyBlock calls instead.
type BlockSums struct {
	UTXOSum   secp256k1zkp.Commitment
	KernelSum secp256k1zkp.Commitment
}

// CumulativeOverage returns the total coinbase subsidy issued through and
// including the block at height, under this chain's flat (non-halving)
// reward schedule. Fees net to zero across history: every fee paid by a
// spent input is also paid to some output, and spent outputs leave no
// trace in the current set, so only the coinbase subsidy accumulates.
func CumulativeOverage(height uint64) int64 {
	return int64(height+1) * int64(consensus.Reward)
}

// Validate checks UTXOSum - KernelSum - commit_to_zero(offset) against
// the block's cumulative overage, the global form of
// TransactionBody.ValidateKernelSum.
func (s *BlockSums) Validate(header *consensus.BlockHeader) error {
	offset, err := secp256k1zkp.ScalarFromBytes(header.TotalKernelOffset)
	if err != nil {
		return consensus.NewInvalid(consensus.InvalidKernelSum, "bad total kernel offset: "+err.Error())
	}
	offsetCommit := secp256k1zkp.ToCommitment(secp256k1zkp.CommitToZero(offset))

	overage := CumulativeOverage(header.Height)
	overageCommit := secp256k1zkp.ToCommitment(secp256k1zkp.CommitTransparent(uint64(overage)))

	rhs, err := secp256k1zkp.AddCommitments(
		[]secp256k1zkp.Commitment{s.KernelSum, offsetCommit, overageCommit}, nil)
	if err != nil {
		return consensus.NewInvalid(consensus.InvalidKernelSum, "bad cumulative kernel commitment: "+err.Error())
	}

	if !bytes.Equal(s.UTXOSum, rhs) {
		return consensus.NewInvalid(consensus.InvalidKernelSum, "cumulative kernel sum does not balance")
	}

	return nil
}

// applyBlock folds a block's outputs, inputs and kernels into the running
// sums: outputs and kernel excesses add, spent inputs subtract.
func (s *BlockSums) applyBlock(body *consensus.TransactionBody) error {
	outputCommits := make([]secp256k1zkp.Commitment, len(body.Outputs))
	for i, o := range body.Outputs {
		outputCommits[i] = o.Commit
	}
	inputCommits := make([]secp256k1zkp.Commitment, len(body.Inputs))
	for i, in := range body.Inputs {
		inputCommits[i] = in.Commit
	}

	utxoSum, err := secp256k1zkp.AddCommitments(
		append([]secp256k1zkp.Commitment{s.UTXOSum}, outputCommits...), inputCommits)
	if err != nil {
		return fmt.Errorf("txhashset: failed to fold block into utxo sum: %w", err)
	}

	kernelExcesses := make([]secp256k1zkp.Commitment, len(body.Kernels))
	for i, k := range body.Kernels {
		kernelExcesses[i] = k.Excess
	}
	kernelSum, err := secp256k1zkp.AddCommitments(
		append([]secp256k1zkp.Commitment{s.KernelSum}, kernelExcesses...), nil)
	if err != nil {
		return fmt.Errorf("txhashset: failed to fold block into kernel sum: %w", err)
	}

	s.UTXOSum = utxoSum
	s.KernelSum = kernelSum
	return nil
}

func loadBlockSums(path string) (*BlockSums, error) {
	identity, _ := secp256k1zkp.AddCommitments(nil, nil)
	s := &BlockSums{
		UTXOSum:   identity,
		KernelSum: identity,
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("txhashset: failed to open block sums file %s: %w", path, err)
	}
	defer f.Close()

	if err := s.read(f); err != nil {
		return nil, fmt.Errorf("txhashset: failed to read block sums file %s: %w", path, err)
	}
	return s, nil
}

func (s *BlockSums) save(path string) error {
	buf := new(bytes.Buffer)
	writeCommitment(buf, s.UTXOSum)
	writeCommitment(buf, s.KernelSum)
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func (s *BlockSums) read(r io.Reader) error {
	utxoSum, err := readCommitment(r)
	if err != nil {
		return err
	}
	kernelSum, err := readCommitment(r)
	if err != nil {
		return err
	}
	s.UTXOSum = utxoSum
	s.KernelSum = kernelSum
	return nil
}

func writeCommitment(w io.Writer, c secp256k1zkp.Commitment) {
	binary.Write(w, binary.BigEndian, uint64(len(c)))
	w.Write(c)
}

func readCommitment(r io.Reader) (secp256k1zkp.Commitment, error) {
	var n uint64
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	c := make([]byte, n)
	if _, err := io.ReadFull(r, c); err != nil {
		return nil, err
	}
	return c, nil
}
