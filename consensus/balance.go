// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"

	"github.com/mwcoin/node/secp256k1zkp"
)

// ValidateKernelSum checks the body's balance equation:
//
//	Σ outputs − Σ inputs = Σ kernels + commit_to_zero(offset) + commit_transparent(overage)
//
// overage accounts for coinbase inflation (reward) and/or fees, signed
// positive when value is created.
func (b *TransactionBody) ValidateKernelSum(offset *secp256k1zkp.Scalar, overage int64) error {
	outputCommits := make([]secp256k1zkp.Commitment, len(b.Outputs))
	for i, o := range b.Outputs {
		outputCommits[i] = o.Commit
	}

	inputCommits := make([]secp256k1zkp.Commitment, len(b.Inputs))
	for i, in := range b.Inputs {
		inputCommits[i] = in.Commit
	}

	lhs, err := secp256k1zkp.AddCommitments(outputCommits, inputCommits)
	if err != nil {
		return NewInvalid(InvalidKernelSum, "bad output/input commitment: "+err.Error())
	}

	kernelSum, err := b.KernelSum()
	if err != nil {
		return NewInvalid(InvalidKernelSum, "bad kernel excess: "+err.Error())
	}

	offsetCommit := secp256k1zkp.ToCommitment(secp256k1zkp.CommitToZero(offset))

	var overageCommit secp256k1zkp.Commitment
	if overage >= 0 {
		p := secp256k1zkp.CommitTransparent(uint64(overage))
		overageCommit = secp256k1zkp.ToCommitment(p)
		kernelSum, err = secp256k1zkp.AddCommitments([]secp256k1zkp.Commitment{kernelSum, offsetCommit, overageCommit}, nil)
	} else {
		p := secp256k1zkp.CommitTransparent(uint64(-overage))
		overageCommit = secp256k1zkp.ToCommitment(p)
		kernelSum, err = secp256k1zkp.AddCommitments([]secp256k1zkp.Commitment{kernelSum, offsetCommit}, []secp256k1zkp.Commitment{overageCommit})
	}
	if err != nil {
		return NewInvalid(InvalidKernelSum, "bad overage/offset commitment: "+err.Error())
	}

	if !bytes.Equal(lhs, kernelSum) {
		return NewInvalid(InvalidKernelSum, "kernel sum does not balance")
	}

	return nil
}

// RewardOverage returns the overage for a block at height: the coinbase
// reward plus every kernel's fee.
func RewardOverage(height uint64, kernels TxKernelList) int64 {
	return int64(Reward) + int64(kernels.TotalFee())
}
