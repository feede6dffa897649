// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"sort"

	"github.com/mwcoin/node/secp256k1zkp"
)

// TransactionBody is the sorted, cut-through-checked set of inputs, outputs
// and kernels shared by both Transaction and Block: the consensus rules in
// this file are context-free and apply identically to either.
type TransactionBody struct {
	Inputs  InputList
	Outputs OutputList
	Kernels TxKernelList
}

// Weight returns the body's linear weight, a·|in| + b·|out| + c·|kernels|.
func (b *TransactionBody) Weight() uint32 {
	return b.Inputs.TotalWeight() + b.Outputs.TotalWeight() + b.Kernels.TotalWeight()
}

// Sort orders inputs, outputs and kernels by their element hash ascending,
// the canonical order required before hashing or computing MMR roots.
func (b *TransactionBody) Sort() {
	sort.Sort(b.Inputs)
	sort.Sort(b.Outputs)
	sort.Sort(b.Kernels)
}

// VerifySorted checks inputs, outputs and kernels are each sorted by hash
// ascending, with no duplicate hash within a list.
func (b *TransactionBody) VerifySorted() error {
	if !sort.IsSorted(b.Inputs) || hasDuplicateInputs(b.Inputs) {
		return NewInvalid(InvalidSort, "inputs not sorted or contain duplicates")
	}
	if !sort.IsSorted(b.Outputs) || hasDuplicateOutputs(b.Outputs) {
		return NewInvalid(InvalidSort, "outputs not sorted or contain duplicates")
	}
	if !sort.IsSorted(b.Kernels) || hasDuplicateKernels(b.Kernels) {
		return NewInvalid(InvalidSort, "kernels not sorted or contain duplicates")
	}
	return nil
}

func hasDuplicateInputs(inputs InputList) bool {
	for i := 1; i < len(inputs); i++ {
		if string(inputs[i].Hash()) == string(inputs[i-1].Hash()) {
			return true
		}
	}
	return false
}

func hasDuplicateOutputs(outputs OutputList) bool {
	for i := 1; i < len(outputs); i++ {
		if string(outputs[i].Hash()) == string(outputs[i-1].Hash()) {
			return true
		}
	}
	return false
}

func hasDuplicateKernels(kernels TxKernelList) bool {
	for i := 1; i < len(kernels); i++ {
		if string(kernels[i].Hash()) == string(kernels[i-1].Hash()) {
			return true
		}
	}
	return false
}

// VerifyCutThrough rejects a body where an input's commitment equals an
// output's commitment within the same body: such a pair should have been
// cut through before aggregation.
func (b *TransactionBody) VerifyCutThrough() error {
	seen := make(map[string]struct{}, len(b.Outputs))
	for _, o := range b.Outputs {
		seen[string(o.Commit)] = struct{}{}
	}
	for _, in := range b.Inputs {
		if _, ok := seen[string(in.Commit)]; ok {
			return NewInvalid(InvalidCutThrough, "input commitment matches output commitment in same body")
		}
	}
	return nil
}

// VerifyWeight checks the body's weight does not exceed MaxBlockWeight.
func (b *TransactionBody) VerifyWeight() error {
	if b.Weight() > MaxBlockWeight {
		return NewInvalid(InvalidWeight, "body weight exceeds maximum")
	}
	return nil
}

// VerifyRangeProofs batch-verifies every output's range proof against its
// commitment.
func (b *TransactionBody) VerifyRangeProofs() error {
	commitments := make([]secp256k1zkp.Commitment, len(b.Outputs))
	proofs := make([]secp256k1zkp.RangeProof, len(b.Outputs))
	for i, o := range b.Outputs {
		commitments[i] = o.Commit
		proofs[i] = o.RangeProof
	}

	if err := secp256k1zkp.VerifyRangeProofsBatch(commitments, proofs); err != nil {
		return NewInvalid(InvalidRangeProof, err.Error())
	}
	return nil
}

// VerifyKernelSignatures verifies every kernel's excess signature one
// kernel at a time; there is no batch verification.
func (b *TransactionBody) VerifyKernelSignatures() error {
	for _, k := range b.Kernels {
		if err := k.Validate(); err != nil {
			return NewInvalid(InvalidSignature, err.Error())
		}
	}
	return nil
}

// ValidateContextFree runs the context-free body checks shared by both
// standalone transactions and blocks: weight, sort, cut-through, and
// batch cryptographic verification.
func (b *TransactionBody) ValidateContextFree() error {
	if err := b.VerifyWeight(); err != nil {
		return err
	}
	if err := b.VerifySorted(); err != nil {
		return err
	}
	if err := b.VerifyCutThrough(); err != nil {
		return err
	}
	if err := b.VerifyRangeProofs(); err != nil {
		return err
	}
	if err := b.VerifyKernelSignatures(); err != nil {
		return err
	}
	return nil
}

// KernelSum computes Σ kernel excesses as a single aggregated commitment.
func (b *TransactionBody) KernelSum() (secp256k1zkp.Commitment, error) {
	excesses := make([]secp256k1zkp.Commitment, len(b.Kernels))
	for i, k := range b.Kernels {
		excesses[i] = k.Excess
	}
	return secp256k1zkp.AddCommitments(excesses, nil)
}
