// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"testing"

	"github.com/mwcoin/node/secp256k1zkp"
)

// signedKernel builds a PlainKernel whose excess is a commitment to zero
// under excessBlind and whose signature is valid for that excess.
func signedKernel(t *testing.T, excessBlind *secp256k1zkp.Scalar, fee uint64) TxKernel {
	t.Helper()

	k := TxKernel{
		Features: PlainKernel,
		Fee:      NewFee(fee, 0),
	}
	excessPoint := secp256k1zkp.CommitToZero(excessBlind)
	k.Excess = secp256k1zkp.ToCommitment(excessPoint)

	msg := k.Message()
	sig := secp256k1zkp.SignMessage(excessBlind, excessPoint, msg[:])
	k.ExcessSig = sig.Bytes()

	return k
}

func TestTransactionValidateBalances(t *testing.T) {
	inputBlind := secp256k1zkp.RandomScalar()
	outputBlind := secp256k1zkp.RandomScalar()
	offset := secp256k1zkp.RandomScalar()

	const inputValue = 1000
	const fee = 10
	const outputValue = inputValue - fee

	// kernel excess must equal outputBlind - inputBlind - offset for the
	// balance equation to hold with overage == fee.
	excessBlind := secp256k1zkp.AddBlindingFactors(
		[]*secp256k1zkp.Scalar{outputBlind},
		[]*secp256k1zkp.Scalar{inputBlind, offset},
	)

	tx := &Transaction{
		Offset: *offset,
		Body: TransactionBody{
			Inputs: InputList{
				{Features: DefaultOutput, Commit: secp256k1zkp.ToCommitment(secp256k1zkp.CommitBlinded(inputValue, inputBlind))},
			},
			Outputs: OutputList{
				{
					Features:   DefaultOutput,
					Commit:     secp256k1zkp.ToCommitment(secp256k1zkp.CommitBlinded(outputValue, outputBlind)),
					RangeProof: make(secp256k1zkp.RangeProof, 1),
				},
			},
			Kernels: TxKernelList{signedKernel(t, excessBlind, fee)},
		},
	}

	if err := tx.Body.ValidateKernelSum(&tx.Offset, int64(tx.Fee())); err != nil {
		t.Fatalf("expected balanced transaction, got: %v", err)
	}
}

func TestTransactionValidateKernelSumRejectsTamperedFee(t *testing.T) {
	inputBlind := secp256k1zkp.RandomScalar()
	outputBlind := secp256k1zkp.RandomScalar()
	offset := secp256k1zkp.RandomScalar()

	excessBlind := secp256k1zkp.AddBlindingFactors(
		[]*secp256k1zkp.Scalar{outputBlind},
		[]*secp256k1zkp.Scalar{inputBlind, offset},
	)

	body := TransactionBody{
		Inputs: InputList{
			{Commit: secp256k1zkp.ToCommitment(secp256k1zkp.CommitBlinded(1000, inputBlind))},
		},
		Outputs: OutputList{
			{Commit: secp256k1zkp.ToCommitment(secp256k1zkp.CommitBlinded(990, outputBlind))},
		},
		Kernels: TxKernelList{signedKernel(t, excessBlind, 10)},
	}

	// Overage of 11 instead of the correct 10 must fail to balance.
	if err := body.ValidateKernelSum(offset, 11); err == nil {
		t.Fatalf("expected kernel sum mismatch with tampered overage")
	}
}

func TestTransactionBytesReadRoundtrip(t *testing.T) {
	inputBlind := secp256k1zkp.RandomScalar()
	outputBlind := secp256k1zkp.RandomScalar()
	offset := secp256k1zkp.RandomScalar()

	excessBlind := secp256k1zkp.AddBlindingFactors(
		[]*secp256k1zkp.Scalar{outputBlind},
		[]*secp256k1zkp.Scalar{inputBlind, offset},
	)

	tx := &Transaction{
		Offset: *offset,
		Body: TransactionBody{
			Inputs: InputList{
				{Commit: secp256k1zkp.ToCommitment(secp256k1zkp.CommitBlinded(1000, inputBlind))},
			},
			Outputs: OutputList{
				{
					Commit:     secp256k1zkp.ToCommitment(secp256k1zkp.CommitBlinded(990, outputBlind)),
					RangeProof: make(secp256k1zkp.RangeProof, 3),
				},
			},
			Kernels: TxKernelList{signedKernel(t, excessBlind, 10)},
		},
	}

	var got Transaction
	if err := got.Read(bytes.NewReader(tx.Bytes())); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(got.Body.Inputs) != 1 || len(got.Body.Outputs) != 1 || len(got.Body.Kernels) != 1 {
		t.Fatalf("unexpected element counts after roundtrip: %+v", got.Body)
	}
	if !bytes.Equal(got.Body.Inputs[0].Commit, tx.Body.Inputs[0].Commit) {
		t.Fatalf("input commitment mismatch after roundtrip")
	}
}

func TestTransactionRejectsCoinbaseOutput(t *testing.T) {
	tx := &Transaction{
		Body: TransactionBody{
			Outputs: OutputList{
				{Features: CoinbaseOutput, Commit: secp256k1zkp.ToCommitment(secp256k1zkp.CommitTransparent(1)), RangeProof: make(secp256k1zkp.RangeProof, 1)},
			},
		},
	}

	if err := tx.Validate(); err == nil {
		t.Fatalf("expected coinbase output to be rejected in a standalone transaction")
	}
}
