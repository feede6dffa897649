// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"testing"
	"time"

	"github.com/mwcoin/node/secp256k1zkp"
)

func sampleHeader() BlockHeader {
	return BlockHeader{
		Version:           1,
		Height:            42,
		Previous:          make(Hash, BlockHashSize),
		PreviousRoot:      make(Hash, BlockHashSize),
		Timestamp:         time.Unix(1600000000, 0).UTC(),
		UTXORoot:          make(Hash, BlockHashSize),
		RangeProofRoot:    make(Hash, BlockHashSize),
		KernelRoot:        make(Hash, BlockHashSize),
		Nonce:             7,
		TotalKernelOffset: make(Hash, secp256k1zkp.SecretKeySize),
		TotalKernelSum:    secp256k1zkp.ToCommitment(secp256k1zkp.CommitTransparent(0)),
		OutputMmrSize:     1,
		KernelMmrSize:     1,
		POW:               NewProof(SecondPowEdgeBits, make([]uint32, ProofSize)),
		Difficulty:        MinimumDifficulty,
		TotalDifficulty:   MinimumDifficulty,
		ScalingDifficulty: 100,
	}
}

func TestBlockHeaderBytesReadRoundtrip(t *testing.T) {
	h := sampleHeader()

	var got BlockHeader
	if err := got.Read(bytes.NewReader(h.Bytes())); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if !bytes.Equal(h.Bytes(), got.Bytes()) {
		t.Fatalf("roundtrip mismatch: %x != %x", h.Bytes(), got.Bytes())
	}
	if got.Height != h.Height || got.Nonce != h.Nonce {
		t.Fatalf("field mismatch after roundtrip: %+v", got)
	}
}

func TestBlockHeaderHashCoversPOW(t *testing.T) {
	h1 := sampleHeader()
	h2 := sampleHeader()
	h2.POW.Nonces[0] = 1

	if bytes.Equal(h1.Hash(), h2.Hash()) {
		t.Fatalf("header hash must change when the proof of work changes")
	}
}

func TestBlockHeaderHashDeterministic(t *testing.T) {
	h1 := sampleHeader()
	h2 := sampleHeader()

	if !bytes.Equal(h1.Hash(), h2.Hash()) {
		t.Fatalf("identical headers must hash identically")
	}
}

func TestValidateBlockVersionSchedule(t *testing.T) {
	if !ValidateBlockVersion(0, 1) {
		t.Fatalf("version 1 should be valid before the first hard fork")
	}
	if ValidateBlockVersion(0, 2) {
		t.Fatalf("version 2 should not be valid before the first hard fork")
	}
	if !ValidateBlockVersion(HardForkV2Height, 2) {
		t.Fatalf("version 2 should be valid at the first hard fork height")
	}
	if !ValidateBlockVersion(2*HardForkInterval-1, 2) {
		t.Fatalf("version 2 should remain valid until the second hard fork")
	}
	if !ValidateBlockVersion(2*HardForkInterval, 3) {
		t.Fatalf("version 3 should be valid at the second hard fork height")
	}
}

func TestBlockVerifyCoinbaseRejectsExtraOutputs(t *testing.T) {
	b := &Block{
		Body: TransactionBody{
			Outputs: OutputList{
				{Features: CoinbaseOutput, Commit: secp256k1zkp.ToCommitment(secp256k1zkp.CommitTransparent(1))},
				{Features: CoinbaseOutput, Commit: secp256k1zkp.ToCommitment(secp256k1zkp.CommitTransparent(2))},
			},
		},
	}

	if err := b.verifyCoinbase(); err == nil {
		t.Fatalf("expected error for too many coinbase outputs")
	}
}

func TestBlockVerifyKernelLockRules(t *testing.T) {
	b := &Block{
		Header: BlockHeader{Height: 10},
		Body: TransactionBody{
			Kernels: TxKernelList{
				{Features: HeightLockedKernel, LockHeight: 11},
			},
		},
	}

	if err := b.verifyKernelLockRules(); err == nil {
		t.Fatalf("expected error for a kernel not yet matured")
	}

	b.Header.Height = 11
	if err := b.verifyKernelLockRules(); err != nil {
		t.Fatalf("unexpected error once matured: %v", err)
	}
}

func TestCompactBlockBytesReadRoundtrip(t *testing.T) {
	cb := &CompactBlock{
		Header:    sampleHeader(),
		KernelIDs: ShortIDList{make(ShortID, ShortIDSize), make(ShortID, ShortIDSize)},
	}
	cb.KernelIDs[1][0] = 1

	var got CompactBlock
	if err := got.Read(bytes.NewReader(cb.Bytes())); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(got.KernelIDs) != 2 {
		t.Fatalf("expected 2 kernel ids, got %d", len(got.KernelIDs))
	}
}
