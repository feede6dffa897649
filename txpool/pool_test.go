// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package txpool

import (
	"errors"
	"testing"

	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/secp256k1zkp"
)

// fakeUnspent is a bare UnspentChecker: a set of commitments considered
// spendable, set up directly by the test rather than by replaying blocks
// through a real tx hash set.
type fakeUnspent struct {
	set map[string]bool
}

func newFakeUnspent() *fakeUnspent {
	return &fakeUnspent{set: make(map[string]bool)}
}

func (f *fakeUnspent) add(commit secp256k1zkp.Commitment) {
	f.set[string(commit)] = true
}

func (f *fakeUnspent) spend(commit secp256k1zkp.Commitment) {
	delete(f.set, string(commit))
}

func (f *fakeUnspent) IsUnspent(commit secp256k1zkp.Commitment) bool {
	return f.set[string(commit)]
}

func signedKernel(t *testing.T, excessBlind *secp256k1zkp.Scalar, fee uint64) consensus.TxKernel {
	t.Helper()
	k := consensus.TxKernel{
		Features: consensus.PlainKernel,
		Fee:      consensus.NewFee(fee, 0),
	}
	excessPoint := secp256k1zkp.CommitToZero(excessBlind)
	k.Excess = secp256k1zkp.ToCommitment(excessPoint)
	msg := k.Message()
	sig := secp256k1zkp.SignMessage(excessBlind, excessPoint, msg[:])
	k.ExcessSig = sig.Bytes()
	return k
}

// seedUnspentOutput registers a fresh coinbase-style commitment as
// spendable and returns it with its blinding factor.
func seedUnspentOutput(t *testing.T, unspent *fakeUnspent) (secp256k1zkp.Commitment, *secp256k1zkp.Scalar) {
	t.Helper()
	blind := secp256k1zkp.RandomScalar()
	commit := secp256k1zkp.ToCommitment(secp256k1zkp.CommitBlinded(consensus.Reward, blind))
	unspent.add(commit)
	return commit, blind
}

// spendTransaction builds a balanced, non-coinbase Transaction spending
// commit (blinded by inputBlind) into a single new output of the same
// value, zero fee.
func spendTransaction(t *testing.T, commit secp256k1zkp.Commitment, inputBlind *secp256k1zkp.Scalar) *consensus.Transaction {
	t.Helper()
	outBlind := secp256k1zkp.RandomScalar()
	proof, err := secp256k1zkp.GenerateRangeProof(consensus.Reward, outBlind)
	if err != nil {
		t.Fatalf("failed to generate range proof: %v", err)
	}

	excessBlind := secp256k1zkp.AddBlindingFactors(
		[]*secp256k1zkp.Scalar{outBlind}, []*secp256k1zkp.Scalar{inputBlind})

	body := consensus.TransactionBody{
		Inputs: consensus.InputList{
			{Features: consensus.CoinbaseOutput, Commit: commit},
		},
		Outputs: consensus.OutputList{
			{
				Features:   consensus.DefaultOutput,
				Commit:     secp256k1zkp.ToCommitment(secp256k1zkp.CommitBlinded(consensus.Reward, outBlind)),
				RangeProof: proof,
			},
		},
		Kernels: consensus.TxKernelList{signedKernel(t, excessBlind, 0)},
	}
	body.Sort()

	return &consensus.Transaction{Body: body, Offset: *secp256k1zkp.NewScalar()}
}

type noopRelay struct {
	stemErr    error
	stemCalls  int
	broadcasts int
}

func (r *noopRelay) SendStem(tx *consensus.Transaction) error {
	r.stemCalls++
	return r.stemErr
}

func (r *noopRelay) Broadcast(tx *consensus.Transaction) {
	r.broadcasts++
}

func openTestPool(t *testing.T) (*Pool, *fakeUnspent) {
	t.Helper()
	unspent := newFakeUnspent()
	cfg := DefaultConfig()
	// spendTransaction builds zero-fee transactions, so the fee floor is
	// lifted here; TestAddTransactionRejectsLowFee sets its own.
	cfg.MinFeePerWeight = 0
	return New(cfg, unspent, &noopRelay{}), unspent
}

func TestAddTransactionAcceptsValidSpend(t *testing.T) {
	p, unspent := openTestPool(t)
	commit, blind := seedUnspentOutput(t, unspent)
	tx := spendTransaction(t, commit, blind)

	result, err := p.AddTransaction(tx, Txpool, consensus.Hash(make([]byte, 32)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != Added {
		t.Fatalf("expected Added, got %s", result)
	}
	if p.Size() != 1 {
		t.Fatalf("expected pool size 1, got %d", p.Size())
	}
}

func TestAddTransactionRejectsDuplicate(t *testing.T) {
	p, unspent := openTestPool(t)
	commit, blind := seedUnspentOutput(t, unspent)
	tx := spendTransaction(t, commit, blind)

	if result, err := p.AddTransaction(tx, Txpool, nil); err != nil || result != Added {
		t.Fatalf("first add failed: result=%s err=%v", result, err)
	}

	result, err := p.AddTransaction(tx, Txpool, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != DuplicateTx {
		t.Fatalf("expected DuplicateTx, got %s", result)
	}
}

func TestAddTransactionRejectsUnknownInput(t *testing.T) {
	p, _ := openTestPool(t)

	blind := secp256k1zkp.RandomScalar()
	neverSpent := secp256k1zkp.ToCommitment(secp256k1zkp.CommitBlinded(consensus.Reward, blind))
	tx := spendTransaction(t, neverSpent, blind)

	result, err := p.AddTransaction(tx, Txpool, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != TxInvalid {
		t.Fatalf("expected TxInvalid for an input never marked unspent, got %s", result)
	}
}

func TestAddTransactionRejectsLowFee(t *testing.T) {
	p, unspent := openTestPool(t)
	p.cfg.MinFeePerWeight = 1 << 32
	commit, blind := seedUnspentOutput(t, unspent)
	tx := spendTransaction(t, commit, blind)

	result, err := p.AddTransaction(tx, Txpool, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != LowFee {
		t.Fatalf("expected LowFee, got %s", result)
	}
}

func TestReconcileBlockDropsMinedTransaction(t *testing.T) {
	p, unspent := openTestPool(t)
	commit, blind := seedUnspentOutput(t, unspent)
	tx := spendTransaction(t, commit, blind)

	if result, err := p.AddTransaction(tx, Txpool, nil); err != nil || result != Added {
		t.Fatalf("add failed: result=%s err=%v", result, err)
	}

	block := &consensus.Block{Body: tx.Body}
	p.ReconcileBlock(block)

	if p.Size() != 0 {
		t.Fatalf("expected the mined transaction to be dropped, pool size is %d", p.Size())
	}
}

func TestReconcileBlockDropsTransactionWithNowSpentInput(t *testing.T) {
	p, unspent := openTestPool(t)
	commit, blind := seedUnspentOutput(t, unspent)
	tx := spendTransaction(t, commit, blind)

	if result, err := p.AddTransaction(tx, Txpool, nil); err != nil || result != Added {
		t.Fatalf("add failed: result=%s err=%v", result, err)
	}

	// A conflicting spend of the same input confirmed first: the input is
	// no longer unspent, even though tx's own kernel never appears.
	unspent.spend(commit)
	p.ReconcileBlock(&consensus.Block{})

	if p.Size() != 0 {
		t.Fatalf("expected the now-unspendable transaction to be dropped, pool size is %d", p.Size())
	}
}

func TestExpiredStemsMovesTransactionToTxpool(t *testing.T) {
	p, unspent := openTestPool(t)
	p.cfg.EmbargoSeconds = 0
	commit, blind := seedUnspentOutput(t, unspent)
	tx := spendTransaction(t, commit, blind)

	if result, err := p.AddTransaction(tx, Stempool, nil); err != nil || result != Added {
		t.Fatalf("add failed: result=%s err=%v", result, err)
	}

	expired := p.ExpiredStems()
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired stem transaction, got %d", len(expired))
	}

	if _, ok := p.stempool[commitKey(tx)]; ok {
		t.Fatalf("expected transaction to leave the stempool")
	}
	if _, ok := p.txpool[commitKey(tx)]; !ok {
		t.Fatalf("expected transaction to land in the txpool")
	}
}

func TestRelayFallsBackToBroadcastWhenStemUnavailable(t *testing.T) {
	p, unspent := openTestPool(t)
	commit, blind := seedUnspentOutput(t, unspent)
	tx := spendTransaction(t, commit, blind)

	relay := &noopRelay{stemErr: errors.New("no stem peer")}
	p.relay = relay
	p.cfg.StemProbability = 100

	p.Relay(tx)

	if relay.stemCalls != 1 {
		t.Fatalf("expected one stem attempt, got %d", relay.stemCalls)
	}
	if relay.broadcasts != 1 {
		t.Fatalf("expected a fallback broadcast, got %d", relay.broadcasts)
	}
}

func TestFindByKernelShortIDMatchesPooledTransaction(t *testing.T) {
	p, unspent := openTestPool(t)
	commit, blind := seedUnspentOutput(t, unspent)
	tx := spendTransaction(t, commit, blind)

	if result, err := p.AddTransaction(tx, Txpool, nil); err != nil || result != Added {
		t.Fatalf("add failed: result=%s err=%v", result, err)
	}

	blockHash := consensus.Hash(make([]byte, 32))
	var nonce uint64 = 7
	id := tx.Body.Kernels[0].Hash().ShortID(blockHash, nonce)

	got, ok := p.FindByKernelShortID(blockHash, nonce, id)
	if !ok {
		t.Fatalf("expected to find the pooled transaction by short id")
	}
	if commitKey(got) != commitKey(tx) {
		t.Fatalf("resolved the wrong transaction")
	}
}
