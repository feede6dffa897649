// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package txpool holds not-yet-mined transactions in two buckets, a stempool
// for transactions still moving through the Dandelion relay path and a
// txpool for transactions ready to be broadcast openly, and reconciles both
// against each confirmed block.
package txpool

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/secp256k1zkp"
)

// UnspentChecker is the read-only UTXO surface the pool needs: whether a
// referenced commitment is still spendable. Satisfied by
// *txhashset.TxHashSet; held as an interface so txpool does not import
// txhashset and so tests can fake the unspent set without standing up a
// real tx hash set.
type UnspentChecker interface {
	IsUnspent(commit secp256k1zkp.Commitment) bool
}

// PoolType selects which bucket a transaction is held in.
type PoolType int

const (
	// Stempool holds transactions still being relayed stem-hop to
	// stem-hop, visible to nobody but the next hop in the path.
	Stempool PoolType = iota
	// Txpool holds transactions ready for open broadcast (fluff phase).
	Txpool
)

func (pt PoolType) String() string {
	if pt == Stempool {
		return "stempool"
	}
	return "txpool"
}

// AddResult is the outcome of AddTransaction, matching the five-value
// result set a Dandelion-aware pool must report to its caller.
type AddResult int

const (
	// Added means the transaction was accepted into the requested pool.
	Added AddResult = iota
	// DuplicateTx means an identical transaction (by kernel commitment)
	// already sits in either pool.
	DuplicateTx
	// LowFee means the transaction's fee-per-weight falls under the
	// pool's configured minimum.
	LowFee
	// TxInvalid means the transaction failed context-free or
	// unspent-input validation.
	TxInvalid
	// NotAdded covers any other rejection (e.g. pool full).
	NotAdded
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "ADDED"
	case DuplicateTx:
		return "DUPL_TX"
	case LowFee:
		return "LOW_FEE"
	case TxInvalid:
		return "TX_INVALID"
	default:
		return "NOT_ADDED"
	}
}

// Config carries the pool's Dandelion relay parameters, each named after
// its spec-prose counterpart.
type Config struct {
	// MinFeePerWeight rejects any transaction whose fee divided by its
	// body weight falls below this, in base units per weight unit.
	MinFeePerWeight uint64

	// RelaySeconds is how long this node keeps the same stem relay peer
	// before rolling over to a new one, bounding the length of time an
	// observer can link stems to a single downstream node.
	RelaySeconds time.Duration

	// StemProbability is the percent chance (0-100) a freshly stemmed
	// transaction is relayed to the next hop rather than fluffed
	// (broadcast openly) immediately.
	StemProbability int

	// PatienceSeconds is how long newly stemmed transactions are held
	// and aggregated before being relayed onward in a batch.
	PatienceSeconds time.Duration

	// EmbargoSeconds bounds how long a stem transaction may sit
	// unconfirmed before this node gives up on the stem phase and
	// fluffs it itself, the fallback that keeps a stalled relay path
	// from burying a transaction forever.
	EmbargoSeconds time.Duration

	// MaxPoolSize caps the combined number of transactions held across
	// both buckets.
	MaxPoolSize int
}

// DefaultConfig returns the parameters named in the Dandelion relay
// design: a ten-minute relay epoch, 90% stem probability, a ten-second
// aggregation window and a three-minute embargo before a stem
// transaction is force-fluffed.
func DefaultConfig() Config {
	return Config{
		MinFeePerWeight: 1,
		RelaySeconds:    600 * time.Second,
		StemProbability: 90,
		PatienceSeconds: 10 * time.Second,
		EmbargoSeconds:  180 * time.Second,
		MaxPoolSize:     50000,
	}
}

// Relay is the outbound network surface the pool needs: relaying a
// transaction privately to a single stem-phase peer, or broadcasting it
// openly to everyone. Held as an interface so txpool does not import the
// p2p package; p2p implements Relay instead.
type Relay interface {
	// SendStem relays tx to the single next-hop stem peer, or returns an
	// error if no stem peer is currently available (the caller should
	// fluff instead).
	SendStem(tx *consensus.Transaction) error
	// Broadcast relays tx openly to every connected peer.
	Broadcast(tx *consensus.Transaction)
}

// entry is one pooled transaction plus its Dandelion bookkeeping.
type entry struct {
	tx      *consensus.Transaction
	addedAt time.Time
	embargo time.Time
	fluffed bool
}

// Pool is the combined stempool/txpool, reconciled against the confirmed
// chain through blockchain.Engine.SetPoolReconciler.
type Pool struct {
	cfg   Config
	ths   UnspentChecker
	relay Relay

	mu        sync.Mutex
	stempool  map[string]*entry // keyed by kernel excess commitment
	txpool    map[string]*entry
	relayPeer string
	epochEnds time.Time
}

// New returns a pool validating inputs against ths and relaying stem
// transactions and broadcasts through relay.
func New(cfg Config, ths UnspentChecker, relay Relay) *Pool {
	return &Pool{
		cfg:      cfg,
		ths:      ths,
		relay:    relay,
		stempool: make(map[string]*entry),
		txpool:   make(map[string]*entry),
	}
}

// SetRelay wires the pool's outbound relay after construction, for the
// common case where the Relay implementation (the p2p peer manager) isn't
// built until after the pool it depends on.
func (p *Pool) SetRelay(relay Relay) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.relay = relay
}

// size returns the combined bucket population. Caller must hold p.mu.
func (p *Pool) size() int {
	return len(p.stempool) + len(p.txpool)
}

// commitKey identifies a transaction by the sorted set of its kernel
// excess commitments, which is stable across re-serialization and unique
// barring a signature forgery.
func commitKey(tx *consensus.Transaction) string {
	var key []byte
	for _, k := range tx.Body.Kernels {
		key = append(key, k.Excess...)
	}
	return string(key)
}

// memberOf reports whether key is already present in either bucket.
// Caller must hold p.mu.
func (p *Pool) memberOf(key string) bool {
	if _, ok := p.stempool[key]; ok {
		return true
	}
	_, ok := p.txpool[key]
	return ok
}

// feePerWeight returns tx's fee divided by its body weight, floored at
// weight 1 so an empty body can't divide by zero.
func feePerWeight(tx *consensus.Transaction) uint64 {
	weight := tx.Body.Weight()
	if weight == 0 {
		weight = 1
	}
	return tx.Fee() / uint64(weight)
}

// AddTransaction validates tx and, if accepted, inserts it into the
// requested bucket. tip names the block hash the caller believes is the
// current head, recorded purely for short-id lookups by AddCompactBlock
// callers; AddTransaction itself does not reject on a stale tip.
func (p *Pool) AddTransaction(tx *consensus.Transaction, pool PoolType, tip consensus.Hash) (AddResult, error) {
	if err := tx.Validate(); err != nil {
		return TxInvalid, err
	}

	for _, in := range tx.Body.Inputs {
		if !p.ths.IsUnspent(in.Commit) {
			return TxInvalid, nil
		}
	}

	if feePerWeight(tx) < p.cfg.MinFeePerWeight {
		return LowFee, nil
	}

	key := commitKey(tx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.memberOf(key) {
		return DuplicateTx, nil
	}

	if p.size() >= p.cfg.MaxPoolSize {
		return NotAdded, nil
	}

	now := time.Now()
	e := &entry{
		tx:      tx,
		addedAt: now,
		embargo: now.Add(p.cfg.EmbargoSeconds),
	}

	switch pool {
	case Stempool:
		p.stempool[key] = e
	default:
		p.txpool[key] = e
	}

	return Added, nil
}

// ShouldStem flips the Dandelion coin for a freshly accepted transaction:
// true with probability cfg.StemProbability, meaning it should be relayed
// privately rather than broadcast immediately.
func (p *Pool) ShouldStem() bool {
	return rand.Intn(100) < p.cfg.StemProbability
}

// Relay stems or fluffs tx according to the result of ShouldStem, falling
// back to a fluff broadcast if no stem peer is reachable.
func (p *Pool) Relay(tx *consensus.Transaction) {
	if p.ShouldStem() {
		if err := p.relay.SendStem(tx); err == nil {
			return
		}
	}
	p.relay.Broadcast(tx)
}

// ExpiredStems returns every stempool transaction whose embargo timer has
// elapsed without the transaction reaching the confirmed chain, so the
// caller can force-fluff them. Polled rather than timer-driven, mirroring
// the original pool's GetExpiredTransactions query.
func (p *Pool) ExpiredStems() []*consensus.Transaction {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []*consensus.Transaction
	for key, e := range p.stempool {
		if e.fluffed || now.Before(e.embargo) {
			continue
		}
		e.fluffed = true
		delete(p.stempool, key)
		p.txpool[key] = e
		expired = append(expired, e.tx)
	}
	return expired
}

// FindByKernelShortID implements blockchain.TransactionSource: it scans
// both buckets for a kernel whose short id (keyed by blockHash and nonce)
// matches id, letting a compact block reconstruct its body from
// already-known transactions instead of round-tripping to the sender.
func (p *Pool) FindByKernelShortID(blockHash consensus.Hash, nonce uint64, id consensus.ShortID) (*consensus.Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.stempool {
		if tx, ok := matchShortID(e.tx, blockHash, nonce, id); ok {
			return tx, true
		}
	}
	for _, e := range p.txpool {
		if tx, ok := matchShortID(e.tx, blockHash, nonce, id); ok {
			return tx, true
		}
	}
	return nil, false
}

func matchShortID(tx *consensus.Transaction, blockHash consensus.Hash, nonce uint64, id consensus.ShortID) (*consensus.Transaction, bool) {
	for _, k := range tx.Body.Kernels {
		got := k.Hash().ShortID(blockHash, nonce)
		if shortIDsEqual(got, id) {
			return tx, true
		}
	}
	return nil, false
}

func shortIDsEqual(a, b consensus.ShortID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ReconcileBlock implements blockchain.PoolReconciler: it drops every
// pooled transaction that either contributed a kernel to block or whose
// inputs the block has now spent, then re-validates whatever remains
// (a transaction can become invalid if a later pooled transaction it
// depended on was itself dropped) so neither bucket ever carries a
// transaction the new tip has made stale.
func (p *Pool) ReconcileBlock(block *consensus.Block) {
	mined := make(map[string]struct{}, len(block.Body.Kernels))
	for _, k := range block.Body.Kernels {
		mined[string(k.Excess)] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.reconcileBucket(p.stempool, mined)
	p.reconcileBucket(p.txpool, mined)
}

func (p *Pool) reconcileBucket(bucket map[string]*entry, mined map[string]struct{}) {
	for key, e := range bucket {
		if containsMinedKernel(e.tx, mined) {
			delete(bucket, key)
			continue
		}

		stale := false
		for _, in := range e.tx.Body.Inputs {
			if !p.ths.IsUnspent(in.Commit) {
				stale = true
				break
			}
		}
		if stale {
			delete(bucket, key)
			continue
		}

		if err := e.tx.Validate(); err != nil {
			delete(bucket, key)
		}
	}
}

func containsMinedKernel(tx *consensus.Transaction, mined map[string]struct{}) bool {
	for _, k := range tx.Body.Kernels {
		if _, ok := mined[string(k.Excess)]; ok {
			return true
		}
	}
	return false
}

// Size returns the combined number of pooled transactions across both
// buckets.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size()
}
