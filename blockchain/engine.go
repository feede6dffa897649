// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"sync"

	"github.com/mwcoin/node/chainstore"
	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/pow"
	"github.com/mwcoin/node/txhashset"
	"github.com/sirupsen/logrus"
)

// TransactionSource resolves a compact block's kernel short ids against a
// pool of known transactions, so AddCompactBlock can attempt to
// reconstruct a full block without a round trip to the sender.
type TransactionSource interface {
	FindByKernelShortID(blockHash consensus.Hash, nonce uint64, id consensus.ShortID) (*consensus.Transaction, bool)
}

// PoolReconciler is notified once a block is confirmed so the tx pool can
// drop transactions it contains and re-validate the remainder against the
// new tip. Implemented by txpool.Pool; held as an interface here so
// blockchain does not import txpool (which itself reads chain state
// through TxHashSet, not through Engine).
type PoolReconciler interface {
	ReconcileBlock(block *consensus.Block)
}

// Engine is the top-level chain engine: it owns the chain store, the block
// database and the authoritative tx hash set, and every exported method
// runs as one write batch per spec's concurrency model (locks taken on
// ChainStore and TxHashSet together, committed or rolled back as a unit).
type Engine struct {
	mu sync.Mutex

	dataDir string

	chains    *chainstore.ChainStore
	db        BlockStore
	txHashSet *txhashset.TxHashSet

	genesis *consensus.Block
	pool    PoolReconciler
}

// Open wires together the chain store, a leveldb-backed block database and
// the tx hash set rooted at dataDir, initializing the confirmed chain with
// genesis if it is empty. Use OpenWithStore directly to substitute a
// different BlockStore (e.g. store.MySQLStore).
func Open(dataDir string, genesis *consensus.Block) (*Engine, error) {
	db, err := OpenBlockDB(dataDir)
	if err != nil {
		return nil, err
	}
	return OpenWithStore(dataDir, genesis, db)
}

// OpenWithStore is Open, parameterized over the block store backend.
func OpenWithStore(dataDir string, genesis *consensus.Block, db BlockStore) (*Engine, error) {
	chains, err := chainstore.Open(dataDir)
	if err != nil {
		return nil, err
	}
	ths, err := txhashset.Open(dataDir)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		dataDir:   dataDir,
		chains:    chains,
		db:        db,
		txHashSet: ths,
		genesis:   genesis,
	}

	if _, ok := chains.Confirmed.Height(); !ok {
		if err := e.initGenesis(); err != nil {
			return nil, err
		}
	}

	return e, nil
}

func (e *Engine) initGenesis() error {
	h := &e.genesis.Header
	idx := &chainstore.BlockIndex{
		Hash:            h.Hash(),
		Previous:        h.Previous,
		Height:          h.Height,
		TotalDifficulty: h.TotalDifficulty,
		OutputMmrSize:   h.OutputMmrSize,
		KernelMmrSize:   h.KernelMmrSize,
	}

	return e.chains.Batch(func(s *chainstore.ChainStore) error {
		if err := s.Confirmed.Append(idx); err != nil {
			return err
		}
		if err := s.Candidate.Append(idx); err != nil {
			return err
		}
		if err := e.db.PutHeader(h); err != nil {
			return err
		}
		return e.db.PutBlock(e.genesis)
	})
}

// SetPoolReconciler wires the tx pool in after both it and the engine have
// been constructed, breaking the otherwise-circular dependency between
// them.
func (e *Engine) SetPoolReconciler(pool PoolReconciler) {
	e.pool = pool
}

// Head returns the confirmed chain's current tip index.
func (e *Engine) Head() *chainstore.BlockIndex {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chains.Confirmed.Tip()
}

// TxHashSet exposes the authoritative, current-tip tx hash set, used by the
// tx pool and by API/RPC surfaces to answer UTXO queries. Callers must not
// mutate it directly; all mutation happens through Engine.
func (e *Engine) TxHashSet() *txhashset.TxHashSet {
	return e.txHashSet
}

// Header returns the stored header for hash, or nil if unknown. Used by
// the p2p layer to answer get_headers requests.
func (e *Engine) Header(hash consensus.Hash) (*consensus.BlockHeader, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.GetHeader(hash)
}

// Block returns the stored full block for hash, or nil if unknown. Used by
// the p2p layer to answer get_block requests.
func (e *Engine) Block(hash consensus.Hash) (*consensus.Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.GetBlock(hash)
}

// HeadersFrom resolves a peer's locator against the confirmed chain and
// returns up to consensus.MaxBlockHeaders headers building forward from the
// most recent common ancestor, newest-known-first search but oldest-first
// result, ready to stream back as a BlockHeaders reply. If none of the
// locator's hashes are on the confirmed chain, the headers start from
// genesis.
func (e *Engine) HeadersFrom(locator *consensus.Locator) ([]*consensus.BlockHeader, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	confirmed := e.chains.Confirmed
	var start uint64
	found := false
	for _, hash := range locator.Hashes {
		if idx := confirmed.ByHash(hash); idx != nil {
			start = idx.Height + 1
			found = true
			break
		}
	}
	if !found {
		start = 0
	}

	tipHeight, ok := confirmed.Height()
	if !ok || start > tipHeight {
		return nil, nil
	}

	max := uint64(consensus.MaxBlockHeaders)
	headers := make([]*consensus.BlockHeader, 0, max)
	for height := start; height <= tipHeight && uint64(len(headers)) < max; height++ {
		idx := confirmed.At(height)
		if idx == nil {
			break
		}
		h, err := e.db.GetHeader(idx.Hash)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

func (e *Engine) previousHeader(h *consensus.BlockHeader) (*consensus.BlockHeader, error) {
	if h.Height == 0 {
		return nil, nil
	}
	prev, err := e.db.GetHeader(h.Previous)
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// AddBlockHeader validates and, if it extends a known chain, appends h to
// the candidate chain (per spec.md §4.8's add_block_header).
func (e *Engine) AddBlockHeader(h *consensus.BlockHeader) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addBlockHeaderLocked(h)
}

func (e *Engine) addBlockHeaderLocked(h *consensus.BlockHeader) (Status, error) {
	if existing, err := e.db.GetHeader(h.Hash()); err != nil {
		return StatusStoreError, err
	} else if existing != nil {
		return StatusAlreadyProcessed, nil
	}

	if err := h.Validate(); err != nil {
		return StatusInvalid, err
	}

	if h.Height > 0 {
		prev, err := e.previousHeader(h)
		if err != nil {
			return StatusStoreError, err
		}
		if prev == nil {
			return StatusOrphan, consensus.ErrOrphan
		}
		if err := pow.IsValid(h, prev); err != nil {
			return StatusInvalid, err
		}
	}

	idx := &chainstore.BlockIndex{
		Hash:            h.Hash(),
		Previous:        h.Previous,
		Height:          h.Height,
		TotalDifficulty: h.TotalDifficulty,
		OutputMmrSize:   h.OutputMmrSize,
		KernelMmrSize:   h.KernelMmrSize,
	}

	err := e.chains.Batch(func(s *chainstore.ChainStore) error {
		if tip := s.Candidate.Tip(); tip == nil || hashesEqual(tip.Hash, h.Previous) {
			return s.Candidate.Append(idx)
		}
		return fmt.Errorf("blockchain: header does not extend the candidate chain tip")
	})
	if err != nil {
		return StatusOrphan, err
	}

	if err := e.db.PutHeader(h); err != nil {
		return StatusStoreError, err
	}

	return StatusSuccess, nil
}

// AddBlock validates a full block, applies it to the tx hash set if its
// header is the candidate heir, and promotes the confirmed chain to match
// (reorganizing if necessary), per spec.md §4.8's add_block.
func (e *Engine) AddBlock(block *consensus.Block) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := &block.Header

	if existing, err := e.db.GetBlock(h.Hash()); err != nil {
		return StatusStoreError, err
	} else if existing != nil {
		return StatusAlreadyProcessed, nil
	}

	if err := block.Validate(); err != nil {
		return StatusInvalid, err
	}

	if e.chains.Candidate.ByHash(h.Hash()) == nil {
		status, err := e.addBlockHeaderLocked(h)
		if status != StatusSuccess {
			return status, err
		}
	}

	if err := e.db.PutBlock(block); err != nil {
		return StatusStoreError, err
	}

	if !e.isCandidateHeir() {
		// Known header, not (yet) on the best chain: store it and wait.
		return StatusSuccess, nil
	}

	if err := e.promote(block); err != nil {
		if invalid, ok := asInvalid(err); ok {
			return StatusInvalid, invalid
		}
		return StatusStoreError, err
	}

	return StatusSuccess, nil
}

// isCandidateHeir reports whether the candidate chain's total difficulty
// exceeds the confirmed chain's, making it the heir apparent to confirmed.
func (e *Engine) isCandidateHeir() bool {
	confirmedTip := e.chains.Confirmed.Tip()
	candidateTip := e.chains.Candidate.Tip()
	if candidateTip == nil {
		return false
	}
	if confirmedTip == nil {
		return true
	}
	return candidateTip.TotalDifficulty > confirmedTip.TotalDifficulty
}

// promote applies block to the tx hash set and advances the confirmed
// chain to match the candidate chain, reorging through any fork point.
func (e *Engine) promote(block *consensus.Block) error {
	h := &block.Header
	confirmedTip := e.chains.Confirmed.Tip()

	if confirmedTip != nil && hashesEqual(confirmedTip.Hash, h.Previous) {
		// Direct extension: the common case.
		if err := e.txHashSet.ApplyBlock(block); err != nil {
			return err
		}
		if err := e.chains.Batch(func(s *chainstore.ChainStore) error {
			return s.Confirmed.Append(&chainstore.BlockIndex{
				Hash: h.Hash(), Previous: h.Previous, Height: h.Height,
				TotalDifficulty: h.TotalDifficulty,
				OutputMmrSize:   h.OutputMmrSize, KernelMmrSize: h.KernelMmrSize,
			})
		}); err != nil {
			return err
		}
		if e.pool != nil {
			e.pool.ReconcileBlock(block)
		}
		return nil
	}

	return e.reorgTo(h)
}

// reorgTo rewinds the confirmed chain and tx hash set to the fork point
// shared with the candidate chain, then reapplies every candidate block
// from there up to (and including) target, in order.
func (e *Engine) reorgTo(target *consensus.BlockHeader) error {
	forkHeight, err := e.forkHeight(target)
	if err != nil {
		return err
	}

	forkHeader, err := e.headerAtHeight(e.chains.Confirmed, forkHeight)
	if err != nil {
		return err
	}
	if err := e.txHashSet.Rewind(forkHeader); err != nil {
		return err
	}

	candidateTipIdx := e.chains.Candidate.ByHash(target.Hash())
	if candidateTipIdx == nil {
		return fmt.Errorf("blockchain: reorg target not present on candidate chain")
	}

	for height := forkHeight + 1; height <= candidateTipIdx.Height; height++ {
		idx := e.chains.Candidate.At(height)
		if idx == nil {
			return fmt.Errorf("blockchain: candidate chain missing height %d during reorg", height)
		}
		b, err := e.db.GetBlock(idx.Hash)
		if err != nil {
			return err
		}
		if b == nil {
			return consensus.ErrOrphan
		}
		if err := e.txHashSet.ApplyBlock(b); err != nil {
			// Roll the tx hash set back to where the reorg started before
			// surfacing the error: a failed reorg must not leave the set
			// partway through the candidate fork.
			if rewErr := e.txHashSet.Rewind(forkHeader); rewErr != nil {
				logrus.WithError(rewErr).Error("blockchain: failed to unwind partial reorg")
			}
			return err
		}
		if e.pool != nil {
			e.pool.ReconcileBlock(b)
		}
	}

	return e.chains.Batch(func(s *chainstore.ChainStore) error {
		return s.PromoteCandidate(forkHeight)
	})
}

// forkHeight finds the highest height at which the confirmed and candidate
// chains agree, by walking back from target along the candidate chain.
func (e *Engine) forkHeight(target *consensus.BlockHeader) (uint64, error) {
	cursor := e.chains.Candidate.ByHash(target.Hash())
	if cursor == nil {
		return 0, fmt.Errorf("blockchain: reorg target not present on candidate chain")
	}

	for {
		confirmed := e.chains.Confirmed.At(cursor.Height)
		if confirmed != nil && hashesEqual(confirmed.Hash, cursor.Hash) {
			return cursor.Height, nil
		}
		if cursor.Height == 0 {
			return 0, fmt.Errorf("blockchain: no common ancestor with confirmed chain")
		}
		next := e.chains.Candidate.ByHash(cursor.Previous)
		if next == nil {
			return 0, fmt.Errorf("blockchain: candidate chain broken while searching for fork point")
		}
		cursor = next
	}
}

func (e *Engine) headerAtHeight(c *chainstore.Chain, height uint64) (*consensus.BlockHeader, error) {
	idx := c.At(height)
	if idx == nil {
		return nil, fmt.Errorf("blockchain: no entry at height %d", height)
	}
	h, err := e.db.GetHeader(idx.Hash)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("blockchain: header at height %d missing from block database", height)
	}
	return h, nil
}

// AddCompactBlock attempts to reconstruct a full block from src's known
// transactions by kernel short id; on success it is processed exactly as
// AddBlock. On partial resolution it returns StatusOrphan with a
// MissingShortIDsError naming which short ids still need to be requested in
// full from the sender.
func (e *Engine) AddCompactBlock(cb *consensus.CompactBlock, src TransactionSource) (Status, error) {
	header := cb.Header
	blockHash := header.Hash()

	body := consensus.TransactionBody{
		Outputs: append(consensus.OutputList{}, cb.Outputs...),
		Kernels: append(consensus.TxKernelList{}, cb.Kernels...),
	}

	var missing []int
	for i, id := range cb.KernelIDs {
		tx, ok := src.FindByKernelShortID(blockHash, header.Nonce, id)
		if !ok {
			missing = append(missing, i)
			continue
		}
		body.Inputs = append(body.Inputs, tx.Body.Inputs...)
		body.Outputs = append(body.Outputs, tx.Body.Outputs...)
		body.Kernels = append(body.Kernels, tx.Body.Kernels...)
	}

	if len(missing) > 0 {
		return StatusOrphan, &MissingShortIDsError{Indices: missing}
	}

	body.Sort()
	return e.AddBlock(&consensus.Block{Header: header, Body: body})
}

func hashesEqual(a, b consensus.Hash) bool {
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

func asInvalid(err error) (*consensus.InvalidError, bool) {
	e, ok := err.(*consensus.InvalidError)
	return e, ok
}

// Close releases every underlying store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var first error
	if err := e.chains.Close(); err != nil && first == nil {
		first = err
	}
	if err := e.db.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
