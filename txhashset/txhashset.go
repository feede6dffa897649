// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package txhashset holds the three Merkle Mountain Ranges (outputs, range
// proofs, kernels) and the unspent-output bitmap that together form a
// node's view of the current UTXO set. It applies and rewinds whole
// blocks transactionally and can export itself as a portable snapshot for
// a peer doing a fast sync.
package txhashset

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/mmr"
	"github.com/mwcoin/node/secp256k1zkp"
	"github.com/mwcoin/node/store"
	"github.com/sirupsen/logrus"
)

const (
	outputSubdir     = "output"
	rangeProofSubdir = "rangeproof"
	kernelSubdir     = "kernel"

	hashFileName    = "pmmr_hash.bin"
	dataFileName    = "pmmr_data.bin"
	leafFileName    = "pmmr_leaf.bin"
	pruneFileName   = "pmmr_prun.bin"
	journalFileName = "journal.json"
	sumsFileName    = "block_sums.bin"
)

// TxHashSet is the append-only, position-addressed representation of the
// current UTXO set: every output ever created (spent ones are only marked
// in the leaf bitmap; Compact records prunable parents but removes no
// data), the range proof of every such output, and every kernel the chain
// has ever seen.
type TxHashSet struct {
	dir string

	outputMMR     *mmr.MMR[outputLeaf, *outputLeaf]
	rangeProofMMR *mmr.MMR[rangeProofLeaf, *rangeProofLeaf]
	kernelMMR     *mmr.MMR[consensus.TxKernel, *consensus.TxKernel]

	// outputPrune and rangeProofPrune track fully-spent subtrees evicted
	// by Compact. Kernels are append-only and never pruned, so the
	// kernel MMR carries no prune list.
	outputPrune     *mmr.PruneList
	rangeProofPrune *mmr.PruneList

	bitmap *store.BitmapFile

	// index maps a hex-encoded output commitment to its leaf index in the
	// output/range-proof MMRs. Rebuilt from the output data file on Open,
	// pending a BlockDB-backed persisted index.
	index map[string]uint64

	journal   *journal
	blockSums *BlockSums
}

// Open loads (creating if absent) the tx hash set rooted at dir.
func Open(dir string) (*TxHashSet, error) {
	for _, sub := range []string{outputSubdir, rangeProofSubdir, kernelSubdir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("txhashset: failed to create %s: %w", sub, err)
		}
	}

	outputHash, err := store.NewAppendOnlyFile(filepath.Join(dir, outputSubdir, hashFileName))
	if err != nil {
		return nil, err
	}
	outputData, err := store.NewAppendOnlyFile(filepath.Join(dir, outputSubdir, dataFileName))
	if err != nil {
		return nil, err
	}
	outputMMR, err := mmr.New[outputLeaf, *outputLeaf](outputHash, outputData)
	if err != nil {
		return nil, fmt.Errorf("txhashset: failed to open output mmr: %w", err)
	}

	rangeProofHash, err := store.NewAppendOnlyFile(filepath.Join(dir, rangeProofSubdir, hashFileName))
	if err != nil {
		return nil, err
	}
	rangeProofData, err := store.NewAppendOnlyFile(filepath.Join(dir, rangeProofSubdir, dataFileName))
	if err != nil {
		return nil, err
	}
	rangeProofMMR, err := mmr.New[rangeProofLeaf, *rangeProofLeaf](rangeProofHash, rangeProofData)
	if err != nil {
		return nil, fmt.Errorf("txhashset: failed to open range proof mmr: %w", err)
	}

	kernelHash, err := store.NewAppendOnlyFile(filepath.Join(dir, kernelSubdir, hashFileName))
	if err != nil {
		return nil, err
	}
	kernelData, err := store.NewAppendOnlyFile(filepath.Join(dir, kernelSubdir, dataFileName))
	if err != nil {
		return nil, err
	}
	kernelMMR, err := mmr.New[consensus.TxKernel, *consensus.TxKernel](kernelHash, kernelData)
	if err != nil {
		return nil, fmt.Errorf("txhashset: failed to open kernel mmr: %w", err)
	}

	outputPrune, err := mmr.LoadPruneList(filepath.Join(dir, outputSubdir, pruneFileName))
	if err != nil {
		return nil, err
	}
	rangeProofPrune, err := mmr.LoadPruneList(filepath.Join(dir, rangeProofSubdir, pruneFileName))
	if err != nil {
		return nil, err
	}

	bitmap, err := store.LoadBitmapFile(filepath.Join(dir, outputSubdir, leafFileName))
	if err != nil {
		return nil, err
	}

	j, err := loadJournal(filepath.Join(dir, journalFileName))
	if err != nil {
		return nil, err
	}

	blockSums, err := loadBlockSums(filepath.Join(dir, sumsFileName))
	if err != nil {
		return nil, err
	}

	t := &TxHashSet{
		dir:             dir,
		outputMMR:       outputMMR,
		rangeProofMMR:   rangeProofMMR,
		kernelMMR:       kernelMMR,
		outputPrune:     outputPrune,
		rangeProofPrune: rangeProofPrune,
		bitmap:          bitmap,
		journal:         j,
		blockSums:       blockSums,
	}

	if err := t.rebuildIndex(); err != nil {
		return nil, err
	}

	return t, nil
}

// rebuildIndex replays the output data file sequentially to recover the
// commitment -> leaf index mapping, since outputLeaf records are fixed
// size and therefore don't require the MMR's own node-hash bookkeeping.
func (t *TxHashSet) rebuildIndex() error {
	t.index = make(map[string]uint64)

	data := t.outputMMR.DataFile()
	recordSize := uint64(1 + secp256k1zkp.PedersenCommitmentSize)
	total := data.Size()

	var leafIdx uint64
	for pos := uint64(0); pos < total; pos += recordSize {
		raw, err := data.Read(pos, recordSize)
		if err != nil {
			return fmt.Errorf("txhashset: failed to replay output data file: %w", err)
		}

		var leaf outputLeaf
		if err := leaf.Read(bytes.NewReader(raw)); err != nil {
			return fmt.Errorf("txhashset: failed to decode output leaf %d: %w", leafIdx, err)
		}
		t.index[commitKey(leaf.Commit)] = leafIdx
		leafIdx++
	}

	return nil
}

func commitKey(c secp256k1zkp.Commitment) string {
	return hex.EncodeToString(c)
}

// Height returns the height of the block this set is currently applied
// through.
func (t *TxHashSet) Height() uint64 {
	return t.journal.Head
}

// Dir returns the root directory this set is rooted at, so a caller
// replacing it wholesale (fast-sync archive import) knows what to clean up.
func (t *TxHashSet) Dir() string {
	return t.dir
}

// ApplyBlock folds a validated block's body into the set and checks the
// resulting MMR roots against the header's commitments. On any failure
// the set is left exactly as it was before the call.
func (t *TxHashSet) ApplyBlock(block *consensus.Block) error {
	header := &block.Header
	body := &block.Body

	spend := make([]uint64, 0, len(body.Inputs))
	for i := range body.Inputs {
		key := commitKey(body.Inputs[i].Commit)
		leafIdx, ok := t.index[key]
		if !ok || !t.bitmap.IsSet(leafIdx) {
			t.rollback()
			return consensus.NewInvalid(consensus.InvalidInput, "input spends an unknown or already-spent output")
		}
		spend = append(spend, leafIdx)
	}
	for _, leafIdx := range spend {
		t.bitmap.Unset(leafIdx)
	}

	newEntries := make(map[string]uint64, len(body.Outputs))
	for i := range body.Outputs {
		o := &body.Outputs[i]
		key := commitKey(o.Commit)
		if leafIdx, ok := t.index[key]; ok && t.bitmap.IsSet(leafIdx) {
			t.rollback()
			return consensus.NewInvalid(consensus.InvalidDuplicateOutput, "duplicate unspent output commitment")
		}

		leafIdx := t.outputMMR.LeafCount()
		if err := t.outputMMR.Append(outputLeaf{Features: o.Features, Commit: o.Commit}); err != nil {
			t.rollback()
			return consensus.NewStoreError("txhashset", "append output", err)
		}
		if err := t.rangeProofMMR.Append(rangeProofLeaf{Proof: o.RangeProof}); err != nil {
			t.rollback()
			return consensus.NewStoreError("txhashset", "append range proof", err)
		}
		t.bitmap.Set(leafIdx)
		newEntries[key] = leafIdx
	}

	for i := range body.Kernels {
		if err := t.kernelMMR.Append(body.Kernels[i]); err != nil {
			t.rollback()
			return consensus.NewStoreError("txhashset", "append kernel", err)
		}
	}

	if !hashEqual(t.outputMMR.Root(), header.UTXORoot) ||
		!hashEqual(t.rangeProofMMR.Root(), header.RangeProofRoot) ||
		!hashEqual(t.kernelMMR.Root(), header.KernelRoot) ||
		t.outputMMR.Size() != header.OutputMmrSize ||
		t.kernelMMR.Size() != header.KernelMmrSize {
		t.rollback()
		return consensus.NewInvalid(consensus.InvalidRootMismatch, "applied tx hash set state does not match header roots")
	}

	if err := t.blockSums.applyBlock(body); err != nil {
		t.rollback()
		return consensus.NewStoreError("txhashset", "fold block sums", err)
	}

	for k, v := range newEntries {
		t.index[k] = v
	}
	t.journal.record(header.Height, spend)

	return t.commit()
}

func (t *TxHashSet) commit() error {
	if err := t.outputMMR.Flush(); err != nil {
		return err
	}
	if err := t.rangeProofMMR.Flush(); err != nil {
		return err
	}
	if err := t.kernelMMR.Flush(); err != nil {
		return err
	}
	if err := t.bitmap.Commit(); err != nil {
		return fmt.Errorf("txhashset: failed to commit bitmap: %w", err)
	}
	if err := t.journal.save(); err != nil {
		return err
	}
	if err := t.blockSums.save(filepath.Join(t.dir, sumsFileName)); err != nil {
		return fmt.Errorf("txhashset: failed to save block sums: %w", err)
	}
	return nil
}

func (t *TxHashSet) rollback() {
	if err := t.outputMMR.Discard(); err != nil {
		logrus.WithError(err).Error("txhashset: failed to discard output mmr")
	}
	if err := t.rangeProofMMR.Discard(); err != nil {
		logrus.WithError(err).Error("txhashset: failed to discard range proof mmr")
	}
	if err := t.kernelMMR.Discard(); err != nil {
		logrus.WithError(err).Error("txhashset: failed to discard kernel mmr")
	}
	t.bitmap.Rollback()
}

// Rewind truncates the set back to the state it had immediately after
// header was applied, re-marking as unspent any output that a rewound
// block had spent.
func (t *TxHashSet) Rewind(header *consensus.BlockHeader) error {
	if header.Height > t.journal.Head {
		return fmt.Errorf("txhashset: cannot rewind forward from %d to %d", t.journal.Head, header.Height)
	}

	leavesToAdd := t.journal.collectRewind(header.Height)

	if err := t.outputMMR.RewindToSize(header.OutputMmrSize); err != nil {
		return fmt.Errorf("txhashset: failed to rewind output mmr: %w", err)
	}
	leafCount := t.outputMMR.LeafCount()

	if err := t.rangeProofMMR.Rewind(leafCount); err != nil {
		return fmt.Errorf("txhashset: failed to rewind range proof mmr: %w", err)
	}
	if err := t.kernelMMR.RewindToSize(header.KernelMmrSize); err != nil {
		return fmt.Errorf("txhashset: failed to rewind kernel mmr: %w", err)
	}

	t.bitmap.Rewind(leafCount, leavesToAdd)

	if err := t.commit(); err != nil {
		return err
	}

	return t.rebuildIndex()
}

// IsUnspent reports whether commit identifies a currently-unspent output.
func (t *TxHashSet) IsUnspent(commit secp256k1zkp.Commitment) bool {
	leafIdx, ok := t.index[commitKey(commit)]
	if !ok {
		return false
	}
	return t.bitmap.IsSet(leafIdx)
}

// ValidateFull batch-verifies every unspent output's range proof and every
// kernel's signature, then checks the running block sums against the
// cumulative balance equation for header's height. This is the
// once-per-fast-sync check; ordinary block acceptance only validates the
// incremental body via ApplyBlock.
func (t *TxHashSet) ValidateFull(header *consensus.BlockHeader) error {
	commitments := make([]secp256k1zkp.Commitment, 0, t.outputMMR.LeafCount())
	proofs := make([]secp256k1zkp.RangeProof, 0, t.outputMMR.LeafCount())

	outputData := t.outputMMR.DataFile()
	proofData := t.rangeProofMMR.DataFile()
	recordSize := uint64(1 + secp256k1zkp.PedersenCommitmentSize)

	var leafIdx uint64
	for pos := uint64(0); pos < outputData.Size(); pos += recordSize {
		if !t.bitmap.IsSet(leafIdx) {
			leafIdx++
			continue
		}

		raw, err := outputData.Read(pos, recordSize)
		if err != nil {
			return consensus.NewStoreError("txhashset", "read output leaf", err)
		}
		var leaf outputLeaf
		if err := leaf.Read(bytes.NewReader(raw)); err != nil {
			return consensus.NewStoreError("txhashset", "decode output leaf", err)
		}

		proof, err := readProofAt(proofData, leafIdx)
		if err != nil {
			return consensus.NewStoreError("txhashset", "read range proof leaf", err)
		}

		commitments = append(commitments, leaf.Commit)
		proofs = append(proofs, proof)
		leafIdx++
	}

	if err := secp256k1zkp.VerifyRangeProofsBatch(commitments, proofs); err != nil {
		return consensus.NewInvalid(consensus.InvalidRangeProof, err.Error())
	}

	kernelData := t.kernelMMR.DataFile()
	if err := forEachKernel(kernelData, func(k *consensus.TxKernel) error {
		if err := k.Validate(); err != nil {
			return consensus.NewInvalid(consensus.InvalidSignature, err.Error())
		}
		return nil
	}); err != nil {
		return err
	}

	return t.blockSums.Validate(header)
}

// readProofAt reads the variable-length range proof record at leaf index
// idx by scanning from the start; the range-proof data file has no fixed
// record size so random access requires replaying the length prefixes.
func readProofAt(data *store.AppendOnlyFile, idx uint64) (secp256k1zkp.RangeProof, error) {
	var pos uint64
	for i := uint64(0); ; i++ {
		if pos >= data.Size() {
			return nil, fmt.Errorf("txhashset: range proof leaf %d not found", idx)
		}

		lenBuf, err := data.Read(pos, 8)
		if err != nil {
			return nil, err
		}
		n := beUint64(lenBuf)
		proofBuf, err := data.Read(pos+8, n)
		if err != nil {
			return nil, err
		}

		if i == idx {
			return secp256k1zkp.RangeProof(proofBuf), nil
		}
		pos += 8 + n
	}
}

func forEachKernel(data *store.AppendOnlyFile, fn func(*consensus.TxKernel) error) error {
	total := data.Size()
	var pos uint64
	for pos < total {
		// A kernel's encoded length depends on its feature byte, so read
		// it through a streaming reader rather than by fixed record size.
		remaining, err := data.Read(pos, total-pos)
		if err != nil {
			return err
		}
		r := bytes.NewReader(remaining)
		var k consensus.TxKernel
		before := r.Len()
		if err := k.Read(r); err != nil {
			return fmt.Errorf("txhashset: failed to decode kernel at %d: %w", pos, err)
		}
		consumed := before - r.Len()
		pos += uint64(consumed)

		if err := fn(&k); err != nil {
			return err
		}
	}
	return nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func hashEqual(a, b consensus.Hash) bool {
	return bytes.Equal(a, b)
}

// Compact evicts fully-spent leaf pairs from the output and range-proof
// prune lists: if a spent leaf's sibling is also spent, their shared
// parent is the maximal pruned subtree root and is recorded so future
// position lookups can shift around it. Kernels are never pruned.
func (t *TxHashSet) Compact() error {
	total := t.outputMMR.LeafCount()

	posToLeaf := make(map[uint64]uint64, total)
	for i := uint64(0); i < total; i++ {
		posToLeaf[mmr.LeafPosition(i)] = i
	}

	for leafIdx := uint64(0); leafIdx < total; leafIdx++ {
		if t.bitmap.IsSet(leafIdx) {
			continue
		}

		pos := mmr.LeafPosition(leafIdx)
		parentPos, siblingPos, _ := mmr.Family(pos)

		siblingLeaf, ok := posToLeaf[siblingPos]
		if !ok || t.bitmap.IsSet(siblingLeaf) {
			continue
		}

		t.outputPrune.Add(parentPos)
		t.rangeProofPrune.Add(parentPos)
	}

	if err := t.outputPrune.Save(); err != nil {
		return fmt.Errorf("txhashset: failed to save output prune list: %w", err)
	}
	if err := t.rangeProofPrune.Save(); err != nil {
		return fmt.Errorf("txhashset: failed to save range proof prune list: %w", err)
	}
	return nil
}

// Snapshot exports the full tx hash set as a zip archive (one entry per
// MMR hash/data/leaf/prune file, mirroring the on-disk layout) for a peer
// bootstrapping via fast sync. archive/zip is stdlib: packaging a handful
// of already-serialized files needs no domain-specific compression or
// indexing a third-party archiver would add.
func (t *TxHashSet) Snapshot(w io.Writer) error {
	zw := zip.NewWriter(w)

	entries := []struct {
		subdir string
		name   string
	}{
		{outputSubdir, hashFileName},
		{outputSubdir, dataFileName},
		{outputSubdir, leafFileName},
		{outputSubdir, pruneFileName},
		{rangeProofSubdir, hashFileName},
		{rangeProofSubdir, dataFileName},
		{rangeProofSubdir, pruneFileName},
		{kernelSubdir, hashFileName},
		{kernelSubdir, dataFileName},
		{kernelSubdir, pruneFileName},
	}

	for _, e := range entries {
		path := filepath.Join(t.dir, e.subdir, e.name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			zw.Close()
			return fmt.Errorf("txhashset: failed to read %s for snapshot: %w", path, err)
		}

		f, err := zw.Create(filepath.Join(e.subdir, e.name))
		if err != nil {
			zw.Close()
			return err
		}
		if _, err := f.Write(data); err != nil {
			zw.Close()
			return err
		}
	}

	return zw.Close()
}
