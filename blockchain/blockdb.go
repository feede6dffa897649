// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package blockchain implements the top-level chain engine: the typed
// key-value block database, and the add_block_header/add_block/
// add_compact_block/process_tx_hash_set operations that apply new chain
// data to the chain store and tx hash set as one write batch.
package blockchain

import (
	"bytes"
	"encoding/binary"
	"path/filepath"

	"github.com/mwcoin/node/consensus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// BlockStore is the subset of BlockDB's surface Engine needs to persist
// headers and full blocks. Engine depends on this interface rather than the
// concrete *BlockDB so an alternate backend (store.MySQLStore) can stand in
// without touching Engine.
type BlockStore interface {
	PutHeader(header *consensus.BlockHeader) error
	GetHeader(hash consensus.Hash) (*consensus.BlockHeader, error)
	PutBlock(block *consensus.Block) error
	GetBlock(hash consensus.Hash) (*consensus.Block, error)
	Close() error
}

// BlockDB is the typed key-value store backing the headers, full blocks,
// per-block spent-output bitmaps and the output-commitment→MMR-position
// index, grounded on spec.md §6's DB/ layout. Keys are namespaced by a
// single-byte prefix per column so one leveldb.DB instance serves all of
// them without separate files.
type BlockDB struct {
	db *leveldb.DB
}

var _ BlockStore = (*BlockDB)(nil)

const (
	prefixHeader    byte = 'h'
	prefixBlock     byte = 'b'
	prefixInputBmp  byte = 'i'
	prefixOutputIdx byte = 'o'
	prefixPeer      byte = 'p'
)

// OpenBlockDB opens (creating if absent) the leveldb instance at dir/DB.
func OpenBlockDB(dir string) (*BlockDB, error) {
	db, err := leveldb.OpenFile(filepath.Join(dir, "DB"), nil)
	if err != nil {
		return nil, consensus.NewStoreError("blockdb", "open", err)
	}
	return &BlockDB{db: db}, nil
}

func key(prefix byte, hash consensus.Hash) []byte {
	return append([]byte{prefix}, hash...)
}

// PutHeader stores header, keyed by its own hash.
func (d *BlockDB) PutHeader(header *consensus.BlockHeader) error {
	return d.db.Put(key(prefixHeader, header.Hash()), header.Bytes(), nil)
}

// GetHeader returns the header stored under hash, or nil if absent.
func (d *BlockDB) GetHeader(hash consensus.Hash) (*consensus.BlockHeader, error) {
	data, err := d.db.Get(key(prefixHeader, hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, consensus.NewStoreError("blockdb", "get-header", err)
	}

	h := &consensus.BlockHeader{}
	if err := h.Read(bytes.NewReader(data)); err != nil {
		return nil, consensus.NewStoreError("blockdb", "decode-header", err)
	}
	return h, nil
}

// PutBlock stores the full block, keyed by its header hash.
func (d *BlockDB) PutBlock(block *consensus.Block) error {
	return d.db.Put(key(prefixBlock, block.Hash()), block.Bytes(), nil)
}

// GetBlock returns the full block stored under hash, or nil if absent.
func (d *BlockDB) GetBlock(hash consensus.Hash) (*consensus.Block, error) {
	data, err := d.db.Get(key(prefixBlock, hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, consensus.NewStoreError("blockdb", "get-block", err)
	}

	b := &consensus.Block{}
	if err := b.Read(bytes.NewReader(data)); err != nil {
		return nil, consensus.NewStoreError("blockdb", "decode-block", err)
	}
	return b, nil
}

// PutInputBitmap records the output-MMR leaf positions a block spent, so a
// later rewind of that block can be undone precisely. This supersedes
// txhashset's interim journal once wired up by the engine.
func (d *BlockDB) PutInputBitmap(blockHash consensus.Hash, spentLeaves []uint64) error {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint64(len(spentLeaves)))
	for _, pos := range spentLeaves {
		binary.Write(buf, binary.BigEndian, pos)
	}
	return d.db.Put(key(prefixInputBmp, blockHash), buf.Bytes(), nil)
}

// GetInputBitmap returns the spent leaf positions recorded for blockHash.
func (d *BlockDB) GetInputBitmap(blockHash consensus.Hash) ([]uint64, error) {
	data, err := d.db.Get(key(prefixInputBmp, blockHash), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, consensus.NewStoreError("blockdb", "get-input-bitmap", err)
	}

	r := bytes.NewReader(data)
	var n uint64
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, consensus.NewStoreError("blockdb", "decode-input-bitmap", err)
	}
	out := make([]uint64, n)
	for i := range out {
		if err := binary.Read(r, binary.BigEndian, &out[i]); err != nil {
			return nil, consensus.NewStoreError("blockdb", "decode-input-bitmap", err)
		}
	}
	return out, nil
}

// PutOutputPosition records the MMR leaf position commitment resolves to,
// for peers serving UTXO-by-commitment lookups.
func (d *BlockDB) PutOutputPosition(commit []byte, position uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, position)
	return d.db.Put(append([]byte{prefixOutputIdx}, commit...), buf, nil)
}

// GetOutputPosition returns the MMR leaf position for commit, with ok=false
// if it is not present.
func (d *BlockDB) GetOutputPosition(commit []byte) (uint64, bool, error) {
	data, err := d.db.Get(append([]byte{prefixOutputIdx}, commit...), nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, consensus.NewStoreError("blockdb", "get-output-position", err)
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// PutPeer stores a serialized peer address record under its own key.
func (d *BlockDB) PutPeer(addr string, data []byte) error {
	return d.db.Put(append([]byte{prefixPeer}, []byte(addr)...), data, nil)
}

// GetPeer returns the record stored under addr, or nil if absent.
func (d *BlockDB) GetPeer(addr string) ([]byte, error) {
	data, err := d.db.Get(append([]byte{prefixPeer}, []byte(addr)...), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, consensus.NewStoreError("blockdb", "get-peer", err)
	}
	return data, nil
}

// AllPeers returns every stored peer record.
func (d *BlockDB) AllPeers() (map[string][]byte, error) {
	out := make(map[string][]byte)
	iter := d.db.NewIterator(util.BytesPrefix([]byte{prefixPeer}), nil)
	defer iter.Release()
	for iter.Next() {
		addr := string(iter.Key()[1:])
		value := append([]byte{}, iter.Value()...)
		out[addr] = value
	}
	if err := iter.Error(); err != nil {
		return nil, consensus.NewStoreError("blockdb", "iterate-peers", err)
	}
	return out, nil
}

// Batch applies a set of header/block/bitmap writes atomically.
type Batch struct {
	b *leveldb.Batch
}

// NewBatch begins an atomic write batch.
func (d *BlockDB) NewBatch() *Batch {
	return &Batch{b: new(leveldb.Batch)}
}

// PutHeader queues a header write within the batch.
func (w *Batch) PutHeader(header *consensus.BlockHeader) {
	w.b.Put(key(prefixHeader, header.Hash()), header.Bytes())
}

// PutBlock queues a full-block write within the batch.
func (w *Batch) PutBlock(block *consensus.Block) {
	w.b.Put(key(prefixBlock, block.Hash()), block.Bytes())
}

// Commit applies every queued write atomically.
func (d *BlockDB) Commit(w *Batch) error {
	if err := d.db.Write(w.b, nil); err != nil {
		return consensus.NewStoreError("blockdb", "commit-batch", err)
	}
	return nil
}

// Close releases the underlying leveldb handle.
func (d *BlockDB) Close() error {
	return d.db.Close()
}
