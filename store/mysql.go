// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package store

import (
	"bytes"
	"database/sql"
	"sync"

	_ "github.com/go-sql-driver/mysql"

	"github.com/mwcoin/node/consensus"
)

// MySQLStore is a blockchain.BlockStore backed by a pair of MySQL tables
// (headers, blocks). Schema (caller's responsibility to create):
//
//	CREATE TABLE headers (hash BINARY(32) PRIMARY KEY, data BLOB NOT NULL);
//	CREATE TABLE blocks  (hash BINARY(32) PRIMARY KEY, data BLOB NOT NULL);
type MySQLStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewMySQLStore wraps an already-open database handle.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// PutHeader upserts header, keyed by its own hash.
func (s *MySQLStore) PutHeader(header *consensus.BlockHeader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO headers (hash, data) VALUES (?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data)",
		[]byte(header.Hash()), header.Bytes())
	return err
}

// GetHeader returns the header stored under hash, or nil if absent.
func (s *MySQLStore) GetHeader(hash consensus.Hash) (*consensus.BlockHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRow("SELECT data FROM headers WHERE hash = ?", []byte(hash)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	h := &consensus.BlockHeader{}
	if err := h.Read(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return h, nil
}

// PutBlock upserts the full block, keyed by its header hash.
func (s *MySQLStore) PutBlock(block *consensus.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO blocks (hash, data) VALUES (?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data)",
		[]byte(block.Hash()), block.Bytes())
	return err
}

// GetBlock returns the full block stored under hash, or nil if absent.
func (s *MySQLStore) GetBlock(hash consensus.Hash) (*consensus.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRow("SELECT data FROM blocks WHERE hash = ?", []byte(hash)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b := &consensus.Block{}
	if err := b.Read(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return b, nil
}

// Close releases the underlying database handle.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
