// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package blockchain

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mwcoin/node/chainstore"
	"github.com/mwcoin/node/consensus"
	"github.com/mwcoin/node/txhashset"
)

// ProcessTxHashSet implements spec.md §4.8's initial fast-sync step:
// unzip archivePath into a staging directory, load the three MMRs it
// contains, run ValidateFull against header, and if that succeeds swap it
// in as the new authoritative tx hash set with the confirmed chain's tip
// set to header.
func (e *Engine) ProcessTxHashSet(archivePath string, header *consensus.BlockHeader) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stagingDir, err := os.MkdirTemp(e.dataDir, "txhashset-staging-*")
	if err != nil {
		return StatusStoreError, consensus.NewStoreError("blockchain", "stage-txhashset", err)
	}

	if err := extractZip(archivePath, stagingDir); err != nil {
		os.RemoveAll(stagingDir)
		return StatusInvalid, err
	}

	staged, err := txhashset.Open(stagingDir)
	if err != nil {
		os.RemoveAll(stagingDir)
		return StatusStoreError, consensus.NewStoreError("blockchain", "open-staged-txhashset", err)
	}

	if err := staged.ValidateFull(header); err != nil {
		os.RemoveAll(stagingDir)
		return StatusInvalid, err
	}

	if err := e.db.PutHeader(header); err != nil {
		os.RemoveAll(stagingDir)
		return StatusStoreError, err
	}

	idx := blockIndexFromHeader(header)

	if err := e.chains.Confirmed.ResetTo(idx); err != nil {
		return StatusStoreError, err
	}
	if err := e.chains.Candidate.ResetTo(idx); err != nil {
		return StatusStoreError, err
	}
	if err := e.chains.Confirmed.Commit(); err != nil {
		return StatusStoreError, err
	}
	if err := e.chains.Candidate.Commit(); err != nil {
		return StatusStoreError, err
	}

	oldDir := e.txHashSet.Dir()
	e.txHashSet = staged
	if oldDir != "" && oldDir != stagingDir {
		os.RemoveAll(oldDir)
	}

	return StatusSuccess, nil
}

func blockIndexFromHeader(h *consensus.BlockHeader) *chainstore.BlockIndex {
	return &chainstore.BlockIndex{
		Hash: h.Hash(), Previous: h.Previous, Height: h.Height,
		TotalDifficulty: h.TotalDifficulty,
		OutputMmrSize:   h.OutputMmrSize, KernelMmrSize: h.KernelMmrSize,
	}
}

// extractZip expands every entry of the zip archive at path into dir,
// recreating its subdirectory layout (kernel/, output/, rangeproof/).
func extractZip(path, dir string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("blockchain: failed to open tx hash set archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		dest := filepath.Join(dir, f.Name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}

		out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			rc.Close()
			return err
		}

		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			rc.Close()
			return err
		}
		out.Close()
		rc.Close()
	}

	return nil
}
