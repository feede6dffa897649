// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package txhashset

import (
	"encoding/json"
	"fmt"
	"os"
)

// spendRecord remembers which output leaves a single applied block spent,
// so a later Rewind past that block can re-mark them unspent. The tx hash
// set keeps this in its own small journal; it does not use the block
// database's per-block input bitmaps.
type spendRecord struct {
	Height      uint64   `json:"height"`
	SpentLeaves []uint64 `json:"spent_leaves"`
}

type journal struct {
	path    string
	Head    uint64        `json:"head"`
	Records []spendRecord `json:"records"`
}

func loadJournal(path string) (*journal, error) {
	j := &journal{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("txhashset: failed to read journal %s: %w", path, err)
	}

	if err := json.Unmarshal(data, j); err != nil {
		return nil, fmt.Errorf("txhashset: failed to parse journal %s: %w", path, err)
	}
	j.path = path
	return j, nil
}

func (j *journal) save() error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("txhashset: failed to encode journal: %w", err)
	}
	return os.WriteFile(j.path, data, 0644)
}

// record appends a new block's spend list and advances the journal head.
func (j *journal) record(height uint64, spent []uint64) {
	j.Records = append(j.Records, spendRecord{Height: height, SpentLeaves: spent})
	j.Head = height
}

// collectRewind removes every record for a height above target, returning
// the union of their spent leaves so the caller can re-mark them unspent.
func (j *journal) collectRewind(target uint64) []uint64 {
	var leavesToAdd []uint64
	kept := j.Records[:0]
	for _, rec := range j.Records {
		if rec.Height > target {
			leavesToAdd = append(leavesToAdd, rec.SpentLeaves...)
		} else {
			kept = append(kept, rec)
		}
	}
	j.Records = kept
	j.Head = target
	return leavesToAdd
}
