// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"time"
)

// Testnet1 is the genesis block for this node's test network: an
// unspendable, zero-output block whose header roots are all empty MMRs,
// mined at a low starting difficulty so a fresh testnet can produce its
// first few blocks quickly.
var Testnet1 = Block{
	Header: BlockHeader{
		Version:           1,
		Height:            0,
		Previous:          bytes.Repeat([]byte{0xff}, BlockHashSize),
		PreviousRoot:      bytes.Repeat([]byte{0x00}, BlockHashSize),
		Timestamp:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UTXORoot:          bytes.Repeat([]byte{0x00}, BlockHashSize),
		RangeProofRoot:    bytes.Repeat([]byte{0x00}, BlockHashSize),
		KernelRoot:        bytes.Repeat([]byte{0x00}, BlockHashSize),
		TotalKernelOffset: bytes.Repeat([]byte{0x00}, 32),
		TotalKernelSum:    bytes.Repeat([]byte{0x00}, 33),
		Nonce:             0,
		Difficulty:        10,
		TotalDifficulty:   10,
		ScalingDifficulty: 1,
		POW: NewProof(DefaultMinEdgeBits, []uint32{
			0x21e, 0x7a2, 0xeae, 0x144e, 0x1b1c, 0x1fbd,
			0x203a, 0x214b, 0x293b, 0x2b74, 0x2bfa, 0x2c26,
			0x32bb, 0x346a, 0x34c7, 0x37c5, 0x4164, 0x42cc,
			0x4cc3, 0x55af, 0x5a70, 0x5b14, 0x5e1c, 0x5f76,
			0x6061, 0x60f9, 0x61d7, 0x6318, 0x63a1, 0x63fb,
			0x649b, 0x64e5, 0x65a1, 0x6b69, 0x70f8, 0x71c7,
			0x71cd, 0x7492, 0x7b11, 0x7db8, 0x7f29, 0x7ff8,
		}),
	},
}
