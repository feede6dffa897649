// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package consensus defines the chain's data model and the constants every
// validator in the node must agree on: weights, maturity windows, PoW
// parameters and difficulty-adjustment bounds.
package consensus

import "time"

// Consensus rule that everything is sorted in lexicographical order on the wire.

// MAXTarget the target is the 8-byte value block hashes must be lower than.
var MAXTarget = []byte{0xf, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

const (
	// BlockHashSize is the size of a block hash.
	BlockHashSize = 32

	// CoinBase a coin is divisible to 10^9, following the SI prefixes.
	CoinBase uint64 = 1e9

	// MilliCoin, a thousandth of a coin.
	MilliCoin uint64 = CoinBase / 1000

	// MicroCoin, a thousandth of a millicoin.
	MicroCoin uint64 = MilliCoin / 1000

	// NanoCoin, smallest unit, takes a billion to make a coin.
	NanoCoin uint64 = 1

	// Reward is the block subsidy amount.
	Reward uint64 = 60 * CoinBase

	// CoinbaseMaturity is the number of blocks before a coinbase matures and can be spent.
	CoinbaseMaturity uint64 = 1000

	// MaxBlockCoinbaseOutputs is the max number of coinbase outputs in a valid block.
	MaxBlockCoinbaseOutputs int = 1

	// MaxBlockCoinbaseKernels is the max number of coinbase kernels in a valid block.
	MaxBlockCoinbaseKernels int = 1

	// BlockTimeSec is the block interval, in seconds, the network tunes its next target for.
	BlockTimeSec time.Duration = 60

	// ProofSize is the cuckoo-cycle proof size (cycle length).
	ProofSize uint32 = 42

	// DefaultMinEdgeBits is the minimum edge-bits for a valid primary (AT) PoW.
	DefaultMinEdgeBits uint8 = 31

	// SecondPowEdgeBits is the fixed edge-bits of the secondary (AR) PoW.
	SecondPowEdgeBits uint8 = 29

	// BaseEdgeBits anchors the primary-PoW scaling-factor formula.
	BaseEdgeBits uint8 = 24

	// Easiness is the default cuckoo-cycle easiness, high enough to have a
	// good likelihood of finding a solution.
	Easiness uint32 = 50

	// CutThroughHorizon is the default number of blocks in the past when
	// cross-block cut-through starts happening. Needs to be long enough to
	// not overlap with a long reorg: the longest observed bitcoin fork was
	// about 30 blocks (5h); this rounds up an order of magnitude to 48h.
	CutThroughHorizon uint32 = 48 * 3600 / uint32(BlockTimeSec)

	// BlockInputWeight is the weight of an input against the max block weight capacity.
	BlockInputWeight uint32 = 1

	// BlockOutputWeight is the weight of an output against the max block weight capacity.
	BlockOutputWeight uint32 = 10

	// BlockKernelWeight is the weight of a kernel against the max block weight capacity.
	BlockKernelWeight uint32 = 2

	// MaxBlockWeight is the total maximum block weight.
	MaxBlockWeight uint32 = 80000

	// HardForkInterval forks every 250,000 blocks for the first 2 years.
	HardForkInterval uint64 = 250000

	// HardForkV2Height is the height at which header version 2 becomes mandatory.
	HardForkV2Height uint64 = HardForkInterval

	// YearHeight is the approximate number of blocks mined in a year at BlockTimeSec.
	YearHeight uint64 = uint64(365*24*3600) / uint64(BlockTimeSec)

	// WeekHeight is the approximate number of blocks mined in a week, the
	// upper bound for a NO_RECENT_DUPLICATE kernel's relative lock height.
	WeekHeight uint64 = uint64(7*24*3600) / uint64(BlockTimeSec)

	// MedianTimeWindow is the time window in blocks used to calculate block time median.
	MedianTimeWindow int = 11

	// DifficultyAdjustWindow is the number of blocks used to calculate difficulty adjustments.
	DifficultyAdjustWindow int = 23

	// ClampFactor bounds how far a difficulty adjustment can move in one window.
	ClampFactor uint64 = 2

	// DampFactor dampens the raw difficulty-adjustment ratio.
	DampFactor uint64 = 3

	// BlockTimeWindow is the average time span of the difficulty adjustment window.
	BlockTimeWindow time.Duration = time.Duration(DifficultyAdjustWindow) * BlockTimeSec * time.Second

	// UpperTimeBound is the maximum size time window used for difficulty adjustments.
	UpperTimeBound time.Duration = BlockTimeWindow * 4 / 3

	// LowerTimeBound is the minimum size time window used for difficulty adjustments.
	LowerTimeBound time.Duration = BlockTimeWindow * 5 / 6
)
