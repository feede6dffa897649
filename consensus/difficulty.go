// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"encoding/binary"
	"sort"
	"time"
)

const (
	// ZeroDifficulty is the difficulty of an unmined chain.
	ZeroDifficulty Difficulty = 0

	// MinimumDifficulty is the minimum mining difficulty allowed.
	MinimumDifficulty Difficulty = 3
)

// Difficulty is defined as the maximum target divided by the block hash.
type Difficulty uint64

// FromNum wraps a raw number as a Difficulty.
func (d Difficulty) FromNum(num uint64) Difficulty {
	return Difficulty(num)
}

// FromHash computes the difficulty from a hash: divides the maximum target
// by the first 8 bytes of the provided hash.
func (d Difficulty) FromHash(hash Hash) Difficulty {
	maxTarget := binary.BigEndian.Uint64(MAXTarget)

	num := binary.BigEndian.Uint64(hash[:8])
	if num == 0 {
		return MinimumDifficulty
	}

	return Difficulty(maxTarget / num)
}

// IntoNum returns the raw numeric value.
func (d Difficulty) IntoNum() uint64 {
	return uint64(d)
}

// HeaderTimeDiff is the (timestamp, difficulty) pair NextDifficulty consumes
// for each block in its window, from latest (highest height) to oldest.
type HeaderTimeDiff struct {
	Timestamp  time.Time
	Difficulty Difficulty
}

// NextDifficulty computes the proof-of-work difficulty the next block
// should comply with, given an iterator over past blocks from latest to
// oldest. The reference difficulty is the average over a window of
// DifficultyAdjustWindow blocks; the corresponding timespan comes from the
// difference between median timestamps at the beginning and end of the
// window. This is a damped, clamped retarget close to the Digishield /
// GravityWave family.
func NextDifficulty(window []HeaderTimeDiff) Difficulty {
	wlen := len(window)
	if wlen == 0 {
		return ZeroDifficulty
	}

	sumDiff := ZeroDifficulty

	windowBegin := make([]time.Time, 0, MedianTimeWindow)
	windowEnd := make([]time.Time, 0, MedianTimeWindow)

	for i := wlen - 1; i >= 0; i-- {
		if i < DifficultyAdjustWindow {
			sumDiff += window[i].Difficulty

			if i < MedianTimeWindow {
				windowBegin = append(windowBegin, window[i].Timestamp)
			}
		} else if i < DifficultyAdjustWindow+MedianTimeWindow {
			windowEnd = append(windowEnd, window[i].Timestamp)
		} else {
			break
		}
	}

	if len(windowEnd) < MedianTimeWindow {
		return MinimumDifficulty
	}

	sort.SliceStable(windowBegin, func(i, j int) bool { return windowBegin[i].Before(windowBegin[j]) })
	sort.SliceStable(windowEnd, func(i, j int) bool { return windowEnd[i].Before(windowEnd[j]) })

	beginTime := windowBegin[len(windowBegin)/2]
	endTime := windowEnd[len(windowEnd)/2]

	diffAvg := sumDiff / MinimumDifficulty.FromNum(uint64(DifficultyAdjustWindow))

	ts := (3*BlockTimeWindow + beginTime.Sub(endTime)) / 4
	if ts < LowerTimeBound {
		ts = LowerTimeBound
	}
	if ts > UpperTimeBound {
		ts = UpperTimeBound
	}

	diff := diffAvg * MinimumDifficulty.FromNum(uint64(BlockTimeWindow.Seconds())) / MinimumDifficulty.FromNum(uint64(ts.Seconds()))
	if diff > MinimumDifficulty {
		return diff
	}

	return MinimumDifficulty
}

// Clamp bounds a candidate difficulty to within ClampFactor of goal, per the
// damped/clamped retarget rule in the proof-of-work validator.
func Clamp(candidate, goal Difficulty) Difficulty {
	lower := goal / Difficulty(ClampFactor)
	upper := goal * Difficulty(ClampFactor)

	if candidate < lower {
		return lower
	}
	if candidate > upper {
		return upper
	}
	return candidate
}

// Damp applies DampFactor-weighted smoothing between an actual measurement
// and a goal value.
func Damp(actual, goal Difficulty) Difficulty {
	return (actual + Difficulty(DampFactor-1)*goal) / Difficulty(DampFactor)
}
