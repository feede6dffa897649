// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import "fmt"

// BanReason is attached to a peer-originated error so the p2p layer knows
// whether and why to disconnect/ban the sender.
type BanReason string

const (
	BanBadMessage     BanReason = "BadMessage"
	BanBadData        BanReason = "BadData"
	BanInvalidPoW     BanReason = "InvalidPoW"
	BanInvalidDiff    BanReason = "InvalidDifficulty"
	BanInvalidSum     BanReason = "InvalidKernelSum"
	BanInvalidRange   BanReason = "InvalidRangeProof"
	BanInvalidSig     BanReason = "InvalidSignature"
	BanRootMismatch   BanReason = "RootMismatch"
	BanUnsorted       BanReason = "InvalidSort"
	BanCutThrough     BanReason = "InvalidCutThrough"
	BanInvalidWeight  BanReason = "InvalidWeight"
	BanNRDViolation   BanReason = "NRDViolation"
	BanImmature       BanReason = "Immature"
	BanInvalidCoinbase BanReason = "InvalidCoinbase"
)

// BadDataError wraps any deserialization or structural failure. Always
// peer-side fatal: the caller should ban with BanBadData.
type BadDataError struct {
	Reason string
}

func (e *BadDataError) Error() string { return fmt.Sprintf("bad data: %s", e.Reason) }

// NewBadData builds a BadDataError.
func NewBadData(reason string) error { return &BadDataError{Reason: reason} }

// InvalidKind enumerates the validation-failure kinds carried by
// InvalidError.
type InvalidKind string

const (
	InvalidPoW        InvalidKind = "PoW"
	InvalidDifficulty InvalidKind = "Difficulty"
	InvalidKernelSum  InvalidKind = "KernelSum"
	InvalidRangeProof InvalidKind = "RangeProof"
	InvalidSignature  InvalidKind = "Signature"
	InvalidRootMismatch InvalidKind = "RootMismatch"
	InvalidSort       InvalidKind = "Sort"
	InvalidCutThrough InvalidKind = "CutThrough"
	InvalidWeight     InvalidKind = "Weight"
	InvalidNRD        InvalidKind = "NRD"
	InvalidImmature   InvalidKind = "Immature"
	InvalidCoinbase   InvalidKind = "Coinbase"
	InvalidInput      InvalidKind = "Input"
	InvalidDuplicateOutput InvalidKind = "DuplicateOutput"
	InvalidCorruptMMR InvalidKind = "CorruptMMR"
)

// InvalidError is returned by any consensus-rule validator.
type InvalidError struct {
	Kind   InvalidKind
	Detail string
}

func (e *InvalidError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid: %s", e.Kind)
	}
	return fmt.Sprintf("invalid: %s: %s", e.Kind, e.Detail)
}

// NewInvalid builds an InvalidError of the given kind.
func NewInvalid(kind InvalidKind, detail string) error {
	return &InvalidError{Kind: kind, Detail: detail}
}

// BanReasonFor maps an error produced by the validation layer to the ban
// reason a peer connection handler should apply, or "" if the error isn't
// peer-attributable (e.g. StoreError, Orphan).
func BanReasonFor(err error) BanReason {
	switch e := err.(type) {
	case *BadDataError:
		return BanBadData
	case *InvalidError:
		switch e.Kind {
		case InvalidPoW:
			return BanInvalidPoW
		case InvalidDifficulty:
			return BanInvalidDiff
		case InvalidKernelSum:
			return BanInvalidSum
		case InvalidRangeProof:
			return BanInvalidRange
		case InvalidSignature:
			return BanInvalidSig
		case InvalidRootMismatch:
			return BanRootMismatch
		case InvalidSort:
			return BanUnsorted
		case InvalidCutThrough:
			return BanCutThrough
		case InvalidWeight:
			return BanInvalidWeight
		case InvalidNRD:
			return BanNRDViolation
		case InvalidImmature:
			return BanImmature
		case InvalidCoinbase:
			return BanInvalidCoinbase
		case InvalidInput, InvalidDuplicateOutput, InvalidCorruptMMR:
			return BanBadData
		}
	}
	return ""
}

// ErrOrphan marks a block/tx that references an unknown parent: recoverable.
// The orphan is reported to the caller and not kept; there is no orphan pool.
var ErrOrphan = fmt.Errorf("orphan: parent not found")

// ErrAlreadyProcessed marks an idempotent resubmission.
var ErrAlreadyProcessed = fmt.Errorf("already processed")

// StoreError wraps a file/system I/O failure: non-fatal at the RPC
// boundary, fatal (forces a batch rollback) inside a write batch.
type StoreError struct {
	Component string
	Op        string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s/%s: %v", e.Component, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError builds a StoreError.
func NewStoreError(component, op string, err error) error {
	return &StoreError{Component: component, Op: op, Err: err}
}
