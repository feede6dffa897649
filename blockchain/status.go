// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package blockchain

// Status is the precise outcome of a chain-engine operation, precise enough
// that the p2p layer can decide whether to ban the sending peer.
type Status int

const (
	// StatusSuccess means the call changed chain state as requested.
	StatusSuccess Status = iota
	// StatusOrphan means the block/header/compact-block references an
	// unknown parent (or, for a compact block, unresolved short ids); the
	// caller should hold it and request what is missing.
	StatusOrphan
	// StatusInvalid means a consensus rule rejected the data; the peer it
	// came from should be banned per consensus.BanReasonFor.
	StatusInvalid
	// StatusAlreadyProcessed means this exact block/header was already
	// accepted; idempotent success.
	StatusAlreadyProcessed
	// StatusStoreError means a filesystem/database failure aborted the
	// operation; the batch was rolled back and the caller may retry.
	StatusStoreError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusOrphan:
		return "ORPHAN"
	case StatusInvalid:
		return "INVALID"
	case StatusAlreadyProcessed:
		return "ALREADY_PROCESSED"
	case StatusStoreError:
		return "STORE_ERROR"
	default:
		return "UNKNOWN"
	}
}

// MissingShortIDsError is returned by Engine.AddCompactBlock when one or
// more kernel short ids could not be resolved against the supplied
// transaction source; Indices are positions into the compact block's
// KernelIDs list the caller should request in full from the sender.
type MissingShortIDsError struct {
	Indices []int
}

func (e *MissingShortIDsError) Error() string {
	return "blockchain: compact block has unresolved kernel short ids"
}
