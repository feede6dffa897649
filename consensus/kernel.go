// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/mwcoin/node/secp256k1zkp"
	"golang.org/x/crypto/blake2b"
)

// TxKernel proves a transaction sums to zero: the excess is a Pedersen
// commitment to zero under the combined blinding of its inputs and
// outputs, and the signature proves knowledge of that blinding, binding in
// the fee and/or lock height as the feature requires.
type TxKernel struct {
	Features   KernelFeatures
	Fee        Fee
	LockHeight uint64
	Excess     secp256k1zkp.Commitment
	ExcessSig  [64]byte
}

// ErrInvalidSignature means the kernel's excess signature doesn't verify.
var ErrInvalidSignature = errors.New("signature isn't valid")

// Message returns the 32-byte signature pre-image for this kernel: Blake2b
// over the feature byte plus whichever of fee/lock-height the feature
// requires.
func (k *TxKernel) Message() [32]byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(k.Features))

	switch k.Features {
	case PlainKernel:
		binary.Write(buf, binary.BigEndian, uint64(k.Fee))
	case HeightLockedKernel:
		binary.Write(buf, binary.BigEndian, uint64(k.Fee))
		binary.Write(buf, binary.BigEndian, k.LockHeight)
	case NoRecentDuplicateKernel:
		binary.Write(buf, binary.BigEndian, uint64(k.Fee))
		binary.Write(buf, binary.BigEndian, uint16(k.LockHeight))
	case CoinbaseKernel:
		// No fee, no lock height: a coinbase kernel only signs its own feature byte.
	}

	return blake2b.Sum256(buf.Bytes())
}

// Hash returns the Blake2b hash of the serialized kernel.
func (k *TxKernel) Hash() Hash {
	hashed := blake2b.Sum256(k.Bytes())
	return hashed[:]
}

// Bytes implements the p2p Message interface.
func (k *TxKernel) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(k.Features))

	switch k.Features {
	case PlainKernel:
		binary.Write(buf, binary.BigEndian, uint64(k.Fee))
	case HeightLockedKernel:
		binary.Write(buf, binary.BigEndian, uint64(k.Fee))
		binary.Write(buf, binary.BigEndian, k.LockHeight)
	case NoRecentDuplicateKernel:
		binary.Write(buf, binary.BigEndian, uint64(k.Fee))
		binary.Write(buf, binary.BigEndian, uint16(k.LockHeight))
	}

	buf.Write(k.Excess)
	buf.Write(k.ExcessSig[:])

	return buf.Bytes()
}

// Read implements the p2p Message interface.
func (k *TxKernel) Read(r io.Reader) error {
	var features [1]byte
	if _, err := io.ReadFull(r, features[:]); err != nil {
		return err
	}
	k.Features = KernelFeatures(features[0])

	switch k.Features {
	case PlainKernel:
		var fee uint64
		if err := binary.Read(r, binary.BigEndian, &fee); err != nil {
			return err
		}
		k.Fee = Fee(fee)
	case HeightLockedKernel:
		var fee uint64
		if err := binary.Read(r, binary.BigEndian, &fee); err != nil {
			return err
		}
		k.Fee = Fee(fee)
		if err := binary.Read(r, binary.BigEndian, &k.LockHeight); err != nil {
			return err
		}
	case NoRecentDuplicateKernel:
		var fee uint64
		if err := binary.Read(r, binary.BigEndian, &fee); err != nil {
			return err
		}
		k.Fee = Fee(fee)
		var relative uint16
		if err := binary.Read(r, binary.BigEndian, &relative); err != nil {
			return err
		}
		k.LockHeight = uint64(relative)
	case CoinbaseKernel:
		// nothing further
	default:
		return fmt.Errorf("unknown kernel feature: %d", k.Features)
	}

	excess := make([]byte, secp256k1zkp.PedersenCommitmentSize)
	if _, err := io.ReadFull(r, excess); err != nil {
		return err
	}
	k.Excess = excess

	if _, err := io.ReadFull(r, k.ExcessSig[:]); err != nil {
		return err
	}

	return nil
}

// Validate checks the kernel's excess signature: the spender signs the
// kernel's feature-appropriate message using the private key for the
// excess commitment, proving no value was created and inputs are owned.
func (k *TxKernel) Validate() error {
	msg := k.Message()

	excessPoint, err := k.Excess.ToPoint()
	if err != nil {
		return fmt.Errorf("invalid kernel excess: %w", err)
	}

	signature, err := secp256k1zkp.DecodeSignature(k.ExcessSig[:])
	if err != nil {
		return fmt.Errorf("invalid kernel signature encoding: %w", err)
	}

	if !secp256k1zkp.VerifySignature(excessPoint, msg[:], signature) {
		return ErrInvalidSignature
	}

	return nil
}

// TxKernelList is a sortable list of kernels, ordered by hash ascending.
type TxKernelList []TxKernel

func (m TxKernelList) Len() int           { return len(m) }
func (m TxKernelList) Less(i, j int) bool { return bytes.Compare(m[i].Hash(), m[j].Hash()) < 0 }
func (m TxKernelList) Swap(i, j int)      { m[i], m[j] = m[j], m[i] }

// TotalWeight returns the list's contribution to a body's weight.
func (m TxKernelList) TotalWeight() uint32 {
	return uint32(len(m)) * BlockKernelWeight
}

// TotalFee sums every kernel's fee.
func (m TxKernelList) TotalFee() uint64 {
	var total uint64
	for _, k := range m {
		total += k.Fee.Amount()
	}
	return total
}
