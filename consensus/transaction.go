// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mwcoin/node/secp256k1zkp"
)

// Transaction is a transaction body plus the blinding-factor offset that
// keeps the aggregated kernel excesses from leaking individual input/output
// blinds when multiple transactions are merged.
type Transaction struct {
	Body   TransactionBody
	Offset secp256k1zkp.Scalar
}

// Bytes implements the p2p Message interface.
func (t *Transaction) Bytes() []byte {
	buf := new(bytes.Buffer)

	offsetBytes := t.Offset.Bytes()
	buf.Write(offsetBytes[:])

	t.Body.Sort()

	binary.Write(buf, binary.BigEndian, uint64(len(t.Body.Inputs)))
	binary.Write(buf, binary.BigEndian, uint64(len(t.Body.Outputs)))
	binary.Write(buf, binary.BigEndian, uint64(len(t.Body.Kernels)))

	for _, in := range t.Body.Inputs {
		buf.Write(in.Bytes())
	}
	for _, o := range t.Body.Outputs {
		buf.Write(o.Bytes())
	}
	for _, k := range t.Body.Kernels {
		buf.Write(k.Bytes())
	}

	return buf.Bytes()
}

// Type implements the p2p Message interface.
func (t *Transaction) Type() uint8 {
	return MsgTypeTransaction
}

// Read implements the p2p Message interface.
func (t *Transaction) Read(r io.Reader) error {
	var offsetBytes [secp256k1zkp.SecretKeySize]byte
	if _, err := io.ReadFull(r, offsetBytes[:]); err != nil {
		return err
	}
	offset, err := secp256k1zkp.ScalarFromBytes(offsetBytes[:])
	if err != nil {
		return err
	}
	t.Offset = *offset

	var inputs, outputs, kernels uint64
	if err := binary.Read(r, binary.BigEndian, &inputs); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &outputs); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &kernels); err != nil {
		return err
	}

	if inputs > 1000000 || outputs > 1000000 || kernels > 1000000 {
		return fmt.Errorf("transaction contains too many elements")
	}

	t.Body.Inputs = make(InputList, inputs)
	for i := range t.Body.Inputs {
		if err := t.Body.Inputs[i].Read(r); err != nil {
			return err
		}
	}

	t.Body.Outputs = make(OutputList, outputs)
	for i := range t.Body.Outputs {
		if err := t.Body.Outputs[i].Read(r); err != nil {
			return err
		}
	}

	t.Body.Kernels = make(TxKernelList, kernels)
	for i := range t.Body.Kernels {
		if err := t.Body.Kernels[i].Read(r); err != nil {
			return err
		}
	}

	return nil
}

// String implements the String() interface.
func (t Transaction) String() string {
	return fmt.Sprintf("%#v", t)
}

// Fee returns the transaction's total fee across all kernels.
func (t *Transaction) Fee() uint64 {
	return t.Body.Kernels.TotalFee()
}

// Validate runs the context-free body checks plus the transaction-specific
// context-dependent rules: no coinbase features, and a balanced kernel
// sum with overage equal to the total fee.
func (t *Transaction) Validate() error {
	if err := t.Body.ValidateContextFree(); err != nil {
		return err
	}

	for _, o := range t.Body.Outputs {
		if o.IsCoinbase() {
			return NewInvalid(InvalidCoinbase, "coinbase output in non-block transaction")
		}
	}
	for _, k := range t.Body.Kernels {
		if k.Features == CoinbaseKernel {
			return NewInvalid(InvalidCoinbase, "coinbase kernel in non-block transaction")
		}
	}

	return t.Body.ValidateKernelSum(&t.Offset, int64(t.Fee()))
}
