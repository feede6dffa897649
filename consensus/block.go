// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mwcoin/node/secp256k1zkp"
	"golang.org/x/crypto/blake2b"
)

// BlockID identifies a block by hash and/or height; a nil field means
// "use the other one".
type BlockID struct {
	Hash   Hash
	Height *uint64
}

// BlockHeader carries the block's metadata and the cryptographic
// commitments (MMR roots) to everything that follows.
type BlockHeader struct {
	Version           uint16
	Height            uint64
	Previous          Hash
	PreviousRoot      Hash
	Timestamp         time.Time
	UTXORoot          Hash
	RangeProofRoot    Hash
	KernelRoot        Hash
	Nonce             uint64
	TotalKernelOffset Hash
	TotalKernelSum    secp256k1zkp.Commitment
	OutputMmrSize     uint64
	KernelMmrSize     uint64
	POW               Proof
	Difficulty        Difficulty
	TotalDifficulty   Difficulty
	ScalingDifficulty uint32
}

// bytesWithoutPOW serializes every header field except the proof of work,
// the pre-image POW mining and validation operate over.
func (b *BlockHeader) bytesWithoutPOW() []byte {
	buf := new(bytes.Buffer)

	binary.Write(buf, binary.BigEndian, b.Version)
	binary.Write(buf, binary.BigEndian, b.Height)
	binary.Write(buf, binary.BigEndian, b.Timestamp.Unix())

	buf.Write(b.Previous)
	buf.Write(b.PreviousRoot)
	buf.Write(b.UTXORoot)
	buf.Write(b.RangeProofRoot)
	buf.Write(b.KernelRoot)
	buf.Write(b.TotalKernelOffset)
	buf.Write(b.TotalKernelSum)

	binary.Write(buf, binary.BigEndian, b.OutputMmrSize)
	binary.Write(buf, binary.BigEndian, b.KernelMmrSize)
	binary.Write(buf, binary.BigEndian, uint64(b.TotalDifficulty))
	binary.Write(buf, binary.BigEndian, b.ScalingDifficulty)
	binary.Write(buf, binary.BigEndian, b.Nonce)

	return buf.Bytes()
}

// Bytes implements the p2p Message interface.
func (b *BlockHeader) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Write(b.bytesWithoutPOW())
	buf.Write(b.POW.Bytes())
	return buf.Bytes()
}

// Type implements the p2p Message interface.
func (b *BlockHeader) Type() uint8 {
	return MsgTypeHeaders
}

// Read implements the p2p Message interface.
func (b *BlockHeader) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &b.Version); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &b.Height); err != nil {
		return err
	}

	var ts int64
	if err := binary.Read(r, binary.BigEndian, &ts); err != nil {
		return err
	}
	b.Timestamp = time.Unix(ts, 0).UTC()

	for _, h := range []*Hash{&b.Previous, &b.PreviousRoot, &b.UTXORoot, &b.RangeProofRoot, &b.KernelRoot} {
		*h = make(Hash, BlockHashSize)
		if _, err := io.ReadFull(r, *h); err != nil {
			return err
		}
	}

	b.TotalKernelOffset = make(Hash, secp256k1zkp.SecretKeySize)
	if _, err := io.ReadFull(r, b.TotalKernelOffset); err != nil {
		return err
	}

	totalKernelSum := make([]byte, secp256k1zkp.PedersenCommitmentSize)
	if _, err := io.ReadFull(r, totalKernelSum); err != nil {
		return err
	}
	b.TotalKernelSum = totalKernelSum

	if err := binary.Read(r, binary.BigEndian, &b.OutputMmrSize); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &b.KernelMmrSize); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &b.TotalDifficulty); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &b.ScalingDifficulty); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &b.Nonce); err != nil {
		return err
	}

	return b.POW.Read(r)
}

// Hash returns the Blake2b hash of the complete header serialization,
// pre-PoW fields followed by the proof of work itself.
func (b *BlockHeader) Hash() Hash {
	hashed := blake2b.Sum256(b.Bytes())
	return hashed[:]
}

// Validate runs the header-scope consensus rules: version schedule,
// future-time bound, edge-bits/scaling bounds and proof-of-work.
func (b *BlockHeader) Validate() error {
	if !ValidateBlockVersion(b.Height, b.Version) {
		return NewInvalid(InvalidPoW, fmt.Sprintf("unsupported block version %d at height %d", b.Version, b.Height))
	}

	if b.Timestamp.Sub(time.Now().UTC()) > 12*BlockTimeSec*time.Second {
		return NewInvalid(InvalidPoW, fmt.Sprintf("block timestamp %s too far in the future", b.Timestamp))
	}

	isPrimaryPow := b.POW.EdgeBits != SecondPowEdgeBits

	if isPrimaryPow && b.POW.EdgeBits < DefaultMinEdgeBits {
		return NewInvalid(InvalidPoW, fmt.Sprintf("cuckoo edge bits too small: %d", b.POW.EdgeBits))
	}

	if isPrimaryPow && b.ScalingDifficulty != 1 {
		return NewInvalid(InvalidPoW, fmt.Sprintf("invalid scaling difficulty: %d", b.ScalingDifficulty))
	}

	if err := b.POW.Validate(b.bytesWithoutPOW()); err != nil {
		return NewInvalid(InvalidPoW, err.Error())
	}

	return nil
}

// String implements the String() interface.
func (b BlockHeader) String() string {
	return fmt.Sprintf("%#v", b)
}

// Block is a full block: a header plus its transaction body.
type Block struct {
	Header BlockHeader
	Body   TransactionBody
}

// Bytes implements the p2p Message interface.
func (b *Block) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Write(b.Header.Bytes())

	b.Body.Sort()

	binary.Write(buf, binary.BigEndian, uint64(len(b.Body.Inputs)))
	binary.Write(buf, binary.BigEndian, uint64(len(b.Body.Outputs)))
	binary.Write(buf, binary.BigEndian, uint64(len(b.Body.Kernels)))

	for _, in := range b.Body.Inputs {
		buf.Write(in.Bytes())
	}
	for _, o := range b.Body.Outputs {
		buf.Write(o.Bytes())
	}
	for _, k := range b.Body.Kernels {
		buf.Write(k.Bytes())
	}

	return buf.Bytes()
}

// Type implements the p2p Message interface.
func (b *Block) Type() uint8 {
	return MsgTypeBlock
}

// Read implements the p2p Message interface.
func (b *Block) Read(r io.Reader) error {
	if err := b.Header.Read(r); err != nil {
		return err
	}

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
		return fmt.Errorf("block contains too many elements")
	}

	b.Body.Inputs = make(InputList, inputs)
	for i := range b.Body.Inputs {
		if err := b.Body.Inputs[i].Read(r); err != nil {
			return err
		}
	}

	b.Body.Outputs = make(OutputList, outputs)
	for i := range b.Body.Outputs {
		if err := b.Body.Outputs[i].Read(r); err != nil {
			return err
		}
	}

	b.Body.Kernels = make(TxKernelList, kernels)
	for i := range b.Body.Kernels {
		if err := b.Body.Kernels[i].Read(r); err != nil {
			return err
		}
	}

	return nil
}

// String implements the String() interface.
func (b Block) String() string {
	return fmt.Sprintf("%#v", b)
}

// Hash returns the block's header hash.
func (b *Block) Hash() Hash {
	return b.Header.Hash()
}

// Validate runs the block-scope consensus rules: header validation, the
// context-free body checks, coinbase-placement bounds, and per-kernel
// lock-rule enforcement. It does not check the kernel-sum balance
// equation against cumulative chain state; that is a chain-context check
// performed by the UTXO set layer.
func (b *Block) Validate() error {
	if err := b.Header.Validate(); err != nil {
		return err
	}

	if len(b.Body.Outputs) == 0 || len(b.Body.Kernels) == 0 {
		return NewInvalid(InvalidCoinbase, "block has no coinbase output/kernel")
	}

	if err := b.Body.ValidateContextFree(); err != nil {
		return err
	}

	if err := b.verifyCoinbase(); err != nil {
		return err
	}

	return b.verifyKernelLockRules()
}

func (b *Block) verifyCoinbase() error {
	coinbaseOutputs := 0
	for _, o := range b.Body.Outputs {
		if o.IsCoinbase() {
			coinbaseOutputs++
		}
	}
	if coinbaseOutputs > MaxBlockCoinbaseOutputs {
		return NewInvalid(InvalidCoinbase, "too many coinbase outputs")
	}

	coinbaseKernels := 0
	for _, k := range b.Body.Kernels {
		if k.Features == CoinbaseKernel {
			coinbaseKernels++
		}
	}
	if coinbaseKernels > MaxBlockCoinbaseKernels {
		return NewInvalid(InvalidCoinbase, "too many coinbase kernels")
	}

	return nil
}

// verifyKernelLockRules enforces the per-feature kernel rules: a
// height-locked kernel must not unlock before the block's height, and a
// no-recent-duplicate kernel's relative lock window must lie in 1..WeekHeight.
func (b *Block) verifyKernelLockRules() error {
	for _, k := range b.Body.Kernels {
		switch k.Features {
		case HeightLockedKernel:
			if k.LockHeight > b.Header.Height {
				return NewInvalid(InvalidImmature, "height-locked kernel not yet matured")
			}
		case NoRecentDuplicateKernel:
			if k.LockHeight == 0 || k.LockHeight > WeekHeight {
				return NewInvalid(InvalidNRD, "no-recent-duplicate kernel relative height outside 1..WeekHeight")
			}
		}
	}
	return nil
}

// CompactBlock is the short-id representation of a full block: coinbase
// outputs and kernels travel in full, everything else is identified by a
// short id the receiver resolves against its own mempool.
type CompactBlock struct {
	Header    BlockHeader
	Outputs   OutputList
	Kernels   TxKernelList
	KernelIDs ShortIDList
}

// Bytes implements the p2p Message interface.
func (b *CompactBlock) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Write(b.Header.Bytes())

	binary.Write(buf, binary.BigEndian, uint8(len(b.Outputs)))
	binary.Write(buf, binary.BigEndian, uint8(len(b.Kernels)))
	binary.Write(buf, binary.BigEndian, uint64(len(b.KernelIDs)))

	sort.Sort(b.Outputs)
	sort.Sort(b.Kernels)
	sort.Sort(b.KernelIDs)

	for _, o := range b.Outputs {
		buf.Write(o.Bytes())
	}
	for _, k := range b.Kernels {
		buf.Write(k.Bytes())
	}
	for _, id := range b.KernelIDs {
		buf.Write(id)
	}

	return buf.Bytes()
}

// Type implements the p2p Message interface.
func (b *CompactBlock) Type() uint8 {
	return MsgTypeCompactBlock
}

// Read implements the p2p Message interface.
func (b *CompactBlock) Read(r io.Reader) error {
	if err := b.Header.Read(r); err != nil {
		return err
	}

	var outputs, kernels uint8
	var kernelIDs uint64

	if err := binary.Read(r, binary.BigEndian, &outputs); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &kernels); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &kernelIDs); err != nil {
		return err
	}

	b.Outputs = make(OutputList, outputs)
	for i := range b.Outputs {
		if err := b.Outputs[i].Read(r); err != nil {
			return err
		}
	}

	b.Kernels = make(TxKernelList, kernels)
	for i := range b.Kernels {
		if err := b.Kernels[i].Read(r); err != nil {
			return err
		}
	}

	b.KernelIDs = make(ShortIDList, kernelIDs)
	for i := range b.KernelIDs {
		id := make(ShortID, ShortIDSize)
		if _, err := io.ReadFull(r, id); err != nil {
			return err
		}
		b.KernelIDs[i] = id
	}

	return nil
}

// String implements the String() interface.
func (b CompactBlock) String() string {
	return fmt.Sprintf("%#v", b)
}

// Hash returns the compact block's header hash.
func (b *CompactBlock) Hash() Hash {
	return b.Header.Hash()
}

// BlockList is a sortable list of full blocks, used by header-first sync.
type BlockList []Block
