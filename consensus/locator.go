// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Locator is a sparse list of known block hashes, sent newest-first, used by
// a peer to ask for headers starting from the most recent common ancestor.
type Locator struct {
	Hashes []Hash
}

// Type implements the p2p Message interface.
func (h *Locator) Type() uint8 {
	return MsgTypeGetHeaders
}

// Bytes implements the p2p Message interface.
func (h *Locator) Bytes() []byte {
	buf := new(bytes.Buffer)

	count := len(h.Hashes)
	if count > MaxLocators {
		count = MaxLocators
	}

	binary.Write(buf, binary.BigEndian, uint8(count))
	for _, hash := range h.Hashes[:count] {
		buf.Write(hash)
	}

	return buf.Bytes()
}

// Read implements the p2p Message interface.
func (h *Locator) Read(r io.Reader) error {
	var count uint8
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return err
	}

	if int(count) > MaxLocators {
		return fmt.Errorf("locator exceeds maximum of %d hashes", MaxLocators)
	}

	h.Hashes = make([]Hash, count)
	for i := range h.Hashes {
		h.Hashes[i] = make(Hash, BlockHashSize)
		if _, err := io.ReadFull(r, h.Hashes[i]); err != nil {
			return err
		}
	}

	return nil
}
