// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package secp256k1zkp

import "testing"

func TestCommitBlindedHomomorphism(t *testing.T) {
	r1 := RandomScalar()
	r2 := RandomScalar()

	c1 := CommitBlinded(10, r1)
	c2 := CommitBlinded(20, r2)

	sum := Add(c1, c2)

	expected := CommitBlinded(30, r1.Add(r2))

	if sum.Compress() != expected.Compress() {
		t.Errorf("commitment homomorphism broken: sum(C1,C2) != C(v1+v2, r1+r2)")
	}
}

func TestCommitToZeroMatchesBasePointMul(t *testing.T) {
	r := RandomScalar()

	c := CommitToZero(r)
	expected := ScalarMulBase(r)

	if c.Compress() != expected.Compress() {
		t.Errorf("commit to zero should equal r*G")
	}
}

func TestAddCommitmentsRoundtrip(t *testing.T) {
	r1 := RandomScalar()
	r2 := RandomScalar()

	c1 := CommitBlinded(5, r1)
	c2 := CommitBlinded(7, r2)

	c1c := Commitment(func() []byte { b := c1.Compress(); return b[:] }())
	c2c := Commitment(func() []byte { b := c2.Compress(); return b[:] }())

	sum, err := AddCommitments([]Commitment{c1c, c2c}, nil)
	if err != nil {
		t.Fatalf("AddCommitments failed: %v", err)
	}

	expected := CommitBlinded(12, r1.Add(r2))
	expectedBytes := expected.Compress()

	if string(sum) != string(expectedBytes[:]) {
		t.Errorf("commitment sum mismatch")
	}
}

func TestHGeneratorIsDeterministic(t *testing.T) {
	secondGenerator = nil
	h1 := H()
	h2 := H()

	if h1.Compress() != h2.Compress() {
		t.Errorf("H() is not deterministic across calls")
	}
}

func TestScalarFromUint64(t *testing.T) {
	cases := []uint64{0, 1, 2, 1<<32 - 1, 1 << 32, 1<<63 + 7}
	for _, v := range cases {
		s := ScalarFromUint64(v)
		if s.IsZero() && v != 0 {
			t.Errorf("ScalarFromUint64(%d) unexpectedly zero", v)
		}
	}
}
