// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package secp256k1zkp

import "testing"

func TestScalarAddSubInverse(t *testing.T) {
	a := RandomScalar()
	b := RandomScalar()

	sum := a.Add(b)
	back := sum.Sub(b)

	if back.Bytes() != a.Bytes() {
		t.Errorf("(a+b)-b != a")
	}
}

func TestScalarNegateRoundtrip(t *testing.T) {
	a := RandomScalar()
	n := a.Negate()

	zero := a.Add(n)
	if !zero.IsZero() {
		t.Errorf("a + (-a) should be zero")
	}
}

func TestPointCompressDecompressRoundtrip(t *testing.T) {
	k := RandomScalar()
	p := ScalarMulBase(k)

	compressed := p.Compress()
	decoded, err := DecompressPoint(compressed[:])
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}

	if decoded.Compress() != compressed {
		t.Errorf("roundtrip mismatch")
	}
}

func TestScalarMulDistributesOverAdd(t *testing.T) {
	k := RandomScalar()
	a := RandomScalar()
	b := RandomScalar()

	lhs := ScalarMul(k, Add(ScalarMulBase(a), ScalarMulBase(b)))
	rhs := Add(ScalarMul(k, ScalarMulBase(a)), ScalarMul(k, ScalarMulBase(b)))

	if lhs.Compress() != rhs.Compress() {
		t.Errorf("scalar multiplication should distribute over point addition")
	}
}

func TestNegateTwiceIsIdentity(t *testing.T) {
	k := RandomScalar()
	p := ScalarMulBase(k)

	back := Negate(Negate(p))
	if back.Compress() != p.Compress() {
		t.Errorf("double negation should be identity")
	}
}

func TestSubIsAddNegate(t *testing.T) {
	a := ScalarMulBase(RandomScalar())
	b := ScalarMulBase(RandomScalar())

	lhs := Sub(a, b)
	rhs := Add(a, Negate(b))

	if lhs.Compress() != rhs.Compress() {
		t.Errorf("Sub(a,b) should equal Add(a, Negate(b))")
	}
}
