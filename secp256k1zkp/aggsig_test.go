// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package secp256k1zkp

import (
	"testing"
)

func TestVerifySignature(t *testing.T) {
	x := RandomScalar()
	P := ScalarMulBase(x)

	msg := make([]byte, 32)

	sig := SignMessage(x, P, msg)
	if !VerifySignature(P, msg, sig) {
		t.Errorf("failed to verify signature")
	}
}

func TestVerifySignatureRejectsWrongMessage(t *testing.T) {
	x := RandomScalar()
	P := ScalarMulBase(x)

	sig := SignMessage(x, P, []byte("message one"))
	if VerifySignature(P, []byte("message two"), sig) {
		t.Errorf("signature verified against the wrong message")
	}
}

func TestSignatureRoundtrip(t *testing.T) {
	x := RandomScalar()
	P := ScalarMulBase(x)
	msg := []byte("round trip this signature through its wire encoding")

	sig := SignMessage(x, P, msg)

	encoded := sig.Bytes()
	decoded, err := DecodeSignature(encoded[:])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !VerifySignature(P, msg, decoded) {
		t.Errorf("verify failed on round-tripped signature")
	}
}

func TestAggregateSignatures(t *testing.T) {
	msg := [32]byte{}
	msg[0] = 0xab

	ctxA := NewAggsigContext(RandomScalar())
	ctxB := NewAggsigContext(RandomScalar())

	nonceSum := SumPublicKeys([]*Point{ctxA.NoncePublic(), ctxB.NoncePublic()})
	pubkeySum := SumPublicKeys([]*Point{ctxA.PublicKey(), ctxB.PublicKey()})

	pA := ctxA.PartialSign(nonceSum, pubkeySum, msg[:])
	pB := ctxB.PartialSign(nonceSum, pubkeySum, msg[:])

	if !VerifyPartial(pA, ctxA.NoncePublic(), pubkeySum, nonceSum, ctxA.PublicKey(), msg[:]) {
		t.Errorf("partial signature A failed to verify")
	}
	if !VerifyPartial(pB, ctxB.NoncePublic(), pubkeySum, nonceSum, ctxB.PublicKey(), msg[:]) {
		t.Errorf("partial signature B failed to verify")
	}

	sig := AggregateSignatures(nonceSum, []*Scalar{pA, pB})
	if !VerifySignature(pubkeySum, msg[:], sig) {
		t.Errorf("aggregate signature failed to verify")
	}
}
