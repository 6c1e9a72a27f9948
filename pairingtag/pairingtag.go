/*
 * Copyright (c) 2018 XLAB d.o.o
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package pairingtag anchors a Paillier plaintext to a deterministic
// bilinear-curve fingerprint, so that two ciphertexts of the same
// plaintext can be recognized without decrypting either. It is built on
// github.com/fentec-project/bn256, the same pairing library the ABE
// schemes in this repo's teacher use for G1/G2/GT arithmetic and
// pairing.
package pairingtag

import (
	"crypto/rand"
	"math/big"

	"github.com/fentec-project/bn256"

	"github.com/fentec-ehope/hope/internal/xerr"
)

// SystemParams holds the public generators shared by an ehOPE scheme
// instance: P in G1 and Q in G2. Every plaintext's tag is P scaled by
// its scalar-field representation; every tag's anchor is its pairing
// with Q.
type SystemParams struct {
	ID   string
	Name string
	P    *bn256.G1
	Q    *bn256.G2
}

// NewSystemParams samples fresh random generators P, Q for a new scheme
// instance.
func NewSystemParams(id, name string) (SystemParams, error) {
	_, p, err := bn256.RandomG1(rand.Reader)
	if err != nil {
		return SystemParams{}, err
	}
	_, q, err := bn256.RandomG2(rand.Reader)
	if err != nil {
		return SystemParams{}, err
	}
	return SystemParams{ID: id, Name: name, P: p, Q: q}, nil
}

// Scalar projects a plaintext onto the pairing's scalar field, returning
// xerr.ErrOutOfDomain when m does not fit (m < 0 or m >= bn256.Order).
// This is the Go equivalent of the original scheme's Fr::from_str.
func Scalar(m *big.Int) (*big.Int, error) {
	if m.Sign() < 0 || m.Cmp(bn256.Order) >= 0 {
		return nil, xerr.ErrOutOfDomain
	}
	return new(big.Int).Set(m), nil
}

// Tag computes g = p * fr, the deterministic G1 fingerprint of a
// plaintext whose scalar-field projection is fr. Callers obtain fr via
// Scalar first; Tag itself never fails.
func Tag(p *bn256.G1, fr *big.Int) *bn256.G1 {
	return new(bn256.G1).ScalarMult(p, fr)
}

// Anchor computes h = e(g, q), the pairing of a G1 tag with the scheme's
// G2 generator.
func Anchor(g *bn256.G1, q *bn256.G2) *bn256.GT {
	return bn256.Pair(g, q)
}

// AddTags returns g1+g2 in G1. Because g = P*Fr(m), this equals
// P*Fr(m1+m2), letting the orchestrator derive the tag of a sum without
// knowing either plaintext.
func AddTags(g1, g2 *bn256.G1) *bn256.G1 {
	return new(bn256.G1).Add(g1, g2)
}

// SubTags returns g1-g2 in G1, the tag of a difference.
func SubTags(g1, g2 *bn256.G1) *bn256.G1 {
	neg := new(bn256.G1).Neg(g2)
	return new(bn256.G1).Add(g1, neg)
}

// CanonicalKey returns g's canonical 64-byte marshaling, used as the key
// into the tag index. bn256.G1.Marshal always produces a fixed-length
// encoding, so equal points always produce equal keys.
func CanonicalKey(g *bn256.G1) [64]byte {
	var key [64]byte
	copy(key[:], g.Marshal())
	return key
}
