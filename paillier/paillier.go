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

// Package paillier implements the additively homomorphic Paillier
// cryptosystem used as the ehOPE scheme's plaintext-hiding layer. Key
// generation uses strong primes from internal/primegen; the closed-form
// encryption specialization g^m = 1+m*n (valid because g is always n+1)
// follows the original ehOPE implementation's Paillier module.
package paillier

import (
	"context"
	"math/big"

	"github.com/pkg/errors"

	"github.com/fentec-ehope/hope/internal/primegen"
	"github.com/fentec-ehope/hope/internal/sample"
)

var (
	big1 = big.NewInt(1)
)

// EncryptionKey is the Paillier public key (n, n^2, g).
type EncryptionKey struct {
	N       *big.Int
	NSquare *big.Int
	G       *big.Int
}

// DecryptionKey is the Paillier private key (lambda, mu).
type DecryptionKey struct {
	Lambda *big.Int
	Mu     *big.Int
}

// KeyGen generates a Paillier key pair of the given modulus bit length.
// bits must be even; an odd bits panics, matching the original scheme's
// assert!(keysize % 2 == 0).
func KeyGen(ctx context.Context, bits int) (*EncryptionKey, *DecryptionKey, error) {
	if bits%2 != 0 {
		panic("paillier: KeyGen requires an even bit length")
	}

	half := bits / 2
	p, err := primegen.StrongPrime(ctx, half)
	if err != nil {
		return nil, nil, errors.Wrap(err, "paillier: generating p")
	}
	q, err := primegen.StrongPrime(ctx, half)
	if err != nil {
		return nil, nil, errors.Wrap(err, "paillier: generating q")
	}

	n := new(big.Int).Mul(p, q)
	nSquare := new(big.Int).Mul(n, n)
	g := new(big.Int).Add(n, big1)

	pMinus1 := new(big.Int).Sub(p, big1)
	qMinus1 := new(big.Int).Sub(q, big1)
	lambda := new(big.Int).Mul(pMinus1, qMinus1)
	mu := new(big.Int).ModInverse(lambda, n)
	if mu == nil {
		return nil, nil, errors.New("paillier: lambda has no inverse mod n, regenerate keys")
	}

	ek := &EncryptionKey{N: n, NSquare: nSquare, G: g}
	dk := &DecryptionKey{Lambda: lambda, Mu: mu}
	return ek, dk, nil
}

// Encrypt returns a fresh Paillier ciphertext for plaintext m under ek,
// using the closed-form g^m = 1+m*n valid because g = n+1.
func Encrypt(ctx context.Context, ek *EncryptionKey, m *big.Int) (*big.Int, error) {
	r, err := blindingFactor(ctx, ek)
	if err != nil {
		return nil, errors.Wrap(err, "paillier: sampling blinding factor")
	}

	rn := new(big.Int).Exp(r, ek.N, ek.NSquare)
	gm := new(big.Int).Mul(m, ek.N)
	gm.Add(gm, big1)

	c := new(big.Int).Mul(gm, rn)
	c.Mod(c, ek.NSquare)
	return c, nil
}

// blindingFactor samples r in (0, n) with gcd(r, n) = 1.
func blindingFactor(ctx context.Context, ek *EncryptionKey) (*big.Int, error) {
	return sample.NewCoprimeUniform(ek.N).Sample(ctx)
}

// Decrypt recovers the plaintext m = L(c^lambda mod n^2) * mu mod n,
// where L(x) = (x-1)/n is exact integer division.
func Decrypt(dk *DecryptionKey, ek *EncryptionKey, c *big.Int) *big.Int {
	cl := new(big.Int).Exp(c, dk.Lambda, ek.NSquare)
	l := lFunction(cl, ek.N)
	l.Mul(l, dk.Mu)
	l.Mod(l, ek.N)
	return l
}

func lFunction(x, n *big.Int) *big.Int {
	l := new(big.Int).Sub(x, big1)
	l.Div(l, n)
	return l
}

// Add returns the ciphertext of m1+m2 mod n, given ciphertexts of m1, m2.
func Add(ek *EncryptionKey, c1, c2 *big.Int) *big.Int {
	c := new(big.Int).Mul(c1, c2)
	return c.Mod(c, ek.NSquare)
}

// Sub returns the ciphertext of m1-m2 mod n, or ok=false if c2 has no
// inverse modulo n^2 (which would require gcd(c2, n^2) != 1 — an
// essentially impossible but checked condition for well-formed
// ciphertexts).
func Sub(ek *EncryptionKey, c1, c2 *big.Int) (result *big.Int, ok bool) {
	inv := new(big.Int).ModInverse(c2, ek.NSquare)
	if inv == nil {
		return nil, false
	}
	c := new(big.Int).Mul(c1, inv)
	c.Mod(c, ek.NSquare)
	return c, true
}

// Rerandomize returns a fresh encryption of the same plaintext as c,
// blinded by a new random factor.
func Rerandomize(ctx context.Context, ek *EncryptionKey, c *big.Int) (*big.Int, error) {
	r, err := blindingFactor(ctx, ek)
	if err != nil {
		return nil, errors.Wrap(err, "paillier: sampling blinding factor")
	}
	rn := new(big.Int).Exp(r, ek.N, ek.NSquare)
	out := new(big.Int).Mul(c, rn)
	return out.Mod(out, ek.NSquare), nil
}

// AddConst returns the ciphertext of m+k mod n given a ciphertext of m
// and a plaintext constant k.
func AddConst(ek *EncryptionKey, c, k *big.Int) *big.Int {
	gk := new(big.Int).Mul(k, ek.N)
	gk.Add(gk, big1)
	gk.Mod(gk, ek.NSquare)
	return Add(ek, c, gk)
}

// MulConst returns the ciphertext of m*k mod n given a ciphertext of m
// and a plaintext constant k.
func MulConst(ek *EncryptionKey, c, k *big.Int) *big.Int {
	return new(big.Int).Exp(c, k, ek.NSquare)
}
