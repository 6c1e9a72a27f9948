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

// Package primegen generates the strong primes the Paillier cryptosystem
// needs, using a Miller-Rabin primality oracle with a trial-division
// pre-filter. It is a from-scratch Go port of the primality routines in
// the original ehOPE implementation's millerrabin module, fixing the two
// bugs documented in spec.md's Open Questions: the witness range in
// IsPrime and the dead exponent computation in the Miller-Rabin inner
// loop.
package primegen

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"

	"github.com/fentec-ehope/hope/internal/xerr"
)

// numRounds is the default number of Miller-Rabin rounds run after trial
// division, matching the original's NUM_TESTS constant.
const numRounds = 24

// trialDivisors are the first 167 odd primes, used to reject small
// composite candidates before paying for a modular exponentiation.
var trialDivisors = buildTrialDivisors()

func buildTrialDivisors() []int64 {
	// sieve of Eratosthenes up to 1000, which comfortably contains the
	// first 167 odd primes (997 is the 168th prime overall, 167th odd one).
	const limit = 1000
	sieve := make([]bool, limit+1)
	var primes []int64
	for i := 2; i <= limit; i++ {
		if sieve[i] {
			continue
		}
		for j := i * i; j <= limit; j += i {
			sieve[j] = true
		}
		if i != 2 {
			primes = append(primes, int64(i))
		}
		if len(primes) == 167 {
			break
		}
	}
	return primes
}

var (
	big0 = big.NewInt(0)
	big1 = big.NewInt(1)
	big2 = big.NewInt(2)
)

// UniformBits draws a uniformly random non-negative integer whose bit
// length is exactly len (the top bit is forced set).
func UniformBits(ctx context.Context, length int) (*big.Int, error) {
	if length <= 0 {
		return new(big.Int), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	numBytes := (length + 7) / 8
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(xerr.ErrRandomSource, err.Error())
	}
	n := new(big.Int).SetBytes(buf)
	// trim to exactly `length` bits, then force the top bit.
	excess := numBytes*8 - length
	n.Rsh(n, uint(excess))
	n.SetBit(n, length-1, 1)
	return n, nil
}

// UniformInRange samples a value in the open interval (lo, hi) via
// rejection over UniformBits((bits(hi)-bits(lo))/2), matching the
// original generate_urandom_inrange.
func UniformInRange(ctx context.Context, lo, hi *big.Int) (*big.Int, error) {
	span := (hi.BitLen() - lo.BitLen()) / 2
	if span <= 0 {
		span = 1
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cand, err := UniformBits(ctx, span)
		if err != nil {
			return nil, err
		}
		if cand.Cmp(lo) > 0 && cand.Cmp(hi) < 0 {
			return cand, nil
		}
	}
}

// IsPrime reports whether n passes trial division by the first 167 odd
// primes and rounds rounds of Miller-Rabin with witnesses drawn from the
// open interval (2, n-2).
func IsPrime(ctx context.Context, n *big.Int, rounds int) (bool, error) {
	if n.Cmp(big2) < 0 {
		return false, nil
	}
	if n.Cmp(big2) == 0 {
		return true, nil
	}
	if n.Bit(0) == 0 {
		return false, nil
	}
	for _, d := range trialDivisors {
		dv := big.NewInt(d)
		if n.Cmp(dv) == 0 {
			return true, nil
		}
		if new(big.Int).Mod(n, dv).Sign() == 0 {
			return false, nil
		}
	}

	d, r := decompose(n)
	nMinus2 := new(big.Int).Sub(n, big2)
	for i := 0; i < rounds; i++ {
		a, err := UniformInRange(ctx, big2, nMinus2)
		if err != nil {
			return false, err
		}
		if trialComposite(n, d, r, a) {
			return false, nil
		}
	}
	return true, nil
}

// decompose writes n-1 = d*2^r with d odd.
func decompose(n *big.Int) (d *big.Int, r int) {
	d = new(big.Int).Sub(n, big1)
	for d.Bit(0) == 0 {
		d.Rsh(d, 1)
		r++
	}
	return d, r
}

// trialComposite runs the standard Miller-Rabin inner loop: witness a
// fails to prove compositeness when a^d ≡ 1 or a^(d*2^i) ≡ n-1 for some
// 0 <= i < r. The squaring x = x*x mod n is the only load-bearing step
// of the loop (see spec's Open Questions on the original's dead `e`
// computation).
func trialComposite(n, d *big.Int, r int, a *big.Int) bool {
	nMinus1 := new(big.Int).Sub(n, big1)
	x := new(big.Int).Exp(a, d, n)
	if x.Cmp(big1) == 0 || x.Cmp(nMinus1) == 0 {
		return false
	}
	for i := 0; i < r-1; i++ {
		x.Mul(x, x)
		x.Mod(x, n)
		if x.Cmp(nMinus1) == 0 {
			return false
		}
	}
	return true
}

// NextPrime increments m (made odd first) by 2 until IsPrime succeeds.
func NextPrime(ctx context.Context, m *big.Int) (*big.Int, error) {
	n := new(big.Int).Set(m)
	if n.Bit(0) == 0 {
		n.Add(n, big1)
	}
	for {
		ok, err := IsPrime(ctx, n, numRounds)
		if err != nil {
			return nil, err
		}
		if ok {
			return n, nil
		}
		n.Add(n, big2)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Prime generates a random prime with exactly length bits, by drawing
// uniform candidates and advancing each to the next prime until one
// lands on the requested bit length.
func Prime(ctx context.Context, length int) (*big.Int, error) {
	for {
		cand, err := UniformBits(ctx, length)
		if err != nil {
			return nil, err
		}
		p, err := NextPrime(ctx, cand)
		if err != nil {
			return nil, err
		}
		if p.BitLen() == length {
			return p, nil
		}
	}
}

// StrongPrime generates a prime p of exactly length bits such that p-1
// has p' as a large prime factor (p-1 = a*p'*j for some integers a, j,
// with p' itself prime and length/2 bits). It follows the original
// generate_strong_prime: draw a half-size prime p', an offset a, set the
// candidate p = p'*a + 1, then repeatedly add p'*a (p = p'*a*j + 1 for
// increasing j) until landing on a prime with exactly length bits;
// restart from scratch if the bit length overshoots before that happens.
func StrongPrime(ctx context.Context, length int) (*big.Int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		half := length / 2
		pPrime, err := Prime(ctx, half)
		if err != nil {
			return nil, err
		}
		a, err := UniformBits(ctx, length-half+1)
		if err != nil {
			return nil, err
		}

		step := new(big.Int).Mul(pPrime, a)
		p := new(big.Int).Add(step, big1)

		found, err := strongPrimeSearch(ctx, p, step, length)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
		// bit length drifted past length without landing a prime at
		// exactly length bits; restart from a fresh p'.
	}
}

func strongPrimeSearch(ctx context.Context, p, step *big.Int, length int) (*big.Int, error) {
	for p.BitLen() <= length+1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := IsPrime(ctx, p, numRounds)
		if err != nil {
			return nil, err
		}
		if ok {
			if p.BitLen() == length {
				return new(big.Int).Set(p), nil
			}
			return nil, nil
		}
		p.Add(p, step)
	}
	return nil, nil
}
