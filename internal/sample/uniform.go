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

// Package sample provides crypto/rand-backed rejection samplers used by
// the Paillier cryptosystem.
package sample

import (
	"context"
	"crypto/rand"
	"math/big"
)

// UniformRange samples random values from the interval [min, max).
type UniformRange struct {
	min *big.Int
	max *big.Int
}

// NewUniformRange returns an instance of the UniformRange sampler.
// It accepts lower and upper bounds on the sampled values.
func NewUniformRange(min, max *big.Int) *UniformRange {
	return &UniformRange{
		min: min,
		max: max,
	}
}

// Sample samples random values from the interval [min, max).
func (u *UniformRange) Sample() (*big.Int, error) {
	maxMinusMin := new(big.Int).Sub(u.max, u.min)
	res, err := rand.Int(rand.Reader, maxMinusMin)
	if err != nil {
		return nil, err
	}

	res.Add(res, u.min)

	return res, nil
}

// Uniform samples random values from the interval [0, max).
type Uniform struct {
	UniformRange
}

// NewUniform returns an instance of the Uniform sampler.
// It accepts an upper bound on the sampled values.
func NewUniform(max *big.Int) *UniformRange {
	return NewUniformRange(big.NewInt(0), max)
}

// CoprimeUniform samples values from [0, max) that are coprime to max,
// retrying until the gcd condition holds. Used for Paillier's blinding
// factor r, which must satisfy gcd(r, n) = 1.
type CoprimeUniform struct {
	u   *UniformRange
	mod *big.Int
}

// NewCoprimeUniform returns a sampler drawing values from [0, mod) that
// are coprime to mod.
func NewCoprimeUniform(mod *big.Int) *CoprimeUniform {
	return &CoprimeUniform{u: NewUniform(mod), mod: mod}
}

// Sample draws a value coprime to mod, rejecting and resampling until
// gcd(value, mod) = 1.
func (c *CoprimeUniform) Sample(ctx context.Context) (*big.Int, error) {
	gcd := new(big.Int)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := c.u.Sample()
		if err != nil {
			return nil, err
		}
		if r.Sign() == 0 {
			continue
		}
		gcd.GCD(nil, nil, r, c.mod)
		if gcd.Cmp(big.NewInt(1)) == 0 {
			return r, nil
		}
	}
}
