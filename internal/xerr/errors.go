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

// Package xerr collects the sentinel errors shared by the cryptographic
// core, so callers can use errors.Is instead of matching on strings.
package xerr

import "errors"

var (
	// ErrOutOfDomain is returned when a plaintext has no representation
	// as a scalar field element of the pairing group.
	ErrOutOfDomain = errors.New("plaintext is out of the scalar field's domain")
	// ErrNoInverse is returned when a Paillier ciphertext has no
	// multiplicative inverse modulo n^2.
	ErrNoInverse = errors.New("ciphertext has no inverse modulo n^2")
	// ErrOracleFailed is returned when the comparison oracle aborts or
	// times out mid-comparison.
	ErrOracleFailed = errors.New("comparison oracle failed")
	// ErrRandomSource is returned when the randomness source cannot be
	// read from; generation cannot proceed without it.
	ErrRandomSource = errors.New("randomness source unavailable")
	// ErrNotFound is returned when a record or order code that the tree
	// or the tag index refers to cannot be found. Stores themselves
	// report a missing id through Get's ok result.
	ErrNotFound = errors.New("record not found")
)
