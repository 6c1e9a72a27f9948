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

// Package recordstore defines the persistence contract ehOPE ciphertext
// records are read from and written to, plus an in-memory implementation
// for tests and standalone use. Wire-level and durable backends (Mongo,
// HTTP, ...) are external collaborators; this package only fixes the
// shape of Put/Get.
package recordstore

import (
	"context"
	"math/big"
	"sync"

	"github.com/fentec-project/bn256"
)

// Record is the persisted ehOPE ciphertext: the Paillier component C,
// the curve tag G, its pairing anchor H, and the order code Code. Code
// is the only field a store should expect to see change after a record
// is first put.
type Record struct {
	ID   string
	C    *big.Int
	G    *bn256.G1
	H    *bn256.GT
	Code uint64
}

// Store is the external record store contract: put a record, get it
// back by id. Nothing in the cryptographic core assumes anything about
// durability or transport on the other side of this interface.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, bool, error)
}

// MemStore is a mutex-guarded in-memory Store, sufficient for tests and
// single-process deployments.
type MemStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record)}
}

// Put inserts or overwrites the record keyed by its ID.
func (s *MemStore) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

// Get returns the record for id, or ok=false if none exists.
func (s *MemStore) Get(ctx context.Context, id string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok, nil
}
