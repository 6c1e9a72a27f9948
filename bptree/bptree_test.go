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

package bptree_test

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fentec-ehope/hope/bptree"
	"github.com/fentec-ehope/hope/recordstore"
)

// plaintextOracle compares leaves by the plaintext integer registered
// for their ID, standing in for a real decryption-capable comparator in
// tests.
type plaintextOracle struct {
	plain map[string]int64
}

func newPlaintextOracle() *plaintextOracle {
	return &plaintextOracle{plain: make(map[string]int64)}
}

func (o *plaintextOracle) register(id string, v int64) {
	o.plain[id] = v
}

func (o *plaintextOracle) Greater(ctx context.Context, a, b bptree.Leaf) (bool, error) {
	return o.plain[a.ID] > o.plain[b.ID], nil
}

func seedStore(t *testing.T, store *recordstore.MemStore, id string) {
	err := store.Put(context.Background(), recordstore.Record{ID: id, C: big.NewInt(0)})
	if err != nil {
		t.Fatalf("Error seeding record store: %v", err)
	}
}

func TestInsertAndCode_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	oracle := newPlaintextOracle()
	tree := bptree.NewTree(4, oracle)
	store := recordstore.NewMemStore()

	values := []int64{50, 10, 40, 20, 60, 30, 70, 15, 25, 5}
	for i, v := range values {
		id := fmt.Sprintf("v%d", i)
		oracle.register(id, v)
		seedStore(t, store, id)
		if err := tree.Insert(ctx, bptree.Leaf{ID: id, C: big.NewInt(v)}); err != nil {
			t.Fatalf("Error inserting leaf: %v", err)
		}
	}

	if err := tree.UpdateCodes(ctx, store); err != nil {
		t.Fatalf("Error updating codes: %v", err)
	}

	type idVal struct {
		id   string
		v    int64
		code uint64
	}
	var entries []idVal
	for i, v := range values {
		id := fmt.Sprintf("v%d", i)
		code, ok := tree.Code(id)
		if !ok {
			t.Fatalf("Code missing for %q", id)
		}
		entries = append(entries, idVal{id, v, code})
	}

	for i := range entries {
		for j := range entries {
			if entries[i].v < entries[j].v {
				assert.True(t, entries[i].code < entries[j].code,
					"leaf %q (v=%d, code=%d) must sort before %q (v=%d, code=%d)",
					entries[i].id, entries[i].v, entries[i].code,
					entries[j].id, entries[j].v, entries[j].code)
			}
		}
	}
}

func TestUpdateCodes_PersistsToStore(t *testing.T) {
	ctx := context.Background()
	oracle := newPlaintextOracle()
	tree := bptree.NewTree(4, oracle)
	store := recordstore.NewMemStore()

	for i, v := range []int64{3, 1, 2} {
		id := fmt.Sprintf("v%d", i)
		oracle.register(id, v)
		seedStore(t, store, id)
		if err := tree.Insert(ctx, bptree.Leaf{ID: id, C: big.NewInt(v)}); err != nil {
			t.Fatalf("Error inserting leaf: %v", err)
		}
	}
	if err := tree.UpdateCodes(ctx, store); err != nil {
		t.Fatalf("Error updating codes: %v", err)
	}

	for i := range []int64{3, 1, 2} {
		id := fmt.Sprintf("v%d", i)
		treeCode, ok := tree.Code(id)
		if !ok {
			t.Fatalf("Code missing for %q", id)
		}
		rec, ok, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Error reading record: %v", err)
		}
		if !ok {
			t.Fatalf("record %q missing from store", id)
		}
		assert.Equal(t, treeCode, rec.Code, "store must reflect the tree's current code")
	}
}

func TestInsert_SurvivesRepeatedSplits(t *testing.T) {
	ctx := context.Background()
	oracle := newPlaintextOracle()
	tree := bptree.NewTree(4, oracle)
	store := recordstore.NewMemStore()

	const n = 100
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("v%d", i)
		oracle.register(id, int64(i))
		seedStore(t, store, id)
		if err := tree.Insert(ctx, bptree.Leaf{ID: id, C: big.NewInt(int64(i))}); err != nil {
			t.Fatalf("Error inserting leaf %d: %v", i, err)
		}
	}
	if err := tree.UpdateCodes(ctx, store); err != nil {
		t.Fatalf("Error updating codes: %v", err)
	}

	var lastCode uint64
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("v%d", i)
		code, ok := tree.Code(id)
		if !ok {
			t.Fatalf("Code missing for %q", id)
		}
		if i > 0 {
			assert.True(t, code > lastCode, "codes must increase monotonically with insertion order here")
		}
		lastCode = code
	}
}
