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

// Package bptree implements the order-preserving multiway search tree
// backing the ehOPE index. Key ordering is never decided locally: every
// comparison is delegated to an injected Comparator, so the tree itself
// never observes a plaintext. Structural changes are serialized by a
// single mutex, matching the scheme's single-owner concurrency model.
package bptree

import (
	"context"
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"github.com/fentec-ehope/hope/internal/xerr"
	"github.com/fentec-ehope/hope/recordstore"
)

// Leaf is the (id, ciphertext, order code) triple stored at every tree
// position. Code is meaningless until the owning Tree's UpdateCodes has
// run at least once after the leaf was inserted.
type Leaf struct {
	ID   string
	C    *big.Int
	Code uint64
}

// Comparator resolves the ordering between two already-inserted leaves
// by plaintext. It is the tree's only suspension point: callers may
// route it to a remote decryption-capable oracle, and the tree commits
// no partial structural change across the call.
type Comparator interface {
	Greater(ctx context.Context, a, b Leaf) (bool, error)
}

// node is either a leaf-node (holding only keys) or an internal node
// (holding keys as routing separators plus one more child than it has
// keys). Internal separators are value copies of the leaf they were
// promoted from; their Code field is not kept current, only the copy
// reachable from an actual leaf-node position is.
type node struct {
	degree   int
	isLeaf   bool
	keys     []Leaf
	children []*node
}

func (n *node) full() bool {
	if n.isLeaf {
		return len(n.keys) > n.degree
	}
	return len(n.children) > n.degree
}

// leafPos locates a leaf's live Code cell: the node holding it and its
// index within that node's keys slice.
type leafPos struct {
	node *node
	pos  int
}

// Tree is a single exclusively-owned B+-tree instance. All structural
// operations take Tree's mutex, so a concurrent Code lookup never
// observes a half-finished split.
type Tree struct {
	degree int
	cmp    Comparator
	root   *node
	index  map[string]leafPos
	mu     sync.Mutex
}

// NewTree returns an empty tree of the given minimum degree, driven by
// cmp for all key comparisons.
func NewTree(degree int, cmp Comparator) *Tree {
	return &Tree{
		degree: degree,
		cmp:    cmp,
		root:   &node{degree: degree, isLeaf: true},
		index:  make(map[string]leafPos),
	}
}

// Insert places leaf into the tree via recursive, oracle-driven descent.
// Full nodes split on the way back up; a root split grows the tree by
// one level.
func (t *Tree) Insert(ctx context.Context, leaf Leaf) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	promoted, right, err := t.insertInto(ctx, t.root, leaf)
	if err != nil {
		return err
	}
	if right != nil {
		t.root = &node{
			degree:   t.degree,
			isLeaf:   false,
			keys:     []Leaf{*promoted},
			children: []*node{t.root, right},
		}
	}
	return nil
}

// Code returns the current order code of the leaf identified by id.
func (t *Tree) Code(id string) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.index[id]
	if !ok {
		return 0, false
	}
	return pos.node.keys[pos.pos].Code, true
}

// UpdateCodes walks the tree top-down, recomputing every leaf's order
// code as (parentPrefix + childIndex) << degree, and persists each
// updated code through store. It must run after every structural
// change, before any newly inserted leaf's code is read.
func (t *Tree) UpdateCodes(ctx context.Context, store recordstore.Store) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.updateCodes(ctx, t.root, 0, store)
}

func (t *Tree) insertInto(ctx context.Context, n *node, leaf Leaf) (*Leaf, *node, error) {
	idx, err := t.locate(ctx, n.keys, leaf)
	if err != nil {
		return nil, nil, err
	}

	if n.isLeaf {
		n.keys = insertLeafAt(n.keys, idx, leaf)
		t.reindex(n)
		if !n.full() {
			return nil, nil, nil
		}
		return t.splitLeaf(n)
	}

	promoted, right, err := t.insertInto(ctx, n.children[idx], leaf)
	if err != nil {
		return nil, nil, err
	}
	if right == nil {
		return nil, nil, nil
	}

	n.keys = insertLeafAt(n.keys, idx, *promoted)
	n.children = insertChildAt(n.children, idx+1, right)
	if !n.full() {
		return nil, nil, nil
	}
	return t.splitInternal(n)
}

// locate returns the count of keys the oracle reports leaf as greater
// than (the keys strictly less than leaf, scanning the sorted keys until
// the first one leaf is not greater than) — the standard multiway search
// index, used both as a
// leaf's insertion position and as the child to descend into from an
// internal node.
func (t *Tree) locate(ctx context.Context, keys []Leaf, leaf Leaf) (int, error) {
	i := 0
	for i < len(keys) {
		greater, err := t.cmp.Greater(ctx, leaf, keys[i])
		if err != nil {
			return 0, errors.Wrap(xerr.ErrOracleFailed, err.Error())
		}
		if !greater {
			break
		}
		i++
	}
	return i, nil
}

// splitLeaf splits an overfull leaf node in place: n keeps the lower
// half, a fresh right sibling takes the upper half, and the upper
// half's first entry is duplicated upward as the separating key (the
// standard B+-tree leaf split — unlike an internal split, no key
// leaves the leaf level).
func (t *Tree) splitLeaf(n *node) (*Leaf, *node, error) {
	mid := len(n.keys) / 2
	right := &node{degree: n.degree, isLeaf: true}
	right.keys = append(right.keys, n.keys[mid:]...)
	n.keys = n.keys[:mid:mid]

	t.reindex(n)
	t.reindex(right)

	promoted := right.keys[0]
	return &promoted, right, nil
}

// splitInternal splits an overfull internal node: the median key moves
// up to the parent and is removed from both halves, its children
// partitioned accordingly.
func (t *Tree) splitInternal(n *node) (*Leaf, *node, error) {
	mid := len(n.keys) / 2
	promoted := n.keys[mid]

	right := &node{degree: n.degree, isLeaf: false}
	right.keys = append(right.keys, n.keys[mid+1:]...)
	right.children = append(right.children, n.children[mid+1:]...)

	n.keys = n.keys[:mid:mid]
	n.children = n.children[:mid+1 : mid+1]

	return &promoted, right, nil
}

func (t *Tree) reindex(n *node) {
	for i := range n.keys {
		t.index[n.keys[i].ID] = leafPos{node: n, pos: i}
	}
}

func (t *Tree) updateCodes(ctx context.Context, n *node, prefix uint64, store recordstore.Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if n.isLeaf {
		for i := range n.keys {
			code := (prefix + uint64(i)) << uint(n.degree)
			n.keys[i].Code = code

			rec, ok, err := store.Get(ctx, n.keys[i].ID)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Wrapf(xerr.ErrNotFound, "update codes: leaf %q", n.keys[i].ID)
			}
			rec.Code = code
			if err := store.Put(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	}

	for i, child := range n.children {
		childPrefix := (prefix + uint64(i)) << uint(n.degree)
		if err := t.updateCodes(ctx, child, childPrefix, store); err != nil {
			return err
		}
	}
	return nil
}

func insertLeafAt(keys []Leaf, idx int, leaf Leaf) []Leaf {
	keys = append(keys, Leaf{})
	copy(keys[idx+1:], keys[idx:])
	keys[idx] = leaf
	return keys
}

func insertChildAt(children []*node, idx int, child *node) []*node {
	children = append(children, nil)
	copy(children[idx+1:], children[idx:])
	children[idx] = child
	return children
}
