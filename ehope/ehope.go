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

// Package ehope composes the Paillier, pairing-tag and B+-tree layers
// into the order-preserving homomorphic encryption scheme: encrypt,
// homomorphic add/sub, and decrypt, all deduplicated through a tag
// index and order-coded through a single owned tree.
package ehope

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"github.com/fentec-project/bn256"

	"github.com/fentec-ehope/hope/bptree"
	"github.com/fentec-ehope/hope/internal/xerr"
	"github.com/fentec-ehope/hope/paillier"
	"github.com/fentec-ehope/hope/pairingtag"
	"github.com/fentec-ehope/hope/recordstore"
)

// SystemParams is the scheme's public parameter set: its name and the
// G1/G2 generators the pairing tag layer is built on.
type SystemParams = pairingtag.SystemParams

// KeyPair holds the Paillier key pair backing a scheme. DK is nil after
// Strip, so the public half can be handed to the server while the
// decryption oracle keeps the private half.
type KeyPair struct {
	EK *paillier.EncryptionKey
	DK *paillier.DecryptionKey
}

// Strip returns a copy of kp with DK removed, safe to publish to a
// party that must not decrypt.
func (kp KeyPair) Strip() KeyPair {
	return KeyPair{EK: kp.EK}
}

// CiphertextRecord is the scheme's externally visible unit: a Paillier
// ciphertext C, its deterministic curve tag G, the tag's pairing anchor
// H, and its current order code.
type CiphertextRecord struct {
	ID   string
	C    *big.Int
	G    *bn256.G1
	H    *bn256.GT
	Code uint64
}

func (r CiphertextRecord) toStoreRecord() recordstore.Record {
	return recordstore.Record{ID: r.ID, C: r.C, G: r.G, H: r.H, Code: r.Code}
}

func fromStoreRecord(rec recordstore.Record) CiphertextRecord {
	return CiphertextRecord{ID: rec.ID, C: rec.C, G: rec.G, H: rec.H, Code: rec.Code}
}

// TagIndex maps a tag's canonical byte encoding to the id of the record
// that first produced it, deduplicating encrypt/add/sub.
type TagIndex map[[64]byte]string

// Scheme is a single exclusively-owned ehOPE instance: its own system
// parameters, key pair, tree, tag index and record store. Encrypt, Add
// and Sub take Scheme's mutex, matching the single-threaded-cooperative
// concurrency model the tree and tag index are specified under;
// Parameters, Keys and Decrypt only read state fixed at construction and
// take no lock.
type Scheme struct {
	sp    SystemParams
	keys  KeyPair
	tree  *bptree.Tree
	index TagIndex
	store recordstore.Store
	mu    sync.Mutex
}

// NewScheme generates fresh system parameters and a Paillier key pair
// of the given modulus bit length, and wires an empty tree (driven by
// cmp) and tag index over store.
func NewScheme(ctx context.Context, name string, bits int, cmp bptree.Comparator, store recordstore.Store) (*Scheme, error) {
	idBuf := make([]byte, 16)
	if _, err := rand.Read(idBuf); err != nil {
		return nil, errors.Wrap(xerr.ErrRandomSource, err.Error())
	}
	id := new(big.Int).SetBytes(idBuf).Text(16)

	sp, err := pairingtag.NewSystemParams(id, name)
	if err != nil {
		return nil, errors.Wrap(err, "ehope: generating system parameters")
	}

	ek, dk, err := paillier.KeyGen(ctx, bits)
	if err != nil {
		return nil, errors.Wrap(err, "ehope: generating paillier keys")
	}

	return &Scheme{
		sp:    sp,
		keys:  KeyPair{EK: ek, DK: dk},
		tree:  bptree.NewTree(4, cmp),
		index: make(TagIndex),
		store: store,
	}, nil
}

// Parameters returns the scheme's public system parameters.
func (s *Scheme) Parameters() SystemParams {
	return s.sp
}

// Keys returns the scheme's key pair, so the caller can hand the
// decryption key to the comparison oracle and publish a Stripped copy
// of the encryption key elsewhere.
func (s *Scheme) Keys() KeyPair {
	return s.keys
}

// Encrypt produces a CiphertextRecord for plaintext m. If an existing
// record already carries the same tag, it is returned unchanged
// (deterministic deduplication); otherwise a fresh Paillier ciphertext
// is minted, inserted into the tree, and registered in the tag index
// only once its order code is settled.
func (s *Scheme) Encrypt(ctx context.Context, m *big.Int) (CiphertextRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fr, err := pairingtag.Scalar(m)
	if err != nil {
		return CiphertextRecord{}, err
	}
	g := pairingtag.Tag(s.sp.P, fr)
	if rec, ok, err := s.lookup(ctx, g); err != nil {
		return CiphertextRecord{}, err
	} else if ok {
		return rec, nil
	}

	c, err := paillier.Encrypt(ctx, s.keys.EK, m)
	if err != nil {
		return CiphertextRecord{}, errors.Wrap(err, "ehope: encrypting plaintext")
	}

	return s.finishRecord(ctx, c, g)
}

// Add returns a record representing the sum of the plaintexts behind
// r1 and r2, without either side being decrypted.
func (s *Scheme) Add(ctx context.Context, r1, r2 CiphertextRecord) (CiphertextRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := pairingtag.AddTags(r1.G, r2.G)
	if rec, ok, err := s.lookup(ctx, g); err != nil {
		return CiphertextRecord{}, err
	} else if ok {
		return rec, nil
	}

	sum := paillier.Add(s.keys.EK, r1.C, r2.C)
	c, err := paillier.Rerandomize(ctx, s.keys.EK, sum)
	if err != nil {
		return CiphertextRecord{}, errors.Wrap(err, "ehope: rerandomizing sum")
	}

	return s.finishRecord(ctx, c, g)
}

// Sub returns a record representing the difference of the plaintexts
// behind r1 and r2, or ok=false if r2's ciphertext has no modular
// inverse (propagated from paillier.Sub).
func (s *Scheme) Sub(ctx context.Context, r1, r2 CiphertextRecord) (CiphertextRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := pairingtag.SubTags(r1.G, r2.G)
	if rec, ok, err := s.lookup(ctx, g); err != nil {
		return CiphertextRecord{}, false, err
	} else if ok {
		return rec, true, nil
	}

	diff, ok := paillier.Sub(s.keys.EK, r1.C, r2.C)
	if !ok {
		return CiphertextRecord{}, false, nil
	}

	rec, err := s.finishRecord(ctx, diff, g)
	if err != nil {
		return CiphertextRecord{}, false, err
	}
	return rec, true, nil
}

// Decrypt recovers the plaintext behind rec using dk. It is only
// meaningful when dk is the scheme's real decryption key, or a copy of
// it held by the external comparison oracle.
func (s *Scheme) Decrypt(ctx context.Context, rec CiphertextRecord, dk *paillier.DecryptionKey) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return paillier.Decrypt(dk, s.keys.EK, rec.C), nil
}

// lookup consults the tag index for g, returning the existing record on
// a hit. Must be called with s.mu held.
func (s *Scheme) lookup(ctx context.Context, g *bn256.G1) (CiphertextRecord, bool, error) {
	key := pairingtag.CanonicalKey(g)
	id, ok := s.index[key]
	if !ok {
		return CiphertextRecord{}, false, nil
	}
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return CiphertextRecord{}, false, err
	}
	if !ok {
		return CiphertextRecord{}, false, errors.Wrapf(xerr.ErrNotFound, "ehope: tag index points at missing record %q", id)
	}
	return fromStoreRecord(rec), true, nil
}

// finishRecord allocates a fresh id for ciphertext c under tag g,
// inserts its leaf into the tree, recomputes order codes, and registers
// the resulting record in both the store and the tag index. The tag
// index is populated only after UpdateCodes completes, so a cancelled
// operation never publishes a record with a stale order code.
func (s *Scheme) finishRecord(ctx context.Context, c *big.Int, g *bn256.G1) (CiphertextRecord, error) {
	id, err := s.freshID()
	if err != nil {
		return CiphertextRecord{}, err
	}

	h := pairingtag.Anchor(g, s.sp.Q)
	rec := CiphertextRecord{ID: id, C: c, G: g, H: h, Code: 0}

	if err := s.store.Put(ctx, rec.toStoreRecord()); err != nil {
		return CiphertextRecord{}, errors.Wrap(err, "ehope: registering placeholder record")
	}
	if err := s.tree.Insert(ctx, bptree.Leaf{ID: id, C: c}); err != nil {
		return CiphertextRecord{}, errors.Wrap(err, "ehope: inserting leaf")
	}
	if err := s.tree.UpdateCodes(ctx, s.store); err != nil {
		return CiphertextRecord{}, errors.Wrap(err, "ehope: updating order codes")
	}

	code, ok := s.tree.Code(id)
	if !ok {
		return CiphertextRecord{}, errors.Wrapf(xerr.ErrNotFound, "ehope: no order code for %q", id)
	}
	rec.Code = code

	s.index[pairingtag.CanonicalKey(g)] = id
	return rec, nil
}

// freshID draws a random 128-bit hex identifier. Record ids are opaque
// handles, not meant to leak ordering information the tree's code
// already carries.
func (s *Scheme) freshID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(xerr.ErrRandomSource, err.Error())
	}
	return new(big.Int).SetBytes(buf).Text(16), nil
}
