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

package pairingtag_test

import (
	"math/big"
	"testing"

	"github.com/fentec-project/bn256"
	"github.com/stretchr/testify/assert"

	"github.com/fentec-ehope/hope/pairingtag"
)

func TestScalar_RejectsOutOfDomain(t *testing.T) {
	_, err := pairingtag.Scalar(big.NewInt(-1))
	assert.Error(t, err, "negative plaintexts are out of the scalar field's domain")

	tooLarge := new(big.Int).Add(bn256.Order, big.NewInt(1))
	_, err = pairingtag.Scalar(tooLarge)
	assert.Error(t, err, "plaintexts at or above the group order are out of domain")

	fr, err := pairingtag.Scalar(big.NewInt(42))
	if err != nil {
		t.Fatalf("Error projecting a valid plaintext: %v", err)
	}
	assert.Equal(t, 0, fr.Cmp(big.NewInt(42)), "an in-range plaintext projects to itself")
}

func TestTag_IsDeterministic(t *testing.T) {
	sp, err := pairingtag.NewSystemParams("sys", "test-scheme")
	if err != nil {
		t.Fatalf("Error generating system parameters: %v", err)
	}

	fr, err := pairingtag.Scalar(big.NewInt(7))
	if err != nil {
		t.Fatalf("Error projecting plaintext: %v", err)
	}

	g1 := pairingtag.Tag(sp.P, fr)
	g2 := pairingtag.Tag(sp.P, fr)
	assert.Equal(t, pairingtag.CanonicalKey(g1), pairingtag.CanonicalKey(g2), "equal plaintexts must produce equal tags")
}

func TestAddTags_MatchesSumOfPlaintexts(t *testing.T) {
	sp, err := pairingtag.NewSystemParams("sys", "test-scheme")
	if err != nil {
		t.Fatalf("Error generating system parameters: %v", err)
	}

	fr1, _ := pairingtag.Scalar(big.NewInt(3))
	fr2, _ := pairingtag.Scalar(big.NewInt(4))
	frSum, _ := pairingtag.Scalar(big.NewInt(7))

	g1 := pairingtag.Tag(sp.P, fr1)
	g2 := pairingtag.Tag(sp.P, fr2)
	gSum := pairingtag.Tag(sp.P, frSum)

	combined := pairingtag.AddTags(g1, g2)
	assert.Equal(t, pairingtag.CanonicalKey(gSum), pairingtag.CanonicalKey(combined), "tag(a)+tag(b) must equal tag(a+b)")
}

func TestSubTags_IsAddTagsInverse(t *testing.T) {
	sp, err := pairingtag.NewSystemParams("sys", "test-scheme")
	if err != nil {
		t.Fatalf("Error generating system parameters: %v", err)
	}

	fr1, _ := pairingtag.Scalar(big.NewInt(10))
	fr2, _ := pairingtag.Scalar(big.NewInt(4))

	g1 := pairingtag.Tag(sp.P, fr1)
	g2 := pairingtag.Tag(sp.P, fr2)

	sum := pairingtag.AddTags(g1, g2)
	back := pairingtag.SubTags(sum, g2)
	assert.Equal(t, pairingtag.CanonicalKey(g1), pairingtag.CanonicalKey(back), "SubTags must undo AddTags")
}

func TestAnchor_MatchesPairing(t *testing.T) {
	sp, err := pairingtag.NewSystemParams("sys", "test-scheme")
	if err != nil {
		t.Fatalf("Error generating system parameters: %v", err)
	}

	fr, _ := pairingtag.Scalar(big.NewInt(123))
	g := pairingtag.Tag(sp.P, fr)
	h := pairingtag.Anchor(g, sp.Q)

	want := bn256.Pair(g, sp.Q)
	assert.Equal(t, want.String(), h.String(), "Anchor must equal the direct pairing of the tag with Q")
}
