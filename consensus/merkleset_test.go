package consensus

import (
	"bytes"
	"testing"
)

func TestGetBit(t *testing.T) {
	var h Hash
	h[0] = 0b10100000
	cases := []struct {
		bit  uint8
		want bool
	}{
		{0, true}, {1, false}, {2, true}, {3, false},
		{4, false}, {5, false}, {6, false}, {7, false},
	}
	for _, c := range cases {
		if got := getBit(h, c.bit); got != c.want {
			t.Fatalf("getBit(bit=%d): got %v want %v", c.bit, got, c.want)
		}
	}
}

func TestMerkleSetEmpty(t *testing.T) {
	m := FromLeafs(nil)
	root := m.GetRoot()
	if root != (Hash{}) {
		t.Fatalf("empty set root: got %x want all-zero", root)
	}
}

func TestMerkleSetSingleLeaf(t *testing.T) {
	leaf := Hash{0x01, 0x02, 0x03}
	m := FromLeafs([]Hash{leaf})
	root := m.GetRoot()
	if root != hashLeaf(leaf) {
		t.Fatalf("single-leaf root: got %x want %x", root, hashLeaf(leaf))
	}
	included, proof, err := m.GenerateProof(leaf)
	if err != nil {
		t.Fatalf("generate proof: %v", err)
	}
	if !included {
		t.Fatalf("expected leaf to be included")
	}
	ok, err := ValidateMerkleProof(proof, leaf, root)
	if err != nil {
		t.Fatalf("validate proof: %v", err)
	}
	if !ok {
		t.Fatalf("expected inclusion proof to validate")
	}
}

func TestMerkleSetDuplicateLeafsCollapse(t *testing.T) {
	leaf := Hash{0xaa, 0xbb}
	single := FromLeafs([]Hash{leaf})
	dup := FromLeafs([]Hash{leaf, leaf})
	if single.GetRoot() != dup.GetRoot() {
		t.Fatalf("duplicate leaves should collapse to the same root: %x vs %x", single.GetRoot(), dup.GetRoot())
	}
}

func TestMerkleSetInclusionAndExclusionRoundTrip(t *testing.T) {
	leafs := []Hash{
		{0xc0},
		{0xc8},
		{0x50},
		{0x01, 0x02, 0x03, 0x04},
	}
	m := FromLeafs(leafs)
	root := m.GetRoot()

	for _, leaf := range leafs {
		included, proof, err := m.GenerateProof(leaf)
		if err != nil {
			t.Fatalf("generate proof for %x: %v", leaf, err)
		}
		if !included {
			t.Fatalf("expected %x to be included", leaf)
		}
		ok, err := ValidateMerkleProof(proof, leaf, root)
		if err != nil {
			t.Fatalf("validate inclusion proof for %x: %v", leaf, err)
		}
		if !ok {
			t.Fatalf("inclusion proof for %x did not validate", leaf)
		}
	}

	absent := Hash{0x70}
	included, proof, err := m.GenerateProof(absent)
	if err != nil {
		t.Fatalf("generate exclusion proof: %v", err)
	}
	if included {
		t.Fatalf("did not expect %x to be included", absent)
	}
	ok, err := ValidateMerkleProof(proof, absent, root)
	if err != nil {
		t.Fatalf("validate exclusion proof: %v", err)
	}
	if ok {
		t.Fatalf("expected exclusion proof to report non-inclusion")
	}
}

func TestMerkleSetProofRejectsWrongRoot(t *testing.T) {
	leafs := []Hash{{0x01}, {0x02}, {0x03}}
	m := FromLeafs(leafs)
	_, proof, err := m.GenerateProof(leafs[0])
	if err != nil {
		t.Fatalf("generate proof: %v", err)
	}
	wrongRoot := Hash{0xff}
	if _, err := ValidateMerkleProof(proof, leafs[0], wrongRoot); err == nil {
		t.Fatalf("expected root mismatch error")
	}
}

func TestMerkleSetFromProofRejectsTrailingBytes(t *testing.T) {
	leafs := []Hash{{0x01}, {0x02}}
	m := FromLeafs(leafs)
	_, proof, err := m.GenerateProof(leafs[0])
	if err != nil {
		t.Fatalf("generate proof: %v", err)
	}
	padded := append(bytes.Clone(proof), 0xff)
	if _, err := FromProof(padded); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestMerkleSetFromProofRejectsDeepAllMiddleProof(t *testing.T) {
	proof := bytes.Repeat([]byte{proofMiddle}, 40000)
	if _, err := FromProof(proof); err == nil {
		t.Fatalf("expected an error on a pathologically deep proof")
	}
}
