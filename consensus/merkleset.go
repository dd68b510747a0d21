package consensus

import (
	"crypto/sha256"
	"errors"
)

// nodeKind tags a MerkleSet node's type for hashing purposes; midDbl is a
// plain mid node whose two children are both leaves (or collapse to one),
// which changes how its parent's hash is computed but not its own type byte.
type nodeKind uint8

const (
	nodeEmpty nodeKind = iota
	nodeTerm
	nodeMid
	nodeMidDbl
)

func (k nodeKind) typeByte() byte {
	if k == nodeMidDbl {
		return 2
	}
	return byte(k)
}

// arrayKind tags how a MerkleSet.nodes entry is stored.
type arrayKind uint8

const (
	arrLeaf arrayKind = iota
	arrMiddle
	arrEmpty
	arrTruncated
)

type msNode struct {
	kind        arrayKind
	hash        Hash
	left, right uint32
}

// merkleHash computes a non-leaf node's hash: SHA256(0^30 || ltype ||
// rtype || left || right), per SPEC_FULL.md §3's Merkle Set root rule.
func merkleHash(ltype, rtype nodeKind, left, right Hash) Hash {
	h := sha256.New()
	var zeros [30]byte
	h.Write(zeros[:])
	h.Write([]byte{ltype.typeByte(), rtype.typeByte()})
	h.Write(left[:])
	h.Write(right[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func hashLeaf(leaf Hash) Hash {
	h := sha256.New()
	h.Write([]byte{byte(nodeTerm)})
	h.Write(leaf[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// emptyNodeHash is SHA256 of 32 zero bytes, the cached hash of an Empty
// node (distinct from BLANK, the all-zero sentinel used as a hash input).
var emptyNodeHash = sha256.Sum256(make([]byte, 32))

func getBit(val Hash, bit uint8) bool {
	return val[bit/8]&(0x80>>(bit&7)) != 0
}

// MerkleSet is a compressed binary trie over 32-byte leaves, stored as a
// flat node list with the root last — mirrors MerkleSet's nodes_vec
// representation, which avoids recursive pointer types in both languages.
type MerkleSet struct {
	nodes     []msNode
	fromProof bool
}

// GetRoot returns the tree's root hash: BLANK for an empty tree, the
// leaf hash for a single-leaf tree, or the cached middle/truncated hash
// otherwise.
func (m *MerkleSet) GetRoot() Hash {
	last := m.nodes[len(m.nodes)-1]
	switch last.kind {
	case arrLeaf:
		return hashLeaf(last.hash)
	case arrEmpty:
		return Hash{}
	default:
		return last.hash
	}
}

// FromLeafs builds a MerkleSet over the given leaves via an in-place
// recursive radix sort (MSB to LSB), collapsing duplicates at depth 255,
// mirroring MerkleSet::from_leafs / generate_merkle_tree_recurse.
func FromLeafs(leafs []Hash) *MerkleSet {
	m := &MerkleSet{}
	if len(leafs) == 0 {
		m.nodes = append(m.nodes, msNode{kind: arrEmpty})
		return m
	}
	m.buildRecurse(leafs, 0)
	return m
}

func (m *MerkleSet) buildRecurse(rng []Hash, depth uint8) (Hash, nodeKind) {
	if len(rng) == 1 {
		m.nodes = append(m.nodes, msNode{kind: arrLeaf, hash: rng[0]})
		return rng[0], nodeTerm
	}

	left, right := 0, len(rng)-1
	for left <= right {
		leftBit := getBit(rng[left], depth)
		rightBit := getBit(rng[right], depth)
		if leftBit && !rightBit {
			rng[left], rng[right] = rng[right], rng[left]
			left++
			right--
		} else {
			if !leftBit {
				left++
			}
			if rightBit {
				right--
			}
		}
	}

	leftEmpty := left == 0
	rightEmpty := right == len(rng)-1

	switch {
	case leftEmpty || rightEmpty:
		if depth == 255 {
			m.nodes = append(m.nodes, msNode{kind: arrLeaf, hash: rng[0]})
			return rng[0], nodeTerm
		}
		childHash, childType := m.buildRecurse(rng, depth+1)
		if childType != nodeMid {
			return childHash, childType
		}
		m.nodes = append(m.nodes, msNode{kind: arrEmpty, hash: emptyNodeHash})
		n := uint32(len(m.nodes))
		var nodeHash Hash
		var mid msNode
		if leftEmpty {
			nodeHash = merkleHash(nodeEmpty, childType, Hash{}, childHash)
			mid = msNode{kind: arrMiddle, hash: nodeHash, left: n - 1, right: n - 2}
		} else {
			nodeHash = merkleHash(childType, nodeEmpty, childHash, Hash{})
			mid = msNode{kind: arrMiddle, hash: nodeHash, left: n - 2, right: n - 1}
		}
		m.nodes = append(m.nodes, mid)
		return nodeHash, nodeMid

	case depth == 255:
		m.nodes = append(m.nodes, msNode{kind: arrLeaf, hash: rng[0]})
		m.nodes = append(m.nodes, msNode{kind: arrLeaf, hash: rng[left]})
		n := uint32(len(m.nodes))
		nodeHash := merkleHash(nodeTerm, nodeTerm, rng[0], rng[left])
		m.nodes = append(m.nodes, msNode{kind: arrMiddle, hash: nodeHash, left: n - 2, right: n - 1})
		return nodeHash, nodeMidDbl

	default:
		leftHash, leftType := m.buildRecurse(rng[:left], depth+1)
		leftIdx := uint32(len(m.nodes)) - 1
		rightHash, rightType := m.buildRecurse(rng[left:], depth+1)
		nodeHash := merkleHash(leftType, rightType, leftHash, rightHash)
		nodeType := nodeMid
		if leftType == nodeTerm && rightType == nodeTerm {
			nodeType = nodeMidDbl
		}
		m.nodes = append(m.nodes, msNode{kind: arrMiddle, hash: nodeHash, left: leftIdx, right: uint32(len(m.nodes)) - 1})
		return nodeHash, nodeType
	}
}

// Proof tag bytes, per SPEC_FULL.md §4.8.
const (
	proofEmpty    byte = 0
	proofTerminal byte = 1
	proofMiddle   byte = 2
	proofTruncated byte = 3
)

// GenerateProof produces a proof that leaf exists (true) or does not
// exist (false) in the tree, mirroring MerkleSet::generate_proof.
// Proofs generated from a tree itself built from a proof are empty,
// since such a tree cannot round-trip further.
func (m *MerkleSet) GenerateProof(leaf Hash) (bool, []byte, error) {
	var proof []byte
	included, err := m.generateProofRecurse(uint32(len(m.nodes)-1), leaf, &proof, 0)
	if err != nil {
		return false, nil, err
	}
	if m.fromProof {
		return included, nil, nil
	}
	return included, proof, nil
}

func (m *MerkleSet) generateProofRecurse(idx uint32, leaf Hash, proof *[]byte, depth uint8) (bool, error) {
	n := m.nodes[idx]
	switch n.kind {
	case arrEmpty:
		*proof = append(*proof, proofEmpty)
		return false, nil
	case arrLeaf:
		*proof = append(*proof, proofTerminal)
		*proof = append(*proof, n.hash[:]...)
		return n.hash == leaf, nil
	case arrTruncated:
		return false, verr(ErrSetError, arenaNil, "cannot generate a proof through a truncated node")
	default: // arrMiddle
		l, r := m.nodes[n.left], m.nodes[n.right]
		if l.kind == arrLeaf && r.kind == arrLeaf {
			padMiddlesForProofGen(proof, l.hash, r.hash, depth)
			return l.hash == leaf || r.hash == leaf, nil
		}
		*proof = append(*proof, proofMiddle)
		if getBit(leaf, depth) {
			m.otherIncluded(n.left, proof)
			return m.generateProofRecurse(n.right, leaf, proof, depth+1)
		}
		included, err := m.generateProofRecurse(n.left, leaf, proof, depth+1)
		if err != nil {
			return false, err
		}
		m.otherIncluded(n.right, proof)
		return included, nil
	}
}

// otherIncluded emits the non-path sibling subtree, truncated to its
// hash unless it's a leaf or empty node — the proof still needs it to
// recompute the root, but never needs to recurse into it.
func (m *MerkleSet) otherIncluded(idx uint32, proof *[]byte) {
	n := m.nodes[idx]
	switch n.kind {
	case arrEmpty:
		*proof = append(*proof, proofEmpty)
	case arrLeaf:
		*proof = append(*proof, proofTerminal)
		*proof = append(*proof, n.hash[:]...)
	default:
		*proof = append(*proof, proofTruncated)
		*proof = append(*proof, n.hash[:]...)
	}
}

// padMiddlesForProofGen re-expands a collapsed double-leaf node back
// into the full chain of middle levels a proof must carry, so a
// verifier can recompute every intermediate hash without knowing the
// MidDbl collapse rule.
func padMiddlesForProofGen(proof *[]byte, left, right Hash, depth uint8) {
	leftBit := getBit(left, depth)
	rightBit := getBit(right, depth)
	*proof = append(*proof, proofMiddle)
	switch {
	case leftBit != rightBit:
		*proof = append(*proof, proofTerminal)
		*proof = append(*proof, left[:]...)
		*proof = append(*proof, proofTerminal)
		*proof = append(*proof, right[:]...)
	case leftBit:
		*proof = append(*proof, proofEmpty)
		padMiddlesForProofGen(proof, left, right, depth+1)
	default:
		padMiddlesForProofGen(proof, left, right, depth+1)
		*proof = append(*proof, proofEmpty)
	}
}

// FromProof reparses a proof byte stream into a MerkleSet, auditing
// that every terminal leaf's bit sequence matches the route taken
// through middle nodes. Trees built this way carry a from-proof marker
// and cannot produce further (non-empty) proofs.
func FromProof(proof []byte) (*MerkleSet, error) {
	m := &MerkleSet{fromProof: true}
	if err := m.deserializeProof(proof); err != nil {
		return nil, err
	}
	return m, nil
}

type proofOp uint8

const (
	opNode proofOp = iota
	opMiddle
)

type proofValue struct {
	idx  uint32
	kind nodeKind
}

// deserializeProof is a small explicit-stack parser (rather than
// recursion) so a malicious, arbitrarily deep proof can be rejected by
// a depth counter instead of overflowing the Go call stack.
func (m *MerkleSet) deserializeProof(proof []byte) error {
	pos := 0
	read := func(n int) ([]byte, bool) {
		if pos+n > len(proof) {
			return nil, false
		}
		b := proof[pos : pos+n]
		pos += n
		return b, true
	}

	var values []proofValue
	ops := []proofOp{opNode}
	bitsStack := [][]bool{{}}
	depth := 0

	for len(ops) > 0 {
		op := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if len(bitsStack) == 0 {
			return verr(ErrSetError, arenaNil, "malformed proof")
		}
		bits := bitsStack[len(bitsStack)-1]
		bitsStack = bitsStack[:len(bitsStack)-1]

		switch op {
		case opNode:
			tagBuf, ok := read(1)
			if !ok {
				return verr(ErrSetError, arenaNil, "truncated proof")
			}
			switch tagBuf[0] {
			case proofEmpty:
				values = append(values, proofValue{idx: uint32(len(m.nodes)), kind: nodeEmpty})
				m.nodes = append(m.nodes, msNode{kind: arrEmpty})

			case proofTerminal:
				hbuf, ok := read(32)
				if !ok {
					return verr(ErrSetError, arenaNil, "truncated proof")
				}
				var h Hash
				copy(h[:], hbuf)
				for pos2, want := range bits {
					if getBit(h, uint8(pos2)) != want {
						return verr(ErrSetError, arenaNil, "leaf does not match the route taken through the tree")
					}
				}
				values = append(values, proofValue{idx: uint32(len(m.nodes)), kind: nodeTerm})
				m.nodes = append(m.nodes, msNode{kind: arrLeaf, hash: h})

			case proofTruncated:
				hbuf, ok := read(32)
				if !ok {
					return verr(ErrSetError, arenaNil, "truncated proof")
				}
				var h Hash
				copy(h[:], hbuf)
				values = append(values, proofValue{idx: uint32(len(m.nodes)), kind: nodeMid})
				m.nodes = append(m.nodes, msNode{kind: arrTruncated, hash: h})

			case proofMiddle:
				if depth > 256 {
					return verr(ErrSetError, arenaNil, "proof exceeds maximum recursion depth")
				}
				ops = append(ops, opMiddle, opNode, opNode)
				bitsStack = append(bitsStack, nil)
				right := append(append([]bool{}, bits...), true)
				bitsStack = append(bitsStack, right)
				left := append(append([]bool{}, bits...), false)
				bitsStack = append(bitsStack, left)
				depth++

			default:
				return verr(ErrSetError, arenaNil, "invalid proof tag")
			}

		case opMiddle:
			if len(values) < 2 {
				return verr(ErrSetError, arenaNil, "malformed proof")
			}
			right := values[len(values)-1]
			left := values[len(values)-2]
			values = values[:len(values)-2]

			var newType nodeKind
			switch {
			case left.kind == nodeTerm && right.kind == nodeTerm,
				left.kind == nodeEmpty && right.kind == nodeMidDbl,
				left.kind == nodeMidDbl && right.kind == nodeEmpty:
				newType = nodeMidDbl
			default:
				newType = nodeMid
			}

			var nodeHash Hash
			var pushed proofValue
			switch {
			case left.kind == nodeEmpty && right.kind == nodeMidDbl:
				nodeHash = m.nodes[right.idx].hash
				pushed = right
			case left.kind == nodeMidDbl && right.kind == nodeEmpty:
				nodeHash = m.nodes[left.idx].hash
				pushed = left
			default:
				nodeHash = merkleHash(m.nodes[left.idx].kindOf(), m.nodes[right.idx].kindOf(), m.nodes[left.idx].hash, m.nodes[right.idx].hash)
				pushed = proofValue{idx: uint32(len(m.nodes)), kind: newType}
			}
			values = append(values, pushed)
			m.nodes = append(m.nodes, msNode{kind: arrMiddle, hash: nodeHash, left: left.idx, right: right.idx})
			depth--
		}
	}

	if pos != len(proof) {
		return verr(ErrSetError, arenaNil, "trailing bytes after proof")
	}
	return nil
}

// kindOf reports the nodeKind a stored node maps to for hashing
// purposes — Leaf -> Term, Middle/Truncated -> Mid, Empty -> Empty.
func (n msNode) kindOf() nodeKind {
	switch n.kind {
	case arrLeaf:
		return nodeTerm
	case arrEmpty:
		return nodeEmpty
	default:
		return nodeMid
	}
}

// ValidateMerkleProof reports whether item is included in the tree
// with the given root, per the supplied proof, or an error if neither
// inclusion nor exclusion can be established.
func ValidateMerkleProof(proof []byte, item, root Hash) (bool, error) {
	tree, err := FromProof(proof)
	if err != nil {
		return false, err
	}
	if tree.GetRoot() != root {
		return false, errors.New("merkle proof root mismatch")
	}
	included, _, err := tree.GenerateProof(item)
	return included, err
}
