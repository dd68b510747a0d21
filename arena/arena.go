// Package arena implements a minimal CLVM node arena: a narrow,
// index-based S-expression store. The real CLVM evaluator and its
// serializer live outside this module; this package exists only so the
// consensus core has something concrete to hold NodePtr values against
// and so it can be exercised without a full CLVM implementation.
package arena

import "math/big"

// NodePtr is an opaque handle into an Arena. The zero value is Nil,
// the empty atom every Arena reserves at index 0; error values that
// have no specific offending node also carry it as a sentinel.
type NodePtr int32

// Nil is the canonical empty-atom pointer every Arena reserves at index 0.
const Nil NodePtr = 0

type nodeKind uint8

const (
	kindAtom nodeKind = iota
	kindPair
)

type node struct {
	kind nodeKind
	atom []byte
	left NodePtr
	rght NodePtr
}

// Arena is an append-only store of CLVM atoms and pairs. It is not
// safe for concurrent use; the consensus core is single-threaded per
// spec (see SPEC_FULL.md §5).
type Arena struct {
	nodes []node
}

// New returns an Arena with its nil atom already allocated at index 0.
func New() *Arena {
	a := &Arena{nodes: make([]node, 0, 64)}
	a.nodes = append(a.nodes, node{kind: kindAtom, atom: nil})
	return a
}

// Nil returns the pointer to the empty atom.
func (a *Arena) Nil() NodePtr { return Nil }

// IsPair reports whether ptr refers to a cons pair.
func (a *Arena) IsPair(ptr NodePtr) bool {
	return a.nodes[ptr].kind == kindPair
}

// IsAtom reports whether ptr refers to an atom (including nil).
func (a *Arena) IsAtom(ptr NodePtr) bool {
	return a.nodes[ptr].kind == kindAtom
}

// Atom returns the raw bytes of an atom node. Calling it on a pair panics,
// mirroring the narrow contract the core relies on (callers must check
// IsPair first, exactly as the external CLVM arena would require).
func (a *Arena) Atom(ptr NodePtr) []byte {
	n := &a.nodes[ptr]
	if n.kind != kindAtom {
		panic("arena: Atom called on pair node")
	}
	return n.atom
}

// AtomLen returns the byte length of an atom, or -1 if ptr is a pair.
func (a *Arena) AtomLen(ptr NodePtr) int {
	n := &a.nodes[ptr]
	if n.kind != kindAtom {
		return -1
	}
	return len(n.atom)
}

// First returns the head of a pair.
func (a *Arena) First(ptr NodePtr) (NodePtr, bool) {
	n := &a.nodes[ptr]
	if n.kind != kindPair {
		return 0, false
	}
	return n.left, true
}

// Rest returns the tail of a pair.
func (a *Arena) Rest(ptr NodePtr) (NodePtr, bool) {
	n := &a.nodes[ptr]
	if n.kind != kindPair {
		return 0, false
	}
	return n.rght, true
}

// NewAtom allocates a new atom node copying buf.
func (a *Arena) NewAtom(buf []byte) NodePtr {
	if len(buf) == 0 {
		return Nil
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	a.nodes = append(a.nodes, node{kind: kindAtom, atom: cp})
	return NodePtr(len(a.nodes) - 1)
}

// NewPair allocates a new cons pair.
func (a *Arena) NewPair(first, rest NodePtr) NodePtr {
	a.nodes = append(a.nodes, node{kind: kindPair, left: first, rght: rest})
	return NodePtr(len(a.nodes) - 1)
}

// NewNumber allocates the canonical CLVM atom encoding of a signed integer.
func (a *Arena) NewNumber(n *big.Int) NodePtr {
	return a.NewAtom(EncodeCanonicalInt(n))
}

// EncodeCanonicalInt encodes n as the minimal-length two's-complement
// big-endian CLVM atom representation (empty slice for zero).
func EncodeCanonicalInt(n *big.Int) []byte {
	if n.Sign() == 0 {
		return nil
	}
	if n.Sign() > 0 {
		buf := n.Bytes()
		if len(buf) > 0 && buf[0]&0x80 != 0 {
			out := make([]byte, len(buf)+1)
			copy(out[1:], buf)
			return out
		}
		return buf
	}
	// Negative: two's complement minimal encoding.
	bitLen := n.BitLen()
	nBytes := bitLen/8 + 1
	mod := new(big.Int).Lsh(big.NewInt(1), uint(nBytes*8))
	mod.Add(mod, n)
	buf := mod.Bytes()
	for len(buf) < nBytes {
		buf = append([]byte{0xff}, buf...)
	}
	if len(buf) > 1 && buf[0] == 0xff && buf[1]&0x80 != 0 {
		buf = buf[1:]
	}
	return buf
}

// Next walks one cons cell, returning the first element and the
// remaining tail, mirroring the Rust source's Allocator::next helper
// used throughout the spend aggregator.
func (a *Arena) Next(ptr NodePtr) (item NodePtr, rest NodePtr, ok bool) {
	if !a.IsPair(ptr) {
		return 0, 0, false
	}
	item, _ = a.First(ptr)
	rest, _ = a.Rest(ptr)
	return item, rest, true
}

// ListLen counts the elements of a proper list, ignoring any improper
// tail (the caller decides whether a non-nil tail is acceptable).
func (a *Arena) ListLen(ptr NodePtr) int {
	n := 0
	for a.IsPair(ptr) {
		n++
		ptr, _ = a.Rest(ptr)
	}
	return n
}
