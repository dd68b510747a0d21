package consensus

import (
	"encoding/binary"

	"rubin.dev/chia-consensus/arena"
)

// Bit flags within a SpendID's 3-bit commitment mode, per SPEC_FULL.md §3.
// 0b111 collapses to the full coin id; 0b000 commits to nothing (any coin).
const (
	spendIDBitParentID   uint8 = 0b100
	spendIDBitPuzzleHash uint8 = 0b010
	spendIDBitAmount     uint8 = 0b001
	spendIDFullCoinID    uint8 = 0b111
)

// SpendID is the reduced coin identity carried by SEND_MESSAGE /
// RECEIVE_MESSAGE conditions: a subset of {parent_id, puzzle_hash,
// amount}, or the full coin id, or no commitment at all.
type SpendID struct {
	Bits       uint8
	ParentID   Hash
	PuzzleHash Hash
	Amount     uint64
	CoinID     Hash
}

// ParseSpendID reads a SpendID's committed fields off the front of the
// argument list pointed to by *args, consuming one atom per set bit in
// parent_id, puzzle_hash, amount order, or a single coin id atom for
// the full-coin-id mode, mirroring SpendId::parse.
func ParseSpendID(a *arena.Arena, args *arena.NodePtr, bits uint8) (SpendID, error) {
	id := SpendID{Bits: bits}
	if bits == spendIDFullCoinID {
		node, next, ok := a.Next(*args)
		if !ok {
			return SpendID{}, verr(ErrInvalidCondition, *args, "missing coin id argument")
		}
		h, err := sanitizeHash(a, node, ErrInvalidCoinId)
		if err != nil {
			return SpendID{}, err
		}
		id.CoinID = h
		*args = next
		return id, nil
	}
	if bits&spendIDBitParentID != 0 {
		h, next, err := parseSpendIDHash(a, *args, ErrInvalidParentId)
		if err != nil {
			return SpendID{}, err
		}
		id.ParentID = h
		*args = next
	}
	if bits&spendIDBitPuzzleHash != 0 {
		h, next, err := parseSpendIDHash(a, *args, ErrInvalidPuzzleHash)
		if err != nil {
			return SpendID{}, err
		}
		id.PuzzleHash = h
		*args = next
	}
	if bits&spendIDBitAmount != 0 {
		node, next, ok := a.Next(*args)
		if !ok {
			return SpendID{}, verr(ErrInvalidCondition, *args, "missing amount argument")
		}
		amount, err := parseAmount(a, node, ErrInvalidMessageMode)
		if err != nil {
			return SpendID{}, err
		}
		id.Amount = amount
		*args = next
	}
	return id, nil
}

func parseSpendIDHash(a *arena.Arena, list arena.NodePtr, code ErrorCode) (Hash, arena.NodePtr, error) {
	node, next, ok := a.Next(list)
	if !ok {
		return Hash{}, 0, verr(code, list, "missing argument")
	}
	h, err := sanitizeHash(a, node, code)
	return h, next, err
}

// SpendIDFromSelf builds a SpendID for the current spend's own identity,
// projecting only the fields the mode commits to, mirroring
// SpendId::from_self.
func SpendIDFromSelf(bits uint8, parentID, puzzleHash Hash, amount uint64, coinID Hash) SpendID {
	id := SpendID{Bits: bits}
	if bits == spendIDFullCoinID {
		id.CoinID = coinID
		return id
	}
	if bits&spendIDBitParentID != 0 {
		id.ParentID = parentID
	}
	if bits&spendIDBitPuzzleHash != 0 {
		id.PuzzleHash = puzzleHash
	}
	if bits&spendIDBitAmount != 0 {
		id.Amount = amount
	}
	return id
}

// CommitsToParentID reports whether this SpendID's mode reveals the
// spend's parent id — the bit that, on a SEND_MESSAGE/RECEIVE_MESSAGE
// condition, forces ELIGIBLE_FOR_FF off (the singleton fast-forward
// transformer cannot rewrite a parent id a message already committed to).
func (id SpendID) CommitsToParentID() bool {
	return modeCommitsToParentID(id.Bits)
}

// modeCommitsToParentID reports whether a raw 3-bit commitment mode
// reveals the parent id, regardless of whether it has been resolved
// into a full SpendID yet.
func modeCommitsToParentID(bits uint8) bool {
	return bits == spendIDFullCoinID || bits&spendIDBitParentID != 0
}

// Canonical returns the byte string this SpendID's commitment reduces
// to, used as (half of) the message dedup key: empty for "no
// commitment", the 32-byte coin id for "full coin id", or the
// concatenation of the committed fields in parent_id, puzzle_hash,
// amount order otherwise.
func (id SpendID) Canonical() []byte {
	if id.Bits == 0 {
		return nil
	}
	if id.Bits == spendIDFullCoinID {
		out := make([]byte, 32)
		copy(out, id.CoinID[:])
		return out
	}
	var out []byte
	if id.Bits&spendIDBitParentID != 0 {
		out = append(out, id.ParentID[:]...)
	}
	if id.Bits&spendIDBitPuzzleHash != 0 {
		out = append(out, id.PuzzleHash[:]...)
	}
	if id.Bits&spendIDBitAmount != 0 {
		out = append(out, CanonicalBE(id.Amount)...)
	}
	return out
}

// Message is an in-flight SEND_MESSAGE/RECEIVE_MESSAGE commitment.
// Counter is +1 for a send, -1 for a receive; a bundle only balances
// once every message's sends and receives cancel out.
type Message struct {
	Src     SpendID
	Dst     SpendID
	Msg     []byte
	Counter int
}

// Key returns the canonical map key two Message values must share to be
// considered the same commitment: the concatenation of the source and
// destination canonical identities and the message bytes, mirroring
// msg.make_key(a).
func (m Message) Key() string {
	src, dst := m.Src.Canonical(), m.Dst.Canonical()
	buf := make([]byte, 0, len(src)+len(dst)+len(m.Msg)+12)
	var lenBuf [4]byte
	for _, part := range [][]byte{src, dst, m.Msg} {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(part)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, part...)
	}
	return string(buf)
}
