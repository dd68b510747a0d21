package consensus

import "crypto/sha256"

// Hash is a 32-byte content identifier. Equality and hashing are
// byte-wise, per SPEC_FULL.md §3.
type Hash [32]byte

// CoinID computes coin_id = SHA256(parent_id || puzzle_hash ||
// canonical_be(amount)), the content address every spend, announcement,
// and singleton lineage check in this package is keyed on.
func CoinID(parentID, puzzleHash Hash, amount uint64) Hash {
	h := sha256.New()
	h.Write(parentID[:])
	h.Write(puzzleHash[:])
	h.Write(CanonicalBE(amount))
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func sha256Sum(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// Coin is the plain (parent, puzzle_hash, amount) record the fast-forward
// transformer and the spend aggregator both reason about.
type Coin struct {
	ParentCoinInfo Hash
	PuzzleHash     Hash
	Amount         uint64
}

// ID returns this coin's content address.
func (c Coin) ID() Hash {
	return CoinID(c.ParentCoinInfo, c.PuzzleHash, c.Amount)
}
