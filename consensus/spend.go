package consensus

import (
	"rubin.dev/chia-consensus/arena"
	"rubin.dev/chia-consensus/crypto/bls"
)

// NewCoin is an output created by a CREATE_COIN condition. Equality
// and hashing ignore the hint: it's metadata for the wallet, not part
// of a coin's identity, matching NewCoin's PartialEq/Hash impls.
type NewCoin struct {
	PuzzleHash Hash
	Amount     uint64
	Hint       arena.NodePtr
}

// newCoinKey is the (puzzle_hash, amount) identity NewCoin hashes/compares
// on — used to dedupe a spend's CREATE_COIN outputs in a plain Go map,
// since NewCoin itself carries a hint that must not affect equality.
type newCoinKey struct {
	PuzzleHash Hash
	Amount     uint64
}

func (c NewCoin) key() newCoinKey { return newCoinKey{c.PuzzleHash, c.Amount} }

// SigPair is a (public key, message) obligation recorded for one
// AGG_SIG_* condition on a single spend. PubKey is already decoded and
// curve-validated (to_key); Msg is the raw message argument as it
// appeared in the condition, before any domain-separation suffix is
// appended for signature verification.
type SigPair struct {
	PubKey bls.PublicKey
	Msg    arena.NodePtr
}

// SpendConditions holds every condition scoped to a single coin spend:
// relative time locks, birth assertions, created coins, and the seven
// AGG_SIG_* families that commit to this spend's own identity.
type SpendConditions struct {
	ParentID   Hash
	CoinAmount uint64
	PuzzleHash Hash
	CoinID     Hash

	HeightRelative       *uint32
	SecondsRelative      *uint64
	BeforeHeightRelative *uint32
	BeforeSecondsRelative *uint64
	BirthHeight          *uint32
	BirthSeconds         *uint64

	CreateCoin map[newCoinKey]NewCoin

	AggSigMe           []SigPair
	AggSigParent       []SigPair
	AggSigPuzzle       []SigPair
	AggSigAmount       []SigPair
	AggSigPuzzleAmount []SigPair
	AggSigParentAmount []SigPair
	AggSigParentPuzzle []SigPair

	Flags uint32
}

func newSpendConditions(parentID, puzzleHash, coinID Hash, amount uint64) *SpendConditions {
	return &SpendConditions{
		ParentID:   parentID,
		CoinAmount: amount,
		PuzzleHash: puzzleHash,
		CoinID:     coinID,
		CreateCoin: make(map[newCoinKey]NewCoin),
	}
}

// SpendBundleConditions is the fully parsed, validated result of a
// spend bundle / block generator: every spend plus every bundle-level
// aggregate (fees, absolute time locks, unsafe signatures, cost).
type SpendBundleConditions struct {
	Spends []*SpendConditions

	ReserveFee      uint64
	HeightAbsolute  uint32
	SecondsAbsolute uint64

	AggSigUnsafe []SigPair

	BeforeHeightAbsolute *uint32
	BeforeSecondsAbsolute *uint64

	Cost uint64

	RemovalAmount Uint128
	AdditionAmount Uint128

	ValidatedSignature bool
}

// Uint128 is a minimal unsigned 128-bit accumulator, wide enough that
// the sum of every spent or created coin's 64-bit amount can never
// overflow it (removal_amount / addition_amount in the Rust source).
type Uint128 struct {
	Hi, Lo uint64
}

// Add128 adds a uint64 amount to acc, carrying into Hi on overflow.
func Add128(acc Uint128, amount uint64) Uint128 {
	sum := acc.Lo + amount
	if sum < acc.Lo {
		acc.Hi++
	}
	acc.Lo = sum
	return acc
}

// Less reports whether a < b as a 128-bit unsigned value.
func (a Uint128) Less(b Uint128) bool {
	if a.Hi != b.Hi {
		return a.Hi < b.Hi
	}
	return a.Lo < b.Lo
}

// Sub subtracts b from a (caller must ensure a >= b).
func (a Uint128) Sub(b Uint128) Uint128 {
	lo := a.Lo - b.Lo
	hi := a.Hi - b.Hi
	if a.Lo < b.Lo {
		hi--
	}
	return Uint128{Hi: hi, Lo: lo}
}

// LessUint64 reports whether a < b for a plain uint64 b.
func (a Uint128) LessUint64(b uint64) bool {
	return a.Hi == 0 && a.Lo < b
}

// announceCoinKey / announcePuzzleKey dedupe CREATE_COIN_ANNOUNCEMENT /
// CREATE_PUZZLE_ANNOUNCEMENT entries the same way the Rust HashSet<(Arc<Bytes32>, NodePtr)>
// does: by (identity, message node) pair.
type announceCoinKey struct {
	CoinID Hash
	Msg    arena.NodePtr
}
type announcePuzzleKey struct {
	PuzzleHash Hash
	Msg        arena.NodePtr
}

// ParseState accumulates everything that can only be checked once
// every spend in the bundle has been parsed: announcements (hashed
// lazily), concurrency assertions, ephemeral-coin bookkeeping, message
// balancing, and the signature verification obligations. Unlike the
// grounding source, which defers decoding and keys several of these
// sets by raw arena.NodePtr, every hash in these keys is decoded to its
// 32-byte identity once at parse time (announcement message bytes stay
// arena.NodePtr values): two conditions naming the same hash are
// the same entry regardless of which arena node produced them, and
// nothing downstream needs the arena to compare them again.
type ParseState struct {
	AnnounceCoin   map[announceCoinKey]struct{}
	AnnouncePuzzle map[announcePuzzleKey]struct{}

	AssertCoin   map[Hash]struct{}
	AssertPuzzle map[Hash]struct{}

	Messages []Message

	AssertConcurrentSpend  map[Hash]struct{}
	AssertConcurrentPuzzle map[Hash]struct{}

	SpentCoins   map[Hash]int
	SpentPuzzles map[Hash]struct{}

	AssertEphemeral    map[int]struct{}
	AssertNotEphemeral map[int]struct{}

	PkmPairs []bls.PkMsg
}

func newParseState() *ParseState {
	return &ParseState{
		AnnounceCoin:           make(map[announceCoinKey]struct{}),
		AnnouncePuzzle:         make(map[announcePuzzleKey]struct{}),
		AssertCoin:             make(map[Hash]struct{}),
		AssertPuzzle:           make(map[Hash]struct{}),
		AssertConcurrentSpend:  make(map[Hash]struct{}),
		AssertConcurrentPuzzle: make(map[Hash]struct{}),
		SpentCoins:             make(map[Hash]int),
		SpentPuzzles:           make(map[Hash]struct{}),
		AssertEphemeral:        make(map[int]struct{}),
		AssertNotEphemeral:      make(map[int]struct{}),
	}
}

// SpendVisitor observes every spend and condition as they're parsed,
// letting a caller derive extra per-spend bookkeeping (eligibility for
// dedup / fast-forward) without the aggregator itself needing to know
// about mempool policy. Mirrors the SpendVisitor trait.
type SpendVisitor interface {
	NewSpend(spend *SpendConditions)
	Condition(spend *SpendConditions, c *Condition)
	PostSpend(a *arena.Arena, spend *SpendConditions)
}

// EmptyVisitor does nothing; used whenever a caller only cares about
// the validated conditions themselves (e.g. block validation).
type EmptyVisitor struct{}

func (EmptyVisitor) NewSpend(*SpendConditions)               {}
func (EmptyVisitor) Condition(*SpendConditions, *Condition)  {}
func (EmptyVisitor) PostSpend(*arena.Arena, *SpendConditions) {}

// MempoolVisitor computes ELIGIBLE_FOR_DEDUP / ELIGIBLE_FOR_FF for
// every spend, the way the mempool needs in order to know which spends
// may be deduplicated against an identical pending spend, or rewritten
// by the singleton fast-forward transformer.
type MempoolVisitor struct {
	conditionCounter int
}

func (v *MempoolVisitor) NewSpend(spend *SpendConditions) {
	flags := uint32(ELIGIBLE_FOR_DEDUP)
	if spend.CoinAmount&1 == 1 {
		flags |= ELIGIBLE_FOR_FF
	}
	spend.Flags |= flags
	v.conditionCounter = 0
}

func (v *MempoolVisitor) Condition(spend *SpendConditions, c *Condition) {
	switch c.Kind {
	case CondAssertMyCoinID:
		spend.Flags &^= ELIGIBLE_FOR_FF
	case CondAssertMyParentID:
		if v.conditionCounter != 1 {
			spend.Flags &^= ELIGIBLE_FOR_FF
		}
	case CondAggSigMe, CondAggSigParent, CondAggSigParentAmount, CondAggSigParentPuzzle:
		spend.Flags &^= ELIGIBLE_FOR_DEDUP
		spend.Flags &^= ELIGIBLE_FOR_FF
	case CondAggSigPuzzle, CondAggSigAmount, CondAggSigPuzzleAmount, CondAggSigUnsafe:
		spend.Flags &^= ELIGIBLE_FOR_DEDUP
	case CondSendMessage:
		// MessageMode here is the bits describing *this* spend's own
		// identity as revealed to the message (src, from the sender's
		// point of view) — not the already-resolved destination SpendID.
		if modeCommitsToParentID(c.MessageMode) {
			spend.Flags &^= ELIGIBLE_FOR_FF
		}
		spend.Flags &^= ELIGIBLE_FOR_DEDUP
	case CondReceiveMessage:
		if modeCommitsToParentID(c.MessageMode) {
			spend.Flags &^= ELIGIBLE_FOR_FF
		}
		spend.Flags &^= ELIGIBLE_FOR_DEDUP
	}
	v.conditionCounter++
}

func (v *MempoolVisitor) PostSpend(a *arena.Arena, spend *SpendConditions) {
	if spend.Flags&ELIGIBLE_FOR_FF == 0 {
		return
	}
	for _, created := range spend.CreateCoin {
		if created.Amount&1 == 1 && created.PuzzleHash == spend.PuzzleHash {
			return
		}
	}
	spend.Flags &^= ELIGIBLE_FOR_FF
}

// Spend-level eligibility flags (SPEC_FULL.md §4.6).
const (
	// ELIGIBLE_FOR_DEDUP marks a spend with no AGG_SIG_* and no
	// SEND_MESSAGE/RECEIVE_MESSAGE condition, so an identical pending
	// spend can be deduplicated.
	ELIGIBLE_FOR_DEDUP uint32 = 1
	// HAS_RELATIVE_CONDITION marks the first relative time/height
	// condition seen on a spend (idempotent: only set once).
	HAS_RELATIVE_CONDITION uint32 = 2
	// ELIGIBLE_FOR_FF marks a spend the singleton fast-forward
	// transformer may rewrite: odd amount, no parent-committing
	// signature/message conditions, at most one ASSERT_MY_PARENT_ID
	// (as the 2nd condition), and an odd-amount same-puzzle-hash output.
	ELIGIBLE_FOR_FF uint32 = 4
)
