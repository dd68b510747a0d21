package consensus

import (
	"math/big"
	"testing"

	"rubin.dev/chia-consensus/arena"
	"rubin.dev/chia-consensus/crypto/bls"
)

// buildCreateCoinCondition builds the CLVM list ((CREATE_COIN
// puzzle_hash amount)), the simplest single-condition program output
// a puzzle can produce.
func buildCreateCoinCondition(a *arena.Arena, puzzleHash Hash, amount uint64) arena.NodePtr {
	cond := a.NewPair(
		a.NewNumber(big.NewInt(int64(OpCreateCoin))),
		a.NewPair(a.NewAtom(puzzleHash[:]), a.NewPair(a.NewAtom(CanonicalBE(amount)), arena.Nil)),
	)
	return a.NewPair(cond, arena.Nil)
}

func TestGetConditionsFromSpendBundle(t *testing.T) {
	a := arena.New()

	parent := Coin{ParentCoinInfo: Hash{0x01}, PuzzleHash: Hash{0x02}, Amount: 100}
	outputPuzzleHash := Hash{0x03}

	conditions := buildCreateCoinCondition(a, outputPuzzleHash, 40)
	runner := func(a *arena.Arena, puzzle, solution arena.NodePtr, maxCost uint64) (uint64, arena.NodePtr, error) {
		return 1000, conditions, nil
	}

	spends := []SpendBundle{
		{Coin: parent, Puzzle: a.NewAtom([]byte{0xaa}), Solution: a.NewAtom([]byte{0xbb})},
	}

	result, err := GetConditionsFromSpendBundle(a, runner, spends, 10_000_000, 0, &MainnetConstants)
	if err != nil {
		t.Fatalf("GetConditionsFromSpendBundle: %v", err)
	}
	if result.ValidatedSignature {
		t.Fatalf("a spend bundle must never report a validated signature")
	}
	if len(result.Spends) != 1 {
		t.Fatalf("expected 1 spend, got %d", len(result.Spends))
	}
	spend := result.Spends[0]
	if len(spend.CreateCoin) != 1 {
		t.Fatalf("expected 1 created coin, got %d", len(spend.CreateCoin))
	}
	if !result.AdditionAmount.LessUint64(41) || result.AdditionAmount.LessUint64(40) {
		t.Fatalf("addition amount should be exactly 40, got %+v", result.AdditionAmount)
	}
	if !result.RemovalAmount.LessUint64(101) || result.RemovalAmount.LessUint64(100) {
		t.Fatalf("removal amount should be exactly 100, got %+v", result.RemovalAmount)
	}
}

func TestRunBlockGenerator2EmptyGenerator(t *testing.T) {
	a := arena.New()

	allSpends := a.NewPair(arena.Nil, arena.Nil)
	runner := func(a *arena.Arena, program, args arena.NodePtr, maxCost uint64) (uint64, arena.NodePtr, error) {
		return 500, allSpends, nil
	}

	result, err := RunBlockGenerator2(
		a, runner, a.NewAtom([]byte{0x01}), arena.Nil, 10,
		1_000_000, FlagDontValidateSignature, bls.Signature{}, nil, &MainnetConstants,
		treeHash,
	)
	if err != nil {
		t.Fatalf("RunBlockGenerator2: %v", err)
	}
	if len(result.Spends) != 0 {
		t.Fatalf("expected no spends for an empty generator output")
	}
}
