package consensus

import (
	"testing"

	"rubin.dev/chia-consensus/arena"
)

// buildSingletonPuzzle constructs a minimal (a (q . mod) (c (q .
// singletonStruct) (c (q . innerPuzzle) 1))) node tree, the shape
// parseSingletonPuzzle expects. mod is fixed to a single atom so its
// tree hash is computable independently of ss.
func buildSingletonPuzzle(a *arena.Arena, ss SingletonStruct, innerPuzzle arena.NodePtr) arena.NodePtr {
	modAtom := a.NewAtom([]byte{0x42})

	ssNode := a.NewPair(
		a.NewAtom(ss.ModHash[:]),
		a.NewPair(a.NewAtom(ss.LauncherID[:]), a.NewAtom(ss.LauncherPuzzleHash[:])),
	)

	one := a.NewAtom([]byte{1})
	argsEnv := a.NewPair(
		a.NewAtom([]byte{opCons}),
		a.NewPair(
			a.NewPair(a.NewAtom([]byte{opQuote}), ssNode),
			a.NewPair(
				a.NewPair(
					a.NewAtom([]byte{opCons}),
					a.NewPair(
						a.NewPair(a.NewAtom([]byte{opQuote}), innerPuzzle),
						a.NewPair(one, arena.Nil),
					),
				),
				arena.Nil,
			),
		),
	)

	quotedMod := a.NewPair(a.NewAtom([]byte{opQuote}), modAtom)
	return a.NewPair(
		a.NewAtom([]byte{opApply}),
		a.NewPair(quotedMod, a.NewPair(argsEnv, arena.Nil)),
	)
}

func buildSolution(a *arena.Arena, lp LineageProof, amount uint64, innerSolution arena.NodePtr) arena.NodePtr {
	return serializeSingletonSolution(a, SingletonSolution{LineageProof: lp, Amount: amount, InnerSolution: innerSolution})
}

func TestFastForwardSingletonHappyPath(t *testing.T) {
	a := arena.New()

	// SingletonTopLayerPuzzleHash must equal buildSingletonPuzzle's fixed
	// mod atom's tree hash for the mod-hash checks to pass.
	SingletonTopLayerPuzzleHash = treeHashAtom([]byte{0x42})

	innerPuzzle := a.NewAtom([]byte{0x07})
	innerPuzzleHash := treeHash(a, innerPuzzle)

	ss := SingletonStruct{
		ModHash:            SingletonTopLayerPuzzleHash,
		LauncherID:         Hash{0x11},
		LauncherPuzzleHash: Hash{0x22},
	}

	puzzle := buildSingletonPuzzle(a, ss, innerPuzzle)
	puzzleHash := treeHash(a, puzzle)

	parentPuzzleHash := curryAndTreehash(innerPuzzleHash, ss)
	if parentPuzzleHash != puzzleHash {
		t.Fatalf("setup invariant broken: parent puzzle hash (%x) should equal the built puzzle's tree hash (%x) since both curry the same inner puzzle/struct", parentPuzzleHash, puzzleHash)
	}

	parentCoin := Coin{ParentCoinInfo: Hash{0x33}, PuzzleHash: puzzleHash, Amount: 1}
	coin := Coin{ParentCoinInfo: parentCoin.ID(), PuzzleHash: puzzleHash, Amount: 1}

	innerSolution := a.NewAtom([]byte{0x09})
	solution := buildSolution(a, LineageProof{
		ParentParentCoinID:    parentCoin.ParentCoinInfo,
		ParentInnerPuzzleHash: innerPuzzleHash,
		ParentAmount:          parentCoin.Amount,
	}, coin.Amount, innerSolution)

	newParent := Coin{ParentCoinInfo: Hash{0x55}, PuzzleHash: puzzleHash, Amount: 3}
	newCoin := Coin{ParentCoinInfo: newParent.ID(), PuzzleHash: puzzleHash, Amount: 5}

	newSolutionNode, err := FastForwardSingleton(a, puzzle, solution, &coin, &newCoin, &newParent)
	if err != nil {
		t.Fatalf("fast-forward: %v", err)
	}
	got, err := parseSingletonSolution(a, newSolutionNode)
	if err != nil {
		t.Fatalf("parse new solution: %v", err)
	}
	if got.Amount != newCoin.Amount {
		t.Fatalf("new solution amount: got %d want %d", got.Amount, newCoin.Amount)
	}
	if got.LineageProof.ParentParentCoinID != newParent.ParentCoinInfo {
		t.Fatalf("new solution lineage parent_parent_coin_id mismatch")
	}
	if got.LineageProof.ParentAmount != newParent.Amount {
		t.Fatalf("new solution lineage parent_amount mismatch")
	}
}

func TestFastForwardSingletonRejectsEvenAmount(t *testing.T) {
	a := arena.New()
	coin := Coin{Amount: 2}
	newCoin := Coin{Amount: 1}
	newParent := Coin{Amount: 1}
	_, err := FastForwardSingleton(a, arena.Nil, arena.Nil, &coin, &newCoin, &newParent)
	ve, ok := err.(*ValidationError)
	if !ok || ve.Code != ErrCoinAmountEven {
		t.Fatalf("expected ErrCoinAmountEven, got %v", err)
	}
}

func TestFastForwardSingletonRejectsPuzzleHashMismatch(t *testing.T) {
	a := arena.New()
	coin := Coin{Amount: 1, PuzzleHash: Hash{0x01}}
	newCoin := Coin{Amount: 1, PuzzleHash: Hash{0x02}}
	newParent := Coin{Amount: 1, PuzzleHash: Hash{0x01}}
	_, err := FastForwardSingleton(a, arena.Nil, arena.Nil, &coin, &newCoin, &newParent)
	ve, ok := err.(*ValidationError)
	if !ok || ve.Code != ErrPuzzleHashMismatch {
		t.Fatalf("expected ErrPuzzleHashMismatch, got %v", err)
	}
}
