package consensus

import (
	"crypto/sha256"

	"rubin.dev/chia-consensus/arena"
)

// CLVM opcode atoms used only for tree-hashing a curried puzzle shape
// without running it, per curry_and_treehash.
const (
	opQuote = 1
	opApply = 2
	opCons  = 4
)

// treeHashAtom is the standard CLVM tree hash of an atom: SHA256(0x01 || bytes).
func treeHashAtom(buf []byte) Hash {
	h := sha256.New()
	h.Write([]byte{1})
	h.Write(buf)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// treeHashPair is the standard CLVM tree hash of a cons pair: SHA256(0x02 || left || right).
func treeHashPair(left, right Hash) Hash {
	h := sha256.New()
	h.Write([]byte{2})
	h.Write(left[:])
	h.Write(right[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// treeHash computes the CLVM tree hash of an arbitrary program/value
// node, recursing over the arena the same way tree_hash(Allocator,
// NodePtr) does.
func treeHash(a *arena.Arena, node arena.NodePtr) Hash {
	if a.IsPair(node) {
		left, _ := a.First(node)
		right, _ := a.Rest(node)
		return treeHashPair(treeHash(a, left), treeHash(a, right))
	}
	return treeHashAtom(a.Atom(node))
}

// SingletonStruct is the first curried argument of every singleton
// puzzle: its own mod hash plus the launcher identity that makes it a
// singleton.
type SingletonStruct struct {
	ModHash            Hash
	LauncherID         Hash
	LauncherPuzzleHash Hash
}

// LineageProof lets a singleton spend prove which parent coin it
// descends from without replaying the entire chain.
type LineageProof struct {
	ParentParentCoinID    Hash
	ParentInnerPuzzleHash Hash
	ParentAmount          uint64
}

// SingletonSolution is the solution shape every singleton top-layer
// puzzle expects: its lineage proof, the coin's own amount (checked
// against the puzzle's curried singleton_struct), and the inner
// puzzle's solution untouched.
type SingletonSolution struct {
	LineageProof   LineageProof
	Amount         uint64
	InnerSolution  arena.NodePtr
}

// SingletonTopLayerPuzzleHash is the mod-hash every singleton top
// layer puzzle (singleton_top_layer_v1_1.clsp) curries itself with.
// A deployment must set this to its actual puzzle's tree hash.
var SingletonTopLayerPuzzleHash Hash

// currySingleArg folds one curried argument into a running curry
// tree-hash accumulator, mirroring curry_single_arg: the hash of
// (c (q . argHash) rest).
func currySingleArg(argHash, rest Hash) Hash {
	return treeHashPair(
		treeHashAtom([]byte{opCons}),
		treeHashPair(
			treeHashPair(treeHashAtom([]byte{opQuote}), argHash),
			treeHashPair(rest, treeHashAtom(nil)),
		),
	)
}

// curryAndTreehash computes the puzzle hash of a singleton top layer
// puzzle curried with the given inner puzzle hash and singleton
// struct, without building or running any program — used to recompute
// a parent coin's puzzle hash from its lineage proof.
func curryAndTreehash(innerPuzzleHash Hash, s SingletonStruct) Hash {
	singletonStructHash := treeHashPair(
		treeHashAtom(s.ModHash[:]),
		treeHashPair(
			treeHashAtom(s.LauncherID[:]),
			treeHashAtom(s.LauncherPuzzleHash[:]),
		),
	)

	argsHash := treeHashAtom([]byte{opQuote})
	argsHash = currySingleArg(innerPuzzleHash, argsHash)
	argsHash = currySingleArg(singletonStructHash, argsHash)

	return treeHashPair(
		treeHashAtom([]byte{opApply}),
		treeHashPair(
			treeHashPair(treeHashAtom([]byte{opQuote}), s.ModHash),
			treeHashPair(argsHash, treeHashAtom(nil)),
		),
	)
}

// parsedSingleton is the uncurried shape of a singleton top-layer
// puzzle: (a (q . modProgram) (c (q . singletonStruct) (c innerPuzzle 1))).
type parsedSingleton struct {
	modProgram      arena.NodePtr
	singletonStruct SingletonStruct
	innerPuzzle     arena.NodePtr
}

// parseSingletonPuzzle uncurries puzzle into its mod program and its
// two curried arguments, mirroring CurriedProgram<NodePtr,
// SingletonArgs<NodePtr>>::from_clvm for exactly the singleton shape.
func parseSingletonPuzzle(a *arena.Arena, puzzle arena.NodePtr) (parsedSingleton, error) {
	apply, rest, ok := a.Next(puzzle)
	if !ok || !a.IsAtom(apply) || !atomEqualsByte(a, apply, opApply) {
		return parsedSingleton{}, verr(ErrNotSingletonModHash, puzzle, "puzzle is not a curried program")
	}
	quotedMod, rest, ok := a.Next(rest)
	if !ok {
		return parsedSingleton{}, verr(ErrNotSingletonModHash, puzzle, "missing curried mod program")
	}
	modProgram, err := unquote(a, quotedMod)
	if err != nil {
		return parsedSingleton{}, err
	}
	argsEnv, _, ok := a.Next(rest)
	if !ok {
		return parsedSingleton{}, verr(ErrNotSingletonModHash, puzzle, "missing curried args")
	}

	singletonStructNode, argsEnv, err := nextCurriedArg(a, argsEnv)
	if err != nil {
		return parsedSingleton{}, err
	}
	innerPuzzle, _, err := nextCurriedArg(a, argsEnv)
	if err != nil {
		return parsedSingleton{}, err
	}

	ss, err := parseSingletonStruct(a, singletonStructNode)
	if err != nil {
		return parsedSingleton{}, err
	}

	return parsedSingleton{modProgram: modProgram, singletonStruct: ss, innerPuzzle: innerPuzzle}, nil
}

// nextCurriedArg pops one (c (q . arg) rest) cell off a curried
// argument environment and returns the unquoted argument plus the
// remaining chain.
func nextCurriedArg(a *arena.Arena, env arena.NodePtr) (arg, rest arena.NodePtr, err error) {
	consOp, tail, ok := a.Next(env)
	if !ok || !a.IsAtom(consOp) || !atomEqualsByte(a, consOp, opCons) {
		return 0, 0, verr(ErrNotSingletonModHash, env, "malformed curried argument chain")
	}
	quotedArg, tail2, ok := a.Next(tail)
	if !ok {
		return 0, 0, verr(ErrNotSingletonModHash, env, "missing curried argument")
	}
	arg, err = unquote(a, quotedArg)
	if err != nil {
		return 0, 0, err
	}
	rest, _ = a.First(tail2)
	return arg, rest, nil
}

// unquote strips the (q . value) wrapper every curried argument and
// mod program carries.
func unquote(a *arena.Arena, node arena.NodePtr) (arena.NodePtr, error) {
	q, ok := a.First(node)
	if !ok || !a.IsAtom(q) || !atomEqualsByte(a, q, opQuote) {
		return 0, verr(ErrNotSingletonModHash, node, "expected a quoted value")
	}
	v, _ := a.Rest(node)
	return v, nil
}

func atomEqualsByte(a *arena.Arena, node arena.NodePtr, b byte) bool {
	buf := a.Atom(node)
	return len(buf) == 1 && buf[0] == b
}

func parseSingletonStruct(a *arena.Arena, node arena.NodePtr) (SingletonStruct, error) {
	modHashNode, rest, ok := a.Next(node)
	if !ok {
		return SingletonStruct{}, verr(ErrNotSingletonModHash, node, "malformed singleton struct")
	}
	launcherIDNode, launcherPuzzleHashNode, ok := a.Next(rest)
	if !ok {
		return SingletonStruct{}, verr(ErrNotSingletonModHash, node, "malformed singleton struct")
	}
	return SingletonStruct{
		ModHash:            atomHash(a, modHashNode),
		LauncherID:         atomHash(a, launcherIDNode),
		LauncherPuzzleHash: atomHash(a, launcherPuzzleHashNode),
	}, nil
}

func atomHash(a *arena.Arena, node arena.NodePtr) Hash {
	var h Hash
	copy(h[:], a.Atom(node))
	return h
}

// parseSingletonSolution parses a solution list (lineage_proof amount
// inner_solution), where lineage_proof is itself a list
// (parent_parent_coin_id parent_inner_puzzle_hash parent_amount).
func parseSingletonSolution(a *arena.Arena, solution arena.NodePtr) (SingletonSolution, error) {
	lineageNode, rest, ok := a.Next(solution)
	if !ok {
		return SingletonSolution{}, verr(ErrInvalidCondition, solution, "missing lineage proof")
	}
	amountNode, rest, ok := a.Next(rest)
	if !ok {
		return SingletonSolution{}, verr(ErrInvalidCondition, solution, "missing amount")
	}
	innerSolution, _, ok := a.Next(rest)
	if !ok {
		return SingletonSolution{}, verr(ErrInvalidCondition, solution, "missing inner solution")
	}

	parentParentNode, lrest, ok := a.Next(lineageNode)
	if !ok {
		return SingletonSolution{}, verr(ErrInvalidCondition, lineageNode, "malformed lineage proof")
	}
	parentInnerPHNode, lrest, ok := a.Next(lrest)
	if !ok {
		return SingletonSolution{}, verr(ErrInvalidCondition, lineageNode, "malformed lineage proof")
	}
	parentAmountNode, _, ok := a.Next(lrest)
	if !ok {
		return SingletonSolution{}, verr(ErrInvalidCondition, lineageNode, "malformed lineage proof")
	}

	amount, err := parseAmount(a, amountNode, ErrInvalidCoinAmount)
	if err != nil {
		return SingletonSolution{}, err
	}
	parentAmount, err := parseAmount(a, parentAmountNode, ErrInvalidCoinAmount)
	if err != nil {
		return SingletonSolution{}, err
	}

	return SingletonSolution{
		LineageProof: LineageProof{
			ParentParentCoinID:    atomHash(a, parentParentNode),
			ParentInnerPuzzleHash: atomHash(a, parentInnerPHNode),
			ParentAmount:          parentAmount,
		},
		Amount:        amount,
		InnerSolution: innerSolution,
	}, nil
}

// serializeSingletonSolution rebuilds a solution NodePtr from a
// SingletonSolution, the inverse of parseSingletonSolution.
func serializeSingletonSolution(a *arena.Arena, s SingletonSolution) arena.NodePtr {
	lineage := a.NewPair(
		a.NewAtom(s.LineageProof.ParentParentCoinID[:]),
		a.NewPair(
			a.NewAtom(s.LineageProof.ParentInnerPuzzleHash[:]),
			a.NewPair(a.NewAtom(CanonicalBE(s.LineageProof.ParentAmount)), arena.Nil),
		),
	)
	return a.NewPair(
		lineage,
		a.NewPair(
			a.NewAtom(CanonicalBE(s.Amount)),
			a.NewPair(s.InnerSolution, arena.Nil),
		),
	)
}

// FastForwardSingleton rewrites a singleton spend's solution so it
// can be re-applied against a new coin descending from a different
// parent, validating the full lineage proof chain first. Mirrors
// fast_forward_singleton exactly.
func FastForwardSingleton(a *arena.Arena, puzzle, solution arena.NodePtr, coin, newCoin, newParent *Coin) (arena.NodePtr, error) {
	if coin.Amount&1 == 0 || newParent.Amount&1 == 0 || newCoin.Amount&1 == 0 {
		return 0, verr(ErrCoinAmountEven, puzzle, "singleton coin amount must be odd")
	}

	if coin.PuzzleHash != newParent.PuzzleHash || coin.PuzzleHash != newCoin.PuzzleHash {
		return 0, verr(ErrPuzzleHashMismatch, puzzle, "fast-forward requires an unchanged puzzle hash")
	}

	singleton, err := parseSingletonPuzzle(a, puzzle)
	if err != nil {
		return 0, err
	}
	newSolution, err := parseSingletonSolution(a, solution)
	if err != nil {
		return 0, err
	}

	if singleton.singletonStruct.ModHash != SingletonTopLayerPuzzleHash {
		return 0, verr(ErrNotSingletonModHash, puzzle, "singleton_struct mod_hash does not match the top layer puzzle")
	}
	if treeHash(a, singleton.modProgram) != SingletonTopLayerPuzzleHash {
		return 0, verr(ErrNotSingletonModHash, puzzle, "curried mod program is not the singleton top layer puzzle")
	}

	if coin.Amount != newSolution.Amount {
		return 0, verr(ErrCoinAmountMismatch, solution, "solution amount does not match the coin being spent")
	}

	parentPuzzleHash := curryAndTreehash(newSolution.LineageProof.ParentInnerPuzzleHash, singleton.singletonStruct)
	parentCoin := Coin{
		ParentCoinInfo: newSolution.LineageProof.ParentParentCoinID,
		PuzzleHash:     parentPuzzleHash,
		Amount:         newSolution.LineageProof.ParentAmount,
	}
	if parentCoin.ID() != coin.ParentCoinInfo {
		return 0, verr(ErrParentCoinMismatch, solution, "lineage proof does not resolve to the coin's actual parent")
	}

	innerPuzzleHash := treeHash(a, singleton.innerPuzzle)
	if innerPuzzleHash != newSolution.LineageProof.ParentInnerPuzzleHash {
		return 0, verr(ErrInnerPuzzleHashMismatch, solution, "inner puzzle hash does not match the lineage proof")
	}

	puzzleHash := treeHash(a, puzzle)
	if puzzleHash != newParent.PuzzleHash || puzzleHash != coin.PuzzleHash {
		return 0, verr(ErrPuzzleHashMismatch, puzzle, "fast-forward requires the puzzle hash to match the new coin")
	}

	newSolution.LineageProof.ParentParentCoinID = newParent.ParentCoinInfo
	newSolution.LineageProof.ParentAmount = newParent.Amount
	newSolution.Amount = newCoin.Amount

	if newCoin.ParentCoinInfo != newParent.ID() {
		return 0, verr(ErrCoinMismatch, solution, "new coin does not descend from the given new parent")
	}

	return serializeSingletonSolution(a, newSolution), nil
}
