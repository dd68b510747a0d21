package consensus

import (
	"rubin.dev/chia-consensus/arena"
	"rubin.dev/chia-consensus/crypto/bls"
)

// ProgramRunner is the injected external-evaluator seam: production
// code wires this to a real CLVM evaluator, and tests wire it to a
// fake that ignores the program and returns a prebuilt condition list.
// No CLVM evaluator lives in this package (SPEC_FULL.md
// §1: "referenced only through their interfaces").
type ProgramRunner func(a *arena.Arena, program, args arena.NodePtr, maxCost uint64) (cost uint64, output arena.NodePtr, err error)

// subtractCost deducts subtract from *costLeft, or fails with
// ErrCostExceeded if that would go negative. Mirrors subtract_cost.
func subtractCost(costLeft *uint64, subtract uint64) error {
	if subtract > *costLeft {
		return verr(ErrCostExceeded, arenaNil, "cost exceeded")
	}
	*costLeft -= subtract
	return nil
}

// extractSpendFields pops the first count-1 elements off a spend's
// argument list and returns whatever remains as the count-th element,
// the improper tail (mirroring
// extract_n, used to pull (parent_id puzzle amount solution . extra)
// out of a generator-emitted spend list while tolerating a trailing
// extension field in the last position).
func extractSpendFields(a *arena.Arena, n arena.NodePtr, count int, onErr ErrorCode) ([]arena.NodePtr, error) {
	ret := make([]arena.NodePtr, count)
	counter := 0
	for a.IsPair(n) {
		if counter == count-1 {
			break
		}
		item, _ := a.First(n)
		n, _ = a.Rest(n)
		ret[counter] = item
		counter++
	}
	if counter != count-1 {
		return nil, verr(onErr, n, "spend is missing required fields")
	}
	ret[counter] = n
	return ret, nil
}

// RunBlockGenerator runs an externally-evaluated generator program
// (via runner) against the block references, then parses and
// validates every spend the program emits. Mirrors run_block_generator:
// the byte cost of the program is charged up front, and the returned
// cost adds back everything charged before parse_spends ran.
func RunBlockGenerator(
	a *arena.Arena,
	runner ProgramRunner,
	program arena.NodePtr,
	blockRefsArgs arena.NodePtr,
	programByteLen int,
	maxCost uint64,
	flags uint32,
	signature bls.Signature,
	blsCache *bls.Cache,
	constants *ConsensusConstants,
) (*SpendBundleConditions, error) {
	costLeft := maxCost
	byteCost := uint64(programByteLen) * constants.CostPerByte
	if err := subtractCost(&costLeft, byteCost); err != nil {
		return nil, err
	}

	clvmCost, generatorOutput, err := runner(a, program, blockRefsArgs, costLeft)
	if err != nil {
		return nil, err
	}
	if err := subtractCost(&costLeft, clvmCost); err != nil {
		return nil, err
	}

	result, err := parseSpends(a, generatorOutput, costLeft, flags, signature, blsCache, constants, EmptyVisitor{})
	if err != nil {
		return nil, err
	}
	result.Cost += maxCost - costLeft
	return result, nil
}

// RunBlockGenerator2 mirrors run_block_generator2: the generator ROM
// is modeled in Go instead of CLVM, so cost is only charged for the
// generator's own evaluation, each puzzle, and condition parsing —
// never for the ROM/deserializer itself. puzzleTreeHash lets the
// caller supply a precomputed tree-hash function (run_block_generator2
// never re-derives a puzzle-reveal's hash through CLVM).
func RunBlockGenerator2(
	a *arena.Arena,
	runner ProgramRunner,
	program arena.NodePtr,
	blockRefsArgs arena.NodePtr,
	programByteLen int,
	maxCost uint64,
	flags uint32,
	signature bls.Signature,
	blsCache *bls.Cache,
	constants *ConsensusConstants,
	puzzleTreeHash func(a *arena.Arena, puzzle arena.NodePtr) Hash,
) (*SpendBundleConditions, error) {
	costLeft := maxCost
	byteCost := uint64(programByteLen) * constants.CostPerByte
	if err := subtractCost(&costLeft, byteCost); err != nil {
		return nil, err
	}

	clvmCost, allSpendsOuter, err := runner(a, program, blockRefsArgs, costLeft)
	if err != nil {
		return nil, err
	}
	if err := subtractCost(&costLeft, clvmCost); err != nil {
		return nil, err
	}

	allSpends, ok := a.First(allSpendsOuter)
	if !ok {
		return nil, verr(ErrInvalidCondition, allSpendsOuter, "generator output is not a list")
	}

	ret := &SpendBundleConditions{}
	state := newParseState()

	for a.IsPair(allSpends) {
		spend, _ := a.First(allSpends)
		allSpends, _ = a.Rest(allSpends)

		fields, err := extractSpendFields(a, spend, 5, ErrInvalidCondition)
		if err != nil {
			return nil, err
		}
		parentID, puzzle, amount, solution := fields[0], fields[1], fields[2], fields[3]

		clvmCost, conditions, err := runner(a, puzzle, solution, costLeft)
		if err != nil {
			return nil, err
		}
		if err := subtractCost(&costLeft, clvmCost); err != nil {
			return nil, err
		}

		puzzleHashBytes := puzzleTreeHash(a, puzzle)
		puzzleHash := a.NewAtom(puzzleHashBytes[:])

		if err := processSingleSpend(a, ret, state, parentID, puzzleHash, amount, conditions, flags, &costLeft, constants, EmptyVisitor{}); err != nil {
			return nil, err
		}
	}
	if a.AtomLen(allSpends) != 0 {
		return nil, verr(ErrGeneratorRuntimeError, allSpends, "generator output has a non-nil tail")
	}

	if err := validateConditions(a, ret, state); err != nil {
		return nil, err
	}
	if err := validateSignature(state, signature, flags, blsCache); err != nil {
		return nil, err
	}
	ret.ValidatedSignature = flags&FlagDontValidateSignature == 0

	ret.Cost = maxCost - costLeft
	return ret, nil
}

// SpendBundle is a plain, already-parsed (puzzle, solution, coin)
// triple set, the shape GetConditionsFromSpendBundle's caller has
// already assembled (as opposed to a serialized CLVM generator
// program) — grounded on spendbundle_conditions.rs's run_spendbundle.
type SpendBundle struct {
	Coin     Coin
	Puzzle   arena.NodePtr
	Solution arena.NodePtr
}

// GetConditionsFromSpendBundle runs each puzzle/solution pair in the
// bundle through runner, then parses and validates the accumulated
// conditions exactly as the block-generator entry points do, except
// it never validates a signature: a spend bundle carries no aggregate
// signature of its own until it's wrapped in a full transaction.
func GetConditionsFromSpendBundle(
	a *arena.Arena,
	runner ProgramRunner,
	spends []SpendBundle,
	maxCost uint64,
	flags uint32,
	constants *ConsensusConstants,
) (*SpendBundleConditions, error) {
	costLeft := maxCost
	ret := &SpendBundleConditions{}
	state := newParseState()

	for _, sb := range spends {
		clvmCost, conditions, err := runner(a, sb.Puzzle, sb.Solution, costLeft)
		if err != nil {
			return nil, err
		}
		if err := subtractCost(&costLeft, clvmCost); err != nil {
			return nil, err
		}

		parentIDNode := a.NewAtom(sb.Coin.ParentCoinInfo[:])
		puzzleHashNode := a.NewAtom(sb.Coin.PuzzleHash[:])
		amountNode := a.NewAtom(CanonicalBE(sb.Coin.Amount))

		if err := processSingleSpend(a, ret, state, parentIDNode, puzzleHashNode, amountNode, conditions, flags, &costLeft, constants, EmptyVisitor{}); err != nil {
			return nil, err
		}
	}

	if err := validateConditions(a, ret, state); err != nil {
		return nil, err
	}
	ret.ValidatedSignature = false
	ret.Cost = maxCost - costLeft
	return ret, nil
}
