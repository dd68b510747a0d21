package consensus

import (
	"rubin.dev/chia-consensus/arena"
	"rubin.dev/chia-consensus/crypto/bls"
)

// NPCResult is the outcome of running a block generator end to end:
// either a validation error, or the fully parsed/validated conditions.
// Mirrors NPCResult's error/conds pair.
type NPCResult struct {
	Error error
	Conds *SpendBundleConditions
}

// BlockGenerator is a block's CLVM generator program plus the
// additional block references it may read from, mirroring
// BlockGenerator.
type BlockGenerator struct {
	Program       arena.NodePtr
	ProgramBytes  int
	GeneratorRefs arena.NodePtr
}

// GetNamePuzzleConditions runs a block's generator and returns its
// parsed conditions, dispatching to RunBlockGenerator2 once a block is
// past HardForkHeight and to RunBlockGenerator before it, the same
// switch get_name_puzzle_conditions makes.
func GetNamePuzzleConditions(
	a *arena.Arena,
	runner ProgramRunner,
	generator BlockGenerator,
	maxCost uint64,
	mempoolMode bool,
	height uint32,
	signature bls.Signature,
	blsCache *bls.Cache,
	constants *ConsensusConstants,
	puzzleTreeHash func(a *arena.Arena, puzzle arena.NodePtr) Hash,
) NPCResult {
	flags := GetFlagsForHeightAndConstants(height, constants)
	if mempoolMode {
		flags |= FlagMempoolMode
	}

	var result *SpendBundleConditions
	var err error
	if height >= constants.HardForkHeight {
		result, err = RunBlockGenerator2(a, runner, generator.Program, generator.GeneratorRefs, generator.ProgramBytes, maxCost, flags, signature, blsCache, constants, puzzleTreeHash)
	} else {
		result, err = RunBlockGenerator(a, runner, generator.Program, generator.GeneratorRefs, generator.ProgramBytes, maxCost, flags, signature, blsCache, constants)
	}
	if err != nil {
		return NPCResult{Error: err}
	}
	return NPCResult{Conds: result}
}
