package consensus

// ConsensusConstants carries the network-specific values the spend
// aggregator needs but cannot derive on its own: the domain-separation
// suffixes appended to every AGG_SIG_* message before it's handed to
// the BLS verifier (SPEC_FULL.md §3/§4.6), grounded on
// ConsensusConstants::agg_sig_*_additional_data.
type ConsensusConstants struct {
	AggSigMeAdditionalData           [32]byte
	AggSigParentAdditionalData       [32]byte
	AggSigPuzzleAdditionalData       [32]byte
	AggSigAmountAdditionalData       [32]byte
	AggSigPuzzleAmountAdditionalData [32]byte
	AggSigParentAmountAdditionalData [32]byte
	AggSigParentPuzzleAdditionalData [32]byte

	// CostPerByte is charged against a generator program's own byte
	// length before it's even evaluated (SPEC_FULL.md §6).
	CostPerByte uint64
	// MaxBlockCostClvm is the default cost ceiling a block generator's
	// caller should pass as max_cost absent a tighter local limit.
	MaxBlockCostClvm uint64

	// HardForkHeight and the SoftFork*Height thresholds gate which flag
	// bits GetFlagsForHeightAndConstants turns on for a given block
	// height, the way the real chain phases in behavior changes.
	HardForkHeight       uint32
	SoftFork2Height      uint32
	SoftFork3Height      uint32
	SoftFork4Height      uint32
}

// GetFlagsForHeightAndConstants derives the condition-parsing flag
// word for a block at the given height: MEMPOOL_MODE callers still
// OR that bit in themselves, since it reflects local validation
// policy rather than a chain-wide activation height.
func GetFlagsForHeightAndConstants(height uint32, constants *ConsensusConstants) uint32 {
	var flags uint32
	if height >= constants.HardForkHeight {
		flags |= FlagAllowBackrefs | FlagNoUnknownConds
	}
	return flags
}

// additionalDataSuffixes returns every AGG_SIG_* suffix, in the fixed
// order check_agg_sig_unsafe_message tests an AGG_SIG_UNSAFE message's
// tail against (a message colliding with any of these would be
// ambiguous with a "safe" AGG_SIG_* condition's composed message).
func (c *ConsensusConstants) additionalDataSuffixes() [][]byte {
	return [][]byte{
		c.AggSigMeAdditionalData[:],
		c.AggSigParentAdditionalData[:],
		c.AggSigPuzzleAdditionalData[:],
		c.AggSigAmountAdditionalData[:],
		c.AggSigPuzzleAmountAdditionalData[:],
		c.AggSigParentAmountAdditionalData[:],
		c.AggSigParentPuzzleAdditionalData[:],
	}
}

// MainnetConstants returns the production network's AGG_SIG additional
// data. The byte values are placeholders (derived from fixed textual
// seeds rather than the real mainnet genesis challenge) since this
// module does not ship the real chain's genesis block; callers
// targeting an actual Chia-compatible network must override these.
var MainnetConstants = ConsensusConstants{
	AggSigMeAdditionalData:           seedConstant("mainnet.agg_sig_me"),
	AggSigParentAdditionalData:       seedConstant("mainnet.agg_sig_parent"),
	AggSigPuzzleAdditionalData:       seedConstant("mainnet.agg_sig_puzzle"),
	AggSigAmountAdditionalData:       seedConstant("mainnet.agg_sig_amount"),
	AggSigPuzzleAmountAdditionalData: seedConstant("mainnet.agg_sig_puzzle_amount"),
	AggSigParentAmountAdditionalData: seedConstant("mainnet.agg_sig_parent_amount"),
	AggSigParentPuzzleAdditionalData: seedConstant("mainnet.agg_sig_parent_puzzle"),

	CostPerByte:      12000,
	MaxBlockCostClvm: 11_000_000_000,
	HardForkHeight:   5_496_000,
	SoftFork2Height:  3_886_635,
	SoftFork3Height:  4_510_600,
	SoftFork4Height:  5_716_000,
}

// TestnetConstants mirrors MainnetConstants with a distinct seed, so a
// signature built for one network can never validate on the other.
var TestnetConstants = ConsensusConstants{
	AggSigMeAdditionalData:           seedConstant("testnet.agg_sig_me"),
	AggSigParentAdditionalData:       seedConstant("testnet.agg_sig_parent"),
	AggSigPuzzleAdditionalData:       seedConstant("testnet.agg_sig_puzzle"),
	AggSigAmountAdditionalData:       seedConstant("testnet.agg_sig_amount"),
	AggSigPuzzleAmountAdditionalData: seedConstant("testnet.agg_sig_puzzle_amount"),
	AggSigParentAmountAdditionalData: seedConstant("testnet.agg_sig_parent_amount"),
	AggSigParentPuzzleAdditionalData: seedConstant("testnet.agg_sig_parent_puzzle"),

	CostPerByte:      12000,
	MaxBlockCostClvm: 11_000_000_000,
	HardForkHeight:   3_836_000,
	SoftFork2Height:  2_975_000,
	SoftFork3Height:  3_228_500,
	SoftFork4Height:  3_556_000,
}

func seedConstant(label string) [32]byte {
	return sha256Sum([]byte(label))
}
