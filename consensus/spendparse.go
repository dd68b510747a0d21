package consensus

import (
	"bytes"
	"crypto/sha256"

	"rubin.dev/chia-consensus/arena"
	"rubin.dev/chia-consensus/crypto/bls"
)

// parseOpcode decodes the first element of a condition list as an
// unsigned condition opcode. Any canonically-encoded non-negative
// integer is accepted here; whether an opcode outside the known table
// is a softfork-costed no-op or a hard failure is decided in ParseArgs.
func parseOpcode(a *arena.Arena, node arena.NodePtr) (ConditionOpcode, bool) {
	if a.IsPair(node) {
		return 0, false
	}
	su, err := SanitizeUint(a.Atom(node), 4)
	if err != nil || su.Kind != SanitizedOk {
		return 0, false
	}
	return ConditionOpcode(su.Value), true
}

func toKey(a *arena.Arena, pk arena.NodePtr) (bls.PublicKey, error) {
	key, err := bls.PublicKeyFromBytes(a.Atom(pk))
	if err != nil {
		return bls.PublicKey{}, verr(ErrInvalidPublicKey, pk, "invalid or infinity public key")
	}
	return key, nil
}

// checkAggSigUnsafeMessage rejects an AGG_SIG_UNSAFE message that ends
// with any of the domain-separation suffixes a "safe" AGG_SIG_* message
// would carry, so an unsafe signature can never be replayed as one of
// the spend-scoped variants.
func checkAggSigUnsafeMessage(a *arena.Arena, msg arena.NodePtr, constants *ConsensusConstants) error {
	if a.AtomLen(msg) < 32 {
		return nil
	}
	buf := a.Atom(msg)
	for _, suffix := range constants.additionalDataSuffixes() {
		if bytes.HasSuffix(buf, suffix) {
			return verr(ErrInvalidMessage, msg, "AGG_SIG_UNSAFE message collides with a spend-scoped suffix")
		}
	}
	return nil
}

func decrementAnnounceCountdown(cnt *uint32, n arena.NodePtr) error {
	if *cnt == 0 {
		return verr(ErrTooManyAnnouncements, n, "too many announcements/messages in one spend")
	}
	*cnt--
	return nil
}

// assertNotEphemeral records the first relative time/height condition
// seen on a spend; HAS_RELATIVE_CONDITION makes this idempotent, since
// only the first such condition needs to be checked against
// ephemeral-coin status later.
func assertNotEphemeral(flags *uint32, state *ParseState, idx int) {
	if *flags&HAS_RELATIVE_CONDITION != 0 {
		return
	}
	state.AssertNotEphemeral[idx] = struct{}{}
	*flags |= HAS_RELATIVE_CONDITION
}

func isEphemeral(spendIdx int, spentCoins map[Hash]int, spends []*SpendConditions) bool {
	spend := spends[spendIdx]
	idx, ok := spentCoins[spend.ParentID]
	if !ok {
		return false
	}
	parent := spends[idx]
	_, found := parent.CreateCoin[newCoinKey{PuzzleHash: spend.PuzzleHash, Amount: spend.CoinAmount}]
	return found
}

// parseSingleSpend splits one (parent-id puzzle-hash amount (conditions...) ...)
// entry into its four leading fields.
func parseSingleSpend(a *arena.Arena, spend arena.NodePtr) (parentID, puzzleHash, amount, conditions arena.NodePtr, err error) {
	parentID, err = firstArg(a, spend)
	if err != nil {
		return
	}
	spend, err = restArgs(a, spend)
	if err != nil {
		return
	}
	puzzleHash, err = firstArg(a, spend)
	if err != nil {
		return
	}
	spend, err = restArgs(a, spend)
	if err != nil {
		return
	}
	amount, err = firstArg(a, spend)
	if err != nil {
		return
	}
	spend, err = restArgs(a, spend)
	if err != nil {
		return
	}
	conditions, err = firstArg(a, spend)
	return
}

// processSingleSpend sanitizes one spend's identity, computes its coin
// id, checks for a double spend, and hands its condition list to
// parseConditions.
func processSingleSpend(
	a *arena.Arena,
	ret *SpendBundleConditions,
	state *ParseState,
	parentIDNode, puzzleHashNode, amountNode, conditions arena.NodePtr,
	flags uint32,
	maxCost *uint64,
	constants *ConsensusConstants,
	visitor SpendVisitor,
) error {
	parentID, err := sanitizeHash(a, parentIDNode, ErrInvalidParentId)
	if err != nil {
		return err
	}
	puzzleHash, err := sanitizeHash(a, puzzleHashNode, ErrInvalidPuzzleHash)
	if err != nil {
		return err
	}
	myAmount, err := parseAmount(a, amountNode, ErrInvalidCoinAmount)
	if err != nil {
		return err
	}

	coinID := CoinID(parentID, puzzleHash, myAmount)

	if _, exists := state.SpentCoins[coinID]; exists {
		return verr(ErrDoubleSpend, parentIDNode, "coin already spent in this bundle")
	}
	state.SpentCoins[coinID] = len(ret.Spends)
	state.SpentPuzzles[puzzleHash] = struct{}{}

	ret.RemovalAmount = Add128(ret.RemovalAmount, myAmount)

	spend := newSpendConditions(parentID, puzzleHash, coinID, myAmount)
	visitor.NewSpend(spend)

	if err := parseConditions(a, ret, state, spend, conditions, flags, maxCost, constants, visitor); err != nil {
		return err
	}
	visitor.PostSpend(a, spend)
	ret.Spends = append(ret.Spends, spend)
	return nil
}

// parseConditions walks a spend's condition list, validating and
// accumulating every condition into spend, ret, and state. This is the
// central dispatch table: every accumulation rule here (strictest
// wins, impossible-constraint detection, double-output rejection, AGG_SIG
// message composition) mirrors one arm of parse_conditions.
func parseConditions(
	a *arena.Arena,
	ret *SpendBundleConditions,
	state *ParseState,
	spend *SpendConditions,
	conditions arena.NodePtr,
	flags uint32,
	maxCost *uint64,
	constants *ConsensusConstants,
	visitor SpendVisitor,
) error {
	if flags&FlagMempoolMode != 0 {
		flags |= FlagStrictArgsCount | FlagNoUnknownConds
	}
	announceCountdown := uint32(1024)
	iter := conditions

	for {
		item, rest, ok := a.Next(iter)
		if !ok {
			break
		}
		iter = rest

		opNode, err := firstArg(a, item)
		if err != nil {
			return err
		}
		op, ok := parseOpcode(a, opNode)
		if !ok {
			if flags&FlagNoUnknownConds != 0 {
				return verr(ErrInvalidConditionOpcode, item, "invalid condition opcode encoding")
			}
			continue
		}

		switch op {
		case OpCreateCoin:
			if *maxCost < CreateCoinCost {
				return verr(ErrCostExceeded, item, "cost exceeded")
			}
			*maxCost -= CreateCoinCost
		case OpAggSigUnsafe, OpAggSigMe, OpAggSigParent, OpAggSigPuzzle, OpAggSigAmount,
			OpAggSigPuzzleAmount, OpAggSigParentAmount, OpAggSigParentPuzzle:
			if *maxCost < AggSigCost {
				return verr(ErrCostExceeded, item, "cost exceeded")
			}
			*maxCost -= AggSigCost
		}

		args, err := restArgs(a, item)
		if err != nil {
			return err
		}
		cond, err := ParseArgs(a, args, op, flags)
		if err != nil {
			return err
		}
		visitor.Condition(spend, &cond)

		if cond.Kind == CondSoftfork {
			if *maxCost < cond.Cost {
				return verr(ErrCostExceeded, item, "cost exceeded")
			}
			*maxCost -= cond.Cost
		}

		if err := applyCondition(a, ret, state, spend, item, &cond, flags, constants, &announceCountdown); err != nil {
			return err
		}
	}
	return nil
}

func applyCondition(
	a *arena.Arena,
	ret *SpendBundleConditions,
	state *ParseState,
	spend *SpendConditions,
	item arena.NodePtr,
	cond *Condition,
	flags uint32,
	constants *ConsensusConstants,
	announceCountdown *uint32,
) error {
	spendIdx := len(ret.Spends)

	switch cond.Kind {
	case CondReserveFee:
		newFee := ret.ReserveFee + cond.Amount
		if newFee < ret.ReserveFee {
			return verr(ErrReserveFeeConditionFailed, item, "reserve fee overflow")
		}
		ret.ReserveFee = newFee

	case CondCreateCoin:
		var ph Hash
		copy(ph[:], a.Atom(cond.PuzzleHash))
		nc := NewCoin{PuzzleHash: ph, Amount: cond.Amount, Hint: cond.Hint}
		k := nc.key()
		if _, exists := spend.CreateCoin[k]; exists {
			return verr(ErrDuplicateOutput, item, "duplicate CREATE_COIN output")
		}
		spend.CreateCoin[k] = nc
		ret.AdditionAmount = Add128(ret.AdditionAmount, cond.Amount)

	case CondAssertSecondsRelative:
		if spend.SecondsRelative == nil || cond.Amount > *spend.SecondsRelative {
			v := cond.Amount
			spend.SecondsRelative = &v
		}
		if spend.BeforeSecondsRelative != nil && *spend.BeforeSecondsRelative <= cond.Amount {
			return verr(ErrImpossibleSecondsRelativeConstraints, item, "relative seconds window is empty")
		}
		assertNotEphemeral(&spend.Flags, state, spendIdx)

	case CondAssertSecondsAbsolute:
		if cond.Amount > ret.SecondsAbsolute {
			ret.SecondsAbsolute = cond.Amount
		}

	case CondAssertHeightRelative:
		if spend.HeightRelative == nil || cond.U32 > *spend.HeightRelative {
			v := cond.U32
			spend.HeightRelative = &v
		}
		if spend.BeforeHeightRelative != nil && *spend.BeforeHeightRelative <= cond.U32 {
			return verr(ErrImpossibleHeightRelativeConstraints, item, "relative height window is empty")
		}
		assertNotEphemeral(&spend.Flags, state, spendIdx)

	case CondAssertHeightAbsolute:
		if cond.U32 > ret.HeightAbsolute {
			ret.HeightAbsolute = cond.U32
		}

	case CondAssertBeforeSecondsRelative:
		if spend.BeforeSecondsRelative == nil || cond.Amount < *spend.BeforeSecondsRelative {
			v := cond.Amount
			spend.BeforeSecondsRelative = &v
		}
		if spend.SecondsRelative != nil && cond.Amount <= *spend.SecondsRelative {
			return verr(ErrImpossibleSecondsRelativeConstraints, item, "relative seconds window is empty")
		}
		assertNotEphemeral(&spend.Flags, state, spendIdx)

	case CondAssertBeforeSecondsAbsolute:
		if ret.BeforeSecondsAbsolute == nil || cond.Amount < *ret.BeforeSecondsAbsolute {
			v := cond.Amount
			ret.BeforeSecondsAbsolute = &v
		}

	case CondAssertBeforeHeightRelative:
		if spend.BeforeHeightRelative == nil || cond.U32 < *spend.BeforeHeightRelative {
			v := cond.U32
			spend.BeforeHeightRelative = &v
		}
		if spend.HeightRelative != nil && cond.U32 <= *spend.HeightRelative {
			return verr(ErrImpossibleHeightRelativeConstraints, item, "relative height window is empty")
		}
		assertNotEphemeral(&spend.Flags, state, spendIdx)

	case CondAssertBeforeHeightAbsolute:
		if ret.BeforeHeightAbsolute == nil || cond.U32 < *ret.BeforeHeightAbsolute {
			v := cond.U32
			ret.BeforeHeightAbsolute = &v
		}

	case CondAssertMyCoinID:
		var h Hash
		copy(h[:], a.Atom(cond.HashArg))
		if h != spend.CoinID {
			return verr(ErrAssertMyCoinIdFailed, item, "coin id mismatch")
		}

	case CondAssertMyAmount:
		if cond.Amount != spend.CoinAmount {
			return verr(ErrAssertMyAmountFailed, item, "amount mismatch")
		}

	case CondAssertMyBirthSeconds:
		if spend.BirthSeconds != nil && *spend.BirthSeconds != cond.Amount {
			return verr(ErrAssertMyBirthSecondsFailed, item, "conflicting birth-seconds assertion")
		}
		v := cond.Amount
		spend.BirthSeconds = &v
		assertNotEphemeral(&spend.Flags, state, spendIdx)

	case CondAssertMyBirthHeight:
		if spend.BirthHeight != nil && *spend.BirthHeight != cond.U32 {
			return verr(ErrAssertMyBirthHeightFailed, item, "conflicting birth-height assertion")
		}
		v := cond.U32
		spend.BirthHeight = &v
		assertNotEphemeral(&spend.Flags, state, spendIdx)

	case CondAssertEphemeral:
		state.AssertEphemeral[spendIdx] = struct{}{}

	case CondAssertMyParentID:
		var h Hash
		copy(h[:], a.Atom(cond.HashArg))
		if h != spend.ParentID {
			return verr(ErrAssertMyParentIdFailed, item, "parent id mismatch")
		}

	case CondAssertMyPuzzlehash:
		var h Hash
		copy(h[:], a.Atom(cond.HashArg))
		if h != spend.PuzzleHash {
			return verr(ErrAssertMyPuzzlehashFailed, item, "puzzle hash mismatch")
		}

	case CondCreateCoinAnnouncement:
		if err := decrementAnnounceCountdown(announceCountdown, cond.Msg); err != nil {
			return err
		}
		state.AnnounceCoin[announceCoinKey{CoinID: spend.CoinID, Msg: cond.Msg}] = struct{}{}

	case CondCreatePuzzleAnnouncement:
		if err := decrementAnnounceCountdown(announceCountdown, cond.Msg); err != nil {
			return err
		}
		state.AnnouncePuzzle[announcePuzzleKey{PuzzleHash: spend.PuzzleHash, Msg: cond.Msg}] = struct{}{}

	case CondAssertCoinAnnouncement:
		if err := decrementAnnounceCountdown(announceCountdown, cond.HashArg); err != nil {
			return err
		}
		var h Hash
		copy(h[:], a.Atom(cond.HashArg))
		state.AssertCoin[h] = struct{}{}

	case CondAssertPuzzleAnnouncement:
		if err := decrementAnnounceCountdown(announceCountdown, cond.HashArg); err != nil {
			return err
		}
		var h Hash
		copy(h[:], a.Atom(cond.HashArg))
		state.AssertPuzzle[h] = struct{}{}

	case CondAssertConcurrentSpend:
		if err := decrementAnnounceCountdown(announceCountdown, cond.HashArg); err != nil {
			return err
		}
		var h Hash
		copy(h[:], a.Atom(cond.HashArg))
		state.AssertConcurrentSpend[h] = struct{}{}

	case CondAssertConcurrentPuzzle:
		if err := decrementAnnounceCountdown(announceCountdown, cond.HashArg); err != nil {
			return err
		}
		var h Hash
		copy(h[:], a.Atom(cond.HashArg))
		state.AssertConcurrentPuzzle[h] = struct{}{}

	case CondAggSigMe:
		return applyAggSig(a, state, &spend.AggSigMe, cond, constants.AggSigMeAdditionalData[:], flags, func(msg []byte) []byte {
			return append(msg, spend.CoinID[:]...)
		})
	case CondAggSigParent:
		return applyAggSig(a, state, &spend.AggSigParent, cond, constants.AggSigParentAdditionalData[:], flags, func(msg []byte) []byte {
			return append(msg, spend.ParentID[:]...)
		})
	case CondAggSigPuzzle:
		return applyAggSig(a, state, &spend.AggSigPuzzle, cond, constants.AggSigPuzzleAdditionalData[:], flags, func(msg []byte) []byte {
			return append(msg, spend.PuzzleHash[:]...)
		})
	case CondAggSigAmount:
		return applyAggSig(a, state, &spend.AggSigAmount, cond, constants.AggSigAmountAdditionalData[:], flags, func(msg []byte) []byte {
			return append(msg, CanonicalBE(spend.CoinAmount)...)
		})
	case CondAggSigPuzzleAmount:
		return applyAggSig(a, state, &spend.AggSigPuzzleAmount, cond, constants.AggSigPuzzleAmountAdditionalData[:], flags, func(msg []byte) []byte {
			msg = append(msg, spend.PuzzleHash[:]...)
			return append(msg, CanonicalBE(spend.CoinAmount)...)
		})
	case CondAggSigParentAmount:
		return applyAggSig(a, state, &spend.AggSigParentAmount, cond, constants.AggSigParentAmountAdditionalData[:], flags, func(msg []byte) []byte {
			msg = append(msg, spend.ParentID[:]...)
			return append(msg, CanonicalBE(spend.CoinAmount)...)
		})
	case CondAggSigParentPuzzle:
		return applyAggSig(a, state, &spend.AggSigParentPuzzle, cond, constants.AggSigParentPuzzleAdditionalData[:], flags, func(msg []byte) []byte {
			msg = append(msg, spend.ParentID[:]...)
			return append(msg, spend.PuzzleHash[:]...)
		})
	case CondAggSigUnsafe:
		if err := checkAggSigUnsafeMessage(a, cond.Msg, constants); err != nil {
			return err
		}
		pk, err := toKey(a, cond.PubKey)
		if err != nil {
			return err
		}
		ret.AggSigUnsafe = append(ret.AggSigUnsafe, SigPair{PubKey: pk, Msg: cond.Msg})
		if flags&FlagDontValidateSignature == 0 {
			state.PkmPairs = append(state.PkmPairs, bls.PkMsg{PK: pk, Msg: append([]byte{}, a.Atom(cond.Msg)...)})
		}

	case CondSendMessage:
		if err := decrementAnnounceCountdown(announceCountdown, cond.Msg); err != nil {
			return err
		}
		src := SpendIDFromSelf(cond.MessageMode, spend.ParentID, spend.PuzzleHash, spend.CoinAmount, spend.CoinID)
		state.Messages = append(state.Messages, Message{Src: src, Dst: cond.SpendID, Msg: append([]byte{}, a.Atom(cond.Msg)...), Counter: 1})

	case CondReceiveMessage:
		if err := decrementAnnounceCountdown(announceCountdown, cond.Msg); err != nil {
			return err
		}
		dst := SpendIDFromSelf(cond.MessageMode, spend.ParentID, spend.PuzzleHash, spend.CoinAmount, spend.CoinID)
		state.Messages = append(state.Messages, Message{Src: cond.SpendID, Dst: dst, Msg: append([]byte{}, a.Atom(cond.Msg)...), Counter: -1})

	case CondSkipRelativeCondition:
		assertNotEphemeral(&spend.Flags, state, spendIdx)

	case CondSkip, CondSoftfork:
		// nothing further to record; cost was already accounted for

	default:
	}
	return nil
}

// applyAggSig records a spend-scoped AGG_SIG_* condition: the public
// key and message are kept verbatim on the spend, and unless signature
// validation is disabled, the composed message (the condition's own
// message, with the fields its variant commits to and the network's
// domain-separation suffix appended) is queued for verification.
func applyAggSig(a *arena.Arena, state *ParseState, dst *[]SigPair, cond *Condition, additionalData []byte, flags uint32, compose func(msg []byte) []byte) error {
	pk, err := toKey(a, cond.PubKey)
	if err != nil {
		return err
	}
	*dst = append(*dst, SigPair{PubKey: pk, Msg: cond.Msg})
	if flags&FlagDontValidateSignature != 0 {
		return nil
	}
	msg := append([]byte{}, a.Atom(cond.Msg)...)
	msg = compose(msg)
	msg = append(msg, additionalData...)
	state.PkmPairs = append(state.PkmPairs, bls.PkMsg{PK: pk, Msg: msg})
	return nil
}

// parseSpends parses every coin spend in the top-level spend list,
// validates the fully accumulated result, and checks the aggregate
// signature: process_single_spend, validate_conditions and
// validate_signature run in that order.
func parseSpends(
	a *arena.Arena,
	spends arena.NodePtr,
	maxCost uint64,
	flags uint32,
	aggregateSignature bls.Signature,
	blsCache *bls.Cache,
	constants *ConsensusConstants,
	visitor SpendVisitor,
) (*SpendBundleConditions, error) {
	ret := &SpendBundleConditions{}
	state := newParseState()
	costLeft := maxCost

	iter := spends
	for {
		spendNode, rest, ok := a.Next(iter)
		if !ok {
			break
		}
		iter = rest

		parentID, puzzleHash, amount, conds, err := parseSingleSpend(a, spendNode)
		if err != nil {
			return nil, err
		}
		if err := processSingleSpend(a, ret, state, parentID, puzzleHash, amount, conds, flags, &costLeft, constants, visitor); err != nil {
			return nil, err
		}
	}

	if err := validateConditions(a, ret, state); err != nil {
		return nil, err
	}
	if err := validateSignature(state, aggregateSignature, flags, blsCache); err != nil {
		return nil, err
	}
	ret.ValidatedSignature = flags&FlagDontValidateSignature == 0
	ret.Cost = maxCost - costLeft
	return ret, nil
}

// validateConditions runs every check that can only be done once every
// spend has been parsed: balance and fee, absolute-constraint
// impossibility, concurrent-spend/puzzle assertions, coin/puzzle
// announcement matching, ephemeral-coin bookkeeping, and message
// balance.
func validateConditions(a *arena.Arena, ret *SpendBundleConditions, state *ParseState) error {
	if ret.RemovalAmount.Less(ret.AdditionAmount) {
		return verr(ErrMintingCoin, arenaNil, "sum of created coins exceeds sum of spent coins")
	}
	if ret.RemovalAmount.Sub(ret.AdditionAmount).LessUint64(ret.ReserveFee) {
		return verr(ErrReserveFeeConditionFailed, arenaNil, "actual fee is lower than the reserved fee")
	}

	if ret.BeforeHeightAbsolute != nil && *ret.BeforeHeightAbsolute <= ret.HeightAbsolute {
		return verr(ErrImpossibleHeightAbsoluteConstraints, arenaNil, "absolute height window is empty")
	}
	if ret.BeforeSecondsAbsolute != nil && *ret.BeforeSecondsAbsolute <= ret.SecondsAbsolute {
		return verr(ErrImpossibleSecondsAbsoluteConstraints, arenaNil, "absolute seconds window is empty")
	}

	for coinID := range state.AssertConcurrentSpend {
		if _, ok := state.SpentCoins[coinID]; !ok {
			return verr(ErrAssertConcurrentSpendFailed, arenaNil, "asserted concurrent coin was not spent")
		}
	}

	for ph := range state.AssertConcurrentPuzzle {
		if _, ok := state.SpentPuzzles[ph]; !ok {
			return verr(ErrAssertConcurrentPuzzleFailed, arenaNil, "asserted concurrent puzzle hash was not spent")
		}
	}

	if len(state.AssertCoin) > 0 {
		announced := make(map[Hash]struct{}, len(state.AnnounceCoin))
		for key := range state.AnnounceCoin {
			h := sha256.New()
			h.Write(key.CoinID[:])
			h.Write(a.Atom(key.Msg))
			var id Hash
			copy(id[:], h.Sum(nil))
			announced[id] = struct{}{}
		}
		for want := range state.AssertCoin {
			if _, ok := announced[want]; !ok {
				return verr(ErrAssertCoinAnnouncementFailed, arenaNil, "coin announcement not found")
			}
		}
	}

	for idx := range state.AssertEphemeral {
		if !isEphemeral(idx, state.SpentCoins, ret.Spends) {
			return verr(ErrAssertEphemeralFailed, arenaNil, "coin was not created in this same bundle")
		}
	}
	for idx := range state.AssertNotEphemeral {
		if isEphemeral(idx, state.SpentCoins, ret.Spends) {
			return verr(ErrEphemeralRelativeCondition, arenaNil, "relative time/height condition on an ephemeral coin")
		}
	}

	if len(state.AssertPuzzle) > 0 {
		announced := make(map[Hash]struct{}, len(state.AnnouncePuzzle))
		for key := range state.AnnouncePuzzle {
			h := sha256.New()
			h.Write(key.PuzzleHash[:])
			h.Write(a.Atom(key.Msg))
			var id Hash
			copy(id[:], h.Sum(nil))
			announced[id] = struct{}{}
		}
		for want := range state.AssertPuzzle {
			if _, ok := announced[want]; !ok {
				return verr(ErrAssertPuzzleAnnouncementFailed, arenaNil, "puzzle announcement not found")
			}
		}
	}

	if len(state.Messages) > 0 {
		counters := make(map[string]int, len(state.Messages))
		for _, msg := range state.Messages {
			counters[msg.Key()] += msg.Counter
		}
		for _, count := range counters {
			if count != 0 {
				return verr(ErrMessageNotSentOrReceived, arenaNil, "a sent or received message was not matched")
			}
		}
	}

	return nil
}

// validateSignature checks the aggregate signature against every
// queued (public key, message) obligation, unless signature validation
// was explicitly disabled.
func validateSignature(state *ParseState, signature bls.Signature, flags uint32, cache *bls.Cache) error {
	if flags&FlagDontValidateSignature != 0 {
		return nil
	}
	var ok bool
	if cache != nil {
		ok = cache.AggregateVerify(signature, state.PkmPairs)
	} else {
		ok = bls.AggregateVerify(signature, state.PkmPairs)
	}
	if !ok {
		return verr(ErrBadAggregateSignature, arenaNil, "aggregate signature did not verify")
	}
	return nil
}
