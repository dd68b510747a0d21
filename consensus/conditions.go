package consensus

import (
	"rubin.dev/chia-consensus/arena"
)

// Condition-parsing flags, OR'd into the flags word threaded through
// every RunBlockGenerator* call (SPEC_FULL.md §4.5/§6).
const (
	FlagStrictArgsCount uint32 = 1 << iota
	FlagNoUnknownConds
	FlagDontValidateSignature
	FlagMempoolMode
	FlagAllowBackrefs
)

// ConditionKind tags the variant held by a Condition. Rust models this
// as an enum with per-variant payloads; Go has no tagged union, so
// Condition is one flat struct with a Kind selector and the union of
// every variant's fields.
type ConditionKind uint8

const (
	CondAggSigUnsafe ConditionKind = iota
	CondAggSigMe
	CondAggSigParent
	CondAggSigPuzzle
	CondAggSigAmount
	CondAggSigPuzzleAmount
	CondAggSigParentAmount
	CondAggSigParentPuzzle
	CondCreateCoin
	CondReserveFee
	CondCreateCoinAnnouncement
	CondCreatePuzzleAnnouncement
	CondAssertCoinAnnouncement
	CondAssertPuzzleAnnouncement
	CondAssertConcurrentSpend
	CondAssertConcurrentPuzzle
	CondAssertMyCoinID
	CondAssertMyParentID
	CondAssertMyPuzzlehash
	CondAssertMyAmount
	CondAssertMyBirthSeconds
	CondAssertMyBirthHeight
	CondAssertSecondsRelative
	CondAssertSecondsAbsolute
	CondAssertHeightRelative
	CondAssertHeightAbsolute
	CondAssertBeforeSecondsRelative
	CondAssertBeforeSecondsAbsolute
	CondAssertBeforeHeightRelative
	CondAssertBeforeHeightAbsolute
	CondAssertEphemeral
	CondSoftfork
	CondSendMessage
	CondReceiveMessage
	CondSkip
	CondSkipRelativeCondition
)

// Condition is one parsed condition argument list, tagged by Kind.
// Only the fields relevant to Kind are populated; see parse_args in
// the grounding source for the authoritative per-opcode field list.
type Condition struct {
	Kind ConditionKind

	PubKey arena.NodePtr
	Msg    arena.NodePtr

	PuzzleHash arena.NodePtr
	Hint       arena.NodePtr
	Amount     uint64

	HashArg arena.NodePtr
	U32     uint32

	Cost uint64

	MessageMode uint8
	SpendID     SpendID
}

func checkNil(a *arena.Arena, node arena.NodePtr) error {
	if node != a.Nil() {
		return verr(ErrInvalidCondition, node, "expected nil terminator")
	}
	return nil
}

func firstArg(a *arena.Arena, c arena.NodePtr) (arena.NodePtr, error) {
	f, ok := a.First(c)
	if !ok {
		return 0, verr(ErrInvalidCondition, c, "missing argument")
	}
	return f, nil
}

func restArgs(a *arena.Arena, c arena.NodePtr) (arena.NodePtr, error) {
	r, ok := a.Rest(c)
	if !ok {
		return 0, verr(ErrInvalidCondition, c, "missing argument")
	}
	return r, nil
}

func maybeCheckArgsTerminator(a *arena.Arena, arg arena.NodePtr, flags uint32) error {
	if flags&FlagStrictArgsCount == 0 {
		return nil
	}
	rest, err := restArgs(a, arg)
	if err != nil {
		return err
	}
	return checkNil(a, rest)
}

func sanitizeAtom(a *arena.Arena, node arena.NodePtr, size int, code ErrorCode) ([]byte, error) {
	if a.IsPair(node) {
		return nil, verr(code, node, "expected an atom, found a pair")
	}
	buf := a.Atom(node)
	if len(buf) != size {
		return nil, verrf(code, node, "expected a %d-byte atom, got %d", size, len(buf))
	}
	return buf, nil
}

func sanitizeHash(a *arena.Arena, node arena.NodePtr, code ErrorCode) (Hash, error) {
	buf, err := sanitizeAtom(a, node, 32, code)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], buf)
	return h, nil
}

func sanitizeAnnounceMsg(a *arena.Arena, node arena.NodePtr, code ErrorCode) (arena.NodePtr, error) {
	if a.IsPair(node) {
		return 0, verr(code, node, "expected an atom, found a pair")
	}
	if a.AtomLen(node) > 1024 {
		return 0, verr(code, node, "announcement message exceeds 1024 bytes")
	}
	return node, nil
}

func parseAmount(a *arena.Arena, node arena.NodePtr, code ErrorCode) (uint64, error) {
	if a.IsPair(node) {
		return 0, verr(code, node, "expected an atom, found a pair")
	}
	su, err := SanitizeUint(a.Atom(node), 8)
	if err != nil {
		return 0, err
	}
	switch su.Kind {
	case SanitizedNegativeOverflow:
		return 0, verr(code, node, "amount is negative")
	case SanitizedPositiveOverflow:
		return 0, verr(code, node, "amount exceeds 8-byte range")
	default:
		return su.Value, nil
	}
}

func sanitizeMessageMode(a *arena.Arena, node arena.NodePtr) (uint8, error) {
	buf, err := sanitizeAtom(a, node, 1, ErrInvalidMessageMode)
	if err != nil {
		return 0, err
	}
	if buf[0] >= 64 {
		return 0, verr(ErrInvalidMessageMode, node, "message mode must fit in 6 bits")
	}
	return buf[0], nil
}

// ParseArgs validates and decodes the argument list c for the given
// opcode, honoring FlagStrictArgsCount / FlagNoUnknownConds exactly as
// parse_args does for each condition, translated opcode-by-opcode.
func ParseArgs(a *arena.Arena, c arena.NodePtr, op ConditionOpcode, flags uint32) (Condition, error) {
	switch op {
	case OpAggSigUnsafe, OpAggSigMe, OpAggSigParent, OpAggSigPuzzle, OpAggSigAmount,
		OpAggSigPuzzleAmount, OpAggSigParentAmount, OpAggSigParentPuzzle:
		pk, err := firstArg(a, c)
		if err != nil {
			return Condition{}, err
		}
		if _, err := sanitizeAtom(a, pk, 48, ErrInvalidPublicKey); err != nil {
			return Condition{}, err
		}
		c2, err := restArgs(a, c)
		if err != nil {
			return Condition{}, err
		}
		msgNode, err := firstArg(a, c2)
		if err != nil {
			return Condition{}, err
		}
		msg, err := sanitizeAnnounceMsg(a, msgNode, ErrInvalidMessage)
		if err != nil {
			return Condition{}, err
		}
		if flags&FlagStrictArgsCount != 0 {
			rest, err := restArgs(a, c2)
			if err != nil {
				return Condition{}, err
			}
			if err := checkNil(a, rest); err != nil {
				return Condition{}, err
			}
		}
		kind := map[ConditionOpcode]ConditionKind{
			OpAggSigUnsafe: CondAggSigUnsafe, OpAggSigMe: CondAggSigMe,
			OpAggSigParent: CondAggSigParent, OpAggSigPuzzle: CondAggSigPuzzle,
			OpAggSigAmount: CondAggSigAmount, OpAggSigPuzzleAmount: CondAggSigPuzzleAmount,
			OpAggSigParentAmount: CondAggSigParentAmount, OpAggSigParentPuzzle: CondAggSigParentPuzzle,
		}[op]
		return Condition{Kind: kind, PubKey: pk, Msg: msg}, nil

	case OpCreateCoin:
		phNode, err := firstArg(a, c)
		if err != nil {
			return Condition{}, err
		}
		ph, err := sanitizeAtom(a, phNode, 32, ErrInvalidPuzzleHash)
		if err != nil {
			return Condition{}, err
		}
		_ = ph
		c2, err := restArgs(a, c)
		if err != nil {
			return Condition{}, err
		}
		amtNode, err := firstArg(a, c2)
		if err != nil {
			return Condition{}, err
		}
		su, err := SanitizeUint(a.Atom(amtNode), 8)
		if err != nil {
			return Condition{}, err
		}
		var amount uint64
		switch su.Kind {
		case SanitizedPositiveOverflow:
			return Condition{}, verr(ErrCoinAmountExceedsMaximum, amtNode, "coin amount exceeds maximum")
		case SanitizedNegativeOverflow:
			return Condition{}, verr(ErrCoinAmountNegative, amtNode, "coin amount is negative")
		default:
			amount = su.Value
		}

		c3, err := restArgs(a, c2)
		if err != nil {
			return Condition{}, err
		}
		if params, ok := a.First(c3); ok {
			if err := maybeCheckArgsTerminator(a, c3, flags); err != nil {
				return Condition{}, err
			}
			if param, ok2 := a.First(params); ok2 {
				if a.IsAtom(param) && a.AtomLen(param) <= 32 {
					return Condition{Kind: CondCreateCoin, PuzzleHash: phNode, Amount: amount, Hint: param}, nil
				}
			}
		} else if flags&FlagStrictArgsCount != 0 {
			if err := checkNil(a, c3); err != nil {
				return Condition{}, err
			}
		}
		return Condition{Kind: CondCreateCoin, PuzzleHash: phNode, Amount: amount, Hint: a.Nil()}, nil

	case OpSoftfork:
		if flags&FlagNoUnknownConds != 0 {
			return Condition{}, verr(ErrInvalidConditionOpcode, c, "softfork condition rejected: no unknown conditions allowed")
		}
		node, err := firstArg(a, c)
		if err != nil {
			return Condition{}, err
		}
		su, err := SanitizeUint(a.Atom(node), 4)
		if err != nil {
			return Condition{}, err
		}
		if su.Kind != SanitizedOk {
			return Condition{}, verr(ErrInvalidSoftforkCost, c, "softfork cost argument out of range")
		}
		return Condition{Kind: CondSoftfork, Cost: su.Value * SoftforkCostUnit}, nil

	case OpReserveFee:
		if err := maybeCheckArgsTerminator(a, c, flags); err != nil {
			return Condition{}, err
		}
		node, err := firstArg(a, c)
		if err != nil {
			return Condition{}, err
		}
		fee, err := parseAmount(a, node, ErrReserveFeeConditionFailed)
		if err != nil {
			return Condition{}, err
		}
		return Condition{Kind: CondReserveFee, Amount: fee}, nil

	case OpCreateCoinAnnouncement:
		return parseAnnounceMsgCondition(a, c, flags, CondCreateCoinAnnouncement, ErrInvalidCondition)
	case OpCreatePuzzleAnnouncement:
		return parseAnnounceMsgCondition(a, c, flags, CondCreatePuzzleAnnouncement, ErrInvalidCondition)

	case OpAssertCoinAnnouncement:
		return parseHashArgCondition(a, c, flags, CondAssertCoinAnnouncement, ErrAssertCoinAnnouncementFailed)
	case OpAssertPuzzleAnnouncement:
		return parseHashArgCondition(a, c, flags, CondAssertPuzzleAnnouncement, ErrAssertPuzzleAnnouncementFailed)
	case OpAssertConcurrentSpend:
		return parseHashArgCondition(a, c, flags, CondAssertConcurrentSpend, ErrAssertConcurrentSpendFailed)
	case OpAssertConcurrentPuzzle:
		return parseHashArgCondition(a, c, flags, CondAssertConcurrentPuzzle, ErrAssertConcurrentPuzzleFailed)
	case OpAssertMyCoinID:
		return parseHashArgCondition(a, c, flags, CondAssertMyCoinID, ErrAssertMyCoinIdFailed)
	case OpAssertMyParentID:
		return parseHashArgCondition(a, c, flags, CondAssertMyParentID, ErrAssertMyParentIdFailed)
	case OpAssertMyPuzzlehash:
		return parseHashArgCondition(a, c, flags, CondAssertMyPuzzlehash, ErrAssertMyPuzzlehashFailed)

	case OpAssertMyAmount:
		if err := maybeCheckArgsTerminator(a, c, flags); err != nil {
			return Condition{}, err
		}
		node, err := firstArg(a, c)
		if err != nil {
			return Condition{}, err
		}
		amount, err := parseAmount(a, node, ErrAssertMyAmountFailed)
		if err != nil {
			return Condition{}, err
		}
		return Condition{Kind: CondAssertMyAmount, Amount: amount}, nil

	case OpAssertMyBirthSeconds:
		return parseUintCondition(a, c, flags, CondAssertMyBirthSeconds, 8, ErrAssertMyBirthSecondsFailed, uintModeHardFail)
	case OpAssertMyBirthHeight:
		return parseUintCondition(a, c, flags, CondAssertMyBirthHeight, 4, ErrAssertMyBirthHeightFailed, uintModeHardFail)

	case OpAssertEphemeral:
		if flags&FlagStrictArgsCount != 0 {
			if err := checkNil(a, c); err != nil {
				return Condition{}, err
			}
		}
		return Condition{Kind: CondAssertEphemeral}, nil

	case OpAssertSecondsRelative:
		return parseUintCondition(a, c, flags, CondAssertSecondsRelative, 8, ErrAssertSecondsRelativeFailed, uintModeNegSkipsRelative)
	case OpAssertHeightRelative:
		return parseUintCondition(a, c, flags, CondAssertHeightRelative, 4, ErrAssertHeightRelativeFailed, uintModeNegSkipsRelative)
	case OpAssertSecondsAbsolute:
		return parseUintCondition(a, c, flags, CondAssertSecondsAbsolute, 8, ErrAssertSecondsAbsoluteFailed, uintModeNegSkips)
	case OpAssertHeightAbsolute:
		return parseUintCondition(a, c, flags, CondAssertHeightAbsolute, 4, ErrAssertHeightAbsoluteFailed, uintModeNegSkips)

	case OpAssertBeforeSecondsRelative:
		return parseUintCondition(a, c, flags, CondAssertBeforeSecondsRelative, 8, ErrAssertBeforeSecondsRelativeFailed, uintModePosSkipsRelative)
	case OpAssertBeforeHeightRelative:
		return parseUintCondition(a, c, flags, CondAssertBeforeHeightRelative, 4, ErrAssertBeforeHeightRelativeFailed, uintModePosSkipsRelative)
	case OpAssertBeforeSecondsAbsolute:
		return parseUintCondition(a, c, flags, CondAssertBeforeSecondsAbsolute, 8, ErrAssertBeforeSecondsAbsoluteFailed, uintModePosSkips)
	case OpAssertBeforeHeightAbsolute:
		return parseUintCondition(a, c, flags, CondAssertBeforeHeightAbsolute, 4, ErrAssertBeforeHeightAbsoluteFailed, uintModePosSkips)

	case OpSendMessage:
		modeNode, err := firstArg(a, c)
		if err != nil {
			return Condition{}, err
		}
		mode, err := sanitizeMessageMode(a, modeNode)
		if err != nil {
			return Condition{}, err
		}
		c2, err := restArgs(a, c)
		if err != nil {
			return Condition{}, err
		}
		msgNode, err := firstArg(a, c2)
		if err != nil {
			return Condition{}, err
		}
		msg, err := sanitizeAnnounceMsg(a, msgNode, ErrInvalidMessage)
		if err != nil {
			return Condition{}, err
		}
		c3, err := restArgs(a, c2)
		if err != nil {
			return Condition{}, err
		}
		dst, err := ParseSpendID(a, &c3, mode&0b111)
		if err != nil {
			return Condition{}, err
		}
		if flags&FlagStrictArgsCount != 0 {
			if err := checkNil(a, c3); err != nil {
				return Condition{}, err
			}
		}
		return Condition{Kind: CondSendMessage, MessageMode: (mode >> 3) & 0b111, SpendID: dst, Msg: msg}, nil

	case OpReceiveMessage:
		modeNode, err := firstArg(a, c)
		if err != nil {
			return Condition{}, err
		}
		mode, err := sanitizeMessageMode(a, modeNode)
		if err != nil {
			return Condition{}, err
		}
		c2, err := restArgs(a, c)
		if err != nil {
			return Condition{}, err
		}
		msgNode, err := firstArg(a, c2)
		if err != nil {
			return Condition{}, err
		}
		msg, err := sanitizeAnnounceMsg(a, msgNode, ErrInvalidMessage)
		if err != nil {
			return Condition{}, err
		}
		c3, err := restArgs(a, c2)
		if err != nil {
			return Condition{}, err
		}
		src, err := ParseSpendID(a, &c3, (mode>>3)&0b111)
		if err != nil {
			return Condition{}, err
		}
		if flags&FlagStrictArgsCount != 0 {
			if err := checkNil(a, c3); err != nil {
				return Condition{}, err
			}
		}
		return Condition{Kind: CondReceiveMessage, MessageMode: mode & 0b111, SpendID: src, Msg: msg}, nil

	case OpRemark:
		return Condition{Kind: CondSkip}, nil

	default:
		if op >= 256 && op <= 65535 {
			if flags&FlagNoUnknownConds != 0 {
				return Condition{}, verr(ErrInvalidConditionOpcode, c, "unknown condition rejected: no unknown conditions allowed")
			}
			return Condition{Kind: CondSoftfork, Cost: ComputeUnknownConditionCost(op)}, nil
		}
		return Condition{}, verrf(ErrInvalidConditionOpcode, c, "unrecognized opcode %d", op)
	}
}

func parseAnnounceMsgCondition(a *arena.Arena, c arena.NodePtr, flags uint32, kind ConditionKind, code ErrorCode) (Condition, error) {
	if err := maybeCheckArgsTerminator(a, c, flags); err != nil {
		return Condition{}, err
	}
	node, err := firstArg(a, c)
	if err != nil {
		return Condition{}, err
	}
	msg, err := sanitizeAnnounceMsg(a, node, code)
	if err != nil {
		return Condition{}, err
	}
	return Condition{Kind: kind, Msg: msg}, nil
}

func parseHashArgCondition(a *arena.Arena, c arena.NodePtr, flags uint32, kind ConditionKind, code ErrorCode) (Condition, error) {
	if err := maybeCheckArgsTerminator(a, c, flags); err != nil {
		return Condition{}, err
	}
	node, err := firstArg(a, c)
	if err != nil {
		return Condition{}, err
	}
	if _, err := sanitizeAtom(a, node, 32, code); err != nil {
		return Condition{}, err
	}
	return Condition{Kind: kind, HashArg: node}, nil
}

// uintCondMode selects how out-of-width sanitizer outcomes are turned
// into a condition for the various ASSERT_*_(RELATIVE|ABSOLUTE) /
// ASSERT_BEFORE_*_(RELATIVE|ABSOLUTE) families: each family differs in
// whether positive/negative overflow is a hard failure, an unconditional
// Skip, or a SkipRelativeCondition (relative conditions are simply
// dropped once already-satisfied rather than failing the spend).
type uintCondMode uint8

const (
	uintModeHardFail uintCondMode = iota
	uintModeNegSkipsRelative
	uintModeNegSkips
	uintModePosSkipsRelative
	uintModePosSkips
)

func parseUintCondition(a *arena.Arena, c arena.NodePtr, flags uint32, kind ConditionKind, width int, code ErrorCode, mode uintCondMode) (Condition, error) {
	if err := maybeCheckArgsTerminator(a, c, flags); err != nil {
		return Condition{}, err
	}
	node, err := firstArg(a, c)
	if err != nil {
		return Condition{}, err
	}
	if a.IsPair(node) {
		return Condition{}, verr(code, node, "expected an atom, found a pair")
	}
	su, err := SanitizeUint(a.Atom(node), width)
	if err != nil {
		return Condition{}, err
	}
	switch mode {
	case uintModeHardFail:
		if su.Kind != SanitizedOk {
			return Condition{}, verr(code, node, "value out of range")
		}
	case uintModeNegSkipsRelative:
		switch su.Kind {
		case SanitizedPositiveOverflow:
			return Condition{}, verr(code, node, "value out of range")
		case SanitizedNegativeOverflow:
			return Condition{Kind: CondSkipRelativeCondition}, nil
		}
	case uintModeNegSkips:
		switch su.Kind {
		case SanitizedPositiveOverflow:
			return Condition{}, verr(code, node, "value out of range")
		case SanitizedNegativeOverflow:
			return Condition{Kind: CondSkip}, nil
		}
	case uintModePosSkipsRelative:
		switch su.Kind {
		case SanitizedPositiveOverflow:
			return Condition{Kind: CondSkipRelativeCondition}, nil
		case SanitizedNegativeOverflow:
			return Condition{}, verr(code, node, "value out of range")
		}
	case uintModePosSkips:
		switch su.Kind {
		case SanitizedPositiveOverflow:
			return Condition{Kind: CondSkip}, nil
		case SanitizedNegativeOverflow:
			return Condition{}, verr(code, node, "value out of range")
		}
	}
	c2 := Condition{Kind: kind}
	if width == 4 {
		c2.U32 = uint32(su.Value)
	} else {
		c2.Amount = su.Value
	}
	return c2, nil
}
