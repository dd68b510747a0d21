package consensus

import (
	"fmt"

	"rubin.dev/chia-consensus/arena"
)

// arenaNil is used where a ValidationError must carry some NodePtr
// sentinel but no specific offending node is available (e.g. pure
// byte-level sanitizers that don't see the arena at all).
var arenaNil arena.NodePtr = arena.Nil

// Condition-validation error codes (see SPEC_FULL.md §7). These share
// the ErrorCode type declared in consensus/errors.go and form the
// taxonomy for the spend aggregator, fast-forward transformer, and
// Merkle set.
const (
	ErrInvalidCondition         ErrorCode = "InvalidCondition"
	ErrInvalidParentId          ErrorCode = "InvalidParentId"
	ErrInvalidPuzzleHash        ErrorCode = "InvalidPuzzleHash"
	ErrInvalidPublicKey         ErrorCode = "InvalidPublicKey"
	ErrInvalidMessage           ErrorCode = "InvalidMessage"
	ErrInvalidCoinAmount        ErrorCode = "InvalidCoinAmount"
	ErrCoinAmountExceedsMaximum ErrorCode = "CoinAmountExceedsMaximum"
	ErrCoinAmountNegative       ErrorCode = "CoinAmountNegative"
	ErrInvalidConditionOpcode   ErrorCode = "InvalidConditionOpcode"
	ErrInvalidMessageMode       ErrorCode = "InvalidMessageMode"
	ErrInvalidSoftforkCost      ErrorCode = "InvalidSoftforkCost"
	ErrInvalidCoinId            ErrorCode = "InvalidCoinId"

	ErrAssertMyCoinIdFailed       ErrorCode = "AssertMyCoinIdFailed"
	ErrAssertMyParentIdFailed     ErrorCode = "AssertMyParentIdFailed"
	ErrAssertMyPuzzlehashFailed   ErrorCode = "AssertMyPuzzlehashFailed"
	ErrAssertMyAmountFailed       ErrorCode = "AssertMyAmountFailed"
	ErrAssertMyBirthSecondsFailed ErrorCode = "AssertMyBirthSecondsFailed"
	ErrAssertMyBirthHeightFailed  ErrorCode = "AssertMyBirthHeightFailed"
	ErrAssertEphemeralFailed      ErrorCode = "AssertEphemeralFailed"
	ErrAssertSecondsRelativeFailed ErrorCode = "AssertSecondsRelativeFailed"
	ErrAssertHeightRelativeFailed  ErrorCode = "AssertHeightRelativeFailed"
	ErrAssertSecondsAbsoluteFailed ErrorCode = "AssertSecondsAbsoluteFailed"
	ErrAssertHeightAbsoluteFailed  ErrorCode = "AssertHeightAbsoluteFailed"
	ErrAssertBeforeSecondsRelativeFailed ErrorCode = "AssertBeforeSecondsRelativeFailed"
	ErrAssertBeforeHeightRelativeFailed  ErrorCode = "AssertBeforeHeightRelativeFailed"
	ErrAssertBeforeSecondsAbsoluteFailed ErrorCode = "AssertBeforeSecondsAbsoluteFailed"
	ErrAssertBeforeHeightAbsoluteFailed  ErrorCode = "AssertBeforeHeightAbsoluteFailed"
	ErrEphemeralRelativeCondition  ErrorCode = "EphemeralRelativeCondition"

	ErrImpossibleSecondsRelativeConstraints ErrorCode = "ImpossibleSecondsRelativeConstraints"
	ErrImpossibleHeightRelativeConstraints  ErrorCode = "ImpossibleHeightRelativeConstraints"
	ErrImpossibleSecondsAbsoluteConstraints ErrorCode = "ImpossibleSecondsAbsoluteConstraints"
	ErrImpossibleHeightAbsoluteConstraints  ErrorCode = "ImpossibleHeightAbsoluteConstraints"

	ErrCostExceeded        ErrorCode = "CostExceeded"
	ErrTooManyAnnouncements ErrorCode = "TooManyAnnouncements"

	ErrDoubleSpend               ErrorCode = "DoubleSpend"
	ErrDuplicateOutput           ErrorCode = "DuplicateOutput"
	ErrMintingCoin               ErrorCode = "MintingCoin"
	ErrReserveFeeConditionFailed ErrorCode = "ReserveFeeConditionFailed"
	ErrMessageNotSentOrReceived  ErrorCode = "MessageNotSentOrReceived"
	ErrBadAggregateSignature     ErrorCode = "BadAggregateSignature"
	ErrAssertConcurrentSpendFailed  ErrorCode = "AssertConcurrentSpendFailed"
	ErrAssertConcurrentPuzzleFailed ErrorCode = "AssertConcurrentPuzzleFailed"
	ErrAssertCoinAnnouncementFailed   ErrorCode = "AssertCoinAnnouncementFailed"
	ErrAssertPuzzleAnnouncementFailed ErrorCode = "AssertPuzzleAnnouncementFailed"

	ErrCoinAmountEven         ErrorCode = "CoinAmountEven"
	ErrPuzzleHashMismatch     ErrorCode = "PuzzleHashMismatch"
	ErrInnerPuzzleHashMismatch ErrorCode = "InnerPuzzleHashMismatch"
	ErrCoinAmountMismatch     ErrorCode = "CoinAmountMismatch"
	ErrParentCoinMismatch     ErrorCode = "ParentCoinMismatch"
	ErrCoinMismatch           ErrorCode = "CoinMismatch"
	ErrNotSingletonModHash    ErrorCode = "NotSingletonModHash"

	ErrGeneratorRuntimeError ErrorCode = "GeneratorRuntimeError"
	ErrSetError              ErrorCode = "SetError"
)

// ValidationError is the error type returned by every function in the
// condition-parsing / spend-aggregation / fast-forward / merkle-set
// surface of this package. It generalizes the plain ErrorCode+message
// pattern already used by TxError (consensus/errors.go) with the one
// thing that taxonomy never needed: the offending arena node, carried
// for diagnostics exactly as the Rust source's ValidationErr(NodePtr,
// ErrorCode) does.
type ValidationError struct {
	Code ErrorCode
	Msg  string
	Node arena.NodePtr
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func verr(code ErrorCode, node arena.NodePtr, msg string) error {
	return &ValidationError{Code: code, Msg: msg, Node: node}
}

func verrf(code ErrorCode, node arena.NodePtr, format string, args ...any) error {
	return verr(code, node, fmt.Sprintf(format, args...))
}
