package bridge

import "errors"

// Configuration errors: rejected before any state change.
var (
	ErrChainNotRegistered = errors.New("chain not registered")
	ErrTokenNotRegistered = errors.New("token not registered")
	ErrSameChain          = errors.New("destination chain is this chain")
	ErrNonPositiveAmount  = errors.New("amount must be positive")
)

// State-conflict errors: the operation clashes with an existing record.
var (
	ErrDuplicateTransfer  = errors.New("transfer already recorded")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrNonceUsed          = errors.New("source nonce already used")
	ErrAlreadyApproved    = errors.New("withdrawal already approved")
	ErrNotApproved        = errors.New("withdrawal not approved")
	ErrAlreadyCancelled   = errors.New("withdrawal already cancelled")
	ErrNotCancelled       = errors.New("withdrawal not cancelled")
	ErrCancelledState     = errors.New("withdrawal is cancelled")
	ErrAlreadyExecuted    = errors.New("withdrawal already executed")
)

// Timing errors: rejected now, retryable later.
var (
	ErrCancelWindowActive  = errors.New("cancel window still active")
	ErrCancelWindowElapsed = errors.New("cancel window elapsed")
)

// Role errors.
var (
	ErrNotOperator = errors.New("caller is not an operator")
	ErrNotCanceler = errors.New("caller is not a canceler")
)

// ErrTipPayout wraps a failed operator gas-tip transfer. An operator unable
// to receive funds must not be allowed to approve transfers.
var ErrTipPayout = errors.New("operator tip payout failed")

// ErrGuardRejected wraps guard-chain rejections; the individual module
// errors stay reachable through errors.Is/As.
var ErrGuardRejected = errors.New("guard rejected")

// ErrCustodyFailure wraps failed custody calls.
var ErrCustodyFailure = errors.New("custody operation failed")
