package transfer

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DepositRecord is the source-side record of a completed deposit. Created
// exactly once per successful deposit and immutable thereafter; keyed by the
// transfer identifier.
type DepositRecord struct {
	DestChain   ChainCode
	SrcAccount  Account
	DestAccount Account
	Token       common.Address
	// Amount is the net amount, after the fee was deducted. This is the
	// value that entered the transfer identifier.
	Amount    *big.Int
	Nonce     uint64
	Fee       *big.Int
	CreatedAt time.Time
}

// PendingWithdrawal is the destination-side record of a submitted withdrawal.
// Records are never deleted; Executed is terminal.
type PendingWithdrawal struct {
	SrcChain    ChainCode
	SrcAccount  Account
	DestAccount Account
	Token       common.Address
	Recipient   common.Address
	// Amount is in source-chain decimals. Normalization to local decimals
	// happens once, at execution, so the identifier matches the source side.
	Amount        *big.Int
	Nonce         uint64
	SrcDecimals   uint8
	LocalDecimals uint8
	// GasTip is earmarked for the operator that approves the withdrawal.
	GasTip      *big.Int
	SubmittedAt time.Time
	ApprovedAt  time.Time
	Approved    bool
	Cancelled   bool
	Executed    bool
}

// Params is the read surface the off-chain watcher agents poll.
type Params struct {
	ChainCode    ChainCode
	CancelWindow time.Duration
	// NextNonce is the nonce the next deposit on this instance will take.
	NextNonce uint64
}
