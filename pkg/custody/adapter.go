// Package custody defines the token-custody primitives the bridge invokes
// after the state machine and guard chain approve an operation, plus a
// strict wrapper that verifies every call produced the exact expected
// balance delta.
package custody

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LockUnlock moves tokens into and out of a bridge vault.
type LockUnlock interface {
	Lock(from common.Address, token common.Address, amount *big.Int) error
	Unlock(to common.Address, token common.Address, amount *big.Int) error
}

// MintBurn destroys tokens on deposit and recreates them on withdrawal.
type MintBurn interface {
	BurnFrom(from common.Address, token common.Address, amount *big.Int) error
	Mint(to common.Address, token common.Address, amount *big.Int) error
}

// BalanceReader reads token balances and supply.
type BalanceReader interface {
	BalanceOf(token common.Address, account common.Address) *big.Int
	TotalSupply(token common.Address) *big.Int
}

// FeeCollector moves a deposit fee from the depositor to the fee recipient.
type FeeCollector interface {
	Collect(from common.Address, to common.Address, token common.Address, amount *big.Int) error
}

// TipTreasury pays the operator gas tip earmarked at withdrawal submission.
// A failing payout must abort the approval it belongs to.
type TipTreasury interface {
	PayTip(to common.Address, amount *big.Int) error
}
