package custody

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrBalanceDelta signals that a custody call did not produce the exact
// expected balance change. This marks a non-conforming token
// (fee-on-transfer, rebasing); the transaction is fatal and must never be
// retried blindly.
var ErrBalanceDelta = errors.New("custody balance delta mismatch")

// Strict wraps custody adapters with exact balance-delta verification. Every
// primitive is checked against the one account whose balance it must change
// by exactly the requested amount.
type Strict struct {
	lockUnlock LockUnlock
	mintBurn   MintBurn
	balances   BalanceReader
}

// NewStrict builds the verifying wrapper. Either adapter may be nil when the
// instance only carries tokens of the other custody kind.
func NewStrict(lockUnlock LockUnlock, mintBurn MintBurn, balances BalanceReader) *Strict {
	return &Strict{lockUnlock: lockUnlock, mintBurn: mintBurn, balances: balances}
}

// Lock implements LockUnlock; the depositor's balance must drop by exactly
// amount.
func (s *Strict) Lock(from common.Address, token common.Address, amount *big.Int) error {
	neg := new(big.Int).Neg(amount)
	return s.verified("lock", token, from, neg, func() error {
		return s.lockUnlock.Lock(from, token, amount)
	})
}

// Unlock implements LockUnlock; the recipient's balance must rise by exactly
// amount.
func (s *Strict) Unlock(to common.Address, token common.Address, amount *big.Int) error {
	return s.verified("unlock", token, to, amount, func() error {
		return s.lockUnlock.Unlock(to, token, amount)
	})
}

// BurnFrom implements MintBurn; the depositor's balance must drop by exactly
// amount.
func (s *Strict) BurnFrom(from common.Address, token common.Address, amount *big.Int) error {
	neg := new(big.Int).Neg(amount)
	return s.verified("burn", token, from, neg, func() error {
		return s.mintBurn.BurnFrom(from, token, amount)
	})
}

// Mint implements MintBurn; the recipient's balance must rise by exactly
// amount.
func (s *Strict) Mint(to common.Address, token common.Address, amount *big.Int) error {
	return s.verified("mint", token, to, amount, func() error {
		return s.mintBurn.Mint(to, token, amount)
	})
}

func (s *Strict) verified(op string, token, account common.Address, expectedDelta *big.Int, call func() error) error {
	before := s.balances.BalanceOf(token, account)
	if err := call(); err != nil {
		return err
	}
	after := s.balances.BalanceOf(token, account)

	delta := new(big.Int).Sub(after, before)
	if delta.Cmp(expectedDelta) != 0 {
		return fmt.Errorf("%w: %s of %s token %s moved %s, expected %s",
			ErrBalanceDelta, op, account.Hex(), token.Hex(), delta.String(), expectedDelta.String())
	}
	return nil
}
