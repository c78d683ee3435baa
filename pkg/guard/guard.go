// Package guard implements the pluggable pre-transfer validation chain.
// Guard modules are stateful collaborators: a passing check may mutate a
// module's own accounting (a rate limiter debits its window), so the chain
// runs every check first and applies the collected commits only when all of
// them passed. A rejected action leaves no module's state mutated.
package guard

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Commit applies the state mutation a passing check deferred. A nil Commit
// means the check has no state to mutate.
type Commit func()

// Guard is a pluggable validator consulted before account, deposit and
// withdraw actions. Checks must not mutate module state directly; any
// mutation belongs in the returned Commit.
type Guard interface {
	Name() string
	CheckAccount(ctx context.Context, account common.Address) (Commit, error)
	CheckDeposit(ctx context.Context, account common.Address, token common.Address, amount *big.Int) (Commit, error)
	CheckWithdraw(ctx context.Context, account common.Address, token common.Address, amount *big.Int) (Commit, error)
}

// Chain holds ordered guard lists per action class. Modules run in
// registration order; every module in a class is invoked even after an
// earlier one rejected, and any rejection aborts the whole action.
type Chain struct {
	account  []Guard
	deposit  []Guard
	withdraw []Guard
}

// NewChain creates an empty guard chain.
func NewChain() *Chain {
	return &Chain{}
}

// RegisterAccount appends a module to the account-check list.
func (c *Chain) RegisterAccount(g Guard) { c.account = append(c.account, g) }

// RegisterDeposit appends a module to the deposit-check list.
func (c *Chain) RegisterDeposit(g Guard) { c.deposit = append(c.deposit, g) }

// RegisterWithdraw appends a module to the withdraw-check list.
func (c *Chain) RegisterWithdraw(g Guard) { c.withdraw = append(c.withdraw, g) }

// CheckAccount runs the account-class modules for one logical action. The
// returned Commit applies every module's deferred mutation and must be
// called exactly once, after the surrounding transaction cannot fail
// anymore.
func (c *Chain) CheckAccount(ctx context.Context, account common.Address) (Commit, error) {
	return run(c.account, func(g Guard) (Commit, error) {
		return g.CheckAccount(ctx, account)
	})
}

// CheckDeposit runs the deposit-class modules for one logical action.
func (c *Chain) CheckDeposit(ctx context.Context, account, token common.Address, amount *big.Int) (Commit, error) {
	return run(c.deposit, func(g Guard) (Commit, error) {
		return g.CheckDeposit(ctx, account, token, amount)
	})
}

// CheckWithdraw runs the withdraw-class modules for one logical action.
func (c *Chain) CheckWithdraw(ctx context.Context, account, token common.Address, amount *big.Int) (Commit, error) {
	return run(c.withdraw, func(g Guard) (Commit, error) {
		return g.CheckWithdraw(ctx, account, token, amount)
	})
}

func run(guards []Guard, check func(Guard) (Commit, error)) (Commit, error) {
	commits := make([]Commit, 0, len(guards))
	var errs []error
	for _, g := range guards {
		commit, err := check(g)
		if err != nil {
			errs = append(errs, fmt.Errorf("guard %s: %w", g.Name(), err))
			continue
		}
		if commit != nil {
			commits = append(commits, commit)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return func() {
		for _, commit := range commits {
			commit()
		}
	}, nil
}
