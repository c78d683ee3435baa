package guard

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrBlacklisted is returned for actions touching a listed account.
var ErrBlacklisted = errors.New("account blacklisted")

// Blacklist rejects every action by a listed account. Checks never mutate
// state, so they return a nil Commit.
type Blacklist struct {
	mu     sync.RWMutex
	listed map[common.Address]struct{}
}

// NewBlacklist creates an empty blacklist.
func NewBlacklist() *Blacklist {
	return &Blacklist{listed: make(map[common.Address]struct{})}
}

// Add lists an account.
func (b *Blacklist) Add(account common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listed[account] = struct{}{}
}

// Remove delists an account.
func (b *Blacklist) Remove(account common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listed, account)
}

// IsListed reports whether an account is listed.
func (b *Blacklist) IsListed(account common.Address) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.listed[account]
	return ok
}

// Name implements Guard.
func (b *Blacklist) Name() string { return "blacklist" }

// CheckAccount implements Guard.
func (b *Blacklist) CheckAccount(_ context.Context, account common.Address) (Commit, error) {
	return nil, b.reject(account)
}

// CheckDeposit implements Guard.
func (b *Blacklist) CheckDeposit(_ context.Context, account common.Address, _ common.Address, _ *big.Int) (Commit, error) {
	return nil, b.reject(account)
}

// CheckWithdraw implements Guard.
func (b *Blacklist) CheckWithdraw(_ context.Context, account common.Address, _ common.Address, _ *big.Int) (Commit, error) {
	return nil, b.reject(account)
}

func (b *Blacklist) reject(account common.Address) error {
	if b.IsListed(account) {
		return fmt.Errorf("%w: %s", ErrBlacklisted, account.Hex())
	}
	return nil
}
