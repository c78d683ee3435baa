package bridge

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// AddOperator grants the operator role.
func (b *Bridge) AddOperator(account common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.operators[account] = struct{}{}
}

// RemoveOperator revokes the operator role.
func (b *Bridge) RemoveOperator(account common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.operators, account)
}

// IsOperator reports whether an account holds the operator role.
func (b *Bridge) IsOperator(account common.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.operators[account]
	return ok
}

// AddCanceler grants the canceler role.
func (b *Bridge) AddCanceler(account common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelers[account] = struct{}{}
}

// RemoveCanceler revokes the canceler role.
func (b *Bridge) RemoveCanceler(account common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.cancelers, account)
}

// IsCanceler reports whether an account holds the canceler role.
func (b *Bridge) IsCanceler(account common.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.cancelers[account]
	return ok
}

// Operators lists operator accounts, ordered.
func (b *Bridge) Operators() []common.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedAccounts(b.operators)
}

// Cancelers lists canceler accounts, ordered.
func (b *Bridge) Cancelers() []common.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedAccounts(b.cancelers)
}

func sortedAccounts(set map[common.Address]struct{}) []common.Address {
	out := make([]common.Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// requireOperator and requireCanceler run under b.mu.
func (b *Bridge) requireOperator(account common.Address) error {
	if _, ok := b.operators[account]; !ok {
		return ErrNotOperator
	}
	return nil
}

func (b *Bridge) requireCanceler(account common.Address) error {
	if _, ok := b.cancelers[account]; !ok {
		return ErrNotCanceler
	}
	return nil
}
