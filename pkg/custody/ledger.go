package custody

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientBalance is returned when a debit exceeds the account's
// balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// vaultAccount holds locked tokens inside the in-memory ledger.
var vaultAccount = common.HexToAddress("0x00000000000000000000000000000000000000ff")

// Ledger is an in-memory token ledger implementing every custody primitive.
// It backs the standalone demo binary and the package tests; production
// deployments plug chain-specific adapters instead.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int
	supply   map[common.Address]*big.Int
	native   map[common.Address]*big.Int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]map[common.Address]*big.Int),
		supply:   make(map[common.Address]*big.Int),
		native:   make(map[common.Address]*big.Int),
	}
}

// SetBalance seeds an account balance, adjusting total supply accordingly.
func (l *Ledger) SetBalance(token, account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.balance(token, account)
	l.setBalance(token, account, new(big.Int).Set(amount))
	diff := new(big.Int).Sub(amount, prev)
	l.supplyOf(token).Add(l.supplyOf(token), diff)
}

// BalanceOf implements BalanceReader.
func (l *Ledger) BalanceOf(token, account common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.balance(token, account))
}

// TotalSupply implements BalanceReader.
func (l *Ledger) TotalSupply(token common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.supplyOf(token))
}

// Lock implements LockUnlock.
func (l *Ledger) Lock(from, token common.Address, amount *big.Int) error {
	return l.transfer(token, from, vaultAccount, amount)
}

// Unlock implements LockUnlock.
func (l *Ledger) Unlock(to, token common.Address, amount *big.Int) error {
	return l.transfer(token, vaultAccount, to, amount)
}

// BurnFrom implements MintBurn.
func (l *Ledger) BurnFrom(from, token common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balance(token, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: burn %s from %s", ErrInsufficientBalance, amount.String(), from.Hex())
	}
	balance.Sub(balance, amount)
	l.supplyOf(token).Sub(l.supplyOf(token), amount)
	return nil
}

// Mint implements MintBurn.
func (l *Ledger) Mint(to, token common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance(token, to).Add(l.balance(token, to), amount)
	l.supplyOf(token).Add(l.supplyOf(token), amount)
	return nil
}

// Collect implements FeeCollector.
func (l *Ledger) Collect(from, to, token common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return l.transfer(token, from, to, amount)
}

// PayTip implements TipTreasury, crediting the operator's native balance.
func (l *Ledger) PayTip(to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.native[to]; !ok {
		l.native[to] = new(big.Int)
	}
	l.native[to].Add(l.native[to], amount)
	return nil
}

// NativeBalance reads an account's accumulated tips.
func (l *Ledger) NativeBalance(account common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.native[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *Ledger) transfer(token, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.balance(token, from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: move %s from %s", ErrInsufficientBalance, amount.String(), from.Hex())
	}
	src.Sub(src, amount)
	l.balance(token, to).Add(l.balance(token, to), amount)
	return nil
}

// balance returns the mutable balance cell. Callers hold l.mu.
func (l *Ledger) balance(token, account common.Address) *big.Int {
	accounts, ok := l.balances[token]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l.balances[token] = accounts
	}
	b, ok := accounts[account]
	if !ok {
		b = new(big.Int)
		accounts[account] = b
	}
	return b
}

func (l *Ledger) setBalance(token, account common.Address, amount *big.Int) {
	accounts, ok := l.balances[token]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l.balances[token] = accounts
	}
	accounts[account] = amount
}

// supplyOf returns the mutable supply cell. Callers hold l.mu.
func (l *Ledger) supplyOf(token common.Address) *big.Int {
	s, ok := l.supply[token]
	if !ok {
		s = new(big.Int)
		l.supply[token] = s
	}
	return s
}
