// Package fee implements the deposit fee engine: a basis-point rate resolved
// per sender, capped by a protocol-wide maximum.
package fee

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MaxRateBps is the protocol-wide fee cap (1%). Configuration above the cap
// is rejected outright, never silently clamped.
const MaxRateBps = 100

const bpsDenominator = 10000

// ErrRateAboveCap is returned when a configured rate exceeds MaxRateBps.
var ErrRateAboveCap = errors.New("fee rate exceeds protocol cap")

// BalanceFunc reports an account's balance of a token. The engine uses it to
// decide discount eligibility.
type BalanceFunc func(token common.Address, account common.Address) *big.Int

// Config is the fee schedule of one bridge instance.
type Config struct {
	// StandardBps applies to every sender without an override or discount.
	StandardBps uint32
	// DiscountBps applies to senders holding at least DiscountThreshold of
	// DiscountToken.
	DiscountBps       uint32
	DiscountToken     common.Address
	DiscountThreshold *big.Int
	// Recipient receives collected fees.
	Recipient common.Address
}

// AccountOverride is a per-account rate that takes precedence over both the
// standard and discounted rates.
type AccountOverride struct {
	RateBps uint32
	Set     bool
}

// Engine resolves and computes fees. Safe for concurrent reads; rate changes
// are atomic and leave the prior schedule untouched on rejection.
type Engine struct {
	mu        sync.RWMutex
	cfg       Config
	overrides map[common.Address]AccountOverride
	balanceOf BalanceFunc
}

// NewEngine validates the schedule against the cap and builds an engine.
// balanceOf may be nil, which disables the discount tier.
func NewEngine(cfg Config, balanceOf BalanceFunc) (*Engine, error) {
	if err := validateRates(cfg.StandardBps, cfg.DiscountBps); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:       cfg,
		overrides: make(map[common.Address]AccountOverride),
		balanceOf: balanceOf,
	}, nil
}

func validateRates(standardBps, discountBps uint32) error {
	if standardBps > MaxRateBps {
		return fmt.Errorf("%w: standard %d bps > %d bps", ErrRateAboveCap, standardBps, MaxRateBps)
	}
	if discountBps > MaxRateBps {
		return fmt.Errorf("%w: discount %d bps > %d bps", ErrRateAboveCap, discountBps, MaxRateBps)
	}
	return nil
}

// SetRates replaces the standard and discounted rates. On rejection the
// previous schedule stays in effect.
func (e *Engine) SetRates(standardBps, discountBps uint32) error {
	if err := validateRates(standardBps, discountBps); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.StandardBps = standardBps
	e.cfg.DiscountBps = discountBps
	return nil
}

// SetAccountOverride installs a per-account rate. Overrides are bounded by
// the same cap.
func (e *Engine) SetAccountOverride(account common.Address, rateBps uint32) error {
	if rateBps > MaxRateBps {
		return fmt.Errorf("%w: override %d bps > %d bps", ErrRateAboveCap, rateBps, MaxRateBps)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overrides[account] = AccountOverride{RateBps: rateBps, Set: true}
	return nil
}

// ClearAccountOverride removes a per-account rate.
func (e *Engine) ClearAccountOverride(account common.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.overrides, account)
}

// RateFor resolves the rate for a sender: account override, then discount
// tier, then standard.
func (e *Engine) RateFor(sender common.Address) uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if ov, ok := e.overrides[sender]; ok && ov.Set {
		return ov.RateBps
	}
	if e.discountEligible(sender) {
		return e.cfg.DiscountBps
	}
	return e.cfg.StandardBps
}

func (e *Engine) discountEligible(sender common.Address) bool {
	if e.balanceOf == nil || e.cfg.DiscountThreshold == nil || e.cfg.DiscountThreshold.Sign() <= 0 {
		return false
	}
	balance := e.balanceOf(e.cfg.DiscountToken, sender)
	return balance != nil && balance.Cmp(e.cfg.DiscountThreshold) >= 0
}

// FeeFor computes the fee a sender pays on an amount: amount * rate / 10000,
// rounded toward zero.
func (e *Engine) FeeFor(sender common.Address, amount *big.Int) *big.Int {
	rate := e.RateFor(sender)
	fee := new(big.Int).Mul(amount, big.NewInt(int64(rate)))
	return fee.Div(fee, big.NewInt(bpsDenominator))
}

// Recipient returns the fee recipient account.
func (e *Engine) Recipient() common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Recipient
}
