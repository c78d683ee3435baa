package guard

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrRateLimited is returned when an amount would push a token's rolling
// window over its limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// DefaultWindow is the rolling window duration.
const DefaultWindow = 24 * time.Hour

// DefaultSupplyFractionBps is the default limit as a fraction of the token's
// live total supply (5%).
const DefaultSupplyFractionBps = 500

const bpsDenominator = 10000

// SupplyFunc reports a token's live total supply. The computed default limit
// moves with supply; deployments wanting a static cap set a per-token
// override instead.
type SupplyFunc func(token common.Address) *big.Int

// RateLimiterConfig tunes a RateLimiter.
type RateLimiterConfig struct {
	// Window is the rolling window duration; zero means DefaultWindow.
	Window time.Duration
	// SupplyFractionBps sets the default limit as bps of live total supply;
	// zero means DefaultSupplyFractionBps.
	SupplyFractionBps uint32
	// FallbackLimit applies when the supply is unknown or zero.
	FallbackLimit *big.Int
}

type window struct {
	start time.Time
	used  *big.Int
}

// RateLimiter caps the amount moved per token inside a rolling window. The
// window start is set on first use, not at epoch zero; once a full window
// has elapsed the counter resets before the new amount is added.
type RateLimiter struct {
	mu        sync.Mutex
	cfg       RateLimiterConfig
	supplyOf  SupplyFunc
	overrides map[common.Address]*big.Int
	windows   map[common.Address]*window
	now       func() time.Time
}

// NewRateLimiter builds a rate limiter. supplyOf may be nil, in which case
// the fallback limit always applies.
func NewRateLimiter(cfg RateLimiterConfig, supplyOf SupplyFunc) *RateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.SupplyFractionBps == 0 {
		cfg.SupplyFractionBps = DefaultSupplyFractionBps
	}
	if cfg.FallbackLimit == nil {
		cfg.FallbackLimit = big.NewInt(0)
	}
	return &RateLimiter{
		cfg:       cfg,
		supplyOf:  supplyOf,
		overrides: make(map[common.Address]*big.Int),
		windows:   make(map[common.Address]*window),
		now:       time.Now,
	}
}

// SetClock overrides the limiter's time source.
func (r *RateLimiter) SetClock(now func() time.Time) { r.now = now }

// SetLimit installs a fixed per-token limit overriding the supply-derived
// default.
func (r *RateLimiter) SetLimit(token common.Address, limit *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[token] = new(big.Int).Set(limit)
}

// Name implements Guard.
func (r *RateLimiter) Name() string { return "rate_limiter" }

// CheckAccount implements Guard; the rate limiter does not gate plain
// account actions.
func (r *RateLimiter) CheckAccount(context.Context, common.Address) (Commit, error) {
	return nil, nil
}

// CheckDeposit implements Guard.
func (r *RateLimiter) CheckDeposit(_ context.Context, _ common.Address, token common.Address, amount *big.Int) (Commit, error) {
	return r.consume(token, amount)
}

// CheckWithdraw implements Guard.
func (r *RateLimiter) CheckWithdraw(_ context.Context, _ common.Address, token common.Address, amount *big.Int) (Commit, error) {
	return r.consume(token, amount)
}

func (r *RateLimiter) consume(token common.Address, amount *big.Int) (Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	start := now
	used := new(big.Int)

	if w, ok := r.windows[token]; ok && now.Before(w.start.Add(r.cfg.Window)) {
		// Window still open: accumulate.
		start = w.start
		used.Set(w.used)
	}
	used.Add(used, amount)

	limit := r.limitFor(token)
	if used.Cmp(limit) > 0 {
		return nil, fmt.Errorf("%w: token %s used %s of %s in window",
			ErrRateLimited, token.Hex(), used.String(), limit.String())
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.windows[token] = &window{start: start, used: used}
	}, nil
}

// limitFor resolves the effective limit: per-token override, else a fraction
// of live total supply, else the fallback. Callers hold r.mu.
func (r *RateLimiter) limitFor(token common.Address) *big.Int {
	if limit, ok := r.overrides[token]; ok {
		return limit
	}
	if r.supplyOf != nil {
		if supply := r.supplyOf(token); supply != nil && supply.Sign() > 0 {
			limit := new(big.Int).Mul(supply, big.NewInt(int64(r.cfg.SupplyFractionBps)))
			return limit.Div(limit, big.NewInt(bpsDenominator))
		}
	}
	return r.cfg.FallbackLimit
}
