// Package bridge implements one ledger-side instance of the cross-chain
// transfer protocol: the deposit path, the multi-stage withdrawal state
// machine with its operator-approval / cancellation-window / execution
// lifecycle, nonce replay protection and role bookkeeping.
//
// An instance executes transactions one at a time. Every operation performs
// all of its checks before any state mutation becomes visible; there is no
// partial commit to defend against within an instance. Two instances never
// communicate directly — the off-chain operator and canceler agents bridge
// them by observing one side and submitting to the other.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/custody"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/fee"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/guard"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/registry"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

// Cancellation window bounds. The configured window is clamped, not
// rejected.
const (
	MinCancelWindow     = 30 * time.Second
	MaxCancelWindow     = 24 * time.Hour
	DefaultCancelWindow = 5 * time.Minute
)

// Recorder receives append-only copies of protocol state transitions, e.g.
// for the audit store the watcher API reads from. Recorder failures are
// logged and never fail the protocol operation they trail.
type Recorder interface {
	RecordDeposit(ctx context.Context, id common.Hash, rec *transfer.DepositRecord) error
	RecordSubmit(ctx context.Context, id common.Hash, w *transfer.PendingWithdrawal) error
	RecordApprove(ctx context.Context, id common.Hash, approvedAt time.Time, operator common.Address) error
	RecordCancel(ctx context.Context, id common.Hash) error
	RecordUncancel(ctx context.Context, id common.Hash, approvedAt time.Time) error
	RecordExecute(ctx context.Context, id common.Hash) error
}

// Config carries the per-instance protocol parameters.
type Config struct {
	// ChainCode is this instance's registered chain code.
	ChainCode transfer.ChainCode
	// CancelWindow is the veto interval after approval; clamped to
	// [MinCancelWindow, MaxCancelWindow], zero means DefaultCancelWindow.
	CancelWindow time.Duration
}

// Deps are the collaborators a bridge instance consults. Registries are
// read, never written, during transfers.
type Deps struct {
	Chains       *registry.ChainRegistry
	Tokens       *registry.TokenRegistry
	Fees         *fee.Engine
	Guards       *guard.Chain
	LockUnlock   custody.LockUnlock
	MintBurn     custody.MintBurn
	FeeCollector custody.FeeCollector
	Tips         custody.TipTreasury

	// Recorder is optional.
	Recorder Recorder
	// Logger defaults to a nop logger.
	Logger *zap.Logger
	// Clock defaults to time.Now; injected by tests.
	Clock func() time.Time
}

type nonceKey struct {
	chain transfer.ChainCode
	nonce uint64
}

// Bridge is one ledger-side protocol instance.
type Bridge struct {
	mu  sync.Mutex
	cfg Config

	chains       *registry.ChainRegistry
	tokens       *registry.TokenRegistry
	fees         *fee.Engine
	guards       *guard.Chain
	lockUnlock   custody.LockUnlock
	mintBurn     custody.MintBurn
	feeCollector custody.FeeCollector
	tips         custody.TipTreasury
	recorder     Recorder
	logger       *zap.Logger
	now          func() time.Time

	operators map[common.Address]struct{}
	cancelers map[common.Address]struct{}

	depositNonce uint64
	deposits     map[common.Hash]*transfer.DepositRecord
	withdrawals  map[common.Hash]*transfer.PendingWithdrawal
	// usedNonces maps an approved (source chain, nonce) pair to the
	// identifier that consumed it. A pair is marked at most once.
	usedNonces map[nonceKey]common.Hash
}

// New creates a bridge instance.
func New(cfg Config, deps Deps) (*Bridge, error) {
	if cfg.ChainCode == 0 {
		return nil, fmt.Errorf("bridge: chain code 0 is reserved")
	}
	if deps.Chains == nil || deps.Tokens == nil || deps.Fees == nil || deps.Guards == nil {
		return nil, fmt.Errorf("bridge: chains, tokens, fees and guards are required")
	}

	cfg.CancelWindow = clampCancelWindow(cfg.CancelWindow)

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &Bridge{
		cfg:          cfg,
		chains:       deps.Chains,
		tokens:       deps.Tokens,
		fees:         deps.Fees,
		guards:       deps.Guards,
		lockUnlock:   deps.LockUnlock,
		mintBurn:     deps.MintBurn,
		feeCollector: deps.FeeCollector,
		tips:         deps.Tips,
		recorder:     deps.Recorder,
		logger:       logger,
		now:          now,
		operators:    make(map[common.Address]struct{}),
		cancelers:    make(map[common.Address]struct{}),
		deposits:     make(map[common.Hash]*transfer.DepositRecord),
		withdrawals:  make(map[common.Hash]*transfer.PendingWithdrawal),
		usedNonces:   make(map[nonceKey]common.Hash),
	}, nil
}

func clampCancelWindow(window time.Duration) time.Duration {
	switch {
	case window == 0:
		return DefaultCancelWindow
	case window < MinCancelWindow:
		return MinCancelWindow
	case window > MaxCancelWindow:
		return MaxCancelWindow
	default:
		return window
	}
}

// Params returns the parameters the off-chain watchers poll.
func (b *Bridge) Params() transfer.Params {
	b.mu.Lock()
	defer b.mu.Unlock()
	return transfer.Params{
		ChainCode:    b.cfg.ChainCode,
		CancelWindow: b.cfg.CancelWindow,
		NextNonce:    b.depositNonce + 1,
	}
}

// CancelWindow returns the effective (clamped) cancellation window.
func (b *Bridge) CancelWindow() time.Duration {
	return b.cfg.CancelWindow
}

// ChainCode returns this instance's chain code.
func (b *Bridge) ChainCode() transfer.ChainCode {
	return b.cfg.ChainCode
}

// DepositByID returns a copy of the deposit record under an identifier.
func (b *Bridge) DepositByID(id common.Hash) (transfer.DepositRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.deposits[id]
	if !ok {
		return transfer.DepositRecord{}, false
	}
	return *rec, true
}

// Withdrawal returns a copy of the pending withdrawal under an identifier.
func (b *Bridge) Withdrawal(id common.Hash) (transfer.PendingWithdrawal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.withdrawals[id]
	if !ok {
		return transfer.PendingWithdrawal{}, false
	}
	return *w, true
}

// NonceUsedBy returns the identifier that consumed a (source chain, nonce)
// pair, if any.
func (b *Bridge) NonceUsedBy(srcChain transfer.ChainCode, nonce uint64) (common.Hash, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.usedNonces[nonceKey{chain: srcChain, nonce: nonce}]
	return id, ok
}

// record invokes the recorder hook outside the hot path's error flow.
func (b *Bridge) record(op string, id common.Hash, fn func() error) {
	if b.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		b.logger.Warn("Audit record failed",
			zap.String("operation", op),
			zap.String("transfer_id", id.Hex()),
			zap.Error(err))
	}
}
