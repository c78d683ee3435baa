package bridge

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/custody"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/fee"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/guard"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/registry"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

const (
	localChain  transfer.ChainCode = 1
	remoteChain transfer.ChainCode = 2
)

var (
	lockToken    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	burnToken    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	remoteToken  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	depositor    = common.HexToAddress("0x4444444444444444444444444444444444444444")
	recipient    = common.HexToAddress("0x5555555555555555555555555555555555555555")
	operator     = common.HexToAddress("0x6666666666666666666666666666666666666666")
	canceler     = common.HexToAddress("0x7777777777777777777777777777777777777777")
	feeRecipient = common.HexToAddress("0x8888888888888888888888888888888888888888")

	remoteAccount = transfer.AccountFromAddress(common.HexToAddress("0x9999999999999999999999999999999999999999"))
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// mockRecorder appends one event per hook invocation.
type mockRecorder struct {
	events []string
	err    error
}

func (m *mockRecorder) note(kind string, id common.Hash) error {
	m.events = append(m.events, fmt.Sprintf("%s:%s", kind, id.Hex()))
	return m.err
}

func (m *mockRecorder) RecordDeposit(_ context.Context, id common.Hash, _ *transfer.DepositRecord) error {
	return m.note("deposit", id)
}

func (m *mockRecorder) RecordSubmit(_ context.Context, id common.Hash, _ *transfer.PendingWithdrawal) error {
	return m.note("submit", id)
}

func (m *mockRecorder) RecordApprove(_ context.Context, id common.Hash, _ time.Time, _ common.Address) error {
	return m.note("approve", id)
}

func (m *mockRecorder) RecordCancel(_ context.Context, id common.Hash) error {
	return m.note("cancel", id)
}

func (m *mockRecorder) RecordUncancel(_ context.Context, id common.Hash, _ time.Time) error {
	return m.note("uncancel", id)
}

func (m *mockRecorder) RecordExecute(_ context.Context, id common.Hash) error {
	return m.note("execute", id)
}

// stubGuard is a guard module with function fields; nil fields pass with no
// commit.
type stubGuard struct {
	name            string
	checkAccountFn  func(account common.Address) (guard.Commit, error)
	checkDepositFn  func(account, token common.Address, amount *big.Int) (guard.Commit, error)
	checkWithdrawFn func(account, token common.Address, amount *big.Int) (guard.Commit, error)
}

func (s *stubGuard) Name() string { return s.name }

func (s *stubGuard) CheckAccount(_ context.Context, account common.Address) (guard.Commit, error) {
	if s.checkAccountFn == nil {
		return nil, nil
	}
	return s.checkAccountFn(account)
}

func (s *stubGuard) CheckDeposit(_ context.Context, account, token common.Address, amount *big.Int) (guard.Commit, error) {
	if s.checkDepositFn == nil {
		return nil, nil
	}
	return s.checkDepositFn(account, token, amount)
}

func (s *stubGuard) CheckWithdraw(_ context.Context, account, token common.Address, amount *big.Int) (guard.Commit, error) {
	if s.checkWithdrawFn == nil {
		return nil, nil
	}
	return s.checkWithdrawFn(account, token, amount)
}

// failingCustody rejects every custody call.
type failingCustody struct {
	err error
}

func (f failingCustody) Lock(common.Address, common.Address, *big.Int) error     { return f.err }
func (f failingCustody) Unlock(common.Address, common.Address, *big.Int) error   { return f.err }
func (f failingCustody) BurnFrom(common.Address, common.Address, *big.Int) error { return f.err }
func (f failingCustody) Mint(common.Address, common.Address, *big.Int) error     { return f.err }

// failingTips rejects every payout.
type failingTips struct {
	err error
}

func (f failingTips) PayTip(common.Address, *big.Int) error { return f.err }

type fixture struct {
	bridge   *Bridge
	ledger   *custody.Ledger
	chains   *registry.ChainRegistry
	tokens   *registry.TokenRegistry
	fees     *fee.Engine
	guards   *guard.Chain
	clock    *fakeClock
	recorder *mockRecorder
}

// newFixture builds a single-instance harness: two registered chains, a
// lock_unlock token and a mint_burn token both mapped to remoteChain at 18
// decimals, a 30 bps fee schedule and an empty guard chain. Zero-value cfg
// fields get defaults.
func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	if cfg.ChainCode == 0 {
		cfg.ChainCode = localChain
	}

	chains := registry.NewChainRegistry()
	_, err := chains.Add(localChain, "local")
	require.NoError(t, err)
	_, err = chains.Add(remoteChain, "remote")
	require.NoError(t, err)

	tokens := registry.NewTokenRegistry()
	require.NoError(t, tokens.Register(lockToken, transfer.CustodyLockUnlock, 18))
	require.NoError(t, tokens.Register(burnToken, transfer.CustodyMintBurn, 18))
	require.NoError(t, tokens.SetDestination(lockToken, remoteChain, transfer.TokenIDFromAddress(remoteToken), 18))
	require.NoError(t, tokens.SetDestination(burnToken, remoteChain, transfer.TokenIDFromAddress(remoteToken), 18))

	ledger := custody.NewLedger()

	fees, err := fee.NewEngine(fee.Config{
		StandardBps: 30,
		Recipient:   feeRecipient,
	}, ledger.BalanceOf)
	require.NoError(t, err)

	guards := guard.NewChain()
	clock := newFakeClock()
	recorder := &mockRecorder{}

	b, err := New(cfg, Deps{
		Chains:       chains,
		Tokens:       tokens,
		Fees:         fees,
		Guards:       guards,
		LockUnlock:   ledger,
		MintBurn:     ledger,
		FeeCollector: ledger,
		Tips:         ledger,
		Recorder:     recorder,
		Clock:        clock.Now,
	})
	require.NoError(t, err)

	b.AddOperator(operator)
	b.AddCanceler(canceler)

	return &fixture{
		bridge:   b,
		ledger:   ledger,
		chains:   chains,
		tokens:   tokens,
		fees:     fees,
		guards:   guards,
		clock:    clock,
		recorder: recorder,
	}
}

// submitApproved submits a withdrawal and approves it, returning the id.
func (f *fixture) submitApproved(t *testing.T, amount *big.Int, nonce uint64) common.Hash {
	t.Helper()
	ctx := context.Background()
	id, err := f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, amount, nonce, nil)
	require.NoError(t, err)
	require.NoError(t, f.bridge.Approve(ctx, operator, id))
	return id
}
