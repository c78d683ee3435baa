package bridge

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/guard"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/registry"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

func TestSubmitWithdraw(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	id, err := f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(997_000), 1, big.NewInt(42))
	require.NoError(t, err)

	w, ok := f.bridge.Withdrawal(id)
	require.True(t, ok)
	assert.Equal(t, remoteChain, w.SrcChain)
	assert.Equal(t, big.NewInt(997_000), w.Amount)
	assert.Equal(t, uint64(1), w.Nonce)
	assert.Equal(t, big.NewInt(42), w.GasTip)
	assert.False(t, w.Approved)
	assert.False(t, w.Cancelled)
	assert.False(t, w.Executed)

	// The identifier is reproducible from the submitted fields.
	want, err := transfer.ComputeID(remoteChain, localChain, remoteAccount,
		transfer.AccountFromAddress(recipient), transfer.TokenIDFromAddress(lockToken),
		big.NewInt(997_000), 1)
	require.NoError(t, err)
	assert.Equal(t, want, id)

	// Submission does not consume the source nonce.
	_, used := f.bridge.NonceUsedBy(remoteChain, 1)
	assert.False(t, used)

	// Resubmitting the identical transfer is rejected.
	_, err = f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(997_000), 1, nil)
	require.ErrorIs(t, err, ErrDuplicateTransfer)
}

func TestSubmitWithdraw_Rejections(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(0), 1, nil)
	require.ErrorIs(t, err, ErrNonPositiveAmount)

	_, err = f.bridge.SubmitWithdraw(ctx, localChain, remoteAccount, recipient, lockToken, big.NewInt(100), 1, nil)
	require.ErrorIs(t, err, ErrSameChain)

	_, err = f.bridge.SubmitWithdraw(ctx, 99, remoteAccount, recipient, lockToken, big.NewInt(100), 1, nil)
	require.ErrorIs(t, err, ErrChainNotRegistered)

	_, err = f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, remoteToken, big.NewInt(100), 1, nil)
	require.ErrorIs(t, err, ErrTokenNotRegistered)

	// A token without a mapping for the source chain cannot resolve its
	// source decimals.
	require.NoError(t, f.tokens.SetDestination(lockToken, remoteChain, transfer.TokenID{}, 0))
	_, err = f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(100), 1, nil)
	require.ErrorIs(t, err, registry.ErrDestinationUnset)
}

func TestApprove(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	id, err := f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(1_000), 1, big.NewInt(7))
	require.NoError(t, err)

	require.ErrorIs(t, f.bridge.Approve(ctx, depositor, id), ErrNotOperator)
	require.ErrorIs(t, f.bridge.Approve(ctx, operator, common.HexToHash("0xdead")), ErrWithdrawalNotFound)

	require.NoError(t, f.bridge.Approve(ctx, operator, id))

	w, _ := f.bridge.Withdrawal(id)
	assert.True(t, w.Approved)
	assert.Equal(t, f.clock.Now(), w.ApprovedAt)

	// The tip went to the approving operator.
	assert.Equal(t, big.NewInt(7), f.ledger.NativeBalance(operator))

	// The source nonce is now consumed by this identifier.
	usedBy, used := f.bridge.NonceUsedBy(remoteChain, 1)
	require.True(t, used)
	assert.Equal(t, id, usedBy)

	require.ErrorIs(t, f.bridge.Approve(ctx, operator, id), ErrAlreadyApproved)
}

func TestApprove_NonceReplay(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	id1, err := f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(1_000), 1, nil)
	require.NoError(t, err)

	// A competing withdrawal claiming the same source nonce can still be
	// submitted while the nonce is unconsumed.
	id2, err := f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(2_000), 1, nil)
	require.NoError(t, err)

	require.NoError(t, f.bridge.Approve(ctx, operator, id1))

	// The approval consumed the nonce: the competitor can never be
	// approved, and fresh submissions on the pair are rejected outright.
	require.ErrorIs(t, f.bridge.Approve(ctx, operator, id2), ErrNonceUsed)
	w, _ := f.bridge.Withdrawal(id2)
	assert.False(t, w.Approved)

	_, err = f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(3_000), 1, nil)
	require.ErrorIs(t, err, ErrNonceUsed)
}

func TestApprove_TipPayoutFailureAbortsApproval(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	payoutErr := errors.New("treasury empty")
	f.bridge.tips = failingTips{err: payoutErr}

	id, err := f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(1_000), 1, big.NewInt(5))
	require.NoError(t, err)

	err = f.bridge.Approve(ctx, operator, id)
	require.ErrorIs(t, err, ErrTipPayout)

	w, _ := f.bridge.Withdrawal(id)
	assert.False(t, w.Approved)
	_, used := f.bridge.NonceUsedBy(remoteChain, 1)
	assert.False(t, used)

	// A zero tip sidesteps the treasury entirely.
	id2, err := f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(2_000), 2, nil)
	require.NoError(t, err)
	require.NoError(t, f.bridge.Approve(ctx, operator, id2))
}

func TestCancel_WindowBoundary(t *testing.T) {
	f := newFixture(t, Config{CancelWindow: time.Minute})
	ctx := context.Background()

	id := f.submitApproved(t, big.NewInt(1_000), 1)

	require.ErrorIs(t, f.bridge.Cancel(ctx, depositor, id), ErrNotCanceler)

	// Exactly at the deadline the cancel still lands.
	f.clock.Advance(time.Minute)
	require.NoError(t, f.bridge.Cancel(ctx, canceler, id))

	w, _ := f.bridge.Withdrawal(id)
	assert.True(t, w.Cancelled)

	require.ErrorIs(t, f.bridge.Cancel(ctx, canceler, id), ErrAlreadyCancelled)
}

func TestCancel_AfterWindowRejected(t *testing.T) {
	f := newFixture(t, Config{CancelWindow: time.Minute})
	ctx := context.Background()

	id := f.submitApproved(t, big.NewInt(1_000), 1)

	f.clock.Advance(time.Minute + time.Nanosecond)
	require.ErrorIs(t, f.bridge.Cancel(ctx, canceler, id), ErrCancelWindowElapsed)
}

func TestCancel_RequiresApproval(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	id, err := f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(1_000), 1, nil)
	require.NoError(t, err)

	require.ErrorIs(t, f.bridge.Cancel(ctx, canceler, id), ErrNotApproved)
}

func TestExecute_MissingCustodyAdapter(t *testing.T) {
	f := newFixture(t, Config{CancelWindow: time.Minute})
	ctx := context.Background()
	f.bridge.lockUnlock = nil

	id := f.submitApproved(t, big.NewInt(1_000), 1)
	f.clock.Advance(time.Minute + time.Second)

	require.ErrorIs(t, f.bridge.Execute(ctx, id), ErrCustodyFailure)

	w, _ := f.bridge.Withdrawal(id)
	assert.False(t, w.Executed)
}

func TestUncancel_OperatorOnly(t *testing.T) {
	f := newFixture(t, Config{CancelWindow: time.Minute})
	ctx := context.Background()

	id := f.submitApproved(t, big.NewInt(1_000), 1)
	require.NoError(t, f.bridge.Cancel(ctx, canceler, id))

	// The canceler vetoes; only an operator reinstates.
	require.ErrorIs(t, f.bridge.Uncancel(ctx, canceler, id), ErrNotOperator)

	require.NoError(t, f.bridge.Uncancel(ctx, operator, id))
	w, _ := f.bridge.Withdrawal(id)
	assert.False(t, w.Cancelled)
}

func TestUncancel_RestartsWindow(t *testing.T) {
	f := newFixture(t, Config{CancelWindow: time.Minute})
	ctx := context.Background()

	id := f.submitApproved(t, big.NewInt(1_000), 1)

	require.ErrorIs(t, f.bridge.Uncancel(ctx, operator, id), ErrNotCancelled)

	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.bridge.Cancel(ctx, canceler, id))

	// Reinstating 10 minutes later restarts the window from now, so the
	// withdrawal is not immediately executable.
	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.bridge.Uncancel(ctx, operator, id))

	w, _ := f.bridge.Withdrawal(id)
	assert.False(t, w.Cancelled)
	assert.Equal(t, f.clock.Now(), w.ApprovedAt)

	require.ErrorIs(t, f.bridge.Execute(ctx, id), ErrCancelWindowActive)

	// The fresh window is fully cancelable again.
	f.clock.Advance(time.Minute)
	require.NoError(t, f.bridge.Cancel(ctx, canceler, id))
}

func TestExecute(t *testing.T) {
	f := newFixture(t, Config{CancelWindow: time.Minute})
	ctx := context.Background()

	f.ledger.SetBalance(lockToken, depositor, big.NewInt(10_000))
	require.NoError(t, f.ledger.Lock(depositor, lockToken, big.NewInt(10_000)))

	id := f.submitApproved(t, big.NewInt(1_000), 1)

	// Still inside the window.
	require.ErrorIs(t, f.bridge.Execute(ctx, id), ErrCancelWindowActive)

	// Exactly at the deadline Cancel wins; Execute needs strictly after.
	f.clock.Advance(time.Minute)
	require.ErrorIs(t, f.bridge.Execute(ctx, id), ErrCancelWindowActive)

	f.clock.Advance(time.Nanosecond)
	require.NoError(t, f.bridge.Execute(ctx, id))

	assert.Equal(t, big.NewInt(1_000), f.ledger.BalanceOf(lockToken, recipient))

	w, _ := f.bridge.Withdrawal(id)
	assert.True(t, w.Executed)

	require.ErrorIs(t, f.bridge.Execute(ctx, id), ErrAlreadyExecuted)
}

func TestExecute_CancelledAndUnapproved(t *testing.T) {
	f := newFixture(t, Config{CancelWindow: time.Minute})
	ctx := context.Background()

	unapproved, err := f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, lockToken, big.NewInt(1_000), 1, nil)
	require.NoError(t, err)
	require.ErrorIs(t, f.bridge.Execute(ctx, unapproved), ErrNotApproved)

	cancelled := f.submitApproved(t, big.NewInt(2_000), 2)
	require.NoError(t, f.bridge.Cancel(ctx, canceler, cancelled))
	f.clock.Advance(2 * time.Minute)
	require.ErrorIs(t, f.bridge.Execute(ctx, cancelled), ErrCancelledState)

	require.ErrorIs(t, f.bridge.Execute(ctx, common.HexToHash("0xbeef")), ErrWithdrawalNotFound)
}

func TestExecute_GuardRejectionLeavesPending(t *testing.T) {
	f := newFixture(t, Config{CancelWindow: time.Minute})
	ctx := context.Background()

	rejection := errors.New("over limit")
	f.guards.RegisterWithdraw(&stubGuard{
		name: "limiter",
		checkWithdrawFn: func(_, _ common.Address, _ *big.Int) (guard.Commit, error) {
			return nil, rejection
		},
	})

	id := f.submitApproved(t, big.NewInt(1_000), 1)
	f.clock.Advance(time.Minute + time.Second)

	require.ErrorIs(t, f.bridge.Execute(ctx, id), rejection)

	w, _ := f.bridge.Withdrawal(id)
	assert.False(t, w.Executed)
	assert.Equal(t, big.NewInt(0), f.ledger.BalanceOf(lockToken, recipient))
}

func TestExecute_NormalizesDecimals(t *testing.T) {
	f := newFixture(t, Config{CancelWindow: time.Minute})
	ctx := context.Background()

	// Local token at 6 decimals, source side at 18.
	sixDec := common.HexToAddress("0xabcdabcdabcdabcdabcdabcdabcdabcdabcdabcd")
	require.NoError(t, f.tokens.Register(sixDec, transfer.CustodyMintBurn, 6))
	require.NoError(t, f.tokens.SetDestination(sixDec, remoteChain, transfer.TokenIDFromAddress(remoteToken), 18))

	// 1.5 tokens in 18-decimals, plus dust below the 6-decimal grid.
	amount, _ := new(big.Int).SetString("1500000000000000999", 10)

	id, err := f.bridge.SubmitWithdraw(ctx, remoteChain, remoteAccount, recipient, sixDec, amount, 1, nil)
	require.NoError(t, err)
	require.NoError(t, f.bridge.Approve(ctx, operator, id))

	f.clock.Advance(time.Minute + time.Second)
	require.NoError(t, f.bridge.Execute(ctx, id))

	// The dust truncates: 1.5 tokens exactly in 6 decimals.
	assert.Equal(t, big.NewInt(1_500_000), f.ledger.BalanceOf(sixDec, recipient))

	// The stored record keeps the raw source-decimals amount.
	w, _ := f.bridge.Withdrawal(id)
	assert.Equal(t, amount, w.Amount)
}

func TestApprove_CancelledWithdrawalRejected(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	id := f.submitApproved(t, big.NewInt(1_000), 1)
	require.NoError(t, f.bridge.Cancel(ctx, canceler, id))

	require.ErrorIs(t, f.bridge.Approve(ctx, operator, id), ErrCancelledState)
}
