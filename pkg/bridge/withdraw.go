package bridge

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/internal/metrics"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

// SubmitWithdraw records an incoming transfer observed on a source chain.
// The identifier is recomputed locally from the submitted fields and must
// match the one the source side announced; amount stays in source-chain
// decimals until execution. The source nonce is only marked used at
// approval, so a mistaken submission can sit unapproved forever without
// burning the nonce.
func (b *Bridge) SubmitWithdraw(
	ctx context.Context,
	srcChain transfer.ChainCode,
	srcAccount transfer.Account,
	recipient common.Address,
	token common.Address,
	amount *big.Int,
	nonce uint64,
	gasTip *big.Int,
) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.submitWithdraw(ctx, srcChain, srcAccount, recipient, token, amount, nonce, gasTip)
	if err != nil {
		metrics.WithdrawalsTotal.WithLabelValues("submit", "rejected").Inc()
		return common.Hash{}, err
	}
	metrics.WithdrawalsTotal.WithLabelValues("submit", "ok").Inc()
	metrics.PendingWithdrawals.Inc()
	return id, nil
}

func (b *Bridge) submitWithdraw(
	ctx context.Context,
	srcChain transfer.ChainCode,
	srcAccount transfer.Account,
	recipient common.Address,
	token common.Address,
	amount *big.Int,
	nonce uint64,
	gasTip *big.Int,
) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, ErrNonPositiveAmount
	}
	if srcChain == b.cfg.ChainCode {
		return common.Hash{}, fmt.Errorf("%w: code %d", ErrSameChain, srcChain)
	}
	if !b.chains.IsRegistered(srcChain) {
		return common.Hash{}, fmt.Errorf("%w: code %d", ErrChainNotRegistered, srcChain)
	}
	localDecimals, err := b.tokens.LocalDecimals(token)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrTokenNotRegistered, token.Hex())
	}
	srcDecimals, err := b.tokens.SourceDecimals(srcChain, token)
	if err != nil {
		return common.Hash{}, err
	}

	id, err := transfer.ComputeID(
		srcChain, b.cfg.ChainCode,
		srcAccount, transfer.AccountFromAddress(recipient),
		transfer.TokenIDFromAddress(token), amount, nonce,
	)
	if err != nil {
		return common.Hash{}, err
	}
	if _, exists := b.withdrawals[id]; exists {
		return common.Hash{}, fmt.Errorf("%w: withdrawal %s", ErrDuplicateTransfer, id.Hex())
	}
	if used, ok := b.usedNonces[nonceKey{chain: srcChain, nonce: nonce}]; ok {
		return common.Hash{}, fmt.Errorf("%w: chain %d nonce %d consumed by %s", ErrNonceUsed, srcChain, nonce, used.Hex())
	}

	tip := new(big.Int)
	if gasTip != nil {
		tip.Set(gasTip)
	}
	w := &transfer.PendingWithdrawal{
		SrcChain:      srcChain,
		SrcAccount:    srcAccount,
		DestAccount:   transfer.AccountFromAddress(recipient),
		Token:         token,
		Recipient:     recipient,
		Amount:        new(big.Int).Set(amount),
		Nonce:         nonce,
		SrcDecimals:   srcDecimals,
		LocalDecimals: localDecimals,
		GasTip:        tip,
		SubmittedAt:   b.now(),
	}
	b.withdrawals[id] = w
	b.record("submit", id, func() error { return b.recorder.RecordSubmit(ctx, id, w) })

	b.logger.Info("Withdrawal submitted",
		zap.String("transfer_id", id.Hex()),
		zap.Uint32("src_chain", uint32(srcChain)),
		zap.String("recipient", recipient.Hex()),
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()),
		zap.Uint64("nonce", nonce))

	return id, nil
}

// Approve marks a submitted withdrawal as operator-approved and starts the
// cancellation window. The source nonce is consumed here. The operator's gas
// tip is paid before any state changes; a failed payout fails the approval.
func (b *Bridge) Approve(ctx context.Context, operator common.Address, id common.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.approve(ctx, operator, id); err != nil {
		metrics.WithdrawalsTotal.WithLabelValues("approve", "rejected").Inc()
		return err
	}
	metrics.WithdrawalsTotal.WithLabelValues("approve", "ok").Inc()
	return nil
}

func (b *Bridge) approve(ctx context.Context, operator common.Address, id common.Hash) error {
	if err := b.requireOperator(operator); err != nil {
		return err
	}
	w, ok := b.withdrawals[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWithdrawalNotFound, id.Hex())
	}
	if w.Executed {
		return ErrAlreadyExecuted
	}
	if w.Cancelled {
		return ErrCancelledState
	}
	if w.Approved {
		return ErrAlreadyApproved
	}
	key := nonceKey{chain: w.SrcChain, nonce: w.Nonce}
	if used, ok := b.usedNonces[key]; ok {
		return fmt.Errorf("%w: chain %d nonce %d consumed by %s", ErrNonceUsed, w.SrcChain, w.Nonce, used.Hex())
	}

	if w.GasTip.Sign() > 0 && b.tips != nil {
		if err := b.tips.PayTip(operator, w.GasTip); err != nil {
			return fmt.Errorf("%w: %v", ErrTipPayout, err)
		}
		metrics.TipsPaid.Inc()
	}

	w.Approved = true
	w.ApprovedAt = b.now()
	b.usedNonces[key] = id
	b.record("approve", id, func() error { return b.recorder.RecordApprove(ctx, id, w.ApprovedAt, operator) })

	b.logger.Info("Withdrawal approved",
		zap.String("transfer_id", id.Hex()),
		zap.String("operator", operator.Hex()),
		zap.Time("approved_at", w.ApprovedAt))
	return nil
}

// Cancel vetoes an approved withdrawal. Allowed up to and including the
// window deadline; Execute only becomes possible strictly after it, so at
// the boundary instant Cancel wins.
func (b *Bridge) Cancel(ctx context.Context, canceler common.Address, id common.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.cancel(ctx, canceler, id); err != nil {
		metrics.WithdrawalsTotal.WithLabelValues("cancel", "rejected").Inc()
		return err
	}
	metrics.WithdrawalsTotal.WithLabelValues("cancel", "ok").Inc()
	return nil
}

func (b *Bridge) cancel(ctx context.Context, canceler common.Address, id common.Hash) error {
	if err := b.requireCanceler(canceler); err != nil {
		return err
	}
	w, ok := b.withdrawals[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWithdrawalNotFound, id.Hex())
	}
	if w.Executed {
		return ErrAlreadyExecuted
	}
	if w.Cancelled {
		return ErrAlreadyCancelled
	}
	if !w.Approved {
		return ErrNotApproved
	}
	deadline := w.ApprovedAt.Add(b.cfg.CancelWindow)
	if b.now().After(deadline) {
		return fmt.Errorf("%w: deadline %s", ErrCancelWindowElapsed, deadline.UTC())
	}

	w.Cancelled = true
	b.record("cancel", id, func() error { return b.recorder.RecordCancel(ctx, id) })

	b.logger.Info("Withdrawal cancelled",
		zap.String("transfer_id", id.Hex()),
		zap.String("canceler", canceler.Hex()))
	return nil
}

// Uncancel reinstates a cancelled withdrawal and restarts the cancellation
// window from now. The original approval timestamp is deliberately
// discarded: a reinstated withdrawal earns a fresh full veto interval.
// Reinstating is an operator action; the canceler only vetoes.
func (b *Bridge) Uncancel(ctx context.Context, operator common.Address, id common.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.uncancel(ctx, operator, id); err != nil {
		metrics.WithdrawalsTotal.WithLabelValues("uncancel", "rejected").Inc()
		return err
	}
	metrics.WithdrawalsTotal.WithLabelValues("uncancel", "ok").Inc()
	return nil
}

func (b *Bridge) uncancel(ctx context.Context, operator common.Address, id common.Hash) error {
	if err := b.requireOperator(operator); err != nil {
		return err
	}
	w, ok := b.withdrawals[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWithdrawalNotFound, id.Hex())
	}
	if w.Executed {
		return ErrAlreadyExecuted
	}
	if !w.Cancelled {
		return ErrNotCancelled
	}

	w.Cancelled = false
	w.ApprovedAt = b.now()
	b.record("uncancel", id, func() error { return b.recorder.RecordUncancel(ctx, id, w.ApprovedAt) })

	b.logger.Info("Withdrawal reinstated",
		zap.String("transfer_id", id.Hex()),
		zap.String("operator", operator.Hex()),
		zap.Time("window_restarted_at", w.ApprovedAt))
	return nil
}

// Execute releases funds for an approved withdrawal once the cancellation
// window has strictly elapsed. Execution is permissionless: anyone may call
// it, the recipient was fixed at submission. Decimal normalization happens
// here, exactly once.
func (b *Bridge) Execute(ctx context.Context, id common.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.execute(ctx, id); err != nil {
		metrics.WithdrawalsTotal.WithLabelValues("execute", "rejected").Inc()
		return err
	}
	metrics.WithdrawalsTotal.WithLabelValues("execute", "ok").Inc()
	metrics.PendingWithdrawals.Dec()
	return nil
}

func (b *Bridge) execute(ctx context.Context, id common.Hash) error {
	w, ok := b.withdrawals[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWithdrawalNotFound, id.Hex())
	}
	if w.Executed {
		return ErrAlreadyExecuted
	}
	if w.Cancelled {
		return ErrCancelledState
	}
	if !w.Approved {
		return ErrNotApproved
	}
	deadline := w.ApprovedAt.Add(b.cfg.CancelWindow)
	if !b.now().After(deadline) {
		return fmt.Errorf("%w: until %s", ErrCancelWindowActive, deadline.UTC())
	}

	local := Normalize(w.Amount, w.SrcDecimals, w.LocalDecimals)

	commitAccount, err := b.guards.CheckAccount(ctx, w.Recipient)
	if err != nil {
		metrics.GuardRejections.WithLabelValues("account").Inc()
		return fmt.Errorf("%w: %w", ErrGuardRejected, err)
	}
	commitWithdraw, err := b.guards.CheckWithdraw(ctx, w.Recipient, w.Token, local)
	if err != nil {
		metrics.GuardRejections.WithLabelValues("withdraw").Inc()
		return fmt.Errorf("%w: %w", ErrGuardRejected, err)
	}

	custodyType, err := b.tokens.CustodyTypeOf(w.Token)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTokenNotRegistered, w.Token.Hex())
	}
	switch custodyType {
	case transfer.CustodyLockUnlock:
		if b.lockUnlock == nil {
			return fmt.Errorf("%w: no lock_unlock adapter configured", ErrCustodyFailure)
		}
		if err := b.lockUnlock.Unlock(w.Recipient, w.Token, local); err != nil {
			metrics.CustodyFailures.WithLabelValues("unlock").Inc()
			return fmt.Errorf("%w: unlock: %w", ErrCustodyFailure, err)
		}
	case transfer.CustodyMintBurn:
		if b.mintBurn == nil {
			return fmt.Errorf("%w: no mint_burn adapter configured", ErrCustodyFailure)
		}
		if err := b.mintBurn.Mint(w.Recipient, w.Token, local); err != nil {
			metrics.CustodyFailures.WithLabelValues("mint").Inc()
			return fmt.Errorf("%w: mint: %w", ErrCustodyFailure, err)
		}
	}

	commitAccount()
	commitWithdraw()
	w.Executed = true
	b.record("execute", id, func() error { return b.recorder.RecordExecute(ctx, id) })

	b.logger.Info("Withdrawal executed",
		zap.String("transfer_id", id.Hex()),
		zap.String("recipient", w.Recipient.Hex()),
		zap.String("token", w.Token.Hex()),
		zap.String("amount_local", local.String()))
	return nil
}
