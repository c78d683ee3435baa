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

// Deposit locks or burns amount of token for transfer to destAccount on
// destChain. The fee is deducted first; the net amount is what custody moves
// and what enters the transfer identifier. Returns the identifier the
// destination side must independently recompute.
func (b *Bridge) Deposit(
	ctx context.Context,
	from common.Address,
	token common.Address,
	destChain transfer.ChainCode,
	destAccount transfer.Account,
	amount *big.Int,
) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.deposit(ctx, from, token, destChain, destAccount, amount)
	if err != nil {
		metrics.DepositsTotal.WithLabelValues("rejected").Inc()
		return common.Hash{}, err
	}
	metrics.DepositsTotal.WithLabelValues("ok").Inc()
	return id, nil
}

func (b *Bridge) deposit(
	ctx context.Context,
	from common.Address,
	token common.Address,
	destChain transfer.ChainCode,
	destAccount transfer.Account,
	amount *big.Int,
) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, ErrNonPositiveAmount
	}
	if destChain == b.cfg.ChainCode {
		return common.Hash{}, fmt.Errorf("%w: code %d", ErrSameChain, destChain)
	}
	if !b.chains.IsRegistered(destChain) {
		return common.Hash{}, fmt.Errorf("%w: code %d", ErrChainNotRegistered, destChain)
	}
	tokenRec, err := b.tokens.Record(token)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrTokenNotRegistered, token.Hex())
	}
	// An unset destination mapping blocks transfers to that chain.
	dest, err := b.tokens.DestinationOf(token, destChain)
	if err != nil {
		return common.Hash{}, err
	}

	feeAmount := b.fees.FeeFor(from, amount)
	net := new(big.Int).Sub(amount, feeAmount)

	nonce := b.depositNonce + 1
	id, err := transfer.ComputeID(
		b.cfg.ChainCode, destChain,
		transfer.AccountFromAddress(from), destAccount,
		dest.TokenID, net, nonce,
	)
	if err != nil {
		return common.Hash{}, err
	}
	if _, exists := b.deposits[id]; exists {
		return common.Hash{}, fmt.Errorf("%w: deposit %s", ErrDuplicateTransfer, id.Hex())
	}

	commitAccount, err := b.guards.CheckAccount(ctx, from)
	if err != nil {
		metrics.GuardRejections.WithLabelValues("account").Inc()
		return common.Hash{}, fmt.Errorf("%w: %w", ErrGuardRejected, err)
	}
	commitDeposit, err := b.guards.CheckDeposit(ctx, from, token, net)
	if err != nil {
		metrics.GuardRejections.WithLabelValues("deposit").Inc()
		return common.Hash{}, fmt.Errorf("%w: %w", ErrGuardRejected, err)
	}

	// All checks passed; mutations follow. Custody adapters are expected to
	// either apply the full delta or fail without moving funds.
	if feeAmount.Sign() > 0 && b.feeCollector != nil {
		if err := b.feeCollector.Collect(from, b.fees.Recipient(), token, feeAmount); err != nil {
			return common.Hash{}, fmt.Errorf("%w: collect fee: %w", ErrCustodyFailure, err)
		}
	}

	switch tokenRec.Custody {
	case transfer.CustodyLockUnlock:
		if b.lockUnlock == nil {
			b.refundFee(from, token, feeAmount)
			return common.Hash{}, fmt.Errorf("%w: no lock_unlock adapter configured", ErrCustodyFailure)
		}
		if err := b.lockUnlock.Lock(from, token, net); err != nil {
			metrics.CustodyFailures.WithLabelValues("lock").Inc()
			b.refundFee(from, token, feeAmount)
			return common.Hash{}, fmt.Errorf("%w: lock: %w", ErrCustodyFailure, err)
		}
	case transfer.CustodyMintBurn:
		if b.mintBurn == nil {
			b.refundFee(from, token, feeAmount)
			return common.Hash{}, fmt.Errorf("%w: no mint_burn adapter configured", ErrCustodyFailure)
		}
		if err := b.mintBurn.BurnFrom(from, token, net); err != nil {
			metrics.CustodyFailures.WithLabelValues("burn").Inc()
			b.refundFee(from, token, feeAmount)
			return common.Hash{}, fmt.Errorf("%w: burn: %w", ErrCustodyFailure, err)
		}
	}

	commitAccount()
	commitDeposit()
	b.depositNonce = nonce

	rec := &transfer.DepositRecord{
		DestChain:   destChain,
		SrcAccount:  transfer.AccountFromAddress(from),
		DestAccount: destAccount,
		Token:       token,
		Amount:      net,
		Nonce:       nonce,
		Fee:         feeAmount,
		CreatedAt:   b.now(),
	}
	b.deposits[id] = rec
	b.record("deposit", id, func() error { return b.recorder.RecordDeposit(ctx, id, rec) })

	feeFloat, _ := new(big.Float).SetInt(feeAmount).Float64()
	metrics.FeesCollected.Observe(feeFloat)

	b.logger.Info("Deposit recorded",
		zap.String("transfer_id", id.Hex()),
		zap.String("from", from.Hex()),
		zap.String("token", token.Hex()),
		zap.Uint32("dest_chain", uint32(destChain)),
		zap.String("net_amount", net.String()),
		zap.String("fee", feeAmount.String()),
		zap.Uint64("nonce", nonce))

	return id, nil
}

// refundFee reverses a collected fee after a custody failure aborted the
// deposit. A failing refund is logged; the deposit is already rejected
// either way.
func (b *Bridge) refundFee(from common.Address, token common.Address, feeAmount *big.Int) {
	if feeAmount.Sign() == 0 || b.feeCollector == nil {
		return
	}
	if err := b.feeCollector.Collect(b.fees.Recipient(), from, token, feeAmount); err != nil {
		b.logger.Error("Fee refund failed",
			zap.String("from", from.Hex()),
			zap.String("token", token.Hex()),
			zap.String("fee", feeAmount.String()),
			zap.Error(err))
	}
}
