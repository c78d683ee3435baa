package bridge

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/custody"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/fee"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/guard"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/registry"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

// pair is a two-instance harness: chain A holds tokenA under lock_unlock,
// chain B holds the wrapped tokenB under mint_burn, mapped to each other at
// equal decimals. Both instances share one test clock, standing in for the
// off-chain agents observing both chains.
type pair struct {
	a, b           *Bridge
	ledgerA        *custody.Ledger
	ledgerB        *custody.Ledger
	tokenA, tokenB common.Address
	clock          *fakeClock
}

func newPair(t *testing.T, window time.Duration) *pair {
	t.Helper()

	tokenA := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	clock := newFakeClock()

	build := func(code transfer.ChainCode, localToken common.Address, localCustody transfer.CustodyType,
		peer transfer.ChainCode, peerToken common.Address) (*Bridge, *custody.Ledger) {
		chains := registry.NewChainRegistry()
		_, err := chains.Add(localChain, "chain-a")
		require.NoError(t, err)
		_, err = chains.Add(remoteChain, "chain-b")
		require.NoError(t, err)

		tokens := registry.NewTokenRegistry()
		require.NoError(t, tokens.Register(localToken, localCustody, 18))
		require.NoError(t, tokens.SetDestination(localToken, peer, transfer.TokenIDFromAddress(peerToken), 18))

		ledger := custody.NewLedger()
		fees, err := fee.NewEngine(fee.Config{StandardBps: 30, Recipient: feeRecipient}, ledger.BalanceOf)
		require.NoError(t, err)

		br, err := New(Config{ChainCode: code, CancelWindow: window}, Deps{
			Chains:       chains,
			Tokens:       tokens,
			Fees:         fees,
			Guards:       guard.NewChain(),
			LockUnlock:   ledger,
			MintBurn:     ledger,
			FeeCollector: ledger,
			Tips:         ledger,
			Clock:        clock.Now,
		})
		require.NoError(t, err)
		br.AddOperator(operator)
		br.AddCanceler(canceler)
		return br, ledger
	}

	a, ledgerA := build(localChain, tokenA, transfer.CustodyLockUnlock, remoteChain, tokenB)
	b, ledgerB := build(remoteChain, tokenB, transfer.CustodyMintBurn, localChain, tokenA)

	return &pair{a: a, b: b, ledgerA: ledgerA, ledgerB: ledgerB, tokenA: tokenA, tokenB: tokenB, clock: clock}
}

// depositOnA deposits on chain A and replays the observed transfer as a
// withdrawal submission on chain B, asserting both sides derived the same
// identifier.
func (p *pair) depositOnA(t *testing.T, amount *big.Int, tip *big.Int) common.Hash {
	t.Helper()
	ctx := context.Background()

	idA, err := p.a.Deposit(ctx, depositor, p.tokenA, remoteChain, transfer.AccountFromAddress(recipient), amount)
	require.NoError(t, err)

	rec, ok := p.a.DepositByID(idA)
	require.True(t, ok)

	idB, err := p.b.SubmitWithdraw(ctx, localChain, rec.SrcAccount, recipient, p.tokenB, rec.Amount, rec.Nonce, tip)
	require.NoError(t, err)
	require.Equal(t, idA, idB)
	return idB
}

func TestCrossChain_DepositToExecute(t *testing.T) {
	p := newPair(t, time.Minute)
	ctx := context.Background()

	p.ledgerA.SetBalance(p.tokenA, depositor, big.NewInt(1_000_000))

	id := p.depositOnA(t, big.NewInt(1_000_000), big.NewInt(10))

	// Source side: 30 bps fee of 1,000,000 is 3,000, net 997,000 locked.
	assert.Equal(t, big.NewInt(3_000), p.ledgerA.BalanceOf(p.tokenA, feeRecipient))
	rec, _ := p.a.DepositByID(id)
	assert.Equal(t, big.NewInt(997_000), rec.Amount)
	assert.Equal(t, uint64(1), rec.Nonce)

	require.NoError(t, p.b.Approve(ctx, operator, id))
	assert.Equal(t, big.NewInt(10), p.ledgerB.NativeBalance(operator))

	p.clock.Advance(time.Minute + time.Second)
	require.NoError(t, p.b.Execute(ctx, id))

	// Destination side mints the net amount for the recipient.
	assert.Equal(t, big.NewInt(997_000), p.ledgerB.BalanceOf(p.tokenB, recipient))
	assert.Equal(t, big.NewInt(997_000), p.ledgerB.TotalSupply(p.tokenB))
}

func TestCrossChain_BoundaryFavorsCancel(t *testing.T) {
	p := newPair(t, time.Minute)
	ctx := context.Background()

	p.ledgerA.SetBalance(p.tokenA, depositor, big.NewInt(1_000_000))
	id := p.depositOnA(t, big.NewInt(1_000_000), nil)
	require.NoError(t, p.b.Approve(ctx, operator, id))

	// At exactly approval + window, Execute is rejected and Cancel lands.
	p.clock.Advance(time.Minute)
	require.ErrorIs(t, p.b.Execute(ctx, id), ErrCancelWindowActive)
	require.NoError(t, p.b.Cancel(ctx, canceler, id))

	// Nothing was minted.
	assert.Equal(t, big.NewInt(0), p.ledgerB.TotalSupply(p.tokenB))
}

func TestCrossChain_UncancelThenExecute(t *testing.T) {
	p := newPair(t, time.Minute)
	ctx := context.Background()

	p.ledgerA.SetBalance(p.tokenA, depositor, big.NewInt(1_000_000))
	id := p.depositOnA(t, big.NewInt(1_000_000), nil)
	require.NoError(t, p.b.Approve(ctx, operator, id))

	p.clock.Advance(30 * time.Second)
	require.NoError(t, p.b.Cancel(ctx, canceler, id))

	// Reinstated an hour later; the fresh window still gates execution.
	p.clock.Advance(time.Hour)
	require.NoError(t, p.b.Uncancel(ctx, operator, id))
	require.ErrorIs(t, p.b.Execute(ctx, id), ErrCancelWindowActive)

	p.clock.Advance(time.Minute + time.Second)
	require.NoError(t, p.b.Execute(ctx, id))
	assert.Equal(t, big.NewInt(997_000), p.ledgerB.BalanceOf(p.tokenB, recipient))
}

func TestCrossChain_ReturnTripBurnsAndUnlocks(t *testing.T) {
	p := newPair(t, time.Minute)
	ctx := context.Background()

	// Forward leg: 1,000,000 over, 997,000 minted on B.
	p.ledgerA.SetBalance(p.tokenA, depositor, big.NewInt(1_000_000))
	id := p.depositOnA(t, big.NewInt(1_000_000), nil)
	require.NoError(t, p.b.Approve(ctx, operator, id))
	p.clock.Advance(time.Minute + time.Second)
	require.NoError(t, p.b.Execute(ctx, id))

	// Return leg: the recipient sends 100,000 back. Fee on B is 300, the
	// burn is 99,700, and A unlocks exactly that from its vault.
	idBack, err := p.b.Deposit(ctx, recipient, p.tokenB, localChain, transfer.AccountFromAddress(depositor), big.NewInt(100_000))
	require.NoError(t, err)

	recBack, _ := p.b.DepositByID(idBack)
	assert.Equal(t, big.NewInt(99_700), recBack.Amount)

	idA, err := p.a.SubmitWithdraw(ctx, remoteChain, recBack.SrcAccount, depositor, p.tokenA, recBack.Amount, recBack.Nonce, nil)
	require.NoError(t, err)
	require.Equal(t, idBack, idA)

	require.NoError(t, p.a.Approve(ctx, operator, idA))
	p.clock.Advance(time.Minute + time.Second)
	require.NoError(t, p.a.Execute(ctx, idA))

	assert.Equal(t, big.NewInt(99_700), p.ledgerA.BalanceOf(p.tokenA, depositor))
	// B's supply shrank by fee transfer + burn: 997,000 - 99,700.
	assert.Equal(t, big.NewInt(897_300), p.ledgerB.TotalSupply(p.tokenB))
}
