// Package store persists the protocol's state transitions to Postgres as an
// append-only audit trail. The bridge core stays authoritative and in-memory;
// rows here are written through the Recorder hook and read by the watcher
// API. Deposits and nonce usage are insert-only; withdrawal rows only ever
// flip their stage fields forward.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

// ErrNotFound is returned for lookups of unknown transfer identifiers.
var ErrNotFound = errors.New("record not found")

// Store provides audit persistence backed by bun/Postgres.
type Store struct {
	db *bun.DB
}

// NewStore creates a store on an existing connection.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the audit tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*DepositDao)(nil),
		(*WithdrawalDao)(nil),
		(*NonceUsageDao)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	if _, err := s.db.NewCreateIndex().
		Model((*NonceUsageDao)(nil)).
		Index("idx_nonce_usage_chain_nonce").
		Unique().
		Column("src_chain", "nonce").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create nonce usage index: %w", err)
	}

	if _, err := s.db.NewCreateIndex().
		Model((*WithdrawalDao)(nil)).
		Index("idx_withdrawals_pending").
		Column("approved", "executed").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create withdrawal stage index: %w", err)
	}

	return nil
}

// RecordDeposit implements bridge.Recorder.
func (s *Store) RecordDeposit(ctx context.Context, id common.Hash, rec *transfer.DepositRecord) error {
	_, err := s.db.NewInsert().
		Model(toDepositDao(id, rec)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record deposit: %w", err)
	}
	return nil
}

// RecordSubmit implements bridge.Recorder.
func (s *Store) RecordSubmit(ctx context.Context, id common.Hash, w *transfer.PendingWithdrawal) error {
	_, err := s.db.NewInsert().
		Model(toWithdrawalDao(id, w)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record withdrawal submission: %w", err)
	}
	return nil
}

// RecordApprove implements bridge.Recorder. The withdrawal row advances and
// the consumed nonce is recorded in the same transaction.
func (s *Store) RecordApprove(ctx context.Context, id common.Hash, approvedAt time.Time, operator common.Address) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		dao := new(WithdrawalDao)
		err := tx.NewSelect().
			Model(dao).
			Column("src_chain", "nonce").
			Where("transfer_id = ?", id.Hex()).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to load withdrawal for approval: %w", err)
		}

		op := operator.Hex()
		_, err = tx.NewUpdate().
			Model((*WithdrawalDao)(nil)).
			Set("approved = TRUE").
			Set("approved_at = ?", approvedAt).
			Set("operator = ?", op).
			Where("transfer_id = ?", id.Hex()).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to record approval: %w", err)
		}

		_, err = tx.NewInsert().
			Model(&NonceUsageDao{
				SrcChain:   dao.SrcChain,
				Nonce:      dao.Nonce,
				TransferID: id.Hex(),
				ConsumedAt: approvedAt,
			}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to record nonce usage: %w", err)
		}
		return nil
	})
}

// RecordCancel implements bridge.Recorder.
func (s *Store) RecordCancel(ctx context.Context, id common.Hash) error {
	_, err := s.db.NewUpdate().
		Model((*WithdrawalDao)(nil)).
		Set("cancelled = TRUE").
		Where("transfer_id = ?", id.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record cancellation: %w", err)
	}
	return nil
}

// RecordUncancel implements bridge.Recorder.
func (s *Store) RecordUncancel(ctx context.Context, id common.Hash, approvedAt time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*WithdrawalDao)(nil)).
		Set("cancelled = FALSE").
		Set("approved_at = ?", approvedAt).
		Where("transfer_id = ?", id.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record reinstatement: %w", err)
	}
	return nil
}

// RecordExecute implements bridge.Recorder.
func (s *Store) RecordExecute(ctx context.Context, id common.Hash) error {
	_, err := s.db.NewUpdate().
		Model((*WithdrawalDao)(nil)).
		Set("executed = TRUE").
		Where("transfer_id = ?", id.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// GetDeposit returns the audited deposit under a transfer identifier.
func (s *Store) GetDeposit(ctx context.Context, id common.Hash) (*transfer.DepositRecord, error) {
	dao := new(DepositDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("transfer_id = ?", id.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return toDepositRecord(dao), nil
}

// GetWithdrawal returns the audited withdrawal under a transfer identifier.
func (s *Store) GetWithdrawal(ctx context.Context, id common.Hash) (*transfer.PendingWithdrawal, error) {
	dao := new(WithdrawalDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("transfer_id = ?", id.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return toPendingWithdrawal(dao), nil
}

// ListPendingWithdrawals lists approved, unexecuted, uncancelled withdrawals
// in submission order.
func (s *Store) ListPendingWithdrawals(ctx context.Context, limit int) ([]*transfer.PendingWithdrawal, error) {
	var daos []WithdrawalDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("approved = TRUE AND executed = FALSE AND cancelled = FALSE").
		Order("submitted_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	out := make([]*transfer.PendingWithdrawal, len(daos))
	for i := range daos {
		out[i] = toPendingWithdrawal(&daos[i])
	}
	return out, nil
}

// NonceUsedBy returns the identifier that consumed a (source chain, nonce)
// pair, or ErrNotFound.
func (s *Store) NonceUsedBy(ctx context.Context, srcChain transfer.ChainCode, nonce uint64) (common.Hash, error) {
	dao := new(NonceUsageDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("src_chain = ? AND nonce = ?", int64(srcChain), int64(nonce)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.Hash{}, ErrNotFound
		}
		return common.Hash{}, fmt.Errorf("failed to get nonce usage: %w", err)
	}
	return common.HexToHash(dao.TransferID), nil
}
