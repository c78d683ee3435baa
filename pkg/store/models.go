package store

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

// DepositDao is a data access object that maps directly to the 'deposits' table in PostgreSQL.
type DepositDao struct {
	bun.BaseModel `bun:"table:deposits,alias:d"`
	ID            int64     `bun:"id,pk,autoincrement"`
	TransferID    string    `bun:"transfer_id,unique,notnull,type:varchar(66)"`
	DestChain     int64     `bun:"dest_chain,notnull"`
	SrcAccount    string    `bun:"src_account,notnull,type:varchar(66)"`
	DestAccount   string    `bun:"dest_account,notnull,type:varchar(66)"`
	Token         string    `bun:"token,notnull,type:varchar(42)"`
	Amount        string    `bun:"amount,notnull,type:numeric(78,0)"`
	Fee           string    `bun:"fee,notnull,type:numeric(78,0)"`
	Nonce         int64     `bun:"nonce,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// WithdrawalDao is a data access object that maps directly to the 'withdrawals' table in PostgreSQL.
type WithdrawalDao struct {
	bun.BaseModel `bun:"table:withdrawals,alias:w"`
	ID            int64      `bun:"id,pk,autoincrement"`
	TransferID    string     `bun:"transfer_id,unique,notnull,type:varchar(66)"`
	SrcChain      int64      `bun:"src_chain,notnull"`
	SrcAccount    string     `bun:"src_account,notnull,type:varchar(66)"`
	Recipient     string     `bun:"recipient,notnull,type:varchar(42)"`
	Token         string     `bun:"token,notnull,type:varchar(42)"`
	Amount        string     `bun:"amount,notnull,type:numeric(78,0)"`
	Nonce         int64      `bun:"nonce,notnull"`
	SrcDecimals   int16      `bun:"src_decimals,notnull"`
	LocalDecimals int16      `bun:"local_decimals,notnull"`
	GasTip        string     `bun:"gas_tip,notnull,type:numeric(78,0)"`
	SubmittedAt   time.Time  `bun:"submitted_at,nullzero,default:current_timestamp"`
	ApprovedAt    *time.Time `bun:"approved_at"`
	Operator      *string    `bun:"operator,type:varchar(42)"`
	Approved      bool       `bun:"approved,notnull,default:false"`
	Cancelled     bool       `bun:"cancelled,notnull,default:false"`
	Executed      bool       `bun:"executed,notnull,default:false"`
}

// NonceUsageDao is a data access object that maps directly to the 'nonce_usage' table in PostgreSQL.
type NonceUsageDao struct {
	bun.BaseModel `bun:"table:nonce_usage,alias:n"`
	ID            int64     `bun:"id,pk,autoincrement"`
	SrcChain      int64     `bun:"src_chain,notnull"`
	Nonce         int64     `bun:"nonce,notnull"`
	TransferID    string    `bun:"transfer_id,notnull,type:varchar(66)"`
	ConsumedAt    time.Time `bun:"consumed_at,nullzero,default:current_timestamp"`
}

func toDepositDao(id common.Hash, rec *transfer.DepositRecord) *DepositDao {
	return &DepositDao{
		TransferID:  id.Hex(),
		DestChain:   int64(rec.DestChain),
		SrcAccount:  common.Hash(rec.SrcAccount).Hex(),
		DestAccount: common.Hash(rec.DestAccount).Hex(),
		Token:       rec.Token.Hex(),
		Amount:      rec.Amount.String(),
		Fee:         rec.Fee.String(),
		Nonce:       int64(rec.Nonce),
		CreatedAt:   rec.CreatedAt,
	}
}

func toDepositRecord(dao *DepositDao) *transfer.DepositRecord {
	amount, _ := new(big.Int).SetString(dao.Amount, 10)
	feeAmount, _ := new(big.Int).SetString(dao.Fee, 10)
	return &transfer.DepositRecord{
		DestChain:   transfer.ChainCode(dao.DestChain),
		SrcAccount:  transfer.Account(common.HexToHash(dao.SrcAccount)),
		DestAccount: transfer.Account(common.HexToHash(dao.DestAccount)),
		Token:       common.HexToAddress(dao.Token),
		Amount:      amount,
		Fee:         feeAmount,
		Nonce:       uint64(dao.Nonce),
		CreatedAt:   dao.CreatedAt,
	}
}

func toWithdrawalDao(id common.Hash, w *transfer.PendingWithdrawal) *WithdrawalDao {
	return &WithdrawalDao{
		TransferID:    id.Hex(),
		SrcChain:      int64(w.SrcChain),
		SrcAccount:    common.Hash(w.SrcAccount).Hex(),
		Recipient:     w.Recipient.Hex(),
		Token:         w.Token.Hex(),
		Amount:        w.Amount.String(),
		Nonce:         int64(w.Nonce),
		SrcDecimals:   int16(w.SrcDecimals),
		LocalDecimals: int16(w.LocalDecimals),
		GasTip:        w.GasTip.String(),
		SubmittedAt:   w.SubmittedAt,
	}
}

func toPendingWithdrawal(dao *WithdrawalDao) *transfer.PendingWithdrawal {
	amount, _ := new(big.Int).SetString(dao.Amount, 10)
	tip, _ := new(big.Int).SetString(dao.GasTip, 10)
	w := &transfer.PendingWithdrawal{
		SrcChain:      transfer.ChainCode(dao.SrcChain),
		SrcAccount:    transfer.Account(common.HexToHash(dao.SrcAccount)),
		Recipient:     common.HexToAddress(dao.Recipient),
		Token:         common.HexToAddress(dao.Token),
		Amount:        amount,
		Nonce:         uint64(dao.Nonce),
		SrcDecimals:   uint8(dao.SrcDecimals),
		LocalDecimals: uint8(dao.LocalDecimals),
		GasTip:        tip,
		SubmittedAt:   dao.SubmittedAt,
		Approved:      dao.Approved,
		Cancelled:     dao.Cancelled,
		Executed:      dao.Executed,
	}
	w.DestAccount = transfer.AccountFromAddress(w.Recipient)
	if dao.ApprovedAt != nil {
		w.ApprovedAt = *dao.ApprovedAt
	}
	return w
}
