package api

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

// DepositRequest initiates a deposit. Amounts are decimal strings in base
// units; accounts are hex, either 20-byte addresses or full 32-byte values.
type DepositRequest struct {
	From        string `json:"from"`
	Token       string `json:"token"`
	DestChain   uint32 `json:"dest_chain"`
	DestAccount string `json:"dest_account"`
	Amount      string `json:"amount"`
}

// SubmitWithdrawalRequest replays a transfer observed on a source chain.
type SubmitWithdrawalRequest struct {
	SrcChain   uint32 `json:"src_chain"`
	SrcAccount string `json:"src_account"`
	Recipient  string `json:"recipient"`
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	Nonce      uint64 `json:"nonce"`
	GasTip     string `json:"gas_tip,omitempty"`
}

// ActionRequest carries the calling account for approve/cancel/uncancel.
// The bridge core enforces the role, not the API.
type ActionRequest struct {
	Caller string `json:"caller"`
}

// TransferResponse returns the identifier of a newly recorded transfer.
type TransferResponse struct {
	TransferID string `json:"transfer_id"`
}

// DepositResponse is the read model of a recorded deposit.
type DepositResponse struct {
	TransferID    string    `json:"transfer_id"`
	DestChain     uint32    `json:"dest_chain"`
	SrcAccount    string    `json:"src_account"`
	DestAccount   string    `json:"dest_account"`
	Token         string    `json:"token"`
	Amount        string    `json:"amount"`
	DisplayAmount string    `json:"display_amount"`
	Fee           string    `json:"fee"`
	Nonce         uint64    `json:"nonce"`
	CreatedAt     time.Time `json:"created_at"`
}

// WithdrawalResponse is the read model of a withdrawal and its stage.
type WithdrawalResponse struct {
	TransferID    string     `json:"transfer_id"`
	Stage         string     `json:"stage"`
	SrcChain      uint32     `json:"src_chain"`
	SrcAccount    string     `json:"src_account"`
	Recipient     string     `json:"recipient"`
	Token         string     `json:"token"`
	Amount        string     `json:"amount"`
	DisplayAmount string     `json:"display_amount"`
	Nonce         uint64     `json:"nonce"`
	GasTip        string     `json:"gas_tip"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	ExecutableAt  *time.Time `json:"executable_at,omitempty"`
}

// ParamsResponse is the instance parameter surface watchers poll.
type ParamsResponse struct {
	ChainCode    uint32 `json:"chain_code"`
	CancelWindow string `json:"cancel_window"`
	NextNonce    uint64 `json:"next_nonce"`
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: not a valid hex address: %q", field, value)
	}
	return common.HexToAddress(value), nil
}

// parseAccount accepts a 20-byte address (left-padded into the account) or a
// full 32-byte hex value.
func parseAccount(field, value string) (transfer.Account, error) {
	if common.IsHexAddress(value) {
		return transfer.AccountFromAddress(common.HexToAddress(value)), nil
	}
	raw, err := hexBytes(value)
	if err != nil || len(raw) != 32 {
		return transfer.Account{}, fmt.Errorf("%s: expected 20-byte address or 32-byte hex value: %q", field, value)
	}
	var a transfer.Account
	copy(a[:], raw)
	return a, nil
}

func hexBytes(value string) ([]byte, error) {
	if len(value) >= 2 && value[0] == '0' && (value[1] == 'x' || value[1] == 'X') {
		value = value[2:]
	}
	raw := common.FromHex("0x" + value)
	if len(raw)*2 != len(value) {
		return nil, fmt.Errorf("odd or invalid hex")
	}
	return raw, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%s: not a decimal integer: %q", field, value)
	}
	return amount, nil
}

func parseOptionalAmount(field, value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	return parseAmount(field, value)
}

// displayAmount renders a base-unit amount in whole-token units.
func displayAmount(amount *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

func withdrawalStage(w *transfer.PendingWithdrawal) string {
	switch {
	case w.Executed:
		return "executed"
	case w.Cancelled:
		return "cancelled"
	case w.Approved:
		return "approved"
	default:
		return "submitted"
	}
}
