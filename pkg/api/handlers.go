// Package api exposes the bridge instance over HTTP for the off-chain
// watcher, operator and canceler agents. Handlers parse and validate wire
// input, delegate to the bridge core, and translate its sentinel errors into
// the service error taxonomy. Role checks stay in the core.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/app/errors"
	apphttp "github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/app/http"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/bridge"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/registry"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

const requestBodyLimit = 1 << 20 // 1MB

// Server wires the bridge core to HTTP routes.
type Server struct {
	bridge *bridge.Bridge
	tokens *registry.TokenRegistry
	logger *zap.Logger
}

// NewServer creates the API server.
func NewServer(b *bridge.Bridge, tokens *registry.TokenRegistry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{bridge: b, tokens: tokens, logger: logger}
}

// Router builds the chi router with the full route set.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(correlationID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/params", apphttp.HandleError(s.getParams))

		r.Post("/deposits", apphttp.HandleError(s.postDeposit))
		r.Get("/deposits/{id}", apphttp.HandleError(s.getDeposit))

		r.Post("/withdrawals", apphttp.HandleError(s.postWithdrawal))
		r.Get("/withdrawals/{id}", apphttp.HandleError(s.getWithdrawal))
		r.Post("/withdrawals/{id}/approve", apphttp.HandleError(s.postApprove))
		r.Post("/withdrawals/{id}/cancel", apphttp.HandleError(s.postCancel))
		r.Post("/withdrawals/{id}/uncancel", apphttp.HandleError(s.postUncancel))
		r.Post("/withdrawals/{id}/execute", apphttp.HandleError(s.postExecute))
	})

	return r
}

// correlationID attaches a correlation identifier to every request so agent
// logs can be matched to server logs.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getParams(w http.ResponseWriter, _ *http.Request) error {
	params := s.bridge.Params()
	writeJSON(w, http.StatusOK, &ParamsResponse{
		ChainCode:    uint32(params.ChainCode),
		CancelWindow: params.CancelWindow.String(),
		NextNonce:    params.NextNonce,
	})
	return nil
}

func (s *Server) postDeposit(w http.ResponseWriter, r *http.Request) error {
	var req DepositRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	from, err := parseAddress("from", req.From)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}
	destAccount, err := parseAccount("dest_account", req.DestAccount)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}

	id, err := s.bridge.Deposit(r.Context(), from, token, transfer.ChainCode(req.DestChain), destAccount, amount)
	if err != nil {
		return s.mapBridgeError(err)
	}

	writeJSON(w, http.StatusCreated, &TransferResponse{TransferID: id.Hex()})
	return nil
}

func (s *Server) getDeposit(w http.ResponseWriter, r *http.Request) error {
	id, err := transferID(r)
	if err != nil {
		return err
	}

	rec, ok := s.bridge.DepositByID(id)
	if !ok {
		return apperrors.ResourceNotFoundError(nil, "deposit not found")
	}

	decimals, _ := s.tokens.LocalDecimals(rec.Token)
	writeJSON(w, http.StatusOK, &DepositResponse{
		TransferID:    id.Hex(),
		DestChain:     uint32(rec.DestChain),
		SrcAccount:    common.Hash(rec.SrcAccount).Hex(),
		DestAccount:   common.Hash(rec.DestAccount).Hex(),
		Token:         rec.Token.Hex(),
		Amount:        rec.Amount.String(),
		DisplayAmount: displayAmount(rec.Amount, decimals),
		Fee:           rec.Fee.String(),
		Nonce:         rec.Nonce,
		CreatedAt:     rec.CreatedAt,
	})
	return nil
}

func (s *Server) postWithdrawal(w http.ResponseWriter, r *http.Request) error {
	var req SubmitWithdrawalRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	srcAccount, err := parseAccount("src_account", req.SrcAccount)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}
	gasTip, err := parseOptionalAmount("gas_tip", req.GasTip)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}

	id, err := s.bridge.SubmitWithdraw(r.Context(), transfer.ChainCode(req.SrcChain), srcAccount, recipient, token, amount, req.Nonce, gasTip)
	if err != nil {
		return s.mapBridgeError(err)
	}

	writeJSON(w, http.StatusCreated, &TransferResponse{TransferID: id.Hex()})
	return nil
}

func (s *Server) getWithdrawal(w http.ResponseWriter, r *http.Request) error {
	id, err := transferID(r)
	if err != nil {
		return err
	}

	rec, ok := s.bridge.Withdrawal(id)
	if !ok {
		return apperrors.ResourceNotFoundError(nil, "withdrawal not found")
	}

	resp := &WithdrawalResponse{
		TransferID:    id.Hex(),
		Stage:         withdrawalStage(&rec),
		SrcChain:      uint32(rec.SrcChain),
		SrcAccount:    common.Hash(rec.SrcAccount).Hex(),
		Recipient:     rec.Recipient.Hex(),
		Token:         rec.Token.Hex(),
		Amount:        rec.Amount.String(),
		DisplayAmount: displayAmount(rec.Amount, rec.SrcDecimals),
		Nonce:         rec.Nonce,
		GasTip:        rec.GasTip.String(),
		SubmittedAt:   rec.SubmittedAt,
	}
	if rec.Approved {
		approvedAt := rec.ApprovedAt
		executableAt := approvedAt.Add(s.bridge.CancelWindow())
		resp.ApprovedAt = &approvedAt
		resp.ExecutableAt = &executableAt
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (s *Server) postApprove(w http.ResponseWriter, r *http.Request) error {
	return s.withdrawalAction(w, r, s.bridge.Approve)
}

func (s *Server) postCancel(w http.ResponseWriter, r *http.Request) error {
	return s.withdrawalAction(w, r, s.bridge.Cancel)
}

func (s *Server) postUncancel(w http.ResponseWriter, r *http.Request) error {
	return s.withdrawalAction(w, r, s.bridge.Uncancel)
}

func (s *Server) postExecute(w http.ResponseWriter, r *http.Request) error {
	id, err := transferID(r)
	if err != nil {
		return err
	}
	if err := s.bridge.Execute(r.Context(), id); err != nil {
		return s.mapBridgeError(err)
	}
	writeJSON(w, http.StatusOK, &TransferResponse{TransferID: id.Hex()})
	return nil
}

type actionFunc func(ctx context.Context, caller common.Address, id common.Hash) error

func (s *Server) withdrawalAction(w http.ResponseWriter, r *http.Request, action actionFunc) error {
	id, err := transferID(r)
	if err != nil {
		return err
	}

	var req ActionRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}

	if err := action(r.Context(), caller, id); err != nil {
		return s.mapBridgeError(err)
	}
	writeJSON(w, http.StatusOK, &TransferResponse{TransferID: id.Hex()})
	return nil
}

// mapBridgeError translates core sentinel errors into service categories.
func (s *Server) mapBridgeError(err error) error {
	switch {
	case errors.Is(err, bridge.ErrWithdrawalNotFound):
		return apperrors.ResourceNotFoundError(err, err.Error())
	case errors.Is(err, bridge.ErrNotOperator),
		errors.Is(err, bridge.ErrNotCanceler),
		errors.Is(err, bridge.ErrGuardRejected):
		return apperrors.ForbiddenError(err, err.Error())
	case errors.Is(err, bridge.ErrCancelWindowActive),
		errors.Is(err, bridge.ErrCancelWindowElapsed):
		return apperrors.LockedError(err, err.Error())
	case errors.Is(err, bridge.ErrDuplicateTransfer),
		errors.Is(err, bridge.ErrNonceUsed),
		errors.Is(err, bridge.ErrAlreadyApproved),
		errors.Is(err, bridge.ErrNotApproved),
		errors.Is(err, bridge.ErrAlreadyCancelled),
		errors.Is(err, bridge.ErrNotCancelled),
		errors.Is(err, bridge.ErrCancelledState),
		errors.Is(err, bridge.ErrAlreadyExecuted):
		return apperrors.ConflictError(err, err.Error())
	case errors.Is(err, bridge.ErrCustodyFailure),
		errors.Is(err, bridge.ErrTipPayout):
		return apperrors.DependencyError(err, err.Error())
	case errors.Is(err, bridge.ErrNonPositiveAmount),
		errors.Is(err, bridge.ErrSameChain),
		errors.Is(err, bridge.ErrChainNotRegistered),
		errors.Is(err, bridge.ErrTokenNotRegistered),
		errors.Is(err, registry.ErrTokenNotFound),
		errors.Is(err, registry.ErrDestinationUnset):
		return apperrors.BadRequestError(err, err.Error())
	default:
		s.logger.Error("Unmapped bridge error", zap.Error(err))
		return apperrors.GeneralError(err)
	}
}

func transferID(r *http.Request) (common.Hash, error) {
	raw := chi.URLParam(r, "id")
	hashLen := 2 + 2*common.HashLength
	if len(raw) != hashLen || raw[0] != '0' || (raw[1] != 'x' && raw[1] != 'X') {
		return common.Hash{}, apperrors.BadRequestError(nil, "invalid transfer identifier")
	}
	return common.HexToHash(raw), nil
}

func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, requestBodyLimit))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
