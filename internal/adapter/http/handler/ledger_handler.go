package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/adapter/http/dto"
	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	Deposit(ctx context.Context, actor domain.Actor, input usecase.DepositInput) (*usecase.DepositResult, error)
	Balance(ctx context.Context, ownerID string, pool domain.Pool) (decimal.Decimal, error)
	CachedBalance(ctx context.Context, ownerID string, pool domain.Pool) (decimal.Decimal, error)
}

// LedgerHandler handles deposits and balance queries.
type LedgerHandler struct {
	ledger LedgerService
	logger zerolog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger LedgerService, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

// Deposit starts a contribution or savings deposit collection.
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req dto.DepositRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "invalid request", err)
		return
	}

	result, err := h.ledger.Deposit(r.Context(), a, req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to start deposit", err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.DepositFromResult(result))
}

// Balance returns the confirmed balance of one pool. ?fresh=true bypasses the cache.
func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	owner := chi.URLParam(r, "owner")
	if !canView(a, owner) {
		writeError(w, http.StatusForbidden, "forbidden", "clients can only read their own balances")
		return
	}
	pool := domain.Pool{Kind: domain.PoolKind(chi.URLParam(r, "kind")), ID: chi.URLParam(r, "pool")}
	if err := pool.Validate(); err != nil {
		writeDomainError(w, r, h.logger, "invalid pool", err)
		return
	}

	balance := h.ledger.CachedBalance
	if r.URL.Query().Get("fresh") == "true" {
		balance = h.ledger.Balance
	}
	amount, err := balance(r.Context(), owner, pool)
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to compute balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		OwnerID:  owner,
		PoolKind: string(pool.Kind),
		PoolID:   pool.ID,
		Balance:  amount,
		Currency: domain.DefaultCurrency,
	})
}
