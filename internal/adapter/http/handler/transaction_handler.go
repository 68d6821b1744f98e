package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/tontiflex/internal/adapter/http/dto"
	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

// Signature headers accepted on provider notifications.
const (
	SignatureHeader       = "X-Payment-Signature"
	LegacySignatureHeader = "X-KKIAPAY-SIGNATURE"
)

// ReconcilerService defines the behavior needed by TransactionHandler.
type ReconcilerService interface {
	Get(ctx context.Context, id string) (*domain.ExternalTransaction, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	Resume(ctx context.Context) (*usecase.SweepResult, error)
}

// TransactionHandler exposes external transactions, the provider webhook and
// the reconciliation sweep.
type TransactionHandler struct {
	reconciler ReconcilerService
	logger     zerolog.Logger
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(reconciler ReconcilerService, logger zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{reconciler: reconciler, logger: logger}
}

// Get retrieves a transaction by ID. Staff only.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if !a.Role.IsStaff() {
		writeError(w, http.StatusForbidden, "forbidden", "staff only")
		return
	}

	t, err := h.reconciler.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(t))
}

// Webhook applies a signed provider notification. Duplicates are acknowledged.
func (h *TransactionHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		signature = r.Header.Get(LegacySignatureHeader)
	}

	if err := h.reconciler.HandleWebhook(r.Context(), body, signature); err != nil {
		writeDomainError(w, r, h.logger, "webhook rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// Reconcile runs one resume sweep over stuck transactions.
func (h *TransactionHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.Resume(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "reconciliation sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
