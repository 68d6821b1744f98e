package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/tontiflex/internal/adapter/http/dto"
	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

// LoanService defines the behavior needed by LoanHandler.
type LoanService interface {
	Apply(ctx context.Context, actor domain.Actor, input usecase.ApplyLoanInput) (*domain.Loan, error)
	Get(ctx context.Context, id string) (*domain.Loan, error)
	Schedule(ctx context.Context, id string) ([]usecase.ScheduleLine, error)
	Review(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, error)
	DefineTerms(ctx context.Context, id string, actor domain.Actor, input usecase.DefineTermsInput) (*domain.LoanTerms, error)
	Transfer(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, error)
	Approve(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, error)
	Reject(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Loan, error)
	Disburse(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, []domain.Installment, error)
	Repay(ctx context.Context, id string, actor domain.Actor, phone string) (*usecase.RepaymentResult, error)
}

// LoanHandler handles loan applications, terms, disbursement and repayment.
type LoanHandler struct {
	loans  LoanService
	logger zerolog.Logger
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(loans LoanService, logger zerolog.Logger) *LoanHandler {
	return &LoanHandler{loans: loans, logger: logger}
}

// Apply files a loan application for the calling client.
func (h *LoanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req dto.ApplyLoanRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "invalid request", err)
		return
	}

	loan, err := h.loans.Apply(r.Context(), a, req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to apply for loan", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.LoanFromDomain(loan))
}

// Get retrieves a loan by ID.
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.visible(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.LoanFromDomain(loan))
}

// Schedule lists installments with penalties accrued as of today.
func (h *LoanHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.visible(w, r)
	if !ok {
		return
	}

	lines, err := h.loans.Schedule(r.Context(), loan.ID)
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ScheduleFromLines(lines))
}

// DefineTerms sets or replaces the loan terms during review.
func (h *LoanHandler) DefineTerms(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req dto.DefineTermsRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "invalid request", err)
		return
	}

	terms, err := h.loans.DefineTerms(r.Context(), chi.URLParam(r, "id"), a, req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to define terms", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.LoanTermsFromDomain(terms))
}

// Review starts the supervisor review.
func (h *LoanHandler) Review(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to review loan", h.loans.Review)
}

// Transfer hands the reviewed loan to an admin.
func (h *LoanHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to transfer loan", h.loans.Transfer)
}

// Approve records the admin approval.
func (h *LoanHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to approve loan", h.loans.Approve)
}

// Reject refuses the loan.
func (h *LoanHandler) Reject(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req dto.RejectRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "invalid request", err)
		return
	}

	loan, err := h.loans.Reject(r.Context(), chi.URLParam(r, "id"), a, req.Reason)
	h.respond(w, r, "failed to reject loan", loan, err)
}

// Disburse marks the loan disbursed and returns its generated schedule.
func (h *LoanHandler) Disburse(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	loan, installments, err := h.loans.Disburse(r.Context(), chi.URLParam(r, "id"), a)
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to disburse loan", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DisbursementFromDomain(loan, installments))
}

// Repay starts payment of the next pending installment.
func (h *LoanHandler) Repay(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "invalid request", err)
		return
	}

	result, err := h.loans.Repay(r.Context(), chi.URLParam(r, "id"), a, req.Phone)
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to start repayment", err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.RepaymentFromResult(result))
}

func (h *LoanHandler) transition(w http.ResponseWriter, r *http.Request, message string, fn func(context.Context, string, domain.Actor) (*domain.Loan, error)) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	loan, err := fn(r.Context(), chi.URLParam(r, "id"), a)
	h.respond(w, r, message, loan, err)
}

// visible loads the loan and hides it from clients who do not own it.
func (h *LoanHandler) visible(w http.ResponseWriter, r *http.Request) (*domain.Loan, bool) {
	a, ok := actor(w, r)
	if !ok {
		return nil, false
	}
	loan, err := h.loans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to get loan", err)
		return nil, false
	}
	if !canView(a, loan.ClientID) {
		writeDomainError(w, r, h.logger, "failed to get loan", domain.ErrLoanNotFound)
		return nil, false
	}
	return loan, true
}

func (h *LoanHandler) respond(w http.ResponseWriter, r *http.Request, message string, loan *domain.Loan, err error) {
	if err != nil {
		writeDomainError(w, r, h.logger, message, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.LoanFromDomain(loan))
}
