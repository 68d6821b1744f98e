package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/tontiflex/internal/adapter/http/dto"
	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

type loanServiceStub struct {
	applyFn       func(ctx context.Context, actor domain.Actor, input usecase.ApplyLoanInput) (*domain.Loan, error)
	getFn         func(ctx context.Context, id string) (*domain.Loan, error)
	scheduleFn    func(ctx context.Context, id string) ([]usecase.ScheduleLine, error)
	transitionFn  func(action, id string, actor domain.Actor) (*domain.Loan, error)
	defineTermsFn func(ctx context.Context, id string, actor domain.Actor, input usecase.DefineTermsInput) (*domain.LoanTerms, error)
	rejectFn      func(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Loan, error)
	disburseFn    func(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, []domain.Installment, error)
	repayFn       func(ctx context.Context, id string, actor domain.Actor, phone string) (*usecase.RepaymentResult, error)
}

func (s *loanServiceStub) Apply(ctx context.Context, actor domain.Actor, input usecase.ApplyLoanInput) (*domain.Loan, error) {
	return s.applyFn(ctx, actor, input)
}

func (s *loanServiceStub) Get(ctx context.Context, id string) (*domain.Loan, error) {
	return s.getFn(ctx, id)
}

func (s *loanServiceStub) Schedule(ctx context.Context, id string) ([]usecase.ScheduleLine, error) {
	return s.scheduleFn(ctx, id)
}

func (s *loanServiceStub) Review(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, error) {
	return s.transitionFn("review", id, actor)
}

func (s *loanServiceStub) DefineTerms(ctx context.Context, id string, actor domain.Actor, input usecase.DefineTermsInput) (*domain.LoanTerms, error) {
	return s.defineTermsFn(ctx, id, actor, input)
}

func (s *loanServiceStub) Transfer(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, error) {
	return s.transitionFn("transfer", id, actor)
}

func (s *loanServiceStub) Approve(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, error) {
	return s.transitionFn("approve", id, actor)
}

func (s *loanServiceStub) Reject(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Loan, error) {
	return s.rejectFn(ctx, id, actor, reason)
}

func (s *loanServiceStub) Disburse(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, []domain.Installment, error) {
	return s.disburseFn(ctx, id, actor)
}

func (s *loanServiceStub) Repay(ctx context.Context, id string, actor domain.Actor, phone string) (*usecase.RepaymentResult, error) {
	return s.repayFn(ctx, id, actor, phone)
}

func sampleLoan(state domain.State) *domain.Loan {
	return &domain.Loan{
		ID:            "loan-1",
		ClientID:      "client-1",
		Principal:     decimal.NewFromInt(100000),
		DurationMonth: 12,
		Phone:         "+22997000001",
		State:         state,
	}
}

func TestLoanHandler_Apply(t *testing.T) {
	var captured usecase.ApplyLoanInput
	h := NewLoanHandler(&loanServiceStub{
		applyFn: func(ctx context.Context, actor domain.Actor, input usecase.ApplyLoanInput) (*domain.Loan, error) {
			captured = input
			return sampleLoan(domain.LoanSubmitted), nil
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Apply(rec, newRequest(t, http.MethodPost, "/api/v1/loans", dto.ApplyLoanRequest{
		Principal:     decimal.NewFromInt(100000),
		DurationMonth: 12,
		Purpose:       "stock",
		Phone:         "97000001",
	}, &clientActor, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 12, captured.DurationMonth)
	assert.Equal(t, "stock", captured.Purpose)
}

func TestLoanHandler_ActionsDispatch(t *testing.T) {
	var calls []string
	h := NewLoanHandler(&loanServiceStub{
		transitionFn: func(action, id string, actor domain.Actor) (*domain.Loan, error) {
			calls = append(calls, action+":"+id+":"+actor.ID)
			return sampleLoan(domain.LoanUnderReview), nil
		},
	}, zerolog.Nop())
	params := map[string]string{"id": "loan-1"}

	for _, fn := range []http.HandlerFunc{h.Review, h.Transfer, h.Approve} {
		rec := httptest.NewRecorder()
		fn(rec, newRequest(t, http.MethodPost, "/api/v1/loans/loan-1/x", nil, &supervisorActor, params))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, []string{"review:loan-1:sup-1", "transfer:loan-1:sup-1", "approve:loan-1:sup-1"}, calls)
}

func TestLoanHandler_DefineTermsValidation(t *testing.T) {
	var captured usecase.DefineTermsInput
	h := NewLoanHandler(&loanServiceStub{
		defineTermsFn: func(ctx context.Context, id string, actor domain.Actor, input usecase.DefineTermsInput) (*domain.LoanTerms, error) {
			captured = input
			return &domain.LoanTerms{LoanID: id, AnnualRatePct: input.AnnualRatePct, DueDay: input.DueDay, DefinedBy: actor.ID}, nil
		},
	}, zerolog.Nop())
	params := map[string]string{"id": "loan-1"}

	rec := httptest.NewRecorder()
	h.DefineTerms(rec, newRequest(t, http.MethodPut, "/api/v1/loans/loan-1/terms",
		dto.DefineTermsRequest{AnnualRatePct: decimal.NewFromInt(12), DueDay: 32}, &supervisorActor, params))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.DefineTerms(rec, newRequest(t, http.MethodPut, "/api/v1/loans/loan-1/terms",
		dto.DefineTermsRequest{AnnualRatePct: decimal.NewFromInt(12), DueDay: 5, DailyPenaltyPct: decimal.RequireFromString("0.5")}, &supervisorActor, params))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, captured.DueDay)

	var resp dto.LoanTermsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sup-1", resp.DefinedBy)
}

func TestLoanHandler_ScheduleVisibility(t *testing.T) {
	due := time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)
	h := NewLoanHandler(&loanServiceStub{
		getFn: func(ctx context.Context, id string) (*domain.Loan, error) {
			return sampleLoan(domain.LoanDisbursed), nil
		},
		scheduleFn: func(ctx context.Context, id string) ([]usecase.ScheduleLine, error) {
			return []usecase.ScheduleLine{{
				Installment: domain.Installment{LoanID: id, Number: 1, DueDate: due, Amount: decimal.NewFromInt(8885), Status: domain.InstallmentPending},
				Penalty:     decimal.NewFromInt(10),
				AmountDue:   decimal.NewFromInt(8895),
			}}, nil
		},
	}, zerolog.Nop())
	params := map[string]string{"id": "loan-1"}

	rec := httptest.NewRecorder()
	h.Schedule(rec, newRequest(t, http.MethodGet, "/api/v1/loans/loan-1/schedule", nil, &clientActor, params))
	require.Equal(t, http.StatusOK, rec.Code)

	var lines []dto.InstallmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lines))
	require.Len(t, lines, 1)
	assert.True(t, lines[0].AmountDue.Equal(decimal.NewFromInt(8895)))

	rec = httptest.NewRecorder()
	h.Schedule(rec, newRequest(t, http.MethodGet, "/api/v1/loans/loan-1/schedule", nil, &otherClient, params))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoanHandler_GetNotFound(t *testing.T) {
	h := NewLoanHandler(&loanServiceStub{
		getFn: func(ctx context.Context, id string) (*domain.Loan, error) {
			return nil, domain.ErrLoanNotFound
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Get(rec, newRequest(t, http.MethodGet, "/api/v1/loans/missing", nil, &agentActor, map[string]string{"id": "missing"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoanHandler_DisburseReturnsSchedule(t *testing.T) {
	h := NewLoanHandler(&loanServiceStub{
		disburseFn: func(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, []domain.Installment, error) {
			return sampleLoan(domain.LoanDisbursed), []domain.Installment{
				{Number: 1, Amount: decimal.NewFromInt(50250)},
				{Number: 2, Amount: decimal.NewFromInt(50250)},
			}, nil
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Disburse(rec, newRequest(t, http.MethodPost, "/api/v1/loans/loan-1/disburse", nil,
		&domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}, map[string]string{"id": "loan-1"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.DisbursementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "disbursed", resp.Loan.State)
	assert.Len(t, resp.Schedule, 2)
}

func TestLoanHandler_RepayNoPendingInstallment(t *testing.T) {
	h := NewLoanHandler(&loanServiceStub{
		repayFn: func(ctx context.Context, id string, actor domain.Actor, phone string) (*usecase.RepaymentResult, error) {
			return nil, domain.BusinessRule("loan has no pending installment")
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Repay(rec, newRequest(t, http.MethodPost, "/api/v1/loans/loan-1/repay", nil, &clientActor, map[string]string{"id": "loan-1"}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLoanHandler_RepayAccepted(t *testing.T) {
	h := NewLoanHandler(&loanServiceStub{
		repayFn: func(ctx context.Context, id string, actor domain.Actor, phone string) (*usecase.RepaymentResult, error) {
			assert.Equal(t, "+22996000000", phone)
			return &usecase.RepaymentResult{
				Loan:        sampleLoan(domain.LoanDisbursed),
				Installment: domain.Installment{Number: 1, Amount: decimal.NewFromInt(8885)},
				Penalty:     decimal.NewFromInt(15),
				Transaction: &domain.ExternalTransaction{ID: "tx-9", Status: domain.TxPending},
			}, nil
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Repay(rec, newRequest(t, http.MethodPost, "/api/v1/loans/loan-1/repay",
		dto.PaymentRequest{Phone: "+22996000000"}, &clientActor, map[string]string{"id": "loan-1"}))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp dto.RepaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Installment.AmountDue.Equal(decimal.NewFromInt(8900)))
	assert.Equal(t, "tx-9", resp.Transaction.ID)
}
