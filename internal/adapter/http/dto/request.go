package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

// SubmitAdhesionRequest represents a request to join a tontine.
type SubmitAdhesionRequest struct {
	TontineID    string          `json:"tontine_id" validate:"required,max=64"`
	Phone        string          `json:"phone" validate:"required,max=32"`
	Fee          decimal.Decimal `json:"fee" validate:"positive_decimal"`
	Contribution decimal.Decimal `json:"contribution" validate:"positive_decimal"`
	Notes        string          `json:"notes,omitempty" validate:"max=500"`
}

// ToUseCaseInput converts to use case input.
func (r *SubmitAdhesionRequest) ToUseCaseInput() usecase.SubmitAdhesionInput {
	return usecase.SubmitAdhesionInput{
		TontineID:    r.TontineID,
		Phone:        r.Phone,
		Fee:          r.Fee,
		Contribution: r.Contribution,
		Notes:        r.Notes,
	}
}

// NotesRequest carries optional reviewer notes.
type NotesRequest struct {
	Notes string `json:"notes,omitempty" validate:"max=500"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// PaymentRequest optionally overrides the phone charged or paid. The phone on
// file is used when empty.
type PaymentRequest struct {
	Phone string `json:"phone,omitempty" validate:"max=32"`
}

// ApplyLoanRequest represents a loan application.
type ApplyLoanRequest struct {
	Principal     decimal.Decimal `json:"principal" validate:"positive_decimal"`
	DurationMonth int             `json:"duration_months" validate:"required,min=1,max=60"`
	Purpose       string          `json:"purpose,omitempty" validate:"max=200"`
	Phone         string          `json:"phone" validate:"required,max=32"`
	Notes         string          `json:"notes,omitempty" validate:"max=500"`
}

// ToUseCaseInput converts to use case input.
func (r *ApplyLoanRequest) ToUseCaseInput() usecase.ApplyLoanInput {
	return usecase.ApplyLoanInput{
		Principal:     r.Principal,
		DurationMonth: r.DurationMonth,
		Purpose:       r.Purpose,
		Phone:         r.Phone,
		Notes:         r.Notes,
	}
}

// DefineTermsRequest holds a supervisor's loan terms.
type DefineTermsRequest struct {
	AnnualRatePct   decimal.Decimal `json:"annual_rate_pct" validate:"nonnegative_decimal"`
	DueDay          int             `json:"due_day" validate:"required,min=1,max=31"`
	DailyPenaltyPct decimal.Decimal `json:"daily_penalty_pct" validate:"nonnegative_decimal"`
}

// ToUseCaseInput converts to use case input.
func (r *DefineTermsRequest) ToUseCaseInput() usecase.DefineTermsInput {
	return usecase.DefineTermsInput{
		AnnualRatePct:   r.AnnualRatePct,
		DueDay:          r.DueDay,
		DailyPenaltyPct: r.DailyPenaltyPct,
	}
}

// PoolRequest references a balance bucket.
type PoolRequest struct {
	Kind string `json:"pool_kind" validate:"required,oneof=tontine savings"`
	ID   string `json:"pool_id" validate:"required,max=64"`
}

func (p PoolRequest) pool() domain.Pool {
	return domain.Pool{Kind: domain.PoolKind(p.Kind), ID: p.ID}
}

// RequestRetraitRequest represents a withdrawal request.
type RequestRetraitRequest struct {
	PoolRequest
	Amount decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Phone  string          `json:"phone" validate:"required,max=32"`
	Notes  string          `json:"notes,omitempty" validate:"max=500"`
}

// ToUseCaseInput converts to use case input.
func (r *RequestRetraitRequest) ToUseCaseInput() usecase.RequestRetraitInput {
	return usecase.RequestRetraitInput{
		Pool:   r.pool(),
		Amount: r.Amount,
		Phone:  r.Phone,
		Notes:  r.Notes,
	}
}

// DepositRequest represents a contribution or savings deposit.
type DepositRequest struct {
	PoolRequest
	Amount decimal.Decimal `json:"amount" validate:"positive_decimal"`
	Phone  string          `json:"phone" validate:"required,max=32"`
}

// ToUseCaseInput converts to use case input.
func (r *DepositRequest) ToUseCaseInput() usecase.DepositInput {
	return usecase.DepositInput{
		Pool:   r.pool(),
		Amount: r.Amount,
		Phone:  r.Phone,
	}
}
