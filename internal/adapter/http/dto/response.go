package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

// TrailResponse shows who moved an entity last and when each state was entered.
type TrailResponse struct {
	LastActorID   string               `json:"last_actor_id,omitempty"`
	LastActorRole string               `json:"last_actor_role,omitempty"`
	EnteredAt     map[string]time.Time `json:"entered_at,omitempty"`
}

func trailFromDomain(t domain.Trail) TrailResponse {
	entered := make(map[string]time.Time, len(t.EnteredAt))
	for s, at := range t.EnteredAt {
		entered[string(s)] = at
	}
	return TrailResponse{
		LastActorID:   t.ActorID,
		LastActorRole: string(t.ActorRole),
		EnteredAt:     entered,
	}
}

// AdhesionResponse represents an adhesion in API responses.
type AdhesionResponse struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"client_id"`
	TontineID     string          `json:"tontine_id"`
	Phone         string          `json:"phone"`
	Fee           decimal.Decimal `json:"fee"`
	Contribution  decimal.Decimal `json:"contribution"`
	State         string          `json:"state"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Trail         TrailResponse   `json:"trail"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AdhesionFromDomain converts a domain adhesion to response.
func AdhesionFromDomain(a *domain.Adhesion) *AdhesionResponse {
	return &AdhesionResponse{
		ID:            a.ID,
		ClientID:      a.ClientID,
		TontineID:     a.TontineID,
		Phone:         a.Phone,
		Fee:           a.Fee,
		Contribution:  a.Contribution,
		State:         string(a.State),
		TransactionID: a.TransactionID,
		Notes:         a.Notes,
		Trail:         trailFromDomain(a.Trail),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// ListAdhesionsResponse is one page of a client's adhesions.
type ListAdhesionsResponse struct {
	Adhesions []*AdhesionResponse `json:"adhesions"`
	Limit     int                 `json:"limit"`
	Offset    int                 `json:"offset"`
}

// LoanResponse represents a loan in API responses.
type LoanResponse struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"client_id"`
	Principal     decimal.Decimal `json:"principal"`
	DurationMonth int             `json:"duration_months"`
	Purpose       string          `json:"purpose,omitempty"`
	Phone         string          `json:"phone"`
	State         string          `json:"state"`
	TransactionID string          `json:"transaction_id,omitempty"`
	DisbursedAt   *time.Time      `json:"disbursed_at,omitempty"`
	FirstDueDate  *time.Time      `json:"first_due_date,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Trail         TrailResponse   `json:"trail"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// LoanFromDomain converts a domain loan to response.
func LoanFromDomain(l *domain.Loan) *LoanResponse {
	return &LoanResponse{
		ID:            l.ID,
		ClientID:      l.ClientID,
		Principal:     l.Principal,
		DurationMonth: l.DurationMonth,
		Purpose:       l.Purpose,
		Phone:         l.Phone,
		State:         string(l.State),
		TransactionID: l.TransactionID,
		DisbursedAt:   l.DisbursedAt,
		FirstDueDate:  l.FirstDueDate,
		Notes:         l.Notes,
		Trail:         trailFromDomain(l.Trail),
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

// LoanTermsResponse represents loan terms in API responses.
type LoanTermsResponse struct {
	LoanID             string          `json:"loan_id"`
	AnnualRatePct      decimal.Decimal `json:"annual_rate_pct"`
	DueDay             int             `json:"due_day"`
	DailyPenaltyPct    decimal.Decimal `json:"daily_penalty_pct"`
	MonthlyInstallment decimal.Decimal `json:"monthly_installment"`
	DefinedBy          string          `json:"defined_by"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// LoanTermsFromDomain converts domain terms to response.
func LoanTermsFromDomain(t *domain.LoanTerms) *LoanTermsResponse {
	return &LoanTermsResponse{
		LoanID:             t.LoanID,
		AnnualRatePct:      t.AnnualRatePct,
		DueDay:             t.DueDay,
		DailyPenaltyPct:    t.DailyPenaltyPct,
		MonthlyInstallment: t.MonthlyInstallment,
		DefinedBy:          t.DefinedBy,
		UpdatedAt:          t.UpdatedAt,
	}
}

// InstallmentResponse represents one schedule row.
type InstallmentResponse struct {
	Number      int             `json:"number"`
	DueDate     string          `json:"due_date"`
	Amount      decimal.Decimal `json:"amount"`
	Principal   decimal.Decimal `json:"principal"`
	Interest    decimal.Decimal `json:"interest"`
	Remaining   decimal.Decimal `json:"remaining"`
	Status      string          `json:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	PenaltyPaid decimal.Decimal `json:"penalty_paid"`
	Penalty     decimal.Decimal `json:"penalty"`
	AmountDue   decimal.Decimal `json:"amount_due"`
}

// InstallmentFromDomain converts an installment with no live penalty.
func InstallmentFromDomain(i domain.Installment) InstallmentResponse {
	return InstallmentResponse{
		Number:      i.Number,
		DueDate:     i.DueDate.Format(time.DateOnly),
		Amount:      i.Amount,
		Principal:   i.Principal,
		Interest:    i.Interest,
		Remaining:   i.Remaining,
		Status:      string(i.Status),
		PaidAt:      i.PaidAt,
		PenaltyPaid: i.PenaltyPaid,
		Penalty:     decimal.Zero,
		AmountDue:   i.Amount,
	}
}

// ScheduleFromLines converts schedule lines with their live penalties.
func ScheduleFromLines(lines []usecase.ScheduleLine) []InstallmentResponse {
	result := make([]InstallmentResponse, len(lines))
	for i, l := range lines {
		r := InstallmentFromDomain(l.Installment)
		r.Penalty = l.Penalty
		r.AmountDue = l.AmountDue
		result[i] = r
	}
	return result
}

// DisbursementResponse is a disbursed loan with its generated schedule.
type DisbursementResponse struct {
	Loan     *LoanResponse         `json:"loan"`
	Schedule []InstallmentResponse `json:"schedule"`
}

// DisbursementFromDomain converts a disbursement result.
func DisbursementFromDomain(l *domain.Loan, installments []domain.Installment) *DisbursementResponse {
	schedule := make([]InstallmentResponse, len(installments))
	for i, inst := range installments {
		schedule[i] = InstallmentFromDomain(inst)
	}
	return &DisbursementResponse{Loan: LoanFromDomain(l), Schedule: schedule}
}

// RetraitResponse represents a withdrawal in API responses.
type RetraitResponse struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"client_id"`
	PoolKind      string          `json:"pool_kind"`
	PoolID        string          `json:"pool_id"`
	Amount        decimal.Decimal `json:"amount"`
	Phone         string          `json:"phone"`
	State         string          `json:"state"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Trail         TrailResponse   `json:"trail"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RetraitFromDomain converts a domain retrait to response.
func RetraitFromDomain(r *domain.Retrait) *RetraitResponse {
	return &RetraitResponse{
		ID:            r.ID,
		ClientID:      r.ClientID,
		PoolKind:      string(r.Pool.Kind),
		PoolID:        r.Pool.ID,
		Amount:        r.Amount,
		Phone:         r.Phone,
		State:         string(r.State),
		TransactionID: r.TransactionID,
		Notes:         r.Notes,
		Trail:         trailFromDomain(r.Trail),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// TransactionResponse represents an external transaction. The provider payload
// is not exposed.
type TransactionResponse struct {
	ID                  string          `json:"id"`
	Reference           string          `json:"reference"`
	ProviderRef         string          `json:"provider_ref,omitempty"`
	WorkflowID          string          `json:"workflow_id"`
	Purpose             string          `json:"purpose"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	Phone               string          `json:"phone"`
	Status              string          `json:"status"`
	Reason              string          `json:"reason,omitempty"`
	PollCount           int             `json:"poll_count"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	CallbackCompletedAt *time.Time      `json:"callback_completed_at,omitempty"`
}

// TransactionFromDomain converts a domain transaction to response.
func TransactionFromDomain(t *domain.ExternalTransaction) *TransactionResponse {
	if t == nil {
		return nil
	}
	return &TransactionResponse{
		ID:                  t.ID,
		Reference:           t.Reference,
		ProviderRef:         t.ProviderRef,
		WorkflowID:          t.WorkflowID,
		Purpose:             string(t.Purpose),
		Amount:              t.Amount,
		Currency:            t.Currency,
		Phone:               t.Phone,
		Status:              string(t.Status),
		Reason:              t.Reason,
		PollCount:           t.PollCount,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
		CompletedAt:         t.CompletedAt,
		CallbackCompletedAt: t.CallbackCompletedAt,
	}
}

// LedgerRecordResponse represents a ledger record.
type LedgerRecordResponse struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	PoolKind      string          `json:"pool_kind"`
	PoolID        string          `json:"pool_id"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Confirmed     bool            `json:"confirmed"`
	CreatedAt     time.Time       `json:"created_at"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
}

// LedgerRecordFromDomain converts a domain ledger record.
func LedgerRecordFromDomain(r *domain.LedgerRecord) *LedgerRecordResponse {
	return &LedgerRecordResponse{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		PoolKind:      string(r.Pool.Kind),
		PoolID:        r.Pool.ID,
		Kind:          string(r.Kind),
		Amount:        r.Amount,
		TransactionID: r.TransactionID,
		Confirmed:     r.Confirmed,
		CreatedAt:     r.CreatedAt,
		ConfirmedAt:   r.ConfirmedAt,
	}
}

// DepositResponse pairs the pending record with its payment.
type DepositResponse struct {
	Record      *LedgerRecordResponse `json:"record"`
	Transaction *TransactionResponse  `json:"transaction"`
}

// DepositFromResult converts a deposit result.
func DepositFromResult(r *usecase.DepositResult) *DepositResponse {
	return &DepositResponse{
		Record:      LedgerRecordFromDomain(r.Record),
		Transaction: TransactionFromDomain(r.Transaction),
	}
}

// RepaymentResponse describes a started repayment.
type RepaymentResponse struct {
	Loan        *LoanResponse        `json:"loan"`
	Installment InstallmentResponse  `json:"installment"`
	Penalty     decimal.Decimal      `json:"penalty"`
	Transaction *TransactionResponse `json:"transaction"`
}

// RepaymentFromResult converts a repayment result.
func RepaymentFromResult(r *usecase.RepaymentResult) *RepaymentResponse {
	inst := InstallmentFromDomain(r.Installment)
	inst.Penalty = r.Penalty
	inst.AmountDue = r.Installment.Amount.Add(r.Penalty)
	return &RepaymentResponse{
		Loan:        LoanFromDomain(r.Loan),
		Installment: inst,
		Penalty:     r.Penalty,
		Transaction: TransactionFromDomain(r.Transaction),
	}
}

// BalanceResponse is the confirmed balance of one pool.
type BalanceResponse struct {
	OwnerID  string          `json:"owner_id"`
	PoolKind string          `json:"pool_kind"`
	PoolID   string          `json:"pool_id"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}
