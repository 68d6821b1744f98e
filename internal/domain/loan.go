package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LoanSubmitted          State = "submitted"
	LoanUnderReview        State = "under_review"
	LoanTransferredToAdmin State = "transferred_to_admin"
	LoanApproved           State = "approved"
	LoanDisbursed          State = "disbursed"
	LoanRepaying           State = "repaying"
	LoanSettled            State = "settled"
	LoanRejected           State = "rejected"
)

const (
	ActionReview         Action = "review"
	ActionTransfer       Action = "transfer"
	ActionDisburse       Action = "disburse"
	ActionStartRepayment Action = "start_repayment"
	ActionSettle         Action = "settle"
)

// LoanMachine covers the application and the life of the granted loan.
var LoanMachine = NewMachine("loan", LoanSubmitted,
	[]State{LoanSettled, LoanRejected},
	Edge{Action: ActionReview, From: []State{LoanSubmitted}, To: LoanUnderReview, Roles: []Role{RoleSupervisor}},
	Edge{Action: ActionTransfer, From: []State{LoanUnderReview}, To: LoanTransferredToAdmin, Roles: []Role{RoleSupervisor}},
	Edge{Action: ActionApprove, From: []State{LoanTransferredToAdmin}, To: LoanApproved, Roles: []Role{RoleAdmin}},
	Edge{Action: ActionDisburse, From: []State{LoanApproved}, To: LoanDisbursed, Roles: []Role{RoleAdmin}},
	Edge{Action: ActionStartRepayment, From: []State{LoanDisbursed}, To: LoanRepaying, Roles: []Role{RoleSystem}},
	Edge{Action: ActionSettle, From: []State{LoanRepaying}, To: LoanSettled, Roles: []Role{RoleSystem}},
	Edge{
		Action: ActionReject,
		From:   []State{LoanSubmitted, LoanUnderReview, LoanTransferredToAdmin, LoanApproved},
		To:     LoanRejected,
		Roles:  []Role{RoleSupervisor, RoleAdmin},
	},
)

// Loan is a loan application and, once disbursed, the loan itself.
type Loan struct {
	ID            string
	ClientID      string
	Principal     decimal.Decimal
	DurationMonth int
	Purpose       string
	Phone         string
	State         State
	// TransactionID is the active or last repayment transaction.
	TransactionID string
	DisbursedAt   *time.Time
	FirstDueDate  *time.Time
	Notes         string
	Trail
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks application data.
func (l *Loan) Validate() error {
	if l.ClientID == "" {
		return InvalidInput("client is required")
	}
	if err := ValidateAmount(l.Principal); err != nil {
		return err
	}
	if l.DurationMonth < MinLoanMonths || l.DurationMonth > MaxLoanMonths {
		return InvalidInput("duration must be between %d and %d months", MinLoanMonths, MaxLoanMonths)
	}
	return nil
}

// Apply returns a copy of l moved along action. Guards needing terms or schedules
// are checked by the caller.
func (l Loan) Apply(action Action, actor Actor, at time.Time) (Loan, error) {
	next, err := LoanMachine.Transition(l.State, action, actor)
	if err != nil {
		return l, err
	}
	l.State = next
	l.Trail = l.Trail.advanced(next, actor, at)
	l.UpdatedAt = at
	return l, nil
}

// Repayable reports whether installments can be paid in the current state.
func (l *Loan) Repayable() bool {
	return l.State == LoanDisbursed || l.State == LoanRepaying
}

// Loan term limits.
const (
	MinLoanMonths = 1
	MaxLoanMonths = 60
)

var (
	maxAnnualRatePct   = decimal.NewFromInt(50)
	maxDailyPenaltyPct = decimal.NewFromInt(10)
	hundred            = decimal.NewFromInt(100)
	twelve             = decimal.NewFromInt(12)
)

// LoanTerms are set by a supervisor during review and frozen afterwards.
type LoanTerms struct {
	LoanID             string
	AnnualRatePct      decimal.Decimal
	DueDay             int
	DailyPenaltyPct    decimal.Decimal
	MonthlyInstallment decimal.Decimal
	DefinedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks term bounds.
func (t *LoanTerms) Validate() error {
	if t.AnnualRatePct.IsNegative() || t.AnnualRatePct.GreaterThan(maxAnnualRatePct) {
		return InvalidInput("annual rate must be between 0 and %s%%", maxAnnualRatePct)
	}
	if t.DueDay < 1 || t.DueDay > 31 {
		return InvalidInput("due day must be between 1 and 31")
	}
	if t.DailyPenaltyPct.IsNegative() || t.DailyPenaltyPct.GreaterThan(maxDailyPenaltyPct) {
		return InvalidInput("daily penalty must be between 0 and %s%%", maxDailyPenaltyPct)
	}
	return nil
}

// MonthlyRate converts the annual percentage to a monthly fraction.
func (t *LoanTerms) MonthlyRate() decimal.Decimal {
	return t.AnnualRatePct.Div(twelve).Div(hundred)
}

// DailyPenaltyRate converts the daily penalty percentage to a fraction.
func (t *LoanTerms) DailyPenaltyRate() decimal.Decimal {
	return t.DailyPenaltyPct.Div(hundred)
}

// InstallmentStatus is the repayment state of one installment.
type InstallmentStatus string

const (
	InstallmentPending  InstallmentStatus = "pending"
	InstallmentPaid     InstallmentStatus = "paid"
	InstallmentPaidLate InstallmentStatus = "paid_late"
)

// Installment is one row of a repayment schedule.
type Installment struct {
	LoanID        string
	Number        int
	DueDate       time.Time
	Amount        decimal.Decimal
	Principal     decimal.Decimal
	Interest      decimal.Decimal
	Remaining     decimal.Decimal
	Status        InstallmentStatus
	PaidAt        *time.Time
	PenaltyPaid   decimal.Decimal
	TransactionID string
}

// IsPaid reports whether the installment has been settled.
func (i *Installment) IsPaid() bool {
	return i.Status == InstallmentPaid || i.Status == InstallmentPaidLate
}

// NextPending returns the earliest unpaid installment of a schedule.
func NextPending(schedule []Installment) (Installment, bool) {
	for _, inst := range schedule {
		if !inst.IsPaid() {
			return inst, true
		}
	}
	return Installment{}, false
}
