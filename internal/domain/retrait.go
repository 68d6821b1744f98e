package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RetraitPending           State = "pending"
	RetraitApproved          State = "approved"
	RetraitPaymentDispatched State = "payment_dispatched"
	RetraitConfirmed         State = "confirmed"
	RetraitRejected          State = "rejected"
	RetraitExpired           State = "expired"
)

const (
	ActionApprove  Action = "approve"
	ActionDispatch Action = "dispatch"
	ActionConfirm  Action = "confirm"
)

// RetraitMachine is the withdrawal process.
var RetraitMachine = NewMachine("retrait", RetraitPending,
	[]State{RetraitConfirmed, RetraitRejected, RetraitExpired},
	Edge{Action: ActionApprove, From: []State{RetraitPending}, To: RetraitApproved, Roles: []Role{RoleAgent}},
	Edge{Action: ActionDispatch, From: []State{RetraitApproved}, To: RetraitPaymentDispatched, Roles: []Role{RoleAgent}},
	Edge{Action: ActionConfirm, From: []State{RetraitPaymentDispatched}, To: RetraitConfirmed, Roles: []Role{RoleSystem}},
	Edge{Action: ActionExpirePayment, From: []State{RetraitPaymentDispatched}, To: RetraitExpired, Roles: []Role{RoleSystem}},
	Edge{Action: ActionReject, From: []State{RetraitPending}, To: RetraitRejected, Roles: []Role{RoleAgent}},
)

// Retrait is a withdrawal request against a pool balance.
type Retrait struct {
	ID            string
	ClientID      string
	Pool          Pool
	Amount        decimal.Decimal
	Phone         string
	State         State
	TransactionID string
	Notes         string
	Trail
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks request data.
func (r *Retrait) Validate() error {
	if r.ClientID == "" {
		return InvalidInput("client is required")
	}
	if err := r.Pool.Validate(); err != nil {
		return err
	}
	return ValidateAmount(r.Amount)
}

// Apply returns a copy of r moved along action.
// The balance precondition is checked by the caller before approve and dispatch.
func (r Retrait) Apply(action Action, actor Actor, at time.Time) (Retrait, error) {
	next, err := RetraitMachine.Transition(r.State, action, actor)
	if err != nil {
		return r, err
	}
	r.State = next
	r.Trail = r.Trail.advanced(next, actor, at)
	r.UpdatedAt = at
	return r, nil
}

// CheckFunds is the data guard for approve and dispatch.
func (r *Retrait) CheckFunds(balance decimal.Decimal) error {
	if r.Amount.GreaterThan(balance) {
		return BusinessRule("insufficient balance: requested %s, available %s",
			r.Amount.StringFixed(2), balance.StringFixed(2))
	}
	return nil
}
