package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AdhesionSubmitted        State = "submitted"
	AdhesionAgentValidated   State = "agent_validated"
	AdhesionPaymentPending   State = "payment_pending"
	AdhesionPaymentConfirmed State = "payment_confirmed"
	AdhesionMember           State = "member"
	AdhesionRejected         State = "rejected"
	AdhesionExpired          State = "expired"
)

const (
	ActionValidate        Action = "validate"
	ActionReject          Action = "reject"
	ActionInitiatePayment Action = "initiate_payment"
	ActionConfirmPayment  Action = "confirm_payment"
	ActionFinalize        Action = "finalize"
	ActionExpirePayment   Action = "expire_payment"
)

// AdhesionMachine is the tontine membership process.
var AdhesionMachine = NewMachine("adhesion", AdhesionSubmitted,
	[]State{AdhesionMember, AdhesionRejected, AdhesionExpired},
	Edge{Action: ActionValidate, From: []State{AdhesionSubmitted}, To: AdhesionAgentValidated, Roles: []Role{RoleAgent}},
	Edge{Action: ActionReject, From: []State{AdhesionSubmitted, AdhesionAgentValidated}, To: AdhesionRejected, Roles: []Role{RoleAgent}},
	Edge{Action: ActionInitiatePayment, From: []State{AdhesionAgentValidated}, To: AdhesionPaymentPending, Roles: []Role{RoleClient}},
	Edge{Action: ActionConfirmPayment, From: []State{AdhesionPaymentPending}, To: AdhesionPaymentConfirmed, Roles: []Role{RoleSystem}},
	Edge{Action: ActionFinalize, From: []State{AdhesionPaymentConfirmed}, To: AdhesionMember, Roles: []Role{RoleSystem}},
	Edge{Action: ActionExpirePayment, From: []State{AdhesionPaymentPending}, To: AdhesionExpired, Roles: []Role{RoleSystem}},
)

// Adhesion is a client's application to join a tontine.
type Adhesion struct {
	ID            string
	ClientID      string
	TontineID     string
	Phone         string
	Fee           decimal.Decimal
	Contribution  decimal.Decimal
	State         State
	TransactionID string
	Notes         string
	Trail
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks submission data.
func (a *Adhesion) Validate() error {
	if a.ClientID == "" || a.TontineID == "" {
		return InvalidInput("client and tontine are required")
	}
	if err := ValidateAmount(a.Fee); err != nil {
		return err
	}
	if !a.Contribution.IsPositive() {
		return InvalidInput("contribution amount must be positive")
	}
	return nil
}

// Apply returns a copy of a moved along action. a is left untouched.
func (a Adhesion) Apply(action Action, actor Actor, at time.Time) (Adhesion, error) {
	next, err := AdhesionMachine.Transition(a.State, action, actor)
	if err != nil {
		return a, err
	}
	if action == ActionInitiatePayment && actor.ID != a.ClientID {
		return a, InvalidTransition("adhesion: only the applicant may pay")
	}
	a.State = next
	a.Trail = a.Trail.advanced(next, actor, at)
	a.UpdatedAt = at
	return a, nil
}
