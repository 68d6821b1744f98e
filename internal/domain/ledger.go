package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolKind distinguishes tontine contributions from savings accounts.
type PoolKind string

const (
	PoolTontine PoolKind = "tontine"
	PoolSavings PoolKind = "savings"
)

// Pool identifies one balance bucket of a client.
type Pool struct {
	Kind PoolKind
	ID   string
}

// Validate checks the pool reference.
func (p Pool) Validate() error {
	if p.Kind != PoolTontine && p.Kind != PoolSavings {
		return InvalidInput("unknown pool kind %q", p.Kind)
	}
	if p.ID == "" {
		return InvalidInput("pool id is required")
	}
	return nil
}

func (p Pool) String() string {
	return string(p.Kind) + ":" + p.ID
}

// EntryKind is the direction of a ledger record.
type EntryKind string

const (
	EntryCredit EntryKind = "credit"
	EntryDebit  EntryKind = "debit"
)

// LedgerRecord is an immutable contribution, deposit or withdrawal.
// Only Confirmed flips, once, when its transaction succeeds.
type LedgerRecord struct {
	ID            string
	OwnerID       string
	Pool          Pool
	Kind          EntryKind
	Amount        decimal.Decimal
	TransactionID string
	Confirmed     bool
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
}

// Validate checks record data.
func (r *LedgerRecord) Validate() error {
	if r.OwnerID == "" {
		return InvalidInput("owner is required")
	}
	if err := r.Pool.Validate(); err != nil {
		return err
	}
	if r.Kind != EntryCredit && r.Kind != EntryDebit {
		return InvalidInput("unknown entry kind %q", r.Kind)
	}
	return ValidateAmount(r.Amount)
}

// Balance is confirmed credits minus confirmed debits of owner in pool.
// Records of other owners or pools are ignored.
func Balance(records []LedgerRecord, ownerID string, pool Pool) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if !r.Confirmed || r.OwnerID != ownerID || r.Pool != pool {
			continue
		}
		switch r.Kind {
		case EntryCredit:
			total = total.Add(r.Amount)
		case EntryDebit:
			total = total.Sub(r.Amount)
		}
	}
	return total
}
