package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation limits
const (
	// MinAmount is the smallest payable amount in XOF.
	MinAmount = "1"
	// MaxAmount caps a single mobile-money operation.
	MaxAmount   = "100000000"
	MaxNotesLen = 1000
)

var (
	minAmount = decimal.RequireFromString(MinAmount)
	maxAmount = decimal.RequireFromString(MaxAmount)
)

// ValidateCurrency accepts XOF only.
func ValidateCurrency(currency string) error {
	if strings.ToUpper(strings.TrimSpace(currency)) != DefaultCurrency {
		return fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}
	return nil
}

// ValidateAmount checks a payment amount against platform limits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.LessThan(minAmount) {
		return InvalidInput("minimum amount is %s", MinAmount)
	}
	if amount.GreaterThan(maxAmount) {
		return InvalidInput("maximum amount is %s", MaxAmount)
	}
	if !amount.Equal(amount.Round(MoneyPlaces)) {
		return InvalidInput("amount has more than %d decimals", MoneyPlaces)
	}
	return nil
}

// ValidateNotes bounds free-text fields.
func ValidateNotes(notes string) error {
	if len(notes) > MaxNotesLen {
		return InvalidInput("notes exceed %d characters", MaxNotesLen)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const maxPageSize = 500
	const defaultPageSize = 50

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
