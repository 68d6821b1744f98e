package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places amounts are quantized to.
const MoneyPlaces = 2

// MonthlyInstallment returns the constant annuity payment for principal over n months.
// A zero rate degenerates to principal / n.
func MonthlyInstallment(principal, monthlyRate decimal.Decimal, n int) (decimal.Decimal, error) {
	if n < 1 {
		return decimal.Zero, InvalidInput("installment count must be at least 1")
	}
	if !principal.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if monthlyRate.IsNegative() {
		return decimal.Zero, InvalidInput("rate cannot be negative")
	}

	months := decimal.NewFromInt(int64(n))
	if monthlyRate.IsZero() {
		return principal.Div(months).Round(MoneyPlaces), nil
	}

	growth := decimal.NewFromInt(1).Add(monthlyRate).Pow(months)
	installment := principal.Mul(monthlyRate).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))
	return installment.Round(MoneyPlaces), nil
}

// GenerateSchedule builds the repayment schedule of an amortizing loan.
// The last installment repays whatever principal remains, so rounding never leaves
// a residual balance.
func GenerateSchedule(principal, monthlyRate decimal.Decimal, n int, firstDue time.Time) ([]Installment, error) {
	installment, err := MonthlyInstallment(principal, monthlyRate, n)
	if err != nil {
		return nil, err
	}

	schedule := make([]Installment, 0, n)
	remaining := principal
	for k := 0; k < n; k++ {
		interest := remaining.Mul(monthlyRate).Round(MoneyPlaces)
		principalPart := installment.Sub(interest)
		if k == n-1 || principalPart.GreaterThan(remaining) {
			principalPart = remaining
		}
		if principalPart.IsNegative() {
			principalPart = decimal.Zero
		}

		remaining = remaining.Sub(principalPart)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		schedule = append(schedule, Installment{
			Number:      k + 1,
			DueDate:     AddMonths(firstDue, k),
			Amount:      principalPart.Add(interest),
			Principal:   principalPart,
			Interest:    interest,
			Remaining:   remaining,
			Status:      InstallmentPending,
			PenaltyPaid: decimal.Zero,
		})
	}

	return schedule, nil
}

// ComputePenalty returns the late penalty owed on inst as of today.
// It is zero for paid installments and on or before the due date.
func ComputePenalty(inst Installment, today time.Time, dailyRate decimal.Decimal) decimal.Decimal {
	if inst.IsPaid() {
		return decimal.Zero
	}
	days := DaysBetween(inst.DueDate, today)
	if days <= 0 {
		return decimal.Zero
	}
	return inst.Amount.Mul(dailyRate).Mul(decimal.NewFromInt(int64(days))).Round(MoneyPlaces)
}

// AmountDue is the installment amount plus the current penalty.
func AmountDue(inst Installment, today time.Time, dailyRate decimal.Decimal) decimal.Decimal {
	return inst.Amount.Add(ComputePenalty(inst, today, dailyRate))
}

// AddMonths moves t forward by months calendar months, clamping the day to the
// length of the target month. Always compute from the same anchor: repeated
// single-month steps would lose the original day after a short month.
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + months
	year += total / 12
	total %= 12
	if total < 0 {
		total += 12
		year--
	}
	target := time.Month(total + 1)
	if last := daysIn(year, target, t.Location()); day > last {
		day = last
	}
	return time.Date(year, target, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// NextDueDate returns the first date strictly after from that falls on dueDay,
// clamped to the month length.
func NextDueDate(from time.Time, dueDay int) time.Time {
	year, month, _ := from.Date()
	anchor := time.Date(year, month, 1, 0, 0, 0, 0, from.Location())
	for i := 0; ; i++ {
		m := AddMonths(anchor, i)
		day := min(dueDay, daysIn(m.Year(), m.Month(), m.Location()))
		candidate := time.Date(m.Year(), m.Month(), day, 0, 0, 0, 0, from.Location())
		if DaysBetween(from, candidate) > 0 {
			return candidate
		}
	}
}

// DaysBetween counts calendar days from a to b, ignoring the time of day.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
