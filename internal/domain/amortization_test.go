package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateSchedule_ZeroRate(t *testing.T) {
	first := date(2026, 1, 15)
	schedule, err := GenerateSchedule(decimal.NewFromInt(120000), decimal.Zero, 12, first)
	require.NoError(t, err)
	require.Len(t, schedule, 12)

	for i, inst := range schedule {
		assert.Equal(t, i+1, inst.Number)
		assert.True(t, inst.Amount.Equal(decimal.NewFromInt(10000)), "installment %d: %s", i+1, inst.Amount)
		assert.True(t, inst.Interest.IsZero())
		assert.Equal(t, InstallmentPending, inst.Status)
	}
	assert.True(t, schedule[11].Remaining.IsZero())
}

func TestGenerateSchedule_PrincipalSumsToLoan(t *testing.T) {
	principal := decimal.NewFromInt(500000)
	schedule, err := GenerateSchedule(principal, decimal.RequireFromString("0.01"), 12, date(2026, 2, 1))
	require.NoError(t, err)
	require.Len(t, schedule, 12)

	sum := decimal.Zero
	prev := principal
	for _, inst := range schedule {
		sum = sum.Add(inst.Principal)
		assert.True(t, inst.Remaining.LessThan(prev), "remaining must decrease")
		assert.True(t, inst.Amount.Equal(inst.Principal.Add(inst.Interest)))
		prev = inst.Remaining
	}

	assert.True(t, sum.Sub(principal).Abs().LessThanOrEqual(decimal.RequireFromString("0.01")), "sum %s", sum)
	assert.True(t, schedule[11].Remaining.IsZero())

	// 500000 at 1% over 12 months: annuity 44424.39
	assert.Equal(t, "44424.39", schedule[0].Amount.StringFixed(2))
	assert.Equal(t, "5000.00", schedule[0].Interest.StringFixed(2))
}

func TestGenerateSchedule_InvalidInput(t *testing.T) {
	_, err := GenerateSchedule(decimal.NewFromInt(1000), decimal.Zero, 0, date(2026, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateSchedule(decimal.Zero, decimal.Zero, 3, date(2026, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = GenerateSchedule(decimal.NewFromInt(1000), decimal.NewFromInt(-1), 3, date(2026, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateSchedule_SingleMonth(t *testing.T) {
	schedule, err := GenerateSchedule(decimal.NewFromInt(1000), decimal.RequireFromString("0.02"), 1, date(2026, 5, 10))
	require.NoError(t, err)
	require.Len(t, schedule, 1)
	assert.Equal(t, "1020.00", schedule[0].Amount.StringFixed(2))
	assert.True(t, schedule[0].Remaining.IsZero())
}

func TestGenerateSchedule_DueDatesClampWithoutDrift(t *testing.T) {
	schedule, err := GenerateSchedule(decimal.NewFromInt(60000), decimal.Zero, 4, date(2026, 1, 31))
	require.NoError(t, err)

	want := []time.Time{date(2026, 1, 31), date(2026, 2, 28), date(2026, 3, 31), date(2026, 4, 30)}
	for i, inst := range schedule {
		assert.Equal(t, want[i], inst.DueDate, "installment %d", i+1)
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{"same day", date(2026, 1, 15), 1, date(2026, 2, 15)},
		{"clamp to february", date(2026, 1, 31), 1, date(2026, 2, 28)},
		{"leap february", date(2028, 1, 31), 1, date(2028, 2, 29)},
		{"thirty day month", date(2026, 3, 31), 1, date(2026, 4, 30)},
		{"year rollover", date(2026, 11, 30), 3, date(2027, 2, 28)},
		{"zero", date(2026, 6, 1), 0, date(2026, 6, 1)},
		{"backwards", date(2026, 1, 31), -2, date(2025, 11, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.start, tt.months))
		})
	}
}

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		name   string
		from   time.Time
		dueDay int
		want   time.Time
	}{
		{"later this month", date(2026, 3, 3), 10, date(2026, 3, 10)},
		{"today rolls to next month", date(2026, 3, 10), 10, date(2026, 4, 10)},
		{"already passed", date(2026, 3, 20), 10, date(2026, 4, 10)},
		{"clamped in february", date(2026, 2, 1), 31, date(2026, 2, 28)},
		{"clamped day already passed", date(2026, 4, 30), 31, date(2026, 5, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextDueDate(tt.from, tt.dueDay))
		})
	}
}

func TestComputePenalty(t *testing.T) {
	due := date(2026, 3, 10)
	inst := Installment{DueDate: due, Amount: decimal.NewFromInt(10000), Status: InstallmentPending}
	rate := decimal.RequireFromString("0.01")

	assert.True(t, ComputePenalty(inst, due, rate).IsZero(), "zero on due date")
	assert.True(t, ComputePenalty(inst, due.Add(23*time.Hour), rate).IsZero(), "same calendar day")
	assert.True(t, ComputePenalty(inst, due.AddDate(0, 0, -3), rate).IsZero(), "early")

	prev := decimal.Zero
	for days := 1; days <= 40; days++ {
		p := ComputePenalty(inst, due.AddDate(0, 0, days), rate)
		assert.True(t, p.GreaterThan(prev), "day %d: %s <= %s", days, p, prev)
		prev = p
	}

	assert.Equal(t, "500.00", ComputePenalty(inst, due.AddDate(0, 0, 5), rate).StringFixed(2))
	assert.Equal(t, "10500.00", AmountDue(inst, due.AddDate(0, 0, 5), rate).StringFixed(2))
}

func TestComputePenalty_PaidIsZero(t *testing.T) {
	paidAt := date(2026, 4, 1)
	for _, status := range []InstallmentStatus{InstallmentPaid, InstallmentPaidLate} {
		inst := Installment{
			DueDate: date(2026, 3, 10),
			Amount:  decimal.NewFromInt(10000),
			Status:  status,
			PaidAt:  &paidAt,
		}
		assert.True(t, ComputePenalty(inst, date(2026, 6, 1), decimal.RequireFromString("0.05")).IsZero())
	}
}

func TestNextPending(t *testing.T) {
	schedule := []Installment{
		{Number: 1, Status: InstallmentPaid},
		{Number: 2, Status: InstallmentPaidLate},
		{Number: 3, Status: InstallmentPending},
	}
	inst, ok := NextPending(schedule)
	require.True(t, ok)
	assert.Equal(t, 3, inst.Number)

	_, ok = NextPending(schedule[:2])
	assert.False(t, ok)
}
