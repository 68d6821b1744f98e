package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBalance(t *testing.T) {
	pool := Pool{Kind: PoolTontine, ID: "ton-1"}
	other := Pool{Kind: PoolSavings, ID: "ton-1"}

	record := func(kind EntryKind, amount int64, confirmed bool) LedgerRecord {
		return LedgerRecord{OwnerID: "c1", Pool: pool, Kind: kind, Amount: decimal.NewFromInt(amount), Confirmed: confirmed}
	}

	tests := []struct {
		name    string
		records []LedgerRecord
		want    int64
	}{
		{"empty", nil, 0},
		{"credits only", []LedgerRecord{record(EntryCredit, 500, true), record(EntryCredit, 700, true)}, 1200},
		{"credits and debits", []LedgerRecord{record(EntryCredit, 1000, true), record(EntryDebit, 400, true)}, 600},
		{"unconfirmed ignored", []LedgerRecord{record(EntryCredit, 1000, true), record(EntryCredit, 999, false), record(EntryDebit, 50, false)}, 1000},
		{
			"other owner and pool ignored",
			[]LedgerRecord{
				record(EntryCredit, 100, true),
				{OwnerID: "c2", Pool: pool, Kind: EntryCredit, Amount: decimal.NewFromInt(1000), Confirmed: true},
				{OwnerID: "c1", Pool: other, Kind: EntryCredit, Amount: decimal.NewFromInt(1000), Confirmed: true},
			},
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Balance(tt.records, "c1", pool)
			if !got.Equal(decimal.NewFromInt(tt.want)) {
				t.Fatalf("expected %d, got %s", tt.want, got)
			}
		})
	}
}

func TestBalance_KDepositsMWithdrawals(t *testing.T) {
	pool := Pool{Kind: PoolSavings, ID: "sav-1"}
	a := decimal.RequireFromString("2500.50")
	b := decimal.RequireFromString("1000.25")

	for _, tc := range []struct{ k, m int }{{0, 0}, {1, 0}, {5, 3}, {31, 10}} {
		t.Run(fmt.Sprintf("k=%d,m=%d", tc.k, tc.m), func(t *testing.T) {
			var records []LedgerRecord
			for i := 0; i < tc.k; i++ {
				records = append(records, LedgerRecord{OwnerID: "o", Pool: pool, Kind: EntryCredit, Amount: a, Confirmed: true})
			}
			for i := 0; i < tc.m; i++ {
				records = append(records, LedgerRecord{OwnerID: "o", Pool: pool, Kind: EntryDebit, Amount: b, Confirmed: true})
			}

			want := a.Mul(decimal.NewFromInt(int64(tc.k))).Sub(b.Mul(decimal.NewFromInt(int64(tc.m))))
			if got := Balance(records, "o", pool); !got.Equal(want) {
				t.Fatalf("expected %s, got %s", want, got)
			}
		})
	}
}

func TestLedgerRecord_Validate(t *testing.T) {
	valid := LedgerRecord{OwnerID: "o", Pool: Pool{Kind: PoolTontine, ID: "t"}, Kind: EntryCredit, Amount: decimal.NewFromInt(10)}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid record, got %v", err)
	}

	bad := valid
	bad.Pool.Kind = "crypto"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	bad = valid
	bad.Amount = decimal.Zero
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
