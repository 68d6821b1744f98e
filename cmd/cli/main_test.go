package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/infrastructure/auth"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestSchedulePreview(t *testing.T) {
	out, err := runCLI(t, "schedule", "preview",
		"--principal", "1200",
		"--months", "12",
		"--due-day", "5",
		"--disbursed", "2026-01-10",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "2026-02-05")
	assert.Contains(t, out, "2027-01-05")
	assert.Contains(t, out, "100.00")
	assert.Contains(t, out, "Total repaid: 1200.00")
}

func TestSchedulePreviewPenalty(t *testing.T) {
	out, err := runCLI(t, "schedule", "preview",
		"--principal", "1200",
		"--months", "12",
		"--due-day", "5",
		"--penalty-rate", "1",
		"--disbursed", "2026-01-10",
		"--as-of", "2026-02-15",
	)
	require.NoError(t, err)

	// first installment is 10 days late at 1% a day
	lines := strings.Split(out, "\n")
	require.Greater(t, len(lines), 2)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[1]), "10.00"), "unexpected first row %q", lines[1])
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[2]), "0.00"))
}

func TestSchedulePreviewRejectsBadTerms(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing principal", []string{}},
		{"bad principal", []string{"--principal", "abc"}},
		{"rate too high", []string{"--principal", "1000", "--annual-rate", "80"}},
		{"bad due day", []string{"--principal", "1000", "--due-day", "32"}},
		{"bad date", []string{"--principal", "1000", "--disbursed", "10/01/2026"}},
		{"no installments", []string{"--principal", "1000", "--months", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, append([]string{"schedule", "preview"}, tt.args...)...)
			assert.Error(t, err)
		})
	}
}

func TestBalanceCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/balances/client-1/savings/pool-1", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("fresh"))
		assert.Equal(t, "client-1", r.Header.Get("X-Actor-ID"))
		assert.Equal(t, "client", r.Header.Get("X-Actor-Role"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"owner_id":"client-1","pool_kind":"savings","pool_id":"pool-1","balance":"2500","currency":"XOF"}`))
	}))
	defer server.Close()

	out, err := runCLI(t, "--url", server.URL, "--actor-id", "client-1", "--actor-role", "client",
		"balance", "client-1", "savings", "pool-1", "--fresh")
	require.NoError(t, err)
	assert.Contains(t, out, "Balance: 2500 XOF")
}

func TestBalanceCommandRejectsUnknownPool(t *testing.T) {
	_, err := runCLI(t, "balance", "client-1", "checking", "pool-1")
	assert.Error(t, err)
}

func TestTransactionShow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transactions/tx-1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"tx-1","reference":"ref-1","workflow_id":"adh-1","purpose":"adhesion_fee","amount":"1000","currency":"XOF","status":"failed","reason":"insufficient funds"}`))
	}))
	defer server.Close()

	out, err := runCLI(t, "--url", server.URL, "--token", "tok", "transaction", "show", "tx-1")
	require.NoError(t, err)
	assert.Contains(t, out, "ref-1")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "insufficient funds")
}

func TestTransactionShowNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"transaction not found"}`))
	}))
	defer server.Close()

	_, err := runCLI(t, "--url", server.URL, "transaction", "show", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "transaction not found")
}

func TestReconcileSweep(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"clean sweep", `{"resubmitted":1,"pollers_started":2,"callbacks_replayed":3,"errors":0}`, false},
		{"sweep with errors", `{"resubmitted":0,"pollers_started":0,"callbacks_replayed":0,"errors":2}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/v1/admin/reconcile", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			out, err := runCLI(t, "--url", server.URL, "reconcile", "sweep")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Contains(t, out, "Pollers started: 2")
				assert.Contains(t, out, "Callbacks replayed: 3")
			}
		})
	}
}

func TestTokenCommand(t *testing.T) {
	out, err := runCLI(t, "token", "--secret", "s3cret", "--id", "agent-7", "--role", "agent", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := auth.NewJWTManager("s3cret", time.Hour).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	actor, err := claims.Actor()
	require.NoError(t, err)
	assert.Equal(t, "agent-7", actor.ID)
	assert.Equal(t, domain.RoleAgent, actor.Role)
}

func TestTokenCommandRejectsSystemRole(t *testing.T) {
	_, err := runCLI(t, "token", "--secret", "s3cret", "--id", "x", "--role", "system")
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	for _, sub := range []string{"up", "down"} {
		_, err := runCLI(t, "migrate", sub)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	}
}

func TestMigrateMissingDirectory(t *testing.T) {
	_, err := runCLI(t, "migrate", "down",
		"--database-url", "postgres://u:p@127.0.0.1:1/db?sslmode=disable",
		"--path", t.TempDir()+"/missing")
	assert.Error(t, err)
}
