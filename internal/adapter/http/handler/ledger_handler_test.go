package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/tontiflex/internal/adapter/http/dto"
	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

type ledgerServiceStub struct {
	depositFn func(ctx context.Context, actor domain.Actor, input usecase.DepositInput) (*usecase.DepositResult, error)
	balance   decimal.Decimal
	fresh     int
	cached    int
}

func (s *ledgerServiceStub) Deposit(ctx context.Context, actor domain.Actor, input usecase.DepositInput) (*usecase.DepositResult, error) {
	return s.depositFn(ctx, actor, input)
}

func (s *ledgerServiceStub) Balance(ctx context.Context, ownerID string, pool domain.Pool) (decimal.Decimal, error) {
	s.fresh++
	return s.balance, nil
}

func (s *ledgerServiceStub) CachedBalance(ctx context.Context, ownerID string, pool domain.Pool) (decimal.Decimal, error) {
	s.cached++
	return s.balance, nil
}

func TestLedgerHandler_Deposit(t *testing.T) {
	h := NewLedgerHandler(&ledgerServiceStub{
		depositFn: func(ctx context.Context, actor domain.Actor, input usecase.DepositInput) (*usecase.DepositResult, error) {
			assert.Equal(t, domain.PoolTontine, input.Pool.Kind)
			return &usecase.DepositResult{
				Record: &domain.LedgerRecord{
					ID:      "rec-1",
					OwnerID: actor.ID,
					Pool:    input.Pool,
					Kind:    domain.EntryCredit,
					Amount:  input.Amount,
				},
				Transaction: &domain.ExternalTransaction{ID: "tx-1", Status: domain.TxPending},
			}, nil
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Deposit(rec, newRequest(t, http.MethodPost, "/api/v1/deposits", dto.DepositRequest{
		PoolRequest: dto.PoolRequest{Kind: "tontine", ID: "t-1"},
		Amount:      decimal.NewFromInt(500),
		Phone:       "97000001",
	}, &clientActor, nil))

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp dto.DepositResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Record.Confirmed)
	assert.Equal(t, "tx-1", resp.Transaction.ID)
}

func TestLedgerHandler_Balance(t *testing.T) {
	stub := &ledgerServiceStub{balance: decimal.NewFromInt(1500)}
	h := NewLedgerHandler(stub, zerolog.Nop())
	params := map[string]string{"owner": "client-1", "kind": "savings", "pool": "sav-1"}

	rec := httptest.NewRecorder()
	h.Balance(rec, newRequest(t, http.MethodGet, "/api/v1/balances/client-1/savings/sav-1", nil, &clientActor, params))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Balance.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, domain.DefaultCurrency, resp.Currency)
	assert.Equal(t, 1, stub.cached)

	rec = httptest.NewRecorder()
	h.Balance(rec, newRequest(t, http.MethodGet, "/api/v1/balances/client-1/savings/sav-1?fresh=true", nil, &agentActor, params))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stub.fresh)
}

func TestLedgerHandler_BalanceRejects(t *testing.T) {
	h := NewLedgerHandler(&ledgerServiceStub{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Balance(rec, newRequest(t, http.MethodGet, "/api/v1/balances/client-1/savings/sav-1", nil, &otherClient,
		map[string]string{"owner": "client-1", "kind": "savings", "pool": "sav-1"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.Balance(rec, newRequest(t, http.MethodGet, "/api/v1/balances/client-1/checking/c-1", nil, &clientActor,
		map[string]string{"owner": "client-1", "kind": "checking", "pool": "c-1"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
