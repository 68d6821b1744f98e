package handler

import (
	"context"
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

type retraitServiceStub struct {
	requestFn  func(ctx context.Context, actor domain.Actor, input usecase.RequestRetraitInput) (*domain.Retrait, error)
	getFn      func(ctx context.Context, id string) (*domain.Retrait, error)
	approveFn  func(ctx context.Context, id string, actor domain.Actor) (*domain.Retrait, error)
	rejectFn   func(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Retrait, error)
	dispatchFn func(ctx context.Context, id string, actor domain.Actor) (*domain.Retrait, error)
}

func (s *retraitServiceStub) Request(ctx context.Context, actor domain.Actor, input usecase.RequestRetraitInput) (*domain.Retrait, error) {
	return s.requestFn(ctx, actor, input)
}

func (s *retraitServiceStub) Get(ctx context.Context, id string) (*domain.Retrait, error) {
	return s.getFn(ctx, id)
}

func (s *retraitServiceStub) Approve(ctx context.Context, id string, actor domain.Actor) (*domain.Retrait, error) {
	return s.approveFn(ctx, id, actor)
}

func (s *retraitServiceStub) Reject(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Retrait, error) {
	return s.rejectFn(ctx, id, actor, reason)
}

func (s *retraitServiceStub) Dispatch(ctx context.Context, id string, actor domain.Actor) (*domain.Retrait, error) {
	return s.dispatchFn(ctx, id, actor)
}

func sampleRetrait(state domain.State) *domain.Retrait {
	return &domain.Retrait{
		ID:       "ret-1",
		ClientID: "client-1",
		Pool:     domain.Pool{Kind: domain.PoolSavings, ID: "sav-1"},
		Amount:   decimal.NewFromInt(2000),
		State:    state,
	}
}

func TestRetraitHandler_Request(t *testing.T) {
	var captured usecase.RequestRetraitInput
	h := NewRetraitHandler(&retraitServiceStub{
		requestFn: func(ctx context.Context, actor domain.Actor, input usecase.RequestRetraitInput) (*domain.Retrait, error) {
			captured = input
			return sampleRetrait(domain.RetraitPending), nil
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Request(rec, newRequest(t, http.MethodPost, "/api/v1/retraits", dto.RequestRetraitRequest{
		PoolRequest: dto.PoolRequest{Kind: "savings", ID: "sav-1"},
		Amount:      decimal.NewFromInt(2000),
		Phone:       "97000001",
	}, &clientActor, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, domain.Pool{Kind: domain.PoolSavings, ID: "sav-1"}, captured.Pool)
}

func TestRetraitHandler_ApproveInsufficientBalance(t *testing.T) {
	h := NewRetraitHandler(&retraitServiceStub{
		approveFn: func(ctx context.Context, id string, actor domain.Actor) (*domain.Retrait, error) {
			return nil, domain.BusinessRule("insufficient balance: 1500 < 2000")
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Approve(rec, newRequest(t, http.MethodPost, "/api/v1/retraits/ret-1/approve", nil, &agentActor, map[string]string{"id": "ret-1"}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient balance: 1500 < 2000", decodeError(t, rec).Message)
}

func TestRetraitHandler_DispatchAccepted(t *testing.T) {
	h := NewRetraitHandler(&retraitServiceStub{
		dispatchFn: func(ctx context.Context, id string, actor domain.Actor) (*domain.Retrait, error) {
			return sampleRetrait(domain.RetraitPaymentDispatched), nil
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Dispatch(rec, newRequest(t, http.MethodPost, "/api/v1/retraits/ret-1/dispatch", nil, &agentActor, map[string]string{"id": "ret-1"}))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRetraitHandler_GetHidesOtherClients(t *testing.T) {
	h := NewRetraitHandler(&retraitServiceStub{
		getFn: func(ctx context.Context, id string) (*domain.Retrait, error) {
			return sampleRetrait(domain.RetraitPending), nil
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Get(rec, newRequest(t, http.MethodGet, "/api/v1/retraits/ret-1", nil, &otherClient, map[string]string{"id": "ret-1"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
