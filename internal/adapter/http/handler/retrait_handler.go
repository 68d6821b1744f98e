package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/tontiflex/internal/adapter/http/dto"
	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

// RetraitService defines the behavior needed by RetraitHandler.
type RetraitService interface {
	Request(ctx context.Context, actor domain.Actor, input usecase.RequestRetraitInput) (*domain.Retrait, error)
	Get(ctx context.Context, id string) (*domain.Retrait, error)
	Approve(ctx context.Context, id string, actor domain.Actor) (*domain.Retrait, error)
	Reject(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Retrait, error)
	Dispatch(ctx context.Context, id string, actor domain.Actor) (*domain.Retrait, error)
}

// RetraitHandler handles withdrawal requests.
type RetraitHandler struct {
	retraits RetraitService
	logger   zerolog.Logger
}

// NewRetraitHandler creates a new RetraitHandler.
func NewRetraitHandler(retraits RetraitService, logger zerolog.Logger) *RetraitHandler {
	return &RetraitHandler{retraits: retraits, logger: logger}
}

// Request files a withdrawal for the calling client.
func (h *RetraitHandler) Request(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req dto.RequestRetraitRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "invalid request", err)
		return
	}

	retrait, err := h.retraits.Request(r.Context(), a, req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to request withdrawal", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.RetraitFromDomain(retrait))
}

// Get retrieves a withdrawal by ID.
func (h *RetraitHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	retrait, err := h.retraits.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to get withdrawal", err)
		return
	}
	if !canView(a, retrait.ClientID) {
		writeDomainError(w, r, h.logger, "failed to get withdrawal", domain.ErrRetraitNotFound)
		return
	}
	writeJSON(w, http.StatusOK, dto.RetraitFromDomain(retrait))
}

// Approve records the agent approval after the balance check.
func (h *RetraitHandler) Approve(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	retrait, err := h.retraits.Approve(r.Context(), chi.URLParam(r, "id"), a)
	h.respond(w, r, http.StatusOK, "failed to approve withdrawal", retrait, err)
}

// Dispatch sends the payout. The outcome arrives asynchronously.
func (h *RetraitHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	retrait, err := h.retraits.Dispatch(r.Context(), chi.URLParam(r, "id"), a)
	h.respond(w, r, http.StatusAccepted, "failed to dispatch withdrawal", retrait, err)
}

// Reject refuses the withdrawal.
func (h *RetraitHandler) Reject(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req dto.RejectRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "invalid request", err)
		return
	}

	retrait, err := h.retraits.Reject(r.Context(), chi.URLParam(r, "id"), a, req.Reason)
	h.respond(w, r, http.StatusOK, "failed to reject withdrawal", retrait, err)
}

func (h *RetraitHandler) respond(w http.ResponseWriter, r *http.Request, status int, message string, retrait *domain.Retrait, err error) {
	if err != nil {
		writeDomainError(w, r, h.logger, message, err)
		return
	}
	writeJSON(w, status, dto.RetraitFromDomain(retrait))
}
