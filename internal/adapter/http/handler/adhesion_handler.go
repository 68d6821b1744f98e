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

// AdhesionService defines the behavior needed by AdhesionHandler.
type AdhesionService interface {
	Submit(ctx context.Context, actor domain.Actor, input usecase.SubmitAdhesionInput) (*domain.Adhesion, error)
	Get(ctx context.Context, id string) (*domain.Adhesion, error)
	ListByClient(ctx context.Context, clientID string, limit, offset int) ([]*domain.Adhesion, error)
	Validate(ctx context.Context, id string, actor domain.Actor, notes string) (*domain.Adhesion, error)
	Reject(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Adhesion, error)
	InitiatePayment(ctx context.Context, id string, actor domain.Actor, phone string) (*domain.Adhesion, error)
	CancelPayment(ctx context.Context, id string, actor domain.Actor) (*domain.Adhesion, error)
}

// AdhesionHandler handles membership requests.
type AdhesionHandler struct {
	adhesions AdhesionService
	logger    zerolog.Logger
}

// NewAdhesionHandler creates a new AdhesionHandler.
func NewAdhesionHandler(adhesions AdhesionService, logger zerolog.Logger) *AdhesionHandler {
	return &AdhesionHandler{adhesions: adhesions, logger: logger}
}

// Submit files a new adhesion for the calling client.
func (h *AdhesionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req dto.SubmitAdhesionRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "invalid request", err)
		return
	}

	adhesion, err := h.adhesions.Submit(r.Context(), a, req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to submit adhesion", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.AdhesionFromDomain(adhesion))
}

// Get retrieves an adhesion by ID.
func (h *AdhesionHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	adhesion, err := h.adhesions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to get adhesion", err)
		return
	}
	if !canView(a, adhesion.ClientID) {
		writeDomainError(w, r, h.logger, "failed to get adhesion", domain.ErrAdhesionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdhesionFromDomain(adhesion))
}

// List returns a client's adhesions. Staff name the client with ?client_id=.
func (h *AdhesionHandler) List(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" && a.Role == domain.RoleClient {
		clientID = a.ID
	}
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "client_id is required")
		return
	}
	if !canView(a, clientID) {
		writeError(w, http.StatusForbidden, "forbidden", "clients can only list their own adhesions")
		return
	}

	limit := min(max(parseIntQuery(r, "limit", 20), 1), 100)
	offset := max(parseIntQuery(r, "offset", 0), 0)

	adhesions, err := h.adhesions.ListByClient(r.Context(), clientID, limit, offset)
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to list adhesions", err)
		return
	}

	resp := dto.ListAdhesionsResponse{
		Adhesions: make([]*dto.AdhesionResponse, 0, len(adhesions)),
		Limit:     limit,
		Offset:    offset,
	}
	for _, adhesion := range adhesions {
		resp.Adhesions = append(resp.Adhesions, dto.AdhesionFromDomain(adhesion))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Validate records the agent's approval.
func (h *AdhesionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req dto.NotesRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "invalid request", err)
		return
	}

	adhesion, err := h.adhesions.Validate(r.Context(), chi.URLParam(r, "id"), a, req.Notes)
	h.respond(w, r, "failed to validate adhesion", adhesion, err)
}

// Reject refuses the adhesion.
func (h *AdhesionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req dto.RejectRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "invalid request", err)
		return
	}

	adhesion, err := h.adhesions.Reject(r.Context(), chi.URLParam(r, "id"), a, req.Reason)
	h.respond(w, r, "failed to reject adhesion", adhesion, err)
}

// Pay starts collection of the adhesion fee. The outcome arrives asynchronously.
func (h *AdhesionHandler) Pay(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, r, h.logger, "invalid request", err)
		return
	}

	adhesion, err := h.adhesions.InitiatePayment(r.Context(), chi.URLParam(r, "id"), a, req.Phone)
	if err != nil {
		writeDomainError(w, r, h.logger, "failed to initiate payment", err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.AdhesionFromDomain(adhesion))
}

// CancelPayment aborts a pending fee payment.
func (h *AdhesionHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	adhesion, err := h.adhesions.CancelPayment(r.Context(), chi.URLParam(r, "id"), a)
	h.respond(w, r, "failed to cancel payment", adhesion, err)
}

func (h *AdhesionHandler) respond(w http.ResponseWriter, r *http.Request, message string, adhesion *domain.Adhesion, err error) {
	if err != nil {
		writeDomainError(w, r, h.logger, message, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdhesionFromDomain(adhesion))
}
