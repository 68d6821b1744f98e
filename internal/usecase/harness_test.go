package usecase_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
	"github.com/iho/tontiflex/internal/usecase/mocks"
)

var (
	client     = domain.Actor{ID: "client-1", Role: domain.RoleClient}
	otherUser  = domain.Actor{ID: "client-2", Role: domain.RoleClient}
	agent      = domain.Actor{ID: "agent-1", Role: domain.RoleAgent}
	supervisor = domain.Actor{ID: "sup-1", Role: domain.RoleSupervisor}
	admin      = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	savings    = domain.Pool{Kind: domain.PoolSavings, ID: "sav-1"}
)

// fakeGateway is a provider that acknowledges every initiation and reports a
// configurable status for the references it knows.
type fakeGateway struct {
	mu        sync.Mutex
	known     map[string]bool
	status    domain.TransactionStatus
	initiated int
	queried   int

	// afterInitiate runs once the charge is registered; an error loses the response.
	afterInitiate func(ctx context.Context) error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{known: make(map[string]bool), status: domain.TxPending}
}

func (g *fakeGateway) SetStatus(s domain.TransactionStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = s
}

func (g *fakeGateway) Initiated() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initiated
}

func (g *fakeGateway) Initiate(ctx context.Context, req usecase.PaymentRequest) (*usecase.ProviderAck, error) {
	g.mu.Lock()
	g.initiated++
	ref := "P-" + req.Reference
	g.known[ref] = true
	g.known[req.Reference] = true
	hook := g.afterInitiate
	g.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	return &usecase.ProviderAck{ProviderRef: ref, Accepted: true, Status: domain.TxPending}, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, ref string) (*usecase.ProviderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queried++
	if !g.known[ref] {
		return nil, usecase.ErrProviderNotFound
	}
	return &usecase.ProviderStatus{Status: g.status, RawStatus: string(g.status)}, nil
}

func (g *fakeGateway) NormalizePhone(raw string) (string, error) {
	digits := strings.TrimPrefix(strings.ReplaceAll(raw, " ", ""), "+")
	if len(digits) != 11 || !strings.HasPrefix(digits, "229") {
		return "", &domain.Error{Kind: domain.KindInvalidPhone, Reason: raw}
	}
	return "+" + digits, nil
}

func (g *fakeGateway) VerifyWebhook(body []byte, signature string) error {
	if signature != "valid" {
		return domain.ErrInvalidWebhookSignature
	}
	return nil
}

type fakeWebhook struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
}

func (g *fakeGateway) ParseWebhook(body []byte) (*usecase.WebhookEvent, error) {
	var w fakeWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, domain.InvalidInput("malformed webhook")
	}
	ev := &usecase.WebhookEvent{
		TransactionID: w.TransactionID,
		Status:        usecase.ProviderStatus{Status: domain.TransactionStatus(w.Status), RawStatus: w.Status},
		Raw:           body,
	}
	if w.Amount != "" {
		ev.Amount = decimal.RequireFromString(w.Amount)
	}
	return ev, nil
}

func webhookBody(t *testing.T, ref string, status domain.TransactionStatus, amount decimal.Decimal) []byte {
	t.Helper()
	body, err := json.Marshal(fakeWebhook{TransactionID: ref, Status: string(status), Amount: amount.String()})
	require.NoError(t, err)
	return body
}

type harness struct {
	txRepo     *mocks.MockTransactionRepository
	adhesions  *mocks.MockAdhesionRepository
	loans      *mocks.MockLoanRepository
	schedule   *mocks.MockScheduleRepository
	retraits   *mocks.MockRetraitRepository
	ledgerRepo *mocks.MockLedgerRecordRepository
	outbox     *mocks.MockOutboxRepository
	audit      *mocks.MockAuditRepository
	cache      *mocks.MockBalanceCache
	gateway    *fakeGateway
	locker     *mocks.MockPollLocker

	reconciler *usecase.TransactionReconciler
	adhesion   *usecase.AdhesionUseCase
	ledger     *usecase.LedgerUseCase
	retrait    *usecase.RetraitUseCase
	loan       *usecase.LoanUseCase
}

func newHarness(t *testing.T, cfg usecase.ReconcilerConfig) *harness {
	t.Helper()
	h := &harness{
		txRepo:     mocks.NewMockTransactionRepository(),
		adhesions:  mocks.NewMockAdhesionRepository(),
		loans:      mocks.NewMockLoanRepository(),
		schedule:   mocks.NewMockScheduleRepository(),
		retraits:   mocks.NewMockRetraitRepository(),
		ledgerRepo: mocks.NewMockLedgerRecordRepository(),
		outbox:     mocks.NewMockOutboxRepository(),
		audit:      mocks.NewMockAuditRepository(),
		cache:      mocks.NewMockBalanceCache(),
		gateway:    newFakeGateway(),
		locker:     mocks.NewMockPollLocker(),
	}
	h.ledgerRepo.InFlight = func(transactionID string) bool {
		t, err := h.txRepo.GetByID(context.Background(), transactionID)
		return err == nil && !t.IsTerminal()
	}
	idGen := mocks.NewMockIDGenerator()
	logger := zerolog.Nop()

	h.reconciler = usecase.NewTransactionReconciler(h.txRepo, h.gateway, h.locker, h.outbox, idGen, nil, logger, cfg)
	t.Cleanup(h.reconciler.Stop)

	deps := usecase.WorkflowDeps{
		TxManager: mocks.NewMockTransactionManager(),
		Outbox:    h.outbox,
		Audit:     h.audit,
		IDGen:     idGen,
		Logger:    logger,
	}
	h.adhesion = usecase.NewAdhesionUseCase(deps, h.adhesions, h.reconciler)
	h.ledger = usecase.NewLedgerUseCase(deps, h.ledgerRepo, h.cache, h.reconciler)
	h.retrait = usecase.NewRetraitUseCase(deps, h.retraits, h.ledgerRepo, h.ledger, h.reconciler)
	h.loan = usecase.NewLoanUseCase(deps, h.loans, h.schedule, h.reconciler)

	h.reconciler.Register(domain.PurposeAdhesionFee, h.adhesion)
	h.reconciler.Register(domain.PurposeContribution, h.ledger)
	h.reconciler.Register(domain.PurposeDeposit, h.ledger)
	h.reconciler.Register(domain.PurposeWithdrawal, h.retrait)
	h.reconciler.Register(domain.PurposeLoanRepayment, h.loan)
	return h
}

// idleConfig keeps pollers asleep so webhooks decide the outcome.
func idleConfig() usecase.ReconcilerConfig {
	return usecase.ReconcilerConfig{
		MaxAttempts:    3,
		PollInterval:   time.Hour,
		GatewayRetries: 2,
		RetryInitial:   time.Millisecond,
		RetryMax:       2 * time.Millisecond,
	}
}

// fastConfig polls every few milliseconds.
func fastConfig() usecase.ReconcilerConfig {
	return usecase.ReconcilerConfig{
		MaxAttempts:    3,
		PollInterval:   5 * time.Millisecond,
		GatewayRetries: 1,
		RetryInitial:   time.Millisecond,
		RetryMax:       2 * time.Millisecond,
	}
}

func (h *harness) seedBalance(t *testing.T, owner string, pool domain.Pool, amount string) {
	t.Helper()
	h.ledgerRepo.Seed(domain.LedgerRecord{
		ID:            "seed-" + owner + "-" + amount,
		OwnerID:       owner,
		Pool:          pool,
		Kind:          domain.EntryCredit,
		Amount:        decimal.RequireFromString(amount),
		TransactionID: "seed-tx-" + amount,
		Confirmed:     true,
		CreatedAt:     time.Now(),
	})
}

// validatedAdhesion returns an adhesion waiting for its fee payment.
func (h *harness) validatedAdhesion(t *testing.T) *domain.Adhesion {
	t.Helper()
	ctx := context.Background()
	a, err := h.adhesion.Submit(ctx, client, usecase.SubmitAdhesionInput{
		TontineID:    "tontine-1",
		Phone:        "+229 97000000",
		Fee:          decimal.NewFromInt(2000),
		Contribution: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	a, err = h.adhesion.Validate(ctx, a.ID, agent, "")
	require.NoError(t, err)
	return a
}

func (h *harness) transaction(t *testing.T, id string) *domain.ExternalTransaction {
	t.Helper()
	tx, err := h.txRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tx
}
