package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/infrastructure/metrics"
)

// Terminal write sources, used for logs and metrics.
const (
	sourceInitiate = "initiate"
	sourcePoll     = "poll"
	sourceWebhook  = "webhook"
	sourceCancel   = "cancel"
)

// ReconcilerConfig bounds polling and gateway retries.
type ReconcilerConfig struct {
	MaxAttempts    int
	PollInterval   time.Duration
	GatewayRetries int
	RetryInitial   time.Duration
	RetryMax       time.Duration
	// GatewayTimeout is the provider client's per-call timeout.
	GatewayTimeout time.Duration
	SweepBatch     int
	Currency       string
}

// PollLeaseTTL covers a full polling run: every attempt may sleep, then spend its
// whole retry budget on timed-out status queries.
func (c ReconcilerConfig) PollLeaseTTL() time.Duration {
	c = c.withDefaults()
	retries := time.Duration(c.GatewayRetries)
	attempt := c.PollInterval + (retries+1)*c.GatewayTimeout + retries*c.RetryMax
	return time.Duration(c.MaxAttempts)*attempt + 2*c.PollInterval
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultPollAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.GatewayRetries < 0 {
		c.GatewayRetries = 0
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = 200 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 2 * time.Second
	}
	if c.GatewayTimeout <= 0 {
		c.GatewayTimeout = DefaultGatewayTimeout
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = DefaultSweepBatch
	}
	if c.Currency == "" {
		c.Currency = domain.DefaultCurrency
	}
	return c
}

// CreatePaymentInput describes a payment a workflow needs.
type CreatePaymentInput struct {
	WorkflowID  string
	Purpose     domain.Purpose
	Amount      decimal.Decimal
	Phone       string
	Description string
}

// SweepResult summarizes one Resume pass.
type SweepResult struct {
	Resubmitted       int `json:"resubmitted"`
	PollersStarted    int `json:"pollers_started"`
	CallbacksReplayed int `json:"callbacks_replayed"`
	Errors            int `json:"errors"`
}

// TransactionReconciler drives external transactions to exactly one terminal status.
type TransactionReconciler struct {
	txRepo  TransactionRepository
	gateway PaymentGateway
	locker  PollLocker
	outbox  OutboxRepository
	idGen   IDGenerator
	metrics *metrics.Metrics
	logger  zerolog.Logger
	cfg     ReconcilerConfig
	now     func() time.Time

	mu       sync.Mutex
	handlers map[domain.Purpose]TerminalHandler
	pollers  map[string]context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewTransactionReconciler creates a reconciler. locker, outbox and m may be nil.
func NewTransactionReconciler(
	txRepo TransactionRepository,
	gateway PaymentGateway,
	locker PollLocker,
	outbox OutboxRepository,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger zerolog.Logger,
	cfg ReconcilerConfig,
) *TransactionReconciler {
	ctx, cancel := context.WithCancel(context.Background())
	return &TransactionReconciler{
		txRepo:   txRepo,
		gateway:  gateway,
		locker:   locker,
		outbox:   outbox,
		idGen:    idGen,
		metrics:  m,
		logger:   logger.With().Str("component", "reconciler").Logger(),
		cfg:      cfg.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
		handlers: make(map[domain.Purpose]TerminalHandler),
		pollers:  make(map[string]context.CancelFunc),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// WithClock replaces the time source.
func (r *TransactionReconciler) WithClock(now func() time.Time) *TransactionReconciler {
	r.now = now
	return r
}

// Register sets the handler notified when a transaction of purpose becomes terminal.
func (r *TransactionReconciler) Register(purpose domain.Purpose, h TerminalHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[purpose] = h
}

// Get returns a transaction.
func (r *TransactionReconciler) Get(ctx context.Context, id string) (*domain.ExternalTransaction, error) {
	return r.txRepo.GetByID(ctx, id)
}

// Create persists a new transaction in status created. The phone number is normalized
// to the provider's plan and the workflow must not already have an active transaction.
func (r *TransactionReconciler) Create(ctx context.Context, tx Transaction, in CreatePaymentInput) (*domain.ExternalTransaction, error) {
	phone, err := r.gateway.NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}

	now := r.now()
	id := r.idGen.Generate()
	t := &domain.ExternalTransaction{
		ID:          id,
		Reference:   in.Purpose.Reference(id),
		WorkflowID:  in.WorkflowID,
		Purpose:     in.Purpose,
		Amount:      in.Amount,
		Currency:    r.cfg.Currency,
		Phone:       phone,
		Description: in.Description,
		Status:      domain.TxCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	active, err := r.txRepo.GetActiveByWorkflow(ctx, in.WorkflowID)
	switch {
	case err == nil:
		return nil, domain.BusinessRule("a payment is already in progress (%s)", active.Reference)
	case !errors.Is(err, domain.ErrTransactionNotFound):
		return nil, err
	}

	if err := r.txRepo.Create(ctx, tx, t); err != nil {
		if errors.Is(err, domain.ErrActiveTransaction) {
			return nil, domain.BusinessRule("a payment is already in progress")
		}
		return nil, err
	}
	return t, nil
}

// Submit initiates a created transaction at the provider and starts polling it.
// If the provider cannot be reached within the retry bound the transaction becomes
// failed and a GatewayError is returned. Submit does not stop when ctx is cancelled:
// once a charge may have reached the provider its outcome has to be recorded.
func (r *TransactionReconciler) Submit(ctx context.Context, id string) (*domain.ExternalTransaction, error) {
	return r.submit(context.WithoutCancel(ctx), id, false)
}

func (r *TransactionReconciler) submit(ctx context.Context, id string, lookupFirst bool) (*domain.ExternalTransaction, error) {
	t, err := r.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch t.Status {
	case domain.TxCreated:
	case domain.TxPending:
		r.StartPolling(t.ID)
		return t, nil
	default:
		return t, nil
	}

	logger := r.logger.With().Str("transaction_id", t.ID).Str("reference", t.Reference).Logger()

	ack, err := r.initiate(ctx, t, lookupFirst)
	if err != nil && !isPermanent(err) {
		// the last call may have reached the provider before failing
		known, lerr := r.lookupReference(ctx, t)
		switch {
		case known != nil:
			logger.Warn().Err(err).Msg("initiation failed but the provider knows the reference")
			ack, err = known, nil
		case lerr != nil:
			logger.Warn().Err(err).AnErr("lookup_error", lerr).Msg("initiation outcome unknown, polling")
			return r.trackUnconfirmed(ctx, logger, t)
		}
	}
	if err != nil {
		logger.Error().Err(err).Msg("payment initiation failed")
		if _, werr := r.applyTerminal(ctx, t.ID, domain.TerminalUpdate{
			Status:      domain.TxFailed,
			Reason:      domain.ReasonGatewayError,
			CompletedAt: r.now(),
		}, sourceInitiate); werr != nil {
			return nil, werr
		}
		return r.refresh(ctx, t), domain.GatewayFailure("payment initiation", err)
	}

	if !ack.Accepted || ack.Status == domain.TxFailed || ack.Status == domain.TxExpired {
		logger.Warn().Str("status", string(ack.Status)).Msg("provider refused payment")
		if _, err := r.applyTerminal(ctx, t.ID, domain.TerminalUpdate{
			Status:      terminalOrFailed(ack.Status),
			Reason:      "ProviderRefused",
			Payload:     ack.Payload,
			CompletedAt: r.now(),
		}, sourceInitiate); err != nil {
			return nil, err
		}
		return r.refresh(ctx, t), nil
	}

	providerRef := ack.ProviderRef
	if providerRef == "" {
		providerRef = t.Reference
	}
	marked, err := r.txRepo.MarkPending(ctx, t.ID, providerRef, ack.Payload, r.now())
	if err != nil {
		return nil, fmt.Errorf("mark pending: %w", err)
	}
	if !marked {
		// cancelled while the provider call was in flight
		logger.Info().Str("provider_ref", providerRef).Msg("transaction left created state during initiation")
		return r.refresh(ctx, t), nil
	}
	logger.Info().Str("provider_ref", providerRef).Msg("payment initiated")

	if ack.Status == domain.TxSuccess {
		if _, err := r.applyTerminal(ctx, t.ID, domain.TerminalUpdate{
			Status:      domain.TxSuccess,
			Payload:     ack.Payload,
			CompletedAt: r.now(),
		}, sourceInitiate); err != nil {
			return nil, err
		}
		return r.refresh(ctx, t), nil
	}

	r.StartPolling(t.ID)
	return r.refresh(ctx, t), nil
}

// initiate calls the provider at most once per acknowledged reference. Before any
// retry (and first, when lookupFirst is set) it asks the provider whether the reference
// already exists, so a lost response never produces a second charge.
func (r *TransactionReconciler) initiate(ctx context.Context, t *domain.ExternalTransaction, lookupFirst bool) (*ProviderAck, error) {
	req := PaymentRequest{
		Amount:      t.Amount,
		Currency:    t.Currency,
		Phone:       t.Phone,
		Reference:   t.Reference,
		Description: t.Description,
		Purpose:     t.Purpose,
	}

	var ack *ProviderAck
	lookup := lookupFirst
	op := func() error {
		if lookup {
			st, err := r.gateway.QueryStatus(ctx, t.Reference)
			switch {
			case err == nil:
				ack = &ProviderAck{ProviderRef: t.Reference, Accepted: true, Status: st.Status, Payload: st.Payload}
				return nil
			case !errors.Is(err, ErrProviderNotFound):
				return retryable(err)
			}
		}
		lookup = true

		if err := r.txRepo.IncrementInitiateAttempts(ctx, t.ID, r.now()); err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		a, err := r.gateway.Initiate(ctx, req)
		if err != nil {
			r.metrics.GatewayCall("initiate", "error", time.Since(start))
			return retryable(err)
		}
		r.metrics.GatewayCall("initiate", "ok", time.Since(start))
		ack = a
		return nil
	}

	if err := backoff.Retry(op, r.backoff(ctx)); err != nil {
		return nil, err
	}
	return ack, nil
}

// lookupReference asks the provider once about t's internal reference. It returns
// (nil, nil) when the provider does not know it.
func (r *TransactionReconciler) lookupReference(ctx context.Context, t *domain.ExternalTransaction) (*ProviderAck, error) {
	start := time.Now()
	st, err := r.gateway.QueryStatus(ctx, t.Reference)
	switch {
	case err == nil:
		r.metrics.GatewayCall("status", "ok", time.Since(start))
		return &ProviderAck{ProviderRef: t.Reference, Accepted: true, Status: st.Status, Payload: st.Payload}, nil
	case errors.Is(err, ErrProviderNotFound):
		r.metrics.GatewayCall("status", "ok", time.Since(start))
		return nil, nil
	default:
		r.metrics.GatewayCall("status", "error", time.Since(start))
		return nil, err
	}
}

// trackUnconfirmed moves t to pending under its internal reference so polling
// settles an initiation whose outcome is unknown.
func (r *TransactionReconciler) trackUnconfirmed(ctx context.Context, logger zerolog.Logger, t *domain.ExternalTransaction) (*domain.ExternalTransaction, error) {
	marked, err := r.txRepo.MarkPending(ctx, t.ID, t.Reference, nil, r.now())
	if err != nil {
		return nil, fmt.Errorf("mark pending: %w", err)
	}
	if marked {
		r.StartPolling(t.ID)
	} else {
		logger.Info().Msg("transaction left created state during initiation")
	}
	return r.refresh(ctx, t), nil
}

func (r *TransactionReconciler) queryStatus(ctx context.Context, ref string) (*ProviderStatus, error) {
	var st *ProviderStatus
	op := func() error {
		start := time.Now()
		s, err := r.gateway.QueryStatus(ctx, ref)
		if err != nil {
			r.metrics.GatewayCall("status", "error", time.Since(start))
			if errors.Is(err, ErrProviderNotFound) {
				return backoff.Permanent(err)
			}
			return retryable(err)
		}
		r.metrics.GatewayCall("status", "ok", time.Since(start))
		st = s
		return nil
	}
	if err := backoff.Retry(op, r.backoff(ctx)); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *TransactionReconciler) backoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryInitial
	b.MaxInterval = r.cfg.RetryMax
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.GatewayRetries)), ctx)
}

// retryable marks errors the provider adapter flags as non-temporary as permanent.
func retryable(err error) error {
	if isPermanent(err) {
		return backoff.Permanent(err)
	}
	return err
}

// isPermanent reports whether the provider definitely rejected the call.
func isPermanent(err error) bool {
	var temp interface{ Temporary() bool }
	return errors.As(err, &temp) && !temp.Temporary()
}

// StartPolling launches the background polling loop for id unless one is running.
func (r *TransactionReconciler) StartPolling(id string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if _, running := r.pollers[id]; running {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.pollers[id] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.pollers, id)
			r.mu.Unlock()
			cancel()
		}()
		r.poll(ctx, id)
	}()
}

func (r *TransactionReconciler) stopPolling(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.pollers[id]; ok {
		cancel()
	}
}

func (r *TransactionReconciler) poll(ctx context.Context, id string) {
	r.metrics.PollerStarted()
	defer r.metrics.PollerStopped()

	logger := r.logger.With().Str("transaction_id", id).Logger()

	if r.locker != nil {
		lease, ok, err := r.locker.TryAcquire(ctx, "poll:"+id, r.cfg.PollLeaseTTL())
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("poll lease unavailable, polling without it")
		case !ok:
			logger.Debug().Msg("transaction already polled elsewhere")
			return
		default:
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					logger.Warn().Err(err).Msg("release poll lease")
				}
			}()
		}
	}

	t, err := r.txRepo.GetByID(ctx, id)
	if err != nil {
		logger.Error().Err(err).Msg("load transaction for polling")
		return
	}

	for attempt := t.PollCount + 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if !sleep(ctx, r.cfg.PollInterval) {
			logger.Debug().Msg("polling cancelled")
			return
		}

		current, err := r.txRepo.GetByID(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("reload transaction")
			continue
		}
		if current.IsTerminal() {
			return
		}

		ref := current.ProviderRef
		if ref == "" {
			ref = current.Reference
		}

		r.metrics.Poll()
		st, err := r.queryStatus(ctx, ref)
		if errors.Is(err, ErrProviderNotFound) {
			logger.Warn().Int("attempt", attempt).Msg("provider does not know the reference")
			r.terminalFromLoop(ctx, logger, id, domain.TerminalUpdate{
				Status:      domain.TxFailed,
				Reason:      domain.ReasonNotFound,
				CompletedAt: r.now(),
			})
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Int("attempt", attempt).Msg("status query failed")
			if rerr := r.txRepo.RecordPoll(ctx, id, nil, r.now()); rerr != nil {
				logger.Warn().Err(rerr).Msg("record poll")
			}
			continue
		}

		if err := r.txRepo.RecordPoll(ctx, id, st.Payload, r.now()); err != nil {
			logger.Warn().Err(err).Msg("record poll")
		}
		logger.Debug().Int("attempt", attempt).Str("status", string(st.Status)).Str("raw_status", st.RawStatus).Msg("polled")

		if st.Status.IsTerminal() {
			r.terminalFromLoop(ctx, logger, id, domain.TerminalUpdate{
				Status:      st.Status,
				Reason:      providerReason(st),
				Payload:     st.Payload,
				CompletedAt: r.now(),
			})
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	logger.Info().Int("attempts", r.cfg.MaxAttempts).Msg("polling exhausted, expiring transaction")
	r.terminalFromLoop(ctx, logger, id, domain.TerminalUpdate{
		Status:      domain.TxExpired,
		Reason:      domain.ReasonPollingTimeout,
		CompletedAt: r.now(),
	})
}

func (r *TransactionReconciler) terminalFromLoop(ctx context.Context, logger zerolog.Logger, id string, upd domain.TerminalUpdate) {
	if _, err := r.applyTerminal(ctx, id, upd, sourcePoll); err != nil {
		logger.Error().Err(err).Str("status", string(upd.Status)).Msg("terminal write failed")
	}
}

// HandleWebhook verifies and applies a provider notification.
// Duplicate or late notifications for terminal transactions are accepted and ignored.
func (r *TransactionReconciler) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if err := r.gateway.VerifyWebhook(body, signature); err != nil {
		r.metrics.Webhook("rejected")
		r.logger.Warn().Err(err).Msg("webhook signature rejected")
		return err
	}

	ev, err := r.gateway.ParseWebhook(body)
	if err != nil {
		r.metrics.Webhook("malformed")
		return err
	}

	t, err := r.txRepo.GetByReference(ctx, ev.TransactionID)
	if err != nil {
		r.metrics.Webhook("unknown")
		return err
	}

	logger := r.logger.With().
		Str("transaction_id", t.ID).
		Str("provider_ref", ev.TransactionID).
		Str("status", string(ev.Status.Status)).
		Logger()

	now := r.now()
	if err := r.txRepo.RecordWebhook(ctx, t.ID, body, now); err != nil {
		logger.Warn().Err(err).Msg("record webhook")
	}

	if !ev.Status.Status.IsTerminal() {
		r.metrics.Webhook("non_terminal")
		logger.Debug().Msg("non-terminal webhook recorded")
		return nil
	}

	if ev.Status.Status == domain.TxSuccess {
		if err := matchesTransaction(t, ev); err != nil {
			r.metrics.Webhook("mismatch")
			logger.Error().Err(err).Msg("webhook does not match transaction")
			return err
		}
	}

	r.metrics.Webhook("accepted")
	_, err = r.applyTerminal(ctx, t.ID, domain.TerminalUpdate{
		Status:      ev.Status.Status,
		Reason:      providerReason(&ev.Status),
		Payload:     body,
		CompletedAt: now,
	}, sourceWebhook)
	return err
}

func matchesTransaction(t *domain.ExternalTransaction, ev *WebhookEvent) error {
	if !ev.Amount.IsZero() && !ev.Amount.Equal(t.Amount) {
		return domain.BusinessRule("webhook amount %s does not match %s", ev.Amount, t.Amount)
	}
	if ev.Currency != "" && !strings.EqualFold(ev.Currency, t.Currency) {
		return domain.BusinessRule("webhook currency %s does not match %s", ev.Currency, t.Currency)
	}
	return nil
}

// Cancel moves a non-terminal transaction to cancelled. It reports false when the
// transaction had already reached a terminal status.
func (r *TransactionReconciler) Cancel(ctx context.Context, id string) (bool, error) {
	t, err := r.txRepo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if t.IsTerminal() {
		return false, nil
	}
	return r.applyTerminal(ctx, id, domain.TerminalUpdate{
		Status:      domain.TxCancelled,
		Reason:      domain.ReasonClientCancelled,
		CompletedAt: r.now(),
	}, sourceCancel)
}

// applyTerminal performs the single conditional terminal write. The first write wins;
// later ones are logged as reconciliation conflicts and reported as not applied.
func (r *TransactionReconciler) applyTerminal(ctx context.Context, id string, upd domain.TerminalUpdate, source string) (bool, error) {
	won, err := r.txRepo.CompleteIfActive(ctx, id, upd)
	if err != nil {
		return false, fmt.Errorf("terminal write: %w", err)
	}
	if !won {
		r.metrics.Conflict(source)
		r.logger.Info().
			Str("transaction_id", id).
			Str("source", source).
			Str("status", string(upd.Status)).
			Err(domain.ErrReconciliationConflict).
			Msg("terminal write discarded, transaction already terminal")
		return false, nil
	}

	r.metrics.TerminalWrite(string(upd.Status), source)
	if source != sourcePoll {
		r.stopPolling(id)
	}

	t, err := r.txRepo.GetByID(ctx, id)
	if err != nil {
		return true, err
	}
	r.logger.Info().
		Str("transaction_id", id).
		Str("source", source).
		Str("status", string(t.Status)).
		Str("reason", t.Reason).
		Msg("transaction reached terminal status")

	r.emitTerminal(ctx, t)
	r.dispatch(ctx, t)
	return true, nil
}

func (r *TransactionReconciler) emitTerminal(ctx context.Context, t *domain.ExternalTransaction) {
	if r.outbox == nil {
		return
	}
	event := domain.NewOutboxEvent(r.idGen.Generate(), domain.AggregateTypeTransaction, t.ID,
		domain.EventTypeTransactionTerminal, map[string]any{
			"transaction_id": t.ID,
			"reference":      t.Reference,
			"workflow_id":    t.WorkflowID,
			"purpose":        string(t.Purpose),
			"status":         string(t.Status),
			"reason":         t.Reason,
			"amount":         t.Amount.String(),
		}, r.now())
	if err := r.outbox.Create(ctx, nil, event); err != nil {
		r.logger.Warn().Err(err).Str("transaction_id", t.ID).Msg("enqueue terminal event")
	}
}

// dispatch hands a terminal transaction to its workflow. A failed callback is retried
// by Resume since callback_completed_at stays empty.
func (r *TransactionReconciler) dispatch(ctx context.Context, t *domain.ExternalTransaction) {
	r.mu.Lock()
	h := r.handlers[t.Purpose]
	r.mu.Unlock()

	logger := r.logger.With().Str("transaction_id", t.ID).Str("purpose", string(t.Purpose)).Logger()
	if h == nil {
		logger.Warn().Msg("no terminal handler registered")
		return
	}

	if err := h.OnTransactionTerminal(ctx, t); err != nil {
		r.metrics.CallbackFailed(string(t.Purpose))
		logger.Error().Err(err).Msg("workflow callback failed")
		return
	}
	if err := r.txRepo.MarkCallbackCompleted(ctx, t.ID, r.now()); err != nil {
		logger.Warn().Err(err).Msg("mark callback completed")
	}
}

// Resume restarts work lost by a restart: created transactions are looked up and
// submitted, pending ones get a poller, terminal ones with an unfinished callback
// are dispatched again.
func (r *TransactionReconciler) Resume(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}

	active, err := r.txRepo.ListActive(ctx, r.cfg.SweepBatch)
	if err != nil {
		return nil, fmt.Errorf("list active transactions: %w", err)
	}
	for _, t := range active {
		switch t.Status {
		case domain.TxCreated:
			if _, err := r.submit(ctx, t.ID, true); err != nil {
				result.Errors++
				r.logger.Warn().Err(err).Str("transaction_id", t.ID).Msg("resubmit failed")
				continue
			}
			result.Resubmitted++
		case domain.TxPending:
			r.StartPolling(t.ID)
			result.PollersStarted++
		}
	}

	pending, err := r.txRepo.ListCallbackPending(ctx, r.cfg.SweepBatch)
	if err != nil {
		return result, fmt.Errorf("list pending callbacks: %w", err)
	}
	for _, t := range pending {
		r.dispatch(ctx, t)
		result.CallbacksReplayed++
	}

	r.logger.Info().
		Int("resubmitted", result.Resubmitted).
		Int("pollers_started", result.PollersStarted).
		Int("callbacks_replayed", result.CallbacksReplayed).
		Int("errors", result.Errors).
		Msg("reconciliation sweep done")
	return result, nil
}

// Wait blocks until every running poller has finished.
func (r *TransactionReconciler) Wait() {
	r.wg.Wait()
}

// Stop cancels all pollers and waits for them. No poller starts afterwards.
func (r *TransactionReconciler) Stop() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}

func (r *TransactionReconciler) refresh(ctx context.Context, t *domain.ExternalTransaction) *domain.ExternalTransaction {
	fresh, err := r.txRepo.GetByID(ctx, t.ID)
	if err != nil {
		return t
	}
	return fresh
}

func providerReason(st *ProviderStatus) string {
	if st.Code != "" {
		return st.Code
	}
	return st.RawStatus
}

func terminalOrFailed(s domain.TransactionStatus) domain.TransactionStatus {
	if s == domain.TxExpired {
		return s
	}
	return domain.TxFailed
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
