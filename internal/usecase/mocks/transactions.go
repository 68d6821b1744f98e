package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

// MockTransactionRepository is an in-memory TransactionRepository with the same
// conditional-write semantics as the SQL implementation.
type MockTransactionRepository struct {
	mu  sync.Mutex
	txs map[string]domain.ExternalTransaction

	// CompleteIfActiveHook, when set, runs before the conditional write.
	CompleteIfActiveHook func(id string, update domain.TerminalUpdate)
	TerminalWrites       int
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{txs: make(map[string]domain.ExternalTransaction)}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.ExternalTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.txs {
		if other.WorkflowID == t.WorkflowID && !other.IsTerminal() {
			return domain.ErrActiveTransaction
		}
	}
	m.txs[t.ID] = *t
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.ExternalTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return &t, nil
}

func (m *MockTransactionRepository) GetByReference(ctx context.Context, ref string) (*domain.ExternalTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if t.ProviderRef == ref {
			return &t, nil
		}
	}
	for _, t := range m.txs {
		if t.Reference == ref {
			return &t, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) GetActiveByWorkflow(ctx context.Context, workflowID string) (*domain.ExternalTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if t.WorkflowID == workflowID && !t.IsTerminal() {
			return &t, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) MarkPending(ctx context.Context, id, providerRef string, payload []byte, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return false, domain.ErrTransactionNotFound
	}
	if t.Status != domain.TxCreated {
		return false, nil
	}
	t.Status = domain.TxPending
	t.ProviderRef = providerRef
	t.ProviderPayload = payload
	t.UpdatedAt = at
	m.txs[id] = t
	return true, nil
}

func (m *MockTransactionRepository) IncrementInitiateAttempts(ctx context.Context, id string, at time.Time) error {
	return m.update(id, func(t *domain.ExternalTransaction) {
		t.InitiateAttempts++
		t.UpdatedAt = at
	})
}

func (m *MockTransactionRepository) RecordPoll(ctx context.Context, id string, payload []byte, at time.Time) error {
	return m.update(id, func(t *domain.ExternalTransaction) {
		if t.IsTerminal() {
			return
		}
		t.PollCount++
		if payload != nil {
			t.ProviderPayload = payload
		}
		t.UpdatedAt = at
	})
}

func (m *MockTransactionRepository) RecordWebhook(ctx context.Context, id string, payload []byte, at time.Time) error {
	return m.update(id, func(t *domain.ExternalTransaction) {
		if t.IsTerminal() {
			return
		}
		t.WebhookReceivedAt = &at
		t.ProviderPayload = payload
		t.UpdatedAt = at
	})
}

func (m *MockTransactionRepository) CompleteIfActive(ctx context.Context, id string, update domain.TerminalUpdate) (bool, error) {
	if m.CompleteIfActiveHook != nil {
		m.CompleteIfActiveHook(id, update)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return false, domain.ErrTransactionNotFound
	}
	if t.IsTerminal() {
		return false, nil
	}
	t.Status = update.Status
	t.Reason = update.Reason
	if update.Payload != nil {
		t.ProviderPayload = update.Payload
	}
	completed := update.CompletedAt
	t.CompletedAt = &completed
	t.UpdatedAt = completed
	m.txs[id] = t
	m.TerminalWrites++
	return true, nil
}

func (m *MockTransactionRepository) MarkCallbackCompleted(ctx context.Context, id string, at time.Time) error {
	return m.update(id, func(t *domain.ExternalTransaction) {
		t.CallbackCompletedAt = &at
	})
}

func (m *MockTransactionRepository) ListActive(ctx context.Context, limit int) ([]*domain.ExternalTransaction, error) {
	return m.list(limit, func(t domain.ExternalTransaction) bool { return !t.IsTerminal() }), nil
}

func (m *MockTransactionRepository) ListCallbackPending(ctx context.Context, limit int) ([]*domain.ExternalTransaction, error) {
	return m.list(limit, func(t domain.ExternalTransaction) bool {
		return t.IsTerminal() && t.CallbackCompletedAt == nil
	}), nil
}

// Put stores t as is.
func (m *MockTransactionRepository) Put(t domain.ExternalTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[t.ID] = t
}

// Writes reports how many terminal writes succeeded.
func (m *MockTransactionRepository) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TerminalWrites
}

func (m *MockTransactionRepository) update(id string, fn func(t *domain.ExternalTransaction)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	fn(&t)
	m.txs[id] = t
	return nil
}

func (m *MockTransactionRepository) list(limit int, keep func(domain.ExternalTransaction) bool) []*domain.ExternalTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ExternalTransaction
	for _, t := range m.txs {
		if keep(t) {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, 0)
}

// MockPollLocker grants each key to one holder at a time.
type MockPollLocker struct {
	mu   sync.Mutex
	held map[string]bool
	ttls map[string]time.Duration
}

func NewMockPollLocker() *MockPollLocker {
	return &MockPollLocker{held: make(map[string]bool), ttls: make(map[string]time.Duration)}
}

// TTL returns the lease duration last requested for key.
func (m *MockPollLocker) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func (m *MockPollLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (usecase.Lease, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	m.ttls[key] = ttl
	return &mockLease{locker: m, key: key}, true, nil
}

type mockLease struct {
	locker *MockPollLocker
	key    string
}

func (l *mockLease) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.key)
	return nil
}
