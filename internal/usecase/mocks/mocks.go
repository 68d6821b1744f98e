package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

// MockAdhesionRepository is an in-memory AdhesionRepository.
type MockAdhesionRepository struct {
	mu        sync.RWMutex
	adhesions map[string]domain.Adhesion

	CreateFunc func(ctx context.Context, tx usecase.Transaction, a *domain.Adhesion) error
	UpdateFunc func(ctx context.Context, tx usecase.Transaction, a *domain.Adhesion, expected domain.State) error
}

func NewMockAdhesionRepository() *MockAdhesionRepository {
	return &MockAdhesionRepository{adhesions: make(map[string]domain.Adhesion)}
}

func (m *MockAdhesionRepository) Create(ctx context.Context, tx usecase.Transaction, a *domain.Adhesion) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adhesions[a.ID] = *a
	return nil
}

func (m *MockAdhesionRepository) GetByID(ctx context.Context, id string) (*domain.Adhesion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adhesions[id]
	if !ok {
		return nil, domain.ErrAdhesionNotFound
	}
	return &a, nil
}

func (m *MockAdhesionRepository) Update(ctx context.Context, tx usecase.Transaction, a *domain.Adhesion, expected domain.State) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, a, expected)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.adhesions[a.ID]
	if !ok {
		return domain.ErrAdhesionNotFound
	}
	if stored.State != expected {
		return domain.ErrStaleState
	}
	m.adhesions[a.ID] = *a
	return nil
}

func (m *MockAdhesionRepository) ListByClient(ctx context.Context, clientID string, limit, offset int) ([]*domain.Adhesion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Adhesion
	for _, a := range m.adhesions {
		if a.ClientID == clientID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

// MockLoanRepository is an in-memory LoanRepository.
type MockLoanRepository struct {
	mu    sync.RWMutex
	loans map[string]domain.Loan
	terms map[string]domain.LoanTerms
}

func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		loans: make(map[string]domain.Loan),
		terms: make(map[string]domain.LoanTerms),
	}
}

func (m *MockLoanRepository) Create(ctx context.Context, tx usecase.Transaction, l *domain.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[l.ID] = *l
	return nil
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	return &l, nil
}

func (m *MockLoanRepository) Update(ctx context.Context, tx usecase.Transaction, l *domain.Loan, expected domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.loans[l.ID]
	if !ok {
		return domain.ErrLoanNotFound
	}
	if stored.State != expected {
		return domain.ErrStaleState
	}
	m.loans[l.ID] = *l
	return nil
}

func (m *MockLoanRepository) SaveTerms(ctx context.Context, tx usecase.Transaction, t *domain.LoanTerms) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.terms[t.LoanID]; ok {
		t.CreatedAt = prev.CreatedAt
	}
	m.terms[t.LoanID] = *t
	return nil
}

func (m *MockLoanRepository) GetTerms(ctx context.Context, loanID string) (*domain.LoanTerms, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.terms[loanID]
	if !ok {
		return nil, domain.ErrLoanTermsNotFound
	}
	return &t, nil
}

// MockScheduleRepository is an in-memory ScheduleRepository.
type MockScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[string][]domain.Installment
}

func NewMockScheduleRepository() *MockScheduleRepository {
	return &MockScheduleRepository{schedules: make(map[string][]domain.Installment)}
}

func (m *MockScheduleRepository) CreateSchedule(ctx context.Context, tx usecase.Transaction, loanID string, installments []domain.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.schedules[loanID]) > 0 {
		return domain.ErrScheduleExists
	}
	m.schedules[loanID] = append([]domain.Installment(nil), installments...)
	return nil
}

func (m *MockScheduleRepository) ListByLoan(ctx context.Context, loanID string) ([]domain.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Installment(nil), m.schedules[loanID]...), nil
}

func (m *MockScheduleRepository) MarkPaid(ctx context.Context, tx usecase.Transaction, loanID string, number int,
	status domain.InstallmentStatus, penalty decimal.Decimal, transactionID string, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.schedules[loanID] {
		inst := &m.schedules[loanID][i]
		if inst.Number != number {
			continue
		}
		if inst.Status != domain.InstallmentPending {
			return domain.ErrStaleState
		}
		inst.Status = status
		inst.PenaltyPaid = penalty
		inst.TransactionID = transactionID
		inst.PaidAt = &paidAt
		return nil
	}
	return domain.ErrInstallmentNotFound
}

// MockRetraitRepository is an in-memory RetraitRepository.
type MockRetraitRepository struct {
	mu       sync.RWMutex
	retraits map[string]domain.Retrait
}

func NewMockRetraitRepository() *MockRetraitRepository {
	return &MockRetraitRepository{retraits: make(map[string]domain.Retrait)}
}

func (m *MockRetraitRepository) Create(ctx context.Context, tx usecase.Transaction, r *domain.Retrait) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retraits[r.ID] = *r
	return nil
}

func (m *MockRetraitRepository) GetByID(ctx context.Context, id string) (*domain.Retrait, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.retraits[id]
	if !ok {
		return nil, domain.ErrRetraitNotFound
	}
	return &r, nil
}

func (m *MockRetraitRepository) Update(ctx context.Context, tx usecase.Transaction, r *domain.Retrait, expected domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.retraits[r.ID]
	if !ok {
		return domain.ErrRetraitNotFound
	}
	if stored.State != expected {
		return domain.ErrStaleState
	}
	m.retraits[r.ID] = *r
	return nil
}

// MockLedgerRecordRepository is an in-memory LedgerRecordRepository.
type MockLedgerRecordRepository struct {
	mu      sync.RWMutex
	records []domain.LedgerRecord

	ListByOwnerPoolFunc func(ctx context.Context, ownerID string, pool domain.Pool) ([]domain.LedgerRecord, error)
	// InFlight reports whether a payment is still created or pending. Unset, every
	// unconfirmed debit counts as pending.
	InFlight func(transactionID string) bool
	Locks    int
}

func NewMockLedgerRecordRepository() *MockLedgerRecordRepository {
	return &MockLedgerRecordRepository{}
}

// Seed adds confirmed records directly.
func (m *MockLedgerRecordRepository) Seed(records ...domain.LedgerRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
}

func (m *MockLedgerRecordRepository) Create(ctx context.Context, tx usecase.Transaction, r *domain.LedgerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *r)
	return nil
}

func (m *MockLedgerRecordRepository) ListByOwnerPool(ctx context.Context, ownerID string, pool domain.Pool) ([]domain.LedgerRecord, error) {
	if m.ListByOwnerPoolFunc != nil {
		return m.ListByOwnerPoolFunc(ctx, ownerID, pool)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.LedgerRecord
	for _, r := range m.records {
		if r.OwnerID == ownerID && r.Pool == pool {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockLedgerRecordRepository) GetByTransaction(ctx context.Context, transactionID string) (*domain.LedgerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.TransactionID == transactionID {
			r := r
			return &r, nil
		}
	}
	return nil, fmt.Errorf("ledger record for %s: %w", transactionID, domain.ErrTransactionNotFound)
}

func (m *MockLedgerRecordRepository) ConfirmByTransaction(ctx context.Context, tx usecase.Transaction, transactionID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].TransactionID == transactionID && !m.records[i].Confirmed {
			m.records[i].Confirmed = true
			m.records[i].ConfirmedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (m *MockLedgerRecordRepository) LockPool(ctx context.Context, tx usecase.Transaction, ownerID string, pool domain.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locks++
	return nil
}

func (m *MockLedgerRecordRepository) PendingDebits(ctx context.Context, tx usecase.Transaction, ownerID string, pool domain.Pool) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, r := range m.records {
		if r.OwnerID != ownerID || r.Pool != pool || r.Kind != domain.EntryDebit || r.Confirmed {
			continue
		}
		if m.InFlight == nil || m.InFlight(r.TransactionID) {
			sum = sum.Add(r.Amount)
		}
	}
	return sum, nil
}

// MockOutboxRepository records events in memory.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published {
			out = append(out, e)
		}
	}
	return page(out, limit, 0), nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

// EventsOfType returns the recorded events with the given type.
func (m *MockOutboxRepository) EventsOfType(eventType string) []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MockAuditRepository records audit logs in memory.
type MockAuditRepository struct {
	mu   sync.RWMutex
	logs []*domain.AuditLog
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Create(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditLog
	for _, l := range m.logs {
		if filter.ResourceID != "" && l.ResourceID != filter.ResourceID {
			continue
		}
		if filter.ResourceType != "" && l.ResourceType != filter.ResourceType {
			continue
		}
		if filter.ActorID != "" && l.ActorID != filter.ActorID {
			continue
		}
		out = append(out, l)
	}
	return page(out, filter.Limit, filter.Offset), nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("id%04d", m.counter)
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MockBalanceCache is an in-memory BalanceCache.
type MockBalanceCache struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal

	Invalidations int
}

func NewMockBalanceCache() *MockBalanceCache {
	return &MockBalanceCache{balances: make(map[string]decimal.Decimal)}
}

func (m *MockBalanceCache) Get(ctx context.Context, ownerID string, pool domain.Pool) (decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[ownerID+"|"+pool.String()]
	return b, ok, nil
}

func (m *MockBalanceCache) Set(ctx context.Context, ownerID string, pool domain.Pool, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[ownerID+"|"+pool.String()] = balance
	return nil
}

func (m *MockBalanceCache) Invalidate(ctx context.Context, ownerID string, pool domain.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.balances, ownerID+"|"+pool.String())
	m.Invalidations++
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
