package usecase

import (
	"errors"
	"time"
)

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultPollAttempts and DefaultPollInterval bound the status polling loop.
	DefaultPollAttempts = 12
	DefaultPollInterval = 5 * time.Second

	// DefaultGatewayRetries bounds retries of a single gateway call.
	DefaultGatewayRetries = 3

	// DefaultGatewayTimeout matches the provider client's default per-call timeout.
	DefaultGatewayTimeout = 10 * time.Second

	// DefaultSweepBatch is how many transactions one resume pass loads.
	DefaultSweepBatch = 200
)

// ErrProviderNotFound is returned by PaymentGateway.QueryStatus for unknown references.
var ErrProviderNotFound = errors.New("payment reference unknown to provider")
