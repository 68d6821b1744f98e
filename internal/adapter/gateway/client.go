package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/infrastructure/metrics"
	"github.com/iho/tontiflex/internal/usecase"
)

const maxResponseBytes = 1 << 20

// Config configures the provider client.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration

	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client is the HTTP adapter to the mobile money provider.
type Client struct {
	baseURL *url.URL
	apiKey  string
	secret  []byte
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

var _ usecase.PaymentGateway = (*Client)(nil)

// New creates a provider client.
func New(cfg Config, m *metrics.Metrics, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid gateway base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	c := &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		secret:  []byte(cfg.WebhookSecret),
		http:    &http.Client{Timeout: cfg.Timeout},
		metrics: m,
		logger:  logger.With().Str("component", "gateway").Logger(),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			// the provider answering 4xx is not an outage
			return err == nil || !Temporary(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
			c.metrics.Circuit(name, float64(to))
		},
	})
	return c, nil
}

type initiateRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Phone       string          `json:"phone"`
	Reference   string          `json:"reference"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type"`
}

type statusResponse struct {
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	StatusCode    string          `json:"statusCode"`
	Accepted      *bool           `json:"accepted,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// Initiate asks the provider to collect from or pay out to a phone number.
func (c *Client) Initiate(ctx context.Context, req usecase.PaymentRequest) (*usecase.ProviderAck, error) {
	kind := "collection"
	if req.Purpose.IsPayout() {
		kind = "payout"
	}
	body, err := json.Marshal(initiateRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Phone:       req.Phone,
		Reference:   req.Reference,
		Description: req.Description,
		Type:        kind,
	})
	if err != nil {
		return nil, fmt.Errorf("encode initiate request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/payments/initiate", body)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &DecodeError{Err: err}
	}
	status := MapStatus(resp.Status, resp.StatusCode)
	accepted := status != domain.TxFailed && status != domain.TxExpired
	if resp.Accepted != nil {
		accepted = accepted && *resp.Accepted
	}

	c.logger.Debug().Str("reference", req.Reference).Str("provider_ref", resp.TransactionID).Str("status", resp.Status).Msg("payment initiated")
	return &usecase.ProviderAck{
		ProviderRef: resp.TransactionID,
		Accepted:    accepted,
		Status:      status,
		Payload:     raw,
	}, nil
}

// QueryStatus fetches the current status of ref, a provider or internal reference.
func (c *Client) QueryStatus(ctx context.Context, ref string) (*usecase.ProviderStatus, error) {
	raw, err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(ref)+"/status", nil)
	if err != nil {
		var herr *HTTPError
		if errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound {
			return nil, usecase.ErrProviderNotFound
		}
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &usecase.ProviderStatus{
		Status:    MapStatus(resp.Status, resp.StatusCode),
		RawStatus: resp.Status,
		Code:      resp.StatusCode,
		Payload:   raw,
	}, nil
}

// NormalizePhone applies the provider numbering plan.
func (c *Client) NormalizePhone(raw string) (string, error) {
	return NormalizePhone(raw)
}

// VerifyWebhook checks the HMAC signature of a notification body.
func (c *Client) VerifyWebhook(body []byte, signature string) error {
	return VerifySignature(c.secret, body, signature)
}

// ParseWebhook decodes a notification body.
func (c *Client) ParseWebhook(body []byte) (*usecase.WebhookEvent, error) {
	return ParseWebhook(body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("X-API-KEY", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		if resp.StatusCode >= 300 {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return raw, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{Err: err}
		}
		return nil, err
	}
	return out.([]byte), nil
}
