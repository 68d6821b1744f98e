package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature with the expected HMAC in constant time.
func VerifySignature(secret, body []byte, signature string) error {
	if len(secret) == 0 {
		return &domain.Error{Kind: domain.KindInvalidWebhookSignature, Reason: "webhook secret not configured"}
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return &domain.Error{Kind: domain.KindInvalidWebhookSignature, Reason: "missing signature"}
	}
	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(Sign(secret, body))) {
		return domain.ErrInvalidWebhookSignature
	}
	return nil
}

type webhookData struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Phone         string          `json:"phone"`
}

// webhookTime accepts the timestamp layouts providers send: RFC 3339, a
// "YYYY-MM-DD HH:MM:SS" string or unix seconds/milliseconds. Anything else
// decodes to the zero time; the field is informational.
type webhookTime time.Time

var webhookTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

func (w *webhookTime) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == "" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			*w = webhookTime(time.UnixMilli(n).UTC())
		} else {
			*w = webhookTime(time.Unix(n, 0).UTC())
		}
		return nil
	}
	for _, layout := range webhookTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			*w = webhookTime(t.UTC())
			return nil
		}
	}
	return nil
}

type webhookPayload struct {
	Type          string          `json:"type"`
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	StatusCode    string          `json:"statusCode"`
	ErrorCode     string          `json:"error_code"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Customer      string          `json:"customer"`
	Timestamp     webhookTime     `json:"timestamp"`
	Data          webhookData     `json:"data"`
}

// ParseWebhook decodes a provider notification. The transaction id may be at the
// top level or under data.
func ParseWebhook(body []byte) (*usecase.WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, domain.InvalidInput("malformed webhook payload: %v", err)
	}

	ev := &usecase.WebhookEvent{
		TransactionID: firstNonEmpty(p.TransactionID, p.Data.TransactionID),
		Amount:        p.Amount,
		Currency:      firstNonEmpty(p.Currency, p.Data.Currency),
		Customer:      firstNonEmpty(p.Customer, p.Data.Phone),
		Timestamp:     time.Time(p.Timestamp),
		Raw:           body,
	}
	if ev.TransactionID == "" {
		return nil, domain.InvalidInput("webhook without transaction id")
	}
	if ev.Amount.IsZero() {
		ev.Amount = p.Data.Amount
	}

	code := firstNonEmpty(p.StatusCode, p.ErrorCode)
	ev.Status = usecase.ProviderStatus{
		Status:    MapStatus(p.Status, code),
		RawStatus: p.Status,
		Code:      code,
		Payload:   body,
	}
	return ev, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
