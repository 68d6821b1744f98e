package gateway

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/tontiflex/internal/domain"
)

var testSecret = []byte("whsec_test")

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"transactionId":"TX1","status":"SUCCESSFUL"}`)
	sig := Sign(testSecret, body)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, VerifySignature(testSecret, body, sig))
	})

	t.Run("prefixed and upper case", func(t *testing.T) {
		assert.NoError(t, VerifySignature(testSecret, body, "sha256="+strings.ToUpper(sig)))
	})

	t.Run("tampered body", func(t *testing.T) {
		err := VerifySignature(testSecret, []byte(`{"transactionId":"TX1","status":"FAILED"}`), sig)
		assert.True(t, errors.Is(err, domain.ErrInvalidWebhookSignature))
	})

	t.Run("missing signature", func(t *testing.T) {
		err := VerifySignature(testSecret, body, "")
		assert.True(t, errors.Is(err, domain.ErrInvalidWebhookSignature))
	})

	t.Run("no secret configured", func(t *testing.T) {
		err := VerifySignature(nil, body, sig)
		assert.True(t, errors.Is(err, domain.ErrInvalidWebhookSignature))
	})
}

func TestParseWebhook_FlatPayload(t *testing.T) {
	body := []byte(`{
		"transactionId": "P-123",
		"status": "SUCCESSFUL",
		"statusCode": "0000",
		"amount": "5000",
		"currency": "XOF",
		"customer": "+22997000000",
		"timestamp": "2024-03-01T10:00:00Z"
	}`)

	ev, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, "P-123", ev.TransactionID)
	assert.Equal(t, domain.TxSuccess, ev.Status.Status)
	assert.Equal(t, "SUCCESSFUL", ev.Status.RawStatus)
	assert.True(t, ev.Amount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "XOF", ev.Currency)
	assert.Equal(t, "+22997000000", ev.Customer)
	assert.Equal(t, 2024, ev.Timestamp.Year())
	assert.Equal(t, body, ev.Raw)
}

func TestParseWebhook_NestedPayload(t *testing.T) {
	body := []byte(`{
		"type": "transaction.failed",
		"status": "FAILED",
		"error_code": "6001",
		"data": {"transaction_id": "K-9", "amount": 1500, "phone": "22961000000"}
	}`)

	ev, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, "K-9", ev.TransactionID)
	assert.Equal(t, domain.TxFailed, ev.Status.Status)
	assert.Equal(t, "6001", ev.Status.Code)
	assert.True(t, ev.Amount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "22961000000", ev.Customer)
}

func TestParseWebhook_TimestampLayouts(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		timestamp string
		want      time.Time
	}{
		{"rfc3339", `"2024-03-01T10:00:00Z"`, want},
		{"rfc3339 with offset", `"2024-03-01T11:00:00+01:00"`, want},
		{"space separated", `"2024-03-01 10:00:00"`, want},
		{"unix seconds", `1709287200`, want},
		{"unix milliseconds", `1709287200000`, want},
		{"unix seconds as string", `"1709287200"`, want},
		{"unparseable", `"yesterday"`, time.Time{}},
		{"null", `null`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(`{"transactionId":"P-1","status":"SUCCESSFUL","amount":1000,"timestamp":` + tt.timestamp + `}`)

			ev, err := ParseWebhook(body)
			require.NoError(t, err)
			assert.Equal(t, domain.TxSuccess, ev.Status.Status)
			assert.True(t, tt.want.Equal(ev.Timestamp), "got %s", ev.Timestamp)
		})
	}
}

func TestParseWebhook_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"malformed":  `{"transactionId":`,
		"missing id": `{"status":"SUCCESSFUL"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseWebhook([]byte(body))
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}
