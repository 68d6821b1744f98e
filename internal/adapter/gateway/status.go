package gateway

import (
	"strings"

	"github.com/iho/tontiflex/internal/domain"
)

// codeOK means the provider defers to the status word.
const codeOK = "0000"

var statusWords = map[string]domain.TransactionStatus{
	"approved":   domain.TxSuccess,
	"successful": domain.TxSuccess,
	"success":    domain.TxSuccess,
	"succesful":  domain.TxSuccess, // misspelled by the provider's own API
	"completed":  domain.TxSuccess,

	"pending":    domain.TxPending,
	"processing": domain.TxPending,
	"initiated":  domain.TxPending,

	"failed":    domain.TxFailed,
	"rejected":  domain.TxFailed,
	"declined":  domain.TxFailed,
	"error":     domain.TxFailed,
	"cancelled": domain.TxFailed,
	"canceled":  domain.TxFailed,

	"timeout": domain.TxExpired,
	"expired": domain.TxExpired,
}

var statusCodes = map[string]domain.TransactionStatus{
	"6001": domain.TxFailed, // insufficient funds
	"1007": domain.TxExpired,
	"1012": domain.TxExpired,
	"3003": domain.TxExpired,
}

// MapStatus translates a provider status word and numeric code to the canonical
// vocabulary. Anything unrecognized is pending so it is never credited by mistake.
func MapStatus(word, code string) domain.TransactionStatus {
	code = strings.TrimSpace(code)
	if code != "" && code != codeOK {
		if s, ok := statusCodes[code]; ok {
			return s
		}
		return domain.TxPending
	}

	if s, ok := statusWords[strings.ToLower(strings.TrimSpace(word))]; ok {
		return s
	}
	return domain.TxPending
}
