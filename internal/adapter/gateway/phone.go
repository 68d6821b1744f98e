package gateway

import (
	"strings"

	"github.com/iho/tontiflex/internal/domain"
)

const (
	countryCode   = "229"
	subscriberLen = 8
)

var phoneSeparators = strings.NewReplacer("+", "", " ", "", "-", "", ".", "")

// NormalizePhone formats a Beninese mobile number as +229XXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	digits := phoneSeparators.Replace(strings.TrimSpace(raw))
	digits = strings.TrimPrefix(digits, "00")

	if len(digits) == subscriberLen {
		digits = countryCode + digits
	}
	if len(digits) != len(countryCode)+subscriberLen || !strings.HasPrefix(digits, countryCode) {
		return "", &domain.Error{Kind: domain.KindInvalidPhone, Reason: "expected a +229 number with 8 digits, got " + raw}
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", &domain.Error{Kind: domain.KindInvalidPhone, Reason: "phone number contains non-digits: " + raw}
		}
	}
	return "+" + digits, nil
}
