package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iho/tontiflex/internal/domain"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		word string
		code string
		want domain.TransactionStatus
	}{
		{"SUCCESSFUL", "", domain.TxSuccess},
		{"succesful", "0000", domain.TxSuccess},
		{" approved ", "", domain.TxSuccess},
		{"completed", "", domain.TxSuccess},
		{"PROCESSING", "", domain.TxPending},
		{"initiated", "0000", domain.TxPending},
		{"declined", "", domain.TxFailed},
		{"Canceled", "", domain.TxFailed},
		{"timeout", "", domain.TxExpired},
		{"successful", "6001", domain.TxFailed},
		{"pending", "1007", domain.TxExpired},
		{"", "3003", domain.TxExpired},
		{"successful", "9999", domain.TxPending},
		{"failed", "5001", domain.TxPending},
		{"rejected", "6002", domain.TxPending},
		{"on_hold", "", domain.TxPending},
		{"", "", domain.TxPending},
	}

	for _, tt := range tests {
		t.Run(tt.word+"/"+tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, MapStatus(tt.word, tt.code))
		})
	}
}
