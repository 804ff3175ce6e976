package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"38.000,00", "38000", true},
		{"13.300", "13300", true},
		{"13.176,21", "13176.21", true},
		{"1234,5", "1234.5", true},
		{" 500 ", "500", true},
		{"", "", false},
		{"abc", "", false},
		{"1,2,3", "", false},
		{"$", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseMoney(tt.in)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, got.Decimal.String())
			}
		})
	}
}
