package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"JUAN PÉREZ S.A.", "juan perez"},
		{"", ""},
		{"   ", ""},
		{"ABC srl XYZ", "abc xyz"},
		{"Comercial Ñandú S.R.L.", "comercial nandu"},
		{"  María   José\tGómez ", "maria jose gomez"},
		{"ACME-SA", "acme"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNameTokens(t *testing.T) {
	toks := NameTokens("Juan de la Cruz Pérez")
	assert.Len(t, toks, 3)
	assert.Contains(t, toks, "juan")
	assert.Contains(t, toks, "cruz")
	assert.Contains(t, toks, "perez")
	assert.NotContains(t, toks, "de")
}

func TestSharedTokens(t *testing.T) {
	a := NameTokens("Juan Carlos Pérez")
	b := NameTokens("PEREZ JUAN")
	assert.Equal(t, 2, SharedTokens(a, b))
	assert.Equal(t, 2, SharedTokens(b, a))
	assert.Equal(t, 0, SharedTokens(a, NameTokens("")))
}
