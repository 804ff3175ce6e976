package match

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the tunables of the decision cascade. It is passed at
// construction time so that a match is a function of the transaction, the
// candidates and this value alone.
type Config struct {
	Threshold       int
	Gap             int
	DateWindowHours int
	AmountTolerance decimal.Decimal
}

// DefaultConfig returns threshold 85, gap 10, a 72 hour window and a 0.01 tolerance.
func DefaultConfig() Config {
	return Config{
		Threshold:       85,
		Gap:             10,
		DateWindowHours: 72,
		AmountTolerance: decimal.NewFromFloat(0.01),
	}
}

// windowOffset is DateWindowHours/24 days, applied on each side of the
// transaction timestamp. A 72 hour setting therefore admits ±3 days.
func (c Config) windowOffset() time.Duration {
	days := float64(c.DateWindowHours) / 24.0
	return time.Duration(days * float64(24*time.Hour))
}
