package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Micro is a monetary amount in millionths of the currency unit.
type Micro int64

// Common micro-unit scales.
const (
	MicroPerUnit Micro = 1_000_000
	MicroPerCent Micro = 10_000
)

// ErrInvalidAmount is returned when a monetary string cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

var microScale = decimal.NewFromInt(int64(MicroPerUnit))

// ParseMicro parses strings such as "$1,234.56", "-3.10" or "(2.00)" into micro units.
func ParseMicro(s string) (Micro, error) {
	clean := strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		negative = true
		clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
	}
	clean = strings.NewReplacer("$", "", ",", "", " ", "").Replace(clean)
	if strings.HasPrefix(clean, "-") {
		negative = !negative
		clean = strings.TrimPrefix(clean, "-")
	}
	if clean == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	m := Micro(d.Mul(microScale).Round(0).IntPart())
	if negative {
		m = -m
	}
	return m, nil
}

// MicroFromFloat converts a float amount (as returned by some ledger APIs) to micro units.
func MicroFromFloat(f float64) Micro {
	return Micro(decimal.NewFromFloat(f).Mul(microScale).Round(0).IntPart())
}

// Abs returns the magnitude of m.
func (m Micro) Abs() Micro {
	if m < 0 {
		return -m
	}
	return m
}

// RoundToCent rounds half away from zero to the nearest cent.
func (m Micro) RoundToCent() Micro {
	half := MicroPerCent / 2
	if m < 0 {
		return -((-m + half) / MicroPerCent * MicroPerCent)
	}
	return (m + half) / MicroPerCent * MicroPerCent
}

// Decimal returns m in currency units.
func (m Micro) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -6)
}

// String renders m as a dollar string such as "$12.34" or "-$0.50".
func (m Micro) String() string {
	sign := ""
	if m < 0 {
		sign = "-"
	}
	return sign + "$" + m.Abs().Decimal().StringFixed(2)
}
