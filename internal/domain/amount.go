/**
 * @description
 * Fixed-point amount type for Stellar assets. Amounts are held as an integer number of
 * stroops (10^-7 units), the same precision the Stellar network uses, and are rendered
 * as 7-fractional-digit decimal strings on every external surface.
 */
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

const (
	// AmountDecimals is the number of fractional digits carried by a Stellar amount.
	AmountDecimals = 7
	// StroopsPerUnit is the number of stroops in one whole asset unit.
	StroopsPerUnit = 10_000_000

	basisPointsDenominator = 10_000
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrAmountOverflow = errors.New("amount out of range")
)

// MaxAmount is the largest representable amount, 922337203685.4775807 units.
const MaxAmount = Amount(math.MaxInt64)

// Amount is a non-negative asset quantity in stroops.
type Amount int64

// ParseAmount parses a decimal string such as "10", "10.5" or "0.0000001".
// Negative values, exponents and more than seven fractional digits are rejected.
func ParseAmount(raw string) (Amount, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: negative value %q", ErrInvalidAmount, raw)
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || (hasDot && frac == "") {
		return 0, fmt.Errorf("%w: malformed value %q", ErrInvalidAmount, raw)
	}
	if len(frac) > AmountDecimals {
		return 0, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, raw, AmountDecimals)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidAmount, raw)
	}

	var fracStroops int64
	if frac != "" {
		frac += strings.Repeat("0", AmountDecimals-len(frac))
		parsed, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidAmount, raw)
		}
		fracStroops = parsed
	}

	wholeUnits, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || wholeUnits > (math.MaxInt64-fracStroops)/StroopsPerUnit {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, raw)
	}

	return Amount(wholeUnits*StroopsPerUnit + fracStroops), nil
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(raw string) Amount {
	a, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return a
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String renders the amount with exactly seven fractional digits.
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%07d", sign, v/StroopsPerUnit, v%StroopsPerUnit)
}

// Stroops returns the raw integer value.
func (a Amount) Stroops() int64 {
	return int64(a)
}

// Add returns a + b, or ErrAmountOverflow when the sum exceeds MaxAmount.
func (a Amount) Add(b Amount) (Amount, error) {
	if b > MaxAmount-a {
		return 0, fmt.Errorf("%w: %s + %s", ErrAmountOverflow, a, b)
	}
	return a + b, nil
}

// MulBasisPoints returns a * bps / 10000 rounded half-up to the nearest stroop.
func (a Amount) MulBasisPoints(bps int64) Amount {
	product := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(bps))
	denominator := big.NewInt(basisPointsDenominator)
	quotient, remainder := new(big.Int).QuoRem(product, denominator, new(big.Int))
	if remainder.Sign() > 0 && new(big.Int).Lsh(remainder, 1).Cmp(denominator) >= 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return Amount(quotient.Int64())
}

// Shortfall returns max(0, required - a).
func (a Amount) Shortfall(required Amount) Amount {
	if required <= a {
		return 0
	}
	return required - a
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both a JSON string ("10.5") and a bare JSON number (10.5).
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
