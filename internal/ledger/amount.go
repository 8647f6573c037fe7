// Package ledger provides exact, overflow-checked arithmetic over wei
// amounts (the smallest unit of the staking asset).  All pool totals,
// positions and payouts in the engine are ledger.Amount values; float math
// never touches fund accounting.
package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Errors
// ──────────────────────────────────────────────────────────────────────────────

var (
	// ErrOverflow is returned when an arithmetic result exceeds 2^256-1.
	// It is fatal to the operation that triggered it: amounts are never
	// clamped or wrapped.
	ErrOverflow = errors.New("amount arithmetic overflow")

	// ErrDivisionByZero is returned by Proportion when the denominator is zero.
	ErrDivisionByZero = errors.New("amount division by zero")
)

// IsArithmeticError reports whether err is one of the ledger arithmetic
// failures.  Handlers use this to map to an internal error instead of a
// client fault.
func IsArithmeticError(err error) bool {
	return errors.Is(err, ErrOverflow) || errors.Is(err, ErrDivisionByZero)
}

// ──────────────────────────────────────────────────────────────────────────────
// Amount
// ──────────────────────────────────────────────────────────────────────────────

// etherDecimals is the display conversion factor (wei has 18 decimals).
const etherDecimals = 18

// Amount is an unsigned 256-bit wei value.  The zero value is zero wei and
// ready to use.
type Amount struct {
	n uint256.Int
}

// Zero returns a zero Amount.
func Zero() Amount { return Amount{} }

// FromUint64 builds an Amount from a uint64 wei value.
func FromUint64(v uint64) Amount {
	var a Amount
	a.n.SetUint64(v)
	return a
}

// FromDecimalString parses a base-10 wei string (no sign, no fraction).
func FromDecimalString(s string) (Amount, error) {
	var a Amount
	if err := a.n.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("ledger: parse amount %q: %w", s, err)
	}
	return a, nil
}

// MustFromDecimal is FromDecimalString that panics on error.  Test helper.
func MustFromDecimal(s string) Amount {
	a, err := FromDecimalString(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Dec returns the amount as a base-10 string.
func (a Amount) Dec() string { return a.n.Dec() }

// IsZero reports whether the amount is zero wei.
func (a Amount) IsZero() bool { return a.n.IsZero() }

// Cmp compares a and b, returning -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.n.Cmp(&b.n) }

// Equal reports a == b.
func (a Amount) Equal(b Amount) bool { return a.n.Eq(&b.n) }

// LessThan reports a < b.
func (a Amount) LessThan(b Amount) bool { return a.n.Lt(&b.n) }

// Ether renders the amount as a decimal ether value for display layers.
// Never used for fund accounting.
func (a Amount) Ether() decimal.Decimal {
	return decimal.NewFromBigInt(a.n.ToBig(), -etherDecimals)
}

// ──────────────────────────────────────────────────────────────────────────────
// Arithmetic
// ──────────────────────────────────────────────────────────────────────────────

// Add returns a+b, failing with ErrOverflow when the sum does not fit in
// 256 bits.
func Add(a, b Amount) (Amount, error) {
	var sum Amount
	if _, overflow := sum.n.AddOverflow(&a.n, &b.n); overflow {
		return Amount{}, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, failing with ErrOverflow on underflow.  Used by the
// store when draining a pool by a paid-out claim.
func Sub(a, b Amount) (Amount, error) {
	var diff Amount
	if _, underflow := diff.n.SubOverflow(&a.n, &b.n); underflow {
		return Amount{}, ErrOverflow
	}
	return diff, nil
}

// Proportion returns floor(amount * num / den) using a 512-bit intermediate
// product, so the multiplication itself cannot overflow.  Rounding is always
// floor: the sum of proportional shares never exceeds the whole.
func Proportion(amount, num, den Amount) (Amount, error) {
	if den.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	var out Amount
	if _, overflow := out.n.MulDivOverflow(&amount.n, &num.n, &den.n); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Database & JSON encoding
// ──────────────────────────────────────────────────────────────────────────────

// Value stores the amount as a base-10 string (Postgres NUMERIC(78,0)).
func (a Amount) Value() (driver.Value, error) {
	return a.n.Dec(), nil
}

// Scan reads a NUMERIC / text column back into the amount.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		a.n.Clear()
		return nil
	case []byte:
		return a.n.SetFromDecimal(string(v))
	case string:
		return a.n.SetFromDecimal(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("ledger: negative amount %d from database", v)
		}
		a.n.SetUint64(uint64(v))
		return nil
	default:
		return fmt.Errorf("ledger: cannot scan %T into Amount", src)
	}
}

// MarshalJSON encodes the amount as a decimal string to avoid JSON number
// precision loss.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.n.Dec())
}

// UnmarshalJSON accepts a decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Bare number fallback.
		s = string(data)
	}
	return a.n.SetFromDecimal(s)
}
