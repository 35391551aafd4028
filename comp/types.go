/*
Package comp provides the compensation structure (CTC) engine.

PURPOSE:
  This package contains the core types and algorithms for turning a target
  annual cost-to-company figure plus a catalog of rule-typed pay components
  into a fully resolved monthly/annual pay structure, and for carrying that
  structure through a versioned approval workflow.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A fixed-point currency amount (decimal-backed, no float drift)
  - Month: A payroll month (the granularity at which structures take effect)
  - Employee/Structure/Component IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Purity: Resolution is a pure function of its inputs (see resolve.go)
  2. Precision: Uses decimal.Decimal; rounding is half-to-even, explicit
  3. Type Safety: Strong typing for IDs prevents mixing employee/structure IDs
  4. Auditability: Resolved snapshots are frozen at submission time

SEE ALSO:
  - catalog.go: Component definitions and overrides
  - resolve.go: The resolution algorithm
  - structure.go: The versioned structure aggregate and its state machine
  - service.go: Submit/Approve/Reject lifecycle operations
*/
package comp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point currency amount
// =============================================================================

// Money is a currency amount. The engine is currency-agnostic: amounts are
// plain fixed-point decimals with two sub-unit places.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

// MustParseMoney panics on malformed input; use it only for literals.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("comp: parse money " + strconv.Quote(s) + ": " + err.Error())
	}
	return Money{Value: d}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(b Money) Money            { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money            { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Mul(s decimal.Decimal) Money  { return Money{Value: m.Value.Mul(s)} }
func (m Money) Neg() Money                   { return Money{Value: m.Value.Neg()} }
func (m Money) IsNegative() bool             { return m.Value.IsNegative() }
func (m Money) IsZero() bool                 { return m.Value.IsZero() }
func (m Money) IsPositive() bool             { return m.Value.IsPositive() }
func (m Money) Equal(b Money) bool           { return m.Value.Equal(b.Value) }
func (m Money) GreaterThan(b Money) bool     { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool        { return m.Value.LessThan(b.Value) }
func (m Money) Float64() float64             { f, _ := m.Value.Float64(); return f }
func (m Money) String() string               { return m.Value.StringFixed(2) }

var hundred = decimal.NewFromInt(100)

// Percent applies a percentage: m.Percent(40) is 40% of m.
func (m Money) Percent(p decimal.Decimal) Money {
	return Money{Value: m.Value.Mul(p).Div(hundred)}
}

// PerMonth divides an annual amount into a monthly one, rounded
// half-to-even at the currency sub-unit. Banker's rounding avoids the
// systematic drift that round-half-up accumulates when twelve monthly
// figures are summed back to an annual one.
func (m Money) PerMonth() Money {
	return Money{Value: m.Value.Div(decimal.NewFromInt(12)).RoundBank(2)}
}

func (m Money) MarshalJSON() ([]byte, error)  { return m.Value.MarshalJSON() }
func (m *Money) UnmarshalJSON(b []byte) error { return m.Value.UnmarshalJSON(b) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type StructureID string
type ComponentKey string

// =============================================================================
// MONTH - Payroll month granularity
// =============================================================================

// Month is a calendar month, the granularity at which compensation
// structures take effect. Text form is "YYYY-MM".
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Month{}, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1900 || year > 3000 {
		return Month{}, fmt.Errorf("invalid month %q: bad year", s)
	}
	mon, err := strconv.Atoi(parts[1])
	if err != nil || mon < 1 || mon > 12 {
		return Month{}, fmt.Errorf("invalid month %q: bad month", s)
	}
	return Month{Year: year, Month: time.Month(mon)}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) IsZero() bool { return m.Year == 0 }

func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

func (m Month) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Month) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// =============================================================================
// NOTIFICATION - Fire-and-forget event sent to the external dispatcher
// =============================================================================

type NotificationEvent string

const (
	EventStructureSubmitted NotificationEvent = "structure_submitted"
	EventStructureApproved  NotificationEvent = "structure_approved"
	EventStructureRejected  NotificationEvent = "structure_rejected"
)

// Notification describes a lifecycle event for the external notification
// collaborator. Dispatch is fire-and-forget: failures never roll back the
// state transition that produced the event.
type Notification struct {
	Event       NotificationEvent
	EmployeeID  EmployeeID
	StructureID StructureID
	Actor       string
	Message     string
}

// Notifier is implemented by the external notification dispatcher.
// See the notify package for the zerolog-backed implementation.
type Notifier interface {
	Dispatch(ctx context.Context, n Notification)
}
