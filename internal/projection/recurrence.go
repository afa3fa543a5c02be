// Package projection holds the pure date math behind the dashboards.
//
// This file implements next-occurrence projection for recurring transactions.
// Each frequency has its own Stepper strategy that knows how to produce the
// k-th occurrence from an anchor date.
package projection

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"finanzas/internal/core"
)

// MaxOccurrences caps how many occurrences Occurrences returns in one call.
const MaxOccurrences = 400

var (
	ErrUnknownFrequency   = core.ErrUnknownFrequency
	ErrZeroDate           = core.ErrZeroDate
	ErrTooManyOccurrences = errors.New("occurrence limit reached")
	ErrInvalidHorizon     = errors.New("horizon must not be negative")
)

// Stepper is the strategy interface for one recurrence frequency.
type Stepper interface {
	// Nth returns the k-th occurrence of anchor (k >= 0, Nth(anchor, 0) == anchor).
	// Occurrences are always computed from the anchor, never chained.
	Nth(anchor core.Date, k int) core.Date
	// StepsBefore returns a k with Nth(anchor, k) <= target, as large as is cheap
	// to compute. target must not be before anchor.
	StepsBefore(anchor, target core.Date) int
}

// DayStepper advances by a fixed number of days.
type DayStepper struct {
	Days int
}

func (s DayStepper) Nth(anchor core.Date, k int) core.Date {
	return anchor.AddDays(k * s.Days)
}

func (s DayStepper) StepsBefore(anchor, target core.Date) int {
	return anchor.DaysUntil(target) / s.Days
}

// MonthStepper advances by a fixed number of calendar months, clamping the
// day-of-month to the target month's last day.
type MonthStepper struct {
	Months int
}

func (s MonthStepper) Nth(anchor core.Date, k int) core.Date {
	return anchor.AddMonths(k * s.Months)
}

func (s MonthStepper) StepsBefore(anchor, target core.Date) int {
	months := (target.Year()-anchor.Year())*12 + target.Month() - anchor.Month() - 1
	if months < 0 {
		return 0
	}
	return months / s.Months
}

// steppers maps frequencies to their strategies.
var steppers = map[core.Frequency]Stepper{
	core.Weekly:   DayStepper{Days: 7},
	core.Biweekly: DayStepper{Days: 15},
	core.Monthly:  MonthStepper{Months: 1},
	core.Yearly:   MonthStepper{Months: 12},
}

// GetStepper returns the stepper for a frequency.
// Returns ErrUnknownFrequency if the frequency is not registered.
func GetStepper(freq core.Frequency) (Stepper, error) {
	s, ok := steppers[freq]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, freq)
	}
	return s, nil
}

// RegisterStepper adds or replaces the stepper for a frequency.
// Not safe for concurrent use; call it during initialization.
func RegisterStepper(freq core.Frequency, s Stepper) {
	steppers[freq] = s
}

// NextOccurrence returns the first occurrence of anchor that is on or after today.
// When anchor itself is on or after today it is returned unchanged.
func NextOccurrence(anchor core.Date, freq core.Frequency, today core.Date) (core.Date, error) {
	s, err := GetStepper(freq)
	if err != nil {
		return core.Date{}, err
	}
	if anchor.IsZero() || today.IsZero() {
		return core.Date{}, ErrZeroDate
	}
	if !anchor.Before(today) {
		return anchor, nil
	}
	return s.Nth(anchor, firstOnOrAfter(s, anchor, today)), nil
}

// firstOnOrAfter returns the smallest k with Nth(anchor, k) >= target.
func firstOnOrAfter(s Stepper, anchor, target core.Date) int {
	if !anchor.Before(target) {
		return 0
	}
	k := s.StepsBefore(anchor, target)
	for s.Nth(anchor, k).Before(target) {
		k++
	}
	return k
}

// Occurrences returns every occurrence of anchor within [from, to] in order.
// At most MaxOccurrences dates are returned; when the range holds more, the
// truncated list is returned together with ErrTooManyOccurrences.
func Occurrences(anchor core.Date, freq core.Frequency, from, to core.Date) ([]core.Date, error) {
	s, err := GetStepper(freq)
	if err != nil {
		return nil, err
	}
	if anchor.IsZero() || from.IsZero() || to.IsZero() {
		return nil, ErrZeroDate
	}
	if to.Before(from) || to.Before(anchor) {
		return nil, nil
	}
	var out []core.Date
	for k := firstOnOrAfter(s, anchor, from); ; k++ {
		d := s.Nth(anchor, k)
		if d.After(to) {
			return out, nil
		}
		if len(out) == MaxOccurrences {
			return out, ErrTooManyOccurrences
		}
		out = append(out, d)
	}
}

// UpcomingPayment is the next due date of an active recurring transaction.
type UpcomingPayment struct {
	Transaction core.Transaction `json:"transaction"`
	DueDate     core.Date        `json:"due_date"`
	DaysUntil   int              `json:"days_until"`
}

// Upcoming returns the next occurrence of every active recurring transaction
// that falls within [today, today+horizonDays], sorted by due date and then
// description.
func Upcoming(txs []core.Transaction, today core.Date, horizonDays int) ([]UpcomingPayment, error) {
	if horizonDays < 0 {
		return nil, ErrInvalidHorizon
	}
	if today.IsZero() {
		return nil, ErrZeroDate
	}
	limit := today.AddDays(horizonDays)
	var out []UpcomingPayment
	for _, tx := range txs {
		if !tx.IsActiveTemplate() {
			continue
		}
		next, err := NextOccurrence(tx.RecurringPaymentDate, tx.RecurringFrequency, today)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		if next.After(limit) {
			continue
		}
		out = append(out, UpcomingPayment{
			Transaction: tx,
			DueDate:     next,
			DaysUntil:   today.DaysUntil(next),
		})
	}
	slices.SortFunc(out, func(a, b UpcomingPayment) int {
		if c := a.DueDate.Compare(b.DueDate); c != 0 {
			return c
		}
		return cmp.Compare(a.Transaction.Description, b.Transaction.Description)
	})
	return out, nil
}
