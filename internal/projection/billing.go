package projection

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
)

// DefaultRadius is the number of days shown on each side of today.
const DefaultRadius = 30

var (
	ErrInvalidCard   = errors.New("invalid card billing configuration")
	ErrInvalidRadius = errors.New("radius must not be negative")
)

// DayPoint is one day of the card spending chart.
// Cumulative is null for days after today.
type DayPoint struct {
	Offset     int                 `json:"offset"`
	Date       core.Date           `json:"date"`
	IsToday    bool                `json:"is_today"`
	IsNewMonth bool                `json:"is_new_month"`
	CycleStart core.Date           `json:"cycle_start"`
	Cumulative decimal.NullDecimal `json:"cumulative"`
}

// BillingCycle is a single statement period of a card.
type BillingCycle struct {
	Start          core.Date `json:"start"`
	End            core.Date `json:"end"`
	PaymentDueDate core.Date `json:"payment_due_date"`
	IsCurrent      bool      `json:"is_current"`
	StartOffset    int       `json:"start_offset"`
	EndOffset      int       `json:"end_offset"`
}

// CycleSpendSummary describes the cycle that contains today.
type CycleSpendSummary struct {
	CardID         string              `json:"card_id"`
	CycleStart     core.Date           `json:"cycle_start"`
	CycleEnd       core.Date           `json:"cycle_end"`
	PaymentDueDate core.Date           `json:"payment_due_date"`
	Spent          decimal.Decimal     `json:"spent"`
	DaysToClose    int                 `json:"days_to_close"`
	DaysToPayment  int                 `json:"days_to_payment"`
	Utilization    decimal.NullDecimal `json:"utilization"` // percent of the credit limit
}

// CycleStart returns the first day of the billing cycle that contains d.
// It is billingDay of d's month when that date is not after d, otherwise
// billingDay of the previous month. Short months clamp billingDay to their
// last day.
func CycleStart(d core.Date, billingDay int) core.Date {
	start := core.OnDay(d.Year(), d.Month(), billingDay)
	if start.After(d) {
		start = core.OnDay(d.Year(), d.Month()-1, billingDay)
	}
	return start
}

// cycleEnd returns the last day of the cycle that starts at start.
func cycleEnd(start core.Date, billingDay int) core.Date {
	return core.OnDay(start.Year(), start.Month()+1, billingDay).AddDays(-1)
}

func checkCard(card core.Card) error {
	if card.BillingCycleDay < 1 || card.BillingCycleDay > 31 {
		return fmt.Errorf("%w: billing cycle day %d", ErrInvalidCard, card.BillingCycleDay)
	}
	if card.PaymentDueDay < 1 || card.PaymentDueDay > 31 {
		return fmt.Errorf("%w: payment due day %d", ErrInvalidCard, card.PaymentDueDay)
	}
	return nil
}

// expenseIndex answers "how much was spent on the card between two dates"
// with two binary searches over sorted dates and a prefix sum.
type expenseIndex struct {
	dates  []core.Date
	prefix []decimal.Decimal // prefix[i] is the sum of the first i amounts
}

func newExpenseIndex(cardID string, txs []core.Transaction) expenseIndex {
	var charges []core.Transaction
	for _, t := range txs {
		if t.IsExpenseOn(cardID) && !t.Date.IsZero() {
			charges = append(charges, t)
		}
	}
	slices.SortStableFunc(charges, func(a, b core.Transaction) int {
		return a.Date.Compare(b.Date)
	})
	idx := expenseIndex{
		dates:  make([]core.Date, len(charges)),
		prefix: make([]decimal.Decimal, len(charges)+1),
	}
	idx.prefix[0] = decimal.Zero
	for i, t := range charges {
		idx.dates[i] = t.Date
		idx.prefix[i+1] = idx.prefix[i].Add(t.Amount)
	}
	return idx
}

// sum returns the total of charges dated within [from, to].
func (x expenseIndex) sum(from, to core.Date) decimal.Decimal {
	if to.Before(from) {
		return decimal.Zero
	}
	lo := sort.Search(len(x.dates), func(i int) bool { return !x.dates[i].Before(from) })
	hi := sort.Search(len(x.dates), func(i int) bool { return x.dates[i].After(to) })
	return x.prefix[hi].Sub(x.prefix[lo])
}

// BuildWindow returns one point per day in [today-radius, today+radius].
// For today and earlier days Cumulative is the card's expense total from the
// day's cycle start through the day itself.
func BuildWindow(card core.Card, txs []core.Transaction, today core.Date, radius int) ([]DayPoint, error) {
	if err := checkCard(card); err != nil {
		return nil, err
	}
	if radius < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRadius, radius)
	}
	if today.IsZero() {
		return nil, ErrZeroDate
	}

	idx := newExpenseIndex(card.ID, txs)
	points := make([]DayPoint, 0, 2*radius+1)
	for offset := -radius; offset <= radius; offset++ {
		day := today.AddDays(offset)
		start := CycleStart(day, card.BillingCycleDay)
		p := DayPoint{
			Offset:     offset,
			Date:       day,
			IsToday:    offset == 0,
			IsNewMonth: day.Day() == 1,
			CycleStart: start,
		}
		if offset <= 0 {
			p.Cumulative = decimal.NewNullDecimal(idx.sum(start, day))
		}
		points = append(points, p)
	}
	return points, nil
}

// Cycles returns the previous, current and next billing cycles around today.
func Cycles(card core.Card, today core.Date) ([]BillingCycle, error) {
	if err := checkCard(card); err != nil {
		return nil, err
	}
	if today.IsZero() {
		return nil, ErrZeroDate
	}

	current := CycleStart(today, card.BillingCycleDay)
	cycles := make([]BillingCycle, 0, 3)
	for i := -1; i <= 1; i++ {
		start := core.OnDay(current.Year(), current.Month()+i, card.BillingCycleDay)
		end := cycleEnd(start, card.BillingCycleDay)
		cycles = append(cycles, BillingCycle{
			Start:          start,
			End:            end,
			PaymentDueDate: core.OnDay(end.Year(), end.Month()+1, card.PaymentDueDay),
			IsCurrent:      i == 0,
			StartOffset:    today.DaysUntil(start),
			EndOffset:      today.DaysUntil(end),
		})
	}
	return cycles, nil
}

// CycleSpend summarizes spending in the cycle that contains today.
func CycleSpend(card core.Card, txs []core.Transaction, today core.Date) (CycleSpendSummary, error) {
	cycles, err := Cycles(card, today)
	if err != nil {
		return CycleSpendSummary{}, err
	}
	cur := cycles[1]
	spent := newExpenseIndex(card.ID, txs).sum(cur.Start, today)

	out := CycleSpendSummary{
		CardID:         card.ID,
		CycleStart:     cur.Start,
		CycleEnd:       cur.End,
		PaymentDueDate: cur.PaymentDueDate,
		Spent:          spent,
		DaysToClose:    today.DaysUntil(cur.End),
		DaysToPayment:  today.DaysUntil(cur.PaymentDueDate),
	}
	if card.CardType == core.CreditCard && card.CreditLimit.Valid && card.CreditLimit.Decimal.IsPositive() {
		pct := spent.Mul(decimal.NewFromInt(100)).Div(card.CreditLimit.Decimal).Round(2)
		out.Utilization = decimal.NewNullDecimal(pct)
	}
	return out, nil
}
