package projection

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
)

// BudgetState classifies how much of a monthly budget has been used.
type BudgetState string

const (
	BudgetOnTrack   BudgetState = "on_track"
	BudgetWarning   BudgetState = "warning"
	BudgetCompleted BudgetState = "completed"
	BudgetExceeded  BudgetState = "exceeded"
)

// WarningPercent is the usage at which a budget turns to warning.
var WarningPercent = decimal.NewFromInt(80)

var hundred = decimal.NewFromInt(100)

// BudgetProgress is the usage of one budget in a given month.
type BudgetProgress struct {
	Budget    core.Budget     `json:"budget"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"` // negative once exceeded
	Percent   decimal.Decimal `json:"percent"`
	State     BudgetState     `json:"state"`
}

func inMonth(d core.Date, year, month int) bool {
	return d.Year() == year && d.Month() == month
}

func checkMonth(year, month int) error {
	if month < 1 || month > 12 || year < 1 {
		return core.ErrInvalidMonth
	}
	return nil
}

// MonthOverview totals income and expenses of one month, with expenses
// broken down by category from largest to smallest.
func MonthOverview(txs []core.Transaction, year, month int) (core.MonthOverview, error) {
	if err := checkMonth(year, month); err != nil {
		return core.MonthOverview{}, err
	}
	ov := core.MonthOverview{
		Year:     year,
		Month:    month,
		Income:   decimal.Zero,
		Expenses: decimal.Zero,
	}
	byCat := map[string]decimal.Decimal{}
	for _, t := range txs {
		if !inMonth(t.Date, year, month) {
			continue
		}
		switch t.Type {
		case core.Income:
			ov.Income = ov.Income.Add(t.Amount)
		case core.Expense:
			ov.Expenses = ov.Expenses.Add(t.Amount)
			byCat[t.Category] = byCat[t.Category].Add(t.Amount)
		}
	}
	ov.Net = ov.Income.Sub(ov.Expenses)

	ov.ByCategory = make([]core.CategoryAmount, 0, len(byCat))
	for cat, amount := range byCat {
		ov.ByCategory = append(ov.ByCategory, core.CategoryAmount{
			Category: cat,
			Label:    core.CategoryLabel(core.Expense, cat),
			Amount:   amount,
		})
	}
	slices.SortFunc(ov.ByCategory, func(a, b core.CategoryAmount) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return ov, nil
}

// BudgetStatus reports the month's spending against every budget, in the
// order the budgets were given.
func BudgetStatus(budgets []core.Budget, txs []core.Transaction, year, month int) ([]BudgetProgress, error) {
	if err := checkMonth(year, month); err != nil {
		return nil, err
	}
	spent := map[string]decimal.Decimal{}
	for _, t := range txs {
		if t.Type == core.Expense && inMonth(t.Date, year, month) {
			spent[t.Category] = spent[t.Category].Add(t.Amount)
		}
	}

	out := make([]BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		s := spent[b.Category]
		p := BudgetProgress{
			Budget:    b,
			Spent:     s,
			Remaining: b.MonthlyLimit.Sub(s),
			Percent:   decimal.Zero,
			State:     budgetState(s, b.MonthlyLimit),
		}
		if b.MonthlyLimit.IsPositive() {
			p.Percent = s.Mul(hundred).Div(b.MonthlyLimit).Round(2)
		}
		out = append(out, p)
	}
	return out, nil
}

// budgetState compares exact amounts so that rounding never moves a budget
// across a threshold.
func budgetState(spent, limit decimal.Decimal) BudgetState {
	switch c := spent.Cmp(limit); {
	case c > 0:
		return BudgetExceeded
	case c == 0:
		return BudgetCompleted
	case spent.Mul(hundred).GreaterThanOrEqual(limit.Mul(WarningPercent)):
		return BudgetWarning
	default:
		return BudgetOnTrack
	}
}
