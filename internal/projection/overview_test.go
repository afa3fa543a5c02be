package projection

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/core"
)

func tx(typ core.TransactionType, category, date, amount string) core.Transaction {
	return core.Transaction{
		Type:     typ,
		Category: category,
		Date:     d(date),
		Amount:   decimal.RequireFromString(amount),
	}
}

func TestMonthOverview(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Income, "salario", "2025-03-01", "2000"),
		tx(core.Expense, "vivienda", "2025-03-02", "800"),
		tx(core.Expense, "alimentacion", "2025-03-10", "120.40"),
		tx(core.Expense, "alimentacion", "2025-03-20", "79.60"),
		tx(core.Expense, "ocio", "2025-03-31", "200"),
		tx(core.Expense, "ocio", "2025-04-01", "999"),
	}
	ov, err := MonthOverview(txs, 2025, 3)
	require.NoError(t, err)
	assert.True(t, ov.Income.Equal(decimal.NewFromInt(2000)))
	assert.True(t, ov.Expenses.Equal(decimal.NewFromInt(1200)))
	assert.True(t, ov.Net.Equal(decimal.NewFromInt(800)))

	require.Len(t, ov.ByCategory, 3)
	assert.Equal(t, "vivienda", ov.ByCategory[0].Category)
	// alimentacion and ocio tie at 200; ties sort by name.
	assert.Equal(t, "alimentacion", ov.ByCategory[1].Category)
	assert.Equal(t, "Alimentación", ov.ByCategory[1].Label)
	assert.Equal(t, "ocio", ov.ByCategory[2].Category)

	_, err = MonthOverview(txs, 2025, 13)
	assert.True(t, errors.Is(err, core.ErrInvalidMonth))
}

func TestBudgetStatus(t *testing.T) {
	budgets := []core.Budget{
		{ID: "1", Category: "ocio", MonthlyLimit: decimal.NewFromInt(100)},
		{ID: "2", Category: "alimentacion", MonthlyLimit: decimal.NewFromInt(100)},
		{ID: "3", Category: "transporte", MonthlyLimit: decimal.NewFromInt(100)},
		{ID: "4", Category: "salud", MonthlyLimit: decimal.NewFromInt(100)},
		{ID: "5", Category: "educacion", MonthlyLimit: decimal.NewFromInt(100)},
	}
	txs := []core.Transaction{
		tx(core.Expense, "ocio", "2025-03-05", "79.99"),
		tx(core.Expense, "alimentacion", "2025-03-05", "80"),
		tx(core.Expense, "transporte", "2025-03-05", "60"),
		tx(core.Expense, "transporte", "2025-03-15", "40"),
		tx(core.Expense, "salud", "2025-03-05", "100.01"),
		tx(core.Expense, "educacion", "2025-02-28", "500"),
		tx(core.Income, "otros", "2025-03-05", "1000"),
	}
	got, err := BudgetStatus(budgets, txs, 2025, 3)
	require.NoError(t, err)
	require.Len(t, got, 5)

	want := []BudgetState{BudgetOnTrack, BudgetWarning, BudgetCompleted, BudgetExceeded, BudgetOnTrack}
	for i, w := range want {
		assert.Equal(t, w, got[i].State, "budget %s", got[i].Budget.Category)
	}
	assert.True(t, got[0].Percent.Equal(decimal.RequireFromString("79.99")))
	assert.True(t, got[3].Remaining.Equal(decimal.RequireFromString("-0.01")))
	assert.True(t, got[4].Spent.IsZero())
	assert.True(t, got[4].Remaining.Equal(decimal.NewFromInt(100)))
}
