package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category string          `json:"category"`
	Label    string          `json:"label"`
	Amount   decimal.Decimal `json:"amount"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"` // 1-12
	Income     decimal.Decimal  `json:"income"`
	Expenses   decimal.Decimal  `json:"expenses"`
	Net        decimal.Decimal  `json:"net"`
	ByCategory []CategoryAmount `json:"by_category"`
}
