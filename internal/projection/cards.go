package projection

import (
	"github.com/shopspring/decimal"

	"finanzas/internal/core"
)

// CardSummary aggregates the cards page header figures.
type CardSummary struct {
	Total               int             `json:"total"`
	Credit              int             `json:"credit"`
	Debit               int             `json:"debit"`
	TotalCreditLimit    decimal.Decimal `json:"total_credit_limit"`
	TotalCurrentBalance decimal.Decimal `json:"total_current_balance"`
	AvailableCredit     decimal.Decimal `json:"available_credit"`
}

// SummarizeCards counts cards by type and totals credit limits and balances.
// Only credit cards contribute to the money figures.
func SummarizeCards(cards []core.Card) CardSummary {
	s := CardSummary{
		Total:               len(cards),
		TotalCreditLimit:    decimal.Zero,
		TotalCurrentBalance: decimal.Zero,
	}
	for _, c := range cards {
		switch c.CardType {
		case core.CreditCard:
			s.Credit++
			if c.CreditLimit.Valid {
				s.TotalCreditLimit = s.TotalCreditLimit.Add(c.CreditLimit.Decimal)
			}
			if c.CurrentBalance.Valid {
				s.TotalCurrentBalance = s.TotalCurrentBalance.Add(c.CurrentBalance.Decimal)
			}
		case core.DebitCard:
			s.Debit++
		}
	}
	s.AvailableCredit = s.TotalCreditLimit.Sub(s.TotalCurrentBalance)
	return s
}
