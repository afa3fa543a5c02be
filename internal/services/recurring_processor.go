package services

import (
	"context"
	"errors"
	"fmt"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/projection"
)

// RecurringResult summarizes one materialization pass.
type RecurringResult struct {
	Templates int
	Created   int
	Failed    int
}

// RecurringProcessor turns due occurrences of recurring templates into
// regular transactions.
type RecurringProcessor struct {
	ledger *LedgerService
	logger *log.Logger
}

// NewRecurringProcessor creates a new recurring transaction processor
func NewRecurringProcessor(ledger *LedgerService, logger *log.Logger) *RecurringProcessor {
	if logger == nil {
		logger = log.Nop()
	}
	return &RecurringProcessor{
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentRecurring),
	}
}

// ProcessDue materializes, for every active template, each occurrence after
// both the template's own date and its last materialized date, up to and
// including today. Running it twice for the same day creates nothing new.
// A failing template is logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, today core.Date) (RecurringResult, error) {
	if p.ledger == nil {
		return RecurringResult{}, errors.New("processor not properly initialized")
	}
	if today.IsZero() {
		return RecurringResult{}, core.ErrZeroDate
	}

	templates, err := p.ledger.ListRecurringTemplates(ctx)
	if err != nil {
		return RecurringResult{}, fmt.Errorf("list recurring templates: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing recurring transactions",
		"total_active", len(templates),
		"processing_date", today.String())

	res := RecurringResult{}
	for _, t := range templates {
		if !t.IsActiveTemplate() {
			continue
		}
		res.Templates++
		n, err := p.processTemplate(ctx, t, today)
		if err != nil {
			res.Failed++
			p.logger.ErrorContext(ctx, "Failed to materialize recurring transaction",
				log.FieldTransactionID, t.ID,
				log.FieldError, err)
			continue
		}
		res.Created += n
	}

	p.logger.InfoContext(ctx, "Recurring processing complete",
		"templates", res.Templates,
		"created", res.Created,
		"failed", res.Failed)
	return res, nil
}

// DueDates returns the occurrences of t that ProcessDue would create for
// today, and the date the template is materialized through afterwards.
func DueDates(t core.Transaction, today core.Date) ([]core.Date, core.Date, error) {
	start := t.Date
	if t.LastMaterialized.After(start) {
		start = t.LastMaterialized
	}
	from := start.AddDays(1)
	if from.After(today) {
		return nil, core.Date{}, nil
	}

	dates, err := projection.Occurrences(t.RecurringPaymentDate, t.RecurringFrequency, from, today)
	switch {
	case errors.Is(err, projection.ErrTooManyOccurrences):
		// Catch up in chunks; the next pass continues after the last date.
		return dates, dates[len(dates)-1], nil
	case err != nil:
		return nil, core.Date{}, err
	}
	return dates, today, nil
}

func (p *RecurringProcessor) processTemplate(ctx context.Context, t core.Transaction, today core.Date) (int, error) {
	dates, through, err := DueDates(t, today)
	if err != nil {
		return 0, err
	}
	if through.IsZero() {
		return 0, nil
	}
	if len(dates) == 0 && t.LastMaterialized.Equal(through) {
		return 0, nil
	}

	created, err := p.ledger.MaterializeOccurrences(ctx, t, dates, through)
	if err != nil {
		return 0, err
	}
	for _, c := range created {
		p.logger.InfoContext(ctx, "Created transaction from recurring template",
			"recurring_id", t.ID,
			log.FieldTransactionID, c.ID,
			"date", c.Date.String(),
			log.FieldAmount, core.FormatAmount(c.Amount),
			"frequency", t.RecurringFrequency)
	}
	return len(created), nil
}
