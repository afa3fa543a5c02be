package services

import (
	"context"
	"errors"
	"fmt"

	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/projection"
	"finanzas/internal/snapshot"
	"finanzas/internal/storage"
)

// ErrNotRecurring is returned when a next occurrence is asked for a plain transaction.
var ErrNotRecurring = errors.New("transaction is not recurring")

// SnapshotProvider hands out the current ledger snapshot, usually a *snapshot.Hub.
type SnapshotProvider interface {
	Current(ctx context.Context) (*snapshot.Snapshot, error)
}

// NextPayment is the next due date of one recurring transaction.
type NextPayment struct {
	TransactionID string    `json:"transaction_id"`
	Frequency     string    `json:"frequency"`
	DueDate       core.Date `json:"due_date"`
	DaysUntil     int       `json:"days_until"`
}

// DashboardService computes every dashboard view from the latest snapshot.
// Results are cached per snapshot version, so a new snapshot invalidates
// everything computed from the old one.
type DashboardService struct {
	snapshots SnapshotProvider
	cache     cache.Cache[any]
	logger    *log.Logger
}

// NewDashboardService creates the service. A nil cache disables caching.
func NewDashboardService(snapshots SnapshotProvider, c cache.Cache[any], logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Nop()
	}
	return &DashboardService{
		snapshots: snapshots,
		cache:     c,
		logger:    logger.WithComponent(log.ComponentDashboard),
	}
}

// cached runs compute on the current snapshot unless a result for the same
// snapshot version and key is cached. Errors are not cached.
func cached[T any](ctx context.Context, s *DashboardService, key string, compute func(*snapshot.Snapshot) (T, error)) (T, error) {
	var zero T
	snap, err := s.snapshots.Current(ctx)
	if err != nil {
		return zero, fmt.Errorf("current snapshot: %w", err)
	}

	fullKey := fmt.Sprintf("v%d:%s", snap.Version, key)
	if s.cache != nil {
		if v, ok := s.cache.Get(fullKey); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
	}

	v, err := compute(snap)
	if err != nil {
		return zero, err
	}
	if s.cache != nil {
		s.cache.Set(fullKey, v)
	}
	return v, nil
}

func cardFrom(snap *snapshot.Snapshot, id string) (core.Card, error) {
	c, ok := snap.Card(id)
	if !ok {
		return core.Card{}, fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

// CardWindow returns the ±radius day chart for one card.
func (s *DashboardService) CardWindow(ctx context.Context, cardID string, today core.Date, radius int) ([]projection.DayPoint, error) {
	key := fmt.Sprintf("window:%s:%s:%d", cardID, today, radius)
	return cached(ctx, s, key, func(snap *snapshot.Snapshot) ([]projection.DayPoint, error) {
		card, err := cardFrom(snap, cardID)
		if err != nil {
			return nil, err
		}
		return projection.BuildWindow(card, snap.Transactions, today, radius)
	})
}

// CardCycles returns the previous, current and next billing cycle of one card.
func (s *DashboardService) CardCycles(ctx context.Context, cardID string, today core.Date) ([]projection.BillingCycle, error) {
	key := fmt.Sprintf("cycles:%s:%s", cardID, today)
	return cached(ctx, s, key, func(snap *snapshot.Snapshot) ([]projection.BillingCycle, error) {
		card, err := cardFrom(snap, cardID)
		if err != nil {
			return nil, err
		}
		return projection.Cycles(card, today)
	})
}

// CardSpend returns the open cycle's spend for one card.
func (s *DashboardService) CardSpend(ctx context.Context, cardID string, today core.Date) (projection.CycleSpendSummary, error) {
	key := fmt.Sprintf("spend:%s:%s", cardID, today)
	return cached(ctx, s, key, func(snap *snapshot.Snapshot) (projection.CycleSpendSummary, error) {
		card, err := cardFrom(snap, cardID)
		if err != nil {
			return projection.CycleSpendSummary{}, err
		}
		return projection.CycleSpend(card, snap.Transactions, today)
	})
}

// CardSummary returns the header stats of the cards page.
func (s *DashboardService) CardSummary(ctx context.Context) (projection.CardSummary, error) {
	return cached(ctx, s, "cards:summary", func(snap *snapshot.Snapshot) (projection.CardSummary, error) {
		return projection.SummarizeCards(snap.Cards), nil
	})
}

// Upcoming returns recurring payments due within days of today.
func (s *DashboardService) Upcoming(ctx context.Context, today core.Date, days int) ([]projection.UpcomingPayment, error) {
	key := fmt.Sprintf("upcoming:%s:%d", today, days)
	return cached(ctx, s, key, func(snap *snapshot.Snapshot) ([]projection.UpcomingPayment, error) {
		return projection.Upcoming(snap.Transactions, today, days)
	})
}

// NextOccurrence returns the next due date of a recurring transaction.
func (s *DashboardService) NextOccurrence(ctx context.Context, txID string, today core.Date) (NextPayment, error) {
	key := fmt.Sprintf("next:%s:%s", txID, today)
	return cached(ctx, s, key, func(snap *snapshot.Snapshot) (NextPayment, error) {
		t, ok := snap.Transaction(txID)
		if !ok {
			return NextPayment{}, fmt.Errorf("transaction %s: %w", txID, storage.ErrNotFound)
		}
		if !t.IsRecurring {
			return NextPayment{}, ErrNotRecurring
		}
		due, err := projection.NextOccurrence(t.RecurringPaymentDate, t.RecurringFrequency, today)
		if err != nil {
			return NextPayment{}, err
		}
		return NextPayment{
			TransactionID: t.ID,
			Frequency:     string(t.RecurringFrequency),
			DueDate:       due,
			DaysUntil:     today.DaysUntil(due),
		}, nil
	})
}

// Overview returns the income and expense totals of one month.
func (s *DashboardService) Overview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	key := fmt.Sprintf("overview:%d-%02d", year, month)
	return cached(ctx, s, key, func(snap *snapshot.Snapshot) (core.MonthOverview, error) {
		return projection.MonthOverview(snap.Transactions, year, month)
	})
}

// BudgetStatus returns how far each budget is used in one month.
func (s *DashboardService) BudgetStatus(ctx context.Context, year, month int) ([]projection.BudgetProgress, error) {
	key := fmt.Sprintf("budgets:%d-%02d", year, month)
	return cached(ctx, s, key, func(snap *snapshot.Snapshot) ([]projection.BudgetProgress, error) {
		return projection.BudgetStatus(snap.Budgets, snap.Transactions, year, month)
	})
}
