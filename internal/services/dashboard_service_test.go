package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/projection"
	"finanzas/internal/snapshot"
	"finanzas/internal/storage"
)

type staticSnapshots struct {
	snap *snapshot.Snapshot
	err  error
}

func (s *staticSnapshots) Current(context.Context) (*snapshot.Snapshot, error) {
	return s.snap, s.err
}

func dashboardFixture() *snapshot.Snapshot {
	card := creditCard()
	card.ID = "card-1"

	onCard := func(date, amount string) core.Transaction {
		t := expense(date, amount)
		t.ID = "tx-" + date
		t.PaymentMethod = core.PaymentCard
		t.CardID = card.ID
		return t
	}
	rent := recurringExpense("2025-01-05", core.Monthly)
	rent.ID = "rent"
	rent.RecurringActive = true

	return &snapshot.Snapshot{
		Version: 7,
		Cards:   []core.Card{card},
		Transactions: []core.Transaction{
			onCard("2025-03-10", "40"), // previous cycle
			onCard("2025-03-16", "25"),
			onCard("2025-03-18", "15"),
			rent,
			expense("2025-03-02", "60"),
		},
		Budgets: []core.Budget{{ID: "b1", Category: "alimentacion", MonthlyLimit: decimal.NewFromInt(100)}},
	}
}

func newTestDashboard(snap *snapshot.Snapshot) (*DashboardService, *cache.LRUCache[any]) {
	c := cache.NewLRUCache[any](32, time.Minute)
	return NewDashboardService(&staticSnapshots{snap: snap}, c, nil), c
}

func TestCardWindowAndCaching(t *testing.T) {
	ctx := context.Background()
	svc, c := newTestDashboard(dashboardFixture())
	today := core.MustParseDate("2025-03-20")

	points, err := svc.CardWindow(ctx, "card-1", today, 5)
	require.NoError(t, err)
	require.Len(t, points, 11)
	assert.True(t, points[5].IsToday)
	require.True(t, points[5].Cumulative.Valid)
	assert.True(t, points[5].Cumulative.Decimal.Equal(decimal.NewFromInt(40)))

	again, err := svc.CardWindow(ctx, "card-1", today, 5)
	require.NoError(t, err)
	assert.Equal(t, points, again)
	assert.Equal(t, uint64(1), c.Stats().Hits)

	_, err = svc.CardWindow(ctx, "missing", today, 5)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = svc.CardWindow(ctx, "card-1", today, -1)
	assert.ErrorIs(t, err, projection.ErrInvalidRadius)
}

func TestNewSnapshotVersionBypassesCache(t *testing.T) {
	ctx := context.Background()
	snap := dashboardFixture()
	src := &staticSnapshots{snap: snap}
	svc := NewDashboardService(src, cache.NewLRUCache[any](32, time.Minute), nil)

	first, err := svc.CardSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Total)

	next := *snap
	next.Version = 8
	next.Cards = nil
	src.snap = &next

	second, err := svc.CardSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Total)
}

func TestCardCyclesAndSpend(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestDashboard(dashboardFixture())
	today := core.MustParseDate("2025-03-20")

	cycles, err := svc.CardCycles(ctx, "card-1", today)
	require.NoError(t, err)
	require.Len(t, cycles, 3)
	assert.True(t, cycles[1].IsCurrent)
	assert.Equal(t, "2025-03-15", cycles[1].Start.String())

	spend, err := svc.CardSpend(ctx, "card-1", today)
	require.NoError(t, err)
	assert.True(t, spend.Spent.Equal(decimal.NewFromInt(40)))
}

func TestUpcomingAndNextOccurrence(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestDashboard(dashboardFixture())
	today := core.MustParseDate("2025-03-01")

	upcoming, err := svc.Upcoming(ctx, today, 7)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "2025-03-05", upcoming[0].DueDate.String())

	next, err := svc.NextOccurrence(ctx, "rent", core.MustParseDate("2025-03-06"))
	require.NoError(t, err)
	assert.Equal(t, "2025-04-05", next.DueDate.String())
	assert.Equal(t, 30, next.DaysUntil)

	_, err = svc.NextOccurrence(ctx, "tx-2025-03-10", today)
	assert.ErrorIs(t, err, ErrNotRecurring)
	_, err = svc.NextOccurrence(ctx, "nope", today)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOverviewAndBudgets(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestDashboard(dashboardFixture())

	ov, err := svc.Overview(ctx, 2025, 3)
	require.NoError(t, err)
	assert.True(t, ov.Expenses.Equal(decimal.NewFromInt(140)))

	status, err := svc.BudgetStatus(ctx, 2025, 3)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, projection.BudgetExceeded, status[0].State)

	_, err = svc.Overview(ctx, 2025, 0)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestDashboardSnapshotError(t *testing.T) {
	boom := errors.New("database is locked")
	svc := NewDashboardService(&staticSnapshots{err: boom}, nil, nil)
	_, err := svc.CardSummary(context.Background())
	assert.ErrorIs(t, err, boom)
}
