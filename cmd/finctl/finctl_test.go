package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/core"
	"finanzas/internal/projection"
	"finanzas/internal/storage"
)

// run executes finctl with args and returns stdout. Flag globals are reset
// first because cobra keeps them between executions.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagDB, flagTZ, flagJSON, flagToday = "", "UTC", false, ""
	flagAnchor, flagFrequency = "", string(core.Monthly)
	flagRadius, flagDays = projection.DefaultRadius, 7

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func seedDB(t *testing.T) (string, core.Card) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finanzas.db")
	repo, err := storage.NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	card, err := repo.CreateCard(ctx, core.Card{
		BankName:        "Banco Uno",
		CardHolder:      "Sam Doe",
		LastFour:        "1234",
		CardType:        core.CreditCard,
		BillingCycleDay: 15,
		PaymentDueDay:   5,
		ExpiryDate:      "08/28",
	})
	require.NoError(t, err)

	_, err = repo.CreateTransaction(ctx, core.Transaction{
		Type:          core.Expense,
		Amount:        decimal.RequireFromString("40"),
		Description:   "Supermercado",
		Category:      "alimentacion",
		PaymentMethod: core.PaymentCard,
		CardID:        card.ID,
		Date:          core.MustParseDate("2025-03-01"),
	})
	require.NoError(t, err)

	_, err = repo.CreateTransaction(ctx, core.Transaction{
		Type:                 core.Expense,
		Amount:               decimal.RequireFromString("9.99"),
		Description:          "Streaming",
		Category:             "ocio",
		PaymentMethod:        core.PaymentCash,
		Date:                 core.MustParseDate("2025-01-12"),
		IsRecurring:          true,
		RecurringActive:      true,
		RecurringPaymentDate: core.MustParseDate("2025-01-12"),
		RecurringFrequency:   core.Monthly,
	})
	require.NoError(t, err)
	return path, card
}

func TestNextCommand(t *testing.T) {
	out, err := run(t, "next", "--anchor", "2025-01-31", "--frequency", "monthly", "--today", "2025-03-01", "--json")
	require.NoError(t, err)

	var got struct {
		Next      string `json:"next"`
		DaysUntil int    `json:"days_until"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "2025-03-31", got.Next)
	assert.Equal(t, 30, got.DaysUntil)
}

func TestNextCommandTable(t *testing.T) {
	out, err := run(t, "next", "--anchor", "2025-03-05", "--today", "2025-03-01")
	require.NoError(t, err)
	assert.Contains(t, out, "NEXT")
	assert.Contains(t, out, "2025-03-05")
}

func TestNextCommandRejectsBadInput(t *testing.T) {
	_, err := run(t, "next", "--anchor", "2025-01-31", "--frequency", "hourly", "--today", "2025-03-01")
	assert.ErrorIs(t, err, core.ErrUnknownFrequency)

	_, err = run(t, "next", "--anchor", "31/01/2025")
	assert.Error(t, err)
}

func TestWindowCommand(t *testing.T) {
	db, card := seedDB(t)
	out, err := run(t, "window", card.ID, "--db", db, "--today", "2025-03-10", "--radius", "2", "--json")
	require.NoError(t, err)

	var points []projection.DayPoint
	require.NoError(t, json.Unmarshal([]byte(out), &points))
	require.Len(t, points, 5)
	assert.True(t, points[2].IsToday)
	require.True(t, points[2].Cumulative.Valid)
	assert.True(t, points[2].Cumulative.Decimal.Equal(decimal.NewFromInt(40)))
	assert.False(t, points[4].Cumulative.Valid)
}

func TestWindowCommandUnknownCard(t *testing.T) {
	db, _ := seedDB(t)
	_, err := run(t, "window", "missing", "--db", db)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCyclesAndSpendCommands(t *testing.T) {
	db, card := seedDB(t)

	out, err := run(t, "cycles", card.ID, "--db", db, "--today", "2025-03-10", "--json")
	require.NoError(t, err)
	var cycles []projection.BillingCycle
	require.NoError(t, json.Unmarshal([]byte(out), &cycles))
	require.NotEmpty(t, cycles)

	out, err = run(t, "spend", card.ID, "--db", db, "--today", "2025-03-10")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-02-15..2025-03-14")
	assert.Contains(t, out, "40.00")
}

func TestUpcomingCommand(t *testing.T) {
	db, _ := seedDB(t)
	out, err := run(t, "upcoming", "--db", db, "--today", "2025-03-10", "--days", "7", "--json")
	require.NoError(t, err)

	var payments []projection.UpcomingPayment
	require.NoError(t, json.Unmarshal([]byte(out), &payments))
	require.Len(t, payments, 1)
	assert.Equal(t, "2025-03-12", payments[0].DueDate.String())
	assert.Equal(t, 2, payments[0].DaysUntil)

	out, err = run(t, "upcoming", "--db", db, "--today", "2025-03-10", "--days", "1", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestRecurringDueThenRun(t *testing.T) {
	db, _ := seedDB(t)

	out, err := run(t, "recurring", "due", "--db", db, "--today", "2025-03-12", "--json")
	require.NoError(t, err)
	var due []dueTemplate
	require.NoError(t, json.Unmarshal([]byte(out), &due))
	require.Len(t, due, 1)
	assert.Len(t, due[0].Dates, 2) // 02-12 and 03-12

	_, err = run(t, "recurring", "run", "--db", db, "--today", "2025-03-12")
	require.NoError(t, err)

	out, err = run(t, "recurring", "due", "--db", db, "--today", "2025-03-12", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestMigrateCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "m.db")

	out, err := run(t, "migrate", "up", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "schema version 1\n", out)

	out, err = run(t, "migrate", "down", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "schema version 0\n", out)

	_, err = run(t, "migrate", "down", "zero", "--db", db)
	assert.Error(t, err)
}

func TestInvalidTimezone(t *testing.T) {
	_, err := run(t, "next", "--anchor", "2025-01-01", "--tz", "Mars/Olympus")
	assert.Error(t, err)
}
