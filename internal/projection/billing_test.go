package projection

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/core"
)

func testCard(billingDay, dueDay int) core.Card {
	return core.Card{
		ID:              "card-1",
		BankName:        "Banco",
		CardHolder:      "Holder",
		LastFour:        "4242",
		CardType:        core.CreditCard,
		BillingCycleDay: billingDay,
		PaymentDueDay:   dueDay,
		CreditLimit:     decimal.NewNullDecimal(decimal.NewFromInt(1000)),
		ExpiryDate:      "12/29",
	}
}

func charge(cardID, date, amount string) core.Transaction {
	return core.Transaction{
		Type:          core.Expense,
		Amount:        decimal.RequireFromString(amount),
		Category:      "ocio",
		PaymentMethod: core.PaymentCard,
		CardID:        cardID,
		Date:          d(date),
	}
}

func TestCycleStart(t *testing.T) {
	tests := []struct {
		day        string
		billingDay int
		want       string
	}{
		{"2025-03-20", 15, "2025-03-15"},
		{"2025-03-15", 15, "2025-03-15"},
		{"2025-03-14", 15, "2025-02-15"},
		{"2025-01-10", 15, "2024-12-15"},
		{"2025-03-01", 31, "2025-02-28"},
		{"2024-03-01", 31, "2024-02-29"},
		{"2025-03-31", 31, "2025-03-31"},
		{"2025-04-30", 31, "2025-04-30"},
		{"2025-05-01", 1, "2025-05-01"},
	}
	for _, tt := range tests {
		got := CycleStart(d(tt.day), tt.billingDay)
		if got.String() != tt.want {
			t.Errorf("CycleStart(%s, %d) = %s, want %s", tt.day, tt.billingDay, got, tt.want)
		}
	}
}

func TestBuildWindowShape(t *testing.T) {
	today := d("2025-03-20")
	points, err := BuildWindow(testCard(15, 5), nil, today, DefaultRadius)
	require.NoError(t, err)
	require.Len(t, points, 2*DefaultRadius+1)

	todays := 0
	for i, p := range points {
		assert.Equal(t, i-DefaultRadius, p.Offset)
		assert.True(t, p.Date.Equal(today.AddDays(p.Offset)))
		if i > 0 {
			assert.True(t, p.Date.After(points[i-1].Date))
		}
		if p.IsToday {
			todays++
			assert.Equal(t, 0, p.Offset)
		}
		assert.Equal(t, p.Date.Day() == 1, p.IsNewMonth)
		assert.Equal(t, p.Offset <= 0, p.Cumulative.Valid, "offset %d", p.Offset)
	}
	assert.Equal(t, 1, todays)

	points, err = BuildWindow(testCard(15, 5), nil, today, 0)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].IsToday)
}

func TestBuildWindowCycleBoundary(t *testing.T) {
	card := testCard(15, 5)
	txs := []core.Transaction{
		charge(card.ID, "2025-03-10", "40"),
		charge(card.ID, "2025-03-16", "25.50"),
		charge("other-card", "2025-03-17", "99"),
		{Type: core.Income, CardID: card.ID, Amount: decimal.NewFromInt(500), Date: d("2025-03-18")},
		charge(card.ID, "2025-03-25", "10"), // future
	}
	points, err := BuildWindow(card, txs, d("2025-03-20"), 30)
	require.NoError(t, err)

	today := points[30]
	require.True(t, today.IsToday)
	assert.Equal(t, "2025-03-15", today.CycleStart.String())
	assert.True(t, today.Cumulative.Decimal.Equal(decimal.RequireFromString("25.50")), "got %s", today.Cumulative.Decimal)

	// Mar 14 belongs to the previous cycle and includes the Mar 10 charge.
	mar14 := points[30-6]
	assert.Equal(t, "2025-03-14", mar14.Date.String())
	assert.True(t, mar14.Cumulative.Decimal.Equal(decimal.NewFromInt(40)))

	// Mar 15 resets.
	mar15 := points[30-5]
	assert.True(t, mar15.Cumulative.Decimal.IsZero())
}

func TestBuildWindowMatchesPerDayRecomputation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, billingDay := range []int{1, 15, 28, 30, 31} {
		card := testCard(billingDay, 10)
		var txs []core.Transaction
		base := d("2024-12-01")
		for i := 0; i < 120; i++ {
			cents := decimal.New(int64(rng.Intn(20000)+1), -2)
			tx := charge(card.ID, base.AddDays(rng.Intn(120)).String(), cents.String())
			if rng.Intn(5) == 0 {
				tx.CardID = "someone-else"
			}
			txs = append(txs, tx)
		}
		today := d("2025-03-01")
		points, err := BuildWindow(card, txs, today, 45)
		require.NoError(t, err)

		for _, p := range points {
			if p.Offset > 0 {
				continue
			}
			want := decimal.Zero
			for _, tx := range txs {
				if tx.CardID == card.ID && !tx.Date.Before(p.CycleStart) && !tx.Date.After(p.Date) {
					want = want.Add(tx.Amount)
				}
			}
			if !p.Cumulative.Decimal.Equal(want) {
				t.Fatalf("billing day %d, %s: cumulative %s, want %s", billingDay, p.Date, p.Cumulative.Decimal, want)
			}
		}
	}
}

func TestBuildWindowCumulativeMonotoneWithinCycle(t *testing.T) {
	card := testCard(20, 10)
	var txs []core.Transaction
	for i := 0; i < 60; i++ {
		txs = append(txs, charge(card.ID, d("2025-01-01").AddDays(i).String(), "3"))
	}
	points, err := BuildWindow(card, txs, d("2025-03-01"), 60)
	require.NoError(t, err)
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		if !cur.Cumulative.Valid {
			break
		}
		if cur.CycleStart.Equal(prev.CycleStart) {
			assert.True(t, cur.Cumulative.Decimal.GreaterThanOrEqual(prev.Cumulative.Decimal), "decreased on %s", cur.Date)
		} else {
			assert.True(t, cur.Date.Equal(cur.CycleStart), "cycle changed mid-cycle on %s", cur.Date)
			assert.True(t, cur.Cumulative.Decimal.LessThanOrEqual(decimal.NewFromInt(3)), "no reset on %s", cur.Date)
		}
	}
}

func TestBuildWindowErrors(t *testing.T) {
	_, err := BuildWindow(testCard(0, 5), nil, d("2025-03-20"), 30)
	assert.True(t, errors.Is(err, ErrInvalidCard))
	_, err = BuildWindow(testCard(15, 32), nil, d("2025-03-20"), 30)
	assert.True(t, errors.Is(err, ErrInvalidCard))
	_, err = BuildWindow(testCard(15, 5), nil, d("2025-03-20"), -1)
	assert.True(t, errors.Is(err, ErrInvalidRadius))
	_, err = BuildWindow(testCard(15, 5), nil, core.Date{}, 1)
	assert.True(t, errors.Is(err, ErrZeroDate))
}

func TestCycles(t *testing.T) {
	cycles, err := Cycles(testCard(15, 5), d("2025-03-20"))
	require.NoError(t, err)
	require.Len(t, cycles, 3)

	want := []struct{ start, end, pay string }{
		{"2025-02-15", "2025-03-14", "2025-04-05"},
		{"2025-03-15", "2025-04-14", "2025-05-05"},
		{"2025-04-15", "2025-05-14", "2025-06-05"},
	}
	for i, w := range want {
		assert.Equal(t, w.start, cycles[i].Start.String())
		assert.Equal(t, w.end, cycles[i].End.String())
		assert.Equal(t, w.pay, cycles[i].PaymentDueDate.String())
		assert.Equal(t, i == 1, cycles[i].IsCurrent)
	}
	assert.Equal(t, -5, cycles[1].StartOffset)
	assert.Equal(t, 25, cycles[1].EndOffset)
}

func TestCyclesClampAndStayContiguous(t *testing.T) {
	for _, billingDay := range []int{1, 28, 29, 30, 31} {
		for i := 0; i < 400; i += 3 {
			today := d("2024-01-01").AddDays(i)
			cycles, err := Cycles(testCard(billingDay, 31), today)
			require.NoError(t, err)
			cur := cycles[1]
			assert.True(t, cur.Start.Equal(CycleStart(today, billingDay)))
			assert.False(t, today.Before(cur.Start) || today.After(cur.End), "today %s outside %s..%s", today, cur.Start, cur.End)
			for j := 1; j < len(cycles); j++ {
				assert.True(t, cycles[j].Start.Equal(cycles[j-1].End.AddDays(1)), "gap between cycles at %s", today)
			}
			for _, c := range cycles {
				assert.True(t, c.PaymentDueDate.After(c.End))
			}
		}
	}

	cycles, err := Cycles(testCard(31, 31), d("2025-03-10"))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", cycles[0].Start.String())
	assert.Equal(t, "2025-02-27", cycles[0].End.String())
	assert.Equal(t, "2025-02-28", cycles[1].Start.String())
	assert.Equal(t, "2025-03-30", cycles[1].End.String())
	assert.Equal(t, "2025-04-30", cycles[1].PaymentDueDate.String())
	assert.Equal(t, "2025-03-31", cycles[2].Start.String())
}

func TestCycleSpend(t *testing.T) {
	card := testCard(15, 5)
	txs := []core.Transaction{
		charge(card.ID, "2025-03-10", "40"),
		charge(card.ID, "2025-03-16", "200"),
		charge(card.ID, "2025-03-19", "50"),
	}
	got, err := CycleSpend(card, txs, d("2025-03-20"))
	require.NoError(t, err)
	assert.True(t, got.Spent.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, 25, got.DaysToClose)
	assert.Equal(t, "2025-05-05", got.PaymentDueDate.String())
	require.True(t, got.Utilization.Valid)
	assert.True(t, got.Utilization.Decimal.Equal(decimal.NewFromInt(25)))

	debit := card
	debit.CardType = core.DebitCard
	got, err = CycleSpend(debit, txs, d("2025-03-20"))
	require.NoError(t, err)
	assert.False(t, got.Utilization.Valid)
}

func TestSummarizeCards(t *testing.T) {
	c1 := testCard(15, 5)
	c1.CurrentBalance = decimal.NewNullDecimal(decimal.NewFromInt(300))
	c2 := testCard(1, 20)
	c2.CreditLimit = decimal.NewNullDecimal(decimal.NewFromInt(500))
	debit := core.Card{CardType: core.DebitCard}

	s := SummarizeCards([]core.Card{c1, c2, debit})
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Credit)
	assert.Equal(t, 1, s.Debit)
	assert.True(t, s.TotalCreditLimit.Equal(decimal.NewFromInt(1500)))
	assert.True(t, s.TotalCurrentBalance.Equal(decimal.NewFromInt(300)))
	assert.True(t, s.AvailableCredit.Equal(decimal.NewFromInt(1200)))

	empty := SummarizeCards(nil)
	assert.Equal(t, 0, empty.Total)
	assert.True(t, empty.AvailableCredit.IsZero())
}
