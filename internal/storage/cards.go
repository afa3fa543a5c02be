package storage

import (
	"context"
	"fmt"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

const cardColumns = `id, bank_name, card_holder, last_four, card_type, billing_cycle_day,
	payment_due_day, credit_limit, current_balance, expiry_date, notes, created_at, updated_at`

func scanCard(s rowScanner) (core.Card, error) {
	var (
		c                    core.Card
		createdAt, updatedAt string
	)
	err := s.Scan(&c.ID, &c.BankName, &c.CardHolder, &c.LastFour, &c.CardType, &c.BillingCycleDay,
		&c.PaymentDueDay, &c.CreditLimit, &c.CurrentBalance, &c.ExpiryDate, &c.Notes, &createdAt, &updatedAt)
	if err != nil {
		return core.Card{}, err
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

// CreateCard inserts a card. An empty ID is replaced with a new UUID.
func (r *SQLiteRepository) CreateCard(ctx context.Context, c core.Card) (core.Card, error) {
	if c.ID == "" {
		c.ID = r.newID()
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BankName, c.CardHolder, c.LastFour, c.CardType, c.BillingCycleDay,
		c.PaymentDueDay, c.CreditLimit, c.CurrentBalance, c.ExpiryDate, c.Notes,
		formatTime(now), formatTime(now))
	if err != nil {
		return core.Card{}, fmt.Errorf("create card: %w", mapError(err))
	}

	r.logger.InfoContext(ctx, "Card saved", log.FieldCardID, c.ID, log.FieldType, c.CardType)
	return c, nil
}

func (r *SQLiteRepository) GetCard(ctx context.Context, id string) (core.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err != nil {
		return core.Card{}, fmt.Errorf("get card %s: %w", id, mapError(err))
	}
	return c, nil
}

// ListCards returns every card ordered by bank and last four digits.
func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.Card, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY bank_name, last_four, id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []core.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// UpdateCard overwrites every editable field of the card with c.ID.
func (r *SQLiteRepository) UpdateCard(ctx context.Context, c core.Card) (core.Card, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `UPDATE cards SET
			bank_name = ?, card_holder = ?, last_four = ?, card_type = ?, billing_cycle_day = ?,
			payment_due_day = ?, credit_limit = ?, current_balance = ?, expiry_date = ?, notes = ?,
			updated_at = ?
		WHERE id = ?`,
		c.BankName, c.CardHolder, c.LastFour, c.CardType, c.BillingCycleDay,
		c.PaymentDueDay, c.CreditLimit, c.CurrentBalance, c.ExpiryDate, c.Notes,
		formatTime(now), c.ID)
	if err != nil {
		return core.Card{}, fmt.Errorf("update card %s: %w", c.ID, mapError(err))
	}
	if err := checkAffected(res); err != nil {
		return core.Card{}, fmt.Errorf("update card %s: %w", c.ID, err)
	}
	return r.GetCard(ctx, c.ID)
}

// DeleteCard removes a card. Transactions charged to it keep their data but lose the card link.
func (r *SQLiteRepository) DeleteCard(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card %s: %w", id, mapError(err))
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete card %s: %w", id, err)
	}
	r.logger.InfoContext(ctx, "Card deleted", log.FieldCardID, id)
	return nil
}
