package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

const transactionColumns = `id, type, amount, description, category, payment_method, card_id, date, notes,
	is_recurring, recurring_payment_date, recurring_frequency, recurring_active, recurring_parent_id,
	last_materialized, version, sync_status, created_at, updated_at`

// TransactionFilter narrows ListTransactions. Zero fields do not filter.
// Month is only applied together with Year.
type TransactionFilter struct {
	Type      core.TransactionType
	CardID    string
	Year      int
	Month     int
	Recurring bool // only active recurring templates
	Limit     int
}

// PendingSync represents minimal data needed for sync queue messages
type PendingSync struct {
	ID        string
	Version   int64
	CreatedAt time.Time
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                      core.Transaction
		cardID, freq, parentID sql.NullString
		createdAt, updatedAt   string
	)
	err := s.Scan(&t.ID, &t.Type, &t.Amount, &t.Description, &t.Category, &t.PaymentMethod, &cardID, &t.Date, &t.Notes,
		&t.IsRecurring, &t.RecurringPaymentDate, &freq, &t.RecurringActive, &parentID,
		&t.LastMaterialized, &t.Version, &t.SyncStatus, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.CardID = cardID.String
	t.RecurringFrequency = core.Frequency(freq.String)
	t.RecurringParentID = parentID.String
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLiteRepository) insertTransaction(ctx context.Context, db execer, t core.Transaction, onConflict string) (sql.Result, error) {
	return db.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) `+onConflict,
		t.ID, t.Type, t.Amount, t.Description, t.Category, t.PaymentMethod, nullString(t.CardID), t.Date, t.Notes,
		t.IsRecurring, t.RecurringPaymentDate, nullString(string(t.RecurringFrequency)), t.RecurringActive,
		nullString(t.RecurringParentID), t.LastMaterialized, t.Version, t.SyncStatus,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
}

// prepareNew fills in the fields the database owns for a fresh row.
func (r *SQLiteRepository) prepareNew(t core.Transaction) core.Transaction {
	if t.ID == "" {
		t.ID = r.newID()
	}
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now
	t.Version = 1
	t.SyncStatus = core.SyncPending
	return t
}

// CreateTransaction inserts a transaction with version 1 and a pending sync status.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = r.prepareNew(t)
	if _, err := r.insertTransaction(ctx, r.db, t, ""); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", mapError(err))
	}

	r.logger.InfoContext(ctx, "Transaction saved",
		log.NewFields().WithTransaction(t.ID, string(t.Type), t.Category, t.Amount.String()).ToSlice()...)
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, mapError(err))
	}
	return t, nil
}

// ListTransactions returns matching transactions, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.CardID != "" {
		where = append(where, "card_id = ?")
		args = append(args, f.CardID)
	}
	if f.Year > 0 {
		from, to := core.NewDate(f.Year, 1, 1), core.NewDate(f.Year+1, 1, 1)
		if f.Month >= 1 && f.Month <= 12 {
			from, to = core.NewDate(f.Year, f.Month, 1), core.NewDate(f.Year, f.Month+1, 1)
		}
		where = append(where, "date >= ? AND date < ?")
		args = append(args, from, to)
	}
	if f.Recurring {
		where = append(where, "is_recurring = 1 AND recurring_active = 1")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// ListRecurringTemplates returns every active recurring transaction.
func (r *SQLiteRepository) ListRecurringTemplates(ctx context.Context) ([]core.Transaction, error) {
	return r.ListTransactions(ctx, TransactionFilter{Recurring: true})
}

// UpdateTransaction overwrites the editable fields of t.ID, bumps its version
// and queues it for sync again.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET
			type = ?, amount = ?, description = ?, category = ?, payment_method = ?, card_id = ?,
			date = ?, notes = ?, is_recurring = ?, recurring_payment_date = ?, recurring_frequency = ?,
			recurring_active = ?, version = version + 1, sync_status = 'pending', updated_at = ?
		WHERE id = ?`,
		t.Type, t.Amount, t.Description, t.Category, t.PaymentMethod, nullString(t.CardID),
		t.Date, t.Notes, t.IsRecurring, t.RecurringPaymentDate, nullString(string(t.RecurringFrequency)),
		t.RecurringActive, formatTime(r.now()), t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", t.ID, mapError(err))
	}
	if err := checkAffected(res); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return r.GetTransaction(ctx, t.ID)
}

// DeleteTransaction removes a transaction. Occurrences materialized from it are kept.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, mapError(err))
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	r.logger.InfoContext(ctx, "Transaction deleted", log.FieldTransactionID, id)
	return nil
}

// UpdateLastMaterialized records the latest occurrence date produced from a template.
func (r *SQLiteRepository) UpdateLastMaterialized(ctx context.Context, id string, d core.Date) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET last_materialized = ? WHERE id = ?`, d, id)
	if err != nil {
		return fmt.Errorf("update last materialized %s: %w", id, err)
	}
	return checkAffected(res)
}

// MaterializeOccurrences inserts one regular transaction per date for the
// given template and advances its last-materialized date to through, all in
// one database transaction. Dates that already have an occurrence are
// skipped. It returns the rows actually inserted.
func (r *SQLiteRepository) MaterializeOccurrences(ctx context.Context, template core.Transaction, dates []core.Date, through core.Date) ([]core.Transaction, error) {
	var created []core.Transaction
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		for _, d := range dates {
			child := r.prepareNew(core.Transaction{
				Type:              template.Type,
				Amount:            template.Amount,
				Description:       template.Description,
				Category:          template.Category,
				PaymentMethod:     template.PaymentMethod,
				CardID:            template.CardID,
				Date:              d,
				Notes:             template.Notes,
				RecurringParentID: template.ID,
			})
			res, err := r.insertTransaction(ctx, tx, child, "ON CONFLICT DO NOTHING")
			if err != nil {
				return fmt.Errorf("insert occurrence %s of %s: %w", d, template.ID, mapError(err))
			}
			if n, _ := res.RowsAffected(); n > 0 {
				created = append(created, child)
			}
		}
		res, err := tx.ExecContext(ctx, `UPDATE transactions SET last_materialized = ? WHERE id = ?`, through, template.ID)
		if err != nil {
			return fmt.Errorf("advance template %s: %w", template.ID, err)
		}
		return checkAffected(res)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListPendingSync returns transactions that still need to be exported, oldest first.
func (r *SQLiteRepository) ListPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, version, created_at FROM transactions
		WHERE sync_status = 'pending' ORDER BY created_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var (
			p         PendingSync
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks a transaction as exported, unless it changed since version was read.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET sync_status = 'synced', synced_at = ?
		WHERE id = ? AND version = ?`, formatTime(r.now()), id, version)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.logger.DebugContext(ctx, "Transaction changed before sync completed", log.FieldTransactionID, id, log.FieldVersion, version)
		return nil
	}
	r.logger.InfoContext(ctx, "Transaction marked as synced", log.FieldTransactionID, id, log.FieldVersion, version)
	return nil
}

// MarkSyncError marks a transaction as having sync errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET sync_status = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	r.logger.WarnContext(ctx, "Transaction marked with sync error", log.FieldTransactionID, id)
	return nil
}
