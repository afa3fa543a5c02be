package storage

import (
	"context"
	"fmt"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

const budgetColumns = `id, category, monthly_limit, created_at, updated_at`

func scanBudget(s rowScanner) (core.Budget, error) {
	var (
		b                    core.Budget
		createdAt, updatedAt string
	)
	if err := s.Scan(&b.ID, &b.Category, &b.MonthlyLimit, &createdAt, &updatedAt); err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

// CreateBudget inserts a budget. A second budget for the same category is an ErrConflict.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = r.newID()
	}
	now := r.now()
	b.CreatedAt, b.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Category, b.MonthlyLimit, formatTime(now), formatTime(now))
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", mapError(err))
	}
	r.logger.InfoContext(ctx, "Budget saved", log.FieldCategory, b.Category, log.FieldAmount, b.MonthlyLimit.String())
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %s: %w", id, mapError(err))
	}
	return b, nil
}

// ListBudgets returns every budget ordered by category.
func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE budgets SET category = ?, monthly_limit = ?, updated_at = ? WHERE id = ?`,
		b.Category, b.MonthlyLimit, formatTime(r.now()), b.ID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget %s: %w", b.ID, mapError(err))
	}
	if err := checkAffected(res); err != nil {
		return core.Budget{}, fmt.Errorf("update budget %s: %w", b.ID, err)
	}
	return r.GetBudget(ctx, b.ID)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	return nil
}
