package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/snapshot"
	"finanzas/internal/storage"
)

// ErrValidation wraps every input error rejected before it reaches storage.
// The wrapped core sentinel stays reachable through errors.Is.
var ErrValidation = errors.New("validation failed")

// LedgerStore is the persistence the ledger needs.
type LedgerStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error)
	ListRecurringTemplates(ctx context.Context) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	MaterializeOccurrences(ctx context.Context, template core.Transaction, dates []core.Date, through core.Date) ([]core.Transaction, error)

	CreateCard(ctx context.Context, c core.Card) (core.Card, error)
	GetCard(ctx context.Context, id string) (core.Card, error)
	ListCards(ctx context.Context) ([]core.Card, error)
	UpdateCard(ctx context.Context, c core.Card) (core.Card, error)
	DeleteCard(ctx context.Context, id string) error

	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, id string) (core.Budget, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, id string) error
}

// SyncPublisher queues a transaction for export.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id string, version int64) error
}

// ChangePublisher tells other processes that an entity changed.
type ChangePublisher interface {
	PublishChange(ctx context.Context, entity, id, op string) error
}

// ChangeNotifier is told about local changes, usually a *snapshot.Hub.
type ChangeNotifier interface {
	Notify(change snapshot.Change)
}

// LedgerService orchestrates ledger writes across SQLite and AMQP.
// Storage is the source of truth: publishing and notifying are best effort
// and never fail a write that was already stored.
type LedgerService struct {
	store    LedgerStore
	sync     SyncPublisher
	changes  ChangePublisher
	notifier ChangeNotifier
	logger   *log.Logger
}

// NewLedgerService wires the ledger. Any of sync, changes and notifier may be nil.
func NewLedgerService(store LedgerStore, sync SyncPublisher, changes ChangePublisher, notifier ChangeNotifier, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Nop()
	}
	return &LedgerService{
		store:    store,
		sync:     sync,
		changes:  changes,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentLedger),
	}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// normalizeTransaction trims text and drops fields that do not apply to t.
func normalizeTransaction(t core.Transaction) core.Transaction {
	t.Description = strings.TrimSpace(t.Description)
	t.Notes = strings.TrimSpace(t.Notes)
	t.Category = strings.TrimSpace(t.Category)
	if t.PaymentMethod != core.PaymentCard {
		t.CardID = ""
	}
	if !t.IsRecurring {
		t.RecurringActive = false
	}
	return t
}

// CreateTransaction validates and stores t, then queues it for export.
// Recurring transactions start active.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = normalizeTransaction(t)
	t.ID = ""
	t.RecurringParentID = ""
	t.LastMaterialized = core.Date{}
	t.RecurringActive = t.IsRecurring
	if err := t.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}

	saved, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.queueSync(ctx, saved)
	s.announce(ctx, snapshot.EntityTransaction, saved.ID, snapshot.OpCreate)
	return saved, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, invalid(core.ErrInvalidType)
	}
	if f.Month != 0 && (f.Month < 1 || f.Month > 12) {
		return nil, invalid(core.ErrInvalidMonth)
	}
	return s.store.ListTransactions(ctx, f)
}

// UpdateTransaction replaces the editable fields of t.ID. The stored
// version is bumped, so the new state is exported again.
func (s *LedgerService) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = normalizeTransaction(t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}

	saved, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.queueSync(ctx, saved)
	s.announce(ctx, snapshot.EntityTransaction, saved.ID, snapshot.OpUpdate)
	return saved, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.announce(ctx, snapshot.EntityTransaction, id, snapshot.OpDelete)
	return nil
}

func (s *LedgerService) ListRecurringTemplates(ctx context.Context) ([]core.Transaction, error) {
	return s.store.ListRecurringTemplates(ctx)
}

// MaterializeOccurrences stores one transaction per date for template and
// queues every new row for export.
func (s *LedgerService) MaterializeOccurrences(ctx context.Context, template core.Transaction, dates []core.Date, through core.Date) ([]core.Transaction, error) {
	created, err := s.store.MaterializeOccurrences(ctx, template, dates, through)
	if err != nil {
		return nil, fmt.Errorf("materialize occurrences: %w", err)
	}
	for _, t := range created {
		s.queueSync(ctx, t)
		s.announce(ctx, snapshot.EntityTransaction, t.ID, snapshot.OpCreate)
	}
	if len(created) == 0 {
		// last_materialized still moved.
		s.announce(ctx, snapshot.EntityTransaction, template.ID, snapshot.OpUpdate)
	}
	return created, nil
}

func (s *LedgerService) CreateCard(ctx context.Context, c core.Card) (core.Card, error) {
	c = normalizeCard(c)
	c.ID = ""
	if err := c.Validate(); err != nil {
		return core.Card{}, invalid(err)
	}
	saved, err := s.store.CreateCard(ctx, c)
	if err != nil {
		return core.Card{}, fmt.Errorf("save card: %w", err)
	}
	s.announce(ctx, snapshot.EntityCard, saved.ID, snapshot.OpCreate)
	return saved, nil
}

func (s *LedgerService) GetCard(ctx context.Context, id string) (core.Card, error) {
	return s.store.GetCard(ctx, id)
}

func (s *LedgerService) ListCards(ctx context.Context) ([]core.Card, error) {
	return s.store.ListCards(ctx)
}

func (s *LedgerService) UpdateCard(ctx context.Context, c core.Card) (core.Card, error) {
	c = normalizeCard(c)
	if err := c.Validate(); err != nil {
		return core.Card{}, invalid(err)
	}
	saved, err := s.store.UpdateCard(ctx, c)
	if err != nil {
		return core.Card{}, fmt.Errorf("update card: %w", err)
	}
	s.announce(ctx, snapshot.EntityCard, saved.ID, snapshot.OpUpdate)
	return saved, nil
}

// DeleteCard removes a card. Its transactions stay, unlinked.
func (s *LedgerService) DeleteCard(ctx context.Context, id string) error {
	if err := s.store.DeleteCard(ctx, id); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	s.announce(ctx, snapshot.EntityCard, id, snapshot.OpDelete)
	return nil
}

func normalizeCard(c core.Card) core.Card {
	c.BankName = strings.TrimSpace(c.BankName)
	c.CardHolder = strings.TrimSpace(c.CardHolder)
	c.LastFour = strings.TrimSpace(c.LastFour)
	c.ExpiryDate = strings.TrimSpace(c.ExpiryDate)
	c.Notes = strings.TrimSpace(c.Notes)
	return c.Normalize()
}

func (s *LedgerService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.ID = ""
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return core.Budget{}, invalid(err)
	}
	saved, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	s.announce(ctx, snapshot.EntityBudget, saved.ID, snapshot.OpCreate)
	return saved, nil
}

func (s *LedgerService) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx)
}

func (s *LedgerService) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	return s.store.GetBudget(ctx, id)
}

func (s *LedgerService) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return core.Budget{}, invalid(err)
	}
	saved, err := s.store.UpdateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	s.announce(ctx, snapshot.EntityBudget, saved.ID, snapshot.OpUpdate)
	return saved, nil
}

func (s *LedgerService) DeleteBudget(ctx context.Context, id string) error {
	if err := s.store.DeleteBudget(ctx, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	s.announce(ctx, snapshot.EntityBudget, id, snapshot.OpDelete)
	return nil
}

func (s *LedgerService) queueSync(ctx context.Context, t core.Transaction) {
	if s.sync == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping sync message", log.FieldTransactionID, t.ID)
		return
	}
	if err := s.sync.PublishTransactionSync(ctx, t.ID, t.Version); err != nil {
		// The row stays pending and the worker's pending pass picks it up.
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			log.FieldTransactionID, t.ID,
			log.FieldVersion, t.Version,
			log.FieldError, err)
	}
}

func (s *LedgerService) announce(ctx context.Context, entity, id, op string) {
	if s.notifier != nil {
		s.notifier.Notify(snapshot.Change{Entity: entity, ID: id, Op: op})
	}
	if s.changes == nil {
		return
	}
	if err := s.changes.PublishChange(ctx, entity, id, op); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish change message",
			log.FieldEntity, entity,
			log.FieldID, id,
			log.FieldOperation, op,
			log.FieldError, err)
	}
}
