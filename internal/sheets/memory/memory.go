package memory

import (
	"context"
	"fmt"
	"sync"

	"finanzas/internal/core"
	ports "finanzas/internal/sheets"
)

var _ ports.TransactionExporter = (*Store)(nil)

// Store is an in-memory exporter used for local runs and tests.
type Store struct {
	mu   sync.Mutex
	rows []core.Transaction
	fail error
}

func New() *Store {
	return &Store{}
}

// Export stores the transaction and returns a synthetic row reference.
func (s *Store) Export(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.rows = append(s.rows, tx)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// FailWith makes subsequent exports return err until called with nil.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Rows returns a copy of everything exported so far, in order.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...)
}
