package sheets

import (
	"context"

	"finanzas/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter appends a transaction to an external spreadsheet and
	// returns a reference to the written row.
	TransactionExporter interface {
		Export(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)
