package worker

import (
	"context"
	"errors"
	"fmt"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
	"finanzas/internal/storage"
)

// TransactionStore is the part of the repository the worker needs.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListPendingSync(ctx context.Context, limit int) ([]storage.PendingSync, error)
	MarkSynced(ctx context.Context, id string, version int64) error
	MarkSyncError(ctx context.Context, id string) error
}

// SyncResult summarizes a pending-sync pass.
type SyncResult struct {
	Total   int
	Synced  int
	Skipped int
	Errors  int
}

// SyncWorker exports transactions from SQLite to the spreadsheet.
type SyncWorker struct {
	store     TransactionStore
	exporter  sheets.TransactionExporter
	logger    *log.Logger
	batchSize int
}

func NewSyncWorker(store TransactionStore, exporter sheets.TransactionExporter, logger *log.Logger, batchSize int) *SyncWorker {
	if logger == nil {
		logger = log.Nop()
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SyncWorker{
		store:     store,
		exporter:  exporter,
		logger:    logger.WithComponent(log.ComponentWorker),
		batchSize: batchSize,
	}
}

var errSkipped = errors.New("skipped")

// HandleSyncMessage processes a single transaction sync message from AMQP.
// A returned error requeues the message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		log.FieldTransactionID, msg.ID,
		log.FieldVersion, msg.Version)

	err := w.sync(ctx, msg.ID, msg.Version)
	if errors.Is(err, errSkipped) {
		return nil
	}
	return err
}

// ProcessPending exports every transaction still marked pending. It is the
// backup path for lost or never-published messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) (SyncResult, error) {
	pending, err := w.store.ListPendingSync(ctx, w.batchSize)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list pending transactions: %w", err)
	}

	res := SyncResult{Total: len(pending)}
	for _, p := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		switch err := w.sync(ctx, p.ID, p.Version); {
		case err == nil:
			res.Synced++
		case errors.Is(err, errSkipped):
			res.Skipped++
		default:
			res.Errors++
			w.logger.ErrorContext(ctx, "Failed to sync pending transaction",
				log.FieldTransactionID, p.ID,
				log.FieldError, err)
		}
	}

	if res.Total > 0 {
		w.logger.InfoContext(ctx, "Pending sync pass completed",
			"total", res.Total,
			"synced", res.Synced,
			"skipped", res.Skipped,
			"errors", res.Errors)
	}
	return res, nil
}

func (w *SyncWorker) sync(ctx context.Context, id string, version int64) error {
	tx, err := w.store.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.InfoContext(ctx, "Transaction deleted before sync, skipping", log.FieldTransactionID, id)
		return errSkipped
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	// A newer version has its own message queued.
	if tx.Version > version {
		w.logger.DebugContext(ctx, "Skipping outdated sync message",
			log.FieldTransactionID, id,
			log.FieldVersion, version,
			"current_version", tx.Version)
		return errSkipped
	}
	if tx.SyncStatus == core.SyncSynced {
		return errSkipped
	}

	ref, err := w.exporter.Export(ctx, tx)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldTransactionID, id, log.FieldError, markErr)
		}
		return fmt.Errorf("export transaction: %w", err)
	}

	if err := w.store.MarkSynced(ctx, id, tx.Version); err != nil {
		// The row is exported; the next pending pass will see it as pending again.
		w.logger.ErrorContext(ctx, "Failed to mark as synced", log.FieldTransactionID, id, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Transaction exported",
		log.FieldTransactionID, id,
		log.FieldVersion, tx.Version,
		log.FieldSheetsRef, ref,
		log.FieldAmount, core.FormatAmount(tx.Amount))
	return nil
}
