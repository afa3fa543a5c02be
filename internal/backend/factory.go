package backend

import (
	"context"
	"fmt"

	"finanzas/internal/log"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
	"finanzas/internal/sheets/memory"
)

// Factory creates exporters based on configuration
type Factory interface {
	CreateExporter(ctx context.Context, config Config) (sheets.TransactionExporter, error)
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger

	// newSheets is swapped in tests to avoid real credentials.
	newSheets func(ctx context.Context, cfg gsheet.Config, logger *log.Logger) (sheets.TransactionExporter, error)
}

// NewFactory creates a new exporter factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentSheets),
		newSheets: func(ctx context.Context, cfg gsheet.Config, logger *log.Logger) (sheets.TransactionExporter, error) {
			return gsheet.New(ctx, cfg, logger)
		},
	}
}

// CreateExporter implements Factory.CreateExporter
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (sheets.TransactionExporter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsExporter:
		exp, err := f.newSheets(ctx, gsheet.ConfigFromEnv(config.GoogleSpreadsheetID, config.GoogleSheetName), f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets exporter", "sheet", config.GoogleSheetName)
		return exp, nil
	case MemoryExporter:
		f.logger.Warn("Using in-memory exporter, exported rows are not persisted")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.Type)
	}
}
