package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	ports "finanzas/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const DefaultSheetName = "Transactions"

var (
	ErrMissingSpreadsheetID = errors.New("missing spreadsheet id")
	ErrMissingCredentials   = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	ErrNotInitialized       = errors.New("sheets service not initialized")
)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID string
	// SheetName is the base name without year; the transaction's year is prefixed.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// ConfigFromEnv reads the service-account settings that are not part of the
// application config.
func ConfigFromEnv(spreadsheetID, sheetName string) Config {
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return Config{
		SpreadsheetID:   spreadsheetID,
		SheetName:       sheetName,
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: file,
	}
}

// valuesAPI is the slice of the Sheets API the exporter needs.
type valuesAPI interface {
	Append(ctx context.Context, spreadsheetID, rng string, vr *gsheet.ValueRange) (*gsheet.AppendValuesResponse, error)
}

type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) Append(ctx context.Context, spreadsheetID, rng string, vr *gsheet.ValueRange) (*gsheet.AppendValuesResponse, error) {
	return s.svc.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.TransactionExporter = (*Client)(nil)

// New creates a Sheets exporter authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, ErrMissingSpreadsheetID
	}
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	credentials, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithUserAgent("finanzas-sync-worker"))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.Info("Google Sheets service created",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName)
	return newClient(serviceValues{svc: svc}, cfg, logger), nil
}

func newClient(values valuesAPI, cfg Config, logger *log.Logger) *Client {
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = DefaultSheetName
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		values:        values,
		spreadsheetID: cfg.SpreadsheetID,
		sheetBase:     base,
		logger:        logger,
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case cfg.CredentialsJSON != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, ErrMissingCredentials
	}
}

// Export appends tx as one row of the "<year> <sheet>" tab for the
// transaction's year.
func (c *Client) Export(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.values == nil {
		return "", ErrNotInitialized
	}

	sheet := SheetName(c.sheetBase, tx.Date.Year())
	rng := fmt.Sprintf("'%s'!A:J", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{Row(tx)}}

	start := time.Now()
	resp, err := c.values.Append(ctx, c.spreadsheetID, rng, vr)
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp != nil && resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.Debug("Transaction row appended",
		log.FieldTransactionID, tx.ID,
		log.FieldSheetsRef, ref,
		log.FieldDuration, time.Since(start).Milliseconds())
	return ref, nil
}

// Row renders the spreadsheet columns for tx:
// date, type, description, category, amount, payment method, card, notes, id, version.
func Row(tx core.Transaction) []any {
	return []any{
		tx.Date.String(),
		string(tx.Type),
		tx.Description,
		core.CategoryLabel(tx.Type, tx.Category),
		core.FormatAmount(tx.Amount),
		string(tx.PaymentMethod),
		tx.CardID,
		tx.Notes,
		tx.ID,
		tx.Version,
	}
}

// SheetName returns "<year> <base>" unless base already starts with a 4-digit year.
func SheetName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultSheetName
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
