// Package backend builds the spreadsheet exporter selected by configuration.
package backend

import (
	"fmt"

	"finanzas/internal/config"
)

// ExporterType names an exporter implementation.
type ExporterType string

const (
	SheetsExporter ExporterType = "sheets"
	MemoryExporter ExporterType = "memory"
)

// String implements fmt.Stringer
func (t ExporterType) String() string {
	return string(t)
}

// IsValid returns true if the exporter type is known
func (t ExporterType) IsValid() bool {
	switch t {
	case SheetsExporter, MemoryExporter:
		return true
	default:
		return false
	}
}

// Config holds what the factory needs to build an exporter.
type Config struct {
	Type ExporterType

	// Google Sheets specific. Credentials are read from the environment.
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// FromAppConfig converts the application config to exporter config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := Config{
		Type:                ExporterType(appConfig.Exporter),
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
	}
	return cfg, cfg.Validate()
}

// Validate validates the exporter configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid exporter type: %q", c.Type)
	}
	if c.Type == SheetsExporter {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for the sheets exporter")
		}
		if c.GoogleSheetName == "" {
			return fmt.Errorf("Google Sheet name is required for the sheets exporter")
		}
	}
	return nil
}

// ExporterTypes returns all valid exporter types
func ExporterTypes() []ExporterType {
	return []ExporterType{SheetsExporter, MemoryExporter}
}
