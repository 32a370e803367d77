// Package backend selects the destination the export worker writes to.
package backend

import (
	"context"
	"fmt"

	"finwise/internal/config"
	"finwise/internal/log"
	"finwise/internal/sheets"
	gsheet "finwise/internal/sheets/google"
	"finwise/internal/sheets/memory"
)

// BackendType names an export destination.
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Config holds what the factory needs to build a destination.
type Config struct {
	Type BackendType

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// ConfigFromAppConfig picks Google Sheets when a spreadsheet is configured
// and the in-memory store otherwise.
func ConfigFromAppConfig(c *config.Config) Config {
	bc := Config{
		Type:                     MemoryBackend,
		GoogleSpreadsheetID:      c.GoogleSpreadsheetID,
		GoogleSheetName:          c.GoogleSheetName,
		GoogleServiceAccountJSON: c.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: c.GoogleServiceAccountFile,
	}
	if c.SheetsEnabled() {
		bc.Type = SheetsBackend
	}
	return bc
}

// Factory creates export destinations.
type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Wrap(nil)
	}
	return &Factory{logger: logger.WithComponent(log.ComponentSheets)}
}

// CreateExporter builds the destination named by config.Type.
func (f *Factory) CreateExporter(ctx context.Context, config Config) (sheets.Exporter, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SheetsBackend:
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetName:       config.GoogleSheetName,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
			IDCacheTTL:      sheets.DefaultIDCacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Google Sheets export",
			"spreadsheet_id", config.GoogleSpreadsheetID,
			"sheet", config.GoogleSheetName)
		return client, nil
	default:
		f.logger.WarnContext(ctx, "No spreadsheet configured, exporting to memory only")
		return memory.New(), nil
	}
}
