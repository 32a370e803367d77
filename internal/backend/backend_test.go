package backend

import (
	"context"
	"testing"

	"finwise/internal/config"
	"finwise/internal/sheets/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendType(t *testing.T) {
	assert.True(t, SheetsBackend.IsValid())
	assert.True(t, MemoryBackend.IsValid())
	assert.False(t, BackendType("sqlite").IsValid())
	assert.Equal(t, "sheets", SheetsBackend.String())
}

func TestConfigFromAppConfig(t *testing.T) {
	cfg := &config.Config{GoogleSheetName: "Expenses"}
	assert.Equal(t, MemoryBackend, ConfigFromAppConfig(cfg).Type)

	cfg.GoogleSpreadsheetID = "sheet-123"
	bc := ConfigFromAppConfig(cfg)
	assert.Equal(t, SheetsBackend, bc.Type)
	assert.Equal(t, "sheet-123", bc.GoogleSpreadsheetID)
	assert.Equal(t, "Expenses", bc.GoogleSheetName)
}

func TestCreateExporter(t *testing.T) {
	f := NewFactory(nil)

	exp, err := f.CreateExporter(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, exp)

	_, err = f.CreateExporter(context.Background(), Config{Type: "bogus"})
	assert.ErrorContains(t, err, "invalid backend type")

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err = f.CreateExporter(context.Background(), Config{Type: SheetsBackend, GoogleSpreadsheetID: "x"})
	assert.Error(t, err, "missing credentials must fail")
}
