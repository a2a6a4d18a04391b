package errhandling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alchemiser/src/model"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), Config{
		MaxRecords:         cfg.MaxRecords,
		BlockingCategories: cfg.BlockingCategories,
		Source:             cfg.Source,
		StoreBuffer:        cfg.StoreBuffer,
	})
	assert.Equal(t, map[model.Category]bool{model.CategoryData: true, model.CategoryTrading: true}, cfg.blockingSet())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ERRORS_MAX_RECORDS", "5")
	t.Setenv("ERRORS_BLOCKING_CATEGORIES", "trading,configuration")
	t.Setenv("REDACT_EXTRA_KEYS", "session,otp")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRecords)
	assert.Equal(t, []string{"session", "otp"}, cfg.RedactExtraKeys)
	assert.True(t, cfg.blockingSet()[model.CategoryConfiguration])
	assert.False(t, cfg.blockingSet()[model.CategoryData])
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRecords = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.BlockingCategories = []string{"DATA", "MARKET"}
	require.ErrorContains(t, cfg.Validate(), "MARKET")

	cfg.BlockingCategories = []string{"unknown"}
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsNonNumericMax(t *testing.T) {
	t.Setenv("ERRORS_MAX_RECORDS", "lots")
	_, err := LoadConfig()
	require.Error(t, err)
}
