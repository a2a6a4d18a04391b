package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alchemiser/src/model"
	"alchemiser/src/redact"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func record(cat model.Category, sev model.Severity, offset time.Duration, msg string) model.ErrorRecord {
	return model.ErrorRecord{
		ID:            "id-" + msg,
		ExceptionType: "*errors.errorString",
		Message:       msg,
		Category:      cat,
		Severity:      sev,
		Code:          "UNCLASSIFIED",
		CreatedAt:     base.Add(offset),
	}
}

func TestBuildEmpty(t *testing.T) {
	out := Build(nil, nil)
	assert.Equal(t, "Alchemiser error report\nNo errors recorded.\n", out)
}

func TestBuildGroupsInStableCategoryOrder(t *testing.T) {
	recs := []model.ErrorRecord{
		record(model.CategoryNotification, model.SeverityWarning, 0, "webhook down"),
		record(model.CategoryTrading, model.SeverityError, time.Second, "order rejected"),
		record(model.CategoryData, model.SeverityCritical, 2*time.Second, "stale prices"),
	}

	out := Build(recs, redact.New())

	data := strings.Index(out, "== DATA (1) ==")
	trading := strings.Index(out, "== TRADING (1) ==")
	notification := strings.Index(out, "== NOTIFICATION (1) ==")
	require.True(t, data > 0 && trading > data && notification > trading, out)
	assert.NotContains(t, out, "== CONFIGURATION")
	assert.Contains(t, out, "Total errors: 3\n")
	assert.Contains(t, out, "Highest severity: CRITICAL\n")
	assert.Contains(t, out, "- 2025-06-01T12:00:01Z [ERROR] *errors.errorString code=UNCLASSIFIED\n")
}

func TestBuildKeepsInputOrderWithinCategory(t *testing.T) {
	// the clock stepped back between "first" and "second"
	recs := []model.ErrorRecord{
		record(model.CategoryTrading, model.SeverityError, 2*time.Second, "first"),
		record(model.CategoryData, model.SeverityError, 0, "stale"),
		record(model.CategoryTrading, model.SeverityError, -time.Hour, "second"),
		record(model.CategoryTrading, model.SeverityError, 3*time.Second, "third"),
	}
	out := Build(recs, nil)
	assert.Less(t, strings.Index(out, "message: first"), strings.Index(out, "message: second"))
	assert.Less(t, strings.Index(out, "message: second"), strings.Index(out, "message: third"))
}

func TestBuildIsDeterministic(t *testing.T) {
	rec := record(model.CategoryData, model.SeverityError, 0, "bad bar")
	rec.Context = map[string]any{
		"symbol": "ETHUSDT", "qty": decimal.RequireFromString("1.250"),
		"bar": map[string]any{"z": 1, "a": 2}, "at": base, "b": 2, "c": 3, "d": 4,
	}
	recs := []model.ErrorRecord{rec}

	first := Build(recs, nil)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Build(recs, nil))
	}
	assert.Contains(t, first, "    qty: 1.25\n")
	assert.Contains(t, first, "    bar: {a=2, z=1}\n")
	assert.Contains(t, first, "    at: 2025-06-01T12:00:00Z\n")
	assert.Less(t, strings.Index(first, "    at:"), strings.Index(first, "    symbol:"))
}

func TestBuildRedactsContextAndMessage(t *testing.T) {
	orderID := "ord-9"
	rec := record(model.CategoryTrading, model.SeverityError, 0, "auth failed api_key=abc123 for user")
	rec.OrderID = &orderID
	rec.Context = map[string]any{
		"api_token":      "tok-xyz",
		"account_number": "DE001234",
		"nested":         map[string]any{"password": "hunter2", "venue": "phemex"},
		"symbol":         "BTCUSDT",
	}

	out := Build([]model.ErrorRecord{rec}, redact.New())

	for _, secret := range []string{"abc123", "tok-xyz", "DE001234", "hunter2"} {
		assert.NotContains(t, out, secret)
	}
	assert.Contains(t, out, redact.Mask)
	assert.Contains(t, out, "phemex")
	assert.Contains(t, out, "order=ord-9")
	assert.Contains(t, out, "message: auth failed api_key="+redact.Mask+" for user")
}

func TestBuildShowsOperationAndAction(t *testing.T) {
	rec := record(model.CategoryConfiguration, model.SeverityCritical, 0, "missing key")
	rec.Module = "preflight"
	rec.Operation = "load_config"
	rec.CorrelationID = "corr-7"
	rec.SuggestedAction = "Fix configuration"
	rec.Transient = true

	out := Build([]model.ErrorRecord{rec}, nil)
	assert.Contains(t, out, "operation: preflight.load_config\n")
	assert.Contains(t, out, "correlation: corr-7\n")
	assert.Contains(t, out, "action: Fix configuration\n")
	assert.Contains(t, out, " transient\n")
}

type venueLogin struct {
	APIKey string `json:"api_key"`
	Venue  string `json:"venue"`
}

func TestBuildRedactsTypedContext(t *testing.T) {
	rec := record(model.CategoryTrading, model.SeverityError, 0, "login failed")
	rec.Context = map[string]any{
		"ids":   map[string]int{"account_id": 98765432},
		"login": venueLogin{APIKey: "AKIA-SECRET2", Venue: "alpaca"},
		"args":  []string{"token=SECRET4"},
	}

	out := Build([]model.ErrorRecord{rec}, redact.New())

	for _, secret := range []string{"98765432", "AKIA-SECRET2", "SECRET4"} {
		assert.NotContains(t, out, secret)
	}
	assert.Contains(t, out, "alpaca")
}
