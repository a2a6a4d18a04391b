package classifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"alchemiser/src/events"
	"alchemiser/src/failure"
	"alchemiser/src/identifier"
	"alchemiser/src/model"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyBuiltInRules(t *testing.T) {
	c := New()

	_, idErr := identifier.NewOrderIDNormalizer().Normalize("bad id!")
	var cfg struct {
		Port int `envconfig:"CLASSIFIER_TEST_PORT" default:"not-a-number"`
	}
	cfgErr := envconfig.Process("", &cfg)
	require.Error(t, cfgErr)

	cases := []struct {
		name string
		err  error
		want model.Classification
	}{
		{
			name: "operational error keeps declared fields",
			err:  fmt.Errorf("rebalance: %w", failure.WrapTransient(errors.New("stale"), model.CategoryData, "STALE_PRICES")),
			want: model.Classification{Category: model.CategoryData, Severity: model.SeverityError, Code: "STALE_PRICES", Transient: true},
		},
		{
			name: "exchange insufficient balance",
			err:  &ExchangeError{Exchange: "phemex", Code: 11051, Message: "no funds"},
			want: model.Classification{Category: model.CategoryTrading, Severity: model.SeverityError, Code: "TE_INSUFFICIENT_BALANCE"},
		},
		{
			name: "exchange maintenance is transient",
			err:  &ExchangeError{Exchange: "phemex", Code: 11005},
			want: model.Classification{Category: model.CategoryTrading, Severity: model.SeverityError, Code: "TE_MAINTENANCE_MODE", Transient: true},
		},
		{
			name: "exchange account setup is configuration",
			err:  &ExchangeError{Exchange: "phemex", Code: 11037},
			want: model.Classification{Category: model.CategoryConfiguration, Severity: model.SeverityCritical, Code: "TE_USER_NOT_EXIST"},
		},
		{
			name: "unknown exchange code with 503",
			err:  &ExchangeError{Exchange: "phemex", Code: 1, HTTPStatus: 503},
			want: model.Classification{Category: model.CategoryTrading, Severity: model.SeverityError, Code: "UNKNOWN_EXCHANGE_ERROR_1", Transient: true},
		},
		{
			name: "bare http failure from exchange",
			err:  &ExchangeError{Exchange: "phemex", HTTPStatus: 502},
			want: model.Classification{Category: model.CategoryTrading, Severity: model.SeverityError, Code: "HTTP_502", Transient: true},
		},
		{
			name: "malformed identifier",
			err:  idErr,
			want: model.Classification{Category: model.CategoryData, Severity: model.SeverityError, Code: CodeMalformedIdentifier},
		},
		{
			name: "envconfig parse error",
			err:  cfgErr,
			want: model.Classification{Category: model.CategoryConfiguration, Severity: model.SeverityCritical, Code: CodeInvalidConfig},
		},
		{
			name: "publish failure",
			err:  fmt.Errorf("%w: webhook: HTTP 500", events.ErrPublish),
			want: model.Classification{Category: model.CategoryNotification, Severity: model.SeverityWarning, Code: CodePublishFailed, Transient: true},
		},
		{
			name: "record not found",
			err:  fmt.Errorf("load session: %w", gorm.ErrRecordNotFound),
			want: model.Classification{Category: model.CategoryData, Severity: model.SeverityError, Code: CodeRecordNotFound},
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: model.Classification{Category: model.CategoryData, Severity: model.SeverityError, Code: CodeTimeout, Transient: true},
		},
		{
			name: "net timeout",
			err:  &net.OpError{Op: "dial", Err: timeoutErr{}},
			want: model.Classification{Category: model.CategoryData, Severity: model.SeverityError, Code: CodeTimeout, Transient: true},
		},
		{
			name: "canceled",
			err:  context.Canceled,
			want: model.Classification{Category: model.CategoryUnknown, Severity: model.SeverityWarning, Code: CodeCanceled},
		},
		{
			name: "panic",
			err:  failure.FromPanic("nil map"),
			want: model.Classification{Category: model.CategoryUnknown, Severity: model.SeverityCritical, Code: CodePanic},
		},
		{
			name: "fallback",
			err:  errors.New("something odd"),
			want: model.Classification{Category: model.CategoryUnknown, Severity: model.SeverityError, Code: CodeUnclassified},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Classify(tc.err)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	_, err := New().Classify(nil)
	require.ErrorIs(t, err, ErrNilError)
}

func TestExtraRulesRunFirst(t *testing.T) {
	sentinel := errors.New("broker rejected")
	c := New(func(err error) (model.Classification, bool) {
		if errors.Is(err, sentinel) {
			return model.Classification{Category: model.CategoryTrading, Code: "REJECTED"}, true
		}
		return model.Classification{}, false
	})

	got, err := c.Classify(sentinel)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryTrading, got.Category)
	assert.Equal(t, model.SeverityError, got.Severity)
	assert.Equal(t, "REJECTED", got.Code)
}

func TestCodeName(t *testing.T) {
	assert.Equal(t, "TE_QTY_TOO_SMALL", CodeName(11017))
	assert.Equal(t, "UNKNOWN_EXCHANGE_ERROR_42", CodeName(42))
}

func TestSuggestedActionCoversEveryCategory(t *testing.T) {
	for _, c := range model.Categories() {
		assert.NotEmpty(t, SuggestedAction(c), c)
	}
}
