// Package classifier maps errors raised anywhere in a trading run onto the
// category, severity, code and transience used by the error handler.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kelseyhightower/envconfig"
	"gorm.io/gorm"

	"alchemiser/src/events"
	"alchemiser/src/failure"
	"alchemiser/src/identifier"
	"alchemiser/src/model"
)

const (
	CodeUnclassified        = "UNCLASSIFIED"
	CodeMalformedIdentifier = "MALFORMED_IDENTIFIER"
	CodeInvalidConfig       = "INVALID_CONFIGURATION"
	CodeRecordNotFound      = "RECORD_NOT_FOUND"
	CodeTimeout             = "TIMEOUT"
	CodeNetwork             = "NETWORK_ERROR"
	CodeCanceled            = "CANCELED"
	CodePanic               = "PANIC"
	CodePublishFailed       = "PUBLISH_FAILED"
)

// ErrNilError is returned when asked to classify a nil error.
var ErrNilError = errors.New("classifier: nil error")

// Rule classifies err when it recognises it.
type Rule func(err error) (model.Classification, bool)

// Default walks its rules in order and falls back to UNKNOWN.
type Default struct {
	rules []Rule
}

// New returns a classifier that tries extra rules before the built-in ones.
func New(extra ...Rule) *Default {
	rules := make([]Rule, 0, len(extra)+8)
	rules = append(rules, extra...)
	rules = append(rules,
		operationalRule,
		exchangeRule,
		panicRule,
		identifierRule,
		configRule,
		notificationRule,
		recordNotFoundRule,
		networkRule,
		canceledRule,
	)
	return &Default{rules: rules}
}

// Classify never panics on its own; rules supplied by callers might.
func (c *Default) Classify(err error) (model.Classification, error) {
	if err == nil {
		return model.Classification{}, ErrNilError
	}
	for _, rule := range c.rules {
		if cls, ok := rule(err); ok {
			if cls.Severity == "" {
				cls.Severity = DefaultSeverity(cls.Category)
			}
			return cls, nil
		}
	}
	return model.Classification{
		Category: model.CategoryUnknown,
		Severity: DefaultSeverity(model.CategoryUnknown),
		Code:     CodeUnclassified,
	}, nil
}

// DefaultSeverity is the severity used when a rule does not set one.
func DefaultSeverity(c model.Category) model.Severity {
	switch c {
	case model.CategoryConfiguration:
		return model.SeverityCritical
	case model.CategoryNotification:
		return model.SeverityWarning
	default:
		return model.SeverityError
	}
}

// SuggestedAction is a remediation hint shown next to each record in reports.
func SuggestedAction(c model.Category) string {
	switch c {
	case model.CategoryData:
		return "Check market data and broker API connectivity; stale or missing data blocks rebalancing."
	case model.CategoryTrading:
		return "Review open orders and positions at the broker before the next run."
	case model.CategoryConfiguration:
		return "Fix environment configuration and credentials, then redeploy."
	case model.CategoryNotification:
		return "Verify the notification channel; trading is unaffected."
	default:
		return "Inspect logs for the correlation id and classify the failure."
	}
}

func operationalRule(err error) (model.Classification, bool) {
	op, ok := failure.AsOperational(err)
	if !ok {
		return model.Classification{}, false
	}
	return model.Classification{
		Category:  model.ParseCategory(string(op.Category)),
		Code:      op.Code,
		Transient: op.Transient,
	}, true
}

func exchangeRule(err error) (model.Classification, bool) {
	var ex *ExchangeError
	if !errors.As(err, &ex) {
		return model.Classification{}, false
	}
	cls := model.Classification{
		Category: model.CategoryTrading,
		Code:     CodeName(ex.Code),
	}
	if ex.Code == 0 && ex.HTTPStatus != 0 {
		cls.Code = fmt.Sprintf("HTTP_%d", ex.HTTPStatus)
	}
	if configurationCodes[ex.Code] {
		cls.Category = model.CategoryConfiguration
	}
	if c, ok := phemexCodes[ex.Code]; ok {
		cls.Transient = c.Transient
	}
	if ex.HTTPStatus == http.StatusTooManyRequests || ex.HTTPStatus >= http.StatusInternalServerError {
		cls.Transient = true
	}
	return cls, true
}

func panicRule(err error) (model.Classification, bool) {
	var p *failure.PanicError
	if !errors.As(err, &p) {
		return model.Classification{}, false
	}
	return model.Classification{
		Category: model.CategoryUnknown,
		Severity: model.SeverityCritical,
		Code:     CodePanic,
	}, true
}

func identifierRule(err error) (model.Classification, bool) {
	if !errors.Is(err, identifier.ErrMalformed) {
		return model.Classification{}, false
	}
	return model.Classification{Category: model.CategoryData, Code: CodeMalformedIdentifier}, true
}

func configRule(err error) (model.Classification, bool) {
	var pe *envconfig.ParseError
	if !errors.As(err, &pe) {
		return model.Classification{}, false
	}
	return model.Classification{Category: model.CategoryConfiguration, Code: CodeInvalidConfig}, true
}

func notificationRule(err error) (model.Classification, bool) {
	if !errors.Is(err, events.ErrPublish) {
		return model.Classification{}, false
	}
	return model.Classification{Category: model.CategoryNotification, Code: CodePublishFailed, Transient: true}, true
}

func recordNotFoundRule(err error) (model.Classification, bool) {
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Classification{}, false
	}
	return model.Classification{Category: model.CategoryData, Code: CodeRecordNotFound}, true
}

func networkRule(err error) (model.Classification, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.Classification{Category: model.CategoryData, Code: CodeTimeout, Transient: true}, true
	}
	var ne net.Error
	if !errors.As(err, &ne) {
		return model.Classification{}, false
	}
	code := CodeNetwork
	if ne.Timeout() {
		code = CodeTimeout
	}
	return model.Classification{Category: model.CategoryData, Code: code, Transient: true}, true
}

func canceledRule(err error) (model.Classification, bool) {
	if !errors.Is(err, context.Canceled) {
		return model.Classification{}, false
	}
	return model.Classification{Category: model.CategoryUnknown, Severity: model.SeverityWarning, Code: CodeCanceled}, true
}

// SuggestedAction lets the handler pick up remediation hints from the classifier.
func (c *Default) SuggestedAction(category model.Category) string {
	return SuggestedAction(category)
}
