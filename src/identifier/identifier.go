// Package identifier normalises order identifiers coming from brokers,
// strategies and persisted state into one canonical string form.
package identifier

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const maxLength = 64

// ErrMalformed is wrapped by every normalisation failure.
var ErrMalformed = errors.New("malformed order identifier")

var exchangeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// Error describes why a raw value was rejected.
type Error struct {
	Raw    any
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrMalformed.Error(), fmt.Sprint(e.Raw), e.Reason)
}

func (e *Error) Unwrap() error {
	return ErrMalformed
}

// OrderIDNormalizer converts raw identifiers. The zero value is ready to use.
type OrderIDNormalizer struct{}

// NewOrderIDNormalizer returns the default normaliser.
func NewOrderIDNormalizer() OrderIDNormalizer {
	return OrderIDNormalizer{}
}

// Normalize returns the canonical identifier:
//   - UUIDs in any accepted form become the lower-case hyphenated form
//   - broker ids matching [A-Za-z0-9_-]{1,64} are kept, trimmed
//   - non-negative integers become base-10 strings
//
// Everything else fails with *Error.
func (OrderIDNormalizer) Normalize(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", &Error{Raw: raw, Reason: "empty"}
	case string:
		return normalizeString(raw, v)
	case *string:
		if v == nil {
			return "", &Error{Raw: raw, Reason: "empty"}
		}
		return normalizeString(raw, *v)
	case []byte:
		return normalizeString(raw, string(v))
	case uuid.UUID:
		if v == uuid.Nil {
			return "", &Error{Raw: raw, Reason: "nil uuid"}
		}
		return v.String(), nil
	case int:
		return normalizeInt(raw, int64(v))
	case int32:
		return normalizeInt(raw, int64(v))
	case int64:
		return normalizeInt(raw, v)
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case fmt.Stringer:
		return normalizeString(raw, v.String())
	default:
		return "", &Error{Raw: raw, Reason: fmt.Sprintf("unsupported type %T", raw)}
	}
}

func normalizeString(raw any, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &Error{Raw: raw, Reason: "empty"}
	}
	if len(s) > maxLength {
		return "", &Error{Raw: raw, Reason: "too long"}
	}
	if id, err := uuid.Parse(s); err == nil && looksLikeUUID(s) {
		if id == uuid.Nil {
			return "", &Error{Raw: raw, Reason: "nil uuid"}
		}
		return id.String(), nil
	}
	if !exchangeIDPattern.MatchString(s) {
		return "", &Error{Raw: raw, Reason: "illegal characters"}
	}
	return s, nil
}

// looksLikeUUID is false for bare 32-char hex strings, which brokers use as
// plain order ids and which are kept verbatim.
func looksLikeUUID(s string) bool {
	return strings.Contains(s, "-") || strings.HasPrefix(s, "{") || strings.HasPrefix(strings.ToLower(s), "urn:uuid:")
}

func normalizeInt(raw any, v int64) (string, error) {
	if v < 0 {
		return "", &Error{Raw: raw, Reason: "negative"}
	}
	return strconv.FormatInt(v, 10), nil
}
