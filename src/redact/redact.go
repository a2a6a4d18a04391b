// Package redact masks secret-bearing values before error context leaves the
// process through logs, reports, notifications or storage.
package redact

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const Mask = "***REDACTED***"

// maxDepth bounds the walk over nested and self-referencing values.
const maxDepth = 16

var (
	// (key)(separator); the value is scanned by valueEnd.
	pairPattern     = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_.\-]*)("?\s*[:=]\s*)`)
	bearerPattern   = regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9._~+/\-]{8,}=*`)
	userinfoPattern = regexp.MustCompile(`(://[^/\s:@]+:)[^/\s@]+@`)
)

// DefaultKeys is the denylist, in normalised form. A key is sensitive when its
// normalised form contains any of these.
var DefaultKeys = []string{
	"token",
	"secret",
	"password",
	"passwd",
	"apikey",
	"apisecret",
	"credential",
	"authorization",
	"privatekey",
	"signature",
	"accountnumber",
	"accountid",
	"accountno",
	"iban",
	"cookie",
	"dsn",
}

// Redactor applies a fixed denylist. It is safe for concurrent use.
type Redactor struct {
	keys     []string
	pair     *regexp.Regexp
	bearer   *regexp.Regexp
	userinfo *regexp.Regexp
}

// New builds a redactor from DefaultKeys plus extra, which are normalised the
// same way as context keys.
func New(extra ...string) *Redactor {
	seen := map[string]bool{}
	keys := make([]string, 0, len(DefaultKeys)+len(extra))
	for _, k := range append(append([]string{}, DefaultKeys...), extra...) {
		n := normalize(k)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		keys = append(keys, n)
	}
	sort.Strings(keys)
	return &Redactor{keys: keys, pair: pairPattern, bearer: bearerPattern, userinfo: userinfoPattern}
}

// Keys returns the normalised denylist.
func (r *Redactor) Keys() []string {
	return append([]string(nil), r.keys...)
}

// IsSensitive reports whether a context key is on the denylist.
func (r *Redactor) IsSensitive(key string) bool {
	n := normalize(key)
	if n == "" {
		return false
	}
	for _, k := range r.keys {
		if strings.Contains(n, k) {
			return true
		}
	}
	return false
}

// Map returns a redacted deep copy of in. Nested maps, slices and structs are
// walked; the input is never modified.
func (r *Redactor) Map(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if r.IsSensitive(k) {
			out[k] = Mask
			continue
		}
		out[k] = r.walk(reflect.ValueOf(v), 1)
	}
	return out
}

// Value returns a redacted copy of v. Maps and structs come back as
// map[string]any keyed by map key or json field name, slices as []any.
func (r *Redactor) Value(v any) any {
	return r.walk(reflect.ValueOf(v), 0)
}

func (r *Redactor) walk(v reflect.Value, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if depth > maxDepth {
		return Mask
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
	}
	if v.CanInterface() {
		switch val := v.Interface().(type) {
		case string:
			return r.Text(val)
		case []byte:
			return r.Text(string(val))
		case time.Time, decimal.Decimal:
			return val
		case error:
			return r.Text(val.Error())
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return r.walk(v.Elem(), depth+1)
	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k := fmt.Sprint(iter.Key().Interface())
			if r.IsSensitive(k) {
				out[k] = Mask
				continue
			}
			out[k] = r.walk(iter.Value(), depth+1)
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = r.walk(v.Index(i), depth+1)
		}
		return out
	case reflect.Struct:
		t := v.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name, ok := fieldName(f)
			if !ok {
				continue
			}
			if r.IsSensitive(name) || r.IsSensitive(f.Name) {
				out[name] = Mask
				continue
			}
			out[name] = r.walk(v.Field(i), depth+1)
		}
		return out
	case reflect.String:
		return r.Text(v.String())
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return v.Type().String()
	}
	if !v.CanInterface() {
		return nil
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return r.Text(s.String())
	}
	return v.Interface()
}

// fieldName is the json name of an exported field, or false when the field
// is unexported or tagged "-".
func fieldName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, true
	}
	return f.Name, true
}

// Text masks values of key=value, key: value and "key":"value" pairs whose
// key is sensitive, plus bearer tokens and URL passwords. Free text without
// such pairs is returned unchanged.
func (r *Redactor) Text(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range r.pair.FindAllStringSubmatchIndex(s, -1) {
		if m[0] < last || !r.IsSensitive(s[m[2]:m[3]]) {
			continue
		}
		valueStart := m[5]
		end, quoted := valueEnd(s, valueStart)
		if end == valueStart {
			continue
		}
		b.WriteString(s[last:valueStart])
		if quoted {
			b.WriteString(`"` + Mask + `"`)
		} else {
			b.WriteString(Mask)
		}
		last = end
	}
	b.WriteString(s[last:])

	out := r.bearer.ReplaceAllString(b.String(), "${1} "+Mask)
	return r.userinfo.ReplaceAllString(out, "${1}"+Mask+"@")
}

// valueEnd returns the end of the value starting at i. An auth scheme such as
// "Bearer" takes the following token with it.
func valueEnd(s string, i int) (int, bool) {
	if i >= len(s) {
		return i, false
	}
	if s[i] == '"' {
		if j := strings.IndexByte(s[i+1:], '"'); j >= 0 {
			return i + j + 2, true
		}
		return len(s), true
	}
	end := i + tokenLen(s[i:])
	switch strings.ToLower(s[i:end]) {
	case "bearer", "basic", "token":
		next := end
		for next < len(s) && (s[next] == ' ' || s[next] == '\t') {
			next++
		}
		if n := tokenLen(s[next:]); n > 0 {
			end = next + n
		}
	}
	return end, false
}

func tokenLen(s string) int {
	if n := strings.IndexAny(s, " \t\r\n,;&\""); n >= 0 {
		return n
	}
	return len(s)
}

func normalize(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range strings.ToLower(key) {
		switch r {
		case '_', '-', '.', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
