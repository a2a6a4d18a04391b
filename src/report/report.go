// Package report renders accumulated error records as plain text suitable for
// notifications. Output depends only on the records, never on map iteration or
// wall-clock time.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"alchemiser/src/model"
	"alchemiser/src/redact"
)

const (
	title     = "Alchemiser error report"
	noErrors  = "No errors recorded."
	indent    = "  "
	nestedInd = "    "
)

// Build groups records by category in model.Categories order, keeping input
// order inside each group. Callers pass records in creation order: the handler
// buffer appends them and the repository sorts by created_at, id. Timestamps
// are not compared, so a clock step cannot reorder a session. Context and messages pass through r
// again, so records loaded from storage are scrubbed too.
func Build(records []model.ErrorRecord, r *redact.Redactor) string {
	if r == nil {
		r = redact.New()
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	if len(records) == 0 {
		b.WriteString(noErrors)
		b.WriteString("\n")
		return b.String()
	}

	groups := make(map[model.Category][]model.ErrorRecord)
	severities := make([]model.Severity, 0, len(records))
	for _, rec := range records {
		cat := model.ParseCategory(string(rec.Category))
		groups[cat] = append(groups[cat], rec)
		severities = append(severities, rec.Severity)
	}

	fmt.Fprintf(&b, "Total errors: %d\n", len(records))
	fmt.Fprintf(&b, "Highest severity: %s\n", model.MaxSeverity(severities...))
	for _, cat := range model.Categories() {
		if n := len(groups[cat]); n > 0 {
			fmt.Fprintf(&b, "%s: %d\n", cat, n)
		}
	}

	for _, cat := range model.Categories() {
		recs := groups[cat]
		if len(recs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n== %s (%d) ==\n", cat, len(recs))
		for _, rec := range recs {
			writeRecord(&b, rec, r)
		}
	}
	return b.String()
}

func writeRecord(b *strings.Builder, rec model.ErrorRecord, r *redact.Redactor) {
	fmt.Fprintf(b, "- %s [%s] %s", rec.CreatedAt.UTC().Format(time.RFC3339), rec.Severity, rec.ExceptionType)
	if rec.Code != "" {
		fmt.Fprintf(b, " code=%s", rec.Code)
	}
	if rec.OrderID != nil {
		fmt.Fprintf(b, " order=%s", *rec.OrderID)
	}
	if rec.Transient {
		b.WriteString(" transient")
	}
	b.WriteString("\n")

	fmt.Fprintf(b, "%smessage: %s\n", indent, oneLine(r.Text(rec.Message)))
	if op := operation(rec); op != "" {
		fmt.Fprintf(b, "%soperation: %s\n", indent, op)
	}
	if rec.CorrelationID != "" {
		fmt.Fprintf(b, "%scorrelation: %s\n", indent, rec.CorrelationID)
	}
	if len(rec.Context) > 0 {
		ctx := r.Map(rec.Context)
		fmt.Fprintf(b, "%scontext:\n", indent)
		for _, k := range sortedKeys(ctx) {
			fmt.Fprintf(b, "%s%s: %s\n", nestedInd, k, oneLine(render(ctx[k])))
		}
	}
	if rec.SuggestedAction != "" {
		fmt.Fprintf(b, "%saction: %s\n", indent, rec.SuggestedAction)
	}
}

func operation(rec model.ErrorRecord) string {
	switch {
	case rec.Module != "" && rec.Operation != "":
		return rec.Module + "." + rec.Operation
	case rec.Operation != "":
		return rec.Operation
	default:
		return rec.Module
	}
}

func render(v any) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return val
	case decimal.Decimal:
		return val.String()
	case *decimal.Decimal:
		if val == nil {
			return "<nil>"
		}
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case map[string]any:
		parts := make([]string, 0, len(val))
		for _, k := range sortedKeys(val) {
			parts = append(parts, k+"="+render(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(val))
		for i := range val {
			parts[i] = render(val[i])
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []map[string]any:
		parts := make([]string, len(val))
		for i := range val {
			parts[i] = render(val[i])
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// oneLine keeps multi-line values (stack traces) from breaking the layout.
func oneLine(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+nestedInd+indent)
}
