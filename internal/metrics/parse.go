package metrics

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/dreamvault/internal/callout"
	"github.com/starford/dreamvault/internal/models"
)

// Placeholder marks a metric that was deliberately not recorded.
const Placeholder = "—"

// Parsed is the result of parsing one inline metrics string.
type Parsed struct {
	Values map[string]models.Value
	// Order lists metric names as they first appeared.
	Order []string
	// Unknown lists names that matched no configured metric.
	Unknown []string
}

// Parse reads comma-separated "Name: Value" pairs. Names are replaced by
// their configured spelling; values become numbers when they parse as such.
// Values of list metrics are split on semicolons.
// Pairs without a colon, with an empty name, or whose value is empty or the
// placeholder are skipped. A repeated name keeps its last value.
func Parse(text string, vocab *Vocabulary) Parsed {
	p := Parsed{Values: make(map[string]models.Value)}
	unknown := make(map[string]bool)

	for _, pair := range strings.Split(text, ",") {
		name, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" || value == Placeholder {
			continue
		}

		canonical, known := vocab.Canonical(name)
		if !known && !unknown[canonical] {
			unknown[canonical] = true
			p.Unknown = append(p.Unknown, canonical)
		}
		if _, seen := p.Values[canonical]; !seen {
			p.Order = append(p.Order, canonical)
		}
		if c, ok := vocab.Lookup(canonical); ok && c.Kind == models.MetricList {
			p.Values[canonical] = models.List(splitItems(value)...)
			continue
		}
		p.Values[canonical] = Coerce(value)
	}
	return p
}

// splitItems splits a callout list value on semicolons.
func splitItems(s string) []string {
	var out []string
	for _, it := range strings.Split(s, ";") {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// Coerce returns a number Value when s parses as a finite float, else text.
func Coerce(s string) models.Value {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return models.Number(f)
	}
	return models.Text(s)
}

// Format renders values as "Name: Value" pairs, in order first and then the
// remaining names sorted. List items are joined with "; " so they do not
// split into separate pairs.
func Format(values map[string]models.Value, order []string) string {
	seen := make(map[string]bool, len(values))
	names := make([]string, 0, len(values))
	for _, n := range order {
		if _, ok := values[n]; ok && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	var rest []string
	for n := range values {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	parts := make([]string, 0, len(names))
	for _, n := range names {
		v := values[n]
		s := v.String()
		if v.Kind() == models.KindList {
			s = strings.Join(v.Items(), "; ")
		}
		parts = append(parts, n+": "+s)
	}
	return strings.Join(parts, ", ")
}

// JoinLines turns the lines of a metrics callout into one inline string,
// stripping quote markers and joining lines with commas.
func JoinLines(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		s := strings.Trim(callout.StripQuotes(l), " \t,")
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}
