package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/dreamvault/internal/models"
)

// FrontmatterOptions controls array/scalar coercion of front-matter values.
type FrontmatterOptions struct {
	// AutoDetectArrays splits comma-containing scalar strings into lists.
	AutoDetectArrays bool `yaml:"auto_detect_arrays"`
}

// ExtractFrontmatter converts the configured front-matter properties of a
// document into a metric record tagged with SourceFrontmatter.
func ExtractFrontmatter(props map[string]any, vocab *Vocabulary, opts FrontmatterOptions, now time.Time) models.ExtractedMetrics {
	em := models.ExtractedMetrics{
		Values:      make(map[string]models.Value),
		Source:      models.SourceFrontmatter,
		ExtractedAt: now,
	}
	for _, c := range vocab.FrontmatterConfigs() {
		raw, ok := lookupProperty(props, c.FrontmatterProperty)
		if !ok || raw == nil {
			continue
		}
		if v, ok := convert(raw, c.Kind, opts); ok {
			em.Values[c.Name] = v
		}
	}
	return em
}

// lookupProperty prefers an exact key and falls back to a case-insensitive match.
func lookupProperty(props map[string]any, key string) (any, bool) {
	key = strings.TrimSpace(key)
	if v, ok := props[key]; ok {
		return v, true
	}
	for k, v := range props {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func convert(raw any, kind models.MetricKind, opts FrontmatterOptions) (models.Value, bool) {
	if seq, ok := raw.([]any); ok {
		items := stringify(seq)
		if kind == models.MetricList {
			if len(items) == 0 {
				return models.Value{}, false
			}
			return models.List(items...), true
		}
		if len(seq) == 0 {
			return models.Value{}, false
		}
		raw = seq[0]
	}
	if seq, ok := raw.([]string); ok {
		return convert(toAny(seq), kind, opts)
	}

	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return models.Value{}, false
		}
		if kind == models.MetricList || (opts.AutoDetectArrays && strings.Contains(s, ",")) {
			if !strings.Contains(s, ",") {
				return models.List(s), true
			}
			if items := splitList(s); len(items) > 0 {
				return models.List(items...), true
			}
			return models.Value{}, false
		}
		if kind == models.MetricNumber {
			return Coerce(s), true
		}
		return models.Text(s), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		f, _ := toFloat(v)
		switch kind {
		case models.MetricList:
			return models.List(models.Number(f).String()), true
		case models.MetricString:
			return models.Text(models.Number(f).String()), true
		}
		return models.Number(f), true
	case time.Time:
		s := v.Format("2006-01-02")
		if kind == models.MetricList {
			return models.List(s), true
		}
		return models.Text(s), true
	default:
		s := fmt.Sprint(v)
		if kind == models.MetricList {
			return models.List(s), true
		}
		return models.Text(s), true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func stringify(seq []any) []string {
	out := make([]string, 0, len(seq))
	for _, it := range seq {
		if it == nil {
			continue
		}
		var s string
		if f, ok := toFloat(it); ok {
			s = models.Number(f).String()
		} else {
			s = strings.TrimSpace(fmt.Sprint(it))
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FrontmatterUpdates serializes em into the front-matter properties declared
// by the vocabulary, applying the inverse of ExtractFrontmatter's coercion:
// list metrics are written as sequences, single-valued metrics as scalars.
func FrontmatterUpdates(em models.ExtractedMetrics, vocab *Vocabulary, opts FrontmatterOptions) map[string]any {
	out := make(map[string]any)
	for _, c := range vocab.FrontmatterConfigs() {
		v, ok := em.Values[c.Name]
		if !ok || v.IsZero() {
			continue
		}
		key := strings.TrimSpace(c.FrontmatterProperty)
		if c.Kind == models.MetricList {
			out[key] = v.Items()
			continue
		}
		if v.Kind() == models.KindList {
			items := v.Items()
			if opts.AutoDetectArrays {
				out[key] = strings.Join(items, ", ")
			} else if len(items) > 0 {
				out[key] = items[0]
			}
			continue
		}
		if c.Kind == models.MetricString {
			out[key] = v.String()
			continue
		}
		out[key] = v.YAML()
	}
	return out
}

// ApplyToFrontmatter returns a copy of props with em written back into the
// configured properties. An existing key matching case-insensitively keeps
// its spelling.
func ApplyToFrontmatter(props map[string]any, em models.ExtractedMetrics, vocab *Vocabulary, opts FrontmatterOptions) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	for key, v := range FrontmatterUpdates(em, vocab, opts) {
		out[ExistingKey(out, key)] = v
	}
	return out
}

// ExistingKey returns the key of props equal to key ignoring case, or key.
func ExistingKey(props map[string]any, key string) string {
	if _, ok := props[key]; ok {
		return key
	}
	for k := range props {
		if strings.EqualFold(k, key) {
			return k
		}
	}
	return key
}
