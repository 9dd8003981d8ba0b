// Package reconcile merges front-matter and callout metric records for the
// same entry, classifying and resolving the values they disagree on.
package reconcile

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/starford/dreamvault/internal/metrics"
	"github.com/starford/dreamvault/internal/models"
)

// Strategy is the configured conflict resolution policy.
type Strategy string

// Strategies.
const (
	// StrategyFrontmatter follows each metric's suggested resolution.
	StrategyFrontmatter Strategy = "frontmatter"
	// StrategyCallout always keeps the callout value.
	StrategyCallout Strategy = "callout"
	// StrategyNewest and StrategyManual are accepted but not implemented;
	// they fall back to the front-matter value and report ErrStrategyNotImplemented.
	StrategyNewest Strategy = "newest"
	StrategyManual Strategy = "manual"
)

// ErrStrategyNotImplemented marks a conflict resolved by fallback because
// the configured strategy has no implementation.
var ErrStrategyNotImplemented = errors.New("reconcile: strategy not implemented")

// ParseStrategy validates s. An empty string selects StrategyFrontmatter.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategyFrontmatter, nil
	case StrategyFrontmatter, StrategyCallout, StrategyNewest, StrategyManual:
		return st, nil
	default:
		return "", fmt.Errorf("reconcile: unknown strategy %q", s)
	}
}

// Severity thresholds on the relative difference of two numbers.
const (
	highThreshold   = 0.5
	mediumThreshold = 0.2
)

// Engine reconciles metric records using a fixed vocabulary and strategy.
type Engine struct {
	vocab    *metrics.Vocabulary
	strategy Strategy
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to timestamp merged records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine. An empty strategy means StrategyFrontmatter.
func NewEngine(vocab *metrics.Vocabulary, strategy Strategy, opts ...Option) *Engine {
	if strategy == "" {
		strategy = StrategyFrontmatter
	}
	e := &Engine{vocab: vocab, strategy: strategy, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strategy returns the configured strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Result is the merged record and the conflicts found while merging.
type Result struct {
	Metrics   models.ExtractedMetrics
	Conflicts []models.MetricConflict
	// Fallback is non-nil when at least one conflict was resolved by the
	// front-matter fallback of an unimplemented strategy.
	Fallback error
}

// Reconcile merges fm and co. Names present on one side only are taken as
// is; equal values produce no conflict; unequal values produce a conflict
// resolved per the engine strategy.
func (e *Engine) Reconcile(fm, co models.ExtractedMetrics) Result {
	merged := models.ExtractedMetrics{
		Values:      make(map[string]models.Value),
		ExtractedAt: e.now(),
	}
	res := Result{}

	fmNames, coNames := fm.Names(), co.Names()
	names := union(fmNames, coNames)

	for _, name := range names {
		fv, inFM := fm.Values[name]
		cv, inCO := co.Values[name]
		switch {
		case inFM && !inCO:
			merged.Values[name] = fv
			continue
		case inCO && !inFM:
			merged.Values[name] = cv
			continue
		}
		if fv.Equal(cv) {
			merged.Values[name] = fv
			continue
		}

		suggested := e.suggest(name)
		applied, fallback := e.apply(suggested)
		if fallback {
			res.Fallback = fmt.Errorf("%w: %q, used front matter", ErrStrategyNotImplemented, e.strategy)
		}
		res.Conflicts = append(res.Conflicts, models.MetricConflict{
			Metric:              name,
			FrontmatterValue:    fv,
			CalloutValue:        cv,
			Severity:            Classify(fv, cv),
			SuggestedResolution: suggested,
			AppliedResolution:   applied,
		})
		if applied == models.ResolveFrontmatter {
			merged.Values[name] = fv
		} else {
			merged.Values[name] = cv
		}
	}

	switch {
	case len(res.Conflicts) > 0 || (len(fmNames) > 0 && len(coNames) > 0):
		merged.Source = models.SourceBoth
	case len(fmNames) > 0:
		merged.Source = models.SourceFrontmatter
	case len(coNames) > 0:
		merged.Source = models.SourceCallout
	default:
		merged.Source = models.SourceUnknown
	}
	res.Metrics = merged
	return res
}

// suggest prefers front matter for metrics that declare a front-matter property.
func (e *Engine) suggest(name string) models.Resolution {
	if c, ok := e.vocab.Lookup(name); ok && c.HasFrontmatter() {
		return models.ResolveFrontmatter
	}
	return models.ResolveCallout
}

func (e *Engine) apply(suggested models.Resolution) (applied models.Resolution, fallback bool) {
	switch e.strategy {
	case StrategyCallout:
		return models.ResolveCallout, false
	case StrategyNewest, StrategyManual:
		return models.ResolveFrontmatter, true
	default:
		return suggested, false
	}
}

// Classify grades a disagreement. Two numbers are High above a 50% relative
// difference and Medium above 20%; any list makes it Medium; everything else
// is Low. The relative difference is taken against the smaller magnitude.
func Classify(a, b models.Value) models.Severity {
	if a.Kind() == models.KindList || b.Kind() == models.KindList {
		return models.SeverityMedium
	}
	x, okA := a.Float()
	y, okB := b.Float()
	if !okA || !okB {
		return models.SeverityLow
	}
	diff := math.Abs(x - y)
	base := math.Min(math.Abs(x), math.Abs(y))
	var rel float64
	switch {
	case diff == 0:
		rel = 0
	case base == 0:
		rel = math.Inf(1)
	default:
		rel = diff / base
	}
	switch {
	case rel > highThreshold:
		return models.SeverityHigh
	case rel > mediumThreshold:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, n := range list {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out
}
