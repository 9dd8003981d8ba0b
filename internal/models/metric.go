// Package models defines the domain types shared by the extraction engine,
// the index and the API surfaces.
package models

import (
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MetricKind is the configured value shape of a metric.
type MetricKind string

// Metric kinds.
const (
	MetricNumber MetricKind = "number"
	MetricString MetricKind = "string"
	MetricList   MetricKind = "list"
)

// MetricConfig describes one metric of the configured vocabulary.
type MetricConfig struct {
	Name                string     `yaml:"name" json:"name"`
	FrontmatterProperty string     `yaml:"frontmatter_property,omitempty" json:"frontmatter_property,omitempty"`
	Enabled             bool       `yaml:"enabled" json:"enabled"`
	Kind                MetricKind `yaml:"kind" json:"kind"`
	Category            string     `yaml:"category,omitempty" json:"category,omitempty"`
}

// Validate validates the metric configuration.
func (c *MetricConfig) Validate() error {
	if c.Kind == "" {
		c.Kind = MetricNumber
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Kind, validation.Required, validation.In(MetricNumber, MetricString, MetricList)),
	)
}

// HasFrontmatter reports whether the metric is mirrored in a front-matter property.
func (c MetricConfig) HasFrontmatter() bool {
	return strings.TrimSpace(c.FrontmatterProperty) != ""
}

// Provenance tags which source contributed a set of metric values.
type Provenance string

// Provenance values.
const (
	SourceUnknown     Provenance = "unknown"
	SourceFrontmatter Provenance = "frontmatter"
	SourceCallout     Provenance = "callout"
	SourceBoth        Provenance = "both"
)

// ExtractedMetrics is a metric record from a single source.
type ExtractedMetrics struct {
	Values      map[string]Value `json:"values"`
	Source      Provenance       `json:"source"`
	ExtractedAt time.Time        `json:"extracted_at"`
}

// IsReserved reports whether name is internal bookkeeping (leading underscore).
func IsReserved(name string) bool {
	return strings.HasPrefix(name, "_")
}

// Names returns the sorted non-reserved metric names.
func (m ExtractedMetrics) Names() []string {
	out := make([]string, 0, len(m.Values))
	for name := range m.Values {
		if IsReserved(name) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Severity classifies how far two conflicting values are apart.
type Severity string

// Severities.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Resolution names the source a conflicting value was taken from.
type Resolution string

// Resolutions.
const (
	ResolveFrontmatter Resolution = "frontmatter"
	ResolveCallout     Resolution = "callout"
)

// MetricConflict reports a metric whose two sources disagree.
type MetricConflict struct {
	Metric              string     `json:"metric"`
	FrontmatterValue    Value      `json:"frontmatter_value"`
	CalloutValue        Value      `json:"callout_value"`
	Severity            Severity   `json:"severity"`
	SuggestedResolution Resolution `json:"suggested_resolution"`
	AppliedResolution   Resolution `json:"applied_resolution"`
	Document            string     `json:"document,omitempty"`
	BlockID             string     `json:"block_id,omitempty"`
}
