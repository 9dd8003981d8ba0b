// Package metrics parses inline metric callouts and front-matter metric
// properties into typed records, and aggregates values across a run.
package metrics

import (
	"strings"

	"github.com/starford/dreamvault/internal/models"
)

// WordsMetric is the synthetic metric holding an entry's word count.
const WordsMetric = "Words"

// Vocabulary is the configured metric set, matched case-insensitively.
type Vocabulary struct {
	configs []models.MetricConfig
	byKey   map[string]int
}

// NewVocabulary indexes configs by lower-cased name. Later duplicates are ignored.
func NewVocabulary(configs []models.MetricConfig) *Vocabulary {
	v := &Vocabulary{
		configs: make([]models.MetricConfig, 0, len(configs)),
		byKey:   make(map[string]int, len(configs)),
	}
	for _, c := range configs {
		key := normalize(c.Name)
		if key == "" {
			continue
		}
		if _, dup := v.byKey[key]; dup {
			continue
		}
		v.byKey[key] = len(v.configs)
		v.configs = append(v.configs, c)
	}
	return v
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup returns the configuration whose name matches name case-insensitively.
func (v *Vocabulary) Lookup(name string) (models.MetricConfig, bool) {
	if v == nil {
		return models.MetricConfig{}, false
	}
	i, ok := v.byKey[normalize(name)]
	if !ok {
		return models.MetricConfig{}, false
	}
	return v.configs[i], true
}

// Canonical returns the configured spelling of name, or name itself when it
// is not part of the vocabulary.
func (v *Vocabulary) Canonical(name string) (string, bool) {
	if c, ok := v.Lookup(name); ok {
		return c.Name, true
	}
	return strings.TrimSpace(name), false
}

// Configs returns the vocabulary in configured order.
func (v *Vocabulary) Configs() []models.MetricConfig {
	if v == nil {
		return nil
	}
	out := make([]models.MetricConfig, len(v.configs))
	copy(out, v.configs)
	return out
}

// FrontmatterConfigs returns the enabled metrics that declare a front-matter property.
func (v *Vocabulary) FrontmatterConfigs() []models.MetricConfig {
	if v == nil {
		return nil
	}
	var out []models.MetricConfig
	for _, c := range v.configs {
		if c.Enabled && c.HasFrontmatter() {
			out = append(out, c)
		}
	}
	return out
}
