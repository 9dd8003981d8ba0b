package metrics

import (
	"math"
	"sort"

	"github.com/starford/dreamvault/internal/models"
)

// Aggregate collects every value seen for each metric across a run.
// It is not safe for concurrent use; the orchestrator appends to it only
// after each document task has resolved.
type Aggregate map[string][]models.Value

// Add appends one entry's values. Reserved names are skipped.
func (a Aggregate) Add(values map[string]models.Value) {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if models.IsReserved(n) {
			continue
		}
		a[n] = append(a[n], values[n])
	}
}

// Summary holds summary statistics for one metric.
type Summary struct {
	Metric  string  `json:"metric"`
	Count   int     `json:"count"`
	Numeric int     `json:"numeric"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
}

// Summarize computes per-metric statistics sorted by metric name. Min, Max
// and Mean cover numeric values only.
func Summarize(a Aggregate) []Summary {
	out := make([]Summary, 0, len(a))
	for name, vs := range a {
		s := Summary{Metric: name, Count: len(vs), Min: math.Inf(1), Max: math.Inf(-1)}
		var sum float64
		for _, v := range vs {
			f, ok := v.Float()
			if !ok {
				continue
			}
			s.Numeric++
			sum += f
			s.Min = math.Min(s.Min, f)
			s.Max = math.Max(s.Max, f)
		}
		if s.Numeric == 0 {
			s.Min, s.Max = 0, 0
		} else {
			s.Mean = sum / float64(s.Numeric)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}
