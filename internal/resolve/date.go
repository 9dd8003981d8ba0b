// Package resolve derives canonical dates, titles and block identifiers for
// dream entries using ordered fallback strategies.
package resolve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/dreamvault/internal/callout"
)

// isoDate is the canonical output layout.
const isoDate = "2006-01-02"

// DateSource records which strategy produced a Date.
type DateSource string

// Date sources in precedence order.
const (
	SourceBlockRef   DateSource = "block-reference"
	SourceHeader     DateSource = "header"
	SourceCreated    DateSource = "created"
	SourceModified   DateSource = "modified"
	SourcePathYear   DateSource = "path-year"
	SourceProcessing DateSource = "processing-date"
)

// Precision tells how much of a resolved Date is real.
type Precision string

// Precisions.
const (
	PrecisionDay  Precision = "day"
	PrecisionYear Precision = "year"
)

// Date is a resolved YYYY-MM-DD date. Year-only results are normalized to
// January 1st and carry PrecisionYear.
type Date struct {
	Value     string
	Source    DateSource
	Precision Precision
}

// DateInput is everything the date strategies may look at.
type DateInput struct {
	// Blocks are searched in order: normally the diary, then its journal.
	Blocks      []*callout.Block
	Frontmatter map[string]any
	Path        string
	Now         time.Time
}

var (
	blockRefRe = regexp.MustCompile(`\^(\d{8})\b`)
	eightRe    = regexp.MustCompile(`^\d{8}$`)
	pathYearRe = regexp.MustCompile(`(?:^|\D)(\d{4})(?:\D|$)`)
	phraseRe   = regexp.MustCompile(`(?i)\b(?:(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday),?\s+)?` +
		`(january|february|march|april|may|june|july|august|september|october|november|december)\s+` +
		`(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
)

var months = func() map[string]time.Month {
	out := make(map[string]time.Month, 12)
	for m := time.January; m <= time.December; m++ {
		out[strings.ToLower(m.String())] = m
	}
	return out
}()

type dateStrategy func(in DateInput) (Date, bool)

// strategies is the precedence order; the first success wins.
var strategies = []dateStrategy{
	fromBlockRef,
	fromHeaderPhrase,
	fromProperty("created", SourceCreated),
	fromProperty("modified", SourceModified),
	fromPathYear,
}

// ResolveDate returns the first date any strategy can derive, falling back
// to the processing date.
func ResolveDate(in DateInput) Date {
	for _, s := range strategies {
		if d, ok := s(in); ok {
			return d
		}
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	return Date{Value: now.Format(isoDate), Source: SourceProcessing, Precision: PrecisionDay}
}

// fromBlockRef looks for ^YYYYMMDD on the first or second line of each block.
func fromBlockRef(in DateInput) (Date, bool) {
	for _, b := range in.Blocks {
		if b == nil {
			continue
		}
		for _, line := range leadingLines(b) {
			for _, m := range blockRefRe.FindAllStringSubmatch(line, -1) {
				if v, ok := compactDate(m[1]); ok {
					return Date{Value: v, Source: SourceBlockRef, Precision: PrecisionDay}, true
				}
			}
		}
	}
	return Date{}, false
}

func fromHeaderPhrase(in DateInput) (Date, bool) {
	for _, b := range in.Blocks {
		if b == nil {
			continue
		}
		if v, ok := ParseLongDate(b.Label); ok {
			return Date{Value: v, Source: SourceHeader, Precision: PrecisionDay}, true
		}
	}
	return Date{}, false
}

func fromProperty(key string, source DateSource) dateStrategy {
	return func(in DateInput) (Date, bool) {
		raw, ok := in.Frontmatter[key]
		if !ok || raw == nil {
			return Date{}, false
		}
		var s string
		switch v := raw.(type) {
		case time.Time:
			return Date{Value: v.Format(isoDate), Source: source, Precision: PrecisionDay}, true
		case string:
			s = strings.TrimSpace(v)
		case int, int64, uint64:
			s = fmt.Sprint(v)
		default:
			return Date{}, false
		}
		if !eightRe.MatchString(s) {
			return Date{}, false
		}
		v, ok := compactDate(s)
		if !ok {
			return Date{}, false
		}
		return Date{Value: v, Source: source, Precision: PrecisionDay}, true
	}
}

func fromPathYear(in DateInput) (Date, bool) {
	m := pathYearRe.FindStringSubmatch(in.Path)
	if m == nil {
		return Date{}, false
	}
	return Date{Value: m[1] + "-01-01", Source: SourcePathYear, Precision: PrecisionYear}, true
}

// ParseLongDate finds a phrase like "Monday, January 6, 2025" in s.
func ParseLongDate(s string) (string, bool) {
	m := phraseRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	month, ok := months[strings.ToLower(m[1])]
	if !ok {
		return "", false
	}
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return "", false
	}
	return t.Format(isoDate), true
}

// compactDate validates YYYYMMDD and reformats it as YYYY-MM-DD.
func compactDate(s string) (string, bool) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return "", false
	}
	return t.Format(isoDate), true
}

// leadingLines returns the marker line and the first owned line of b.
func leadingLines(b *callout.Block) []string {
	out := []string{b.Header}
	if len(b.Lines) > 0 {
		out = append(out, b.Lines[0].Text)
	}
	return out
}
