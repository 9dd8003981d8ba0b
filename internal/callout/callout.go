// Package callout builds a tree of typed callout blocks from the quoted
// lines of a journal document.
package callout

import (
	"regexp"
	"strings"
)

// Kind is the structural role of a callout block.
type Kind int

// Block kinds.
const (
	Unknown Kind = iota
	JournalEntry
	DreamDiary
	MetricsBlock
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case JournalEntry:
		return "journal-entry"
	case DreamDiary:
		return "dream-diary"
	case MetricsBlock:
		return "dream-metrics"
	default:
		return "unknown"
	}
}

// canContain reports whether a block of kind parent may own a child of kind child.
func canContain(parent, child Kind) bool {
	switch parent {
	case JournalEntry:
		return child == DreamDiary
	case DreamDiary:
		return child == MetricsBlock
	default:
		return false
	}
}

// Vocabulary maps callout names as written in documents to block kinds.
type Vocabulary struct {
	Journal string `yaml:"journal" json:"journal"`
	Diary   string `yaml:"diary" json:"diary"`
	Metrics string `yaml:"metrics" json:"metrics"`
}

// DefaultVocabulary returns the stock callout names.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Journal: "journal-entry",
		Diary:   "dream-diary",
		Metrics: "dream-metrics",
	}
}

// KindOf matches name case-insensitively against the vocabulary.
func (v Vocabulary) KindOf(name string) Kind {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return Unknown
	case strings.EqualFold(name, v.Journal):
		return JournalEntry
	case strings.EqualFold(name, v.Diary):
		return DreamDiary
	case strings.EqualFold(name, v.Metrics):
		return MetricsBlock
	}
	return Unknown
}

// Name returns the configured callout name for k.
func (v Vocabulary) Name(k Kind) string {
	switch k {
	case JournalEntry:
		return v.Journal
	case DreamDiary:
		return v.Diary
	case MetricsBlock:
		return v.Metrics
	}
	return ""
}

// markerRe matches "[!kind]" (optionally folded with + or -) after quote markers are stripped.
var markerRe = regexp.MustCompile(`^\[!([^\]\s]+)\][+-]?\s*(.*)$`)

// Depth counts the leading quote markers of line. Whitespace between markers
// is allowed, so "> > x" and ">> x" both have depth 2.
func Depth(line string) int {
	depth := 0
	for _, r := range line {
		switch r {
		case '>':
			depth++
		case ' ', '\t':
		default:
			return depth
		}
	}
	return depth
}

// StripQuotes removes the leading quote markers and the whitespace around them.
func StripQuotes(line string) string {
	i := 0
	for i < len(line) {
		c := line[i]
		if c != '>' && c != ' ' && c != '\t' {
			break
		}
		i++
	}
	return strings.TrimRight(line[i:], " \t\r")
}

// ParseMarker extracts the callout name and trailing label from a quoted
// marker line. Lines without quote markers never open a callout.
func ParseMarker(line string) (name, label string, ok bool) {
	if Depth(line) == 0 {
		return "", "", false
	}
	m := markerRe.FindStringSubmatch(StripQuotes(line))
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}
