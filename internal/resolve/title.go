package resolve

import (
	"regexp"
	"strings"

	"github.com/starford/dreamvault/internal/callout"
)

// UntitledDream is the title used when nothing better is found.
const UntitledDream = "Untitled Dream"

var linkRe = regexp.MustCompile(`!?\[\[([^\]|]*)(?:\|([^\]]*))?\]\]`)

// TrailingRef matches a block reference such as " ^20250603" or " ^flight-1"
// at the end of a line.
var TrailingRef = regexp.MustCompile(`\s*\^[A-Za-z0-9-]+\s*$`)

const titleTrim = " \t-–—:|"

// ResolveTitle derives an entry title from the diary marker label: explicit
// text before the first link, then a link alias, then any plain text left
// once links are removed.
func ResolveTitle(label string) string {
	label = strings.TrimSpace(TrailingRef.ReplaceAllString(label, ""))

	before := label
	if i := strings.Index(label, "[["); i >= 0 {
		before = label[:i]
		if i > 0 && label[i-1] == '!' {
			before = label[:i-1]
		}
	}
	if t := strings.Trim(before, titleTrim); t != "" {
		return t
	}

	for _, m := range linkRe.FindAllStringSubmatch(label, -1) {
		if alias := strings.TrimSpace(m[2]); alias != "" {
			return alias
		}
	}

	if t := strings.Trim(linkRe.ReplaceAllString(label, " "), titleTrim); t != "" {
		return strings.Join(strings.Fields(t), " ")
	}
	return UntitledDream
}

// ResolveID returns the 8-digit block reference on the block's marker line
// or first owned line. Identifiers are never synthesized.
func ResolveID(b *callout.Block) (string, bool) {
	if b == nil {
		return "", false
	}
	for _, line := range leadingLines(b) {
		if m := blockRefRe.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}
