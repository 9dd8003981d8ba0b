package journal

import (
	"regexp"
	"strings"

	"github.com/starford/dreamvault/internal/callout"
	"github.com/starford/dreamvault/internal/resolve"
)

var (
	embedRe    = regexp.MustCompile(`!\[\[[^\]]*\]\]`)
	wikiLinkRe = regexp.MustCompile(`\[\[([^\]|]*)(?:\|([^\]]*))?\]\]`)
	emphasis   = strings.NewReplacer("**", "", "__", "", "~~", "", "==", "")
)

// Clean turns the raw quoted lines of a diary callout into plain prose.
// Quote markers, trailing block references and embeds are removed, wiki
// links are replaced by their alias (or target) and emphasis markers are
// dropped. Runs of blank lines collapse to one; leading and trailing blank
// lines are trimmed.
func Clean(lines []string) string {
	out := make([]string, 0, len(lines))
	blank := true
	for _, raw := range lines {
		line := callout.StripQuotes(raw)
		line = resolve.TrailingRef.ReplaceAllString(line, "")
		line = embedRe.ReplaceAllString(line, "")
		line = wikiLinkRe.ReplaceAllStringFunc(line, linkText)
		line = strings.TrimSpace(emphasis.Replace(line))

		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func linkText(link string) string {
	m := wikiLinkRe.FindStringSubmatch(link)
	if alias := strings.TrimSpace(m[2]); alias != "" {
		return alias
	}
	target := m[1]
	if i := strings.IndexAny(target, "#^"); i >= 0 {
		target = target[:i]
	}
	return strings.TrimSpace(target)
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
