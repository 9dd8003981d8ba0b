package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/dreamvault/internal/entryservice"
	"github.com/starford/dreamvault/internal/models"
)

const journalFormatTemplate = `# Dream Journal Format Contract

Dream entries are read from callout blocks nested inside Markdown documents.
Each level of nesting adds one ` + "`>`" + ` marker.

## Structure

` + "```" + `markdown
---
%[4]s
---

> [!%[1]s]
> > [!%[2]s] Title of the dream ^20250603
> > What happened, in prose. Each line keeps its quote markers.
> > > [!%[3]s]
> > > %[5]s
` + "```" + `

## Rules

1. **Nesting.** A ` + "`%[2]s`" + ` callout belongs inside a ` + "`%[1]s`" + ` callout.
   A ` + "`%[3]s`" + ` callout belongs inside a ` + "`%[2]s`" + ` callout.
   Blocks found elsewhere are reported as warnings.
2. **Dates** come from, in order: a ` + "`^YYYYMMDD`" + ` block reference, a date phrase
   in the callout header (` + "`June 3, 2025`" + `), the front matter ` + "`created`" + ` then
   ` + "`modified`" + ` property, then a year in the file path (normalized to January 1st).
   Entries without any date get the processing date and a warning.
3. **Titles** are the header text after the callout marker, without the block reference.
4. **Metrics** are ` + "`Name: value`" + ` pairs separated by commas or new lines.
   Names match case-insensitively. List values separate items with ` + "`;`" + `.
5. **Front matter** properties mirror metrics where configured. When both
   disagree a conflict is recorded and the configured strategy decides.
6. **Encoding** is UTF-8; file paths end with ` + "`.md`" + ` and use forward slashes.

## Metrics

%[6]s
`

// JournalFormatContract renders the journal layout for the configured callout
// names and metric vocabulary.
func JournalFormatContract(f entryservice.Format) string {
	var fm, inline, table []string
	for _, c := range f.Metrics {
		if !c.Enabled {
			continue
		}
		example := "4"
		switch c.Kind {
		case models.MetricList:
			example = "flying; ocean"
		case models.MetricString:
			example = "calm"
		}
		inline = append(inline, c.Name+": "+example)
		prop := "-"
		if c.FrontmatterProperty != "" {
			prop = "`" + c.FrontmatterProperty + "`"
			fm = append(fm, c.FrontmatterProperty+": "+example)
		}
		table = append(table, fmt.Sprintf("| %s | %s | %s |", c.Name, c.Kind, prop))
	}
	if len(fm) == 0 {
		fm = []string{"date: 2025-06-03"}
	}
	if len(inline) == 0 {
		inline = []string{"Clarity: 4"}
	}
	metricTable := "No metrics configured."
	if len(table) > 0 {
		metricTable = "| Metric | Kind | Front matter |\n|---|---|---|\n" + strings.Join(table, "\n")
	}
	return fmt.Sprintf(journalFormatTemplate,
		f.Callouts.Journal, f.Callouts.Diary, f.Callouts.Metrics,
		strings.Join(fm, "\n"), strings.Join(inline, ", "), metricTable)
}
