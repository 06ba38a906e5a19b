package transcript

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCombinedTitle heads the job-level combined transcript.
const DefaultCombinedTitle = "Combined Audio Transcription"

// Combine renders successful outcomes into one document in listing order.
// Failed outcomes are skipped; section numbers follow the listing position.
func Combine(outcomes []Outcome, title string, generated time.Time) string {
	if strings.TrimSpace(title) == "" {
		title = DefaultCombinedTitle
	}
	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Succeeded() {
			succeeded++
		}
	}

	var b strings.Builder
	writeLines(&b,
		heavyRule,
		cases.Upper(language.Und).String(title),
		heavyRule,
		"",
		"Generated: "+generated.Format(dateLayout),
		fmt.Sprintf("Total files: %d", succeeded),
		"",
		"",
	)
	for _, outcome := range outcomes {
		if !outcome.Succeeded() {
			continue
		}
		name := outcome.Name
		if name == "" {
			name = orDefault(outcome.Result.FileName, "Unknown")
		}
		writeLines(&b,
			heavyRule,
			fmt.Sprintf("FILE %d: %s", outcome.Index+1, name),
			heavyRule,
			"",
			body(*outcome.Result),
			"",
			"",
		)
	}
	writeLines(&b, heavyRule, "END OF COMBINED TRANSCRIPT")
	b.WriteString(heavyRule)
	return b.String()
}
