package transcript

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	lineWidth          = 80
	sentencesPerPara   = 5
	dateLayout         = "2006-01-02 15:04:05"
	fullTranscriptHead = "FULL TRANSCRIPT"
)

var (
	heavyRule = strings.Repeat("=", lineWidth)
	lightRule = strings.Repeat("-", lineWidth)
)

// Format renders one result as the human-readable transcript artifact.
func Format(result Result, generated time.Time) string {
	var b strings.Builder
	writeLines(&b, heavyRule, "AUDIO TRANSCRIPTION", heavyRule, "")

	writeLines(&b,
		"File: "+orDefault(result.FileName, "Unknown"),
		"Date: "+generated.Format(dateLayout),
		"Language: "+displayLanguage(result.Language),
	)
	if len(result.Speakers) > 0 {
		writeLines(&b, "Speakers: "+strings.Join(result.Speakers, ", "))
	}
	writeLines(&b,
		"Transcribed by: "+orDefault(result.Model, "Unknown"),
		fmt.Sprintf("Processing time: %.2f seconds", result.ProcessingTime),
		"",
	)

	if summary := strings.TrimSpace(result.Summary); summary != "" {
		writeLines(&b, lightRule, "SUMMARY", lightRule, "", wrap(summary, lineWidth), "")
	}
	if len(result.KeyTopics) > 0 {
		writeLines(&b, lightRule, "KEY TOPICS", lightRule, "")
		for _, topic := range result.KeyTopics {
			writeLines(&b, "• "+topic)
		}
		writeLines(&b, "")
	}

	writeLines(&b, heavyRule, fullTranscriptHead, heavyRule, "")
	b.WriteString(body(result))
	return b.String()
}

// body is everything below the FULL TRANSCRIPT heading, shared with Combine.
func body(result Result) string {
	var b strings.Builder
	writeLines(&b, paragraphs(result.Transcription, lineWidth), "", lightRule, "End of Transcript")
	b.WriteString(lightRule)
	return b.String()
}

func displayLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "Unknown"
	}
	return cases.Title(language.Und).String(lang)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func writeLines(b *strings.Builder, lines ...string) {
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

// wrap greedily fills lines up to width runes without breaking words.
func wrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var (
		lines   []string
		current strings.Builder
		length  int
	)
	for _, word := range words {
		wordLen := len([]rune(word))
		if length > 0 && length+1+wordLen > width {
			lines = append(lines, current.String())
			current.Reset()
			length = 0
		}
		if length > 0 {
			current.WriteByte(' ')
			length++
		}
		current.WriteString(word)
		length += wordLen
	}
	lines = append(lines, current.String())
	return strings.Join(lines, "\n")
}

// paragraphs groups sentences five at a time and wraps each group.
func paragraphs(text string, width int) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	var out []string
	for start := 0; start < len(sentences); start += sentencesPerPara {
		end := min(start+sentencesPerPara, len(sentences))
		out = append(out, wrap(strings.Join(sentences[start:end], " "), width))
	}
	return strings.Join(out, "\n\n")
}

func splitSentences(text string) []string {
	replacer := strings.NewReplacer(". ", ".\n", "? ", "?\n", "! ", "!\n")
	var sentences []string
	for _, part := range strings.Split(replacer.Replace(text), "\n") {
		if part = strings.TrimSpace(part); part != "" {
			sentences = append(sentences, part)
		}
	}
	return sentences
}
