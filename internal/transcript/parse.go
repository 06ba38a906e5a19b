package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// UnknownLanguage is reported when the model reply could not be decoded.
const UnknownLanguage = "unknown"

// Parse decodes a model reply into a Result. Replies that are not a JSON
// object (after stripping code fences and surrounding prose) fall back to the
// raw text as the transcription with an unknown language.
func Parse(reply string) Result {
	var result Result
	if err := DecodeModelJSON(reply, &result); err == nil {
		normalizeParsed(&result)
		return result
	}
	return Result{
		Transcription: strings.TrimSpace(reply),
		Language:      UnknownLanguage,
		Speakers:      []string{},
		KeyTopics:     []string{},
		Timestamps:    []Segment{},
	}
}

func normalizeParsed(r *Result) {
	r.Transcription = strings.TrimSpace(r.Transcription)
	r.Language = strings.TrimSpace(r.Language)
	if r.Language == "" {
		r.Language = UnknownLanguage
	}
	r.Summary = strings.TrimSpace(r.Summary)
	if r.Speakers == nil {
		r.Speakers = []string{}
	}
	if r.KeyTopics == nil {
		r.KeyTopics = []string{}
	}
	if r.Timestamps == nil {
		r.Timestamps = []Segment{}
	}
}

// DecodeModelJSON decodes JSON from a model reply, tolerating code fences and
// leading or trailing prose around a single object.
func DecodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := extractObject(stripCodeFence(trimmed))
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, snippet(sanitized))
	}
	return nil
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func extractObject(content string) string {
	if content == "" || content[0] == '{' {
		return content
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return strings.TrimSpace(content[start : end+1])
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
