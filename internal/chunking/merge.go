package chunking

import (
	"encoding/json"
	"strings"

	"mediabatch/internal/transcript"
)

// Merge folds per-window results, in window order, into one item result.
// Every window's text is joined with a single space, empty windows included,
// so the output keeps one slot per window.
func Merge(results []transcript.Result) transcript.Result {
	switch len(results) {
	case 0:
		return transcript.Result{}
	case 1:
		return results[0]
	}

	first := results[0]
	merged := transcript.Result{
		Language:   first.Language,
		Model:      first.Model,
		FileName:   first.FileName,
		NumChunks:  len(results),
		Speakers:   []string{},
		KeyTopics:  []string{},
		Timestamps: []transcript.Segment{},
	}

	texts := make([]string, 0, len(results))
	var summaries []string
	speakers, topics := newOrderedSet(), newOrderedSet()
	for _, result := range results {
		texts = append(texts, result.Transcription)
		if summary := strings.TrimSpace(result.Summary); summary != "" {
			summaries = append(summaries, summary)
		}
		speakers.add(result.Speakers...)
		topics.add(result.KeyTopics...)
		merged.Timestamps = append(merged.Timestamps, result.Timestamps...)
		merged.InputTokens += result.InputTokens
		merged.OutputTokens += result.OutputTokens
		merged.ProcessingTime += result.ProcessingTime
		merged.FileSizeMB += result.FileSizeMB
		merged.Extra = mergeExtra(merged.Extra, result.Extra)
	}
	merged.Transcription = strings.Join(texts, " ")
	merged.Summary = strings.Join(summaries, " ")
	merged.Speakers = speakers.values
	merged.KeyTopics = topics.values
	return merged
}

func mergeExtra(dst, src map[string]json.RawMessage) map[string]json.RawMessage {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]json.RawMessage, len(src))
	}
	for key, value := range src {
		if _, exists := dst[key]; !exists {
			dst[key] = value
		}
	}
	return dst
}

type orderedSet struct {
	seen   map[string]struct{}
	values []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), values: []string{}}
}

func (s *orderedSet) add(values ...string) {
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := s.seen[value]; ok {
			continue
		}
		s.seen[value] = struct{}{}
		s.values = append(s.values, value)
	}
}
