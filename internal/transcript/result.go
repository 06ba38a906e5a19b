package transcript

import "encoding/json"

// Segment is one timestamped slice of the transcript as returned by the model.
type Segment struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// Result is the structured transcription of one item (or one chunk of it).
// Model fields this type does not know are preserved in Extra and written back
// out at the top level of the JSON artifact.
type Result struct {
	Transcription  string    `json:"transcription"`
	Language       string    `json:"language"`
	Speakers       []string  `json:"speakers"`
	Summary        string    `json:"summary"`
	KeyTopics      []string  `json:"key_topics"`
	Timestamps     []Segment `json:"timestamps"`
	InputTokens    int64     `json:"input_tokens"`
	OutputTokens   int64     `json:"output_tokens"`
	ProcessingTime float64   `json:"processing_time"`
	Model          string    `json:"model"`
	FileName       string    `json:"file_name"`
	FileSizeMB     float64   `json:"file_size_mb"`
	NumChunks      int       `json:"num_chunks,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownKeys = map[string]struct{}{
	"transcription": {}, "language": {}, "speakers": {}, "summary": {},
	"key_topics": {}, "timestamps": {}, "input_tokens": {}, "output_tokens": {},
	"processing_time": {}, "model": {}, "file_name": {}, "file_size_mb": {},
	"num_chunks": {},
}

type resultFields Result

// MarshalJSON inlines Extra next to the known fields. Known fields win.
func (r Result) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(resultFields(r))
	if err != nil || len(r.Extra) == 0 {
		return base, err
	}
	merged := make(map[string]json.RawMessage, len(knownKeys)+len(r.Extra))
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if _, known := knownKeys[key]; known {
			continue
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes known fields and collects the rest into Extra.
func (r *Result) UnmarshalJSON(data []byte) error {
	var fields resultFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range knownKeys {
		delete(raw, key)
	}
	*r = Result(fields)
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// Status is the terminal state of one item.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome records what happened to one listed item. Index is the item's
// zero-based position in the listing; Result is set only on success and Reason
// only on failure.
type Outcome struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Locator string  `json:"locator"`
	Status  Status  `json:"status"`
	Result  *Result `json:"result,omitempty"`
	Reason  string  `json:"reason,omitempty"`
	Resumed bool    `json:"resumed,omitempty"`
}

// Success builds a successful outcome.
func Success(index int, name, locator string, result Result, resumed bool) Outcome {
	return Outcome{
		Index:   index,
		Name:    name,
		Locator: locator,
		Status:  StatusSuccess,
		Result:  &result,
		Resumed: resumed,
	}
}

// Failure builds a failed outcome carrying a human-readable reason.
func Failure(index int, name, locator, reason string) Outcome {
	return Outcome{
		Index:   index,
		Name:    name,
		Locator: locator,
		Status:  StatusFailure,
		Reason:  reason,
	}
}

// Succeeded reports whether the outcome carries a result.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess && o.Result != nil
}
