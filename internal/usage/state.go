package usage

import "time"

// DefaultHistoryLimit caps the rolling per-call history.
const DefaultHistoryLimit = 1000

const dateLayout = "2006-01-02"

// Record is one metered model call.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Model        string    `json:"model"`
	FileSizeMB   float64   `json:"file_size_mb"`
}

// State is the persisted quota record.
type State struct {
	Tier              Tier     `json:"tier"`
	RequestsToday     int      `json:"requests_today"`
	LastResetDate     string   `json:"last_reset_date"`
	TotalRequests     int64    `json:"total_requests"`
	TotalInputTokens  int64    `json:"total_input_tokens"`
	TotalOutputTokens int64    `json:"total_output_tokens"`
	TotalCostUSD      float64  `json:"total_cost_usd"`
	History           []Record `json:"history"`
}

func defaultState(tier Tier, now time.Time) State {
	return State{
		Tier:          tier,
		LastResetDate: now.Format(dateLayout),
		History:       []Record{},
	}
}

// rollover zeroes the daily counter when today's local date is later than the
// stored reset date. It reports whether anything changed.
func (s *State) rollover(now time.Time) bool {
	today := now.Format(dateLayout)
	last := s.LastResetDate
	if len(last) > len(dateLayout) {
		last = last[:len(dateLayout)]
	}
	if last != "" && today <= last {
		return false
	}
	s.RequestsToday = 0
	s.LastResetDate = today
	return true
}

func (s State) clone() State {
	out := s
	out.History = append([]Record(nil), s.History...)
	return out
}
