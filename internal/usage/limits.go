package usage

import "fmt"

// Level is the graduated warning level for daily quota occupancy.
type Level string

const (
	LevelNone     Level = "none"
	LevelCaution  Level = "caution"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

const (
	cautionPercent  = 50.0
	warningPercent  = 75.0
	criticalPercent = 90.0
)

// LimitStatus reports daily quota occupancy after a call or on demand.
type LimitStatus struct {
	// Status mirrors Level but reports "ok" instead of "none".
	Status            string   `json:"status"`
	Level             Level    `json:"level"`
	Tier              Tier     `json:"tier"`
	RequestsToday     int      `json:"requests_today"`
	DailyLimit        int      `json:"daily_limit"`
	UsagePercent      float64  `json:"daily_usage_pct"`
	RequestsRemaining int      `json:"requests_remaining"`
	TotalCostUSD      float64  `json:"total_cost_usd"`
	Warnings          []string `json:"warnings"`
}

// LevelFor maps an occupancy percentage onto a warning level.
func LevelFor(percent float64) Level {
	switch {
	case percent >= criticalPercent:
		return LevelCritical
	case percent >= warningPercent:
		return LevelWarning
	case percent >= cautionPercent:
		return LevelCaution
	default:
		return LevelNone
	}
}

func evaluate(state State) LimitStatus {
	limit := PricingFor(state.Tier).RequestsPerDay
	percent := 0.0
	if limit > 0 {
		percent = float64(state.RequestsToday) / float64(limit) * 100
	}
	level := LevelFor(percent)
	status := string(level)
	if level == LevelNone {
		status = "ok"
	}
	return LimitStatus{
		Status:            status,
		Level:             level,
		Tier:              state.Tier,
		RequestsToday:     state.RequestsToday,
		DailyLimit:        limit,
		UsagePercent:      percent,
		RequestsRemaining: limit - state.RequestsToday,
		TotalCostUSD:      state.TotalCostUSD,
		Warnings:          warningsFor(percent, state.RequestsToday, limit),
	}
}

// warningsFor lists one message per threshold reached, highest first.
func warningsFor(percent float64, used, limit int) []string {
	warnings := make([]string, 0, 3)
	if percent >= criticalPercent {
		warnings = append(warnings, fmt.Sprintf("CRITICAL: %.1f%% of the daily request limit used (%d/%d)", percent, used, limit))
	}
	if percent >= warningPercent {
		warnings = append(warnings, fmt.Sprintf("WARNING: usage passed %.0f%% of the daily request limit", warningPercent))
	}
	if percent >= cautionPercent {
		warnings = append(warnings, fmt.Sprintf("CAUTION: usage passed %.0f%% of the daily request limit", cautionPercent))
	}
	return warnings
}
