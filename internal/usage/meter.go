package usage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"mediabatch/internal/logging"
	"mediabatch/internal/metrics"
	"mediabatch/internal/services"
)

// Meter tracks model calls against the active tier's daily quota.
type Meter struct {
	mu           sync.Mutex
	store        Store
	state        State
	defaultTier  Tier
	historyLimit int
	now          func() time.Time
	logger       *slog.Logger

	// unsaved is set while in-memory state is ahead of the store.
	unsaved bool
}

// Option configures a Meter.
type Option func(*Meter)

// WithClock overrides the wall clock. Calendar dates come from the returned
// time's location.
func WithClock(now func() time.Time) Option {
	return func(m *Meter) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Meter) {
		m.logger = logger
	}
}

// WithHistoryLimit caps the rolling call history.
func WithHistoryLimit(limit int) Option {
	return func(m *Meter) {
		if limit > 0 {
			m.historyLimit = limit
		}
	}
}

// WithDefaultTier sets the tier used when no state exists and after Reset.
func WithDefaultTier(tier Tier) Option {
	return func(m *Meter) {
		if _, ok := pricingTable[tier]; ok {
			m.defaultTier = tier
		}
	}
}

// NewMeter loads persisted state from store. A missing record yields defaults;
// a corrupt one is logged and replaced by defaults on the next write.
func NewMeter(store Store, opts ...Option) (*Meter, error) {
	if store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "usage", "new meter", "store is required", nil)
	}
	m := &Meter{
		store:        store,
		defaultTier:  TierFree,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "usage")
	m.state = defaultState(m.defaultTier, m.now())
	m.reload(context.Background())
	return m, nil
}

// RecordCall meters one model call and returns the resulting quota status.
// Persistence failures are logged and never returned; the in-memory counters stand.
func (m *Meter) RecordCall(ctx context.Context, inputTokens, outputTokens int64, model string, fileSizeMB float64) LimitStatus {
	state, _ := m.mutate(ctx, "record call", func(s *State) bool {
		now := m.now()
		cost := 0.0
		if s.Tier == TierPaid {
			cost = PricingFor(s.Tier).Cost(inputTokens, outputTokens)
		}
		s.TotalRequests++
		s.RequestsToday++
		s.TotalInputTokens += inputTokens
		s.TotalOutputTokens += outputTokens
		s.TotalCostUSD += cost
		s.History = append(s.History, Record{
			Timestamp:    now,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			CostUSD:      cost,
			Model:        model,
			FileSizeMB:   fileSizeMB,
		})
		if overflow := len(s.History) - m.historyLimit; overflow > 0 {
			s.History = append([]Record(nil), s.History[overflow:]...)
		}
		return true
	})

	status := evaluate(state)
	metrics.InferenceRecorded(model, inputTokens, outputTokens)
	metrics.UsageObserved(status.RequestsToday, status.UsagePercent, status.TotalCostUSD)
	m.logStatus(ctx, status)
	return status
}

// Status returns the current quota status without recording a call.
func (m *Meter) Status(ctx context.Context) LimitStatus {
	state, _ := m.mutate(ctx, "status", nil)
	return evaluate(state)
}

// Stats summarizes cumulative usage.
type Stats struct {
	Tier              Tier        `json:"tier"`
	TotalRequests     int64       `json:"total_requests"`
	RequestsToday     int         `json:"requests_today"`
	TotalInputTokens  int64       `json:"total_input_tokens"`
	TotalOutputTokens int64       `json:"total_output_tokens"`
	TotalCostUSD      float64     `json:"total_cost_usd"`
	Limits            LimitStatus `json:"limits"`
	LastReset         string      `json:"last_reset"`
	HistorySize       int         `json:"history_size"`
}

// Stats returns totals, today's usage, and the limit status.
func (m *Meter) Stats(ctx context.Context) Stats {
	state, _ := m.mutate(ctx, "stats", nil)
	return Stats{
		Tier:              state.Tier,
		TotalRequests:     state.TotalRequests,
		RequestsToday:     state.RequestsToday,
		TotalInputTokens:  state.TotalInputTokens,
		TotalOutputTokens: state.TotalOutputTokens,
		TotalCostUSD:      state.TotalCostUSD,
		Limits:            evaluate(state),
		LastReset:         state.LastResetDate,
		HistorySize:       len(state.History),
	}
}

// BurnRate reports today's spend and a 30-day projection.
type BurnRate struct {
	Tier               Tier    `json:"tier"`
	DailyCostUSD       float64 `json:"daily_burn_rate_usd"`
	MonthlyEstimateUSD float64 `json:"monthly_estimate_usd"`
	RequestsToday      int     `json:"requests_today"`
	Message            string  `json:"message"`
}

// BurnRate sums the cost of records stamped on today's local date.
func (m *Meter) BurnRate(ctx context.Context) BurnRate {
	state, _ := m.mutate(ctx, "burn rate", nil)
	out := BurnRate{Tier: state.Tier, RequestsToday: state.RequestsToday}
	if state.Tier == TierFree {
		out.Message = "Free tier - no costs"
		return out
	}
	now := m.now()
	today := now.Format(dateLayout)
	matched := 0
	for _, record := range state.History {
		if record.Timestamp.In(now.Location()).Format(dateLayout) != today {
			continue
		}
		out.DailyCostUSD += record.CostUSD
		matched++
	}
	if matched == 0 {
		out.Message = "No recent usage"
		return out
	}
	out.MonthlyEstimateUSD = out.DailyCostUSD * 30
	out.Message = fmt.Sprintf("Estimated monthly cost: $%.2f", out.MonthlyEstimateUSD)
	return out
}

// SetTier switches the active tier. Unknown tiers wrap services.ErrInvalidTier.
func (m *Meter) SetTier(ctx context.Context, value string) error {
	tier, err := ParseTier(value)
	if err != nil {
		return err
	}
	if _, err := m.mutate(ctx, "set tier", func(s *State) bool {
		s.Tier = tier
		return true
	}); err != nil {
		return err
	}
	m.logger.Info("usage tier updated", logging.String("tier", string(tier)))
	return nil
}

// Reset restores default counters, history, and tier. It cannot be undone.
func (m *Meter) Reset(ctx context.Context) error {
	logging.WarnWithContext(m.logger, "resetting all usage statistics", "usage_reset",
		logging.String(logging.FieldImpact, "cumulative counters and history are cleared"),
		logging.String(logging.FieldErrorHint, "none; requested by operator"),
	)
	_, err := m.mutate(ctx, "reset", func(s *State) bool {
		*s = defaultState(m.defaultTier, m.now())
		return true
	})
	return err
}

// mutate serializes access, reloads shared state, applies rollover and fn, and
// persists when anything changed. A nil fn is a read.
func (m *Meter) mutate(ctx context.Context, op string, fn func(*State) bool) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if locker, ok := m.store.(Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			logging.ErrorWithContext(m.logger, "usage lock failed; continuing without cross-process lock", "usage_lock_failed",
				logging.String("operation", op),
				logging.Error(err),
			)
		} else {
			defer unlock()
		}
	}
	if !m.unsaved {
		m.reload(ctx)
	}

	dirty := m.state.rollover(m.now())
	if dirty {
		m.logger.Info("daily usage counters reset", logging.String("date", m.state.LastResetDate))
	}
	if fn != nil && fn(&m.state) {
		dirty = true
	}
	snapshot := m.state.clone()
	if !dirty {
		return snapshot, nil
	}
	if err := m.store.Save(ctx, snapshot); err != nil {
		logging.ErrorWithContext(m.logger, "usage state not persisted", "usage_persist_failed",
			logging.String("operation", op),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on paths.usage_file"),
		)
		m.unsaved = true
		return snapshot, err
	}
	m.unsaved = false
	return snapshot, nil
}

// reload replaces in-memory state with the persisted record when one exists.
func (m *Meter) reload(ctx context.Context) {
	state, err := m.store.Load(ctx)
	switch {
	case err == nil:
		if _, ok := pricingTable[state.Tier]; !ok {
			state.Tier = m.defaultTier
		}
		if state.History == nil {
			state.History = []Record{}
		}
		m.state = state
	case errors.Is(err, fs.ErrNotExist):
	default:
		logging.ErrorWithContext(m.logger, "usage state unreadable; using defaults", "usage_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect or delete paths.usage_file"),
		)
	}
}

func (m *Meter) logStatus(ctx context.Context, status LimitStatus) {
	if status.Level == LevelNone {
		return
	}
	logger := logging.WithContext(ctx, m.logger)
	attrs := []logging.Attr{
		logging.String("level", string(status.Level)),
		logging.Int("requests_today", status.RequestsToday),
		logging.Int("daily_limit", status.DailyLimit),
		logging.Float64("usage_pct", status.UsagePercent),
	}
	if status.Level == LevelCaution {
		logger.Info("daily quota half used", logging.Args(attrs...)...)
		return
	}
	logging.WarnWithContext(logger, status.Warnings[0], "quota_threshold",
		append(attrs,
			logging.String(logging.FieldImpact, "further requests may be rejected by the provider"),
			logging.String(logging.FieldErrorHint, "slow submissions or switch tier with 'mediabatch usage tier paid'"),
		)...,
	)
}
