package scoring

import (
	"log/slog"
	"math"
	"sort"
	"sync/atomic"

	"github.com/signalworks/sibyl/internal/feature"
	"github.com/signalworks/sibyl/internal/signals"
	"github.com/signalworks/sibyl/internal/state"
)

// Config holds the tunable scoring parameters. Defaults are illustrative
// starting points, not fixed law; they are exposed through configuration so
// they can be validated against held-out outcomes.
type Config struct {
	// Alpha blends the rule layer with the ensemble expectation.
	Alpha float64
	// ConfidenceThreshold is the minimum max-class probability below which
	// the blend degrades to pure rules (alpha forced to 1).
	ConfidenceThreshold float64
	// TopSignals is the number of ranked signals carried in a result.
	TopSignals int
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{Alpha: 0.4, ConfidenceThreshold: 0.55, TopSignals: 5}
}

// Result is one scoring outcome. Identical (feature vector, snapshot
// version) pairs always produce identical results.
type Result struct {
	Score           int
	Intent          string
	Confidence      Distribution
	TopSignals      []signals.Signal
	Degraded        bool
	SnapshotVersion string
	RuleScore       float64
}

// Model is the two-stage scorer: a deterministic rule layer plus a swappable
// trained ensemble. The loaded snapshot is shared read-only across all
// concurrent scoring calls and replaced atomically on retraining.
type Model struct {
	cfg    Config
	snap   atomic.Pointer[Snapshot]
	logger *slog.Logger
}

func NewModel(cfg Config, logger *slog.Logger) *Model {
	if cfg.Alpha < 0 || cfg.Alpha > 1 {
		cfg.Alpha = 0.4
	}
	if cfg.TopSignals <= 0 {
		cfg.TopSignals = 5
	}
	return &Model{cfg: cfg, logger: logger}
}

// Swap installs a new snapshot. In-flight scoring calls keep the one they
// already loaded.
func (m *Model) Swap(s *Snapshot) {
	m.snap.Store(s)
	if s != nil {
		m.logger.Info("model snapshot installed",
			"version", s.Version,
			"schema", s.SchemaVersion,
			"accuracy", s.Metrics.Accuracy,
		)
	}
}

// Snapshot returns the currently loaded snapshot, or nil.
func (m *Model) Snapshot() *Snapshot {
	return m.snap.Load()
}

// Score qualifies a conversation state. It never fails: with no trained
// snapshot it falls back to rule-only scoring marked degraded, and with no
// signals at all it returns the zero result.
func (m *Model) Score(conv state.Conversation) Result {
	if len(conv.Signals) == 0 && !conv.BehavioralSeen {
		return Result{
			Score:      0,
			Intent:     Classes[3],
			Confidence: Distribution{0, 0, 0, 1},
			Degraded:   m.snap.Load() == nil,
		}
	}

	rule := m.ruleScore(conv.Signals)

	snap := m.snap.Load()
	if snap == nil {
		intent := ruleIntent(rule)
		var conf Distribution
		conf[ClassIndex(intent)] = 1
		return Result{
			Score:      clampScore(rule),
			Intent:     intent,
			Confidence: conf,
			TopSignals: m.rankSignals(conv.Signals),
			Degraded:   true,
			RuleScore:  rule,
		}
	}

	dist, dropped := snap.Distribution(conv.Vector, m.logger)
	best, maxP := dist.ArgMax()

	alpha := m.cfg.Alpha
	if maxP < m.cfg.ConfidenceThreshold {
		alpha = 1.0
	}
	expected := 100*dist[0] + 65*dist[1] + 30*dist[2]
	score := alpha*rule + (1-alpha)*expected

	return Result{
		Score:           clampScore(score),
		Intent:          Classes[best],
		Confidence:      dist,
		TopSignals:      m.rankSignals(conv.Signals),
		Degraded:        dropped,
		SnapshotVersion: snap.Version,
		RuleScore:       rule,
	}
}

// ruleScore is the rule-layer base: the accumulated signal weight sum,
// normalized by the total possible weight, scaled to [0, 100].
func (m *Model) ruleScore(sigs []signals.Signal) float64 {
	var raw float64
	for _, s := range sigs {
		raw += s.Weight
	}
	norm := raw / feature.TotalSignalWeight()
	if norm > 1 {
		norm = 1
	}
	if norm < 0 {
		norm = 0
	}
	return norm * 100
}

// ruleIntent maps a rule-only score onto the intent classes for degraded
// operation without a trained snapshot.
func ruleIntent(score float64) string {
	switch {
	case score >= 70:
		return Classes[0]
	case score >= 45:
		return Classes[1]
	case score >= 15:
		return Classes[2]
	default:
		return Classes[3]
	}
}

// rankSignals orders the accumulated set by weight descending, ties broken
// by first-observed turn, then truncates to the configured top N.
func (m *Model) rankSignals(sigs []signals.Signal) []signals.Signal {
	ranked := make([]signals.Signal, len(sigs))
	copy(ranked, sigs)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Weight != ranked[j].Weight {
			return ranked[i].Weight > ranked[j].Weight
		}
		return ranked[i].Turn < ranked[j].Turn
	})
	if len(ranked) > m.cfg.TopSignals {
		ranked = ranked[:m.cfg.TopSignals]
	}
	return ranked
}

func clampScore(score float64) int {
	n := int(math.Round(score))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
