// Package engine orchestrates the qualification pipeline: extraction, state
// merge, scoring, recommendation and assembly, plus persistence and event
// fan-out at the boundary.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/signalworks/sibyl/internal/assemble"
	"github.com/signalworks/sibyl/internal/bus"
	"github.com/signalworks/sibyl/internal/crm"
	"github.com/signalworks/sibyl/internal/metrics"
	"github.com/signalworks/sibyl/internal/recommend"
	"github.com/signalworks/sibyl/internal/scoring"
	"github.com/signalworks/sibyl/internal/signals"
	"github.com/signalworks/sibyl/internal/state"
	"github.com/signalworks/sibyl/internal/store"
	"github.com/signalworks/sibyl/internal/training"
)

// Persister is the slice of the database the engine writes through.
// *store.Store satisfies it; nil means run fully in memory.
type Persister interface {
	SaveQualification(ctx context.Context, conversationID string, turn int, out assemble.Output, snapshotVersion string, degraded bool) (uuid.UUID, error)
	SaveSnapshot(ctx context.Context, snap *scoring.Snapshot) error
	SaveTrainingRun(ctx context.Context, version string, samples, rejectedRows int, m scoring.EvalMetrics) error
	QualificationHistory(ctx context.Context, conversationID string) ([]store.QualificationRecord, error)
}

// Engine wires the core components together. Store, CRM and bus are
// optional: without them the engine runs fully in memory.
type Engine struct {
	extractor *signals.Extractor
	state     *state.Store
	model     *scoring.Model
	trainer   *scoring.Trainer
	store     Persister
	crm       *crm.Manager
	bus       *bus.Client
	logger    *slog.Logger
}

func New(st *state.Store, model *scoring.Model, trainer *scoring.Trainer, db Persister, crmMgr *crm.Manager, b *bus.Client, logger *slog.Logger) *Engine {
	return &Engine{
		extractor: signals.New(logger),
		state:     st,
		model:     model,
		trainer:   trainer,
		store:     db,
		crm:       crmMgr,
		bus:       b,
		logger:    logger,
	}
}

// Qualification is one turn's full outcome: the canonical output contract
// plus engine-level metadata.
type Qualification struct {
	ConversationID  string          `json:"conversation_id"`
	Turn            int             `json:"turn"`
	Output          assemble.Output `json:"output"`
	SnapshotVersion string          `json:"snapshot_version,omitempty"`
	Degraded        bool            `json:"degraded"`
}

// ProcessTurn runs the full pipeline for one conversation turn. It always
// produces a qualification; failure modes degrade the result, they never
// abort the turn.
func (e *Engine) ProcessTurn(ctx context.Context, conversationID, text string, behavioral *signals.BehavioralPayload) Qualification {
	ext := e.extractor.Extract(text, behavioral)

	conv := e.state.Apply(conversationID, ext, behavioral)
	res := e.model.Score(conv)

	action := recommend.Action(res.Intent, res.Score, conv)
	tags := recommend.Tags(res.Intent, res.Score, conv)
	out := assemble.Build(conv, res, action, tags)

	q := Qualification{
		ConversationID:  conversationID,
		Turn:            conv.Turns,
		Output:          out,
		SnapshotVersion: res.SnapshotVersion,
		Degraded:        res.Degraded,
	}

	metrics.TurnsProcessed.Inc()
	for _, s := range ext.Signals {
		metrics.SignalsExtracted.WithLabelValues(string(s.Category)).Inc()
	}
	metrics.ScoreDistribution.Observe(float64(res.Score))
	if res.Degraded {
		metrics.DegradedScorings.Inc()
	}
	metrics.ActiveConversations.Set(float64(e.state.ActiveCount()))

	if e.store != nil {
		if _, err := e.store.SaveQualification(ctx, conversationID, conv.Turns, out, res.SnapshotVersion, res.Degraded); err != nil {
			e.logger.Error("failed to persist qualification",
				"conversation_id", conversationID, "error", err)
		}
	}

	if e.bus != nil {
		if err := e.bus.Publish(bus.SubjectUpdated, q); err != nil {
			e.logger.Error("failed to publish qualification", "error", err)
		}
		if res.Score >= 80 {
			if err := e.bus.Publish(bus.SubjectHot, q); err != nil {
				e.logger.Error("failed to publish hot lead", "error", err)
			}
		}
	}

	e.logger.Info("turn processed",
		"conversation_id", conversationID,
		"turn", conv.Turns,
		"score", res.Score,
		"intent", res.Intent,
		"action", action,
		"degraded", res.Degraded,
	)
	return q
}

// EndConversation archives the conversation and returns its final
// qualification.
func (e *Engine) EndConversation(ctx context.Context, conversationID string) (Qualification, error) {
	final, ok := e.state.End(conversationID)
	if !ok {
		return Qualification{}, fmt.Errorf("conversation %s not found", conversationID)
	}
	metrics.ActiveConversations.Set(float64(e.state.ActiveCount()))

	res := e.model.Score(final)
	action := recommend.Action(res.Intent, res.Score, final)
	tags := recommend.Tags(res.Intent, res.Score, final)
	out := assemble.Build(final, res, action, tags)

	q := Qualification{
		ConversationID:  conversationID,
		Turn:            final.Turns,
		Output:          out,
		SnapshotVersion: res.SnapshotVersion,
		Degraded:        res.Degraded,
	}

	if e.store != nil {
		if _, err := e.store.SaveQualification(ctx, conversationID, final.Turns, out, res.SnapshotVersion, res.Degraded); err != nil {
			e.logger.Error("failed to persist final qualification",
				"conversation_id", conversationID, "error", err)
		}
	}

	if e.bus != nil {
		if err := e.bus.Publish(bus.SubjectUpdated, q); err != nil {
			e.logger.Error("failed to publish final qualification", "error", err)
		}
	}
	return q, nil
}

// History returns the persisted qualification audit trail for a
// conversation, oldest first.
func (e *Engine) History(ctx context.Context, conversationID string) ([]store.QualificationRecord, error) {
	if e.store == nil {
		return nil, fmt.Errorf("no database configured")
	}
	return e.store.QualificationHistory(ctx, conversationID)
}

// Conversation returns a copy of the live or archived state for an id.
func (e *Engine) Conversation(conversationID string) (state.Conversation, bool) {
	return e.state.Get(conversationID)
}

// SyncToCRM pushes the current qualification for a conversation to every
// configured CRM.
func (e *Engine) SyncToCRM(ctx context.Context, conversationID string) (map[string]crm.SyncResult, error) {
	if e.crm == nil {
		return nil, fmt.Errorf("no CRM connectors configured")
	}
	conv, ok := e.state.Get(conversationID)
	if !ok {
		return nil, fmt.Errorf("conversation %s not found", conversationID)
	}

	res := e.model.Score(conv)
	tags := recommend.Tags(res.Intent, res.Score, conv)

	lead := crm.Lead{
		Name:     deref(conv.Profile.Name),
		Email:    deref(conv.Profile.Email),
		Company:  deref(conv.Profile.Company),
		Role:     deref(conv.Profile.Role),
		Industry: deref(conv.Profile.Industry),
		Intent:   res.Intent,
		Score:    res.Score,
		Tags:     tags,
	}
	return e.crm.SyncLead(ctx, lead), nil
}

// Retrain fits a new snapshot on historical examples, installs it
// atomically and persists it when a store is configured.
func (e *Engine) Retrain(ctx context.Context, examples []scoring.Example, rejectedRows int) (*scoring.Snapshot, error) {
	snap, err := e.trainer.Train(examples)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	e.model.Swap(snap)

	if e.store != nil {
		if err := e.store.SaveSnapshot(ctx, snap); err != nil {
			e.logger.Error("failed to persist snapshot", "version", snap.Version, "error", err)
		}
		if err := e.store.SaveTrainingRun(ctx, snap.Version, len(examples), rejectedRows, snap.Metrics); err != nil {
			e.logger.Error("failed to persist training run", "error", err)
		}
	}
	return snap, nil
}

// RetrainFromFile ingests a training CSV with the strict parser and
// retrains. Rejected rows are logged and counted, never fatal. Ingestion
// progress is journaled so operators can audit what fed the current model.
func (e *Engine) RetrainFromFile(ctx context.Context, path string) (*scoring.Snapshot, error) {
	examples, rowErrs, err := training.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse training data: %w", err)
	}
	for _, re := range rowErrs {
		e.logger.Warn("rejected training row", "path", path, "line", re.Line, "error", re.Err)
	}

	snap, err := e.Retrain(ctx, examples, len(rowErrs))
	if err != nil {
		return nil, err
	}

	run, stateErr := training.LoadState()
	if stateErr != nil {
		e.logger.Warn("cannot load training run state", "error", stateErr)
		return snap, nil
	}
	if !run.IsProcessed(path) {
		run.MarkProcessed(path)
	}
	run.RowsAccepted += len(examples)
	run.RowsRejected += len(rowErrs)
	run.SnapshotVersion = snap.Version
	for _, re := range rowErrs {
		run.AddError(re.Error())
	}
	if err := run.Save(); err != nil {
		e.logger.Warn("cannot save training run state", "error", err)
	}
	return snap, nil
}

// ModelSnapshot exposes the currently loaded snapshot for status reporting.
func (e *Engine) ModelSnapshot() *scoring.Snapshot {
	return e.model.Snapshot()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
