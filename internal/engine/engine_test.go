package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/signalworks/sibyl/internal/assemble"
	"github.com/signalworks/sibyl/internal/feature"
	"github.com/signalworks/sibyl/internal/scoring"
	"github.com/signalworks/sibyl/internal/state"
	"github.com/signalworks/sibyl/internal/store"
)

// recordingPersister captures engine writes in memory.
type recordingPersister struct {
	qualifications []savedQualification
	snapshots      []*scoring.Snapshot
	runs           int
}

type savedQualification struct {
	conversationID string
	turn           int
	output         assemble.Output
}

func (p *recordingPersister) SaveQualification(ctx context.Context, conversationID string, turn int, out assemble.Output, snapshotVersion string, degraded bool) (uuid.UUID, error) {
	p.qualifications = append(p.qualifications, savedQualification{conversationID, turn, out})
	return uuid.New(), nil
}

func (p *recordingPersister) SaveSnapshot(ctx context.Context, snap *scoring.Snapshot) error {
	p.snapshots = append(p.snapshots, snap)
	return nil
}

func (p *recordingPersister) SaveTrainingRun(ctx context.Context, version string, samples, rejectedRows int, m scoring.EvalMetrics) error {
	p.runs++
	return nil
}

func (p *recordingPersister) QualificationHistory(ctx context.Context, conversationID string) ([]store.QualificationRecord, error) {
	return nil, nil
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	logger := slog.Default()
	st, err := state.NewStore(16, logger)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	model := scoring.NewModel(scoring.DefaultConfig(), logger)
	return New(st, model, scoring.NewTrainer(logger), nil, nil, nil, logger)
}

// snapshotRewarding builds a snapshot whose buy_soon logit rewards the named
// features, the way a model trained on converted deals does.
func snapshotRewarding(feats ...string) *scoring.Snapshot {
	names := feature.Names()
	scale := make([]float64, len(names))
	var weights [4][]float64
	for c := range weights {
		weights[c] = make([]float64, len(names))
	}
	for i, n := range names {
		scale[i] = 1
		for _, f := range feats {
			if n == f {
				weights[0][i] = 3
			}
		}
	}
	return &scoring.Snapshot{
		Version:       "snap-test",
		SchemaVersion: feature.SchemaVersion,
		FeatureNames:  names,
		Scale:         scale,
		Weights:       weights,
	}
}

func TestProcessTurn_QualifiedBuyer(t *testing.T) {
	e := testEngine(t)
	e.model.Swap(snapshotRewarding(feature.BudgetMentioned, feature.TimelineSpecified))

	q := e.ProcessTurn(context.Background(), "conv-1",
		"We're a 50-person sales team, budget is $100k, need this in 1 month", nil)

	if q.Output.Intent != "buy_soon" {
		t.Errorf("intent = %q, want buy_soon", q.Output.Intent)
	}
	if q.Output.Score < 70 {
		t.Errorf("score = %d, want >= 70", q.Output.Score)
	}
	if q.Output.RecommendedAction != "schedule_demo" {
		t.Errorf("action = %q, want schedule_demo", q.Output.RecommendedAction)
	}
	for _, want := range []string{"mid_market", "high_priority"} {
		found := false
		for _, tag := range q.Output.CRMTags {
			if tag == want {
				found = true
			}
		}
		if !found {
			t.Errorf("tags = %v, want %q present", q.Output.CRMTags, want)
		}
	}
	if q.SnapshotVersion != "snap-test" {
		t.Errorf("snapshot version = %q", q.SnapshotVersion)
	}
	if q.Degraded {
		t.Error("qualification should not be degraded with a loaded snapshot")
	}
}

func TestProcessTurn_NoSignals(t *testing.T) {
	e := testEngine(t)

	q := e.ProcessTurn(context.Background(), "conv-1", "hello there", nil)

	if q.Output.Score != 0 {
		t.Errorf("score = %d, want 0", q.Output.Score)
	}
	if q.Output.Intent != "not_interested" {
		t.Errorf("intent = %q, want not_interested", q.Output.Intent)
	}
	if len(q.Output.TopSignals) != 0 {
		t.Errorf("top signals = %v, want empty", q.Output.TopSignals)
	}
	if q.Output.RecommendedAction != "disqualify" {
		t.Errorf("action = %q, want disqualify", q.Output.RecommendedAction)
	}
}

func TestProcessTurn_RepeatedTurnIsStable(t *testing.T) {
	e := testEngine(t)
	text := "our budget is around $50k"

	first := e.ProcessTurn(context.Background(), "conv-1", text, nil)
	second := e.ProcessTurn(context.Background(), "conv-1", text, nil)

	if second.Turn != 2 {
		t.Errorf("turn = %d, want 2", second.Turn)
	}
	if first.Output.Score != second.Output.Score {
		t.Errorf("repeating the same turn moved the score %d -> %d",
			first.Output.Score, second.Output.Score)
	}
	if len(second.Output.TopSignals) != len(first.Output.TopSignals) {
		t.Errorf("repeating the same turn duplicated signals: %v", second.Output.TopSignals)
	}
}

func TestProcessTurn_RepeatedTurnIsStableUnderCounterWeights(t *testing.T) {
	e := testEngine(t)
	// Urgency and pricing counters feed the vector; a snapshot that weights
	// them must not see repeated identical turns as stronger evidence.
	e.model.Swap(snapshotRewarding(feature.UrgencyCount, feature.PricingQuestions))
	text := "we need this urgently, what does the pricing look like"

	first := e.ProcessTurn(context.Background(), "conv-1", text, nil)
	second := e.ProcessTurn(context.Background(), "conv-1", text, nil)

	if first.Output.Score != second.Output.Score {
		t.Errorf("repeating the identical turn moved the score %d -> %d",
			first.Output.Score, second.Output.Score)
	}
	if first.Output.Intent != second.Output.Intent {
		t.Errorf("repeating the identical turn moved the intent %s -> %s",
			first.Output.Intent, second.Output.Intent)
	}
}

func TestProcessTurn_AccumulatesAcrossTurns(t *testing.T) {
	e := testEngine(t)

	first := e.ProcessTurn(context.Background(), "conv-1", "we have a budget", nil)
	second := e.ProcessTurn(context.Background(), "conv-1", "and we need it next month", nil)

	if second.Output.Score <= first.Output.Score {
		t.Errorf("new signal did not raise the score: %d -> %d",
			first.Output.Score, second.Output.Score)
	}

	conv, ok := e.Conversation("conv-1")
	if !ok {
		t.Fatal("conversation missing")
	}
	if !conv.HasSignal(feature.BudgetMentioned) || !conv.HasSignal(feature.TimelineSpecified) {
		t.Errorf("accumulated signals = %v", conv.Signals)
	}
}

func TestEndConversation(t *testing.T) {
	e := testEngine(t)

	e.ProcessTurn(context.Background(), "conv-1", "we have a budget", nil)
	q, err := e.EndConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("EndConversation: %v", err)
	}
	if q.Turn != 1 {
		t.Errorf("final turn = %d, want 1", q.Turn)
	}

	// The archived record stays readable.
	if _, ok := e.Conversation("conv-1"); !ok {
		t.Error("archived conversation should remain readable")
	}

	if _, err := e.EndConversation(context.Background(), "conv-1"); err == nil {
		t.Error("ending twice should fail")
	}
}

func TestEndConversation_PersistsFinalQualification(t *testing.T) {
	logger := slog.Default()
	st, err := state.NewStore(16, logger)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	p := &recordingPersister{}
	e := New(st, scoring.NewModel(scoring.DefaultConfig(), logger),
		scoring.NewTrainer(logger), p, nil, nil, logger)

	e.ProcessTurn(context.Background(), "conv-1", "we have a budget", nil)
	q, err := e.EndConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("EndConversation: %v", err)
	}

	// One audit row per turn plus the final one at end.
	if len(p.qualifications) != 2 {
		t.Fatalf("persisted qualifications = %d, want 2", len(p.qualifications))
	}
	last := p.qualifications[len(p.qualifications)-1]
	if last.conversationID != "conv-1" || last.turn != q.Turn {
		t.Errorf("final row = %+v, want conv-1 turn %d", last, q.Turn)
	}
	if last.output.Intent != q.Output.Intent || last.output.Score != q.Output.Score {
		t.Errorf("final row output = %+v, want %+v", last.output, q.Output)
	}
}

func TestEndConversation_Unknown(t *testing.T) {
	e := testEngine(t)
	if _, err := e.EndConversation(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown conversation")
	}
}

func TestRetrainFromFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir()) // keep the ingestion journal out of the real home
	e := testEngine(t)

	var b strings.Builder
	b.WriteString("budget_mentioned,demo_requested,intent\n")
	for i := 0; i < 12; i++ {
		b.WriteString("1,1,buy_soon\n")
		b.WriteString("0,0,not_interested\n")
	}
	b.WriteString("1,banana,buy_soon\n")

	path := filepath.Join(t.TempDir(), "history.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, err := e.RetrainFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("RetrainFromFile: %v", err)
	}
	if e.ModelSnapshot() != snap {
		t.Error("retrained snapshot was not installed")
	}
	if snap.Metrics.Samples == 0 {
		t.Error("snapshot missing holdout evaluation")
	}
}

func TestRetrainFromFile_MissingFile(t *testing.T) {
	e := testEngine(t)
	if _, err := e.RetrainFromFile(context.Background(), "/does/not/exist.csv"); err == nil {
		t.Error("expected error for missing training file")
	}
}

func TestHandleTurnEvent(t *testing.T) {
	e := testEngine(t)

	e.HandleTurnEvent("leads.conversation.turn",
		[]byte(`{"conversation_id":"conv-1","turn_text":"we have a budget"}`))

	conv, ok := e.Conversation("conv-1")
	if !ok {
		t.Fatal("turn event did not create conversation state")
	}
	if !conv.HasSignal(feature.BudgetMentioned) {
		t.Errorf("signals = %v", conv.Signals)
	}
}

func TestHandleTurnEvent_Malformed(t *testing.T) {
	e := testEngine(t)

	// Neither call may panic or create state.
	e.HandleTurnEvent("leads.conversation.turn", []byte(`{not json`))
	e.HandleTurnEvent("leads.conversation.turn", []byte(`{"turn_text":"missing id"}`))

	if _, ok := e.Conversation(""); ok {
		t.Error("malformed event created state")
	}
}

func TestHandleConversationEnded(t *testing.T) {
	e := testEngine(t)

	e.HandleTurnEvent("leads.conversation.turn",
		[]byte(`{"conversation_id":"conv-1","turn_text":"we have a budget"}`))
	e.HandleConversationEnded("leads.conversation.ended",
		[]byte(`{"conversation_id":"conv-1"}`))

	// Unknown end is logged, never panics.
	e.HandleConversationEnded("leads.conversation.ended",
		[]byte(`{"conversation_id":"ghost"}`))
}
