package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/signalworks/sibyl/internal/scoring"
)

// SaveSnapshot persists a trained model snapshot. Snapshots are immutable:
// each retraining inserts a new version, nothing is updated in place.
func (s *Store) SaveSnapshot(ctx context.Context, snap *scoring.Snapshot) error {
	params, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO model_snapshots (id, version, schema_version, params, accuracy, precision_macro, recall_macro, f1_macro, trained_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New(), snap.Version, snap.SchemaVersion, params,
		snap.Metrics.Accuracy, snap.Metrics.Precision, snap.Metrics.Recall, snap.Metrics.F1,
		snap.TrainedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot loads the most recently trained snapshot, or nil if none
// has been saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*scoring.Snapshot, error) {
	var params []byte
	err := s.pool.QueryRow(ctx, `
		SELECT params
		FROM model_snapshots
		ORDER BY trained_at DESC
		LIMIT 1`,
	).Scan(&params)
	if err != nil {
		return nil, err
	}

	var snap scoring.Snapshot
	if err := json.Unmarshal(params, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot params: %w", err)
	}
	return &snap, nil
}

// SaveTrainingRun records the outcome of one offline training pass.
func (s *Store) SaveTrainingRun(ctx context.Context, version string, samples, rejectedRows int, m scoring.EvalMetrics) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO training_runs (id, snapshot_version, samples, rejected_rows, accuracy, f1_macro, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		uuid.New(), version, samples, rejectedRows, m.Accuracy, m.F1,
	)
	if err != nil {
		return fmt.Errorf("insert training run: %w", err)
	}
	return nil
}
