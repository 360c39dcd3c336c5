package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/signalworks/sibyl/internal/assemble"
)

// SaveQualification appends one turn's qualification to the audit trail.
// Every row records the snapshot version that produced it, so any historical
// score can be reproduced.
func (s *Store) SaveQualification(ctx context.Context, conversationID string, turn int, out assemble.Output, snapshotVersion string, degraded bool) (uuid.UUID, error) {
	lead, err := json.Marshal(out.Lead)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal lead: %w", err)
	}

	id := uuid.New()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO qualifications (id, conversation_id, turn, lead, intent, score, top_signals, recommended_action, explain, crm_tags, snapshot_version, degraded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())`,
		id, conversationID, turn, lead, out.Intent, out.Score,
		out.TopSignals, out.RecommendedAction, out.Explain, out.CRMTags,
		snapshotVersion, degraded,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert qualification: %w", err)
	}
	return id, nil
}

// QualificationRecord is one audit-trail row.
type QualificationRecord struct {
	ID                uuid.UUID
	ConversationID    string
	Turn              int
	Intent            string
	Score             int
	RecommendedAction string
	SnapshotVersion   string
	Degraded          bool
}

// QualificationHistory returns the audit trail for a conversation, oldest
// first.
func (s *Store) QualificationHistory(ctx context.Context, conversationID string) ([]QualificationRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, turn, intent, score, recommended_action, snapshot_version, degraded
		FROM qualifications
		WHERE conversation_id = $1
		ORDER BY turn ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query qualifications: %w", err)
	}
	defer rows.Close()

	var out []QualificationRecord
	for rows.Next() {
		var r QualificationRecord
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.Turn, &r.Intent, &r.Score, &r.RecommendedAction, &r.SnapshotVersion, &r.Degraded); err != nil {
			return nil, fmt.Errorf("scan qualification: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
