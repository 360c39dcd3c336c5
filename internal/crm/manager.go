package crm

import (
	"context"
	"log/slog"
)

// Manager fans a lead out to every configured connector. Sync is explicit
// and never sits on the scoring hot path.
type Manager struct {
	connectors []Connector
	logger     *slog.Logger
}

func NewManager(logger *slog.Logger, connectors ...Connector) *Manager {
	return &Manager{connectors: connectors, logger: logger}
}

// SyncLead creates the lead in every connector and returns per-CRM results.
// A failure in one CRM never blocks the others.
func (m *Manager) SyncLead(ctx context.Context, lead Lead) map[string]SyncResult {
	results := make(map[string]SyncResult, len(m.connectors))
	for _, c := range m.connectors {
		res, err := c.CreateLead(ctx, lead)
		if err != nil {
			m.logger.Error("crm sync failed", "crm", c.Name(), "error", err)
		}
		results[c.Name()] = res
	}
	return results
}
