// Package crm holds the boundary clients that push qualified leads into
// external CRM systems. Connectors without an API key run in mock mode, so
// the engine always works in development.
package crm

import "context"

// Lead is the flattened payload pushed to CRMs.
type Lead struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Company  string   `json:"company"`
	Role     string   `json:"role"`
	Industry string   `json:"industry"`
	Intent   string   `json:"intent"`
	Score    int      `json:"score"`
	Tags     []string `json:"tags"`
}

// SyncResult is the per-CRM outcome of a sync.
type SyncResult struct {
	Success bool   `json:"success"`
	LeadID  string `json:"lead_id,omitempty"`
	Message string `json:"message"`
}

// Connector is one CRM integration.
type Connector interface {
	Name() string
	CreateLead(ctx context.Context, lead Lead) (SyncResult, error)
	UpdateLead(ctx context.Context, leadID string, lead Lead) (SyncResult, error)
}
