package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const hubspotBaseURL = "https://api.hubapi.com"

type HubSpot struct {
	apiKey  string
	baseURL string
	client  *http.Client
	mock    bool
	logger  *slog.Logger
}

func NewHubSpot(apiKey string, mock bool, logger *slog.Logger) *HubSpot {
	if apiKey == "" {
		mock = true
	}
	return &HubSpot{
		apiKey:  apiKey,
		baseURL: hubspotBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		mock:    mock,
		logger:  logger,
	}
}

func (h *HubSpot) Name() string { return "hubspot" }

type hubspotContact struct {
	Properties map[string]any `json:"properties"`
}

type hubspotResponse struct {
	ID string `json:"id"`
}

func (h *HubSpot) CreateLead(ctx context.Context, lead Lead) (SyncResult, error) {
	if h.mock {
		id := "mock_hubspot_" + uuid.NewString()
		h.logger.Info("mock hubspot lead created", "lead_id", id, "email", lead.Email)
		return SyncResult{Success: true, LeadID: id, Message: "mock lead created"}, nil
	}

	first, last := splitName(lead.Name)
	payload := hubspotContact{Properties: map[string]any{
		"email":          lead.Email,
		"firstname":      first,
		"lastname":       last,
		"company":        lead.Company,
		"jobtitle":       lead.Role,
		"industry":       lead.Industry,
		"lifecyclestage": "lead",
		"hs_lead_score":  lead.Score,
	}}

	var resp hubspotResponse
	if err := h.do(ctx, http.MethodPost, "/crm/v3/objects/contacts", payload, &resp); err != nil {
		return SyncResult{Success: false, Message: err.Error()}, err
	}

	h.logger.Info("hubspot lead created", "lead_id", resp.ID)
	return SyncResult{Success: true, LeadID: resp.ID, Message: "lead created"}, nil
}

func (h *HubSpot) UpdateLead(ctx context.Context, leadID string, lead Lead) (SyncResult, error) {
	if h.mock {
		h.logger.Info("mock hubspot lead updated", "lead_id", leadID, "score", lead.Score)
		return SyncResult{Success: true, LeadID: leadID, Message: "mock lead updated"}, nil
	}

	payload := hubspotContact{Properties: map[string]any{
		"hs_lead_score": lead.Score,
		"lead_status":   strings.ToUpper(lead.Intent),
	}}
	if lead.Company != "" {
		payload.Properties["company"] = lead.Company
	}

	if err := h.do(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+leadID, payload, nil); err != nil {
		return SyncResult{Success: false, Message: err.Error()}, err
	}
	return SyncResult{Success: true, LeadID: leadID, Message: "lead updated"}, nil
}

func (h *HubSpot) do(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("hubspot request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("hubspot returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
