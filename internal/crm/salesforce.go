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

const salesforceAPIVersion = "v58.0"

type Salesforce struct {
	apiKey  string
	baseURL string
	client  *http.Client
	mock    bool
	logger  *slog.Logger
}

func NewSalesforce(apiKey, baseURL string, mock bool, logger *slog.Logger) *Salesforce {
	if apiKey == "" || baseURL == "" {
		mock = true
	}
	return &Salesforce{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		mock:    mock,
		logger:  logger,
	}
}

func (s *Salesforce) Name() string { return "salesforce" }

type salesforceResponse struct {
	ID string `json:"id"`
}

func (s *Salesforce) CreateLead(ctx context.Context, lead Lead) (SyncResult, error) {
	if s.mock {
		id := "mock_salesforce_" + uuid.NewString()
		s.logger.Info("mock salesforce lead created", "lead_id", id, "email", lead.Email)
		return SyncResult{Success: true, LeadID: id, Message: "mock lead created"}, nil
	}

	first, last := splitName(lead.Name)
	if last == "" {
		last = "Unknown"
	}
	payload := map[string]any{
		"FirstName":  first,
		"LastName":   last,
		"Email":      lead.Email,
		"Company":    lead.Company,
		"Title":      lead.Role,
		"Industry":   lead.Industry,
		"LeadSource": "Sibyl Qualification",
		"Status":     "New",
	}

	var resp salesforceResponse
	path := "/services/data/" + salesforceAPIVersion + "/sobjects/Lead"
	if err := s.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return SyncResult{Success: false, Message: err.Error()}, err
	}

	s.logger.Info("salesforce lead created", "lead_id", resp.ID)
	return SyncResult{Success: true, LeadID: resp.ID, Message: "lead created"}, nil
}

func (s *Salesforce) UpdateLead(ctx context.Context, leadID string, lead Lead) (SyncResult, error) {
	if s.mock {
		s.logger.Info("mock salesforce lead updated", "lead_id", leadID, "score", lead.Score)
		return SyncResult{Success: true, LeadID: leadID, Message: "mock lead updated"}, nil
	}

	payload := map[string]any{
		"Status":        strings.ToUpper(lead.Intent),
		"Lead_Score__c": lead.Score,
	}
	if lead.Company != "" {
		payload["Company"] = lead.Company
	}

	path := "/services/data/" + salesforceAPIVersion + "/sobjects/Lead/" + leadID
	if err := s.do(ctx, http.MethodPatch, path, payload, nil); err != nil {
		return SyncResult{Success: false, Message: err.Error()}, err
	}
	return SyncResult{Success: true, LeadID: leadID, Message: "lead updated"}, nil
}

func (s *Salesforce) do(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("salesforce request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("salesforce returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
