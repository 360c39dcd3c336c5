package crm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type fakeConnector struct {
	name    string
	fail    bool
	created []Lead
}

func (f *fakeConnector) Name() string { return f.name }

func (f *fakeConnector) CreateLead(ctx context.Context, lead Lead) (SyncResult, error) {
	if f.fail {
		return SyncResult{Success: false, Message: "boom"}, errors.New("boom")
	}
	f.created = append(f.created, lead)
	return SyncResult{Success: true, LeadID: "fake-1", Message: "created"}, nil
}

func (f *fakeConnector) UpdateLead(ctx context.Context, leadID string, lead Lead) (SyncResult, error) {
	return SyncResult{Success: true, LeadID: leadID}, nil
}

func TestManager_SyncLeadFanOut(t *testing.T) {
	good := &fakeConnector{name: "good"}
	bad := &fakeConnector{name: "bad", fail: true}
	m := NewManager(slog.Default(), good, bad)

	lead := Lead{Name: "Sarah Chen", Email: "sarah@techcorp.com", Score: 78}
	results := m.SyncLead(context.Background(), lead)

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if !results["good"].Success {
		t.Errorf("good connector result = %+v", results["good"])
	}
	// One connector failing never blocks the other.
	if results["bad"].Success {
		t.Errorf("bad connector result = %+v", results["bad"])
	}
	if len(good.created) != 1 || good.created[0].Email != "sarah@techcorp.com" {
		t.Errorf("created = %v", good.created)
	}
}

func TestHubSpot_MockMode(t *testing.T) {
	h := NewHubSpot("", false, slog.Default())

	res, err := h.CreateLead(context.Background(), Lead{Email: "x@y.com"})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if !res.Success {
		t.Errorf("result = %+v", res)
	}
	if !strings.HasPrefix(res.LeadID, "mock_hubspot_") {
		t.Errorf("lead id = %q", res.LeadID)
	}

	upd, err := h.UpdateLead(context.Background(), res.LeadID, Lead{Score: 90})
	if err != nil || !upd.Success {
		t.Errorf("UpdateLead = %+v, %v", upd, err)
	}
}

func TestSalesforce_ForcesMockWithoutCredentials(t *testing.T) {
	s := NewSalesforce("key-only", "", false, slog.Default())

	res, err := s.CreateLead(context.Background(), Lead{Email: "x@y.com"})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if !strings.HasPrefix(res.LeadID, "mock_salesforce_") {
		t.Errorf("lead id = %q, want mock without a base URL", res.LeadID)
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in          string
		first, last string
	}{
		{"Sarah Chen", "Sarah", "Chen"},
		{"Sarah", "Sarah", ""},
		{"Mary Jane Watson", "Mary", "Jane Watson"},
		{"", "", ""},
	}

	for _, tt := range tests {
		first, last := splitName(tt.in)
		if first != tt.first || last != tt.last {
			t.Errorf("splitName(%q) = %q, %q, want %q, %q", tt.in, first, last, tt.first, tt.last)
		}
	}
}
