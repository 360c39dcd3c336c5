package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/signalworks/sibyl/internal/engine"
	"github.com/signalworks/sibyl/internal/scoring"
	"github.com/signalworks/sibyl/internal/state"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.Default()
	st, err := state.NewStore(16, logger)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	eng := engine.New(st, scoring.NewModel(scoring.DefaultConfig(), logger),
		scoring.NewTrainer(logger), nil, nil, nil, logger)
	return NewServer(0, eng, logger)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, testServer(t), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestStatus(t *testing.T) {
	w := do(t, testServer(t), http.MethodGet, "/api/v1/sibyl/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["agent"] != "sibyl" || resp["status"] != "serving" {
		t.Errorf("resp = %v", resp)
	}
	if resp["snapshot"] != "none" {
		t.Errorf("snapshot = %q, want none before training", resp["snapshot"])
	}
}

func TestProcessTurn(t *testing.T) {
	s := testServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/conversations/conv-1/turns",
		`{"turn_text":"we have a budget and need this next month"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var q engine.Qualification
	if err := json.Unmarshal(w.Body.Bytes(), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if q.ConversationID != "conv-1" || q.Turn != 1 {
		t.Errorf("qualification = %+v", q)
	}
	if q.Output.Score <= 0 {
		t.Errorf("score = %d, want > 0", q.Output.Score)
	}
	if !q.Degraded {
		t.Error("expected degraded result without a trained snapshot")
	}
}

func TestProcessTurn_BadBody(t *testing.T) {
	w := do(t, testServer(t), http.MethodPost, "/api/v1/conversations/conv-1/turns", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestConversationSummary(t *testing.T) {
	s := testServer(t)

	do(t, s, http.MethodPost, "/api/v1/conversations/conv-1/turns",
		`{"turn_text":"Hi, I'm Sarah from TechCorp, we have a budget"}`)

	w := do(t, s, http.MethodGet, "/api/v1/conversations/conv-1/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		ConversationID  string   `json:"conversation_id"`
		Turns           int      `json:"turns"`
		CollectedFields []string `json:"collected_fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ConversationID != "conv-1" || resp.Turns != 1 {
		t.Errorf("summary = %+v", resp)
	}
	for _, want := range []string{"name", "company"} {
		found := false
		for _, f := range resp.CollectedFields {
			if f == want {
				found = true
			}
		}
		if !found {
			t.Errorf("collected fields = %v, want %q present", resp.CollectedFields, want)
		}
	}
}

func TestConversationSummary_Unknown(t *testing.T) {
	w := do(t, testServer(t), http.MethodGet, "/api/v1/conversations/ghost/", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestEndConversation(t *testing.T) {
	s := testServer(t)

	do(t, s, http.MethodPost, "/api/v1/conversations/conv-1/turns", `{"turn_text":"hello"}`)

	w := do(t, s, http.MethodPost, "/api/v1/conversations/conv-1/end", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = do(t, s, http.MethodPost, "/api/v1/conversations/conv-1/end", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second end status = %d, want 404", w.Code)
	}
}

func TestSyncToCRM_NoConnectors(t *testing.T) {
	s := testServer(t)
	do(t, s, http.MethodPost, "/api/v1/conversations/conv-1/turns", `{"turn_text":"hello"}`)

	w := do(t, s, http.MethodPost, "/api/v1/conversations/conv-1/sync", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without connectors", w.Code)
	}
}

func TestConversationHistory_NoDatabase(t *testing.T) {
	w := do(t, testServer(t), http.MethodGet, "/api/v1/conversations/conv-1/history", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without persistence", w.Code)
	}
}

func TestModelInfo_NotLoaded(t *testing.T) {
	w := do(t, testServer(t), http.MethodGet, "/api/v1/model", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["loaded"] != false || resp["degraded"] != true {
		t.Errorf("resp = %v", resp)
	}
}

func TestRetrain_MissingPath(t *testing.T) {
	w := do(t, testServer(t), http.MethodPost, "/api/v1/model/retrain", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRetrain_UnreadableFile(t *testing.T) {
	w := do(t, testServer(t), http.MethodPost, "/api/v1/model/retrain",
		`{"path":"/does/not/exist.csv"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := do(t, testServer(t), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "sibyl_") {
		t.Error("expected sibyl metrics in exposition")
	}
}
