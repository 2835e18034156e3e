package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"securityvibe.com/trainer/internal/trainer/generator"
	"securityvibe.com/trainer/internal/trainer/reports"
	"securityvibe.com/trainer/internal/trainer/simulation"
	"securityvibe.com/trainer/internal/trainer/storage"
)

// stubGenerator returns canned content for handler tests.
type stubGenerator struct{}

func (stubGenerator) Summarize(_ context.Context, topic string) (string, error) {
	return "threats about " + topic, nil
}

func (stubGenerator) GenerateScenario(_ context.Context, _ string) (*generator.Scenario, error) {
	return &generator.Scenario{Subject: "Account Alert", Body: `<a href="{{TRACKING_LINK}}">Verify</a>`}, nil
}

func (stubGenerator) GenerateReport(_ context.Context, topic string) (string, error) {
	return "<h2>" + topic + "</h2>", nil
}

// stubSender accepts everything without touching the network.
type stubSender struct{}

func (stubSender) Send(_ context.Context, _, _, _, _ string) error { return nil }

// setupTestHandlers creates handlers with a temporary database for testing.
func setupTestHandlers(t *testing.T) (*Handlers, *storage.DB) {
	t.Helper()

	ctx := context.Background()

	cfg := storage.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "trainer-test.db")

	db, err := storage.New(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reportStore := reports.NewStore(t.TempDir(), zerolog.Nop())

	sim := simulation.New(simulation.Config{BaseURL: "https://trainer.example.com"},
		db, stubGenerator{}, stubSender{}, reportStore, zerolog.Nop())

	return New(db, sim, "test", time.Now(), zerolog.Nop()), db
}

func TestLaunchSimulation_Success(t *testing.T) {
	handlers, db := setupTestHandlers(t)

	body, _ := json.Marshal(map[string]string{
		"recipient": "target@example.com",
		"category":  "Finance",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/simulations", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handlers.LaunchSimulation(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	trackingID, _ := resp["tracking_id"].(string)
	if trackingID == "" {
		t.Error("Expected a tracking_id in the response")
	}
	if resp["subject"] != "Account Alert" {
		t.Errorf("Expected generated subject, got %v", resp["subject"])
	}

	records := db.ListRecords(context.Background(), "")
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].TrackingID != trackingID {
		t.Errorf("Ledger tracking id %s does not match response %s", records[0].TrackingID, trackingID)
	}
	if records[0].Status != storage.StatusSent {
		t.Errorf("Expected status Sent, got %s", records[0].Status)
	}
}

func TestLaunchSimulation_InvalidBody(t *testing.T) {
	handlers, _ := setupTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/simulations", strings.NewReader("not json"))
	w := httptest.NewRecorder()

	handlers.LaunchSimulation(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestLaunchSimulation_ValidationFailed(t *testing.T) {
	handlers, db := setupTestHandlers(t)

	tests := []map[string]string{
		{"recipient": "not-an-email", "category": "Finance"},
		{"recipient": "target@example.com"},
		{"category": "Finance"},
	}

	for _, tt := range tests {
		body, _ := json.Marshal(tt)
		req := httptest.NewRequest(http.MethodPost, "/api/simulations", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handlers.LaunchSimulation(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status %d for %v, got %d", http.StatusBadRequest, tt, w.Code)
		}
	}

	if got := len(db.ListRecords(context.Background(), "")); got != 0 {
		t.Errorf("Rejected requests must not create records, got %d", got)
	}
}

func TestTrackClick_KnownID(t *testing.T) {
	handlers, db := setupTestHandlers(t)
	ctx := context.Background()

	if err := db.AppendRecord(ctx, "a@x.com", "Finance", "T1"); err != nil {
		t.Fatalf("Failed to append record: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/track?clicked=true&tracking_id=T1&category=Finance", nil)
	w := httptest.NewRecorder()

	handlers.TrackClick(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "phishing simulation") {
		t.Error("Expected the training page in the response")
	}

	records := db.ListRecords(ctx, "")
	if records[0].Status != storage.StatusClicked {
		t.Errorf("Expected status Clicked, got %s", records[0].Status)
	}

	// A second click still renders the page and counts nothing extra.
	w = httptest.NewRecorder()
	handlers.TrackClick(w, httptest.NewRequest(http.MethodGet, "/track?clicked=true&tracking_id=T1", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d on repeat click, got %d", http.StatusOK, w.Code)
	}

	counts := db.AggregateClicks(ctx)
	if counts["Finance"] != 1 {
		t.Errorf("Expected 1 Finance click, got %d", counts["Finance"])
	}
}

func TestTrackClick_UnknownID_StillRendersPage(t *testing.T) {
	handlers, db := setupTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/track?clicked=true&tracking_id=forged&category=Travel", nil)
	w := httptest.NewRecorder()

	handlers.TrackClick(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "Report Pending") {
		t.Error("Expected the pending-report notice for an unknown id")
	}
	if got := len(db.ListRecords(context.Background(), "")); got != 0 {
		t.Errorf("A forged click must not create records, got %d", got)
	}
}

func TestGetHistory_RecipientFilter(t *testing.T) {
	handlers, db := setupTestHandlers(t)
	ctx := context.Background()

	_ = db.AppendRecord(ctx, "a@x.com", "Finance", "T1")
	_ = db.AppendRecord(ctx, "b@x.com", "Travel", "T2")

	req := httptest.NewRequest(http.MethodGet, "/api/simulations?recipient=a@x.com", nil)
	w := httptest.NewRecorder()

	handlers.GetHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp struct {
		Records []struct {
			Recipient string `json:"recipient"`
		} `json:"records"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Total != 1 || len(resp.Records) != 1 {
		t.Fatalf("Expected 1 record, got total=%d len=%d", resp.Total, len(resp.Records))
	}
	if resp.Records[0].Recipient != "a@x.com" {
		t.Errorf("Expected a@x.com, got %s", resp.Records[0].Recipient)
	}
}

func TestGetVulnerabilityReport(t *testing.T) {
	handlers, db := setupTestHandlers(t)
	ctx := context.Background()

	_ = db.AppendRecord(ctx, "a@x.com", "Finance", "T1")
	_ = db.AppendRecord(ctx, "b@x.com", "Finance", "T2")
	_, _ = db.RecordClick(ctx, "T1")
	_, _ = db.RecordClick(ctx, "T2")

	req := httptest.NewRequest(http.MethodGet, "/api/report", nil)
	w := httptest.NewRecorder()

	handlers.GetVulnerabilityReport(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp struct {
		Categories  map[string]int `json:"categories"`
		TotalClicks int            `json:"total_clicks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Categories["Finance"] != 2 || resp.TotalClicks != 2 {
		t.Errorf("Expected 2 Finance clicks, got %+v", resp)
	}
}

func TestGetBriefing(t *testing.T) {
	handlers, _ := setupTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/briefing?topic=Shopping", nil)
	w := httptest.NewRecorder()

	handlers.GetBriefing(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "Shopping") {
		t.Error("Expected the topic to appear in the briefing")
	}
}

func TestHealthAndReady(t *testing.T) {
	handlers, _ := setupTestHandlers(t)

	w := httptest.NewRecorder()
	handlers.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected health status %d, got %d", http.StatusOK, w.Code)
	}

	w = httptest.NewRecorder()
	handlers.ReadyCheck(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected ready status %d, got %d", http.StatusOK, w.Code)
	}
}
