package simulation_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securityvibe.com/trainer/internal/trainer/generator"
	"securityvibe.com/trainer/internal/trainer/reports"
	"securityvibe.com/trainer/internal/trainer/simulation"
	"securityvibe.com/trainer/internal/trainer/storage"
)

// fakeGenerator returns canned content.
type fakeGenerator struct {
	reportErr error
}

func (g *fakeGenerator) Summarize(_ context.Context, topic string) (string, error) {
	return "threats about " + topic, nil
}

func (g *fakeGenerator) GenerateScenario(_ context.Context, _ string) (*generator.Scenario, error) {
	return &generator.Scenario{
		Subject: "Account Alert",
		Body:    `<a href="{{TRACKING_LINK}}">Verify</a>`,
	}, nil
}

func (g *fakeGenerator) GenerateReport(_ context.Context, topic string) (string, error) {
	if g.reportErr != nil {
		return "", g.reportErr
	}
	return "<h2>" + topic + "</h2>", nil
}

// fakeSender records sends and can be told to fail.
type fakeSender struct {
	sent []sentEmail
	err  error
}

type sentEmail struct {
	to, subject, body, link string
}

func (s *fakeSender) Send(_ context.Context, to, subject, htmlBody, trackingLink string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{to, subject, htmlBody, trackingLink})
	return nil
}

func newTestService(t *testing.T, gen *fakeGenerator, sender *fakeSender) (*simulation.Service, *storage.DB, *reports.Store) {
	t.Helper()

	cfg := storage.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "trainer-test.db")

	db, err := storage.New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := reports.NewStore(t.TempDir(), zerolog.Nop())

	svc := simulation.New(simulation.Config{BaseURL: "https://trainer.example.com"},
		db, gen, sender, store, zerolog.Nop())

	return svc, db, store
}

func TestLaunch_AppendsSentRecord(t *testing.T) {
	sender := &fakeSender{}
	svc, db, store := newTestService(t, &fakeGenerator{}, sender)
	ctx := context.Background()

	result, err := svc.Launch(ctx, "a@x.com", "Finance")
	require.NoError(t, err)
	assert.NotEmpty(t, result.TrackingID)
	assert.Equal(t, "Account Alert", result.Subject)

	// The email went out with the tracking link.
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a@x.com", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].link, result.TrackingID)
	assert.True(t, strings.HasPrefix(sender.sent[0].link, "https://trainer.example.com/track?"))

	// The ledger has exactly one Sent record.
	records := db.ListRecords(ctx, "")
	require.Len(t, records, 1)
	assert.Equal(t, result.TrackingID, records[0].TrackingID)
	assert.Equal(t, storage.StatusSent, records[0].Status)

	// The report was pre-generated.
	report, ok := store.Load(result.TrackingID)
	assert.True(t, ok)
	assert.Contains(t, report, "Finance")
}

func TestLaunch_SendFailure_NoGhostRecord(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	svc, db, _ := newTestService(t, &fakeGenerator{}, sender)
	ctx := context.Background()

	_, err := svc.Launch(ctx, "a@x.com", "Finance")
	require.Error(t, err)

	assert.Empty(t, db.ListRecords(ctx, ""), "a failed send must not leave a Sent record")
}

func TestLaunch_ReportFailure_DoesNotAbort(t *testing.T) {
	sender := &fakeSender{}
	svc, db, store := newTestService(t, &fakeGenerator{reportErr: errors.New("quota exceeded")}, sender)
	ctx := context.Background()

	result, err := svc.Launch(ctx, "a@x.com", "Travel")
	require.NoError(t, err)

	assert.Len(t, db.ListRecords(ctx, ""), 1)

	_, ok := store.Load(result.TrackingID)
	assert.False(t, ok)
}

func TestHandleClick_FullFlow(t *testing.T) {
	sender := &fakeSender{}
	svc, _, _ := newTestService(t, &fakeGenerator{}, sender)
	ctx := context.Background()

	result, err := svc.Launch(ctx, "a@x.com", "Finance")
	require.NoError(t, err)

	clicked, report := svc.HandleClick(ctx, result.TrackingID)
	assert.True(t, clicked)
	assert.Contains(t, report, "Finance")

	// Second click is a no-op but still gets the report.
	clicked, report = svc.HandleClick(ctx, result.TrackingID)
	assert.False(t, clicked)
	assert.Contains(t, report, "Finance")

	assert.Equal(t, map[string]int{"Finance": 1}, svc.VulnerabilityReport(ctx))
}

func TestHandleClick_UnknownOrEmptyID(t *testing.T) {
	svc, db, _ := newTestService(t, &fakeGenerator{}, &fakeSender{})
	ctx := context.Background()

	clicked, report := svc.HandleClick(ctx, "")
	assert.False(t, clicked)
	assert.Empty(t, report)

	clicked, _ = svc.HandleClick(ctx, "forged-id")
	assert.False(t, clicked)

	assert.Empty(t, db.ListRecords(ctx, ""))
}

func TestHistory_FiltersByRecipient(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGenerator{}, &fakeSender{})
	ctx := context.Background()

	_, err := svc.Launch(ctx, "a@x.com", "Finance")
	require.NoError(t, err)
	_, err = svc.Launch(ctx, "b@x.com", "Travel")
	require.NoError(t, err)

	assert.Len(t, svc.History(ctx, ""), 2)
	assert.Len(t, svc.History(ctx, "a@x.com"), 1)
	assert.Empty(t, svc.History(ctx, "c@x.com"))
}

func TestBriefing(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGenerator{}, &fakeSender{})

	summary, err := svc.Briefing(context.Background(), "General Security Trends")
	require.NoError(t, err)
	assert.Contains(t, summary, "General Security Trends")
}
