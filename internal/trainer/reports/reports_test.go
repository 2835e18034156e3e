package reports_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securityvibe.com/trainer/internal/trainer/reports"
)

func TestStore_SaveAndLoad(t *testing.T) {
	store := reports.NewStore(t.TempDir(), zerolog.Nop())

	require.NoError(t, store.Save("abc-123", "<h2>Threat Analysis</h2>"))

	html, ok := store.Load("abc-123")
	assert.True(t, ok)
	assert.Equal(t, "<h2>Threat Analysis</h2>", html)
}

func TestStore_LoadMissing(t *testing.T) {
	store := reports.NewStore(t.TempDir(), zerolog.Nop())

	_, ok := store.Load("never-saved")
	assert.False(t, ok)
}

func TestStore_RejectsUnsafeTrackingID(t *testing.T) {
	store := reports.NewStore(t.TempDir(), zerolog.Nop())

	assert.Error(t, store.Save("../../etc/passwd", "x"))

	_, ok := store.Load("../secrets")
	assert.False(t, ok)
}

func TestRenderPage_InjectsReport(t *testing.T) {
	page := reports.RenderPage("<h2>Finance Threats</h2>")
	assert.Contains(t, page, "<h2>Finance Threats</h2>")
	assert.NotContains(t, page, "{{THREAT_REPORT}}")
	assert.Contains(t, page, "phishing simulation")
}

func TestRenderPage_EmptyReportShowsPendingNotice(t *testing.T) {
	page := reports.RenderPage("")
	assert.Contains(t, page, "Report Pending")
}
