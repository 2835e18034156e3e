// Package reports stores the per-send vulnerability reports and renders the
// training page shown after a click.
package reports

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "embed"

	"github.com/rs/zerolog"
)

//go:embed page.html
var trainingPage string

// reportPlaceholder marks where the vulnerability report is injected into
// the training page.
const reportPlaceholder = "{{THREAT_REPORT}}"

// PendingNotice is rendered when no report file exists for a tracking id.
// Reports are generated at send time only; the click path never calls the
// content provider.
const PendingNotice = `<h2>Report Pending</h2><p>The vulnerability report for this simulation is not available yet. Check the dashboard later for the full analysis.</p>`

// Tracking ids are UUIDs; anything else is rejected before it touches the
// filesystem.
var safeTrackingID = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// Store persists generated vulnerability reports as one HTML file per
// tracking id.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// NewStore creates a report store rooted at dir.
func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger.With().Str("component", "reports").Logger(),
	}
}

// Save writes the report for a tracking id.
func (s *Store) Save(trackingID, html string) error {
	if !safeTrackingID.MatchString(trackingID) {
		return fmt.Errorf("invalid tracking id: %q", trackingID)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}

	path := filepath.Join(s.dir, trackingID+".html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	s.logger.Debug().Str("tracking_id", trackingID).Msg("Report saved")
	return nil
}

// Load returns the report for a tracking id, or false when none exists.
func (s *Store) Load(trackingID string) (string, bool) {
	if !safeTrackingID.MatchString(trackingID) {
		return "", false
	}

	data, err := os.ReadFile(filepath.Join(s.dir, trackingID+".html"))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("tracking_id", trackingID).Msg("Failed to read report")
		}
		return "", false
	}

	return string(data), true
}

// RenderPage injects a report fragment into the training page.
func RenderPage(reportHTML string) string {
	if strings.TrimSpace(reportHTML) == "" {
		reportHTML = PendingNotice
	}
	return strings.Replace(trainingPage, reportPlaceholder, reportHTML, 1)
}
