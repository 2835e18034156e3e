// Package simulation orchestrates phishing-awareness campaigns: content
// generation, email dispatch, the training ledger, and click attribution.
package simulation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"securityvibe.com/trainer/internal/trainer/generator"
	"securityvibe.com/trainer/internal/trainer/mailer"
	"securityvibe.com/trainer/internal/trainer/reports"
	"securityvibe.com/trainer/internal/trainer/storage"
	"securityvibe.com/trainer/internal/trainer/tracking"
)

// Service coordinates a campaign end to end.
type Service struct {
	db      *storage.DB
	gen     generator.Generator
	sender  mailer.Sender
	reports *reports.Store
	baseURL string
	logger  zerolog.Logger
}

// Config holds simulation settings.
type Config struct {
	// BaseURL is the externally reachable address of this service, used to
	// build tracking links.
	BaseURL string
}

// New creates a simulation service.
func New(cfg Config, db *storage.DB, gen generator.Generator, sender mailer.Sender, reportStore *reports.Store, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		gen:     gen,
		sender:  sender,
		reports: reportStore,
		baseURL: cfg.BaseURL,
		logger:  logger.With().Str("component", "simulation").Logger(),
	}
}

// LaunchResult describes a dispatched simulation.
type LaunchResult struct {
	TrackingID string `json:"tracking_id"`
	Recipient  string `json:"recipient"`
	Category   string `json:"category"`
	Subject    string `json:"subject"`
}

// Launch generates a phishing scenario for the category, emails it to the
// recipient, and appends a Sent record. The record is appended only after a
// successful send, so a send failure leaves no ghost entry. A report
// generation failure is logged but does not abort the campaign.
func (s *Service) Launch(ctx context.Context, recipient, category string) (*LaunchResult, error) {
	s.logger.Info().Str("recipient", recipient).Str("category", category).Msg("Launching simulation")

	threatInfo, err := s.gen.Summarize(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("threat research failed: %w", err)
	}

	scenario, err := s.gen.GenerateScenario(ctx, threatInfo)
	if err != nil {
		return nil, fmt.Errorf("scenario generation failed: %w", err)
	}

	trackingID := tracking.NewID()
	link := tracking.BuildLink(s.baseURL, trackingID, category)

	// Pre-generate the vulnerability report so the click path never needs
	// the content provider.
	if report, err := s.gen.GenerateReport(ctx, category); err != nil {
		s.logger.Warn().Err(err).Str("tracking_id", trackingID).Msg("Report generation failed")
	} else if err := s.reports.Save(trackingID, report); err != nil {
		s.logger.Warn().Err(err).Str("tracking_id", trackingID).Msg("Failed to save report")
	}

	if err := s.sender.Send(ctx, recipient, scenario.Subject, scenario.Body, link); err != nil {
		return nil, fmt.Errorf("email send failed: %w", err)
	}

	if err := s.db.AppendRecord(ctx, recipient, category, trackingID); err != nil {
		// The email is out; losing the record is worse than a noisy error.
		return nil, fmt.Errorf("email sent but ledger append failed: %w", err)
	}

	s.logger.Info().
		Str("tracking_id", trackingID).
		Str("recipient", recipient).
		Str("category", category).
		Msg("Simulation dispatched")

	return &LaunchResult{
		TrackingID: trackingID,
		Recipient:  recipient,
		Category:   category,
		Subject:    scenario.Subject,
	}, nil
}

// HandleClick attributes a click to its record and returns the stored
// vulnerability report. An empty or unknown tracking id is a no-op, and an
// attribution failure never prevents the training page from rendering.
func (s *Service) HandleClick(ctx context.Context, trackingID string) (clicked bool, reportHTML string) {
	if trackingID == "" {
		return false, ""
	}

	clicked, err := s.db.RecordClick(ctx, trackingID)
	if err != nil {
		s.logger.Warn().Err(err).Str("tracking_id", trackingID).Msg("Failed to log click")
	}

	reportHTML, _ = s.reports.Load(trackingID)
	return clicked, reportHTML
}

// History returns training records, optionally filtered by recipient.
func (s *Service) History(ctx context.Context, recipient string) []storage.TrainingRecord {
	return s.db.ListRecords(ctx, recipient)
}

// VulnerabilityReport returns per-category click counts.
func (s *Service) VulnerabilityReport(ctx context.Context) map[string]int {
	return s.db.AggregateClicks(ctx)
}

// Bounces returns observed delivery failures.
func (s *Service) Bounces(ctx context.Context) []storage.BounceEvent {
	return s.db.ListBounces(ctx)
}

// Briefing returns a threat summary for a topic.
func (s *Service) Briefing(ctx context.Context, topic string) (string, error) {
	summary, err := s.gen.Summarize(ctx, topic)
	if err != nil {
		return "", fmt.Errorf("briefing failed: %w", err)
	}
	return summary, nil
}
