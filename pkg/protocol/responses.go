// Package protocol defines the HTTP API request and response types.
package protocol

import "time"

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// LaunchSimulationResponse is returned after a simulation is dispatched.
type LaunchSimulationResponse struct {
	// Tracking id correlating the sent email with a later click
	TrackingID string `json:"tracking_id"`

	// Target email address
	Recipient string `json:"recipient"`

	// Topic the content was generated for
	Category string `json:"category"`

	// Generated email subject line
	Subject string `json:"subject"`
}

// TrainingRecordInfo is one entry in the training history.
type TrainingRecordInfo struct {
	TrackingID string     `json:"tracking_id"`
	Recipient  string     `json:"recipient"`
	Category   string     `json:"category"`
	Status     string     `json:"status"`
	SentAt     time.Time  `json:"sent_at"`
	ClickedAt  *time.Time `json:"clicked_at,omitempty"`
}

// HistoryResponse lists training records.
type HistoryResponse struct {
	Records []TrainingRecordInfo `json:"records"`
	Total   int                  `json:"total"`
}

// VulnerabilityReportResponse maps categories to click counts.
type VulnerabilityReportResponse struct {
	Categories  map[string]int `json:"categories"`
	TotalClicks int            `json:"total_clicks"`
}

// BriefingResponse carries a generated threat summary.
type BriefingResponse struct {
	Topic   string `json:"topic"`
	Summary string `json:"summary"`
}

// BounceInfo is one observed delivery failure.
type BounceInfo struct {
	ID         string    `json:"id"`
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// BounceListResponse lists observed delivery failures.
type BounceListResponse struct {
	Bounces []BounceInfo `json:"bounces"`
	Total   int          `json:"total"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status   string    `json:"status"`
	Version  string    `json:"version"`
	Uptime   string    `json:"uptime"`
	Database string    `json:"database"`
	Time     time.Time `json:"time"`
}
