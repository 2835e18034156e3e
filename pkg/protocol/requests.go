// Package protocol defines the HTTP API request and response types.
package protocol

// LaunchSimulationRequest starts a phishing simulation against one target.
type LaunchSimulationRequest struct {
	// Target email address
	Recipient string `json:"recipient" validate:"required,email"`

	// Topic/interest label used for content generation and report bucketing
	Category string `json:"category" validate:"required"`
}
