// Package generator produces simulation content with a generative-AI
// provider: threat summaries, phishing scenarios, and vulnerability reports.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TrackingLinkPlaceholder is the token the model is instructed to use for
// every call-to-action URL. The mailer substitutes the real tracking link.
const TrackingLinkPlaceholder = "{{TRACKING_LINK}}"

// Scenario is a generated phishing email.
type Scenario struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Generator is the capability set the trainer needs from a content provider.
// One implementation exists per backing API; the rest of the system never
// depends on which one is configured.
type Generator interface {
	// Summarize returns a short Markdown briefing of recent threats
	// related to the topic.
	Summarize(ctx context.Context, topic string) (string, error)

	// GenerateScenario turns threat information into a phishing email with
	// the tracking-link placeholder embedded in the body HTML.
	GenerateScenario(ctx context.Context, threatInfo string) (*Scenario, error)

	// GenerateReport returns an HTML fragment explaining the threat, its
	// impact, and how to avoid it.
	GenerateReport(ctx context.Context, topic string) (string, error)
}

// Config holds generator configuration.
type Config struct {
	// Provider selects the backing API: anthropic, openai, or gemini.
	Provider string

	// APIKey authenticates against the provider.
	APIKey string

	// Model overrides the provider default when non-empty.
	Model string

	// MaxTokens caps the response length.
	MaxTokens int

	// Language the generated content should be written in.
	Language string

	// Timeout for a single API call.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:  "anthropic",
		MaxTokens: 1500,
		Language:  "English",
		Timeout:   60 * time.Second,
	}
}

// New creates a generator for the configured provider.
func New(cfg Config, logger zerolog.Logger) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if cfg.Language == "" {
		cfg.Language = DefaultConfig().Language
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	logger = logger.With().Str("component", "generator").Str("provider", cfg.Provider).Logger()

	var c completer
	switch cfg.Provider {
	case "anthropic":
		c = newAnthropicClient(cfg, logger)
	case "openai":
		c = newOpenAIClient(cfg, logger)
	case "gemini":
		c = newGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}

	return &generator{
		completer: c,
		language:  cfg.Language,
		logger:    logger,
	}, nil
}

// ErrNotConfigured is returned by the disabled generator.
var ErrNotConfigured = errors.New("content generation is not configured")

// Disabled returns a Generator whose operations fail with ErrNotConfigured.
// Click attribution and reporting keep working without a provider API key;
// only content generation is unavailable.
func Disabled() Generator {
	return disabledGenerator{}
}

type disabledGenerator struct{}

func (disabledGenerator) Summarize(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

func (disabledGenerator) GenerateScenario(context.Context, string) (*Scenario, error) {
	return nil, ErrNotConfigured
}

func (disabledGenerator) GenerateReport(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

// completer is the single primitive each provider client implements.
// jsonOutput asks the provider for structured JSON where the API supports
// a dedicated mode; the prompt carries the JSON instructions either way.
type completer interface {
	complete(ctx context.Context, prompt string, jsonOutput bool) (string, error)
}

// generator implements Generator on top of a provider completer.
type generator struct {
	completer
	language string
	logger   zerolog.Logger
}

func (g *generator) Summarize(ctx context.Context, topic string) (string, error) {
	out, err := g.complete(ctx, summarizePrompt(topic, g.language), false)
	if err != nil {
		return "", fmt.Errorf("failed to summarize threats: %w", err)
	}
	return stripCodeFences(out), nil
}

func (g *generator) GenerateScenario(ctx context.Context, threatInfo string) (*Scenario, error) {
	out, err := g.complete(ctx, scenarioPrompt(threatInfo, g.language), true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate scenario: %w", err)
	}

	jsonStr := extractJSON(stripCodeFences(out))
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON found in model response")
	}

	var scenario Scenario
	if err := json.Unmarshal([]byte(jsonStr), &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}

	if scenario.Subject == "" || scenario.Body == "" {
		return nil, fmt.Errorf("model returned an incomplete scenario")
	}

	g.logger.Debug().Str("subject", scenario.Subject).Msg("Scenario generated")
	return &scenario, nil
}

func (g *generator) GenerateReport(ctx context.Context, topic string) (string, error) {
	out, err := g.complete(ctx, reportPrompt(topic, g.language), false)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}
	return stripCodeFences(out), nil
}

// stripCodeFences removes a surrounding markdown code fence, which models
// emit even when told not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)

	for _, prefix := range []string{"```json", "```html", "```"} {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}

// extractJSON finds the first brace-balanced JSON object in a string.
func extractJSON(s string) string {
	start := -1
	depth := 0

	for i, c := range s {
		if c == '{' {
			if start == -1 {
				start = i
			}
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}

	return ""
}
