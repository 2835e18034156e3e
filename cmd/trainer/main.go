// Package main is the entry point for the Security Vibe trainer.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"securityvibe.com/trainer/internal/trainer/api"
	"securityvibe.com/trainer/internal/trainer/generator"
	"securityvibe.com/trainer/internal/trainer/mailer"
	"securityvibe.com/trainer/internal/trainer/reports"
	"securityvibe.com/trainer/internal/trainer/simulation"
	"securityvibe.com/trainer/internal/trainer/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Config holds the complete trainer configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Bounce    BounceConfig    `yaml:"bounce"`
	Generator GeneratorConfig `yaml:"generator"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Reports   ReportsConfig   `yaml:"reports"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	EnableWAL    bool   `yaml:"enable_wal"`
}

// SMTPConfig holds outgoing mail settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// BounceConfig holds IMAP bounce monitor settings.
type BounceConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Server       string        `yaml:"server"`
	Port         int           `yaml:"port"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	UseTLS       bool          `yaml:"use_tls"`
	Mailbox      string        `yaml:"mailbox"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// GeneratorConfig holds content generation settings.
type GeneratorConfig struct {
	Provider  string        `yaml:"provider"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Language  string        `yaml:"language"`
	Timeout   time.Duration `yaml:"timeout"`
}

// TrackingConfig holds tracking link settings.
type TrackingConfig struct {
	// BaseURL is the externally reachable address embedded in emails
	BaseURL string `yaml:"base_url"`
}

// ReportsConfig holds vulnerability report storage settings.
type ReportsConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Database: DatabaseConfig{
			Path:         "/data/trainer.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			EnableWAL:    true,
		},
		SMTP: SMTPConfig{
			Host: "localhost",
			Port: 587,
		},
		Bounce: BounceConfig{
			Enabled:      false,
			UseTLS:       true,
			Mailbox:      "INBOX",
			PollInterval: 5 * time.Minute,
		},
		Generator: GeneratorConfig{
			Provider:  "anthropic",
			MaxTokens: 1500,
			Language:  "English",
			Timeout:   60 * time.Second,
		},
		Tracking: TrackingConfig{
			BaseURL: "http://localhost:8080",
		},
		Reports: ReportsConfig{
			Dir: "/data/reports",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Security Vibe Trainer\n")
		fmt.Printf("  Version:    %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	applyEnvOverrides(&cfg)

	logger := initLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Msg("Starting Security Vibe Trainer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := storage.New(ctx, storage.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Hour,
		EnableWAL:       cfg.Database.EnableWAL,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Initialize content generator
	var gen generator.Generator
	if cfg.Generator.APIKey == "" {
		logger.Warn().Msg("No generator API key configured, content generation is disabled")
		gen = generator.Disabled()
	} else {
		gen, err = generator.New(generator.Config{
			Provider:  cfg.Generator.Provider,
			APIKey:    cfg.Generator.APIKey,
			Model:     cfg.Generator.Model,
			MaxTokens: cfg.Generator.MaxTokens,
			Language:  cfg.Generator.Language,
			Timeout:   cfg.Generator.Timeout,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize generator")
		}
	}

	// Initialize mail sender
	sender := mailer.NewSMTPSender(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, logger)

	// Initialize report store
	reportStore := reports.NewStore(cfg.Reports.Dir, logger)

	// Initialize simulation service
	sim := simulation.New(simulation.Config{BaseURL: cfg.Tracking.BaseURL},
		db, gen, sender, reportStore, logger)

	// Initialize bounce monitor (if enabled)
	if cfg.Bounce.Enabled {
		monitor := mailer.NewBounceMonitor(mailer.BounceConfig{
			Enabled:      cfg.Bounce.Enabled,
			Server:       cfg.Bounce.Server,
			Port:         cfg.Bounce.Port,
			Username:     cfg.Bounce.Username,
			Password:     cfg.Bounce.Password,
			UseTLS:       cfg.Bounce.UseTLS,
			Mailbox:      cfg.Bounce.Mailbox,
			PollInterval: cfg.Bounce.PollInterval,
		}, db, logger)
		monitor.Start(ctx)
		defer monitor.Stop()
		logger.Info().Str("server", cfg.Bounce.Server).Msg("Bounce monitor enabled")
	}

	// Initialize API server
	server := api.New(api.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, api.Dependencies{
		DB:         db,
		Simulation: sim,
		Version:    Version,
		StartTime:  time.Now(),
	}, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("base_url", cfg.Tracking.BaseURL).
		Msg("Trainer is ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
	}

	logger.Info().Msg("Trainer stopped")
}

func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}

	if v := os.Getenv("GENERATOR_PROVIDER"); v != "" {
		cfg.Generator.Provider = v
	}
	if v := os.Getenv("GENERATOR_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}

	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("IMAP_PASSWORD"); v != "" {
		cfg.Bounce.Password = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func initLogger(cfg LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return logger
}
