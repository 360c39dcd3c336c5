package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string

	// Scoring tunables. Treat as configuration defaults to be validated
	// against held-out historical outcomes, not fixed law.
	BlendAlpha          float64
	ConfidenceThreshold float64
	TopSignals          int

	ArchiveSize      int
	TrainingDataPath string

	HubSpotAPIKey     string
	SalesforceAPIKey  string
	SalesforceBaseURL string
	CRMMockMode       bool
}

func Load() Config {
	return Config{
		Port:        envInt("SIBYL_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		BlendAlpha:          envFloat("SIBYL_BLEND_ALPHA", 0.4),
		ConfidenceThreshold: envFloat("SIBYL_CONFIDENCE_THRESHOLD", 0.55),
		TopSignals:          envInt("SIBYL_TOP_SIGNALS", 5),

		ArchiveSize:      envInt("SIBYL_ARCHIVE_SIZE", 1024),
		TrainingDataPath: envStr("SIBYL_TRAINING_DATA", ""),

		HubSpotAPIKey:     envStr("HUBSPOT_API_KEY", ""),
		SalesforceAPIKey:  envStr("SALESFORCE_API_KEY", ""),
		SalesforceBaseURL: envStr("SALESFORCE_BASE_URL", ""),
		CRMMockMode:       envBool("CRM_MOCK_MODE", true),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
