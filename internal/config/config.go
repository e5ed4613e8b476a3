// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"lendingdesk/internal/circulation"
)

// Config is the server's runtime configuration.
type Config struct {
	Port                      string
	ServiceName               string
	OTLPEndpoint              string
	SeedCatalog               string
	RegistrationRatePerMinute int
	Policy                    circulation.Policy
}

// Load reads the configuration from the environment, falling back to defaults
// for unset variables. Set but malformed values are an error.
func Load() (*Config, error) {
	policy := circulation.DefaultPolicy()
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		ServiceName:  getEnv("SERVICE_NAME", "lending-desk"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SeedCatalog:  os.Getenv("SEED_CATALOG"),
	}

	var err error
	if policy.LoanPeriodDays, err = intEnv("LOAN_PERIOD_DAYS", policy.LoanPeriodDays); err != nil {
		return nil, err
	}
	if policy.FinePerDay, err = floatEnv("FINE_RATE_PER_DAY", policy.FinePerDay); err != nil {
		return nil, err
	}
	if policy.LoanLimit, err = intEnv("LOAN_LIMIT", policy.LoanLimit); err != nil {
		return nil, err
	}
	if policy.FineCeiling, err = floatEnv("FINE_CEILING", policy.FineCeiling); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lending policy: %w", err)
	}
	cfg.Policy = policy

	if cfg.RegistrationRatePerMinute, err = intEnv("REGISTRATION_RATE_PER_MINUTE", 5); err != nil {
		return nil, err
	}
	if cfg.RegistrationRatePerMinute < 1 {
		return nil, fmt.Errorf("REGISTRATION_RATE_PER_MINUTE must be at least 1, got %d", cfg.RegistrationRatePerMinute)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func floatEnv(key string, defaultValue float64) (float64, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return v, nil
}
