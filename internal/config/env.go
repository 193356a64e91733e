package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnv overrides file values with environment variables when they are set.
func (c *Config) ApplyEnv() {
	c.Listen = getEnvOrDefault("TAILORTALK_LISTEN", c.Listen)
	c.Timezone = getEnvOrDefault("TAILORTALK_TIMEZONE", c.Timezone)
	c.TurnTimeout = getEnvDurationOrDefault("TAILORTALK_TURN_TIMEOUT", c.TurnTimeout)

	c.BusinessHours.StartHour = getEnvIntOrDefault("TAILORTALK_BUSINESS_START_HOUR", c.BusinessHours.StartHour)
	c.BusinessHours.EndHour = getEnvIntOrDefault("TAILORTALK_BUSINESS_END_HOUR", c.BusinessHours.EndHour)
	c.BusinessHours.Timezone = getEnvOrDefault("TAILORTALK_BUSINESS_TIMEZONE", c.BusinessHours.Timezone)
	c.BusinessHours.DurationMinutes = getEnvIntOrDefault("TAILORTALK_DEFAULT_DURATION", c.BusinessHours.DurationMinutes)
	c.BusinessHours.MaxCandidates = getEnvIntOrDefault("TAILORTALK_MAX_CANDIDATES", c.BusinessHours.MaxCandidates)
	c.BusinessHours.SearchDays = getEnvIntOrDefault("TAILORTALK_SEARCH_DAYS", c.BusinessHours.SearchDays)
	if days := os.Getenv("TAILORTALK_BUSINESS_WEEKDAYS"); days != "" {
		c.BusinessHours.Weekdays = splitList(days)
	}

	c.Calendar.Backend = getEnvOrDefault("TAILORTALK_CALENDAR_BACKEND", c.Calendar.Backend)
	c.Calendar.CalendarID = getEnvOrDefault("TAILORTALK_CALENDAR_ID", c.Calendar.CalendarID)
	c.Calendar.ICSPath = getEnvOrDefault("TAILORTALK_ICS_PATH", c.Calendar.ICSPath)
	c.Calendar.TokenFile = getEnvOrDefault("GOOGLE_TOKEN_FILE", c.Calendar.TokenFile)
	c.Calendar.ClientID = getEnvOrDefault("GOOGLE_CLIENT_ID", c.Calendar.ClientID)
	c.Calendar.ClientSecret = getEnvOrDefault("GOOGLE_CLIENT_SECRET", c.Calendar.ClientSecret)
	c.Calendar.Timeout = getEnvDurationOrDefault("TAILORTALK_CALENDAR_TIMEOUT", c.Calendar.Timeout)

	if v := getEnvIntOrDefault("TAILORTALK_RETRY_MAX_ATTEMPTS", int(c.Retry.MaxAttempts)); v > 0 {
		c.Retry.MaxAttempts = uint(v)
	}

	c.Oracle.Provider = getEnvOrDefault("TAILORTALK_ORACLE", c.Oracle.Provider)
	c.Oracle.Model = getEnvOrDefault("TAILORTALK_ORACLE_MODEL", c.Oracle.Model)
	c.Oracle.BaseURL = getEnvOrDefault("OPENAI_BASE_URL", c.Oracle.BaseURL)
	c.Oracle.APIKey = getEnvOrDefault("OPENAI_API_KEY", c.Oracle.APIKey)
	c.Oracle.Timeout = getEnvDurationOrDefault("TAILORTALK_ORACLE_TIMEOUT", c.Oracle.Timeout)

	c.Sessions.Store = getEnvOrDefault("TAILORTALK_SESSION_STORE", c.Sessions.Store)
	c.Sessions.TTL = getEnvDurationOrDefault("TAILORTALK_SESSION_TTL", c.Sessions.TTL)
	c.Sessions.Valkey.URL = getEnvOrDefault("VALKEY_URL", c.Sessions.Valkey.URL)
	c.Sessions.Valkey.Password = getEnvOrDefault("VALKEY_PASSWORD", c.Sessions.Valkey.Password)
	c.Sessions.Valkey.KeyPrefix = getEnvOrDefault("VALKEY_KEY_PREFIX", c.Sessions.Valkey.KeyPrefix)
	c.Sessions.Valkey.TLSEnabled = getEnvBoolOrDefault("VALKEY_TLS_ENABLED", c.Sessions.Valkey.TLSEnabled)
	c.Sessions.Valkey.DB = getEnvIntOrDefault("VALKEY_DB", c.Sessions.Valkey.DB)

	c.Ledger.Path = getEnvOrDefault("TAILORTALK_LEDGER_PATH", c.Ledger.Path)

	c.Metrics.Enabled = getEnvBoolOrDefault("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Addr = getEnvOrDefault("METRICS_ADDR", c.Metrics.Addr)
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the boolean value of an environment variable or a default value.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// splitList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
