package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPPort        int
	SMTPPort        int
	DBPath          string
	SMTPAuthEnabled bool
	SMTPUsername    string
	SMTPPassword    string
	RulesPath       string
	NoiseMarkers    []string
	Workers         int
	LogLevel        slog.Level
}

func Load() Config {
	return Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 3025),
		SMTPPort:        getEnvInt("SMTP_PORT", 2025),
		DBPath:          getEnvString("DB_PATH", ""),
		SMTPAuthEnabled: getEnvBool("SMTP_AUTH_ENABLED", false),
		SMTPUsername:    getEnvString("SMTP_USERNAME", "bounces"),
		SMTPPassword:    getEnvString("SMTP_PASSWORD", "bounces"),
		RulesPath:       getEnvString("RULES_PATH", ""),
		NoiseMarkers:    getEnvList("NOISE_MARKERS", nil),
		Workers:         getEnvInt("WORKERS", 1),
		LogLevel:        getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvList splits a "|"-separated value; markers may contain commas and spaces.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	result := []string{}
	for _, part := range strings.Split(value, "|") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	if value, ok := os.LookupEnv(key); ok {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err == nil {
			return level
		}
	}
	return fallback
}
