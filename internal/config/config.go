// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
//
// The server and the bot binaries share one config surface: the server
// needs the Daily API credentials, the bot needs the OpenAI and Google
// Calendar settings. Each main validates the subset it depends on.
type Config struct {
	Port string

	// Daily room provider.
	DailyAPIKey        string
	DailyAPIURL        string
	DailySampleRoomURL string
	TokenExpirySecs    int

	// Assistant process.
	BotCommand string
	BotName    string
	Language   string

	// Dialogue engine.
	OpenAIAPIKey string
	OpenAIModel  string

	// Google Calendar credential cache.
	GoogleOAuthFile string
	GoogleTokenFile string
	CalendarID      string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DailyAPIKey:        getEnv("DAILY_API_KEY", ""),
		DailyAPIURL:        getEnv("DAILY_API_URL", "https://api.daily.co/v1"),
		DailySampleRoomURL: getEnv("DAILY_SAMPLE_ROOM_URL", ""),
		TokenExpirySecs:    getEnvInt("TOKEN_EXPIRY_SECONDS", 3600),
		BotCommand:         getEnv("BOT_COMMAND", "voicecal-bot"),
		BotName:            getEnv("BOT_NAME", "Google Calendar Bot"),
		Language:           getEnv("BOT_LANGUAGE", "fr"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o"),
		GoogleOAuthFile:    getEnv("GOOGLE_OAUTH_FILE", "google_oauth.json"),
		GoogleTokenFile:    getEnv("GOOGLE_TOKEN_FILE", "token.json"),
		CalendarID:         getEnv("CALENDAR_ID", "primary"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields every binary depends on.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DailyAPIURL == "" {
		return fmt.Errorf("DAILY_API_URL cannot be empty")
	}
	if c.TokenExpirySecs <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY_SECONDS must be > 0")
	}
	if c.BotCommand == "" {
		return fmt.Errorf("BOT_COMMAND cannot be empty")
	}
	return nil
}

// ValidateServer checks the fields the session server requires.
func (c *Config) ValidateServer() error {
	if c.DailyAPIKey == "" {
		return fmt.Errorf("DAILY_API_KEY is required")
	}
	return nil
}

// ValidateBot checks the fields the assistant process requires.
func (c *Config) ValidateBot() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.GoogleOAuthFile == "" {
		return fmt.Errorf("GOOGLE_OAUTH_FILE cannot be empty")
	}
	if c.GoogleTokenFile == "" {
		return fmt.Errorf("GOOGLE_TOKEN_FILE cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
