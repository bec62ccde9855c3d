package config

import (
	"os"
	"time"
)

// Config holds application configuration.
type Config struct {
	ServerPort    string        `yaml:"server_port" env:"SERVER_PORT"`
	UserAgent     string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	Timeout       time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT"`
	SettingsPath  string        `yaml:"settings_path" env:"SETTINGS_PATH"`
	DatabaseURL   string        `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL      string        `yaml:"redis_url" env:"REDIS_URL"`
	PlayerCommand string        `yaml:"player_command" env:"PLAYER_COMMAND"`
	LogLevel      string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat     string        `yaml:"log_format" env:"LOG_FORMAT"`
	// PlaylistURL and GuideURL, when set, override the stored settings at startup.
	PlaylistURL string `yaml:"playlist_url" env:"PLAYLIST_URL"`
	GuideURL    string `yaml:"guide_url" env:"GUIDE_URL"`
}

const (
	defaultServerPort   = "8080"
	defaultUserAgent    = "PopcornGuide/1.0"
	defaultTimeout      = 20 * time.Second
	defaultSettingsPath = "settings.yaml"
)

// Load builds config from environment variables, after loading .env.local
// and .env from the working directory or the executable's directory.
// Every key is optional.
func Load() (*Config, error) {
	loadEnvFiles()
	c := &Config{
		ServerPort:    os.Getenv("SERVER_PORT"),
		UserAgent:     os.Getenv("FETCHER_USER_AGENT"),
		SettingsPath:  os.Getenv("SETTINGS_PATH"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		PlayerCommand: os.Getenv("PLAYER_COMMAND"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		LogFormat:     os.Getenv("LOG_FORMAT"),
		PlaylistURL:   os.Getenv("PLAYLIST_URL"),
		GuideURL:      os.Getenv("GUIDE_URL"),
	}
	if s := os.Getenv("FETCHER_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.Timeout = d
		}
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.ServerPort == "" {
		c.ServerPort = defaultServerPort
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.SettingsPath == "" {
		c.SettingsPath = defaultSettingsPath
	}
}
