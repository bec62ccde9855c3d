package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	ServerPort    string `yaml:"server_port"`
	UserAgent     string `yaml:"user_agent"`
	Timeout       string `yaml:"timeout"`
	SettingsPath  string `yaml:"settings_path"`
	DatabaseURL   string `yaml:"database_url"`
	RedisURL      string `yaml:"redis_url"`
	PlayerCommand string `yaml:"player_command"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	PlaylistURL   string `yaml:"playlist_url"`
	GuideURL      string `yaml:"guide_url"`
}

// LoadFromFile loads config from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	c := &Config{
		ServerPort:    f.ServerPort,
		UserAgent:     f.UserAgent,
		SettingsPath:  f.SettingsPath,
		DatabaseURL:   f.DatabaseURL,
		RedisURL:      f.RedisURL,
		PlayerCommand: f.PlayerCommand,
		LogLevel:      f.LogLevel,
		LogFormat:     f.LogFormat,
		PlaylistURL:   f.PlaylistURL,
		GuideURL:      f.GuideURL,
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = d
	}
	c.applyDefaults()
	return c, nil
}
