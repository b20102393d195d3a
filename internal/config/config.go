package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Feed      Feed      `yaml:"feed"`
	Reasoning Reasoning `yaml:"reasoning"`
	Alerts    Alerts    `yaml:"alerts"`
	SMTP      SMTP      `yaml:"smtp"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
}

type Feed struct {
	BaseURL         string   `yaml:"base_url"`
	Language        string   `yaml:"language"`
	Keywords        []string `yaml:"keywords"`
	LookbackMinutes int      `yaml:"lookback_minutes"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	Retries         int      `yaml:"retries"`
	IntervalSeconds int      `yaml:"interval_seconds"`
}

type Reasoning struct {
	APIURL            string `yaml:"api_url"`
	Model             string `yaml:"model"`
	APIKeyEnv         string `yaml:"api_key_env"`
	PromptBudgetBytes int    `yaml:"prompt_budget_bytes"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
}

type Alerts struct {
	IntervalMinutes int `yaml:"interval_minutes"`
}

type SMTP struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	From        string `yaml:"from"`
	PasswordEnv string `yaml:"password_env"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for signalwatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "signalwatch")
}

// DataDir returns the XDG data directory for signalwatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "signalwatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/signalwatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'signalwatch init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Feed: Feed{
			BaseURL:         "http://data.gdeltproject.org/gdeltv3/gqg/",
			Language:        "eng",
			LookbackMinutes: 5,
			TimeoutSeconds:  30,
			Retries:         2,
			IntervalSeconds: 60,
		},
		Reasoning: Reasoning{
			APIURL:            "https://openrouter.ai/api/v1/chat/completions",
			Model:             "tngtech/deepseek-r1t2-chimera:free",
			APIKeyEnv:         "OPENROUTER_KEY",
			PromptBudgetBytes: 130000,
			TimeoutSeconds:    120,
		},
		Alerts: Alerts{IntervalMinutes: 60},
		SMTP: SMTP{
			Host:        "smtp.gmail.com",
			Port:        465,
			PasswordEnv: "SENDER_PASSWORD",
		},
		Server: Server{Port: 7001},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required settings are present. Missing required
// configuration at startup is the only condition that may halt the process.
func (c *Config) Validate() error {
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if len(c.Feed.Keywords) == 0 {
		return fmt.Errorf("feed.keywords must not be empty")
	}
	if c.Reasoning.APIURL == "" {
		return fmt.Errorf("reasoning.api_url is required")
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// FetchTimeout returns the feed fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Feed.TimeoutSeconds) * time.Second
}

// ReasoningTimeout returns the reasoning call timeout as a duration.
func (c *Config) ReasoningTimeout() time.Duration {
	return time.Duration(c.Reasoning.TimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
