// Package config holds the server settings, their defaults and the optional
// YAML file they are read from.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"Hollowmere/internal/game"
)

const DefaultPort = 1234

// Config collects every tunable the process reads at startup.
type Config struct {
	Port     int    `yaml:"port"`
	Accounts string `yaml:"accounts"`
	World    string `yaml:"world"`
	Redis    Redis  `yaml:"redis"`

	MaxAttempts  int           `yaml:"max_attempts"`
	RateLimit    int           `yaml:"rate_limit"`
	AuthDelay    time.Duration `yaml:"auth_delay"`
	WaitTimeout  time.Duration `yaml:"wait_timeout"`
	Mailbox      int           `yaml:"mailbox"`
	Lockout      time.Duration `yaml:"lockout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	Charset         string `yaml:"charset"`
	ShutdownMessage string `yaml:"shutdown_message"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

// Redis selects the Redis account store. An empty Addr keeps accounts in the
// JSON file.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Port:            DefaultPort,
		Accounts:        game.DefaultAccountsPath,
		World:           game.DefaultWorldPath,
		Redis:           Redis{Key: game.DefaultRedisAccountsKey},
		MaxAttempts:     3,
		RateLimit:       10,
		AuthDelay:       time.Second,
		WaitTimeout:     2 * time.Second,
		Mailbox:         256,
		Lockout:         30 * time.Second,
		WriteTimeout:    30 * time.Second,
		DrainTimeout:    2 * time.Second,
		Charset:         "utf-8",
		ShutdownMessage: "The server is shutting down. Goodbye.",
		LogLevel:        "info",
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.Accounts) == "" && c.Redis.Addr == "" {
		errs = append(errs, errors.New("accounts path must not be empty"))
	}
	if strings.TrimSpace(c.World) == "" {
		errs = append(errs, errors.New("world path must not be empty"))
	}
	if c.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max_attempts must be positive"))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, errors.New("rate_limit must be positive"))
	}
	if c.Mailbox <= 0 {
		errs = append(errs, errors.New("mailbox must be positive"))
	}
	if c.WaitTimeout <= 0 {
		errs = append(errs, errors.New("wait_timeout must be positive"))
	}
	if c.AuthDelay < 0 || c.Lockout < 0 || c.WriteTimeout < 0 || c.DrainTimeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if _, err := game.ParseCharset(c.Charset); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Addr is the TCP listen address for the configured port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
