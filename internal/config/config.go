// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Session   SessionConfig   `mapstructure:"session"`
	Games     GamesConfig     `mapstructure:"games"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// ReferenceConfig holds deletion-reference encoding configuration.
// The salt must stay stable for the lifetime of the database: changing it
// invalidates every reference already handed out to players.
type ReferenceConfig struct {
	Salt      string `mapstructure:"salt"`
	MinLength int    `mapstructure:"min_length"`
}

// SessionConfig holds game-recording session configuration.
type SessionConfig struct {
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

// GamesConfig holds per-mode recording policy configuration.
type GamesConfig struct {
	Standard GameModeConfig `mapstructure:"standard"`
	Custom   GameModeConfig `mapstructure:"custom"`
}

// GameModeConfig holds the policy knobs for one recording mode.
type GameModeConfig struct {
	MinPlayers             int  `mapstructure:"min_players"`
	EnforceMinPlayers      bool `mapstructure:"enforce_min_players"`
	AllowSelfElimination   bool `mapstructure:"allow_self_elimination"`
	AllowWinnerElimination bool `mapstructure:"allow_winner_elimination"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, DATABASE_HOST, REFERENCE_SALT.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Reference.Salt == "" {
		return nil, fmt.Errorf("reference.salt is required (REFERENCE_SALT)")
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "podbot")
	v.SetDefault("database.name", "podbot")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Deletion reference defaults
	v.SetDefault("reference.min_length", 6)

	// Session defaults
	v.SetDefault("session.idle_timeout", "5m")
	v.SetDefault("session.reap_interval", "1m")

	// Recording policy defaults. Custom mode historically skipped the
	// minimum player check; keep that as the default but configurable.
	v.SetDefault("games.standard.min_players", 2)
	v.SetDefault("games.standard.enforce_min_players", true)
	v.SetDefault("games.standard.allow_self_elimination", false)
	v.SetDefault("games.standard.allow_winner_elimination", false)
	v.SetDefault("games.custom.min_players", 2)
	v.SetDefault("games.custom.enforce_min_players", false)
	v.SetDefault("games.custom.allow_self_elimination", true)
	v.SetDefault("games.custom.allow_winner_elimination", true)
}
