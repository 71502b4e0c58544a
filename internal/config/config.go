// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Bot         BotConfig         `mapstructure:"bot"`
	Log         LogConfig         `mapstructure:"log"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Whitelist   WhitelistConfig   `mapstructure:"whitelist"`
	Challenge   ChallengeConfig   `mapstructure:"challenge"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Battle      BattleConfig      `mapstructure:"battle"`
	Health      HealthConfig      `mapstructure:"health"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StorageConfig selects where documents are persisted.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
// Only used when storage.driver is "postgres".
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

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// ChallengeConfig holds challenge lifecycle settings.
type ChallengeConfig struct {
	ExpiryHours   int           `mapstructure:"expiry_hours"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MaxWager      int64         `mapstructure:"max_wager"`
}

// LeaderboardConfig holds weekly reset settings.
type LeaderboardConfig struct {
	ResetDay string `mapstructure:"reset_day"`
	Timezone string `mapstructure:"timezone"`
}

// BattleConfig holds the pacing of battle playback.
type BattleConfig struct {
	PhaseDelayMin  time.Duration `mapstructure:"phase_delay_min"`
	PhaseDelayMax  time.Duration `mapstructure:"phase_delay_max"`
	RevealDelayMin time.Duration `mapstructure:"reveal_delay_min"`
	RevealDelayMax time.Duration `mapstructure:"reveal_delay_max"`
}

// HealthConfig holds the health endpoint settings. An empty Addr disables it.
type HealthConfig struct {
	Addr string `mapstructure:"addr"`
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

	// e.g., BOT_TOKEN, STORAGE_DIR, CHALLENGE_EXPIRY_HOURS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional - env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.dir", "data")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "battlebot")
	v.SetDefault("database.name", "battlebot")
	v.SetDefault("database.pool_size", 4)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("challenge.expiry_hours", 24)
	v.SetDefault("challenge.sweep_interval", "1h")
	v.SetDefault("challenge.max_wager", 1000)

	v.SetDefault("leaderboard.reset_day", "Monday")
	v.SetDefault("leaderboard.timezone", "Local")

	v.SetDefault("battle.phase_delay_min", "2s")
	v.SetDefault("battle.phase_delay_max", "4s")
	v.SetDefault("battle.reveal_delay_min", "3s")
	v.SetDefault("battle.reveal_delay_max", "5s")

	v.SetDefault("health.addr", ":8080")
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverFile, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := c.ResetWeekday(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Challenge.ExpiryHours <= 0 {
		return fmt.Errorf("challenge.expiry_hours must be positive, got %d", c.Challenge.ExpiryHours)
	}
	if c.Challenge.SweepInterval <= 0 {
		return fmt.Errorf("challenge.sweep_interval must be positive, got %s", c.Challenge.SweepInterval)
	}
	if c.Challenge.MaxWager < 0 {
		return fmt.Errorf("challenge.max_wager must not be negative, got %d", c.Challenge.MaxWager)
	}
	return nil
}

// ResetWeekday parses leaderboard.reset_day (case-insensitive, full English name).
func (c *Config) ResetWeekday() (time.Weekday, error) {
	return ParseWeekday(c.Leaderboard.ResetDay)
}

// Location loads leaderboard.timezone. Empty and "Local" mean the process zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Leaderboard.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Leaderboard.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid leaderboard.timezone: %w", err)
	}
	return loc, nil
}

// ChallengeExpiry returns the challenge time-to-live.
func (c *Config) ChallengeExpiry() time.Duration {
	return time.Duration(c.Challenge.ExpiryHours) * time.Hour
}

// ParseWeekday parses a full English weekday name.
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return time.Monday, fmt.Errorf("invalid weekday %q", name)
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
