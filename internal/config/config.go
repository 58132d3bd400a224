// Package config handles application configuration from an optional YAML
// file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"submit_bot/internal/model"
)

// DefaultPath is read when SUBMIT_BOT_CONFIG is unset. A missing file at the
// default path is not an error.
const DefaultPath = "./config.yaml"

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string        `yaml:"telegram_bot_token"`
	ChannelID        string        `yaml:"channel_id"`
	DatabasePath     string        `yaml:"database_path"`
	LogLevel         string        `yaml:"log_level"`
	AllowedUsers     []int64       `yaml:"allowed_users"`
	BotMode          model.Mode    `yaml:"bot_mode"`
	SessionTimeout   time.Duration `yaml:"session_timeout"`
	SweepSchedule    string        `yaml:"sweep_schedule"`
	MaxTags          int           `yaml:"max_tags"`
	MaxTagLength     int           `yaml:"max_tag_length"`
	AllowedFileTypes string        `yaml:"allowed_file_types"`
	OwnerID          int64         `yaml:"owner_id"`
	NotifyOwner      bool          `yaml:"notify_owner"`
	ShowSubmitter    bool          `yaml:"show_submitter"`
	SendTimeout      time.Duration `yaml:"send_timeout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		DatabasePath:     "./data/bot.db",
		LogLevel:         "info",
		BotMode:          model.ModeMixed,
		SessionTimeout:   5 * time.Minute,
		SweepSchedule:    "@every 1m",
		MaxTags:          10,
		MaxTagLength:     30,
		AllowedFileTypes: "*",
		NotifyOwner:      true,
		ShowSubmitter:    true,
		SendTimeout:      60 * time.Second,
	}
}

// Load reads the YAML file named by SUBMIT_BOT_CONFIG (or DefaultPath),
// applies environment overrides and validates the result.
func Load() (*Config, error) {
	path, required := os.Getenv("SUBMIT_BOT_CONFIG"), true
	if path == "" {
		path, required = DefaultPath, false
	}

	cfg := Default()
	if err := cfg.readFile(path, required); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.ChannelID, "CHANNEL_ID")
	setString(&c.DatabasePath, "DATABASE_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.SweepSchedule, "SWEEP_SCHEDULE")
	setString(&c.AllowedFileTypes, "ALLOWED_FILE_TYPES")

	if raw := os.Getenv("BOT_MODE"); raw != "" {
		c.BotMode = model.Mode(raw)
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		users, err := parseUserIDs(raw)
		if err != nil {
			return err
		}
		c.AllowedUsers = users
	}

	return errors.Join(
		setInt64(&c.OwnerID, "OWNER_ID"),
		setInt(&c.MaxTags, "MAX_TAGS"),
		setInt(&c.MaxTagLength, "MAX_TAG_LENGTH"),
		setBool(&c.NotifyOwner, "NOTIFY_OWNER"),
		setBool(&c.ShowSubmitter, "SHOW_SUBMITTER"),
		setDuration(&c.SessionTimeout, "SESSION_TIMEOUT"),
		setDuration(&c.SendTimeout, "SEND_TIMEOUT"),
	)
}

func (c *Config) validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.ChannelID == "" {
		return fmt.Errorf("CHANNEL_ID is required")
	}
	mode, err := model.ParseMode(string(c.BotMode))
	if err != nil {
		return err
	}
	c.BotMode = mode
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive, got %s", c.SessionTimeout)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("SEND_TIMEOUT must be positive, got %s", c.SendTimeout)
	}
	if c.MaxTags < 1 {
		return fmt.Errorf("MAX_TAGS must be at least 1, got %d", c.MaxTags)
	}
	if c.MaxTagLength < 2 {
		return fmt.Errorf("MAX_TAG_LENGTH must be at least 2, got %d", c.MaxTagLength)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// IsOwner reports whether userID is the configured bot owner.
func (c *Config) IsOwner(userID int64) bool {
	return c.OwnerID != 0 && c.OwnerID == userID
}

func parseUserIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		ids = append(ids, uid)
	}
	return ids, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

// setDuration accepts Go duration strings and bare integers as seconds.
func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
