package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"submit_bot/internal/model"
)

var envKeys = []string{
	"SUBMIT_BOT_CONFIG", "TELEGRAM_BOT_TOKEN", "CHANNEL_ID", "DATABASE_PATH", "LOG_LEVEL",
	"ALLOWED_USERS", "BOT_MODE", "SESSION_TIMEOUT", "SWEEP_SCHEDULE", "MAX_TAGS",
	"MAX_TAG_LENGTH", "ALLOWED_FILE_TYPES", "OWNER_ID", "NOTIFY_OWNER", "SHOW_SUBMITTER",
	"SEND_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	// Keep a stray ./config.yaml from leaking into the tests.
	t.Chdir(t.TempDir())
}

func withDefaults(fn func(c *Config)) *Config {
	c := Default()
	fn(c)
	return c
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{"CHANNEL_ID": "@chan"},
			wantErr: true,
		},
		{
			name:    "missing channel",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok"},
			wantErr: true,
		},
		{
			name: "required only, defaults applied",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "test-token", "CHANNEL_ID": "@chan"},
			want: withDefaults(func(c *Config) {
				c.TelegramBotToken = "test-token"
				c.ChannelID = "@chan"
			}),
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"CHANNEL_ID":         "-1001234",
				"DATABASE_PATH":      "/tmp/bot.db",
				"LOG_LEVEL":          "debug",
				"ALLOWED_USERS":      "111,222,333",
				"BOT_MODE":           "media_only",
				"SESSION_TIMEOUT":    "120",
				"SWEEP_SCHEDULE":     "@every 30s",
				"MAX_TAGS":           "5",
				"MAX_TAG_LENGTH":     "20",
				"ALLOWED_FILE_TYPES": ".pdf,image/*",
				"OWNER_ID":           "42",
				"NOTIFY_OWNER":       "false",
				"SHOW_SUBMITTER":     "0",
				"SEND_TIMEOUT":       "90s",
			},
			want: &Config{
				TelegramBotToken: "tok",
				ChannelID:        "-1001234",
				DatabasePath:     "/tmp/bot.db",
				LogLevel:         "debug",
				AllowedUsers:     []int64{111, 222, 333},
				BotMode:          model.ModeMediaOnly,
				SessionTimeout:   2 * time.Minute,
				SweepSchedule:    "@every 30s",
				MaxTags:          5,
				MaxTagLength:     20,
				AllowedFileTypes: ".pdf,image/*",
				OwnerID:          42,
				NotifyOwner:      false,
				ShowSubmitter:    false,
				SendTimeout:      90 * time.Second,
			},
		},
		{
			name: "allowed users with spaces",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"CHANNEL_ID":         "@chan",
				"ALLOWED_USERS":      " 10 , 20 , ",
			},
			want: withDefaults(func(c *Config) {
				c.TelegramBotToken = "tok"
				c.ChannelID = "@chan"
				c.AllowedUsers = []int64{10, 20}
			}),
		},
		{
			name: "invalid user id",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"CHANNEL_ID":         "@chan",
				"ALLOWED_USERS":      "123,abc",
			},
			wantErr: true,
		},
		{
			name: "invalid mode",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"CHANNEL_ID":         "@chan",
				"BOT_MODE":           "audio",
			},
			wantErr: true,
		},
		{
			name: "invalid timeout",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"CHANNEL_ID":         "@chan",
				"SESSION_TIMEOUT":    "soon",
			},
			wantErr: true,
		},
		{
			name: "zero max tags",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"CHANNEL_ID":         "@chan",
				"MAX_TAGS":           "0",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bot.yaml")
	data := `telegram_bot_token: file-token
channel_id: "@from_file"
bot_mode: DOCUMENT
session_timeout: 10m
max_tags: 3
allowed_users: [1, 2]
notify_owner: false
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SUBMIT_BOT_CONFIG", path)
	t.Setenv("CHANNEL_ID", "@from_env")

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := withDefaults(func(c *Config) {
		c.TelegramBotToken = "file-token"
		c.ChannelID = "@from_env"
		c.BotMode = model.ModeDocumentOnly
		c.SessionTimeout = 10 * time.Minute
		c.MaxTags = 3
		c.AllowedUsers = []int64{1, 2}
		c.NotifyOwner = false
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUBMIT_BOT_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("CHANNEL_ID", "@chan")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers []int64
		userID       int64
		want         bool
	}{
		{
			name:         "empty list allows everyone",
			allowedUsers: nil,
			userID:       42,
			want:         true,
		},
		{
			name:         "user in list",
			allowedUsers: []int64{10, 20, 30},
			userID:       20,
			want:         true,
		},
		{
			name:         "user not in list",
			allowedUsers: []int64{10, 20, 30},
			userID:       99,
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowedUsers}
			got := cfg.IsUserAllowed(tt.userID)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("IsUserAllowed() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsOwner(t *testing.T) {
	if (&Config{}).IsOwner(0) {
		t.Error("unset owner matched user 0")
	}
	cfg := &Config{OwnerID: 5}
	if !cfg.IsOwner(5) || cfg.IsOwner(6) {
		t.Error("owner check mismatch")
	}
}
