package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wanderauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSettingsOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
redis_addr: 127.0.0.1:6390
log_level: debug
smtp:
  host: smtp.example.com
  port: 587
  user: codes@example.com
engine:
  identifier:
    placeholder_domain: phone.example.com
  otp:
    ttl: 10m
    max_attempts: 5
  admin:
    emails: [ops@example.com]
`)

	s, err := loadSettings(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6390", s.RedisAddr)
	require.Equal(t, slog.LevelDebug, s.logLevel())
	require.Equal(t, "smtp.example.com", s.SMTP.Host)
	require.Equal(t, 587, s.SMTP.Port)
	require.Equal(t, "phone.example.com", s.Engine.Identifier.PlaceholderDomain)
	require.Equal(t, 10*time.Minute, s.Engine.OTP.TTL)
	require.Equal(t, 5, s.Engine.OTP.MaxAttempts)
	require.Equal(t, []string{"ops@example.com"}, s.Engine.Admin.Emails)

	def := defaultSettings()
	require.Equal(t, def.Engine.OTP.MaxDispatches, s.Engine.OTP.MaxDispatches, "unset keys keep defaults")
}

func TestLoadSettingsEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "redis_addr: 127.0.0.1:6390\n")
	t.Setenv("WANDERAUTH_REDIS_ADDR", "10.0.0.7:6379")
	t.Setenv("WANDERAUTH_SMTP_HOST", "mail.internal")

	s, err := loadSettings(path)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.7:6379", s.RedisAddr)
	require.Equal(t, "mail.internal", s.SMTP.Host)
}

func TestLoadSettingsRejectsInvalidEngineConfig(t *testing.T) {
	path := writeConfig(t, `
engine:
  otp:
    max_attempts: -1
`)
	_, err := loadSettings(path)
	require.Error(t, err)
}

func TestLoadSettingsMissingExplicitFile(t *testing.T) {
	_, err := loadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDefaultSettingsRoundTripThroughYAML(t *testing.T) {
	out, err := yaml.Marshal(defaultSettings())
	require.NoError(t, err)

	s, err := loadSettings(writeConfig(t, string(out)))
	require.NoError(t, err)
	require.Equal(t, defaultSettings().Engine.OTP, s.Engine.OTP)
	require.Equal(t, defaultSettings().Engine.Login, s.Engine.Login)
}

func TestLogLevelFallsBackToInfo(t *testing.T) {
	require.Equal(t, slog.LevelInfo, settings{LogLevel: "loud"}.logLevel())
	require.Equal(t, slog.LevelWarn, settings{LogLevel: "warn"}.logLevel())
}
