package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/MrEthical07/wanderauth"
	"github.com/MrEthical07/wanderauth/mail"
)

const envPrefix = "WANDERAUTH"

// settings is the CLI configuration file. Engine settings live under the
// engine key and decode straight into wanderauth.Config.
type settings struct {
	RedisAddr string            `yaml:"redis_addr" mapstructure:"redis_addr"`
	StatePath string            `yaml:"state_path" mapstructure:"state_path"`
	LogLevel  string            `yaml:"log_level" mapstructure:"log_level"`
	SMTP      mail.SMTPConfig   `yaml:"smtp" mapstructure:"smtp"`
	Engine    wanderauth.Config `yaml:"engine" mapstructure:"engine"`
}

func defaultSettings() settings {
	return settings{
		LogLevel: "info",
		Engine:   wanderauth.DefaultConfig(),
	}
}

// loadSettings reads path, or $HOME/.wanderauth.yaml when path is empty,
// over the defaults. A missing default file is not an error. Environment
// variables such as WANDERAUTH_REDIS_ADDR and WANDERAUTH_SMTP_HOST override
// the file.
func loadSettings(path string) (settings, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".wanderauth")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"redis_addr", "state_path", "log_level", "smtp.host", "smtp.port", "smtp.user", "smtp.password", "smtp.from"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	s := defaultSettings()
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Engine.Validate(); err != nil {
		return settings{}, fmt.Errorf("invalid engine config: %w", err)
	}
	return s, nil
}

func (s settings) logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
