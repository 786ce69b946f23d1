package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/wanderauth"
	"github.com/MrEthical07/wanderauth/localstate"
	"github.com/MrEthical07/wanderauth/mail"
)

var (
	cfgFile   string
	redisAddr string
	debug     bool
	noColor   bool
)

// app holds what PersistentPreRunE opened for the running command.
var app struct {
	settings settings
	redis    redis.UniversalClient
	mini     *miniredis.Miniredis
	engine   *wanderauth.Engine
	log      wanderauth.Logger
}

var rootCmd = &cobra.Command{
	Use:           "wanderauth",
	Short:         "Sign-in, registration and bootstrap for the Wander travel site",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations["engine"] == "none" {
			return nil
		}
		return openApp()
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		closeApp()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wanderauth.yaml)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "redis address; empty uses WANDERAUTH_REDIS_ADDR or an in-process server")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	rootCmd.AddCommand(resolveCmd, loginCmd, registerCmd, signOutCmd, whoamiCmd)
	rootCmd.AddCommand(adminCmd, bootstrapCmd, slidesCmd, accountsCmd, metricsCmd, configCmd)
}

func openApp() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	s, err := loadSettings(cfgFile)
	if err != nil {
		return err
	}
	app.settings = s

	level := s.logLevel()
	if debug {
		level = slog.LevelDebug
	}
	app.log = wanderauth.NewTextLogger(os.Stderr, level)

	if err := openRedis(s); err != nil {
		return err
	}

	b := wanderauth.New().
		WithConfig(s.Engine).
		WithRedis(app.redis).
		WithLogger(app.log)

	if s.Engine.Audit.Enabled {
		b.WithAuditSink(wanderauth.NewLogSink(app.log.With("component", "audit")))
	}
	if s.SMTP.Host != "" {
		b.WithMailDispatcher(mail.NewSMTPDispatcher(s.SMTP))
	}

	path := s.StatePath
	if path == "" {
		if path, err = localstate.DefaultPath(); err != nil {
			return err
		}
	}
	b.WithLocalState(localstate.NewFileStore(path))

	engine, err := b.Build()
	if err != nil {
		closeApp()
		return fmt.Errorf("build engine: %w", err)
	}
	app.engine = engine
	return nil
}

func openRedis(s settings) error {
	addr := redisAddr
	if addr == "" {
		addr = s.RedisAddr
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start in-process redis: %w", err)
		}
		app.mini = mr
		addr = mr.Addr()
		app.log.Warn(context.Background(), "no redis address configured; state lasts for this command only")
	}

	app.redis = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	if err := app.redis.Ping(context.Background()).Err(); err != nil {
		closeApp()
		return fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return nil
}

func closeApp() {
	if app.engine != nil {
		app.engine.Close()
		app.engine = nil
	}
	if app.redis != nil {
		_ = app.redis.Close()
		app.redis = nil
	}
	if app.mini != nil {
		app.mini.Close()
		app.mini = nil
	}
}
