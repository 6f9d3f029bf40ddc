package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "KANBAN"

type Config struct {
	Addr            string
	DBDriver        string
	DBDSN           string
	AllowDelete     bool
	LogLevel        string
	LogFormat       string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	EventHeartbeat  time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "postgres://postgres:postgres@db:5432/kanban?sslmode=disable")
	v.SetDefault("allow_delete", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("events.heartbeat", "25s")
}

// Load reads settings from, in increasing precedence: defaults, the optional
// config file, a .env file, and the environment. A missing .env file is not
// an error; a missing config file that was asked for is.
func Load(v *viper.Viper, configFile, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// names used by older deployments
	_ = v.BindEnv("db.dsn", EnvPrefix+"_DB_DSN", "DATABASE_URL")
	_ = v.BindEnv("allow_delete", EnvPrefix+"_ALLOW_DELETE", "ALLOW_DELETE")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := Config{
		Addr:            v.GetString("addr"),
		DBDriver:        v.GetString("db.driver"),
		DBDSN:           v.GetString("db.dsn"),
		AllowDelete:     v.GetBool("allow_delete"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       strings.ToLower(v.GetString("log.format")),
		CORSOrigins:     origins(v.Get("cors.origins")),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		EventHeartbeat:  v.GetDuration("events.heartbeat"),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// origins accepts either a list or a comma separated string.
func origins(raw any) []string {
	var parts []string
	switch x := raw.(type) {
	case string:
		parts = strings.Split(x, ",")
	case []string:
		parts = x
	case []any:
		for _, p := range x {
			parts = append(parts, fmt.Sprint(p))
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.DBDSN == "" {
		return errors.New("db.dsn must not be empty")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout)
	}
	if c.EventHeartbeat <= 0 {
		return fmt.Errorf("events.heartbeat must be positive, got %s", c.EventHeartbeat)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Logger builds the process logger described by the config.
func (c Config) Logger(w io.Writer) *slog.Logger {
	lvl, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
