package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	auth "github.com/goliatone/go-arena-auth"
	"github.com/goliatone/go-arena-auth/repository"
)

const envPrefix = "ARENA_"

const (
	storeSQL   = "sql"
	storeRedis = "redis"
)

// Config is the full server configuration
type Config struct {
	Auth     auth.Options      `koanf:"auth"`
	HTTP     HTTPConfig        `koanf:"http"`
	Database repository.Config `koanf:"database"`
	Store    string            `koanf:"store"`
	Redis    RedisConfig       `koanf:"redis"`
	Log      LogConfig         `koanf:"log"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
	// Origins is a comma separated CORS allow list
	Origins string `koanf:"origins"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

func defaultConfig() Config {
	return Config{
		Auth: auth.Options{
			Issuer:            "arena",
			SessionCookieName: auth.DefaultSessionCookieName,
		},
		HTTP: HTTPConfig{
			Addr:    ":8080",
			Origins: "http://localhost:3000",
		},
		Database: repository.Config{
			Driver: repository.DriverSQLite,
			DSN:    "file:arena.db?cache=shared",
		},
		Store: storeSQL,
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// loadConfig layers defaults, the optional YAML file, ARENA_ environment
// variables and finally command line flags. Nested keys use a double
// underscore in the environment, e.g. ARENA_AUTH__ACCESS_TOKEN_SECRET.
func loadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := defaultConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return cfg, fmt.Errorf("load flags: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// bindServerFlags declares the flags understood by loadConfig. Flag names
// are the koanf keys they override.
func bindServerFlags(flags *pflag.FlagSet) {
	def := defaultConfig()
	flags.String("http.addr", def.HTTP.Addr, "HTTP listen address")
	flags.String("http.origins", def.HTTP.Origins, "comma separated CORS origins")
	flags.String("store", def.Store, "credential store (sql or redis)")
	flags.String("redis.url", "", "redis URL when store is redis")
	bindDatabaseFlags(flags)
}

func bindDatabaseFlags(flags *pflag.FlagSet) {
	def := defaultConfig()
	flags.String("database.driver", def.Database.Driver, "database driver (sqlite or postgres)")
	flags.String("database.dsn", def.Database.DSN, "database DSN")
	flags.String("log.format", def.Log.Format, "log format (json or text)")
	flags.String("log.level", def.Log.Level, "log level (debug, info, warn, error)")
}

func setupLogging(cfg LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'json' or 'text'", cfg.Format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
