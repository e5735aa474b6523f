// Package config loads electiondb settings from flags, ELECTIONDB_*
// environment variables, an optional .env file and an optional TOML config
// file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/23atomist/electrion-PA/internal/ingest"
)

// EnvPrefix prefixes every environment variable, e.g. ELECTIONDB_DATA_DIR.
const EnvPrefix = "ELECTIONDB"

// Backend identifies the store implementation selected by Config.Database.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// Config holds all runtime settings.
type Config struct {
	Database      string
	DataDir       string
	Years         []int
	ElectionType  string
	State         string
	StateName     string
	CommitPerFile bool
	RedisURL      string
	CacheTTL      time.Duration
	Port          int
	LogLevel      string
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Database:     "database/election_data.db",
		DataDir:      "data",
		Years:        append([]int(nil), ingest.DefaultYears...),
		ElectionType: "G",
		State:        "PA",
		StateName:    "Pennsylvania",
		CacheTTL:     5 * time.Minute,
		Port:         8080,
		LogLevel:     "info",
	}
}

// RegisterFlags defines every setting as a flag on fs, with defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	years := make([]string, len(d.Years))
	for i, y := range d.Years {
		years[i] = strconv.Itoa(y)
	}

	fs.String("config", "", "path to a TOML config file")
	fs.String("database", d.Database, "SQLite file path, postgres:// URL, or \"memory\"")
	fs.String("data-dir", d.DataDir, "directory holding the source files")
	fs.String("years", strings.Join(years, ","), "comma-separated election years to ingest")
	fs.String("election-type", d.ElectionType, "election type code recorded for every file")
	fs.String("state", d.State, "state abbreviation")
	fs.String("state-name", d.StateName, "state name")
	fs.Bool("commit-per-file", d.CommitPerFile, "commit after each file instead of once per run")
	fs.String("redis-url", d.RedisURL, "Redis URL for the report cache (empty disables it)")
	fs.Duration("cache-ttl", d.CacheTTL, "report cache TTL")
	fs.Int("port", d.Port, "HTTP port for serve")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error")
}

// Load resolves the configuration for the flags in fs. A .env file in the
// working directory is loaded into the environment first, without
// overriding variables that are already set.
func Load(v *viper.Viper, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := v.BindPFlags(flags); err != nil {
		return Config{}, err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}

		validKeys := make(map[string]bool)
		flags.VisitAll(func(f *pflag.Flag) {
			validKeys[f.Name] = true
		})
		for _, key := range v.AllKeys() {
			if !validKeys[key] {
				return Config{}, fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	years, err := parseYears(v.GetStringSlice("years"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Database:      v.GetString("database"),
		DataDir:       v.GetString("data-dir"),
		Years:         years,
		ElectionType:  v.GetString("election-type"),
		State:         v.GetString("state"),
		StateName:     v.GetString("state-name"),
		CommitPerFile: v.GetBool("commit-per-file"),
		RedisURL:      v.GetString("redis-url"),
		CacheTTL:      v.GetDuration("cache-ttl"),
		Port:          v.GetInt("port"),
		LogLevel:      v.GetString("log-level"),
	}
	return cfg, cfg.Validate()
}

// parseYears accepts "2020,2024" from flags and env, and a list from a
// config file.
func parseYears(raw []string) ([]int, error) {
	var years []int
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			part = strings.Trim(strings.TrimSpace(part), "[]")
			if part == "" {
				continue
			}
			y, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid year %q", part)
			}
			years = append(years, y)
		}
	}
	return years, nil
}

// Validate checks settings that cannot be checked by flag parsing.
func (c Config) Validate() error {
	if c.Database == "" {
		return errors.New("config: database must be set")
	}
	if len(c.Years) == 0 {
		return errors.New("config: at least one year is required")
	}
	for _, y := range c.Years {
		if y < 1900 || y > 2200 {
			return fmt.Errorf("config: implausible election year %d", y)
		}
	}
	if strings.TrimSpace(c.ElectionType) == "" {
		return errors.New("config: election-type must be set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Backend reports which store Database selects.
func (c Config) Backend() Backend {
	switch {
	case strings.HasPrefix(c.Database, "postgres://"), strings.HasPrefix(c.Database, "postgresql://"):
		return BackendPostgres
	case c.Database == "memory":
		return BackendMemory
	}
	return BackendSQLite
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid log-level %q", c.LogLevel)
	}
	return l, nil
}
