// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/canonical/sqlbuilder"
)

// Config holds the demo configuration.
type Config struct {
	Driver   string
	DSN      string
	LogLevel slog.Level
	Format   string
}

// ValidDrivers are the database/sql drivers linked into the demo.
var ValidDrivers = []string{"sqlite3", "postgres", "mysql"}

// ValidFormats are the output formats of the commands printing results.
var ValidFormats = []string{"text", "json", "yaml"}

// LoadConfig reads the configuration from, in increasing priority, the
// .sqlbuilder.yaml file in the home directory or the working directory,
// the .env and .env.local files, SQLBUILDER_* environment variables and the
// flags bound to v.
func LoadConfig(v *viper.Viper, fs afero.Fs) (*Config, error) {
	v.SetConfigName(".sqlbuilder")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "sqlbuilder"))
	}

	v.SetEnvPrefix("SQLBUILDER")
	v.AutomaticEnv()

	v.SetDefault("driver", "sqlite3")
	v.SetDefault("dsn", ":memory:")
	v.SetDefault("log_level", "info")
	v.SetDefault("format", "text")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "cannot read config file")
		}
	}

	if _, err := fs.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, errors.Wrap(err, "cannot load .env")
		}
	}
	if _, err := fs.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return nil, errors.Wrap(err, "cannot load .env.local")
		}
	}

	cfg := &Config{
		Driver: v.GetString("driver"),
		DSN:    v.GetString("dsn"),
		Format: v.GetString("format"),
	}
	if !contains(ValidDrivers, cfg.Driver) {
		return nil, errors.Errorf("invalid driver %q: must be one of %v", cfg.Driver, ValidDrivers)
	}
	if !contains(ValidFormats, cfg.Format) {
		return nil, errors.Errorf("invalid format %q: must be one of %v", cfg.Format, ValidFormats)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}
	return cfg, nil
}

// Dialect returns the placeholder dialect understood by the driver.
func (cfg *Config) Dialect() sqlbuilder.Dialect {
	switch cfg.Driver {
	case "postgres":
		return sqlbuilder.PostgresDialect
	case "mysql":
		return sqlbuilder.MySQLDialect
	}
	return sqlbuilder.DefaultDialect
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
