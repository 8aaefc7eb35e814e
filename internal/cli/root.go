// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package cli implements the sqlbuilder-demo command, which runs the
// statements built by sqlbuilder against a small database of stores and
// items.
package cli

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canonical/sqlbuilder"
)

// RootOptions holds the state shared by all commands.
type RootOptions struct {
	v      *viper.Viper
	fs     afero.Fs
	Config *Config
	Logger *slog.Logger
}

// NewRootCommand creates the root command of the demo.
func NewRootCommand() *cobra.Command {
	return newRootCommand(afero.NewOsFs())
}

func newRootCommand(fs afero.Fs) *cobra.Command {
	opts := &RootOptions{v: viper.New(), fs: fs}

	cmd := &cobra.Command{
		Use:   "sqlbuilder-demo",
		Short: "Run statements built with sqlbuilder",
		Long: `Run statements built with sqlbuilder against a demo database of
stores and items.

The database is chosen with --driver and --dsn, the SQLBUILDER_DRIVER and
SQLBUILDER_DSN environment variables (also read from .env), or a
.sqlbuilder.yaml file. The default is an in-memory SQLite database, seeded
before every command.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.v, opts.fs)
			if err != nil {
				return err
			}
			opts.Config = cfg
			opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("driver", "sqlite3", "database/sql driver (sqlite3|postgres|mysql)")
	flags.String("dsn", ":memory:", "data source name")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")
	flags.String("format", "text", "output format (text|json|yaml)")
	_ = opts.v.BindPFlag("driver", flags.Lookup("driver"))
	_ = opts.v.BindPFlag("dsn", flags.Lookup("dsn"))
	_ = opts.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = opts.v.BindPFlag("format", flags.Lookup("format"))

	cmd.AddCommand(NewStoresCommand(opts))
	cmd.AddCommand(NewItemsCommand(opts))
	cmd.AddCommand(NewRepriceCommand(opts))
	cmd.AddCommand(NewSQLCommand(opts))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// openSeeded opens the configured database and seeds it.
func (opts *RootOptions) openSeeded(ctx context.Context) (*sqlbuilder.DB, error) {
	db, err := Open(ctx, opts.Config, opts.Logger)
	if err != nil {
		return nil, err
	}
	if err := Seed(ctx, db); err != nil {
		return nil, errors.Wrap(err, "cannot seed database")
	}
	opts.Logger.Info("database seeded", "driver", opts.Config.Driver)
	return db, nil
}
