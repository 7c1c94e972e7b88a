package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/gaswelder/sqlmongo"
	"github.com/gaswelder/sqlmongo/memstore"
	"github.com/gaswelder/sqlmongo/mongostore"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(afero.NewOsFs(), os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(fs afero.Fs, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqlmongo [key=value ...]",
		Short: "Run SQL queries against MongoDB",
		Long: `Translates a SELECT query into MongoDB find operations and prints the results.

Settings are read from a config file (./config.properties or
~/.config/sqlmongo/config.properties), a .env file, SQLMONGO_* environment
variables, flags and key=value arguments, in order of increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(fs, cmd.Flags(), args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, fs, stdout, stderr)
		},
	}
	addFlags(cmd.Flags())
	return cmd
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, cfg *config, fs afero.Fs, stdout, stderr io.Writer) error {
	if key := cfg.missing(); key != "" {
		printMissing(stdout, key)
		return nil
	}
	logger := newLogger(stderr, cfg.Debug)

	plan, err := sqlmongo.Parse(cfg.Query, sqlmongo.WithTokenListener(func(tok sqlmongo.Token) {
		logger.Debug("token", "kind", tok.Kind.String(), "text", tok.Text, "line", tok.Line, "col", tok.Col)
	}))
	if err != nil {
		return err
	}
	if cfg.Explain {
		fmt.Fprintln(stdout, sqlmongo.FormatPlan(plan))
		return nil
	}

	db, closeDB, err := openDatabase(ctx, cfg, fs)
	if err != nil {
		return err
	}
	defer closeDB()

	rows, err := sqlmongo.New(db, sqlmongo.WithLogger(logger)).Exec(ctx, plan)
	if err != nil {
		return err
	}
	defer rows.Close()

	output := cfg.Output
	if plan.AllFields() && output != "vertical" {
		color.New(color.FgYellow).Fprintln(stderr, "If you retrieve all fields you must use vertical output. Forcing vertical output.")
		output = "vertical"
	}
	f := formatter{cfg.DateFormat}
	switch output {
	case "horizontal":
		return writeHorizontal(stdout, rows, cfg.HorizontalPadding, f)
	case "vertical":
		return writeVertical(stdout, rows, f)
	default:
		fmt.Fprintf(stdout, "Writing output to CSV file: %s ...\n", output)
		if err := writeCSV(fs, output, cfg.CSVSeparator, rows, f); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Done")
		return nil
	}
}

// openDatabase returns the database to query and a function that releases it.
func openDatabase(ctx context.Context, cfg *config, fs afero.Fs) (sqlmongo.Database, func(), error) {
	if cfg.Data != "" {
		s := memstore.New()
		if err := s.LoadDir(fs, cfg.Data); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to load %s", cfg.Data)
		}
		return s, func() {}, nil
	}
	s, err := mongostore.Connect(ctx, cfg.URI)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Disconnect(context.Background()) }, nil
}
