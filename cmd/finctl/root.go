package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"finanzas/internal/cli"
	"finanzas/internal/config"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/snapshot"
	"finanzas/internal/storage"
)

var (
	flagDB    string
	flagTZ    string
	flagJSON  bool
	flagToday string
)

var rootCmd = &cobra.Command{
	Use:           "finctl",
	Short:         "Inspect and maintain a finanzas ledger",
	Long:          "Run migrations, project recurring payments and print card dashboards straight from the SQLite database.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		cli.LoadEnvFile()
		cfg := config.Load()
		if flagDB == "" {
			flagDB = cfg.SQLiteDBPath
		}
		if flagTZ == "" {
			flagTZ = cfg.Timezone
		}
		if _, err := time.LoadLocation(flagTZ); err != nil {
			return fmt.Errorf("invalid --tz %q: %w", flagTZ, err)
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default $SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagTZ, "tz", "", "Time zone used for today (default $TIMEZONE)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of a table")
	rootCmd.PersistentFlags().StringVar(&flagToday, "today", "", "Reference date YYYY-MM-DD (default today)")
}

// newLogger logs to stderr so stdout stays parseable.
func newLogger() *log.Logger {
	return log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})
}

func today() (core.Date, error) {
	if flagToday != "" {
		d, err := core.ParseDate(flagToday)
		if err != nil {
			return core.Date{}, fmt.Errorf("invalid --today: %w", err)
		}
		return d, nil
	}
	loc, err := time.LoadLocation(flagTZ)
	if err != nil {
		return core.Date{}, err
	}
	return core.Today(loc), nil
}

// openRepo opens the database, applying pending migrations.
func openRepo() (*storage.SQLiteRepository, error) {
	return storage.NewSQLiteRepository(flagDB, newLogger())
}

func loadSnapshot(ctx context.Context) (snapshot.Snapshot, error) {
	repo, err := openRepo()
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	defer repo.Close()
	return repo.Snapshot(ctx)
}

func findCard(snap snapshot.Snapshot, id string) (core.Card, error) {
	card, ok := snap.Card(id)
	if !ok {
		return core.Card{}, fmt.Errorf("card %s: %w", id, storage.ErrNotFound)
	}
	return card, nil
}

// render prints v as indented JSON when --json is set, otherwise calls table
// with a tab-aligned writer.
func render(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	if flagJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}
