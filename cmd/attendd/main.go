/*
main.go - Attendance engine entry point

PURPOSE:
  Command-line front door for the attendance reconciliation engine.
  Every subcommand loads the same YAML config and wires the same
  dependency graph; they differ only in what they do with it.

SUBCOMMANDS:
  serve         Run the HTTP API plus the periodic reconciliation
                scheduler. The long-running deployment mode.
  reconcile     Execute a single reconciliation pass and exit.
                Useful from cron or for manual catch-up.
  reset-cursor  Move the event cursor back so history is replayed.
  absentees     Mark employees with no record as absent for a range
                of past days.

CONFIGURATION:
  --config points at a YAML file (see config package). Missing file
  falls back to built-in defaults: sqlite everywhere, :8080, one
  reconciliation pass per minute.

EVENT SOURCES:
  The punch log is read either from the local sqlite database (small
  single-binary deployments) or from a replicated Postgres table
  (event_source.driver: postgres).

SEE ALSO:
  - api/server.go: Router configuration
  - attendance/reconciler.go: The engine the commands drive
  - config/config.go: File format and defaults
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/digitali/attendance-engine/api"
	"github.com/digitali/attendance-engine/attendance"
	"github.com/digitali/attendance-engine/config"
	"github.com/digitali/attendance-engine/store/postgres"
	"github.com/digitali/attendance-engine/store/sqlite"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("attendd: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "attendd",
		Short:         "Attendance reconciliation engine",
		Long:          "Derives daily attendance records from raw device punch logs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (optional)")

	cmd.AddCommand(newServeCommand(&configPath))
	cmd.AddCommand(newReconcileCommand(&configPath))
	cmd.AddCommand(newResetCursorCommand(&configPath))
	cmd.AddCommand(newAbsenteesCommand(&configPath))

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// app is the wired dependency graph shared by all subcommands.
type app struct {
	cfg     *config.Config
	store   *sqlite.Store
	catalog *attendance.CachedCatalog
	engine  *attendance.Reconciler

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{cfg: cfg, store: store}
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			log.Printf("[Main] closing database: %v", err)
		}
	})

	var events attendance.EventStore = store
	if cfg.EventSource.Driver == "postgres" {
		src, closePool, err := postgres.Connect(ctx, cfg.EventSource.DSN, cfg.EventSource.Table)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect event source: %w", err)
		}
		a.closers = append(a.closers, closePool)
		events = src
		log.Printf("[Main] Reading punches from postgres table %q", cfg.EventSource.Table)
	}

	a.catalog = attendance.NewCachedCatalog(store)
	a.engine = attendance.NewReconciler(events, store, store, a.catalog, cfg.Mode())
	a.engine.BatchLimit = cfg.Reconciliation.BatchLimit
	a.engine.Metrics = attendance.MetricCalculator{
		WeekOff: attendance.WeekOffCalendar{DefaultDays: cfg.DefaultWeekOffDays()},
	}

	return a, nil
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reconciliation scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := api.NewHandler(a.store, a.engine, a.catalog)
	router := api.NewRouter(handler)

	scheduler := api.NewScheduler(handler.Runs)
	scheduler.Interval = a.cfg.Reconciliation.Interval
	scheduler.Enabled = a.cfg.SchedulerEnabled()
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         a.cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[Main] Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Main] Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Main] Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Println("[Main] Server stopped")
	return nil
}

// =============================================================================
// RECONCILE
// =============================================================================

func newReconcileCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			recorder := api.NewRunRecorder(a.store, a.engine)
			processed, skipped, err := recorder.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("processed %d events, skipped %d\n", processed, skipped)
			return nil
		},
	}
}

// =============================================================================
// RESET CURSOR
// =============================================================================

func newResetCursorCommand(configPath *string) *cobra.Command {
	var before string

	cmd := &cobra.Command{
		Use:   "reset-cursor",
		Short: "Move the event cursor back to replay history",
		Long: `Moves the reconciliation cursor to the last event before the given
date. The next run re-processes everything from that point; derived
records are rewritten in place, so replays are safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := attendance.ParseDay(before)
			if err != nil {
				return fmt.Errorf("--before: %w", err)
			}

			a, err := buildApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			cursor, err := a.engine.ResetCursor(cmd.Context(), day.At(0))
			if err != nil {
				return err
			}
			fmt.Printf("cursor reset to %d\n", cursor)
			return nil
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "replay events from this date onward (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("before")

	return cmd
}

// =============================================================================
// ABSENTEES
// =============================================================================

func newAbsenteesCommand(configPath *string) *cobra.Command {
	var (
		days int
		end  string
	)

	cmd := &cobra.Command{
		Use:   "absentees",
		Short: "Mark employees with no punches as absent",
		Long: `Backfills absent records for employees with no attendance at all on
past days. Days that already have a record, including week-offs, are
left untouched. Idempotent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			endDay := attendance.DayOf(time.Now().UTC()).AddDays(-1)
			if end != "" {
				var err error
				endDay, err = attendance.ParseDay(end)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			}

			a, err := buildApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.engine.MarkAbsentees(cmd.Context(), endDay, days)
			if err != nil {
				return err
			}
			fmt.Printf("marked %d employees absent\n", created)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 1, "how many days back from --end to scan")
	cmd.Flags().StringVar(&end, "end", "", "last day to scan (YYYY-MM-DD, default yesterday)")

	return cmd
}
