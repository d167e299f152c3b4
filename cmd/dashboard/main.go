package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paramean/targeting/internal/member"
	"github.com/paramean/targeting/internal/shared/config"
	"github.com/paramean/targeting/internal/shared/database"
	"github.com/paramean/targeting/internal/shared/events"
	"github.com/paramean/targeting/internal/shared/logging"
	"github.com/paramean/targeting/internal/warehouse"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Paramean member targeting dashboard",
	Long: `Serves the member targeting dashboard API: the eligibility list,
the population report and the targeting funnel with household rollup.

Configuration is read from the environment, optionally overlaid by the
YAML file named in CONFIG_FILE.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Server.IsProduction())
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		db.Close()
		return nil
	},
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Recompute eligibility flags for every member",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := member.NewRepository(db.Pool).Recalculate(cmd.Context())
		if err != nil {
			return fmt.Errorf("recalculate: %w", err)
		}
		logger.Info("recalculation finished",
			zap.Bool("skipped", res.Skipped),
			zap.Int("members", res.Members),
			zap.Int("anchors", res.Anchors),
			zap.Int("eligible", res.Eligible))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, recalculateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDatabase connects to the app database and applies pending migrations.
func openDatabase(ctx context.Context) (*database.DB, error) {
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db.Pool, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	table, err := warehouse.ParseTable(cfg.Warehouse.PopulationTable)
	if err != nil {
		return err
	}
	wh, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		return fmt.Errorf("open warehouse: %w", err)
	}
	defer wh.Close()

	bus, err := events.Open(cfg.KurrentDB)
	if err != nil {
		logger.Warn("KurrentDB not available, running without event streaming", zap.Error(err))
		bus = events.Nop{}
	}
	defer bus.Close()

	app := &App{
		Config:    cfg,
		Log:       logger,
		DB:        db,
		Members:   member.NewRepository(db.Pool),
		Warehouse: wh,
		Table:     table,
		Bus:       bus,
	}
	handler, err := app.Router()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         app.addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Server.Env),
			zap.String("warehouse", cfg.Warehouse.Driver),
			zap.String("table", string(table)),
			zap.Bool("kurrentdb", cfg.KurrentDB.Enabled))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
