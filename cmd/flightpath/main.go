package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"flightpath/internal/app"
	"flightpath/internal/assessment"
	"flightpath/internal/config"
	"flightpath/internal/irt"
	"flightpath/internal/server"
	"flightpath/internal/store"
)

// Version is stamped at build time.
var Version = "1.0.0"

var (
	// Global flags
	configPath string
	verbose    bool

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flightpath",
	Short: "flightpath - adaptive placement test engine",
	Long: `flightpath runs computerized adaptive placement tests for language
learners. Item selection and scoring use a two-parameter logistic IRT
model with MAP ability estimation; sessions persist in SQLite.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment always wins
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		zapCfg := zap.NewProductionConfig()
		if cfg.Logging.Format == "text" {
			zapCfg.Encoding = "console"
		}
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else if level, parseErr := zapcore.ParseLevel(cfg.Logging.Level); parseErr == nil {
			zapCfg.Level = zap.NewAtomicLevelAt(level)
		}
		if cfg.Logging.File != "" {
			zapCfg.OutputPaths = []string{cfg.Logging.File}
		}
		logger, err = zapCfg.Build()
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
}

// serveCmd runs the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the placement test HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Database.Path, cfg.Database.PoolSize, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		cat := assessment.NewCATService(irt.NewModel())
		clock := app.SystemClock{}
		start := app.NewStartPlacementTest(st, cat, clock, logger)
		submit := app.NewSubmitAnswer(st, cat, clock, logger)

		srv := server.New(cfg, start, submit, st, logger)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return srv.Run(ctx)
	},
}

// seedCmd loads the default assessment catalog.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with the default placement catalog",
	Long: `Creates the learning pathways, the General Placement Test template
with its adaptive configuration, a starter item bank spanning A1 to C2,
and a demo assignment. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Database.Path, cfg.Database.PoolSize, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Seed(cmd.Context(), store.DefaultSeedItems()); err != nil {
			return err
		}
		fmt.Printf("Seeded catalog in %s (demo assignment: %s)\n", cfg.Database.Path, store.SeedAssignmentID)
		return nil
	},
}

// versionCmd prints the version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the flightpath version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flightpath %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "flightpath.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
