// Package harvest implements the harvest command-line interface.
package harvest

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"transcript_harvester/internal/config"
	"transcript_harvester/internal/db"
	"transcript_harvester/internal/logger"
)

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:           "harvest",
		Short:         "Incrementally harvest earnings call transcripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context; records already walked are still persisted.
func Execute() error {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newDiscoverCommand())
	rootCmd.AddCommand(newSegmentCommand())
	rootCmd.AddCommand(newSeenCommand())
}

// deps is what every subcommand needs.
type deps struct {
	cfg   *config.HarvestConfig
	log   logger.Interface
	runID string
}

func loadDeps() (*deps, error) {
	var (
		cfg *config.HarvestConfig
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadConfig(cfgFile)
	} else {
		cfg = config.Default()
		cfg.ApplyEnv()
		err = cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &deps{cfg: cfg, log: log, runID: uuid.NewString()}, nil
}

func (d *deps) openStore(ctx context.Context) (db.Store, error) {
	store, err := db.Open(ctx, d.cfg.Store, d.runID)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", d.cfg.Store.Backend, err)
	}
	return store, nil
}

func (d *deps) closeStore(store db.Store) {
	if err := store.Close(context.Background()); err != nil {
		d.log.Warn("closing store", "error", err)
	}
	_ = d.log.Sync()
}
