package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/kinfolk/internal/app"
	"github.com/suPer8Hu/kinfolk/internal/config"
	"github.com/suPer8Hu/kinfolk/internal/logger"
)

var (
	dbDriver string
	dbDSN    string
	debug    bool
	log      zerolog.Logger
)

func main() {
	log = logger.NewConsole("kinfolkctl")
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kinfolkctl",
		Short:         "Manage a kinfolk family tree and talk to its assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logger.NewConsole("kinfolkctl")
			if debug {
				log = log.Level(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "Database driver (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", "", "Database DSN (overrides DB_DSN)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable verbose debug output")

	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newPeopleCmd())
	rootCmd.AddCommand(newRelationsCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newModelsCmd())
	return rootCmd
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbDriver != "" {
		cfg.DBDriver = dbDriver
	}
	if dbDSN != "" {
		cfg.DBDSN = dbDSN
	}
	log.Debug().Str("driver", cfg.DBDriver).Str("dsn", cfg.DBDSN).Msg("opening store")
	return app.New(ctx, cfg, log)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
