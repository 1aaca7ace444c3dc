// Package cmd holds the cobra commands behind the shufflepod binary.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quentel/shufflepod/internal/config"
	"github.com/quentel/shufflepod/internal/errmsg"
	"github.com/quentel/shufflepod/internal/logger"
)

var (
	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shufflepod",
	Short: "Shuffle-first personal music queue",
	Long: `Shufflepod keeps a bounded pool of songs and plays it back as a
shuffled queue, iPod-Shuffle style. The queue survives restarts and the
player is controllable over MPRIS.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("%s", errmsg.Format(errmsg.OpInitialize, err))
		}
		log = logger.New(cfg.LogLevel)
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
