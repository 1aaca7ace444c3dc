package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quentel/shufflepod/internal/errmsg"
	"github.com/quentel/shufflepod/internal/player"
	"github.com/quentel/shufflepod/internal/transport/sim"
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Print a diagnostics snapshot as JSON",
	Long: `Diag loads the persisted pool and queue into an offline player,
runs the invariant checks and prints the full diagnostics snapshot.
It never touches playback.`,
	RunE: runDiag,
}

func init() {
	rootCmd.AddCommand(diagCmd)
}

func runDiag(cmd *cobra.Command, args []string) error {
	mgr, err := openState()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpDiagnosticsExport, err))
	}
	defer mgr.Close()

	tr := sim.New(log, cfg.SimSongLength())
	defer tr.Close()

	p := player.New(tr, player.Options{Logger: log, JournalSize: cfg.JournalSize()})
	defer p.Close()

	if err := restore(context.Background(), p, mgr); err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpDiagnosticsExport, err))
	}

	snap := p.ExportDiagnostics("cli", "diag command")
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpDiagnosticsExport, err))
	}
	return nil
}
