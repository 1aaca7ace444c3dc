package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/quentel/shufflepod/internal/errmsg"
	"github.com/quentel/shufflepod/internal/queue"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the persisted song pool",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	mgr, err := openState()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpQueueLoad, err))
	}
	defer mgr.Close()

	songs, err := mgr.GetSongs()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpQueueLoad, err))
	}
	if len(songs) == 0 {
		fmt.Println("pool is empty; use \"shufflepod add\" to fill it")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tARTIST\tPLAYS\tLAST PLAYED")
	for _, sg := range songs {
		last := "never"
		if !sg.NeverPlayed() {
			last = humanize.Time(sg.LastPlayed)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", sg.ID, sg.Title, sg.Artist, sg.PlayCount, last)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("%d/%d songs\n", len(songs), queue.MaxPoolSize)
	return nil
}
