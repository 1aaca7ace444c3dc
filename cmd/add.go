package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quentel/shufflepod/internal/errmsg"
	"github.com/quentel/shufflepod/internal/queue"
	"github.com/quentel/shufflepod/internal/song"
)

var (
	addID       string
	addArtist   string
	addAlbum    string
	addArtwork  string
	addDuration int
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a song to the persisted pool",
	Long: `Add stores a song in the pool the player loads on startup.
The pool holds at most ` + fmt.Sprint(queue.MaxPoolSize) + ` songs; adding past that fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addID, "id", "", "song ID (default: generated)")
	addCmd.Flags().StringVar(&addArtist, "artist", "", "artist name")
	addCmd.Flags().StringVar(&addAlbum, "album", "", "album title")
	addCmd.Flags().StringVar(&addArtwork, "artwork", "", "artwork file or icon reference")
	addCmd.Flags().IntVar(&addDuration, "duration", 0, "song length in seconds (0: unknown)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	title := args[0]

	mgr, err := openState()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpSongAdd, err))
	}
	defer mgr.Close()

	songs, err := mgr.GetSongs()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpSongAdd, err))
	}

	sg := song.Song{
		ID:         addID,
		Title:      title,
		Artist:     addArtist,
		AlbumTitle: addAlbum,
		ArtworkRef: addArtwork,
		Duration:   time.Duration(addDuration) * time.Second,
	}
	if sg.ID == "" {
		sg.ID = uuid.NewString()
	}

	for _, existing := range songs {
		if existing.Same(sg) {
			return fmt.Errorf("%s", errmsg.FormatWith(errmsg.OpSongAdd, title,
				fmt.Errorf("song %q already in the pool", sg.ID)))
		}
	}
	if len(songs) >= queue.MaxPoolSize {
		return fmt.Errorf("%s", errmsg.FormatWith(errmsg.OpSongAdd, title, queue.ErrPoolFull))
	}

	if err := mgr.SaveSongs(append(songs, sg)); err != nil {
		return fmt.Errorf("%s", errmsg.FormatWith(errmsg.OpSongAdd, title, err))
	}

	fmt.Printf("added %q (%s), pool now %d/%d\n", title, sg.ID, len(songs)+1, queue.MaxPoolSize)
	return nil
}
