package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"party-sync-service/internal/replication"
)

func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <sessionId>",
		Short: "Print a session document",
		Long: `Read the replicated document of a session: the host's last playback
snapshot, the shared queue, the play history and every participant report.

Examples:
  partyctl inspect living-room
  partyctl inspect living-room --format json --redis redis://cache:6379/0`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, rdb, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer rdb.Close()

			doc, err := store.ReadDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), doc)
			}
			printDocument(cmd.OutOrStdout(), args[0], doc)
			return nil
		},
	}
}

func printDocument(w io.Writer, sessionID string, doc replication.Document) {
	fmt.Fprintf(w, "session %s\n", sessionID)

	switch {
	case doc.Playback == nil:
		fmt.Fprintln(w, "playback: none")
	case doc.Playback.CurrentTrack == nil:
		fmt.Fprintf(w, "playback: idle (host %s)\n", doc.Playback.HostID)
	default:
		st := doc.Playback
		state := "paused"
		if st.IsPlaying {
			state = "playing"
		}
		fmt.Fprintf(w, "playback: %s %q at %.1fs, written %s by %s\n",
			state, st.CurrentTrack.Title, st.PositionSeconds, st.WrittenAt.Format("15:04:05.000"), st.HostID)
	}

	if doc.Queue == nil || doc.Queue.Len() == 0 {
		fmt.Fprintln(w, "queue: empty")
	} else {
		fmt.Fprintf(w, "queue (%s, shuffled=%t):\n", doc.Queue.Mode, doc.Queue.IsShuffled)
		for i, t := range doc.Queue.Entries {
			fmt.Fprintf(w, "  %2d. %s - %s [%s]\n", i, t.Artist, t.Title, t.ID)
		}
	}

	fmt.Fprintf(w, "history: %d entries\n", len(doc.History))

	if len(doc.Reports) > 0 {
		ids := make([]string, 0, len(doc.Reports))
		for id := range doc.Reports {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintln(w, "participants:")
		for _, id := range ids {
			r := doc.Reports[id]
			fmt.Fprintf(w, "  %s (%s): %s, drift %+.2fs\n", id, r.DisplayName, r.Status, r.DriftSeconds)
		}
	}
}
