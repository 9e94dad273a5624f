package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"party-sync-service/internal/party"
)

type HistoryOptions struct {
	*RootOptions
	Top int
}

func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <sessionId>",
		Short: "Show the most played tracks of a session",
		Example: `  partyctl history living-room --top 5`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Top <= 0 {
				return fmt.Errorf("--top must be positive")
			}
			store, rdb, err := opts.openStore()
			if err != nil {
				return err
			}
			defer rdb.Close()

			doc, err := store.ReadDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			h := party.NewHistory(max(len(doc.History), 1))
			h.Replace(doc.History)
			top := h.MostPlayed(opts.Top)

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), top)
			}
			if len(top) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no plays recorded")
				return nil
			}
			for i, tc := range top {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s - %s (%d plays)\n", i+1, tc.Track.Artist, tc.Track.Title, tc.Count)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Top, "top", 10, "number of tracks to show")
	return cmd
}
