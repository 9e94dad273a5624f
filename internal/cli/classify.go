package cli

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"party-sync-service/internal/drift"
)

type classifyResult struct {
	DriftSeconds float64      `json:"driftSeconds"`
	Status       drift.Status `json:"status"`
}

func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <localSeconds> <hostSeconds>",
		Short: "Classify the drift between two playback positions",
		Example: `  partyctl classify 12.0 10.2
  partyctl classify 30 41 --format json`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			local, ok := parsePosition(args[0])
			if !ok {
				return fmt.Errorf("invalid local position %q", args[0])
			}
			host, ok := parsePosition(args[1])
			if !ok {
				return fmt.Errorf("invalid host position %q", args[1])
			}

			res := classifyResult{DriftSeconds: local - host, Status: drift.Classify(local, host)}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (drift %+.2fs)\n", res.Status, res.DriftSeconds)
			return nil
		},
	}
}

// parsePosition accepts finite seconds only.
func parsePosition(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
