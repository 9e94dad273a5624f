// Package cli implements partyctl, an operator tool for looking at session
// documents without joining the session.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"party-sync-service/internal/replication"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	RedisURL string
	Format   string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "partyctl",
		Short: "Inspect party sync sessions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.RedisURL, "redis", "redis://localhost:6379/0", "session store URL")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewClassifyCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// openStore connects to the configured Redis. The caller closes the client.
func (o *RootOptions) openStore() (*replication.RedisStore, *redis.Client, error) {
	opt, err := redis.ParseURL(o.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --redis: %w", err)
	}
	rdb := redis.NewClient(opt)
	return replication.NewRedisStore(rdb, 0), rdb, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
