package cli

import (
	"github.com/spf13/cobra"

	"eventspool/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DB     string
	Driver string
}

// NewRootCommand creates the root command for spoolctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "spoolctl",
		Short: "Inspect and edit an event spool",
		Long: `Inspect and edit the SQLite file the agent buffers events in.

Every command prints JSON to stdout. Run it against a copy or while the
agent is stopped; the agent keeps its own connection open.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "spool file (default: the agent's data directory)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", store.DefaultDriver, "database/sql driver name")

	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewPeekCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewDrainCommand(opts))
	cmd.AddCommand(NewPolicyCommand())

	return cmd
}

func (o *RootOptions) open() (*store.Store, error) {
	return store.Open(o.DB, store.WithDriver(o.Driver))
}
