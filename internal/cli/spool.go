package cli

import (
	"github.com/spf13/cobra"

	"eventspool/internal/store"
)

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of buffered records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, func(s *store.Store) error {
				n, err := s.Count(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]int{"count": n})
			})
		},
	}
}

// NewPeekCommand creates the peek command.
func NewPeekCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "peek",
		Short: "Print the oldest records without removing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, func(s *store.Store) error {
				recs, err := s.NextEvents(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), RecordsResult{Count: len(recs), Records: recs})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum records to print")
	return cmd
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <id> <payload>",
		Short: "Append one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, func(s *store.Store) error {
				rec := store.Record{ID: args[0], Payload: args[1]}
				if err := s.Add(cmd.Context(), rec); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]string{"added": rec.ID})
			})
		},
	}
}

// NewRemoveCommand creates the remove command. Unknown identifiers are ignored.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove records by identifier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, func(s *store.Store) error {
				if err := s.Remove(cmd.Context(), args); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string][]string{"removed": args})
			})
		},
	}
}

// NewDrainCommand creates the drain command.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Print and remove the oldest records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, func(s *store.Store) error {
				recs, err := s.Take(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), RecordsResult{Count: len(recs), Records: recs})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum records to remove")
	return cmd
}

func withStore(opts *RootOptions, fn func(*store.Store) error) (err error) {
	s, err := opts.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
