package cli

import (
	"github.com/spf13/cobra"

	"eventspool/internal/policy"
)

// PolicySummary is printed by policy validate.
type PolicySummary struct {
	Valid    bool   `json:"valid"`
	Version  int    `json:"version,omitempty"`
	Policies int    `json:"policies"`
	Rules    int    `json:"rules"`
	Error    string `json:"error,omitempty"`
}

// NewPolicyCommand creates the policy command group.
func NewPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Work with policy documents",
	}
	cmd.AddCommand(newPolicyValidateCommand())
	return cmd
}

func newPolicyValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Parse and check a policy YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := policy.LoadFile(args[0])
			if err != nil {
				// the summary goes out before the error so scripts can read it
				_ = writeJSON(cmd.OutOrStdout(), PolicySummary{Error: err.Error()})
				return err
			}
			rules := 0
			for _, p := range doc.Policies {
				rules += len(p.Rules)
			}
			return writeJSON(cmd.OutOrStdout(), PolicySummary{
				Valid:    true,
				Version:  doc.Version,
				Policies: len(doc.Policies),
				Rules:    rules,
			})
		},
	}
}
