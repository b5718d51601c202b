package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plansmith/internal/plan"
)

func newValidateCmd() *cobra.Command {
	var structureOnly bool
	cmd := &cobra.Command{
		Use:   "validate <plan-file>",
		Short: "Check the invariants of an exported plan",
		Long: `Load a plan file (json, yaml or toml, chosen by extension) and check its
invariants: unique identifiers, resolvable references, an acyclic
dependency graph and, unless --structure is given, that every task carries
acceptance criteria and a prompt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], structureOnly)
		},
	}
	cmd.Flags().BoolVar(&structureOnly, "structure", false, "only check identifiers, references and acyclicity")
	return cmd
}

func runValidate(cmd *cobra.Command, path string, structureOnly bool) error {
	level := plan.LevelExport
	if structureOnly {
		level = plan.LevelStructure
	}

	p, err := plan.Read(path)
	if err != nil {
		return err
	}
	if err := p.Validate(level); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fp, err := p.Fingerprint()
	if err != nil {
		return err
	}
	c := p.Counts()
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid: %d features, %d tasks, %d dependencies\n",
		path, c.Features, c.Tasks, c.Dependencies)
	fmt.Fprintf(cmd.OutOrStdout(), "  fingerprint %s\n", fp)
	return nil
}
