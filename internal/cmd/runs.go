package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plansmith/internal/plan"
	"github.com/felixgeelhaar/plansmith/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect plans saved in the local store",
		Long: `Inspect plans saved with "generate --save" or by the HTTP API.
The store location is store.path in plansmith.yaml.`,
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved plans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of runs (0 for all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a saved plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := plan.ParseFormat(format)
			if err != nil {
				return err
			}
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return plan.Encode(cmd.OutOrStdout(), p, f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, yaml or toml")
	return cmd
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cc, err := newCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	return store.Open(cc.Config.Store.Path)
}

func printRuns(w io.Writer, runs []store.Summary) {
	r := lipgloss.NewRenderer(w)
	header := r.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dim := r.NewStyle().Foreground(lipgloss.Color("241"))
	ok := r.NewStyle().Foreground(lipgloss.Color("10"))
	warn := r.NewStyle().Foreground(lipgloss.Color("11"))

	if len(runs) == 0 {
		fmt.Fprintln(w, dim.Render("No saved plans. Run `plansmith generate --save` to add one."))
		return
	}

	col := func(s lipgloss.Style, width int, v string) string {
		return s.Width(width).MaxWidth(width).Render(v)
	}
	fmt.Fprintln(w, col(header, 38, "RUN")+col(header, 18, "STATUS")+col(header, 22, "CREATED")+header.Render("NAME"))
	for _, run := range runs {
		status := ok
		if run.Status != plan.StatusComplete {
			status = warn
		}
		fmt.Fprintln(w, col(r.NewStyle(), 38, run.RunID)+
			col(status, 18, string(run.Status))+
			col(dim, 22, run.CreatedAt.Local().Format("2006-01-02 15:04:05"))+
			run.Name)
	}
}
