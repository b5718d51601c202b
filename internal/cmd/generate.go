package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/exitcode"
	"github.com/felixgeelhaar/plansmith/internal/metrics"
	"github.com/felixgeelhaar/plansmith/internal/pipeline"
	"github.com/felixgeelhaar/plansmith/internal/plan"
	"github.com/felixgeelhaar/plansmith/internal/progress"
	"github.com/felixgeelhaar/plansmith/internal/store"
)

type generateFlags struct {
	input  string
	text   string
	name   string
	stream bool
	out    string
	format string
	save   bool
	quiet  bool
}

func newGenerateCmd() *cobra.Command {
	f := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an implementation plan from requirement text",
		Long: `Run the planning pipeline over requirement text and write the plan.

The requirement is read from --input (a file, or "-" for stdin) or taken
verbatim from --text. The plan is written to --out, or to stdout when no
file is given. Progress and the run summary go to stderr.

A run that ends PartiallyFailed still writes its plan when export_partial
is enabled, and exits with code 4.`,
		Example: `  plansmith generate --input requirements.md --out plan.yaml
  plansmith generate --text "Users can log in with email" --stream
  cat prd.md | plansmith generate --input - --format toml --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.input, "input", "i", "", "requirement file, or - for stdin")
	cmd.Flags().StringVarP(&f.text, "text", "t", "", "requirement text")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "plan name")
	cmd.Flags().BoolVar(&f.stream, "stream", false, "show stage progress while the run executes")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "output format: json, yaml or toml (default from --out extension, else json)")
	cmd.Flags().BoolVar(&f.save, "save", false, "persist the plan in the local store")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "suppress the run summary")
	cmd.MarkFlagsMutuallyExclusive("input", "text")
	return cmd
}

// partialPlanError reports a PartiallyFailed run that still produced output
type partialPlanError struct {
	runID       string
	diagnostics int
}

func (e *partialPlanError) Error() string {
	return fmt.Sprintf("run %s finished PartiallyFailed with %d diagnostic(s)", e.runID, e.diagnostics)
}

func (e *partialPlanError) ExitCode() int { return exitcode.PartialPlan }

func runGenerate(cmd *cobra.Command, f *generateFlags) error {
	text, err := readRequirement(cmd.InOrStdin(), f)
	if err != nil {
		return err
	}
	format, err := outputFormat(f)
	if err != nil {
		return err
	}

	cc, err := newCommandContext(cmd)
	if err != nil {
		return err
	}

	b, err := newBackend(cc.Config)
	if err != nil {
		return err
	}
	defer b.Close()

	orch := pipeline.NewOrchestrator(b)
	orch.SetLogger(cc.Logger.With("backend", b.name))
	orch.SetMetrics(metrics.GetDefault())

	opts := cc.Config.Pipeline
	opts.Input = text
	opts.Name = f.name
	opts.Streaming = f.stream

	exec, err := orch.Start(cmd.Context(), opts)
	if err != nil {
		return err
	}

	indicator := progress.NewIndicator(progress.Config{Writer: cmd.ErrOrStderr()})
	if f.stream {
		indicator.Follow(exec.Events())
	} else {
		for range exec.Events() {
		}
	}
	res := exec.Wait()
	if !f.quiet {
		indicator.PrintSummary(res)
	}

	switch res.State {
	case pipeline.StateFailed, pipeline.StateCancelled:
		if res.Err == nil {
			return errors.NewFatalStage(string(res.FailedStage), fmt.Errorf("run ended %s", res.State))
		}
		return res.Err
	}

	if !res.Exportable() {
		return res.Export(io.Discard, format)
	}
	if err := writePlan(cmd.OutOrStdout(), res, f.out, format); err != nil {
		return err
	}

	if f.save {
		if err := savePlan(cmd, cc.Config.Store.Path, res.Plan); err != nil {
			return err
		}
		cc.Logger.Info("plan saved", "run_id", res.RunID, "store", cc.Config.Store.Path)
	}

	if res.State == pipeline.StatePartiallyFailed {
		return &partialPlanError{runID: res.RunID, diagnostics: len(res.Diagnostics)}
	}
	return nil
}

func readRequirement(stdin io.Reader, f *generateFlags) (string, error) {
	switch {
	case f.text != "":
		return f.text, nil
	case f.input == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeFileReadFailed, "read requirement from stdin", err)
		}
		return string(data), nil
	case f.input != "":
		data, err := os.ReadFile(f.input)
		if err != nil {
			if os.IsNotExist(err) {
				return "", errors.NewFileNotFoundError(f.input)
			}
			return "", errors.Wrap(errors.ErrCodeFileReadFailed, "read requirement file", err)
		}
		return string(data), nil
	default:
		return "", errors.New(errors.ErrCodeInvalidOptions, "no requirement given").
			WithSuggestion("Pass --input <file>, --input - or --text \"...\"")
	}
}

func outputFormat(f *generateFlags) (plan.Format, error) {
	if f.format != "" {
		return plan.ParseFormat(f.format)
	}
	if f.out != "" {
		return plan.FormatFromPath(f.out), nil
	}
	return plan.FormatJSON, nil
}

func writePlan(stdout io.Writer, res *pipeline.Result, path string, format plan.Format) error {
	if path == "" {
		return res.Export(stdout, format)
	}
	var buf bytes.Buffer
	if err := res.Export(&buf, format); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write plan file", err).
			WithSuggestion("Check that the directory of " + path + " exists and is writable")
	}
	return nil
}

func savePlan(cmd *cobra.Command, path string, p *plan.Plan) error {
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Save(cmd.Context(), p)
}
