// Package progress renders pipeline events and run summaries for terminals.
package progress

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/plansmith/internal/domain"
	"github.com/felixgeelhaar/plansmith/internal/pipeline"
)

// Indicator prints one line per observer event followed by a summary.
// Colors are only emitted when the writer is a color-capable terminal.
type Indicator struct {
	writer    io.Writer
	startTime time.Time
	now       func() time.Time
	isCI      bool
	mu        sync.Mutex

	title   lipgloss.Style
	label   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	dim     lipgloss.Style
	divider string
}

// Config holds configuration for the progress indicator
type Config struct {
	Writer io.Writer
	IsCI   bool // plain symbols and no progress bar
}

const barWidth = 24

// NewIndicator creates a new progress indicator
func NewIndicator(cfg Config) *Indicator {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	if !cfg.IsCI {
		cfg.IsCI = os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
	}

	r := lipgloss.NewRenderer(cfg.Writer)
	return &Indicator{
		writer:    cfg.Writer,
		startTime: time.Now(),
		now:       time.Now,
		isCI:      cfg.IsCI,
		title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		label:     r.NewStyle().Foreground(lipgloss.Color("8")),
		ok:        r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:      r.NewStyle().Foreground(lipgloss.Color("11")),
		fail:      r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		dim:       r.NewStyle().Foreground(lipgloss.Color("241")),
		divider:   strings.Repeat("─", 56),
	}
}

// Follow renders events until the channel is closed
func (p *Indicator) Follow(events <-chan pipeline.Event) {
	for ev := range events {
		p.Handle(ev)
	}
}

// Handle renders a single event
func (p *Indicator) Handle(ev pipeline.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := formatDuration(ev.Timestamp.Sub(p.startTime))
	if ev.Timestamp.IsZero() {
		elapsed = formatDuration(p.now().Sub(p.startTime))
	}

	if ev.State.Terminal() {
		fmt.Fprintf(p.writer, "%s %s %s\n", p.stateSymbol(ev.State), p.stateStyle(ev.State).Render(string(ev.State)), p.dim.Render(elapsed))
		return
	}

	line := fmt.Sprintf("%s %-17s %s", p.ok.Render("✓"), string(ev.Stage), p.counts(ev))
	if !p.isCI {
		line = p.bar(ev.Stage) + " " + line
	}
	fmt.Fprintf(p.writer, "%s %s\n", line, p.dim.Render(elapsed))
}

// counts shows what the finished stage added
func (p *Indicator) counts(ev pipeline.Event) string {
	c := ev.Counts
	var parts []string
	add := func(name string, n int) {
		parts = append(parts, fmt.Sprintf("%s=%d", name, n))
	}
	switch ev.Stage {
	case pipeline.StateParsing, pipeline.StateEstimating:
		add("features", c.Features)
	case pipeline.StateTaskGen:
		add("phases", c.Phases)
		add("tasks", c.Tasks)
	case pipeline.StateDependencyDetect:
		add("dependencies", c.Dependencies)
	case pipeline.StateCriteriaGen:
		add("criteria", c.Criteria)
	case pipeline.StatePromptGen:
		add("prompts", c.Prompts)
	}
	if c.Diagnostics > 0 {
		parts = append(parts, p.warn.Render(fmt.Sprintf("diagnostics=%d", c.Diagnostics)))
	}
	return p.label.Render(strings.Join(parts, " "))
}

// bar draws the share of finished stages
func (p *Indicator) bar(stage pipeline.State) string {
	stages := pipeline.Stages()
	done := 0
	for i, s := range stages {
		if s == stage {
			done = i + 1
		}
	}
	filled := barWidth * done / len(stages)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

func (p *Indicator) stateSymbol(s pipeline.State) string {
	switch s {
	case pipeline.StateComplete:
		return p.ok.Render("✓")
	case pipeline.StatePartiallyFailed:
		return p.warn.Render("!")
	case pipeline.StateCancelled:
		return p.warn.Render("⊘")
	default:
		return p.fail.Render("✗")
	}
}

func (p *Indicator) stateStyle(s pipeline.State) lipgloss.Style {
	switch s {
	case pipeline.StateComplete:
		return p.ok.Bold(true)
	case pipeline.StatePartiallyFailed, pipeline.StateCancelled:
		return p.warn.Bold(true)
	default:
		return p.fail
	}
}

// PrintSummary prints the final run summary
func (p *Indicator) PrintSummary(res *pipeline.Result) {
	if res == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	w := p.writer
	fmt.Fprintln(w)
	fmt.Fprintln(w, p.dim.Render(p.divider))
	fmt.Fprintln(w, p.title.Render("Plan Summary"))
	fmt.Fprintln(w, p.dim.Render(p.divider))

	row := func(name, value string) {
		fmt.Fprintf(w, "%s %s\n", p.label.Render(fmt.Sprintf("%-14s", name+":")), value)
	}
	row("Run", res.RunID)
	row("Status", p.stateSymbol(res.State)+" "+p.stateStyle(res.State).Render(string(res.State)))
	row("Duration", formatDuration(res.Duration))

	if res.FailedStage != "" && !res.Succeeded() {
		stage := string(res.FailedStage)
		if res.FailedStage.Fatal() && res.State == pipeline.StateFailed {
			stage += " (fatal stage)"
		}
		row("Stage", stage)
	}
	if msg := res.ErrorMessage(); msg != "" && !res.Succeeded() {
		row("Error", p.fail.Render(firstLine(msg)))
	}

	if pl := res.Plan; pl != nil {
		c := pl.Counts()
		row("Features", fmt.Sprint(c.Features))
		row("Tasks", fmt.Sprintf("%d in %d phases", c.Tasks, c.Phases))
		row("Dependencies", fmt.Sprint(c.Dependencies))
		if n := len(pl.ExecutionWaves); n > 0 {
			row("Waves", fmt.Sprint(n))
		}
		row("Criteria", fmt.Sprint(c.Criteria))
		row("Effort", fmt.Sprintf("%.1f days", pl.TotalEffortDays))
		if labels := labelSummary(pl.LabelCounts()); labels != "" {
			row("Complexity", fmt.Sprintf("%s (peak %s)", labels, pl.PeakComplexity()))
		}
		if res.Fingerprint != "" {
			row("Fingerprint", p.dim.Render(shortFingerprint(res.Fingerprint)))
		}
	}
	fmt.Fprintln(w, p.dim.Render(p.divider))

	if len(res.Diagnostics) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, p.title.Render("Diagnostics"))
	for _, d := range res.Diagnostics {
		symbol := p.label.Render("·")
		switch d.Severity {
		case domain.SeverityDegraded:
			symbol = p.warn.Render("!")
		case domain.SeverityError:
			symbol = p.fail.Render("✗")
		}
		where := d.Stage
		if len(d.EntityIDs) > 0 {
			where += " " + strings.Join(d.EntityIDs, ",")
		}
		fmt.Fprintf(w, "  %s %s %s\n", symbol, p.dim.Render("["+where+"]"), d.Message)
	}
}

func labelSummary(counts map[domain.ComplexityLabel]int) string {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, string(label))
	}
	sort.Strings(labels)
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%d", l, counts[domain.ComplexityLabel(l)]))
	}
	return strings.Join(parts, " ")
}

func shortFingerprint(fp string) string {
	if len(fp) > 16 {
		return fp[:16]
	}
	return fp
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
