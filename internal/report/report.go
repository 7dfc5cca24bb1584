// Package report renders the end-of-session summary: what was recorded,
// what was deployed, and whether the build info was published.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/Iron-Ham/buildrecorder/internal/buildinfo"
	"github.com/Iron-Ham/buildrecorder/internal/errors"
	"github.com/Iron-Ham/buildrecorder/internal/event"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 100

var (
	primaryColor = lipgloss.Color("#A78BFA")
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#F87171")
	mutedColor   = lipgloss.Color("#9CA3AF")
	borderColor  = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	labelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(14)
	okStyle    = lipgloss.NewStyle().Foreground(successColor)
	failStyle  = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	muted      = lipgloss.NewStyle().Foreground(mutedColor)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderColor).Padding(0, 1)
)

// Deployment is one uploaded artifact.
type Deployment struct {
	ModuleID   string
	Repository string
	Path       string
	Duration   time.Duration
}

// Collector gathers deployment progress events from a bus.
type Collector struct {
	bus  *event.Bus
	subs []string

	mu          sync.Mutex
	deployments []Deployment
	published   bool
}

// Collect subscribes a Collector to bus. Call Stop to unsubscribe.
func Collect(bus *event.Bus) *Collector {
	c := &Collector{bus: bus}
	c.subs = append(c.subs,
		bus.Subscribe(event.TypeArtifactDeployed, func(e event.Event) {
			ev := e.(event.ArtifactDeployedEvent)
			c.mu.Lock()
			c.deployments = append(c.deployments, Deployment{
				ModuleID:   ev.ModuleID,
				Repository: ev.Repository,
				Path:       ev.Path,
				Duration:   ev.Duration,
			})
			c.mu.Unlock()
		}),
		bus.Subscribe(event.TypeBuildInfoPublished, func(event.Event) {
			c.mu.Lock()
			c.published = true
			c.mu.Unlock()
		}),
	)
	return c
}

// Stop removes the collector's subscriptions.
func (c *Collector) Stop() {
	for _, id := range c.subs {
		c.bus.Unsubscribe(id)
	}
	c.subs = nil
}

// Deployments returns the uploads seen so far, ordered by repository path.
func (c *Collector) Deployments() []Deployment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]Deployment(nil), c.deployments...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Repository != out[j].Repository {
			return out[i].Repository < out[j].Repository
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Published reports whether the build info was published.
func (c *Collector) Published() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published
}

// Summary is everything the report shows about a session.
type Summary struct {
	Info        *buildinfo.BuildInfo
	Deployments []Deployment
	Published   bool
	// Failures are the errors the session ended with, or the deploy error.
	Failures []error
}

// Counts returns the module, artifact, excluded-artifact and dependency
// totals of the recorded build info.
func (s Summary) Counts() (modules, artifacts, excluded, dependencies int) {
	if s.Info == nil {
		return 0, 0, 0, 0
	}
	for _, m := range s.Info.Modules {
		artifacts += len(m.Artifacts)
		excluded += len(m.ExcludedArtifacts)
		dependencies += len(m.Dependencies)
	}
	return len(s.Info.Modules), artifacts, excluded, dependencies
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of w, or DefaultWidth.
func Width(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return DefaultWidth
}

// Write renders s to w, styled when w is a terminal.
func Write(w io.Writer, s Summary) error {
	var out string
	if IsTerminal(w) {
		out = Styled(s, Width(w))
	} else {
		out = Plain(s)
	}
	_, err := io.WriteString(w, out)
	return err
}

// Plain renders s as unstyled text.
func Plain(s Summary) string {
	var sb strings.Builder
	modules, artifacts, excluded, deps := s.Counts()

	if s.Info != nil {
		fmt.Fprintf(&sb, "Build %s #%s\n", s.Info.Name, s.Info.Number)
		fmt.Fprintf(&sb, "  modules:       %d\n", modules)
		fmt.Fprintf(&sb, "  artifacts:     %d (%d excluded)\n", artifacts, excluded)
		fmt.Fprintf(&sb, "  dependencies:  %d\n", deps)
		fmt.Fprintf(&sb, "  duration:      %s\n", time.Duration(s.Info.DurationMillis)*time.Millisecond)
	} else {
		sb.WriteString("Build info not recorded\n")
	}

	fmt.Fprintf(&sb, "  deployed:      %d\n", len(s.Deployments))
	for _, d := range s.Deployments {
		fmt.Fprintf(&sb, "    %s/%s\n", d.Repository, d.Path)
	}
	fmt.Fprintf(&sb, "  build info:    %s\n", publishedText(s.Published))

	for _, err := range s.Failures {
		fmt.Fprintf(&sb, "  %s\n", failureText(err))
	}
	return sb.String()
}

// Styled renders s for a terminal width columns wide.
func Styled(s Summary, width int) string {
	modules, artifacts, excluded, deps := s.Counts()
	inner := width - 4
	if inner < 20 {
		inner = 20
	}

	var lines []string
	if s.Info != nil {
		lines = append(lines,
			titleStyle.Render(fmt.Sprintf("Build %s #%s", s.Info.Name, s.Info.Number)),
			row("modules", fmt.Sprint(modules)),
			row("artifacts", fmt.Sprintf("%d %s", artifacts, muted.Render(fmt.Sprintf("(%d excluded)", excluded)))),
			row("dependencies", fmt.Sprint(deps)),
			row("duration", (time.Duration(s.Info.DurationMillis) * time.Millisecond).String()),
		)
	} else {
		lines = append(lines, failStyle.Render("Build info not recorded"))
	}

	lines = append(lines, row("deployed", fmt.Sprint(len(s.Deployments))))
	for _, d := range s.Deployments {
		path := d.Repository + "/" + d.Path
		lines = append(lines, "  "+muted.Render(ansi.Truncate(path, inner-4, "...")))
	}

	status := okStyle.Render(publishedText(s.Published))
	if !s.Published {
		status = muted.Render(publishedText(false))
	}
	lines = append(lines, row("build info", status))

	for _, err := range s.Failures {
		lines = append(lines, failStyle.Render("✗ ")+ansi.Truncate(failureText(err), inner-4, "..."))
	}

	return boxStyle.Width(inner).Render(strings.Join(lines, "\n")) + "\n"
}

// failureText labels err with its severity and, for deployment failures,
// the phase that failed. Unclassified errors are labelled "error".
func failureText(err error) string {
	label := "error"
	if errors.IsUserFacing(err) {
		label = errors.GetSeverity(err).String()
	}
	if phase := errors.DeployPhase(err); phase != "" {
		label += " (" + phase + ")"
	}
	return label + ": " + err.Error()
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func publishedText(published bool) string {
	if published {
		return "published"
	}
	return "not published"
}
