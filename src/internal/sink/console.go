// FILE: crashwatch/src/internal/sink/console.go
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"crashwatch/src/internal/classify"
	"crashwatch/src/internal/core"
	"crashwatch/src/internal/supervisor"

	"github.com/charmbracelet/lipgloss"
	"github.com/lixenwraith/log"
	"golang.org/x/term"
)

// ConsoleConfig holds configuration for the live console
type ConsoleConfig struct {
	// Color is "auto", "always" or "never"; auto styles only terminals
	Color string
	// Incidents below this severity are not announced; CRITICAL blocks always print
	MinSeverity core.Severity
}

// ConsoleSink prints CRITICAL context blocks, one-line incident notices and
// liveness transitions as they happen
type ConsoleSink struct {
	config      ConsoleConfig
	output      io.Writer
	events      <-chan classify.Event
	transitions <-chan supervisor.Transition
	styles      consoleStyles
	done        chan struct{}
	finished    chan struct{}
	stopOnce    sync.Once
	startTime   time.Time
	logger      *log.Logger

	// Statistics
	totalProcessed atomic.Uint64
	totalBlocks    atomic.Uint64
	lastProcessed  atomic.Value // time.Time
}

type consoleStyles struct {
	enabled  bool
	severity map[core.Severity]lipgloss.Style
	match    lipgloss.Style
	context  lipgloss.Style
	down     lipgloss.Style
	up       lipgloss.Style
}

// NewConsoleSink creates a console sink writing to output. Either input may be nil.
func NewConsoleSink(cfg ConsoleConfig, output io.Writer, events <-chan classify.Event, transitions <-chan supervisor.Transition, logger *log.Logger) *ConsoleSink {
	if output == nil {
		output = os.Stderr
	}
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = core.SeverityHigh
	}

	s := &ConsoleSink{
		config:      cfg,
		output:      output,
		events:      events,
		transitions: transitions,
		styles:      newConsoleStyles(output, useColor(cfg.Color, output)),
		done:        make(chan struct{}),
		finished:    make(chan struct{}),
		startTime:   time.Now(),
		logger:      logger,
	}
	s.lastProcessed.Store(time.Time{})
	return s
}

func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newConsoleStyles(w io.Writer, enabled bool) consoleStyles {
	r := lipgloss.NewRenderer(w)
	return consoleStyles{
		enabled: enabled,
		severity: map[core.Severity]lipgloss.Style{
			core.SeverityCritical: r.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")),
			core.SeverityHigh:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
			core.SeverityMedium:   r.NewStyle().Foreground(lipgloss.Color("11")),
			core.SeverityLow:      r.NewStyle().Foreground(lipgloss.Color("8")),
		},
		match:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		context: r.NewStyle().Faint(true),
		down:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")),
		up:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
	}
}

func (cs consoleStyles) render(style lipgloss.Style, s string) string {
	if !cs.enabled {
		return s
	}
	return style.Render(s)
}

func (s *ConsoleSink) Start(ctx context.Context) error {
	go s.processLoop(ctx)
	s.logger.Info("msg", "Console sink started",
		"component", "console_sink",
		"color", s.styles.enabled)
	return nil
}

// Stop waits briefly for the inputs to drain, then stops the sink
func (s *ConsoleSink) Stop() {
	select {
	case <-s.finished:
	case <-time.After(drainTimeout):
	}
	s.stopOnce.Do(func() { close(s.done) })
	<-s.finished
	s.logger.Debug("msg", "Console sink stopped", "component", "console_sink")
}

func (s *ConsoleSink) GetStats() SinkStats {
	lastProc, _ := s.lastProcessed.Load().(time.Time)

	return SinkStats{
		Type:           "console",
		TotalProcessed: s.totalProcessed.Load(),
		StartTime:      s.startTime,
		LastProcessed:  lastProc,
		Details: map[string]any{
			"critical_blocks": s.totalBlocks.Load(),
			"color":           s.styles.enabled,
		},
	}
}

func (s *ConsoleSink) processLoop(ctx context.Context) {
	defer close(s.finished)

	events, transitions := s.events, s.transitions
	for events != nil || transitions != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.mark()
			s.writeEvent(ev)

		case tr, ok := <-transitions:
			if !ok {
				transitions = nil
				continue
			}
			s.mark()
			s.writeTransition(tr)

		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *ConsoleSink) mark() {
	s.totalProcessed.Add(1)
	s.lastProcessed.Store(time.Now())
}

func (s *ConsoleSink) writeEvent(ev classify.Event) {
	if ev.Block != nil {
		s.totalBlocks.Add(1)
		io.WriteString(s.output, s.renderBlock(*ev.Block))
		return
	}

	inc := ev.Incident
	if inc.Severity.Rank() > s.config.MinSeverity.Rank() {
		return
	}
	fmt.Fprintf(s.output, "[%s] %s %s: %s\n",
		formatAt(inc.At),
		s.styles.render(s.styles.severity[inc.Severity], string(inc.Severity)),
		inc.Category,
		inc.Line.Text)
}

func (s *ConsoleSink) renderBlock(b classify.Block) string {
	if !s.styles.enabled {
		return "\n" + b.Render() + "\n"
	}

	var sb strings.Builder
	inc := b.Incident
	header := fmt.Sprintf(" %s %s ", inc.Severity, inc.Category)
	fmt.Fprintf(&sb, "\n[%s] %s %s\n", formatAt(inc.At), s.styles.render(s.styles.severity[inc.Severity], header), inc.Description)
	fmt.Fprintf(&sb, "Context (%d lines):\n", len(b.Lines))

	match := b.MatchIndex()
	for i, l := range b.Lines {
		if i == match {
			sb.WriteString(s.styles.render(s.styles.match, ">>> "+l.Text))
		} else {
			sb.WriteString(s.styles.render(s.styles.context, "    "+l.Text))
		}
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return sb.String()
}

func (s *ConsoleSink) writeTransition(tr supervisor.Transition) {
	if tr.To == core.StateDown {
		msg := fmt.Sprintf(" CRASH #%d DECLARED ", tr.Crash.ID)
		fmt.Fprintf(s.output, "[%s] %s %s after %d failure(s)\n",
			formatAt(tr.At), s.styles.render(s.styles.down, msg), tr.Crash.Trigger, tr.Crash.Failures)
		return
	}
	msg := fmt.Sprintf("RECOVERED from crash #%d", tr.Crash.ID)
	fmt.Fprintf(s.output, "[%s] %s in %s\n",
		formatAt(tr.At), s.styles.render(s.styles.up, msg), tr.Crash.RecoveryLatency.Round(time.Millisecond))
}

func formatAt(d time.Duration) string {
	return fmt.Sprintf("+%.3fs", d.Seconds())
}
