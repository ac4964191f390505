// FILE: crashwatch/src/internal/classify/classifier.go
package classify

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"crashwatch/src/internal/core"

	"github.com/lixenwraith/log"
)

// DefaultContextLines is the size of the rolling context ring
const DefaultContextLines = 20

// Event is published for every match. Block is set only for CRITICAL incidents.
// The incident carries before-context only; the after-context is completed later
// in the journal.
type Event struct {
	Incident core.Incident
	Block    *Block
}

// Summary holds per-category running counts and the newest incident per category
type Summary struct {
	Lines     uint64
	Matched   uint64
	Counts    map[core.Category]int
	Latest    map[core.Category]core.Incident
	Unmatched uint64
	Filtered  uint64
	// Rejected lines per filter label
	FilteredBy map[string]uint64
}

// LineFilter decides which lines are classified. Rejected lines are not
// classified and do not enter the context ring.
type LineFilter interface {
	Reject(line core.LogLine) (by string, rejected bool)
}

// Classifier consumes log lines, applies the rule set and records incidents.
// Process is called from a single goroutine; Summary and Incidents may be
// called from any goroutine.
type Classifier struct {
	rules  *RuleSet
	filter LineFilter
	ring   *ring
	half   int
	logger *log.Logger

	pending   []*core.Incident
	incidents core.Journal[core.Incident]
	seq       uint64

	mu     sync.Mutex
	counts     map[core.Category]int
	latest     map[core.Category]core.Incident
	filteredBy map[string]uint64

	subMu       sync.RWMutex
	subscribers []chan Event
	closed      bool

	// Statistics
	totalLines    atomic.Uint64
	totalFiltered atomic.Uint64
	totalMatched  atomic.Uint64
	droppedEvents atomic.Uint64
}

// New creates a classifier with a context ring of contextLines lines, split
// evenly between before and after context
func New(rules *RuleSet, contextLines int, logger *log.Logger) *Classifier {
	if contextLines < 2 {
		contextLines = DefaultContextLines
	}
	c := &Classifier{
		rules:  rules,
		ring:   newRing(contextLines),
		half:   contextLines / 2,
		logger: logger,
		counts:     make(map[core.Category]int),
		latest:     make(map[core.Category]core.Incident),
		filteredBy: make(map[string]uint64),
	}

	logger.Debug("msg", "Classifier created",
		"component", "classifier",
		"rule_count", rules.Len(),
		"context_lines", contextLines)
	return c
}

// SetFilter installs a line filter. Must be called before Run.
func (c *Classifier) SetFilter(f LineFilter) {
	c.filter = f
}

// Subscribe returns a channel receiving match events. Slow subscribers lose events.
func (c *Classifier) Subscribe(size int) <-chan Event {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	ch := make(chan Event, size)
	if c.closed {
		close(ch)
		return ch
	}
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Run processes lines until the channel closes or ctx is cancelled, then
// completes pending incidents and closes subscriber channels
func (c *Classifier) Run(ctx context.Context, lines <-chan core.LogLine) {
	defer c.Finish()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			c.Process(line)
		}
	}
}

// Process classifies a single line
func (c *Classifier) Process(line core.LogLine) {
	c.totalLines.Add(1)
	if c.filter != nil {
		if by, rejected := c.filter.Reject(line); rejected {
			c.mu.Lock()
			c.filteredBy[by]++
			c.mu.Unlock()
			c.totalFiltered.Add(1)
			return
		}
	}
	c.completePending(line)

	before := c.ring.last(c.half)
	c.ring.push(line)

	rule, ok := c.rules.Match(line.Text)
	if !ok {
		return
	}

	c.seq++
	inc := core.Incident{
		Seq:         c.seq,
		At:          line.At,
		Category:    rule.Category,
		Severity:    rule.Severity,
		Description: rule.Description,
		Line:        line,
		Before:      before,
	}
	c.totalMatched.Add(1)

	c.mu.Lock()
	c.counts[inc.Category]++
	c.latest[inc.Category] = inc
	c.mu.Unlock()

	event := Event{Incident: inc}
	if inc.Severity == core.SeverityCritical {
		block := Block{
			Incident: inc,
			Lines:    append(append([]core.LogLine(nil), before...), line),
		}
		event.Block = &block
		c.logger.Warn("msg", "Critical incident",
			"component", "classifier",
			"category", inc.Category,
			"description", inc.Description,
			"line", line.Text)
	} else {
		c.logger.Debug("msg", "Incident matched",
			"component", "classifier",
			"category", inc.Category,
			"severity", inc.Severity)
	}
	c.publish(event)

	if c.half == 0 {
		c.incidents.Append(inc)
		return
	}
	pending := inc
	c.pending = append(c.pending, &pending)
}

// completePending appends line to the after-context of waiting incidents
// and records those that are now complete
func (c *Classifier) completePending(line core.LogLine) {
	if len(c.pending) == 0 {
		return
	}
	kept := c.pending[:0]
	for _, inc := range c.pending {
		inc.After = append(inc.After, line)
		if len(inc.After) >= c.half {
			c.incidents.Append(*inc)
			continue
		}
		kept = append(kept, inc)
	}
	c.pending = kept
}

// Finish records incidents still waiting for after-context and closes subscribers. Idempotent.
func (c *Classifier) Finish() {
	for _, inc := range c.pending {
		c.incidents.Append(*inc)
	}
	c.pending = nil

	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.subscribers {
		close(ch)
	}
}

func (c *Classifier) publish(event Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
			c.droppedEvents.Add(1)
		}
	}
}

// Incidents returns recorded incidents in match order
func (c *Classifier) Incidents() []core.Incident {
	out := c.incidents.Snapshot()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Summary returns a snapshot of running counts
func (c *Classifier) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Lines:   c.totalLines.Load(),
		Matched: c.totalMatched.Load(),
		Counts:  make(map[core.Category]int, len(c.counts)),
		Latest:  make(map[core.Category]core.Incident, len(c.latest)),
	}
	if len(c.filteredBy) > 0 {
		s.FilteredBy = make(map[string]uint64, len(c.filteredBy))
		for k, v := range c.filteredBy {
			s.FilteredBy[k] = v
		}
	}
	s.Filtered = c.totalFiltered.Load()
	s.Unmatched = s.Lines - s.Matched - s.Filtered
	for k, v := range c.counts {
		s.Counts[k] = v
	}
	for k, v := range c.latest {
		s.Latest[k] = v
	}
	return s
}

// GetStats returns classifier statistics
func (c *Classifier) GetStats() map[string]any {
	return map[string]any{
		"rule_count":     c.rules.Len(),
		"total_lines":    c.totalLines.Load(),
		"total_filtered": c.totalFiltered.Load(),
		"total_matched":  c.totalMatched.Load(),
		"dropped_events": c.droppedEvents.Load(),
	}
}
