// FILE: crashwatch/src/internal/classify/block.go
package classify

import (
	"fmt"
	"strings"
	"time"

	"crashwatch/src/internal/core"
)

// Block is the frozen context of a CRITICAL incident, taken the moment it matched
type Block struct {
	Incident core.Incident
	// Lines ends with the matched line
	Lines []core.LogLine
}

// MatchIndex returns the position of the matched line within Lines
func (b Block) MatchIndex() int {
	for i, l := range b.Lines {
		if l.Seq == b.Incident.Line.Seq {
			return i
		}
	}
	return -1
}

// Render formats the block for a terminal without styling
func (b Block) Render() string {
	var sb strings.Builder
	inc := b.Incident
	fmt.Fprintf(&sb, "[%s] %s %s: %s\n", formatOffset(inc.At), inc.Severity, inc.Category, inc.Description)
	fmt.Fprintf(&sb, "Context (%d lines):\n", len(b.Lines))

	match := b.MatchIndex()
	for i, l := range b.Lines {
		if i == match {
			sb.WriteString(">>> ")
		} else {
			sb.WriteString("    ")
		}
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatOffset(d time.Duration) string {
	return "+" + d.Truncate(time.Millisecond).String()
}
