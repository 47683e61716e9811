package tui

import "strings"

// logBuffer is the backlog shown in the viewport. It implements
// client.Display.
type logBuffer struct {
	lines []string
}

func (b *logBuffer) AppendLine(line string) {
	b.lines = append(b.lines, line)
}

func (b *logBuffer) AppendLines(lines []string) {
	b.lines = append(b.lines, lines...)
}

func (b *logBuffer) String() string {
	return strings.Join(b.lines, "\n")
}

// render pads the backlog with blank lines so a short log sits at the
// bottom of a view height lines tall.
func (b *logBuffer) render(height int) string {
	if pad := height - len(b.lines); pad > 0 {
		return strings.Repeat("\n", pad) + b.String()
	}
	return b.String()
}
