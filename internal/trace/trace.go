// ABOUTME: Colored console trace of agent turn execution
// ABOUTME: Boxes for request, tool calls, tool results, and the final response

package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

const boxWidth = 66

// Logger prints a human-readable trace of one turn to the console. A
// disabled logger discards everything, so call sites never need to branch.
type Logger struct {
	enabled bool
	out     io.Writer
}

// New creates a trace logger writing to stdout.
func New(enabled bool) *Logger {
	return &Logger{enabled: enabled, out: os.Stdout}
}

// NewWithWriter creates a trace logger with a custom writer, for tests.
func NewWithWriter(enabled bool, out io.Writer) *Logger {
	return &Logger{enabled: enabled, out: out}
}

// Header prints the turn banner with agent, user, and session identifiers.
func (l *Logger) Header(agentID, userID, sessionID string) {
	if !l.enabled {
		return
	}
	line := strings.Repeat("═", 70)
	cyan := color.New(color.FgCyan)
	cyan.Fprintln(l.out, line)
	color.New(color.FgCyan, color.Bold).Fprintln(l.out, "  🤖 AGENT INVOCATION")
	cyan.Fprintln(l.out, line)
	dim := color.New(color.Faint)
	fmt.Fprintf(l.out, "  %s     %s\n", dim.Sprint("⏰ Time:"), time.Now().Format("15:04:05.000"))
	fmt.Fprintf(l.out, "  %s    %s\n", dim.Sprint("🎯 Agent:"), color.New(color.FgGreen, color.Bold).Sprint(agentID))
	fmt.Fprintf(l.out, "  %s     %s\n", dim.Sprint("👤 User:"), userID)
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	fmt.Fprintf(l.out, "  %s  %s...\n", dim.Sprint("🔗 Session:"), short)
	cyan.Fprintln(l.out, line)
}

// Request prints the user's message.
func (l *Logger) Request(message string) {
	l.box(color.FgYellow, "📤 USER REQUEST", strings.Split(message, "\n"))
}

// ToolCall prints one tool invocation with its arguments.
func (l *Logger) ToolCall(name string, args map[string]any) {
	if !l.enabled {
		return
	}
	lines := []string{"Tool: " + name, "Arguments:"}
	for key, value := range args {
		lines = append(lines, fmt.Sprintf("  • %s: %s", key, truncate(fmt.Sprint(value), 50)))
	}
	l.box(color.FgMagenta, "🔧 TOOL CALL", lines)
}

// ToolResult prints one tool result, truncated to keep the console sane.
func (l *Logger) ToolResult(name string, result any) {
	if !l.enabled {
		return
	}
	lines := []string{"Tool: " + name, "Result:"}
	resultLines := strings.Split(formatJSON(result), "\n")
	for i, line := range resultLines {
		if i >= 10 {
			lines = append(lines, "  ... (truncated)")
			break
		}
		lines = append(lines, "  "+truncate(line, 60))
	}
	l.box(color.FgBlue, "📋 TOOL RESULT", lines)
}

// Response prints the aggregated agent response.
func (l *Logger) Response(text string) {
	if !l.enabled {
		return
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 15 {
		lines = append(lines[:15], "... (truncated)")
	}
	for i, line := range lines {
		lines[i] = truncate(line, 64)
	}
	l.box(color.FgGreen, "📥 AGENT RESPONSE", lines)
}

// Footer prints the turn duration.
func (l *Logger) Footer(d time.Duration) {
	if !l.enabled {
		return
	}
	color.New(color.FgGreen).Fprintf(l.out, "\n  ✅ Completed in %dms\n", d.Milliseconds())
	color.New(color.FgCyan).Fprintln(l.out, strings.Repeat("═", 70))
}

// Error prints a turn failure.
func (l *Logger) Error(err error) {
	if !l.enabled {
		return
	}
	l.box(color.FgRed, "❌ ERROR", strings.Split(err.Error(), "\n"))
}

func (l *Logger) box(attr color.Attribute, title string, lines []string) {
	if !l.enabled {
		return
	}
	c := color.New(attr)
	fmt.Fprintln(l.out)
	color.New(attr, color.Bold).Fprintf(l.out, "  %s\n", title)
	c.Fprintf(l.out, "  ┌%s\n", strings.Repeat("─", boxWidth))
	for _, line := range lines {
		fmt.Fprintf(l.out, "  %s %s\n", c.Sprint("│"), line)
	}
	c.Fprintf(l.out, "  └%s\n", strings.Repeat("─", boxWidth))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}

func formatJSON(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return "<nil>"
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
