package pawrun

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// LogLevel represents the severity of a log message (higher value = higher severity)
type LogLevel int

const (
	LevelTrace  LogLevel = iota // Detailed tracing (requires enabled + category)
	LevelInfo                   // Informational messages (requires enabled + category)
	LevelDebug                  // Development debugging (requires enabled + category)
	LevelNotice                 // Notable events (always shown)
	LevelWarn                   // Warnings (always shown)
	LevelError                  // Runtime errors (always shown)
	LevelFatal                  // Failures that end the call (always shown)
)

// LogCategory represents the subsystem generating the message
type LogCategory string

const (
	CatNone     LogCategory = ""         // Uncategorized
	CatParse    LogCategory = "parse"    // Parser and lowering diagnostics
	CatCommand  LogCategory = "command"  // Command execution
	CatVariable LogCategory = "variable" // Variable operations
	CatIO       LogCategory = "io"       // File and stream operations
	CatConfig   LogCategory = "config"   // Session config and overrides
	CatFlow     LogCategory = "flow"     // Flow control (if, for, try)
	CatSystem   LogCategory = "system"   // Engine state, registry, merges
	CatHost     LogCategory = "host"     // Host environment collection
)

var allCategories = []LogCategory{
	CatParse, CatCommand, CatVariable, CatIO, CatConfig, CatFlow, CatSystem, CatHost,
}

// ParseLogCategory maps a category name to its constant
func ParseLogCategory(name string) (LogCategory, bool) {
	for _, cat := range allCategories {
		if string(cat) == strings.ToLower(name) {
			return cat, true
		}
	}
	return CatNone, false
}

// ANSI color codes for terminal output
const (
	colorYellow = "\x1b[93m"
	colorRed    = "\x1b[91m"
	colorCyan   = "\x1b[96m"
	colorBold   = "\x1b[1m"
	colorReset  = "\x1b[0m"
)

// Logger handles logging and diagnostic reporting
type Logger struct {
	enabled           bool
	enabledCategories map[LogCategory]bool
	out               io.Writer
	errOut            io.Writer
	colorEnabled      bool
	// style and source are set per call so diagnostics render against
	// the script being evaluated
	style  ErrorStyle
	source string
}

// writerSupportsColor checks if w is a terminal that supports color output
func writerSupportsColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	// Respect NO_COLOR environment variable (https://no-color.org/)
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	if t := os.Getenv("TERM"); t == "dumb" {
		return false
	}
	return true
}

// NewLogger creates a new logger writing debug output to out and
// diagnostics to errOut
func NewLogger(enabled bool, out, errOut io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Logger{
		enabled:           enabled,
		enabledCategories: make(map[LogCategory]bool),
		out:               out,
		errOut:            errOut,
		colorEnabled:      writerSupportsColor(errOut),
		style:             ErrorStyleFancy,
	}
}

// forCall returns a copy of the logger bound to one call's source text
// and error style
func (l *Logger) forCall(source string, style ErrorStyle) *Logger {
	return &Logger{
		enabled:           l.enabled,
		enabledCategories: l.enabledCategories,
		out:               l.out,
		errOut:            l.errOut,
		colorEnabled:      l.colorEnabled,
		style:             style,
		source:            source,
	}
}

func (l *Logger) setStyle(style ErrorStyle) {
	l.style = style
}

// SetColor forces color output on or off
func (l *Logger) SetColor(enabled bool) {
	l.colorEnabled = enabled
}

// EnableCategory enables debug logging for a specific category
func (l *Logger) EnableCategory(cat LogCategory) {
	l.enabledCategories[cat] = true
}

// EnableAllCategories enables all categories for debug logging
func (l *Logger) EnableAllCategories() {
	for _, cat := range allCategories {
		l.enabledCategories[cat] = true
	}
}

// IsCategoryEnabled checks if a category is enabled
func (l *Logger) IsCategoryEnabled(cat LogCategory) bool {
	return l.enabledCategories[cat]
}

func (l *Logger) shouldLog(level LogLevel, cat LogCategory) bool {
	switch level {
	case LevelFatal, LevelError, LevelWarn, LevelNotice:
		return true
	case LevelDebug, LevelInfo, LevelTrace:
		return l.enabled && (cat == CatNone || l.enabledCategories[cat])
	default:
		return false
	}
}

func (l *Logger) writeOutput(isDebug bool, output string) {
	if isDebug {
		_, _ = fmt.Fprintln(l.out, output)
		return
	}
	if l.colorEnabled {
		_, _ = fmt.Fprintf(l.errOut, "%s%s%s\n", colorYellow, output, colorReset)
	} else {
		_, _ = fmt.Fprintln(l.errOut, output)
	}
}

func levelPrefix(level LogLevel, cat LogCategory) string {
	catSuffix := ""
	if cat != CatNone {
		catSuffix = ":" + string(cat)
	}
	switch level {
	case LevelTrace:
		return "[TRACE" + catSuffix + "]"
	case LevelInfo:
		return "[INFO" + catSuffix + "]"
	case LevelDebug:
		return "[DEBUG" + catSuffix + "]"
	case LevelNotice:
		return "[pawrun" + catSuffix + " NOTICE]"
	case LevelWarn:
		return "[pawrun" + catSuffix + " WARN]"
	default:
		return "[pawrun" + catSuffix + " ERROR]"
	}
}

// Log is the unified logging method
func (l *Logger) Log(level LogLevel, cat LogCategory, message string) {
	if !l.shouldLog(level, cat) {
		return
	}
	output := levelPrefix(level, cat) + " " + message
	isLowSeverity := level == LevelTrace || level == LevelInfo || level == LevelDebug
	l.writeOutput(isLowSeverity, output)
}

// ErrorCat logs a categorized error message
func (l *Logger) ErrorCat(cat LogCategory, format string, args ...interface{}) {
	l.Log(LevelError, cat, fmt.Sprintf(format, args...))
}

// WarnCat logs a categorized warning message
func (l *Logger) WarnCat(cat LogCategory, format string, args ...interface{}) {
	l.Log(LevelWarn, cat, fmt.Sprintf(format, args...))
}

// DebugCat logs a categorized debug message
func (l *Logger) DebugCat(cat LogCategory, format string, args ...interface{}) {
	l.Log(LevelDebug, cat, fmt.Sprintf(format, args...))
}

// TraceCat logs a categorized trace message
func (l *Logger) TraceCat(cat LogCategory, format string, args ...interface{}) {
	l.Log(LevelTrace, cat, fmt.Sprintf(format, args...))
}

// ReportParseWarning reports an advisory parser finding
func (l *Logger) ReportParseWarning(err *StructuredError) {
	l.report(LevelWarn, CatParse, "Warning", err)
}

// ReportParseError reports a parser finding that does not stop the call
func (l *Logger) ReportParseError(err *StructuredError) {
	l.report(LevelError, CatParse, "Error", err)
}

// ReportCompileError reports a lowering finding that does not stop the call
func (l *Logger) ReportCompileError(err *StructuredError) {
	l.report(LevelError, CatParse, "Error", err)
}

// ReportShellError reports a failure in setting up the call
func (l *Logger) ReportShellError(err *StructuredError) {
	l.report(LevelError, CatSystem, "Error", err)
}

// RenderError formats err in the logger's error style without writing it
func (l *Logger) RenderError(err *StructuredError) string {
	return renderDiagnostic(l.style, "Error", err, l.source, l.colorEnabled)
}

func (l *Logger) report(level LogLevel, cat LogCategory, heading string, err *StructuredError) {
	if err == nil || !l.shouldLog(level, cat) {
		return
	}
	text := renderDiagnostic(l.style, heading, err, l.source, l.colorEnabled)
	_, _ = fmt.Fprintln(l.errOut, text)
}

// renderDiagnostic renders a structured error in one of the error styles
func renderDiagnostic(style ErrorStyle, heading string, err *StructuredError, source string, color bool) string {
	switch style {
	case ErrorStyleShort:
		return heading + ": " + err.Message
	case ErrorStylePlain:
		var b strings.Builder
		b.WriteString(heading)
		b.WriteString(": ")
		b.WriteString(err.Summary())
		if err.Span != nil && source != "" {
			line, col := lineColumn(source, err.Span.Start)
			fmt.Fprintf(&b, " (line %d, column %d)", line, col)
		}
		if err.Help != "" {
			b.WriteString("\n  help: ")
			b.WriteString(err.Help)
		}
		return b.String()
	default:
		return renderFancy(heading, err, source, color, 0)
	}
}

func renderFancy(heading string, err *StructuredError, source string, color bool, depth int) string {
	var b strings.Builder
	indent := strings.Repeat("  ", depth)
	head := heading + ": " + err.Kind.String()
	if color {
		head = colorRed + colorBold + head + colorReset
	}
	b.WriteString(indent)
	b.WriteString(head)
	b.WriteString("\n")
	b.WriteString(indent)
	b.WriteString("  x ")
	b.WriteString(err.Message)
	if err.Span != nil && source != "" {
		b.WriteString(formatSourceContext(source, *err.Span, err.Label, indent, color))
	} else if err.Label != "" {
		b.WriteString("\n")
		b.WriteString(indent)
		b.WriteString("  ")
		b.WriteString(err.Label)
	}
	if err.Help != "" {
		b.WriteString("\n")
		b.WriteString(indent)
		help := "  help: " + err.Help
		if color {
			help = colorCyan + help + colorReset
		}
		b.WriteString(help)
	}
	for _, inner := range err.Inner {
		b.WriteString("\n\n")
		b.WriteString(renderFancy("Caused by", inner, source, color, depth+1))
	}
	return b.String()
}

// lineColumn converts a byte offset into 1-based line and column numbers
func lineColumn(source string, offset int) (int, int) {
	offset = min(max(offset, 0), len(source))
	line := 1 + strings.Count(source[:offset], "\n")
	lineStart := strings.LastIndex(source[:offset], "\n") + 1
	return line, offset - lineStart + 1
}

// formatSourceContext formats the lines around span with line numbers and
// a caret underline carrying the label
func formatSourceContext(source string, span Span, label, indent string, color bool) string {
	lines := strings.Split(source, "\n")
	line, col := lineColumn(source, span.Start)
	var message strings.Builder
	message.WriteString("\n")

	contextStart := max(0, line-2)
	contextEnd := min(len(lines), line+1)

	for i := contextStart; i < contextEnd; i++ {
		lineNum := i + 1
		isErrorLine := lineNum == line
		prefix := " "
		if isErrorLine {
			prefix = ">"
		}
		message.WriteString(fmt.Sprintf("\n%s  %s %3d | %s", indent, prefix, lineNum, lines[i]))

		if isErrorLine {
			caretLen := max(1, min(span.End, len(source))-span.Start)
			if rest := len(lines[i]) - (col - 1); caretLen > rest {
				caretLen = max(1, rest)
			}
			caret := strings.Repeat("^", caretLen)
			if label != "" {
				caret += " " + label
			}
			if color {
				caret = colorRed + caret + colorReset
			}
			message.WriteString(fmt.Sprintf("\n%s        | %s%s", indent, strings.Repeat(" ", col-1), caret))
		}
	}
	return message.String()
}
