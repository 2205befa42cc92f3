package pawrun

import (
	"errors"
	"fmt"
	"strings"
)

// Span is a half-open byte range into the source text of one call.
type Span struct {
	Start int
	End   int
}

// UnknownSpan marks values that did not come from source text.
var UnknownSpan = Span{}

// Merge returns the smallest span covering both s and other
func (s Span) Merge(other Span) Span {
	if s == UnknownSpan {
		return other
	}
	if other == UnknownSpan {
		return s
	}
	return Span{Start: min(s.Start, other.Start), End: max(s.End, other.End)}
}

// ErrorKind classifies a StructuredError by the stage that produced it
type ErrorKind int

const (
	ErrorEvaluation     ErrorKind = iota // Runtime failure during execution
	ErrorConfigOverride                  // Invalid per-call configuration override
	ErrorParseWarning                    // Advisory parser finding
	ErrorParse                           // Parser finding (advisory for now)
	ErrorCompile                         // Lowering finding (advisory for now)
	ErrorMerge                           // Delta could not be committed
	ErrorEmbedded                        // Error value produced by a script
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorConfigOverride:
		return "config override error"
	case ErrorParseWarning:
		return "parse warning"
	case ErrorParse:
		return "parse error"
	case ErrorCompile:
		return "compile error"
	case ErrorMerge:
		return "merge error"
	case ErrorEmbedded:
		return "error"
	default:
		return "evaluation error"
	}
}

// StructuredError is the single error type surfaced to hosts.
// Label is the short text shown under the highlighted span.
type StructuredError struct {
	Kind    ErrorKind
	Message string
	Label   string
	Help    string
	Span    *Span
	Inner   []*StructuredError
}

func (e *StructuredError) Error() string {
	return e.Message
}

// Unwrap exposes the nested causes to errors.Is and errors.As
func (e *StructuredError) Unwrap() []error {
	if len(e.Inner) == 0 {
		return nil
	}
	errs := make([]error, len(e.Inner))
	for i, inner := range e.Inner {
		errs[i] = inner
	}
	return errs
}

// WithHelp returns the error with help text attached
func (e *StructuredError) WithHelp(help string) *StructuredError {
	e.Help = help
	return e
}

// WithInner appends nested causes
func (e *StructuredError) WithInner(inner ...*StructuredError) *StructuredError {
	e.Inner = append(e.Inner, inner...)
	return e
}

// Summary renders the error on one line including its nested causes
func (e *StructuredError) Summary() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Label != "" && e.Label != e.Message {
		b.WriteString(": ")
		b.WriteString(e.Label)
	}
	for _, inner := range e.Inner {
		b.WriteString(" (caused by: ")
		b.WriteString(inner.Summary())
		b.WriteString(")")
	}
	return b.String()
}

func newError(kind ErrorKind, span Span, message, label string) *StructuredError {
	err := &StructuredError{Kind: kind, Message: message, Label: label}
	if span != UnknownSpan {
		s := span
		err.Span = &s
	}
	return err
}

func newEvalError(span Span, format string, args ...interface{}) *StructuredError {
	return newError(ErrorEvaluation, span, fmt.Sprintf(format, args...), "")
}

func newParseError(span Span, message, label string) *StructuredError {
	return newError(ErrorParse, span, message, label)
}

func newParseWarning(span Span, message, label string) *StructuredError {
	return newError(ErrorParseWarning, span, message, label)
}

func newCompileError(span Span, message, label string) *StructuredError {
	return newError(ErrorCompile, span, message, label)
}

func newMergeError(message string) *StructuredError {
	return newError(ErrorMerge, UnknownSpan, message, "")
}

// typeMismatch is the common evaluation failure for a value of the wrong kind
func typeMismatch(span Span, expected string, got Value) *StructuredError {
	err := newEvalError(span, "Type mismatch")
	err.Label = fmt.Sprintf("expected %s, found %s", expected, got.TypeName())
	return err
}

// asStructured converts any error into a StructuredError without losing
// an existing one further down the chain
func asStructured(err error, span Span) *StructuredError {
	if err == nil {
		return nil
	}
	var se *StructuredError
	if errors.As(err, &se) {
		return se
	}
	return newError(ErrorEvaluation, span, err.Error(), "")
}

// IsKind reports whether err is, or wraps, a StructuredError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var se *StructuredError
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == kind
}
