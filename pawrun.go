// Package pawrun lets a host hand script text and input data to an embedded
// pipeline interpreter and get back the output or a structured error.
//
// This package re-exports the public API from the implementation in src/.
// For full documentation, see the implementation package.
//
// Basic usage:
//
//	r := pawrun.New(pawrun.DefaultConfig())
//	out, err := r.Evaluate("range 1 5 | first 2", pawrun.EmptyPipeline(), pawrun.Overrides{})
package pawrun

import (
	impl "github.com/phroun/pawrun/src"
)

// =============================================================================
// CORE TYPES
// =============================================================================

// Runner evaluates scripts on behalf of a host.
type Runner = impl.Runner

// Config holds host-level options for a Runner.
type Config = impl.Config

// Context is passed to command handlers during execution.
type Context = impl.Context

// Handler is the function signature for command handlers.
type Handler = impl.Handler

// Command is a declaration in the registry.
type Command = impl.Command

// CommandInfo is the metadata of a registered command.
type CommandInfo = impl.CommandInfo

// Example is a usage example attached to a command.
type Example = impl.Example

// Signature describes the parameters a command accepts.
type Signature = impl.Signature

// PositionalArg describes one positional parameter.
type PositionalArg = impl.PositionalArg

// =============================================================================
// DATA TYPES
// =============================================================================

// Value is the tagged union flowing through pipelines.
type Value = impl.Value

// ValueKind identifies the variant held by a Value.
type ValueKind = impl.ValueKind

// Record is an insertion-ordered map of column name to value.
type Record = impl.Record

// PipelineData is what flows between pipeline stages and across Evaluate.
type PipelineData = impl.PipelineData

// PipelineKind identifies the variant held by PipelineData.
type PipelineKind = impl.PipelineKind

// Pipeline data variants.
const (
	PipelineEmpty  = impl.PipelineEmpty
	PipelineValue  = impl.PipelineValue
	PipelineStream = impl.PipelineStream
	PipelineError  = impl.PipelineError
)

// Value kinds.
const (
	KindNothing = impl.KindNothing
	KindBool    = impl.KindBool
	KindInt     = impl.KindInt
	KindFloat   = impl.KindFloat
	KindString  = impl.KindString
	KindList    = impl.KindList
	KindRecord  = impl.KindRecord
	KindClosure = impl.KindClosure
	KindError   = impl.KindError
)

// Shape is the syntactic shape an argument must have.
type Shape = impl.Shape

// Argument shapes.
const (
	ShapeAny    = impl.ShapeAny
	ShapeString = impl.ShapeString
	ShapeInt    = impl.ShapeInt
)

// Span is a byte range into the source text of one call.
type Span = impl.Span

// =============================================================================
// ERRORS
// =============================================================================

// StructuredError is the single error type surfaced to hosts.
type StructuredError = impl.StructuredError

// ErrorKind classifies a StructuredError.
type ErrorKind = impl.ErrorKind

// Error kinds.
const (
	ErrorEvaluation     = impl.ErrorEvaluation
	ErrorConfigOverride = impl.ErrorConfigOverride
	ErrorParseWarning   = impl.ErrorParseWarning
	ErrorParse          = impl.ErrorParse
	ErrorCompile        = impl.ErrorCompile
	ErrorMerge          = impl.ErrorMerge
	ErrorEmbedded       = impl.ErrorEmbedded
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// SessionConfig is the per-call interpreter configuration.
type SessionConfig = impl.SessionConfig

// Overrides are the optional per-call settings supplied by the caller.
type Overrides = impl.Overrides

// TableMode selects the border style used when rendering tables.
type TableMode = impl.TableMode

// ErrorStyle selects how diagnostics are rendered.
type ErrorStyle = impl.ErrorStyle

// ColorMode controls ANSI colouring of rendered output.
type ColorMode = impl.ColorMode

// =============================================================================
// HOST COLLABORATORS
// =============================================================================

// Host supplies the working directory, environment and default config.
type Host = impl.Host

// ProcessHost reads everything from the running process.
type ProcessHost = impl.ProcessHost

// StaticHost serves fixed values.
type StaticHost = impl.StaticHost

// Snapshot is the environment captured at the start of a call.
type Snapshot = impl.Snapshot

// =============================================================================
// LOGGING
// =============================================================================

// Logger is the leveled, categorised diagnostic logger.
type Logger = impl.Logger

// LogCategory identifies the logging subsystem.
type LogCategory = impl.LogCategory

// Log categories.
const (
	CatParse    = impl.CatParse
	CatCommand  = impl.CatCommand
	CatVariable = impl.CatVariable
	CatIO       = impl.CatIO
	CatConfig   = impl.CatConfig
	CatFlow     = impl.CatFlow
	CatSystem   = impl.CatSystem
	CatHost     = impl.CatHost
)

// =============================================================================
// CONSTRUCTORS AND FUNCTIONS
// =============================================================================

var (
	// New creates a Runner.
	New = impl.New

	// DefaultConfig returns the default host configuration.
	DefaultConfig = impl.DefaultConfig

	// DefaultSessionConfig returns the built-in session defaults.
	DefaultSessionConfig = impl.DefaultSessionConfig

	// LoadSessionConfig reads a YAML or TOML session config file.
	LoadSessionConfig = impl.LoadSessionConfig

	// ParseTableMode accepts a table mode name.
	ParseTableMode = impl.ParseTableMode

	// ParseErrorStyle accepts an error style name.
	ParseErrorStyle = impl.ParseErrorStyle

	// ParseLogCategory accepts a log category name.
	ParseLogCategory = impl.ParseLogCategory

	// StringOverrides builds Overrides from plain strings.
	StringOverrides = impl.StringOverrides

	// NewProcessHost creates a host backed by the running process.
	NewProcessHost = impl.NewProcessHost

	// EmptyPipeline is the absence of input or output.
	EmptyPipeline = impl.EmptyPipeline

	// NewValuePipeline wraps a single value.
	NewValuePipeline = impl.NewValuePipeline

	// NewStreamPipeline wraps a lazy sequence of values.
	NewStreamPipeline = impl.NewStreamPipeline

	// ToGo converts a value into plain Go data.
	ToGo = impl.ToGo

	// FromGo converts decoded Go data into a value.
	FromGo = impl.FromGo

	// IsKind reports whether err is a StructuredError of the given kind.
	IsKind = impl.IsKind
)

// Version returns the interpreter version.
func Version() string {
	return impl.Version
}
