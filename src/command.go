package pawrun

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Handler is the function signature for command implementations
type Handler func(ctx *Context, input PipelineData) (PipelineData, error)

// DeclID identifies a declaration in the registry
type DeclID int

// Category groups commands in help output
type Category string

const (
	CategoryCore       Category = "core"
	CategoryFilters    Category = "filters"
	CategoryMath       Category = "math"
	CategoryStrings    Category = "strings"
	CategoryConversion Category = "conversions"
	CategoryFormats    Category = "formats"
	CategoryFilesystem Category = "filesystem"
	CategoryViewers    Category = "viewers"
	CategorySession    Category = "session"
	CategoryCustom     Category = "custom"
)

// Shape is the syntactic shape an argument must have
type Shape int

const (
	ShapeAny Shape = iota
	ShapeString
	ShapeInt
	ShapeNumber
	ShapeBool
	ShapeList
	ShapeRecord
	ShapeClosure
	ShapeCellPath
	ShapeCondition // a row condition as taken by `where`
)

func (s Shape) String() string {
	switch s {
	case ShapeString:
		return "string"
	case ShapeInt:
		return "int"
	case ShapeNumber:
		return "number"
	case ShapeBool:
		return "bool"
	case ShapeList:
		return "list"
	case ShapeRecord:
		return "record"
	case ShapeClosure:
		return "closure"
	case ShapeCellPath:
		return "cell-path"
	case ShapeCondition:
		return "condition"
	default:
		return "any"
	}
}

// parseShape maps a type annotation in a def signature to a Shape
func parseShape(name string) (Shape, bool) {
	switch name {
	case "any":
		return ShapeAny, true
	case "string":
		return ShapeString, true
	case "int":
		return ShapeInt, true
	case "number", "float":
		return ShapeNumber, true
	case "bool":
		return ShapeBool, true
	case "list":
		return ShapeList, true
	case "record":
		return ShapeRecord, true
	case "closure":
		return ShapeClosure, true
	case "cell-path":
		return ShapeCellPath, true
	}
	return ShapeAny, false
}

// PositionalArg describes one positional parameter
type PositionalArg struct {
	Name        string
	Shape       Shape
	Description string
	Var         VarID // set for custom commands
}

// Flag describes a named parameter; a flag without a Shape is a switch
type Flag struct {
	Long        string
	Short       rune
	Shape       *Shape
	Description string
	Var         VarID
}

// Signature describes the parameters a command accepts
type Signature struct {
	Required []PositionalArg
	Optional []PositionalArg
	Rest     *PositionalArg
	Named    []Flag
}

func (s Signature) findFlag(name string) (Flag, bool) {
	for _, f := range s.Named {
		if f.Long == name {
			return f, true
		}
		if len(name) == 1 && f.Short != 0 && rune(name[0]) == f.Short {
			return f, true
		}
	}
	return Flag{}, false
}

// Usage renders the signature on one line
func (s Signature) Usage(name string) string {
	parts := []string{name}
	for _, f := range s.Named {
		flag := "--" + f.Long
		if f.Shape != nil {
			flag += " <" + f.Shape.String() + ">"
		}
		parts = append(parts, "{"+flag+"}")
	}
	for _, p := range s.Required {
		parts = append(parts, "<"+p.Name+">")
	}
	for _, p := range s.Optional {
		parts = append(parts, "("+p.Name+")")
	}
	if s.Rest != nil {
		parts = append(parts, "..."+s.Rest.Name)
	}
	return strings.Join(parts, " ")
}

// Example is a usage example shown by help and the describe operation
type Example struct {
	Source      string
	Description string
}

// Command is a declaration in the registry
type Command struct {
	Name        string
	Signature   Signature
	Description string
	Category    Category
	Examples    []Example
	// Deprecated names the replacement for a deprecated command
	Deprecated string
	Run        Handler
	// Body is set for commands defined in script with def
	Body *Block
}

func switchFlag(long string, short rune, desc string) Flag {
	return Flag{Long: long, Short: short, Description: desc}
}

func valueFlag(long string, short rune, shape Shape, desc string) Flag {
	return Flag{Long: long, Short: short, Shape: &shape, Description: desc}
}

func required(name string, shape Shape, desc string) PositionalArg {
	return PositionalArg{Name: name, Shape: shape, Description: desc}
}

// Context is what a handler sees of the call it serves
type Context struct {
	Engine *EngineState
	Stack  *Stack
	Name   string
	Span   Span // the whole call
	Head   Span // the command name

	positional []Value
	named      map[string]Value
}

// Positional returns the i-th positional argument
func (c *Context) Positional(i int) (Value, bool) {
	if i < 0 || i >= len(c.positional) {
		return Value{}, false
	}
	return c.positional[i], true
}

// Rest returns positional arguments from index i onward
func (c *Context) Rest(i int) []Value {
	if i >= len(c.positional) {
		return nil
	}
	return c.positional[i:]
}

// Has reports whether a flag was given
func (c *Context) Has(flag string) bool {
	v, ok := c.named[flag]
	if !ok {
		return false
	}
	if v.Kind == KindBool {
		return v.Bool
	}
	return true
}

// Named returns the value of a valued flag
func (c *Context) Named(flag string) (Value, bool) {
	v, ok := c.named[flag]
	return v, ok
}

// StringArg returns positional i coerced to a string
func (c *Context) StringArg(i int) (string, error) {
	v, ok := c.Positional(i)
	if !ok {
		return "", c.missing(i)
	}
	return v.CoerceString()
}

// IntArg returns positional i as an integer
func (c *Context) IntArg(i int) (int64, error) {
	v, ok := c.Positional(i)
	if !ok {
		return 0, c.missing(i)
	}
	return v.AsInt()
}

// ClosureArg returns positional i as a closure
func (c *Context) ClosureArg(i int) (*Closure, error) {
	v, ok := c.Positional(i)
	if !ok {
		return nil, c.missing(i)
	}
	if v.Kind != KindClosure {
		return nil, typeMismatch(v.Span, "closure", v)
	}
	return v.Closure, nil
}

func (c *Context) missing(i int) error {
	return newEvalError(c.Span, "Missing argument %d to %s", i+1, c.Name)
}

// Output is where print and table write
func (c *Context) Output() io.Writer {
	return c.Engine.out
}

// Logger returns the call's logger
func (c *Context) Logger() *Logger {
	return c.Engine.logger
}

// Config returns the session config in force for the call
func (c *Context) Config() *SessionConfig {
	return c.Engine.config
}

// RunClosure evaluates a closure with positional arguments and input
func (c *Context) RunClosure(cl *Closure, input PipelineData, args ...Value) (PipelineData, error) {
	return runClosure(c.Engine, cl, input, args...)
}

// Fail builds an evaluation error at the call
func (c *Context) Fail(format string, args ...interface{}) *StructuredError {
	return newEvalError(c.Span, format, args...)
}

// commandNames returns every registered name, sorted
func commandNames(state *EngineState) []string {
	names := state.declNames()
	sort.Strings(names)
	return names
}

func describeCommand(cmd *Command) string {
	return fmt.Sprintf("%s - %s", cmd.Signature.Usage(cmd.Name), cmd.Description)
}
