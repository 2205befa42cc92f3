package pawrun

import (
	"runtime"
)

// Version of the interpreter, reported by the version command
var Version = "dev" // set via -ldflags at build time

// addCoreCommands registers the minimal language core
func addCoreCommands(ws *WorkingSet) {
	ws.AddDecl(&Command{
		Name:        "echo",
		Description: "Returns its arguments: one argument as itself, several as a list.",
		Category:    CategoryCore,
		Signature:   Signature{Rest: &PositionalArg{Name: "rest", Shape: ShapeAny}},
		Examples: []Example{
			{Source: "echo 1", Description: "the integer 1"},
			{Source: "echo a b c", Description: "a list of three strings"},
		},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			args := ctx.Rest(0)
			switch len(args) {
			case 0:
				return EmptyPipeline(), nil
			case 1:
				return NewValuePipeline(args[0]), nil
			}
			return NewValuePipeline(ListValue(append([]Value{}, args...), ctx.Span)), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "error make",
		Description: "Creates an error value from a record with msg, label, help and inner.",
		Category:    CategoryCore,
		Signature: Signature{
			Required: []PositionalArg{required("error_struct", ShapeRecord, "the error to create")},
			Named:    []Flag{switchFlag("unspanned", 'u', "do not point at the call site")},
		},
		Examples: []Example{
			{Source: `error make {msg: "boom"}`, Description: "fail with the message boom"},
			{Source: `error make {msg: "outer", inner: [{msg: "cause"}]}`, Description: "fail with a nested cause"},
		},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			arg, _ := ctx.Positional(0)
			span := ctx.Span
			if ctx.Has("unspanned") {
				span = UnknownSpan
			}
			made, err := errorFromRecord(arg, span)
			if err != nil {
				return EmptyPipeline(), err
			}
			return NewErrorPipeline(made), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "ignore",
		Description: "Consumes its input and returns nothing.",
		Category:    CategoryCore,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			input.Drain()
			return EmptyPipeline(), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "describe",
		Description: "Describes the type of the input.",
		Category:    CategoryCore,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			if input.Kind() == PipelineStream {
				return NewValuePipeline(StringValue("list<any> (stream)", ctx.Span)), nil
			}
			v := input.IntoValue(ctx.Span)
			return NewValuePipeline(StringValue(v.TypeName(), ctx.Span)), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "do",
		Description: "Runs a closure with the input and any extra arguments.",
		Category:    CategoryCore,
		Signature: Signature{
			Required: []PositionalArg{required("closure", ShapeClosure, "the closure to run")},
			Rest:     &PositionalArg{Name: "rest", Shape: ShapeAny},
			Named:    []Flag{switchFlag("ignore-errors", 'i', "return nothing instead of failing")},
		},
		Examples: []Example{
			{Source: "do {|x| $x + 1 } 41", Description: "run a closure with an argument"},
		},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			cl, err := ctx.ClosureArg(0)
			if err != nil {
				return EmptyPipeline(), err
			}
			out, err := ctx.RunClosure(cl, input, ctx.Rest(1)...)
			if ctx.Has("ignore-errors") {
				if _, embedded := out.Err(); embedded || err != nil {
					if _, ok := err.(*controlFlow); !ok {
						return EmptyPipeline(), nil
					}
				}
			}
			return out, err
		},
	})

	ws.AddDecl(&Command{
		Name:        "version",
		Description: "Shows the interpreter version.",
		Category:    CategoryCore,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			rec := NewRecord()
			rec.Set("version", StringValue(Version, ctx.Span))
			rec.Set("go_version", StringValue(runtime.Version(), ctx.Span))
			rec.Set("build_os", StringValue(runtime.GOOS, ctx.Span))
			rec.Set("build_arch", StringValue(runtime.GOARCH, ctx.Span))
			return NewValuePipeline(RecordValue(rec, ctx.Span)), nil
		},
	})
}

// errorFromRecord builds an embedded error from a record with msg, label,
// help and inner columns. inner is a list of records of the same form.
func errorFromRecord(arg Value, span Span) (*StructuredError, error) {
	if arg.Kind != KindRecord {
		return nil, typeMismatch(arg.Span, "record", arg)
	}
	text := func(col string) (string, error) {
		v, ok := arg.Record.Get(col)
		if !ok || v.IsNothing() {
			return "", nil
		}
		return v.CoerceString()
	}
	msgVal, ok := arg.Record.Get("msg")
	if !ok {
		err := newEvalError(arg.Span, "Missing msg")
		err.Label = "the error record needs a msg column"
		return nil, err
	}
	msg, err := msgVal.CoerceString()
	if err != nil {
		return nil, err
	}
	label, err := text("label")
	if err != nil {
		return nil, err
	}
	help, err := text("help")
	if err != nil {
		return nil, err
	}
	made := newError(ErrorEmbedded, span, msg, label)
	made.Help = help

	inner, ok := arg.Record.Get("inner")
	if !ok || inner.IsNothing() {
		return made, nil
	}
	causes := []Value{inner}
	if inner.Kind == KindList {
		causes = inner.List
	}
	for _, c := range causes {
		if c.Kind == KindError {
			made.Inner = append(made.Inner, c.Err)
			continue
		}
		cause, err := errorFromRecord(c, UnknownSpan)
		if err != nil {
			return nil, err
		}
		made.Inner = append(made.Inner, cause)
	}
	return made, nil
}
