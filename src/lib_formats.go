package pawrun

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

// addFormatCommands registers the to/from converters
func addFormatCommands(ws *WorkingSet) {
	ws.AddDecl(&Command{
		Name:        "to json",
		Description: "Converts the input to JSON text.",
		Category:    CategoryFormats,
		Signature: Signature{Named: []Flag{
			switchFlag("raw", 'r', "no indentation or line breaks"),
			valueFlag("indent", 'i', ShapeInt, "spaces per indentation level"),
		}},
		Examples: []Example{{Source: "{a: 1} | to json -r", Description: `{"a":1}`}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			indent := "  "
			if n, ok := ctx.Named("indent"); ok {
				i, err := n.AsInt()
				if err != nil {
					return EmptyPipeline(), err
				}
				indent = strings.Repeat(" ", int(max(i, 0)))
			}
			if ctx.Has("raw") {
				indent = ""
			}
			v := input.IntoValue(ctx.Span)
			if v.Kind == KindError {
				return NewErrorPipeline(v.Err), nil
			}
			var buf bytes.Buffer
			if err := encodeJSON(&buf, v, indent, 0); err != nil {
				return EmptyPipeline(), err
			}
			return valueResult(StringValue(buf.String(), ctx.Span))
		},
	})

	ws.AddDecl(&Command{
		Name:        "from json",
		Description: "Parses JSON text into structured data.",
		Category:    CategoryFormats,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			return fromText(ctx, input, "json", decodeJSON)
		},
	})

	ws.AddDecl(&Command{
		Name:        "to yaml",
		Description: "Converts the input to YAML text.",
		Category:    CategoryFormats,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			v := input.IntoValue(ctx.Span)
			node, err := toYAMLNode(v)
			if err != nil {
				return EmptyPipeline(), err
			}
			var buf bytes.Buffer
			enc := yaml.NewEncoder(&buf)
			enc.SetIndent(2)
			if err := enc.Encode(node); err != nil {
				return EmptyPipeline(), ctx.Fail("Unable to encode YAML").WithHelp(err.Error())
			}
			if err := enc.Close(); err != nil {
				return EmptyPipeline(), ctx.Fail("Unable to encode YAML").WithHelp(err.Error())
			}
			return valueResult(StringValue(buf.String(), ctx.Span))
		},
	})

	ws.AddDecl(&Command{
		Name:        "from yaml",
		Description: "Parses YAML text into structured data.",
		Category:    CategoryFormats,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			return fromText(ctx, input, "yaml", decodeYAML)
		},
	})

	ws.AddDecl(&Command{
		Name:        "to toml",
		Description: "Converts a record to TOML text.",
		Category:    CategoryFormats,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			v := input.IntoValue(ctx.Span)
			text, err := encodeTOML(v)
			if err != nil {
				if se, ok := err.(*StructuredError); ok {
					return EmptyPipeline(), se
				}
				return EmptyPipeline(), ctx.Fail("Unable to encode TOML").WithHelp(err.Error())
			}
			return valueResult(StringValue(text, ctx.Span))
		},
	})

	ws.AddDecl(&Command{
		Name:        "from toml",
		Description: "Parses TOML text into a record.",
		Category:    CategoryFormats,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			return fromText(ctx, input, "toml", decodeTOML)
		},
	})

	ws.AddDecl(&Command{
		Name:        "to text",
		Description: "Converts the input to plain text, one item per line.",
		Category:    CategoryFormats,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			return valueResult(StringValue(toText(input.IntoValue(ctx.Span)), ctx.Span))
		},
	})
}

func decodeYAML(data string, span Span) (Value, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(data), &node); err != nil {
		return Value{}, err
	}
	return fromYAMLNode(&node, span)
}

// fromText parses string input with decode, failing with the input's span
func fromText(ctx *Context, input PipelineData, format string, decode func(string, Span) (Value, error)) (PipelineData, error) {
	v := input.IntoValue(ctx.Span)
	s, err := stringArg(v)
	if err != nil {
		return EmptyPipeline(), err
	}
	out, err := decode(s, ctx.Span)
	if err != nil {
		if se, ok := err.(*StructuredError); ok {
			return EmptyPipeline(), se
		}
		e := newEvalError(v.Span, "Error while parsing as %s", format)
		e.Label = "could not parse this input"
		e.Help = err.Error()
		return EmptyPipeline(), e
	}
	return NewValuePipeline(out), nil
}

// toText renders lists one item per line and everything else as text
func toText(v Value) string {
	if v.Kind == KindList {
		lines := make([]string, len(v.List))
		for i, item := range v.List {
			lines[i] = formatValue(item, -1)
		}
		return strings.Join(lines, "\n")
	}
	return formatValue(v, -1)
}
