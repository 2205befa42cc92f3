package pawrun

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// stringArg requires a string item
func stringArg(v Value) (string, error) {
	if v.Kind != KindString {
		return "", typeMismatch(v.Span, "string", v)
	}
	return v.Str, nil
}

// mapString builds a handler that maps every string item through fn
func mapString(fn func(ctx *Context, s string, span Span) (Value, error)) Handler {
	return func(ctx *Context, input PipelineData) (PipelineData, error) {
		return eachValue(ctx, input, func(v Value) (Value, error) {
			s, err := stringArg(v)
			if err != nil {
				return Value{}, err
			}
			return fn(ctx, s, v.Span)
		})
	}
}

// addStringCommands registers the str family, split row and lines
func addStringCommands(ws *WorkingSet) {
	ws.AddDecl(&Command{
		Name:        "str upcase",
		Description: "Converts text to upper case.",
		Category:    CategoryStrings,
		Run: mapString(func(ctx *Context, s string, span Span) (Value, error) {
			return StringValue(strings.ToUpper(s), span), nil
		}),
	})

	ws.AddDecl(&Command{
		Name:        "str downcase",
		Description: "Converts text to lower case.",
		Category:    CategoryStrings,
		Run: mapString(func(ctx *Context, s string, span Span) (Value, error) {
			return StringValue(strings.ToLower(s), span), nil
		}),
	})

	ws.AddDecl(&Command{
		Name:        "str trim",
		Description: "Removes surrounding whitespace, or the given character.",
		Category:    CategoryStrings,
		Signature:   Signature{Named: []Flag{valueFlag("char", 'c', ShapeString, "character to trim instead of whitespace")}},
		Run: mapString(func(ctx *Context, s string, span Span) (Value, error) {
			if c, ok := ctx.Named("char"); ok {
				cs, err := c.CoerceString()
				if err != nil {
					return Value{}, err
				}
				return StringValue(strings.Trim(s, cs), span), nil
			}
			return StringValue(strings.TrimSpace(s), span), nil
		}),
	})

	ws.AddDecl(&Command{
		Name:        "str length",
		Description: "Counts the characters of the text.",
		Category:    CategoryStrings,
		Run: mapString(func(ctx *Context, s string, span Span) (Value, error) {
			return IntValue(int64(utf8.RuneCountInString(s)), span), nil
		}),
	})

	ws.AddDecl(&Command{
		Name:        "str contains",
		Description: "Checks whether the text contains a substring.",
		Category:    CategoryStrings,
		Signature: Signature{
			Required: []PositionalArg{required("substring", ShapeString, "the text to look for")},
			Named:    []Flag{switchFlag("ignore-case", 'i', "compare case-insensitively")},
		},
		Run: mapString(func(ctx *Context, s string, span Span) (Value, error) {
			sub, err := ctx.StringArg(0)
			if err != nil {
				return Value{}, err
			}
			if ctx.Has("ignore-case") {
				s, sub = strings.ToLower(s), strings.ToLower(sub)
			}
			return BoolValue(strings.Contains(s, sub), span), nil
		}),
	})

	ws.AddDecl(&Command{
		Name:        "str replace",
		Description: "Replaces the first match, or every match with --all.",
		Category:    CategoryStrings,
		Signature: Signature{
			Required: []PositionalArg{
				required("find", ShapeString, "the text or pattern to find"),
				required("replace", ShapeString, "the replacement"),
			},
			Named: []Flag{
				switchFlag("all", 'a', "replace every match"),
				switchFlag("regex", 'r', "treat find as a regular expression"),
			},
		},
		Examples: []Example{{Source: "'a-b-c' | str replace -a '-' '+'", Description: "a+b+c"}},
		Run: mapString(func(ctx *Context, s string, span Span) (Value, error) {
			find, err := ctx.StringArg(0)
			if err != nil {
				return Value{}, err
			}
			repl, err := ctx.StringArg(1)
			if err != nil {
				return Value{}, err
			}
			all := ctx.Has("all")
			if !ctx.Has("regex") {
				n := 1
				if all {
					n = -1
				}
				return StringValue(strings.Replace(s, find, repl, n), span), nil
			}
			re, err := regexp.Compile(find)
			if err != nil {
				e := newEvalError(ctx.Span, "Invalid regex")
				e.Label = err.Error()
				return Value{}, e
			}
			if all {
				return StringValue(re.ReplaceAllString(s, repl), span), nil
			}
			loc := re.FindStringSubmatchIndex(s)
			if loc == nil {
				return StringValue(s, span), nil
			}
			var out []byte
			out = re.ExpandString(out, repl, s, loc)
			return StringValue(s[:loc[0]]+string(out)+s[loc[1]:], span), nil
		}),
	})

	join := func(ctx *Context, input PipelineData) (PipelineData, error) {
		items, err := collect(input)
		if err != nil {
			return EmptyPipeline(), err
		}
		parts, err := stringsOf(items)
		if err != nil {
			return EmptyPipeline(), err
		}
		sep := ""
		if _, ok := ctx.Positional(0); ok {
			if sep, err = ctx.StringArg(0); err != nil {
				return EmptyPipeline(), err
			}
		}
		return valueResult(StringValue(strings.Join(parts, sep), ctx.Span))
	}
	joinSig := Signature{Optional: []PositionalArg{required("separator", ShapeString, "placed between items")}}
	ws.AddDecl(&Command{
		Name:        "str join",
		Description: "Joins the items into one string.",
		Category:    CategoryStrings,
		Signature:   joinSig,
		Examples:    []Example{{Source: "[a b c] | str join ','", Description: "a,b,c"}},
		Run:         join,
	})
	ws.AddDecl(&Command{
		Name:        "str collect",
		Description: "Joins the items into one string.",
		Category:    CategoryStrings,
		Signature:   joinSig,
		Deprecated:  "str join",
		Run:         join,
	})

	ws.AddDecl(&Command{
		Name:        "split row",
		Description: "Splits text into a list at every separator.",
		Category:    CategoryStrings,
		Signature: Signature{
			Required: []PositionalArg{required("separator", ShapeString, "where to split")},
			Named:    []Flag{valueFlag("number", 'n', ShapeInt, "split at most into this many parts")},
		},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			sep, err := ctx.StringArg(0)
			if err != nil {
				return EmptyPipeline(), err
			}
			limit := -1
			if n, ok := ctx.Named("number"); ok {
				i, err := n.AsInt()
				if err != nil {
					return EmptyPipeline(), err
				}
				limit = int(i)
			}
			items, err := collect(input)
			if err != nil {
				return EmptyPipeline(), err
			}
			var out []Value
			for _, item := range items {
				s, err := stringArg(item)
				if err != nil {
					return EmptyPipeline(), err
				}
				for _, part := range strings.SplitN(s, sep, limit) {
					out = append(out, StringValue(part, item.Span))
				}
			}
			return listResult(out, ctx.Span), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "lines",
		Description: "Splits text into lines, lazily.",
		Category:    CategoryStrings,
		Signature:   Signature{Named: []Flag{switchFlag("skip-empty", 's', "drop empty lines")}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			skipEmpty := ctx.Has("skip-empty")
			span := ctx.Span
			return NewStreamPipeline(func(yield func(Value) bool) {
				for item := range input.Values() {
					s, err := stringArg(item)
					if err != nil {
						yield(ErrorValue(asStructured(err, item.Span), item.Span))
						return
					}
					s = strings.TrimSuffix(s, "\n")
					for _, line := range strings.Split(s, "\n") {
						line = strings.TrimSuffix(line, "\r")
						if skipEmpty && strings.TrimSpace(line) == "" {
							continue
						}
						if !yield(StringValue(line, span)) {
							return
						}
					}
				}
			}, span), nil
		},
	})
}
