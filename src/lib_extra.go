package pawrun

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// addExtraCommands registers the extended command set
func addExtraCommands(ws *WorkingSet) {
	ws.AddDecl(&Command{
		Name:        "str title-case",
		Description: "Capitalizes every word.",
		Category:    CategoryStrings,
		Signature:   Signature{Named: []Flag{valueFlag("locale", 'l', ShapeString, "language tag for casing rules")}},
		Examples:    []Example{{Source: "'hello world' | str title-case", Description: "Hello World"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			tag, err := localeFlag(ctx, language.Und)
			if err != nil {
				return EmptyPipeline(), err
			}
			caser := cases.Title(tag)
			return mapString(func(ctx *Context, s string, span Span) (Value, error) {
				return StringValue(caser.String(s), span), nil
			})(ctx, input)
		},
	})

	// a Caser holds state, so each conversion gets its own
	lower := func(s string) string { return cases.Lower(language.Und).String(s) }
	title := func(s string) string { return cases.Title(language.Und).String(s) }
	ws.AddDecl(&Command{
		Name:        "str camel-case",
		Description: "Converts text to camelCase.",
		Category:    CategoryStrings,
		Run: mapString(func(ctx *Context, s string, span Span) (Value, error) {
			words := splitWords(s)
			for i, w := range words {
				if i == 0 {
					words[i] = lower(w)
				} else {
					words[i] = title(w)
				}
			}
			return StringValue(strings.Join(words, ""), span), nil
		}),
	})
	joined := func(name, sep string) *Command {
		return &Command{
			Name:        name,
			Description: fmt.Sprintf("Converts text to lower case words joined by '%s'.", sep),
			Category:    CategoryStrings,
			Run: mapString(func(ctx *Context, s string, span Span) (Value, error) {
				words := splitWords(s)
				for i, w := range words {
					words[i] = lower(w)
				}
				return StringValue(strings.Join(words, sep), span), nil
			}),
		}
	}
	ws.AddDecl(joined("str snake-case", "_"))
	ws.AddDecl(joined("str kebab-case", "-"))

	ws.AddDecl(&Command{
		Name:        "format number",
		Description: "Formats numbers with the digit grouping of a locale.",
		Category:    CategoryStrings,
		Signature: Signature{Named: []Flag{
			valueFlag("locale", 'l', ShapeString, "language tag, en by default"),
			valueFlag("decimals", 'd', ShapeInt, "digits after the decimal point"),
		}},
		Examples: []Example{{Source: "1234567 | format number", Description: "1,234,567"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			tag, err := localeFlag(ctx, language.English)
			if err != nil {
				return EmptyPipeline(), err
			}
			decimals := int64(-1)
			if d, ok := ctx.Named("decimals"); ok {
				if decimals, err = d.AsInt(); err != nil {
					return EmptyPipeline(), err
				}
			}
			p := message.NewPrinter(tag)
			return eachValue(ctx, input, func(v Value) (Value, error) {
				switch {
				case v.Kind == KindInt && decimals <= 0:
					return StringValue(p.Sprintf("%d", v.Int), v.Span), nil
				case isNumeric(v):
					f, _ := v.AsFloat()
					d := decimals
					if d < 0 {
						d = int64(max(ctx.Config().FloatPrecision, 0))
					}
					return StringValue(p.Sprintf("%.*f", int(d), f), v.Span), nil
				}
				return Value{}, typeMismatch(v.Span, "number", v)
			})
		},
	})

	ws.AddDecl(&Command{
		Name:        "to html",
		Description: "Renders markdown text, or structured data as markdown tables, to HTML.",
		Category:    CategoryFormats,
		Examples:    []Example{{Source: "'# Title' | to html", Description: "<h1>Title</h1>"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			v := input.IntoValue(ctx.Span)
			if v.Kind == KindError {
				return NewErrorPipeline(v.Err), nil
			}
			md := goldmark.New(goldmark.WithExtensions(extension.Table))
			var buf bytes.Buffer
			if err := md.Convert([]byte(toMarkdown(v)), &buf); err != nil {
				return EmptyPipeline(), ctx.Fail("Unable to render HTML").WithHelp(err.Error())
			}
			return valueResult(StringValue(buf.String(), ctx.Span))
		},
	})
}

func localeFlag(ctx *Context, def language.Tag) (language.Tag, error) {
	v, ok := ctx.Named("locale")
	if !ok {
		return def, nil
	}
	s, err := v.CoerceString()
	if err != nil {
		return def, err
	}
	tag, perr := language.Parse(s)
	if perr != nil {
		e := newEvalError(v.Span, "Invalid locale")
		e.Label = perr.Error()
		return def, e
	}
	return tag, nil
}

// splitWords breaks text at separators and lower-to-upper case changes
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
			continue
		case unicode.IsUpper(r) && len(cur) > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// toMarkdown renders a value as GitHub flavoured markdown
func toMarkdown(v Value) string {
	escape := func(s string) string {
		return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
	}
	row := func(cells []string) string {
		for i, c := range cells {
			cells[i] = escape(c)
		}
		return "| " + strings.Join(cells, " | ") + " |\n"
	}
	rule := func(n int) string {
		return "|" + strings.Repeat(" --- |", n) + "\n"
	}
	var b strings.Builder
	switch {
	case v.Kind == KindString:
		return v.Str
	case v.Kind == KindList && isTable(v.List):
		cols := tableColumns(v.List)
		b.WriteString(row(append([]string{}, cols...)))
		b.WriteString(rule(len(cols)))
		for _, item := range v.List {
			cells := make([]string, len(cols))
			for i, col := range cols {
				if cell, ok := item.Record.Get(col); ok {
					cells[i] = formatValue(cell, -1)
				}
			}
			b.WriteString(row(cells))
		}
	case v.Kind == KindList:
		for _, item := range v.List {
			b.WriteString("- " + escape(formatValue(item, -1)) + "\n")
		}
	case v.Kind == KindRecord:
		b.WriteString(row([]string{"key", "value"}))
		b.WriteString(rule(2))
		v.Record.Each(func(col string, val Value) {
			b.WriteString(row([]string{col, formatValue(val, -1)}))
		})
	default:
		return formatValue(v, -1)
	}
	return b.String()
}
