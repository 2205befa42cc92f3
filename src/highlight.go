package pawrun

import (
	"fmt"
	"io"
	"strings"
)

const (
	hlKeyword  = "\x1b[35m"
	hlCommand  = "\x1b[1;36m"
	hlString   = "\x1b[32m"
	hlNumber   = "\x1b[33m"
	hlVariable = "\x1b[34m"
	hlOperator = "\x1b[1;33m"
	hlFlag     = "\x1b[36m"
	hlError    = "\x1b[4;31m"
)

var keywords = map[string]bool{
	"let": true, "mut": true, "def": true, "if": true, "else": true,
	"for": true, "in": true, "try": true, "catch": true, "break": true,
	"continue": true, "return": true,
}

// highlightSource colours source text by token class. Text between tokens,
// comments included, is copied unchanged.
func highlightSource(source string) string {
	tokens, errs := lex(source)
	var b strings.Builder
	pos := 0
	atStart := true
	for _, tok := range tokens {
		if tok.Kind == TokEOF {
			break
		}
		b.WriteString(source[pos:tok.Span.Start])
		text := source[tok.Span.Start:tok.Span.End]
		color := ""
		switch tok.Kind {
		case TokString, TokRawString:
			color = hlString
		case TokWord:
			switch {
			case keywords[tok.Text]:
				color = hlKeyword
			case strings.HasPrefix(tok.Text, "$"):
				color = hlVariable
			case isNumberWord(tok.Text) || tok.Text == "true" || tok.Text == "false" || tok.Text == "null":
				color = hlNumber
			case isOperatorToken(tok) || tok.Text == "not":
				color = hlOperator
			case atStart:
				color = hlCommand
			case strings.HasPrefix(tok.Text, "-"):
				color = hlFlag
			}
		case TokPipe:
			color = hlOperator
		}
		for _, e := range errs {
			if e.Span != nil && e.Span.Start <= tok.Span.Start && tok.Span.End <= e.Span.End {
				color = hlError
			}
		}
		if color != "" {
			b.WriteString(color + text + ansiReset)
		} else {
			b.WriteString(text)
		}
		pos = tok.Span.End
		switch tok.Kind {
		case TokPipe, TokSemicolon, TokNewline, TokLParen, TokLBrace:
			atStart = true
		case TokWord:
			atStart = keywords[tok.Text] && tok.Text != "in"
		default:
			atStart = false
		}
	}
	if pos < len(source) {
		b.WriteString(source[pos:])
	}
	return b.String()
}

// addInjectedCommands registers the primitives every call gets on top of
// the base registry
func addInjectedCommands(ws *WorkingSet) {
	ws.AddDecl(&Command{
		Name:        "highlight",
		Description: "Colours source text for display in a terminal.",
		Category:    CategoryViewers,
		Examples:    []Example{{Source: "'echo 1 | print' | highlight", Description: "the source with ANSI colours"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			return eachValue(ctx, input, func(v Value) (Value, error) {
				s, err := stringArg(v)
				if err != nil {
					return Value{}, err
				}
				return StringValue(highlightSource(s), v.Span), nil
			})
		},
	})

	ws.AddDecl(&Command{
		Name:        "print",
		Description: "Prints its arguments, or the input, to the output.",
		Category:    CategoryCore,
		Signature: Signature{
			Rest: &PositionalArg{Name: "rest", Shape: ShapeAny},
			Named: []Flag{
				switchFlag("no-newline", 'n', "do not end with a newline"),
				switchFlag("stderr", 'e', "print to the error output"),
			},
		},
		Examples: []Example{{Source: "print (range 1 5 | first 2)", Description: "print a list as a table"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			out := ctx.Output()
			if ctx.Has("stderr") && ctx.Logger().errOut != nil {
				out = ctx.Logger().errOut
			}
			values := ctx.Rest(0)
			if len(values) == 0 && !input.IsEmpty() {
				values = []Value{input.IntoValue(ctx.Span)}
			}
			r := ctx.renderer()
			noNewline := ctx.Has("no-newline")
			for _, v := range values {
				if v.Kind == KindError {
					return NewErrorPipeline(v.Err), nil
				}
				if err := printValue(out, r, v, noNewline); err != nil {
					return EmptyPipeline(), ctx.Fail("Unable to write output").WithHelp(err.Error())
				}
			}
			return EmptyPipeline(), nil
		},
	})
}

func printValue(w io.Writer, r *tableRenderer, v Value, noNewline bool) error {
	text := ""
	if v.Kind == KindString {
		text = v.Str + "\n"
	} else {
		text = r.Render(v)
	}
	if noNewline {
		text = strings.TrimSuffix(text, "\n")
	}
	_, err := fmt.Fprint(w, text)
	return err
}
