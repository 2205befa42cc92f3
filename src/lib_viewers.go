package pawrun

// terminal detects the capabilities of the call's output using the call's
// own TERM and COLORTERM
func (c *Context) terminal() *TerminalCapabilities {
	return DetectTerminalCapabilities(c.Output(), func(name string) string {
		v, ok := c.Stack.GetEnv(c.Engine, name)
		if !ok || v.Kind != KindString {
			return ""
		}
		return v.Str
	})
}

// renderer builds a table renderer for the call's session config
func (c *Context) renderer() *tableRenderer {
	return newTableRenderer(c.Config(), c.terminal())
}

// addViewerCommands registers commands that render values as text
func addViewerCommands(ws *WorkingSet) {
	ws.AddDecl(&Command{
		Name:        "table",
		Description: "Renders the input as a text table in the session's table mode.",
		Category:    CategoryViewers,
		Signature: Signature{Named: []Flag{
			valueFlag("mode", 'm', ShapeString, "table mode to use instead of the session's"),
			valueFlag("width", 'w', ShapeInt, "maximum width in columns"),
		}},
		Examples: []Example{{Source: "[{a: 1}] | table -m basic", Description: "a table with ASCII borders"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			r := ctx.renderer()
			if m, ok := ctx.Named("mode"); ok {
				name, err := m.CoerceString()
				if err != nil {
					return EmptyPipeline(), err
				}
				mode, perr := ParseTableMode(name)
				if perr != nil {
					e := newEvalError(m.Span, "Invalid table mode")
					e.Label = perr.Error()
					return EmptyPipeline(), e
				}
				r.mode = mode
			}
			if w, ok := ctx.Named("width"); ok {
				n, err := w.AsInt()
				if err != nil {
					return EmptyPipeline(), err
				}
				r.maxWidth = int(n)
			}
			v := input.IntoValue(ctx.Span)
			if v.Kind == KindError {
				return NewErrorPipeline(v.Err), nil
			}
			return valueResult(StringValue(r.Render(v), ctx.Span))
		},
	})
}
