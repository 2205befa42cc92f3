package pawrun

// addMathCommands registers the math aggregates
func addMathCommands(ws *WorkingSet) {
	numbers := func(ctx *Context, input PipelineData) ([]Value, error) {
		items, err := collect(input)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, ctx.Fail("Unable to aggregate an empty list").WithHelp(ctx.Name + " needs at least one number")
		}
		for _, item := range items {
			if !isNumeric(item) {
				return nil, typeMismatch(item.Span, "number", item)
			}
		}
		return items, nil
	}
	sum := func(items []Value, span Span) (Value, error) {
		total := IntValue(0, span)
		for _, item := range items {
			var err error
			total, err = arithmetic("+", total, item, span)
			if err != nil {
				return Value{}, err
			}
		}
		return total, nil
	}

	ws.AddDecl(&Command{
		Name:        "math sum",
		Description: "Adds up the numbers of the input.",
		Category:    CategoryMath,
		Examples:    []Example{{Source: "[1 2 3] | math sum", Description: "6"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			items, err := numbers(ctx, input)
			if err != nil {
				return EmptyPipeline(), err
			}
			total, err := sum(items, ctx.Span)
			if err != nil {
				return EmptyPipeline(), err
			}
			return valueResult(total)
		},
	})

	ws.AddDecl(&Command{
		Name:        "math avg",
		Description: "Averages the numbers of the input.",
		Category:    CategoryMath,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			items, err := numbers(ctx, input)
			if err != nil {
				return EmptyPipeline(), err
			}
			total, err := sum(items, ctx.Span)
			if err != nil {
				return EmptyPipeline(), err
			}
			f, _ := total.AsFloat()
			return valueResult(FloatValue(f/float64(len(items)), ctx.Span))
		},
	})

	extreme := func(name, desc string, want int) *Command {
		return &Command{
			Name:        name,
			Description: desc,
			Category:    CategoryMath,
			Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
				items, err := numbers(ctx, input)
				if err != nil {
					return EmptyPipeline(), err
				}
				best := items[0]
				for _, item := range items[1:] {
					if compareValues(item, best) == want {
						best = item
					}
				}
				return valueResult(best)
			},
		}
	}
	ws.AddDecl(extreme("math min", "Returns the smallest number of the input.", -1))
	ws.AddDecl(extreme("math max", "Returns the largest number of the input.", 1))
}
