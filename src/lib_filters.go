package pawrun

import (
	"iter"
	"slices"
	"strconv"
)

// addFilterCommands registers list and table filters
func addFilterCommands(ws *WorkingSet) {
	countArg := func(ctx *Context, def int64) (int64, bool, error) {
		v, ok := ctx.Positional(0)
		if !ok || v.IsNothing() {
			return def, false, nil
		}
		n, err := v.AsInt()
		if err != nil {
			return 0, true, err
		}
		if n < 0 {
			return 0, true, newEvalError(v.Span, "Use a positive value")
		}
		return n, true, nil
	}

	ws.AddDecl(&Command{
		Name:        "first",
		Description: "Returns the first item, or the first n items as a list.",
		Category:    CategoryFilters,
		Signature:   Signature{Optional: []PositionalArg{required("rows", ShapeInt, "number of items")}},
		Examples:    []Example{{Source: "range 1 5 | first 2", Description: "[1, 2]"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			n, given, err := countArg(ctx, 1)
			if err != nil {
				return EmptyPipeline(), err
			}
			if !given {
				for v := range input.Values() {
					return NewValuePipeline(v), nil
				}
				return EmptyPipeline(), ctx.Fail("Input is empty").WithHelp("first needs at least one item")
			}
			return transform(ctx, input, func(seq iter.Seq[Value]) iter.Seq[Value] {
				return func(yield func(Value) bool) {
					if n == 0 {
						return
					}
					taken := int64(0)
					for v := range seq {
						if !yield(v) {
							return
						}
						taken++
						if taken >= n {
							return
						}
					}
				}
			}), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "last",
		Description: "Returns the last item, or the last n items as a list.",
		Category:    CategoryFilters,
		Signature:   Signature{Optional: []PositionalArg{required("rows", ShapeInt, "number of items")}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			n, given, err := countArg(ctx, 1)
			if err != nil {
				return EmptyPipeline(), err
			}
			items, err := collect(input)
			if err != nil {
				return EmptyPipeline(), err
			}
			if !given {
				if len(items) == 0 {
					return EmptyPipeline(), ctx.Fail("Input is empty").WithHelp("last needs at least one item")
				}
				return NewValuePipeline(items[len(items)-1]), nil
			}
			start := max(0, len(items)-int(n))
			return listResult(items[start:], ctx.Span), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "skip",
		Description: "Skips the first n items.",
		Category:    CategoryFilters,
		Signature:   Signature{Optional: []PositionalArg{required("n", ShapeInt, "number of items to skip")}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			n, _, err := countArg(ctx, 1)
			if err != nil {
				return EmptyPipeline(), err
			}
			return transform(ctx, input, func(seq iter.Seq[Value]) iter.Seq[Value] {
				return func(yield func(Value) bool) {
					seen := int64(0)
					for v := range seq {
						if seen < n {
							seen++
							continue
						}
						if !yield(v) {
							return
						}
					}
				}
			}), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "length",
		Description: "Counts the items of the input.",
		Category:    CategoryFilters,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			items, err := collect(input)
			if err != nil {
				return EmptyPipeline(), err
			}
			return valueResult(IntValue(int64(len(items)), ctx.Span))
		},
	})

	ws.AddDecl(&Command{
		Name:        "reverse",
		Description: "Reverses the order of the items.",
		Category:    CategoryFilters,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			items, err := collect(input)
			if err != nil {
				return EmptyPipeline(), err
			}
			slices.Reverse(items)
			return listResult(items, ctx.Span), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "sort",
		Description: "Sorts the items.",
		Category:    CategoryFilters,
		Signature:   Signature{Named: []Flag{switchFlag("reverse", 'r', "sort in descending order")}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			items, err := collect(input)
			if err != nil {
				return EmptyPipeline(), err
			}
			sortValues(items, compareValues)
			if ctx.Has("reverse") {
				slices.Reverse(items)
			}
			return listResult(items, ctx.Span), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "sort-by",
		Description: "Sorts a table by one or more columns.",
		Category:    CategoryFilters,
		Signature: Signature{
			Rest:  &PositionalArg{Name: "columns", Shape: ShapeCellPath},
			Named: []Flag{switchFlag("reverse", 'r', "sort in descending order")},
		},
		Examples: []Example{{Source: "[{a: 2} {a: 1}] | sort-by a", Description: "sort rows by column a"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			items, err := collect(input)
			if err != nil {
				return EmptyPipeline(), err
			}
			paths, err := cellPathArgs(ctx.Rest(0))
			if err != nil {
				return EmptyPipeline(), err
			}
			if len(paths) == 0 {
				return EmptyPipeline(), ctx.Fail("sort-by needs at least one column")
			}
			keys := make([][]Value, len(items))
			for i, item := range items {
				for _, path := range paths {
					k, err := followCellPath(item, path)
					if err != nil {
						return EmptyPipeline(), err
					}
					keys[i] = append(keys[i], k)
				}
			}
			idx := make([]int, len(items))
			for i := range idx {
				idx[i] = i
			}
			slices.SortStableFunc(idx, func(a, b int) int {
				for k := range paths {
					if c := compareValues(keys[a][k], keys[b][k]); c != 0 {
						return c
					}
				}
				return 0
			})
			out := make([]Value, len(items))
			for i, j := range idx {
				out[i] = items[j]
			}
			if ctx.Has("reverse") {
				slices.Reverse(out)
			}
			return listResult(out, ctx.Span), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "uniq",
		Description: "Removes duplicate items, keeping the first occurrence.",
		Category:    CategoryFilters,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			items, err := collect(input)
			if err != nil {
				return EmptyPipeline(), err
			}
			var out []Value
			for _, item := range items {
				dup := false
				for _, seen := range out {
					if valuesEqual(seen, item) {
						dup = true
						break
					}
				}
				if !dup {
					out = append(out, item)
				}
			}
			return listResult(out, ctx.Span), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "each",
		Description: "Runs a closure on every item and collects the results.",
		Category:    CategoryFilters,
		Signature:   Signature{Required: []PositionalArg{required("closure", ShapeClosure, "run for each item")}},
		Examples:    []Example{{Source: "[1 2 3] | each {|x| $x * 2 }", Description: "[2, 4, 6]"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			cl, err := ctx.ClosureArg(0)
			if err != nil {
				return EmptyPipeline(), err
			}
			single := false
			if v, ok := input.Value(); ok && v.Kind != KindList {
				single = true
			}
			items, err := collect(input)
			if err != nil {
				return EmptyPipeline(), err
			}
			out := make([]Value, 0, len(items))
			for _, item := range items {
				v, err := closureValue(ctx.Engine, cl, ctx.Span, item, item)
				if err != nil {
					return EmptyPipeline(), err
				}
				if v.Kind == KindError {
					return EmptyPipeline(), v.Err
				}
				if v.IsNothing() {
					continue
				}
				out = append(out, v)
			}
			if single && len(out) == 1 {
				return NewValuePipeline(out[0]), nil
			}
			return listResult(out, ctx.Span), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "where",
		Description: "Keeps the rows for which the condition holds.",
		Category:    CategoryFilters,
		Signature:   Signature{Required: []PositionalArg{required("condition", ShapeCondition, "row condition")}},
		Examples: []Example{
			{Source: "[{a: 1} {a: 5}] | where a > 2", Description: "rows where column a is over 2"},
			{Source: "[1 2 3] | where {|x| $x != 2 }", Description: "filter with a closure"},
		},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			cl, err := ctx.ClosureArg(0)
			if err != nil {
				return EmptyPipeline(), err
			}
			items, err := collect(input)
			if err != nil {
				return EmptyPipeline(), err
			}
			var out []Value
			for _, item := range items {
				v, err := closureValue(ctx.Engine, cl, ctx.Span, item, item)
				if err != nil {
					return EmptyPipeline(), err
				}
				if v.Kind == KindError {
					return EmptyPipeline(), v.Err
				}
				keep, err := v.IsTruthy()
				if err != nil {
					return EmptyPipeline(), err
				}
				if keep {
					out = append(out, item)
				}
			}
			return listResult(out, ctx.Span), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "get",
		Description: "Extracts data using a cell path.",
		Category:    CategoryFilters,
		Signature:   Signature{Required: []PositionalArg{required("path", ShapeCellPath, "the cell path")}},
		Examples:    []Example{{Source: "{a: {b: 1}} | get a.b", Description: "1"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			paths, err := cellPathArgs(ctx.Rest(0))
			if err != nil {
				return EmptyPipeline(), err
			}
			if len(paths) == 0 {
				return EmptyPipeline(), ctx.missing(0)
			}
			v, err := followCellPath(input.IntoValue(ctx.Span), paths[0])
			if err != nil {
				return EmptyPipeline(), err
			}
			return NewValuePipeline(v), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "select",
		Description: "Keeps only the named columns.",
		Category:    CategoryFilters,
		Signature:   Signature{Rest: &PositionalArg{Name: "columns", Shape: ShapeString}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			cols, err := stringsOf(ctx.Rest(0))
			if err != nil {
				return EmptyPipeline(), err
			}
			return eachValue(ctx, input, func(v Value) (Value, error) {
				if v.Kind != KindRecord {
					return Value{}, typeMismatch(v.Span, "record", v)
				}
				rec := NewRecord()
				for _, col := range cols {
					cell, ok := v.Record.Get(col)
					if !ok {
						err := newEvalError(ctx.Span, "Cannot find column '%s'", col)
						err.Label = "value originates here"
						return Value{}, err
					}
					rec.Set(col, cell)
				}
				return RecordValue(rec, v.Span), nil
			})
		},
	})

	ws.AddDecl(&Command{
		Name:        "reject",
		Description: "Removes the named columns.",
		Category:    CategoryFilters,
		Signature:   Signature{Rest: &PositionalArg{Name: "columns", Shape: ShapeString}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			cols, err := stringsOf(ctx.Rest(0))
			if err != nil {
				return EmptyPipeline(), err
			}
			return eachValue(ctx, input, func(v Value) (Value, error) {
				if v.Kind != KindRecord {
					return Value{}, typeMismatch(v.Span, "record", v)
				}
				rec := v.Record.Clone()
				for _, col := range cols {
					rec.Remove(col)
				}
				return RecordValue(rec, v.Span), nil
			})
		},
	})

	ws.AddDecl(&Command{
		Name:        "columns",
		Description: "Lists the column names of a record or table.",
		Category:    CategoryFilters,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			v := input.IntoValue(ctx.Span)
			var cols []string
			switch {
			case v.Kind == KindRecord:
				cols = v.Record.Columns()
			case v.Kind == KindList && isTable(v.List):
				cols = tableColumns(v.List)
			default:
				return EmptyPipeline(), typeMismatch(v.Span, "record or table", v)
			}
			out := make([]Value, len(cols))
			for i, c := range cols {
				out[i] = StringValue(c, ctx.Span)
			}
			return listResult(out, ctx.Span), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "values",
		Description: "Lists the values of a record, or the columns of a table as lists.",
		Category:    CategoryFilters,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			v := input.IntoValue(ctx.Span)
			var out []Value
			switch {
			case v.Kind == KindRecord:
				v.Record.Each(func(_ string, val Value) { out = append(out, val) })
			case v.Kind == KindList && isTable(v.List):
				for _, col := range tableColumns(v.List) {
					var column []Value
					for _, row := range v.List {
						cell, ok := row.Record.Get(col)
						if !ok {
							cell = NothingValue(ctx.Span)
						}
						column = append(column, cell)
					}
					out = append(out, ListValue(column, ctx.Span))
				}
			default:
				return EmptyPipeline(), typeMismatch(v.Span, "record or table", v)
			}
			return listResult(out, ctx.Span), nil
		},
	})

	appendLike := func(name, desc string, front bool) *Command {
		return &Command{
			Name:        name,
			Description: desc,
			Category:    CategoryFilters,
			Signature:   Signature{Required: []PositionalArg{required("row", ShapeAny, "the value to add")}},
			Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
				items, err := collect(input)
				if err != nil {
					return EmptyPipeline(), err
				}
				arg, _ := ctx.Positional(0)
				extra := []Value{arg}
				if arg.Kind == KindList {
					extra = arg.List
				}
				if front {
					return listResult(append(append([]Value{}, extra...), items...), ctx.Span), nil
				}
				return listResult(append(items, extra...), ctx.Span), nil
			},
		}
	}
	ws.AddDecl(appendLike("append", "Adds values to the end of the list.", false))
	ws.AddDecl(appendLike("prepend", "Adds values to the start of the list.", true))

	ws.AddDecl(&Command{
		Name:        "enumerate",
		Description: "Pairs every item with its index.",
		Category:    CategoryFilters,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			return transform(ctx, input, func(seq iter.Seq[Value]) iter.Seq[Value] {
				return func(yield func(Value) bool) {
					i := int64(0)
					for v := range seq {
						rec := NewRecord()
						rec.Set("index", IntValue(i, v.Span))
						rec.Set("item", v)
						if !yield(RecordValue(rec, v.Span)) {
							return
						}
						i++
					}
				}
			}), nil
		},
	})

	ws.AddDecl(&Command{
		Name:        "wrap",
		Description: "Wraps every item in a record under the given column.",
		Category:    CategoryFilters,
		Signature:   Signature{Required: []PositionalArg{required("name", ShapeString, "the column name")}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			name, err := ctx.StringArg(0)
			if err != nil {
				return EmptyPipeline(), err
			}
			return eachValue(ctx, input, func(v Value) (Value, error) {
				rec := NewRecord()
				rec.Set(name, v)
				return RecordValue(rec, v.Span), nil
			})
		},
	})

	ws.AddDecl(&Command{
		Name:        "is-empty",
		Description: "Checks whether the input has no items.",
		Category:    CategoryFilters,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			if v, ok := input.Value(); ok {
				switch v.Kind {
				case KindString:
					return valueResult(BoolValue(v.Str == "", ctx.Span))
				case KindRecord:
					return valueResult(BoolValue(v.Record.Len() == 0, ctx.Span))
				}
			}
			for range input.Values() {
				return valueResult(BoolValue(false, ctx.Span))
			}
			return valueResult(BoolValue(true, ctx.Span))
		},
	})

	ws.AddDecl(&Command{
		Name:        "range",
		Description: "Produces the numbers from start to end inclusive, lazily.",
		Category:    CategoryFilters,
		Signature: Signature{
			Required: []PositionalArg{
				required("start", ShapeNumber, "first number"),
				required("end", ShapeNumber, "last number"),
			},
			Named: []Flag{valueFlag("step", 's', ShapeNumber, "distance between numbers")},
		},
		Examples: []Example{{Source: "range 1 5", Description: "1 to 5"}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			start, _ := ctx.Positional(0)
			end, _ := ctx.Positional(1)
			step, hasStep := ctx.Named("step")
			for _, v := range []Value{start, end} {
				if !isNumeric(v) {
					return EmptyPipeline(), typeMismatch(v.Span, "number", v)
				}
			}
			if hasStep && !isNumeric(step) {
				return EmptyPipeline(), typeMismatch(step.Span, "number", step)
			}
			if start.Kind == KindInt && end.Kind == KindInt && (!hasStep || step.Kind == KindInt) {
				return intRange(ctx, start.Int, end.Int, step, hasStep)
			}
			return floatRange(ctx, start, end, step, hasStep)
		},
	})
}

func intRange(ctx *Context, from, to int64, stepVal Value, hasStep bool) (PipelineData, error) {
	step := int64(1)
	if from > to {
		step = -1
	}
	if hasStep {
		step = stepVal.Int
	}
	if step == 0 || (step > 0) != (to >= from) && from != to {
		return EmptyPipeline(), newEvalError(ctx.Span, "Invalid range step").WithHelp("the step must move from start towards end")
	}
	span := ctx.Span
	return NewStreamPipeline(func(yield func(Value) bool) {
		for i := from; (step > 0 && i <= to) || (step < 0 && i >= to); i += step {
			if !yield(IntValue(i, span)) {
				return
			}
			if (step > 0 && i > to-step) || (step < 0 && i < to-step) {
				return
			}
		}
	}, span), nil
}

func floatRange(ctx *Context, startVal, endVal, stepVal Value, hasStep bool) (PipelineData, error) {
	from, _ := startVal.AsFloat()
	to, _ := endVal.AsFloat()
	step := 1.0
	if from > to {
		step = -1
	}
	if hasStep {
		step, _ = stepVal.AsFloat()
	}
	if step == 0 || (step > 0) != (to >= from) && from != to {
		return EmptyPipeline(), newEvalError(ctx.Span, "Invalid range step").WithHelp("the step must move from start towards end")
	}
	span := ctx.Span
	return NewStreamPipeline(func(yield func(Value) bool) {
		for n := 0; ; n++ {
			x := from + float64(n)*step
			if (step > 0 && x > to) || (step < 0 && x < to) {
				return
			}
			if !yield(FloatValue(x, span)) {
				return
			}
		}
	}, span), nil
}

// cellPathArgs converts cell path arguments given as strings or integers
func cellPathArgs(args []Value) ([][]PathMember, error) {
	var out [][]PathMember
	for _, arg := range args {
		switch arg.Kind {
		case KindInt:
			out = append(out, []PathMember{{Name: strconv.FormatInt(arg.Int, 10), Index: int(arg.Int), IsIndex: arg.Int >= 0, Span: arg.Span}})
		case KindString:
			path, err := parseCellPathString(arg.Str, arg.Span)
			if err != nil {
				return nil, err
			}
			out = append(out, path)
		default:
			return nil, typeMismatch(arg.Span, "cell path", arg)
		}
	}
	return out, nil
}
