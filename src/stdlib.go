package pawrun

import (
	"iter"
)

// addGeneralCommands registers the general command set
func addGeneralCommands(ws *WorkingSet) {
	addFilterCommands(ws)
	addMathCommands(ws)
	addStringCommands(ws)
	addConversionCommands(ws)
	addFormatCommands(ws)
	addFileCommands(ws)
	addViewerCommands(ws)
	addDateCommands(ws)
}

// collect gathers the input items, stopping at the first error value
func collect(input PipelineData) ([]Value, error) {
	var out []Value
	for v := range input.Values() {
		if v.Kind == KindError {
			return nil, v.Err
		}
		out = append(out, v)
	}
	return out, nil
}

func listResult(items []Value, span Span) PipelineData {
	return NewValuePipeline(ListValue(items, span))
}

func valueResult(v Value) (PipelineData, error) {
	return NewValuePipeline(v), nil
}

// transform applies a lazy sequence transform. Stream input stays a stream;
// anything else is collected into a list.
func transform(ctx *Context, input PipelineData, fn func(iter.Seq[Value]) iter.Seq[Value]) PipelineData {
	seq := fn(input.Values())
	if input.Kind() == PipelineStream {
		return NewStreamPipeline(seq, ctx.Span)
	}
	var items []Value
	for v := range seq {
		items = append(items, v)
	}
	return listResult(items, ctx.Span)
}

// eachValue maps fn over the input. A single value maps to a single value
// and a list to a list; a stream stays lazy and carries a failure as an
// error value in place of the item.
func eachValue(ctx *Context, input PipelineData, fn func(Value) (Value, error)) (PipelineData, error) {
	switch input.Kind() {
	case PipelineStream:
		return mapStream(input, ctx.Span, func(v Value) (Value, bool) {
			if v.Kind == KindError {
				return v, true
			}
			out, err := fn(v)
			if err != nil {
				return ErrorValue(asStructured(err, v.Span), v.Span), true
			}
			return out, true
		}), nil
	case PipelineValue:
		v, _ := input.Value()
		if v.Kind != KindList {
			out, err := fn(v)
			if err != nil {
				return EmptyPipeline(), err
			}
			return NewValuePipeline(out), nil
		}
		items := make([]Value, 0, len(v.List))
		for _, item := range v.List {
			out, err := fn(item)
			if err != nil {
				return EmptyPipeline(), err
			}
			items = append(items, out)
		}
		return listResult(items, v.Span), nil
	}
	return input, nil
}

// stringsOf requires every item to be a string
func stringsOf(items []Value) ([]string, error) {
	out := make([]string, len(items))
	for i, item := range items {
		s, err := item.CoerceString()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
