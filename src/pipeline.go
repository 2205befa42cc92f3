package pawrun

import (
	"iter"
	"sync"
)

// PipelineKind identifies the variant held by PipelineData
type PipelineKind int

const (
	PipelineEmpty PipelineKind = iota
	PipelineValue
	PipelineStream
	PipelineError
)

func (k PipelineKind) String() string {
	switch k {
	case PipelineValue:
		return "value"
	case PipelineStream:
		return "stream"
	case PipelineError:
		return "error"
	default:
		return "empty"
	}
}

// PipelineData is what flows between pipeline stages and across the
// Evaluate boundary. An error value never hides inside the Value variant:
// NewValuePipeline moves it to the Error variant.
type PipelineData struct {
	kind   PipelineKind
	value  Value
	stream *ListStream
	err    *StructuredError
}

// EmptyPipeline is the absence of input or output
func EmptyPipeline() PipelineData {
	return PipelineData{kind: PipelineEmpty}
}

// NewValuePipeline wraps a single value
func NewValuePipeline(v Value) PipelineData {
	if v.Kind == KindError {
		return PipelineData{kind: PipelineError, err: v.Err, value: v}
	}
	return PipelineData{kind: PipelineValue, value: v}
}

// NewStreamPipeline wraps a lazy sequence of values
func NewStreamPipeline(seq iter.Seq[Value], span Span) PipelineData {
	return PipelineData{kind: PipelineStream, stream: NewListStream(seq, span)}
}

// NewErrorPipeline wraps an embedded error
func NewErrorPipeline(err *StructuredError) PipelineData {
	span := UnknownSpan
	if err.Span != nil {
		span = *err.Span
	}
	return PipelineData{kind: PipelineError, err: err, value: ErrorValue(err, span)}
}

// Kind returns the active variant
func (p PipelineData) Kind() PipelineKind { return p.kind }

// Value returns the held value for the Value and Error variants
func (p PipelineData) Value() (Value, bool) {
	switch p.kind {
	case PipelineValue, PipelineError:
		return p.value, true
	}
	return Value{}, false
}

// Stream returns the held stream for the Stream variant
func (p PipelineData) Stream() (*ListStream, bool) {
	if p.kind == PipelineStream {
		return p.stream, true
	}
	return nil, false
}

// Err returns the embedded error for the Error variant
func (p PipelineData) Err() (*StructuredError, bool) {
	if p.kind == PipelineError {
		return p.err, true
	}
	return nil, false
}

// IsEmpty reports whether there is no data at all
func (p PipelineData) IsEmpty() bool { return p.kind == PipelineEmpty }

// IntoValue collects the pipeline into a single value; streams become lists
func (p PipelineData) IntoValue(span Span) Value {
	switch p.kind {
	case PipelineValue, PipelineError:
		return p.value
	case PipelineStream:
		var items []Value
		for v := range p.stream.All() {
			items = append(items, v)
		}
		return ListValue(items, p.stream.span.Merge(span))
	default:
		return NothingValue(span)
	}
}

// Values iterates the pipeline item by item: lists and streams yield their
// elements, a single value yields itself, empty yields nothing
func (p PipelineData) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		switch p.kind {
		case PipelineValue:
			if p.value.Kind == KindList {
				for _, item := range p.value.List {
					if !yield(item) {
						return
					}
				}
				return
			}
			if p.value.Kind == KindNothing {
				return
			}
			yield(p.value)
		case PipelineError:
			yield(p.value)
		case PipelineStream:
			for v := range p.stream.All() {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// Drain consumes the pipeline for its side effects and returns the first
// embedded error encountered, if any
func (p PipelineData) Drain() *StructuredError {
	switch p.kind {
	case PipelineError:
		return p.err
	case PipelineStream:
		for v := range p.stream.All() {
			if v.Kind == KindError {
				return v.Err
			}
		}
	}
	return nil
}

// ListStream is a lazy, consume-once sequence of values
type ListStream struct {
	seq  iter.Seq[Value]
	span Span
	once sync.Once
}

// NewListStream wraps seq
func NewListStream(seq iter.Seq[Value], span Span) *ListStream {
	return &ListStream{seq: seq, span: span}
}

// Span returns the span of the expression that produced the stream
func (s *ListStream) Span() Span { return s.span }

// All yields the stream's values. A second call yields nothing.
func (s *ListStream) All() iter.Seq[Value] {
	first := false
	s.once.Do(func() { first = true })
	if !first {
		return func(func(Value) bool) {}
	}
	return s.seq
}

// mapStream applies fn lazily to every item of the input pipeline
func mapStream(input PipelineData, span Span, fn func(Value) (Value, bool)) PipelineData {
	return NewStreamPipeline(func(yield func(Value) bool) {
		for v := range input.Values() {
			out, keep := fn(v)
			if !keep {
				continue
			}
			if !yield(out) {
				return
			}
		}
	}, span)
}
