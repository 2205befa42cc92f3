package pawrun

import (
	"errors"
	"fmt"
)

// Closure is a block with parameters and the scope it was created in
type Closure struct {
	Block    *Block
	Params   []Param
	Captured *Stack
}

const maxCallDepth = 512

type controlKind int

const (
	ctrlBreak controlKind = iota
	ctrlContinue
	ctrlReturn
)

// controlFlow unwinds the evaluator for break, continue and return
type controlFlow struct {
	kind  controlKind
	value PipelineData
	span  Span
}

func (c *controlFlow) Error() string {
	switch c.kind {
	case ctrlBreak:
		return "break"
	case ctrlContinue:
		return "continue"
	}
	return "return"
}

// EvalBlock evaluates block against stack. Input feeds the first pipeline;
// the output of the last pipeline is the result. There are no debugger hooks.
func EvalBlock(state *EngineState, stack *Stack, block *Block, input PipelineData) (PipelineData, error) {
	out, err := evalBlock(state, stack, block, input)
	if err != nil {
		var cf *controlFlow
		if errors.As(err, &cf) {
			if cf.kind == ctrlReturn {
				return cf.value, nil
			}
			return EmptyPipeline(), newEvalError(cf.span, "`%s` used outside of a loop", cf.Error())
		}
		return EmptyPipeline(), err
	}
	return out, nil
}

func evalBlock(state *EngineState, stack *Stack, block *Block, input PipelineData) (PipelineData, error) {
	out := EmptyPipeline()
	for i, pipe := range block.Pipelines {
		in := EmptyPipeline()
		if i == 0 {
			in = input
		}
		data, err := evalPipeline(state, stack, pipe, in)
		if err != nil {
			return EmptyPipeline(), err
		}
		if i < len(block.Pipelines)-1 {
			if embedded := data.Drain(); embedded != nil {
				return NewErrorPipeline(embedded), nil
			}
			continue
		}
		out = data
	}
	return out, nil
}

func evalPipeline(state *EngineState, stack *Stack, pipe *Pipeline, input PipelineData) (PipelineData, error) {
	data := input
	for _, el := range pipe.Elements {
		if data.Kind() == PipelineError {
			return data, nil
		}
		out, err := evalElement(state, stack, el, data)
		if err != nil {
			return EmptyPipeline(), err
		}
		data = out
	}
	return data, nil
}

// evalElement runs one pipeline element with the output of the previous one
func evalElement(state *EngineState, stack *Stack, e *Expr, input PipelineData) (PipelineData, error) {
	switch e.Kind {
	case ExprCall:
		return evalCall(state, stack, e, input)
	case ExprSubexpr:
		return evalBlock(state, stack.child(), e.Body, input)
	case ExprLet:
		out, err := evalBlock(state, stack.child(), e.Right.Body, input)
		if err != nil {
			return EmptyPipeline(), err
		}
		if out.Kind() == PipelineError {
			return out, nil
		}
		stack.AddVar(e.Var, out.IntoValue(e.Right.Span))
		state.logger.TraceCat(CatVariable, "let %s", e.VarName)
		return EmptyPipeline(), nil
	case ExprDef:
		return EmptyPipeline(), nil
	case ExprIf:
		return evalIf(state, stack, e, input)
	case ExprFor:
		return evalFor(state, stack, e)
	case ExprTry:
		return evalTry(state, stack, e, input)
	case ExprBreak:
		return EmptyPipeline(), &controlFlow{kind: ctrlBreak, span: e.Span}
	case ExprContinue:
		return EmptyPipeline(), &controlFlow{kind: ctrlContinue, span: e.Span}
	case ExprReturn:
		value := EmptyPipeline()
		if e.Right != nil {
			v, err := evalExpr(state, withInput(stack, e.Right, input), e.Right)
			if err != nil {
				return EmptyPipeline(), err
			}
			value = NewValuePipeline(v)
		}
		return EmptyPipeline(), &controlFlow{kind: ctrlReturn, value: value, span: e.Span}
	}
	v, err := evalExpr(state, withInput(stack, e, input), e)
	if err != nil {
		return EmptyPipeline(), err
	}
	return NewValuePipeline(v), nil
}

// withInput binds $in for an expression that refers to it
func withInput(stack *Stack, e *Expr, input PipelineData) *Stack {
	if !e.usesIn() {
		return stack
	}
	st := stack.child()
	st.AddVar(InVarID, input.IntoValue(e.Span))
	return st
}

func evalIf(state *EngineState, stack *Stack, e *Expr, input PipelineData) (PipelineData, error) {
	cond, err := evalExpr(state, withInput(stack, e.Left, input), e.Left)
	if err != nil {
		return EmptyPipeline(), err
	}
	ok, err := cond.IsTruthy()
	if err != nil {
		return EmptyPipeline(), err
	}
	state.logger.TraceCat(CatFlow, "if -> %v", ok)
	if ok {
		return evalBlock(state, stack.child(), e.Body, input)
	}
	if e.Else != nil {
		return evalElement(state, stack, e.Else, input)
	}
	return EmptyPipeline(), nil
}

func evalFor(state *EngineState, stack *Stack, e *Expr) (PipelineData, error) {
	values, err := evalExpr(state, stack, e.Right)
	if err != nil {
		return EmptyPipeline(), err
	}
	for item := range NewValuePipeline(values).Values() {
		scope := stack.child()
		scope.AddVar(e.Var, item)
		out, err := evalBlock(state, scope, e.Body, EmptyPipeline())
		if err != nil {
			var cf *controlFlow
			if errors.As(err, &cf) {
				switch cf.kind {
				case ctrlBreak:
					return EmptyPipeline(), nil
				case ctrlContinue:
					continue
				}
			}
			return EmptyPipeline(), err
		}
		if embedded := out.Drain(); embedded != nil {
			return NewErrorPipeline(embedded), nil
		}
	}
	return EmptyPipeline(), nil
}

func evalTry(state *EngineState, stack *Stack, e *Expr, input PipelineData) (PipelineData, error) {
	out, err := evalBlock(state, stack.child(), e.Body, input)
	var caught *StructuredError
	switch {
	case err != nil:
		var cf *controlFlow
		if errors.As(err, &cf) {
			return EmptyPipeline(), err
		}
		caught = asStructured(err, e.Span)
	case out.Kind() == PipelineError:
		caught, _ = out.Err()
	default:
		return out, nil
	}
	state.logger.DebugCat(CatFlow, "try caught: %s", caught.Message)
	if e.Catch == nil {
		return EmptyPipeline(), nil
	}
	handler, err := evalExpr(state, stack, e.Catch)
	if err != nil {
		return EmptyPipeline(), err
	}
	errValue := errorRecord(caught)
	return runClosure(state, handler.Closure, NewValuePipeline(errValue), errValue)
}

// errorRecord exposes a caught error to a catch closure
func errorRecord(err *StructuredError) Value {
	rec := NewRecord()
	rec.Set("msg", StringValue(err.Message, UnknownSpan))
	rec.Set("label", StringValue(err.Label, UnknownSpan))
	rec.Set("help", StringValue(err.Help, UnknownSpan))
	rec.Set("kind", StringValue(err.Kind.String(), UnknownSpan))
	rec.Set("debug", StringValue(err.Summary(), UnknownSpan))
	return RecordValue(rec, UnknownSpan)
}

func evalCall(state *EngineState, stack *Stack, e *Expr, input PipelineData) (PipelineData, error) {
	call := e.Call
	cmd, err := state.Decl(call.Decl)
	if err != nil {
		se := asStructured(err, call.Head)
		head := call.Head
		se.Span = &head
		return EmptyPipeline(), se
	}
	st := stack
	if call.Collects {
		v := input.IntoValue(e.Span)
		st = stack.child()
		st.AddVar(InVarID, v)
		input = NewValuePipeline(v)
	}
	ctx := &Context{
		Engine: state,
		Stack:  st,
		Name:   call.Name,
		Span:   e.Span,
		Head:   call.Head,
		named:  make(map[string]Value, len(call.Named)),
	}
	for _, arg := range call.Positional {
		v, err := evalExpr(state, st, arg)
		if err != nil {
			return EmptyPipeline(), err
		}
		ctx.positional = append(ctx.positional, v)
	}
	for _, named := range call.Named {
		if named.Value == nil {
			ctx.named[named.Name] = BoolValue(true, named.Span)
			continue
		}
		v, err := evalExpr(state, st, named.Value)
		if err != nil {
			return EmptyPipeline(), err
		}
		ctx.named[named.Name] = v
	}

	state.logger.TraceCat(CatCommand, "call %s", call.Name)
	if cmd.Body != nil {
		return runCustom(state, cmd, ctx, input)
	}
	out, err := cmd.Run(ctx, input)
	if err != nil {
		var cf *controlFlow
		if errors.As(err, &cf) {
			return EmptyPipeline(), err
		}
		se := asStructured(err, e.Span)
		if se.Span == nil {
			span := e.Span
			se.Span = &span
		}
		return EmptyPipeline(), se
	}
	return out, nil
}

// runCustom evaluates the body of a command defined with def
func runCustom(state *EngineState, cmd *Command, ctx *Context, input PipelineData) (PipelineData, error) {
	if state.depth >= maxCallDepth {
		return EmptyPipeline(), newEvalError(ctx.Head, "Recursion limit reached").WithHelp(fmt.Sprintf("%s called itself more than %d times", cmd.Name, maxCallDepth))
	}
	state.depth++
	defer func() { state.depth-- }()

	body := ctx.Stack.detached()
	sig := cmd.Signature
	for i, p := range sig.Required {
		v, _ := ctx.Positional(i)
		if err := checkValueShape(v, p.Shape, p.Name); err != nil {
			return EmptyPipeline(), err
		}
		body.AddVar(p.Var, v)
	}
	for i, p := range sig.Optional {
		v, ok := ctx.Positional(len(sig.Required) + i)
		if !ok {
			v = NothingValue(ctx.Span)
		} else if err := checkValueShape(v, p.Shape, p.Name); err != nil {
			return EmptyPipeline(), err
		}
		body.AddVar(p.Var, v)
	}
	if sig.Rest != nil {
		body.AddVar(sig.Rest.Var, ListValue(ctx.Rest(len(sig.Required)+len(sig.Optional)), ctx.Span))
	}
	for _, f := range sig.Named {
		v, ok := ctx.Named(f.Long)
		switch {
		case f.Shape == nil:
			v = BoolValue(ok, ctx.Span)
		case !ok:
			v = NothingValue(ctx.Span)
		}
		body.AddVar(f.Var, v)
	}
	if !input.IsEmpty() {
		v := input.IntoValue(ctx.Span)
		body.AddVar(InVarID, v)
		input = NewValuePipeline(v)
	}
	out, err := evalBlock(state, body, cmd.Body, input)
	if err != nil {
		var cf *controlFlow
		if errors.As(err, &cf) && cf.kind == ctrlReturn {
			return cf.value, nil
		}
		return EmptyPipeline(), err
	}
	return out, nil
}

func checkValueShape(v Value, shape Shape, name string) error {
	ok := true
	switch shape {
	case ShapeString:
		ok = v.Kind == KindString
	case ShapeInt:
		ok = v.Kind == KindInt
	case ShapeNumber:
		ok = isNumeric(v)
	case ShapeBool:
		ok = v.Kind == KindBool
	case ShapeList:
		ok = v.Kind == KindList
	case ShapeRecord:
		ok = v.Kind == KindRecord
	case ShapeClosure:
		ok = v.Kind == KindClosure
	}
	if ok {
		return nil
	}
	err := typeMismatch(v.Span, shape.String(), v)
	return err.WithHelp("parameter " + name)
}

// runClosure binds args to the closure parameters and $in to the input
func runClosure(state *EngineState, cl *Closure, input PipelineData, args ...Value) (PipelineData, error) {
	if cl == nil {
		return EmptyPipeline(), newEvalError(UnknownSpan, "Expected a closure")
	}
	if len(cl.Params) > 0 && len(args) > len(cl.Params) {
		return EmptyPipeline(), newEvalError(cl.Block.Span, "Closure takes %d argument(s) but got %d", len(cl.Params), len(args))
	}
	if state.depth >= maxCallDepth {
		return EmptyPipeline(), newEvalError(cl.Block.Span, "Recursion limit reached")
	}
	state.depth++
	defer func() { state.depth-- }()

	st := cl.Captured.child()
	for i, p := range cl.Params {
		if i < len(args) {
			st.AddVar(p.Var, args[i])
		} else {
			st.AddVar(p.Var, NothingValue(cl.Block.Span))
		}
	}
	if !input.IsEmpty() {
		v := input.IntoValue(cl.Block.Span)
		st.AddVar(InVarID, v)
		input = NewValuePipeline(v)
	}
	out, err := evalBlock(state, st, cl.Block, input)
	if err != nil {
		var cf *controlFlow
		if errors.As(err, &cf) && cf.kind == ctrlReturn {
			return cf.value, nil
		}
		return EmptyPipeline(), err
	}
	return out, nil
}

// closureValue runs a closure and collects its result into one value; an
// embedded error becomes an error value
func closureValue(state *EngineState, cl *Closure, span Span, input Value, args ...Value) (Value, error) {
	out, err := runClosure(state, cl, NewValuePipeline(input), args...)
	if err != nil {
		return Value{}, err
	}
	return out.IntoValue(span), nil
}
