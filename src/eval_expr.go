package pawrun

import (
	"math"
	"regexp"
	"strings"
)

// evalExpr evaluates an expression to a single value
func evalExpr(state *EngineState, stack *Stack, e *Expr) (Value, error) {
	switch e.Kind {
	case ExprNothing:
		return NothingValue(e.Span), nil
	case ExprBool:
		return BoolValue(e.Bool, e.Span), nil
	case ExprInt:
		return IntValue(e.Int, e.Span), nil
	case ExprFloat:
		return FloatValue(e.Float, e.Span), nil
	case ExprString:
		return StringValue(e.Str, e.Span), nil
	case ExprList:
		items := make([]Value, 0, len(e.Items))
		for _, item := range e.Items {
			v, err := evalExpr(state, stack, item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return ListValue(items, e.Span), nil
	case ExprRecord:
		rec := NewRecord()
		for _, f := range e.Fields {
			v, err := evalExpr(state, stack, f.Value)
			if err != nil {
				return Value{}, err
			}
			rec.Set(f.Key, v)
		}
		return RecordValue(rec, e.Span), nil
	case ExprVar:
		return lookupVar(state, stack, e)
	case ExprCellPath:
		head, err := evalExpr(state, stack, e.Head)
		if err != nil {
			return Value{}, err
		}
		return followCellPath(head, e.Path)
	case ExprBinary:
		return evalBinary(state, stack, e)
	case ExprUnary:
		operand, err := evalExpr(state, stack, e.Right)
		if err != nil {
			return Value{}, err
		}
		b, err := operand.IsTruthy()
		if err != nil {
			return Value{}, err
		}
		return BoolValue(!b, e.Span), nil
	case ExprClosure:
		return ClosureValue(&Closure{Block: e.Body, Params: e.Params, Captured: stack}, e.Span), nil
	case ExprGarbage:
		err := newEvalError(e.Span, "Encountered garbage")
		err.Label = "this could not be parsed"
		return Value{}, err.WithInner(e.Err)
	case ExprFail:
		err := newError(ErrorEvaluation, e.Span, e.Err.Message, e.Err.Label)
		err.Help = e.Err.Help
		return Value{}, err
	}

	out, err := evalElement(state, stack, e, EmptyPipeline())
	if err != nil {
		return Value{}, err
	}
	if embedded, ok := out.Err(); ok {
		return Value{}, embedded
	}
	return out.IntoValue(e.Span), nil
}

func lookupVar(state *EngineState, stack *Stack, e *Expr) (Value, error) {
	switch e.Var {
	case EnvVarID:
		return RecordValue(stack.envRecord(state), e.Span), nil
	case InVarID:
		if v, ok := stack.GetVar(InVarID); ok {
			return v, nil
		}
		return NothingValue(e.Span), nil
	}
	v, ok := stack.GetVar(e.Var)
	if !ok {
		err := newEvalError(e.Span, "Variable not found")
		err.Label = "$" + e.VarName + " has no value here"
		return Value{}, err
	}
	return v.WithSpan(e.Span), nil
}

func evalBinary(state *EngineState, stack *Stack, e *Expr) (Value, error) {
	left, err := evalExpr(state, stack, e.Left)
	if err != nil {
		return Value{}, err
	}
	switch e.Op {
	case "and", "or":
		lb, err := left.IsTruthy()
		if err != nil {
			return Value{}, err
		}
		if e.Op == "and" && !lb || e.Op == "or" && lb {
			return BoolValue(lb, e.Span), nil
		}
		right, err := evalExpr(state, stack, e.Right)
		if err != nil {
			return Value{}, err
		}
		rb, err := right.IsTruthy()
		if err != nil {
			return Value{}, err
		}
		return BoolValue(rb, e.Span), nil
	}
	right, err := evalExpr(state, stack, e.Right)
	if err != nil {
		return Value{}, err
	}
	return binaryOp(e.Op, left, right, e.Span)
}

// binaryOp applies a non-short-circuiting operator
func binaryOp(op string, left, right Value, span Span) (Value, error) {
	switch op {
	case "xor":
		lb, err := left.IsTruthy()
		if err != nil {
			return Value{}, err
		}
		rb, err := right.IsTruthy()
		if err != nil {
			return Value{}, err
		}
		return BoolValue(lb != rb, span), nil
	case "==":
		return BoolValue(valuesEqual(left, right), span), nil
	case "!=":
		return BoolValue(!valuesEqual(left, right), span), nil
	case "<", "<=", ">", ">=":
		if !(isNumeric(left) && isNumeric(right)) && !(left.Kind == KindString && right.Kind == KindString) {
			err := newEvalError(span, "Type mismatch during operation")
			err.Label = "cannot compare " + left.TypeName() + " with " + right.TypeName()
			return Value{}, err
		}
		c := compareValues(left, right)
		var ok bool
		switch op {
		case "<":
			ok = c < 0
		case "<=":
			ok = c <= 0
		case ">":
			ok = c > 0
		default:
			ok = c >= 0
		}
		return BoolValue(ok, span), nil
	case "=~", "!~":
		if left.Kind != KindString {
			return Value{}, typeMismatch(left.Span, "string", left)
		}
		if right.Kind != KindString {
			return Value{}, typeMismatch(right.Span, "string", right)
		}
		re, err := regexp.Compile(right.Str)
		if err != nil {
			e := newEvalError(right.Span, "Invalid regex")
			e.Label = err.Error()
			return Value{}, e
		}
		return BoolValue(re.MatchString(left.Str) == (op == "=~"), span), nil
	case "in", "not-in":
		found, err := contains(right, left)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(found == (op == "in"), span), nil
	case "starts-with", "ends-with":
		if left.Kind != KindString || right.Kind != KindString {
			return Value{}, typeMismatch(span, "string", left)
		}
		if op == "starts-with" {
			return BoolValue(strings.HasPrefix(left.Str, right.Str), span), nil
		}
		return BoolValue(strings.HasSuffix(left.Str, right.Str), span), nil
	case "++":
		switch {
		case left.Kind == KindList && right.Kind == KindList:
			items := append(append([]Value{}, left.List...), right.List...)
			return ListValue(items, span), nil
		case left.Kind == KindList:
			return ListValue(append(append([]Value{}, left.List...), right), span), nil
		case left.Kind == KindString && right.Kind == KindString:
			return StringValue(left.Str+right.Str, span), nil
		}
		err := newEvalError(span, "Type mismatch during operation")
		err.Label = "cannot append " + right.TypeName() + " to " + left.TypeName()
		return Value{}, err
	}
	return arithmetic(op, left, right, span)
}

func contains(haystack, needle Value) (bool, error) {
	switch haystack.Kind {
	case KindList:
		for _, item := range haystack.List {
			if valuesEqual(item, needle) {
				return true, nil
			}
		}
		return false, nil
	case KindString:
		s, err := needle.CoerceString()
		if err != nil {
			return false, err
		}
		return strings.Contains(haystack.Str, s), nil
	case KindRecord:
		s, err := needle.CoerceString()
		if err != nil {
			return false, err
		}
		_, ok := haystack.Record.Get(s)
		return ok, nil
	}
	return false, typeMismatch(haystack.Span, "list, string or record", haystack)
}

func arithmetic(op string, left, right Value, span Span) (Value, error) {
	if op == "+" && left.Kind == KindString && right.Kind == KindString {
		return StringValue(left.Str+right.Str, span), nil
	}
	if !isNumeric(left) || !isNumeric(right) {
		err := newEvalError(span, "Type mismatch during operation")
		err.Label = "cannot apply '" + op + "' to " + left.TypeName() + " and " + right.TypeName()
		return Value{}, err
	}
	if left.Kind == KindInt && right.Kind == KindInt {
		return intArithmetic(op, left.Int, right.Int, span)
	}
	a, _ := left.AsFloat()
	b, _ := right.AsFloat()
	switch op {
	case "+":
		return FloatValue(a+b, span), nil
	case "-":
		return FloatValue(a-b, span), nil
	case "*":
		return FloatValue(a*b, span), nil
	case "/":
		if b == 0 {
			return Value{}, divisionByZero(right.Span)
		}
		return FloatValue(a/b, span), nil
	case "//":
		if b == 0 {
			return Value{}, divisionByZero(right.Span)
		}
		return FloatValue(math.Floor(a/b), span), nil
	case "mod":
		if b == 0 {
			return Value{}, divisionByZero(right.Span)
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return FloatValue(m, span), nil
	case "**":
		return FloatValue(math.Pow(a, b), span), nil
	}
	return Value{}, newEvalError(span, "Unknown operator '%s'", op)
}

func intArithmetic(op string, a, b int64, span Span) (Value, error) {
	switch op {
	case "+":
		if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
			return Value{}, overflow(span)
		}
		return IntValue(a+b, span), nil
	case "-":
		if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
			return Value{}, overflow(span)
		}
		return IntValue(a-b, span), nil
	case "*":
		if a != 0 && b != 0 {
			c := a * b
			if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
				return Value{}, overflow(span)
			}
			return IntValue(c, span), nil
		}
		return IntValue(0, span), nil
	case "/":
		if b == 0 {
			return Value{}, divisionByZero(span)
		}
		if a == math.MinInt64 && b == -1 {
			return Value{}, overflow(span)
		}
		if a%b == 0 {
			return IntValue(a/b, span), nil
		}
		return FloatValue(float64(a)/float64(b), span), nil
	case "//":
		if b == 0 {
			return Value{}, divisionByZero(span)
		}
		if a == math.MinInt64 && b == -1 {
			return Value{}, overflow(span)
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return IntValue(q, span), nil
	case "mod":
		if b == 0 {
			return Value{}, divisionByZero(span)
		}
		m := a % b
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return IntValue(m, span), nil
	case "**":
		if b < 0 {
			return FloatValue(math.Pow(float64(a), float64(b)), span), nil
		}
		switch {
		case b == 0:
			return IntValue(1, span), nil
		case a == 0 || a == 1:
			return IntValue(a, span), nil
		case a == -1:
			return IntValue(1-2*(b%2), span), nil
		}
		result := int64(1)
		for i := int64(0); i < b; i++ {
			next := result * a
			if a != 0 && next/a != result {
				return Value{}, overflow(span)
			}
			result = next
		}
		return IntValue(result, span), nil
	}
	return Value{}, newEvalError(span, "Unknown operator '%s'", op)
}

func divisionByZero(span Span) *StructuredError {
	err := newEvalError(span, "Division by zero")
	err.Label = "division by zero"
	return err
}

func overflow(span Span) *StructuredError {
	err := newEvalError(span, "Operator overflow")
	err.Label = "result does not fit in a 64-bit integer"
	return err
}
