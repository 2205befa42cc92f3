package pawrun

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// addConversionCommands registers the into family
func addConversionCommands(ws *WorkingSet) {
	ws.AddDecl(&Command{
		Name:        "into string",
		Description: "Converts values to strings.",
		Category:    CategoryConversion,
		Signature:   Signature{Named: []Flag{valueFlag("decimals", 'd', ShapeInt, "digits after the decimal point for floats")}},
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			precision := -1
			if d, ok := ctx.Named("decimals"); ok {
				n, err := d.AsInt()
				if err != nil {
					return EmptyPipeline(), err
				}
				precision = int(n)
			}
			return eachValue(ctx, input, func(v Value) (Value, error) {
				switch v.Kind {
				case KindString:
					return v, nil
				case KindFloat:
					return StringValue(formatFloat(v.Float, precision), v.Span), nil
				case KindClosure, KindError:
					return Value{}, newEvalError(v.Span, "Can't convert %s to string", v.TypeName())
				}
				return StringValue(formatValue(v, precision), v.Span), nil
			})
		},
	})

	ws.AddDecl(&Command{
		Name:        "into int",
		Description: "Converts values to integers; floats are truncated.",
		Category:    CategoryConversion,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			return eachValue(ctx, input, func(v Value) (Value, error) {
				switch v.Kind {
				case KindInt:
					return v, nil
				case KindFloat:
					if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) || math.Abs(v.Float) >= math.MaxInt64 {
						return Value{}, overflow(v.Span)
					}
					return IntValue(int64(v.Float), v.Span), nil
				case KindBool:
					if v.Bool {
						return IntValue(1, v.Span), nil
					}
					return IntValue(0, v.Span), nil
				case KindString:
					s := strings.ReplaceAll(strings.TrimSpace(v.Str), "_", "")
					i, err := strconv.ParseInt(s, 0, 64)
					if err != nil {
						return Value{}, cannotConvert(v, "int", err)
					}
					return IntValue(i, v.Span), nil
				}
				return Value{}, typeMismatch(v.Span, "int, float, bool or string", v)
			})
		},
	})

	ws.AddDecl(&Command{
		Name:        "into float",
		Description: "Converts values to floats.",
		Category:    CategoryConversion,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			return eachValue(ctx, input, func(v Value) (Value, error) {
				switch v.Kind {
				case KindFloat:
					return v, nil
				case KindInt:
					return FloatValue(float64(v.Int), v.Span), nil
				case KindString:
					f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
					if err != nil {
						return Value{}, cannotConvert(v, "float", err)
					}
					return FloatValue(f, v.Span), nil
				}
				return Value{}, typeMismatch(v.Span, "int, float or string", v)
			})
		},
	})

	ws.AddDecl(&Command{
		Name:        "into bool",
		Description: "Converts values to booleans.",
		Category:    CategoryConversion,
		Run: func(ctx *Context, input PipelineData) (PipelineData, error) {
			return eachValue(ctx, input, func(v Value) (Value, error) {
				switch v.Kind {
				case KindBool:
					return v, nil
				case KindInt:
					return BoolValue(v.Int != 0, v.Span), nil
				case KindFloat:
					return BoolValue(v.Float != 0, v.Span), nil
				case KindString:
					b, err := strconv.ParseBool(strings.TrimSpace(v.Str))
					if err != nil {
						return Value{}, cannotConvert(v, "bool", err)
					}
					return BoolValue(b, v.Span), nil
				}
				return Value{}, typeMismatch(v.Span, "int, float, bool or string", v)
			})
		},
	})
}

func cannotConvert(v Value, to string, cause error) *StructuredError {
	err := newEvalError(v.Span, "Can't convert to %s", to)
	err.Label = fmt.Sprintf("can't convert '%s' to %s", v.Str, to)
	err.Help = cause.Error()
	return err
}
