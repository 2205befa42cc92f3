package pawrun_test

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phroun/pawrun"
)

func newExampleRunner() *pawrun.Runner {
	return pawrun.New(&pawrun.Config{
		Output:    os.Stdout,
		ErrOutput: io.Discard,
		Host:      &pawrun.StaticHost{Dir: "/"},
	})
}

func ExampleRunner_Evaluate() {
	r := newExampleRunner()
	out, err := r.Evaluate("echo 1", pawrun.EmptyPipeline(), pawrun.Overrides{})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	v, _ := out.Value()
	fmt.Println(pawrun.ToGo(v))
	// Output: 1
}

func ExampleRunner_Evaluate_input() {
	r := newExampleRunner()
	input := pawrun.NewValuePipeline(pawrun.FromGo([]any{"b", "c", "a"}, pawrun.Span{}))
	out, err := r.Evaluate("sort | str join ','", input, pawrun.Overrides{})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	v, _ := out.Value()
	fmt.Println(pawrun.ToGo(v))
	// Output: a,b,c
}

func ExampleRunner_RegisterHandler() {
	r := newExampleRunner()
	err := r.RegisterHandler("shout", "Upper-cases its arguments.", func(ctx *pawrun.Context, input pawrun.PipelineData) (pawrun.PipelineData, error) {
		var words []string
		for _, arg := range ctx.Rest(0) {
			s, err := arg.CoerceString()
			if err != nil {
				return pawrun.EmptyPipeline(), err
			}
			words = append(words, strings.ToUpper(s))
		}
		return pawrun.NewValuePipeline(pawrun.FromGo(strings.Join(words, " ")+"!", ctx.Span)), nil
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	out, err := r.Evaluate("shout hello world", pawrun.EmptyPipeline(), pawrun.Overrides{})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	v, _ := out.Value()
	fmt.Println(pawrun.ToGo(v))
	// Output: HELLO WORLD!
}
