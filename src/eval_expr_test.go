package pawrun

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		a, b    int64
		want    any
		wantErr string
	}{
		{name: "add", op: "+", a: 2, b: 3, want: int64(5)},
		{name: "add overflow", op: "+", a: math.MaxInt64, b: 1, wantErr: "Operator overflow"},
		{name: "sub overflow", op: "-", a: math.MinInt64, b: 1, wantErr: "Operator overflow"},
		{name: "mul overflow", op: "*", a: math.MinInt64, b: -1, wantErr: "Operator overflow"},
		{name: "exact division", op: "/", a: 6, b: 3, want: int64(2)},
		{name: "inexact division", op: "/", a: 7, b: 2, want: 3.5},
		{name: "division overflow", op: "/", a: math.MinInt64, b: -1, wantErr: "Operator overflow"},
		{name: "division by zero", op: "/", a: 1, b: 0, wantErr: "Division by zero"},
		{name: "floor division", op: "//", a: -7, b: 2, want: int64(-4)},
		{name: "floor division overflow", op: "//", a: math.MinInt64, b: -1, wantErr: "Operator overflow"},
		{name: "mod follows divisor", op: "mod", a: -7, b: 3, want: int64(2)},
		{name: "min int mod minus one", op: "mod", a: math.MinInt64, b: -1, want: int64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := intArithmetic(tt.op, tt.a, tt.b, UnknownSpan)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsKind(err, ErrorEvaluation))
				assert.Equal(t, tt.wantErr, err.(*StructuredError).Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ToGo(v))
		})
	}
}
