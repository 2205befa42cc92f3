package pawrun

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValueKind identifies the variant held by a Value
type ValueKind int

const (
	KindNothing ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindRecord
	KindClosure
	KindError
)

// Value is the tagged union flowing through pipelines.
// Only the field matching Kind is meaningful.
type Value struct {
	Kind    ValueKind
	Bool    bool
	Int     int64
	Float   float64
	Str     string
	List    []Value
	Record  *Record
	Closure *Closure
	Err     *StructuredError
	Span    Span
}

func NothingValue(span Span) Value { return Value{Kind: KindNothing, Span: span} }

func BoolValue(b bool, span Span) Value { return Value{Kind: KindBool, Bool: b, Span: span} }

func IntValue(i int64, span Span) Value { return Value{Kind: KindInt, Int: i, Span: span} }

func FloatValue(f float64, span Span) Value { return Value{Kind: KindFloat, Float: f, Span: span} }

func StringValue(s string, span Span) Value { return Value{Kind: KindString, Str: s, Span: span} }

func ListValue(items []Value, span Span) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: KindList, List: items, Span: span}
}

func RecordValue(rec *Record, span Span) Value {
	if rec == nil {
		rec = NewRecord()
	}
	return Value{Kind: KindRecord, Record: rec, Span: span}
}

func ClosureValue(c *Closure, span Span) Value {
	return Value{Kind: KindClosure, Closure: c, Span: span}
}

func ErrorValue(err *StructuredError, span Span) Value {
	return Value{Kind: KindError, Err: err, Span: span}
}

// IsNothing reports whether v is the nothing value
func (v Value) IsNothing() bool { return v.Kind == KindNothing }

// TypeName is the user-facing name of the value's type
func (v Value) TypeName() string {
	switch v.Kind {
	case KindNothing:
		return "nothing"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		if isTable(v.List) {
			return "table"
		}
		return "list"
	case KindRecord:
		return "record"
	case KindClosure:
		return "closure"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// WithSpan returns a copy of v carrying span
func (v Value) WithSpan(span Span) Value {
	v.Span = span
	return v
}

// CoerceString converts scalar values to a string; structured values fail
func (v Value) CoerceString() (string, error) {
	switch v.Kind {
	case KindString:
		return v.Str, nil
	case KindInt:
		return strconv.FormatInt(v.Int, 10), nil
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64), nil
	case KindBool:
		return strconv.FormatBool(v.Bool), nil
	default:
		err := newEvalError(v.Span, "Can't convert to string")
		err.Label = fmt.Sprintf("can't convert %s to string", v.TypeName())
		return "", err
	}
}

// AsInt returns the integer held by v, accepting integral floats
func (v Value) AsInt() (int64, error) {
	switch v.Kind {
	case KindInt:
		return v.Int, nil
	case KindFloat:
		if v.Float == math.Trunc(v.Float) {
			return int64(v.Float), nil
		}
	}
	return 0, typeMismatch(v.Span, "int", v)
}

// AsFloat widens ints to floats
func (v Value) AsFloat() (float64, error) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), nil
	case KindFloat:
		return v.Float, nil
	}
	return 0, typeMismatch(v.Span, "number", v)
}

// IsTruthy is used by conditions; only bools are accepted
func (v Value) IsTruthy() (bool, error) {
	if v.Kind != KindBool {
		return false, typeMismatch(v.Span, "bool", v)
	}
	return v.Bool, nil
}

// String renders the value the way `to text` does
func (v Value) String() string {
	return formatValue(v, -1)
}

func formatFloat(f float64, precision int) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if precision >= 0 {
		return strconv.FormatFloat(f, 'f', precision, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

// formatValue renders a value as plain text with the given float precision
// (negative means shortest representation)
func formatValue(v Value, precision int) string {
	switch v.Kind {
	case KindNothing:
		return ""
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return formatFloat(v.Float, precision)
	case KindString:
		return v.Str
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = formatNested(item, precision)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindRecord:
		parts := make([]string, 0, v.Record.Len())
		v.Record.Each(func(col string, val Value) {
			parts = append(parts, col+": "+formatNested(val, precision))
		})
		return "{" + strings.Join(parts, ", ") + "}"
	case KindClosure:
		return "<closure>"
	case KindError:
		return "error: " + v.Err.Message
	default:
		return ""
	}
}

func formatNested(v Value, precision int) string {
	if v.Kind == KindString {
		return strconv.Quote(v.Str)
	}
	if v.Kind == KindNothing {
		return "null"
	}
	return formatValue(v, precision)
}

// Record is an insertion-ordered map of column name to value
type Record struct {
	cols []string
	vals []Value
}

// NewRecord creates an empty record
func NewRecord() *Record {
	return &Record{}
}

// Len returns the number of columns
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.cols)
}

// Columns returns the column names in order
func (r *Record) Columns() []string {
	out := make([]string, len(r.cols))
	copy(out, r.cols)
	return out
}

// Get looks up a column
func (r *Record) Get(col string) (Value, bool) {
	for i, c := range r.cols {
		if c == col {
			return r.vals[i], true
		}
	}
	return Value{}, false
}

// Set inserts or replaces a column, keeping the original position on replace
func (r *Record) Set(col string, val Value) {
	for i, c := range r.cols {
		if c == col {
			r.vals[i] = val
			return
		}
	}
	r.cols = append(r.cols, col)
	r.vals = append(r.vals, val)
}

// Remove deletes a column and reports whether it existed
func (r *Record) Remove(col string) bool {
	for i, c := range r.cols {
		if c == col {
			r.cols = append(r.cols[:i:i], r.cols[i+1:]...)
			r.vals = append(r.vals[:i:i], r.vals[i+1:]...)
			return true
		}
	}
	return false
}

// Each visits columns in order
func (r *Record) Each(fn func(col string, val Value)) {
	if r == nil {
		return
	}
	for i, c := range r.cols {
		fn(c, r.vals[i])
	}
}

// Clone returns a shallow copy safe to modify
func (r *Record) Clone() *Record {
	out := &Record{cols: make([]string, len(r.cols)), vals: make([]Value, len(r.vals))}
	copy(out.cols, r.cols)
	copy(out.vals, r.vals)
	return out
}

// isTable reports whether every item of a non-empty list is a record
func isTable(items []Value) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if item.Kind != KindRecord {
			return false
		}
	}
	return true
}

// tableColumns returns the union of record columns in first-seen order
func tableColumns(items []Value) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, item := range items {
		if item.Kind != KindRecord {
			continue
		}
		item.Record.Each(func(col string, _ Value) {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		})
	}
	return cols
}

// valuesEqual compares values structurally; ints and floats compare numerically
func valuesEqual(a, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return af == bf
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNothing:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindString:
		return a.Str == b.Str
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !valuesEqual(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if a.Record.Len() != b.Record.Len() {
			return false
		}
		for i, col := range a.Record.cols {
			other, ok := b.Record.Get(col)
			if !ok || !valuesEqual(a.Record.vals[i], other) {
				return false
			}
		}
		return true
	case KindClosure:
		return a.Closure == b.Closure
	case KindError:
		return a.Err.Message == b.Err.Message
	}
	return false
}

func isNumeric(v Value) bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// compareValues orders values for sorting: numbers, then strings, then
// everything else by type name
func compareValues(a, b Value) int {
	if isNumeric(a) && isNumeric(b) {
		if a.Kind == KindInt && b.Kind == KindInt {
			switch {
			case a.Int < b.Int:
				return -1
			case a.Int > b.Int:
				return 1
			}
			return 0
		}
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	if a.Kind == KindString && b.Kind == KindString {
		return strings.Compare(a.Str, b.Str)
	}
	if a.Kind == KindBool && b.Kind == KindBool {
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		}
		return 1
	}
	if a.Kind != b.Kind {
		return strings.Compare(a.TypeName(), b.TypeName())
	}
	return strings.Compare(a.String(), b.String())
}

// sortValues sorts in place, stable
func sortValues(items []Value, less func(a, b Value) int) {
	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i], items[j]) < 0
	})
}

// followCellPath walks members (record columns or list indexes) from v
func followCellPath(v Value, path []PathMember) (Value, error) {
	current := v
	for _, member := range path {
		switch current.Kind {
		case KindRecord:
			if member.IsIndex {
				return Value{}, newEvalError(member.Span, "Cannot index a record with an integer").WithHelp("use a column name")
			}
			next, ok := current.Record.Get(member.Name)
			if !ok {
				if member.Optional {
					return NothingValue(member.Span), nil
				}
				err := newEvalError(member.Span, "Cannot find column '%s'", member.Name)
				err.Label = "value originates here"
				return Value{}, err
			}
			current = next
		case KindList:
			if member.IsIndex {
				if member.Index < 0 || member.Index >= len(current.List) {
					if member.Optional {
						return NothingValue(member.Span), nil
					}
					return Value{}, newEvalError(member.Span, "Row number too large (max: %d)", len(current.List)-1)
				}
				current = current.List[member.Index]
				continue
			}
			out := make([]Value, 0, len(current.List))
			for _, item := range current.List {
				next, err := followCellPath(item, []PathMember{member})
				if err != nil {
					return Value{}, err
				}
				out = append(out, next)
			}
			current = ListValue(out, current.Span)
		case KindNothing:
			if member.Optional {
				return current, nil
			}
			return Value{}, newEvalError(member.Span, "Cannot access '%s' on nothing", member.String())
		default:
			return Value{}, newEvalError(member.Span, "Data cannot be accessed with a cell path").WithHelp(fmt.Sprintf("%s doesn't support cell paths", current.TypeName()))
		}
	}
	return current, nil
}

// PathMember is one step of a cell path: a column name or a row index
type PathMember struct {
	Name     string
	Index    int
	IsIndex  bool
	Optional bool
	Span     Span
}

func (m PathMember) String() string {
	if m.IsIndex {
		return strconv.Itoa(m.Index)
	}
	return m.Name
}
