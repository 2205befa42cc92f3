package pawrun

// Block is the parsed and lowered form of a script or a braced body.
// A Block is immutable once parsing finishes.
type Block struct {
	Pipelines []*Pipeline
	Span      Span
}

// Pipeline is a sequence of elements joined by |
type Pipeline struct {
	Elements []*Expr
	Span     Span
}

// ExprKind identifies the variant held by an Expr
type ExprKind int

const (
	ExprNothing ExprKind = iota
	ExprBool
	ExprInt
	ExprFloat
	ExprString
	ExprList
	ExprRecord
	ExprVar
	ExprCellPath // Head followed by Path
	ExprBinary
	ExprUnary
	ExprCall
	ExprClosure
	ExprSubexpr // ( ... ), Body evaluated in a child scope
	ExprLet
	ExprDef
	ExprIf
	ExprFor
	ExprTry
	ExprBreak
	ExprContinue
	ExprReturn
	ExprGarbage // a parse failure; evaluating it fails
	ExprFail    // a lowering failure; evaluating it fails
)

// Expr is one node of the syntax tree. Only the fields relevant to Kind
// are set.
type Expr struct {
	Kind ExprKind
	Span Span

	Bool  bool
	Int   int64
	Float float64
	Str   string

	Items  []*Expr
	Fields []RecordField

	Var     VarID
	VarName string

	Head *Expr
	Path []PathMember

	Op          string
	Left, Right *Expr

	Call *CallExpr

	Params []Param
	Body   *Block
	Else   *Expr // ExprIf: a closure-less block body or another if

	// Catch is the handler of a try, a closure taking the error record
	Catch *Expr

	Err *StructuredError
}

// RecordField is one key/value pair of a record literal
type RecordField struct {
	Key   string
	Value *Expr
}

// Param is a closure parameter
type Param struct {
	Name string
	Var  VarID
}

// CallExpr is a resolved command invocation
type CallExpr struct {
	Decl       DeclID
	Name       string
	Head       Span
	Positional []*Expr
	Named      []NamedArg
	// Collects is set when an argument refers to $in, so the input must be
	// gathered into a value before the arguments are evaluated
	Collects bool
}

// NamedArg is a flag given to a call; Value is nil for switches
type NamedArg struct {
	Name  string
	Value *Expr
	Span  Span
}

// walk visits every expression below e, depth first
func (e *Expr) walk(fn func(*Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, item := range e.Items {
		item.walk(fn)
	}
	for _, f := range e.Fields {
		f.Value.walk(fn)
	}
	e.Head.walk(fn)
	e.Left.walk(fn)
	e.Right.walk(fn)
	if e.Call != nil {
		for _, p := range e.Call.Positional {
			p.walk(fn)
		}
		for _, n := range e.Call.Named {
			n.Value.walk(fn)
		}
	}
	e.Body.walk(fn)
	e.Else.walk(fn)
	e.Catch.walk(fn)
}

func (b *Block) walk(fn func(*Expr) bool) {
	if b == nil {
		return
	}
	for _, p := range b.Pipelines {
		for _, el := range p.Elements {
			el.walk(fn)
		}
	}
}

// usesIn reports whether $in is referenced outside nested closures
func (e *Expr) usesIn() bool {
	found := false
	e.walk(func(x *Expr) bool {
		if found || x.Kind == ExprClosure {
			return false
		}
		if x.Kind == ExprVar && x.Var == InVarID {
			found = true
			return false
		}
		return true
	})
	return found
}
