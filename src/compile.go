package pawrun

// lowerScope tracks what control flow is legal at a point of the tree
type lowerScope struct {
	inLoop    bool
	canReturn bool
}

// lowerBlock checks control flow and constant arithmetic after parsing.
// A node that cannot run is rewritten in place to ExprFail carrying the
// compile error, so evaluation fails only if it reaches that node.
func lowerBlock(ws *WorkingSet, block *Block) {
	lowerIn(ws, block, lowerScope{})
}

func lowerIn(ws *WorkingSet, block *Block, scope lowerScope) {
	if block == nil {
		return
	}
	for _, pipe := range block.Pipelines {
		for _, el := range pipe.Elements {
			lowerExpr(ws, el, scope)
		}
	}
}

func lowerExpr(ws *WorkingSet, e *Expr, scope lowerScope) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ExprBreak, ExprContinue:
		if !scope.inLoop {
			word := "break"
			if e.Kind == ExprContinue {
				word = "continue"
			}
			lowerToFailure(ws, e, newCompileError(e.Span, "`"+word+"` used outside of a loop", "not inside a for loop"))
		}
		return
	case ExprReturn:
		if !scope.canReturn {
			lowerToFailure(ws, e, newCompileError(e.Span, "`return` used outside of a command or closure", "nothing to return from"))
			return
		}
		lowerExpr(ws, e.Right, scope)
		return
	case ExprBinary:
		lowerExpr(ws, e.Left, scope)
		lowerExpr(ws, e.Right, scope)
		switch e.Op {
		case "/", "//", "mod":
			if isZeroLiteral(e.Right) {
				lowerToFailure(ws, e, newCompileError(e.Right.Span, "Division by zero", "divisor is zero"))
			}
		}
		return
	case ExprFor:
		lowerExpr(ws, e.Right, scope)
		lowerIn(ws, e.Body, lowerScope{inLoop: true, canReturn: scope.canReturn})
		return
	case ExprClosure:
		lowerIn(ws, e.Body, lowerScope{canReturn: true})
		return
	case ExprDef:
		lowerIn(ws, e.Body, lowerScope{canReturn: true})
		return
	}

	for _, item := range e.Items {
		lowerExpr(ws, item, scope)
	}
	for _, f := range e.Fields {
		lowerExpr(ws, f.Value, scope)
	}
	lowerExpr(ws, e.Head, scope)
	lowerExpr(ws, e.Left, scope)
	lowerExpr(ws, e.Right, scope)
	if e.Call != nil {
		for _, arg := range e.Call.Positional {
			lowerExpr(ws, arg, scope)
		}
		for _, named := range e.Call.Named {
			lowerExpr(ws, named.Value, scope)
		}
	}
	lowerIn(ws, e.Body, scope)
	lowerExpr(ws, e.Else, scope)
	lowerExpr(ws, e.Catch, scope)
}

func lowerToFailure(ws *WorkingSet, e *Expr, err *StructuredError) {
	ws.addCompileError(err)
	*e = Expr{Kind: ExprFail, Span: e.Span, Err: err}
}

func isZeroLiteral(e *Expr) bool {
	switch e.Kind {
	case ExprInt:
		return e.Int == 0
	case ExprFloat:
		return e.Float == 0
	}
	return false
}
