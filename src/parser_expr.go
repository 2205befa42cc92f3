package pawrun

import (
	"strconv"
	"strings"
	"unicode"
)

var precedence = map[string]int{
	"or":          1,
	"xor":         1,
	"and":         2,
	"==":          3,
	"!=":          3,
	"<":           3,
	"<=":          3,
	">":           3,
	">=":          3,
	"=~":          3,
	"!~":          3,
	"in":          3,
	"not-in":      3,
	"starts-with": 3,
	"ends-with":   3,
	"++":          4,
	"+":           5,
	"-":           5,
	"*":           6,
	"/":           6,
	"//":          6,
	"mod":         6,
	"**":          7,
}

func isOperatorToken(tok Token) bool {
	if tok.Kind != TokWord {
		return false
	}
	_, ok := precedence[tok.Text]
	return ok
}

// isNumberWord reports whether a bare word is a numeric literal
func isNumberWord(text string) bool {
	s := strings.TrimPrefix(strings.TrimPrefix(text, "-"), "+")
	if s == "" {
		return false
	}
	if !unicode.IsDigit(rune(s[0])) && !(s[0] == '.' && len(s) > 1 && unicode.IsDigit(rune(s[1]))) {
		return false
	}
	_, _, _, ok := parseNumber(text)
	return ok
}

// parseNumber parses an int or float literal; underscores may group digits
func parseNumber(text string) (i int64, f float64, isFloat bool, ok bool) {
	clean := strings.ReplaceAll(text, "_", "")
	body := strings.TrimPrefix(strings.TrimPrefix(clean, "-"), "+")
	base := 10
	if len(body) > 2 && body[0] == '0' {
		switch body[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			base = 0
		}
	}
	if n, err := strconv.ParseInt(clean, base, 64); err == nil {
		return n, 0, false, true
	}
	if base == 10 {
		if n, err := strconv.ParseFloat(clean, 64); err == nil {
			return 0, n, true, true
		}
	}
	return 0, 0, false, false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '-' && i > 0 || unicode.IsLetter(r) || unicode.IsDigit(r) && i > 0 {
			continue
		}
		return false
	}
	return true
}

func (p *parser) parseExpression() *Expr {
	return p.parseBinary(1)
}

func (p *parser) parseBinary(minPrec int) *Expr {
	left := p.parseUnary()
	for {
		tok := p.peek()
		if !isOperatorToken(tok) {
			return left
		}
		prec := precedence[tok.Text]
		if prec < minPrec {
			return left
		}
		p.next()
		if p.atElementEnd() {
			err := p.fail(newParseError(tok.Span, "Incomplete math expression", "missing right-hand operand"))
			return p.garbage(left.Span.Start, err)
		}
		nextMin := prec + 1
		if tok.Text == "**" {
			nextMin = prec
		}
		right := p.parseBinary(nextMin)
		left = &Expr{Kind: ExprBinary, Op: tok.Text, Left: left, Right: right, Span: left.Span.Merge(right.Span)}
	}
}

func (p *parser) parseUnary() *Expr {
	tok := p.peek()
	if tok.Kind == TokWord && tok.Text == "not" {
		p.next()
		operand := p.parseBinary(3)
		return &Expr{Kind: ExprUnary, Op: "not", Right: operand, Span: tok.Span.Merge(operand.Span)}
	}
	return p.parseValue()
}

// parseValue parses a single operand: a literal, variable, list, record,
// closure or subexpression
func (p *parser) parseValue() *Expr {
	tok := p.peek()
	switch tok.Kind {
	case TokString, TokRawString:
		p.next()
		return &Expr{Kind: ExprString, Str: tok.Value, Span: tok.Span}
	case TokWord:
		return p.parseWordValue()
	case TokLParen:
		return p.parseSubexpr()
	case TokLBracket:
		return p.parseList()
	case TokLBrace:
		if p.peekAt(1).Kind == TokPipe {
			return p.parseClosure()
		}
		if p.looksLikeRecord() {
			return p.parseRecord()
		}
		return p.parseClosure()
	}
	if tok.Kind == TokComma || tok.Kind == TokColon {
		p.next()
	}
	err := p.fail(newParseError(tok.Span, "Expected a value", "found "+tok.Kind.String()))
	return &Expr{Kind: ExprGarbage, Span: tok.Span, Err: err}
}

// looksLikeRecord reports whether the brace at the cursor opens a record:
// either {} or a key followed by a colon
func (p *parser) looksLikeRecord() bool {
	i := p.pos + 1
	for i < len(p.tokens) && p.tokens[i].Kind == TokNewline {
		i++
	}
	if i >= len(p.tokens) {
		return false
	}
	switch p.tokens[i].Kind {
	case TokRBrace:
		return true
	case TokWord, TokString, TokRawString:
		return i+1 < len(p.tokens) && p.tokens[i+1].Kind == TokColon
	}
	return false
}

func (p *parser) parseWordValue() *Expr {
	tok := p.next()
	text := tok.Text
	switch {
	case strings.HasPrefix(text, "$"):
		return p.parseVariable(tok)
	case text == "true" || text == "false":
		return &Expr{Kind: ExprBool, Bool: text == "true", Span: tok.Span}
	case text == "null":
		return &Expr{Kind: ExprNothing, Span: tok.Span}
	case isNumberWord(text):
		i, f, isFloat, _ := parseNumber(text)
		if isFloat {
			return &Expr{Kind: ExprFloat, Float: f, Span: tok.Span}
		}
		return &Expr{Kind: ExprInt, Int: i, Span: tok.Span}
	}
	if p.rowVar != nil && p.isRowColumn() {
		head := &Expr{Kind: ExprVar, Var: *p.rowVar, VarName: "it", Span: Span{tok.Span.Start, tok.Span.Start}}
		path, err := p.parsePathMembers(strings.Split(text, "."), tok.Span.Start)
		if err != nil {
			return &Expr{Kind: ExprGarbage, Span: tok.Span, Err: p.fail(err)}
		}
		return &Expr{Kind: ExprCellPath, Head: head, Path: path, Span: tok.Span}
	}
	return &Expr{Kind: ExprString, Str: text, Span: tok.Span}
}

// isRowColumn decides whether the bare word just consumed names a column
// of the current row: it does unless it is the operand of a comparison or
// arithmetic operator
func (p *parser) isRowColumn() bool {
	if p.pos < 2 {
		return true
	}
	prev := p.tokens[p.pos-2]
	if !isOperatorToken(prev) {
		return true
	}
	switch prev.Text {
	case "and", "or", "xor":
		return true
	}
	return false
}

func (p *parser) parseVariable(tok Token) *Expr {
	parts := strings.Split(tok.Text[1:], ".")
	name := parts[0]
	if name == "" {
		err := p.fail(newParseError(tok.Span, "Variable name expected", "missing name after $"))
		return &Expr{Kind: ExprGarbage, Span: tok.Span, Err: err}
	}
	id, ok := p.lookupVar(name)
	if !ok {
		err := p.fail(newParseError(tok.Span, "Variable not found", "variable not found"))
		return &Expr{Kind: ExprGarbage, Span: tok.Span, Err: err}
	}
	nameEnd := tok.Span.Start + 1 + len(name)
	head := &Expr{Kind: ExprVar, Var: id, VarName: name, Span: Span{tok.Span.Start, nameEnd}}
	if len(parts) == 1 {
		return head
	}
	path, err := p.parsePathMembers(parts[1:], nameEnd+1)
	if err != nil {
		return &Expr{Kind: ExprGarbage, Span: tok.Span, Err: p.fail(err)}
	}
	return &Expr{Kind: ExprCellPath, Head: head, Path: path, Span: tok.Span}
}

// parsePathMembers converts dotted parts starting at offset into members
func (p *parser) parsePathMembers(parts []string, offset int) ([]PathMember, *StructuredError) {
	members := make([]PathMember, 0, len(parts))
	for _, part := range parts {
		span := Span{offset, offset + len(part)}
		offset += len(part) + 1
		m, ok := parsePathMember(part, span)
		if !ok {
			return nil, newParseError(span, "Invalid cell path", "empty path member")
		}
		members = append(members, m)
	}
	return members, nil
}

func parsePathMember(part string, span Span) (PathMember, bool) {
	m := PathMember{Span: span}
	if strings.HasSuffix(part, "?") {
		m.Optional = true
		part = strings.TrimSuffix(part, "?")
	}
	if part == "" {
		return m, false
	}
	if n, err := strconv.Atoi(part); err == nil && n >= 0 {
		m.IsIndex = true
		m.Index = n
	}
	m.Name = part
	return m, true
}

// parseCellPathString splits a runtime cell path such as "a.0.b"
func parseCellPathString(s string, span Span) ([]PathMember, error) {
	var members []PathMember
	for _, part := range strings.Split(s, ".") {
		m, ok := parsePathMember(part, span)
		if !ok {
			return nil, newEvalError(span, "Invalid cell path '%s'", s)
		}
		members = append(members, m)
	}
	return members, nil
}

// withPath attaches a directly adjacent .member path to expr
func (p *parser) withPath(expr *Expr) *Expr {
	tok := p.peek()
	if tok.Kind != TokWord || !strings.HasPrefix(tok.Text, ".") || tok.Span.Start != expr.Span.End {
		return expr
	}
	p.next()
	path, err := p.parsePathMembers(strings.Split(tok.Text[1:], "."), tok.Span.Start+1)
	if err != nil {
		return &Expr{Kind: ExprGarbage, Span: expr.Span.Merge(tok.Span), Err: p.fail(err)}
	}
	return &Expr{Kind: ExprCellPath, Head: expr, Path: path, Span: expr.Span.Merge(tok.Span)}
}

func (p *parser) unclosed(open Token, what string) *Expr {
	err := p.fail(newParseError(open.Span, "Unclosed delimiter", what+" is never closed"))
	return p.garbage(open.Span.Start, err)
}

func (p *parser) parseSubexpr() *Expr {
	open := p.next()
	savedRow := p.rowVar
	p.rowVar = nil
	p.pushScope()
	body := p.parseBlock(TokRParen)
	p.popScope()
	p.rowVar = savedRow
	if p.peek().Kind != TokRParen {
		return p.unclosed(open, "'('")
	}
	closeTok := p.next()
	expr := &Expr{Kind: ExprSubexpr, Body: body, Span: Span{open.Span.Start, closeTok.Span.End}}
	return p.withPath(expr)
}

func (p *parser) parseList() *Expr {
	open := p.next()
	savedRow := p.rowVar
	p.rowVar = nil
	defer func() { p.rowVar = savedRow }()
	var items []*Expr
	for {
		for k := p.peek().Kind; k == TokNewline || k == TokComma; k = p.peek().Kind {
			p.next()
		}
		tok := p.peek()
		switch tok.Kind {
		case TokRBracket:
			closeTok := p.next()
			return p.withPath(&Expr{Kind: ExprList, Items: items, Span: Span{open.Span.Start, closeTok.Span.End}})
		case TokEOF, TokRParen, TokRBrace, TokPipe, TokSemicolon:
			return p.unclosed(open, "'['")
		}
		items = append(items, p.parseValue())
	}
}

func (p *parser) parseRecord() *Expr {
	open := p.next()
	savedRow := p.rowVar
	p.rowVar = nil
	defer func() { p.rowVar = savedRow }()
	var fields []RecordField
	for {
		for k := p.peek().Kind; k == TokNewline || k == TokComma; k = p.peek().Kind {
			p.next()
		}
		tok := p.peek()
		switch tok.Kind {
		case TokRBrace:
			closeTok := p.next()
			return p.withPath(&Expr{Kind: ExprRecord, Fields: fields, Span: Span{open.Span.Start, closeTok.Span.End}})
		case TokWord, TokString, TokRawString:
			p.next()
			if p.peek().Kind != TokColon {
				err := p.fail(newParseError(p.peek().Span, "Expected ':' after record key", "missing ':'"))
				p.skipTo(TokRBrace)
				return p.garbage(open.Span.Start, err)
			}
			p.next()
			p.skipNewlines()
			fields = append(fields, RecordField{Key: tok.Value, Value: p.parseValue()})
		default:
			return p.unclosed(open, "'{'")
		}
	}
}

// skipTo consumes tokens up to and including the closer at depth zero
func (p *parser) skipTo(closer TokenKind) {
	depth := 0
	for {
		tok := p.peek()
		switch tok.Kind {
		case TokEOF:
			return
		case TokLParen, TokLBracket, TokLBrace:
			depth++
		case TokRParen, TokRBracket, TokRBrace:
			if depth == 0 {
				if tok.Kind == closer {
					p.next()
				}
				return
			}
			depth--
		}
		p.next()
	}
}

// parseClosure parses {|a, b| body} or a bare { body } used as a closure
func (p *parser) parseClosure() *Expr {
	open := p.next()
	savedRow := p.rowVar
	p.rowVar = nil
	defer func() { p.rowVar = savedRow }()
	p.pushScope()
	defer p.popScope()

	var params []Param
	if p.peek().Kind == TokPipe {
		p.next()
		for p.peek().Kind != TokPipe {
			tok := p.peek()
			switch {
			case tok.Kind == TokComma:
				p.next()
			case tok.Kind == TokWord:
				p.next()
				name := strings.TrimPrefix(tok.Text, "$")
				id := p.ws.NewVar()
				p.declare(name, id)
				params = append(params, Param{Name: name, Var: id})
				if p.peek().Kind == TokColon {
					p.next()
					p.next()
				}
			default:
				err := p.fail(newParseError(tok.Span, "Expected closure parameters", "found "+tok.Kind.String()))
				p.skipTo(TokRBrace)
				return p.garbage(open.Span.Start, err)
			}
		}
		p.next()
	}
	body := p.parseBlock(TokRBrace)
	if p.peek().Kind != TokRBrace {
		return p.unclosed(open, "'{'")
	}
	closeTok := p.next()
	span := Span{open.Span.Start, closeTok.Span.End}
	body.Span = span
	return &Expr{Kind: ExprClosure, Params: params, Body: body, Span: span}
}

// parseRowCondition parses the argument of where: an expression in which
// bare words name columns of the row, wrapped as a one-parameter closure
func (p *parser) parseRowCondition() *Expr {
	id := p.ws.NewVar()
	p.pushScope()
	p.declare("it", id)
	savedRow := p.rowVar
	p.rowVar = &id
	cond := p.parseExpression()
	p.rowVar = savedRow
	p.popScope()
	if cond.Kind == ExprGarbage {
		return cond
	}
	body := &Block{
		Pipelines: []*Pipeline{{Elements: []*Expr{cond}, Span: cond.Span}},
		Span:      cond.Span,
	}
	return &Expr{Kind: ExprClosure, Params: []Param{{Name: "it", Var: id}}, Body: body, Span: cond.Span}
}
