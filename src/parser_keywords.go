package pawrun

import (
	"fmt"
	"strings"
)

// parseBracedBlock parses { ... } as a block in a new scope
func (p *parser) parseBracedBlock() (*Block, *StructuredError) {
	open := p.next()
	savedRow := p.rowVar
	p.rowVar = nil
	p.pushScope()
	body := p.parseBlock(TokRBrace)
	p.popScope()
	p.rowVar = savedRow
	if p.peek().Kind != TokRBrace {
		return nil, p.fail(newParseError(open.Span, "Unclosed delimiter", "'{' is never closed"))
	}
	closeTok := p.next()
	body.Span = Span{open.Span.Start, closeTok.Span.End}
	return body, nil
}

// expectBrace fails unless the cursor is at an opening brace
func (p *parser) expectBrace(what string) *StructuredError {
	if p.peek().Kind == TokLBrace {
		return nil
	}
	tok := p.peek()
	return p.fail(newParseError(tok.Span, "Expected "+what, "expected '{', found "+tok.Kind.String()))
}

// parseLet parses `let name = pipeline`; the value may be a whole pipeline
func (p *parser) parseLet() *Expr {
	kw := p.next()
	nameTok := p.peek()
	if nameTok.Kind != TokWord || !isIdentifier(strings.TrimPrefix(nameTok.Text, "$")) {
		err := p.fail(newParseError(nameTok.Span, "Expected variable name", "let needs a name"))
		p.skipElement()
		return p.garbage(kw.Span.Start, err)
	}
	p.next()
	name := strings.TrimPrefix(nameTok.Text, "$")
	if p.peek().Kind == TokColon {
		p.next()
		if p.peek().Kind == TokWord {
			p.next()
		}
	}
	eq := p.peek()
	if eq.Kind != TokWord || eq.Text != "=" {
		err := p.fail(newParseError(eq.Span, "Expected '='", "let needs a value").WithHelp("let " + name + " = <value>"))
		p.skipElement()
		return p.garbage(kw.Span.Start, err)
	}
	p.next()
	p.skipNewlines()
	if p.atElementEnd() {
		err := p.fail(newParseError(eq.Span, "Missing value", "expected a value after '='"))
		return p.garbage(kw.Span.Start, err)
	}
	pipe := p.parsePipeline()
	value := &Expr{
		Kind: ExprSubexpr,
		Body: &Block{Pipelines: []*Pipeline{pipe}, Span: pipe.Span},
		Span: pipe.Span,
	}
	id := p.ws.NewVar()
	p.declare(name, id)
	return &Expr{Kind: ExprLet, Var: id, VarName: name, Right: value, Span: Span{kw.Span.Start, p.prevEnd()}}
}

// parseDef parses `def name [params] { body }` and registers the command
// in the working set before the body is parsed, so it may call itself
func (p *parser) parseDef() *Expr {
	kw := p.next()
	nameTok := p.peek()
	if nameTok.Kind != TokWord && nameTok.Kind != TokString && nameTok.Kind != TokRawString {
		err := p.fail(newParseError(nameTok.Span, "Expected command name", "def needs a name"))
		p.skipElement()
		return p.garbage(kw.Span.Start, err)
	}
	p.next()
	name := nameTok.Value
	if p.peek().Kind != TokLBracket {
		err := p.fail(newParseError(p.peek().Span, "Expected parameter list", "def needs [params]").
			WithHelp("def " + name + " [] { ... }"))
		p.skipElement()
		return p.garbage(kw.Span.Start, err)
	}
	sig, scope, err := p.parseParams()
	if err != nil {
		p.skipElement()
		return p.garbage(kw.Span.Start, err)
	}
	if err := p.expectBrace("command body"); err != nil {
		p.skipElement()
		return p.garbage(kw.Span.Start, err)
	}
	if _, exists := p.ws.FindDecl(name); exists {
		p.ws.addWarning(newParseWarning(nameTok.Span, "Command shadows an existing command",
			fmt.Sprintf("`%s` is already defined", name)).WithHelp("the new definition is used from here on"))
	}
	cmd := &Command{Name: name, Signature: sig, Description: "custom command", Category: CategoryCustom}
	p.ws.AddDecl(cmd)

	savedScopes := p.scopes
	p.scopes = []map[string]VarID{p.scopes[0], scope}
	body, err := p.parseBracedBlock()
	p.scopes = savedScopes
	if err != nil {
		return p.garbage(kw.Span.Start, err)
	}
	cmd.Body = body
	return &Expr{Kind: ExprDef, Str: name, Body: body, Span: Span{kw.Span.Start, p.prevEnd()}}
}

// parseParams parses a def parameter list
func (p *parser) parseParams() (Signature, map[string]VarID, *StructuredError) {
	p.next() // [
	scope := map[string]VarID{}
	var sig Signature
	for {
		for k := p.peek().Kind; k == TokNewline || k == TokComma; k = p.peek().Kind {
			p.next()
		}
		tok := p.peek()
		if tok.Kind == TokRBracket {
			p.next()
			return sig, scope, nil
		}
		if tok.Kind != TokWord {
			err := p.fail(newParseError(tok.Span, "Invalid parameter", "expected a parameter name"))
			p.skipTo(TokRBracket)
			return sig, scope, err
		}
		p.next()
		text := tok.Text
		id := p.ws.NewVar()
		switch {
		case strings.HasPrefix(text, "--"):
			flag := Flag{Long: text[2:], Var: id}
			if p.peek().Kind == TokColon {
				p.next()
				shape, err := p.parseShapeAnnotation()
				if err != nil {
					return sig, scope, err
				}
				flag.Shape = &shape
			}
			scope[strings.ReplaceAll(flag.Long, "-", "_")] = id
			sig.Named = append(sig.Named, flag)
		case strings.HasPrefix(text, "..."):
			arg := PositionalArg{Name: text[3:], Var: id}
			if p.peek().Kind == TokColon {
				p.next()
				shape, err := p.parseShapeAnnotation()
				if err != nil {
					return sig, scope, err
				}
				arg.Shape = shape
			}
			scope[arg.Name] = id
			sig.Rest = &arg
		default:
			optional := strings.HasSuffix(text, "?")
			arg := PositionalArg{Name: strings.TrimSuffix(text, "?"), Var: id}
			if !isIdentifier(arg.Name) {
				return sig, scope, p.fail(newParseError(tok.Span, "Invalid parameter", "not a valid parameter name"))
			}
			if p.peek().Kind == TokColon {
				p.next()
				shape, err := p.parseShapeAnnotation()
				if err != nil {
					return sig, scope, err
				}
				arg.Shape = shape
			}
			scope[arg.Name] = id
			if optional {
				sig.Optional = append(sig.Optional, arg)
			} else if len(sig.Optional) > 0 {
				return sig, scope, p.fail(newParseError(tok.Span, "Required parameter after optional", "move this before the optional parameters"))
			} else {
				sig.Required = append(sig.Required, arg)
			}
		}
	}
}

func (p *parser) parseShapeAnnotation() (Shape, *StructuredError) {
	tok := p.next()
	name := tok.Text
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	shape, ok := parseShape(name)
	if !ok {
		return ShapeAny, p.fail(newParseError(tok.Span, "Unknown type", fmt.Sprintf("unknown type '%s'", tok.Text)))
	}
	return shape, nil
}

// parseIf parses `if cond { } else if cond { } else { }`
func (p *parser) parseIf() *Expr {
	kw := p.next()
	cond := p.parseExpression()
	if err := p.expectBrace("block after if condition"); err != nil {
		p.skipElement()
		return p.garbage(kw.Span.Start, err)
	}
	then, err := p.parseBracedBlock()
	if err != nil {
		return p.garbage(kw.Span.Start, err)
	}
	expr := &Expr{Kind: ExprIf, Left: cond, Body: then}

	save := p.pos
	p.skipNewlines()
	if tok := p.peek(); tok.Kind == TokWord && tok.Text == "else" {
		p.next()
		switch next := p.peek(); {
		case next.Kind == TokWord && next.Text == "if":
			expr.Else = p.parseIf()
		case next.Kind == TokLBrace:
			blk, err := p.parseBracedBlock()
			if err != nil {
				return p.garbage(kw.Span.Start, err)
			}
			expr.Else = &Expr{Kind: ExprSubexpr, Body: blk, Span: blk.Span}
		default:
			err := p.fail(newParseError(next.Span, "Expected block after else", "expected '{' or 'if'"))
			p.skipElement()
			return p.garbage(kw.Span.Start, err)
		}
	} else {
		p.pos = save
	}
	expr.Span = Span{kw.Span.Start, p.prevEnd()}
	return expr
}

// parseFor parses `for x in values { }`
func (p *parser) parseFor() *Expr {
	kw := p.next()
	varTok := p.peek()
	name := strings.TrimPrefix(varTok.Text, "$")
	if varTok.Kind != TokWord || !isIdentifier(name) {
		err := p.fail(newParseError(varTok.Span, "Expected loop variable", "for needs a variable name"))
		p.skipElement()
		return p.garbage(kw.Span.Start, err)
	}
	p.next()
	if in := p.peek(); in.Kind != TokWord || in.Text != "in" {
		err := p.fail(newParseError(in.Span, "Expected 'in'", "for x in <values> { ... }"))
		p.skipElement()
		return p.garbage(kw.Span.Start, err)
	}
	p.next()
	values := p.parseExpression()
	if err := p.expectBrace("loop body"); err != nil {
		p.skipElement()
		return p.garbage(kw.Span.Start, err)
	}
	p.pushScope()
	id := p.ws.NewVar()
	p.declare(name, id)
	body, err := p.parseBracedBlock()
	p.popScope()
	if err != nil {
		return p.garbage(kw.Span.Start, err)
	}
	return &Expr{Kind: ExprFor, Var: id, VarName: name, Right: values, Body: body, Span: Span{kw.Span.Start, p.prevEnd()}}
}

// parseTry parses `try { } catch {|err| }`; the catch is optional
func (p *parser) parseTry() *Expr {
	kw := p.next()
	if err := p.expectBrace("block after try"); err != nil {
		p.skipElement()
		return p.garbage(kw.Span.Start, err)
	}
	body, err := p.parseBracedBlock()
	if err != nil {
		return p.garbage(kw.Span.Start, err)
	}
	expr := &Expr{Kind: ExprTry, Body: body}
	save := p.pos
	p.skipNewlines()
	if tok := p.peek(); tok.Kind == TokWord && tok.Text == "catch" {
		p.next()
		if err := p.expectBrace("closure after catch"); err != nil {
			p.skipElement()
			return p.garbage(kw.Span.Start, err)
		}
		expr.Catch = p.parseClosure()
		if expr.Catch.Kind == ExprGarbage {
			return p.garbage(kw.Span.Start, expr.Catch.Err)
		}
	} else {
		p.pos = save
	}
	expr.Span = Span{kw.Span.Start, p.prevEnd()}
	return expr
}

func (p *parser) parseReturn() *Expr {
	kw := p.next()
	expr := &Expr{Kind: ExprReturn, Span: kw.Span}
	if !p.atElementEnd() {
		expr.Right = p.parseExpression()
		expr.Span = kw.Span.Merge(expr.Right.Span)
	}
	return expr
}
