package pawrun

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// parser turns tokens into a Block. Problems are recorded on the working
// set and the offending element becomes garbage; parsing always finishes.
type parser struct {
	ws     *WorkingSet
	source string
	tokens []Token
	pos    int
	scopes []map[string]VarID
	// rowVar is the implicit row variable while parsing a where condition
	rowVar *VarID
}

// Parse parses source against the working set, lowers the result and
// returns the executable block. Diagnostics are left on ws.
func Parse(ws *WorkingSet, source string) *Block {
	tokens, lexErrs := lex(source)
	for _, err := range lexErrs {
		ws.addError(err)
	}
	p := &parser{
		ws:     ws,
		source: source,
		tokens: tokens,
		scopes: []map[string]VarID{
			{"in": InVarID, "env": EnvVarID},
			{},
		},
	}
	block := p.parseBlock(TokEOF)
	block.Span = Span{0, len(source)}
	lowerBlock(ws, block)
	return block
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(n int) Token {
	i := p.pos + n
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

// prevEnd is the end offset of the last consumed token
func (p *parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.tokens[p.pos-1].Span.End
}

func (p *parser) skipNewlines() {
	for p.peek().Kind == TokNewline {
		p.next()
	}
}

func (p *parser) pushScope() {
	p.scopes = append(p.scopes, map[string]VarID{})
}

func (p *parser) popScope() {
	p.scopes = p.scopes[:len(p.scopes)-1]
}

func (p *parser) declare(name string, id VarID) {
	p.scopes[len(p.scopes)-1][name] = id
}

func (p *parser) lookupVar(name string) (VarID, bool) {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if id, ok := p.scopes[i][name]; ok {
			return id, true
		}
	}
	return 0, false
}

func isCloser(k TokenKind) bool {
	return k == TokRParen || k == TokRBrace || k == TokRBracket
}

// atElementEnd reports whether the current pipeline element is complete
func (p *parser) atElementEnd() bool {
	switch p.peek().Kind {
	case TokPipe, TokSemicolon, TokNewline, TokEOF, TokRParen, TokRBrace, TokRBracket:
		return true
	}
	return false
}

// skipElement consumes the rest of the current element, keeping brackets
// balanced
func (p *parser) skipElement() {
	depth := 0
	for {
		switch p.peek().Kind {
		case TokEOF:
			return
		case TokLParen, TokLBracket, TokLBrace:
			depth++
		case TokRParen, TokRBracket, TokRBrace:
			if depth == 0 {
				return
			}
			depth--
		case TokPipe, TokSemicolon, TokNewline:
			if depth == 0 {
				return
			}
		}
		p.next()
	}
}

// fail records a parse error and returns it
func (p *parser) fail(err *StructuredError) *StructuredError {
	p.ws.addError(err)
	return err
}

func (p *parser) garbage(start int, err *StructuredError) *Expr {
	end := max(p.prevEnd(), start)
	return &Expr{Kind: ExprGarbage, Span: Span{start, end}, Err: err}
}

// parseBlock parses statements until closer (not consumed)
func (p *parser) parseBlock(closer TokenKind) *Block {
	block := &Block{}
	start := p.peek().Span.Start
	for {
		for k := p.peek().Kind; k == TokNewline || k == TokSemicolon; k = p.peek().Kind {
			p.next()
		}
		tok := p.peek()
		if tok.Kind == closer || tok.Kind == TokEOF {
			break
		}
		if isCloser(tok.Kind) || tok.Kind == TokPipe {
			p.fail(newParseError(tok.Span, "Unexpected "+tok.Kind.String(), "unbalanced delimiter"))
			p.next()
			continue
		}
		block.Pipelines = append(block.Pipelines, p.parsePipeline())
	}
	block.Span = Span{start, max(start, p.prevEnd())}
	return block
}

// continuesOnNextLine reports whether the newlines at the cursor are
// followed by a pipe, continuing the pipeline
func (p *parser) continuesOnNextLine() bool {
	i := p.pos
	for i < len(p.tokens) && p.tokens[i].Kind == TokNewline {
		i++
	}
	return i > p.pos && i < len(p.tokens) && p.tokens[i].Kind == TokPipe
}

func (p *parser) parsePipeline() *Pipeline {
	pipe := &Pipeline{}
	start := p.peek().Span.Start
	for {
		pipe.Elements = append(pipe.Elements, p.parseElement())
		if p.continuesOnNextLine() {
			p.skipNewlines()
		}
		if p.peek().Kind != TokPipe {
			break
		}
		p.next()
		p.skipNewlines()
	}
	pipe.Span = Span{start, p.prevEnd()}
	return pipe
}

func (p *parser) parseElement() *Expr {
	tok := p.peek()
	if tok.Kind == TokWord {
		switch tok.Text {
		case "let", "mut":
			return p.parseLet()
		case "def":
			return p.parseDef()
		case "if":
			return p.parseIf()
		case "for":
			return p.parseFor()
		case "try":
			return p.parseTry()
		case "break":
			p.next()
			return &Expr{Kind: ExprBreak, Span: tok.Span}
		case "continue":
			p.next()
			return &Expr{Kind: ExprContinue, Span: tok.Span}
		case "return":
			return p.parseReturn()
		}
		if !startsValue(tok.Text) {
			return p.parseCall()
		}
	}
	if p.atElementEnd() {
		err := p.fail(newParseError(tok.Span, "Missing command", "expected a command or expression here"))
		return p.garbage(tok.Span.Start, err)
	}
	start := tok.Span.Start
	expr := p.parseExpression()
	if !p.atElementEnd() {
		extra := p.peek()
		err := p.fail(newParseError(extra.Span, "Extra tokens in expression", "unexpected "+extra.Kind.String()).
			WithHelp("commands take arguments; values do not"))
		p.skipElement()
		return p.garbage(start, err)
	}
	return expr
}

// startsValue reports whether a bare word begins a value rather than
// naming a command
func startsValue(text string) bool {
	if strings.HasPrefix(text, "$") || isNumberWord(text) {
		return true
	}
	switch text {
	case "true", "false", "null", "not":
		return true
	}
	return false
}

func isFlagWord(text string) bool {
	return len(text) > 1 && text[0] == '-' && !isNumberWord(text)
}

// resolveCommand finds the longest command name made of the next words
func (p *parser) resolveCommand() (string, DeclID, bool) {
	var words []string
	for i := 0; i < 3; i++ {
		tok := p.peekAt(i)
		if tok.Kind != TokWord || isFlagWord(tok.Text) {
			break
		}
		words = append(words, tok.Text)
	}
	for n := len(words); n > 0; n-- {
		name := strings.Join(words[:n], " ")
		if id, ok := p.ws.FindDecl(name); ok {
			for i := 0; i < n; i++ {
				p.next()
			}
			return name, id, true
		}
	}
	return "", 0, false
}

// suggest returns the closest known command name, or ""
func (p *parser) suggest(name string) string {
	names := p.ws.allNames()
	sort.Strings(names)
	ranks := fuzzy.RankFindFold(name, names)
	if len(ranks) > 0 {
		sort.Stable(ranks)
		return ranks[0].Target
	}
	best, bestDist := "", -1
	for _, candidate := range names {
		d := fuzzy.LevenshteinDistance(name, candidate)
		if d <= max(2, len(name)/3) && (bestDist < 0 || d < bestDist) {
			best, bestDist = candidate, d
		}
	}
	return best
}

func (p *parser) parseCall() *Expr {
	first := p.peek()
	start := first.Span.Start
	name, id, ok := p.resolveCommand()
	if !ok {
		err := newParseError(first.Span, fmt.Sprintf("Command `%s` not found", first.Text), "command not found")
		if s := p.suggest(first.Text); s != "" {
			err.WithHelp(fmt.Sprintf("did you mean '%s'?", s))
		}
		p.fail(err)
		p.skipElement()
		return p.garbage(start, err)
	}
	cmd := p.ws.GetDecl(id)
	head := Span{start, p.prevEnd()}
	if cmd.Deprecated != "" {
		p.ws.addWarning(newParseWarning(head, "Deprecated command", fmt.Sprintf("`%s` is deprecated", name)).
			WithHelp(fmt.Sprintf("use `%s` instead", cmd.Deprecated)))
	}

	call := &CallExpr{Decl: id, Name: name, Head: head}
	sig := cmd.Signature
	var failed *StructuredError
	for !p.atElementEnd() {
		tok := p.peek()
		if tok.Kind == TokWord && isFlagWord(tok.Text) {
			if err := p.parseFlag(call, sig); err != nil && failed == nil {
				failed = err
			}
			continue
		}
		shape, ok := positionalShape(sig, len(call.Positional))
		if !ok {
			err := p.fail(newParseError(tok.Span, "Extra positional argument", "extra argument to "+name).
				WithHelp("usage: " + sig.Usage(name)))
			if failed == nil {
				failed = err
			}
			p.skipElement()
			break
		}
		arg := p.parseArg(shape)
		if arg.Kind == ExprGarbage && failed == nil {
			failed = arg.Err
		}
		call.Positional = append(call.Positional, arg)
	}
	if failed == nil && len(call.Positional) < len(sig.Required) {
		missing := sig.Required[len(call.Positional)]
		failed = p.fail(newParseError(head, "Missing required positional argument", "missing "+missing.Name).
			WithHelp("usage: " + sig.Usage(name)))
	}
	span := Span{start, p.prevEnd()}
	if failed != nil {
		return &Expr{Kind: ExprGarbage, Span: span, Err: failed}
	}
	for _, arg := range call.Positional {
		call.Collects = call.Collects || arg.usesIn()
	}
	for _, named := range call.Named {
		call.Collects = call.Collects || named.Value.usesIn()
	}
	return &Expr{Kind: ExprCall, Span: span, Call: call}
}

func positionalShape(sig Signature, idx int) (Shape, bool) {
	if idx < len(sig.Required) {
		return sig.Required[idx].Shape, true
	}
	idx -= len(sig.Required)
	if idx < len(sig.Optional) {
		return sig.Optional[idx].Shape, true
	}
	if sig.Rest != nil {
		return sig.Rest.Shape, true
	}
	return ShapeAny, false
}

func findLongFlag(sig Signature, name string) (Flag, bool) {
	for _, f := range sig.Named {
		if f.Long == name {
			return f, true
		}
	}
	return Flag{}, false
}

func findShortFlag(sig Signature, r rune) (Flag, bool) {
	for _, f := range sig.Named {
		if f.Short != 0 && f.Short == r {
			return f, true
		}
	}
	return Flag{}, false
}

// parseFlag consumes --long or -s (grouped -abc) and any flag value
func (p *parser) parseFlag(call *CallExpr, sig Signature) *StructuredError {
	tok := p.next()
	var flags []Flag
	if strings.HasPrefix(tok.Text, "--") {
		flag, ok := findLongFlag(sig, tok.Text[2:])
		if !ok {
			return p.fail(newParseError(tok.Span, "Unknown flag", fmt.Sprintf("unknown flag for %s", call.Name)).
				WithHelp("usage: " + sig.Usage(call.Name)))
		}
		flags = append(flags, flag)
	} else {
		shorts := []rune(tok.Text[1:])
		for i, r := range shorts {
			flag, ok := findShortFlag(sig, r)
			if !ok {
				return p.fail(newParseError(tok.Span, "Unknown flag", fmt.Sprintf("unknown flag '-%c' for %s", r, call.Name)).
					WithHelp("usage: " + sig.Usage(call.Name)))
			}
			if flag.Shape != nil && i != len(shorts)-1 {
				return p.fail(newParseError(tok.Span, "Flag needs a value", fmt.Sprintf("-%c must come last in a group", r)))
			}
			flags = append(flags, flag)
		}
	}
	for _, flag := range flags {
		named := NamedArg{Name: flag.Long, Span: tok.Span}
		if flag.Shape != nil {
			if p.atElementEnd() {
				return p.fail(newParseError(tok.Span, "Missing flag argument", fmt.Sprintf("--%s expects a %s", flag.Long, flag.Shape)))
			}
			named.Value = p.parseArg(*flag.Shape)
			if named.Value.Kind == ExprGarbage {
				return named.Value.Err
			}
		}
		call.Named = append(call.Named, named)
	}
	return nil
}

// parseArg parses one argument in the given shape
func (p *parser) parseArg(shape Shape) *Expr {
	switch shape {
	case ShapeCondition:
		if p.peek().Kind == TokLBrace && p.peekAt(1).Kind == TokPipe {
			return p.parseValue()
		}
		return p.parseRowCondition()
	case ShapeClosure:
		if p.peek().Kind == TokLBrace {
			return p.parseClosure()
		}
	}
	arg := p.parseValue()
	if arg.Kind == ExprGarbage {
		return arg
	}
	return p.checkShape(arg, shape)
}

// checkShape rejects literals that can never satisfy shape
func (p *parser) checkShape(arg *Expr, shape Shape) *Expr {
	found := ""
	switch shape {
	case ShapeString, ShapeCellPath:
		switch arg.Kind {
		case ExprInt, ExprFloat:
			if shape == ShapeString {
				return &Expr{Kind: ExprString, Str: p.source[arg.Span.Start:arg.Span.End], Span: arg.Span}
			}
		case ExprBool, ExprList, ExprRecord, ExprClosure:
			found = literalKindName(arg)
		}
	case ShapeInt:
		switch arg.Kind {
		case ExprFloat, ExprString, ExprBool, ExprList, ExprRecord, ExprClosure:
			found = literalKindName(arg)
		}
	case ShapeNumber:
		switch arg.Kind {
		case ExprString, ExprBool, ExprList, ExprRecord, ExprClosure:
			found = literalKindName(arg)
		}
	case ShapeBool:
		switch arg.Kind {
		case ExprInt, ExprFloat, ExprString, ExprList, ExprRecord, ExprClosure:
			found = literalKindName(arg)
		}
	case ShapeList:
		switch arg.Kind {
		case ExprInt, ExprFloat, ExprString, ExprBool, ExprRecord, ExprClosure:
			found = literalKindName(arg)
		}
	case ShapeRecord:
		switch arg.Kind {
		case ExprInt, ExprFloat, ExprString, ExprBool, ExprList, ExprClosure:
			found = literalKindName(arg)
		}
	}
	if found == "" {
		return arg
	}
	err := p.fail(newParseError(arg.Span, "Type mismatch during operation", fmt.Sprintf("expected %s, found %s", shape, found)))
	return &Expr{Kind: ExprGarbage, Span: arg.Span, Err: err}
}

func literalKindName(e *Expr) string {
	switch e.Kind {
	case ExprInt:
		return "int"
	case ExprFloat:
		return "float"
	case ExprString:
		return "string"
	case ExprBool:
		return "bool"
	case ExprList:
		return "list"
	case ExprRecord:
		return "record"
	case ExprClosure:
		return "closure"
	}
	return "expression"
}
