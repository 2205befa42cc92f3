package pawrun

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies lexer output
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokWord
	TokString    // double quoted, escapes processed
	TokRawString // single or backtick quoted, verbatim
	TokPipe
	TokSemicolon
	TokNewline
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokLBrace
	TokRBrace
	TokComma
	TokColon
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "end of input"
	case TokWord:
		return "word"
	case TokString, TokRawString:
		return "string"
	case TokPipe:
		return "'|'"
	case TokSemicolon:
		return "';'"
	case TokNewline:
		return "newline"
	case TokLParen:
		return "'('"
	case TokRParen:
		return "')'"
	case TokLBracket:
		return "'['"
	case TokRBracket:
		return "']'"
	case TokLBrace:
		return "'{'"
	case TokRBrace:
		return "'}'"
	case TokComma:
		return "','"
	case TokColon:
		return "':'"
	}
	return "token"
}

// Token is one lexical element with its byte span in the source
type Token struct {
	Kind  TokenKind
	Text  string // source text
	Value string // unescaped contents for strings, Text otherwise
	Span  Span
}

var delimiters = map[rune]TokenKind{
	'|': TokPipe,
	';': TokSemicolon,
	'\n': TokNewline,
	'(': TokLParen,
	')': TokRParen,
	'[': TokLBracket,
	']': TokRBracket,
	'{': TokLBrace,
	'}': TokRBrace,
	',': TokComma,
	':': TokColon,
}

// lex splits source into tokens. Lexical problems are returned alongside
// the tokens; lexing always runs to the end of the input.
func lex(source string) ([]Token, []*StructuredError) {
	var tokens []Token
	var errs []*StructuredError
	i := 0
	for i < len(source) {
		r, size := utf8.DecodeRuneInString(source[i:])

		switch {
		case r == '\r' && strings.HasPrefix(source[i:], "\r\n"):
			i++
			continue
		case r == '\n':
			tokens = append(tokens, Token{Kind: TokNewline, Text: "\n", Value: "\n", Span: Span{i, i + 1}})
			i++
			continue
		case unicode.IsSpace(r):
			i += size
			continue
		case r == '#':
			for i < len(source) && source[i] != '\n' {
				i++
			}
			continue
		}

		if kind, ok := delimiters[r]; ok {
			tokens = append(tokens, Token{Kind: kind, Text: string(r), Value: string(r), Span: Span{i, i + 1}})
			i += size
			continue
		}

		switch r {
		case '"':
			tok, err := lexDoubleQuoted(source, i)
			tokens = append(tokens, tok)
			if err != nil {
				errs = append(errs, err)
			}
			i = tok.Span.End
			continue
		case '\'', '`':
			end := strings.IndexRune(source[i+1:], r)
			if end < 0 {
				errs = append(errs, newParseError(Span{i, len(source)}, "Unclosed delimiter", "string is never closed"))
				tokens = append(tokens, Token{Kind: TokRawString, Text: source[i:], Value: source[i+1:], Span: Span{i, len(source)}})
				i = len(source)
				continue
			}
			stop := i + 1 + end + 1
			tokens = append(tokens, Token{Kind: TokRawString, Text: source[i:stop], Value: source[i+1 : stop-1], Span: Span{i, stop}})
			i = stop
			continue
		}

		start := i
		for i < len(source) {
			r, size = utf8.DecodeRuneInString(source[i:])
			if unicode.IsSpace(r) {
				break
			}
			if _, delim := delimiters[r]; delim {
				break
			}
			i += size
		}
		tokens = append(tokens, Token{Kind: TokWord, Text: source[start:i], Value: source[start:i], Span: Span{start, i}})
	}
	tokens = append(tokens, Token{Kind: TokEOF, Span: Span{len(source), len(source)}})
	return tokens, errs
}

func lexDoubleQuoted(source string, start int) (Token, *StructuredError) {
	var b strings.Builder
	i := start + 1
	for i < len(source) {
		c := source[i]
		switch c {
		case '"':
			return Token{Kind: TokString, Text: source[start : i+1], Value: b.String(), Span: Span{start, i + 1}}, nil
		case '\\':
			if i+1 >= len(source) {
				i++
				continue
			}
			esc := source[i+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			case 'e':
				b.WriteByte(0x1b)
			case '"', '\\', '\'', '/':
				b.WriteByte(esc)
			case 'u':
				if i+2 < len(source) && source[i+2] == '{' {
					if end := strings.IndexByte(source[i+3:], '}'); end >= 0 {
						code, err := strconv.ParseUint(source[i+3:i+3+end], 16, 32)
						if err == nil {
							b.WriteRune(rune(code))
							i += 3 + end + 1
							continue
						}
					}
				}
				return skipString(source, start, b.String()),
					newParseError(Span{i, min(i+2, len(source))}, "Invalid unicode escape", "expected \\u{hex}")
			default:
				return skipString(source, start, b.String()),
					newParseError(Span{i, i + 2}, "Invalid escape sequence", "unknown escape '\\"+string(esc)+"'")
			}
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return Token{Kind: TokString, Text: source[start:], Value: b.String(), Span: Span{start, len(source)}},
		newParseError(Span{start, len(source)}, "Unclosed delimiter", "string is never closed")
}

// skipString finds the end of a string that failed to unescape so lexing
// can continue after it
func skipString(source string, start int, partial string) Token {
	i := start + 1
	for i < len(source) {
		switch source[i] {
		case '\\':
			i += 2
			continue
		case '"':
			return Token{Kind: TokString, Text: source[start : i+1], Value: partial, Span: Span{start, i + 1}}
		}
		i++
	}
	return Token{Kind: TokString, Text: source[start:], Value: partial, Span: Span{start, len(source)}}
}
