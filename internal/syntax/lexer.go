package syntax

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIdent
	tokNumber
	tokString
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokComma
	tokColon
	tokSemi
	tokDot
	tokAssign
	tokArrow
	tokOp // |, +, -, *, /, %, ==, !=, <, >, <=, >=
)

type token struct {
	kind tokenKind
	text string
	pos  Pos
}

func (t token) end() Pos {
	return Pos{Line: t.pos.Line, Col: t.pos.Col + len(t.text)}
}

func (t token) span() Range {
	return Range{Start: t.pos, End: t.end()}
}

// lex splits src into tokens. Consecutive newlines collapse into one; the
// lexer never fails, unknown bytes are skipped.
func lex(src string) []token {
	var toks []token
	line, col := 0, 0
	i := 0

	emit := func(kind tokenKind, text string, p Pos) {
		if kind == tokNewline && len(toks) > 0 && toks[len(toks)-1].kind == tokNewline {
			return
		}
		toks = append(toks, token{kind: kind, text: text, pos: p})
	}

	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			emit(tokNewline, "\n", Pos{Line: line, Col: col})
			line++
			col = 0
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
			col++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
				col++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			col += 2
			for i < len(src) && !(src[i] == '*' && i+1 < len(src) && src[i+1] == '/') {
				if src[i] == '\n' {
					line++
					col = 0
				} else {
					col++
				}
				i++
			}
			if i < len(src) {
				i += 2
				col += 2
			}
		case c == '\'' || c == '"':
			start := Pos{Line: line, Col: col}
			quote := c
			triple := strings.HasPrefix(src[i:], strings.Repeat(string(quote), 3))
			var sb strings.Builder
			if triple {
				sb.WriteString(src[i : i+3])
				i += 3
				col += 3
				for i < len(src) && !strings.HasPrefix(src[i:], strings.Repeat(string(quote), 3)) {
					if src[i] == '\n' {
						line++
						col = 0
					} else {
						col++
					}
					sb.WriteByte(src[i])
					i++
				}
				if i < len(src) {
					sb.WriteString(src[i : i+3])
					i += 3
					col += 3
				}
			} else {
				sb.WriteByte(quote)
				i++
				col++
				for i < len(src) && src[i] != quote && src[i] != '\n' {
					sb.WriteByte(src[i])
					i++
					col++
				}
				if i < len(src) && src[i] == quote {
					sb.WriteByte(quote)
					i++
					col++
				}
			}
			emit(tokString, sb.String(), start)
		case isIdentStart(rune(c)):
			start := Pos{Line: line, Col: col}
			j := i
			for j < len(src) {
				r, size := utf8.DecodeRuneInString(src[j:])
				if !isIdentPart(r) {
					break
				}
				j += size
			}
			text := src[i:j]
			col += j - i
			i = j
			emit(tokIdent, text, start)
		case c >= '0' && c <= '9':
			start := Pos{Line: line, Col: col}
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				// a trailing dot belongs to a property access, not the number
				if src[j] == '.' && (j+1 >= len(src) || src[j+1] < '0' || src[j+1] > '9') {
					break
				}
				j++
			}
			text := src[i:j]
			col += j - i
			i = j
			emit(tokNumber, text, start)
		default:
			start := Pos{Line: line, Col: col}
			two := ""
			if i+1 < len(src) {
				two = src[i : i+2]
			}
			switch {
			case two == "->":
				emit(tokArrow, two, start)
				i += 2
				col += 2
			case two == "==" || two == "!=" || two == "<=" || two == ">=":
				emit(tokOp, two, start)
				i += 2
				col += 2
			default:
				text := string(c)
				kind := tokOp
				switch c {
				case '{':
					kind = tokLBrace
				case '}':
					kind = tokRBrace
				case '(':
					kind = tokLParen
				case ')':
					kind = tokRParen
				case ',':
					kind = tokComma
				case ':':
					kind = tokColon
				case ';':
					kind = tokSemi
				case '.':
					kind = tokDot
				case '=':
					kind = tokAssign
				case '|', '+', '-', '*', '/', '%', '<', '>', '!':
					kind = tokOp
				default:
					// unknown byte, drop it
					i++
					col++
					continue
				}
				emit(kind, text, start)
				i++
				col++
			}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: Pos{Line: line, Col: col}})
	return toks
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
