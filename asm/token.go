package asm

import (
	"fmt"
	"strings"
)

// tokenKind classifies one lexical unit of the assembly dialect
// (spec.md §4.1).
type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokIdent
	tokLabelDef
	tokLabelRef
	tokEOF
)

type token struct {
	kind tokenKind
	text string // number literal text, string payload, identifier, or label name
	line int
}

// tokenizer consumes source text byte by byte and produces tokens on
// demand, advancing an internal cursor. The parser drains it into a token
// slice (lexAll) before building the instruction list.
type tokenizer struct {
	src  string
	pos  int
	line int
}

func newTokenizer(src string) *tokenizer {
	return &tokenizer{src: src, line: 1}
}

func (t *tokenizer) peekByte() (byte, bool) {
	if t.pos >= len(t.src) {
		return 0, false
	}
	return t.src[t.pos], true
}

func (t *tokenizer) advance() (byte, bool) {
	b, ok := t.peekByte()
	if !ok {
		return 0, false
	}
	t.pos++
	if b == '\n' {
		t.line++
	}
	return b, true
}

// skipWhitespaceAndComments strips runs of whitespace and "#"-to-end-of-line
// comments. Two comment blocks may abut without intervening whitespace, so
// this loops until neither whitespace nor a comment start is seen.
func (t *tokenizer) skipWhitespaceAndComments() {
	for {
		b, ok := t.peekByte()
		if !ok {
			return
		}
		if isSpace(b) {
			t.advance()
			continue
		}
		if b == '#' {
			for {
				b, ok := t.peekByte()
				if !ok || b == '\n' {
					break
				}
				t.advance()
			}
			continue
		}
		return
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentStart(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '$'
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || isDigit(b) || b == '_'
}

// next returns the next token in the stream, or a tokEOF token once the
// source is exhausted. The EOF check happens after comment consumption, so
// a file ending in a comment with no trailing newline lexes cleanly.
func (t *tokenizer) next() (token, error) {
	t.skipWhitespaceAndComments()

	line := t.line
	b, ok := t.peekByte()
	if !ok {
		return token{kind: tokEOF, line: line}, nil
	}

	switch {
	case b == '-' || isDigit(b):
		return t.lexNumber(line)
	case b == '"':
		return t.lexString(line)
	case isIdentStart(b):
		return t.lexIdent(line)
	default:
		return token{}, fmt.Errorf("line %d: illegal character %q", line, b)
	}
}

func (t *tokenizer) lexNumber(line int) (token, error) {
	var sb strings.Builder
	if b, _ := t.peekByte(); b == '-' {
		sb.WriteByte(b)
		t.advance()
		if b, ok := t.peekByte(); !ok || !isDigit(b) {
			return token{}, fmt.Errorf("line %d: malformed number: lone '-'", line)
		}
	}

	sawDot := false
	for {
		b, ok := t.peekByte()
		if !ok {
			break
		}
		if isDigit(b) {
			sb.WriteByte(b)
			t.advance()
			continue
		}
		if b == '.' {
			if sawDot {
				return token{}, fmt.Errorf("line %d: malformed number: multiple '.'", line)
			}
			sawDot = true
			sb.WriteByte(b)
			t.advance()
			continue
		}
		break
	}

	return token{kind: tokNumber, text: sb.String(), line: line}, nil
}

func (t *tokenizer) lexString(line int) (token, error) {
	t.advance() // opening quote
	var sb strings.Builder
	for {
		b, ok := t.advance()
		if !ok {
			return token{}, fmt.Errorf("line %d: unterminated string", line)
		}
		if b == '"' {
			break
		}
		if b == '\\' {
			esc, ok := t.advance()
			if !ok {
				return token{}, fmt.Errorf("line %d: unterminated string", line)
			}
			sb.WriteByte(esc)
			continue
		}
		sb.WriteByte(b)
	}
	return token{kind: tokString, text: sb.String(), line: line}, nil
}

func (t *tokenizer) lexIdent(line int) (token, error) {
	start := t.pos
	t.advance() // first byte already validated by isIdentStart
	for {
		b, ok := t.peekByte()
		if !ok || !isIdentCont(b) {
			break
		}
		t.advance()
	}
	name := t.src[start:t.pos]

	if b, ok := t.peekByte(); ok && b == ':' {
		t.advance()
		return token{kind: tokLabelDef, text: name, line: line}, nil
	}

	if strings.HasPrefix(name, "$") {
		return token{kind: tokLabelRef, text: name[1:], line: line}, nil
	}

	return token{kind: tokIdent, text: name, line: line}, nil
}
