package asm

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/pavm/pavm/isa"
)

type operandKind int

const (
	operandNumber operandKind = iota
	operandString
	operandLabelRef
)

// operand is one resolved, pool-addressed instruction argument
// (spec.md Data Model, "Instruction").
type operand struct {
	kind operandKind
	id   int
}

// Instruction is the assembler's in-memory IR for one emitted instruction.
type Instruction struct {
	Op       isa.Opcode
	Operands []operand
	Line     int
}

// Program is the fully parsed, not-yet-packed assembly unit: the ordered
// instruction list plus the three interning structures and the ordered
// label-reference sequence described in spec.md's Data Model.
type Program struct {
	Instructions []Instruction
	Numbers      *numberPool
	Strings      *stringPool
	Labels       *labelTable
	Refs         *labelRefs
}

// parse runs the tokenizer to completion and builds a Program, per
// spec.md §4.2. It fails on the first lexical or syntactic error; there is
// no recovery (spec.md §7).
func parse(src string) (*Program, error) {
	toks, err := lexAll(src)
	if err != nil {
		return nil, err
	}

	p := &Program{
		Numbers: newNumberPool(),
		Strings: newStringPool(),
		Labels:  newLabelTable(),
		Refs:    &labelRefs{},
	}

	offset := 0
	i := 0
	for i < len(toks) {
		tok := toks[i]
		switch tok.kind {
		case tokEOF:
			i++
		case tokLabelDef:
			p.Labels.define(tok.text, offset)
			i++
		case tokIdent:
			op, ok := isa.ParseMnemonic(tok.text)
			if !ok {
				return nil, fmt.Errorf("line %d: unknown mnemonic %q", tok.line, tok.text)
			}
			i++

			var ops []operand
			for i < len(toks) && isOperandToken(toks[i].kind) {
				o, err := p.resolveOperand(toks[i])
				if err != nil {
					return nil, err
				}
				ops = append(ops, o)
				i++
			}

			want := op.OperandCount()
			if len(ops) != want {
				return nil, fmt.Errorf("line %d: %s expects %d operand(s), got %d", tok.line, op, want, len(ops))
			}

			p.Instructions = append(p.Instructions, Instruction{Op: op, Operands: ops, Line: tok.line})
			offset += 1 + isa.WordSize*len(ops)
		default:
			return nil, fmt.Errorf("line %d: expected a label definition or mnemonic, got %q", tok.line, tok.text)
		}
	}

	if err := p.checkLabelRefs(); err != nil {
		return nil, err
	}

	return p, nil
}

func isOperandToken(k tokenKind) bool {
	return k == tokNumber || k == tokString || k == tokLabelRef
}

func (p *Program) resolveOperand(tok token) (operand, error) {
	switch tok.kind {
	case tokNumber:
		v, err := parseNumberLiteral(tok.text)
		if err != nil {
			return operand{}, errors.Wrapf(err, "line %d: malformed number %q", tok.line, tok.text)
		}
		return operand{kind: operandNumber, id: p.Numbers.intern(v)}, nil
	case tokString:
		return operand{kind: operandString, id: p.Strings.intern(tok.text)}, nil
	case tokLabelRef:
		return operand{kind: operandLabelRef, id: p.Refs.add(tok.text)}, nil
	default:
		return operand{}, fmt.Errorf("line %d: unexpected operand token", tok.line)
	}
}

// checkLabelRefs ensures every referenced label name was defined
// somewhere in the program (spec.md Data Model invariant, and §4.3's
// "label reference to a name absent from the label table fails assembly").
func (p *Program) checkLabelRefs() error {
	for idx, name := range p.Refs.names {
		if _, ok := p.Labels.lookup(name); !ok {
			return fmt.Errorf("label reference #%d: undefined label %q", idx, name)
		}
	}
	return nil
}

func lexAll(src string) ([]token, error) {
	t := newTokenizer(src)
	var toks []token
	for {
		tok, err := t.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}
