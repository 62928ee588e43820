package asm

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/pavm/pavm/isa"
)

// headerSize is magic(int32) + numNum(W) + strNum(W), per spec.md §6.1.
const headerSize = 4 + isa.WordSize + isa.WordSize

// pack writes p as the four-region binary artifact described in
// spec.md §4.3/§6.1: header, number pool, string pool, code. Number and
// string pools are emitted in ascending id order — which the interning
// pools in intern.go already guarantee by construction (each pool's
// values slice is appended in assigned-id order, so slice index equals
// id), so no separate sort step is required here, only the documented
// assumption that nothing downstream ever iterates the pools' backing
// maps directly.
func pack(p *Program) ([]byte, error) {
	var buf bytes.Buffer

	numNum := len(p.Numbers.values)
	strNum := len(p.Strings.values)

	if err := binary.Write(&buf, binary.NativeEndian, isa.Magic); err != nil {
		return nil, errors.Wrap(err, "writing magic")
	}
	if err := binary.Write(&buf, binary.NativeEndian, uint64(numNum)); err != nil {
		return nil, errors.Wrap(err, "writing numNum")
	}
	if err := binary.Write(&buf, binary.NativeEndian, uint64(strNum)); err != nil {
		return nil, errors.Wrap(err, "writing strNum")
	}

	for _, v := range p.Numbers.values {
		if err := binary.Write(&buf, binary.NativeEndian, math.Float64bits(v)); err != nil {
			return nil, errors.Wrap(err, "writing number pool")
		}
	}

	strPoolSize := 0
	for _, s := range p.Strings.values {
		strPoolSize += 4 + len(s)
	}
	for _, s := range p.Strings.values {
		if err := binary.Write(&buf, binary.NativeEndian, int32(len(s))); err != nil {
			return nil, errors.Wrap(err, "writing string length")
		}
		buf.WriteString(s)
	}

	numPoolSize := numNum * 8
	codeStart := headerSize + numPoolSize + strPoolSize

	if err := p.writeCode(&buf, codeStart); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// writeCode walks the parsed instruction list, resolving every label
// reference to its final absolute file offset (spec.md §4.3: "ADD the
// now-known byte position of the start of the code section ... to the
// label's local offset").
func (p *Program) writeCode(buf *bytes.Buffer, codeStart int) error {
	for _, instr := range p.Instructions {
		buf.WriteByte(byte(instr.Op))
		for _, op := range instr.Operands {
			var value uint64
			switch op.kind {
			case operandLabelRef:
				name := p.Refs.names[op.id]
				localOffset, ok := p.Labels.lookup(name)
				if !ok {
					return errors.Errorf("line %d: undefined label %q", instr.Line, name)
				}
				value = uint64(codeStart + localOffset)
			default:
				value = uint64(op.id)
			}
			if err := binary.Write(buf, binary.NativeEndian, value); err != nil {
				return errors.Wrapf(err, "line %d: writing operand", instr.Line)
			}
		}
	}
	return nil
}
