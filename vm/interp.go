package vm

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/pavm/pavm/isa"
)

// VM is the interpreter's dispatch loop over one loaded Artifact: a
// thread state (call stack, globals, extension table) and a program
// counter that indexes directly into the artifact's raw bytes, since
// every jump/call target in the code section is already an absolute
// file offset (spec.md §4.4).
type VM struct {
	art    *Artifact
	Thread *Thread
	pc     uint64
}

// New creates a VM positioned at the artifact's first code byte, with a
// thread holding one empty base frame (spec.md §4.5).
func New(art *Artifact) *VM {
	return &VM{art: art, Thread: NewThread(), pc: art.CodeStart}
}

// Run executes the dispatch loop until EXIT or a fatal error. EXIT always
// yields a nil error and a process exit code of 0 (spec.md §4.5); every
// other fatal condition yields a non-nil, already-contextual error for
// the caller to report (spec.md §7: "ERROR: ..." diagnostic, non-zero
// exit) — this package never calls os.Exit itself.
func (m *VM) Run() error {
	for {
		if m.pc >= uint64(len(m.art.Raw)) {
			return errors.New("ran off the end of the code section")
		}

		op := isa.Opcode(m.art.Raw[m.pc])
		m.pc++

		if op == isa.Exit {
			return nil
		}

		if err := m.step(op); err != nil {
			return errors.Wrapf(err, "at opcode %s", op)
		}
	}
}

func (m *VM) readOperand() (uint64, error) {
	start := m.pc
	end := start + isa.WordSize
	if end > uint64(len(m.art.Raw)) {
		return 0, errors.New("truncated operand")
	}
	v := binary.NativeEndian.Uint64(m.art.Raw[start:end])
	m.pc = end
	return v, nil
}

// numberAt decodes id as a Number pool identifier and returns the pooled
// value. Used only by LOAD_NUM.
func (m *VM) numberAt(id uint64) (float64, error) {
	if id >= uint64(len(m.art.Numbers)) {
		return 0, errors.Errorf("number pool id %d out of range", id)
	}
	return m.art.Numbers[id], nil
}

func (m *VM) stringAt(id uint64) (string, error) {
	if id >= uint64(len(m.art.Strings)) {
		return "", errors.Errorf("string pool id %d out of range", id)
	}
	return m.art.Strings[id], nil
}

// identifierOperand reads a LOAD_LOCAL/STORE_LOCAL/LOAD_GLOBAL/
// STORE_GLOBAL operand and returns it directly as the local/global
// identifier — it is used as-is, with no secondary pool dereference.
func (m *VM) identifierOperand() (uint64, error) {
	return m.readOperand()
}

func (m *VM) step(op isa.Opcode) error {
	frame := m.Thread.Current()

	switch op {
	case isa.LoadLocal:
		id, err := m.identifierOperand()
		if err != nil {
			return err
		}
		v, err := frame.LoadLocal(id)
		if err != nil {
			return err
		}
		frame.Push(v)

	case isa.LoadGlobal:
		id, err := m.identifierOperand()
		if err != nil {
			return err
		}
		v, err := m.Thread.LoadGlobal(id)
		if err != nil {
			return err
		}
		frame.Push(v)

	case isa.LoadNum:
		poolID, err := m.readOperand()
		if err != nil {
			return err
		}
		v, err := m.numberAt(poolID)
		if err != nil {
			return err
		}
		frame.Push(Number(v))

	case isa.LoadString:
		poolID, err := m.readOperand()
		if err != nil {
			return err
		}
		s, err := m.stringAt(poolID)
		if err != nil {
			return err
		}
		frame.Push(Str(s))

	case isa.LoadAddr:
		offset, err := m.readOperand()
		if err != nil {
			return err
		}
		frame.Push(Pointer(&CodeAddr{Offset: offset}))

	case isa.StoreLocal:
		id, err := m.identifierOperand()
		if err != nil {
			return err
		}
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		frame.StoreLocal(id, v)

	case isa.StoreGlobal:
		id, err := m.identifierOperand()
		if err != nil {
			return err
		}
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		m.Thread.StoreGlobal(id, v)

	case isa.Add:
		return binaryNumOp(frame, func(a, b float64) (float64, error) { return a + b, nil })
	case isa.Sub:
		return binaryNumOp(frame, func(a, b float64) (float64, error) { return a - b, nil })
	case isa.Mul:
		return binaryNumOp(frame, func(a, b float64) (float64, error) { return a * b, nil })
	case isa.Div:
		// Open question (spec.md §9): preserved verbatim. The guard fires
		// on the divisor as pushed second (b below), matching spec.md §8
		// scenario 2's worked example.
		return binaryNumOp(frame, func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, errors.New("DIV: division by zero")
			}
			return a / b, nil
		})
	case isa.Mod:
		return binaryNumOp(frame, func(a, b float64) (float64, error) { return math.Remainder(a, b), nil })
	case isa.Pow:
		return binaryNumOp(frame, func(a, b float64) (float64, error) { return math.Pow(a, b), nil })

	case isa.Not:
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		frame.Push(Number(boolToNumber(!v.Truthy())))

	case isa.Compare:
		return execCompare(frame)

	case isa.Jmp:
		addr, err := m.readOperand()
		if err != nil {
			return err
		}
		m.pc = addr

	case isa.Jmpc:
		addr, err := m.readOperand()
		if err != nil {
			return err
		}
		cond, err := frame.Peek(0)
		if err != nil {
			return err
		}
		if cond.Truthy() {
			m.pc = addr
		}

	case isa.Call:
		return m.execCall()

	case isa.Calle:
		return m.execCalle()

	case isa.Ret:
		return m.execRet()

	case isa.MakeList:
		frame.Push(Pointer(NewList()))

	case isa.ActionList:
		return execActionList(frame)

	case isa.MakeMap:
		frame.Push(Pointer(NewMap()))

	case isa.ActionMap:
		return execActionMap(frame)

	case isa.PopTop:
		if _, err := frame.Pop(); err != nil {
			return err
		}

	case isa.Import:
		nameVal, err := frame.Pop()
		if err != nil {
			return err
		}
		if !nameVal.IsString() {
			return errors.New("IMPORT: expected a String file name")
		}
		return Import(m.Thread, nameVal.StringVal())

	case isa.Nop:
		// no effect

	default:
		return errors.Errorf("unknown opcode %d", uint8(op))
	}

	return nil
}

func boolToNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func binaryNumOp(frame *Frame, fn func(a, b float64) (float64, error)) error {
	b, err := frame.Pop()
	if err != nil {
		return err
	}
	a, err := frame.Pop()
	if err != nil {
		return err
	}
	if !a.IsNumber() || !b.IsNumber() {
		return errors.New("arithmetic op requires two Number operands")
	}
	result, err := fn(a.NumberVal(), b.NumberVal())
	if err != nil {
		return err
	}
	frame.Push(Number(result))
	return nil
}

func execCompare(frame *Frame) error {
	actionVal, err := frame.Pop()
	if err != nil {
		return err
	}
	if !actionVal.IsString() {
		return errors.New("COMPARE: expected a String action at top of stack")
	}
	b, err := frame.Pop()
	if err != nil {
		return err
	}
	a, err := frame.Pop()
	if err != nil {
		return err
	}

	action := strings.ToUpper(actionVal.StringVal())

	if action == "AND" {
		frame.Push(Number(boolToNumber(a.Truthy() && b.Truthy())))
		return nil
	}
	if action == "OR" {
		frame.Push(Number(boolToNumber(a.Truthy() || b.Truthy())))
		return nil
	}

	if a.Kind() != b.Kind() {
		return errors.Errorf("COMPARE %s: operand tags differ (%s vs %s)", action, a.Kind(), b.Kind())
	}

	var cmp int
	switch a.Kind() {
	case KindNumber:
		switch {
		case a.NumberVal() < b.NumberVal():
			cmp = -1
		case a.NumberVal() > b.NumberVal():
			cmp = 1
		default:
			cmp = 0
		}
	case KindString:
		cmp = bytes.Compare([]byte(a.StringVal()), []byte(b.StringVal()))
	case KindPointer:
		pa, pb := pointerAddr(a.PointerVal()), pointerAddr(b.PointerVal())
		switch {
		case pa < pb:
			cmp = -1
		case pa > pb:
			cmp = 1
		default:
			cmp = 0
		}
	}

	var result bool
	switch action {
	case "EQU":
		result = cmp == 0
	case "NE":
		result = cmp != 0
	case "GRE":
		result = cmp > 0
	case "LES":
		result = cmp < 0
	case "GE":
		result = cmp >= 0
	case "LE":
		result = cmp <= 0
	default:
		return errors.Errorf("COMPARE: unknown action %q", action)
	}

	frame.Push(Number(boolToNumber(result)))
	return nil
}

func (m *VM) execCall() error {
	frame := m.Thread.Current()

	funcVal, err := frame.Pop()
	if err != nil {
		return err
	}
	argsVal, err := frame.Pop()
	if err != nil {
		return err
	}
	if !funcVal.IsPointer() || !argsVal.IsPointer() {
		return errors.New("CALL: expected two Pointer operands")
	}
	addr, ok := funcVal.PointerVal().(*CodeAddr)
	if !ok {
		return errors.New("CALL: top operand is not a function address")
	}
	if _, ok := argsVal.PointerVal().(*List); !ok {
		return errors.New("CALL: second operand is not a List")
	}

	returnAddr := m.pc
	m.pc = addr.Offset

	newFrame := NewFrame(returnAddr)
	m.Thread.PushFrame(newFrame)
	newFrame.Push(argsVal)
	return nil
}

func (m *VM) execCalle() error {
	frame := m.Thread.Current()

	nameVal, err := frame.Pop()
	if err != nil {
		return err
	}
	argsVal, err := frame.Pop()
	if err != nil {
		return err
	}
	if !nameVal.IsString() {
		return errors.New("CALLE: expected a String extension name at top of stack")
	}
	if !argsVal.IsPointer() {
		return errors.New("CALLE: expected a Pointer to a List")
	}
	argsList, ok := argsVal.PointerVal().(*List)
	if !ok {
		return errors.New("CALLE: second operand is not a List")
	}

	fn, ok := m.Thread.Extension(nameVal.StringVal())
	if !ok {
		return errors.Errorf("CALLE: extension %q is not registered", nameVal.StringVal())
	}

	result, err := fn(m.Thread, argsList)
	if err != nil {
		return errors.Wrapf(err, "CALLE %q", nameVal.StringVal())
	}
	frame.Push(result)
	return nil
}

func (m *VM) execRet() error {
	frame := m.Thread.Current()

	retVal, err := frame.Pop()
	if err != nil {
		return err
	}
	popped, err := m.Thread.PopFrame()
	if err != nil {
		return err
	}
	m.pc = popped.ReturnAddr
	m.Thread.Current().Push(retVal)
	return nil
}

func popList(frame *Frame) (*List, error) {
	v, err := frame.Pop()
	if err != nil {
		return nil, err
	}
	if !v.IsPointer() {
		return nil, errors.New("expected a Pointer to a List")
	}
	l, ok := v.PointerVal().(*List)
	if !ok {
		return nil, errors.New("pointer does not reference a List")
	}
	return l, nil
}

func popMap(frame *Frame) (*Map, error) {
	v, err := frame.Pop()
	if err != nil {
		return nil, err
	}
	if !v.IsPointer() {
		return nil, errors.New("expected a Pointer to a Map")
	}
	mp, ok := v.PointerVal().(*Map)
	if !ok {
		return nil, errors.New("pointer does not reference a Map")
	}
	return mp, nil
}

func popIndex(frame *Frame) (int, error) {
	v, err := frame.Pop()
	if err != nil {
		return 0, err
	}
	if !v.IsNumber() {
		return 0, errors.New("expected a Number index")
	}
	return int(v.NumberVal()), nil
}

func popKey(frame *Frame) (string, error) {
	v, err := frame.Pop()
	if err != nil {
		return "", err
	}
	if !v.IsString() {
		return "", errors.New("expected a String key")
	}
	return v.StringVal(), nil
}

func execActionList(frame *Frame) error {
	actionVal, err := frame.Pop()
	if err != nil {
		return err
	}
	if !actionVal.IsString() {
		return errors.New("ACTION_LIST: expected a String action at top of stack")
	}

	switch strings.ToUpper(actionVal.StringVal()) {
	case "PUSH":
		value, err := frame.Pop()
		if err != nil {
			return err
		}
		list, err := popList(frame)
		if err != nil {
			return err
		}
		list.Push(value)
	case "POP":
		list, err := popList(frame)
		if err != nil {
			return err
		}
		v, err := list.Pop()
		if err != nil {
			return err
		}
		frame.Push(v)
	case "ASSIGN":
		value, err := frame.Pop()
		if err != nil {
			return err
		}
		idx, err := popIndex(frame)
		if err != nil {
			return err
		}
		list, err := popList(frame)
		if err != nil {
			return err
		}
		if err := list.Assign(idx, value); err != nil {
			return err
		}
	case "GET":
		idx, err := popIndex(frame)
		if err != nil {
			return err
		}
		list, err := popList(frame)
		if err != nil {
			return err
		}
		v, err := list.Get(idx)
		if err != nil {
			return err
		}
		frame.Push(v)
	case "DEL":
		idx, err := popIndex(frame)
		if err != nil {
			return err
		}
		list, err := popList(frame)
		if err != nil {
			return err
		}
		if err := list.Del(idx); err != nil {
			return err
		}
	case "LEN":
		list, err := popList(frame)
		if err != nil {
			return err
		}
		frame.Push(Number(float64(list.Len())))
	default:
		return errors.Errorf("ACTION_LIST: unknown action %q", actionVal.StringVal())
	}
	return nil
}

func execActionMap(frame *Frame) error {
	actionVal, err := frame.Pop()
	if err != nil {
		return err
	}
	if !actionVal.IsString() {
		return errors.New("ACTION_MAP: expected a String action at top of stack")
	}

	switch strings.ToUpper(actionVal.StringVal()) {
	case "ASSIGN":
		value, err := frame.Pop()
		if err != nil {
			return err
		}
		key, err := popKey(frame)
		if err != nil {
			return err
		}
		m, err := popMap(frame)
		if err != nil {
			return err
		}
		m.Assign(key, value)
	case "DEL":
		key, err := popKey(frame)
		if err != nil {
			return err
		}
		m, err := popMap(frame)
		if err != nil {
			return err
		}
		if err := m.Del(key); err != nil {
			return err
		}
	case "GET":
		key, err := popKey(frame)
		if err != nil {
			return err
		}
		m, err := popMap(frame)
		if err != nil {
			return err
		}
		v, err := m.Get(key)
		if err != nil {
			return err
		}
		frame.Push(v)
	case "LEN":
		m, err := popMap(frame)
		if err != nil {
			return err
		}
		frame.Push(Number(float64(m.Len())))
	default:
		return errors.Errorf("ACTION_MAP: unknown action %q", actionVal.StringVal())
	}
	return nil
}
