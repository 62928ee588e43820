package vm

import "reflect"

// Kind tags the three variants of Value (spec.md §3, "Value").
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindPointer:
		return "Pointer"
	default:
		return "Unknown"
	}
}

// Value is the tagged union the interpreter operates on everywhere: the
// operand stack, locals, globals, List elements, and Map entries all hold
// Value. The VM does not track a pointer's referent subtype at rest — the
// consuming instruction narrows it (spec.md §3) — so Pointer simply wraps
// whatever Go pointer was allocated: *CodeAddr, *List, or *Map.
type Value struct {
	kind Kind
	num  float64
	str  string
	ptr  any
}

// CodeAddr is the heap-allocated cell LOAD_ADDR creates: an absolute
// byte offset used as a CALL target.
type CodeAddr struct {
	Offset uint64
}

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func Str(s string) Value     { return Value{kind: KindString, str: s} }
func Pointer(p any) Value    { return Value{kind: KindPointer, ptr: p} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNumber() bool  { return v.kind == KindNumber }
func (v Value) IsString() bool  { return v.kind == KindString }
func (v Value) IsPointer() bool { return v.kind == KindPointer }

// NumberVal returns the Number payload. Callers must check Kind first;
// every call site in this package does so and treats a mismatch as a
// runtime type fault (spec.md §7, "Runtime type").
func (v Value) NumberVal() float64 { return v.num }
func (v Value) StringVal() string  { return v.str }
func (v Value) PointerVal() any    { return v.ptr }

// Truthy implements spec.md §4.5's NOT/truthiness rule: Number is true
// iff nonzero, String is true iff non-empty, Pointer is true iff
// non-null.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNumber:
		return v.num != 0
	case KindString:
		return len(v.str) > 0
	case KindPointer:
		return !isNilPointer(v.ptr)
	default:
		return false
	}
}

func isNilPointer(p any) bool {
	if p == nil {
		return true
	}
	rv := reflect.ValueOf(p)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// pointerAddr extracts a comparable/orderable address out of a wrapped
// pointer, used by COMPARE's "referential comparison by pointer value"
// rule (spec.md §4.5) for Pointer-tagged operands.
func pointerAddr(p any) uintptr {
	if p == nil {
		return 0
	}
	return reflect.ValueOf(p).Pointer()
}
