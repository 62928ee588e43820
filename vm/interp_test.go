package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavm/pavm/asm"
)

// runSource assembles src, loads it, and runs it to completion, returning
// the machine for inspection of its final operand stack.
func runSource(t *testing.T, src string) *VM {
	t.Helper()
	out, err := asm.Assemble(src)
	require.NoError(t, err)

	art, err := Load(out)
	require.NoError(t, err)

	m := New(art)
	require.NoError(t, m.Run())
	return m
}

func topOf(t *testing.T, m *VM) Value {
	t.Helper()
	v, err := m.Thread.Current().Peek(0)
	require.NoError(t, err)
	return v
}

func TestInterpArithmetic(t *testing.T) {
	m := runSource(t, "LOAD_NUM 3\nLOAD_NUM 4\nADD\nEXIT\n")
	assert.Equal(t, 7.0, topOf(t, m).NumberVal())

	m = runSource(t, "LOAD_NUM 10\nLOAD_NUM 4\nSUB\nEXIT\n")
	assert.Equal(t, 6.0, topOf(t, m).NumberVal())

	m = runSource(t, "LOAD_NUM 3\nLOAD_NUM 4\nMUL\nEXIT\n")
	assert.Equal(t, 12.0, topOf(t, m).NumberVal())

	m = runSource(t, "LOAD_NUM 2\nLOAD_NUM 10\nPOW\nEXIT\n")
	assert.Equal(t, 1024.0, topOf(t, m).NumberVal())
}

func TestInterpDivByZeroGuardsOnSecondPushedOperand(t *testing.T) {
	out, err := asm.Assemble("LOAD_NUM 5\nLOAD_NUM 0\nDIV\nEXIT\n")
	require.NoError(t, err)
	art, err := Load(out)
	require.NoError(t, err)
	err = New(art).Run()
	assert.Error(t, err)
}

func TestInterpDivByZeroAsFirstOperandIsFine(t *testing.T) {
	m := runSource(t, "LOAD_NUM 0\nLOAD_NUM 5\nDIV\nEXIT\n")
	assert.Equal(t, 0.0, topOf(t, m).NumberVal())
}

func TestInterpDivNonzero(t *testing.T) {
	m := runSource(t, "LOAD_NUM 9\nLOAD_NUM 2\nDIV\nEXIT\n")
	assert.Equal(t, 4.5, topOf(t, m).NumberVal())
}

func TestInterpNotOfStringUsesLengthTruthiness(t *testing.T) {
	m := runSource(t, "LOAD_STRING \"\"\nNOT\nEXIT\n")
	assert.Equal(t, 1.0, topOf(t, m).NumberVal())

	m = runSource(t, "LOAD_STRING \"x\"\nNOT\nEXIT\n")
	assert.Equal(t, 0.0, topOf(t, m).NumberVal())
}

func TestInterpNotOfNumber(t *testing.T) {
	m := runSource(t, "LOAD_NUM 0\nNOT\nEXIT\n")
	assert.Equal(t, 1.0, topOf(t, m).NumberVal())

	m = runSource(t, "LOAD_NUM 5\nNOT\nEXIT\n")
	assert.Equal(t, 0.0, topOf(t, m).NumberVal())
}

func TestInterpJmpcDoesNotPopCondition(t *testing.T) {
	m := runSource(t, "LOAD_NUM 1\nJMPC $target\nLOAD_NUM 999\ntarget:\nEXIT\n")
	assert.Equal(t, 1.0, topOf(t, m).NumberVal())
}

func TestInterpJmpcFalseFallsThrough(t *testing.T) {
	m := runSource(t, "LOAD_NUM 0\nJMPC $target\nLOAD_NUM 999\ntarget:\nEXIT\n")
	assert.Equal(t, 999.0, topOf(t, m).NumberVal())
}

func TestInterpJmpUnconditional(t *testing.T) {
	m := runSource(t, "JMP $target\nLOAD_NUM 999\ntarget:\nLOAD_NUM 1\nEXIT\n")
	assert.Equal(t, 1.0, topOf(t, m).NumberVal())
}

func TestInterpCompareNumericOrdering(t *testing.T) {
	m := runSource(t, "LOAD_NUM 3\nLOAD_NUM 5\nLOAD_STRING \"LES\"\nCOMPARE\nEXIT\n")
	assert.Equal(t, 1.0, topOf(t, m).NumberVal())

	m = runSource(t, "LOAD_NUM 5\nLOAD_NUM 3\nLOAD_STRING \"LES\"\nCOMPARE\nEXIT\n")
	assert.Equal(t, 0.0, topOf(t, m).NumberVal())
}

func TestInterpCompareEquAndNe(t *testing.T) {
	m := runSource(t, "LOAD_NUM 3\nLOAD_NUM 3\nLOAD_STRING \"EQU\"\nCOMPARE\nEXIT\n")
	assert.Equal(t, 1.0, topOf(t, m).NumberVal())

	m = runSource(t, "LOAD_NUM 3\nLOAD_NUM 4\nLOAD_STRING \"NE\"\nCOMPARE\nEXIT\n")
	assert.Equal(t, 1.0, topOf(t, m).NumberVal())
}

func TestInterpCompareStringLexicographic(t *testing.T) {
	m := runSource(t, "LOAD_STRING \"abc\"\nLOAD_STRING \"abd\"\nLOAD_STRING \"LES\"\nCOMPARE\nEXIT\n")
	assert.Equal(t, 1.0, topOf(t, m).NumberVal())
}

func TestInterpCompareMismatchedTagsIsFatal(t *testing.T) {
	out, err := asm.Assemble("LOAD_NUM 1\nLOAD_STRING \"x\"\nLOAD_STRING \"EQU\"\nCOMPARE\nEXIT\n")
	require.NoError(t, err)
	art, err := Load(out)
	require.NoError(t, err)
	assert.Error(t, New(art).Run())
}

func TestInterpCompareAndOr(t *testing.T) {
	m := runSource(t, "LOAD_NUM 1\nLOAD_NUM 0\nLOAD_STRING \"AND\"\nCOMPARE\nEXIT\n")
	assert.Equal(t, 0.0, topOf(t, m).NumberVal())

	m = runSource(t, "LOAD_NUM 1\nLOAD_NUM 0\nLOAD_STRING \"OR\"\nCOMPARE\nEXIT\n")
	assert.Equal(t, 1.0, topOf(t, m).NumberVal())
}

func TestInterpLocalsAndGlobals(t *testing.T) {
	m := runSource(t, "LOAD_NUM 9\nSTORE_LOCAL 0\nLOAD_LOCAL 0\nEXIT\n")
	assert.Equal(t, 9.0, topOf(t, m).NumberVal())

	m = runSource(t, "LOAD_NUM 9\nSTORE_GLOBAL 0\nLOAD_GLOBAL 0\nEXIT\n")
	assert.Equal(t, 9.0, topOf(t, m).NumberVal())
}

// String-named locals/globals (spec.md §8 scenario 1's STORE_GLOBAL "r")
// must work: the operand is used directly as the identifier, with no
// assumption that it came from the Number pool.
func TestInterpStringNamedGlobal(t *testing.T) {
	m := runSource(t, "LOAD_STRING \"hello\"\nSTORE_GLOBAL \"x\"\nLOAD_GLOBAL \"x\"\nEXIT\n")
	assert.Equal(t, "hello", topOf(t, m).StringVal())
}

func TestInterpStringNamedLocal(t *testing.T) {
	m := runSource(t, "LOAD_STRING \"hello\"\nSTORE_LOCAL \"x\"\nLOAD_LOCAL \"x\"\nEXIT\n")
	assert.Equal(t, "hello", topOf(t, m).StringVal())
}

func TestInterpListPushGetLen(t *testing.T) {
	src := "MAKE_LIST\n" +
		"STORE_LOCAL 0\n" +
		"LOAD_LOCAL 0\nLOAD_NUM 11\nLOAD_STRING \"PUSH\"\nACTION_LIST\n" +
		"LOAD_LOCAL 0\nLOAD_NUM 22\nLOAD_STRING \"PUSH\"\nACTION_LIST\n" +
		"LOAD_LOCAL 0\nLOAD_STRING \"LEN\"\nACTION_LIST\n" +
		"EXIT\n"
	m := runSource(t, src)
	assert.Equal(t, 2.0, topOf(t, m).NumberVal())
}

func TestInterpListGetByIndex(t *testing.T) {
	src := "MAKE_LIST\n" +
		"STORE_LOCAL 0\n" +
		"LOAD_LOCAL 0\nLOAD_NUM 11\nLOAD_STRING \"PUSH\"\nACTION_LIST\n" +
		"LOAD_LOCAL 0\nLOAD_NUM 22\nLOAD_STRING \"PUSH\"\nACTION_LIST\n" +
		"LOAD_LOCAL 0\nLOAD_NUM 1\nLOAD_STRING \"GET\"\nACTION_LIST\n" +
		"EXIT\n"
	m := runSource(t, src)
	assert.Equal(t, 22.0, topOf(t, m).NumberVal())
}

func TestInterpMapAssignGet(t *testing.T) {
	src := "MAKE_MAP\n" +
		"STORE_LOCAL 0\n" +
		"LOAD_LOCAL 0\nLOAD_STRING \"k\"\nLOAD_NUM 5\nLOAD_STRING \"ASSIGN\"\nACTION_MAP\n" +
		"LOAD_LOCAL 0\nLOAD_STRING \"k\"\nLOAD_STRING \"GET\"\nACTION_MAP\n" +
		"EXIT\n"
	m := runSource(t, src)
	assert.Equal(t, 5.0, topOf(t, m).NumberVal())
}

func TestInterpCallAndReturn(t *testing.T) {
	src := "MAKE_LIST\n" +
		"STORE_LOCAL 0\n" +
		"LOAD_LOCAL 0\nLOAD_NUM 21\nLOAD_STRING \"PUSH\"\nACTION_LIST\n" +
		"LOAD_LOCAL 0\nLOAD_ADDR $dbl\nCALL\n" +
		"EXIT\n" +
		"dbl:\n" +
		"LOAD_NUM 0\nLOAD_STRING \"GET\"\nACTION_LIST\n" +
		"LOAD_NUM 2\nMUL\n" +
		"RET\n"
	m := runSource(t, src)
	assert.Equal(t, 42.0, topOf(t, m).NumberVal())
}

func TestInterpRetOffBaseFrameIsFatal(t *testing.T) {
	out, err := asm.Assemble("RET\nEXIT\n")
	require.NoError(t, err)
	art, err := Load(out)
	require.NoError(t, err)
	assert.Error(t, New(art).Run())
}

func TestInterpPopTop(t *testing.T) {
	m := runSource(t, "LOAD_NUM 1\nLOAD_NUM 2\nPOP_TOP\nEXIT\n")
	assert.Equal(t, 1.0, topOf(t, m).NumberVal())
}

func TestInterpNop(t *testing.T) {
	m := runSource(t, "LOAD_NUM 5\nNOP\nEXIT\n")
	assert.Equal(t, 5.0, topOf(t, m).NumberVal())
}

func TestInterpCalleDispatchesToRegisteredExtension(t *testing.T) {
	out, err := asm.Assemble("MAKE_LIST\n" +
		"STORE_LOCAL 0\n" +
		"LOAD_LOCAL 0\nLOAD_NUM 10\nLOAD_STRING \"PUSH\"\nACTION_LIST\n" +
		"LOAD_LOCAL 0\nLOAD_STRING \"double\"\nCALLE\n" +
		"EXIT\n")
	require.NoError(t, err)
	art, err := Load(out)
	require.NoError(t, err)

	m := New(art)
	require.NoError(t, m.Thread.RegisterExtension("double", func(th *Thread, args *List) (Value, error) {
		v, err := args.Get(0)
		if err != nil {
			return Value{}, err
		}
		return Number(v.NumberVal() * 2), nil
	}))

	require.NoError(t, m.Run())
	assert.Equal(t, 20.0, topOf(t, m).NumberVal())
}

func TestInterpCalleUnknownExtensionIsFatal(t *testing.T) {
	out, err := asm.Assemble("MAKE_LIST\nLOAD_STRING \"missing\"\nCALLE\nEXIT\n")
	require.NoError(t, err)
	art, err := Load(out)
	require.NoError(t, err)
	assert.Error(t, New(art).Run())
}

func TestInterpRanOffEndOfCodeIsFatal(t *testing.T) {
	out, err := asm.Assemble("LOAD_NUM 1\n")
	require.NoError(t, err)
	// There is no EXIT, so the dispatch loop must run off the end of the
	// code section.
	art, err := Load(out)
	require.NoError(t, err)
	assert.Error(t, New(art).Run())
}
