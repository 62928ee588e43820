// Package asm implements the assembler half of the toolchain: tokenizer,
// parser with constant interning, label fixup, and binary packer
// (spec.md §4.1-§4.3).
package asm

// Assemble compiles source text in the assembly dialect into the binary
// artifact consumed by the VM loader. It fails fast on the first lexical,
// syntactic, or link-time error — there is no partial output on failure
// (spec.md §7).
func Assemble(src string) ([]byte, error) {
	p, err := parse(src)
	if err != nil {
		return nil, err
	}
	return pack(p)
}
