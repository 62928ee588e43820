package asm

import "strconv"

// parseNumberLiteral converts the decimal text produced by the tokenizer
// (optional leading '-', optional single '.') into the Number pool's
// float64 representation.
func parseNumberLiteral(text string) (float64, error) {
	return strconv.ParseFloat(text, 64)
}
