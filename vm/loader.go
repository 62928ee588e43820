package vm

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/pavm/pavm/isa"
)

// Artifact is the in-memory result of loading a binary artifact
// (spec.md §4.4): the reconstructed number/string pools, the full file
// bytes (so that the absolute offsets encoded in the code section can be
// used directly as indices), and the byte offset of the first code byte.
type Artifact struct {
	Numbers   []float64
	Strings   []string
	Raw       []byte
	CodeStart uint64
}

// Load validates the header magic and reconstructs the number and string
// pools, per spec.md §4.4. A magic mismatch is fatal with exactly the
// diagnostic spec.md names: "file corruption".
func Load(raw []byte) (*Artifact, error) {
	const headerSize = 4 + isa.WordSize + isa.WordSize
	if len(raw) < headerSize {
		return nil, errors.New("file corruption")
	}

	magic := int32(binary.NativeEndian.Uint32(raw[0:4]))
	if magic != isa.Magic {
		return nil, errors.New("file corruption")
	}

	numNum := binary.NativeEndian.Uint64(raw[4 : 4+isa.WordSize])
	strNum := binary.NativeEndian.Uint64(raw[4+isa.WordSize : headerSize])

	pos := headerSize

	numbers := make([]float64, 0, numNum)
	for i := uint64(0); i < numNum; i++ {
		if pos+8 > len(raw) {
			return nil, errors.New("file corruption: truncated number pool")
		}
		bits := binary.NativeEndian.Uint64(raw[pos : pos+8])
		numbers = append(numbers, math.Float64frombits(bits))
		pos += 8
	}

	strings := make([]string, 0, strNum)
	for i := uint64(0); i < strNum; i++ {
		if pos+4 > len(raw) {
			return nil, errors.New("file corruption: truncated string pool")
		}
		length := int(int32(binary.NativeEndian.Uint32(raw[pos : pos+4])))
		pos += 4
		if length < 0 || pos+length > len(raw) {
			return nil, errors.New("file corruption: truncated string payload")
		}
		strings = append(strings, string(raw[pos:pos+length]))
		pos += length
	}

	return &Artifact{
		Numbers:   numbers,
		Strings:   strings,
		Raw:       raw,
		CodeStart: uint64(pos),
	}, nil
}
