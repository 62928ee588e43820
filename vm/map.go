package vm

import (
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
)

// protoKey is the distinguished prototype-chain key (spec.md §3, §4.5).
const protoKey = "__proto__"

// Map is the keyed collection from String to Value backing MAKE_MAP/
// ACTION_MAP, including the "__proto__" prototype chain (spec.md §3,
// §4.5, §9). Entries have no ordering requirement, unlike the assembler's
// interning pools, so it is backed by a swiss-table hash map instead of a
// plain Go map — see DESIGN.md.
type Map struct {
	entries *swiss.Map[string, Value]
}

func NewMap() *Map {
	return &Map{entries: swiss.NewMap[string, Value](8)}
}

func (m *Map) Len() int { return m.entries.Count() }

func (m *Map) Assign(key string, v Value) {
	m.entries.Put(key, v)
}

func (m *Map) Del(key string) error {
	if !m.entries.Delete(key) {
		return errors.Errorf("map DEL: key %q not found", key)
	}
	return nil
}

// Get implements spec.md's prototype-chain walk: check the current map,
// then follow "__proto__" Pointer-to-Map entries iteratively until the
// key is found, a map with no "__proto__" terminates the chain (fatal),
// or a map is revisited (fatal — the source never guards against a
// cycle, but spec.md §9 directs implementers to bound chain length or
// detect a revisited map rather than loop forever).
func (m *Map) Get(key string) (Value, error) {
	visited := make(map[*Map]bool)
	current := m
	for {
		if visited[current] {
			return Value{}, errors.Errorf("map GET %q: prototype chain cycle detected", key)
		}
		visited[current] = true

		if v, ok := current.entries.Get(key); ok {
			return v, nil
		}

		protoVal, ok := current.entries.Get(protoKey)
		if !ok {
			return Value{}, errors.Errorf("map GET: key %q not found", key)
		}
		if !protoVal.IsPointer() {
			return Value{}, errors.New("map GET: __proto__ entry is not a Pointer")
		}
		next, ok := protoVal.PointerVal().(*Map)
		if !ok {
			return Value{}, errors.New("map GET: __proto__ entry does not reference a Map")
		}
		current = next
	}
}
