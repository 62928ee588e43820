package vm

import "github.com/pkg/errors"

// List is the ordered, index-addressable, growable sequence of Value
// backing MAKE_LIST/ACTION_LIST (spec.md §3, §4.5). A plain slice is the
// literal data structure the spec describes; nothing in the example
// corpus offers a better fit for "growable array of tagged values".
type List struct {
	items []Value
}

func NewList() *List { return &List{} }

func (l *List) Len() int { return len(l.items) }

func (l *List) Push(v Value) { l.items = append(l.items, v) }

// Pop removes and returns the last element. Fatal on an empty list
// (spec.md §4.5, "ACTION_LIST POP ... Empty list is fatal.").
func (l *List) Pop() (Value, error) {
	if len(l.items) == 0 {
		return Value{}, errors.New("list POP: list is empty")
	}
	v := l.items[len(l.items)-1]
	l.items = l.items[:len(l.items)-1]
	return v, nil
}

func (l *List) checkIndex(idx int) error {
	if idx < 0 || idx >= len(l.items) {
		return errors.Errorf("list index %d out of range [0,%d)", idx, len(l.items))
	}
	return nil
}

func (l *List) Get(idx int) (Value, error) {
	if err := l.checkIndex(idx); err != nil {
		return Value{}, err
	}
	return l.items[idx], nil
}

func (l *List) Assign(idx int, v Value) error {
	if err := l.checkIndex(idx); err != nil {
		return err
	}
	l.items[idx] = v
	return nil
}

func (l *List) Del(idx int) error {
	if err := l.checkIndex(idx); err != nil {
		return err
	}
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	return nil
}
