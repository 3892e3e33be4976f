package tabwire

import (
	"errors"
	"math"
)

// Table key errors
var (
	ErrNilKey = errors.New("table key is nil")
	ErrNaNKey = errors.New("table key is NaN")
)

// Entry is a key/value pair in a table.
type Entry struct {
	Key   Value
	Value Value
}

// Table is a mapping from Value to Value used for both array-like and
// map-like containers. Entries enumerate in insertion order.
//
// A Table is not safe for concurrent mutation.
type Table struct {
	index   map[Value]int
	entries []Entry
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{index: make(map[Value]int)}
}

// List creates a table holding vs under keys 1..n. Nil elements leave holes.
func List(vs ...Value) *Table {
	t := NewTable()
	for i, v := range vs {
		t.MustSet(Int(int64(i+1)), v)
	}
	return t
}

// Map creates a table from entries. It panics on a nil or NaN key.
func Map(entries ...Entry) *Table {
	t := NewTable()
	for _, e := range entries {
		t.MustSet(e.Key, e.Value)
	}
	return t
}

// Set assigns t[k] = v. Assigning nil removes the key.
func (t *Table) Set(k, v Value) error {
	if k.kind == KindNil {
		return ErrNilKey
	}
	if k.kind == KindNumber && math.IsNaN(k.numVal) {
		return ErrNaNKey
	}
	if t.index == nil {
		t.index = make(map[Value]int)
	}
	k = normalizeKey(k)

	i, ok := t.index[k]
	if v.kind == KindNil {
		if ok {
			t.remove(i)
		}
		return nil
	}
	if ok {
		t.entries[i].Value = v
		return nil
	}
	t.index[k] = len(t.entries)
	t.entries = append(t.entries, Entry{Key: k, Value: v})
	return nil
}

// MustSet is like Set but panics on an invalid key.
func (t *Table) MustSet(k, v Value) {
	if err := t.Set(k, v); err != nil {
		panic(err)
	}
}

// Get returns t[k], or nil if the key is absent.
func (t *Table) Get(k Value) Value {
	if t == nil || t.index == nil {
		return Nil()
	}
	i, ok := t.index[normalizeKey(k)]
	if !ok {
		return Nil()
	}
	return t.entries[i].Value
}

// Append sets t[n+1] = v where n is the length of the array part.
func (t *Table) Append(v Value) {
	t.MustSet(Int(int64(t.ArrayLen()+1)), v)
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// ArrayLen returns the largest n such that keys 1..n are all present.
func (t *Table) ArrayLen() int {
	n := 0
	for {
		if t.Get(Int(int64(n + 1))).IsNil() {
			return n
		}
		n++
	}
}

// Range calls fn for each entry in insertion order until fn returns false.
// The table must not be modified during iteration.
func (t *Table) Range(fn func(k, v Value) bool) {
	if t == nil {
		return
	}
	for _, e := range t.entries {
		if !fn(e.Key, e.Value) {
			return
		}
	}
}

// Entries returns a copy of the entries in insertion order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Table) remove(i int) {
	delete(t.index, t.entries[i].Key)
	copy(t.entries[i:], t.entries[i+1:])
	t.entries = t.entries[:len(t.entries)-1]
	for j := i; j < len(t.entries); j++ {
		t.index[t.entries[j].Key] = j
	}
}

// normalizeKey folds negative zero into zero so both address the same slot.
func normalizeKey(k Value) Value {
	if k.kind == KindNumber && k.numVal == 0 {
		k.numVal = 0
	}
	return k
}
