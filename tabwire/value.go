package tabwire

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind represents tabwire value kinds.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindTable
	KindOpaque // Host object that has no wire form (func, chan, handle)
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTable:
		return "table"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Value is a tabwire value.
//
// Value is comparable and can be used as a Go map key: numbers and strings
// compare by content, tables by identity.
type Value struct {
	kind Kind

	boolVal bool
	numVal  float64
	strVal  string
	tabVal  *Table

	// Opaque host object, kept behind a pointer so Value stays comparable.
	opaque *opaqueBox
}

type opaqueBox struct {
	x any
}

// ============================================================
// Constructors
// ============================================================

// Nil returns the nil value.
func Nil() Value {
	return Value{}
}

// Bool creates a boolean value.
func Bool(v bool) Value {
	return Value{kind: KindBool, boolVal: v}
}

// Num creates a number value.
func Num(v float64) Value {
	return Value{kind: KindNumber, numVal: v}
}

// Int creates a number value from an integer.
func Int(v int64) Value {
	return Value{kind: KindNumber, numVal: float64(v)}
}

// Str creates a string value. Strings are arbitrary byte sequences.
func Str(v string) Value {
	return Value{kind: KindString, strVal: v}
}

// Tab wraps a table. A nil table is the nil value.
func Tab(t *Table) Value {
	if t == nil {
		return Value{}
	}
	return Value{kind: KindTable, tabVal: t}
}

// Opaque wraps a host object that cannot be serialized.
func Opaque(x any) Value {
	return Value{kind: KindOpaque, opaque: &opaqueBox{x: x}}
}

// ============================================================
// Accessors
// ============================================================

// Kind returns the value kind.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNil reports whether v is nil.
func (v Value) IsNil() bool {
	return v.kind == KindNil
}

// AsBool returns the boolean and whether v is a boolean.
func (v Value) AsBool() (bool, bool) {
	return v.boolVal, v.kind == KindBool
}

// AsNumber returns the number and whether v is a number.
func (v Value) AsNumber() (float64, bool) {
	return v.numVal, v.kind == KindNumber
}

// AsString returns the string and whether v is a string.
func (v Value) AsString() (string, bool) {
	return v.strVal, v.kind == KindString
}

// AsTable returns the table, or nil if v is not a table.
func (v Value) AsTable() *Table {
	if v.kind != KindTable {
		return nil
	}
	return v.tabVal
}

// Host returns the wrapped host object of an opaque value.
func (v Value) Host() any {
	if v.opaque == nil {
		return nil
	}
	return v.opaque.x
}

// String renders v for debugging. Tables print their entries once; a table
// reached again while printing shows as <cycle>.
func (v Value) String() string {
	var sb strings.Builder
	writeDebug(&sb, v, map[*Table]bool{})
	return sb.String()
}

func writeDebug(sb *strings.Builder, v Value, active map[*Table]bool) {
	switch v.kind {
	case KindNil:
		sb.WriteString("nil")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.boolVal))
	case KindNumber:
		sb.WriteString(strconv.FormatFloat(v.numVal, 'g', -1, 64))
	case KindString:
		sb.WriteString(strconv.Quote(v.strVal))
	case KindTable:
		if active[v.tabVal] {
			sb.WriteString("<cycle>")
			return
		}
		active[v.tabVal] = true
		sb.WriteByte('{')
		for i, e := range v.tabVal.Entries() {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte('[')
			writeDebug(sb, e.Key, active)
			sb.WriteString("]=")
			writeDebug(sb, e.Value, active)
		}
		sb.WriteByte('}')
		delete(active, v.tabVal)
	case KindOpaque:
		fmt.Fprintf(sb, "<opaque %T>", v.Host())
	default:
		sb.WriteString("<unknown>")
	}
}

// isInteger reports whether f has no fractional part.
func isInteger(f float64) bool {
	return !math.IsInf(f, 0) && f == math.Trunc(f)
}

// ============================================================
// Equality
// ============================================================

// Equal reports whether a and b are structurally equal. Tables are compared
// entry by entry; a pair of tables already under comparison is assumed equal,
// so cyclic structures terminate.
func Equal(a, b Value) bool {
	return equal(a, b, map[[2]*Table]bool{})
}

func equal(a, b Value, inProgress map[[2]*Table]bool) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.boolVal == b.boolVal
	case KindNumber:
		return a.numVal == b.numVal
	case KindString:
		return a.strVal == b.strVal
	case KindTable:
		if a.tabVal == b.tabVal {
			return true
		}
		pair := [2]*Table{a.tabVal, b.tabVal}
		if inProgress[pair] {
			return true
		}
		if a.tabVal.Len() != b.tabVal.Len() {
			return false
		}
		inProgress[pair] = true
		defer delete(inProgress, pair)
		for _, e := range a.tabVal.Entries() {
			other, ok := lookupEqualKey(b.tabVal, e.Key, inProgress)
			if !ok || !equal(e.Value, other, inProgress) {
				return false
			}
		}
		return true
	case KindOpaque:
		return a.opaque == b.opaque
	}
	return false
}

// lookupEqualKey finds the value stored under a key equal to k. Scalar keys
// are looked up directly; table keys are matched structurally.
func lookupEqualKey(t *Table, k Value, inProgress map[[2]*Table]bool) (Value, bool) {
	if k.kind != KindTable {
		v := t.Get(k)
		return v, !v.IsNil()
	}
	for _, e := range t.Entries() {
		if e.Key.kind == KindTable && equal(k, e.Key, inProgress) {
			return e.Value, true
		}
	}
	return Nil(), false
}
