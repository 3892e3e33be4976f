package tabwire

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// encodeState is the per-call encoding context.
type encodeState struct {
	sb        strings.Builder
	tables    refIndex[*Table]
	strs      refIndex[string]
	maxDepth  int
	canonical bool

	// key path of the value being written, for error messages
	path []string
}

func (e *encodeState) reset() {
	e.sb.Reset()
	e.tables.reset()
	e.strs.reset()
	e.path = e.path[:0]
}

func (e *encodeState) writeHeader() {
	e.sb.WriteString(strconv.Itoa(Version))
	e.sb.WriteByte(terminator)
}

func (e *encodeState) writeValue(v Value, depth int) error {
	switch v.kind {
	case KindNil:
		e.sb.WriteByte(tagNil)
		return nil

	case KindBool:
		if v.boolVal {
			e.sb.WriteByte(tagTrue)
		} else {
			e.sb.WriteByte(tagFalse)
		}
		return nil

	case KindString:
		e.writeString(v.strVal)
		return nil

	case KindNumber:
		if math.IsNaN(v.numVal) || math.IsInf(v.numVal, 0) {
			return e.unsupported(v, "non-finite number")
		}
		writeNumber(&e.sb, v.numVal)
		return nil

	case KindTable:
		return e.writeTable(v.tabVal, depth)

	case KindOpaque:
		return e.unsupported(v, fmt.Sprintf("host object %T", v.Host()))
	}
	return e.unsupported(v, "")
}

func (e *encodeState) writeString(s string) {
	if s == "" {
		e.sb.WriteByte(tagEmptyString)
		return
	}
	if stringRefEligible(escapedLen(s)) {
		if id, seen := e.strs.register(s); seen {
			e.sb.WriteByte(tagStringRef)
			e.sb.WriteString(strconv.Itoa(id))
			e.sb.WriteByte(terminator)
			return
		}
	}
	if needsEscape(s) {
		e.sb.WriteByte(tagEscaped)
		writeEscaped(&e.sb, s)
	} else {
		e.sb.WriteByte(tagString)
		e.sb.WriteString(s)
	}
	e.sb.WriteByte(terminator)
}

func (e *encodeState) writeTable(t *Table, depth int) error {
	if id, seen := e.tables.register(t); seen {
		e.sb.WriteByte(tagTableRef)
		e.sb.WriteString(strconv.Itoa(id))
		e.sb.WriteByte(terminator)
		return nil
	}
	if t.Len() == 0 {
		e.sb.WriteByte(tagEmptyTable)
		return nil
	}
	if depth >= e.maxDepth {
		return &UnsupportedValueError{
			Kind:    KindTable,
			Path:    e.pathString(),
			Reason:  fmt.Sprintf("%v (limit %d)", ErrMaxDepth, e.maxDepth),
			tooDeep: true,
		}
	}

	entries := t.entries
	if e.canonical {
		entries = sortedEntries(t)
	}

	e.sb.WriteByte(tagTable)
	for _, ent := range entries {
		e.path = append(e.path, keySegment(ent.Key))
		if err := e.writeValue(ent.Key, depth+1); err != nil {
			return err
		}
		if err := e.writeValue(ent.Value, depth+1); err != nil {
			return err
		}
		e.path = e.path[:len(e.path)-1]
	}
	e.sb.WriteByte(tagNil)
	return nil
}

func (e *encodeState) unsupported(v Value, reason string) error {
	return &UnsupportedValueError{Kind: v.kind, Path: e.pathString(), Reason: reason}
}

func (e *encodeState) pathString() string {
	return "$" + strings.Join(e.path, "")
}

// keySegment renders a table key as a path segment.
func keySegment(k Value) string {
	switch k.kind {
	case KindString:
		return "." + k.strVal
	case KindNumber:
		return "[" + strconv.FormatFloat(k.numVal, 'g', -1, 64) + "]"
	default:
		return "[" + k.kind.String() + "]"
	}
}
