package tabwire

import (
	"crypto/sha256"
	"sort"
)

// keyRank orders key kinds for canonical output.
func keyRank(k Kind) int {
	switch k {
	case KindBool:
		return 0
	case KindNumber:
		return 1
	case KindString:
		return 2
	case KindTable:
		return 3
	default:
		return 4
	}
}

// sortedEntries returns t's entries in canonical order: booleans, numbers,
// strings, then tables. Table keys keep their insertion order.
func sortedEntries(t *Table) []Entry {
	out := t.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		ra, rb := keyRank(a.kind), keyRank(b.kind)
		if ra != rb {
			return ra < rb
		}
		switch a.kind {
		case KindBool:
			return !a.boolVal && b.boolVal
		case KindNumber:
			return a.numVal < b.numVal
		case KindString:
			return a.strVal < b.strVal
		}
		return false
	})
	return out
}

// Canonical serializes v with sorted table keys, so equal acyclic values
// without table keys produce identical text.
func Canonical(v Value) (string, error) {
	return canonicalCodec.Serialize(v)
}

// Hash returns the SHA-256 of the canonical serialization of v.
func Hash(v Value) ([32]byte, error) {
	s, err := Canonical(v)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256([]byte(s)), nil
}

var canonicalCodec = New(WithCanonical(true))
