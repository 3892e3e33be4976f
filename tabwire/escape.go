package tabwire

import "strings"

// escapeMarker introduces a two-character escape sequence.
const escapeMarker = '~'

// Fixed designators. Control bytes 0-32 use 64+b ('@' through '`').
const (
	escTerminator = 'z' // ':'
	escPipe       = 'y' // '|'
	escDel        = 'x' // 127
)

// mustEscape reports whether b cannot appear raw in a string payload.
func mustEscape(b byte) bool {
	return b <= 32 || b == 127 || b == terminator || b == escapeMarker || b == '|'
}

// needsEscape reports whether s contains any forbidden byte.
func needsEscape(s string) bool {
	for i := 0; i < len(s); i++ {
		if mustEscape(s[i]) {
			return true
		}
	}
	return false
}

// escapedLen returns the length of escape(s) without building it.
func escapedLen(s string) int {
	n := len(s)
	for i := 0; i < len(s); i++ {
		if mustEscape(s[i]) {
			n++
		}
	}
	return n
}

// escapeByte returns the designator for a forbidden byte.
func escapeByte(b byte) byte {
	switch {
	case b == escapeMarker:
		return escapeMarker
	case b == terminator:
		return escTerminator
	case b == '|':
		return escPipe
	case b == 127:
		return escDel
	default:
		return 64 + b
	}
}

// escape substitutes every forbidden byte with its escape sequence.
func escape(s string) string {
	var sb strings.Builder
	sb.Grow(escapedLen(s))
	writeEscaped(&sb, s)
	return sb.String()
}

func writeEscaped(sb *strings.Builder, s string) {
	start := 0
	for i := 0; i < len(s); i++ {
		if !mustEscape(s[i]) {
			continue
		}
		sb.WriteString(s[start:i])
		sb.WriteByte(escapeMarker)
		sb.WriteByte(escapeByte(s[i]))
		start = i + 1
	}
	sb.WriteString(s[start:])
}

// unescape reverses escape. offset is the payload position in the input and
// is only used for error reporting.
func unescape(s string, offset int) (string, error) {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != escapeMarker {
			sb.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", formatErr(ReasonBadEscape, offset+i, "dangling escape marker")
		}
		i++
		d := s[i]
		switch {
		case d == escapeMarker:
			sb.WriteByte(escapeMarker)
		case d == escTerminator:
			sb.WriteByte(terminator)
		case d == escPipe:
			sb.WriteByte('|')
		case d == escDel:
			sb.WriteByte(127)
		case d >= 64 && d <= 64+32:
			sb.WriteByte(d - 64)
		default:
			return "", formatErr(ReasonBadEscape, offset+i-1, "~"+string(d))
		}
	}
	return sb.String(), nil
}
