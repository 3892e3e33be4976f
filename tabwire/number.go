package tabwire

import (
	"math"
	"strconv"
	"strings"
)

// mantissaBits is the scale applied to the frexp fraction so it becomes an
// exact integer.
const mantissaBits = 53

// decimalPrecision matches the %.14g formatting used for the decimal form.
const decimalPrecision = 14

// smallDigit returns the fast-path digit for f, if f is one of 0..9.
// Negative zero is excluded so its sign survives the round trip.
func smallDigit(f float64) (byte, bool) {
	if f < 0 || f > 9 || !isInteger(f) || math.Signbit(f) {
		return 0, false
	}
	return '0' + byte(f), true
}

// formatDecimal returns the decimal text for f and whether parsing it
// yields f exactly.
func formatDecimal(f float64) (string, bool) {
	s := strconv.FormatFloat(f, 'g', decimalPrecision, 64)
	back, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s, false
	}
	return s, math.Float64bits(back) == math.Float64bits(f)
}

// splitFloat decomposes a finite f into m and e with f == m * 2^e exactly.
func splitFloat(f float64) (int64, int) {
	frac, exp := math.Frexp(f)
	return int64(frac * (1 << mantissaBits)), exp - mantissaBits
}

// joinFloat is the inverse of splitFloat.
func joinFloat(m int64, e int) float64 {
	return math.Ldexp(float64(m), e)
}

// writeNumber appends the wire form of a finite number.
func writeNumber(sb *strings.Builder, f float64) {
	if d, ok := smallDigit(f); ok {
		sb.WriteByte(d)
		return
	}
	if s, exact := formatDecimal(f); exact {
		sb.WriteByte(tagNumber)
		sb.WriteString(s)
		sb.WriteByte(terminator)
		return
	}
	m, e := splitFloat(f)
	sb.WriteByte(tagFloat)
	sb.WriteString(strconv.FormatInt(m, 10))
	sb.WriteByte(terminator)
	sb.WriteString(strconv.Itoa(e))
	sb.WriteByte(terminator)
}

// parseDecimal parses the payload of an n field.
func parseDecimal(s string, offset int) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, formatErr(ReasonBadNumber, offset, strconv.Quote(s))
	}
	return f, nil
}

// parseInteger parses a decimal integer field (ids, mantissas, exponents).
func parseInteger(s string, offset int) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, formatErr(ReasonBadNumber, offset, strconv.Quote(s))
	}
	return n, nil
}
