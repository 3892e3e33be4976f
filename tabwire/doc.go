// Package tabwire implements TABWIRE, a printable text codec for nested tables.
//
// TABWIRE is designed to be:
//   - Safe for restricted text channels (no control bytes, no ':' or '|' in payloads)
//   - Compact (single-character constants, back-references for repeated data)
//   - Reference preserving (shared and circular tables survive a round trip)
//   - Exact for numbers (every finite double decodes bit-for-bit)
//
// # Data Model
//
// Scalars: nil, bool, number (float64), string (any bytes)
// Containers: table (Value -> Value, keys never nil)
//
// Tables carry identity; strings, numbers and booleans do not.
//
// # Wire Syntax
//
//	stream  := "1:" value
//	value   := "z" | "t" | "f" | "S" | DIGIT
//	         | "n" NUMBER ":"          decimal number
//	         | "d" INT ":" INT ":"     mantissa * 2^exponent
//	         | "s" TEXT ":"            raw string
//	         | "~" ESCAPED ":"         escaped string
//	         | "<" INT ":"             string back-reference
//	         | "e"                     empty table
//	         | "T" (value value)* "z"  table entries
//	         | "r" INT ":"             table back-reference
//
// Ids are dense and issued in first-seen order: tables when they are opened,
// strings when their escaped form is longer than four bytes.
//
// # Escapes
//
// Bytes 0-32, 127, ':', '|' and '~' never appear raw inside a string payload:
//
//	~~  '~'     ~z  ':'     ~y  '|'     ~x  DEL
//	~@ .. ~`    bytes 0..32
//
// # Example
//
//	t := tabwire.Map(
//	  tabwire.Entry{Key: tabwire.Str("a"), Value: tabwire.Int(5)},
//	  tabwire.Entry{Key: tabwire.Int(1), Value: tabwire.Str("b")},
//	)
//	s, _ := tabwire.Serialize(tabwire.Tab(t))  // "1:Tsa:51sb:z"
//	v, _ := tabwire.Unserialize(s)
package tabwire
