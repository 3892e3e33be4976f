package tabwire

// Wire format tags. Digits '0'..'9' are values on their own.
const (
	terminator byte = ':'

	tagNil         byte = 'z' // also ends a table body
	tagTrue        byte = 't'
	tagFalse       byte = 'f'
	tagEmptyString byte = 'S'
	tagString      byte = 's' // raw payload
	tagEscaped     byte = '~' // escaped payload
	tagStringRef   byte = '<'
	tagNumber      byte = 'n' // decimal payload
	tagFloat       byte = 'd' // mantissa and exponent payloads
	tagEmptyTable  byte = 'e'
	tagTable       byte = 'T'
	tagTableRef    byte = 'r'
)

// Version is the only wire format version this package reads or writes.
const Version = 1

// DefaultMaxDepth bounds table nesting during encode and decode.
const DefaultMaxDepth = 512
