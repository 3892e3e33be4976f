package tabwire

import (
	"math"
	"strconv"
	"strings"
)

// decodeState is the per-call decoding context.
type decodeState struct {
	data     string
	pos      int
	tables   refList[*Table]
	strs     refList[string]
	maxDepth int
}

func (d *decodeState) reset(data string) {
	d.data = data
	d.pos = 0
	d.tables.reset()
	d.strs.reset()
}

// readHeader consumes the version field. It is parsed as a terminated
// decimal, never as a value, so "1:0" is version 1 followed by the digit 0.
// A leading 'n' tag is accepted for streams written with a tagged header.
func (d *decodeState) readHeader() error {
	if len(d.data) == 0 {
		return formatErr(ReasonEmptyInput, -1, "")
	}
	start := d.pos
	if d.data[d.pos] == tagNumber {
		d.pos++
	}
	field, err := d.readField()
	if err != nil {
		return err
	}
	if field != strconv.Itoa(Version) {
		return formatErr(ReasonBadVersion, start, strconv.Quote(field))
	}
	return nil
}

// readField returns the payload up to the next terminator and moves past it.
func (d *decodeState) readField() (string, error) {
	i := strings.IndexByte(d.data[d.pos:], terminator)
	if i < 0 {
		return "", formatErr(ReasonUnterminated, d.pos, "missing terminator")
	}
	field := d.data[d.pos : d.pos+i]
	d.pos += i + 1
	return field, nil
}

func (d *decodeState) readInteger() (int64, error) {
	start := d.pos
	field, err := d.readField()
	if err != nil {
		return 0, err
	}
	return parseInteger(field, start)
}

func (d *decodeState) readValue(depth int) (Value, error) {
	if d.pos >= len(d.data) {
		return Nil(), formatErr(ReasonUnterminated, d.pos, "unexpected end of input")
	}
	start := d.pos
	c := d.data[d.pos]
	d.pos++

	if c >= '0' && c <= '9' {
		return Int(int64(c - '0')), nil
	}

	switch c {
	case tagNil:
		return Nil(), nil
	case tagTrue:
		return Bool(true), nil
	case tagFalse:
		return Bool(false), nil
	case tagEmptyString:
		return Str(""), nil

	case tagString, tagEscaped:
		payloadAt := d.pos
		raw, err := d.readField()
		if err != nil {
			return Nil(), err
		}
		s := raw
		if c == tagEscaped {
			if s, err = unescape(raw, payloadAt); err != nil {
				return Nil(), err
			}
		}
		if stringRefEligible(len(raw)) {
			d.strs.add(s)
		}
		return Str(s), nil

	case tagStringRef:
		id, err := d.readInteger()
		if err != nil {
			return Nil(), err
		}
		s, err := d.strs.resolve(id, start)
		if err != nil {
			return Nil(), err
		}
		return Str(s), nil

	case tagNumber:
		field, err := d.readField()
		if err != nil {
			return Nil(), err
		}
		f, err := parseDecimal(field, start+1)
		if err != nil {
			return Nil(), err
		}
		return Num(f), nil

	case tagFloat:
		m, err := d.readInteger()
		if err != nil {
			return Nil(), err
		}
		e, err := d.readInteger()
		if err != nil {
			return Nil(), err
		}
		f := joinFloat(m, int(e))
		if math.IsInf(f, 0) {
			return Nil(), formatErr(ReasonBadNumber, start, "exponent out of range")
		}
		return Num(f), nil

	case tagEmptyTable:
		t := NewTable()
		d.tables.add(t)
		return Tab(t), nil

	case tagTable:
		return d.readTable(start, depth)

	case tagTableRef:
		id, err := d.readInteger()
		if err != nil {
			return Nil(), err
		}
		t, err := d.tables.resolve(id, start)
		if err != nil {
			return Nil(), err
		}
		return Tab(t), nil
	}

	return Nil(), formatErr(ReasonInvalidCode, start, strconv.QuoteRune(rune(c)))
}

func (d *decodeState) readTable(start, depth int) (Value, error) {
	if depth >= d.maxDepth {
		return Nil(), formatErr(ReasonTooDeep, start, "limit "+strconv.Itoa(d.maxDepth))
	}
	// Registered before the entries so references to it from inside resolve.
	t := NewTable()
	d.tables.add(t)

	for {
		keyAt := d.pos
		k, err := d.readValue(depth + 1)
		if err != nil {
			return Nil(), err
		}
		if k.IsNil() {
			return Tab(t), nil
		}
		v, err := d.readValue(depth + 1)
		if err != nil {
			return Nil(), err
		}
		if err := t.Set(k, v); err != nil {
			return Nil(), formatErr(ReasonInvalidCode, keyAt, err.Error())
		}
	}
}
