package tabwire

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrUnsupported = errors.New("unsupported value")
	ErrFormat      = errors.New("invalid format")
	ErrMaxDepth    = errors.New("nesting too deep")
)

// FormatReason classifies a FormatError.
type FormatReason uint8

const (
	ReasonEmptyInput FormatReason = iota
	ReasonBadVersion
	ReasonInvalidCode
	ReasonUnterminated
	ReasonRefOutOfBounds
	ReasonTrailingGarbage
	ReasonBadNumber
	ReasonBadEscape
	ReasonWrongInputKind
	ReasonTooDeep
)

// String returns the reason text.
func (r FormatReason) String() string {
	switch r {
	case ReasonEmptyInput:
		return "empty input"
	case ReasonBadVersion:
		return "unsupported version"
	case ReasonInvalidCode:
		return "invalid code"
	case ReasonUnterminated:
		return "unterminated data"
	case ReasonRefOutOfBounds:
		return "back-reference out of bound"
	case ReasonTrailingGarbage:
		return "garbage after value"
	case ReasonBadNumber:
		return "invalid number"
	case ReasonBadEscape:
		return "invalid escape"
	case ReasonWrongInputKind:
		return "input is not a string"
	case ReasonTooDeep:
		return "nesting too deep"
	default:
		return fmt.Sprintf("reason(%d)", r)
	}
}

// FormatError reports malformed wire text.
type FormatError struct {
	Reason FormatReason
	Offset int    // Byte offset into the input, -1 if not applicable
	Detail string // Optional extra context
}

func (e *FormatError) Error() string {
	msg := e.Reason.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset %d", msg, e.Offset)
	}
	return msg
}

// Is matches ErrFormat, and ErrMaxDepth for depth violations.
func (e *FormatError) Is(target error) bool {
	if target == ErrFormat {
		return true
	}
	return target == ErrMaxDepth && e.Reason == ReasonTooDeep
}

// UnsupportedValueError reports a value that has no wire form.
type UnsupportedValueError struct {
	Kind   Kind
	Path   string // Location inside the value graph, e.g. "$.items[2]"
	Reason string

	tooDeep bool
}

func (e *UnsupportedValueError) Error() string {
	msg := "unsupported type " + e.Kind.String()
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Path != "" {
		msg += " at " + e.Path
	}
	return msg
}

// Is matches ErrUnsupported, and ErrMaxDepth for depth violations.
func (e *UnsupportedValueError) Is(target error) bool {
	if target == ErrUnsupported {
		return true
	}
	return target == ErrMaxDepth && e.tooDeep
}

func formatErr(reason FormatReason, offset int, detail string) error {
	return &FormatError{Reason: reason, Offset: offset, Detail: detail}
}
