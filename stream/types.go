// Package stream implements TWS1 (tabwire stream v1) framing.
//
// TWS1 is a transport envelope for tabwire text, providing:
//   - Message boundaries and resync
//   - Splitting long payloads into size-bounded chunks
//   - Multiplexing via stream IDs (sid)
//   - Ordering via sequence numbers (seq)
//   - Integrity via optional CRC-32
//   - End-to-end verification via optional state hash (base)
//   - Optional zstd compression of the payload bytes
//
// Frame headers are not part of the tabwire format. Uncompressed payloads are
// plain tabwire text and can be passed to tabwire.Unserialize unchanged.
package stream

import (
	"fmt"
)

// Version is the TWS1 protocol version.
const Version uint8 = 1

// FrameKind indicates the semantic category of a frame's payload.
type FrameKind uint8

const (
	KindDoc   FrameKind = 0 // Complete serialized value
	KindChunk FrameKind = 1 // Part of a serialized value, completed by a final chunk
	KindAck   FrameKind = 2 // Acknowledgement
	KindErr   FrameKind = 3 // Error event
	KindPing  FrameKind = 4 // Keepalive
	KindPong  FrameKind = 5 // Ping response
)

// String returns the kind name.
func (k FrameKind) String() string {
	switch k {
	case KindDoc:
		return "doc"
	case KindChunk:
		return "chunk"
	case KindAck:
		return "ack"
	case KindErr:
		return "err"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// ParseKind parses a kind name or numeric value.
func ParseKind(s string) (FrameKind, bool) {
	switch s {
	case "doc", "0":
		return KindDoc, true
	case "chunk", "1":
		return KindChunk, true
	case "ack", "2":
		return KindAck, true
	case "err", "3":
		return KindErr, true
	case "ping", "4":
		return KindPing, true
	case "pong", "5":
		return KindPong, true
	default:
		return 0, false
	}
}

// Flags for TWS1 frames.
type Flags uint8

const (
	FlagHasCRC     Flags = 0x01 // CRC-32 is present
	FlagHasBase    Flags = 0x02 // Base hash is present
	FlagFinal      Flags = 0x04 // Last chunk of a value / end of stream
	FlagCompressed Flags = 0x08 // Payload is zstd compressed
)

// Frame represents a single TWS1 frame.
type Frame struct {
	// Required fields
	Version uint8     // Protocol version (must be 1)
	SID     uint64    // Stream identifier
	Seq     uint64    // Sequence number (per-SID, monotonic)
	Kind    FrameKind // Frame kind
	Payload []byte    // Payload bytes as seen by the application (uncompressed)

	// Optional fields
	CRC        *uint32   // CRC-32 of the payload bytes on the wire (nil if not present)
	Base       *[32]byte // Hash of the complete value (nil if not present)
	Flags      Flags     // Flag bits
	Final      bool      // Last chunk marker
	Compressed bool      // Payload travels zstd compressed
}

// HasCRC returns true if CRC is present.
func (f *Frame) HasCRC() bool {
	return f.CRC != nil
}

// HasBase returns true if base hash is present.
func (f *Frame) HasBase() bool {
	return f.Base != nil
}

// IsFinal returns true if this frame ends its value or stream.
func (f *Frame) IsFinal() bool {
	return f.Final || f.Flags&FlagFinal != 0
}

// IsCompressed returns true if the payload travels compressed.
func (f *Frame) IsCompressed() bool {
	return f.Compressed || f.Flags&FlagCompressed != 0
}

// MaxPayloadSize is the default maximum payload size (64 MiB).
const MaxPayloadSize = 64 * 1024 * 1024

// ParseError reports a malformed frame.
type ParseError struct {
	Reason string
	Offset int
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("tws1: %s at offset %d", e.Reason, e.Offset)
	}
	return fmt.Sprintf("tws1: %s", e.Reason)
}

// CRCMismatchError is returned when CRC verification fails.
type CRCMismatchError struct {
	Expected uint32
	Got      uint32
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("tws1: CRC mismatch: expected %08x, got %08x", e.Expected, e.Got)
}

// BaseMismatchError is returned when an assembled value does not hash to the
// base announced by its sender.
type BaseMismatchError struct {
	SID      uint64
	Expected [32]byte
	Got      [32]byte
}

func (e *BaseMismatchError) Error() string {
	return fmt.Sprintf("tws1: base hash mismatch on sid %d: expected %s, got %s",
		e.SID, HashToHex(e.Expected)[:16], HashToHex(e.Got)[:16])
}

// SequenceError is returned when frames of a stream arrive out of order.
type SequenceError struct {
	SID      uint64
	Expected uint64
	Got      uint64
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("tws1: sid %d: expected seq %d, got %d", e.SID, e.Expected, e.Got)
}
