package stream

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("stream")

// Reader reads TWS1 text frames from an io.Reader.
type Reader struct {
	r          *bufio.Reader
	maxPayload int
	verifyCRC  bool
	offset     int // bytes consumed so far, for error reporting
	zdec       *zstd.Decoder
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithMaxPayload sets the maximum payload size (default: 64 MiB). The limit
// applies to the wire bytes and to the decompressed payload.
func WithMaxPayload(max int) ReaderOption {
	return func(r *Reader) {
		r.maxPayload = max
	}
}

// WithCRCVerification enables or disables CRC verification (default on).
func WithCRCVerification(on bool) ReaderOption {
	return func(r *Reader) {
		r.verifyCRC = on
	}
}

// NewReader creates a new TWS1 frame reader.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	reader := &Reader{
		r:          bufio.NewReader(r),
		maxPayload: MaxPayloadSize,
		verifyCRC:  true,
	}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// Close releases decompression resources.
func (r *Reader) Close() {
	if r.zdec != nil {
		r.zdec.Close()
	}
}

// Next reads and returns the next frame.
// Returns io.EOF when no more frames are available.
func (r *Reader) Next() (*Frame, error) {
	headerAt := r.offset
	headerLine, err := r.r.ReadString('\n')
	r.offset += len(headerLine)
	if err != nil {
		if err == io.EOF && strings.TrimSpace(headerLine) == "" {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	frame, payloadLen, err := parseHeader(headerLine, headerAt)
	if err != nil {
		return nil, err
	}
	if payloadLen > r.maxPayload {
		return nil, &ParseError{Reason: fmt.Sprintf("payload too large: %d > %d", payloadLen, r.maxPayload), Offset: headerAt}
	}

	if payloadLen > 0 {
		frame.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r.r, frame.Payload); err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		r.offset += payloadLen
	}

	// Trailing newline is optional at EOF.
	if b, err := r.r.ReadByte(); err == nil {
		if b == '\n' {
			r.offset++
		} else {
			_ = r.r.UnreadByte()
		}
	}

	if r.verifyCRC && frame.CRC != nil {
		computed := ComputeCRC(frame.Payload)
		if computed != *frame.CRC {
			log.Debug("frame rejected", "sid", frame.SID, "seq", frame.Seq, "reason", "crc")
			return nil, &CRCMismatchError{Expected: *frame.CRC, Got: computed}
		}
	}

	if frame.Compressed && len(frame.Payload) > 0 {
		if err := r.decompress(frame); err != nil {
			return nil, err
		}
	}

	return frame, nil
}

func (r *Reader) decompress(frame *Frame) error {
	if r.zdec == nil {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(r.maxPayload)))
		if err != nil {
			return fmt.Errorf("zstd decoder: %w", err)
		}
		r.zdec = dec
	}
	out, err := r.zdec.DecodeAll(frame.Payload, nil)
	if err != nil {
		log.Debug("frame rejected", "sid", frame.SID, "seq", frame.Seq, "reason", err.Error())
		return &ParseError{Reason: "decompress: " + err.Error(), Offset: -1}
	}
	if len(out) > r.maxPayload {
		return &ParseError{Reason: fmt.Sprintf("decompressed payload too large: %d > %d", len(out), r.maxPayload), Offset: -1}
	}
	frame.Payload = out
	return nil
}

// parseHeader parses the @frame{...} header line and returns the frame with
// the announced payload length.
func parseHeader(line string, offset int) (*Frame, int, error) {
	line = strings.TrimSpace(line)

	const prefix = "@frame{"
	if !strings.HasPrefix(line, prefix) {
		return nil, 0, &ParseError{Reason: "expected @frame{", Offset: offset}
	}
	if !strings.HasSuffix(line, "}") {
		return nil, 0, &ParseError{Reason: "missing closing }", Offset: offset + len(line)}
	}
	content := line[len(prefix) : len(line)-1]

	frame := &Frame{Version: Version}
	payloadLen := 0
	seenLen := false

	fields := strings.FieldsFunc(content, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	for _, pair := range fields {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		switch key {
		case "v":
			v, err := strconv.ParseUint(val, 10, 8)
			if err != nil || uint8(v) != Version {
				return nil, 0, &ParseError{Reason: "unsupported version: " + val, Offset: offset}
			}
			frame.Version = uint8(v)

		case "sid":
			sid, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return nil, 0, &ParseError{Reason: "invalid sid", Offset: offset}
			}
			frame.SID = sid

		case "seq":
			seq, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return nil, 0, &ParseError{Reason: "invalid seq", Offset: offset}
			}
			frame.Seq = seq

		case "kind":
			kind, ok := ParseKind(val)
			if !ok {
				return nil, 0, &ParseError{Reason: "invalid kind: " + val, Offset: offset}
			}
			frame.Kind = kind

		case "len":
			l, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return nil, 0, &ParseError{Reason: "invalid len", Offset: offset}
			}
			payloadLen = int(l)
			seenLen = true

		case "crc":
			crc, ok := parseCRC(val)
			if !ok {
				return nil, 0, &ParseError{Reason: "invalid crc: " + val, Offset: offset}
			}
			frame.CRC = &crc
			frame.Flags |= FlagHasCRC

		case "base":
			base, ok := HexToHash(strings.TrimPrefix(val, "sha256:"))
			if !ok {
				return nil, 0, &ParseError{Reason: "invalid base: " + val, Offset: offset}
			}
			frame.Base = &base
			frame.Flags |= FlagHasBase

		case "zstd":
			frame.Compressed = val == "true" || val == "1"

		case "final":
			frame.Final = val == "true" || val == "1"

		case "flags":
			flags, err := strconv.ParseUint(val, 16, 8)
			if err == nil {
				frame.Flags |= Flags(flags)
			}
		}
	}

	if !seenLen {
		return nil, 0, &ParseError{Reason: "missing len", Offset: offset}
	}
	if frame.Flags&FlagFinal != 0 {
		frame.Final = true
	}
	if frame.Flags&FlagCompressed != 0 {
		frame.Compressed = true
	}
	return frame, payloadLen, nil
}

// parseCRC parses CRC value: "crc32:XXXXXXXX" or "XXXXXXXX"
func parseCRC(val string) (uint32, bool) {
	val = strings.TrimPrefix(val, "crc32:")
	if len(val) != 8 {
		return 0, false
	}
	v, err := strconv.ParseUint(val, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// ReadAll reads all frames until EOF.
func (r *Reader) ReadAll() ([]*Frame, error) {
	var frames []*Frame
	for {
		frame, err := r.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, frame)
	}
}
