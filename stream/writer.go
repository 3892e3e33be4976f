package stream

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Writer writes TWS1 text frames to an io.Writer.
type Writer struct {
	w       io.Writer
	withCRC bool          // Whether to compute and include CRC
	zenc    *zstd.Encoder // Non-nil when payloads are compressed
}

// WriterOption configures a Writer.
type WriterOption func(*Writer) error

// WithCRC computes a CRC for every frame that does not carry one.
func WithCRC() WriterOption {
	return func(w *Writer) error {
		w.withCRC = true
		return nil
	}
}

// WithCompression compresses non-empty payloads with zstd.
func WithCompression(level zstd.EncoderLevel) WriterOption {
	return func(w *Writer) error {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return fmt.Errorf("zstd encoder: %w", err)
		}
		w.zenc = enc
		return nil
	}
}

// NewWriter creates a new TWS1 frame writer.
func NewWriter(w io.Writer, opts ...WriterOption) (*Writer, error) {
	fw := &Writer{w: w}
	for _, opt := range opts {
		if err := opt(fw); err != nil {
			return nil, err
		}
	}
	return fw, nil
}

// NewWriterWithCRC creates a writer that computes CRC for each frame.
func NewWriterWithCRC(w io.Writer) *Writer {
	return &Writer{w: w, withCRC: true}
}

// Close releases compression resources.
func (w *Writer) Close() error {
	if w.zenc != nil {
		return w.zenc.Close()
	}
	return nil
}

// WriteFrame writes a single frame.
//
// Format:
//
//	@frame{v=1 sid=N seq=N kind=K len=N [crc=X] [base=sha256:X] [zstd=true] [final=true]}\n
//	<payload bytes>\n
//
// len and crc describe the payload as written, after compression.
func (w *Writer) WriteFrame(f *Frame) error {
	payload := f.Payload
	compressed := w.zenc != nil && len(payload) > 0
	if compressed {
		payload = w.zenc.EncodeAll(payload, nil)
	}

	var header strings.Builder
	header.WriteString("@frame{")

	header.WriteString("v=")
	if f.Version == 0 {
		header.WriteByte('1')
	} else {
		header.WriteString(strconv.Itoa(int(f.Version)))
	}

	header.WriteString(" sid=")
	header.WriteString(strconv.FormatUint(f.SID, 10))

	header.WriteString(" seq=")
	header.WriteString(strconv.FormatUint(f.Seq, 10))

	header.WriteString(" kind=")
	header.WriteString(f.Kind.String())

	header.WriteString(" len=")
	header.WriteString(strconv.Itoa(len(payload)))

	// A caller supplied CRC covers the uncompressed bytes; the wire CRC must
	// cover what is actually written.
	crc := f.CRC
	if (crc != nil && compressed) || (crc == nil && w.withCRC && len(payload) > 0) {
		computed := ComputeCRC(payload)
		crc = &computed
	}
	if crc != nil {
		fmt.Fprintf(&header, " crc=%08x", *crc)
	}

	if f.Base != nil {
		header.WriteString(" base=sha256:")
		header.WriteString(HashToHex(*f.Base))
	}

	if compressed {
		header.WriteString(" zstd=true")
	}

	if f.IsFinal() {
		header.WriteString(" final=true")
	}

	header.WriteString("}\n")

	if _, err := io.WriteString(w.w, header.String()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if len(payload) > 0 {
		if _, err := w.w.Write(payload); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}

	if _, err := io.WriteString(w.w, "\n"); err != nil {
		return fmt.Errorf("write trailing newline: %w", err)
	}

	return nil
}

// WriteFrames writes frames in order, stopping at the first error.
func (w *Writer) WriteFrames(frames []*Frame) error {
	for _, f := range frames {
		if err := w.WriteFrame(f); err != nil {
			return err
		}
	}
	return nil
}

// WriteDoc writes a doc frame carrying a complete serialized value.
func (w *Writer) WriteDoc(sid, seq uint64, text string) error {
	return w.WriteFrame(&Frame{
		Version: Version,
		SID:     sid,
		Seq:     seq,
		Kind:    KindDoc,
		Payload: []byte(text),
	})
}

// WriteAck writes an acknowledgement frame (no payload).
func (w *Writer) WriteAck(sid, seq uint64) error {
	return w.WriteFrame(&Frame{
		Version: Version,
		SID:     sid,
		Seq:     seq,
		Kind:    KindAck,
	})
}

// WriteErr writes an error frame.
func (w *Writer) WriteErr(sid, seq uint64, msg string) error {
	return w.WriteFrame(&Frame{
		Version: Version,
		SID:     sid,
		Seq:     seq,
		Kind:    KindErr,
		Payload: []byte(msg),
	})
}

// WritePing writes a ping frame.
func (w *Writer) WritePing(sid, seq uint64) error {
	return w.WriteFrame(&Frame{
		Version: Version,
		SID:     sid,
		Seq:     seq,
		Kind:    KindPing,
	})
}

// WritePong writes a ping response.
func (w *Writer) WritePong(sid, seq uint64) error {
	return w.WriteFrame(&Frame{
		Version: Version,
		SID:     sid,
		Seq:     seq,
		Kind:    KindPong,
	})
}
