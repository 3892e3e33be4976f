package stream

import (
	"fmt"
	"sync"

	"github.com/Neumenon/tabwire/tabwire"
)

// Message is a complete value reassembled from one doc frame or a run of
// chunk frames.
type Message struct {
	SID   uint64
	Seq   uint64 // Seq of the frame that completed the message
	Text  string
	Value tabwire.Value
}

// RemoteError is a KindErr frame surfaced by the Assembler.
type RemoteError struct {
	SID uint64
	Seq uint64
	Msg string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("tws1: remote error on sid %d seq %d: %s", e.SID, e.Seq, e.Msg)
}

// SIDState holds assembly state for a single stream ID.
type SIDState struct {
	SID       uint64
	LastSeq   uint64   // Last sequence number accepted
	LastAcked uint64   // Last sequence number acknowledged by the peer
	StateHash [32]byte // Hash of the last completed value
	HasState  bool     // Whether StateHash is valid
	Final     bool     // Whether a final frame has been seen

	started   bool
	nextUnack uint64 // first seq not covered by an ack
	pending   []byte // chunk payloads awaiting their final chunk
}

// Assembler turns frames back into values. It tracks per-SID sequence
// numbers, buffers chunks until the final one arrives, decodes the payload
// and checks the announced base hash. Safe for concurrent use.
type Assembler struct {
	mu         sync.Mutex
	codec      *tabwire.Codec
	maxPending int
	streams    map[uint64]*SIDState
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithMaxPending bounds the chunk bytes buffered per SID (default: 64 MiB).
func WithMaxPending(max int) AssemblerOption {
	return func(a *Assembler) {
		a.maxPending = max
	}
}

// NewAssembler creates an assembler decoding with codec, or with default
// options when codec is nil.
func NewAssembler(codec *tabwire.Codec, opts ...AssemblerOption) *Assembler {
	if codec == nil {
		codec = tabwire.New()
	}
	a := &Assembler{
		codec:      codec,
		maxPending: MaxPayloadSize,
		streams:    make(map[uint64]*SIDState),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Assembler) state(sid uint64) *SIDState {
	st, ok := a.streams[sid]
	if !ok {
		st = &SIDState{SID: sid}
		a.streams[sid] = st
	}
	return st
}

// Process consumes one frame. It returns a Message when the frame completes
// a value and nil otherwise. Sequence gaps and duplicates are rejected with
// a *SequenceError and leave the stream state unchanged.
func (a *Assembler) Process(f *Frame) (*Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.state(f.SID)
	if st.started && f.Seq != st.LastSeq+1 {
		log.Debug("frame rejected", "sid", f.SID, "expected", st.LastSeq+1, "got", f.Seq)
		return nil, &SequenceError{SID: f.SID, Expected: st.LastSeq + 1, Got: f.Seq}
	}
	if !st.started {
		st.nextUnack = f.Seq
	}
	st.started = true
	st.LastSeq = f.Seq
	if f.IsFinal() {
		st.Final = true
	}

	switch f.Kind {
	case KindDoc:
		if len(st.pending) > 0 {
			st.pending = nil
			return nil, &ParseError{Reason: fmt.Sprintf("doc frame interrupts chunked value on sid %d", f.SID), Offset: -1}
		}
		return a.complete(st, f, f.Payload)

	case KindChunk:
		if len(st.pending)+len(f.Payload) > a.maxPending {
			size := len(st.pending) + len(f.Payload)
			st.pending = nil
			log.Debug("value rejected", "sid", f.SID, "seq", f.Seq, "reason", "too large")
			return nil, &ParseError{Reason: fmt.Sprintf("chunked value too large on sid %d: %d > %d", f.SID, size, a.maxPending), Offset: -1}
		}
		st.pending = append(st.pending, f.Payload...)
		if !f.IsFinal() {
			return nil, nil
		}
		payload := st.pending
		st.pending = nil
		return a.complete(st, f, payload)

	case KindAck:
		// An ack frame covers every earlier frame of its SID and itself.
		st.LastAcked = f.Seq
		st.nextUnack = f.Seq + 1
		return nil, nil

	case KindErr:
		return nil, &RemoteError{SID: f.SID, Seq: f.Seq, Msg: string(f.Payload)}

	default:
		return nil, nil
	}
}

func (a *Assembler) complete(st *SIDState, f *Frame, payload []byte) (*Message, error) {
	text := string(payload)
	v, err := a.codec.Unserialize(text)
	if err != nil {
		return nil, err
	}

	if f.Base != nil {
		got, err := StateHash(v)
		if err != nil {
			return nil, err
		}
		if !VerifyBase(got, *f.Base) {
			log.Debug("value rejected", "sid", f.SID, "seq", f.Seq, "reason", "base")
			return nil, &BaseMismatchError{SID: f.SID, Expected: *f.Base, Got: got}
		}
		st.StateHash = got
		st.HasState = true
	}

	return &Message{SID: f.SID, Seq: f.Seq, Text: text, Value: v}, nil
}

// Get returns a copy of the state for a SID, or nil when the SID is unknown.
func (a *Assembler) Get(sid uint64) *SIDState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.streams[sid]
	if !ok {
		return nil
	}
	cp := *st
	cp.pending = nil
	return &cp
}

// Delete drops all state for a SID, including buffered chunks.
func (a *Assembler) Delete(sid uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.streams, sid)
}

// SIDs returns all tracked stream IDs.
func (a *Assembler) SIDs() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	sids := make([]uint64, 0, len(a.streams))
	for sid := range a.streams {
		sids = append(sids, sid)
	}
	return sids
}

// Pending reports how many chunk bytes are buffered for a SID.
func (a *Assembler) Pending(sid uint64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.streams[sid]; ok {
		return len(st.pending)
	}
	return 0
}

// PendingAcks returns sequences that have been accepted but not acked.
// Only sequences actually received on the SID are listed.
func (a *Assembler) PendingAcks(sid uint64) []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.streams[sid]
	if !ok || !st.started || st.nextUnack > st.LastSeq {
		return nil
	}
	pending := make([]uint64, 0, st.LastSeq-st.nextUnack+1)
	for seq := st.nextUnack; seq <= st.LastSeq; seq++ {
		pending = append(pending, seq)
	}
	return pending
}
