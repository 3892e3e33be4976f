package stream

import (
	"github.com/Neumenon/tabwire/tabwire"
)

// Split cuts an encoded value into chunk frames of at most maxChunk payload
// bytes, numbered from firstSeq. The last frame is marked final. A
// non-positive maxChunk yields a single final chunk. Cuts fall on arbitrary
// byte boundaries; the Assembler rejoins them before decoding.
func Split(sid, firstSeq uint64, payload string, maxChunk int) []*Frame {
	if maxChunk <= 0 || maxChunk > len(payload) {
		maxChunk = len(payload)
	}

	n := 1
	if maxChunk > 0 {
		n = (len(payload) + maxChunk - 1) / maxChunk
	}
	frames := make([]*Frame, 0, n)

	for i := 0; i < n; i++ {
		start := i * maxChunk
		end := min(start+maxChunk, len(payload))
		frames = append(frames, &Frame{
			Version: Version,
			SID:     sid,
			Seq:     firstSeq + uint64(i),
			Kind:    KindChunk,
			Payload: []byte(payload[start:end]),
		})
	}
	frames[len(frames)-1].Final = true
	return frames
}

// SplitValue serializes v with codec (default options when nil) and splits
// the text like Split. The final frame carries the value's state hash so the
// receiving Assembler can verify what it decoded.
func SplitValue(codec *tabwire.Codec, sid, firstSeq uint64, v tabwire.Value, maxChunk int) ([]*Frame, error) {
	if codec == nil {
		codec = tabwire.New()
	}
	text, err := codec.Serialize(v)
	if err != nil {
		return nil, err
	}
	base, err := StateHash(v)
	if err != nil {
		return nil, err
	}
	frames := Split(sid, firstSeq, text, maxChunk)
	frames[len(frames)-1].Base = &base
	return frames, nil
}
