package tabwire

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Options configures a Codec.
type Options struct {
	// MaxDepth bounds table nesting in both directions (default 512).
	MaxDepth int

	// Canonical sorts table keys while encoding.
	Canonical bool
}

// Option configures a Codec.
type Option func(*Options)

// WithMaxDepth sets the nesting limit. Values < 1 keep the default.
func WithMaxDepth(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxDepth = n
		}
	}
}

// WithCanonical enables sorted-key output.
func WithCanonical(on bool) Option {
	return func(o *Options) {
		o.Canonical = on
	}
}

// Codec serializes and unserializes values. A Codec is safe for concurrent
// use: every call takes its own context from a pool and never shares it.
type Codec struct {
	opts    Options
	encPool sync.Pool
	decPool sync.Pool
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	o := Options{MaxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Codec{opts: o}
	c.encPool.New = func() any {
		return &encodeState{maxDepth: o.MaxDepth, canonical: o.Canonical}
	}
	c.decPool.New = func() any {
		return &decodeState{maxDepth: o.MaxDepth}
	}
	return c
}

// Options returns the codec configuration.
func (c *Codec) Options() Options {
	return c.opts
}

var defaultCodec = New()

// Serialize encodes v with the default codec.
func Serialize(v Value) (string, error) {
	return defaultCodec.Serialize(v)
}

// Unserialize decodes s with the default codec.
func Unserialize(s string) (Value, error) {
	return defaultCodec.Unserialize(s)
}

// Serialize encodes v into wire text.
func (c *Codec) Serialize(v Value) (out string, err error) {
	e := c.encPool.Get().(*encodeState)
	e.reset()
	defer func() {
		if r := recover(); r != nil {
			out, err = "", errors.Wrap(recovered(r), "serialize")
		}
		e.reset()
		c.encPool.Put(e)
	}()

	e.writeHeader()
	if err := e.writeValue(v, 0); err != nil {
		return "", errors.Wrap(err, "serialize")
	}
	return e.sb.String(), nil
}

// Unserialize decodes wire text. On failure no partial value is returned.
func (c *Codec) Unserialize(s string) (out Value, err error) {
	d := c.decPool.Get().(*decodeState)
	d.reset(s)
	defer func() {
		if r := recover(); r != nil {
			out, err = Nil(), errors.Wrap(recovered(r), "unserialize")
		}
		d.reset("")
		c.decPool.Put(d)
	}()

	if err := d.readHeader(); err != nil {
		return Nil(), errors.Wrap(err, "unserialize")
	}
	v, err := d.readValue(0)
	if err != nil {
		return Nil(), errors.Wrap(err, "unserialize")
	}
	if d.pos != len(d.data) {
		return Nil(), errors.Wrap(formatErr(ReasonTrailingGarbage, d.pos, ""), "unserialize")
	}
	return v, nil
}

// UnserializeValue decodes a host value that is expected to hold wire text.
func (c *Codec) UnserializeValue(v Value) (Value, error) {
	s, ok := v.AsString()
	if !ok {
		return Nil(), errors.Wrap(formatErr(ReasonWrongInputKind, -1, v.Kind().String()), "unserialize")
	}
	return c.Unserialize(s)
}

// recovered turns a panic raised below the codec into an error.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("internal error: %w", err)
	}
	return fmt.Errorf("internal error: %v", r)
}
