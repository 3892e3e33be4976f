package tabwire

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// structTag is the struct tag consulted for field names.
const structTag = "tabwire"

var (
	valueType = reflect.TypeOf(Value{})
	tableType = reflect.TypeOf((*Table)(nil))
	timeType  = reflect.TypeOf(time.Time{})
)

// ============================================================
// Go -> Value
// ============================================================

// FromNative converts a Go value into a Value.
//
// Maps, slices and arrays become tables (slices use keys 1..n), structs
// become tables keyed by field name, pointers are followed. A map, slice or
// pointer reached twice converts to the same *Table, so shared and cyclic
// Go structures stay shared and cyclic. Functions, channels, complex numbers
// and unsafe pointers are rejected with an UnsupportedValueError.
func FromNative(x any) (Value, error) {
	c := &nativeConverter{seen: make(map[identity]*Table)}
	return c.convert(reflect.ValueOf(x), "$")
}

// identity names a Go container for sharing detection.
type identity struct {
	ptr uintptr
	n   int
	typ reflect.Type
}

type nativeConverter struct {
	seen map[identity]*Table
}

func (c *nativeConverter) convert(rv reflect.Value, path string) (Value, error) {
	if !rv.IsValid() {
		return Nil(), nil
	}

	switch rv.Type() {
	case valueType:
		return rv.Interface().(Value), nil
	case tableType:
		return Tab(rv.Interface().(*Table)), nil
	case timeType:
		return Str(rv.Interface().(time.Time).Format(time.RFC3339Nano)), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Num(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Num(rv.Float()), nil
	case reflect.String:
		return Str(rv.String()), nil

	case reflect.Interface:
		if rv.IsNil() {
			return Nil(), nil
		}
		return c.convert(rv.Elem(), path)

	case reflect.Pointer:
		if rv.IsNil() {
			return Nil(), nil
		}
		if rv.Elem().Kind() != reflect.Struct {
			return c.convert(rv.Elem(), path)
		}
		id := identity{ptr: rv.Pointer(), typ: rv.Type()}
		if t, ok := c.seen[id]; ok {
			return Tab(t), nil
		}
		t := NewTable()
		c.seen[id] = t
		return c.fillStruct(t, rv.Elem(), path)

	case reflect.Struct:
		return c.fillStruct(NewTable(), rv, path)

	case reflect.Slice:
		if rv.IsNil() {
			return Nil(), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Str(string(rv.Bytes())), nil
		}
		id := identity{ptr: rv.Pointer(), n: rv.Len(), typ: rv.Type()}
		if t, ok := c.seen[id]; ok {
			return Tab(t), nil
		}
		t := NewTable()
		c.seen[id] = t
		return c.fillList(t, rv, path)

	case reflect.Array:
		return c.fillList(NewTable(), rv, path)

	case reflect.Map:
		if rv.IsNil() {
			return Nil(), nil
		}
		id := identity{ptr: rv.Pointer(), typ: rv.Type()}
		if t, ok := c.seen[id]; ok {
			return Tab(t), nil
		}
		t := NewTable()
		c.seen[id] = t
		return c.fillMap(t, rv, path)
	}

	return Nil(), &UnsupportedValueError{
		Kind:   KindOpaque,
		Path:   path,
		Reason: "go type " + rv.Type().String(),
	}
}

func (c *nativeConverter) fillList(t *Table, rv reflect.Value, path string) (Value, error) {
	for i := 0; i < rv.Len(); i++ {
		v, err := c.convert(rv.Index(i), path+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return Nil(), err
		}
		t.MustSet(Int(int64(i+1)), v)
	}
	return Tab(t), nil
}

func (c *nativeConverter) fillMap(t *Table, rv reflect.Value, path string) (Value, error) {
	iter := rv.MapRange()
	for iter.Next() {
		keyPath := path + "[" + fmt.Sprint(iter.Key().Interface()) + "]"
		k, err := c.convert(iter.Key(), keyPath)
		if err != nil {
			return Nil(), err
		}
		v, err := c.convert(iter.Value(), keyPath)
		if err != nil {
			return Nil(), err
		}
		if err := t.Set(k, v); err != nil {
			return Nil(), &UnsupportedValueError{Kind: k.Kind(), Path: keyPath, Reason: err.Error()}
		}
	}
	return Tab(t), nil
}

func (c *nativeConverter) fillStruct(t *Table, rv reflect.Value, path string) (Value, error) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitEmpty, skip := parseFieldTag(f)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		v, err := c.convert(fv, path+"."+name)
		if err != nil {
			return Nil(), err
		}
		t.MustSet(Str(name), v)
	}
	return Tab(t), nil
}

// parseFieldTag reads `tabwire:"name,omitempty"`; "-" skips the field.
func parseFieldTag(f reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := f.Tag.Get(structTag)
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, opts == "omitempty", false
}

// ============================================================
// Value -> Go
// ============================================================

// ToNative converts v into plain Go values: nil, bool, float64, string,
// []any for tables with keys exactly 1..n, map[string]any for tables whose
// keys are all strings (including empty tables) and map[any]any otherwise.
// Table keys inside a map[any]any stay as Value. Shared tables convert to
// the same Go container.
func ToNative(v Value) any {
	return toNative(v, make(map[*Table]any))
}

func toNative(v Value, done map[*Table]any) any {
	switch v.kind {
	case KindBool:
		return v.boolVal
	case KindNumber:
		return v.numVal
	case KindString:
		return v.strVal
	case KindTable:
		return tableToNative(v.tabVal, done)
	case KindOpaque:
		return v.Host()
	}
	return nil
}

func tableToNative(t *Table, done map[*Table]any) any {
	if out, ok := done[t]; ok {
		return out
	}

	if n := t.ArrayLen(); n > 0 && n == t.Len() {
		out := make([]any, n)
		done[t] = out
		for i := 0; i < n; i++ {
			out[i] = toNative(t.Get(Int(int64(i+1))), done)
		}
		return out
	}

	stringKeys := true
	t.Range(func(k, _ Value) bool {
		stringKeys = k.kind == KindString
		return stringKeys
	})
	if stringKeys {
		out := make(map[string]any, t.Len())
		done[t] = out
		for _, e := range t.entries {
			out[e.Key.strVal] = toNative(e.Value, done)
		}
		return out
	}

	out := make(map[any]any, t.Len())
	done[t] = out
	for _, e := range t.entries {
		var k any = e.Key
		if e.Key.kind != KindTable {
			k = toNative(e.Key, done)
		}
		out[k] = toNative(e.Value, done)
	}
	return out
}

// ============================================================
// Codec entry points for Go values
// ============================================================

// Marshal converts x with FromNative and serializes the result.
func (c *Codec) Marshal(x any) (string, error) {
	v, err := FromNative(x)
	if err != nil {
		return "", errors.Wrap(err, "serialize")
	}
	return c.Serialize(v)
}

// Unmarshal unserializes s and decodes the result into out, which must be a
// pointer. Struct fields are matched by their tabwire tag or name.
func (c *Codec) Unmarshal(s string, out any) error {
	v, err := c.Unserialize(s)
	if err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          structTag,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "unmarshal")
	}
	return errors.Wrap(dec.Decode(ToNative(v)), "unmarshal")
}

// Marshal converts x with FromNative and serializes it with the default codec.
func Marshal(x any) (string, error) {
	return defaultCodec.Marshal(x)
}

// Unmarshal unserializes s into out with the default codec.
func Unmarshal(s string, out any) error {
	return defaultCodec.Unmarshal(s, out)
}
