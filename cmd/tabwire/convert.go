package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Neumenon/tabwire/tabwire"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// formatFor picks a document format from a file extension, defaulting to
// JSON.
func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

// parseDocument decodes a JSON or YAML document into a Value.
func parseDocument(data []byte, format string) (tabwire.Value, error) {
	var doc any
	switch format {
	case formatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return tabwire.Nil(), errors.Wrap(err, "parse json")
		}
	case formatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return tabwire.Nil(), errors.Wrap(err, "parse yaml")
		}
	default:
		return tabwire.Nil(), errors.Errorf("unknown format %q", format)
	}
	return tabwire.FromNative(doc)
}

// renderDocument writes v as an indented JSON or YAML document. Tables on a
// cycle cannot be represented and fail; shared tables are repeated.
func renderDocument(v tabwire.Value, format string) ([]byte, error) {
	doc, err := toDocument(v, make(map[*tabwire.Table]bool))
	if err != nil {
		return nil, err
	}

	switch format {
	case formatJSON:
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "render json")
		}
		return append(out, '\n'), nil
	case formatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, errors.Wrap(err, "render yaml")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "render yaml")
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.Errorf("unknown format %q", format)
	}
}

// toDocument maps v onto JSON-shaped Go values: sequences with keys 1..n
// become arrays, every other table becomes an object with stringified keys.
func toDocument(v tabwire.Value, active map[*tabwire.Table]bool) (any, error) {
	switch v.Kind() {
	case tabwire.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case tabwire.KindNumber:
		f, _ := v.AsNumber()
		return f, nil
	case tabwire.KindString:
		s, _ := v.AsString()
		return s, nil
	case tabwire.KindTable:
	default:
		return nil, nil
	}

	t := v.AsTable()
	if active[t] {
		return nil, errors.New("cyclic table cannot be rendered as a document")
	}
	active[t] = true
	defer delete(active, t)

	if n := t.ArrayLen(); n > 0 && n == t.Len() {
		out := make([]any, n)
		for i := range out {
			el, err := toDocument(t.Get(tabwire.Int(int64(i+1))), active)
			if err != nil {
				return nil, err
			}
			out[i] = el
		}
		return out, nil
	}

	out := make(map[string]any, t.Len())
	for _, e := range t.Entries() {
		el, err := toDocument(e.Value, active)
		if err != nil {
			return nil, err
		}
		out[keyString(e.Key)] = el
	}
	return out, nil
}

func keyString(k tabwire.Value) string {
	switch k.Kind() {
	case tabwire.KindString:
		s, _ := k.AsString()
		return s
	case tabwire.KindNumber:
		f, _ := k.AsNumber()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case tabwire.KindBool:
		b, _ := k.AsBool()
		return strconv.FormatBool(b)
	default:
		return fmt.Sprintf("%v", k)
	}
}
