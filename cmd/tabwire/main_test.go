package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Neumenon/tabwire/stream"
	"github.com/Neumenon/tabwire/tabwire"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	dir := t.TempDir()
	path := writeFile(t, dir, "tabwire.toml", `
MaxDepth = 64
Canonical = true
ChunkSize = 128
CRC = true
Workers = 0
`)
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.MaxDepth)
	assert.True(t, cfg.Canonical)
	assert.Equal(t, 128, cfg.ChunkSize)
	assert.True(t, cfg.CRC)
	assert.False(t, cfg.Compress)
	assert.Equal(t, 1, cfg.Workers)

	bad := writeFile(t, dir, "bad.toml", "MaxDepth = -1\n")
	_, err = loadConfig(bad)
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestParseAndRenderDocument(t *testing.T) {
	v, err := parseDocument([]byte(`{"name":"widget","tags":["a","b"],"price":1.5,"gone":null}`), formatJSON)
	require.NoError(t, err)

	tab := v.AsTable()
	require.NotNil(t, tab)
	assert.Equal(t, 3, tab.Len())
	assert.Equal(t, 2, tab.Get(tabwire.Str("tags")).AsTable().ArrayLen())

	out, err := renderDocument(v, formatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"widget","tags":["a","b"],"price":1.5}`, string(out))

	y, err := parseDocument([]byte("name: widget\ntags:\n  - a\n  - b\nprice: 1.5\n"), formatYAML)
	require.NoError(t, err)
	assert.True(t, tabwire.Equal(v, y))

	out, err = renderDocument(y, formatYAML)
	require.NoError(t, err)
	assert.Equal(t, "name: widget\nprice: 1.5\ntags:\n  - a\n  - b\n", string(out))

	_, err = parseDocument([]byte("{"), formatJSON)
	assert.Error(t, err)
	_, err = parseDocument([]byte("{}"), "xml")
	assert.Error(t, err)
}

func TestRenderDocument_Keys(t *testing.T) {
	tab := tabwire.NewTable()
	tab.MustSet(tabwire.Int(2), tabwire.Str("two"))
	tab.MustSet(tabwire.Bool(true), tabwire.Num(0.25))
	tab.MustSet(tabwire.Str("s"), tabwire.Tab(tabwire.NewTable()))

	out, err := renderDocument(tabwire.Tab(tab), formatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2":"two","true":0.25,"s":{}}`, string(out))
}

func TestRenderDocument_SharedAndCyclic(t *testing.T) {
	shared := tabwire.List(tabwire.Int(1))
	root := tabwire.List(tabwire.Tab(shared), tabwire.Tab(shared))

	out, err := renderDocument(tabwire.Tab(root), formatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `[[1],[1]]`, string(out))

	root.MustSet(tabwire.Str("self"), tabwire.Tab(root))
	_, err = renderDocument(tabwire.Tab(root), formatJSON)
	assert.Error(t, err)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, formatYAML, formatFor("a/b.YML"))
	assert.Equal(t, formatYAML, formatFor("doc.yaml"))
	assert.Equal(t, formatJSON, formatFor("doc.json"))
	assert.Equal(t, formatJSON, formatFor(""))
}

func TestFrameUnframe(t *testing.T) {
	v, err := parseDocument([]byte(`{"items":[{"id":1,"label":"first item"},{"id":2,"label":"second item"}]}`), formatJSON)
	require.NoError(t, err)

	for _, cfg := range []*Config{
		{MaxDepth: 16, ChunkSize: 7},
		{MaxDepth: 16, ChunkSize: 0, CRC: true, Compress: true},
	} {
		var framed bytes.Buffer
		require.NoError(t, writeFramed(&framed, cfg, 5, v))
		assert.True(t, strings.HasPrefix(framed.String(), "@frame{v=1 sid=5 seq=0 kind=chunk"))

		var out bytes.Buffer
		require.NoError(t, unframe(&framed, &out, cfg, formatJSON))
		assert.JSONEq(t, `{"items":[{"id":1,"label":"first item"},{"id":2,"label":"second item"}]}`, out.String())
	}
}

func TestUnframe_SkipsRemoteErrors(t *testing.T) {
	var in bytes.Buffer
	w, err := stream.NewWriter(&in)
	require.NoError(t, err)
	require.NoError(t, w.WriteErr(1, 0, "upstream failed"))
	require.NoError(t, w.WriteDoc(1, 1, "1:T1t2fz"))

	var out bytes.Buffer
	require.NoError(t, unframe(&in, &out, defaultConfig(), formatJSON))
	assert.JSONEq(t, `[true,false]`, out.String())

	in.Reset()
	require.NoError(t, w.WriteDoc(1, 3, "1:t"))
	require.NoError(t, w.WriteDoc(1, 5, "1:t"))
	err = unframe(&in, &out, defaultConfig(), formatJSON)
	var seqErr *stream.SequenceError
	assert.ErrorAs(t, err, &seqErr)
}

func TestEncodeFiles(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "encoded")

	files := []string{
		writeFile(t, in, "a.json", `{"x":true}`),
		writeFile(t, in, "b.yaml", "- 45\n- FooBar\n"),
	}
	cfg := defaultConfig()
	cfg.Workers = 2
	require.NoError(t, encodeFiles(context.Background(), cfg, files, out))

	a, err := os.ReadFile(filepath.Join(out, "a"+wireExt))
	require.NoError(t, err)
	assert.Equal(t, "1:Tsx:tz\n", string(a))

	b, err := os.ReadFile(filepath.Join(out, "b"+wireExt))
	require.NoError(t, err)
	assert.Equal(t, "1:T1n45:2sFooBar:z\n", string(b))

	bad := writeFile(t, in, "bad.json", "{")
	err = encodeFiles(context.Background(), cfg, []string{bad}, out)
	assert.Error(t, err)
}

func TestApp_Commands(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "doc.json", `{"b":1,"a":2}`)

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		require.NoError(t, app.Run(append([]string{"tabwire"}, args...)))
		return out.String()
	}

	assert.Equal(t, "1:Tsa:2sb:1z\n", run("encode", "--canonical", doc))

	wire := writeFile(t, dir, "doc.tw", "1:Tsa:2sb:1z\n")
	assert.JSONEq(t, `{"a":2,"b":1}`, run("decode", wire))
	assert.Contains(t, run("version"), "wire format v1")
}

func TestMeasureFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "list.json", `["repeated value","repeated value","repeated value"]`),
		writeFile(t, dir, "broken.json", `{`),
	}

	results, err := measureFiles(tabwire.New(), files)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "list.json", r.Name)
	assert.Equal(t, len(`["repeated value","repeated value","repeated value"]`), r.JSONBytes)
	assert.Equal(t, len("1:T1~repeated~`value:2<0:3<0:z"), r.WireBytes)
	assert.Equal(t, r.JSONBytes-r.WireBytes, r.BytesSaved)
	assert.Positive(t, r.ZstdBytes)

	var csv bytes.Buffer
	writeCSV(&csv, results)
	assert.Equal(t, "name,json_bytes,wire_bytes,zstd_bytes,bytes_saved,bytes_pct\n", strings.SplitAfter(csv.String(), "\n")[0])

	var md bytes.Buffer
	writeMarkdown(&md, results)
	assert.Contains(t, md.String(), "| list.json |")
}
