package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/Neumenon/tabwire/tabwire"
)

// sizeResult compares the wire size of one document across encodings.
type sizeResult struct {
	Name       string
	JSONBytes  int
	WireBytes  int
	ZstdBytes  int
	BytesSaved int
	BytesPct   float64
}

var markdown = cli.BoolFlag{
	Name:  "md",
	Usage: "Print a markdown report instead of CSV",
}

func cmdSize(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	if !c.Args().Present() {
		return errors.New("size: no input files")
	}

	results, err := measureFiles(cfg.codec(), c.Args())
	if err != nil {
		return err
	}
	if c.Bool(markdown.Name) {
		writeMarkdown(c.App.Writer, results)
		return nil
	}
	writeCSV(c.App.Writer, results)
	return nil
}

func measureFiles(codec *tabwire.Codec, files []string) ([]sizeResult, error) {
	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = zenc.Close()
	}()

	results := make([]sizeResult, 0, len(files))
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		r, err := measure(codec, zenc, filepath.Base(name), data, formatFor(name))
		if err != nil {
			log.Warn("skipping document", "file", name, "error", err.Error())
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func measure(codec *tabwire.Codec, zenc *zstd.Encoder, name string, data []byte, format string) (sizeResult, error) {
	v, err := parseDocument(data, format)
	if err != nil {
		return sizeResult{}, err
	}
	text, err := codec.Serialize(v)
	if err != nil {
		return sizeResult{}, err
	}

	// Minified JSON of the same value for a fair comparison.
	doc, err := toDocument(v, make(map[*tabwire.Table]bool))
	if err != nil {
		return sizeResult{}, err
	}
	jsonMin, err := json.Marshal(doc)
	if err != nil {
		return sizeResult{}, err
	}

	r := sizeResult{
		Name:      name,
		JSONBytes: len(jsonMin),
		WireBytes: len(text),
		ZstdBytes: len(zenc.EncodeAll([]byte(text), nil)),
	}
	r.BytesSaved = r.JSONBytes - r.WireBytes
	if r.JSONBytes > 0 {
		r.BytesPct = float64(r.BytesSaved) / float64(r.JSONBytes) * 100.0
	}
	return r, nil
}

func writeCSV(w io.Writer, results []sizeResult) {
	fmt.Fprintln(w, "name,json_bytes,wire_bytes,zstd_bytes,bytes_saved,bytes_pct")
	for _, r := range results {
		fmt.Fprintf(w, "%s,%d,%d,%d,%d,%.1f\n",
			r.Name, r.JSONBytes, r.WireBytes, r.ZstdBytes, r.BytesSaved, r.BytesPct)
	}
}

func writeMarkdown(w io.Writer, results []sizeResult) {
	var totalJSON, totalWire, totalZstd int
	for _, r := range results {
		totalJSON += r.JSONBytes
		totalWire += r.WireBytes
		totalZstd += r.ZstdBytes
	}

	fmt.Fprintf(w, "# tabwire size report\n\n")
	fmt.Fprintf(w, "**Documents:** %d  \n", len(results))
	fmt.Fprintf(w, "**Wire format:** v%d\n\n", tabwire.Version)

	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Metric | JSON (minified) | tabwire | tabwire+zstd |\n")
	fmt.Fprintf(w, "|--------|-----------------|---------|--------------|\n")
	fmt.Fprintf(w, "| **Bytes** | %d | %d | %d |\n\n", totalJSON, totalWire, totalZstd)

	sorted := make([]sizeResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].BytesPct > sorted[j].BytesPct
	})

	fmt.Fprintf(w, "## Details\n\n")
	fmt.Fprintf(w, "| Document | JSON | tabwire | zstd | Saved |\n")
	fmt.Fprintf(w, "|----------|------|---------|------|-------|\n")
	for _, r := range sorted {
		fmt.Fprintf(w, "| %s | %d | %d | %d | %.1f%% |\n",
			truncateName(r.Name, 25), r.JSONBytes, r.WireBytes, r.ZstdBytes, r.BytesPct)
	}
}

func truncateName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
