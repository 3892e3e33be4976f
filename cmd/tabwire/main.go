// tabwire - command line front end for the tabwire codec
//
// Usage:
//
//	tabwire encode [--from json|yaml] [--canonical] [file]   Document to wire text
//	tabwire decode [--to json|yaml] [file]                   Wire text to document
//	tabwire frame [--chunk N] [--crc] [--zstd] [file]        Document to TWS1 frames
//	tabwire unframe [--to json|yaml] [file]                  TWS1 frames to documents
//	tabwire batch --out DIR files...                         Encode many documents
//	tabwire size [--md] files...                             Compare sizes with JSON
//	tabwire version                                          Print version info
//
// If no file is given, input is read from stdin.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/urfave/cli"

	"github.com/Neumenon/tabwire/tabwire"
)

// appVersion can be overridden at build time with
// -ldflags="-X main.appVersion=..."
var appVersion = "0.1.0"

var log = logger.GetOrCreate("cmd/tabwire")

var (
	helpTemplate = `NAME:
   {{.Name}} - {{.Usage}}
USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}} command [command options] [arguments...]
   {{if .Commands}}
COMMANDS:
   {{range .Commands}}{{join .Names ", "}}{{ "\t" }}{{.Usage}}
   {{end}}{{end}}{{if .VisibleFlags}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}{{end}}
VERSION:
   {{.Version}}
`

	// configFile defines a flag for the optional TOML configuration file
	configFile = cli.StringFlag{
		Name:  "config",
		Usage: "The `[path]` for an optional TOML file with MaxDepth, Canonical, ChunkSize, CRC, Compress and Workers settings",
	}
	// logLevel defines the logger level
	logLevel = cli.StringFlag{
		Name: "log-level",
		Usage: "This flag specifies the logger `level(s)`. It can contain multiple comma-separated values, " +
			"for example *:INFO,stream:DEBUG",
		Value: "*:" + logger.LogInfo.String(),
	}
	maxDepth = cli.IntFlag{
		Name:  "max-depth",
		Usage: "Maximum table nesting depth accepted when encoding or decoding",
		Value: tabwire.DefaultMaxDepth,
	}

	fromFormat = cli.StringFlag{
		Name:  "from",
		Usage: "Input document `format`: json or yaml (default: from the file extension)",
	}
	toFormat = cli.StringFlag{
		Name:  "to",
		Usage: "Output document `format`: json or yaml",
		Value: formatJSON,
	}
	canonical = cli.BoolFlag{
		Name:  "canonical",
		Usage: "Write table entries in canonical key order",
	}
	chunkSize = cli.IntFlag{
		Name:  "chunk",
		Usage: "Maximum payload `bytes` per frame (0 writes a single frame)",
	}
	withCRC = cli.BoolFlag{
		Name:  "crc",
		Usage: "Add a CRC-32 to every frame",
	}
	compress = cli.BoolFlag{
		Name:  "zstd",
		Usage: "Compress frame payloads with zstd",
	}
	streamID = cli.Uint64Flag{
		Name:  "sid",
		Usage: "Stream `id` written in frame headers",
	}
	outDir = cli.StringFlag{
		Name:  "out",
		Usage: "Output `directory` for encoded files",
		Value: ".",
	}
	workers = cli.IntFlag{
		Name:  "workers",
		Usage: "Number of files encoded concurrently",
	}
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	cli.AppHelpTemplate = helpTemplate
	app.Name = "tabwire"
	app.Version = fmt.Sprintf("%s (wire format v%d)", appVersion, tabwire.Version)
	app.Usage = "Encode and decode nested tables in the tabwire text format"
	app.Flags = []cli.Flag{configFile, logLevel, maxDepth}
	app.Before = func(c *cli.Context) error {
		return logger.SetLogLevel(c.GlobalString(logLevel.Name))
	}
	app.Commands = []cli.Command{
		{
			Name:      "encode",
			Usage:     "Convert a JSON or YAML document to wire text",
			ArgsUsage: "[file]",
			Flags:     []cli.Flag{fromFormat, canonical},
			Action:    cmdEncode,
		},
		{
			Name:      "decode",
			Usage:     "Convert wire text to a JSON or YAML document",
			ArgsUsage: "[file]",
			Flags:     []cli.Flag{toFormat},
			Action:    cmdDecode,
		},
		{
			Name:      "frame",
			Usage:     "Encode a document and write it as TWS1 frames",
			ArgsUsage: "[file]",
			Flags:     []cli.Flag{fromFormat, canonical, chunkSize, withCRC, compress, streamID},
			Action:    cmdFrame,
		},
		{
			Name:      "unframe",
			Usage:     "Read TWS1 frames, reassemble and print each value",
			ArgsUsage: "[file]",
			Flags:     []cli.Flag{toFormat},
			Action:    cmdUnframe,
		},
		{
			Name:      "batch",
			Usage:     "Encode many documents concurrently",
			ArgsUsage: "files...",
			Flags:     []cli.Flag{outDir, canonical, workers},
			Action:    cmdBatch,
		},
		{
			Name:      "size",
			Usage:     "Compare encoded sizes against minified JSON",
			ArgsUsage: "files...",
			Flags:     []cli.Flag{markdown, canonical},
			Action:    cmdSize,
		},
		{
			Name:  "version",
			Usage: "Print version info",
			Action: func(c *cli.Context) error {
				_, err := fmt.Fprintf(c.App.Writer, "tabwire %s\n", c.App.Version)
				return err
			},
		},
	}
	return app
}

// setup loads the configuration and applies the command line overrides.
func setup(c *cli.Context) (*Config, error) {
	cfg, err := loadConfig(c.GlobalString(configFile.Name))
	if err != nil {
		return nil, err
	}
	applyFlags(c, cfg)
	return cfg, nil
}

// openInput returns the file named by the first argument, or stdin.
func openInput(c *cli.Context) (io.ReadCloser, string, error) {
	name := c.Args().First()
	if name == "" || name == "-" {
		return io.NopCloser(os.Stdin), "", nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, "", err
	}
	return f, name, nil
}

func readInput(c *cli.Context) ([]byte, string, error) {
	in, name, err := openInput(c)
	if err != nil {
		return nil, "", err
	}
	defer in.Close()
	data, err := io.ReadAll(in)
	return data, name, err
}

func inputFormat(c *cli.Context, name string) string {
	if f := c.String(fromFormat.Name); f != "" {
		return f
	}
	return formatFor(name)
}

func readDocument(c *cli.Context) (tabwire.Value, error) {
	data, name, err := readInput(c)
	if err != nil {
		return tabwire.Nil(), err
	}
	return parseDocument(data, inputFormat(c, name))
}

// readWire reads wire text. The format never produces whitespace, so
// surrounding whitespace from files and pipes is dropped.
func readWire(c *cli.Context) (string, error) {
	data, _, err := readInput(c)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
