package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/Neumenon/tabwire/stream"
	"github.com/Neumenon/tabwire/tabwire"
)

// wireExt is appended to batch output files.
const wireExt = ".tw"

func cmdEncode(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	v, err := readDocument(c)
	if err != nil {
		return err
	}
	text, err := cfg.codec().Serialize(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, text)
	return err
}

func cmdDecode(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	text, err := readWire(c)
	if err != nil {
		return err
	}
	v, err := cfg.codec().Unserialize(text)
	if err != nil {
		return err
	}
	out, err := renderDocument(v, c.String(toFormat.Name))
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(out)
	return err
}

func cmdFrame(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	v, err := readDocument(c)
	if err != nil {
		return err
	}
	return writeFramed(c.App.Writer, cfg, c.Uint64(streamID.Name), v)
}

// writeFramed encodes v and writes it as chunk frames, the last one carrying
// the state hash.
func writeFramed(w io.Writer, cfg *Config, sid uint64, v tabwire.Value) error {
	frames, err := stream.SplitValue(cfg.codec(), sid, 0, v, cfg.ChunkSize)
	if err != nil {
		return err
	}

	var opts []stream.WriterOption
	if cfg.CRC {
		opts = append(opts, stream.WithCRC())
	}
	if cfg.Compress {
		opts = append(opts, stream.WithCompression(zstd.SpeedDefault))
	}
	fw, err := stream.NewWriter(w, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := fw.Close(); errClose != nil {
			log.Warn("cannot close frame writer", "error", errClose.Error())
		}
	}()

	log.Debug("writing frames", "sid", sid, "frames", len(frames), "crc", cfg.CRC, "zstd", cfg.Compress)
	return fw.WriteFrames(frames)
}

func cmdUnframe(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	in, _, err := openInput(c)
	if err != nil {
		return err
	}
	defer in.Close()

	return unframe(in, c.App.Writer, cfg, c.String(toFormat.Name))
}

// unframe reassembles every value found in r and renders it to w. A
// malformed or out of order frame aborts; remote error frames are logged
// and skipped.
func unframe(r io.Reader, w io.Writer, cfg *Config, format string) error {
	reader := stream.NewReader(r)
	defer reader.Close()
	asm := stream.NewAssembler(cfg.codec())

	frameNum, values := 0, 0
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "frame %d", frameNum)
		}
		frameNum++

		msg, err := asm.Process(frame)
		var remote *stream.RemoteError
		if errors.As(err, &remote) {
			log.Warn("remote error", "sid", remote.SID, "seq", remote.Seq, "message", remote.Msg)
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "frame %d", frameNum)
		}
		if msg == nil {
			continue
		}

		out, err := renderDocument(msg.Value, format)
		if err != nil {
			return errors.Wrapf(err, "sid %d seq %d", msg.SID, msg.Seq)
		}
		if _, err = w.Write(out); err != nil {
			return err
		}
		values++
	}

	log.Debug("unframed", "frames", frameNum, "values", values)
	return nil
}

func cmdBatch(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	if !c.Args().Present() {
		return errors.New("batch: no input files")
	}
	return encodeFiles(context.Background(), cfg, c.Args(), c.String(outDir.Name))
}

// encodeFiles encodes every file into dir, running at most cfg.Workers
// encodings at once. The first failure cancels the files not yet started.
func encodeFiles(ctx context.Context, cfg *Config, files []string, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	codec := cfg.codec()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))

	for _, name := range files {
		name := name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return encodeFile(codec, name, dir)
		})
	}
	return g.Wait()
}

func encodeFile(codec *tabwire.Codec, name, dir string) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	v, err := parseDocument(data, formatFor(name))
	if err != nil {
		return errors.Wrap(err, name)
	}
	text, err := codec.Serialize(v)
	if err != nil {
		return errors.Wrap(err, name)
	}

	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	out := filepath.Join(dir, base+wireExt)
	if err = os.WriteFile(out, []byte(text+"\n"), 0o644); err != nil {
		return err
	}
	log.Info("encoded", "input", name, "output", out, "bytes", len(text))
	return nil
}
