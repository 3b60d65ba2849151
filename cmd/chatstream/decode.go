package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/chatstream/cancellation"
	"github.com/kbukum/chatstream/config"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/sse"
	"github.com/kbukum/chatstream/stream"
)

const (
	formatSSE     = "sse"
	formatSSEJSON = "sse-json"
	formatLines   = "lines"
)

type decodeCommander struct {
	format string
	event  string
	stream config.StreamConfig
	debug  bool
}

const decodeLongDesc = `Decode a captured stream and print one JSON value per line.

Formats:
  sse        every server-sent event as {"event","data","raw"}
  sse-json   the JSON payload of each event's data, up to the sentinel
  lines      newline-delimited JSON, with the data prefix stripped

Reads stdin when no file is given or the file is "-".`

func newDecodeCmd() *cobra.Command {
	cmder := &decodeCommander{}

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode a captured SSE or NDJSON stream",
		Long:  decodeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			in, closeIn, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer closeIn()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, in, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.format, "format", "f", formatSSEJSON, "Input format: sse, sse-json or lines")
	cmd.Flags().StringVarP(&cmder.event, "event", "e", "", "Keep only SSE events of this type (sse format)")
	cmd.Flags().IntVar(&cmder.stream.ChunkSize, "chunk-size", 0, "Read size in bytes")
	cmd.Flags().StringVar(&cmder.stream.Sentinel, "sentinel", "", `End-of-stream marker (default "[DONE]")`)
	cmd.Flags().StringVar(&cmder.stream.DataPrefix, "prefix", "", `Line prefix stripped before decoding (default "data: ")`)
	return cmd
}

func openInput(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func (c *decodeCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	level := "warn"
	if c.debug {
		level = "debug"
	}
	logger.Init(logger.Config{Level: level, Output: "stderr"})
	logger.RegisterDefaults()
	log := logger.Get("decode")

	c.stream.ApplyDefaults()
	opts := append(c.stream.Options(), stream.WithLogger(logger.Get(logger.ComponentStream)))

	token := cancellation.New(ctx)
	defer token.Release()

	r, err := c.open(ctx, in, token, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	n, err := io.Copy(out, r)
	log.Debug("Decode finished", map[string]interface{}{
		"format": c.format,
		"bytes":  n,
	})
	return err
}

func (c *decodeCommander) open(ctx context.Context, in io.Reader, token *cancellation.Token, opts []stream.Option) (io.ReadCloser, error) {
	switch c.format {
	case formatSSE:
		s, err := stream.FromSSE(in, token, opts...)
		if err != nil {
			return nil, err
		}
		if c.event != "" {
			s = stream.Filter(s, func(ev sse.Event) bool { return ev.Type() == c.event })
		}
		return s.ToReader(ctx), nil
	case formatSSEJSON:
		s, err := stream.FromSSEJSON[json.RawMessage](in, token, opts...)
		if err != nil {
			return nil, err
		}
		return s.ToReader(ctx), nil
	case formatLines:
		return stream.FromLines[json.RawMessage](in, token, opts...).ToReader(ctx), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want %s, %s or %s)", c.format, formatSSE, formatSSEJSON, formatLines)
	}
}
