package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/logicossoftware/go-ggmf"
)

func rewriteCmd(st *state) *cli.Command {
	var (
		exact bool
		wf    writeFlags
	)
	return &cli.Command{
		Name:      "rewrite",
		Usage:     "Re-encode a container with new compression, alignment or checksum settings",
		ArgsUsage: "<in.ggmf> <out.ggmf>",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{Name: "copy", Usage: "copy byte for byte, verifying payloads on the way", Destination: &exact},
		}, wf.flags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			inPath, outPath := cmd.Args().Get(0), cmd.Args().Get(1)
			if inPath == "" || outPath == "" {
				return fmt.Errorf("rewrite: need <in> and <out> arguments")
			}
			in, err := os.Open(inPath)
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := os.Create(outPath)
			if err != nil {
				return err
			}

			var (
				doc *ggmf.Document
				n   int64
			)
			if exact {
				doc, n, err = ggmf.Rewrite(out, in, st.readOptions()...)
			} else {
				var opts []ggmf.WriteOption
				if opts, err = wf.options(cmd, st); err == nil {
					opts = append(opts, ggmf.WithTranscodeRead(st.readOptions()...))
					doc, err = ggmf.Transcode(out, in, opts...)
				}
			}
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(outPath)
				return fmt.Errorf("rewrite %s: %w", inPath, err)
			}
			w := cmd.Root().Writer
			if exact {
				fmt.Fprintf(w, "copied %d bytes to %s (%d tensors)\n", n, outPath, len(doc.Entries))
				return nil
			}
			fmt.Fprintf(w, "wrote %s: %d tensors, alignment %d, checksums %v\n", outPath, len(doc.Entries), doc.Alignment, doc.HasChecksums())
			return nil
		},
	}
}
