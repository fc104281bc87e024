package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/logicossoftware/go-ggmf"
	"github.com/logicossoftware/go-ggmf/internal/jsonmeta"
)

func unpackCmd(st *state) *cli.Command {
	var outDir string
	return &cli.Command{
		Name:      "unpack",
		Usage:     "Extract every payload and a manifest.json describing the container",
		ArgsUsage: "<file.ggmf>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory", Value: "out", Destination: &outDir},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("unpack: missing file argument")
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			doc, err := ggmf.Decode(f, st.readOptions()...)
			if err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			md, err := jsonmeta.FromMetadata(doc.Metadata)
			if err != nil {
				return err
			}
			m := &manifest{
				Version:   doc.Version,
				Alignment: doc.Alignment,
				Checksums: doc.HasChecksums(),
				Metadata:  md,
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			w := cmd.Root().Writer
			for i, e := range doc.Entries {
				rel := payloadFile(i, e.Name)
				p := filepath.Join(outDir, rel)
				if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
					return err
				}
				if err := extract(doc, f, e.Name, p); err != nil {
					return err
				}
				m.Tensors = append(m.Tensors, manifestTensor{
					Name:  e.Name,
					Type:  e.Type.String(),
					Shape: e.Shape,
					File:  filepath.ToSlash(rel),
					Size:  e.Size,
				})
				st.log.Debug("ggmf: extracted", "name", e.Name, "file", p, "size", e.Size)
			}

			mp, err := writeManifest(outDir, m)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "unpacked %d tensors to %s (manifest %s)\n", len(doc.Entries), outDir, mp)
			return nil
		},
	}
}

// payloadFile names the output file for entry i. Names that are not safe
// relative paths fall back to their index.
func payloadFile(i int, name string) string {
	if filepath.IsLocal(name) && name != manifestName {
		return filepath.FromSlash(name) + ".bin"
	}
	return fmt.Sprintf("tensor-%04d.bin", i)
}

func extract(doc *ggmf.Document, ra io.ReaderAt, name, dst string) error {
	sr, err := doc.SectionReader(ra, name)
	if err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, sr); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", name, err)
	}
	return out.Close()
}
