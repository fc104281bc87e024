package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/logicossoftware/go-ggmf"
	"github.com/logicossoftware/go-ggmf/internal/jsonmeta"
)

// uuidKey identifies a packed container across rewrites.
const uuidKey = "general.uuid"

func packCmd(st *state) *cli.Command {
	var (
		manifestPath string
		rawDir       string
		outPath      string
		noUUID       bool
		wf           writeFlags
	)
	return &cli.Command{
		Name:  "pack",
		Usage: "Build a container from a manifest.json and its payload files, or from a directory of raw blobs",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "manifest", Aliases: []string{"m"}, Usage: "manifest.json, or a directory holding one", Destination: &manifestPath},
			&cli.StringFlag{Name: "dir", Usage: "add every file under this directory as a 1-D I8 tensor", Destination: &rawDir},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output .ggmf file", Value: "model.ggmf", Destination: &outPath},
			&cli.BoolFlag{Name: "no-uuid", Usage: "do not stamp " + uuidKey, Destination: &noUUID},
		}, wf.flags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if manifestPath == "" && rawDir == "" {
				return fmt.Errorf("pack: --manifest or --dir is required")
			}
			m := &manifest{}
			files := make(map[string]string)
			if manifestPath != "" {
				if fi, err := os.Stat(manifestPath); err == nil && fi.IsDir() {
					manifestPath = filepath.Join(manifestPath, manifestName)
				}
				var err error
				if m, err = readManifest(manifestPath); err != nil {
					return err
				}
				root := filepath.Dir(manifestPath)
				for _, t := range m.Tensors {
					files[t.Name] = filepath.Join(root, filepath.FromSlash(t.File))
				}
			}
			doc, err := documentFromManifest(m)
			if err != nil {
				return err
			}
			if rawDir != "" {
				if err := addRawFiles(doc, rawDir, files, st); err != nil {
					return err
				}
			}
			if _, ok := doc.Metadata[uuidKey]; !ok && !noUUID {
				doc.Metadata[uuidKey] = ggmf.String(uuid.NewString())
			}

			opts := []ggmf.WriteOption{ggmf.WithChecksums(m.Checksums)}
			extra, err := wf.options(cmd, st)
			if err != nil {
				return err
			}
			opts = append(opts, extra...)

			if err := encodeFile(outPath, doc, files, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "packed %d tensors into %s (%d data bytes)\n", len(doc.Entries), outPath, doc.DataSize)
			return nil
		},
	}
}

func documentFromManifest(m *manifest) (*ggmf.Document, error) {
	doc := ggmf.NewDocument()
	if m.Version != 0 {
		doc.Version = m.Version
	}
	if m.Alignment != 0 {
		doc.Alignment = m.Alignment
	}
	md, err := jsonmeta.ToMetadata(m.Metadata)
	if err != nil {
		return nil, err
	}
	doc.Metadata = md
	for _, t := range m.Tensors {
		typ, ok := ggmf.ParseElementType(strings.ToUpper(t.Type))
		if !ok {
			return nil, fmt.Errorf("tensor %q: unknown type %q", t.Name, t.Type)
		}
		if t.File == "" {
			return nil, fmt.Errorf("tensor %q: no payload file", t.Name)
		}
		e, err := doc.AddEntry(t.Name, typ, t.Shape...)
		if err != nil {
			return nil, err
		}
		if t.Size != 0 && t.Size != e.Size {
			return nil, fmt.Errorf("tensor %q: manifest size %d, shape needs %d", t.Name, t.Size, e.Size)
		}
	}
	return doc, nil
}

// addRawFiles appends every non-empty file under dir as an I8 tensor named by
// its slash-separated relative path. Names already in doc are skipped.
func addRawFiles(doc *ggmf.Document, dir string, files map[string]string, st *state) error {
	rels, err := collectFiles(dir, func(rel string, d fs.DirEntry) bool {
		return d.Type().IsRegular() && filepath.Base(rel) != manifestName
	})
	if err != nil {
		return fmt.Errorf("collect %s: %w", dir, err)
	}
	for _, rel := range rels {
		name := filepath.ToSlash(rel)
		if _, ok := files[name]; ok {
			continue
		}
		p := filepath.Join(dir, rel)
		fi, err := os.Stat(p)
		if err != nil {
			return err
		}
		if fi.Size() == 0 {
			st.log.Debug("ggmf: skipping empty file", "path", p)
			continue
		}
		if _, err := doc.AddEntry(name, ggmf.TypeI8, uint64(fi.Size())); err != nil {
			return err
		}
		files[name] = p
	}
	return nil
}

// encodeFile writes doc to path, streaming each payload from files. A failed
// encode removes the partial output.
func encodeFile(path string, doc *ggmf.Document, files map[string]string, opts []ggmf.WriteOption) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return ggmf.Encode(out, doc, func(e ggmf.Entry, w io.Writer) error {
		return copyFile(w, files[e.Name])
	}, opts...)
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// collectFiles lists regular files under root, relative to it, for which keep
// returns true.
func collectFiles(root string, keep func(rel string, d fs.DirEntry) bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if keep(rel, d) {
			out = append(out, rel)
		}
		return nil
	})
	return out, err
}
