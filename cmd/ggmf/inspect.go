package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/logicossoftware/go-ggmf"
	"github.com/logicossoftware/go-ggmf/internal/jsonmeta"
)

type inspectReport struct {
	Path         string                    `json:"path"`
	Version      uint32                    `json:"version"`
	Alignment    uint32                    `json:"alignment"`
	Flags        uint32                    `json:"flags"`
	Checksums    bool                      `json:"checksums"`
	DataOffset   uint64                    `json:"data_offset"`
	DataSize     uint64                    `json:"data_size"`
	HeaderDigest string                    `json:"header_digest"`
	Metadata     map[string]jsonmeta.Value `json:"metadata"`
	Tensors      []tensorInfo              `json:"tensors"`
}

type tensorInfo struct {
	Name     string       `json:"name"`
	Type     string       `json:"type"`
	Shape    []uint64     `json:"shape"`
	Offset   uint64       `json:"offset"`
	Size     uint64       `json:"size"`
	Elements uint64       `json:"elements"`
	Stats    *tensorStats `json:"stats,omitempty"`
}

func inspectCmd(st *state) *cli.Command {
	var (
		asJSON    bool
		withStats bool
		filter    string
		limit     int64
	)
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the header, metadata and tensor table of a container",
		ArgsUsage: "<file.ggmf>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "emit a JSON report", Destination: &asJSON},
			&cli.BoolFlag{Name: "stats", Usage: "compute min/max/mean/stddev of float tensors", Destination: &withStats},
			&cli.StringFlag{Name: "filter", Usage: "substring filter for tensor names", Destination: &filter},
			&cli.Int64Flag{Name: "limit", Usage: "limit tensor listing (0 = no limit)", Destination: &limit},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("inspect: missing file argument")
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
			rep, err := buildReport(path, doc)
			if err != nil {
				return err
			}

			var tensors []tensorInfo
			for i, e := range doc.Entries {
				if filter != "" && !strings.Contains(e.Name, filter) {
					continue
				}
				if limit > 0 && int64(len(tensors)) >= limit {
					break
				}
				ti := rep.Tensors[i]
				if withStats && hasFloatValues(e.Type) {
					p, err := doc.ReadEntry(f, e.Name)
					if err != nil {
						return err
					}
					ti.Stats = summarize(e.Type, p)
				}
				tensors = append(tensors, ti)
			}
			rep.Tensors = tensors

			w := cmd.Root().Writer
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return printReport(w, rep)
		},
	}
}

func buildReport(path string, doc *ggmf.Document) (*inspectReport, error) {
	md, err := jsonmeta.FromMetadata(doc.Metadata)
	if err != nil {
		return nil, err
	}
	rep := &inspectReport{
		Path:         path,
		Version:      doc.Version,
		Alignment:    doc.Alignment,
		Flags:        doc.Flags,
		Checksums:    doc.HasChecksums(),
		DataOffset:   doc.DataOffset,
		DataSize:     doc.DataSize,
		HeaderDigest: fmt.Sprintf("%016x", doc.HeaderDigest),
		Metadata:     md,
		Tensors:      make([]tensorInfo, len(doc.Entries)),
	}
	for i, e := range doc.Entries {
		rep.Tensors[i] = tensorInfo{
			Name:     e.Name,
			Type:     e.Type.String(),
			Shape:    e.Shape,
			Offset:   e.Offset,
			Size:     e.Size,
			Elements: e.Elements(),
		}
	}
	return rep, nil
}

func printReport(w io.Writer, rep *inspectReport) error {
	fmt.Fprintf(w, "file:          %s\n", rep.Path)
	fmt.Fprintf(w, "version:       %d\n", rep.Version)
	fmt.Fprintf(w, "alignment:     %d\n", rep.Alignment)
	fmt.Fprintf(w, "checksums:     %v\n", rep.Checksums)
	fmt.Fprintf(w, "data:          %d bytes at %d\n", rep.DataSize, rep.DataOffset)
	fmt.Fprintf(w, "header digest: %s\n", rep.HeaderDigest)

	fmt.Fprintf(w, "\nmetadata (%d keys):\n", len(rep.Metadata))
	for _, k := range sortedKeys(rep.Metadata) {
		v := rep.Metadata[k]
		typ := v.Type
		if v.Elem != "" {
			typ += "[" + v.Elem + "]"
		}
		fmt.Fprintf(w, "  %s (%s) = %s\n", k, typ, preview(string(v.Value), 80))
	}

	fmt.Fprintf(w, "\ntensors (%d):\n", len(rep.Tensors))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tTYPE\tSHAPE\tOFFSET\tSIZE\tSTATS")
	for _, t := range rep.Tensors {
		stats := "-"
		if t.Stats != nil {
			stats = fmt.Sprintf("min=%.4g max=%.4g mean=%.4g std=%.4g", t.Stats.Min, t.Stats.Max, t.Stats.Mean, t.Stats.StdDev)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%v\t%d\t%d\t%s\n", t.Name, t.Type, t.Shape, t.Offset, t.Size, stats)
	}
	return tw.Flush()
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
