package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/logicossoftware/go-ggmf"
)

// validationResult is the JSON output of the validate command.
type validationResult struct {
	Path      string `json:"path"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
	Tensors   int    `json:"tensors"`
	DataSize  uint64 `json:"data_size"`
	Checksums string `json:"checksums"`
}

func validateCmd(st *state) *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:      "validate",
		Usage:     "Decode a container and read every payload, verifying checksums when present",
		ArgsUsage: "<file.ggmf>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "emit a JSON result", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("validate: missing file argument")
			}
			res, err := validateFile(path, st)
			w := cmd.Root().Writer
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(res); encErr != nil {
					return encErr
				}
			} else if err == nil {
				fmt.Fprintf(w, "%s: ok (%d tensors, %d data bytes, checksums %s)\n", path, res.Tensors, res.DataSize, res.Checksums)
			}
			return err
		},
	}
}

func validateFile(path string, st *state) (*validationResult, error) {
	res := &validationResult{Path: path, Checksums: "absent"}
	fail := func(err error) (*validationResult, error) {
		res.Error = err.Error()
		return res, fmt.Errorf("%s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(err)
	}
	defer f.Close()

	doc, err := ggmf.Decode(f, st.readOptions()...)
	if err != nil {
		return fail(err)
	}
	res.Tensors = len(doc.Entries)
	res.DataSize = doc.DataSize

	if doc.HasChecksums() {
		if err := ggmf.Verify(f, doc); err != nil {
			return fail(err)
		}
		res.Checksums = "verified"
	} else {
		for _, e := range doc.Entries {
			sr, err := doc.SectionReader(f, e.Name)
			if err != nil {
				return fail(err)
			}
			if _, err := io.Copy(io.Discard, sr); err != nil {
				return fail(err)
			}
		}
	}
	res.Valid = true
	return res, nil
}

func verifyCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check every payload against the checksum trailer",
		ArgsUsage: "<file.ggmf>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("verify: missing file argument")
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
			if err := ggmf.Verify(f, doc); err != nil {
				if errors.Is(err, ggmf.ErrNoChecksums) {
					return fmt.Errorf("%s: no checksum trailer; rewrite with --checksums to add one", path)
				}
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(cmd.Root().Writer, "%s: %d payloads verified\n", path, len(doc.Entries))
			return nil
		},
	}
}
