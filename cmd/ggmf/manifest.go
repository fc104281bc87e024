package main

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-json"

	"github.com/logicossoftware/go-ggmf/internal/jsonmeta"
)

const manifestName = "manifest.json"

// manifest describes an unpacked container: metadata plus one payload file
// per tensor, relative to the manifest's directory.
type manifest struct {
	Version   uint32                    `json:"version"`
	Alignment uint32                    `json:"alignment"`
	Checksums bool                      `json:"checksums"`
	Metadata  map[string]jsonmeta.Value `json:"metadata"`
	Tensors   []manifestTensor          `json:"tensors"`
}

type manifestTensor struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Shape []uint64 `json:"shape"`
	File  string   `json:"file"`
	Size  uint64   `json:"size,omitempty"`
}

func readManifest(path string) (*manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}

func writeManifest(dir string, m *manifest) (string, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, manifestName)
	return p, os.WriteFile(p, b, 0o644)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
