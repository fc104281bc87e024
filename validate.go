package ggmf

import (
	"cmp"
	"fmt"
	"math/bits"
	"slices"
	"strings"
	"unicode/utf8"
)

// validateDocument checks a document before it is written. Offsets and sizes
// are assigned by layout afterwards, so only naming, types, shapes and
// metadata are checked here.
func validateDocument(doc *Document, limits Limits) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrValidation)
	}
	if doc.Version != 0 && doc.Version != VersionV1 {
		return fmt.Errorf("%w: Version must be %d", ErrValidation, VersionV1)
	}
	if doc.Alignment != 0 && !validAlignment(doc.Alignment) {
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrValidation, doc.Alignment)
	}
	if len(doc.Entries) > limits.MaxEntries {
		return fmt.Errorf("%w: too many entries", ErrLimitExceeded)
	}
	for k := range doc.Metadata {
		if err := validateName(k); err != nil {
			return fmt.Errorf("%w: metadata key: %v", ErrValidation, err)
		}
	}
	seen := make(map[string]struct{}, len(doc.Entries))
	for i, e := range doc.Entries {
		if err := validateName(e.Name); err != nil {
			return fmt.Errorf("%w: entry %d name: %v", ErrValidation, i, err)
		}
		if _, ok := seen[e.Name]; ok {
			return fmt.Errorf("%w: duplicate entry %q", ErrValidation, e.Name)
		}
		seen[e.Name] = struct{}{}
		if len(e.Shape) > limits.MaxDims {
			return fmt.Errorf("%w: entry %q has %d dims", ErrLimitExceeded, e.Name, len(e.Shape))
		}
		size, err := e.Type.ByteSize(e.Shape)
		if err != nil {
			return fmt.Errorf("entry %q: %w", e.Name, err)
		}
		if size > limits.MaxEntryDataSize {
			return fmt.Errorf("%w: entry %q holds %d bytes", ErrLimitExceeded, e.Name, size)
		}
	}
	return nil
}

// validateEntries checks decoded entries against the document invariants:
// unique names, aligned offsets and non-overlapping payloads.
func validateEntries(entries []Entry, align uint64) error {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if err := validateName(e.Name); err != nil {
			return fmt.Errorf("%w: entry name: %v", ErrInvalidPayload, err)
		}
		if _, ok := seen[e.Name]; ok {
			return fmt.Errorf("%w: duplicate entry %q", ErrInvalidPayload, e.Name)
		}
		seen[e.Name] = struct{}{}
		if e.Offset%align != 0 {
			return fmt.Errorf("%w: entry %q offset %d is not aligned to %d", ErrInvalidPayload, e.Name, e.Offset, align)
		}
		if _, carry := bits.Add64(e.Offset, e.Size, 0); carry != 0 {
			return fmt.Errorf("%w: entry %q extent overflows", ErrInvalidPayload, e.Name)
		}
	}
	byOffset := slices.Clone(entries)
	slices.SortFunc(byOffset, func(a, b Entry) int { return cmp.Compare(a.Offset, b.Offset) })
	for i := 1; i < len(byOffset); i++ {
		prev, cur := byOffset[i-1], byOffset[i]
		if cur.Offset < prev.End() {
			return fmt.Errorf("%w: entries %q and %q overlap", ErrInvalidPayload, prev.Name, cur.Name)
		}
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is empty")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("name %q is not valid UTF-8", name)
	}
	return nil
}
