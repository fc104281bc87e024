package ggmf

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/zeebo/xxh3"

	"github.com/logicossoftware/go-ggmf/binio"
)

// Rewrite copies a GGMF file from src to dst in a single pass, decoding the
// header as it goes. Payloads stream through without being buffered. When the
// file carries a CSUM trailer every payload is hashed on the way and checked
// against it. Rewrite returns the decoded document and the number of bytes
// written to dst.
func Rewrite(dst io.Writer, src io.Reader, opts ...ReadOption) (*Document, int64, error) {
	bw := binio.NewWriter(dst, 0)
	doc, err := Decode(src, append(slices.Clone(opts), WithMirror(bw))...)
	if err != nil {
		return nil, int64(bw.Offset()), err
	}

	tr := binio.NewTeeReader(src, bw)
	c := newPayloadCursor(tr)
	byOffset := slices.Clone(doc.Entries)
	slices.SortFunc(byOffset, func(a, b Entry) int { return cmp.Compare(a.Offset, b.Offset) })
	sums := make(map[string]uint64, len(byOffset))
	h := xxh3.New()
	for _, e := range byOffset {
		h.Reset()
		if err := c.copyTo(h, e); err != nil {
			return nil, int64(bw.Offset()), err
		}
		sums[e.Name] = h.Sum64()
	}
	if err := c.r.Skip(doc.DataSize - c.r.Offset()); err != nil {
		return nil, int64(bw.Offset()), fmt.Errorf("data region padding: %w", err)
	}

	if doc.HasChecksums() {
		if err := checkTrailer(tr, doc, sums); err != nil {
			return nil, int64(bw.Offset()), err
		}
	}
	return doc, int64(bw.Offset()), nil
}

func checkTrailer(r io.Reader, doc *Document, sums map[string]uint64) error {
	align := doc.alignment()
	start := doc.DataOffset + doc.DataSize
	size := checksumSectionSize(len(doc.Entries), align)
	br := binio.NewReader(r, start)
	payload, sh, err := readSection(br, TagChecksums, align, sectionBounds{
		streamSize:      start + size,
		maxStored:       size,
		maxUncompressed: size,
	})
	if err != nil {
		return err
	}
	if sh.compression() != CompNone {
		return fmt.Errorf("%w: CSUM section must not be compressed", ErrMalformedSection)
	}
	stored, err := decodeChecksums(payload, len(doc.Entries))
	if err != nil {
		return err
	}
	for i, e := range doc.Entries {
		if got := sums[e.Name]; got != stored[i] {
			return fmt.Errorf("%w: entry %q has %#016x, want %#016x", ErrChecksumMismatch, e.Name, got, stored[i])
		}
	}
	return nil
}

// Transcode decodes src and encodes it again to dst with the given write
// options, for example to change compression, alignment or checksums.
// The checksum trailer is kept when src has one unless opts say otherwise.
// Read options given with WithTranscodeRead apply when decoding src.
// Payloads are streamed from src in file order, so their offsets must ascend;
// Transcode fails with ErrValidation otherwise. The returned document
// describes dst.
func Transcode(dst io.Writer, src io.Reader, opts ...WriteOption) (*Document, error) {
	var cfg writeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	in, err := Decode(src, cfg.readOpts...)
	if err != nil {
		return nil, err
	}
	out := &Document{
		Version:   in.Version,
		Alignment: in.Alignment,
		Metadata:  maps.Clone(in.Metadata),
		Entries:   make([]Entry, len(in.Entries)),
	}
	for i, e := range in.Entries {
		out.Entries[i] = Entry{Name: e.Name, Type: e.Type, Shape: slices.Clone(e.Shape), Size: e.Size}
	}

	c := newPayloadCursor(src)
	next := 0
	err = Encode(dst, out, func(e Entry, w io.Writer) error {
		se := in.Entries[next]
		next++
		return c.copyTo(w, se)
	}, append([]WriteOption{WithChecksums(in.HasChecksums())}, opts...)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}
