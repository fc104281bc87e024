package ggmf

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/logicossoftware/go-ggmf/binio"
)

// SectionReader returns a reader over the payload of the named entry. ra must
// address the same bytes Decode read, starting at the fixed header.
func (d *Document) SectionReader(ra io.ReaderAt, name string) (*io.SectionReader, error) {
	e, err := d.Entry(name)
	if err != nil {
		return nil, err
	}
	off := d.DataOffset + e.Offset
	if off < d.DataOffset || off > math.MaxInt64 || e.Size > math.MaxInt64-off {
		return nil, fmt.Errorf("%w: entry %q lies beyond the addressable range", ErrInvalidPayload, name)
	}
	return io.NewSectionReader(ra, int64(off), int64(e.Size)), nil
}

// ReadEntry loads the payload of the named entry into memory.
func (d *Document) ReadEntry(ra io.ReaderAt, name string) ([]byte, error) {
	sr, err := d.SectionReader(ra, name)
	if err != nil {
		return nil, err
	}
	e, _ := d.Entry(name)
	if e.Size > math.MaxInt {
		return nil, fmt.Errorf("%w: entry %q holds %d bytes", ErrLimitExceeded, name, e.Size)
	}
	buf, err := binio.ReadBytes(sr, int(e.Size))
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", name, err)
	}
	return buf, nil
}

// ReadPayloads walks the data region of r in file order, calling fn with each
// entry and its bytes. r must be positioned where Decode left it. Entries must
// ascend by offset, which holds for every file Encode produces.
func ReadPayloads(r io.Reader, doc *Document, fn func(Entry, []byte) error) error {
	c := newPayloadCursor(r)
	for _, e := range doc.Entries {
		buf, err := c.next(e)
		if err != nil {
			return err
		}
		if err := fn(e, buf); err != nil {
			return err
		}
	}
	return nil
}

// payloadCursor reads payloads sequentially, skipping the gaps between them.
// Offsets are relative to the data region.
type payloadCursor struct {
	r *binio.Reader
}

func newPayloadCursor(r io.Reader) *payloadCursor {
	return &payloadCursor{r: binio.NewReader(r, 0)}
}

func (c *payloadCursor) seek(e Entry) error {
	pos := c.r.Offset()
	if e.Offset < pos {
		return fmt.Errorf("%w: entry %q at %d precedes stream position %d", ErrValidation, e.Name, e.Offset, pos)
	}
	if err := c.r.Skip(e.Offset - pos); err != nil {
		return fmt.Errorf("entry %q: %w", e.Name, err)
	}
	return nil
}

func (c *payloadCursor) next(e Entry) ([]byte, error) {
	if err := c.seek(e); err != nil {
		return nil, err
	}
	if e.Size > math.MaxInt {
		return nil, fmt.Errorf("%w: entry %q holds %d bytes", ErrLimitExceeded, e.Name, e.Size)
	}
	buf, err := binio.ReadBytes(c.r, int(e.Size))
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", e.Name, err)
	}
	return buf, nil
}

// copyTo streams the payload of e into w without buffering it.
func (c *payloadCursor) copyTo(w io.Writer, e Entry) error {
	if err := c.seek(e); err != nil {
		return err
	}
	n, err := io.CopyN(w, c.r, int64(e.Size))
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: entry %q: need %d bytes, got %d: %w", ErrUnexpectedEOF, e.Name, e.Size, n, io.ErrUnexpectedEOF)
	}
	if err != nil {
		return fmt.Errorf("entry %q: %w", e.Name, err)
	}
	return nil
}
