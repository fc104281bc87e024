package binio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Reader counts the bytes consumed from an underlying reader so that callers
// can skip alignment padding relative to the start of the stream.
type Reader struct {
	r   io.Reader
	off uint64
}

// NewReader wraps r. off is the absolute position r is currently at.
func NewReader(r io.Reader, off uint64) *Reader {
	return &Reader{r: r, off: off}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.off += uint64(n)
	return n, err
}

// Offset reports the absolute stream position.
func (r *Reader) Offset() uint64 { return r.off }

// Skip discards exactly n bytes.
func (r *Reader) Skip(n uint64) error {
	if n == 0 {
		return nil
	}
	got, err := io.CopyN(io.Discard, r, int64(n))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: skip %d bytes, got %d", ErrUnexpectedEOF, n, got)
		}
		return err
	}
	return nil
}

// Align discards padding until the position is a multiple of align and
// returns the number of bytes skipped.
func (r *Reader) Align(align uint64) (uint64, error) {
	pad := Padding(r.off, align)
	return pad, r.Skip(pad)
}

// Writer counts the bytes handed to an underlying writer.
type Writer struct {
	w   io.Writer
	off uint64
}

func NewWriter(w io.Writer, off uint64) *Writer {
	return &Writer{w: w, off: off}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.off += uint64(n)
	return n, err
}

func (w *Writer) Offset() uint64 { return w.off }

var zeros [512]byte

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n uint64) error {
	for n > 0 {
		chunk := min(n, uint64(len(zeros)))
		if err := WriteFull(w, zeros[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Pad writes zero bytes up to the next multiple of align and returns how many
// were written.
func (w *Writer) Pad(align uint64) (uint64, error) {
	pad := Padding(w.off, align)
	return pad, w.WriteZeros(pad)
}

// Padding is the number of bytes needed to move pos to a multiple of align.
// The result is always in [0, align). An align of 0 or 1 never pads.
func Padding(pos, align uint64) uint64 {
	if align <= 1 {
		return 0
	}
	return (align - pos%align) % align
}

// AlignUp rounds pos up to a multiple of align.
func AlignUp(pos, align uint64) uint64 {
	return pos + Padding(pos, align)
}

// HasDataLeft reports whether br has at least one more byte to read.
func HasDataLeft(br *bufio.Reader) (bool, error) {
	_, err := br.Peek(1)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	return false, err
}
