package ggmf

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/cespare/xxhash/v2"
)

func sampleDoc() *Document {
	doc := NewDocument()
	doc.Metadata["general.architecture"] = String("llama")
	doc.Metadata["general.name"] = String("tiny")
	doc.Metadata["general.file_type"] = Int64(-1)
	doc.Metadata["general.quantized"] = Bool(true)
	doc.Metadata["llama.context_length"] = Uint32(2048)
	doc.Metadata["llama.rope.freq_base"] = Float32(10000)
	doc.Metadata["tokenizer.ggml.tokens"] = Strings("<s>", "</s>", "hi")
	doc.Metadata["tokenizer.ggml.scores"] = Array(ValueFloat32, float32(0), float32(-1), float32(-2.5))
	// Not alphabetical: file order must survive.
	doc.Entries = []Entry{
		{Name: "token_embd.weight", Type: TypeF32, Shape: []uint64{4, 3}},
		{Name: "blk.0.attn_q.weight", Type: TypeQ4_0, Shape: []uint64{32, 2}},
		{Name: "output_norm.weight", Type: TypeF16, Shape: []uint64{5}},
	}
	return doc
}

// sampleData returns a distinct deterministic payload for every entry.
func sampleData(t *testing.T, doc *Document) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte, len(doc.Entries))
	for i, e := range doc.Entries {
		size, err := e.Type.ByteSize(e.Shape)
		if err != nil {
			t.Fatal(err)
		}
		p := make([]byte, size)
		for j := range p {
			p[j] = byte(j*7 + i*31 + 1)
		}
		out[e.Name] = p
	}
	return out
}

// encodeSample writes sampleDoc and returns the document as updated by Encode.
func encodeSample(t *testing.T, opts ...WriteOption) (*Document, map[string][]byte, []byte) {
	t.Helper()
	doc := sampleDoc()
	data := sampleData(t, doc)
	var buf bytes.Buffer
	if err := EncodeBytes(&buf, doc, data, opts...); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return doc, data, buf.Bytes()
}

type failingWriter struct {
	n int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, io.ErrClosedPipe
	}
	if len(p) > w.n {
		p = p[:w.n]
	}
	w.n -= len(p)
	return len(p), nil
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWireRoundtrip(t *testing.T) {
	in := fixedHeaderV1{Magic: Magic, Version: VersionV1, Alignment: 64, Flags: HeaderFlagChecksums}
	var buf bytes.Buffer
	if err := writeFixedHeader(&buf, in); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != fixedHeaderSizeV1 {
		t.Fatalf("fixed header is %d bytes", buf.Len())
	}
	out, err := readFixedHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if in != out {
		t.Fatalf("fixed header mismatch: %#v vs %#v", in, out)
	}

	buf.Reset()
	shIn := sectionHeaderV1{Tag: TagTensors, Flags: uint32(CompLZ4) | sectionFlagHasUncompressedLen, Length: 99}
	if err := writeSectionHeader(&buf, shIn); err != nil {
		t.Fatal(err)
	}
	shOut, err := readSectionHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if shIn != shOut {
		t.Fatalf("section header mismatch: %#v vs %#v", shIn, shOut)
	}
}

func TestSectionHeaderMethods(t *testing.T) {
	sh := sectionHeaderV1{Flags: uint32(CompZSTD) | sectionFlagHasUncompressedLen}
	if sh.compression() != CompZSTD {
		t.Fatal("expected CompZSTD")
	}
	if !sh.hasUncompressedLen() {
		t.Fatal("expected has uncompressed len")
	}
}

func TestEncodeDecodeRoundTrip_AllCompressions(t *testing.T) {
	comps := []Compression{CompNone, CompZIP, CompZSTD, CompLZ4, CompBR, CompS2}
	for _, comp := range comps {
		t.Run("comp="+comp.String(), func(t *testing.T) {
			doc, data, file := encodeSample(t, WithMetadataCompression(comp), WithTableCompression(comp))
			got, err := Decode(bytes.NewReader(file))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			// Encode fills in layout fields; compare against the mutated input doc.
			if !reflect.DeepEqual(doc, got) {
				t.Fatalf("doc mismatch\nwant: %#v\ngot:  %#v", doc, got)
			}
			for name, want := range data {
				p, err := got.ReadEntry(bytes.NewReader(file), name)
				if err != nil {
					t.Fatalf("ReadEntry(%q): %v", name, err)
				}
				if !bytes.Equal(p, want) {
					t.Fatalf("payload %q mismatch", name)
				}
			}
		})
	}
}

func TestEmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, NewDocument(), nil); err != nil {
		t.Fatal(err)
	}
	// 16-byte header, META frame padded to 64, TENS frame padded to 96
	if buf.Len() != 96 {
		t.Fatalf("empty file is %d bytes", buf.Len())
	}
	doc, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != VersionV1 {
		t.Fatalf("version %d", doc.Version)
	}
	if len(doc.Entries) != 0 || doc.Metadata == nil || len(doc.Metadata) != 0 {
		t.Fatalf("expected empty document, got %#v", doc)
	}
	if doc.DataOffset != uint64(buf.Len()) || doc.DataSize != 0 {
		t.Fatalf("data region %d+%d", doc.DataOffset, doc.DataSize)
	}
}

func TestSingleF32Entry(t *testing.T) {
	doc := NewDocument()
	e, err := doc.AddEntry("w", TypeF32, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if e.Size != 24 {
		t.Fatalf("size %d", e.Size)
	}
	var buf bytes.Buffer
	if err := EncodeBytes(&buf, doc, map[string][]byte{"w": make([]byte, 24)}); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	w, err := got.Entry("w")
	if err != nil {
		t.Fatal(err)
	}
	if w.Size != 24 || w.Type != TypeF32 || !reflect.DeepEqual(w.Shape, []uint64{2, 3}) {
		t.Fatalf("entry %#v", w)
	}
	if (got.DataOffset+w.Offset)%32 != 0 {
		t.Fatalf("payload at %d is not 32-byte aligned", got.DataOffset+w.Offset)
	}
	// payload padded to alignment
	if uint64(buf.Len()) != got.DataOffset+32 {
		t.Fatalf("file is %d bytes, data region starts at %d", buf.Len(), got.DataOffset)
	}
}

func TestDecodeLeavesReaderAtDataRegion(t *testing.T) {
	_, _, file := encodeSample(t)
	r := bytes.NewReader(file)
	doc, err := Decode(r)
	if err != nil {
		t.Fatal(err)
	}
	if pos := uint64(len(file) - r.Len()); pos != doc.DataOffset {
		t.Fatalf("reader at %d, data region at %d", pos, doc.DataOffset)
	}
	if doc.DataOffset%uint64(doc.Alignment) != 0 {
		t.Fatalf("data region at %d is not aligned", doc.DataOffset)
	}
}

func TestImplicitOffsets(t *testing.T) {
	want, _, file := encodeSample(t, WithExplicitOffsets(false))
	got, err := Decode(bytes.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(want.Entries, got.Entries) {
		t.Fatalf("entries mismatch\nwant: %#v\ngot:  %#v", want.Entries, got.Entries)
	}
}

func TestWithAlignment(t *testing.T) {
	for _, a := range []uint32{1, 8, 64, 4096} {
		doc, _, file := encodeSample(t, WithAlignment(a))
		got, err := Decode(bytes.NewReader(file))
		if err != nil {
			t.Fatalf("align %d: %v", a, err)
		}
		if got.Alignment != a || doc.Alignment != a {
			t.Fatalf("align %d: decoded %d", a, got.Alignment)
		}
		for _, e := range got.Entries {
			if (got.DataOffset+e.Offset)%uint64(a) != 0 {
				t.Fatalf("align %d: entry %q at %d", a, e.Name, got.DataOffset+e.Offset)
			}
		}
		if uint64(len(file)) != got.DataOffset+got.DataSize {
			t.Fatalf("align %d: file %d bytes, extent %d", a, len(file), got.DataOffset+got.DataSize)
		}
	}
}

func TestHeaderDigestAndMirror(t *testing.T) {
	doc, _, file := encodeSample(t)
	var mirror bytes.Buffer
	got, err := Decode(bytes.NewReader(file), WithMirror(&mirror))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(mirror.Bytes(), file[:got.DataOffset]) {
		t.Fatalf("mirror holds %d bytes, header is %d", mirror.Len(), got.DataOffset)
	}
	if want := xxhash.Sum64(file[:got.DataOffset]); got.HeaderDigest != want || doc.HeaderDigest != want {
		t.Fatalf("digest %x / %x, want %x", got.HeaderDigest, doc.HeaderDigest, want)
	}
}

func TestEntryLookup(t *testing.T) {
	doc, _, _ := encodeSample(t)
	want := []string{"token_embd.weight", "blk.0.attn_q.weight", "output_norm.weight"}
	if !reflect.DeepEqual(doc.Names(), want) {
		t.Fatalf("names %v", doc.Names())
	}
	e, err := doc.Entry("blk.0.attn_q.weight")
	if err != nil {
		t.Fatal(err)
	}
	if e.Size != 36 || e.Elements() != 64 {
		t.Fatalf("entry %#v", e)
	}
	if _, err := doc.Entry("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddEntryRejects(t *testing.T) {
	doc := NewDocument()
	if _, err := doc.AddEntry("", TypeF32, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := doc.AddEntry("a", TypeF32, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := doc.AddEntry("a", TypeF32, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("duplicate: %v", err)
	}
	if _, err := doc.AddEntry("q", TypeQ4_0, 31); !errors.Is(err, ErrValidation) {
		t.Fatalf("partial block: %v", err)
	}
	b, err := doc.AddEntry("b", TypeI8, 3)
	if err != nil {
		t.Fatal(err)
	}
	if b.Offset != 32 {
		t.Fatalf("second entry at %d", b.Offset)
	}
}

func TestEncodeNilDocument(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, nil, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEncodeWriterError(t *testing.T) {
	_, _, file := encodeSample(t, WithChecksums(true))
	for n := 0; n < len(file); n += 7 {
		doc := sampleDoc()
		err := EncodeBytes(&failingWriter{n: n}, doc, sampleData(t, doc), WithChecksums(true))
		if !errors.Is(err, ErrWriteFailure) {
			t.Fatalf("n=%d: expected ErrWriteFailure, got %v", n, err)
		}
	}
}

func TestEncodeRecomputesStaleLayout(t *testing.T) {
	doc := sampleDoc()
	doc.Entries[0].Offset = 999
	var buf bytes.Buffer
	if err := EncodeBytes(&buf, doc, sampleData(t, doc)); err != nil {
		t.Fatal(err)
	}
	if doc.Entries[0].Offset != 0 {
		t.Fatalf("offset %d", doc.Entries[0].Offset)
	}

	doc = sampleDoc()
	doc.Entries[0].Size = 47
	err := EncodeBytes(&buf, doc, sampleData(t, sampleDoc()))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
