// Package main provides C-compatible exports for the ggmf library.
// Build with: go build -buildmode=c-shared -o ggmf.dll
package main

/*
#include <stdlib.h>
#include <stdint.h>

// Result structure for operations that return data
typedef struct {
    char* data;
    int   data_len;
    char* error;
} GgmfResult;

// Tensor for creating containers
typedef struct {
    char*     name;
    char*     type;
    uint64_t* shape;
    int       ndims;
    char*     data;
    int       data_len;
} CTensor;
*/
import "C"

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/goccy/go-json"

	"github.com/logicossoftware/go-ggmf"
	"github.com/logicossoftware/go-ggmf/internal/jsonmeta"
)

func main() {}

// GgmfVersion returns the GGMF format version supported by this library.
//
//export GgmfVersion
func GgmfVersion() C.uint32_t {
	return C.uint32_t(ggmf.VersionV1)
}

// GgmfFreeResult frees memory allocated by other Ggmf functions.
// Must be called to avoid memory leaks.
//
//export GgmfFreeResult
func GgmfFreeResult(result C.GgmfResult) {
	if result.data != nil {
		C.free(unsafe.Pointer(result.data))
	}
	if result.error != nil {
		C.free(unsafe.Pointer(result.error))
	}
}

// GgmfFreeString frees a C string allocated by Go.
//
//export GgmfFreeString
func GgmfFreeString(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

func makeResult(data []byte) C.GgmfResult {
	var result C.GgmfResult
	if len(data) > 0 {
		result.data = (*C.char)(C.CBytes(data))
		result.data_len = C.int(len(data))
	}
	return result
}

func makeError(err error) C.GgmfResult {
	var result C.GgmfResult
	result.error = C.CString(err.Error())
	return result
}

func decodeBytes(data *C.char, dataLen C.int) (*ggmf.Document, *bytes.Reader, error) {
	r := bytes.NewReader(C.GoBytes(unsafe.Pointer(data), dataLen))
	doc, err := ggmf.Decode(r)
	if err != nil {
		return nil, nil, err
	}
	return doc, r, nil
}

// GgmfEncode builds a GGMF container.
// Parameters:
//   - metadataJSON: optional typed metadata, {"key": {"type": "u32", "value": 1}} (can be NULL)
//   - tensors: array of CTensor structs; type is a name such as "F32" or "Q4_K"
//   - tensorCount: number of tensors
//   - compression: META/TENS codec (0=None, 1=ZIP, 2=ZSTD, 3=LZ4, 4=Brotli, 5=S2)
//   - checksums: non-zero to append a checksum trailer
//
// Returns GgmfResult with encoded data or error. Call GgmfFreeResult when done.
//
//export GgmfEncode
func GgmfEncode(
	metadataJSON *C.char,
	tensors *C.CTensor,
	tensorCount C.int,
	compression C.uint32_t,
	checksums C.int,
) C.GgmfResult {
	doc := ggmf.NewDocument()

	if metadataJSON != nil {
		if s := C.GoString(metadataJSON); s != "" {
			var raw map[string]jsonmeta.Value
			if err := json.Unmarshal([]byte(s), &raw); err != nil {
				return makeError(err)
			}
			md, err := jsonmeta.ToMetadata(raw)
			if err != nil {
				return makeError(err)
			}
			doc.Metadata = md
		}
	}

	payloads := make(map[string][]byte, int(tensorCount))
	if tensorCount > 0 && tensors != nil {
		for _, t := range unsafe.Slice(tensors, int(tensorCount)) {
			name := C.GoString(t.name)
			typ, ok := ggmf.ParseElementType(C.GoString(t._type))
			if !ok {
				return makeError(fmt.Errorf("tensor %q: unknown type %q", name, C.GoString(t._type)))
			}
			var shape []uint64
			if t.ndims > 0 && t.shape != nil {
				for _, d := range unsafe.Slice(t.shape, int(t.ndims)) {
					shape = append(shape, uint64(d))
				}
			}
			if _, err := doc.AddEntry(name, typ, shape...); err != nil {
				return makeError(err)
			}
			payloads[name] = C.GoBytes(unsafe.Pointer(t.data), t.data_len)
		}
	}

	var buf bytes.Buffer
	comp := ggmf.Compression(compression)
	err := ggmf.EncodeBytes(&buf, doc, payloads,
		ggmf.WithMetadataCompression(comp),
		ggmf.WithTableCompression(comp),
		ggmf.WithChecksums(checksums != 0),
	)
	if err != nil {
		return makeError(err)
	}
	return makeResult(buf.Bytes())
}

// GgmfDecode decodes a GGMF container and returns a JSON description of its
// header, metadata and tensor table. Payloads are not included; use
// GgmfGetTensorData.
//
// Returns GgmfResult with a JSON string or error. Call GgmfFreeResult when done.
//
//export GgmfDecode
func GgmfDecode(data *C.char, dataLen C.int) C.GgmfResult {
	doc, _, err := decodeBytes(data, dataLen)
	if err != nil {
		return makeError(err)
	}
	md, err := jsonmeta.FromMetadata(doc.Metadata)
	if err != nil {
		return makeError(err)
	}

	tensors := make([]map[string]any, len(doc.Entries))
	for i, e := range doc.Entries {
		tensors[i] = map[string]any{
			"name":   e.Name,
			"type":   e.Type.String(),
			"shape":  e.Shape,
			"offset": e.Offset,
			"size":   e.Size,
		}
	}
	result := map[string]any{
		"version":    doc.Version,
		"alignment":  doc.Alignment,
		"checksums":  doc.HasChecksums(),
		"dataOffset": doc.DataOffset,
		"dataSize":   doc.DataSize,
		"metadata":   md,
		"tensors":    tensors,
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return makeError(err)
	}
	return makeResult(jsonBytes)
}

// GgmfGetTensorData retrieves the raw payload of the named tensor.
//
// Returns GgmfResult with the payload or error. Call GgmfFreeResult when done.
//
//export GgmfGetTensorData
func GgmfGetTensorData(data *C.char, dataLen C.int, name *C.char) C.GgmfResult {
	doc, r, err := decodeBytes(data, dataLen)
	if err != nil {
		return makeError(err)
	}
	p, err := doc.ReadEntry(r, C.GoString(name))
	if err != nil {
		return makeError(err)
	}
	return makeResult(p)
}

// GgmfValidate decodes a container and verifies its checksum trailer when
// present. Returns NULL on success, or an error message string on failure.
// Call GgmfFreeString on the result if non-NULL.
//
//export GgmfValidate
func GgmfValidate(data *C.char, dataLen C.int) *C.char {
	doc, r, err := decodeBytes(data, dataLen)
	if err != nil {
		return C.CString(err.Error())
	}
	if doc.HasChecksums() {
		if err := ggmf.Verify(r, doc); err != nil {
			return C.CString(err.Error())
		}
	}
	return nil
}

// GgmfGetTensorCount returns the number of tensors in a container.
// Returns -1 on error.
//
//export GgmfGetTensorCount
func GgmfGetTensorCount(data *C.char, dataLen C.int) C.int {
	doc, _, err := decodeBytes(data, dataLen)
	if err != nil {
		return -1
	}
	return C.int(len(doc.Entries))
}
