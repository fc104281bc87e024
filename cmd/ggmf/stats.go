package main

import (
	"encoding/binary"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/logicossoftware/go-ggmf"
)

type tensorStats struct {
	Count     int     `json:"count"`
	NonFinite int     `json:"non_finite,omitempty"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"stddev"`
}

// hasFloatValues reports whether summarize can decode payloads of type t.
func hasFloatValues(t ggmf.ElementType) bool {
	switch t {
	case ggmf.TypeF32, ggmf.TypeF64, ggmf.TypeF16, ggmf.TypeBF16:
		return true
	}
	return false
}

// summarize computes statistics over the finite values of a float payload.
func summarize(t ggmf.ElementType, p []byte) *tensorStats {
	vals := floatValues(t, p)
	if vals == nil {
		return nil
	}
	finite := vals[:0:0]
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	s := &tensorStats{Count: len(vals), NonFinite: len(vals) - len(finite)}
	if len(finite) == 0 {
		return s
	}
	s.Min = floats.Min(finite)
	s.Max = floats.Max(finite)
	if len(finite) == 1 {
		s.Mean = finite[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(finite, nil)
	return s
}

func floatValues(t ggmf.ElementType, p []byte) []float64 {
	var width int
	switch t {
	case ggmf.TypeF32:
		width = 4
	case ggmf.TypeF64:
		width = 8
	case ggmf.TypeF16, ggmf.TypeBF16:
		width = 2
	default:
		return nil
	}
	out := make([]float64, 0, len(p)/width)
	for i := 0; i+width <= len(p); i += width {
		b := p[i : i+width]
		switch t {
		case ggmf.TypeF32:
			out = append(out, float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
		case ggmf.TypeF64:
			out = append(out, math.Float64frombits(binary.LittleEndian.Uint64(b)))
		case ggmf.TypeF16:
			out = append(out, float64(halfToFloat32(binary.LittleEndian.Uint16(b))))
		case ggmf.TypeBF16:
			out = append(out, float64(math.Float32frombits(uint32(binary.LittleEndian.Uint16(b))<<16)))
		}
	}
	return out
}

// halfToFloat32 widens an IEEE 754 binary16 value.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff
	switch {
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal: normalize the fraction
		e := uint32(127 - 15 + 1)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		return math.Float32frombits(sign | e<<23 | (frac&0x3ff)<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
	}
}
