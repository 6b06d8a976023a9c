// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package decode

import (
	"encoding/binary"
	"math"
)

// MS-Numpress codecs (MS:1002312/13/14). All three are lossy; decoding
// reproduces the encoder's approximation, not the original values.
//
// Reference semantics: https://github.com/ms-numpress/ms-numpress

// halfByteReader walks a byte slice one nibble at a time, high nibble
// first within each byte, matching the encoder's packing order.
type halfByteReader struct {
	data []byte
	pos  int // nibble index
}

func (r *halfByteReader) remaining() int {
	return len(r.data)*2 - r.pos
}

func (r *halfByteReader) next() byte {
	b := r.data[r.pos/2]
	if r.pos%2 == 0 {
		b >>= 4
	} else {
		b &= 0x0F
	}
	r.pos++
	return b
}

// decodeNumpressInt reads one variable-length integer from the nibble
// stream. The head nibble counts implied leading zero nibbles (<= 8) or,
// offset by 8, implied leading 0xF nibbles for negative values; the
// remaining nibbles follow least-significant first.
func decodeNumpressInt(r *halfByteReader) (int32, error) {
	if r.remaining() < 1 {
		return 0, binaryErrf("numpress: truncated integer")
	}
	head := r.next()

	var n int
	var res uint32
	if head <= 8 {
		n = int(head)
	} else {
		n = int(head) - 8
		mask := uint32(0xF0000000)
		for i := 0; i < n; i++ {
			res |= mask >> (4 * i)
		}
	}
	if n == 8 {
		return int32(res), nil
	}
	if r.remaining() < 8-n {
		return 0, binaryErrf("numpress: truncated integer body")
	}
	for i := n; i < 8; i++ {
		hb := r.next()
		res |= uint32(hb) << ((i - n) * 4)
	}
	return int32(res), nil
}

// decodeFixedPoint reads the 8-byte scaling header the linear and slof
// codecs start with. The encoder stores it big-endian.
func decodeFixedPoint(data []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(data))
}

// decodeNumpressLinear reverses linear-prediction coding: two seed values
// stored as full 32-bit ints, then per value the delta against a linear
// extrapolation of the previous two.
func decodeNumpressLinear(data []byte, expectedLen int) ([]float64, error) {
	if len(data) == 8 || len(data) == 12 {
		return nil, binaryErrf("numpress linear: corrupt header (%d bytes)", len(data))
	}
	if len(data) < 16 {
		if len(data) == 0 {
			return []float64{}, nil
		}
		return nil, binaryErrf("numpress linear: payload too short (%d bytes)", len(data))
	}

	fixedPoint := decodeFixedPoint(data[0:8])
	if fixedPoint == 0 || math.IsNaN(fixedPoint) || math.IsInf(fixedPoint, 0) {
		return nil, binaryErrf("numpress linear: invalid fixed point %g", fixedPoint)
	}

	capHint := (len(data)-16)/2 + 2
	if expectedLen >= 0 {
		capHint = expectedLen
	}
	result := make([]float64, 0, capHint)

	var ints [3]int64
	ints[1] = int64(int32(binary.LittleEndian.Uint32(data[8:12])))
	ints[2] = int64(int32(binary.LittleEndian.Uint32(data[12:16])))
	result = append(result, float64(ints[1])/fixedPoint, float64(ints[2])/fixedPoint)

	r := &halfByteReader{data: data[16:]}
	for r.remaining() >= 1 && r.remaining() >= nibblesNeeded(r) {
		diff, err := decodeNumpressInt(r)
		if err != nil {
			break
		}
		ints[0] = ints[1]
		ints[1] = ints[2]
		extrapol := ints[1] + (ints[1] - ints[0])
		ints[2] = extrapol + int64(diff)
		result = append(result, float64(ints[2])/fixedPoint)
		if expectedLen >= 0 && len(result) == expectedLen {
			break
		}
	}

	return result, nil
}

// nibblesNeeded peeks whether a full integer can still be read; a trailing
// padding nibble at the very end of the stream is ignored.
func nibblesNeeded(r *halfByteReader) int {
	save := r.pos
	head := r.next()
	r.pos = save
	n := int(head)
	if n > 8 {
		n -= 8
	}
	if n == 8 {
		return 1
	}
	return 1 + (8 - n)
}

// decodeNumpressSlof reverses the short-logged-float coding: each value is
// a 16-bit fixed-point logarithm.
func decodeNumpressSlof(data []byte, expectedLen int) ([]float64, error) {
	if len(data) == 0 {
		return []float64{}, nil
	}
	if len(data) < 8 || (len(data)-8)%2 != 0 {
		return nil, binaryErrf("numpress slof: corrupt payload (%d bytes)", len(data))
	}

	fixedPoint := decodeFixedPoint(data[0:8])
	if fixedPoint == 0 || math.IsNaN(fixedPoint) || math.IsInf(fixedPoint, 0) {
		return nil, binaryErrf("numpress slof: invalid fixed point %g", fixedPoint)
	}

	n := (len(data) - 8) / 2
	if expectedLen >= 0 && n > expectedLen {
		return nil, binaryErrf("numpress slof: %d values, expected at most %d", n, expectedLen)
	}
	result := make([]float64, n)
	for i := range n {
		x := binary.LittleEndian.Uint16(data[8+i*2:])
		result[i] = math.Exp(float64(x)/fixedPoint) - 1
	}
	return result, nil
}

// decodeNumpressPic reverses positive-integer coding: intensities rounded
// to integer counts, no header.
func decodeNumpressPic(data []byte, expectedLen int) ([]float64, error) {
	if len(data) == 0 {
		return []float64{}, nil
	}

	capHint := len(data) / 2
	if expectedLen >= 0 {
		capHint = expectedLen
	}
	result := make([]float64, 0, capHint)

	r := &halfByteReader{data: data}
	for r.remaining() >= 1 && r.remaining() >= nibblesNeeded(r) {
		count, err := decodeNumpressInt(r)
		if err != nil {
			break
		}
		result = append(result, float64(count))
		if expectedLen >= 0 && len(result) == expectedLen {
			break
		}
	}
	return result, nil
}
