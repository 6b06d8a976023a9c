// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package decode turns base64-encoded, optionally compressed binary arrays
// from mzML/imzML documents into numeric vectors.
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
)

// Encoding is the declared element type of a binary data array.
type Encoding int

const (
	Float64 Encoding = iota
	Float32
	Int64
	Int32
)

func (e Encoding) String() string {
	switch e {
	case Float64:
		return "f64"
	case Float32:
		return "f32"
	case Int64:
		return "i64"
	case Int32:
		return "i32"
	}
	return "unknown"
}

// byteWidth returns the encoded size of one element.
func (e Encoding) byteWidth() int {
	switch e {
	case Float64, Int64:
		return 8
	default:
		return 4
	}
}

// Compression is the declared payload compression of a binary data array.
type Compression int

const (
	NoCompression Compression = iota
	Zlib
	NumpressLinear
	NumpressSlof
	NumpressPic
	NumpressLinearZlib
	NumpressSlofZlib
	NumpressPicZlib
)

// BinaryError reports a failed binary payload decode. The affected spectrum
// is lost; the surrounding stream may continue if it can resync.
type BinaryError struct {
	msg string
	err error
}

func (e *BinaryError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("binary decode: %s: %v", e.msg, e.err)
	}
	return "binary decode: " + e.msg
}

func (e *BinaryError) Unwrap() error { return e.err }

func binaryErr(msg string, err error) *BinaryError {
	return &BinaryError{msg: msg, err: err}
}

func binaryErrf(format string, args ...any) *BinaryError {
	return &BinaryError{msg: fmt.Sprintf(format, args...)}
}

// Decode converts a base64 payload into a numeric vector, widened to
// float64. Whitespace-only input yields an empty vector. expectedLen < 0
// means unknown; otherwise it bounds pre-allocation and is checked against
// the output length.
//
// The numpress codecs are lossy by design; their declared semantics are
// carried forward as-is, no re-encoding is attempted here.
func Decode(text []byte, enc Encoding, comp Compression, expectedLen int) ([]float64, error) {
	raw, err := DecodeBase64(text)
	if err != nil {
		return nil, binaryErr("base64", err)
	}
	return DecodeRaw(raw, enc, comp, expectedLen)
}

// DecodeRaw decodes an already base64-decoded payload. Empty input yields
// an empty vector.
func DecodeRaw(raw []byte, enc Encoding, comp Compression, expectedLen int) ([]float64, error) {
	if len(raw) == 0 {
		return []float64{}, nil
	}

	var err error
	switch comp {
	case Zlib, NumpressLinearZlib, NumpressSlofZlib, NumpressPicZlib:
		raw, err = inflate(raw)
		if err != nil {
			return nil, binaryErr("zlib", err)
		}
	}

	var values []float64
	switch comp {
	case NoCompression, Zlib:
		values, err = decodeFixedWidth(raw, enc, expectedLen)
	case NumpressLinear, NumpressLinearZlib:
		values, err = decodeNumpressLinear(raw, expectedLen)
	case NumpressSlof, NumpressSlofZlib:
		values, err = decodeNumpressSlof(raw, expectedLen)
	case NumpressPic, NumpressPicZlib:
		values, err = decodeNumpressPic(raw, expectedLen)
	default:
		return nil, binaryErrf("unknown compression %d", comp)
	}
	if err != nil {
		return nil, err
	}

	if expectedLen >= 0 && len(values) != expectedLen {
		return nil, binaryErrf("decoded %d values, expected %d", len(values), expectedLen)
	}
	return values, nil
}

// decodeFixedWidth interprets raw bytes as little-endian numbers of the
// declared encoding.
func decodeFixedWidth(raw []byte, enc Encoding, expectedLen int) ([]float64, error) {
	width := enc.byteWidth()
	if len(raw)%width != 0 {
		return nil, binaryErrf("payload length %d not a multiple of element size %d", len(raw), width)
	}
	n := len(raw) / width
	if expectedLen >= 0 && n > expectedLen {
		return nil, binaryErrf("payload holds %d values, expected at most %d", n, expectedLen)
	}

	values := make([]float64, n)
	switch enc {
	case Float64:
		for i := range n {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case Float32:
		for i := range n {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	case Int64:
		for i := range n {
			values[i] = float64(int64(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	case Int32:
		for i := range n {
			values[i] = float64(int32(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	}
	return values, nil
}

func inflate(raw []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
