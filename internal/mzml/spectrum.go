// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package mzml

import (
	"github.com/mzpeak/mzpeak-go/internal/decode"
)

// ArrayType classifies a binary data array within a spectrum.
type ArrayType int

const (
	ArrayUnknown ArrayType = iota
	ArrayMz
	ArrayIntensity
	ArrayIonMobility
)

// RawBinaryArray is one <binaryDataArray> with its payload still
// base64-encoded (or, for imzML, still external in the ibd file). The
// caller decides when to decode.
type RawBinaryArray struct {
	Type        ArrayType
	Encoding    decode.Encoding
	Compression decode.Compression
	// Base64 payload text; empty for imzML external arrays.
	Base64 []byte
	// External payload location within the ibd sidecar; valid when
	// External is true.
	External          bool
	ExternalOffset    int64
	ExternalArrayLen  int64
	ExternalEncLength int64
	// Declared element count, -1 if not declared.
	ArrayLength int
}

// header carries the spectrum-level fields shared between raw and decoded
// spectra.
type header struct {
	NativeID      string
	Index         int
	ScanNumber    *int64
	MSLevel       int16
	RetentionTime float64 // seconds
	Polarity      int8

	TotalIonCurrent   *float64
	BasePeakMz        *float64
	BasePeakIntensity *float32
	InjectionTime     *float32

	PrecursorMz          *float64
	PrecursorCharge      *int16
	PrecursorIntensity   *float32
	IsolationWindowLower *float32
	IsolationWindowUpper *float32
	CollisionEnergy      *float32

	PixelX *int32
	PixelY *int32
	PixelZ *int32
}

// RawSpectrum is one spectrum with undecoded binary payloads.
type RawSpectrum struct {
	header
	// DefaultArrayLength from the spectrum element, -1 if absent.
	DefaultArrayLength int
	Arrays             []RawBinaryArray
}

// Spectrum is a fully decoded spectrum.
type Spectrum struct {
	header
	Mz          []float64
	Intensity   []float32
	IonMobility []float64
}

// PeakCount returns the number of peaks of a decoded spectrum.
func (s *Spectrum) PeakCount() int { return len(s.Mz) }

// Decode resolves every binary array of the raw spectrum. ibd supplies
// external imzML payloads and may be nil for plain mzML.
func (rs *RawSpectrum) Decode(ibd *IbdReader) (*Spectrum, error) {
	s := &Spectrum{header: rs.header}

	for i := range rs.Arrays {
		arr := &rs.Arrays[i]

		expected := arr.ArrayLength
		if expected < 0 {
			expected = rs.DefaultArrayLength
		}

		var values []float64
		var err error
		if arr.External {
			if ibd == nil {
				return nil, &InvalidStructureError{Msg: "external binary array without an ibd file"}
			}
			raw, rerr := ibd.ReadArray(arr.ExternalOffset, arr.externalByteLen())
			if rerr != nil {
				return nil, rerr
			}
			values, err = decode.DecodeRaw(raw, arr.Encoding, arr.Compression, expected)
		} else {
			values, err = decode.Decode(arr.Base64, arr.Encoding, arr.Compression, expected)
		}
		if err != nil {
			return nil, err
		}

		switch arr.Type {
		case ArrayMz:
			s.Mz = values
		case ArrayIntensity:
			s.Intensity = make([]float32, len(values))
			for j, v := range values {
				s.Intensity[j] = float32(v)
			}
		case ArrayIonMobility:
			s.IonMobility = values
		}
	}

	return s, nil
}

// externalByteLen returns the payload size in bytes for an external array,
// preferring the declared encoded length and falling back to element count
// times element width.
func (arr *RawBinaryArray) externalByteLen() int64 {
	if arr.ExternalEncLength > 0 {
		return arr.ExternalEncLength
	}
	width := int64(8)
	if arr.Encoding == decode.Float32 || arr.Encoding == decode.Int32 {
		width = 4
	}
	return arr.ExternalArrayLen * width
}
