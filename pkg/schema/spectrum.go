// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

// Polarity of an acquisition. Positive mode is +1, negative mode is -1.
type Polarity int8

const (
	PolarityPositive Polarity = 1
	PolarityNegative Polarity = -1
)

// IngestSpectrum is the normalized record every source format converges to
// before writing. SpectrumID is assigned by the ingest contract as a 0-based
// contiguous sequence; the vendor native identifier goes to ScanNumber.
// RetentionTime is always in seconds.
type IngestSpectrum struct {
	SpectrumID    int64
	ScanNumber    *int64
	MSLevel       int16
	RetentionTime float32
	Polarity      Polarity

	MzValues    []float64
	Intensities []float32
	IonMobility []float64 // optional, same length as MzValues when present

	// Per-spectrum aggregates
	TotalIonCurrent   *float64
	BasePeakMz        *float64
	BasePeakIntensity *float32
	InjectionTime     *float32

	// Precursor block, MS level >= 2
	PrecursorMz          *float64
	PrecursorCharge      *int16
	PrecursorIntensity   *float32
	IsolationWindowLower *float32
	IsolationWindowUpper *float32
	CollisionEnergy      *float32

	// Spatial coordinates for imaging data, jointly present or absent
	// (PixelZ may additionally be absent on 2D data).
	PixelX *int32
	PixelY *int32
	PixelZ *int32
}

// PeakCount returns the number of peaks in this spectrum.
func (s *IngestSpectrum) PeakCount() int {
	return len(s.MzValues)
}

// HasIonMobility reports whether a per-peak ion mobility array is present.
func (s *IngestSpectrum) HasIonMobility() bool {
	return s.IonMobility != nil
}
