// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package tdf

import (
	"math"
	"strconv"
)

// Converters hold the immutable domain calibrations of a dataset: TOF index
// to m/z, scan number to inverse reduced mobility (1/K0) and frame number
// to retention time. They are built once on open and shared by reference,
// so any number of decoders can run concurrently.
type Converters struct {
	// sqrt-space linear TOF calibration
	sqrtMzLo, sqrtMzHi float64
	numSamples         float64

	// linear mobility ramp; scan 0 sits at the upper bound
	k0Lo, k0Hi float64
	numScans   float64

	// frame -> retention time in seconds
	frameRt map[int64]float64
}

// NewConverters derives the calibrations from the GlobalMetadata table and
// the frame index.
func NewConverters(global map[string]string, frames []FrameInfo) (*Converters, error) {
	getF := func(key string) (float64, bool) {
		v, ok := global[key]
		if !ok {
			return 0, false
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}

	mzLo, ok := getF("MzAcqRangeLower")
	if !ok {
		return nil, &MissingDataError{What: "GlobalMetadata MzAcqRangeLower"}
	}
	mzHi, ok := getF("MzAcqRangeUpper")
	if !ok {
		return nil, &MissingDataError{What: "GlobalMetadata MzAcqRangeUpper"}
	}
	samples, ok := getF("DigitizerNumSamples")
	if !ok || samples < 2 {
		return nil, &MissingDataError{What: "GlobalMetadata DigitizerNumSamples"}
	}

	k0Lo, ok := getF("OneOverK0AcqRangeLower")
	if !ok {
		k0Lo = 0
	}
	k0Hi, ok := getF("OneOverK0AcqRangeUpper")
	if !ok {
		k0Hi = 0
	}

	var maxScans float64
	frameRt := make(map[int64]float64, len(frames))
	for _, f := range frames {
		frameRt[f.ID] = f.Time
		if n := float64(f.NumScans); n > maxScans {
			maxScans = n
		}
	}

	return &Converters{
		sqrtMzLo:   math.Sqrt(mzLo),
		sqrtMzHi:   math.Sqrt(mzHi),
		numSamples: samples,
		k0Lo:       k0Lo,
		k0Hi:       k0Hi,
		numScans:   maxScans,
		frameRt:    frameRt,
	}, nil
}

// TofToMz converts a TOF index to m/z via the sqrt-space linear
// calibration.
func (c *Converters) TofToMz(tofIndex uint32) float64 {
	s := c.sqrtMzLo + (c.sqrtMzHi-c.sqrtMzLo)*float64(tofIndex)/(c.numSamples-1)
	return s * s
}

// ScanToOneOverK0 converts a scan number to 1/K0. TIMS elutes high-mobility
// ions first, so scan 0 maps to the upper bound of the ramp.
func (c *Converters) ScanToOneOverK0(scan int) float64 {
	if c.numScans <= 1 {
		return c.k0Hi
	}
	return c.k0Hi - (c.k0Hi-c.k0Lo)*float64(scan)/(c.numScans-1)
}

// FrameToRt returns the retention time of a frame in seconds.
func (c *Converters) FrameToRt(frameID int64) float64 {
	return c.frameRt[frameID]
}
