// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package tdf

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConverters(t *testing.T) *Converters {
	t.Helper()
	global := map[string]string{
		"MzAcqRangeLower":        "100",
		"MzAcqRangeUpper":        "1600",
		"DigitizerNumSamples":    "1001",
		"OneOverK0AcqRangeLower": "0.6",
		"OneOverK0AcqRangeUpper": "1.6",
	}
	frames := []FrameInfo{
		{ID: 1, Time: 0.5, NumScans: 11},
		{ID: 2, Time: 1.0, NumScans: 11},
	}
	conv, err := NewConverters(global, frames)
	require.NoError(t, err)
	return conv
}

func TestTofToMzEndpoints(t *testing.T) {
	conv := testConverters(t)
	assert.InDelta(t, 100.0, conv.TofToMz(0), 1e-9)
	assert.InDelta(t, 1600.0, conv.TofToMz(1000), 1e-9)

	// Monotonically increasing in between.
	prev := conv.TofToMz(0)
	for tof := uint32(100); tof <= 1000; tof += 100 {
		mz := conv.TofToMz(tof)
		assert.Greater(t, mz, prev)
		prev = mz
	}
}

func TestScanToOneOverK0Ramp(t *testing.T) {
	conv := testConverters(t)
	// Scan 0 elutes at the upper bound, the last scan at the lower bound.
	assert.InDelta(t, 1.6, conv.ScanToOneOverK0(0), 1e-9)
	assert.InDelta(t, 0.6, conv.ScanToOneOverK0(10), 1e-9)
	assert.InDelta(t, 1.1, conv.ScanToOneOverK0(5), 1e-9)
}

func TestFrameToRt(t *testing.T) {
	conv := testConverters(t)
	assert.Equal(t, 0.5, conv.FrameToRt(1))
	assert.Equal(t, 1.0, conv.FrameToRt(2))
	assert.Equal(t, 0.0, conv.FrameToRt(99))
}

func TestMissingCalibration(t *testing.T) {
	_, err := NewConverters(map[string]string{}, []FrameInfo{{ID: 1}})
	require.Error(t, err)
	var merr *MissingDataError
	assert.ErrorAs(t, err, &merr)
}

// packFrame builds a frame payload in the scan-packed layout: a scan
// directory of peak counts followed by interleaved (tof delta, intensity)
// pairs per scan.
func packFrame(t *testing.T, scans [][][2]uint32, compress bool) []byte {
	t.Helper()
	var words []uint32
	for _, scan := range scans {
		words = append(words, uint32(len(scan)))
	}
	for _, scan := range scans {
		for _, pair := range scan {
			words = append(words, pair[0], pair[1])
		}
	}

	payload := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(payload[i*4:], w)
	}
	if compress {
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		payload = enc.EncodeAll(payload, nil)
		require.NoError(t, enc.Close())
	}

	blob := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(blob[0:4], uint32(8+len(payload)))
	binary.LittleEndian.PutUint32(blob[4:8], uint32(len(scans)))
	copy(blob[8:], payload)
	return blob
}

func TestDecodePeaks(t *testing.T) {
	conv := testConverters(t)

	// Two scans: 2 peaks (tof 100 and 300 via delta 200), 1 peak (tof 50).
	scans := [][][2]uint32{
		{{100, 10}, {200, 20}},
		{{50, 5}},
	}

	for _, compressed := range []bool{false, true} {
		frame := &RawTdfFrame{
			Info:        FrameInfo{ID: 1, NumScans: 2},
			blob:        packFrame(t, scans, compressed),
			compression: 0,
		}
		if compressed {
			frame.compression = 2
		}

		peaks, err := frame.DecodePeaks(conv)
		require.NoError(t, err)
		require.Len(t, peaks.MzValues, 3)
		require.Len(t, peaks.Intensities, 3)
		require.Len(t, peaks.IonMobility, 3)

		assert.InDelta(t, conv.TofToMz(100), peaks.MzValues[0], 1e-9)
		assert.InDelta(t, conv.TofToMz(300), peaks.MzValues[1], 1e-9) // delta decoded
		assert.InDelta(t, conv.TofToMz(50), peaks.MzValues[2], 1e-9)
		assert.Equal(t, []float32{10, 20, 5}, peaks.Intensities)

		// Both peaks of scan 0 share a mobility, scan 1 differs.
		assert.Equal(t, peaks.IonMobility[0], peaks.IonMobility[1])
		assert.NotEqual(t, peaks.IonMobility[0], peaks.IonMobility[2])
	}
}

func TestDecodePeaksTruncatedPayload(t *testing.T) {
	conv := testConverters(t)
	blob := packFrame(t, [][][2]uint32{{{100, 10}}}, false)
	frame := &RawTdfFrame{
		Info:        FrameInfo{ID: 91},
		blob:        blob[:len(blob)-4], // drop the intensity word
		compression: 0,
	}

	_, err := frame.DecodePeaks(conv)
	require.Error(t, err)
	var ferr *FrameParsingError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, int64(91), ferr.Frame)
}

func TestDecodePeaksCorruptZstd(t *testing.T) {
	conv := testConverters(t)
	blob := make([]byte, 16)
	binary.LittleEndian.PutUint32(blob[0:4], 16)
	binary.LittleEndian.PutUint32(blob[4:8], 1)
	copy(blob[8:], []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02, 0x03})

	frame := &RawTdfFrame{Info: FrameInfo{ID: 91}, blob: blob, compression: 2}
	_, err := frame.DecodePeaks(conv)
	require.Error(t, err)
	var ferr *FrameParsingError
	assert.ErrorAs(t, err, &ferr)
}

func TestMzRoundTripMonotonic(t *testing.T) {
	conv := testConverters(t)
	// The calibration is strictly monotonic, so sorted TOF indices give
	// sorted m/z values.
	last := -math.MaxFloat64
	for tof := uint32(0); tof <= 1000; tof += 37 {
		mz := conv.TofToMz(tof)
		require.Greater(t, mz, last)
		last = mz
	}
}
