// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ingest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

func validSpectrum() *schema.IngestSpectrum {
	return &schema.IngestSpectrum{
		MSLevel:       1,
		RetentionTime: 60,
		Polarity:      schema.PolarityPositive,
		MzValues:      []float64{100, 200},
		Intensities:   []float32{10, 20},
	}
}

func TestContractAssignsContiguousIDs(t *testing.T) {
	c := NewContract()
	for want := int64(0); want < 5; want++ {
		s, err := c.Convert(validSpectrum())
		require.NoError(t, err)
		assert.Equal(t, want, s.SpectrumID)
	}
}

func TestContractSeededStart(t *testing.T) {
	c := NewContractAt(1000)
	s, err := c.Convert(validSpectrum())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), s.SpectrumID)
	assert.Equal(t, int64(1001), c.NextID())
}

func TestRejectedRecordDoesNotConsumeID(t *testing.T) {
	c := NewContract()
	bad := validSpectrum()
	bad.Intensities = bad.Intensities[:1]
	_, err := c.Convert(bad)
	require.Error(t, err)

	s, err := c.Convert(validSpectrum())
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.SpectrumID)
}

func TestContractValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*schema.IngestSpectrum)
	}{
		{"length mismatch", func(s *schema.IngestSpectrum) { s.MzValues = append(s.MzValues, 300) }},
		{"mobility length mismatch", func(s *schema.IngestSpectrum) { s.IonMobility = []float64{1.0} }},
		{"NaN mz", func(s *schema.IngestSpectrum) { s.MzValues[1] = math.NaN() }},
		{"negative rt", func(s *schema.IngestSpectrum) { s.RetentionTime = -1 }},
		{"rt too large", func(s *schema.IngestSpectrum) { s.RetentionTime = 2e9 }},
		{"ms level zero", func(s *schema.IngestSpectrum) { s.MSLevel = 0 }},
		{"ms level too high", func(s *schema.IngestSpectrum) { s.MSLevel = 11 }},
		{"bad polarity", func(s *schema.IngestSpectrum) { s.Polarity = 0 }},
		{"ms2 without precursor", func(s *schema.IngestSpectrum) { s.MSLevel = 2 }},
		{"pixel_x without pixel_y", func(s *schema.IngestSpectrum) { x := int32(1); s.PixelX = &x }},
		{"pixel_z alone", func(s *schema.IngestSpectrum) { z := int32(3); s.PixelZ = &z }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewContract()
			s := validSpectrum()
			tc.mutate(s)
			_, err := c.Convert(s)
			require.Error(t, err)
			var cerr *ContractError
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestContractAcceptsValidVariants(t *testing.T) {
	c := NewContract()

	// MS2 with precursor.
	s := validSpectrum()
	s.MSLevel = 2
	mz := 500.25
	s.PrecursorMz = &mz
	_, err := c.Convert(s)
	require.NoError(t, err)

	// Imaging pixel pair, no z.
	s = validSpectrum()
	x, y := int32(1), int32(2)
	s.PixelX, s.PixelY = &x, &y
	_, err = c.Convert(s)
	require.NoError(t, err)

	// Zero peaks is fine.
	s = validSpectrum()
	s.MzValues = nil
	s.Intensities = nil
	_, err = c.Convert(s)
	require.NoError(t, err)

	// Matching ion mobility.
	s = validSpectrum()
	s.IonMobility = []float64{1.1, 1.2}
	_, err = c.Convert(s)
	require.NoError(t, err)
}
