// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ingest holds the thin-waist contract every source format passes
// through before writing.
package ingest

import (
	"fmt"
	"math"

	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// maxRetentionTime bounds plausible retention times in seconds.
const maxRetentionTime = 1e9

// ContractError reports an ingest invariant violation. It is fatal for the
// affected spectrum; the stream may continue.
type ContractError struct {
	Field string
	Msg   string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("ingest contract: %s: %s", e.Field, e.Msg)
}

// Contract normalizes source records into validated IngestSpectrum values
// and assigns the contiguous 0-based spectrum_id sequence. One contract is
// single-threaded within one stream; parallel converters run one contract
// per shard, seeded so per-shard IDs are globally contiguous.
type Contract struct {
	nextID int64
}

// NewContract starts the spectrum_id sequence at 0.
func NewContract() *Contract {
	return &Contract{}
}

// NewContractAt seeds the sequence for a shard covering [startID, ...).
func NewContractAt(startID int64) *Contract {
	return &Contract{nextID: startID}
}

// NextID returns the id the next accepted spectrum will receive.
func (c *Contract) NextID() int64 { return c.nextID }

// Convert validates the record and stamps the next spectrum_id. A rejected
// record does not consume an id.
func (c *Contract) Convert(s *schema.IngestSpectrum) (*schema.IngestSpectrum, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	s.SpectrumID = c.nextID
	c.nextID++
	return s, nil
}

func validate(s *schema.IngestSpectrum) error {
	if len(s.MzValues) != len(s.Intensities) {
		return &ContractError{
			Field: "peak arrays",
			Msg:   fmt.Sprintf("mz has %d values, intensity has %d", len(s.MzValues), len(s.Intensities)),
		}
	}
	if s.IonMobility != nil && len(s.IonMobility) != len(s.MzValues) {
		return &ContractError{
			Field: "ion_mobility",
			Msg:   fmt.Sprintf("has %d values, peak arrays have %d", len(s.IonMobility), len(s.MzValues)),
		}
	}
	for i, mz := range s.MzValues {
		if math.IsNaN(mz) {
			return &ContractError{Field: "mz", Msg: fmt.Sprintf("NaN at peak %d", i)}
		}
	}
	if s.RetentionTime < 0 || float64(s.RetentionTime) > maxRetentionTime {
		return &ContractError{
			Field: "retention_time",
			Msg:   fmt.Sprintf("%g s outside [0, %g]", s.RetentionTime, float64(maxRetentionTime)),
		}
	}
	if s.MSLevel < 1 || s.MSLevel > 10 {
		return &ContractError{Field: "ms_level", Msg: fmt.Sprintf("%d outside [1, 10]", s.MSLevel)}
	}
	if s.Polarity != schema.PolarityPositive && s.Polarity != schema.PolarityNegative {
		return &ContractError{Field: "polarity", Msg: fmt.Sprintf("%d not in {+1, -1}", s.Polarity)}
	}
	if s.MSLevel >= 2 && s.PrecursorMz == nil {
		return &ContractError{Field: "precursor_mz", Msg: "required for ms_level >= 2"}
	}
	if (s.PixelX == nil) != (s.PixelY == nil) {
		return &ContractError{Field: "pixel coordinates", Msg: "pixel_x and pixel_y must be jointly set"}
	}
	if s.PixelZ != nil && s.PixelX == nil {
		return &ContractError{Field: "pixel_z", Msg: "set without pixel_x/pixel_y"}
	}
	return nil
}
