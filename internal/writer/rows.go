// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package writer

import "github.com/mzpeak/mzpeak-go/pkg/schema"

// PeakRow is one row of the long-format peak table. Spectrum-level fields
// repeat across every peak of the spectrum; run-length encoding makes that
// repetition nearly free and keeps every spectrum attribute filterable.
type PeakRow struct {
	SpectrumID           int64    `parquet:"spectrum_id"`
	ScanNumber           *int64   `parquet:"scan_number,optional"`
	MSLevel              int16    `parquet:"ms_level"`
	RetentionTime        float32  `parquet:"retention_time"`
	Polarity             int8     `parquet:"polarity"`
	Mz                   float64  `parquet:"mz"`
	Intensity            float32  `parquet:"intensity"`
	IonMobility          *float64 `parquet:"ion_mobility,optional"`
	PrecursorMz          *float64 `parquet:"precursor_mz,optional"`
	PrecursorCharge      *int16   `parquet:"precursor_charge,optional"`
	PrecursorIntensity   *float32 `parquet:"precursor_intensity,optional"`
	IsolationWindowLower *float32 `parquet:"isolation_window_lower,optional"`
	IsolationWindowUpper *float32 `parquet:"isolation_window_upper,optional"`
	CollisionEnergy      *float32 `parquet:"collision_energy,optional"`
	TotalIonCurrent      *float64 `parquet:"total_ion_current,optional"`
	BasePeakMz           *float64 `parquet:"base_peak_mz,optional"`
	BasePeakIntensity    *float32 `parquet:"base_peak_intensity,optional"`
	InjectionTime        *float32 `parquet:"injection_time,optional"`
	PixelX               *int32   `parquet:"pixel_x,optional"`
	PixelY               *int32   `parquet:"pixel_y,optional"`
	PixelZ               *int32   `parquet:"pixel_z,optional"`
}

// SpectrumRow is one row of the spectra index table (v2): the spectrum
// metadata plus a pointer into the peak table.
type SpectrumRow struct {
	SpectrumID           int64    `parquet:"spectrum_id"`
	ScanNumber           *int64   `parquet:"scan_number,optional"`
	MSLevel              int16    `parquet:"ms_level"`
	RetentionTime        float32  `parquet:"retention_time"`
	Polarity             int8     `parquet:"polarity"`
	PeakOffset           int64    `parquet:"peak_offset"`
	PeakCount            int64    `parquet:"peak_count"`
	PrecursorMz          *float64 `parquet:"precursor_mz,optional"`
	PrecursorCharge      *int16   `parquet:"precursor_charge,optional"`
	PrecursorIntensity   *float32 `parquet:"precursor_intensity,optional"`
	IsolationWindowLower *float32 `parquet:"isolation_window_lower,optional"`
	IsolationWindowUpper *float32 `parquet:"isolation_window_upper,optional"`
	CollisionEnergy      *float32 `parquet:"collision_energy,optional"`
	TotalIonCurrent      *float64 `parquet:"total_ion_current,optional"`
	BasePeakMz           *float64 `parquet:"base_peak_mz,optional"`
	BasePeakIntensity    *float32 `parquet:"base_peak_intensity,optional"`
	InjectionTime        *float32 `parquet:"injection_time,optional"`
	PixelX               *int32   `parquet:"pixel_x,optional"`
	PixelY               *int32   `parquet:"pixel_y,optional"`
	PixelZ               *int32   `parquet:"pixel_z,optional"`
}

// ChromatogramRow is one row of the chromatogram table.
type ChromatogramRow struct {
	ChromatogramID   string    `parquet:"chromatogram_id"`
	ChromatogramType string    `parquet:"chromatogram_type"`
	TimeArray        []float64 `parquet:"time_array,list"`
	IntensityArray   []float32 `parquet:"intensity_array,list"`
}

// peakRows expands a spectrum into long-format rows. Peaks keep their
// source order; no implicit m/z sort is applied.
func peakRows(s *schema.IngestSpectrum) []PeakRow {
	base := PeakRow{
		SpectrumID:           s.SpectrumID,
		ScanNumber:           s.ScanNumber,
		MSLevel:              s.MSLevel,
		RetentionTime:        s.RetentionTime,
		Polarity:             int8(s.Polarity),
		PrecursorMz:          s.PrecursorMz,
		PrecursorCharge:      s.PrecursorCharge,
		PrecursorIntensity:   s.PrecursorIntensity,
		IsolationWindowLower: s.IsolationWindowLower,
		IsolationWindowUpper: s.IsolationWindowUpper,
		CollisionEnergy:      s.CollisionEnergy,
		TotalIonCurrent:      s.TotalIonCurrent,
		BasePeakMz:           s.BasePeakMz,
		BasePeakIntensity:    s.BasePeakIntensity,
		InjectionTime:        s.InjectionTime,
		PixelX:               s.PixelX,
		PixelY:               s.PixelY,
		PixelZ:               s.PixelZ,
	}

	rows := make([]PeakRow, len(s.MzValues))
	for i := range s.MzValues {
		row := base
		row.Mz = s.MzValues[i]
		row.Intensity = s.Intensities[i]
		if s.IonMobility != nil {
			row.IonMobility = &s.IonMobility[i]
		}
		rows[i] = row
	}
	return rows
}

// spectrumRow builds the v2 index row for a spectrum whose peaks start at
// peakOffset in the peak table.
func spectrumRow(s *schema.IngestSpectrum, peakOffset int64) SpectrumRow {
	return SpectrumRow{
		SpectrumID:           s.SpectrumID,
		ScanNumber:           s.ScanNumber,
		MSLevel:              s.MSLevel,
		RetentionTime:        s.RetentionTime,
		Polarity:             int8(s.Polarity),
		PeakOffset:           peakOffset,
		PeakCount:            int64(s.PeakCount()),
		PrecursorMz:          s.PrecursorMz,
		PrecursorCharge:      s.PrecursorCharge,
		PrecursorIntensity:   s.PrecursorIntensity,
		IsolationWindowLower: s.IsolationWindowLower,
		IsolationWindowUpper: s.IsolationWindowUpper,
		CollisionEnergy:      s.CollisionEnergy,
		TotalIonCurrent:      s.TotalIonCurrent,
		BasePeakMz:           s.BasePeakMz,
		BasePeakIntensity:    s.BasePeakIntensity,
		InjectionTime:        s.InjectionTime,
		PixelX:               s.PixelX,
		PixelY:               s.PixelY,
		PixelZ:               s.PixelZ,
	}
}
