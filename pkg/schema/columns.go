// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

// Column names of the peak table. One row per peak; spectrum-level fields
// repeat across all peaks of a spectrum so the columnar encoder can
// run-length-compress them.
const (
	ColSpectrumID           = "spectrum_id"
	ColScanNumber           = "scan_number"
	ColMSLevel              = "ms_level"
	ColRetentionTime        = "retention_time"
	ColPolarity             = "polarity"
	ColMz                   = "mz"
	ColIntensity            = "intensity"
	ColIonMobility          = "ion_mobility"
	ColPrecursorMz          = "precursor_mz"
	ColPrecursorCharge      = "precursor_charge"
	ColPrecursorIntensity   = "precursor_intensity"
	ColIsolationWindowLower = "isolation_window_lower"
	ColIsolationWindowUpper = "isolation_window_upper"
	ColCollisionEnergy      = "collision_energy"
	ColTotalIonCurrent      = "total_ion_current"
	ColBasePeakMz           = "base_peak_mz"
	ColBasePeakIntensity    = "base_peak_intensity"
	ColInjectionTime        = "injection_time"
	ColPixelX               = "pixel_x"
	ColPixelY               = "pixel_y"
	ColPixelZ               = "pixel_z"
)

// Column names of the spectra table (v2 format).
const (
	ColPeakOffset = "peak_offset"
	ColPeakCount  = "peak_count"
)

// Column names of the chromatogram table.
const (
	ColChromatogramID   = "chromatogram_id"
	ColChromatogramType = "chromatogram_type"
	ColTimeArray        = "time_array"
	ColIntensityArray   = "intensity_array"
)

// ColumnSpec describes one required column of an mzpeak table.
type ColumnSpec struct {
	Name     string
	Type     string // parquet logical type as spelled by the reader's leafTypeName
	Nullable bool
}

// RequiredPeakColumns is the schema contract of the peak table. Opening an
// archive (and so validating it) fails when its peak segment misses a
// non-nullable column or binds a different type to any listed column.
// Nullable columns may be absent entirely, as ion_mobility and the spatial
// columns are on non-TIMS / non-imaging data.
var RequiredPeakColumns = []ColumnSpec{
	{ColSpectrumID, "int64", false},
	{ColScanNumber, "int64", true},
	{ColMSLevel, "int16", false},
	{ColRetentionTime, "float32", false},
	{ColPolarity, "int8", false},
	{ColMz, "float64", false},
	{ColIntensity, "float32", false},
	{ColIonMobility, "float64", true},
	{ColPrecursorMz, "float64", true},
	{ColPrecursorCharge, "int16", true},
	{ColPrecursorIntensity, "float32", true},
	{ColIsolationWindowLower, "float32", true},
	{ColIsolationWindowUpper, "float32", true},
	{ColCollisionEnergy, "float32", true},
	{ColTotalIonCurrent, "float64", true},
	{ColBasePeakMz, "float64", true},
	{ColBasePeakIntensity, "float32", true},
	{ColInjectionTime, "float32", true},
	{ColPixelX, "int32", true},
	{ColPixelY, "int32", true},
	{ColPixelZ, "int32", true},
}

// IndexedColumns are the four columns whose row-group statistics back
// predicate pushdown in the reader.
var IndexedColumns = []string{ColSpectrumID, ColRetentionTime, ColMSLevel, ColMz}
