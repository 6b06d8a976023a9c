// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

// InstrumentConfig describes the mass spectrometer an acquisition ran on.
type InstrumentConfig struct {
	Vendor          string               `json:"vendor,omitempty"`
	Model           string               `json:"model,omitempty"`
	SerialNumber    string               `json:"serial_number,omitempty"`
	SoftwareVersion string               `json:"software_version,omitempty"`
	IonSource       string               `json:"ion_source,omitempty"`
	Detector        string               `json:"detector,omitempty"`
	MassAnalyzers   []MassAnalyzerConfig `json:"mass_analyzers,omitempty"`
}

// MassAnalyzerConfig is one analyzer stage of the instrument configuration.
type MassAnalyzerConfig struct {
	Type       string  `json:"type"`
	Resolution float64 `json:"resolution,omitempty"`
}

// LcConfig captures the liquid-chromatography side of a run.
type LcConfig struct {
	System        string         `json:"system,omitempty"`
	Column        *ColumnInfo    `json:"column,omitempty"`
	FlowRateULMin float64        `json:"flow_rate_ul_min,omitempty"`
	MobilePhases  []MobilePhase  `json:"mobile_phases,omitempty"`
	Gradient      []GradientStep `json:"gradient,omitempty"`
}

// ColumnInfo describes the separation column.
type ColumnInfo struct {
	Name           string  `json:"name,omitempty"`
	LengthMM       float64 `json:"length_mm,omitempty"`
	InnerDiamMM    float64 `json:"inner_diameter_mm,omitempty"`
	ParticleSizeUM float64 `json:"particle_size_um,omitempty"`
	TemperatureC   float64 `json:"temperature_c,omitempty"`
}

// MobilePhase is one solvent channel.
type MobilePhase struct {
	Channel     string `json:"channel"`
	Composition string `json:"composition,omitempty"`
}

// GradientStep is one point of the gradient program.
type GradientStep struct {
	TimeMin  float64 `json:"time_min"`
	PercentB float64 `json:"percent_b"`
}

// RunParameters carries run-level diagnostic data vendors store but most
// converters lose: pump pressures, temperatures and free-form technical
// parameters.
type RunParameters struct {
	Parameters        map[string]string  `json:"parameters,omitempty"`
	PressureTraces    []PressureTrace    `json:"pressure_traces,omitempty"`
	TemperatureTraces []TemperatureTrace `json:"temperature_traces,omitempty"`
}

// PressureTrace is a pressure-over-time diagnostic trace.
type PressureTrace struct {
	Name     string    `json:"name"`
	Unit     string    `json:"unit"`
	TimesMin []float64 `json:"times_min"`
	Values   []float64 `json:"values"`
}

// TemperatureTrace is a temperature-over-time diagnostic trace.
type TemperatureTrace struct {
	Name          string    `json:"name"`
	TimesMin      []float64 `json:"times_min"`
	ValuesCelsius []float64 `json:"values_celsius"`
}

// SourceFileInfo tracks provenance of the converted vendor file.
type SourceFileInfo struct {
	Name          string `json:"name"`
	Path          string `json:"path,omitempty"`
	Format        string `json:"format,omitempty"`
	SizeBytes     uint64 `json:"size_bytes,omitempty"`
	SHA256        string `json:"sha256,omitempty"`
	FormatVersion string `json:"format_version,omitempty"`
}
