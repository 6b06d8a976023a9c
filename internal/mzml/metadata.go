// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package mzml

import "github.com/mzpeak/mzpeak-go/pkg/schema"

// CVTerm is a controlled-vocabulary annotation kept from the document
// header.
type CVTerm struct {
	Accession string
	Name      string
	Value     string
}

// SoftwareInfo is one <software> entry.
type SoftwareInfo struct {
	ID      string
	Version string
	Name    string
}

// ProcessingMethod is one <processingMethod> of the data processing list.
type ProcessingMethod struct {
	SoftwareRef string
	Order       int
	Params      []CVTerm
}

// DocMetadata is the document-level metadata the streamer accumulates while
// parsing the header, available from Metadata() before the first spectrum
// is requested.
type DocMetadata struct {
	SourceFileName   string
	SourceFileSHA1   string
	InstrumentID     string
	InstrumentParams []CVTerm
	Software         []SoftwareInfo
	Processing       []ProcessingMethod
	// SpectrumCount is the declared <spectrumList count>, -1 when absent.
	SpectrumCount int
	// ImagingMode is set for imzML documents.
	ImagingMode bool
}

// InstrumentConfig maps the accumulated header terms onto the archive
// metadata model. The first instrument cvParam without a value is taken as
// the model name, matching how vendors emit the instrument term.
func (m *DocMetadata) InstrumentConfig() *schema.InstrumentConfig {
	if m.InstrumentID == "" && len(m.InstrumentParams) == 0 {
		return nil
	}
	cfg := &schema.InstrumentConfig{}
	for _, p := range m.InstrumentParams {
		if p.Value == "" && cfg.Model == "" {
			cfg.Model = p.Name
			continue
		}
		if p.Name == "instrument serial number" {
			cfg.SerialNumber = p.Value
		}
	}
	if cfg.Model == "" {
		cfg.Model = m.InstrumentID
	}
	return cfg
}

// ProcessingHistory maps the data processing list onto the archive
// metadata model.
func (m *DocMetadata) ProcessingHistory() *schema.ProcessingHistory {
	if len(m.Processing) == 0 {
		return nil
	}
	software := make(map[string]SoftwareInfo, len(m.Software))
	for _, s := range m.Software {
		software[s.ID] = s
	}

	hist := &schema.ProcessingHistory{}
	for _, p := range m.Processing {
		params := make(map[string]string, len(p.Params))
		for _, t := range p.Params {
			params[t.Name] = t.Value
		}
		sw := software[p.SoftwareRef]
		name := sw.Name
		if name == "" {
			name = p.SoftwareRef
		}
		hist.Append(name, sw.Version, params)
	}
	return hist
}
