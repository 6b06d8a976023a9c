// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// FormatVersion follows semantic versioning. Archives that additionally carry
// a spectra index table are the v2 variant; the version string itself does
// not change for them, presence of the spectra segment is the signal.
const FormatVersion = "1.0.0"

// Mimetype is stored uncompressed as the first entry of a container archive.
const Mimetype = "application/vnd.mzpeak"

// ContainerExt is the file extension of container archives.
const ContainerExt = ".mzpeak"

// Keys of the metadata envelope embedded in the Parquet file-level metadata
// and mirrored into metadata.json. Values are JSON strings whose inner
// schemas are versioned independently.
const (
	KeyFormatVersion       = "mzpeak:format_version"
	KeySdrfMetadata        = "mzpeak:sdrf_metadata"
	KeyInstrumentConfig    = "mzpeak:instrument_config"
	KeyLcConfig            = "mzpeak:lc_config"
	KeyRunParameters       = "mzpeak:run_parameters"
	KeySourceFile          = "mzpeak:source_file"
	KeyConversionTimestamp = "mzpeak:conversion_timestamp"
	KeyProcessingHistory   = "mzpeak:processing_history"
	KeyRawFileChecksum     = "mzpeak:raw_file_checksum"
)

// Metadata is the document-level metadata envelope of an archive. Every
// field except FormatVersion is optional; absent blocks are simply not
// written to the envelope.
type Metadata struct {
	FormatVersion       string             `json:"format_version"`
	Sdrf                *SdrfMetadata      `json:"sdrf_metadata,omitempty"`
	Instrument          *InstrumentConfig  `json:"instrument_config,omitempty"`
	Lc                  *LcConfig          `json:"lc_config,omitempty"`
	RunParameters       *RunParameters     `json:"run_parameters,omitempty"`
	SourceFile          *SourceFileInfo    `json:"source_file,omitempty"`
	ConversionTimestamp time.Time          `json:"conversion_timestamp"`
	ProcessingHistory   *ProcessingHistory `json:"processing_history,omitempty"`
	RawFileChecksum     string             `json:"raw_file_checksum,omitempty"`
}

// NewMetadata returns an envelope stamped with the current format version
// and conversion time.
func NewMetadata() *Metadata {
	return &Metadata{
		FormatVersion:       FormatVersion,
		ConversionTimestamp: time.Now().UTC(),
	}
}

// Envelope renders the metadata as mzpeak:* key/value pairs for the Parquet
// footer. Optional blocks marshal only when present.
func (m *Metadata) Envelope() (map[string]string, error) {
	env := map[string]string{
		KeyFormatVersion:       m.FormatVersion,
		KeyConversionTimestamp: m.ConversionTimestamp.Format(time.RFC3339),
	}

	put := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		env[key] = string(data)
		return nil
	}

	if m.Sdrf != nil {
		if err := put(KeySdrfMetadata, m.Sdrf); err != nil {
			return nil, err
		}
	}
	if m.Instrument != nil {
		if err := put(KeyInstrumentConfig, m.Instrument); err != nil {
			return nil, err
		}
	}
	if m.Lc != nil {
		if err := put(KeyLcConfig, m.Lc); err != nil {
			return nil, err
		}
	}
	if m.RunParameters != nil {
		if err := put(KeyRunParameters, m.RunParameters); err != nil {
			return nil, err
		}
	}
	if m.SourceFile != nil {
		if err := put(KeySourceFile, m.SourceFile); err != nil {
			return nil, err
		}
	}
	if m.ProcessingHistory != nil {
		if err := put(KeyProcessingHistory, m.ProcessingHistory); err != nil {
			return nil, err
		}
	}
	if m.RawFileChecksum != "" {
		env[KeyRawFileChecksum] = m.RawFileChecksum
	}
	return env, nil
}

// MetadataFromEnvelope rebuilds the envelope from mzpeak:* key/value pairs.
// A missing format version is an error; malformed JSON in any block is
// treated as corruption.
func MetadataFromEnvelope(env map[string]string) (*Metadata, error) {
	version, ok := env[KeyFormatVersion]
	if !ok || version == "" {
		return nil, fmt.Errorf("metadata envelope: missing %s", KeyFormatVersion)
	}

	m := &Metadata{FormatVersion: version}
	if ts, ok := env[KeyConversionTimestamp]; ok {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("metadata envelope: parse %s: %w", KeyConversionTimestamp, err)
		}
		m.ConversionTimestamp = t
	}

	get := func(key string, v any) error {
		raw, ok := env[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal([]byte(raw), v); err != nil {
			return fmt.Errorf("metadata envelope: unmarshal %s: %w", key, err)
		}
		return nil
	}

	var sdrf SdrfMetadata
	if _, ok := env[KeySdrfMetadata]; ok {
		if err := get(KeySdrfMetadata, &sdrf); err != nil {
			return nil, err
		}
		m.Sdrf = &sdrf
	}
	var inst InstrumentConfig
	if _, ok := env[KeyInstrumentConfig]; ok {
		if err := get(KeyInstrumentConfig, &inst); err != nil {
			return nil, err
		}
		m.Instrument = &inst
	}
	var lc LcConfig
	if _, ok := env[KeyLcConfig]; ok {
		if err := get(KeyLcConfig, &lc); err != nil {
			return nil, err
		}
		m.Lc = &lc
	}
	var run RunParameters
	if _, ok := env[KeyRunParameters]; ok {
		if err := get(KeyRunParameters, &run); err != nil {
			return nil, err
		}
		m.RunParameters = &run
	}
	var src SourceFileInfo
	if _, ok := env[KeySourceFile]; ok {
		if err := get(KeySourceFile, &src); err != nil {
			return nil, err
		}
		m.SourceFile = &src
	}
	var hist ProcessingHistory
	if _, ok := env[KeyProcessingHistory]; ok {
		if err := get(KeyProcessingHistory, &hist); err != nil {
			return nil, err
		}
		m.ProcessingHistory = &hist
	}
	m.RawFileChecksum = env[KeyRawFileChecksum]

	return m, nil
}
