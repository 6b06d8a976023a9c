// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	meta := NewMetadata()
	meta.SourceFile = &SourceFileInfo{Name: "run01.raw", Format: "Thermo RAW", SizeBytes: 1 << 20}
	meta.Instrument = &InstrumentConfig{Vendor: "Thermo", Model: "Orbitrap Exploris 480"}
	meta.RawFileChecksum = "sha256:abcdef"
	meta.ProcessingHistory = &ProcessingHistory{}
	meta.ProcessingHistory.Append("mzpeak", "1.0.0", map[string]string{"profile": "balanced"})

	env, err := meta.Envelope()
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, env[KeyFormatVersion])
	assert.Contains(t, env, KeySourceFile)
	assert.Contains(t, env, KeyInstrumentConfig)
	assert.NotContains(t, env, KeyLcConfig) // absent blocks stay absent

	got, err := MetadataFromEnvelope(env)
	require.NoError(t, err)
	assert.Equal(t, meta.FormatVersion, got.FormatVersion)
	require.NotNil(t, got.SourceFile)
	assert.Equal(t, "run01.raw", got.SourceFile.Name)
	require.NotNil(t, got.Instrument)
	assert.Equal(t, "Orbitrap Exploris 480", got.Instrument.Model)
	require.NotNil(t, got.ProcessingHistory)
	require.Len(t, got.ProcessingHistory.Steps, 1)
	assert.NotEmpty(t, got.ProcessingHistory.Steps[0].ID)
	assert.Equal(t, "sha256:abcdef", got.RawFileChecksum)
}

func TestEnvelopeMissingVersion(t *testing.T) {
	_, err := MetadataFromEnvelope(map[string]string{KeySdrfMetadata: "{}"})
	require.Error(t, err)
}

func TestEnvelopeMalformedBlock(t *testing.T) {
	_, err := MetadataFromEnvelope(map[string]string{
		KeyFormatVersion: FormatVersion,
		KeySdrfMetadata:  "{not json",
	})
	require.Error(t, err)
}

func TestMetadataJSONValidates(t *testing.T) {
	meta := NewMetadata()
	meta.SourceFile = &SourceFileInfo{Name: "a.mzML"}
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, Validate(MetadataEnvelope, strings.NewReader(string(data))))
}

func TestMetadataJSONRejectsBadVersion(t *testing.T) {
	doc := `{"format_version": "not-semver"}`
	assert.Error(t, Validate(MetadataEnvelope, strings.NewReader(doc)))
}

func TestSdrfFromTSV(t *testing.T) {
	tsv := "source name\tcharacteristics[organism]\tcomment[instrument]\tfactor value[treatment]\n" +
		"sample1\tHomo sapiens\tQ Exactive\tcontrol\n" +
		"sample2\tMus musculus\tQ Exactive\tdrug\n"

	records, err := SdrfFromTSV(strings.NewReader(tsv))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "sample1", records[0].SourceName)
	assert.Equal(t, "Homo sapiens", records[0].Organism)
	assert.Equal(t, "control", records[0].FactorValues["treatment"])
	assert.Equal(t, "drug", records[1].FactorValues["treatment"])
}

func TestSdrfMissingSourceName(t *testing.T) {
	tsv := "organism\tinstrument\nHomo sapiens\tQE\n"
	_, err := SdrfFromTSV(strings.NewReader(tsv))
	require.Error(t, err)
}
