// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package validator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzpeak/mzpeak-go/internal/writer"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

func writeValidArchive(t *testing.T, path string) {
	t.Helper()
	w, err := writer.New(path, nil, writer.DefaultConfig())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, w.WriteSpectrum(&schema.IngestSpectrum{
			SpectrumID:    int64(i),
			MSLevel:       1,
			RetentionTime: float32(i),
			Polarity:      schema.PolarityPositive,
			MzValues:      []float64{100, 200},
			Intensities:   []float32{1, 2},
		}))
	}
	_, err = w.Finish()
	require.NoError(t, err)
}

func TestValidArchivePasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.mzpeak")
	writeValidArchive(t, path)

	report := Validate(path)
	assert.True(t, report.Passed(), report.String())

	// All four phases ran.
	phases := map[string]bool{}
	for _, c := range report.Checks {
		phases[c.Phase] = true
	}
	for _, p := range []string{phaseStructure, phaseMetadata, phaseSchema, phaseData} {
		assert.True(t, phases[p], "phase %s missing", p)
	}
}

func TestDirectoryBundlePasses(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")
	writeValidArchive(t, dir)
	report := Validate(dir)
	assert.True(t, report.Passed(), report.String())
}

func TestMissingArchiveFails(t *testing.T) {
	report := Validate(filepath.Join(t.TempDir(), "absent.mzpeak"))
	assert.False(t, report.Passed())
}

func TestNonZipContainerFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.mzpeak")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a zip"), 0o640))

	report := Validate(path)
	assert.False(t, report.Passed())
}

func TestForeignZipFails(t *testing.T) {
	// A ZIP whose first entry is not the mimetype must be rejected in the
	// structure phase.
	path := filepath.Join(t.TempDir(), "foreign.mzpeak")
	f, err := os.Create(path)
	require.NoError(t, err)
	// Minimal empty ZIP: end-of-central-directory record only.
	_, err = f.Write([]byte{0x50, 0x4b, 0x05, 0x06, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	report := Validate(path)
	assert.False(t, report.Passed())
}
