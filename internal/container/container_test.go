// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package container

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageSegment(t *testing.T, dir, name string, content []byte) Segment {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, content, 0o640))
	return Segment{Name: PeaksEntry, SourcePath: p}
}

func TestBuildEntryOrderAndMethods(t *testing.T) {
	dir := t.TempDir()
	seg := stageSegment(t, dir, "peaks.parquet", []byte("PAR1fakePAR1"))
	dst := filepath.Join(dir, "out.mzpeak")

	require.NoError(t, Build(dst, []byte(`{"format_version":"1.0.0"}`), []Segment{seg}))

	zr, err := zip.OpenReader(dst)
	require.NoError(t, err)
	defer zr.Close()

	require.GreaterOrEqual(t, len(zr.File), 3)
	assert.Equal(t, MimetypeEntry, zr.File[0].Name)
	assert.Equal(t, zip.Store, zr.File[0].Method)
	assert.Equal(t, MetadataEntry, zr.File[1].Name)
	assert.Equal(t, zip.Deflate, zr.File[1].Method)
	assert.Equal(t, PeaksEntry, zr.File[2].Name)
	assert.Equal(t, zip.Store, zr.File[2].Method)
}

func TestIdentifyMimetype(t *testing.T) {
	dir := t.TempDir()
	seg := stageSegment(t, dir, "peaks.parquet", []byte("x"))
	dst := filepath.Join(dir, "probe.mzpeak")
	require.NoError(t, Build(dst, []byte(`{}`), []Segment{seg}))

	ok, err := IdentifyMimetype(dst)
	require.NoError(t, err)
	assert.True(t, ok)

	other := filepath.Join(dir, "other.bin")
	require.NoError(t, os.WriteFile(other, []byte("not a zip at all"), 0o640))
	ok, err = IdentifyMimetype(other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenContainerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("stored segment payload")
	seg := stageSegment(t, dir, "peaks.parquet", payload)
	dst := filepath.Join(dir, "rt.mzpeak")
	require.NoError(t, Build(dst, []byte(`{"format_version":"1.0.0"}`), []Segment{seg}))

	arch, err := Open(dst)
	require.NoError(t, err)
	defer arch.Close()

	assert.Equal(t, LayoutContainer, arch.Layout)
	assert.JSONEq(t, `{"format_version":"1.0.0"}`, string(arch.Metadata))

	view := arch.Peaks()
	require.NotNil(t, view)
	assert.Equal(t, int64(len(payload)), view.Size())

	buf := make([]byte, len(payload))
	n, err := view.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])

	// A clone reads independently at its own offset.
	clone := view.Clone()
	tail := make([]byte, 7)
	_, err = clone.ReadAt(tail, view.Size()-7)
	if err != nil {
		// EOF together with full data is fine at the segment tail.
		assert.Equal(t, "EOF", err.Error())
	}
	assert.Equal(t, payload[len(payload)-7:], tail)
}

func TestSharedSeekableReaderBounds(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "seg")
	require.NoError(t, err)
	_, err = f.Write([]byte("0123456789"))
	require.NoError(t, err)

	view := NewSharedSeekableReader(f, 2, 5) // "23456"
	buf := make([]byte, 5)
	n, err := view.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "23456", string(buf[:n]))

	// Reads past the segment end are clipped, not leaked from the host.
	buf = make([]byte, 10)
	n, _ = view.ReadAt(buf, 3)
	assert.Equal(t, "56", string(buf[:n]))
}

func TestDirectoryBundleLayout(t *testing.T) {
	dir := t.TempDir()
	seg := stageSegment(t, dir, "peaks.parquet", []byte("data"))
	bundle := filepath.Join(dir, "bundle")

	require.NoError(t, BuildDirectory(bundle, []byte(`{"format_version":"1.0.0"}`), []Segment{seg}))

	arch, err := Open(bundle)
	require.NoError(t, err)
	defer arch.Close()
	assert.Equal(t, LayoutDirectory, arch.Layout)
	require.NotNil(t, arch.Peaks())
}
