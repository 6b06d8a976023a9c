// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package mzml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexedDoc wraps a minimal document in indexedmzML with a valid spectrum
// index pointing at the real byte offsets.
func indexedDoc(t *testing.T) string {
	t.Helper()
	body := `<indexedmzML xmlns="http://psi.hupo.org/ms/mzml">
<mzML version="1.1.0">
<run id="r1">
<spectrumList count="2">
<spectrum index="0" id="scan=1" defaultArrayLength="1">
	<cvParam accession="MS:1000511" name="ms level" value="1"/>
	<binaryDataArrayList count="2">
		<binaryDataArray>
			<cvParam accession="MS:1000523" name="64-bit float"/>
			<cvParam accession="MS:1000576" name="no compression"/>
			<cvParam accession="MS:1000514" name="m/z array"/>
			<binary>` + b64f64(111) + `</binary>
		</binaryDataArray>
		<binaryDataArray>
			<cvParam accession="MS:1000521" name="32-bit float"/>
			<cvParam accession="MS:1000576" name="no compression"/>
			<cvParam accession="MS:1000515" name="intensity array"/>
			<binary>` + b64f32(1) + `</binary>
		</binaryDataArray>
	</binaryDataArrayList>
</spectrum>
<spectrum index="1" id="scan=2" defaultArrayLength="1">
	<cvParam accession="MS:1000511" name="ms level" value="1"/>
	<binaryDataArrayList count="2">
		<binaryDataArray>
			<cvParam accession="MS:1000523" name="64-bit float"/>
			<cvParam accession="MS:1000576" name="no compression"/>
			<cvParam accession="MS:1000514" name="m/z array"/>
			<binary>` + b64f64(222) + `</binary>
		</binaryDataArray>
		<binaryDataArray>
			<cvParam accession="MS:1000521" name="32-bit float"/>
			<cvParam accession="MS:1000576" name="no compression"/>
			<cvParam accession="MS:1000515" name="intensity array"/>
			<binary>` + b64f32(2) + `</binary>
		</binaryDataArray>
	</binaryDataArrayList>
</spectrum>
</spectrumList>
</run>
</mzML>
`

	off1 := strings.Index(body, `<spectrum index="0"`)
	off2 := strings.Index(body, `<spectrum index="1"`)
	require.Greater(t, off1, 0)
	require.Greater(t, off2, off1)

	indexOffset := len(body)
	tail := fmt.Sprintf(`<indexList count="1">
<index name="spectrum">
<offset idRef="scan=1">%d</offset>
<offset idRef="scan=2">%d</offset>
</index>
</indexList>
<indexListOffset>%d</indexListOffset>
</indexedmzML>
`, off1, off2, indexOffset)

	return body + tail
}

func TestParseIndexAndRandomAccess(t *testing.T) {
	doc := indexedDoc(t)
	path := filepath.Join(t.TempDir(), "indexed.mzML")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o640))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	offsets := s.Offsets()
	require.Len(t, offsets, 2)

	raw, err := s.ReadSpectrumAt("scan=2")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "scan=2", raw.NativeID)

	spec, err := raw.Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{222}, spec.Mz)

	// Unknown ids miss without error.
	missing, err := s.ReadSpectrumAt("scan=99")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Sequential access still works alongside random access.
	first, err := s.NextSpectrum()
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "scan=1", first.NativeID)
}
