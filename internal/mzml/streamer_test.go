// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package mzml

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64f64(values ...float64) string {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func b64f32(values ...float32) string {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func mzArray(b64 string) string {
	return fmt.Sprintf(`<binaryDataArray encodedLength="%d">
	<cvParam accession="MS:1000523" name="64-bit float"/>
	<cvParam accession="MS:1000576" name="no compression"/>
	<cvParam accession="MS:1000514" name="m/z array"/>
	<binary>%s</binary>
</binaryDataArray>`, len(b64), b64)
}

func intensityArray(b64 string) string {
	return fmt.Sprintf(`<binaryDataArray>
	<cvParam accession="MS:1000521" name="32-bit float"/>
	<cvParam accession="MS:1000576" name="no compression"/>
	<cvParam accession="MS:1000515" name="intensity array"/>
	<binary>%s</binary>
</binaryDataArray>`, b64)
}

const docHeader = `<?xml version="1.0" encoding="utf-8"?>
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
<fileDescription>
	<sourceFileList count="1">
		<sourceFile id="SF1" name="tiny.raw" location="file:///data">
			<cvParam accession="MS:1000569" name="SHA-1" value="abc123"/>
		</sourceFile>
	</sourceFileList>
</fileDescription>
<softwareList count="1">
	<software id="conv" version="3.0.1">
		<cvParam accession="MS:1000615" name="ProteoWizard software"/>
	</software>
</softwareList>
<instrumentConfigurationList count="1">
	<instrumentConfiguration id="IC1">
		<cvParam accession="MS:1002634" name="Q Exactive Plus"/>
		<cvParam accession="MS:1000529" name="instrument serial number" value="SN042"/>
	</instrumentConfiguration>
</instrumentConfigurationList>
<dataProcessingList count="1">
	<dataProcessing id="dp1">
		<processingMethod order="1" softwareRef="conv">
			<cvParam accession="MS:1000544" name="Conversion to mzML"/>
		</processingMethod>
	</dataProcessing>
</dataProcessingList>
<run id="r1" defaultInstrumentConfigurationRef="IC1">
`

func minimalDoc() string {
	return docHeader + `<spectrumList count="1">
<spectrum index="0" id="scan=1" defaultArrayLength="2">
	<cvParam accession="MS:1000511" name="ms level" value="1"/>
	<cvParam accession="MS:1000130" name="positive scan"/>
	<cvParam accession="MS:1000285" name="total ion current" value="300"/>
	<scanList count="1">
		<scan>
			<cvParam accession="MS:1000016" name="scan start time" value="1.0" unitAccession="UO:0000031" unitName="minute"/>
		</scan>
	</scanList>
	<binaryDataArrayList count="2">
		` + mzArray(b64f64(100, 200)) + `
		` + intensityArray(b64f32(100, 200)) + `
	</binaryDataArrayList>
</spectrum>
</spectrumList>
</run>
</mzML>`
}

func TestMetadataAccumulation(t *testing.T) {
	s := NewStreamer(strings.NewReader(minimalDoc()))
	meta, err := s.Metadata()
	require.NoError(t, err)

	assert.Equal(t, "tiny.raw", meta.SourceFileName)
	assert.Equal(t, "abc123", meta.SourceFileSHA1)
	assert.Equal(t, 1, meta.SpectrumCount)
	require.Len(t, meta.Software, 1)
	assert.Equal(t, "3.0.1", meta.Software[0].Version)
	assert.Equal(t, "ProteoWizard software", meta.Software[0].Name)

	inst := meta.InstrumentConfig()
	require.NotNil(t, inst)
	assert.Equal(t, "Q Exactive Plus", inst.Model)
	assert.Equal(t, "SN042", inst.SerialNumber)

	hist := meta.ProcessingHistory()
	require.NotNil(t, hist)
	require.Len(t, hist.Steps, 1)
	assert.Equal(t, "ProteoWizard software", hist.Steps[0].Software)
}

func TestMinimalSpectrum(t *testing.T) {
	s := NewStreamer(strings.NewReader(minimalDoc()))

	spec, err := s.NextSpectrum()
	require.NoError(t, err)
	require.NotNil(t, spec)

	assert.Equal(t, "scan=1", spec.NativeID)
	require.NotNil(t, spec.ScanNumber)
	assert.Equal(t, int64(1), *spec.ScanNumber)
	assert.Equal(t, int16(1), spec.MSLevel)
	assert.Equal(t, int8(1), spec.Polarity)
	assert.InDelta(t, 60.0, spec.RetentionTime, 1e-9) // 1 minute
	assert.Equal(t, []float64{100, 200}, spec.Mz)
	assert.Equal(t, []float32{100, 200}, spec.Intensity)
	require.NotNil(t, spec.TotalIonCurrent)
	assert.Equal(t, 300.0, *spec.TotalIonCurrent)

	next, err := s.NextSpectrum()
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestRawSpectrumDefersDecode(t *testing.T) {
	s := NewStreamer(strings.NewReader(minimalDoc()))
	raw, err := s.NextRawSpectrum()
	require.NoError(t, err)
	require.NotNil(t, raw)
	require.Len(t, raw.Arrays, 2)
	assert.NotEmpty(t, raw.Arrays[0].Base64)
	assert.Equal(t, 2, raw.DefaultArrayLength)
}

func TestMS2Precursor(t *testing.T) {
	doc := docHeader + `<spectrumList count="1">
<spectrum index="0" id="scan=7" defaultArrayLength="1">
	<cvParam accession="MS:1000511" name="ms level" value="2"/>
	<cvParam accession="MS:1000129" name="negative scan"/>
	<precursorList count="1">
		<precursor>
			<isolationWindow>
				<cvParam accession="MS:1000827" name="isolation window target m/z" value="500.25"/>
				<cvParam accession="MS:1000828" name="isolation window lower offset" value="0.5"/>
				<cvParam accession="MS:1000829" name="isolation window upper offset" value="0.5"/>
			</isolationWindow>
			<selectedIonList count="1">
				<selectedIon>
					<cvParam accession="MS:1000744" name="selected ion m/z" value="500.25"/>
					<cvParam accession="MS:1000041" name="charge state" value="2"/>
					<cvParam accession="MS:1000042" name="peak intensity" value="12345"/>
				</selectedIon>
			</selectedIonList>
			<activation>
				<cvParam accession="MS:1000045" name="collision energy" value="30"/>
			</activation>
		</precursor>
	</precursorList>
	<binaryDataArrayList count="2">
		` + mzArray(b64f64(250.5)) + `
		` + intensityArray(b64f32(42)) + `
	</binaryDataArrayList>
</spectrum>
</spectrumList>
</run>
</mzML>`

	s := NewStreamer(strings.NewReader(doc))
	spec, err := s.NextSpectrum()
	require.NoError(t, err)
	require.NotNil(t, spec)

	assert.Equal(t, int16(2), spec.MSLevel)
	assert.Equal(t, int8(-1), spec.Polarity)
	require.NotNil(t, spec.PrecursorMz)
	assert.Equal(t, 500.25, *spec.PrecursorMz)
	require.NotNil(t, spec.PrecursorCharge)
	assert.Equal(t, int16(2), *spec.PrecursorCharge)
	require.NotNil(t, spec.CollisionEnergy)
	assert.Equal(t, float32(30), *spec.CollisionEnergy)
	require.NotNil(t, spec.IsolationWindowLower)
	assert.Equal(t, float32(0.5), *spec.IsolationWindowLower)
}

func TestEmptyBinaryElement(t *testing.T) {
	doc := docHeader + `<spectrumList count="1">
<spectrum index="0" id="scan=1" defaultArrayLength="0">
	<cvParam accession="MS:1000511" name="ms level" value="1"/>
	<binaryDataArrayList count="2">
		<binaryDataArray>
			<cvParam accession="MS:1000523" name="64-bit float"/>
			<cvParam accession="MS:1000576" name="no compression"/>
			<cvParam accession="MS:1000514" name="m/z array"/>
			<binary/>
		</binaryDataArray>
		<binaryDataArray>
			<cvParam accession="MS:1000521" name="32-bit float"/>
			<cvParam accession="MS:1000576" name="no compression"/>
			<cvParam accession="MS:1000515" name="intensity array"/>
			<binary></binary>
		</binaryDataArray>
	</binaryDataArrayList>
</spectrum>
</spectrumList>
</run>
</mzML>`

	s := NewStreamer(strings.NewReader(doc))
	spec, err := s.NextSpectrum()
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Empty(t, spec.Mz)
	assert.Empty(t, spec.Intensity)
}

func TestInvalidAttributeResync(t *testing.T) {
	doc := docHeader + `<spectrumList count="2">
<spectrum index="0" id="scan=1" defaultArrayLength="1">
	<cvParam accession="MS:1000511" name="ms level" value="bogus"/>
	<binaryDataArrayList count="2">
		` + mzArray(b64f64(100)) + `
		` + intensityArray(b64f32(1)) + `
	</binaryDataArrayList>
</spectrum>
<spectrum index="1" id="scan=2" defaultArrayLength="1">
	<cvParam accession="MS:1000511" name="ms level" value="1"/>
	<binaryDataArrayList count="2">
		` + mzArray(b64f64(200)) + `
		` + intensityArray(b64f32(2)) + `
	</binaryDataArrayList>
</spectrum>
</spectrumList>
</run>
</mzML>`

	s := NewStreamer(strings.NewReader(doc))

	_, err := s.NextRawSpectrum()
	require.Error(t, err)
	var verr *InvalidAttributeValueError
	require.ErrorAs(t, err, &verr)

	// The stream resyncs to the next spectrum boundary.
	spec, err := s.NextSpectrum()
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Equal(t, "scan=2", spec.NativeID)
	assert.Equal(t, []float64{200}, spec.Mz)

	end, err := s.NextSpectrum()
	require.NoError(t, err)
	assert.Nil(t, end)
}

func imagingDoc(offsets [2]int64, lengths [2]int64, withZ bool) string {
	zParam := ""
	if withZ {
		zParam = `<cvParam accession="IMS:1000052" name="position z" value="3"/>`
	}
	return docHeader + fmt.Sprintf(`<spectrumList count="1">
<spectrum index="0" id="scan=1" defaultArrayLength="2">
	<cvParam accession="MS:1000511" name="ms level" value="1"/>
	<scanList count="1">
		<scan>
			<cvParam accession="IMS:1000050" name="position x" value="1"/>
			<cvParam accession="IMS:1000051" name="position y" value="2"/>
			%s
		</scan>
	</scanList>
	<binaryDataArrayList count="2">
		<binaryDataArray>
			<cvParam accession="MS:1000523" name="64-bit float"/>
			<cvParam accession="MS:1000576" name="no compression"/>
			<cvParam accession="MS:1000514" name="m/z array"/>
			<cvParam accession="IMS:1000103" name="external offset" value="%d"/>
			<cvParam accession="IMS:1000102" name="external array length" value="2"/>
			<cvParam accession="IMS:1000104" name="external encoded length" value="%d"/>
			<binary/>
		</binaryDataArray>
		<binaryDataArray>
			<cvParam accession="MS:1000521" name="32-bit float"/>
			<cvParam accession="MS:1000576" name="no compression"/>
			<cvParam accession="MS:1000515" name="intensity array"/>
			<cvParam accession="IMS:1000103" name="external offset" value="%d"/>
			<cvParam accession="IMS:1000102" name="external array length" value="2"/>
			<cvParam accession="IMS:1000104" name="external encoded length" value="%d"/>
			<binary/>
		</binaryDataArray>
	</binaryDataArrayList>
</spectrum>
</spectrumList>
</run>
</mzML>`, zParam, offsets[0], lengths[0], offsets[1], lengths[1])
}

func TestImzMLExternalBinary(t *testing.T) {
	var ibd bytes.Buffer
	for _, v := range []float64{150.5, 300.25} {
		binary.Write(&ibd, binary.LittleEndian, v)
	}
	for _, v := range []float32{10, 20} {
		binary.Write(&ibd, binary.LittleEndian, v)
	}

	doc := imagingDoc([2]int64{0, 16}, [2]int64{16, 8}, true)
	s := NewStreamer(strings.NewReader(doc))
	s.AttachIbd(NewIbdReader(bytes.NewReader(ibd.Bytes()), int64(ibd.Len())))

	spec, err := s.NextSpectrum()
	require.NoError(t, err)
	require.NotNil(t, spec)

	assert.Equal(t, []float64{150.5, 300.25}, spec.Mz)
	assert.Equal(t, []float32{10, 20}, spec.Intensity)
	require.NotNil(t, spec.PixelX)
	assert.Equal(t, int32(1), *spec.PixelX)
	require.NotNil(t, spec.PixelY)
	assert.Equal(t, int32(2), *spec.PixelY)
	require.NotNil(t, spec.PixelZ)
	assert.Equal(t, int32(3), *spec.PixelZ)
}

func TestImzMLOffsetOverflow(t *testing.T) {
	ibd := make([]byte, 8) // way too small
	doc := imagingDoc([2]int64{0, 16}, [2]int64{16, 8}, false)
	s := NewStreamer(strings.NewReader(doc))
	s.AttachIbd(NewIbdReader(bytes.NewReader(ibd), int64(len(ibd))))

	_, err := s.NextSpectrum()
	require.Error(t, err)
	var serr *InvalidStructureError
	assert.ErrorAs(t, err, &serr)
}

func TestReadChromatograms(t *testing.T) {
	doc := docHeader + `<spectrumList count="0">
</spectrumList>
<chromatogramList count="1">
<chromatogram id="TIC" defaultArrayLength="3">
	<cvParam accession="MS:1000235" name="total ion current chromatogram"/>
	<binaryDataArrayList count="2">
		<binaryDataArray>
			<cvParam accession="MS:1000523" name="64-bit float"/>
			<cvParam accession="MS:1000576" name="no compression"/>
			<cvParam accession="MS:1000595" name="time array" unitAccession="UO:0000031" unitName="minute"/>
			<binary>` + b64f64(1, 2, 3) + `</binary>
		</binaryDataArray>
		<binaryDataArray>
			<cvParam accession="MS:1000521" name="32-bit float"/>
			<cvParam accession="MS:1000576" name="no compression"/>
			<cvParam accession="MS:1000515" name="intensity array"/>
			<binary>` + b64f32(10, 20, 30) + `</binary>
		</binaryDataArray>
	</binaryDataArrayList>
</chromatogram>
</chromatogramList>
</run>
</mzML>`

	s := NewStreamer(strings.NewReader(doc))
	spec, err := s.NextRawSpectrum()
	require.NoError(t, err)
	assert.Nil(t, spec)

	chroms, err := s.ReadChromatograms()
	require.NoError(t, err)
	require.Len(t, chroms, 1)
	assert.Equal(t, "TIC", chroms[0].ID)
	assert.Equal(t, []float64{60, 120, 180}, chroms[0].TimeArray)
	assert.Equal(t, []float32{10, 20, 30}, chroms[0].IntensityArray)
}
