// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mzml pull-parses HUPO-PSI mzML and imzML documents without
// materializing the full document tree.
package mzml

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mzpeak/mzpeak-go/internal/decode"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
	"github.com/mzpeak/mzpeak-go/pkg/units"
)

// Streamer walks an mzML/imzML document spectrum by spectrum. Binary
// payloads stay undecoded until the caller asks for them.
type Streamer struct {
	d   *xml.Decoder
	ibd *IbdReader

	meta     DocMetadata
	metaDone bool

	src     io.ReaderAt
	srcSize int64
	offsets map[string]int64

	inChromatograms bool
	specIndex       int
	fatal           error
	closers         []io.Closer
}

// NewStreamer wraps a plain reader. Only sequential access is available;
// imzML external arrays need Open or an explicitly attached ibd.
func NewStreamer(r io.Reader) *Streamer {
	return &Streamer{
		d:    xml.NewDecoder(r),
		meta: DocMetadata{SpectrumCount: -1},
	}
}

// Open opens an mzML or imzML file. For imzML, the sibling .ibd file is
// attached automatically; the document index, when present, enables random
// access by native ID.
func Open(path string) (*Streamer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &ReadError{Err: err}
	}

	s := NewStreamer(f)
	s.src = f
	s.srcSize = info.Size()
	s.closers = append(s.closers, f)

	if isImzML(path) {
		s.meta.ImagingMode = true
		ibdPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".ibd"
		ibd, err := OpenIbd(ibdPath)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.ibd = ibd
		s.closers = append(s.closers, ibd)
	}

	// Best effort: documents without an index remain strictly sequential.
	if offsets, err := parseIndex(f, info.Size()); err == nil {
		s.offsets = offsets
	}

	return s, nil
}

func isImzML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".imzml")
}

// AttachIbd wires an ibd reader for external binary arrays.
func (s *Streamer) AttachIbd(ibd *IbdReader) {
	s.ibd = ibd
	s.meta.ImagingMode = true
}

// Ibd returns the attached ibd reader, if any.
func (s *Streamer) Ibd() *IbdReader { return s.ibd }

// Close releases the underlying files.
func (s *Streamer) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Metadata parses the document header if necessary and returns the
// accumulated document metadata. Safe to call before the first spectrum.
func (s *Streamer) Metadata() (*DocMetadata, error) {
	if err := s.ensureMetadata(); err != nil {
		return nil, err
	}
	return &s.meta, nil
}

// ensureMetadata consumes header elements up to the spectrum list,
// accumulating instrument, software and processing information.
func (s *Streamer) ensureMetadata() error {
	if s.metaDone {
		return nil
	}
	for {
		tok, err := s.d.Token()
		if err == io.EOF {
			s.metaDone = true
			return nil
		}
		if err != nil {
			s.fatal = &InvalidStructureError{Msg: "malformed XML header", Err: err}
			return s.fatal
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "sourceFile":
			for _, a := range start.Attr {
				if a.Name.Local == "name" {
					s.meta.SourceFileName = a.Value
				}
			}
			if err := s.collectSourceFileParams(&start); err != nil {
				return err
			}
		case "instrumentConfiguration":
			for _, a := range start.Attr {
				if a.Name.Local == "id" {
					s.meta.InstrumentID = a.Value
				}
			}
			params, err := s.collectCVParams(start.Name.Local)
			if err != nil {
				return err
			}
			s.meta.InstrumentParams = append(s.meta.InstrumentParams, params...)
		case "software":
			var sw SoftwareInfo
			for _, a := range start.Attr {
				switch a.Name.Local {
				case "id":
					sw.ID = a.Value
				case "version":
					sw.Version = a.Value
				}
			}
			params, err := s.collectCVParams(start.Name.Local)
			if err != nil {
				return err
			}
			if len(params) > 0 {
				sw.Name = params[0].Name
			}
			s.meta.Software = append(s.meta.Software, sw)
		case "processingMethod":
			var pm ProcessingMethod
			for _, a := range start.Attr {
				switch a.Name.Local {
				case "softwareRef":
					pm.SoftwareRef = a.Value
				case "order":
					pm.Order, _ = strconv.Atoi(a.Value)
				}
			}
			params, err := s.collectCVParams(start.Name.Local)
			if err != nil {
				return err
			}
			pm.Params = params
			s.meta.Processing = append(s.meta.Processing, pm)
		case "spectrumList":
			for _, a := range start.Attr {
				if a.Name.Local == "count" {
					if n, err := strconv.Atoi(a.Value); err == nil {
						s.meta.SpectrumCount = n
					}
				}
			}
			s.metaDone = true
			return nil
		case "run":
			// A run without a spectrum list (chromatogram-only file).
		case "spectrum":
			// A spectrum outside a spectrumList violates the schema.
			s.metaDone = true
			s.fatal = &InvalidStructureError{Msg: "document has a spectrum outside a spectrumList"}
			return s.fatal
		}
	}
}

// collectCVParams consumes the remainder of element and returns its
// cvParam children (any depth).
func (s *Streamer) collectCVParams(element string) ([]CVTerm, error) {
	var params []CVTerm
	depth := 1
	for depth > 0 {
		tok, err := s.d.Token()
		if err != nil {
			s.fatal = &InvalidStructureError{Msg: "malformed XML in <" + element + ">", Err: err}
			return nil, s.fatal
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "cvParam" {
				var cv cvParam
				if err := s.d.DecodeElement(&cv, &t); err != nil {
					return nil, &InvalidStructureError{Msg: "malformed cvParam", Err: err}
				}
				params = append(params, CVTerm{Accession: cv.Accession, Name: cv.Name, Value: cv.Value})
				continue
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return params, nil
}

func (s *Streamer) collectSourceFileParams(start *xml.StartElement) error {
	params, err := s.collectCVParams(start.Name.Local)
	if err != nil {
		return err
	}
	for _, p := range params {
		if p.Accession == "MS:1000569" { // SHA-1 checksum
			s.meta.SourceFileSHA1 = p.Value
		}
	}
	return nil
}

// NextRawSpectrum returns the next spectrum with binary payloads still
// encoded, or (nil, nil) when the spectrum list is exhausted. An
// InvalidAttributeValueError aborts only the current spectrum; calling
// again resumes at the next spectrum boundary.
func (s *Streamer) NextRawSpectrum() (*RawSpectrum, error) {
	if s.fatal != nil {
		return nil, s.fatal
	}
	if err := s.ensureMetadata(); err != nil {
		return nil, err
	}
	if s.inChromatograms {
		return nil, nil
	}

	for {
		tok, err := s.d.Token()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			s.fatal = &InvalidStructureError{Msg: "malformed XML", Err: err}
			return nil, s.fatal
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "spectrum":
				return s.parseSpectrum(t)
			case "chromatogramList":
				s.inChromatograms = true
				return nil, nil
			case "indexList", "indexListOffset":
				return nil, nil
			}
		case xml.EndElement:
			if t.Name.Local == "spectrumList" || t.Name.Local == "run" {
				return nil, nil
			}
		}
	}
}

// NextSpectrum is the decode-inline convenience over NextRawSpectrum.
func (s *Streamer) NextSpectrum() (*Spectrum, error) {
	raw, err := s.NextRawSpectrum()
	if err != nil || raw == nil {
		return nil, err
	}
	return raw.Decode(s.ibd)
}

var scanNumberRe = regexp.MustCompile(`(?:scan|frame|index)=(\d+)`)

// parseSpectrum consumes one <spectrum> subtree. On a local value error it
// resyncs past </spectrum> so the stream can continue.
func (s *Streamer) parseSpectrum(start xml.StartElement) (*RawSpectrum, error) {
	rs := &RawSpectrum{DefaultArrayLength: -1}
	rs.Index = s.specIndex
	s.specIndex++
	rs.MSLevel = 1
	rs.Polarity = 1

	for _, a := range start.Attr {
		switch a.Name.Local {
		case "id":
			rs.NativeID = a.Value
		case "index":
			if n, err := strconv.Atoi(a.Value); err == nil {
				rs.Index = n
			}
		case "defaultArrayLength":
			n, err := strconv.Atoi(a.Value)
			if err != nil {
				return nil, s.resync(&InvalidAttributeValueError{Element: "spectrum", Attr: "defaultArrayLength", Value: a.Value}, 1)
			}
			rs.DefaultArrayLength = n
		}
	}

	if m := scanNumberRe.FindStringSubmatch(rs.NativeID); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			rs.ScanNumber = &n
		}
	}

	// Context while walking the subtree.
	var (
		depth      = 1
		inScan     bool
		inSelIon   bool
		inIsolWin  bool
		inActivate bool
		curArray   *RawBinaryArray
	)

	for depth > 0 {
		tok, err := s.d.Token()
		if err != nil {
			s.fatal = &InvalidStructureError{Msg: "malformed XML in <spectrum>", Err: err}
			return nil, s.fatal
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "cvParam":
				var cv cvParam
				if err := s.d.DecodeElement(&cv, &t); err != nil {
					s.fatal = &InvalidStructureError{Msg: "malformed cvParam", Err: err}
					return nil, s.fatal
				}
				ctx := cvContext{
					inScan:     inScan,
					inSelIon:   inSelIon,
					inIsolWin:  inIsolWin,
					inActivate: inActivate,
					array:      curArray,
				}
				if verr := applyCVParam(rs, &cv, ctx); verr != nil {
					return nil, s.resync(verr, depth)
				}
				continue
			case "scan":
				inScan = true
			case "selectedIon":
				inSelIon = true
			case "isolationWindow":
				inIsolWin = true
			case "activation":
				inActivate = true
			case "binaryDataArray":
				rs.Arrays = append(rs.Arrays, RawBinaryArray{
					Encoding:    decode.Float64,
					Compression: decode.NoCompression,
					ArrayLength: -1,
				})
				curArray = &rs.Arrays[len(rs.Arrays)-1]
				for _, a := range t.Attr {
					if a.Name.Local == "arrayLength" {
						if n, err := strconv.Atoi(a.Value); err == nil {
							curArray.ArrayLength = n
						}
					}
				}
			case "binary":
				text, err := s.readCharData("binary")
				if err != nil {
					return nil, err
				}
				if curArray != nil {
					curArray.Base64 = text
				}
				continue
			}
			depth++
		case xml.EndElement:
			switch t.Name.Local {
			case "scan":
				inScan = false
			case "selectedIon":
				inSelIon = false
			case "isolationWindow":
				inIsolWin = false
			case "activation":
				inActivate = false
			case "binaryDataArray":
				curArray = nil
			}
			depth--
		}
	}

	return rs, nil
}

// readCharData consumes the character content of the current element up to
// its end tag.
func (s *Streamer) readCharData(element string) ([]byte, error) {
	var text []byte
	for {
		tok, err := s.d.Token()
		if err != nil {
			s.fatal = &InvalidStructureError{Msg: "malformed XML in <" + element + ">", Err: err}
			return nil, s.fatal
		}
		switch t := tok.(type) {
		case xml.CharData:
			text = append(text, t...)
		case xml.EndElement:
			return text, nil
		case xml.StartElement:
			s.fatal = &InvalidStructureError{Msg: "unexpected child element in <" + element + ">"}
			return nil, s.fatal
		}
	}
}

// resync consumes tokens until the enclosing </spectrum> so a local value
// error does not poison the stream, then reports err.
func (s *Streamer) resync(verr error, depth int) error {
	for depth > 0 {
		tok, err := s.d.Token()
		if err != nil {
			s.fatal = &InvalidStructureError{Msg: "resync failed", Err: err}
			return s.fatal
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return verr
}

type cvContext struct {
	inScan     bool
	inSelIon   bool
	inIsolWin  bool
	inActivate bool
	array      *RawBinaryArray
}

// applyCVParam routes one cvParam into the raw spectrum according to its
// accession and context.
func applyCVParam(rs *RawSpectrum, cv *cvParam, ctx cvContext) error {
	if ctx.array != nil {
		return applyArrayCVParam(ctx.array, cv)
	}

	parseF64 := func() (float64, error) {
		v, err := strconv.ParseFloat(cv.Value, 64)
		if err != nil {
			return 0, &InvalidAttributeValueError{Element: "cvParam " + cv.Accession, Attr: "value", Value: cv.Value}
		}
		return v, nil
	}

	switch cv.Accession {
	case cvMSLevel:
		n, err := strconv.Atoi(cv.Value)
		if err != nil {
			return &InvalidAttributeValueError{Element: "cvParam " + cv.Accession, Attr: "value", Value: cv.Value}
		}
		rs.MSLevel = int16(n)
	case cvPositiveScan:
		rs.Polarity = 1
	case cvNegativeScan:
		rs.Polarity = -1
	case cvScanStartTime:
		v, err := parseF64()
		if err != nil {
			return err
		}
		unit := units.TimeUnitFromAccession(cv.UnitAccession)
		if unit == units.InvalidTimeUnit {
			unit = units.TimeUnitFromName(cv.UnitName)
		}
		rs.RetentionTime = units.ToSeconds(v, unit)
	case cvTotalIonCurrent:
		v, err := parseF64()
		if err != nil {
			return err
		}
		rs.TotalIonCurrent = &v
	case cvBasePeakMz:
		v, err := parseF64()
		if err != nil {
			return err
		}
		rs.BasePeakMz = &v
	case cvBasePeakIntensity:
		v, err := parseF64()
		if err != nil {
			return err
		}
		f := float32(v)
		rs.BasePeakIntensity = &f
	case cvInjectionTime:
		v, err := parseF64()
		if err != nil {
			return err
		}
		f := float32(v)
		rs.InjectionTime = &f
	case cvSelectedIonMz:
		if ctx.inSelIon {
			v, err := parseF64()
			if err != nil {
				return err
			}
			rs.PrecursorMz = &v
		}
	case cvChargeState:
		if ctx.inSelIon {
			n, err := strconv.Atoi(cv.Value)
			if err != nil {
				return &InvalidAttributeValueError{Element: "cvParam " + cv.Accession, Attr: "value", Value: cv.Value}
			}
			c := int16(n)
			rs.PrecursorCharge = &c
		}
	case cvPeakIntensity:
		if ctx.inSelIon {
			v, err := parseF64()
			if err != nil {
				return err
			}
			f := float32(v)
			rs.PrecursorIntensity = &f
		}
	case cvIsolationLowerOffset:
		if ctx.inIsolWin {
			v, err := parseF64()
			if err != nil {
				return err
			}
			f := float32(v)
			rs.IsolationWindowLower = &f
		}
	case cvIsolationUpperOffset:
		if ctx.inIsolWin {
			v, err := parseF64()
			if err != nil {
				return err
			}
			f := float32(v)
			rs.IsolationWindowUpper = &f
		}
	case cvCollisionEnergy:
		if ctx.inActivate {
			v, err := parseF64()
			if err != nil {
				return err
			}
			f := float32(v)
			rs.CollisionEnergy = &f
		}
	case cvPixelX, cvPixelY, cvPixelZ:
		n, err := strconv.Atoi(cv.Value)
		if err != nil {
			return &InvalidAttributeValueError{Element: "cvParam " + cv.Accession, Attr: "value", Value: cv.Value}
		}
		p := int32(n)
		switch cv.Accession {
		case cvPixelX:
			rs.PixelX = &p
		case cvPixelY:
			rs.PixelY = &p
		case cvPixelZ:
			rs.PixelZ = &p
		}
	}
	return nil
}

// applyArrayCVParam routes one cvParam inside a binaryDataArray.
func applyArrayCVParam(arr *RawBinaryArray, cv *cvParam) error {
	switch cv.Accession {
	case cvMzArray:
		arr.Type = ArrayMz
	case cvIntensityArray:
		arr.Type = ArrayIntensity
	case cvDriftTimeArray, cvInverseMobilityArr:
		arr.Type = ArrayIonMobility
	case cvFloat64Encoding:
		arr.Encoding = decode.Float64
	case cvFloat32Encoding:
		arr.Encoding = decode.Float32
	case cvInt64Encoding:
		arr.Encoding = decode.Int64
	case cvInt32Encoding:
		arr.Encoding = decode.Int32
	case cvNoCompression:
		arr.Compression = decode.NoCompression
	case cvZlibCompression:
		arr.Compression = decode.Zlib
	case cvNumpressLinear:
		arr.Compression = decode.NumpressLinear
	case cvNumpressPic:
		arr.Compression = decode.NumpressPic
	case cvNumpressSlof:
		arr.Compression = decode.NumpressSlof
	case cvNumpressLinearZlib:
		arr.Compression = decode.NumpressLinearZlib
	case cvNumpressPicZlib:
		arr.Compression = decode.NumpressPicZlib
	case cvNumpressSlofZlib:
		arr.Compression = decode.NumpressSlofZlib
	case cvExternalOffset:
		n, err := strconv.ParseInt(cv.Value, 10, 64)
		if err != nil {
			return &InvalidAttributeValueError{Element: "cvParam " + cv.Accession, Attr: "value", Value: cv.Value}
		}
		arr.External = true
		arr.ExternalOffset = n
	case cvExternalArrayLen:
		n, err := strconv.ParseInt(cv.Value, 10, 64)
		if err != nil {
			return &InvalidAttributeValueError{Element: "cvParam " + cv.Accession, Attr: "value", Value: cv.Value}
		}
		arr.External = true
		arr.ExternalArrayLen = n
	case cvExternalEncLength:
		n, err := strconv.ParseInt(cv.Value, 10, 64)
		if err != nil {
			return &InvalidAttributeValueError{Element: "cvParam " + cv.Accession, Attr: "value", Value: cv.Value}
		}
		arr.ExternalEncLength = n
	}
	return nil
}

// ReadChromatograms parses the chromatogram list at the document tail. It
// must be called after the spectrum stream is exhausted; sources without
// one return an empty slice.
func (s *Streamer) ReadChromatograms() ([]schema.Chromatogram, error) {
	if s.fatal != nil {
		return nil, s.fatal
	}

	var out []schema.Chromatogram
	for {
		tok, err := s.d.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			s.fatal = &InvalidStructureError{Msg: "malformed XML in chromatogram list", Err: err}
			return nil, s.fatal
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "chromatogram":
			c, err := s.parseChromatogram(start)
			if err != nil {
				return nil, err
			}
			out = append(out, *c)
		case "indexList", "indexListOffset":
			return out, nil
		}
	}
}

const (
	cvTICChromatogram = "MS:1000235"
	cvBPCChromatogram = "MS:1000628"
	cvSIMChromatogram = "MS:1001472"
	cvSRMChromatogram = "MS:1001473"
	cvTimeArray       = "MS:1000595"
)

func (s *Streamer) parseChromatogram(start xml.StartElement) (*schema.Chromatogram, error) {
	c := &schema.Chromatogram{Type: schema.ChromatogramOther}
	for _, a := range start.Attr {
		if a.Name.Local == "id" {
			c.ID = a.Value
		}
	}

	var (
		depth    = 1
		curArray *RawBinaryArray
		arrays   []RawBinaryArray
		timeUnit = units.Second
	)

	for depth > 0 {
		tok, err := s.d.Token()
		if err != nil {
			s.fatal = &InvalidStructureError{Msg: "malformed XML in <chromatogram>", Err: err}
			return nil, s.fatal
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "cvParam":
				var cv cvParam
				if err := s.d.DecodeElement(&cv, &t); err != nil {
					s.fatal = &InvalidStructureError{Msg: "malformed cvParam", Err: err}
					return nil, s.fatal
				}
				switch cv.Accession {
				case cvTICChromatogram:
					c.Type = schema.ChromatogramTIC
				case cvBPCChromatogram:
					c.Type = schema.ChromatogramBPC
				case cvSIMChromatogram:
					c.Type = schema.ChromatogramSIM
				case cvSRMChromatogram:
					c.Type = schema.ChromatogramSRM
				case cvTimeArray:
					if curArray != nil {
						curArray.Type = ArrayMz // reused slot: time values
						if u := units.TimeUnitFromAccession(cv.UnitAccession); u != units.InvalidTimeUnit {
							timeUnit = u
						}
					}
				default:
					if curArray != nil {
						if err := applyArrayCVParam(curArray, &cv); err != nil {
							return nil, s.resync(err, depth)
						}
					}
				}
				continue
			case "binaryDataArray":
				arrays = append(arrays, RawBinaryArray{
					Encoding:    decode.Float64,
					Compression: decode.NoCompression,
					ArrayLength: -1,
				})
				curArray = &arrays[len(arrays)-1]
			case "binary":
				text, err := s.readCharData("binary")
				if err != nil {
					return nil, err
				}
				if curArray != nil {
					curArray.Base64 = text
				}
				continue
			}
			depth++
		case xml.EndElement:
			if t.Name.Local == "binaryDataArray" {
				curArray = nil
			}
			depth--
		}
	}

	for i := range arrays {
		arr := &arrays[i]
		values, err := decode.Decode(arr.Base64, arr.Encoding, arr.Compression, -1)
		if err != nil {
			return nil, err
		}
		switch arr.Type {
		case ArrayMz: // time
			c.TimeArray = make([]float64, len(values))
			for j, v := range values {
				c.TimeArray[j] = units.ToSeconds(v, timeUnit)
			}
		case ArrayIntensity:
			c.IntensityArray = make([]float32, len(values))
			for j, v := range values {
				c.IntensityArray[j] = float32(v)
			}
		}
	}

	return c, nil
}

// Offsets returns the byte offsets of the document index, keyed by native
// spectrum ID. Empty when the document carries no index.
func (s *Streamer) Offsets() map[string]int64 { return s.offsets }

// ReadSpectrumAt random-accesses one spectrum by native ID through the
// document index. Only available on file-backed streamers of indexed
// documents.
func (s *Streamer) ReadSpectrumAt(nativeID string) (*RawSpectrum, error) {
	if s.src == nil {
		return nil, &InvalidStructureError{Msg: "random access needs a file-backed streamer"}
	}
	off, ok := s.offsets[nativeID]
	if !ok {
		return nil, nil
	}
	if off < 0 || off >= s.srcSize {
		return nil, &InvalidStructureError{Msg: "index offset out of range"}
	}

	side := &Streamer{
		d:        xml.NewDecoder(io.NewSectionReader(s.src, off, s.srcSize-off)),
		ibd:      s.ibd,
		metaDone: true,
	}
	for {
		tok, err := side.d.Token()
		if err != nil {
			return nil, &InvalidStructureError{Msg: "seek to indexed spectrum", Err: err}
		}
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Local != "spectrum" {
				return nil, &InvalidStructureError{Msg: "index offset does not point at a spectrum"}
			}
			return side.parseSpectrum(start)
		}
	}
}
