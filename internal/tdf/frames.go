// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package tdf

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// RawTdfFrame is one frame with its binary payload still compressed. All
// SQL-side metadata is resolved at streaming time; only the peak data is
// deferred until DecodePeaks.
type RawTdfFrame struct {
	Info      FrameInfo
	MsLevel   int16
	Polarity  int8
	RtSeconds float64

	// Precursor block resolved from PasefFrameMsMsInfo / DIA windows.
	PrecursorMz          *float64
	PrecursorCharge      *int16
	PrecursorIntensity   *float32
	IsolationWindowLower *float32
	IsolationWindowUpper *float32
	CollisionEnergy      *float32

	// Spatial position for MALDI imaging frames.
	Maldi *MaldiInfo

	blob        []byte
	compression int
}

// FramePeaks is the decoded peak data of a frame, already converted to the
// physical domains.
type FramePeaks struct {
	MzValues    []float64
	Intensities []float32
	IonMobility []float64
}

// FrameStreamer iterates frames of a dataset in Id order, reading the
// compressed payloads but deferring decompression to the decoder. A
// streamer restricted with SetRange covers one shard of a parallel
// conversion.
type FrameStreamer struct {
	ds        *Dataset
	batchSize int
	next      int
	end       int
}

// NewFrameStreamer creates a streamer over all frames of the dataset.
func NewFrameStreamer(ds *Dataset, batchSize int) *FrameStreamer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &FrameStreamer{ds: ds, batchSize: batchSize, end: len(ds.frames)}
}

// SetRange restricts the streamer to frame positions [start, end) of the
// Id-ordered index.
func (s *FrameStreamer) SetRange(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > len(s.ds.frames) {
		end = len(s.ds.frames)
	}
	s.next = start
	s.end = end
}

// Len returns the number of frames remaining in the streamer's range.
func (s *FrameStreamer) Len() int {
	if s.end < s.next {
		return 0
	}
	return s.end - s.next
}

// NextBatch returns the next batch of raw frames, or nil when the range is
// exhausted. A frame whose payload cannot be read ends the batch early; the
// following call returns its error and moves past it.
func (s *FrameStreamer) NextBatch() ([]*RawTdfFrame, error) {
	if s.next >= s.end {
		return nil, nil
	}
	end := s.next + s.batchSize
	if end > s.end {
		end = s.end
	}

	batch := make([]*RawTdfFrame, 0, end-s.next)
	for i := s.next; i < end; i++ {
		frame, err := s.ds.rawFrame(s.ds.frames[i])
		if err != nil {
			if len(batch) > 0 {
				s.next = i
				return batch, nil
			}
			s.next = i + 1
			return nil, err
		}
		batch = append(batch, frame)
	}
	s.next = end
	return batch, nil
}

// rawFrame resolves SQL-side metadata and reads the compressed payload for
// one frame.
func (ds *Dataset) rawFrame(info FrameInfo) (*RawTdfFrame, error) {
	f := &RawTdfFrame{
		Info:        info,
		MsLevel:     1,
		Polarity:    1,
		RtSeconds:   ds.converters.FrameToRt(info.ID),
		compression: ds.compression,
	}
	if info.Polarity == "-" {
		f.Polarity = -1
	}
	if info.MsMsType != msmsTypeMS1 {
		f.MsLevel = 2
	}

	switch info.MsMsType {
	case msmsTypePasef, msmsTypeMSMS:
		if ranges := ds.pasef[info.ID]; len(ranges) > 0 {
			resolvePasefPrecursor(f, ranges, ds.precursors)
		}
	case msmsTypeDiaPasef:
		if group, ok := ds.diaGroups[info.ID]; ok {
			if windows := ds.diaWindows[group]; len(windows) > 0 {
				resolveDiaWindow(f, windows[0])
			}
		}
	}

	if m, ok := ds.maldi[info.ID]; ok {
		maldi := m
		f.Maldi = &maldi
	}

	blob, err := ds.readFrameBlob(info)
	if err != nil {
		return nil, err
	}
	f.blob = blob
	return f, nil
}

// resolvePasefPrecursor fills the precursor block from the first quadrupole
// range of a PASEF frame, preferring the linked Precursors row when one
// exists.
func resolvePasefPrecursor(f *RawTdfFrame, ranges []PasefInfo, precursors map[int64]PrecursorInfo) {
	r := ranges[0]

	ce := float32(r.CollisionEnergy)
	f.CollisionEnergy = &ce
	half := float32(r.IsolationWidth / 2)
	f.IsolationWindowLower = &half
	f.IsolationWindowUpper = &half

	mz := r.IsolationMz
	if r.Precursor != nil {
		if p, ok := precursors[*r.Precursor]; ok {
			if p.MonoisotopicMz != nil && *p.MonoisotopicMz > 0 {
				mz = *p.MonoisotopicMz
			}
			if p.Charge != nil {
				c := int16(*p.Charge)
				f.PrecursorCharge = &c
			}
			if p.Intensity != nil {
				in := float32(*p.Intensity)
				f.PrecursorIntensity = &in
			}
		}
	}
	f.PrecursorMz = &mz
}

func resolveDiaWindow(f *RawTdfFrame, w DiaWindowInfo) {
	mz := w.IsolationMz
	f.PrecursorMz = &mz
	ce := float32(w.CollisionEnergy)
	f.CollisionEnergy = &ce
	half := float32(w.IsolationWidth / 2)
	f.IsolationWindowLower = &half
	f.IsolationWindowUpper = &half
}

// readFrameBlob reads the length-prefixed compressed block at the frame's
// TimsId offset.
func (ds *Dataset) readFrameBlob(info FrameInfo) ([]byte, error) {
	var header [8]byte
	if _, err := ds.bin.ReadAt(header[:], info.TimsID); err != nil {
		return nil, &FrameParsingError{Frame: info.ID, Msg: "read frame header", Err: err}
	}
	totalLen := binary.LittleEndian.Uint32(header[0:4])
	if totalLen < 8 || totalLen > 1<<30 {
		return nil, &FrameParsingError{Frame: info.ID, Msg: fmt.Sprintf("implausible frame length %d", totalLen)}
	}

	blob := make([]byte, totalLen)
	if _, err := ds.bin.ReadAt(blob, info.TimsID); err != nil {
		return nil, &FrameParsingError{Frame: info.ID, Msg: "read frame payload", Err: err}
	}
	return blob, nil
}

var zstdDecoder = func() *zstd.Decoder {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic(err)
	}
	return d
}()

// DecodePeaks decompresses the frame payload and converts the scan-packed
// peak lists to m/z, intensity and 1/K0 arrays. Peaks stay in source order:
// scan by scan, TOF index ascending within a scan.
func (f *RawTdfFrame) DecodePeaks(conv *Converters) (*FramePeaks, error) {
	// Trust the blob header over Frames.NumScans; the two have been
	// observed to disagree on truncated datasets.
	numScans := int(binary.LittleEndian.Uint32(f.blob[4:8]))
	if numScans <= 0 {
		return nil, &FrameParsingError{Frame: f.Info.ID, Msg: fmt.Sprintf("implausible scan count %d", numScans)}
	}

	var payload []byte
	switch f.compression {
	case 2:
		var err error
		payload, err = zstdDecoder.DecodeAll(f.blob[8:], nil)
		if err != nil {
			return nil, &FrameParsingError{Frame: f.Info.ID, Msg: "zstd decompression", Err: err}
		}
	case 0:
		payload = f.blob[8:]
	default:
		return nil, &FrameParsingError{Frame: f.Info.ID, Msg: fmt.Sprintf("unsupported compression type %d", f.compression)}
	}

	if len(payload)%4 != 0 {
		return nil, &FrameParsingError{Frame: f.Info.ID, Msg: "payload not word-aligned"}
	}
	words := make([]uint32, len(payload)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(payload[i*4:])
	}
	if len(words) < numScans {
		return nil, &FrameParsingError{Frame: f.Info.ID, Msg: "payload shorter than scan directory"}
	}

	counts := words[:numScans]
	data := words[numScans:]

	var total int
	for _, c := range counts {
		total += int(c)
	}
	if len(data) != 2*total {
		return nil, &FrameParsingError{
			Frame: f.Info.ID,
			Msg:   fmt.Sprintf("scan directory wants %d peak words, payload has %d", 2*total, len(data)),
		}
	}

	peaks := &FramePeaks{
		MzValues:    make([]float64, 0, total),
		Intensities: make([]float32, 0, total),
		IonMobility: make([]float64, 0, total),
	}

	pos := 0
	for scan := 0; scan < numScans; scan++ {
		mobility := conv.ScanToOneOverK0(scan)
		var tof uint32
		for p := 0; p < int(counts[scan]); p++ {
			tof += data[pos] // delta-encoded within the scan
			intensity := data[pos+1]
			pos += 2

			peaks.MzValues = append(peaks.MzValues, conv.TofToMz(tof))
			peaks.Intensities = append(peaks.Intensities, float32(intensity))
			peaks.IonMobility = append(peaks.IonMobility, mobility)
		}
	}

	return peaks, nil
}
