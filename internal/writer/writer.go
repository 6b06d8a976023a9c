// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package writer buffers spectra into row groups and emits mzpeak
// archives: Parquet segments packaged into a container or a directory
// bundle.
package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/mzpeak/mzpeak-go/internal/container"
	"github.com/mzpeak/mzpeak-go/pkg/log"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// Writer buffers peak rows and flushes them as row groups. Peaks of one
// spectrum never split across row groups: a spectrum larger than the
// configured row-group size gets one oversized group of its own, so every
// group covers a contiguous spectrum_id range. Finish is single-shot.
type Writer struct {
	path          string
	directoryMode bool
	stagingDir    string
	meta          *schema.Metadata
	cfg           Config

	peaksFile *os.File
	pw        *parquet.GenericWriter[PeakRow]
	peakBuf   []PeakRow

	spectraRows []SpectrumRow
	chromRows   []ChromatogramRow

	peakOffset int64
	lastID     int64
	haveLast   bool

	auto        chromAccumulator
	sourceChrom bool

	stats    Stats
	finished bool
}

// chromAccumulator collects per-MS1-spectrum TIC and base-peak values so
// archives from chromatogram-less sources still carry TIC and BPC traces.
type chromAccumulator struct {
	times []float64
	tic   []float32
	bpc   []float32
}

func (a *chromAccumulator) add(s *schema.IngestSpectrum) {
	if s.MSLevel != 1 {
		return
	}
	var tic float64
	if s.TotalIonCurrent != nil {
		tic = *s.TotalIonCurrent
	} else {
		for _, v := range s.Intensities {
			tic += float64(v)
		}
	}
	var bpc float32
	if s.BasePeakIntensity != nil {
		bpc = *s.BasePeakIntensity
	} else {
		for _, v := range s.Intensities {
			if v > bpc {
				bpc = v
			}
		}
	}
	a.times = append(a.times, float64(s.RetentionTime))
	a.tic = append(a.tic, float32(tic))
	a.bpc = append(a.bpc, bpc)
}

// New creates a writer. A path ending in .mzpeak produces a container
// archive; any other path is treated as a directory bundle.
func New(path string, meta *schema.Metadata, cfg Config) (*Writer, error) {
	if meta == nil {
		meta = schema.NewMetadata()
	}
	cfg = cfg.normalized()

	w := &Writer{
		path:          path,
		directoryMode: !strings.EqualFold(filepath.Ext(path), schema.ContainerExt),
		meta:          meta,
		cfg:           cfg,
	}

	staging, err := os.MkdirTemp(filepath.Dir(path), ".mzpeak-staging-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	w.stagingDir = staging

	w.peaksFile, err = os.Create(filepath.Join(staging, "peaks.parquet"))
	if err != nil {
		os.RemoveAll(staging)
		return nil, fmt.Errorf("create peaks segment: %w", err)
	}

	w.pw = parquet.NewGenericWriter[PeakRow](w.peaksFile,
		parquet.Compression(cfg.Compression.codec()),
		parquet.DataPageStatistics(true),
	)
	w.peakBuf = make([]PeakRow, 0, cfg.RowGroupSize)

	return w, nil
}

// WriteSpectrum buffers one spectrum. spectrum_id must be non-decreasing
// in write order.
func (w *Writer) WriteSpectrum(s *schema.IngestSpectrum) error {
	if w.finished {
		return fmt.Errorf("writer already finished")
	}
	if w.haveLast && s.SpectrumID < w.lastID {
		return fmt.Errorf("spectrum_id %d after %d: writes must be ordered", s.SpectrumID, w.lastID)
	}
	w.lastID = s.SpectrumID
	w.haveLast = true

	rows := peakRows(s)

	// Flush the pending group first when this spectrum would overflow it;
	// a spectrum alone larger than the row-group size goes out as one
	// oversized group.
	if len(w.peakBuf) > 0 && len(w.peakBuf)+len(rows) > w.cfg.RowGroupSize {
		if err := w.flushRowGroup(); err != nil {
			return err
		}
	}
	w.peakBuf = append(w.peakBuf, rows...)
	if len(w.peakBuf) >= w.cfg.RowGroupSize {
		if err := w.flushRowGroup(); err != nil {
			return err
		}
	}

	w.spectraRows = append(w.spectraRows, spectrumRow(s, w.peakOffset))
	w.peakOffset += int64(len(rows))
	w.auto.add(s)

	w.stats.SpectraWritten++
	w.stats.PeaksWritten += len(rows)
	return nil
}

// WriteSpectra buffers a batch of spectra.
func (w *Writer) WriteSpectra(batch []*schema.IngestSpectrum) error {
	for _, s := range batch {
		if err := w.WriteSpectrum(s); err != nil {
			return err
		}
	}
	return nil
}

// WriteChromatogram appends a source chromatogram. Writing any source
// chromatogram disables TIC/BPC auto-generation.
func (w *Writer) WriteChromatogram(c *schema.Chromatogram) error {
	if w.finished {
		return fmt.Errorf("writer already finished")
	}
	if len(c.TimeArray) != len(c.IntensityArray) {
		return fmt.Errorf("chromatogram %q: time and intensity arrays differ in length", c.ID)
	}
	w.sourceChrom = true
	w.chromRows = append(w.chromRows, ChromatogramRow{
		ChromatogramID:   c.ID,
		ChromatogramType: string(c.Type),
		TimeArray:        c.TimeArray,
		IntensityArray:   c.IntensityArray,
	})
	w.stats.ChromatogramsWritten++
	return nil
}

func (w *Writer) flushRowGroup() error {
	if len(w.peakBuf) == 0 {
		return nil
	}
	if _, err := w.pw.Write(w.peakBuf); err != nil {
		return fmt.Errorf("write row group: %w", err)
	}
	if err := w.pw.Flush(); err != nil {
		return fmt.Errorf("flush row group: %w", err)
	}
	w.stats.RowGroupsWritten++
	w.peakBuf = w.peakBuf[:0]
	return nil
}

// Finish flushes the partial row group, writes the footer with the
// metadata envelope, emits the spectra and chromatogram segments and
// packages the archive. It may be called exactly once; on error the
// partial output is left on disk for inspection.
func (w *Writer) Finish() (*Stats, error) {
	if w.finished {
		return nil, fmt.Errorf("writer already finished")
	}
	w.finished = true

	if err := w.flushRowGroup(); err != nil {
		return nil, err
	}

	envelope, err := w.meta.Envelope()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(envelope))
	for k := range envelope {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.pw.SetKeyValueMetadata(k, envelope[k])
	}

	if err := w.pw.Close(); err != nil {
		return nil, fmt.Errorf("close peaks segment: %w", err)
	}
	if err := w.peaksFile.Close(); err != nil {
		return nil, fmt.Errorf("close peaks segment: %w", err)
	}

	segments := []container.Segment{
		{Name: container.PeaksEntry, SourcePath: w.peaksFile.Name()},
	}

	spectraPath, err := w.writeSpectraSegment(envelope)
	if err != nil {
		return nil, err
	}
	segments = append(segments, container.Segment{Name: container.SpectraEntry, SourcePath: spectraPath})

	if !w.sourceChrom {
		w.appendAutoChromatograms()
	}
	if len(w.chromRows) > 0 {
		chromPath, err := w.writeChromatogramSegment()
		if err != nil {
			return nil, err
		}
		segments = append(segments, container.Segment{Name: container.ChromatogramsEntry, SourcePath: chromPath})
	}

	metadataJSON, err := json.MarshalIndent(w.meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata.json: %w", err)
	}

	if w.directoryMode {
		err = container.BuildDirectory(w.path, metadataJSON, segments)
	} else {
		err = container.Build(w.path, metadataJSON, segments)
	}
	if err != nil {
		return nil, err
	}

	if info, statErr := os.Stat(w.path); statErr == nil && !info.IsDir() {
		w.stats.FileSizeBytes = info.Size()
	} else if w.directoryMode {
		w.stats.FileSizeBytes = dirSize(w.path)
	}

	os.RemoveAll(w.stagingDir)
	log.Infof("mzpeak writer: %s", w.stats.String())
	stats := w.stats
	return &stats, nil
}

// appendAutoChromatograms derives TIC and BPC traces from the accumulated
// MS1 spectra.
func (w *Writer) appendAutoChromatograms() {
	if len(w.auto.times) == 0 {
		return
	}
	w.chromRows = append(w.chromRows,
		ChromatogramRow{
			ChromatogramID:   "TIC",
			ChromatogramType: string(schema.ChromatogramTIC),
			TimeArray:        w.auto.times,
			IntensityArray:   w.auto.tic,
		},
		ChromatogramRow{
			ChromatogramID:   "BPC",
			ChromatogramType: string(schema.ChromatogramBPC),
			TimeArray:        w.auto.times,
			IntensityArray:   w.auto.bpc,
		},
	)
	w.stats.ChromatogramsWritten += 2
}

func (w *Writer) writeSpectraSegment(envelope map[string]string) (string, error) {
	path := filepath.Join(w.stagingDir, "spectra.parquet")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create spectra segment: %w", err)
	}

	sw := parquet.NewGenericWriter[SpectrumRow](f,
		parquet.Compression(w.cfg.Compression.codec()),
		parquet.DataPageStatistics(true),
	)
	if len(w.spectraRows) > 0 {
		if _, err := sw.Write(w.spectraRows); err != nil {
			f.Close()
			return "", fmt.Errorf("write spectra segment: %w", err)
		}
	}
	sw.SetKeyValueMetadata(schema.KeyFormatVersion, envelope[schema.KeyFormatVersion])
	if err := sw.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("close spectra segment: %w", err)
	}
	return path, f.Close()
}

func (w *Writer) writeChromatogramSegment() (string, error) {
	path := filepath.Join(w.stagingDir, "chromatograms.parquet")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chromatogram segment: %w", err)
	}

	cw := parquet.NewGenericWriter[ChromatogramRow](f,
		parquet.Compression(w.cfg.Compression.codec()),
	)
	if _, err := cw.Write(w.chromRows); err != nil {
		f.Close()
		return "", fmt.Errorf("write chromatogram segment: %w", err)
	}
	if err := cw.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("close chromatogram segment: %w", err)
	}
	return path, f.Close()
}

func dirSize(dir string) int64 {
	var total int64
	filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
