// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package reader

import (
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/mzpeak/mzpeak-go/internal/writer"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// Summary holds archive-level counts and ranges.
type Summary struct {
	TotalPeaks    int64
	NumSpectra    int64
	NumMS1Spectra int64
	NumMS2Spectra int64
	RTRange       *[2]float64
	MzRange       *[2]float64
	FormatVersion string
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mzpeak archive summary\n")
	fmt.Fprintf(&b, "format version: %s\n", s.FormatVersion)
	fmt.Fprintf(&b, "total peaks: %d\n", s.TotalPeaks)
	fmt.Fprintf(&b, "total spectra: %d (MS1 %d, MS2 %d)\n", s.NumSpectra, s.NumMS1Spectra, s.NumMS2Spectra)
	if s.RTRange != nil {
		fmt.Fprintf(&b, "RT range: %.2f - %.2f s\n", s.RTRange[0], s.RTRange[1])
	}
	if s.MzRange != nil {
		fmt.Fprintf(&b, "m/z range: %.4f - %.4f\n", s.MzRange[0], s.MzRange[1])
	}
	return b.String()
}

// Summary derives counts and ranges from footer statistics where possible:
// peak count and rt/mz ranges come from the footer, spectrum counts from
// the spectra table when present. Only v1 archives without a spectra table
// pay for a full scan.
func (r *Reader) Summary() (*Summary, error) {
	s := &Summary{
		TotalPeaks:    r.peaks.NumRows(),
		FormatVersion: r.fileMeta.FormatVersion,
	}
	s.RTRange = r.footerRange(schema.ColRetentionTime)
	s.MzRange = r.footerRange(schema.ColMz)

	if r.spectra != nil {
		if err := r.summarizeSpectraTable(s); err != nil {
			return nil, err
		}
		return s, nil
	}

	// Full scan fallback.
	it := r.IterSpectra()
	for {
		spec, err := it.Next()
		if err != nil {
			return nil, err
		}
		if spec == nil {
			break
		}
		s.NumSpectra++
		switch spec.MSLevel {
		case 1:
			s.NumMS1Spectra++
		case 2:
			s.NumMS2Spectra++
		}
	}
	return s, nil
}

func (r *Reader) summarizeSpectraTable(s *Summary) error {
	s.NumSpectra = r.spectra.NumRows()

	gr := parquet.NewGenericReader[writer.SpectrumRow](r.spectra)
	defer gr.Close()

	buf := make([]writer.SpectrumRow, r.batchSize)
	for {
		n, err := gr.Read(buf)
		for i := 0; i < n; i++ {
			switch buf[i].MSLevel {
			case 1:
				s.NumMS1Spectra++
			case 2:
				s.NumMS2Spectra++
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// footerRange folds row-group statistics of a column into a global range,
// nil when any group lacks statistics.
func (r *Reader) footerRange(column string) *[2]float64 {
	colIdx := columnIndexOf(r.peaks, column)
	if colIdx < 0 {
		return nil
	}

	var lo, hi float64
	first := true
	for _, rg := range r.peaks.RowGroups() {
		chunks := rg.ColumnChunks()
		if colIdx >= len(chunks) {
			return nil
		}
		min, max, ok := ColumnBounds(chunks[colIdx])
		if !ok {
			return nil
		}
		if first {
			lo, hi = min, max
			first = false
			continue
		}
		if min < lo {
			lo = min
		}
		if max > hi {
			hi = max
		}
	}
	if first {
		return nil
	}
	return &[2]float64{lo, hi}
}
