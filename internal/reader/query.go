// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package reader

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/mzpeak/mzpeak-go/internal/writer"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// GetSpectrum resolves one spectrum by id: row groups are pruned by their
// spectrum_id statistics, then the matching groups are row-filtered.
// Missing ids return (nil, nil).
func (r *Reader) GetSpectrum(id int64) (*schema.IngestSpectrum, error) {
	var outerErr error
	spec := r.cache.Get(fmt.Sprintf("spectrum:%d", id), func() (*schema.IngestSpectrum, int) {
		s, err := r.readSpectrum(id)
		if err != nil {
			outerErr = err
			return nil, 1
		}
		if s == nil {
			return nil, 1
		}
		return s, s.PeakCount() + 1
	})
	if outerErr != nil {
		r.cache.Del(fmt.Sprintf("spectrum:%d", id))
		return nil, outerErr
	}
	return spec, nil
}

func (r *Reader) readSpectrum(id int64) (*schema.IngestSpectrum, error) {
	rows, err := r.scanRows(schema.ColSpectrumID, float64(id), float64(id),
		func(row *writer.PeakRow) bool { return row.SpectrumID == id })
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowsToSpectrum(rows), nil
}

// SpectraByRTRange returns the spectra with retention_time in [lo, hi]
// seconds, pruning row groups on the retention_time statistic.
func (r *Reader) SpectraByRTRange(lo, hi float64) ([]*schema.IngestSpectrum, error) {
	rows, err := r.scanRows(schema.ColRetentionTime, lo, hi,
		func(row *writer.PeakRow) bool {
			rt := float64(row.RetentionTime)
			return rt >= lo && rt <= hi
		})
	if err != nil {
		return nil, err
	}
	return groupRows(rows), nil
}

// SpectraByMSLevel returns the spectra of the given MS level.
func (r *Reader) SpectraByMSLevel(level int16) ([]*schema.IngestSpectrum, error) {
	rows, err := r.scanRows(schema.ColMSLevel, float64(level), float64(level),
		func(row *writer.PeakRow) bool { return row.MSLevel == level })
	if err != nil {
		return nil, err
	}
	return groupRows(rows), nil
}

// SpectraByMzRange returns spectra restricted to their peaks with m/z in
// [lo, hi]. Peaks are not resorted; callers needing m/z order must sort
// themselves.
func (r *Reader) SpectraByMzRange(lo, hi float64) ([]*schema.IngestSpectrum, error) {
	rows, err := r.scanRows(schema.ColMz, lo, hi,
		func(row *writer.PeakRow) bool { return row.Mz >= lo && row.Mz <= hi })
	if err != nil {
		return nil, err
	}
	return groupRows(rows), nil
}

// scanRows reads every row group whose statistics for column overlap
// [lo, hi] and keeps the rows matching the predicate.
func (r *Reader) scanRows(column string, lo, hi float64, keep func(*writer.PeakRow) bool) ([]writer.PeakRow, error) {
	colIdx := columnIndexOf(r.peaks, column)

	var out []writer.PeakRow
	buf := make([]writer.PeakRow, r.batchSize)

	for _, rg := range r.peaks.RowGroups() {
		if !rowGroupOverlaps(rg, colIdx, lo, hi) {
			continue
		}

		gr := parquet.NewGenericRowGroupReader[writer.PeakRow](rg)
		for {
			n, err := gr.Read(buf)
			for i := 0; i < n; i++ {
				if keep(&buf[i]) {
					out = append(out, buf[i])
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				gr.Close()
				return nil, err
			}
			if n == 0 {
				break
			}
		}
		gr.Close()
	}
	return out, nil
}

// groupRows splits a row slice into per-spectrum records. Rows arrive in
// table order, so consecutive runs share an id.
func groupRows(rows []writer.PeakRow) []*schema.IngestSpectrum {
	var specs []*schema.IngestSpectrum
	for len(rows) > 0 {
		n := spectrumPrefix(rows)
		specs = append(specs, rowsToSpectrum(rows[:n]))
		rows = rows[n:]
	}
	return specs
}
