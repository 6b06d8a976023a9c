// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package reader

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/mzpeak/mzpeak-go/internal/writer"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// BatchIterator streams peak rows with bounded memory: one batch of at
// most batchSize rows is resident at a time.
type BatchIterator struct {
	r    *parquet.GenericReader[writer.PeakRow]
	size int
	done bool
}

// IterBatches returns a bounded-memory stream over the peak table.
// Multiple iterators from the same reader can run concurrently.
func (r *Reader) IterBatches() *BatchIterator {
	return &BatchIterator{
		r:    parquet.NewGenericReader[writer.PeakRow](r.peaks),
		size: r.batchSize,
	}
}

// Next returns the next batch, or (nil, nil) at the end of the table.
func (it *BatchIterator) Next() ([]writer.PeakRow, error) {
	if it.done {
		return nil, nil
	}
	buf := make([]writer.PeakRow, it.size)
	n, err := it.r.Read(buf)
	if err == io.EOF {
		it.done = true
		it.r.Close()
		if n == 0 {
			return nil, nil
		}
		return buf[:n], nil
	}
	if err != nil {
		it.done = true
		it.r.Close()
		return nil, err
	}
	if n == 0 {
		it.done = true
		it.r.Close()
		return nil, nil
	}
	return buf[:n], nil
}

// Close releases the iterator early.
func (it *BatchIterator) Close() error {
	if !it.done {
		it.done = true
		return it.r.Close()
	}
	return nil
}

// SpectrumIterator groups peak rows into spectrum records.
type SpectrumIterator struct {
	batches  *BatchIterator
	leftover []writer.PeakRow
	done     bool
}

// IterSpectra returns spectra assembled from consecutive peak rows with
// the same spectrum_id.
func (r *Reader) IterSpectra() *SpectrumIterator {
	return &SpectrumIterator{batches: r.IterBatches()}
}

// Next returns the next spectrum, or (nil, nil) when the table is
// exhausted.
func (it *SpectrumIterator) Next() (*schema.IngestSpectrum, error) {
	if it.done && len(it.leftover) == 0 {
		return nil, nil
	}

	for {
		// A spectrum is complete when a row with a different id follows,
		// or the table ends.
		if n := spectrumPrefix(it.leftover); n > 0 && (n < len(it.leftover) || it.done) {
			spec := rowsToSpectrum(it.leftover[:n])
			it.leftover = it.leftover[n:]
			return spec, nil
		}
		if it.done {
			if len(it.leftover) == 0 {
				return nil, nil
			}
			spec := rowsToSpectrum(it.leftover)
			it.leftover = nil
			return spec, nil
		}

		batch, err := it.batches.Next()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			it.done = true
			continue
		}
		it.leftover = append(it.leftover, batch...)
	}
}

// spectrumPrefix returns the length of the leading run of rows sharing
// the first row's spectrum_id.
func spectrumPrefix(rows []writer.PeakRow) int {
	if len(rows) == 0 {
		return 0
	}
	id := rows[0].SpectrumID
	for i, row := range rows {
		if row.SpectrumID != id {
			return i
		}
	}
	return len(rows)
}

// rowsToSpectrum rebuilds a spectrum record from its peak rows.
func rowsToSpectrum(rows []writer.PeakRow) *schema.IngestSpectrum {
	head := rows[0]
	s := &schema.IngestSpectrum{
		SpectrumID:           head.SpectrumID,
		ScanNumber:           head.ScanNumber,
		MSLevel:              head.MSLevel,
		RetentionTime:        head.RetentionTime,
		Polarity:             schema.Polarity(head.Polarity),
		PrecursorMz:          head.PrecursorMz,
		PrecursorCharge:      head.PrecursorCharge,
		PrecursorIntensity:   head.PrecursorIntensity,
		IsolationWindowLower: head.IsolationWindowLower,
		IsolationWindowUpper: head.IsolationWindowUpper,
		CollisionEnergy:      head.CollisionEnergy,
		TotalIonCurrent:      head.TotalIonCurrent,
		BasePeakMz:           head.BasePeakMz,
		BasePeakIntensity:    head.BasePeakIntensity,
		InjectionTime:        head.InjectionTime,
		PixelX:               head.PixelX,
		PixelY:               head.PixelY,
		PixelZ:               head.PixelZ,
	}

	s.MzValues = make([]float64, len(rows))
	s.Intensities = make([]float32, len(rows))
	hasMobility := false
	for _, row := range rows {
		if row.IonMobility != nil {
			hasMobility = true
			break
		}
	}
	if hasMobility {
		s.IonMobility = make([]float64, len(rows))
	}
	for i, row := range rows {
		s.MzValues[i] = row.Mz
		s.Intensities[i] = row.Intensity
		if hasMobility && row.IonMobility != nil {
			s.IonMobility[i] = *row.IonMobility
		}
	}
	return s
}
