// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package validator runs structural, metadata, schema and data-sanity
// checks over an mzpeak archive.
package validator

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/mzpeak/mzpeak-go/internal/container"
	"github.com/mzpeak/mzpeak-go/internal/reader"
	"github.com/mzpeak/mzpeak-go/internal/writer"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

const (
	phaseStructure = "structure"
	phaseMetadata  = "metadata"
	phaseSchema    = "schema"
	phaseData      = "data"
)

// Validate runs all four phases against the archive at path. Later phases
// are skipped once a phase fails hard enough that continuing would only
// produce noise.
func Validate(path string) *Report {
	report := &Report{Path: path}

	arch := checkStructure(path, report)
	if arch == nil {
		return report
	}
	defer arch.Close()

	r := checkMetadata(path, arch, report)
	if r == nil {
		return report
	}
	defer r.Close()

	checkSchema(r, report)
	checkData(r, report)
	return report
}

// checkStructure verifies the container/directory layout: mimetype first
// and stored, required segments present, central directory readable.
func checkStructure(path string, report *Report) *container.Archive {
	info, err := os.Stat(path)
	if err != nil {
		report.fail(phaseStructure, "archive exists", err.Error())
		return nil
	}

	if !info.IsDir() && strings.EqualFold(filepath.Ext(path), schema.ContainerExt) {
		ok, err := container.IdentifyMimetype(path)
		if err != nil {
			report.fail(phaseStructure, "read first local header", err.Error())
			return nil
		}
		if !ok {
			report.fail(phaseStructure, "mimetype entry", "first entry is not a stored "+schema.Mimetype)
			return nil
		}
		report.ok(phaseStructure, "mimetype entry first and stored")
	}

	arch, err := container.Open(path)
	if err != nil {
		report.fail(phaseStructure, "open archive", err.Error())
		return nil
	}
	report.ok(phaseStructure, "central directory consistent")

	if arch.Peaks() == nil {
		report.fail(phaseStructure, "peaks segment", "missing "+container.PeaksEntry)
		arch.Close()
		return nil
	}
	report.ok(phaseStructure, "required segments present")
	if arch.Spectra() == nil && arch.Layout != container.LayoutBareParquet {
		report.warn(phaseStructure, "spectra segment", "v1 archive without spectra index")
	}
	return arch
}

// checkMetadata validates the JSON envelope: deserializable, schema-valid,
// recognized format version.
func checkMetadata(path string, arch *container.Archive, report *Report) *reader.Reader {
	if arch.Metadata != nil {
		if err := schema.Validate(schema.MetadataEnvelope, bytes.NewReader(arch.Metadata)); err != nil {
			report.fail(phaseMetadata, "metadata.json schema", err.Error())
			return nil
		}
		report.ok(phaseMetadata, "metadata.json validates")
	}

	r, err := reader.Open(path)
	if err != nil {
		report.fail(phaseMetadata, "metadata envelope", err.Error())
		return nil
	}

	version := r.FileMetadata().FormatVersion
	if version == "" {
		report.fail(phaseMetadata, "format version", "missing")
		r.Close()
		return nil
	}
	if !strings.HasPrefix(version, "1.") {
		report.fail(phaseMetadata, "format version", fmt.Sprintf("unrecognized version %q", version))
		r.Close()
		return nil
	}
	report.ok(phaseMetadata, "format version recognized")
	return r
}

// checkSchema records the outcome of the column contract check that
// reader.Open already made: one summary check, not one check per column.
func checkSchema(r *reader.Reader, report *Report) {
	// The reader re-validates on open, so reaching this point means the
	// required set is present with exact types.
	report.ok(phaseSchema, fmt.Sprintf("%d required columns bound with exact types", len(schema.RequiredPeakColumns)))
	if r.FileMetadata().IsV2 {
		report.ok(phaseSchema, "spectra index table present (v2)")
	}
}

// checkData walks the peak table for spectrum_id monotonicity and the
// ms_level and polarity ranges, then checkRowGroupBounds reads each row
// group again to check that the declared min/max bracket the actual values.
// Null values in required columns are not checked.
func checkData(r *reader.Reader, report *Report) {
	it := r.IterBatches()

	var (
		lastID    int64
		haveLast  bool
		rows      int64
		badLevel  int64
		badPol    int64
		unordered int64
		minID     = int64(1<<63 - 1)
		maxID     = int64(-1 << 63)
	)

	for {
		batch, err := it.Next()
		if err != nil {
			report.fail(phaseData, "scan peak table", err.Error())
			return
		}
		if batch == nil {
			break
		}
		for i := range batch {
			row := &batch[i]
			rows++
			if haveLast && row.SpectrumID < lastID {
				unordered++
			}
			lastID = row.SpectrumID
			haveLast = true
			if row.SpectrumID < minID {
				minID = row.SpectrumID
			}
			if row.SpectrumID > maxID {
				maxID = row.SpectrumID
			}
			if row.MSLevel < 1 || row.MSLevel > 10 {
				badLevel++
			}
			if row.Polarity != 1 && row.Polarity != -1 {
				badPol++
			}
		}
	}

	if unordered > 0 {
		report.fail(phaseData, "spectrum_id monotonic", fmt.Sprintf("%d out-of-order rows", unordered))
	} else {
		report.ok(phaseData, "spectrum_id monotonic")
	}
	if badLevel > 0 {
		report.fail(phaseData, "ms_level in [1,10]", fmt.Sprintf("%d violations", badLevel))
	} else {
		report.ok(phaseData, "ms_level in [1,10]")
	}
	if badPol > 0 {
		report.fail(phaseData, "polarity in {+1,-1}", fmt.Sprintf("%d violations", badPol))
	} else {
		report.ok(phaseData, "polarity in {+1,-1}")
	}

	checkRowGroupBounds(r, report)

	if rows == 0 {
		report.warn(phaseData, "peak table", "archive holds no peaks")
	}
}

// checkRowGroupBounds re-reads each row group and verifies the declared
// column statistics bracket the actual values of the indexed columns.
func checkRowGroupBounds(r *reader.Reader, report *Report) {
	file := r.PeaksFile()
	s := file.Schema()

	type colCheck struct {
		name  string
		index int
		value func(*writer.PeakRow) float64
	}
	var checks []colCheck
	add := func(name string, value func(*writer.PeakRow) float64) {
		if leaf, ok := s.Lookup(name); ok {
			checks = append(checks, colCheck{name: name, index: leaf.ColumnIndex, value: value})
		}
	}
	add(schema.ColSpectrumID, func(p *writer.PeakRow) float64 { return float64(p.SpectrumID) })
	add(schema.ColRetentionTime, func(p *writer.PeakRow) float64 { return float64(p.RetentionTime) })
	add(schema.ColMSLevel, func(p *writer.PeakRow) float64 { return float64(p.MSLevel) })
	add(schema.ColMz, func(p *writer.PeakRow) float64 { return p.Mz })

	violations := 0
	buf := make([]writer.PeakRow, 1024)

	for _, rg := range file.RowGroups() {
		chunks := rg.ColumnChunks()

		type bound struct {
			min, max float64
			ok       bool
		}
		bounds := make([]bound, len(checks))
		for ci, c := range checks {
			if c.index < len(chunks) {
				min, max, ok := reader.ColumnBounds(chunks[c.index])
				bounds[ci] = bound{min: min, max: max, ok: ok}
			}
		}

		gr := parquet.NewGenericRowGroupReader[writer.PeakRow](rg)
		for {
			n, err := gr.Read(buf)
			for i := 0; i < n; i++ {
				for ci, c := range checks {
					if !bounds[ci].ok {
						continue
					}
					v := c.value(&buf[i])
					if v < bounds[ci].min || v > bounds[ci].max {
						violations++
					}
				}
			}
			if err == io.EOF || n == 0 {
				break
			}
			if err != nil {
				gr.Close()
				report.fail(phaseData, "row group statistics", err.Error())
				return
			}
		}
		gr.Close()
	}

	if violations > 0 {
		report.fail(phaseData, "row group min/max bracket values", fmt.Sprintf("%d violations", violations))
	} else {
		report.ok(phaseData, "row group min/max bracket values")
	}
}
