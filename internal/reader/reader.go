// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package reader opens mzpeak archives and serves batch iteration and
// pruned random access over the peak table.
package reader

import (
	"encoding/json"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/mzpeak/mzpeak-go/internal/container"
	"github.com/mzpeak/mzpeak-go/internal/writer"
	"github.com/mzpeak/mzpeak-go/pkg/lrucache"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// SchemaError reports peak-table columns missing or bound to the wrong
// type. The reader refuses to open such archives.
type SchemaError struct {
	Column string
	Msg    string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: column %s: %s", e.Column, e.Msg)
}

// MetadataError reports a malformed metadata envelope; treated as
// corruption.
type MetadataError struct {
	Msg string
	Err error
}

func (e *MetadataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("metadata: %s: %v", e.Msg, e.Err)
	}
	return "metadata: " + e.Msg
}

func (e *MetadataError) Unwrap() error { return e.Err }

// FileMetadata summarizes an opened archive.
type FileMetadata struct {
	FormatVersion string
	TotalPeaks    int64
	NumSpectra    int64 // -1 when the archive has no spectra table
	NumRowGroups  int
	IsV2          bool
	HasChroms     bool
}

// spectrumCacheBudget bounds the GetSpectrum cache, in peaks.
const spectrumCacheBudget = 1 << 20

// Reader is an opened archive. The backing handle is shared behind
// cloneable seekable views, so iterators obtained from one reader can run
// concurrently.
type Reader struct {
	arch *container.Archive

	peaks   *parquet.File
	spectra *parquet.File
	chrom   *parquet.File

	meta     *schema.Metadata
	fileMeta FileMetadata

	batchSize int
	cache     *lrucache.Cache[*schema.IngestSpectrum]
}

// Open opens a container archive, a directory bundle or a bare Parquet
// peaks file.
func Open(path string) (*Reader, error) {
	arch, err := container.Open(path)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		arch:      arch,
		batchSize: writer.DefaultConfig().BatchSize,
		cache:     lrucache.New[*schema.IngestSpectrum](spectrumCacheBudget),
	}

	peaksView := arch.Peaks()
	r.peaks, err = parquet.OpenFile(peaksView, peaksView.Size())
	if err != nil {
		arch.Close()
		return nil, &container.InvalidStructureError{Msg: "open peaks segment", Err: err}
	}

	if err := checkPeakSchema(r.peaks); err != nil {
		arch.Close()
		return nil, err
	}

	if view := arch.Spectra(); view != nil {
		r.spectra, err = parquet.OpenFile(view.Clone(), view.Size())
		if err != nil {
			arch.Close()
			return nil, &container.InvalidStructureError{Msg: "open spectra segment", Err: err}
		}
	}
	if view := arch.Chromatograms(); view != nil {
		r.chrom, err = parquet.OpenFile(view.Clone(), view.Size())
		if err != nil {
			arch.Close()
			return nil, &container.InvalidStructureError{Msg: "open chromatogram segment", Err: err}
		}
	}

	if err := r.loadMetadata(); err != nil {
		arch.Close()
		return nil, err
	}

	r.fileMeta.TotalPeaks = r.peaks.NumRows()
	r.fileMeta.NumRowGroups = len(r.peaks.RowGroups())
	r.fileMeta.IsV2 = r.spectra != nil
	r.fileMeta.HasChroms = r.chrom != nil
	r.fileMeta.NumSpectra = -1
	if r.spectra != nil {
		r.fileMeta.NumSpectra = r.spectra.NumRows()
	}

	return r, nil
}

// Close releases the archive.
func (r *Reader) Close() error { return r.arch.Close() }

// Metadata returns the archive metadata envelope.
func (r *Reader) Metadata() *schema.Metadata { return r.meta }

// FileMetadata returns the archive summary computed at open.
func (r *Reader) FileMetadata() FileMetadata { return r.fileMeta }

// SetBatchSize tunes the batch size of subsequent iterators.
func (r *Reader) SetBatchSize(n int) {
	if n > 0 {
		r.batchSize = n
	}
}

// loadMetadata prefers the envelope embedded in the Parquet footer and
// falls back to metadata.json for archives written by tools that omit it.
func (r *Reader) loadMetadata() error {
	env := map[string]string{}
	for _, key := range []string{
		schema.KeyFormatVersion, schema.KeySdrfMetadata, schema.KeyInstrumentConfig,
		schema.KeyLcConfig, schema.KeyRunParameters, schema.KeySourceFile,
		schema.KeyConversionTimestamp, schema.KeyProcessingHistory, schema.KeyRawFileChecksum,
	} {
		if v, ok := r.peaks.Lookup(key); ok {
			env[key] = v
		}
	}

	if _, ok := env[schema.KeyFormatVersion]; ok {
		meta, err := schema.MetadataFromEnvelope(env)
		if err != nil {
			return &MetadataError{Msg: "parquet footer envelope", Err: err}
		}
		r.meta = meta
		r.fileMeta.FormatVersion = meta.FormatVersion
		return nil
	}

	if r.arch.Metadata != nil {
		var meta schema.Metadata
		if err := json.Unmarshal(r.arch.Metadata, &meta); err != nil {
			return &MetadataError{Msg: "metadata.json", Err: err}
		}
		if meta.FormatVersion == "" {
			return &MetadataError{Msg: "metadata.json is missing format_version"}
		}
		r.meta = &meta
		r.fileMeta.FormatVersion = meta.FormatVersion
		return nil
	}

	return &MetadataError{Msg: "archive carries no metadata envelope"}
}

// checkPeakSchema verifies the required column set with exact types.
func checkPeakSchema(file *parquet.File) error {
	s := file.Schema()
	for _, spec := range schema.RequiredPeakColumns {
		leaf, ok := s.Lookup(spec.Name)
		if !ok {
			if spec.Nullable {
				continue // optional columns may be absent entirely
			}
			return &SchemaError{Column: spec.Name, Msg: "missing"}
		}
		got := leafTypeName(leaf)
		if got != spec.Type {
			return &SchemaError{Column: spec.Name, Msg: fmt.Sprintf("has type %s, want %s", got, spec.Type)}
		}
	}
	return nil
}

// leafTypeName renders a leaf column type the way the schema contract
// spells it.
func leafTypeName(leaf parquet.LeafColumn) string {
	t := leaf.Node.Type()
	switch t.Kind() {
	case parquet.Double:
		return "float64"
	case parquet.Float:
		return "float32"
	case parquet.Int64:
		return "int64"
	case parquet.Int32:
		if lt := t.LogicalType(); lt != nil && lt.Integer != nil {
			switch lt.Integer.BitWidth {
			case 8:
				return "int8"
			case 16:
				return "int16"
			}
		}
		return "int32"
	case parquet.ByteArray:
		return "string"
	}
	return t.String()
}

// PeaksFile exposes the parquet file of the peak segment for statistics
// inspection.
func (r *Reader) PeaksFile() *parquet.File { return r.peaks }
