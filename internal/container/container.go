// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package container packages and opens mzpeak archives: a ZIP whose first
// entry identifies the format and whose Parquet segments are stored without
// ZIP-level compression so they stay byte-addressable.
package container

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/flate"

	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// Entry names inside an archive.
const (
	MimetypeEntry      = "mimetype"
	MetadataEntry      = "metadata.json"
	PeaksEntry         = "peaks/peaks.parquet"
	SpectraEntry       = "spectra/spectra.parquet"
	ChromatogramsEntry = "chromatograms/chromatograms.parquet"
)

// maxMimetypeLen bounds the first entry so readers can identify an archive
// from the first local file header alone.
const maxMimetypeLen = 256

// Segment is one Parquet file to package.
type Segment struct {
	// Name is the entry path inside the container, e.g. "peaks/peaks.parquet".
	Name string
	// SourcePath is the staged file on disk.
	SourcePath string
}

// Build writes a container archive at dst. Entry order is fixed: mimetype
// (stored), metadata.json (deflate), then the Parquet segments (stored —
// they compress internally, and ZIP deflate would destroy the seekability
// of byte offsets inside them).
func Build(dst string, metadataJSON []byte, segments []Segment) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	if err := writeMimetype(zw); err != nil {
		f.Close()
		return err
	}

	mw, err := zw.CreateHeader(&zip.FileHeader{Name: MetadataEntry, Method: zip.Deflate})
	if err != nil {
		f.Close()
		return fmt.Errorf("create %s: %w", MetadataEntry, err)
	}
	if _, err := mw.Write(metadataJSON); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", MetadataEntry, err)
	}

	for _, seg := range segments {
		if err := storeSegment(zw, seg); err != nil {
			f.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize container: %w", err)
	}
	return f.Close()
}

func writeMimetype(zw *zip.Writer) error {
	if len(schema.Mimetype) > maxMimetypeLen {
		return fmt.Errorf("mimetype exceeds %d bytes", maxMimetypeLen)
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: MimetypeEntry, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("create mimetype entry: %w", err)
	}
	if _, err := w.Write([]byte(schema.Mimetype)); err != nil {
		return fmt.Errorf("write mimetype entry: %w", err)
	}
	return nil
}

func storeSegment(zw *zip.Writer, seg Segment) error {
	src, err := os.Open(seg.SourcePath)
	if err != nil {
		return fmt.Errorf("open segment %s: %w", seg.Name, err)
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: seg.Name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("create segment %s: %w", seg.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("store segment %s: %w", seg.Name, err)
	}
	return nil
}

// BuildDirectory lays out the same tree unpackaged under dst.
func BuildDirectory(dst string, metadataJSON []byte, segments []Segment) error {
	if err := os.MkdirAll(dst, 0o750); err != nil {
		return fmt.Errorf("create directory bundle: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dst, MetadataEntry), metadataJSON, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", MetadataEntry, err)
	}
	for _, seg := range segments {
		target := filepath.Join(dst, filepath.FromSlash(seg.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return fmt.Errorf("create %s: %w", path.Dir(seg.Name), err)
		}
		if err := copyFile(seg.SourcePath, target); err != nil {
			return fmt.Errorf("place segment %s: %w", seg.Name, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
