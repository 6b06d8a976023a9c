// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package container

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// Layout identifies how an archive is stored on disk.
type Layout int

const (
	LayoutContainer Layout = iota
	LayoutDirectory
	LayoutBareParquet
)

// InvalidStructureError reports a malformed archive.
type InvalidStructureError struct {
	Msg string
	Err error
}

func (e *InvalidStructureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid archive structure: %s: %v", e.Msg, e.Err)
	}
	return "invalid archive structure: " + e.Msg
}

func (e *InvalidStructureError) Unwrap() error { return e.Err }

// SharedSeekableReader is a cheaply-cloneable random-access view of one
// stored segment. All clones share the backing file handle; each carries
// its own offsets, so concurrent iterators never disturb each other.
type SharedSeekableReader struct {
	ra   io.ReaderAt
	off  int64
	size int64
}

// NewSharedSeekableReader wraps size bytes of ra starting at off.
func NewSharedSeekableReader(ra io.ReaderAt, off, size int64) *SharedSeekableReader {
	return &SharedSeekableReader{ra: ra, off: off, size: size}
}

// ReadAt implements io.ReaderAt relative to the segment start.
func (r *SharedSeekableReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= r.size {
		return 0, io.EOF
	}
	if max := r.size - off; int64(len(p)) > max {
		n, err := r.ra.ReadAt(p[:max], r.off+off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return r.ra.ReadAt(p, r.off+off)
}

// Size returns the segment length in bytes.
func (r *SharedSeekableReader) Size() int64 { return r.size }

// Clone returns an independent view over the same segment.
func (r *SharedSeekableReader) Clone() *SharedSeekableReader {
	c := *r
	return &c
}

// Archive is an opened mzpeak archive in any layout.
type Archive struct {
	Layout   Layout
	Path     string
	Metadata []byte // metadata.json content; nil for bare Parquet

	peaks   *SharedSeekableReader
	spectra *SharedSeekableReader
	chrom   *SharedSeekableReader

	closers []io.Closer
}

// Peaks returns the peak segment view.
func (a *Archive) Peaks() *SharedSeekableReader { return a.peaks }

// Spectra returns the spectra index segment view, nil on v1 archives.
func (a *Archive) Spectra() *SharedSeekableReader { return a.spectra }

// Chromatograms returns the chromatogram segment view, nil when absent.
func (a *Archive) Chromatograms() *SharedSeekableReader { return a.chrom }

// Close releases the backing file handles.
func (a *Archive) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open detects the archive layout at path and opens it: a *.mzpeak
// container, a directory bundle, or a bare Parquet file.
func Open(p string) (*Archive, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, &InvalidStructureError{Msg: "archive not found", Err: err}
	}
	if info.IsDir() {
		return openDirectory(p)
	}
	if strings.EqualFold(filepath.Ext(p), schema.ContainerExt) {
		return openContainer(p, info.Size())
	}
	return openBareParquet(p)
}

func openContainer(p string, size int64) (*Archive, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, &InvalidStructureError{Msg: "open container", Err: err}
	}

	zr, err := zip.NewReader(f, size)
	if err != nil {
		f.Close()
		return nil, &InvalidStructureError{Msg: "not a ZIP container", Err: err}
	}

	a := &Archive{Layout: LayoutContainer, Path: p, closers: []io.Closer{f}}

	for _, entry := range zr.File {
		switch entry.Name {
		case MimetypeEntry, MetadataEntry:
			// handled below
		case PeaksEntry, SpectraEntry, ChromatogramsEntry:
			view, err := storedEntryView(f, entry)
			if err != nil {
				f.Close()
				return nil, err
			}
			switch entry.Name {
			case PeaksEntry:
				a.peaks = view
			case SpectraEntry:
				a.spectra = view
			case ChromatogramsEntry:
				a.chrom = view
			}
		}
	}

	if err := checkMimetype(zr); err != nil {
		f.Close()
		return nil, err
	}
	if a.peaks == nil {
		f.Close()
		return nil, &InvalidStructureError{Msg: "container is missing " + PeaksEntry}
	}

	meta, err := readMetadataEntry(zr)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.Metadata = meta

	return a, nil
}

// checkMimetype verifies the mimetype entry exists, comes first, is stored
// and carries the expected literal.
func checkMimetype(zr *zip.Reader) error {
	if len(zr.File) == 0 {
		return &InvalidStructureError{Msg: "empty container"}
	}
	first := zr.File[0]
	if first.Name != MimetypeEntry {
		return &InvalidStructureError{Msg: "first entry is " + first.Name + ", want " + MimetypeEntry}
	}
	if first.Method != zip.Store {
		return &InvalidStructureError{Msg: "mimetype entry is compressed"}
	}
	if first.UncompressedSize64 > maxMimetypeLen {
		return &InvalidStructureError{Msg: "mimetype entry too large"}
	}
	rc, err := first.Open()
	if err != nil {
		return &InvalidStructureError{Msg: "read mimetype entry", Err: err}
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return &InvalidStructureError{Msg: "read mimetype entry", Err: err}
	}
	if string(content) != schema.Mimetype {
		return &InvalidStructureError{Msg: fmt.Sprintf("mimetype is %q, want %q", content, schema.Mimetype)}
	}
	return nil
}

func readMetadataEntry(zr *zip.Reader) ([]byte, error) {
	for _, entry := range zr.File {
		if entry.Name != MetadataEntry {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, &InvalidStructureError{Msg: "open metadata.json", Err: err}
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, &InvalidStructureError{Msg: "read metadata.json", Err: err}
		}
		return data, nil
	}
	return nil, &InvalidStructureError{Msg: "container is missing " + MetadataEntry}
}

// storedEntryView maps a stored ZIP entry onto a seekable view of the
// backing file. Compressed Parquet segments are rejected: their inner byte
// offsets would be unreadable without full decompression.
func storedEntryView(f *os.File, entry *zip.File) (*SharedSeekableReader, error) {
	if entry.Method != zip.Store {
		return nil, &InvalidStructureError{Msg: "segment " + entry.Name + " is not stored uncompressed"}
	}
	off, err := entry.DataOffset()
	if err != nil {
		return nil, &InvalidStructureError{Msg: "locate segment " + entry.Name, Err: err}
	}
	return NewSharedSeekableReader(f, off, int64(entry.UncompressedSize64)), nil
}

func openDirectory(dir string) (*Archive, error) {
	a := &Archive{Layout: LayoutDirectory, Path: dir}

	peaksPath := filepath.Join(dir, filepath.FromSlash(PeaksEntry))
	view, closer, err := fileView(peaksPath)
	if err != nil {
		return nil, &InvalidStructureError{Msg: "directory bundle is missing " + PeaksEntry, Err: err}
	}
	a.peaks = view
	a.closers = append(a.closers, closer)

	if view, closer, err := fileView(filepath.Join(dir, filepath.FromSlash(SpectraEntry))); err == nil {
		a.spectra = view
		a.closers = append(a.closers, closer)
	}
	if view, closer, err := fileView(filepath.Join(dir, filepath.FromSlash(ChromatogramsEntry))); err == nil {
		a.chrom = view
		a.closers = append(a.closers, closer)
	}

	meta, err := os.ReadFile(filepath.Join(dir, MetadataEntry))
	if err != nil {
		return nil, &InvalidStructureError{Msg: "directory bundle is missing " + MetadataEntry, Err: err}
	}
	a.Metadata = meta

	return a, nil
}

func openBareParquet(p string) (*Archive, error) {
	view, closer, err := fileView(p)
	if err != nil {
		return nil, &InvalidStructureError{Msg: "open parquet file", Err: err}
	}
	return &Archive{
		Layout:  LayoutBareParquet,
		Path:    p,
		peaks:   view,
		closers: []io.Closer{closer},
	}, nil
}

func fileView(p string) (*SharedSeekableReader, io.Closer, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return NewSharedSeekableReader(f, 0, info.Size()), f, nil
}

// IdentifyMimetype reads the first local file header of a file and reports
// whether it declares an mzpeak container. This is the cheap probe readers
// may use before fully opening an archive.
func IdentifyMimetype(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// Local file header: signature(4) .. name length at 26, extra length
	// at 28, name at 30.
	var hdr [30]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return false, nil
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != 0x04034b50 {
		return false, nil
	}
	nameLen := int(binary.LittleEndian.Uint16(hdr[26:28]))
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(f, name); err != nil {
		return false, nil
	}
	if string(name) != MimetypeEntry {
		return false, nil
	}
	extraLen := int(binary.LittleEndian.Uint16(hdr[28:30]))
	if _, err := f.Seek(int64(extraLen), io.SeekCurrent); err != nil {
		return false, nil
	}
	content := make([]byte, len(schema.Mimetype))
	if _, err := io.ReadFull(f, content); err != nil {
		return false, nil
	}
	return string(content) == schema.Mimetype, nil
}
