// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package mzml

import (
	"fmt"
	"io"
	"os"
)

// IbdReader reads external binary payloads from the ibd sidecar of an
// imzML document. Offsets come from the XML and are bounds-checked against
// the ibd size before every read.
type IbdReader struct {
	ra   io.ReaderAt
	size int64
	f    *os.File
}

// OpenIbd opens the ibd file at path.
func OpenIbd(path string) (*IbdReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &ReadError{Err: err}
	}
	return &IbdReader{ra: f, size: info.Size(), f: f}, nil
}

// NewIbdReader wraps an in-memory or already-open reader.
func NewIbdReader(ra io.ReaderAt, size int64) *IbdReader {
	return &IbdReader{ra: ra, size: size}
}

// Size returns the ibd length in bytes.
func (r *IbdReader) Size() int64 { return r.size }

// ReadArray reads length bytes at offset. Malformed offsets fail with
// InvalidStructureError, not a short read.
func (r *IbdReader) ReadArray(offset, length int64) ([]byte, error) {
	if length < 0 || offset < 0 || offset+length > r.size {
		return nil, &InvalidStructureError{
			Msg: fmt.Sprintf("external binary range [%d, %d) exceeds ibd size %d", offset, offset+length, r.size),
		}
	}
	if length == 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	if _, err := r.ra.ReadAt(buf, offset); err != nil {
		return nil, &ReadError{Err: err}
	}
	return buf, nil
}

// Close releases the backing file if this reader owns one.
func (r *IbdReader) Close() error {
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}
