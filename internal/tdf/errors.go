// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package tdf

import "fmt"

// FrameParsingError reports a frame-level decompression or layout failure.
// Per policy these are logged and the frame is skipped; the stream does not
// abort and no spectrum ID is consumed.
type FrameParsingError struct {
	Frame int64
	Msg   string
	Err   error
}

func (e *FrameParsingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame %d: %s: %v", e.Frame, e.Msg, e.Err)
	}
	return fmt.Sprintf("frame %d: %s", e.Frame, e.Msg)
}

func (e *FrameParsingError) Unwrap() error { return e.Err }

// InvalidPathError reports a path that is not a readable .d dataset.
type InvalidPathError struct {
	Path string
	Msg  string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid TDF path %q: %s", e.Path, e.Msg)
}

// MissingDataError reports required metadata absent from the dataset.
type MissingDataError struct {
	What string
}

func (e *MissingDataError) Error() string { return "missing required data: " + e.What }
