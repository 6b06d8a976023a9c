// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package mzml

import "fmt"

// InvalidStructureError reports malformed XML or a broken document/ibd
// layout. It is fatal for the stream.
type InvalidStructureError struct {
	Msg string
	Err error
}

func (e *InvalidStructureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid structure: %s: %v", e.Msg, e.Err)
	}
	return "invalid structure: " + e.Msg
}

func (e *InvalidStructureError) Unwrap() error { return e.Err }

// InvalidAttributeValueError reports an unparsable attribute or cvParam
// value. It aborts the current spectrum only; the stream resyncs to the
// next spectrum boundary.
type InvalidAttributeValueError struct {
	Element string
	Attr    string
	Value   string
}

func (e *InvalidAttributeValueError) Error() string {
	return fmt.Sprintf("invalid value %q for %s on <%s>", e.Value, e.Attr, e.Element)
}

// ReadError wraps upstream I/O failures.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return "read error: " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }
