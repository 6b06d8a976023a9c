// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ingest

import (
	"errors"

	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// ErrPlatformNotSupported is returned by Open of a backend whose vendor
// runtime is unavailable on this architecture. Backends are always present
// as implementations; absence surfaces at open time, never as a
// compile-time gap that silently changes behavior.
var ErrPlatformNotSupported = errors.New("backend not supported on this platform")

// SpectrumSource is the ingest interface every format backend implements.
// Next returns records without a spectrum_id (the contract assigns it) and
// (nil, nil) when the source is exhausted.
type SpectrumSource interface {
	Next() (*schema.IngestSpectrum, error)
	Close() error
}
