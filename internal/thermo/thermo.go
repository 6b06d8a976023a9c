// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package thermo is the Thermo .raw backend. Reading .raw files requires
// the vendor's RawFileReader runtime, which is only available on a subset
// of architectures; where it is missing, Open reports that at runtime
// instead of the backend vanishing at compile time.
package thermo

import (
	"github.com/mzpeak/mzpeak-go/internal/ingest"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// Source is the Thermo .raw spectrum source.
type Source struct{}

// Open opens a Thermo .raw file. On platforms without the vendor runtime
// it returns ingest.ErrPlatformNotSupported.
func Open(path string) (*Source, error) {
	if !runtimeAvailable() {
		return nil, ingest.ErrPlatformNotSupported
	}
	return openRaw(path)
}

// runtimeAvailable probes for the vendor runtime.
func runtimeAvailable() bool {
	// No Go port of the RawFileReader runtime exists; the shim that loads
	// it ships separately and registers itself here when present.
	return rawOpenHook != nil
}

// rawOpenHook is installed by the vendor-library FFI shim, when built.
var rawOpenHook func(path string) (*Source, error)

func openRaw(path string) (*Source, error) {
	return rawOpenHook(path)
}

// Next implements ingest.SpectrumSource.
func (s *Source) Next() (*schema.IngestSpectrum, error) {
	return nil, ingest.ErrPlatformNotSupported
}

// Close implements ingest.SpectrumSource.
func (s *Source) Close() error { return nil }
