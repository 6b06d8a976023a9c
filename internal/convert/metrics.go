// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package convert

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Conversion counters. The embedding application decides whether and where
// to serve the default registry; the pipeline only counts.
var (
	spectraConverted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mzpeak_spectra_converted_total",
		Help: "Spectra accepted by the ingest contract and written.",
	})
	peaksConverted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mzpeak_peaks_converted_total",
		Help: "Peaks written across all conversions.",
	})
	spectraSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mzpeak_spectra_skipped_total",
		Help: "Spectra dropped by decode or contract failures.",
	})
	framesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mzpeak_frames_skipped_total",
		Help: "TDF frames skipped after frame-level parse failures.",
	})
)
