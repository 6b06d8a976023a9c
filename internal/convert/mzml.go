// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package convert drives full conversions: source streamer to ingest
// contract to columnar writer.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mzpeak/mzpeak-go/internal/ingest"
	"github.com/mzpeak/mzpeak-go/internal/mzml"
	"github.com/mzpeak/mzpeak-go/internal/writer"
	"github.com/mzpeak/mzpeak-go/pkg/log"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// MzMLConfig holds the knobs of an mzML/imzML conversion.
type MzMLConfig struct {
	IncludeChromatograms bool
	BatchSize            int
	// PreservePrecision is not read by the pipeline: m/z is always kept
	// as f64, and intensity is always narrowed to f32 when a spectrum is
	// decoded, whatever this flag says.
	PreservePrecision bool
	ProgressInterval  int
	Writer            writer.Config
}

// DefaultMzMLConfig mirrors the balanced profile.
func DefaultMzMLConfig() MzMLConfig {
	return MzMLConfig{
		IncludeChromatograms: true,
		BatchSize:            1000,
		ProgressInterval:     1000,
		Writer:               writer.DefaultConfig(),
	}
}

// ConvertMzML converts an mzML or imzML document into an mzpeak archive at
// outPath. Decoding of each raw-spectrum batch fans out across the
// available cores with input order preserved on output; the XML and
// contract stages stay single-threaded per stream.
func ConvertMzML(ctx context.Context, srcPath, outPath string, cfg MzMLConfig) (*writer.Stats, error) {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultMzMLConfig().BatchSize
	}
	if cfg.ProgressInterval < 1 {
		cfg.ProgressInterval = DefaultMzMLConfig().ProgressInterval
	}

	s, err := mzml.Open(srcPath)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	docMeta, err := s.Metadata()
	if err != nil {
		return nil, err
	}

	meta := buildMetadata(srcPath, docMeta)
	w, err := writer.New(outPath, meta, cfg.Writer)
	if err != nil {
		return nil, err
	}

	contract := ingest.NewContract()
	progress := rate.NewLimiter(rate.Every(2*time.Second), 1)
	sinceProgress := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rawBatch, err := nextRawBatch(s, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		if len(rawBatch) == 0 {
			break
		}

		decoded, err := decodeBatch(ctx, s, rawBatch)
		if err != nil {
			return nil, err
		}

		for i, spec := range decoded {
			if spec == nil {
				// decode failed for this spectrum only; already logged
				spectraSkipped.Inc()
				continue
			}
			rec := spectrumToIngest(rawBatch[i], spec)
			accepted, err := contract.Convert(rec)
			if err != nil {
				var cerr *ingest.ContractError
				if errors.As(err, &cerr) {
					log.Warnf("mzML convert: dropping spectrum %q: %v", rawBatch[i].NativeID, err)
					spectraSkipped.Inc()
					continue
				}
				return nil, err
			}
			if err := w.WriteSpectrum(accepted); err != nil {
				return nil, err
			}
			spectraConverted.Inc()
			peaksConverted.Add(float64(accepted.PeakCount()))

			sinceProgress++
			if sinceProgress >= cfg.ProgressInterval && progress.Allow() {
				log.Infof("mzML convert: %d spectra so far", contract.NextID())
				sinceProgress = 0
			}
		}
	}

	if cfg.IncludeChromatograms {
		chroms, err := s.ReadChromatograms()
		if err != nil {
			return nil, err
		}
		for i := range chroms {
			if err := w.WriteChromatogram(&chroms[i]); err != nil {
				return nil, err
			}
		}
	}

	return w.Finish()
}

// nextRawBatch pulls up to n raw spectra, resyncing past local value
// errors.
func nextRawBatch(s *mzml.Streamer, n int) ([]*mzml.RawSpectrum, error) {
	batch := make([]*mzml.RawSpectrum, 0, n)
	for len(batch) < n {
		raw, err := s.NextRawSpectrum()
		if err != nil {
			var verr *mzml.InvalidAttributeValueError
			if errors.As(err, &verr) {
				log.Warnf("mzML convert: skipping malformed spectrum: %v", err)
				spectraSkipped.Inc()
				continue
			}
			return nil, err
		}
		if raw == nil {
			break
		}
		batch = append(batch, raw)
	}
	return batch, nil
}

// decodeBatch decodes raw spectra concurrently, preserving input order.
// Raw spectra are independent and the decoder is pure, so this is
// embarrassingly parallel. A spectrum that fails to decode yields a nil
// slot instead of failing the batch, except for an InvalidStructureError
// (a broken ibd layout), which fails the whole batch.
func decodeBatch(ctx context.Context, s *mzml.Streamer, batch []*mzml.RawSpectrum) ([]*mzml.Spectrum, error) {
	out := make([]*mzml.Spectrum, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelism())
	for i, raw := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			spec, err := raw.Decode(s.Ibd())
			if err != nil {
				var serr *mzml.InvalidStructureError
				if errors.As(err, &serr) {
					// Broken ibd layout poisons every later spectrum too.
					return err
				}
				log.Warnf("mzML convert: decode failed for spectrum %q: %v", raw.NativeID, err)
				return nil
			}
			out[i] = spec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// spectrumToIngest maps a decoded mzML spectrum onto the thin waist. The
// spectrum_id stays unset for the contract to assign.
func spectrumToIngest(raw *mzml.RawSpectrum, spec *mzml.Spectrum) *schema.IngestSpectrum {
	return &schema.IngestSpectrum{
		ScanNumber:           spec.ScanNumber,
		MSLevel:              spec.MSLevel,
		RetentionTime:        float32(spec.RetentionTime),
		Polarity:             schema.Polarity(spec.Polarity),
		MzValues:             spec.Mz,
		Intensities:          spec.Intensity,
		IonMobility:          spec.IonMobility,
		TotalIonCurrent:      spec.TotalIonCurrent,
		BasePeakMz:           spec.BasePeakMz,
		BasePeakIntensity:    spec.BasePeakIntensity,
		InjectionTime:        spec.InjectionTime,
		PrecursorMz:          spec.PrecursorMz,
		PrecursorCharge:      spec.PrecursorCharge,
		PrecursorIntensity:   spec.PrecursorIntensity,
		IsolationWindowLower: spec.IsolationWindowLower,
		IsolationWindowUpper: spec.IsolationWindowUpper,
		CollisionEnergy:      spec.CollisionEnergy,
		PixelX:               spec.PixelX,
		PixelY:               spec.PixelY,
		PixelZ:               spec.PixelZ,
	}
}

// buildMetadata assembles the archive envelope from the document header
// and the source file on disk.
func buildMetadata(srcPath string, doc *mzml.DocMetadata) *schema.Metadata {
	meta := schema.NewMetadata()
	meta.Instrument = doc.InstrumentConfig()
	meta.ProcessingHistory = doc.ProcessingHistory()

	src := &schema.SourceFileInfo{
		Name:   filepath.Base(srcPath),
		Path:   srcPath,
		Format: "mzML",
	}
	if doc.ImagingMode {
		src.Format = "imzML"
	}
	if info, err := os.Stat(srcPath); err == nil {
		src.SizeBytes = uint64(info.Size())
	}
	meta.SourceFile = src
	if doc.SourceFileSHA1 != "" {
		meta.RawFileChecksum = fmt.Sprintf("sha1:%s", doc.SourceFileSHA1)
	}
	return meta
}
