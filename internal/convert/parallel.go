// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mzpeak/mzpeak-go/internal/ingest"
	"github.com/mzpeak/mzpeak-go/internal/reader"
	"github.com/mzpeak/mzpeak-go/internal/tdf"
	"github.com/mzpeak/mzpeak-go/internal/writer"
	"github.com/mzpeak/mzpeak-go/pkg/log"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// TDFConfig holds the knobs of a parallel TDF conversion.
type TDFConfig struct {
	NumWorkers              int
	IncludeExtendedMetadata bool
	MergeShards             bool
	Writer                  writer.Config
}

// DefaultTDFConfig uses one worker per core.
func DefaultTDFConfig() TDFConfig {
	return TDFConfig{
		NumWorkers: runtime.GOMAXPROCS(0),
		Writer:     writer.DefaultConfig(),
	}
}

// ShardStats reports one worker's output.
type ShardStats struct {
	ShardID        int
	SpectraWritten int
	PeaksWritten   int
	Path           string
}

// TDFResult is the outcome of a parallel conversion.
type TDFResult struct {
	Shards []ShardStats
	// MergedPath is set when MergeShards produced a single archive.
	MergedPath string
}

func maxParallelism() int {
	return runtime.GOMAXPROCS(0)
}

// frameRange is one shard's slice of the Id-ordered frame index. StartID
// seeds the shard's ingest contract so the union of shard spectrum_id
// ranges covers [0, totalFrames).
type frameRange struct {
	start, end int // frame positions
	startID    int64
}

// partitionFrames splits the frame index into at most w contiguous ranges
// sized to equalize peak counts, using the prefix sum of per-frame peak
// counts. Every range is non-empty.
func partitionFrames(prefix []int64, w int) []frameRange {
	n := len(prefix) - 1
	if n <= 0 {
		return nil
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}

	total := prefix[n]
	ranges := make([]frameRange, 0, w)
	start := 0
	for i := 0; i < w; i++ {
		if start >= n {
			break
		}
		end := n
		if i < w-1 {
			// Frame position whose prefix first reaches the share boundary.
			boundary := total * int64(i+1) / int64(w)
			end = start + 1
			for end < n && prefix[end] < boundary {
				end++
			}
		}
		ranges = append(ranges, frameRange{start: start, end: end, startID: int64(start)})
		start = end
	}
	return ranges
}

// ConvertTDF converts a .d dataset sequentially into one archive.
func ConvertTDF(ctx context.Context, srcPath, outPath string, cfg writer.Config) (*writer.Stats, error) {
	ds, err := tdf.Open(srcPath)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	w, err := writer.New(outPath, tdfMetadata(srcPath, ds), cfg)
	if err != nil {
		return nil, err
	}

	contract := ingest.NewContract()
	streamer := tdf.NewFrameStreamer(ds, 64)
	if _, err := convertFrames(ctx, streamer, ds, contract, w); err != nil {
		return nil, err
	}
	return w.Finish()
}

// ConvertTDFParallel shards a .d dataset across workers. Each worker owns
// its streamer, ingest contract and shard writer; converters are shared
// immutably. On failure the first error wins, the remaining workers drain
// cooperatively and partial shard files stay on disk for inspection.
func ConvertTDFParallel(ctx context.Context, srcPath, outDir string, cfg TDFConfig) (*TDFResult, error) {
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = DefaultTDFConfig().NumWorkers
	}

	index, err := tdf.Open(srcPath)
	if err != nil {
		return nil, err
	}
	prefix := index.PeakCountPrefixSum()
	index.Close()

	ranges := partitionFrames(prefix, cfg.NumWorkers)
	if len(ranges) == 0 {
		return nil, fmt.Errorf("dataset %s has no frames", srcPath)
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	shards := make([]ShardStats, len(ranges))
	g, gctx := errgroup.WithContext(ctx)

	for i, rng := range ranges {
		g.Go(func() error {
			// The source is opened once per shard; no handle sharing.
			ds, err := tdf.Open(srcPath)
			if err != nil {
				return err
			}
			defer ds.Close()

			shardPath := filepath.Join(outDir, fmt.Sprintf("shard-%d.mzpeak", i))
			w, err := writer.New(shardPath, tdfMetadata(srcPath, ds), cfg.Writer)
			if err != nil {
				return err
			}

			streamer := tdf.NewFrameStreamer(ds, 64)
			streamer.SetRange(rng.start, rng.end)
			contract := ingest.NewContractAt(rng.startID)

			if _, err := convertFrames(gctx, streamer, ds, contract, w); err != nil {
				return fmt.Errorf("shard %d: %w", i, err)
			}

			ws, err := w.Finish()
			if err != nil {
				return fmt.Errorf("shard %d: %w", i, err)
			}
			shards[i] = ShardStats{
				ShardID:        i,
				SpectraWritten: ws.SpectraWritten,
				PeaksWritten:   ws.PeaksWritten,
				Path:           shardPath,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &TDFResult{Shards: shards}
	if cfg.MergeShards {
		merged, err := mergeShards(ctx, outDir, shards, cfg.Writer)
		if err != nil {
			return nil, err
		}
		result.MergedPath = merged
	}
	return result, nil
}

// shardCounters tracks what one frame stream contributed.
type shardCounters struct {
	spectra int
	peaks   int
}

// convertFrames drains a frame streamer through the contract into a
// writer. Frame-level parse failures are logged and skipped without
// consuming a spectrum id; everything else aborts.
func convertFrames(ctx context.Context, streamer *tdf.FrameStreamer, ds *tdf.Dataset, contract *ingest.Contract, w *writer.Writer) (*shardCounters, error) {
	conv := ds.Converters()
	counters := &shardCounters{}
	progress := rate.NewLimiter(rate.Every(2*time.Second), 1)

	for {
		if err := ctx.Err(); err != nil {
			return counters, err
		}

		batch, err := streamer.NextBatch()
		if err != nil {
			var ferr *tdf.FrameParsingError
			if errors.As(err, &ferr) {
				log.Warnf("TDF convert: skipping frame %d: %v", ferr.Frame, err)
				framesSkipped.Inc()
				continue
			}
			return counters, err
		}
		if batch == nil {
			return counters, nil
		}

		for _, frame := range batch {
			peaks, err := frame.DecodePeaks(conv)
			if err != nil {
				// Known to occur on at least one malformed frame in the
				// wild; policy is log-and-skip, no root-cause guessing.
				log.Warnf("TDF convert: skipping frame %d: %v", frame.Info.ID, err)
				framesSkipped.Inc()
				continue
			}

			rec := frameToIngest(frame, peaks)
			accepted, err := contract.Convert(rec)
			if err != nil {
				var cerr *ingest.ContractError
				if errors.As(err, &cerr) {
					log.Warnf("TDF convert: dropping frame %d: %v", frame.Info.ID, err)
					spectraSkipped.Inc()
					continue
				}
				return counters, err
			}
			if err := w.WriteSpectrum(accepted); err != nil {
				return counters, err
			}

			counters.spectra++
			counters.peaks += accepted.PeakCount()
			spectraConverted.Inc()
			peaksConverted.Add(float64(accepted.PeakCount()))

			if progress.Allow() {
				log.Debugf("TDF convert: frame %d done (%d spectra)", frame.Info.ID, counters.spectra)
			}
		}
	}
}

// frameToIngest maps a decoded frame onto the thin waist. One frame is one
// spectrum; ion mobility is always present for TIMS data.
func frameToIngest(frame *tdf.RawTdfFrame, peaks *tdf.FramePeaks) *schema.IngestSpectrum {
	scanNumber := frame.Info.ID
	tic := frame.Info.SummedIntensities
	bpi := float32(frame.Info.MaxIntensity)
	injection := float32(frame.Info.AccumulationTime)

	rec := &schema.IngestSpectrum{
		ScanNumber:           &scanNumber,
		MSLevel:              frame.MsLevel,
		RetentionTime:        float32(frame.RtSeconds),
		Polarity:             schema.Polarity(frame.Polarity),
		MzValues:             peaks.MzValues,
		Intensities:          peaks.Intensities,
		IonMobility:          peaks.IonMobility,
		TotalIonCurrent:      &tic,
		BasePeakIntensity:    &bpi,
		InjectionTime:        &injection,
		PrecursorMz:          frame.PrecursorMz,
		PrecursorCharge:      frame.PrecursorCharge,
		PrecursorIntensity:   frame.PrecursorIntensity,
		IsolationWindowLower: frame.IsolationWindowLower,
		IsolationWindowUpper: frame.IsolationWindowUpper,
		CollisionEnergy:      frame.CollisionEnergy,
	}

	if frame.Maldi != nil {
		x := int32(frame.Maldi.XIndexPos)
		y := int32(frame.Maldi.YIndexPos)
		rec.PixelX, rec.PixelY = &x, &y
	}
	return rec
}

// mergeShards re-reads the shard archives in shard order and writes one
// merged archive. Shard files carry their index in the name, so the merge
// is deterministic.
func mergeShards(ctx context.Context, outDir string, shards []ShardStats, cfg writer.Config) (string, error) {
	mergedPath := filepath.Join(outDir, "merged.mzpeak")

	meta := schema.NewMetadata()
	w, err := writer.New(mergedPath, meta, cfg)
	if err != nil {
		return "", err
	}

	for _, shard := range shards {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		r, err := reader.Open(shard.Path)
		if err != nil {
			return "", fmt.Errorf("merge: open shard %d: %w", shard.ShardID, err)
		}

		it := r.IterSpectra()
		for {
			spec, err := it.Next()
			if err != nil {
				r.Close()
				return "", fmt.Errorf("merge: read shard %d: %w", shard.ShardID, err)
			}
			if spec == nil {
				break
			}
			if err := w.WriteSpectrum(spec); err != nil {
				r.Close()
				return "", err
			}
		}
		r.Close()
	}

	if _, err := w.Finish(); err != nil {
		return "", err
	}
	return mergedPath, nil
}

// tdfMetadata assembles the archive envelope for a TDF source.
func tdfMetadata(srcPath string, ds *tdf.Dataset) *schema.Metadata {
	meta := schema.NewMetadata()

	src := &schema.SourceFileInfo{
		Name:   filepath.Base(srcPath),
		Path:   srcPath,
		Format: "Bruker .d",
	}
	if info, err := os.Stat(filepath.Join(srcPath, "analysis.tdf_bin")); err == nil {
		src.SizeBytes = uint64(info.Size())
	}
	meta.SourceFile = src

	global := ds.GlobalMetadata()
	inst := &schema.InstrumentConfig{Vendor: "Bruker"}
	if v, ok := global["InstrumentName"]; ok {
		inst.Model = v
	}
	if v, ok := global["InstrumentSerialNumber"]; ok {
		inst.SerialNumber = v
	}
	if v, ok := global["AcquisitionSoftwareVersion"]; ok {
		inst.SoftwareVersion = v
	}
	meta.Instrument = inst

	run := &schema.RunParameters{Parameters: map[string]string{}}
	for _, key := range []string{"MzAcqRangeLower", "MzAcqRangeUpper", "OneOverK0AcqRangeLower", "OneOverK0AcqRangeUpper", "TimsCompressionType"} {
		if v, ok := global[key]; ok {
			run.Parameters[key] = v
		}
	}
	meta.RunParameters = run

	return meta
}
