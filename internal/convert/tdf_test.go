// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package convert

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzpeak/mzpeak-go/internal/reader"
	"github.com/mzpeak/mzpeak-go/internal/writer"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// buildTestDataset fabricates a small .d directory: a SQLite index and a
// zstd-compressed scan-packed binary blob, in the layout the tdf package
// reads.
func buildTestDataset(t *testing.T, dir string, numFrames int) string {
	t.Helper()
	dPath := filepath.Join(dir, "sample.d")
	require.NoError(t, os.MkdirAll(dPath, 0o750))

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()

	bin, err := os.Create(filepath.Join(dPath, "analysis.tdf_bin"))
	require.NoError(t, err)

	type frameRow struct {
		id       int64
		timsID   int64
		numScans int64
		numPeaks int64
	}
	var rows []frameRow

	offset := int64(0)
	for f := 1; f <= numFrames; f++ {
		// Two scans per frame, peak count varies with the frame id.
		peaksScan0 := 1 + f%3
		peaksScan1 := 1 + (f+1)%2
		var words []uint32
		words = append(words, uint32(peaksScan0), uint32(peaksScan1))
		for p := 0; p < peaksScan0; p++ {
			words = append(words, uint32(50+10*p), uint32(100*f+p))
		}
		for p := 0; p < peaksScan1; p++ {
			words = append(words, uint32(75+5*p), uint32(10*f+p))
		}

		payload := make([]byte, 4*len(words))
		for i, w := range words {
			binary.LittleEndian.PutUint32(payload[i*4:], w)
		}
		compressed := enc.EncodeAll(payload, nil)

		blob := make([]byte, 8+len(compressed))
		binary.LittleEndian.PutUint32(blob[0:4], uint32(8+len(compressed)))
		binary.LittleEndian.PutUint32(blob[4:8], 2)
		copy(blob[8:], compressed)

		_, err := bin.Write(blob)
		require.NoError(t, err)

		rows = append(rows, frameRow{
			id:       int64(f),
			timsID:   offset,
			numScans: 2,
			numPeaks: int64(peaksScan0 + peaksScan1),
		})
		offset += int64(len(blob))
	}
	require.NoError(t, bin.Close())

	db, err := sql.Open("sqlite3", filepath.Join(dPath, "analysis.tdf"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
CREATE TABLE GlobalMetadata (Key TEXT, Value TEXT);
CREATE TABLE Frames (
	Id INTEGER PRIMARY KEY,
	Time REAL, Polarity TEXT, MsMsType INTEGER, TimsId INTEGER,
	NumScans INTEGER, NumPeaks INTEGER,
	MaxIntensity REAL, SummedIntensities REAL, AccumulationTime REAL
);`)
	require.NoError(t, err)

	for k, v := range map[string]string{
		"MzAcqRangeLower":        "100",
		"MzAcqRangeUpper":        "1600",
		"DigitizerNumSamples":    "1000",
		"OneOverK0AcqRangeLower": "0.6",
		"OneOverK0AcqRangeUpper": "1.6",
		"TimsCompressionType":    "2",
	} {
		_, err = db.Exec("INSERT INTO GlobalMetadata (Key, Value) VALUES (?, ?)", k, v)
		require.NoError(t, err)
	}

	for _, r := range rows {
		_, err = db.Exec(
			"INSERT INTO Frames (Id, Time, Polarity, MsMsType, TimsId, NumScans, NumPeaks, MaxIntensity, SummedIntensities, AccumulationTime) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			r.id, float64(r.id)*0.1, "+", 0, r.timsID, r.numScans, r.numPeaks, 500.0, 10000.0, 100.0,
		)
		require.NoError(t, err)
	}

	return dPath
}

type flatPeak struct {
	id        int64
	mz        float64
	intensity float32
}

func flattenArchive(t *testing.T, path string) []flatPeak {
	t.Helper()
	r, err := reader.Open(path)
	require.NoError(t, err)
	defer r.Close()

	var peaks []flatPeak
	it := r.IterBatches()
	for {
		batch, err := it.Next()
		require.NoError(t, err)
		if batch == nil {
			break
		}
		for _, row := range batch {
			peaks = append(peaks, flatPeak{id: row.SpectrumID, mz: row.Mz, intensity: row.Intensity})
		}
	}
	return peaks
}

func TestSequentialTDFConversion(t *testing.T) {
	dPath := buildTestDataset(t, t.TempDir(), 12)
	out := filepath.Join(t.TempDir(), "seq.mzpeak")

	stats, err := ConvertTDF(context.Background(), dPath, out, writer.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 12, stats.SpectraWritten)

	r, err := reader.Open(out)
	require.NoError(t, err)
	defer r.Close()

	it := r.IterSpectra()
	var id int64
	for {
		spec, err := it.Next()
		require.NoError(t, err)
		if spec == nil {
			break
		}
		assert.Equal(t, id, spec.SpectrumID)
		// TIMS data always carries ion mobility.
		require.NotNil(t, spec.IonMobility)
		assert.Len(t, spec.IonMobility, len(spec.MzValues))
		require.NotNil(t, spec.ScanNumber)
		assert.Equal(t, id+1, *spec.ScanNumber) // native frame ids start at 1
		assert.Equal(t, schema.PolarityPositive, spec.Polarity)
		id++
	}
	assert.Equal(t, int64(12), id)
}

func TestParallelMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	dPath := buildTestDataset(t, dir, 16)

	seqOut := filepath.Join(dir, "seq.mzpeak")
	_, err := ConvertTDF(context.Background(), dPath, seqOut, writer.DefaultConfig())
	require.NoError(t, err)

	parOut := filepath.Join(dir, "parallel")
	cfg := DefaultTDFConfig()
	cfg.NumWorkers = 4
	cfg.MergeShards = true
	result, err := ConvertTDFParallel(context.Background(), dPath, parOut, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, result.Shards)
	require.NotEmpty(t, result.MergedPath)

	// Shard id ranges are pairwise disjoint and cover [0, 16).
	total := 0
	for _, shard := range result.Shards {
		total += shard.SpectraWritten
	}
	assert.Equal(t, 16, total)

	seqPeaks := flattenArchive(t, seqOut)
	parPeaks := flattenArchive(t, result.MergedPath)
	require.Equal(t, len(seqPeaks), len(parPeaks))

	sortPeaks := func(p []flatPeak) {
		sort.Slice(p, func(i, j int) bool {
			if p[i].id != p[j].id {
				return p[i].id < p[j].id
			}
			return p[i].mz < p[j].mz
		})
	}
	sortPeaks(seqPeaks)
	sortPeaks(parPeaks)
	for i := range seqPeaks {
		assert.Equal(t, seqPeaks[i], parPeaks[i], "peak %d", i)
	}
}

func TestParallelShardFiles(t *testing.T) {
	dir := t.TempDir()
	dPath := buildTestDataset(t, dir, 8)

	out := filepath.Join(dir, "shards")
	cfg := DefaultTDFConfig()
	cfg.NumWorkers = 2
	result, err := ConvertTDFParallel(context.Background(), dPath, out, cfg)
	require.NoError(t, err)

	for _, shard := range result.Shards {
		assert.Equal(t, filepath.Join(out, fmt.Sprintf("shard-%d.mzpeak", shard.ShardID)), shard.Path)
		_, err := os.Stat(shard.Path)
		assert.NoError(t, err)
	}
}
