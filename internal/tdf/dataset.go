// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tdf reads Bruker TimsTOF .d datasets: a SQLite index
// (analysis.tdf) next to a binary frame blob (analysis.tdf_bin).
package tdf

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

var registerDriverOnce sync.Once

// AcquisitionMode classifies how a dataset was acquired.
type AcquisitionMode int

const (
	AcquisitionLCTims AcquisitionMode = iota
	AcquisitionPasef
	AcquisitionDiaPasef
	AcquisitionMaldi
)

// Frames.MsMsType values as Bruker writes them.
const (
	msmsTypeMS1      = 0
	msmsTypeMSMS     = 2
	msmsTypePasef    = 8
	msmsTypeDiaPasef = 9
)

// FrameInfo is one row of the Frames table.
type FrameInfo struct {
	ID                int64   `db:"Id"`
	Time              float64 `db:"Time"`
	Polarity          string  `db:"Polarity"`
	MsMsType          int     `db:"MsMsType"`
	TimsID            int64   `db:"TimsId"`
	NumScans          int64   `db:"NumScans"`
	NumPeaks          int64   `db:"NumPeaks"`
	MaxIntensity      float64 `db:"MaxIntensity"`
	SummedIntensities float64 `db:"SummedIntensities"`
	AccumulationTime  float64 `db:"AccumulationTime"`
}

// PasefInfo is the quadrupole setting of one PASEF MS2 frame range.
type PasefInfo struct {
	Frame           int64   `db:"Frame"`
	ScanNumBegin    int64   `db:"ScanNumBegin"`
	ScanNumEnd      int64   `db:"ScanNumEnd"`
	IsolationMz     float64 `db:"IsolationMz"`
	IsolationWidth  float64 `db:"IsolationWidth"`
	CollisionEnergy float64 `db:"CollisionEnergy"`
	Precursor       *int64  `db:"Precursor"`
}

// DiaWindowInfo is one diaPASEF isolation window.
type DiaWindowInfo struct {
	WindowGroup     int64   `db:"WindowGroup"`
	ScanNumBegin    int64   `db:"ScanNumBegin"`
	ScanNumEnd      int64   `db:"ScanNumEnd"`
	IsolationMz     float64 `db:"IsolationMz"`
	IsolationWidth  float64 `db:"IsolationWidth"`
	CollisionEnergy float64 `db:"CollisionEnergy"`
}

// PrecursorInfo is one row of the Precursors table.
type PrecursorInfo struct {
	ID             int64    `db:"Id"`
	MonoisotopicMz *float64 `db:"MonoisotopicMz"`
	Charge         *int64   `db:"Charge"`
	Intensity      *float64 `db:"Intensity"`
}

// MaldiInfo is the spatial position of one MALDI imaging frame.
type MaldiInfo struct {
	Frame     int64 `db:"Frame"`
	XIndexPos int64 `db:"XIndexPos"`
	YIndexPos int64 `db:"YIndexPos"`
}

// Dataset is an opened .d directory. The SQLite handle is read-only and
// single-connection; the binary blob is accessed by offset per frame.
type Dataset struct {
	path string
	db   *sqlx.DB
	bin  *os.File

	global      map[string]string
	frames      []FrameInfo
	pasef       map[int64][]PasefInfo
	diaGroups   map[int64]int64 // frame -> window group
	diaWindows  map[int64][]DiaWindowInfo
	precursors  map[int64]PrecursorInfo
	maldi       map[int64]MaldiInfo
	mode        AcquisitionMode
	compression int

	converters *Converters
}

// Open opens a Bruker .d dataset directory.
func Open(path string) (*Dataset, error) {
	tdfPath := filepath.Join(path, "analysis.tdf")
	binPath := filepath.Join(path, "analysis.tdf_bin")
	if _, err := os.Stat(tdfPath); err != nil {
		return nil, &InvalidPathError{Path: path, Msg: "analysis.tdf not found"}
	}

	registerDriverOnce.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &Hooks{}))
	})

	db, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("file:%s?mode=ro", tdfPath))
	if err != nil {
		return nil, fmt.Errorf("open analysis.tdf: %w", err)
	}
	// sqlite does not multithread; more than one open connection would just
	// wait on locks.
	db.SetMaxOpenConns(1)

	bin, err := os.Open(binPath)
	if err != nil {
		db.Close()
		return nil, &InvalidPathError{Path: path, Msg: "analysis.tdf_bin not found"}
	}

	ds := &Dataset{path: path, db: db, bin: bin}
	if err := ds.loadIndex(); err != nil {
		ds.Close()
		return nil, err
	}
	return ds, nil
}

// Close releases the SQLite handle and the binary blob.
func (ds *Dataset) Close() error {
	var first error
	if err := ds.db.Close(); err != nil {
		first = err
	}
	if err := ds.bin.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

func (ds *Dataset) loadIndex() error {
	if err := ds.loadGlobalMetadata(); err != nil {
		return err
	}
	if err := ds.loadFrames(); err != nil {
		return err
	}
	ds.loadPasefInfo()
	ds.loadDiaInfo()
	ds.loadPrecursors()
	ds.loadMaldiInfo()

	conv, err := NewConverters(ds.global, ds.frames)
	if err != nil {
		return err
	}
	ds.converters = conv

	ds.mode = AcquisitionLCTims
	if len(ds.maldi) > 0 {
		ds.mode = AcquisitionMaldi
	} else if len(ds.diaWindows) > 0 {
		ds.mode = AcquisitionDiaPasef
	} else if len(ds.pasef) > 0 {
		ds.mode = AcquisitionPasef
	}
	return nil
}

func (ds *Dataset) loadGlobalMetadata() error {
	query, args, err := sq.Select("Key", "Value").From("GlobalMetadata").ToSql()
	if err != nil {
		return err
	}
	rows, err := ds.db.Query(query, args...)
	if err != nil {
		return &MissingDataError{What: "GlobalMetadata table"}
	}
	defer rows.Close()

	ds.global = map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		ds.global[k] = v
	}
	if err := rows.Err(); err != nil {
		return err
	}

	ds.compression = 2
	if v, ok := ds.global["TimsCompressionType"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			ds.compression = n
		}
	}
	return nil
}

func (ds *Dataset) loadFrames() error {
	query, args, err := sq.Select(
		"Id", "Time", "Polarity", "MsMsType", "TimsId",
		"NumScans", "NumPeaks", "MaxIntensity", "SummedIntensities", "AccumulationTime",
	).From("Frames").OrderBy("Id ASC").ToSql()
	if err != nil {
		return err
	}
	if err := ds.db.Select(&ds.frames, query, args...); err != nil {
		return &MissingDataError{What: "Frames table"}
	}
	if len(ds.frames) == 0 {
		return &MissingDataError{What: "frames"}
	}
	return nil
}

func (ds *Dataset) loadPasefInfo() {
	query, args, _ := sq.Select(
		"Frame", "ScanNumBegin", "ScanNumEnd", "IsolationMz",
		"IsolationWidth", "CollisionEnergy", "Precursor",
	).From("PasefFrameMsMsInfo").OrderBy("Frame ASC", "ScanNumBegin ASC").ToSql()

	var rows []PasefInfo
	if err := ds.db.Select(&rows, query, args...); err != nil {
		return // table absent on non-PASEF data
	}
	ds.pasef = map[int64][]PasefInfo{}
	for _, r := range rows {
		ds.pasef[r.Frame] = append(ds.pasef[r.Frame], r)
	}
}

func (ds *Dataset) loadDiaInfo() {
	query, args, _ := sq.Select("Frame", "WindowGroup").
		From("DiaFrameMsMsInfo").ToSql()

	type frameGroup struct {
		Frame       int64 `db:"Frame"`
		WindowGroup int64 `db:"WindowGroup"`
	}
	var groups []frameGroup
	if err := ds.db.Select(&groups, query, args...); err != nil {
		return
	}
	ds.diaGroups = map[int64]int64{}
	for _, g := range groups {
		ds.diaGroups[g.Frame] = g.WindowGroup
	}

	query, args, _ = sq.Select(
		"WindowGroup", "ScanNumBegin", "ScanNumEnd",
		"IsolationMz", "IsolationWidth", "CollisionEnergy",
	).From("DiaFrameMsMsWindows").OrderBy("WindowGroup ASC", "ScanNumBegin ASC").ToSql()

	var windows []DiaWindowInfo
	if err := ds.db.Select(&windows, query, args...); err != nil {
		return
	}
	ds.diaWindows = map[int64][]DiaWindowInfo{}
	for _, w := range windows {
		ds.diaWindows[w.WindowGroup] = append(ds.diaWindows[w.WindowGroup], w)
	}
}

func (ds *Dataset) loadPrecursors() {
	query, args, _ := sq.Select("Id", "MonoisotopicMz", "Charge", "Intensity").
		From("Precursors").ToSql()

	var rows []PrecursorInfo
	if err := ds.db.Select(&rows, query, args...); err != nil {
		return
	}
	ds.precursors = map[int64]PrecursorInfo{}
	for _, r := range rows {
		ds.precursors[r.ID] = r
	}
}

func (ds *Dataset) loadMaldiInfo() {
	query, args, _ := sq.Select("Frame", "XIndexPos", "YIndexPos").
		From("MaldiFrameInfo").ToSql()

	var rows []MaldiInfo
	if err := ds.db.Select(&rows, query, args...); err != nil {
		return
	}
	ds.maldi = map[int64]MaldiInfo{}
	for _, r := range rows {
		ds.maldi[r.Frame] = r
	}
}

// Frames returns the frame index in Id order.
func (ds *Dataset) Frames() []FrameInfo { return ds.frames }

// NumFrames returns the frame count.
func (ds *Dataset) NumFrames() int { return len(ds.frames) }

// Mode returns the detected acquisition mode.
func (ds *Dataset) Mode() AcquisitionMode { return ds.mode }

// IsMaldi reports whether the dataset carries MALDI imaging frames.
func (ds *Dataset) IsMaldi() bool { return ds.mode == AcquisitionMaldi }

// Converters returns the immutable domain converters. They are shared by
// reference across concurrent decoders.
func (ds *Dataset) Converters() *Converters { return ds.converters }

// GlobalMetadata returns the key/value metadata table.
func (ds *Dataset) GlobalMetadata() map[string]string { return ds.global }

// PeakCountPrefixSum returns prefix sums of per-frame peak counts,
// prefix[i] = peaks in frames [0, i). Used to shard frames by peak count.
func (ds *Dataset) PeakCountPrefixSum() []int64 {
	prefix := make([]int64, len(ds.frames)+1)
	for i, f := range ds.frames {
		prefix[i+1] = prefix[i] + f.NumPeaks
	}
	return prefix
}
