// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package reader

import (
	"github.com/parquet-go/parquet-go"
)

// ColumnBounds folds the page-level column index of one chunk into
// row-group min/max. ok is false when the chunk carries no usable
// statistics; callers must then keep the row group.
func ColumnBounds(chunk parquet.ColumnChunk) (min, max float64, ok bool) {
	ci, err := chunk.ColumnIndex()
	if err != nil || ci == nil {
		return 0, 0, false
	}
	n := ci.NumPages()
	if n == 0 {
		return 0, 0, false
	}

	first := true
	for i := 0; i < n; i++ {
		if ci.NullPage(i) {
			continue
		}
		lo, loOk := numericValue(ci.MinValue(i))
		hi, hiOk := numericValue(ci.MaxValue(i))
		if !loOk || !hiOk {
			return 0, 0, false
		}
		if first {
			min, max = lo, hi
			first = false
			continue
		}
		if lo < min {
			min = lo
		}
		if hi > max {
			max = hi
		}
	}
	if first {
		return 0, 0, false
	}
	return min, max, true
}

func numericValue(v parquet.Value) (float64, bool) {
	if v.IsNull() {
		return 0, false
	}
	switch v.Kind() {
	case parquet.Int32:
		return float64(v.Int32()), true
	case parquet.Int64:
		return float64(v.Int64()), true
	case parquet.Float:
		return float64(v.Float()), true
	case parquet.Double:
		return v.Double(), true
	}
	return 0, false
}

// rowGroupOverlaps reports whether the named column of the row group may
// contain values in [lo, hi]. Missing statistics keep the group.
func rowGroupOverlaps(rg parquet.RowGroup, columnIndex int, lo, hi float64) bool {
	chunks := rg.ColumnChunks()
	if columnIndex < 0 || columnIndex >= len(chunks) {
		return true
	}
	min, max, ok := ColumnBounds(chunks[columnIndex])
	if !ok {
		return true
	}
	return max >= lo && min <= hi
}

// columnIndexOf resolves a column name to its leaf index, -1 when absent.
func columnIndexOf(file *parquet.File, name string) int {
	leaf, ok := file.Schema().Lookup(name)
	if !ok {
		return -1
	}
	return leaf.ColumnIndex
}
