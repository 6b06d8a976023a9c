// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package reader

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/mzpeak/mzpeak-go/internal/writer"
	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// ReadChromatograms eagerly reads the chromatogram segment. Archives
// without one return an empty slice. The segment is small by construction,
// so an eager read is fine.
func (r *Reader) ReadChromatograms() ([]schema.Chromatogram, error) {
	if r.chrom == nil {
		return nil, nil
	}

	gr := parquet.NewGenericReader[writer.ChromatogramRow](r.chrom)
	defer gr.Close()

	rows := make([]writer.ChromatogramRow, r.chrom.NumRows())
	n, err := gr.Read(rows)
	if err != nil && err != io.EOF {
		return nil, err
	}

	out := make([]schema.Chromatogram, n)
	for i, row := range rows[:n] {
		out[i] = schema.Chromatogram{
			ID:             row.ChromatogramID,
			Type:           schema.ChromatogramType(row.ChromatogramType),
			TimeArray:      row.TimeArray,
			IntensityArray: row.IntensityArray,
		}
	}
	return out, nil
}
