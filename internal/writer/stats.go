// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package writer

import "fmt"

// Stats summarize a completed write.
type Stats struct {
	SpectraWritten       int
	PeaksWritten         int
	RowGroupsWritten     int
	ChromatogramsWritten int
	FileSizeBytes        int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("wrote %d spectra (%d peaks) in %d row groups, %d bytes",
		s.SpectraWritten, s.PeaksWritten, s.RowGroupsWritten, s.FileSizeBytes)
}
