// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStep records one tool run in the data lineage.
type ProcessingStep struct {
	ID         string            `json:"id"`
	Software   string            `json:"software"`
	Version    string            `json:"version,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// ProcessingHistory is the ordered list of processing steps applied to the
// data, oldest first.
type ProcessingHistory struct {
	Steps []ProcessingStep `json:"steps"`
}

// Append records a new step with a fresh identifier and timestamp.
func (h *ProcessingHistory) Append(software, version string, params map[string]string) {
	h.Steps = append(h.Steps, ProcessingStep{
		ID:         uuid.NewString(),
		Software:   software,
		Version:    version,
		Timestamp:  time.Now().UTC(),
		Parameters: params,
	})
}
