// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package thermo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mzpeak/mzpeak-go/internal/ingest"
)

func TestOpenWithoutRuntime(t *testing.T) {
	// Without the vendor shim registered, Open must fail at runtime with
	// the platform error rather than being compiled out.
	_, err := Open("sample.raw")
	assert.ErrorIs(t, err, ingest.ErrPlatformNotSupported)
}
