// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package tdf

import (
	"context"
	"time"

	"github.com/mzpeak/mzpeak-go/pkg/log"
)

// Hooks logs executed queries against the vendor SQLite index with their
// duration.
type Hooks struct{}

type ctxKey int

const tsKey ctxKey = 0

func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, tsKey, time.Now()), nil
}

func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(tsKey).(time.Time); ok {
		log.Debugf("TDF query %s (took %s, args: %v)", query, time.Since(begin), args)
	}
	return ctx, nil
}
