// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package writer

import (
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// CompressionKind selects the Parquet page codec.
type CompressionKind int

const (
	Uncompressed CompressionKind = iota
	Snappy
	Zstd
)

// Compression is the codec plus, for zstd, a level in 1..22.
type Compression struct {
	Kind  CompressionKind
	Level int
}

// codec maps the configured compression onto a parquet codec. The numeric
// zstd levels collapse onto the encoder speed tiers.
func (c Compression) codec() compress.Codec {
	switch c.Kind {
	case Uncompressed:
		return &parquet.Uncompressed
	case Snappy:
		return &parquet.Snappy
	case Zstd:
		switch {
		case c.Level <= 3:
			return &zstd.Codec{Level: zstd.SpeedDefault}
		case c.Level <= 10:
			return &zstd.Codec{Level: zstd.SpeedBetterCompression}
		default:
			return &zstd.Codec{Level: zstd.SpeedBestCompression}
		}
	}
	return &parquet.Uncompressed
}

// Config holds the writer knobs. RowGroupSize is in peaks: smaller groups
// prune finer but carry more per-file metadata, larger groups compress
// better but prune coarser.
type Config struct {
	Compression  Compression
	RowGroupSize int
	BatchSize    int
}

// DefaultConfig is the balanced profile.
func DefaultConfig() Config {
	return Config{
		Compression:  Compression{Kind: Zstd, Level: 3},
		RowGroupSize: 100_000,
		BatchSize:    1000,
	}
}

// Profile returns a named configuration profile: "fast", "balanced" or
// "max-compression". Unknown names fall back to balanced.
func Profile(name string) Config {
	switch name {
	case "fast":
		return Config{
			Compression:  Compression{Kind: Snappy},
			RowGroupSize: 50_000,
			BatchSize:    500,
		}
	case "max-compression":
		return Config{
			Compression:  Compression{Kind: Zstd, Level: 15},
			RowGroupSize: 200_000,
			BatchSize:    2000,
		}
	}
	return DefaultConfig()
}

func (c Config) normalized() Config {
	if c.RowGroupSize < 1 {
		c.RowGroupSize = DefaultConfig().RowGroupSize
	}
	if c.BatchSize < 1 {
		c.BatchSize = DefaultConfig().BatchSize
	}
	return c
}
