// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/joho/godotenv"

	"github.com/mzpeak/mzpeak-go/internal/convert"
	"github.com/mzpeak/mzpeak-go/internal/reader"
	"github.com/mzpeak/mzpeak-go/internal/validator"
	"github.com/mzpeak/mzpeak-go/internal/writer"
	"github.com/mzpeak/mzpeak-go/pkg/log"
)

const usage = `usage: mzpeak <command> [flags]

commands:
  convert   convert an mzML/imzML document or Bruker .d dataset
  validate  validate an mzpeak archive
  info      print a summary of an mzpeak archive
`

func main() {
	// Load a .env file if present; ignore a missing one.
	godotenv.Load()

	if os.Getenv("MZPEAK_GOPS") != "" {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent: %s", err.Error())
		}
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(ctx, os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("mzpeak %s: %s", os.Args[1], err.Error())
	}
}

func runConvert(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	var (
		flagOut      = fs.String("out", "", "output archive path (*.mzpeak) or directory")
		flagProfile  = fs.String("profile", "balanced", "writer profile: fast, balanced, max-compression")
		flagWorkers  = fs.Int("workers", 0, "parallel workers for TDF conversion (0 = all cores)")
		flagMerge    = fs.Bool("merge", false, "merge TDF shards into one archive")
		flagNoChrom  = fs.Bool("no-chromatograms", false, "skip chromatogram conversion")
		flagLogLevel = fs.String("loglevel", "info", "log level: debug, info, warn, err, crit")
	)
	fs.Parse(args)
	log.SetLogLevel(*flagLogLevel)

	if fs.NArg() != 1 || *flagOut == "" {
		return fmt.Errorf("need a source path and -out")
	}
	src := fs.Arg(0)
	wcfg := writer.Profile(*flagProfile)

	if isTdf(src) {
		cfg := convert.DefaultTDFConfig()
		cfg.Writer = wcfg
		cfg.MergeShards = *flagMerge
		if *flagWorkers > 0 {
			cfg.NumWorkers = *flagWorkers
		}
		result, err := convert.ConvertTDFParallel(ctx, src, *flagOut, cfg)
		if err != nil {
			return err
		}
		for _, shard := range result.Shards {
			log.Infof("shard %d: %d spectra, %d peaks (%s)",
				shard.ShardID, shard.SpectraWritten, shard.PeaksWritten, shard.Path)
		}
		if result.MergedPath != "" {
			log.Infof("merged archive: %s", result.MergedPath)
		}
		return nil
	}

	cfg := convert.DefaultMzMLConfig()
	cfg.Writer = wcfg
	cfg.IncludeChromatograms = !*flagNoChrom
	stats, err := convert.ConvertMzML(ctx, src, *flagOut, cfg)
	if err != nil {
		return err
	}
	log.Infof("%s", stats.String())
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("need an archive path")
	}

	report := validator.Validate(fs.Arg(0))
	fmt.Print(report.String())
	if !report.Passed() {
		os.Exit(1)
	}
	return nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("need an archive path")
	}

	r, err := reader.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer r.Close()

	summary, err := r.Summary()
	if err != nil {
		return err
	}
	fmt.Print(summary.String())
	return nil
}

func isTdf(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".d") {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir() && fileExists(filepath.Join(path, "analysis.tdf"))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
