// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package validator

import (
	"fmt"
	"strings"
)

// CheckStatus is the outcome of one validation check.
type CheckStatus int

const (
	Ok CheckStatus = iota
	Warning
	Failed
)

func (s CheckStatus) String() string {
	switch s {
	case Ok:
		return "OK"
	case Warning:
		return "WARNING"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Check is one validation result.
type Check struct {
	Phase  string
	Name   string
	Status CheckStatus
	Detail string
}

// Report collects the checks of a validation run.
type Report struct {
	Path   string
	Checks []Check
}

func (r *Report) add(phase, name string, status CheckStatus, detail string) {
	r.Checks = append(r.Checks, Check{Phase: phase, Name: name, Status: status, Detail: detail})
}

func (r *Report) ok(phase, name string)           { r.add(phase, name, Ok, "") }
func (r *Report) warn(phase, name, detail string) { r.add(phase, name, Warning, detail) }
func (r *Report) fail(phase, name, detail string) { r.add(phase, name, Failed, detail) }

// Passed reports whether no check failed. Warnings do not fail a run.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if c.Status == Failed {
			return false
		}
	}
	return true
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "validation of %s\n", r.Path)
	for _, c := range r.Checks {
		fmt.Fprintf(&b, "  [%s] %s: %s", c.Status, c.Phase, c.Name)
		if c.Detail != "" {
			fmt.Fprintf(&b, " (%s)", c.Detail)
		}
		b.WriteByte('\n')
	}
	if r.Passed() {
		b.WriteString("result: PASSED\n")
	} else {
		b.WriteString("result: FAILED\n")
	}
	return b.String()
}
