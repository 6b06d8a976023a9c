// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package units

import "testing"

func TestTimeUnitFromAccession(t *testing.T) {
	cases := []struct {
		accession string
		want      TimeUnit
	}{
		{"UO:0000010", Second},
		{"UO:0000031", Minute},
		{"UO:0000028", Millisecond},
		{"MS:1000016", InvalidTimeUnit},
		{"", InvalidTimeUnit},
	}
	for _, c := range cases {
		if got := TimeUnitFromAccession(c.accession); got != c.want {
			t.Errorf("TimeUnitFromAccession(%q) = %v, want %v", c.accession, got, c.want)
		}
	}
}

func TestTimeUnitFromName(t *testing.T) {
	cases := []struct {
		name string
		want TimeUnit
	}{
		{"second", Second},
		{"s", Second},
		{"min", Minute},
		{"minute", Minute},
		{"ms", Millisecond},
		{"furlong", InvalidTimeUnit},
	}
	for _, c := range cases {
		if got := TimeUnitFromName(c.name); got != c.want {
			t.Errorf("TimeUnitFromName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestToSeconds(t *testing.T) {
	if got := ToSeconds(1.5, Minute); got != 90.0 {
		t.Errorf("ToSeconds(1.5, Minute) = %v, want 90", got)
	}
	if got := ToSeconds(250, Millisecond); got != 0.25 {
		t.Errorf("ToSeconds(250, Millisecond) = %v, want 0.25", got)
	}
	// Unknown unit passes through.
	if got := ToSeconds(42, InvalidTimeUnit); got != 42 {
		t.Errorf("ToSeconds(42, InvalidTimeUnit) = %v, want 42", got)
	}
}
