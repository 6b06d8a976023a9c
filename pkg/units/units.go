// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package units

import "regexp"

// TimeUnit identifies the unit a source file declares on a time-valued
// cvParam. mzML tags units with UO accessions; some writers only emit the
// unit name.
type TimeUnit int

const (
	InvalidTimeUnit TimeUnit = iota
	Second
	Minute
	Millisecond
	Microsecond
)

type timeUnitData struct {
	Accession string
	Name      string
	Regex     string
	ToSeconds float64
}

var timeUnitsMap = map[TimeUnit]timeUnitData{
	Second: {
		Accession: "UO:0000010",
		Name:      "second",
		Regex:     "^([sS]|[sS]econds?)$",
		ToSeconds: 1.0,
	},
	Minute: {
		Accession: "UO:0000031",
		Name:      "minute",
		Regex:     "^(min|[mM]inutes?)$",
		ToSeconds: 60.0,
	},
	Millisecond: {
		Accession: "UO:0000028",
		Name:      "millisecond",
		Regex:     "^(ms|[mM]illiseconds?)$",
		ToSeconds: 1e-3,
	},
	Microsecond: {
		Accession: "UO:0000029",
		Name:      "microsecond",
		Regex:     "^(us|µs|[mM]icroseconds?)$",
		ToSeconds: 1e-6,
	},
}

// TimeUnitFromAccession resolves a UO accession to a time unit.
func TimeUnitFromAccession(accession string) TimeUnit {
	for u, d := range timeUnitsMap {
		if d.Accession == accession {
			return u
		}
	}
	return InvalidTimeUnit
}

// TimeUnitFromName resolves a free-form unit name to a time unit.
func TimeUnitFromName(name string) TimeUnit {
	for u, d := range timeUnitsMap {
		if regexp.MustCompile(d.Regex).MatchString(name) {
			return u
		}
	}
	return InvalidTimeUnit
}

// ToSeconds converts a value in the given unit to seconds. Unknown units are
// passed through unchanged; mzML leaves retention times without a unit tag in
// seconds already.
func ToSeconds(value float64, unit TimeUnit) float64 {
	d, ok := timeUnitsMap[unit]
	if !ok {
		return value
	}
	return value * d.ToSeconds
}

// MobilityUnit identifies the declared unit of an ion mobility array.
type MobilityUnit int

const (
	InvalidMobilityUnit MobilityUnit = iota
	// MillisecondDrift is drift time in milliseconds (MS:1002476).
	MillisecondDrift
	// InverseReducedMobility is 1/K0 in Vs/cm^2 (MS:1002815).
	InverseReducedMobility
)

// MobilityUnitFromAccession resolves an MS accession to a mobility unit.
func MobilityUnitFromAccession(accession string) MobilityUnit {
	switch accession {
	case "MS:1002476":
		return MillisecondDrift
	case "MS:1002815":
		return InverseReducedMobility
	}
	return InvalidMobilityUnit
}
