// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SdrfMetadata carries sample and experimental-condition annotations
// following the SDRF-Proteomics standard.
// Reference: https://github.com/bigbio/proteomics-sample-metadata
type SdrfMetadata struct {
	SourceName          string            `json:"source_name"`
	Organism            string            `json:"organism,omitempty"`
	OrganismPart        string            `json:"organism_part,omitempty"`
	CellType            string            `json:"cell_type,omitempty"`
	Disease             string            `json:"disease,omitempty"`
	Instrument          string            `json:"instrument,omitempty"`
	CleavageAgent       string            `json:"cleavage_agent,omitempty"`
	Modifications       []string          `json:"modifications,omitempty"`
	Label               string            `json:"label,omitempty"`
	Fraction            string            `json:"fraction,omitempty"`
	TechnicalReplicate  *int              `json:"technical_replicate,omitempty"`
	BiologicalReplicate *int              `json:"biological_replicate,omitempty"`
	FactorValues        map[string]string `json:"factor_values,omitempty"`
	Comments            map[string]string `json:"comments,omitempty"`
	RawFile             string            `json:"raw_file,omitempty"`
	CustomAttributes    map[string]string `json:"custom_attributes,omitempty"`
}

// SdrfFromTSVFile parses an SDRF TSV file into one record per sample row.
func SdrfFromTSVFile(path string) ([]SdrfMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return SdrfFromTSV(f)
}

// SdrfFromTSV parses SDRF rows from a tab-separated stream. The header must
// contain a "source name" column; all other columns map by name, unknown ones
// are kept as custom attributes.
func SdrfFromTSV(r io.Reader) ([]SdrfMetadata, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("SDRF: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	hasSource := false
	for _, h := range header {
		if strings.Contains(h, "source name") {
			hasSource = true
			break
		}
	}
	if !hasSource {
		return nil, fmt.Errorf("SDRF: missing required column %q", "source name")
	}

	var results []SdrfMetadata
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("SDRF: read record: %w", err)
		}

		meta := SdrfMetadata{
			FactorValues:     map[string]string{},
			Comments:         map[string]string{},
			CustomAttributes: map[string]string{},
		}

		for i, value := range record {
			if i >= len(header) {
				break
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			h := header[i]

			switch {
			case strings.Contains(h, "source name"):
				meta.SourceName = value
			case strings.Contains(h, "organism part") || strings.Contains(h, "tissue"):
				meta.OrganismPart = value
			case strings.Contains(h, "organism"):
				meta.Organism = value
			case strings.Contains(h, "cell type"):
				meta.CellType = value
			case strings.Contains(h, "disease"):
				meta.Disease = value
			case strings.Contains(h, "instrument"):
				meta.Instrument = value
			case strings.Contains(h, "cleavage agent") || strings.Contains(h, "enzyme"):
				meta.CleavageAgent = value
			case strings.Contains(h, "modification"):
				meta.Modifications = append(meta.Modifications, value)
			case strings.Contains(h, "label"):
				meta.Label = value
			case strings.Contains(h, "fraction"):
				meta.Fraction = value
			case strings.Contains(h, "technical replicate"):
				if n, err := strconv.Atoi(value); err == nil {
					meta.TechnicalReplicate = &n
				}
			case strings.Contains(h, "biological replicate"):
				if n, err := strconv.Atoi(value); err == nil {
					meta.BiologicalReplicate = &n
				}
			case strings.HasPrefix(h, "factor value"):
				if name, ok := bracketName(h); ok {
					meta.FactorValues[name] = value
				}
			case strings.HasPrefix(h, "comment"):
				if name, ok := bracketName(h); ok {
					meta.Comments[name] = value
				}
			case strings.Contains(h, "data file") || strings.Contains(h, "file"):
				meta.RawFile = value
			default:
				meta.CustomAttributes[h] = value
			}
		}

		if meta.SourceName != "" {
			results = append(results, meta)
		}
	}

	return results, nil
}

// bracketName extracts "treatment" from headers like "factor value[treatment]".
func bracketName(h string) (string, bool) {
	start := strings.IndexByte(h, '[')
	end := strings.IndexByte(h, ']')
	if start < 0 || end <= start+1 {
		return "", false
	}
	return h[start+1 : end], true
}
