// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package mzml

import (
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var indexListOffsetRe = regexp.MustCompile(`<indexListOffset>\s*(\d+)\s*</indexListOffset>`)

// parseIndex reads the trailing <indexList> of an indexedmzML document and
// returns spectrum byte offsets keyed by native ID. Documents without an
// index return an empty map; the stream then stays strictly sequential.
func parseIndex(ra io.ReaderAt, size int64) (map[string]int64, error) {
	tailLen := int64(1024)
	if tailLen > size {
		tailLen = size
	}
	tail := make([]byte, tailLen)
	if _, err := ra.ReadAt(tail, size-tailLen); err != nil && err != io.EOF {
		return nil, &ReadError{Err: err}
	}

	m := indexListOffsetRe.FindSubmatch(tail)
	if m == nil {
		return map[string]int64{}, nil
	}
	offset, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil || offset <= 0 || offset >= size {
		return nil, &InvalidStructureError{Msg: "malformed indexListOffset"}
	}

	d := xml.NewDecoder(io.NewSectionReader(ra, offset, size-offset))
	offsets := map[string]int64{}
	inSpectrumIndex := false
	var idRef string

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &InvalidStructureError{Msg: "malformed indexList", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "index":
				inSpectrumIndex = false
				for _, a := range t.Attr {
					if a.Name.Local == "name" && a.Value == "spectrum" {
						inSpectrumIndex = true
					}
				}
			case "offset":
				if !inSpectrumIndex {
					continue
				}
				idRef = ""
				for _, a := range t.Attr {
					if a.Name.Local == "idRef" {
						idRef = a.Value
					}
				}
				var content string
				if err := d.DecodeElement(&content, &t); err != nil {
					return nil, &InvalidStructureError{Msg: "malformed index offset", Err: err}
				}
				n, err := strconv.ParseInt(strings.TrimSpace(content), 10, 64)
				if err != nil {
					return nil, &InvalidStructureError{Msg: "malformed index offset value"}
				}
				if idRef != "" {
					offsets[idRef] = n
				}
			case "indexListOffset":
				// reached the trailer, done
				return offsets, nil
			}
		case xml.EndElement:
			if t.Name.Local == "indexList" {
				return offsets, nil
			}
		}
	}
	return offsets, nil
}
