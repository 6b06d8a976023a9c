// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type Kind int

const (
	MetadataEnvelope Kind = iota + 1
	Sdrf
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadSchema(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(strings.TrimPrefix(u.Host+u.Path, "/"))
}

func init() {
	jsonschema.Loaders["embedfs"] = loadSchema
}

// Validate checks a JSON document against the embedded schema for the given
// kind. It consumes the reader.
func Validate(k Kind, r io.Reader) error {
	var s *jsonschema.Schema
	var err error

	switch k {
	case MetadataEnvelope:
		s, err = jsonschema.Compile("embedfs://schemas/metadata.schema.json")
	case Sdrf:
		s, err = jsonschema.Compile("embedfs://schemas/sdrf.schema.json")
	default:
		return fmt.Errorf("unknown schema kind")
	}
	if err != nil {
		return err
	}

	var v interface{}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return fmt.Errorf("schema.Validate() - failed to decode: %w", err)
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%#v", err)
	}

	return nil
}
