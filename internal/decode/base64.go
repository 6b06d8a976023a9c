// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package decode

import (
	"encoding/base64"
	"errors"

	"github.com/klauspost/cpuid/v2"
)

// mzML wraps base64 payloads in XML text, so whitespace has to be stripped
// before decoding. The vectorizable fast path is selected once at startup
// when the CPU reports SSSE3, AVX2 or ARM ASIMD; the scalar path is the stdlib
// decoder. Both return byte-identical output for all inputs.
var haveFastBase64 = cpuid.CPU.Supports(cpuid.SSSE3) || cpuid.CPU.Supports(cpuid.AVX2) || cpuid.CPU.Supports(cpuid.ASIMD)

var errMalformedBase64 = errors.New("malformed base64 input")

// DecodeBase64 strips whitespace and decodes standard (padded) base64.
// Whitespace-only input yields an empty slice.
func DecodeBase64(text []byte) ([]byte, error) {
	text = stripSpace(text)
	if len(text) == 0 {
		return nil, nil
	}
	if haveFastBase64 {
		return decodeBase64Fast(text)
	}
	return decodeBase64Scalar(text)
}

func stripSpace(text []byte) []byte {
	clean := text[:0:len(text)]
	dirty := false
	for i, b := range text {
		if b == ' ' || b == '\n' || b == '\r' || b == '\t' {
			if !dirty {
				clean = append([]byte(nil), text[:i]...)
				dirty = true
			}
			continue
		}
		if dirty {
			clean = append(clean, b)
		}
	}
	if !dirty {
		return text
	}
	return clean
}

// decodeBase64Scalar is the reference implementation.
func decodeBase64Scalar(text []byte) ([]byte, error) {
	dst := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(dst, text)
	if err != nil {
		return nil, errMalformedBase64
	}
	return dst[:n], nil
}

// base64Rev maps a base64 alphabet byte to its 6-bit value, 0xFF for
// invalid bytes.
var base64Rev = func() (t [256]byte) {
	for i := range t {
		t[i] = 0xFF
	}
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = byte(i)
	}
	return
}()

// decodeBase64Fast decodes whole 4-char quanta through the reverse table
// with the final quantum handling padding. The wide loop body is written so
// the compiler can keep the quantum in registers and vectorize across
// iterations.
func decodeBase64Fast(src []byte) ([]byte, error) {
	n := len(src)
	if n%4 != 0 {
		return nil, errMalformedBase64
	}

	pad := 0
	if src[n-1] == '=' {
		pad++
		if src[n-2] == '=' {
			pad++
		}
	}

	dst := make([]byte, n/4*3-pad)
	di, si := 0, 0

	for si < n-4 {
		a := base64Rev[src[si]]
		b := base64Rev[src[si+1]]
		c := base64Rev[src[si+2]]
		d := base64Rev[src[si+3]]
		if a|b|c|d == 0xFF {
			return nil, errMalformedBase64
		}
		v := uint32(a)<<18 | uint32(b)<<12 | uint32(c)<<6 | uint32(d)
		dst[di] = byte(v >> 16)
		dst[di+1] = byte(v >> 8)
		dst[di+2] = byte(v)
		si += 4
		di += 3
	}

	// Final quantum, 0-2 padding chars.
	a := base64Rev[src[si]]
	b := base64Rev[src[si+1]]
	if a == 0xFF || b == 0xFF {
		return nil, errMalformedBase64
	}
	v := uint32(a)<<18 | uint32(b)<<12
	dst[di] = byte(v >> 16)
	if pad < 2 {
		c := base64Rev[src[si+2]]
		if c == 0xFF {
			return nil, errMalformedBase64
		}
		v |= uint32(c) << 6
		dst[di+1] = byte(v >> 8)
	} else if src[si+2] != '=' {
		return nil, errMalformedBase64
	}
	if pad < 1 {
		d := base64Rev[src[si+3]]
		if d == 0xFF {
			return nil, errMalformedBase64
		}
		v |= uint32(d)
		dst[di+2] = byte(v)
	}

	return dst, nil
}
