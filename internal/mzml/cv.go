// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package mzml

// HUPO-PSI controlled-vocabulary accessions. Extraction is driven by these,
// never by XML element names alone.
const (
	// Spectrum-level
	cvMSLevel           = "MS:1000511"
	cvScanStartTime     = "MS:1000016"
	cvPositiveScan      = "MS:1000130"
	cvNegativeScan      = "MS:1000129"
	cvTotalIonCurrent   = "MS:1000285"
	cvBasePeakMz        = "MS:1000504"
	cvBasePeakIntensity = "MS:1000505"
	cvInjectionTime     = "MS:1000927"

	// Precursor block
	cvSelectedIonMz        = "MS:1000744"
	cvChargeState          = "MS:1000041"
	cvPeakIntensity        = "MS:1000042"
	cvIsolationTarget      = "MS:1000827"
	cvIsolationLowerOffset = "MS:1000828"
	cvIsolationUpperOffset = "MS:1000829"
	cvCollisionEnergy      = "MS:1000045"

	// Binary array semantics
	cvMzArray            = "MS:1000514"
	cvIntensityArray     = "MS:1000515"
	cvDriftTimeArray     = "MS:1002476"
	cvInverseMobilityArr = "MS:1002815"
	cvFloat64Encoding    = "MS:1000523"
	cvFloat32Encoding    = "MS:1000521"
	cvInt64Encoding      = "MS:1000522"
	cvInt32Encoding      = "MS:1000519"
	cvNoCompression      = "MS:1000576"
	cvZlibCompression    = "MS:1000574"
	cvNumpressLinear     = "MS:1002312"
	cvNumpressPic        = "MS:1002313"
	cvNumpressSlof       = "MS:1002314"
	cvNumpressLinearZlib = "MS:1002746"
	cvNumpressPicZlib    = "MS:1002747"
	cvNumpressSlofZlib   = "MS:1002748"

	// Imaging (imzML)
	cvPixelX            = "IMS:1000050"
	cvPixelY            = "IMS:1000051"
	cvPixelZ            = "IMS:1000052"
	cvExternalArrayLen  = "IMS:1000102"
	cvExternalOffset    = "IMS:1000103"
	cvExternalEncLength = "IMS:1000104"
)

// cvParam is one <cvParam> element.
type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
	UnitName      string `xml:"unitName,attr"`
}
