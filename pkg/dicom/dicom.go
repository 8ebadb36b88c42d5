// Package dicom reads and writes the objects of quantitative reporting:
// segmentations, TID 1500 structured reports, parametric maps, encapsulated
// 3D models and the image series they reference.
//
//	ds, err := dicom.ReadFile("seg.dcm", dicom.SkipPixelData())
//	if err != nil {
//		return err
//	}
//	if dicom.IsSegmentation(ds) {
//		frames, err := dicom.DecodeFrames(ds)
//		...
//	}
package dicom

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicom/transfer"
)

type TransferSyntax = transfer.Syntax

const (
	ExplicitVRLittleEndian = transfer.ExplicitVRLittleEndian
	ImplicitVRLittleEndian = transfer.ImplicitVRLittleEndian
	RLELossless            = transfer.RLELossless
)

// SOP classes read or written
const (
	CTImageStorageUID         = "1.2.840.10008.5.1.4.1.1.2"
	EnhancedCTImageStorageUID = "1.2.840.10008.5.1.4.1.1.2.1"
	MRImageStorageUID         = "1.2.840.10008.5.1.4.1.1.4"
	PETImageStorageUID        = "1.2.840.10008.5.1.4.1.1.128"

	SegmentationStorageUID    = "1.2.840.10008.5.1.4.1.1.66.4"
	ParametricMapStorageUID   = "1.2.840.10008.5.1.4.1.1.30"
	RealWorldValueMappingUID  = "1.2.840.10008.5.1.4.1.1.67"
	EnhancedSRStorageUID      = "1.2.840.10008.5.1.4.1.1.88.22"
	ComprehensiveSRStorageUID = "1.2.840.10008.5.1.4.1.1.88.33"
	Comprehensive3DSRUID      = "1.2.840.10008.5.1.4.1.1.88.34"
	EncapsulatedSTLStorageUID = "1.2.840.10008.5.1.4.1.1.104.3"
)

// ReadFile parses the file at path
func ReadFile(path string, opts ...ReadOption) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data), opts...)
}

func sopClassIn(ds *Dataset, uids ...string) bool {
	return slices.Contains(uids, ds.Text(tag.SOPClassUID))
}

func IsSegmentation(ds *Dataset) bool { return sopClassIn(ds, SegmentationStorageUID) }

// IsStructuredReport covers the SR classes able to carry TID 1500
func IsStructuredReport(ds *Dataset) bool {
	return sopClassIn(ds, EnhancedSRStorageUID, ComprehensiveSRStorageUID, Comprehensive3DSRUID)
}

func IsParametricMap(ds *Dataset) bool { return sopClassIn(ds, ParametricMapStorageUID) }

func IsRealWorldValueMapping(ds *Dataset) bool { return sopClassIn(ds, RealWorldValueMappingUID) }

// IsM3D matches on modality since models come in more than one SOP class
func IsM3D(ds *Dataset) bool { return GetModality(ds) == "M3D" }

func GetModality(ds *Dataset) string { return ds.Text(tag.Modality) }

func GetSeriesDescription(ds *Dataset) string { return ds.Text(tag.SeriesDescription) }

func GetTransferSyntax(ds *Dataset) TransferSyntax {
	return TransferSyntax(ds.Text(tag.TransferSyntaxUID))
}

func IsEncapsulated(ds *Dataset) bool { return GetTransferSyntax(ds).IsEncapsulated() }

func intOr(ds *Dataset, t Tag, def int) int {
	if v, ok := ds.Int(t); ok {
		return v
	}
	return def
}

func GetRows(ds *Dataset) int { return intOr(ds, tag.Rows, 0) }

func GetColumns(ds *Dataset) int { return intOr(ds, tag.Columns, 0) }

func GetBitsAllocated(ds *Dataset) int { return intOr(ds, tag.BitsAllocated, 0) }

// GetPixelRepresentation is 1 for signed pixels
func GetPixelRepresentation(ds *Dataset) int { return intOr(ds, tag.PixelRepresentation, 0) }

// GetNumberOfFrames is 1 when absent or not positive
func GetNumberOfFrames(ds *Dataset) int {
	if n := intOr(ds, tag.NumberOfFrames, 1); n > 0 {
		return n
	}
	return 1
}
