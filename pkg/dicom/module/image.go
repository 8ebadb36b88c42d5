package module

import (
	"strconv"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicom/vr"
)

// ImagePixelModule describes the pixel matrix
// Per DICOM Part 3 Section C.7.6.3
type ImagePixelModule struct {
	Rows                      uint16
	Columns                   uint16
	SamplesPerPixel           uint16
	PhotometricInterpretation string
	BitsAllocated             uint16
	BitsStored                uint16
	HighBit                   uint16
	PixelRepresentation       uint16 // 0 unsigned, 1 signed
}

// NewImagePixelModule returns a single-sample MONOCHROME2 pixel module
func NewImagePixelModule(rows, cols, bits uint16, signed bool) *ImagePixelModule {
	m := &ImagePixelModule{
		Rows:                      rows,
		Columns:                   cols,
		SamplesPerPixel:           1,
		PhotometricInterpretation: "MONOCHROME2",
		BitsAllocated:             bits,
		BitsStored:                bits,
		HighBit:                   bits - 1,
	}
	if signed {
		m.PixelRepresentation = 1
	}
	return m
}

func (m *ImagePixelModule) ToTags() []IODElement {
	elements := []IODElement{
		{Tag: tag.Rows, Value: m.Rows},
		{Tag: tag.Columns, Value: m.Columns},
		{Tag: tag.SamplesPerPixel, Value: m.SamplesPerPixel},
		{Tag: tag.PhotometricInterpretation, Value: m.PhotometricInterpretation},
		{Tag: tag.BitsAllocated, Value: m.BitsAllocated},
	}
	// float pixel data carries no stored bits or representation
	if m.BitsAllocated != 32 {
		elements = append(elements,
			IODElement{Tag: tag.BitsStored, Value: m.BitsStored},
			IODElement{Tag: tag.HighBit, Value: m.HighBit},
			IODElement{Tag: tag.PixelRepresentation, Value: m.PixelRepresentation},
		)
	}
	return elements
}

// CTImageModule represents the CT Image Module attributes
type CTImageModule struct {
	ImageType        []string // ORIGINAL\PRIMARY\AXIAL
	RescaleIntercept float64  // Hounsfield offset
	RescaleSlope     float64
	RescaleType      string
	InstanceNumber   int
	WindowCenter     float64
	WindowWidth      float64
}

// NewCTImageModule creates a CTImageModule with default values
func NewCTImageModule() *CTImageModule {
	return &CTImageModule{
		ImageType:        []string{"ORIGINAL", "PRIMARY", "AXIAL"},
		RescaleIntercept: -1024,
		RescaleSlope:     1.0,
		RescaleType:      "HU",
	}
}

// ToTags converts the module to DICOM tag elements
func (m *CTImageModule) ToTags() []IODElement {
	elements := []IODElement{
		{Tag: tag.ImageType, Value: multi(m.ImageType)},
		{Tag: tag.InstanceNumber, Value: strconv.Itoa(m.InstanceNumber)},
		{Tag: tag.RescaleIntercept, Value: vr.FormatDS(m.RescaleIntercept)},
		{Tag: tag.RescaleSlope, Value: vr.FormatDS(m.RescaleSlope)},
		{Tag: tag.RescaleType, Value: m.RescaleType},
	}
	if m.WindowCenter != 0 || m.WindowWidth != 0 {
		elements = append(elements,
			IODElement{Tag: tag.WindowCenter, Value: vr.FormatDS(m.WindowCenter)},
			IODElement{Tag: tag.WindowWidth, Value: vr.FormatDS(m.WindowWidth)},
		)
	}
	return elements
}

// DerivedImageModule holds the attributes shared by derived multi-frame
// objects (segmentation and parametric map): image type, content
// identification and instance number.
type DerivedImageModule struct {
	ImageType          []string
	InstanceNumber     int
	ContentLabel       string
	ContentDescription string
	ContentCreatorName string
	ContentDate        Date
	ContentTime        Time
	NumberOfFrames     int
}

func (m *DerivedImageModule) ToTags() []IODElement {
	elements := []IODElement{
		{Tag: tag.ImageType, Value: multi(m.ImageType)},
		{Tag: tag.InstanceNumber, Value: strconv.Itoa(m.InstanceNumber)},
		{Tag: tag.ContentLabel, Value: m.ContentLabel},
		{Tag: tag.ContentDescription, Value: m.ContentDescription},
		{Tag: tag.ContentCreatorName, Value: m.ContentCreatorName},
		{Tag: tag.ContentDate, Value: m.ContentDate.String()},
		{Tag: tag.ContentTime, Value: m.ContentTime.String()},
		{Tag: tag.NumberOfFrames, Value: strconv.Itoa(m.NumberOfFrames)},
		{Tag: tag.BurnedInAnnotation, Value: "NO"},
		{Tag: tag.LossyImageCompression, Value: "00"},
	}
	return elements
}
