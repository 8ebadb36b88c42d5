package module

import (
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicom/vr"
)

// FrameOfReferenceModule (C.7.4.1). Segmentations and planar annotations
// are matched to their source images through the UID.
type FrameOfReferenceModule struct {
	FrameOfReferenceUID        string
	PositionReferenceIndicator string
}

func (m *FrameOfReferenceModule) ToTags() []IODElement {
	return []IODElement{
		{Tag: tag.FrameOfReferenceUID, Value: m.FrameOfReferenceUID},
		{Tag: tag.PositionReferenceIndicator, Value: m.PositionReferenceIndicator},
	}
}

// ImagePlaneModule (C.7.6.2) of one single-frame slice. Orientation holds
// the row then column direction cosines in LPS.
type ImagePlaneModule struct {
	PixelSpacing            [2]float64 // row spacing, column spacing
	ImageOrientationPatient [6]float64
	ImagePositionPatient    [3]float64
	SliceThickness          float64
	SpacingBetweenSlices    float64
}

// NewImagePlaneModule returns an axial plane with 1mm pixels
func NewImagePlaneModule() *ImagePlaneModule {
	return &ImagePlaneModule{
		PixelSpacing:            [2]float64{1, 1},
		ImageOrientationPatient: [6]float64{1, 0, 0, 0, 1, 0},
		SliceThickness:          1,
	}
}

// ToTags omits zero thickness and spacing, and writes the slice location
// as the z of the position
func (m *ImagePlaneModule) ToTags() []IODElement {
	out := []IODElement{
		{Tag: tag.PixelSpacing, Value: vr.FormatDSList(m.PixelSpacing[:])},
		{Tag: tag.ImageOrientationPatient, Value: vr.FormatDSList(m.ImageOrientationPatient[:])},
		{Tag: tag.ImagePositionPatient, Value: vr.FormatDSList(m.ImagePositionPatient[:])},
		{Tag: tag.SliceLocation, Value: vr.FormatDS(m.ImagePositionPatient[2])},
	}
	for _, opt := range []struct {
		t tag.Tag
		v float64
	}{{tag.SliceThickness, m.SliceThickness}, {tag.SpacingBetweenSlices, m.SpacingBetweenSlices}} {
		if opt.v != 0 {
			out = append(out, IODElement{Tag: opt.t, Value: vr.FormatDS(opt.v)})
		}
	}
	return out
}
