package dicom

import (
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/stretchr/testify/assert"
)

func TestValidateDataset_Types(t *testing.T) {
	reqs := []IODRequirement{
		{Tag: tag.SOPInstanceUID, Type: Type1},
		{Tag: tag.PatientName, Type: Type2},
		{Tag: tag.StudyDescription, Type: Type3},
		{Tag: tag.FloatPixelData, Type: Type1C, Condition: func(ds *Dataset) bool { return !HasElement(ds, tag.PixelData) }},
	}

	res := ValidateDataset(MustDataset(WithElement(tag.SOPInstanceUID, "")), reqs)
	assert.False(t, res.IsValid())
	assert.True(t, res.HasWarnings())
	assert.Len(t, res.Errors, 2)

	res = ValidateDataset(MustDataset(
		WithElement(tag.SOPInstanceUID, "1.2"),
		WithElement(tag.PatientName, ""),
		WithBitPackedFrames([][]uint8{{1}}),
	), reqs)
	assert.True(t, res.IsValid())
	assert.False(t, res.HasWarnings())
}

func TestValidate_DispatchesOnSOPClass(t *testing.T) {
	ds := MustDataset(
		WithElement(tag.SOPClassUID, SegmentationStorageUID),
		WithElement(tag.SOPInstanceUID, "1.2"),
	)
	res := Validate(ds)
	assert.False(t, res.IsValid())

	var missing []Tag
	for _, e := range res.Errors {
		missing = append(missing, e.Tag)
	}
	assert.Contains(t, missing, tag.SegmentSequence)
	assert.Contains(t, missing, tag.ReferencedSeriesSequence)
	assert.Contains(t, res.Errors[0].Error(), "Type 1")
}
