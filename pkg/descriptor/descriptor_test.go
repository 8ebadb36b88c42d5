package descriptor

import (
	"path/filepath"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDICOMPersonName(t *testing.T) {
	assert.Equal(t, "Doe^John", DICOMPersonName("John Doe"))
	assert.Equal(t, "Reader1", DICOMPersonName("Reader1"))
	assert.Equal(t, "Doe^Q^John", DICOMPersonName("John Q Doe"))
	assert.Equal(t, "Doe^John", DICOMPersonName("Doe^John"))
	assert.Equal(t, "", DICOMPersonName("  "))
}

func TestDerivedSeriesNumber(t *testing.T) {
	assert.Equal(t, "107", DerivedSeriesNumber(7, true))
	assert.Equal(t, "100", DerivedSeriesNumber(0, false))
	assert.Equal(t, "100", DerivedSeriesNumber(0, true))
}

func TestSeriesAttributes_Validate(t *testing.T) {
	a := SeriesAttributes{
		ContentCreatorName:                  "Doe^John",
		ClinicalTrialSeriesID:               "Session1",
		ClinicalTrialTimePointID:            "1",
		ClinicalTrialCoordinatingCenterName: "QIICR",
		SeriesNumber:                        "100",
		InstanceNumber:                      "1",
	}
	require.NoError(t, a.Validate())

	a.ContentCreatorName = ""
	err := a.Validate()
	var attr *errs.AttributeError
	require.ErrorAs(t, err, &attr)
	assert.Equal(t, "ContentCreatorName", attr.Key)
	assert.ErrorIs(t, err, errs.ErrMissingAttribute)
}

func TestSegment_Colors(t *testing.T) {
	rgb := RGBValue([3]float64{1, 0.5, 0})
	assert.Equal(t, []int{255, 128, 0}, rgb)
	back := Segment{RecommendedDisplayRGBValue: rgb}.RGB()
	assert.InDelta(t, 1.0, back[0], 1.0/255)
	assert.InDelta(t, 0.5, back[1], 1.0/255)
	assert.Equal(t, [3]float64{}, Segment{}.RGB())
}

func TestSEG_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	in := SEG{
		SeriesAttributes: SeriesAttributes{SeriesDescription: "Segmentation", SeriesNumber: "100", InstanceNumber: "1"},
		SegmentAttributes: [][]Segment{
			{{LabelID: 1, SegmentLabel: "Tumor", SegmentAlgorithmType: "MANUAL",
				SegmentedPropertyCategoryCodeSequence: FromCode(module.NewCode("T-D0050", "SRT", "Tissue")),
				SegmentedPropertyTypeCodeSequence:     FromCode(module.NewCode("49755003", "SCT", "Neoplasm"))}},
			{{LabelID: 1, SegmentLabel: "Air"}},
		},
	}
	require.NoError(t, WriteFile(path, &in))
	var out SEG
	require.NoError(t, ReadFile(path, &out))
	assert.Equal(t, in, out)
	require.Len(t, out.Segments(), 2)
	assert.Equal(t, "Neoplasm", out.Segments()[0].SegmentedPropertyTypeCodeSequence.Module().Meaning)
	assert.Nil(t, out.Segments()[1].AnatomicRegionSequence.ModulePtr())
}

func TestSR_Validate(t *testing.T) {
	d := SR{
		SeriesAttributes: SeriesAttributes{
			ContentCreatorName: "Reader1", ClinicalTrialSeriesID: "S", ClinicalTrialTimePointID: "1",
			ClinicalTrialCoordinatingCenterName: "C", SeriesNumber: "101", InstanceNumber: "1",
		},
		CompositeContext: []string{"seg.dcm"},
		VerificationFlag: "UNVERIFIED",
		CompletionFlag:   "COMPLETE",
	}
	require.NoError(t, d.Validate())
	d.CompletionFlag = "DONE"
	assert.ErrorIs(t, d.Validate(), errs.ErrMissingAttribute)
}

func TestMeasurementItem_Name(t *testing.T) {
	item := MeasurementItem{
		Quantity:   FromCode(module.NewCode("122713", "DCM", "Attenuation Coefficient")),
		Units:      FromCode(module.NewCode("[hnsf'U]", "UCUM", "Hounsfield unit")),
		Derivation: FromCode(module.NewCode("R-00317", "SRT", "Mean")),
	}
	assert.Equal(t, "Mean [[hnsf'U]]", item.Name())
	item.Derivation = nil
	assert.Equal(t, "Attenuation Coefficient [[hnsf'U]]", item.Name())
}
