package dicom

import (
	"bytes"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	reportCode  = module.NewCode("126000", "DCM", "Imaging Measurement Report")
	groupCode   = module.NewCode("125007", "DCM", "Measurement Group")
	trackingID  = module.NewCode("112039", "DCM", "Tracking Identifier")
	volumeCode  = module.NewCode("G-D705", "SRT", "Volume")
	cubicCM     = module.NewCode("cm3", "UCUM", "cubic centimeter")
	findingCode = module.NewCode("121071", "DCM", "Finding")
	neoplasm    = module.NewCode("49755003", "SCT", "Neoplasm")
	segCode     = module.NewCode("121191", "DCM", "Referenced Segment")
	imageRegion = module.NewCode("111030", "DCM", "Image Region")
)

func sampleReport() *StructuredReport {
	sr := NewStructuredReport(EnhancedSRStorageUID)
	sr.Study.StudyInstanceUID = "1.2.3"
	sr.Patient.PatientID = "P1"

	group := Container(RelContains, groupCode,
		TextItem(RelHasObsContext, trackingID, "Tumor"),
		CodeItem(RelContains, findingCode, neoplasm),
		ImageItem(RelContains, segCode, SOPReference{ClassUID: SegmentationStorageUID, InstanceUID: "1.2.3.4", SegmentNumber: 2}),
		NumItem(RelContains, volumeCode, FormatNumeric(1.25), cubicCM),
		&ContentItem{
			RelationshipType: RelContains,
			ValueType:        ValueSCoord,
			ConceptName:      imageRegion,
			GraphicType:      "POLYLINE",
			GraphicData:      []float32{100, 120, 200, 120},
			Children: []*ContentItem{
				ImageItem(RelSelectedFrom, module.Code{}, SOPReference{ClassUID: CTImageStorageUID, InstanceUID: "1.2.3.5", Frames: []int{1}}),
			},
		},
	)
	sr.Root = Container("", reportCode, group)
	sr.Root.TemplateID = "1500"
	sr.Evidence = []EvidenceReference{
		{StudyInstanceUID: "1.2.3", SeriesInstanceUID: "1.2.3.9", SOPClassUID: SegmentationStorageUID, SOPInstanceUID: "1.2.3.4"},
		{StudyInstanceUID: "1.2.3", SeriesInstanceUID: "1.2.3.8", SOPClassUID: CTImageStorageUID, SOPInstanceUID: "1.2.3.5"},
		{StudyInstanceUID: "1.2.3", SeriesInstanceUID: "1.2.3.8", SOPClassUID: CTImageStorageUID, SOPInstanceUID: "1.2.3.6"},
	}
	return sr
}

func TestStructuredReport_RoundTrip(t *testing.T) {
	sr := sampleReport()
	var buf bytes.Buffer
	_, err := sr.WriteTo(&buf)
	require.NoError(t, err)

	ds, err := Parse(&buf)
	require.NoError(t, err)
	assert.True(t, IsStructuredReport(ds))
	assert.Equal(t, "SR", GetModality(ds))
	assert.Equal(t, "1500", TemplateIdentifier(ds))
	assert.True(t, ValidateStructuredReport(ds).IsValid())

	root := ParseContentItem(ds)
	assert.Equal(t, ValueContainer, root.ValueType)
	assert.True(t, root.ConceptName.Equal(reportCode))
	require.Len(t, root.Children, 1)

	group := root.First(groupCode)
	require.NotNil(t, group)
	assert.Equal(t, "Tumor", group.First(trackingID).Text)
	assert.True(t, group.First(findingCode).Code.Equal(neoplasm))

	seg := group.First(segCode)
	require.NotNil(t, seg)
	require.NotNil(t, seg.Reference)
	assert.Equal(t, 2, seg.Reference.SegmentNumber)
	assert.Equal(t, "1.2.3.4", seg.Reference.InstanceUID)

	vol := group.First(volumeCode)
	require.NotNil(t, vol)
	assert.Equal(t, "1.25", vol.Value)
	assert.True(t, vol.Units.Equal(cubicCM))

	region := group.First(imageRegion)
	require.NotNil(t, region)
	assert.Equal(t, "POLYLINE", region.GraphicType)
	assert.Equal(t, []float32{100, 120, 200, 120}, region.GraphicData)
	require.Len(t, region.Children, 1)
	assert.Equal(t, RelSelectedFrom, region.Children[0].RelationshipType)
	assert.Equal(t, []int{1}, region.Children[0].Reference.Frames)
}

func TestStructuredReport_EvidenceGroupedBySeries(t *testing.T) {
	ds, err := sampleReport().GetDataset()
	require.NoError(t, err)

	studies := ds.Items(tag.CurrentRequestedProcedureEvidenceSequence)
	require.Len(t, studies, 1)
	series := studies[0].Items(tag.ReferencedSeriesSequence)
	require.Len(t, series, 2)
	assert.Equal(t, "1.2.3.9", series[0].Text(tag.SeriesInstanceUID))
	assert.Len(t, series[1].Items(tag.ReferencedSOPSequence), 2)

	flat := ParseEvidence(ds)
	assert.Equal(t, sampleReport().Evidence, flat)
}

func TestStructuredReport_NoContent(t *testing.T) {
	_, err := NewStructuredReport(ComprehensiveSRStorageUID).GetDataset()
	assert.Error(t, err)
}

func TestContentItem_Walk(t *testing.T) {
	var kinds []string
	sampleReport().Root.Walk(func(item *ContentItem) {
		kinds = append(kinds, item.ValueType)
	})
	assert.Equal(t, []string{ValueContainer, ValueContainer, ValueText, ValueCode, ValueImage, ValueNum, ValueSCoord, ValueImage}, kinds)
}
