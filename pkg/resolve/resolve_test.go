package resolve

import (
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicomdb"
	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB() *dicomdb.Index {
	idx := dicomdb.NewIndex()
	for i, sop := range []string{"1.1", "1.2"} {
		idx.Add(dicomdb.Instance{
			PatientID: "P", StudyInstanceUID: "st", SeriesInstanceUID: "ct", SeriesNumber: 2,
			Modality: "CT", SOPInstanceUID: sop, InstanceNumber: i + 1, FrameOfReferenceUID: "for1",
		})
	}
	idx.Add(dicomdb.Instance{PatientID: "P", StudyInstanceUID: "st", SeriesInstanceUID: "mr", SeriesNumber: 1, Modality: "MR", SOPInstanceUID: "2.1", FrameOfReferenceUID: "for2"})
	idx.Add(dicomdb.Instance{PatientID: "P", StudyInstanceUID: "st", SeriesInstanceUID: "seg", SeriesNumber: 3, Modality: "SEG", SOPInstanceUID: "3.1", FrameOfReferenceUID: "for1"})
	idx.Add(dicomdb.Instance{PatientID: "P", StudyInstanceUID: "st", SeriesInstanceUID: "sr", SeriesNumber: 4, Modality: "SR", SOPInstanceUID: "4.1", FrameOfReferenceUID: "for1"})
	return idx
}

func TestSeriesReferencedBy_ReferencedSeries(t *testing.T) {
	ds := dicom.MustDataset(
		dicom.WithElement(tag.SOPClassUID, dicom.SegmentationStorageUID),
		dicom.WithSequence(tag.ReferencedSeriesSequence,
			dicom.MustDataset(dicom.WithElement(tag.SeriesInstanceUID, "ct")),
			dicom.MustDataset(dicom.WithElement(tag.SeriesInstanceUID, "other")),
		),
		dicom.WithSequence(tag.ReferencedImageSequence,
			dicom.MustDataset(dicom.WithElement(tag.ReferencedSOPInstanceUID, "9.9")),
		),
	)
	refs := SeriesReferencedBy(ds, testDB())
	assert.Equal(t, "ct", refs.ReferencedSeriesUID)
	assert.Equal(t, []string{"1.1", "1.2", "9.9"}, refs.ReferencedInstanceUIDs)
	assert.Equal(t, []string{"ct"}, refs.SeriesUIDs)
	assert.Empty(t, refs.Segmentations)
}

func TestSeriesReferencedBy_Evidence(t *testing.T) {
	sr := dicom.NewStructuredReport(dicom.EnhancedSRStorageUID)
	sr.Root = dicom.Container("", module.NewCode("126000", "DCM", "Imaging Measurement Report"))
	sr.Evidence = []dicom.EvidenceReference{
		{StudyInstanceUID: "st", SeriesInstanceUID: "seg", SOPClassUID: dicom.SegmentationStorageUID, SOPInstanceUID: "3.1"},
		{StudyInstanceUID: "st", SeriesInstanceUID: "seg", SOPClassUID: dicom.SegmentationStorageUID, SOPInstanceUID: "3.1"},
		{StudyInstanceUID: "st", SeriesInstanceUID: "rw", SOPClassUID: dicom.RealWorldValueMappingUID, SOPInstanceUID: "5.1"},
		{StudyInstanceUID: "st", SeriesInstanceUID: "ct", SOPClassUID: dicom.CTImageStorageUID, SOPInstanceUID: "1.1"},
	}
	ds, err := sr.GetDataset()
	require.NoError(t, err)

	refs := SeriesReferencedBy(ds, testDB())
	assert.Equal(t, []string{"3.1"}, refs.Segmentations)
	assert.Equal(t, []string{"5.1"}, refs.RWVMs)
	assert.Equal(t, []string{"1.1"}, refs.Others)
	assert.Equal(t, []string{"seg", "rw", "ct"}, refs.SeriesUIDs)
	assert.Empty(t, refs.ReferencedSeriesUID)
}

func TestFrameOfReferenceUID(t *testing.T) {
	assert.Equal(t, Unnamed, FrameOfReferenceUID(dicom.MustDataset()))
	ds := dicom.MustDataset(dicom.WithElement(tag.FrameOfReferenceUID, "1.2.3"))
	assert.Equal(t, "1.2.3", FrameOfReferenceUID(ds))
}

func TestSeriesByFrameOfReference(t *testing.T) {
	db := testDB()
	got, err := SeriesByFrameOfReference(db, "st", []string{"for1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ct"}, got)

	got, err = SeriesByFrameOfReference(db, "st", []string{"for1", "for2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mr", "ct"}, got)

	_, err = SeriesByFrameOfReference(db, "st", []string{"nope"})
	assert.ErrorIs(t, err, errs.ErrReferencedSeriesNotInDatabase)
}
