package dicom_test

import (
	"path/filepath"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeries(t *testing.T, dir string, codec dicom.Codec, zs ...float64) []string {
	t.Helper()
	study, series, fo := dicom.NewUID(), dicom.NewUID(), dicom.NewUID()
	var paths []string
	for i, z := range zs {
		ct := dicom.NewCTImage()
		ct.Study.StudyInstanceUID = study
		ct.Series.SeriesInstanceUID = series
		ct.Series.SeriesNumber = 3
		ct.FrameOfReference.FrameOfReferenceUID = fo
		ct.ImagePlane.ImagePositionPatient = [3]float64{-10, -20, z}
		ct.ImagePlane.PixelSpacing = [2]float64{0.5, 0.75}
		ct.ImagePlane.SliceThickness = 2
		ct.Codec = codec
		hu := make([]float32, 4*3)
		for j := range hu {
			hu[j] = float32(-1000 + 100*i + j)
		}
		ct.SetHU(4, 3, hu)
		p := filepath.Join(dir, filepath.Base(ct.SOPCommon.SOPInstanceUID)+".dcm")
		_, err := ct.Write(p)
		require.NoError(t, err)
		paths = append(paths, p)
	}
	return paths
}

func TestCTImage_Write(t *testing.T) {
	ct := dicom.NewCTImage()
	ct.Patient.PatientName = module.PersonName{GivenName: "Test", FamilyName: "Person"}
	ct.Patient.PatientID = "P1"
	ct.Series.SeriesDescription = "Test Series"
	ct.SetHU(2, 2, []float32{-1000, 0, 40, 1000})

	path := filepath.Join(t.TempDir(), "ct.dcm")
	_, err := ct.Write(path)
	require.NoError(t, err)

	ds, err := dicom.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CT", dicom.GetModality(ds))
	assert.Equal(t, dicom.CTImageStorageUID, ds.Text(tag.SOPClassUID))
	assert.Equal(t, ct.SOPCommon.SOPInstanceUID, ds.Text(tag.MediaStorageSOPInstanceUID))
	assert.Equal(t, "P1", ds.Text(tag.PatientID))
	assert.Equal(t, 2, dicom.GetRows(ds))
	assert.True(t, dicom.ValidateCT(ds).IsValid())
}

func TestCTImage_MRSwitchesSOPClass(t *testing.T) {
	ct := dicom.NewCTImage()
	ct.Series.Modality = "MR"
	ds, err := ct.GetDataset()
	require.NoError(t, err)
	assert.Equal(t, dicom.MRImageStorageUID, ds.Text(tag.SOPClassUID))
}

func TestLoadSeries_SortsAndRescales(t *testing.T) {
	dir := t.TempDir()
	// written out of order on purpose
	paths := writeSeries(t, dir, nil, 4, 0, 2)

	vol, err := dicom.LoadSeriesFiles(paths)
	require.NoError(t, err)
	assert.Equal(t, 3, vol.Width)
	assert.Equal(t, 4, vol.Height)
	assert.Equal(t, 3, vol.Depth)
	assert.InDelta(t, 0.75, vol.Spacing[0], 1e-9)
	assert.InDelta(t, 0.5, vol.Spacing[1], 1e-9)
	assert.InDelta(t, 2.0, vol.Spacing[2], 1e-9)
	assert.Equal(t, [3]float64{-10, -20, 0}, vol.Origin)
	assert.Equal(t, 3, vol.SeriesNumber)
	require.Len(t, vol.InstanceUIDs, 3)

	// slice z=0 was the second file written (i=1)
	assert.InDelta(t, -900, vol.Get(0, 0, 0), 1e-3)
	assert.InDelta(t, -1000+11, vol.Get(2, 3, 2), 1e-3)
	assert.Equal(t, paths[1], vol.Files[0])
}

func TestLoadSeries_RLE(t *testing.T) {
	dir := t.TempDir()
	paths := writeSeries(t, dir, dicom.CodecRLE, 0, 1)

	ds, err := dicom.ReadFile(paths[0])
	require.NoError(t, err)
	assert.True(t, dicom.IsEncapsulated(ds))

	vol, err := dicom.LoadSeriesFiles(paths)
	require.NoError(t, err)
	assert.InDelta(t, -1000, vol.Get(0, 0, 0), 1e-3)
	assert.InDelta(t, -900+5, vol.Get(2, 1, 1), 1e-3)
}

func TestStoredValue(t *testing.T) {
	assert.Equal(t, 4095.0, dicom.StoredValue(0x0FFF, 12, false))
	assert.Equal(t, -1.0, dicom.StoredValue(0x0FFF, 12, true))
	assert.Equal(t, -1024.0, dicom.StoredValue(0xFC00, 16, true))
}

func TestPixelToPatient(t *testing.T) {
	ds := dicom.MustDataset(
		dicom.WithElement(tag.ImagePositionPatient, "-200\\-200\\75.3"),
		dicom.WithElement(tag.ImageOrientationPatient, "1\\0\\0\\0\\1\\0"),
		dicom.WithElement(tag.PixelSpacing, "0.7\\0.7"),
	)
	p := dicom.PixelToPatient(ds, 150, 150)
	assert.InDelta(t, -95.0, p[0], 1e-9)
	assert.InDelta(t, -95.0, p[1], 1e-9)
	assert.InDelta(t, 75.3, p[2], 1e-9)
}
