package pmap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/phantom"
	"github.com/jpfielding/qreport.go/pkg/qrtest"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMap writes a 3x2x2 float map derived from the fixture series
func writeMap(t *testing.T, f *qrtest.Fixture) string {
	src, err := dicom.ReadFile(f.Series.Files[0], dicom.SkipPixelData())
	require.NoError(t, err)
	sop := dicom.NewUID()
	pos := func(z float64) *dicom.Dataset {
		return dicom.MustDataset(dicom.WithSequence(tag.PlanePositionSequence, dicom.MustDataset(
			dicom.WithElement(tag.ImagePositionPatient, []float64{-1, -2, z}),
		)))
	}
	ds := dicom.MustDataset(
		dicom.WithFileMeta(dicom.ParametricMapStorageUID, sop, string(dicom.ExplicitVRLittleEndian)),
		dicom.WithCopied(src, dicom.PatientStudyTags...),
		dicom.WithElement(tag.SOPClassUID, dicom.ParametricMapStorageUID),
		dicom.WithElement(tag.SOPInstanceUID, sop),
		dicom.WithElement(tag.SeriesInstanceUID, dicom.NewUID()),
		dicom.WithElement(tag.SeriesDescription, "ADC"),
		dicom.WithElement(tag.Modality, "MR"),
		dicom.WithSequence(tag.ReferencedSeriesSequence, dicom.MustDataset(
			dicom.WithElement(tag.SeriesInstanceUID, f.Series.SeriesInstanceUID),
		)),
		dicom.WithModule(module.NewImagePixelModule(2, 3, 32, false).ToTags()),
		dicom.WithElement(tag.NumberOfFrames, "2"),
		dicom.WithSequence(tag.SharedFunctionalGroupsSequence, dicom.MustDataset(
			dicom.WithSequence(tag.PixelMeasuresSequence, dicom.MustDataset(
				dicom.WithElement(tag.PixelSpacing, []float64{0.5, 0.25}),
				dicom.WithElement(tag.SliceThickness, []float64{3}),
			)),
			dicom.WithSequence(tag.PlaneOrientationSequence, dicom.MustDataset(
				dicom.WithElement(tag.ImageOrientationPatient, []float64{1, 0, 0, 0, 1, 0}),
			)),
		)),
		dicom.WithSequence(tag.PerFrameFunctionalGroupsSequence, pos(0), pos(3)),
		dicom.WithFloatPixelData([]float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}),
	)
	path := filepath.Join(f.Dir, "pmap.dcm")
	_, err = dicom.WriteFile(path, ds)
	require.NoError(t, err)
	return path
}

func TestExamineAndLoad(t *testing.T) {
	f := qrtest.New(t, phantom.DefaultOptions())
	path := writeMap(t, f)
	p := New(f.Env)

	loadables, err := p.Examine(context.Background(), [][]string{append([]string{path}, f.Series.Files...)})
	require.NoError(t, err)
	require.Len(t, loadables, 1)
	l := loadables[0]
	assert.Equal(t, "ADC", l.Name)
	assert.Equal(t, f.Series.SeriesInstanceUID, l.ReferencedSeriesUID)
	assert.Len(t, l.ReferencedInstanceUIDs, len(f.Series.Files))

	vol, err := p.LoadVolume(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 2, 2}, vol.Grid.Dims)
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, vol.Data)
	spacing := vol.Grid.Spacing()
	assert.InDeltaSlice(t, []float64{0.25, 0.5, 3}, spacing[:], 1e-6)
	assert.Equal(t, "MR", vol.Modality)
	assert.Same(t, f.Volume, vol.Parent)
	assert.True(t, f.Env.Scene.Contains(vol))

	entries, err := os.ReadDir(f.Env.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoad_NoSourceVolume(t *testing.T) {
	f := qrtest.New(t, phantom.DefaultOptions())
	path := writeMap(t, f)
	f.Env.Scene.Remove(f.Volume)

	p := New(f.Env)
	loadables, err := p.Examine(context.Background(), [][]string{{path}})
	require.NoError(t, err)
	require.Len(t, loadables, 1)
	require.NoError(t, p.Load(context.Background(), loadables[0]))
	vols := scene.NodesOf[*scene.ScalarVolume](f.Env.Scene)
	require.Len(t, vols, 1)
	assert.Nil(t, vols[0].Parent)
}
