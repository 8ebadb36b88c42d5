package dicomdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jpfielding/qreport.go/pkg/phantom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallPhantom(t *testing.T, dir string, seriesNumber int) *phantom.Series {
	t.Helper()
	o := phantom.DefaultOptions()
	o.Rows, o.Cols, o.Slices = 8, 8, 3
	o.SeriesNumber = seriesNumber
	s, err := phantom.Write(dir, o)
	require.NoError(t, err)
	return s
}

func TestFindFiles_ProbesDICM(t *testing.T) {
	root := t.TempDir()
	s := smallPhantom(t, filepath.Join(root, "ct"), 1)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))

	files, err := FindFiles(root)
	require.NoError(t, err)
	assert.Equal(t, s.Files, files)
}

func TestIndexer_BothParsers(t *testing.T) {
	root := t.TempDir()
	s := smallPhantom(t, root, 7)
	for _, name := range []string{"suyashkumar", "native"} {
		t.Run(name, func(t *testing.T) {
			p, err := ParserByName(name)
			require.NoError(t, err)
			idx := NewIndex()
			n, err := NewIndexer(idx, p).IndexDirectory(context.Background(), root)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			inst, ok := idx.Instance(s.SOPInstanceUIDs[1])
			require.True(t, ok)
			assert.Equal(t, s.Files[1], inst.Path)
			assert.Equal(t, "PHANTOM1", inst.PatientID)
			assert.Equal(t, "CT", inst.Modality)
			assert.Equal(t, 7, inst.SeriesNumber)
			assert.Equal(t, 2, inst.InstanceNumber)
			assert.Equal(t, s.FrameOfReferenceUID, inst.FrameOfReferenceUID)
			assert.InDeltaSlice(t, []float64{-16, -16, 2}, inst.ImagePositionPatient, 1e-6)
			assert.InDeltaSlice(t, []float64{1, 1}, inst.PixelSpacing, 1e-6)

			assert.Equal(t, s.Files, idx.FilesForSeries(s.SeriesInstanceUID))
			assert.Equal(t, []string{s.SeriesInstanceUID}, idx.SeriesForStudy(s.StudyInstanceUID))
			assert.Equal(t, []string{s.StudyInstanceUID}, idx.StudiesForPatient("PHANTOM1"))
			series, ok := idx.Series(s.SeriesInstanceUID)
			require.True(t, ok)
			assert.Equal(t, 3, series.Instances)
		})
	}
	_, err := ParserByName("dcmtk")
	assert.Error(t, err)
}

func TestIndex_Ordering(t *testing.T) {
	idx := NewIndex()
	idx.Add(Instance{Path: "b", PatientID: "P", StudyInstanceUID: "st2", StudyDate: "20240102", SeriesInstanceUID: "se3", SeriesNumber: 2, SOPInstanceUID: "3", InstanceNumber: 2})
	idx.Add(Instance{Path: "a", PatientID: "P", StudyInstanceUID: "st2", StudyDate: "20240102", SeriesInstanceUID: "se3", SeriesNumber: 2, SOPInstanceUID: "4", InstanceNumber: 1})
	idx.Add(Instance{Path: "c", PatientID: "P", StudyInstanceUID: "st2", StudyDate: "20240102", SeriesInstanceUID: "se1", SeriesNumber: 1, SOPInstanceUID: "5"})
	idx.Add(Instance{Path: "d", PatientID: "P", StudyInstanceUID: "st1", StudyDate: "20230101", SeriesInstanceUID: "se9", SOPInstanceUID: "6"})
	idx.Add(Instance{Path: "d2", PatientID: "P", StudyInstanceUID: "st1", StudyDate: "20230101", SeriesInstanceUID: "se9", SOPInstanceUID: "6"})

	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, "d2", idx.FileForInstance("6"))
	assert.Equal(t, []string{"a", "b"}, idx.FilesForSeries("se3"))
	assert.Equal(t, []string{"se1", "se3"}, idx.SeriesForStudy("st2"))
	assert.Equal(t, []string{"st1", "st2"}, idx.StudiesForPatient("P"))
	assert.Len(t, idx.AllSeries(), 3)
	assert.True(t, idx.HasInstances("3", "4"))
	assert.False(t, idx.HasInstances("3", "x"))
}

func TestWaitIndexed(t *testing.T) {
	root := t.TempDir()
	s := smallPhantom(t, root, 1)
	idx := NewIndex()
	ix := NewIndexer(idx, NativeParser{})

	err := WaitIndexed(context.Background(), idx, 2, time.Millisecond, s.SOPInstanceUIDs...)
	assert.Error(t, err)

	done := ix.IndexAsync(context.Background(), s.Files)
	require.NoError(t, WaitIndexed(context.Background(), idx, 200, 10*time.Millisecond, s.SOPInstanceUIDs...))
	require.NoError(t, <-done)
}
