package m3d

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/phantom"
	"github.com/jpfielding/qreport.go/pkg/qrtest"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/stl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModel(t *testing.T, f *qrtest.Fixture, payload []byte) string {
	src, err := dicom.ReadFile(f.Series.Files[0], dicom.SkipPixelData())
	require.NoError(t, err)
	ds, err := Dataset(src, payload, "Printed model")
	require.NoError(t, err)
	path := filepath.Join(f.Dir, "model.dcm")
	_, err = dicom.WriteFile(path, ds)
	require.NoError(t, err)
	return path
}

func TestWriteSTL_TrimsPadByte(t *testing.T) {
	f := qrtest.New(t, phantom.DefaultOptions())
	payload := bytes.Repeat([]byte{'s'}, 12345)
	path := writeModel(t, f, payload)

	ds, err := dicom.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, ds.Bytes(tag.EncapsulatedDocument), 12346)
	n, ok := ds.Int(tag.EncapsulatedDocumentLength)
	require.True(t, ok)
	require.Equal(t, 12345, n)

	out, err := WriteSTL(ds, t.TempDir())
	require.NoError(t, err)
	st, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), st.Size())
	assert.Equal(t, STLFileName, filepath.Base(out))
}

func TestPayload_EvenLength(t *testing.T) {
	ds := dicom.MustDataset(
		dicom.WithElement(tag.EncapsulatedDocument, []byte{1, 2, 3, 4}),
		dicom.WithElement(tag.EncapsulatedDocumentLength, uint32(4)),
	)
	doc, err := Payload(ds)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, doc)

	_, err = Payload(dicom.MustDataset())
	assert.Error(t, err)
}

func TestPayload_CutToDeclaredLength(t *testing.T) {
	stored := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	for _, n := range []int{12, 11, 10, 9, 0} {
		ds := dicom.MustDataset(
			dicom.WithElement(tag.EncapsulatedDocument, stored),
			dicom.WithElement(tag.EncapsulatedDocumentLength, uint32(n)),
		)
		doc, err := Payload(ds)
		require.NoError(t, err)
		assert.Equal(t, stored[:n], doc, "declared %d", n)
	}

	ds := dicom.MustDataset(
		dicom.WithElement(tag.EncapsulatedDocument, stored),
		dicom.WithElement(tag.EncapsulatedDocumentLength, uint32(13)),
	)
	_, err := Payload(ds)
	assert.Error(t, err)
}

func TestExamineAndLoad(t *testing.T) {
	f := qrtest.New(t, phantom.DefaultOptions())
	g := geom.NewGrid([3]int{6, 6, 6}, geom.Vec3{}, [3]float64{1, 1, 1}, geom.IdentityDirs)
	mesh, err := stl.SurfaceFromMask(qrtest.Box(g, [3]int{1, 1, 1}, [3]int{4, 4, 4}), g)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, stl.WriteASCII(&buf, mesh))
	if buf.Len()%2 == 0 {
		buf.WriteByte('\n')
	}
	path := writeModel(t, f, buf.Bytes())

	p := New(f.Env)
	loadables, err := p.Examine(context.Background(), [][]string{append([]string{path}, f.Series.Files...)})
	require.NoError(t, err)
	require.Len(t, loadables, 1)
	assert.Equal(t, "Printed model", loadables[0].Name)

	s, err := p.LoadSegmentation(context.Background(), loadables[0])
	require.NoError(t, err)
	assert.Equal(t, scene.ClosedSurface, s.Master)
	assert.True(t, s.HasRepresentation(scene.BinaryLabelmap))
	require.Equal(t, 1, s.Len())
	seg := s.Segments()[0]
	assert.Equal(t, SegmentName, seg.Name)
	assert.Len(t, seg.Surface.Triangles, len(mesh.Triangles))
	assert.Positive(t, seg.VoxelCount())
	assert.Equal(t, "M3D", s.Attribute(scene.AttrModality))
	assert.True(t, f.Env.Scene.Contains(s))
	assert.Empty(t, scene.NodesOf[*scene.Model](f.Env.Scene))
}

func TestExamine_SkipsOthers(t *testing.T) {
	f := qrtest.New(t, phantom.DefaultOptions())
	loadables, err := New(f.Env).Examine(context.Background(), [][]string{f.Series.Files})
	require.NoError(t, err)
	assert.Empty(t, loadables)
}
