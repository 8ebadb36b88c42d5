package sr

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicomdb"
	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/phantom"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/qrtest"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// planarFixture is a CT series whose first slice sits at z = 75.3 with
// 0.7 mm pixels
func planarFixture(t *testing.T) (*qrtest.Fixture, map[float64]string) {
	o := phantom.DefaultOptions()
	o.PixelSpacing = [2]float64{0.7, 0.7}
	o.Origin = geom.Vec3{-200, -200, 75.3}
	o.Slices = 3
	o.Spheres = nil
	f := qrtest.New(t, o)
	byZ := map[float64]string{}
	for _, uid := range f.Series.SOPInstanceUIDs {
		inst, ok := f.Index.Instance(uid)
		require.True(t, ok)
		byZ[math.Round(inst.ImagePositionPatient[2]*10)/10] = uid
	}
	require.Contains(t, byZ, 75.3)
	require.Contains(t, byZ, 77.3)
	return f, byZ
}

func writePlanar(t *testing.T, f *qrtest.Fixture, anns ...Annotation) *plugin.Loadable {
	path := filepath.Join(f.Dir, "planar.dcm")
	r := &PlanarReport{SeriesNumber: 7, Annotations: anns}
	_, err := r.Write(context.Background(), f.Index, path)
	require.NoError(t, err)
	f.IndexFiles(t, path)

	loadables, err := New(f.Env).Examine(context.Background(), [][]string{{path}})
	require.NoError(t, err)
	require.Len(t, loadables, 1)
	require.True(t, loadables[0].Planar)
	return loadables[0]
}

var corners = [][2]float64{{100, 120}, {200, 120}, {200, 180}, {100, 180}}

func TestLoadPlanar_BoundingBox(t *testing.T) {
	f, byZ := planarFixture(t)
	l := writePlanar(t, f, Annotation{
		Kind:                     BoundingBox,
		TrackingIdentifier:       "Nodule",
		FindingType:              qrtest.Neoplasm,
		Pixels:                   corners,
		ReferencedSOPInstanceUID: byZ[75.3],
	})

	got, err := New(f.Env).LoadPlanar(context.Background(), l)
	require.NoError(t, err)
	assert.Empty(t, got.Warnings)
	require.Len(t, got.Annotations, 1)
	assert.Equal(t, BoundingBox, got.Annotations[0].Kind)

	boxes := got.Markups[BoundingBox]
	require.Len(t, boxes, 1)
	box := boxes[0]
	assert.Equal(t, scene.MarkupROI, box.Kind)
	assert.Equal(t, "Nodule", box.Name)
	for a, want := range [3]float64{95, 95, 75.3} {
		assert.InDelta(t, want, box.Center[a], 1e-4)
	}
	for a, want := range [3]float64{70, 42, BoxThickness} {
		assert.InDelta(t, want, box.Size[a], 1e-4)
	}
	assert.Same(t, got.Folders[BoundingBox], box.Parent)

	table := got.Tables[BoundingBox]
	require.Equal(t, 1, table.Rows())
	assert.Equal(t, "Nodule", table.Cell(0, TrackingIdentifierColumn))
	assert.Equal(t, "Neoplasm", table.Cell(0, "FindingType"))
	assert.Equal(t, "(150,150)", table.Cell(0, "Center"))
	width, err := strconv.ParseFloat(table.Cell(0, "Width"), 64)
	require.NoError(t, err)
	assert.InDelta(t, 70, width, 1e-4)
	assert.True(t, table.ReadOnly)
}

func TestLoadPlanar_BoxesSortedBySlice(t *testing.T) {
	f, byZ := planarFixture(t)
	l := writePlanar(t, f,
		Annotation{Kind: BoundingBox, TrackingIdentifier: "upper", Pixels: corners, ReferencedSOPInstanceUID: byZ[77.3]},
		Annotation{Kind: BoundingBox, TrackingIdentifier: "lower", Pixels: corners, ReferencedSOPInstanceUID: byZ[75.3]},
	)
	got, err := New(f.Env).LoadPlanar(context.Background(), l)
	require.NoError(t, err)
	table := got.Tables[BoundingBox]
	require.Equal(t, 2, table.Rows())
	assert.Equal(t, "lower", table.Cell(0, TrackingIdentifierColumn))
	assert.Equal(t, "upper", table.Cell(1, TrackingIdentifierColumn))
	assert.Equal(t, "lower", got.Markups[BoundingBox][0].Name)
}

func TestLoadPlanar_PolylineCoordinates(t *testing.T) {
	f, byZ := planarFixture(t)
	pixels := [][2]float64{{10.5, 20.25}, {30, 40}, {55.75, 12}}
	l := writePlanar(t, f, Annotation{
		Kind:                     Polyline,
		TrackingIdentifier:       "Outline",
		Pixels:                   pixels,
		ReferencedSOPInstanceUID: byZ[77.3],
	})
	got, err := New(f.Env).LoadPlanar(context.Background(), l)
	require.NoError(t, err)
	lines := got.Markups[Polyline]
	require.Len(t, lines, 1)
	require.Len(t, lines[0].Points, len(pixels))
	for i, p := range pixels {
		want := geom.Vec3{-(p[0]*0.7 - 200), -(p[1]*0.7 - 200), 77.3}
		for a := 0; a < 3; a++ {
			assert.InDelta(t, want[a], lines[0].Points[i].Position[a], 1e-4)
		}
	}
	assert.Empty(t, got.Markups[BoundingBox])
}

func TestLoadPlanar_Point3D(t *testing.T) {
	f, byZ := planarFixture(t)
	l := writePlanar(t, f,
		Annotation{Kind: BoundingBox, TrackingIdentifier: "box", Pixels: corners, ReferencedSOPInstanceUID: byZ[75.3]},
		Annotation{Kind: Point3D, TrackingIdentifier: "Center", Point: geom.Vec3{10, 20, 30}, FrameOfReferenceUID: f.Series.FrameOfReferenceUID},
	)
	got, err := New(f.Env).LoadPlanar(context.Background(), l)
	require.NoError(t, err)
	points := got.Markups[Point3D]
	require.Len(t, points, 1)
	require.Len(t, points[0].Points, 1)
	assert.Equal(t, geom.Vec3{-10, -20, 30}, points[0].Points[0].Position)
	assert.Equal(t, f.Series.SeriesInstanceUID, points[0].Attribute(scene.AttrSeriesInstanceUID))
	assert.Equal(t, f.Series.SeriesInstanceUID, got.Tables[Point3D].Cell(0, "Referenced Series"))
}

func TestLoadPlanar_SeriesNotInDatabase(t *testing.T) {
	f, byZ := planarFixture(t)
	l := writePlanar(t, f,
		Annotation{Kind: BoundingBox, TrackingIdentifier: "box", Pixels: corners, ReferencedSOPInstanceUID: byZ[75.3]},
		Annotation{Kind: Polyline, TrackingIdentifier: "line", Pixels: corners[:2], ReferencedSOPInstanceUID: byZ[77.3]},
		Annotation{Kind: Point3D, TrackingIdentifier: "point", Point: geom.Vec3{1, 2, 3}, FrameOfReferenceUID: f.Series.FrameOfReferenceUID},
	)

	// a database holding only the report
	idx := dicomdb.NewIndex()
	_, err := dicomdb.NewIndexer(idx, dicomdb.NativeParser{}).IndexFiles(context.Background(), l.Files)
	require.NoError(t, err)
	env := *f.Env
	env.DB = idx
	env.Scene = scene.New()

	got, err := New(&env).LoadPlanar(context.Background(), l)
	require.NoError(t, err)
	require.Len(t, got.Warnings, 3)
	for _, w := range got.Warnings {
		assert.True(t, errors.Is(w, errs.ErrReferencedSeriesNotInDatabase), w.Error())
	}
	for _, kind := range Kinds {
		assert.Empty(t, got.Markups[kind])
		require.NotNil(t, got.Tables[kind])
		assert.Equal(t, 1, got.Tables[kind].Rows())
	}
	assert.NoError(t, New(&env).Load(context.Background(), l))
}

func TestBoxGeometry(t *testing.T) {
	b := BoxGeometry(append(corners, corners[0]), geom.Vec3{-200, -200, 75.3}, [2]float64{0.7, 0.7})
	assert.Len(t, b.Corners, 4)
	assert.InDelta(t, 70, b.Width, 1e-9)
	assert.InDelta(t, 42, b.Height, 1e-9)
	assert.Equal(t, [2]float64{150, 150}, b.CenterPixel)
	assert.InDelta(t, 95, b.Center[0], 1e-9)
	assert.InDelta(t, 95, b.Center[1], 1e-9)
	assert.InDelta(t, 75.3, b.CenterZ, 1e-9)
}
