package scene

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid() geom.Grid {
	return geom.NewGrid([3]int{4, 4, 2}, geom.Vec3{}, [3]float64{1, 1, 2}, geom.IdentityDirs)
}

func TestScene_HierarchyAndRemove(t *testing.T) {
	s := New()
	study := &Folder{Base: Base{Name: "study"}}
	s.Add(study)
	vol := &ScalarVolume{Base: Base{Name: "ct"}}
	s.AddChild(study, vol)
	seg := NewSegmentation("seg", testGrid(), BinaryLabelmap)
	s.AddChild(vol, seg)
	other := NewTable("t")
	s.Add(other)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []Node{study, other}, s.Children(nil))
	assert.Equal(t, []*Segmentation{seg}, NodesOf[*Segmentation](s))
	assert.Same(t, vol, s.Get(vol.ID))

	s.Remove(study)
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Contains(seg))
	assert.True(t, s.Contains(other))
}

func TestVolumeFromDICOM(t *testing.T) {
	v := dicom.NewVolume(3, 2, 2)
	v.Origin = [3]float64{10, 20, 30}
	v.Spacing = [3]float64{0.5, 0.5, 2}
	v.InstanceUIDs = []string{"1.2.1", "1.2.2"}
	v.SeriesInstanceUID = "1.2"
	v.Modality = "CT"

	sv := VolumeFromDICOM("ct", v)
	assert.Equal(t, []string{"1.2.1", "1.2.2"}, sv.InstanceUIDs())
	assert.Equal(t, "1.2", sv.Attribute(AttrSeriesInstanceUID))
	origin := sv.Grid.Origin()
	assert.InDeltaSlice(t, []float64{-10, -20, 30}, origin[:], 1e-9)
	assert.InDelta(t, 0.5, sv.Grid.VoxelVolume(), 1e-9)
}

func TestSegmentation_Events(t *testing.T) {
	seg := NewSegmentation("seg", testGrid(), BinaryLabelmap)
	var got []Event
	unsubscribe := seg.Subscribe(func(e Event) { got = append(got, e) })

	id, err := seg.AddSegment(NewSegment("Tumor", [3]float64{1, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, "Segment_1", id)
	mask := make([]uint8, testGrid().Len())
	mask[3] = 1
	require.NoError(t, seg.SetMask(id, mask, "Paint"))
	require.NoError(t, seg.SetTag(id, TagTrackingUID, "1.2.3"))
	require.NoError(t, seg.RemoveSegment(id))

	require.Len(t, got, 4)
	assert.Equal(t, SegmentAdded, got[0].Kind)
	assert.Equal(t, Event{Kind: MasterRepresentationModified, SegmentID: id, Tool: "Paint"}, got[1])
	assert.Equal(t, SegmentModified, got[2].Kind)
	assert.Equal(t, SegmentRemoved, got[3].Kind)
	assert.Equal(t, "SegmentRemoved", got[3].Kind.String())

	unsubscribe()
	_, err = seg.AddSegment(NewSegment("Air", [3]float64{0, 0, 1}))
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestSegmentation_Errors(t *testing.T) {
	seg := NewSegmentation("seg", testGrid(), BinaryLabelmap)
	s := NewSegment("bad", [3]float64{})
	s.Mask = []uint8{1}
	_, err := seg.AddSegment(s)
	assert.Error(t, err)
	assert.Error(t, seg.SetMask("missing", nil, "Paint"))
	assert.Error(t, seg.SetTag("missing", "k", "v"))
	assert.Error(t, seg.RemoveSegment("missing"))

	a := NewSegment("a", [3]float64{})
	a.ID = "x"
	_, err = seg.AddSegment(a)
	require.NoError(t, err)
	b := NewSegment("b", [3]float64{})
	b.ID = "x"
	_, err = seg.AddSegment(b)
	assert.Error(t, err)
}

func TestSegmentation_ImportLabelMapResamples(t *testing.T) {
	seg := NewSegmentation("seg", testGrid(), BinaryLabelmap)
	fine := geom.NewGrid([3]int{8, 8, 4}, geom.Vec3{-0.25, -0.25, -0.5}, [3]float64{0.5, 0.5, 1}, geom.IdentityDirs)
	lm := &LabelMap{Grid: fine, Data: make([]uint8, fine.Len())}
	for k := 0; k < 4; k++ {
		for j := 0; j < 8; j++ {
			for i := 0; i < 8; i++ {
				if i >= 4 {
					lm.Data[fine.Index(i, j, k)] = 1
				}
			}
		}
	}
	id, err := seg.ImportLabelMap(lm, NewSegment("right", [3]float64{}))
	require.NoError(t, err)
	s := seg.Segment(id)
	assert.Equal(t, 16, s.VoxelCount())
	assert.Equal(t, uint8(1), s.Mask[testGrid().Index(3, 0, 0)])
	assert.Equal(t, uint8(0), s.Mask[testGrid().Index(1, 0, 0)])
}

func TestSegmentation_Representations(t *testing.T) {
	g := geom.NewGrid([3]int{6, 6, 6}, geom.Vec3{}, [3]float64{1, 1, 1}, geom.IdentityDirs)
	seg := NewSegmentation("seg", g, BinaryLabelmap)
	mask := make([]uint8, g.Len())
	for k := 2; k < 4; k++ {
		for j := 2; j < 4; j++ {
			for i := 1; i < 5; i++ {
				mask[g.Index(i, j, k)] = 1
			}
		}
	}
	s := NewSegment("box", [3]float64{})
	s.Mask = mask
	_, err := seg.AddSegment(s)
	require.NoError(t, err)

	require.NoError(t, seg.CreateRepresentation(ClosedSurface))
	assert.True(t, seg.HasRepresentation(ClosedSurface))
	require.NotNil(t, s.Surface)

	surf := NewSegmentation("surf", geom.Grid{}, ClosedSurface)
	surf.ReferenceGeometry = &g
	_, err = surf.ImportModel(&Model{Mesh: s.Surface}, NewSegment("Segment 1", [3]float64{}))
	require.NoError(t, err)
	require.NoError(t, surf.CreateRepresentation(BinaryLabelmap))
	assert.Equal(t, mask, surf.Segments()[0].Mask)
}

func TestSegmentation_SurfaceGridFromBounds(t *testing.T) {
	g := geom.NewGrid([3]int{5, 5, 5}, geom.Vec3{}, [3]float64{1, 1, 1}, geom.IdentityDirs)
	src := NewSegmentation("seg", g, BinaryLabelmap)
	s := NewSegment("cube", [3]float64{})
	s.Mask = make([]uint8, g.Len())
	s.Mask[g.Index(2, 2, 2)] = 1
	_, err := src.AddSegment(s)
	require.NoError(t, err)
	require.NoError(t, src.CreateRepresentation(ClosedSurface))

	surf := NewSegmentation("surf", geom.Grid{}, ClosedSurface)
	_, err = surf.ImportModel(&Model{Mesh: s.Surface}, NewSegment("Segment 1", [3]float64{}))
	require.NoError(t, err)
	require.NoError(t, surf.CreateRepresentation(BinaryLabelmap))
	assert.Equal(t, 1, surf.Segments()[0].VoxelCount())
}

func TestTable(t *testing.T) {
	tbl := NewTable("stats")
	tbl.AddColumn("Segment", "", "")
	require.NoError(t, tbl.AppendRow("Tumor"))
	tbl.AddColumn("Volume [cm3]", "cm3", "Volume")
	require.NoError(t, tbl.AppendRow("Air", "1.5"))
	assert.Error(t, tbl.AppendRow("a", "b", "c"))

	assert.Equal(t, 2, tbl.Rows())
	assert.Equal(t, "", tbl.Cell(0, "Volume [cm3]"))
	assert.Equal(t, "1.5", tbl.Cell(1, "Volume [cm3]"))

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))
	assert.Equal(t, "Segment,Volume [cm3]\nTumor,\nAir,1.5\n", buf.String())
}

func TestMarkups_JSON(t *testing.T) {
	m := NewMarkups(MarkupLine, "length")
	m.AddPoint("a", geom.Vec3{0, 0, 0})
	m.AddPoint("b", geom.Vec3{3, 4, 0})
	assert.InDelta(t, 5, m.Length(), 1e-9)

	var buf bytes.Buffer
	require.NoError(t, m.WriteJSON(&buf))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "Line", doc["type"])
	assert.Len(t, doc["controlPoints"], 2)
	assert.NotContains(t, doc, "size")
}
