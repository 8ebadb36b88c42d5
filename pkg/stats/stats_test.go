package stats

import (
	"testing"

	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, modality string) (*scene.Segmentation, *scene.ScalarVolume) {
	g := geom.NewGrid([3]int{4, 4, 2}, geom.Vec3{}, [3]float64{1, 1, 2}, geom.IdentityDirs)
	vol := &scene.ScalarVolume{Base: scene.Base{Name: "ct"}, Grid: g, Data: make([]float32, g.Len()), Modality: modality}
	for i := range vol.Data {
		vol.Data[i] = float32(i)
	}
	seg := scene.NewSegmentation("seg", g, scene.BinaryLabelmap)

	tumor := scene.NewSegment("Tumor", [3]float64{1, 0, 0})
	tumor.Mask = make([]uint8, g.Len())
	for _, i := range []int{0, 1, 2, 3} {
		tumor.Mask[i] = 1
	}
	_, err := seg.AddSegment(tumor)
	require.NoError(t, err)

	empty := scene.NewSegment("Empty", [3]float64{0, 1, 0})
	empty.Mask = make([]uint8, g.Len())
	_, err = seg.AddSegment(empty)
	require.NoError(t, err)
	return seg, vol
}

func TestCompute_CT(t *testing.T) {
	seg, vol := fixture(t, "CT")
	res, err := Compute(seg, vol, false)
	require.NoError(t, err)
	require.Len(t, res.Segments, 2)

	tumor := res.Segments[0]
	count, _ := tumor.Get(VoxelCount)
	assert.Equal(t, 4.0, count.Value)
	assert.False(t, count.Coded())

	mm3, _ := tumor.Get(VolumeMM3)
	assert.InDelta(t, 8.0, mm3.Value, 1e-9)
	cm3, _ := tumor.Get(VolumeCM3)
	assert.InDelta(t, 0.008, cm3.Value, 1e-12)
	assert.Equal(t, "cm3", cm3.Units.Value)
	assert.Equal(t, "G-D705", cm3.Quantity.Value)

	minimum, _ := tumor.Get(Min)
	maximum, _ := tumor.Get(Max)
	mean, _ := tumor.Get(Mean)
	std, _ := tumor.Get(StdDev)
	assert.Equal(t, 0.0, minimum.Value)
	assert.Equal(t, 3.0, maximum.Value)
	assert.InDelta(t, 1.5, mean.Value, 1e-9)
	assert.InDelta(t, 1.118034, std.Value, 1e-6)
	for _, m := range []Measurement{minimum, maximum, mean, std} {
		assert.Equal(t, "[hnsf'U]", m.Units.Value)
		assert.Equal(t, "122713", m.Quantity.Value)
	}
	assert.Equal(t, "R-404FB", minimum.Derivation.Value)
	assert.Equal(t, "G-A437", maximum.Derivation.Value)
	assert.Equal(t, "R-00317", mean.Derivation.Value)
	assert.Equal(t, "R-10047", std.Derivation.Value)
}

func TestCompute_VoxelCountMatchesEmptiness(t *testing.T) {
	seg, vol := fixture(t, "MR")
	res, err := Compute(seg, vol, false)
	require.NoError(t, err)
	for _, s := range res.Segments {
		assert.Equal(t, seg.Segment(s.SegmentID).VoxelCount() == 0, s.Empty(), s.Name)
	}
	nonEmpty := res.NonEmpty()
	require.Len(t, nonEmpty, 1)
	assert.Equal(t, "Tumor", nonEmpty[0].Name)

	mean, ok := nonEmpty[0].Get(Mean)
	require.True(t, ok)
	assert.Equal(t, "110852", mean.Quantity.Value)
	assert.Equal(t, "1", mean.Units.Value)
	_, ok = res.Segments[1].Get(Mean)
	assert.False(t, ok)
}

func TestCompute_VisibleOnlyAndNoVolume(t *testing.T) {
	seg, vol := fixture(t, "CT")
	seg.Segments()[1].Visible = false
	res, err := Compute(seg, vol, true)
	require.NoError(t, err)
	require.Len(t, res.Segments, 1)

	res, err = Compute(seg, nil, false)
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
}

func TestCompute_ResamplesOntoVolumeGrid(t *testing.T) {
	seg, _ := fixture(t, "CT")
	fine := geom.NewGrid([3]int{8, 8, 4}, geom.Vec3{-0.25, -0.25, -0.5}, [3]float64{0.5, 0.5, 1}, geom.IdentityDirs)
	vol := &scene.ScalarVolume{Grid: fine, Data: make([]float32, fine.Len()), Modality: "CT"}
	res, err := Compute(seg, vol, false)
	require.NoError(t, err)
	count, _ := res.Segments[0].Get(VoxelCount)
	assert.Equal(t, 32.0, count.Value)
	mm3, _ := res.Segments[0].Get(VolumeMM3)
	assert.InDelta(t, 8.0, mm3.Value, 1e-9)
}

func TestResult_Table(t *testing.T) {
	seg, vol := fixture(t, "CT")
	res, err := Compute(seg, vol, false)
	require.NoError(t, err)
	tbl := res.Table("stats")
	assert.True(t, tbl.ReadOnly)
	assert.Equal(t, 2, tbl.Rows())
	assert.Equal(t, []string{"Segment", "Voxel count", "Volume mm3", "Volume cm3", "Minimum", "Maximum", "Mean", "Standard deviation"}, tbl.ColumnNames())
	assert.Equal(t, "4", tbl.Column("Voxel count").Values[0])
	assert.Equal(t, "0", tbl.Column("Voxel count").Values[1])
	assert.Equal(t, "", tbl.Column("Mean").Values[1])
	assert.Equal(t, "HU", tbl.Column("Mean").Unit)
}
