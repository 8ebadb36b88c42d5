package provenance

import (
	"testing"

	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSegmentation(t *testing.T) (*scene.Segmentation, *Tracker) {
	t.Helper()
	g := geom.NewGrid([3]int{3, 3, 3}, geom.Vec3{}, [3]float64{1, 1, 1}, geom.IdentityDirs)
	seg := scene.NewSegmentation("seg", g, scene.BinaryLabelmap)
	tr := NewTracker("Slicer", "5.6", []string{"Threshold"})
	tr.Attach(seg)
	return seg, tr
}

func edit(t *testing.T, seg *scene.Segmentation, id, tool string) {
	t.Helper()
	mask := make([]uint8, seg.Grid.Len())
	mask[0] = 1
	require.NoError(t, seg.SetMask(id, mask, tool))
}

func tags(s *scene.Segment) (string, string, string) {
	a, _ := s.Tag(scene.TagAppliedTools)
	b, _ := s.Tag(scene.TagAlgorithmType)
	c, _ := s.Tag(scene.TagAlgorithmName)
	return a, b, c
}

func TestTracker_CreatedSegmentManual(t *testing.T) {
	seg, _ := newSegmentation(t)
	id, err := seg.AddSegment(scene.NewSegment("Tumor", [3]float64{1, 0, 0}))
	require.NoError(t, err)
	applied, typ, _ := tags(seg.Segment(id))
	assert.Equal(t, "Add", applied)
	assert.Empty(t, typ)

	edit(t, seg, id, "Paint")
	edit(t, seg, id, "Erase")
	edit(t, seg, id, "Paint")
	applied, typ, name := tags(seg.Segment(id))
	assert.Equal(t, "Add;Paint;Erase", applied)
	assert.Equal(t, Manual, typ)
	assert.Equal(t, "Slicer 5.6 Segment Editor", name)
}

func TestTracker_SingleToolName(t *testing.T) {
	seg, _ := newSegmentation(t)
	id, err := seg.AddSegment(scene.NewSegment("Tumor", [3]float64{}))
	require.NoError(t, err)
	edit(t, seg, id, "Paint")
	edit(t, seg, id, "Paint")
	_, typ, name := tags(seg.Segment(id))
	assert.Equal(t, Manual, typ)
	assert.Equal(t, "Slicer 5.6 Paint Effect", name)
}

func TestTracker_MixedCollapsesToSemiAutomatic(t *testing.T) {
	seg, _ := newSegmentation(t)
	id, err := seg.AddSegment(scene.NewSegment("Tumor", [3]float64{}))
	require.NoError(t, err)
	edit(t, seg, id, "Threshold")
	_, typ, _ := tags(seg.Segment(id))
	assert.Equal(t, Automatic, typ)

	edit(t, seg, id, "Threshold")
	_, typ, _ = tags(seg.Segment(id))
	assert.Equal(t, SemiAutomatic, typ)

	id2, err := seg.AddSegment(scene.NewSegment("Air", [3]float64{}))
	require.NoError(t, err)
	edit(t, seg, id2, "Draw")
	edit(t, seg, id2, "Islands")
	_, typ, _ = tags(seg.Segment(id2))
	assert.Equal(t, SemiAutomatic, typ)
}

func TestTracker_ImportedSegment(t *testing.T) {
	seg, _ := newSegmentation(t)
	s := scene.NewSegment("from SEG", [3]float64{})
	s.Mask = make([]uint8, seg.Grid.Len())
	s.Mask[4] = 1
	id, err := seg.AddSegment(s)
	require.NoError(t, err)
	applied, _, _ := tags(seg.Segment(id))
	assert.Empty(t, applied)

	edit(t, seg, id, "Paint")
	applied, typ, name := tags(seg.Segment(id))
	assert.Equal(t, "Paint", applied)
	assert.Equal(t, SemiAutomatic, typ)
	assert.Equal(t, "Slicer 5.6", name)
}

func TestTracker_Detach(t *testing.T) {
	seg, tr := newSegmentation(t)
	tr.Detach()
	id, err := seg.AddSegment(scene.NewSegment("Tumor", [3]float64{}))
	require.NoError(t, err)
	edit(t, seg, id, "Paint")
	applied, _, _ := tags(seg.Segment(id))
	assert.Empty(t, applied)
	assert.Error(t, tr.Apply(id, "Paint"))
}

// effective recomputes the type from a full history
func effective(tr *Tracker, history []string) string {
	imported := len(history) == 0 || history[0] != CreateTool
	typ := ""
	for _, tool := range history {
		if tool == CreateTool {
			continue
		}
		typ = MergeType(typ, imported && typ == "", tr.Classify(tool))
	}
	return typ
}

func TestMergeType_Monotone(t *testing.T) {
	tr := NewTracker("Slicer", "5.6", []string{"Threshold", "GrowCut"})
	tools := []string{"Paint", "Draw", "Erase", "Threshold", "GrowCut", "Islands"}
	var histories [][]string
	var gen func(prefix []string, depth int)
	gen = func(prefix []string, depth int) {
		if len(prefix) > 0 {
			histories = append(histories, append([]string(nil), prefix...))
		}
		if depth == 0 {
			return
		}
		for _, tool := range tools {
			gen(append(prefix, tool), depth-1)
		}
	}
	gen(nil, 3)

	for _, h := range histories {
		for _, created := range []bool{true, false} {
			history := h
			if created {
				history = append([]string{CreateTool}, h...)
			}
			typ := effective(tr, history)
			allManual, allAuto := true, true
			for _, tool := range h {
				allManual = allManual && tr.Classify(tool) == Manual
				allAuto = allAuto && tr.Classify(tool) == Automatic
			}
			if typ == Manual {
				assert.True(t, created && allManual, "%v", history)
			}
			if typ == Automatic {
				assert.True(t, created && allAuto && len(h) == 1, "%v", history)
			}
			if !created {
				assert.Equal(t, SemiAutomatic, typ, "%v", history)
			}
		}
	}
}

func TestHistoryHelpers(t *testing.T) {
	assert.Equal(t, []string{"Add", "Paint"}, Split(" Add ;;Paint"))
	assert.Equal(t, []string{"Add", "Paint"}, AppendTool([]string{"Add", "Paint"}, "Paint"))
	assert.True(t, ValidType("AUTOMATIC"))
	assert.False(t, ValidType("manual"))
}
