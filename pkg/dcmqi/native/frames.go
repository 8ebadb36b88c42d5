package native

import (
	"fmt"
	"math"
	"sort"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/geom"
)

// frameGeometry is the lattice spanned by the frames of a multi-frame image.
// Slice[f] is the k index of frame f.
type frameGeometry struct {
	Grid  geom.Grid
	Slice []int
}

// functional returns the first item of seq from the frame's own functional
// groups, falling back to the shared groups
func functional(shared, frame *dicom.Dataset, seq tag.Tag) *dicom.Dataset {
	if frame != nil {
		if item := frame.Item(seq); item != nil {
			return item
		}
	}
	if shared != nil {
		return shared.Item(seq)
	}
	return nil
}

func multiFrameGeometry(ds *dicom.Dataset) (frameGeometry, error) {
	rows, cols := dicom.GetRows(ds), dicom.GetColumns(ds)
	shared := ds.Item(tag.SharedFunctionalGroupsSequence)
	perFrame := ds.Items(tag.PerFrameFunctionalGroupsSequence)
	n := dicom.GetNumberOfFrames(ds)
	if len(perFrame) != n {
		return frameGeometry{}, fmt.Errorf("%d per-frame functional groups for %d frames", len(perFrame), n)
	}

	var first *dicom.Dataset
	if n > 0 {
		first = perFrame[0]
	}
	measures := functional(shared, first, tag.PixelMeasuresSequence)
	orientation := functional(shared, first, tag.PlaneOrientationSequence)
	if measures == nil || orientation == nil {
		return frameGeometry{}, fmt.Errorf("missing pixel measures or plane orientation")
	}
	ps := measures.Floats(tag.PixelSpacing)
	iop := orientation.Floats(tag.ImageOrientationPatient)
	if len(ps) < 2 || len(iop) < 6 {
		return frameGeometry{}, fmt.Errorf("malformed pixel spacing or orientation")
	}
	rowDir := geom.Vec3{iop[0], iop[1], iop[2]}
	colDir := geom.Vec3{iop[3], iop[4], iop[5]}
	normal := rowDir.Cross(colDir)

	positions := make([]geom.Vec3, n)
	dist := make([]float64, n)
	for f, item := range perFrame {
		pos := functional(shared, item, tag.PlanePositionSequence)
		if pos == nil {
			return frameGeometry{}, fmt.Errorf("frame %d has no plane position", f+1)
		}
		ipp := pos.Floats(tag.ImagePositionPatient)
		if len(ipp) < 3 {
			return frameGeometry{}, fmt.Errorf("frame %d has a malformed plane position", f+1)
		}
		positions[f] = geom.Vec3{ipp[0], ipp[1], ipp[2]}
		dist[f] = positions[f].Dot(normal)
	}

	step := sliceStep(measures, dist)
	lowest := 0
	for f := range dist {
		if dist[f] < dist[lowest] {
			lowest = f
		}
	}
	fg := frameGeometry{Slice: make([]int, n)}
	depth := 1
	for f := range dist {
		k := 0
		if n > 0 {
			k = int(math.Round((dist[f] - dist[lowest]) / step))
		}
		fg.Slice[f] = k
		depth = max(depth, k+1)
	}
	var origin geom.Vec3
	if n > 0 {
		origin = positions[lowest]
	}
	fg.Grid = geom.FromLPS([3]int{cols, rows, depth}, origin, [3]float64{ps[1], ps[0], step}, [3]geom.Vec3{rowDir, colDir, normal})
	return fg, nil
}

// sliceStep is SpacingBetweenSlices, else the smallest gap between frame
// planes, else SliceThickness
func sliceStep(measures *dicom.Dataset, dist []float64) float64 {
	if v := measures.Floats(tag.SpacingBetweenSlices); len(v) > 0 && v[0] > 0 {
		return v[0]
	}
	sorted := append([]float64(nil), dist...)
	sort.Float64s(sorted)
	gap := math.Inf(1)
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i] - sorted[i-1]; d > 1e-3 && d < gap {
			gap = d
		}
	}
	if !math.IsInf(gap, 1) {
		return gap
	}
	if v := measures.Floats(tag.SliceThickness); len(v) > 0 && v[0] > 0 {
		return v[0]
	}
	return 1
}

// sharedFunctionalGroups describes the pixel measures and orientation of a
// volume's slices
func sharedFunctionalGroups(vol *dicom.Volume, thickness float64) *dicom.Dataset {
	return dicom.MustDataset(
		dicom.WithSequence(tag.PixelMeasuresSequence, dicom.MustDataset(
			dicom.WithElement(tag.PixelSpacing, []float64{vol.Spacing[1], vol.Spacing[0]}),
			dicom.WithElement(tag.SliceThickness, []float64{thickness}),
			dicom.WithElement(tag.SpacingBetweenSlices, []float64{vol.Spacing[2]}),
		)),
		dicom.WithSequence(tag.PlaneOrientationSequence, dicom.MustDataset(
			dicom.WithElement(tag.ImageOrientationPatient, []float64{
				vol.RowDir[0], vol.RowDir[1], vol.RowDir[2],
				vol.ColDir[0], vol.ColDir[1], vol.ColDir[2],
			}),
		)),
	)
}

// slicePosition is the ImagePositionPatient of slice k
func slicePosition(vol *dicom.Volume, k int) []float64 {
	d := float64(k) * vol.Spacing[2]
	return []float64{
		vol.Origin[0] + d*vol.SliceDir[0],
		vol.Origin[1] + d*vol.SliceDir[1],
		vol.Origin[2] + d*vol.SliceDir[2],
	}
}
