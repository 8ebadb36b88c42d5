package dicom

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
)

// Volume represents a 3D scalar volume loaded from an image series.
// Geometry is in DICOM patient coordinates (LPS).
type Volume struct {
	// Dimensions
	Width  int // columns
	Height int // rows
	Depth  int // slices

	// Voxel spacing in mm: column step, row step, slice step
	Spacing [3]float64

	// Position of the first voxel of the first slice
	Origin [3]float64

	// Direction cosines of increasing column, row and slice index
	RowDir, ColDir, SliceDir [3]float64

	// Rescaled voxel values (column fastest, then row, then slice)
	Data []float32

	Modality            string
	StudyInstanceUID    string
	SeriesInstanceUID   string
	FrameOfReferenceUID string
	SeriesNumber        int
	// SOPInstanceUIDs in slice order; the k-th slice came from InstanceUIDs[k]
	InstanceUIDs []string
	// Source file paths in slice order, when loaded from disk
	Files []string
}

// NewVolume creates a new Volume with the specified dimensions and identity geometry
func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Width:    width,
		Height:   height,
		Depth:    depth,
		Spacing:  [3]float64{1, 1, 1},
		RowDir:   [3]float64{1, 0, 0},
		ColDir:   [3]float64{0, 1, 0},
		SliceDir: [3]float64{0, 0, 1},
		Data:     make([]float32, width*height*depth),
	}
}

// Get returns the voxel value at (x, y, z)
func (v *Volume) Get(x, y, z int) float32 {
	if x < 0 || x >= v.Width || y < 0 || y >= v.Height || z < 0 || z >= v.Depth {
		return 0
	}
	return v.Data[z*v.Width*v.Height+y*v.Width+x]
}

// Set sets the voxel value at (x, y, z)
func (v *Volume) Set(x, y, z int, val float32) {
	if x < 0 || x >= v.Width || y < 0 || y >= v.Height || z < 0 || z >= v.Depth {
		return
	}
	v.Data[z*v.Width*v.Height+y*v.Width+x] = val
}

// Slice returns the axial slice at index
func (v *Volume) Slice(index int) []float32 {
	if index < 0 || index >= v.Depth {
		return nil
	}
	n := v.Width * v.Height
	slice := make([]float32, n)
	copy(slice, v.Data[index*n:(index+1)*n])
	return slice
}

// MinMax returns the minimum and maximum voxel values
func (v *Volume) MinMax() (min, max float32) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	min, max = v.Data[0], v.Data[0]
	for _, val := range v.Data {
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}
	return
}

// SeriesInstance is one parsed file of an image series
type SeriesInstance struct {
	Path    string
	Dataset *Dataset
}

// LoadSeriesFiles reads the files of one single-frame image series and
// assembles them into a volume.
func LoadSeriesFiles(paths []string) (*Volume, error) {
	instances := make([]SeriesInstance, 0, len(paths))
	for _, p := range paths {
		ds, err := ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		instances = append(instances, SeriesInstance{Path: p, Dataset: ds})
	}
	return LoadSeries(instances)
}

// LoadSeries sorts instances along the slice normal, decodes native or RLE
// pixel data, applies rescale slope and intercept and records the source
// SOPInstanceUIDs in slice order.
func LoadSeries(instances []SeriesInstance) (*Volume, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("no instances in series")
	}
	first := instances[0].Dataset
	rows, cols := GetRows(first), GetColumns(first)
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}

	iop := GetImageOrientationPatient(first)
	rowDir := [3]float64{iop[0], iop[1], iop[2]}
	colDir := [3]float64{iop[3], iop[4], iop[5]}
	normal := cross(rowDir, colDir)

	type keyed struct {
		SeriesInstance
		pos  [3]float64
		dist float64
	}
	sorted := make([]keyed, 0, len(instances))
	for _, inst := range instances {
		if GetRows(inst.Dataset) != rows || GetColumns(inst.Dataset) != cols {
			return nil, fmt.Errorf("instance %s has mismatched dimensions", inst.Dataset.Text(tag.SOPInstanceUID))
		}
		ipp := GetImagePositionPatient(inst.Dataset)
		pos := [3]float64{ipp[0], ipp[1], ipp[2]}
		sorted = append(sorted, keyed{SeriesInstance: inst, pos: pos, dist: dot(pos, normal)})
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].dist < sorted[j].dist })

	vol := NewVolume(cols, rows, len(sorted))
	rowSpacing, colSpacing := GetPixelSpacing(first)
	// PixelSpacing is row spacing (between rows) then column spacing
	vol.Spacing = [3]float64{colSpacing, rowSpacing, sliceSpacing(first)}
	if len(sorted) > 1 {
		if d := sorted[1].dist - sorted[0].dist; d > 0 {
			vol.Spacing[2] = d
		}
	}
	vol.Origin = sorted[0].pos
	vol.RowDir, vol.ColDir, vol.SliceDir = rowDir, colDir, normal
	vol.Modality = GetModality(first)
	vol.StudyInstanceUID = first.Text(tag.StudyInstanceUID)
	vol.SeriesInstanceUID = first.Text(tag.SeriesInstanceUID)
	vol.FrameOfReferenceUID = first.Text(tag.FrameOfReferenceUID)
	vol.SeriesNumber, _ = first.Int(tag.SeriesNumber)

	n := rows * cols
	for z, inst := range sorted {
		frames, err := DecodeFrames(inst.Dataset)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", inst.Path, err)
		}
		if len(frames) == 0 {
			return nil, fmt.Errorf("instance %s has no frames", inst.Path)
		}
		intercept, slope := GetRescale(inst.Dataset)
		signed := GetPixelRepresentation(inst.Dataset) == 1
		bits, ok := inst.Dataset.Int(tag.BitsStored)
		if !ok {
			bits = GetBitsAllocated(inst.Dataset)
		}
		for i, raw := range frames[0] {
			vol.Data[z*n+i] = float32(StoredValue(raw, bits, signed)*slope + intercept)
		}
		vol.InstanceUIDs = append(vol.InstanceUIDs, inst.Dataset.Text(tag.SOPInstanceUID))
		vol.Files = append(vol.Files, inst.Path)
	}

	slog.Debug("loaded series",
		slog.String("series", vol.SeriesInstanceUID),
		slog.Int("slices", vol.Depth),
		slog.Int("rows", rows),
		slog.Int("cols", cols))
	return vol, nil
}

// StoredValue interprets a raw pixel word, sign extending from bitsStored
func StoredValue(raw uint16, bitsStored int, signed bool) float64 {
	if !signed {
		return float64(raw)
	}
	if bitsStored <= 0 || bitsStored > 16 {
		bitsStored = 16
	}
	shift := uint(16 - bitsStored)
	return float64(int16(raw<<shift) >> shift)
}

func sliceSpacing(ds *Dataset) float64 {
	if v := ds.Floats(tag.SpacingBetweenSlices); len(v) > 0 && v[0] > 0 {
		return v[0]
	}
	return GetSliceThickness(ds)
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// PixelToPatient maps a pixel (column, row) on an image plane to LPS using
// origin + col*rowDir*colSpacing + row*colDir*rowSpacing.
func PixelToPatient(ds *Dataset, col, row float64) [3]float64 {
	ipp := GetImagePositionPatient(ds)
	iop := GetImageOrientationPatient(ds)
	rowSpacing, colSpacing := GetPixelSpacing(ds)
	var p [3]float64
	for i := 0; i < 3; i++ {
		p[i] = ipp[i] + col*iop[i]*colSpacing + row*iop[3+i]*rowSpacing
	}
	return p
}
