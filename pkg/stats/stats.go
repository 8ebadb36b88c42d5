// Package stats computes per-segment label and scalar statistics and tags
// each value with the coded quantity, units and derivation used in TID 1500
// measurement groups.
package stats

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// metric keys
const (
	VoxelCount = "voxel_count"
	VolumeMM3  = "volume_mm3"
	VolumeCM3  = "volume_cm3"
	Min        = "min"
	Max        = "max"
	Mean       = "mean"
	StdDev     = "stdev"
)

// Keys lists the metrics in column order
var Keys = []string{VoxelCount, VolumeMM3, VolumeCM3, Min, Max, Mean, StdDev}

var (
	QuantityVolume   = module.NewCode("G-D705", "SRT", "Volume")
	QuantityCT       = module.NewCode("122713", "DCM", "Attenuation Coefficient")
	QuantityMR       = module.NewCode("110852", "DCM", "MR signal intensity")
	UnitsHounsfield  = module.NewCode("[hnsf'U]", "UCUM", "Hounsfield unit")
	UnitsNone        = module.NewCode("1", "UCUM", "no units")
	UnitsMM3         = module.NewCode("mm3", "UCUM", "cubic millimeter")
	UnitsCM3         = module.NewCode("cm3", "UCUM", "cubic centimeter")
	DerivationMin    = module.NewCode("R-404FB", "SRT", "Minimum")
	DerivationMax    = module.NewCode("G-A437", "SRT", "Maximum")
	DerivationMean   = module.NewCode("R-00317", "SRT", "Mean")
	DerivationStdDev = module.NewCode("R-10047", "SRT", "Standard Deviation")
)

// Measurement is one computed metric of one segment
type Measurement struct {
	Key         string
	Name        string
	Unit        string
	Description string
	Value       float64

	Quantity   module.Code
	Units      module.Code
	Derivation module.Code
}

// Coded reports whether the measurement can be written as a NUM item
func (m Measurement) Coded() bool {
	return !m.Quantity.IsZero() && !m.Units.IsZero()
}

// FormatValue renders the value as a DICOM decimal string
func (m Measurement) FormatValue() string {
	if m.Key == VoxelCount {
		return strconv.Itoa(int(m.Value))
	}
	return dicom.FormatNumeric(m.Value)
}

// SegmentStatistics holds the metrics of one segment in Keys order
type SegmentStatistics struct {
	SegmentID    string
	Name         string
	Measurements []Measurement
}

// Get returns the metric with key
func (s SegmentStatistics) Get(key string) (Measurement, bool) {
	for _, m := range s.Measurements {
		if m.Key == key {
			return m, true
		}
	}
	return Measurement{}, false
}

// Empty reports a zero voxel count
func (s SegmentStatistics) Empty() bool {
	m, ok := s.Get(VoxelCount)
	return !ok || m.Value == 0
}

// Result is the statistics of a segmentation over a scalar volume
type Result struct {
	Modality string
	Segments []SegmentStatistics
}

// Segment returns the statistics of a segment by ID
func (r *Result) Segment(id string) (SegmentStatistics, bool) {
	for _, s := range r.Segments {
		if s.SegmentID == id {
			return s, true
		}
	}
	return SegmentStatistics{}, false
}

// NonEmpty drops the segments without voxels
func (r *Result) NonEmpty() []SegmentStatistics {
	var out []SegmentStatistics
	for _, s := range r.Segments {
		if !s.Empty() {
			out = append(out, s)
		}
	}
	return out
}

// Compute measures every segment (only visible ones when visibleOnly is
// set) on the grid of vol. A nil volume yields an empty result.
func Compute(seg *scene.Segmentation, vol *scene.ScalarVolume, visibleOnly bool) (*Result, error) {
	if vol == nil {
		slog.Debug("no scalar volume, skipping statistics")
		return &Result{}, nil
	}
	if len(vol.Data) != vol.Grid.Len() {
		return nil, fmt.Errorf("stats: volume of %d voxels for grid of %d", len(vol.Data), vol.Grid.Len())
	}
	if seg.Master == scene.ClosedSurface && !seg.HasRepresentation(scene.BinaryLabelmap) {
		if err := seg.CreateRepresentation(scene.BinaryLabelmap); err != nil {
			return nil, err
		}
	}

	res := &Result{Modality: vol.Modality}
	voxelVolume := vol.Grid.VoxelVolume()
	for _, s := range seg.Segments() {
		if visibleOnly && !s.Visible {
			continue
		}
		var values []float64
		if s.Mask != nil {
			mask, err := seg.MaskOn(s, vol.Grid)
			if err != nil {
				return nil, fmt.Errorf("stats: segment %s: %w", s.ID, err)
			}
			for i, m := range mask {
				if m != 0 {
					values = append(values, float64(vol.Data[i]))
				}
			}
		}
		res.Segments = append(res.Segments, SegmentStatistics{
			SegmentID:    s.ID,
			Name:         s.Name,
			Measurements: measure(values, voxelVolume, vol.Modality),
		})
	}
	slog.Debug("computed statistics", slog.Int("segments", len(res.Segments)), slog.String("modality", vol.Modality))
	return res, nil
}

func measure(values []float64, voxelVolume float64, modality string) []Measurement {
	n := float64(len(values))
	mm3 := n * voxelVolume
	out := []Measurement{
		{Key: VoxelCount, Name: "Voxel count", Unit: "voxels", Description: "Number of voxels in the segment", Value: n},
		{Key: VolumeMM3, Name: "Volume mm3", Unit: "mm3", Description: "Segment volume in cubic millimeters", Value: mm3,
			Quantity: QuantityVolume, Units: UnitsMM3},
		{Key: VolumeCM3, Name: "Volume cm3", Unit: "cm3", Description: "Segment volume in cubic centimeters", Value: mm3 / 1000,
			Quantity: QuantityVolume, Units: UnitsCM3},
	}
	if len(values) == 0 {
		return out
	}

	quantity, units, unit := QuantityMR, UnitsNone, ""
	if modality == "CT" {
		quantity, units, unit = QuantityCT, UnitsHounsfield, "HU"
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	scalar := func(key, name, desc string, v float64, derivation module.Code) Measurement {
		return Measurement{Key: key, Name: name, Unit: unit, Description: desc, Value: v,
			Quantity: quantity, Units: units, Derivation: derivation}
	}
	return append(out,
		scalar(Min, "Minimum", "Minimum scalar value in the segment", floats.Min(values), DerivationMin),
		scalar(Max, "Maximum", "Maximum scalar value in the segment", floats.Max(values), DerivationMax),
		scalar(Mean, "Mean", "Mean scalar value in the segment", mean, DerivationMean),
		scalar(StdDev, "Standard deviation", "Population standard deviation of the scalar values in the segment", std, DerivationStdDev),
	)
}

// Table lays the result out as one row per segment
func (r *Result) Table(name string) *scene.Table {
	t := scene.NewTable(name)
	t.ReadOnly = true
	t.AddColumn("Segment", "", "Segment name")
	cols := map[string]*scene.Column{}
	for _, s := range r.Segments {
		for _, m := range s.Measurements {
			if cols[m.Key] == nil {
				cols[m.Key] = t.AddColumn(m.Name, m.Unit, m.Description)
			}
		}
	}
	for _, s := range r.Segments {
		t.Columns[0].Values = append(t.Columns[0].Values, s.Name)
		row := len(t.Columns[0].Values)
		for _, c := range t.Columns[1:] {
			c.Values = append(c.Values, "")
		}
		for _, m := range s.Measurements {
			cols[m.Key].Values[row-1] = m.FormatValue()
		}
	}
	return t
}
