// Package phantom writes synthetic image series with spherical structures.
// The series are used for demos and as fixtures for the codecs.
package phantom

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/geom"
)

// Sphere is a ball of constant intensity. Center is in LPS millimetres.
type Sphere struct {
	Name   string
	Center geom.Vec3
	Radius float64
	Value  float32
}

// Options describe the series to write
type Options struct {
	Rows, Cols, Slices int
	// PixelSpacing is row spacing then column spacing
	PixelSpacing   [2]float64
	SliceThickness float64
	// Origin is the LPS position of the first voxel
	Origin geom.Vec3

	Modality    string
	PatientID   string
	PatientName string
	// StudyInstanceUID is generated when empty
	StudyInstanceUID string
	// Seed, when set, derives every UID from it so rewrites give the same UIDs
	Seed              string
	StudyTime         time.Time
	SeriesNumber      int
	SeriesDescription string

	Background float32
	Spheres    []Sphere
	Codec      dicom.Codec
}

// DefaultOptions is a small CT series with one sphere
func DefaultOptions() Options {
	return Options{
		Rows: 32, Cols: 32, Slices: 12,
		PixelSpacing:      [2]float64{1, 1},
		SliceThickness:    2,
		Origin:            geom.Vec3{-16, -16, 0},
		Modality:          "CT",
		PatientID:         "PHANTOM1",
		PatientName:       "Phantom^Sphere",
		SeriesNumber:      1,
		SeriesDescription: "Sphere phantom",
		Background:        -1000,
		Spheres: []Sphere{
			{Name: "Tumor", Center: geom.Vec3{0, 0, 11}, Radius: 6, Value: 60},
		},
	}
}

// Series is a written series
type Series struct {
	Dir                 string
	Files               []string
	StudyInstanceUID    string
	SeriesInstanceUID   string
	FrameOfReferenceUID string
	SOPInstanceUIDs     []string
	// Grid is the RAS geometry of the series
	Grid    geom.Grid
	Options Options
}

// Grid returns the RAS grid of a series written with opts
func (o Options) Grid() geom.Grid {
	return geom.FromLPS(
		[3]int{o.Cols, o.Rows, o.Slices},
		o.Origin,
		[3]float64{o.PixelSpacing[1], o.PixelSpacing[0], o.SliceThickness},
		geom.IdentityDirs,
	)
}

// Mask returns the voxels of g whose centres lie inside s
func (s Sphere) Mask(g geom.Grid) []uint8 {
	mask := make([]uint8, g.Len())
	c := geom.LPSToRAS(s.Center)
	for k := 0; k < g.Dims[2]; k++ {
		for j := 0; j < g.Dims[1]; j++ {
			for i := 0; i < g.Dims[0]; i++ {
				p := g.ToRAS(geom.Vec3{float64(i), float64(j), float64(k)})
				if p.Sub(c).Norm() <= s.Radius {
					mask[g.Index(i, j, k)] = 1
				}
			}
		}
	}
	return mask
}

// Write creates dir and writes one file per slice into it
func Write(dir string, o Options) (*Series, error) {
	if o.Rows <= 0 || o.Cols <= 0 || o.Slices <= 0 {
		return nil, fmt.Errorf("phantom needs positive dimensions, got %dx%dx%d", o.Cols, o.Rows, o.Slices)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	uid := func(parts ...any) (string, error) {
		if o.Seed == "" {
			return dicom.NewUID(), nil
		}
		return dicom.HashUID(append([]any{o.Seed}, parts...))
	}
	var err error
	if o.StudyInstanceUID == "" {
		if o.StudyInstanceUID, err = uid("study", o.PatientID); err != nil {
			return nil, err
		}
	}
	if o.StudyTime.IsZero() {
		o.StudyTime = time.Now()
	}
	g := o.Grid()
	values := make([]float32, g.Len())
	for i := range values {
		values[i] = o.Background
	}
	for _, s := range o.Spheres {
		for i, v := range s.Mask(g) {
			if v != 0 {
				values[i] = s.Value
			}
		}
	}

	out := &Series{
		Dir:              dir,
		StudyInstanceUID: o.StudyInstanceUID,
		Grid:             g,
		Options:          o,
	}
	if out.SeriesInstanceUID, err = uid("series", o.StudyInstanceUID, o.SeriesNumber); err != nil {
		return nil, err
	}
	if out.FrameOfReferenceUID, err = uid("frame", out.SeriesInstanceUID); err != nil {
		return nil, err
	}
	n := o.Rows * o.Cols
	for k := 0; k < o.Slices; k++ {
		img := dicom.NewCTImage()
		if o.Seed != "" {
			if img.SOPCommon.SOPInstanceUID, err = uid("instance", out.SeriesInstanceUID, k); err != nil {
				return nil, err
			}
		}
		img.Patient.PatientID = o.PatientID
		img.Patient.PatientName = module.ParsePersonName(o.PatientName)
		img.Study.StudyInstanceUID = o.StudyInstanceUID
		img.Study.StudyDate = module.NewDate(o.StudyTime)
		img.Study.StudyTime = module.NewTime(o.StudyTime)
		img.Series.SeriesInstanceUID = out.SeriesInstanceUID
		img.Series.SeriesNumber = o.SeriesNumber
		img.Series.SeriesDescription = o.SeriesDescription
		img.Series.SeriesDate = module.NewDate(o.StudyTime)
		img.Series.SeriesTime = module.NewTime(o.StudyTime)
		if o.Modality != "" {
			img.Series.Modality = o.Modality
		}
		img.Equipment.Manufacturer = "qreport"
		img.FrameOfReference.FrameOfReferenceUID = out.FrameOfReferenceUID
		img.ImagePlane.PixelSpacing = o.PixelSpacing
		img.ImagePlane.SliceThickness = o.SliceThickness
		img.ImagePlane.ImagePositionPatient = [3]float64{o.Origin[0], o.Origin[1], o.Origin[2] + float64(k)*o.SliceThickness}
		img.Image.InstanceNumber = k + 1
		img.Codec = o.Codec
		img.SetHU(o.Rows, o.Cols, values[k*n:(k+1)*n])

		path := filepath.Join(dir, fmt.Sprintf("IM%04d.dcm", k+1))
		if _, err := img.Write(path); err != nil {
			return nil, fmt.Errorf("writing slice %d: %w", k, err)
		}
		out.Files = append(out.Files, path)
		out.SOPInstanceUIDs = append(out.SOPInstanceUIDs, img.SOPCommon.SOPInstanceUID)
	}
	return out, nil
}
