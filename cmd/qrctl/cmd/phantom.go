package cmd

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/m3d"
	"github.com/jpfielding/qreport.go/pkg/phantom"
	"github.com/jpfielding/qreport.go/pkg/provenance"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/stl"
	"github.com/spf13/cobra"
)

// NewPhantomCmd writes a synthetic CT series and optionally a report and a
// printed model of its spheres
func NewPhantomCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phantom",
		Short: "write a synthetic sphere phantom series",
		Long:  "Writes a CT series with spherical structures under --out/ct. --report adds a SEG and measurement report of the spheres, --model an M3D of the first sphere.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			out, _ := f.GetString("out")
			o := phantom.DefaultOptions()
			o.Rows, _ = f.GetInt("rows")
			o.Cols = o.Rows
			o.Slices, _ = f.GetInt("slices")
			o.PatientID, _ = f.GetString("patient")
			o.Seed, _ = f.GetString("seed")
			if rle, _ := f.GetBool("rle"); rle {
				o.Codec = dicom.CodecRLE
			}
			series, err := phantom.Write(filepath.Join(out, "ct"), o)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", series.Dir, series.SeriesInstanceUID)

			if model, _ := f.GetBool("model"); model {
				path, err := writeModel(series, filepath.Join(out, "model.dcm"))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			if report, _ := f.GetBool("report"); !report {
				return nil
			}
			idx, err := a.index(ctx, series.Dir)
			if err != nil {
				return err
			}
			env := a.env(idx)
			if err := loadSource(ctx, env, series.SeriesInstanceUID); err != nil {
				return err
			}
			vol := scene.NodesOf[*scene.ScalarVolume](env.Scene)[0]
			s := scene.NewSegmentation("Spheres", vol.Grid, scene.BinaryLabelmap)
			tracker := a.tracker()
			tracker.Attach(s)
			defer tracker.Detach()
			entry, err := entryFromFlags(cmd)
			if err != nil {
				return err
			}
			for i, sphere := range o.Spheres {
				segment := scene.NewSegment(sphere.Name, palette[i%len(palette)])
				segment.SetTag(scene.TagTerminologyEntry, entry)
				id, err := s.AddSegment(segment)
				if err != nil {
					return err
				}
				if err := s.SetMask(id, sphere.Mask(vol.Grid), provenance.ManualTools[0]); err != nil {
					return err
				}
			}
			return exportTo(ctx, cmd, env, s, vol, filepath.Join(out, "report"), a.exportOptions())
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("out", "o", "phantom", "output directory")
	pf.Int("rows", 32, "rows and columns per slice")
	pf.Int("slices", 12, "number of slices")
	pf.String("patient", "PHANTOM1", "PatientID")
	pf.String("seed", "", "derive the UIDs from this seed so repeated runs write the same UIDs")
	pf.Bool("rle", false, "write RLE Lossless pixel data")
	pf.Bool("report", false, "also write a SEG and measurement report of the spheres")
	pf.Bool("model", false, "also write an M3D of the first sphere")
	pf.String("category", "T-D0050,SRT,Tissue", "segmented property category as value,scheme,meaning")
	pf.String("type", "T-D0050,SRT,Tissue", "segmented property type as value,scheme,meaning")
	pf.String("region", "", "anatomic region as value,scheme,meaning")
	return cmd
}

// writeModel encodes the surface of the first sphere as an M3D next to the
// series
func writeModel(series *phantom.Series, path string) (string, error) {
	if len(series.Options.Spheres) == 0 {
		return "", fmt.Errorf("phantom has no spheres")
	}
	sphere := series.Options.Spheres[0]
	mesh, err := stl.SurfaceFromMask(sphere.Mask(series.Grid), series.Grid)
	if err != nil {
		return "", err
	}
	// payload vertices are patient LPS
	for i := range mesh.Triangles {
		t := &mesh.Triangles[i]
		for _, v := range []*[3]float32{&t.Vertex1, &t.Vertex2, &t.Vertex3} {
			p := geom.RASToLPS(geom.Vec3{float64(v[0]), float64(v[1]), float64(v[2])})
			*v = [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}
		}
		t.ComputeNormal()
	}
	var buf bytes.Buffer
	if err := stl.WriteBinary(&buf, mesh); err != nil {
		return "", err
	}
	src, err := dicom.ReadFile(series.Files[0], dicom.SkipPixelData())
	if err != nil {
		return "", err
	}
	ds, err := m3d.Dataset(src, buf.Bytes(), sphere.Name+" model")
	if err != nil {
		return "", err
	}
	if _, err := dicom.WriteFile(path, ds); err != nil {
		return "", err
	}
	return path, nil
}
