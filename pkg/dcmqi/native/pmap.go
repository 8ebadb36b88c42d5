package native

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/nrrd"
)

// ParametricMapFileName is the volume written by DecodeParametricMap
const ParametricMapFileName = "pmap.nrrd"

// DecodeParametricMap implements paramap2itkimage. Float Pixel Data is
// written as is; integer pixel data is mapped through the frame's real
// world value mapping.
func DecodeParametricMap(ctx context.Context, params dcmqi.Params) error {
	if err := requireParams(params, dcmqi.InputFileName, dcmqi.OutputDirName); err != nil {
		return err
	}
	ds, err := dicom.ReadFile(params[dcmqi.InputFileName])
	if err != nil {
		return err
	}
	if !dicom.IsParametricMap(ds) {
		return fmt.Errorf("%s is not a parametric map", params[dcmqi.InputFileName])
	}
	geo, err := multiFrameGeometry(ds)
	if err != nil {
		return err
	}
	shared := ds.Item(tag.SharedFunctionalGroupsSequence)
	perFrame := ds.Items(tag.PerFrameFunctionalGroupsSequence)

	var frames [][]float32
	if ds.Get(tag.FloatPixelData) != nil {
		if frames, err = dicom.GetFloatFrames(ds); err != nil {
			return err
		}
	} else {
		raw, err := dicom.DecodeFrames(ds)
		if err != nil {
			return err
		}
		signed := dicom.GetPixelRepresentation(ds) == 1
		bits, ok := ds.Int(tag.BitsStored)
		if !ok {
			bits = dicom.GetBitsAllocated(ds)
		}
		for f, words := range raw {
			slope, intercept := 1.0, 0.0
			if m := functional(shared, perFrame[f], tag.RealWorldValueMappingSequence); m != nil {
				if v := m.Floats(tag.RealWorldValueSlope); len(v) > 0 {
					slope = v[0]
				}
				if v := m.Floats(tag.RealWorldValueIntercept); len(v) > 0 {
					intercept = v[0]
				}
			}
			values := make([]float32, len(words))
			for i, w := range words {
				values[i] = float32(dicom.StoredValue(w, bits, signed)*slope + intercept)
			}
			frames = append(frames, values)
		}
	}

	plane := geo.Grid.Dims[0] * geo.Grid.Dims[1]
	data := make([]float32, geo.Grid.Len())
	for f, frame := range frames {
		copy(data[geo.Slice[f]*plane:], frame)
	}

	out := params[dcmqi.OutputDirName]
	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}
	img := nrrd.FromGrid(geo.Grid, nrrd.Float32, data)
	if err := nrrd.WriteFile(filepath.Join(out, ParametricMapFileName), img, true); err != nil {
		return err
	}
	slog.InfoContext(ctx, "decoded parametric map", slog.String("dir", out), slog.Int("frames", len(frames)))
	return nil
}
