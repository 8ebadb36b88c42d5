// Package native implements the dcmqi conversion tools in process on top of
// the dicom package, with the same parameters and outputs as the command
// line tools.
package native

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/scene"
)

// Manufacturer and software version written into generated objects
var (
	Manufacturer     = "qreport"
	SoftwareVersions = "1.0"
)

// Tools returns the in-process tool table
func Tools() map[string]dcmqi.ToolFunc {
	return map[string]dcmqi.ToolFunc{
		dcmqi.ITKToSegImage: EncodeSEG,
		dcmqi.SegImageToITK: DecodeSEG,
		dcmqi.TID1500Writer: WriteTID1500,
		dcmqi.TID1500Reader: ReadTID1500,
		dcmqi.ParamapToITK:  DecodeParametricMap,
	}
}

// Runner returns a dcmqi.NativeRunner backed by Tools
func Runner() dcmqi.NativeRunner {
	return dcmqi.NativeRunner{Tools: Tools()}
}

func requireParams(params dcmqi.Params, names ...string) error {
	for _, n := range names {
		if params[n] == "" {
			return &errs.AttributeError{Key: n}
		}
	}
	return nil
}

// dicomFiles lists the regular files of dir in name order
func dicomFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("no files in %s", dir)
	}
	return out, nil
}

// sourceVolume loads the image series in dir together with the header of
// its first slice
func sourceVolume(dir string) (*dicom.Volume, geom.Grid, *dicom.Dataset, error) {
	files, err := dicomFiles(dir)
	if err != nil {
		return nil, geom.Grid{}, nil, err
	}
	vol, err := dicom.LoadSeriesFiles(files)
	if err != nil {
		return nil, geom.Grid{}, nil, err
	}
	first, err := dicom.ReadFile(vol.Files[0], dicom.SkipPixelData())
	if err != nil {
		return nil, geom.Grid{}, nil, err
	}
	return vol, scene.VolumeFromDICOM("", vol).Grid, first, nil
}
