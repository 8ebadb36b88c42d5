// Package pmap loads DICOM Parametric Map objects as scalar volumes placed
// under the series they were derived from.
package pmap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/dcmqi/native"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/nrrd"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/resolve"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/util"
)

// PluginName identifies parametric map loadables
const PluginName = "DICOMParametricMap"

// Confidence of a parametric map loadable
const Confidence = 0.95

// Plugin examines and loads parametric maps
type Plugin struct {
	Env *plugin.Env
}

// New returns a parametric map plugin over env
func New(env *plugin.Env) *Plugin {
	return &Plugin{Env: env}
}

func (p *Plugin) Name() string { return PluginName }

// Examine offers one loadable per parametric map file
func (p *Plugin) Examine(ctx context.Context, fileLists [][]string) ([]*plugin.Loadable, error) {
	var out []*plugin.Loadable
	for _, files := range fileLists {
		for _, f := range files {
			ds, err := dicom.ReadFile(f, dicom.SkipPixelData())
			if err != nil {
				slog.DebugContext(ctx, "not a DICOM file", slog.String("path", f), slog.Any("error", err))
				continue
			}
			if !dicom.IsParametricMap(ds) {
				continue
			}
			name := ds.Text(tag.SeriesDescription)
			if name == "" {
				name = "Parametric map"
			}
			refs := resolve.SeriesReferencedBy(ds, p.Env.DB)
			out = append(out, &plugin.Loadable{
				Plugin:                 PluginName,
				Name:                   name,
				Tooltip:                name,
				Files:                  []string{f},
				Confidence:             Confidence,
				Selected:               true,
				InstanceUIDs:           []string{ds.Text(tag.SOPInstanceUID)},
				ReferencedSeriesUID:    refs.ReferencedSeriesUID,
				ReferencedInstanceUIDs: refs.ReferencedInstanceUIDs,
			})
		}
	}
	return out, nil
}

func (p *Plugin) Load(ctx context.Context, l *plugin.Loadable) error {
	_, err := p.LoadVolume(ctx, l)
	return err
}

// LoadVolume decodes the map of l and adds it to the scene, under the
// referenced series' volume when that is loaded
func (p *Plugin) LoadVolume(ctx context.Context, l *plugin.Loadable) (*scene.ScalarVolume, error) {
	if len(l.Files) == 0 {
		return nil, fmt.Errorf("loadable %q has no files", l.Name)
	}
	file := l.Files[0]
	ds, err := dicom.ReadFile(file, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}
	dir, release, err := util.TempDir(p.Env.TempDir, "pmap-*")
	if err != nil {
		return nil, err
	}
	defer release()

	err = p.Env.Run(ctx, dcmqi.ParamapToITK, dcmqi.Params{
		dcmqi.InputFileName: file,
		dcmqi.OutputDirName: dir,
	})
	if err != nil {
		return nil, err
	}
	img, err := nrrd.ReadFile(filepath.Join(dir, native.ParametricMapFileName))
	if err != nil {
		return nil, err
	}
	vol := &scene.ScalarVolume{
		Base:     scene.Base{Name: l.Name},
		Grid:     img.Grid(),
		Data:     img.Data,
		Modality: ds.Text(tag.Modality),
	}
	vol.SetAttribute(scene.AttrInstanceUIDs, ds.Text(tag.SOPInstanceUID))
	vol.SetAttribute(scene.AttrSeriesInstanceUID, ds.Text(tag.SeriesInstanceUID))
	vol.SetAttribute(scene.AttrStudyInstanceUID, ds.Text(tag.StudyInstanceUID))
	vol.SetAttribute(scene.AttrModality, vol.Modality)

	refs := resolve.SeriesReferencedBy(ds, p.Env.DB)
	if parent := p.sourceVolume(refs.ReferencedSeriesUID); parent != nil {
		p.Env.Scene.AddChild(parent, vol)
	} else {
		p.Env.Scene.Add(vol)
	}
	slog.InfoContext(ctx, "loaded parametric map", slog.String("name", l.Name), slog.Any("dims", vol.Grid.Dims))
	return vol, nil
}

func (p *Plugin) sourceVolume(series string) *scene.ScalarVolume {
	if series == "" {
		return nil
	}
	for _, v := range scene.NodesOf[*scene.ScalarVolume](p.Env.Scene) {
		if v.Attribute(scene.AttrSeriesInstanceUID) == series {
			return v
		}
	}
	return nil
}
