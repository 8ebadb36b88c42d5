// Package sr reads and writes TID 1500 measurement reports. Reports whose
// measurement groups point at segments are loaded together with their SEG
// and any real world value mapping; reports carrying planar image regions
// are rendered as tables and markups.
package sr

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/resolve"
	"github.com/jpfielding/qreport.go/pkg/seg"
)

// PluginName identifies TID 1500 loadables
const PluginName = "DICOMTID1500"

// Confidence of a single report loadable
const Confidence = 0.95

// DefaultName labels reports without a series description
const DefaultName = "Measurement Report"

var reportClasses = []string{
	dicom.EnhancedSRStorageUID,
	dicom.ComprehensiveSRStorageUID,
	dicom.Comprehensive3DSRUID,
}

// IsTID1500 reports whether ds is an SR rooted at the measurement report
// template
func IsTID1500(ds *dicom.Dataset) bool {
	return ds.Text(tag.Modality) == "SR" &&
		slices.Contains(reportClasses, ds.Text(tag.SOPClassUID)) &&
		dicom.TemplateIdentifier(ds) == dicom.TID1500TemplateID
}

// HasPlanarAnnotations reports whether any measurement group of the
// content tree carries an image region
func HasPlanarAnnotations(root *dicom.ContentItem) bool {
	for _, g := range measurementGroups(root) {
		if region := g.First(dicom.CodeImageRegion); region != nil {
			switch region.ValueType {
			case dicom.ValueSCoord, dicom.ValueSCoord3D:
				return true
			}
		}
	}
	return false
}

func measurementGroups(root *dicom.ContentItem) []*dicom.ContentItem {
	measurements := root.First(dicom.CodeImagingMeasurements)
	if measurements == nil {
		return nil
	}
	return measurements.Find(dicom.CodeMeasurementGroup)
}

// Plugin examines and loads TID 1500 reports
type Plugin struct {
	Env *plugin.Env
	SEG *seg.Plugin
}

// New returns an SR plugin over env
func New(env *plugin.Env) *Plugin {
	return &Plugin{Env: env, SEG: seg.New(env)}
}

func (p *Plugin) Name() string { return PluginName }

// Examine offers one loadable per measurement report
func (p *Plugin) Examine(ctx context.Context, fileLists [][]string) ([]*plugin.Loadable, error) {
	var out []*plugin.Loadable
	for _, files := range fileLists {
		for _, f := range files {
			ds, err := dicom.ReadFile(f, dicom.SkipPixelData())
			if err != nil {
				slog.DebugContext(ctx, "not a DICOM file", slog.String("path", f), slog.Any("error", err))
				continue
			}
			if !IsTID1500(ds) {
				continue
			}
			name := ds.Text(tag.SeriesDescription)
			if name == "" {
				name = DefaultName
			}
			refs := resolve.SeriesReferencedBy(ds, p.Env.DB)
			out = append(out, &plugin.Loadable{
				Plugin:                  PluginName,
				Name:                    name,
				Tooltip:                 name,
				Files:                   []string{f},
				Confidence:              Confidence,
				Selected:                true,
				InstanceUIDs:            []string{ds.Text(tag.SOPInstanceUID)},
				ReferencedSeriesUID:     refs.ReferencedSeriesUID,
				ReferencedInstanceUIDs:  refs.ReferencedInstanceUIDs,
				ReferencedSegmentations: refs.Segmentations,
				ReferencedRWVMs:         refs.RWVMs,
				ReferencedOthers:        refs.Others,
				Planar:                  HasPlanarAnnotations(dicom.ParseContentItem(ds)),
			})
		}
	}
	return out, nil
}

// Load renders the report of l, taking the planar path when it carries
// image regions
func (p *Plugin) Load(ctx context.Context, l *plugin.Loadable) error {
	if len(l.Files) == 0 {
		return fmt.Errorf("loadable %q has no files", l.Name)
	}
	if l.Planar {
		res, err := p.LoadPlanar(ctx, l)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			slog.WarnContext(ctx, "planar annotation skipped", slog.Any("error", w))
		}
		return nil
	}
	_, err := p.LoadMeasurements(ctx, l)
	return err
}
