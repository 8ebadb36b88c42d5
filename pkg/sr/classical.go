package sr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/descriptor"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/resolve"
	"github.com/jpfielding/qreport.go/pkg/rwvm"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/util"
)

// TrackingIdentifierColumn heads the first column of measurement tables
const TrackingIdentifierColumn = "Tracking Identifier"

// Measurements is a loaded measurement-over-segmentation report
type Measurements struct {
	Report *descriptor.SR
	Table  *scene.Table
	// Segmentations by SOP Instance UID
	Segmentations map[string]*scene.Segmentation
	// Lines are the length measurements drawn on source images
	Lines []*scene.Markups
}

// LoadMeasurements loads the segmentations the report of l refers to,
// scales their source volume when a mapping applies, and renders the
// measurement groups as a table
func (p *Plugin) LoadMeasurements(ctx context.Context, l *plugin.Loadable) (*Measurements, error) {
	file := l.Files[0]
	ds, err := dicom.ReadFile(file, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}
	refs := resolve.SeriesReferencedBy(ds, p.Env.DB)
	out := &Measurements{Segmentations: map[string]*scene.Segmentation{}}

	for _, uid := range refs.Segmentations {
		s, err := p.loadReferencedSegmentation(ctx, uid, refs.RWVMs)
		if err != nil {
			return nil, err
		}
		out.Segmentations[uid] = s
	}
	for _, uid := range refs.Others {
		slog.DebugContext(ctx, "report references", slog.String("instance", uid))
	}

	dir, release, err := util.TempDir(p.Env.TempDir, "tid1500-*")
	if err != nil {
		return nil, err
	}
	defer release()
	metaPath := filepath.Join(dir, "sr.json")
	err = p.Env.Run(ctx, dcmqi.TID1500Reader, dcmqi.Params{
		dcmqi.InputSRFileName:  file,
		dcmqi.MetaDataFileName: metaPath,
	})
	if err != nil {
		return nil, err
	}
	var report descriptor.SR
	if err := descriptor.ReadFile(metaPath, &report); err != nil {
		return nil, err
	}
	out.Report = &report

	out.Table = MeasurementTable(l.Name, report.Measurements)
	out.Table.SetAttribute(scene.AttrSeriesInstanceUID, ds.Text(tag.SeriesInstanceUID))
	out.Table.SetAttribute(scene.AttrInstanceUIDs, ds.Text(tag.SOPInstanceUID))
	p.Env.Scene.Add(out.Table)

	PropagateTrackingUIDs(report.Measurements, out.Segmentations)

	out.Lines = p.lengthLines(ctx, dicom.ParseContentItem(ds))
	for _, m := range out.Lines {
		p.Env.Scene.Add(m)
	}
	slog.InfoContext(ctx, "loaded measurement report",
		slog.String("name", l.Name),
		slog.Int("measurements", len(report.Measurements)),
		slog.Int("segmentations", len(out.Segmentations)),
		slog.Int("lines", len(out.Lines)))
	return out, nil
}

// loadReferencedSegmentation loads one SEG instance from the database,
// first applying any mapping over the same source series
func (p *Plugin) loadReferencedSegmentation(ctx context.Context, uid string, mappings []string) (*scene.Segmentation, error) {
	file := p.Env.DB.FileForInstance(uid)
	if file == "" {
		return nil, fmt.Errorf("segmentation %s: %w", uid, errs.ErrReferencedSeriesNotInDatabase)
	}
	loadables, err := p.SEG.Examine(ctx, [][]string{{file}})
	if err != nil {
		return nil, err
	}
	if len(loadables) == 0 {
		return nil, fmt.Errorf("%s is not a segmentation", file)
	}
	l := loadables[0]
	for _, m := range mappings {
		mf := p.Env.DB.FileForInstance(m)
		if mf == "" || l.ReferencedSeriesUID == "" {
			continue
		}
		mds, err := dicom.ReadFile(mf, dicom.SkipPixelData())
		if err != nil {
			return nil, err
		}
		mapping, err := rwvm.Read(mds)
		if err != nil {
			return nil, err
		}
		if !mapping.ReferencesSeries(p.Env.DB, l.ReferencedSeriesUID) {
			continue
		}
		if _, err := rwvm.LoadScaled(ctx, p.Env, mf, l.ReferencedSeriesUID); err != nil {
			return nil, err
		}
	}
	return p.SEG.LoadSegmentation(ctx, l)
}

// MeasurementTable lays measurements out one row each: the tracking
// identifier, then one column per measurement item. Repeated item names
// within a group are numbered " (1)", " (2)", ... in order.
func MeasurementTable(name string, measurements []descriptor.Measurement) *scene.Table {
	t := scene.NewTable(name + " measurements")
	t.ReadOnly = true
	t.AddColumn(TrackingIdentifierColumn, "", "Tracking identifier of the measurement group")
	for _, m := range measurements {
		cells := map[string]string{TrackingIdentifierColumn: m.TrackingIdentifier}
		for _, col := range itemColumns(m.MeasurementItems) {
			if t.Column(col.name) == nil {
				t.AddColumn(col.name, col.item.Units.Module().Value, col.item.Quantity.Module().Meaning)
			}
			cells[col.name] = col.item.Value
		}
		row := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			row[i] = cells[c.Name]
		}
		// AppendRow cannot fail with one cell per column
		_ = t.AppendRow(row...)
	}
	return t
}

type itemColumn struct {
	name string
	item descriptor.MeasurementItem
}

func itemColumns(items []descriptor.MeasurementItem) []itemColumn {
	seen := map[string]int{}
	out := make([]itemColumn, len(items))
	for i, item := range items {
		name := item.Name()
		if n := seen[name]; n > 0 {
			out[i].name = name + " (" + strconv.Itoa(n) + ")"
		} else {
			out[i].name = name
		}
		seen[name]++
		out[i].item = item
	}
	return out
}

// PropagateTrackingUIDs tags each referenced segment with the tracking UID
// of its measurement group. Segment numbers index the segments in order.
func PropagateTrackingUIDs(measurements []descriptor.Measurement, segmentations map[string]*scene.Segmentation) {
	for _, m := range measurements {
		if m.TrackingUniqueIdentifier == "" {
			continue
		}
		s := segmentations[m.SegmentationSOPInstanceUID]
		if s == nil {
			continue
		}
		segments := s.Segments()
		if m.ReferencedSegment < 1 || m.ReferencedSegment > len(segments) {
			slog.Warn("referenced segment out of range",
				slog.Int("segment", m.ReferencedSegment), slog.Int("segments", len(segments)))
			continue
		}
		segments[m.ReferencedSegment-1].SetTag(scene.TagTrackingUID, m.TrackingUniqueIdentifier)
	}
}

// lengthLines draws the length measurements of every group as lines
// between the two endpoints of their polyline
func (p *Plugin) lengthLines(ctx context.Context, root *dicom.ContentItem) []*scene.Markups {
	var lines []*scene.Markups
	for _, g := range measurementGroups(root) {
		trackingID := ""
		if id := g.First(dicom.CodeTrackingIdentifier); id != nil {
			trackingID = id.Text
		}
		g.Walk(func(item *dicom.ContentItem) {
			if !item.ConceptName.Equal(dicom.CodeLength) {
				return
			}
			coord := item
			if item.ValueType != dicom.ValueSCoord {
				coord = firstOfType(item, dicom.ValueSCoord)
			}
			if coord == nil || len(coord.GraphicData) < 4 {
				return
			}
			line, err := p.lengthLine(coord)
			if err != nil {
				slog.WarnContext(ctx, "length measurement skipped", slog.String("tracking", trackingID), slog.Any("error", err))
				return
			}
			line.Name = "Length"
			if trackingID != "" {
				line.Name = trackingID + " Length"
			}
			if item.ValueType == dicom.ValueNum {
				line.Description = item.Value + " " + item.Units.Value
			}
			lines = append(lines, line)
		})
	}
	return lines
}

func (p *Plugin) lengthLine(coord *dicom.ContentItem) (*scene.Markups, error) {
	img := firstOfType(coord, dicom.ValueImage)
	if img == nil || img.Reference == nil {
		return nil, fmt.Errorf("polyline has no source image")
	}
	inst, ok := p.Env.DB.Instance(img.Reference.InstanceUID)
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", img.Reference.InstanceUID, errs.ErrReferencedSeriesNotInDatabase)
	}
	if len(inst.ImagePositionPatient) != 3 || len(inst.ImageOrientationPatient) != 6 || len(inst.PixelSpacing) != 2 {
		return nil, fmt.Errorf("instance %s has no image plane", img.Reference.InstanceUID)
	}
	origin := geom.Vec3(inst.ImagePositionPatient)
	iop := [6]float64(inst.ImageOrientationPatient)
	ps := [2]float64(inst.PixelSpacing)

	m := scene.NewMarkups(scene.MarkupLine, "")
	m.Locked = true
	d := coord.GraphicData
	m.AddPoint("", geom.ImagePointToRAS(float64(d[0]), float64(d[1]), origin, iop, ps))
	m.AddPoint("", geom.ImagePointToRAS(float64(d[2]), float64(d[3]), origin, iop, ps))
	m.SetAttribute(scene.AttrReferencedInstanceUIDs, img.Reference.InstanceUID)
	m.SetAttribute(scene.AttrSeriesInstanceUID, inst.SeriesInstanceUID)
	return m, nil
}

// firstOfType returns the first direct child with the value type
func firstOfType(c *dicom.ContentItem, valueType string) *dicom.ContentItem {
	for _, ch := range c.Children {
		if ch.ValueType == valueType {
			return ch
		}
	}
	return nil
}
