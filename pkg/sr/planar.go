package sr

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/resolve"
	"github.com/jpfielding/qreport.go/pkg/scene"
)

// Kind is the geometry of a planar annotation
type Kind string

const (
	BoundingBox Kind = "bbox2D"
	Polyline    Kind = "polyline2D"
	Point3D     Kind = "point3D"
)

// Kinds in rendering order
var Kinds = []Kind{BoundingBox, Polyline, Point3D}

// BoxThickness is the depth of rendered bounding boxes in mm
const BoxThickness = 0.01

var kindNames = map[Kind]string{
	BoundingBox: "Bounding boxes",
	Polyline:    "Polylines",
	Point3D:     "Points",
}

// Annotation is one planar ROI measurement group
type Annotation struct {
	Kind               Kind
	TrackingIdentifier string
	TrackingUID        string
	FindingType        module.Code
	FindingSites       []module.Code

	// Pixels are (column, row) image coordinates of 2D kinds
	Pixels                   [][2]float64
	ReferencedSOPClassUID    string
	ReferencedSOPInstanceUID string

	// Point is the LPS position of a Point3D
	Point               geom.Vec3
	FrameOfReferenceUID string
}

// ParseAnnotations extracts the measurement groups carrying an image
// region. A 2D region is a bounding box when the group qualifies it as
// "bounded by", otherwise a polyline.
func ParseAnnotations(root *dicom.ContentItem) []Annotation {
	var out []Annotation
	for _, g := range measurementGroups(root) {
		region := g.First(dicom.CodeImageRegion)
		if region == nil {
			continue
		}
		a := Annotation{}
		if id := g.First(dicom.CodeTrackingIdentifier); id != nil {
			a.TrackingIdentifier = id.Text
		}
		if uid := g.First(dicom.CodeTrackingUID); uid != nil {
			a.TrackingUID = uid.Text
		}
		if f := g.First(dicom.CodeFinding); f != nil {
			a.FindingType = f.Code
		}
		for _, site := range g.Find(dicom.CodeFindingSite) {
			a.FindingSites = append(a.FindingSites, site.Code)
		}
		d := region.GraphicData
		switch region.ValueType {
		case dicom.ValueSCoord3D:
			if len(d) < 3 {
				continue
			}
			a.Kind = Point3D
			a.Point = geom.Vec3{float64(d[0]), float64(d[1]), float64(d[2])}
			a.FrameOfReferenceUID = region.FrameOfReferenceUID
		case dicom.ValueSCoord:
			a.Kind = Polyline
			if boundedBy(g) {
				a.Kind = BoundingBox
			}
			for i := 0; i+1 < len(d); i += 2 {
				a.Pixels = append(a.Pixels, [2]float64{float64(d[i]), float64(d[i+1])})
			}
			if img := firstOfType(region, dicom.ValueImage); img != nil && img.Reference != nil {
				a.ReferencedSOPClassUID = img.Reference.ClassUID
				a.ReferencedSOPInstanceUID = img.Reference.InstanceUID
			}
		default:
			continue
		}
		out = append(out, a)
	}
	return out
}

func boundedBy(g *dicom.ContentItem) bool {
	found := false
	g.Walk(func(item *dicom.ContentItem) {
		if item.ValueType == dicom.ValueCode && item.ConceptName.Equal(dicom.CodeGeometricPurpose) && item.Code.Equal(dicom.CodeBoundedBy) {
			found = true
		}
	})
	return found
}

// Box is the rendered geometry of a bounding box annotation
type Box struct {
	// Corners are the box corners in pixel space, first four only
	Corners [][2]float64
	// Width and Height in mm
	Width, Height float64
	// CenterPixel is the box center in pixel space
	CenterPixel [2]float64
	// CenterZ is the slice position of the referenced image
	CenterZ float64
	// Center and Size are the RAS box
	Center geom.Vec3
	Size   geom.Vec3
}

// BoxGeometry places the pixel corners on an axial image at ipp with
// spacing ps as a thin RAS aligned box
func BoxGeometry(corners [][2]float64, ipp geom.Vec3, ps [2]float64) Box {
	if len(corners) > 4 {
		corners = corners[:4]
	}
	lo := [2]float64{math.Inf(1), math.Inf(1)}
	hi := [2]float64{math.Inf(-1), math.Inf(-1)}
	for _, c := range corners {
		for a := 0; a < 2; a++ {
			lo[a] = math.Min(lo[a], c[a])
			hi[a] = math.Max(hi[a], c[a])
		}
	}
	b := Box{
		Corners:     corners,
		Width:       (hi[0] - lo[0]) * ps[0],
		Height:      (hi[1] - lo[1]) * ps[1],
		CenterPixel: [2]float64{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2},
		CenterZ:     ipp[2],
	}
	b.Center = geom.PlanarToRAS(b.CenterPixel[0], b.CenterPixel[1], ipp, ps[0], ps[1])
	b.Size = geom.Vec3{b.Width, b.Height, BoxThickness}
	return b
}

// PolylineRAS converts each pixel vertex with the plane of the referenced
// image
func PolylineRAS(pixels [][2]float64, ipp geom.Vec3, ps [2]float64) []geom.Vec3 {
	out := make([]geom.Vec3, len(pixels))
	for i, p := range pixels {
		out[i] = geom.PlanarToRAS(p[0], p[1], ipp, ps[0], ps[1])
	}
	return out
}

// Planar is a loaded planar annotation report. Annotations whose source
// image or series is not in the database are listed but not drawn; the
// reason is kept in Warnings.
type Planar struct {
	Annotations []Annotation
	Tables      map[Kind]*scene.Table
	Folders     map[Kind]*scene.Folder
	Markups     map[Kind][]*scene.Markups
	Warnings    []error
}

type planarRow struct {
	cells  []string
	markup *scene.Markups
	z      float64
	placed bool
}

// LoadPlanar renders the annotations of l as one table and one markups
// folder per geometry kind. Bounding box rows are ordered by slice.
func (p *Plugin) LoadPlanar(ctx context.Context, l *plugin.Loadable) (*Planar, error) {
	ds, err := dicom.ReadFile(l.Files[0], dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}
	out := &Planar{
		Annotations: ParseAnnotations(dicom.ParseContentItem(ds)),
		Tables:      map[Kind]*scene.Table{},
		Folders:     map[Kind]*scene.Folder{},
		Markups:     map[Kind][]*scene.Markups{},
	}
	study := ds.Text(tag.StudyInstanceUID)
	for _, kind := range Kinds {
		var rows []planarRow
		for _, a := range out.Annotations {
			if a.Kind != kind {
				continue
			}
			row, err := p.renderAnnotation(a, study)
			if err != nil {
				out.Warnings = append(out.Warnings, fmt.Errorf("annotation %q: %w", a.TrackingIdentifier, err))
			}
			rows = append(rows, row)
		}
		if len(rows) == 0 {
			continue
		}
		if kind == BoundingBox {
			sort.SliceStable(rows, func(i, j int) bool {
				if rows[i].placed != rows[j].placed {
					return rows[i].placed
				}
				return rows[i].z < rows[j].z
			})
		}

		name := kindNames[kind]
		t := scene.NewTable(l.Name + " " + strings.ToLower(name))
		t.ReadOnly = true
		for _, c := range columns(kind) {
			t.AddColumn(c[0], c[1], "")
		}
		folder := &scene.Folder{Base: scene.Base{Name: name}}
		p.Env.Scene.Add(t)
		p.Env.Scene.Add(folder)
		for _, r := range rows {
			if err := t.AppendRow(r.cells...); err != nil {
				return nil, err
			}
			if r.markup != nil {
				p.Env.Scene.AddChild(folder, r.markup)
				out.Markups[kind] = append(out.Markups[kind], r.markup)
			}
		}
		out.Tables[kind] = t
		out.Folders[kind] = folder
	}
	slog.InfoContext(ctx, "loaded planar annotations",
		slog.String("name", l.Name),
		slog.Int("annotations", len(out.Annotations)),
		slog.Int("skipped", len(out.Warnings)))
	return out, nil
}

func columns(kind Kind) [][2]string {
	cols := [][2]string{{TrackingIdentifierColumn, ""}, {"FindingType", ""}, {"FindingSite", ""}}
	switch kind {
	case BoundingBox:
		cols = append(cols, [2]string{"Corners", "px"}, [2]string{"Width", "mm"}, [2]string{"Height", "mm"},
			[2]string{"Center", "px"}, [2]string{"Center Z", "mm"})
	case Polyline:
		cols = append(cols, [2]string{"Points", "px"}, [2]string{"Z", "mm"})
	case Point3D:
		cols = append(cols, [2]string{"Point", "RAS"}, [2]string{"Referenced Series", ""})
	}
	return cols
}

// renderAnnotation returns the table row of a and, when its geometry
// resolves, the markup drawing it
func (p *Plugin) renderAnnotation(a Annotation, study string) (planarRow, error) {
	sites := make([]string, len(a.FindingSites))
	for i, s := range a.FindingSites {
		sites[i] = s.Meaning
	}
	row := planarRow{cells: []string{a.TrackingIdentifier, a.FindingType.Meaning, strings.Join(sites, ", ")}}
	name := a.TrackingIdentifier
	if name == "" {
		name = string(a.Kind)
	}

	if a.Kind == Point3D {
		ras := geom.LPSToRAS(a.Point)
		series, err := resolve.SeriesByFrameOfReference(p.Env.DB, study, []string{a.FrameOfReferenceUID})
		row.cells = append(row.cells, formatVec(ras), strings.Join(series, " "))
		if err != nil {
			return row, err
		}
		m := scene.NewMarkups(scene.MarkupPoints, name)
		m.Locked = true
		m.AddPoint(a.TrackingIdentifier, ras)
		m.SetAttribute(scene.AttrSeriesInstanceUID, series[0])
		row.markup, row.placed = m, true
		return row, nil
	}

	pixels := make([]string, len(a.Pixels))
	for i, px := range a.Pixels {
		pixels[i] = "(" + formatFloat(px[0]) + "," + formatFloat(px[1]) + ")"
	}
	ipp, ps, err := p.imagePlane(a.ReferencedSOPInstanceUID)
	if a.Kind == Polyline {
		row.cells = append(row.cells, strings.Join(pixels, " "))
		if err != nil {
			return row, err
		}
		row.cells = append(row.cells, formatFloat(ipp[2]))
		m := scene.NewMarkups(scene.MarkupCurve, name)
		m.Locked = true
		for _, v := range PolylineRAS(a.Pixels, ipp, ps) {
			m.AddPoint("", v)
		}
		m.SetAttribute(scene.AttrReferencedInstanceUIDs, a.ReferencedSOPInstanceUID)
		row.markup, row.z, row.placed = m, ipp[2], true
		return row, nil
	}

	if len(pixels) > 4 {
		pixels = pixels[:4]
	}
	row.cells = append(row.cells, strings.Join(pixels, " "))
	if err != nil {
		return row, err
	}
	b := BoxGeometry(a.Pixels, ipp, ps)
	row.cells = append(row.cells,
		formatFloat(b.Width), formatFloat(b.Height),
		"("+formatFloat(b.CenterPixel[0])+","+formatFloat(b.CenterPixel[1])+")",
		formatFloat(b.CenterZ))
	m := scene.NewMarkups(scene.MarkupROI, name)
	m.Locked = true
	m.Center, m.Size = b.Center, b.Size
	m.SetAttribute(scene.AttrReferencedInstanceUIDs, a.ReferencedSOPInstanceUID)
	row.markup, row.z, row.placed = m, b.CenterZ, true
	return row, nil
}

// imagePlane looks up ImagePositionPatient and PixelSpacing of an instance
func (p *Plugin) imagePlane(uid string) (geom.Vec3, [2]float64, error) {
	if uid == "" {
		return geom.Vec3{}, [2]float64{}, fmt.Errorf("region has no source image")
	}
	inst, ok := p.Env.DB.Instance(uid)
	if !ok {
		return geom.Vec3{}, [2]float64{}, fmt.Errorf("instance %s: %w", uid, errs.ErrReferencedSeriesNotInDatabase)
	}
	if len(inst.ImagePositionPatient) != 3 || len(inst.PixelSpacing) != 2 {
		return geom.Vec3{}, [2]float64{}, fmt.Errorf("instance %s has no image plane", uid)
	}
	return geom.Vec3(inst.ImagePositionPatient), [2]float64(inst.PixelSpacing), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatVec(v geom.Vec3) string {
	return "(" + formatFloat(v[0]) + "," + formatFloat(v[1]) + "," + formatFloat(v[2]) + ")"
}
